// Copyright (c) 2026 Resumora. All rights reserved.
// Author: engineering@resumora.app

/*
Package pressure reports whether the process is under memory pressure.

It samples heap usage on a fixed interval and maintains one boolean with
hysteresis: pressure turns on strictly above the high mark and off strictly
below the low mark, so the state cannot thrash while usage hovers at a
boundary.

# Consumers

The admission path reads the state synchronously on every request; the
cleanup orchestrator subscribes to the onset edge to trigger emergency
reclamation.
*/
package pressure

import (
	"context"
	"log/slog"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"github.com/resumora/resumora/internal/platform/metrics"
)

// # Configuration

// Config carries the sampling thresholds.
type Config struct {
	// HighMarkMB turns pressure on when sampled heap exceeds it.
	HighMarkMB int

	// LowMarkRatio positions the release threshold as a fraction of the
	// high mark, strictly between 0 and 1.
	LowMarkRatio float64

	// SampleInterval is the cadence of the background sampling loop.
	SampleInterval time.Duration
}

// # Sensor

// Sensor owns the pressure boolean and its transition rules.
//
// Reads are lock-free; transitions are serialized so the background loop
// and explicit samples cannot interleave half-applied state changes.
type Sensor struct {
	highMarkBytes  uint64
	lowMarkBytes   uint64
	sampleInterval time.Duration
	metrics        *metrics.Metrics
	logger         *slog.Logger

	pressure atomic.Bool

	mu          sync.Mutex
	subscribers []func()
}

// NewSensor constructs a [Sensor] from the configured marks.
func NewSensor(config Config, collector *metrics.Metrics, logger *slog.Logger) *Sensor {
	highMarkBytes := uint64(config.HighMarkMB) * 1024 * 1024
	return &Sensor{
		highMarkBytes:  highMarkBytes,
		lowMarkBytes:   uint64(float64(highMarkBytes) * config.LowMarkRatio),
		sampleInterval: config.SampleInterval,
		metrics:        collector,
		logger:         logger,
	}
}

// Pressure reports the current state without sampling.
func (sensor *Sensor) Pressure() bool {
	return sensor.pressure.Load()
}

// OnPressureOnset registers a callback fired once per false-to-true edge.
//
// Callbacks run on their own goroutine so a slow subscriber cannot stall
// the sampling loop.
func (sensor *Sensor) OnPressureOnset(callback func()) {
	sensor.mu.Lock()
	defer sensor.mu.Unlock()
	sensor.subscribers = append(sensor.subscribers, callback)
}

/*
Sample reads the heap right now and applies the transition rules.

Returns:
  - bool: The state after the sample
*/
func (sensor *Sensor) Sample() bool {
	return sensor.SampleBytes(currentHeapBytes())
}

/*
SampleBytes applies the transition rules to an explicit reading.

Description: Pressure turns on when the reading is strictly above the high
mark and off when strictly below the low mark. Readings inside the band
leave the state unchanged.

Parameters:
  - heapBytes: uint64

Returns:
  - bool: The state after the sample
*/
func (sensor *Sensor) SampleBytes(heapBytes uint64) bool {
	sensor.mu.Lock()
	defer sensor.mu.Unlock()

	current := sensor.pressure.Load()
	switch {
	case !current && heapBytes > sensor.highMarkBytes:
		sensor.pressure.Store(true)
		sensor.metrics.PressureState.Set(1)
		sensor.logger.Warn("memory pressure onset",
			"heap_mb", heapBytes/(1024*1024),
			"high_mark_mb", sensor.highMarkBytes/(1024*1024),
		)
		for _, subscriber := range sensor.subscribers {
			go subscriber()
		}
		return true

	case current && heapBytes < sensor.lowMarkBytes:
		sensor.pressure.Store(false)
		sensor.metrics.PressureState.Set(0)
		sensor.logger.Info("memory pressure released",
			"heap_mb", heapBytes/(1024*1024),
			"low_mark_mb", sensor.lowMarkBytes/(1024*1024),
		)
		return false
	}

	return current
}

/*
Run executes the sampling loop until the context is cancelled.

Parameters:
  - context: context.Context
*/
func (sensor *Sensor) Run(context context.Context) {
	ticker := time.NewTicker(sensor.sampleInterval)
	defer ticker.Stop()

	sensor.logger.Info("pressure sensor started",
		"high_mark_mb", sensor.highMarkBytes/(1024*1024),
		"low_mark_mb", sensor.lowMarkBytes/(1024*1024),
		"sample_interval", sensor.sampleInterval.String(),
	)

	for {
		select {
		case <-context.Done():
			sensor.logger.Info("pressure sensor stopped")
			return
		case <-ticker.C:
			sensor.Sample()
		}
	}
}

// currentHeapBytes reads live heap allocation from the runtime.
func currentHeapBytes() uint64 {
	var memStats runtime.MemStats
	runtime.ReadMemStats(&memStats)
	return memStats.HeapAlloc
}
