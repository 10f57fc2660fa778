// Copyright (c) 2026 Resumora. All rights reserved.
// Author: engineering@resumora.app

/*
Package metrics defines the Prometheus instruments for the Resumora backend.

It exposes one Metrics struct that is created in main and injected into the
components that record observations (admission gate, queue engine, cleanup
orchestrator, pressure sensor, extraction service).

Architecture:

  - Registry: Instruments register against an injected Registerer, so tests
    can use a fresh prometheus.NewRegistry() without global state.
  - Exposure: The /metrics endpoint serves the same registry via promhttp.
*/
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// extractionBuckets spans quick provider replies (250ms) up to the engine
// deadline (45s).
var extractionBuckets = []float64{0.25, 0.5, 1, 2.5, 5, 10, 20, 30, 45}

// Metrics holds every Prometheus instrument the backend records.
type Metrics struct {
	registry *prometheus.Registry

	// JobsTotal counts terminal job outcomes by status.
	JobsTotal *prometheus.CounterVec

	// QueueDepth tracks the number of queued jobs.
	QueueDepth prometheus.Gauge

	// AdmissionDenialsTotal counts gate denials by code.
	AdmissionDenialsTotal *prometheus.CounterVec

	// ExtractionSeconds tracks end-to-end extraction duration per job.
	ExtractionSeconds prometheus.Histogram

	// LLMTokensTotal counts tokens recorded against the quota ledger.
	LLMTokensTotal prometheus.Counter

	// PressureState is 1 while the memory guard reports pressure, else 0.
	PressureState prometheus.Gauge

	// CleanupRemovedTotal counts rows/directories removed per cleanup task.
	CleanupRemovedTotal *prometheus.CounterVec

	// SessionEvictionsTotal counts cap-triggered session evictions.
	SessionEvictionsTotal prometheus.Counter
}

// New creates the instrument set on a private registry.
func New() *Metrics {
	registry := prometheus.NewRegistry()
	m := NewWithRegisterer(registry)
	m.registry = registry
	return m
}

// NewWithRegisterer creates Metrics registered against the given registerer.
// Tests pass prometheus.NewRegistry() to avoid duplicate registration.
func NewWithRegisterer(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		JobsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "resumora_jobs_total",
			Help: "Terminal job outcomes by status",
		}, []string{"status"}),

		QueueDepth: factory.NewGauge(prometheus.GaugeOpts{
			Name: "resumora_queue_depth",
			Help: "Number of jobs currently queued",
		}),

		AdmissionDenialsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "resumora_admission_denials_total",
			Help: "Admission gate denials by code",
		}, []string{"code"}),

		ExtractionSeconds: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "resumora_extraction_seconds",
			Help:    "End-to-end extraction duration per job",
			Buckets: extractionBuckets,
		}),

		LLMTokensTotal: factory.NewCounter(prometheus.CounterOpts{
			Name: "resumora_llm_tokens_total",
			Help: "Tokens recorded against the quota ledger",
		}),

		PressureState: factory.NewGauge(prometheus.GaugeOpts{
			Name: "resumora_pressure_state",
			Help: "1 while the memory guard reports pressure, 0 otherwise",
		}),

		CleanupRemovedTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "resumora_cleanup_removed_total",
			Help: "Records removed by cleanup tasks, labelled by task",
		}, []string{"task"}),

		SessionEvictionsTotal: factory.NewCounter(prometheus.CounterOpts{
			Name: "resumora_session_evictions_total",
			Help: "Sessions evicted by the per-principal cap",
		}),
	}
}

// Handler returns the HTTP handler serving the /metrics endpoint.
//
// Metrics created via [NewWithRegisterer] carry no registry of their own;
// Handler then falls back to the default gatherer so tests stay decoupled.
func (m *Metrics) Handler() http.Handler {
	if m.registry != nil {
		return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
	}
	return promhttp.Handler()
}
