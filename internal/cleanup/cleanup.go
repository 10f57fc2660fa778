// Copyright (c) 2026 Resumora. All rights reserved.
// Author: engineering@resumora.app

/*
Package cleanup schedules the periodic maintenance sweeps: terminal job
retention, payload and bundle orphan removal, credential expiry, and
quota history pruning.

Two cron cadences run the routine work. A third, unscheduled pass exists
for memory pressure: the sensor callback triggers an aggressive sweep
with a much shorter retention window. Every task logs and continues on
error; a failed sweep is retried for free on the next tick.
*/
package cleanup

import (
	stdctx "context"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/resumora/resumora/internal/platform/metrics"
)

// # Defaults

const (
	defaultInterval           = time.Minute
	defaultCredentialInterval = 6 * time.Hour
	defaultJobRetention       = 24 * time.Hour
	defaultEmergencyRetention = 30 * time.Minute
	defaultWindowRetention    = time.Hour
	defaultDailyRetention     = 90 * 24 * time.Hour
	defaultTaskTimeout        = 30 * time.Second
)

// # Collaborator Contracts

/*
JobSweeper is the slice of the job service cleanup drives.
*/
type JobSweeper interface {
	SweepTerminal(context stdctx.Context, olderThan time.Time) (int64, error)
	ListIDs(context stdctx.Context) ([]string, error)
}

/*
PayloadSweeper removes orphaned payload rows and, under pressure, the
whole payload cache.
*/
type PayloadSweeper interface {
	DeleteOrphans(context stdctx.Context, olderThan time.Time) (int64, error)
	PurgeCache(context stdctx.Context) (int64, error)
}

/*
BundleSweeper removes published bundles whose job is gone.
*/
type BundleSweeper interface {
	Purge(liveJobIDs []string, olderThan time.Time) (int64, error)
}

/*
CredentialSweeper expires sessions and revocation entries.
*/
type CredentialSweeper interface {
	SweepExpired(context stdctx.Context) (int64, int64, error)
}

/*
QuotaPruner trims rate-window and daily usage history.
*/
type QuotaPruner interface {
	PruneWindows(context stdctx.Context, olderThan time.Time) (int64, error)
	PruneDaily(context stdctx.Context, olderThan time.Time) (int64, error)
}

// # Orchestrator

// Config tunes sweep cadence and retention windows.
type Config struct {
	// Interval is the pipeline sweep cadence.
	Interval time.Duration
	// CredentialInterval is the credential and quota sweep cadence.
	CredentialInterval time.Duration
	// JobRetention is how long terminal jobs and their bundles live.
	JobRetention time.Duration
	// EmergencyRetention replaces JobRetention during a pressure sweep.
	EmergencyRetention time.Duration
	// WindowRetention is how long spent rate-window rows live.
	WindowRetention time.Duration
	// DailyRetention is how long daily usage rows live.
	DailyRetention time.Duration
	// TaskTimeout bounds one scheduled pass.
	TaskTimeout time.Duration
}

func (config Config) withDefaults() Config {
	if config.Interval <= 0 {
		config.Interval = defaultInterval
	}
	if config.CredentialInterval <= 0 {
		config.CredentialInterval = defaultCredentialInterval
	}
	if config.JobRetention <= 0 {
		config.JobRetention = defaultJobRetention
	}
	if config.EmergencyRetention <= 0 {
		config.EmergencyRetention = defaultEmergencyRetention
	}
	if config.WindowRetention <= 0 {
		config.WindowRetention = defaultWindowRetention
	}
	if config.DailyRetention <= 0 {
		config.DailyRetention = defaultDailyRetention
	}
	if config.TaskTimeout <= 0 {
		config.TaskTimeout = defaultTaskTimeout
	}
	return config
}

/*
Orchestrator owns the cron scheduler and the sweep implementations.
*/
type Orchestrator struct {
	jobs        JobSweeper
	payloads    PayloadSweeper
	bundles     BundleSweeper
	credentials CredentialSweeper
	quotas      QuotaPruner
	metrics     *metrics.Metrics
	logger      *slog.Logger
	config      Config
	scheduler   *cron.Cron
}

/*
NewOrchestrator wires the maintenance sweeps.

Parameters:
  - jobs: Terminal job sweeper and live-ID source.
  - payloads: Payload orphan and cache sweeper.
  - bundles: Published bundle sweeper.
  - credentials: Session and revocation sweeper.
  - quotas: Usage history pruner.
  - collector: Metrics sink for removal counts.
  - logger: Structured logger.
  - config: Cadence and retention tuning; zero values take defaults.

Returns:
  - *Orchestrator: Ready to Start.
*/
func NewOrchestrator(jobs JobSweeper, payloads PayloadSweeper, bundles BundleSweeper, credentials CredentialSweeper, quotas QuotaPruner, collector *metrics.Metrics, logger *slog.Logger, config Config) *Orchestrator {
	return &Orchestrator{
		jobs:        jobs,
		payloads:    payloads,
		bundles:     bundles,
		credentials: credentials,
		quotas:      quotas,
		metrics:     collector,
		logger:      logger,
		config:      config.withDefaults(),
		scheduler:   cron.New(),
	}
}

/*
Start registers the cron entries and launches the scheduler.

Returns:
  - error: Schedule registration failures.
*/
func (orchestrator *Orchestrator) Start() error {
	if _, err := orchestrator.scheduler.AddFunc(every(orchestrator.config.Interval), orchestrator.runPipelineSweep); err != nil {
		return err
	}
	if _, err := orchestrator.scheduler.AddFunc(every(orchestrator.config.CredentialInterval), orchestrator.runCredentialSweep); err != nil {
		return err
	}
	orchestrator.scheduler.Start()
	orchestrator.logger.Info("cleanup scheduler started",
		"interval", orchestrator.config.Interval,
		"credentialInterval", orchestrator.config.CredentialInterval)
	return nil
}

/*
Stop halts the scheduler and waits for any running sweep to finish.
*/
func (orchestrator *Orchestrator) Stop() {
	stopContext := orchestrator.scheduler.Stop()
	<-stopContext.Done()
	orchestrator.logger.Info("cleanup scheduler stopped")
}

/*
SweepPipeline removes terminal jobs past the retention window, payload
rows no job references, and published bundles whose job is gone.

Parameters:
  - context: Context for cancellation.
  - retention: Age floor for removal.
*/
func (orchestrator *Orchestrator) SweepPipeline(context stdctx.Context, retention time.Duration) {
	cutoff := time.Now().Add(-retention)

	removed, err := orchestrator.jobs.SweepTerminal(context, cutoff)
	orchestrator.record("jobs", removed, err)

	orphans, err := orchestrator.payloads.DeleteOrphans(context, cutoff)
	orchestrator.record("payloads", orphans, err)

	liveIDs, err := orchestrator.jobs.ListIDs(context)
	if err != nil {
		orchestrator.logger.Error("cleanup task failed", "task", "bundles", "error", err)
		return
	}
	bundles, err := orchestrator.bundles.Purge(liveIDs, cutoff)
	orchestrator.record("bundles", bundles, err)
}

/*
SweepCredentials expires sessions and revocations and prunes quota
history.
*/
func (orchestrator *Orchestrator) SweepCredentials(context stdctx.Context) {
	sessions, revocations, err := orchestrator.credentials.SweepExpired(context)
	orchestrator.record("sessions", sessions, err)
	if err == nil {
		orchestrator.record("revocations", revocations, nil)
	}

	windows, err := orchestrator.quotas.PruneWindows(context, time.Now().Add(-orchestrator.config.WindowRetention))
	orchestrator.record("quota_windows", windows, err)

	daily, err := orchestrator.quotas.PruneDaily(context, time.Now().Add(-orchestrator.config.DailyRetention))
	orchestrator.record("quota_daily", daily, err)
}

/*
EmergencySweep is the memory pressure pass: the pipeline sweep with the
short retention window, plus a full payload cache purge. Synchronous;
the pressure callback should run it on its own goroutine so the sensor
loop is never blocked.
*/
func (orchestrator *Orchestrator) EmergencySweep(context stdctx.Context) {
	orchestrator.logger.Warn("emergency cleanup started", "retention", orchestrator.config.EmergencyRetention)

	orchestrator.SweepPipeline(context, orchestrator.config.EmergencyRetention)

	purged, err := orchestrator.payloads.PurgeCache(context)
	orchestrator.record("payload_cache", purged, err)
}

func (orchestrator *Orchestrator) runPipelineSweep() {
	context, cancel := stdctx.WithTimeout(stdctx.Background(), orchestrator.config.TaskTimeout)
	defer cancel()

	orchestrator.SweepPipeline(context, orchestrator.config.JobRetention)
}

func (orchestrator *Orchestrator) runCredentialSweep() {
	context, cancel := stdctx.WithTimeout(stdctx.Background(), orchestrator.config.TaskTimeout)
	defer cancel()

	orchestrator.SweepCredentials(context)
}

/*
record counts a task's removals and logs failures. Zero removals stay
quiet so the minute cadence does not flood the log.
*/
func (orchestrator *Orchestrator) record(task string, removed int64, err error) {
	if err != nil {
		orchestrator.logger.Error("cleanup task failed", "task", task, "error", err)
		return
	}
	if removed == 0 {
		return
	}
	orchestrator.metrics.CleanupRemovedTotal.WithLabelValues(task).Add(float64(removed))
	orchestrator.logger.Info("cleanup removed records", "task", task, "removed", removed)
}

func every(interval time.Duration) string {
	return "@every " + interval.String()
}
