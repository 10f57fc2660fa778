// Copyright (c) 2026 Resumora. All rights reserved.
// Author: engineering@resumora.app

package cleanup_test

import (
	stdctx "context"
	"errors"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/resumora/resumora/internal/cleanup"
	"github.com/resumora/resumora/internal/platform/metrics"
)

// # Fakes

type fakeJobSweeper struct {
	mu           sync.Mutex
	sweepCutoffs []time.Time
	sweepErr     error
	listErr      error
	ids          []string
	removed      int64
}

func (sweeper *fakeJobSweeper) SweepTerminal(_ stdctx.Context, olderThan time.Time) (int64, error) {
	sweeper.mu.Lock()
	defer sweeper.mu.Unlock()

	sweeper.sweepCutoffs = append(sweeper.sweepCutoffs, olderThan)
	if sweeper.sweepErr != nil {
		return 0, sweeper.sweepErr
	}
	return sweeper.removed, nil
}

func (sweeper *fakeJobSweeper) ListIDs(_ stdctx.Context) ([]string, error) {
	sweeper.mu.Lock()
	defer sweeper.mu.Unlock()

	if sweeper.listErr != nil {
		return nil, sweeper.listErr
	}
	return sweeper.ids, nil
}

func (sweeper *fakeJobSweeper) sweeps() []time.Time {
	sweeper.mu.Lock()
	defer sweeper.mu.Unlock()

	return append([]time.Time(nil), sweeper.sweepCutoffs...)
}

type fakePayloadSweeper struct {
	mu            sync.Mutex
	orphanCutoffs []time.Time
	cachePurges   int
}

func (sweeper *fakePayloadSweeper) DeleteOrphans(_ stdctx.Context, olderThan time.Time) (int64, error) {
	sweeper.mu.Lock()
	defer sweeper.mu.Unlock()

	sweeper.orphanCutoffs = append(sweeper.orphanCutoffs, olderThan)
	return 2, nil
}

func (sweeper *fakePayloadSweeper) PurgeCache(_ stdctx.Context) (int64, error) {
	sweeper.mu.Lock()
	defer sweeper.mu.Unlock()

	sweeper.cachePurges++
	return 5, nil
}

func (sweeper *fakePayloadSweeper) orphans() []time.Time {
	sweeper.mu.Lock()
	defer sweeper.mu.Unlock()

	return append([]time.Time(nil), sweeper.orphanCutoffs...)
}

type fakeBundleSweeper struct {
	mu      sync.Mutex
	liveIDs [][]string
}

func (sweeper *fakeBundleSweeper) Purge(liveJobIDs []string, _ time.Time) (int64, error) {
	sweeper.mu.Lock()
	defer sweeper.mu.Unlock()

	sweeper.liveIDs = append(sweeper.liveIDs, append([]string(nil), liveJobIDs...))
	return 1, nil
}

func (sweeper *fakeBundleSweeper) calls() [][]string {
	sweeper.mu.Lock()
	defer sweeper.mu.Unlock()

	return sweeper.liveIDs
}

type fakeCredentialSweeper struct {
	mu     sync.Mutex
	sweeps int
}

func (sweeper *fakeCredentialSweeper) SweepExpired(_ stdctx.Context) (int64, int64, error) {
	sweeper.mu.Lock()
	defer sweeper.mu.Unlock()

	sweeper.sweeps++
	return 3, 4, nil
}

type fakeQuotaPruner struct {
	mu            sync.Mutex
	windowCutoffs []time.Time
	dailyCutoffs  []time.Time
}

func (pruner *fakeQuotaPruner) PruneWindows(_ stdctx.Context, olderThan time.Time) (int64, error) {
	pruner.mu.Lock()
	defer pruner.mu.Unlock()

	pruner.windowCutoffs = append(pruner.windowCutoffs, olderThan)
	return 1, nil
}

func (pruner *fakeQuotaPruner) PruneDaily(_ stdctx.Context, olderThan time.Time) (int64, error) {
	pruner.mu.Lock()
	defer pruner.mu.Unlock()

	pruner.dailyCutoffs = append(pruner.dailyCutoffs, olderThan)
	return 1, nil
}

// # Fixture

type cleanupFixture struct {
	jobs         *fakeJobSweeper
	payloads     *fakePayloadSweeper
	bundles      *fakeBundleSweeper
	credentials  *fakeCredentialSweeper
	quotas       *fakeQuotaPruner
	orchestrator *cleanup.Orchestrator
}

func newCleanupFixture(t *testing.T, config cleanup.Config) *cleanupFixture {
	t.Helper()

	fixture := &cleanupFixture{
		jobs:        &fakeJobSweeper{ids: []string{"job-1", "job-2"}, removed: 7},
		payloads:    &fakePayloadSweeper{},
		bundles:     &fakeBundleSweeper{},
		credentials: &fakeCredentialSweeper{},
		quotas:      &fakeQuotaPruner{},
	}
	fixture.orchestrator = cleanup.NewOrchestrator(
		fixture.jobs,
		fixture.payloads,
		fixture.bundles,
		fixture.credentials,
		fixture.quotas,
		metrics.NewWithRegisterer(prometheus.NewRegistry()),
		slog.Default(),
		config,
	)
	return fixture
}

func assertCutoffNear(t *testing.T, want time.Duration, cutoff time.Time) {
	t.Helper()

	assert.InDelta(t, want.Seconds(), time.Since(cutoff).Seconds(), 2.0)
}

// # Tests

/*
TestOrchestrator_SweepPipeline verifies one pass sweeps jobs, payload
orphans, and bundles with the configured retention cutoff.
*/
func TestOrchestrator_SweepPipeline(t *testing.T) {
	fixture := newCleanupFixture(t, cleanup.Config{JobRetention: 24 * time.Hour})

	fixture.orchestrator.SweepPipeline(stdctx.Background(), 24*time.Hour)

	sweeps := fixture.jobs.sweeps()
	require.Len(t, sweeps, 1)
	assertCutoffNear(t, 24*time.Hour, sweeps[0])

	orphans := fixture.payloads.orphans()
	require.Len(t, orphans, 1)
	assertCutoffNear(t, 24*time.Hour, orphans[0])

	bundleCalls := fixture.bundles.calls()
	require.Len(t, bundleCalls, 1)
	assert.Equal(t, []string{"job-1", "job-2"}, bundleCalls[0])
}

/*
TestOrchestrator_SweepPipeline_ContinuesAfterFailure verifies one failed
task does not stop the rest of the pass.
*/
func TestOrchestrator_SweepPipeline_ContinuesAfterFailure(t *testing.T) {
	t.Run("job_sweep_failure", func(t *testing.T) {
		fixture := newCleanupFixture(t, cleanup.Config{})
		fixture.jobs.sweepErr = errors.New("connection reset")

		fixture.orchestrator.SweepPipeline(stdctx.Background(), time.Hour)

		assert.Len(t, fixture.payloads.orphans(), 1)
		assert.Len(t, fixture.bundles.calls(), 1)
	})

	t.Run("live_id_failure_skips_bundles", func(t *testing.T) {
		fixture := newCleanupFixture(t, cleanup.Config{})
		fixture.jobs.listErr = errors.New("connection reset")

		fixture.orchestrator.SweepPipeline(stdctx.Background(), time.Hour)

		// Without a trustworthy live set, removing bundles would risk
		// deleting a finished resume.
		assert.Empty(t, fixture.bundles.calls())
	})
}

/*
TestOrchestrator_SweepCredentials verifies expiry and quota pruning run
with their own retention windows.
*/
func TestOrchestrator_SweepCredentials(t *testing.T) {
	fixture := newCleanupFixture(t, cleanup.Config{
		WindowRetention: time.Hour,
		DailyRetention:  90 * 24 * time.Hour,
	})

	fixture.orchestrator.SweepCredentials(stdctx.Background())

	assert.Equal(t, 1, fixture.credentials.sweeps)

	require.Len(t, fixture.quotas.windowCutoffs, 1)
	assertCutoffNear(t, time.Hour, fixture.quotas.windowCutoffs[0])

	require.Len(t, fixture.quotas.dailyCutoffs, 1)
	assertCutoffNear(t, 90*24*time.Hour, fixture.quotas.dailyCutoffs[0])
}

/*
TestOrchestrator_EmergencySweep verifies the pressure pass uses the short
retention window and purges the payload cache.
*/
func TestOrchestrator_EmergencySweep(t *testing.T) {
	fixture := newCleanupFixture(t, cleanup.Config{EmergencyRetention: 30 * time.Minute})

	fixture.orchestrator.EmergencySweep(stdctx.Background())

	sweeps := fixture.jobs.sweeps()
	require.Len(t, sweeps, 1)
	assertCutoffNear(t, 30*time.Minute, sweeps[0])

	assert.Equal(t, 1, fixture.payloads.cachePurges)
}

/*
TestOrchestrator_StartRunsOnSchedule verifies the cron entries fire and
Stop waits them out.
*/
func TestOrchestrator_StartRunsOnSchedule(t *testing.T) {
	fixture := newCleanupFixture(t, cleanup.Config{Interval: 50 * time.Millisecond})

	require.NoError(t, fixture.orchestrator.Start())
	defer fixture.orchestrator.Stop()

	require.Eventually(t, func() bool {
		return len(fixture.jobs.sweeps()) >= 1
	}, 2*time.Second, 10*time.Millisecond)
}
