// Copyright (c) 2026 Resumora. All rights reserved.
// Author: engineering@resumora.app

package job_test

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/resumora/resumora/internal/pipeline/job"
	"github.com/resumora/resumora/internal/pipeline/payload"
	"github.com/resumora/resumora/internal/platform/apperr"
	"github.com/resumora/resumora/internal/platform/metrics"
	"github.com/resumora/resumora/pkg/uuidv7"
)

// # Test Doubles

// memoryJobStore honors the Store contract in memory: FIFO per created-at,
// status guards on every transition, and recomputed positions.
type memoryJobStore struct {
	mu   sync.Mutex
	jobs map[string]*job.Job
	base time.Time
	seq  int
}

func newMemoryJobStore() *memoryJobStore {
	return &memoryJobStore{
		jobs: make(map[string]*job.Job),
		base: time.Now().Add(-time.Hour),
	}
}

func (store *memoryJobStore) Enqueue(_ context.Context, principalID, payloadRef string) (*job.Job, error) {
	store.mu.Lock()
	defer store.mu.Unlock()

	position := store.countQueuedLocked() + 1
	waitSeconds := 120 * position
	if waitSeconds < 60 {
		waitSeconds = 60
	}

	store.seq++
	inserted := &job.Job{
		ID:                   uuidv7.New(),
		PrincipalID:          principalID,
		PayloadRef:           payloadRef,
		Status:               job.StatusQueued,
		Position:             position,
		EstimatedWaitSeconds: waitSeconds,
		CreatedAt:            store.base.Add(time.Duration(store.seq) * time.Second),
	}
	store.jobs[inserted.ID] = inserted
	return cloneJob(inserted), nil
}

func (store *memoryJobStore) PeekNext(_ context.Context) (*job.Job, error) {
	store.mu.Lock()
	defer store.mu.Unlock()

	head := store.oldestQueuedLocked()
	if head == nil {
		return nil, nil
	}
	return cloneJob(head), nil
}

func (store *memoryJobStore) ClaimNext(_ context.Context) (*job.Job, error) {
	store.mu.Lock()
	defer store.mu.Unlock()

	head := store.oldestQueuedLocked()
	if head == nil {
		return nil, nil
	}
	now := time.Now()
	head.Status = job.StatusProcessing
	head.Position = 0
	head.StartedAt = &now
	return cloneJob(head), nil
}

func (store *memoryJobStore) CompleteSuccess(_ context.Context, jobID string, result []byte, bundleName string, processingSeconds float64) error {
	store.mu.Lock()
	defer store.mu.Unlock()

	target, ok := store.jobs[jobID]
	if !ok || target.Status != job.StatusProcessing {
		return job.ErrNotProcessing
	}
	now := time.Now()
	target.Status = job.StatusCompleted
	target.CompletedAt = &now
	target.Result = append([]byte(nil), result...)
	target.BundleName = bundleName
	target.ProcessingSeconds = processingSeconds
	return nil
}

func (store *memoryJobStore) CompleteFailure(_ context.Context, jobID, errorKind, errorMessage string, processingSeconds float64) error {
	store.mu.Lock()
	defer store.mu.Unlock()

	target, ok := store.jobs[jobID]
	if !ok || target.Status != job.StatusProcessing {
		return job.ErrNotProcessing
	}
	now := time.Now()
	target.Status = job.StatusFailed
	target.CompletedAt = &now
	target.ErrorKind = errorKind
	target.ErrorMessage = errorMessage
	target.ProcessingSeconds = processingSeconds
	return nil
}

func (store *memoryJobStore) Cancel(_ context.Context, jobID, principalID string) error {
	store.mu.Lock()
	defer store.mu.Unlock()

	target, ok := store.jobs[jobID]
	if ok && target.PrincipalID == principalID && target.Status == job.StatusQueued {
		now := time.Now()
		target.Status = job.StatusCancelled
		target.Position = 0
		target.CompletedAt = &now
		return nil
	}
	if !ok || target.PrincipalID != principalID {
		return apperr.NotFound("Job")
	}
	return apperr.Conflict("Job can no longer be cancelled.")
}

func (store *memoryJobStore) RecomputePositions(_ context.Context) (int64, error) {
	store.mu.Lock()
	defer store.mu.Unlock()

	queued := store.queuedByAgeLocked()
	for index, entry := range queued {
		entry.Position = index + 1
	}
	return int64(len(queued)), nil
}

func (store *memoryJobStore) Get(_ context.Context, jobID string) (*job.Job, error) {
	store.mu.Lock()
	defer store.mu.Unlock()

	target, ok := store.jobs[jobID]
	if !ok {
		return nil, apperr.NotFound("Job")
	}
	found := cloneJob(target)
	if found.Status == job.StatusQueued {
		live := 1
		for _, other := range store.jobs {
			if other.Status == job.StatusQueued && other.CreatedAt.Before(found.CreatedAt) {
				live++
			}
		}
		found.Position = live
	}
	return found, nil
}

func (store *memoryJobStore) SweepTerminal(_ context.Context, olderThan time.Time) (int64, error) {
	store.mu.Lock()
	defer store.mu.Unlock()

	var removed int64
	for id, entry := range store.jobs {
		if entry.Terminal() && entry.CompletedAt != nil && entry.CompletedAt.Before(olderThan) {
			delete(store.jobs, id)
			removed++
		}
	}
	return removed, nil
}

func (store *memoryJobStore) ListIDs(_ context.Context) ([]string, error) {
	store.mu.Lock()
	defer store.mu.Unlock()

	ids := make([]string, 0, len(store.jobs))
	for id := range store.jobs {
		ids = append(ids, id)
	}
	return ids, nil
}

func (store *memoryJobStore) FailInterrupted(_ context.Context, errorKind, errorMessage string) (int64, error) {
	store.mu.Lock()
	defer store.mu.Unlock()

	var recovered int64
	now := time.Now()
	for _, entry := range store.jobs {
		if entry.Status == job.StatusProcessing {
			entry.Status = job.StatusFailed
			entry.ErrorKind = errorKind
			entry.ErrorMessage = errorMessage
			entry.CompletedAt = &now
			recovered++
		}
	}
	return recovered, nil
}

func (store *memoryJobStore) countQueuedLocked() int {
	count := 0
	for _, entry := range store.jobs {
		if entry.Status == job.StatusQueued {
			count++
		}
	}
	return count
}

func (store *memoryJobStore) oldestQueuedLocked() *job.Job {
	queued := store.queuedByAgeLocked()
	if len(queued) == 0 {
		return nil
	}
	return queued[0]
}

func (store *memoryJobStore) queuedByAgeLocked() []*job.Job {
	var queued []*job.Job
	for _, entry := range store.jobs {
		if entry.Status == job.StatusQueued {
			queued = append(queued, entry)
		}
	}
	sort.Slice(queued, func(left, right int) bool {
		return queued[left].CreatedAt.Before(queued[right].CreatedAt)
	})
	return queued
}

func cloneJob(source *job.Job) *job.Job {
	copied := *source
	if source.StartedAt != nil {
		started := *source.StartedAt
		copied.StartedAt = &started
	}
	if source.CompletedAt != nil {
		completed := *source.CompletedAt
		copied.CompletedAt = &completed
	}
	copied.Result = append([]byte(nil), source.Result...)
	return &copied
}

// memoryPayloadStore fakes the payload slice of submission.
type memoryPayloadStore struct {
	mu       sync.Mutex
	texts    map[string]string
	failWith error
}

func newMemoryPayloadStore() *memoryPayloadStore {
	return &memoryPayloadStore{texts: make(map[string]string)}
}

func (store *memoryPayloadStore) Put(_ context.Context, principalID, text string) (*payload.Payload, error) {
	store.mu.Lock()
	defer store.mu.Unlock()

	if store.failWith != nil {
		return nil, store.failWith
	}
	ref := fmt.Sprintf("payload-%d", len(store.texts)+1)
	store.texts[ref] = text
	return &payload.Payload{
		Ref:         ref,
		PrincipalID: principalID,
		ByteSize:    len(text),
		CreatedAt:   time.Now(),
	}, nil
}

// # Fixtures

type jobFixture struct {
	service  *job.Service
	store    *memoryJobStore
	payloads *memoryPayloadStore
}

func newJobFixture(t *testing.T) *jobFixture {
	t.Helper()

	store := newMemoryJobStore()
	payloads := newMemoryPayloadStore()
	collector := metrics.NewWithRegisterer(prometheus.NewRegistry())
	service := job.NewService(store, payloads, collector, slog.Default())

	return &jobFixture{service: service, store: store, payloads: payloads}
}

func drainWake(service *job.Service) bool {
	select {
	case <-service.WakeSignal():
		return true
	default:
		return false
	}
}

// # Tests

/*
TestService_Submit_AssignsPositionsInOrder verifies that submissions queue
behind each other with the position-derived wait estimate, and that each
submission leaves a wake signal pending.
*/
func TestService_Submit_AssignsPositionsInOrder(t *testing.T) {
	fixture := newJobFixture(t)
	ctx := context.Background()

	first, err := fixture.service.Submit(ctx, "principal-1", "resume one")
	require.NoError(t, err)
	second, err := fixture.service.Submit(ctx, "principal-2", "resume two")
	require.NoError(t, err)
	third, err := fixture.service.Submit(ctx, "principal-1", "resume three")
	require.NoError(t, err)

	assert.Equal(t, 1, first.Position)
	assert.Equal(t, 2, second.Position)
	assert.Equal(t, 3, third.Position)
	assert.Equal(t, 120, first.EstimatedWaitSeconds)
	assert.Equal(t, 240, second.EstimatedWaitSeconds)
	assert.Equal(t, 360, third.EstimatedWaitSeconds)
	assert.Equal(t, job.StatusQueued, first.Status)
	assert.NotEmpty(t, first.PayloadRef)

	assert.True(t, drainWake(fixture.service), "expected a pending wake signal")
	assert.False(t, drainWake(fixture.service), "wake signals should coalesce")
}

/*
TestService_Submit_PropagatesPayloadRejection verifies that an oversized
payload rejection surfaces unchanged and enqueues nothing.
*/
func TestService_Submit_PropagatesPayloadRejection(t *testing.T) {
	fixture := newJobFixture(t)
	fixture.payloads.failWith = apperr.TooLarge("Document exceeds the 65536 byte limit.")

	_, err := fixture.service.Submit(context.Background(), "principal-1", "huge")
	require.Error(t, err)
	assert.Equal(t, "PAYLOAD_TOO_LARGE", apperr.As(err).Code)
	assert.Empty(t, fixture.store.jobs)
}

/*
TestService_Get_ScopedToOwner verifies that a job reads as NOT_FOUND for
anyone but its owner.
*/
func TestService_Get_ScopedToOwner(t *testing.T) {
	fixture := newJobFixture(t)
	ctx := context.Background()

	submitted, err := fixture.service.Submit(ctx, "principal-1", "resume")
	require.NoError(t, err)

	t.Run("owner_sees_job", func(t *testing.T) {
		found, err := fixture.service.Get(ctx, submitted.ID, "principal-1")
		require.NoError(t, err)
		assert.Equal(t, submitted.ID, found.ID)
	})

	t.Run("stranger_sees_not_found", func(t *testing.T) {
		_, err := fixture.service.Get(ctx, submitted.ID, "principal-2")
		require.Error(t, err)
		assert.Equal(t, "NOT_FOUND", apperr.As(err).Code)
	})

	t.Run("unknown_job", func(t *testing.T) {
		_, err := fixture.service.Get(ctx, uuidv7.New(), "principal-1")
		require.Error(t, err)
		assert.Equal(t, "NOT_FOUND", apperr.As(err).Code)
	})
}

/*
TestService_Get_RecomputesQueuedPosition verifies that queued positions
shrink as earlier jobs leave the queue, without waiting for a recompute
pass.
*/
func TestService_Get_RecomputesQueuedPosition(t *testing.T) {
	fixture := newJobFixture(t)
	ctx := context.Background()

	first, err := fixture.service.Submit(ctx, "principal-1", "resume one")
	require.NoError(t, err)
	second, err := fixture.service.Submit(ctx, "principal-1", "resume two")
	require.NoError(t, err)

	claimed, err := fixture.service.ClaimNext(ctx)
	require.NoError(t, err)
	require.Equal(t, first.ID, claimed.ID)

	found, err := fixture.service.Get(ctx, second.ID, "principal-1")
	require.NoError(t, err)
	assert.Equal(t, 1, found.Position, "head claim should promote the next job")
}

/*
TestService_Cancel covers the cancellation outcomes: queued jobs cancel and
the queue repacks, claimed or finished jobs conflict, and foreign jobs stay
invisible.
*/
func TestService_Cancel(t *testing.T) {
	fixture := newJobFixture(t)
	ctx := context.Background()

	first, err := fixture.service.Submit(ctx, "principal-1", "resume one")
	require.NoError(t, err)
	second, err := fixture.service.Submit(ctx, "principal-1", "resume two")
	require.NoError(t, err)

	t.Run("queued_job_cancels", func(t *testing.T) {
		require.NoError(t, fixture.service.Cancel(ctx, first.ID, "principal-1"))

		cancelled, err := fixture.service.Get(ctx, first.ID, "principal-1")
		require.NoError(t, err)
		assert.Equal(t, job.StatusCancelled, cancelled.Status)
		require.NotNil(t, cancelled.CompletedAt)

		promoted, err := fixture.service.Get(ctx, second.ID, "principal-1")
		require.NoError(t, err)
		assert.Equal(t, 1, promoted.Position)
	})

	t.Run("cancelled_job_conflicts", func(t *testing.T) {
		err := fixture.service.Cancel(ctx, first.ID, "principal-1")
		require.Error(t, err)
		assert.Equal(t, "CONFLICT", apperr.As(err).Code)
	})

	t.Run("processing_job_conflicts", func(t *testing.T) {
		claimed, err := fixture.service.ClaimNext(ctx)
		require.NoError(t, err)
		require.Equal(t, second.ID, claimed.ID)

		err = fixture.service.Cancel(ctx, second.ID, "principal-1")
		require.Error(t, err)
		assert.Equal(t, "CONFLICT", apperr.As(err).Code)
	})

	t.Run("foreign_job_not_found", func(t *testing.T) {
		err := fixture.service.Cancel(ctx, first.ID, "principal-2")
		require.Error(t, err)
		assert.Equal(t, "NOT_FOUND", apperr.As(err).Code)
	})
}

/*
TestService_ClaimNext_FIFO verifies claims respect insertion order, stamp
the processing fields, and report an empty queue as nil.
*/
func TestService_ClaimNext_FIFO(t *testing.T) {
	fixture := newJobFixture(t)
	ctx := context.Background()

	first, err := fixture.service.Submit(ctx, "principal-1", "resume one")
	require.NoError(t, err)
	second, err := fixture.service.Submit(ctx, "principal-2", "resume two")
	require.NoError(t, err)

	claimed, err := fixture.service.ClaimNext(ctx)
	require.NoError(t, err)
	require.NotNil(t, claimed)
	assert.Equal(t, first.ID, claimed.ID)
	assert.Equal(t, job.StatusProcessing, claimed.Status)
	assert.Equal(t, 0, claimed.Position)
	require.NotNil(t, claimed.StartedAt)

	claimed, err = fixture.service.ClaimNext(ctx)
	require.NoError(t, err)
	require.NotNil(t, claimed)
	assert.Equal(t, second.ID, claimed.ID)

	claimed, err = fixture.service.ClaimNext(ctx)
	require.NoError(t, err)
	assert.Nil(t, claimed, "empty queue should claim nothing")
}

/*
TestService_Completion verifies the terminal transitions and their
processing-state guard.
*/
func TestService_Completion(t *testing.T) {
	fixture := newJobFixture(t)
	ctx := context.Background()

	submitted, err := fixture.service.Submit(ctx, "principal-1", "resume")
	require.NoError(t, err)
	_, err = fixture.service.ClaimNext(ctx)
	require.NoError(t, err)

	t.Run("success_stores_result", func(t *testing.T) {
		result := []byte(`{"personalInfo":{"name":"Jane"}}`)
		require.NoError(t, fixture.service.CompleteSuccess(ctx, submitted.ID, result, "jane-0198ab", 3.5))

		done, err := fixture.service.Get(ctx, submitted.ID, "principal-1")
		require.NoError(t, err)
		assert.Equal(t, job.StatusCompleted, done.Status)
		assert.JSONEq(t, string(result), string(done.Result))
		assert.Equal(t, "jane-0198ab", done.BundleName)
		assert.InDelta(t, 3.5, done.ProcessingSeconds, 0.001)
		require.NotNil(t, done.CompletedAt)
	})

	t.Run("repeat_completion_rejected", func(t *testing.T) {
		err := fixture.service.CompleteSuccess(ctx, submitted.ID, []byte(`{}`), "", 1)
		assert.ErrorIs(t, err, job.ErrNotProcessing)

		err = fixture.service.CompleteFailure(ctx, submitted.ID, "unknown", "Processing failed. Please try again.", 1)
		assert.ErrorIs(t, err, job.ErrNotProcessing)
	})
}

/*
TestService_FailInterrupted verifies crash recovery fails forward any job
stuck in processing.
*/
func TestService_FailInterrupted(t *testing.T) {
	fixture := newJobFixture(t)
	ctx := context.Background()

	stuck, err := fixture.service.Submit(ctx, "principal-1", "resume")
	require.NoError(t, err)
	_, err = fixture.service.ClaimNext(ctx)
	require.NoError(t, err)

	recovered, err := fixture.service.FailInterrupted(ctx, "unknown", "Interrupted; please retry.")
	require.NoError(t, err)
	assert.Equal(t, int64(1), recovered)

	failed, err := fixture.service.Get(ctx, stuck.ID, "principal-1")
	require.NoError(t, err)
	assert.Equal(t, job.StatusFailed, failed.Status)
	assert.Equal(t, "unknown", failed.ErrorKind)
	assert.Equal(t, "Interrupted; please retry.", failed.ErrorMessage)

	recovered, err = fixture.service.FailInterrupted(ctx, "unknown", "Interrupted; please retry.")
	require.NoError(t, err)
	assert.Zero(t, recovered, "recovery is idempotent")
}

/*
TestService_SweepTerminal verifies only terminal jobs past the cutoff are
removed.
*/
func TestService_SweepTerminal(t *testing.T) {
	fixture := newJobFixture(t)
	ctx := context.Background()

	old, err := fixture.service.Submit(ctx, "principal-1", "old resume")
	require.NoError(t, err)
	_, err = fixture.service.ClaimNext(ctx)
	require.NoError(t, err)
	require.NoError(t, fixture.service.CompleteSuccess(ctx, old.ID, []byte(`{}`), "", 1))

	fresh, err := fixture.service.Submit(ctx, "principal-1", "fresh resume")
	require.NoError(t, err)

	removed, err := fixture.service.SweepTerminal(ctx, time.Now().Add(time.Minute))
	require.NoError(t, err)
	assert.Equal(t, int64(1), removed)

	_, err = fixture.service.Get(ctx, old.ID, "principal-1")
	require.Error(t, err)

	kept, err := fixture.service.Get(ctx, fresh.ID, "principal-1")
	require.NoError(t, err)
	assert.Equal(t, job.StatusQueued, kept.Status)
}
