// Copyright (c) 2026 Resumora. All rights reserved.
// Author: engineering@resumora.app

package job

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/resumora/resumora/internal/pipeline/payload"
	"github.com/resumora/resumora/internal/platform/apperr"
	"github.com/resumora/resumora/internal/platform/metrics"
)

// PayloadStore is the slice of the payload service submission needs.
type PayloadStore interface {
	Put(context context.Context, principalID, text string) (*payload.Payload, error)
}

// # Service

/*
Service coordinates the job queue: submission, owner-scoped reads,
cancellation, and the engine-facing claim and completion operations.

It also owns the wake signal. Submission nudges the engine through a
buffered channel so a fresh job is picked up immediately instead of on the
next poll tick.
*/
type Service struct {
	store    Store
	payloads PayloadStore
	metrics  *metrics.Metrics
	logger   *slog.Logger
	wake     chan struct{}
}

/*
NewService creates the job service.
*/
func NewService(store Store, payloads PayloadStore, collector *metrics.Metrics, logger *slog.Logger) *Service {
	return &Service{
		store:    store,
		payloads: payloads,
		metrics:  collector,
		logger:   logger,
		wake:     make(chan struct{}, 1),
	}
}

/*
Submit stores the resume text and enqueues an extraction job.

Description:
  The payload is written first; if the enqueue then fails, the stored text
  has no job reference and the orphan sweep reclaims it. On success the
  engine is woken.

Parameters:
  - context: Context for cancellation.
  - principalID: Submitting owner.
  - text: Raw resume text.

Returns:
  - *Job: The queued job with position and wait estimate.
  - error: PAYLOAD_TOO_LARGE for oversized text, database errors.
*/
func (service *Service) Submit(context context.Context, principalID, text string) (*Job, error) {
	stored, err := service.payloads.Put(context, principalID, text)
	if err != nil {
		return nil, err
	}

	queued, err := service.store.Enqueue(context, principalID, stored.Ref)
	if err != nil {
		return nil, fmt.Errorf("job_submit_enqueue_failed: %w", err)
	}

	service.metrics.QueueDepth.Set(float64(queued.Position))
	service.Wake()

	service.logger.Info("job enqueued",
		slog.String("job_id", queued.ID),
		slog.Int("position", queued.Position),
		slog.Int("estimated_wait_seconds", queued.EstimatedWaitSeconds))
	return queued, nil
}

/*
Get returns a job visible to the principal.

Description:
  Reads are owner-scoped. A job owned by someone else reads as NOT_FOUND so
  job identifiers leak nothing.
*/
func (service *Service) Get(context context.Context, jobID, principalID string) (*Job, error) {
	found, err := service.store.Get(context, jobID)
	if err != nil {
		return nil, err
	}
	if found.PrincipalID != principalID {
		return nil, apperr.NotFound("Job")
	}
	return found, nil
}

/*
Cancel withdraws a queued job for its owner and repacks the queue.
*/
func (service *Service) Cancel(context context.Context, jobID, principalID string) error {
	if err := service.store.Cancel(context, jobID, principalID); err != nil {
		return err
	}

	service.metrics.JobsTotal.WithLabelValues(StatusCancelled).Inc()
	if _, err := service.RecomputePositions(context); err != nil {
		service.logger.Error("position recompute after cancel failed", slog.Any("error", err))
	}

	service.logger.Info("job cancelled", slog.String("job_id", jobID))
	return nil
}

// # Engine Operations

/*
PeekNext reports the queue head without claiming it, or nil when empty.
*/
func (service *Service) PeekNext(context context.Context) (*Job, error) {
	return service.store.PeekNext(context)
}

/*
ClaimNext atomically takes the oldest queued job for processing.
*/
func (service *Service) ClaimNext(context context.Context) (*Job, error) {
	return service.store.ClaimNext(context)
}

/*
CompleteSuccess finishes a processing job with its extraction record.
*/
func (service *Service) CompleteSuccess(context context.Context, jobID string, result []byte, bundleName string, processingSeconds float64) error {
	if err := service.store.CompleteSuccess(context, jobID, result, bundleName, processingSeconds); err != nil {
		return err
	}
	service.metrics.JobsTotal.WithLabelValues(StatusCompleted).Inc()
	return nil
}

/*
CompleteFailure finishes a processing job with a classified error.
*/
func (service *Service) CompleteFailure(context context.Context, jobID, errorKind, errorMessage string, processingSeconds float64) error {
	if err := service.store.CompleteFailure(context, jobID, errorKind, errorMessage, processingSeconds); err != nil {
		return err
	}
	service.metrics.JobsTotal.WithLabelValues(StatusFailed).Inc()
	return nil
}

/*
RecomputePositions repacks queued positions and refreshes the depth gauge.
*/
func (service *Service) RecomputePositions(context context.Context) (int64, error) {
	depth, err := service.store.RecomputePositions(context)
	if err != nil {
		return 0, err
	}
	service.metrics.QueueDepth.Set(float64(depth))
	return depth, nil
}

/*
FailInterrupted fails forward jobs left processing by a previous run.

Description:
  Called once before the engine starts. Redoing a paid extraction without
  the owner asking is worse than asking them to retry.
*/
func (service *Service) FailInterrupted(context context.Context, errorKind, errorMessage string) (int64, error) {
	recovered, err := service.store.FailInterrupted(context, errorKind, errorMessage)
	if err != nil {
		return 0, err
	}
	if recovered > 0 {
		service.metrics.JobsTotal.WithLabelValues(StatusFailed).Add(float64(recovered))
		service.logger.Warn("interrupted jobs failed forward", slog.Int64("count", recovered))
	}
	return recovered, nil
}

/*
SweepTerminal deletes terminal jobs finished before the cutoff.
*/
func (service *Service) SweepTerminal(context context.Context, olderThan time.Time) (int64, error) {
	return service.store.SweepTerminal(context, olderThan)
}

/*
ListIDs returns every known job ID, for bundle orphan detection.
*/
func (service *Service) ListIDs(context context.Context) ([]string, error) {
	return service.store.ListIDs(context)
}

/*
Wake nudges the engine without blocking. A signal already pending is
enough; extra ones are dropped.
*/
func (service *Service) Wake() {
	select {
	case service.wake <- struct{}{}:
	default:
	}
}

/*
WakeSignal exposes the wake channel for the engine loop.
*/
func (service *Service) WakeSignal() <-chan struct{} {
	return service.wake
}
