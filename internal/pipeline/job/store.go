// Copyright (c) 2026 Resumora. All rights reserved.
// Author: engineering@resumora.app

package job

import (
	"context"
	"time"
)

// # Store Interface

/*
Store is the durable queue contract.

Enqueue, ClaimNext, and RecomputePositions serialize against each other so
positions and claim order stay coherent under concurrent writers.
*/
type Store interface {
	/*
	   Enqueue inserts a new queued job for the principal.

	   Description:
	     Position is assigned as (number of queued jobs) + 1 and the wait
	     estimate as max(60, 120 * position) seconds, both computed inside
	     the same transaction as the insert.

	   Parameters:
	     - context: Context for cancellation.
	     - principalID: Owning principal.
	     - payloadRef: Reference to the stored resume text.

	   Returns:
	     - *Job: The inserted job with position and wait estimate filled.
	     - error: Database errors.
	*/
	Enqueue(context context.Context, principalID, payloadRef string) (*Job, error)

	/*
	   PeekNext returns the oldest queued job without claiming it.

	   Returns:
	     - *Job: The head of the queue, or nil when the queue is empty.
	     - error: Database errors.
	*/
	PeekNext(context context.Context) (*Job, error)

	/*
	   ClaimNext atomically transitions the oldest queued job to processing.

	   Description:
	     The claim sets position to 0 and stamps started-at. Concurrent
	     claimers can never take the same job; a job another claimer holds
	     is skipped rather than waited on.

	   Returns:
	     - *Job: The claimed job, or nil when no queued job exists.
	     - error: Database errors.
	*/
	ClaimNext(context context.Context) (*Job, error)

	/*
	   CompleteSuccess finishes a processing job with its extraction result.

	   Description:
	     Guarded by the current status: a job that is no longer processing
	     (swept, failed by recovery) is left untouched and an error is
	     returned so the caller can log the lost transition.

	   Parameters:
	     - context: Context for cancellation.
	     - jobID: Job to finish.
	     - result: Extraction record JSON.
	     - bundleName: Published bundle directory, empty when publishing
	       failed.
	     - processingSeconds: Claim-to-finish wall time.

	   Returns:
	     - error: ErrNotProcessing when the guard rejects, database errors.
	*/
	CompleteSuccess(context context.Context, jobID string, result []byte, bundleName string, processingSeconds float64) error

	/*
	   CompleteFailure finishes a processing job with a classified error.

	   Parameters:
	     - context: Context for cancellation.
	     - jobID: Job to finish.
	     - errorKind: Failure classification constant.
	     - errorMessage: User-facing message. Raw provider errors stay out.
	     - processingSeconds: Claim-to-finish wall time.

	   Returns:
	     - error: ErrNotProcessing when the guard rejects, database errors.
	*/
	CompleteFailure(context context.Context, jobID, errorKind, errorMessage string, processingSeconds float64) error

	/*
	   Cancel transitions a queued job to cancelled on behalf of its owner.

	   Description:
	     Only queued jobs owned by the principal are cancellable. When the
	     guarded update matches nothing, a follow-up read distinguishes a
	     job that does not exist (or belongs to someone else) from one that
	     has already left the queue.

	   Returns:
	     - error: Nil on success, NOT_FOUND when invisible to the caller,
	       CONFLICT when the job is past cancelling, database errors.
	*/
	Cancel(context context.Context, jobID, principalID string) error

	/*
	   RecomputePositions rewrites queue positions to 1..N in created-at
	   order. Idempotent; run after any dequeue or cancel.

	   Returns:
	     - int64: Number of jobs currently queued.
	     - error: Database errors.
	*/
	RecomputePositions(context context.Context) (int64, error)

	/*
	   Get fetches a job by ID.

	   Description:
	     For queued jobs the stored position is ignored and recomputed from
	     created-at order, so waiting clients see positions shrink even
	     between recompute passes.

	   Returns:
	     - *Job: The job.
	     - error: NOT_FOUND when absent, database errors.
	*/
	Get(context context.Context, jobID string) (*Job, error)

	/*
	   SweepTerminal deletes terminal jobs finished before the cutoff.

	   Returns:
	     - int64: Number of jobs removed.
	     - error: Database errors.
	*/
	SweepTerminal(context context.Context, olderThan time.Time) (int64, error)

	/*
	   ListIDs returns the IDs of every job in any state.

	   Description:
	     Used by cleanup to decide which published bundles still belong to
	     a known job.

	   Returns:
	     - []string: Job IDs.
	     - error: Database errors.
	*/
	ListIDs(context context.Context) ([]string, error)

	/*
	   FailInterrupted fails every job still marked processing.

	   Description:
	     Run once at startup. A processing row with no live engine is a
	     crashed run; failing it forward lets the owner resubmit instead of
	     blocking the queue head forever.

	   Parameters:
	     - context: Context for cancellation.
	     - errorKind: Classification to stamp on recovered jobs.
	     - errorMessage: User-facing message to stamp on recovered jobs.

	   Returns:
	     - int64: Number of jobs failed forward.
	     - error: Database errors.
	*/
	FailInterrupted(context context.Context, errorKind, errorMessage string) (int64, error)
}
