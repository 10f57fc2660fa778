// Copyright (c) 2026 Resumora. All rights reserved.
// Author: engineering@resumora.app

package job

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/resumora/resumora/internal/platform/apperr"
	"github.com/resumora/resumora/pkg/uuidv7"
)

// ErrNotProcessing is returned by the completion guards when the target job
// has already left the processing state.
var ErrNotProcessing = errors.New("job_not_processing")

// queueLock names the advisory lock that serializes queue writes.
const queueLock = "jobs_queue"

// # Postgres Implementation

// PostgresStore implements Store backed by PostgreSQL.
type PostgresStore struct {
	pool *pgxpool.Pool
}

/*
NewStore creates a job store on the shared connection pool.
*/
func NewStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

/*
Enqueue inserts a queued job, assigning position and wait estimate inside
one serialized transaction.
*/
func (store *PostgresStore) Enqueue(context context.Context, principalID, payloadRef string) (*Job, error) {
	transaction, err := store.pool.Begin(context)
	if err != nil {
		return nil, fmt.Errorf("postgres_job_enqueue_begin_failed: %w", err)
	}
	defer transaction.Rollback(context)

	const lockQuery = `SELECT pg_advisory_xact_lock(hashtext($1))`
	if _, err := transaction.Exec(context, lockQuery, queueLock); err != nil {
		return nil, fmt.Errorf("postgres_job_enqueue_lock_failed: %w", err)
	}

	const countQuery = `SELECT COUNT(*) FROM jobs WHERE status = 'queued'`
	var queued int
	if err := transaction.QueryRow(context, countQuery).Scan(&queued); err != nil {
		return nil, fmt.Errorf("postgres_job_enqueue_count_failed: %w", err)
	}

	position := queued + 1
	waitSeconds := 120 * position
	if waitSeconds < 60 {
		waitSeconds = 60
	}

	inserted := &Job{
		ID:                   uuidv7.New(),
		PrincipalID:          principalID,
		PayloadRef:           payloadRef,
		Status:               StatusQueued,
		Position:             position,
		EstimatedWaitSeconds: waitSeconds,
	}

	const insertQuery = `
		INSERT INTO jobs (id, principalid, payloadref, status, position, estimatedwaitseconds, createdat)
		VALUES ($1, $2, $3, $4, $5, $6, NOW())
		RETURNING createdat`
	err = transaction.QueryRow(context, insertQuery,
		inserted.ID,
		inserted.PrincipalID,
		inserted.PayloadRef,
		inserted.Status,
		inserted.Position,
		inserted.EstimatedWaitSeconds,
	).Scan(&inserted.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("postgres_job_enqueue_insert_failed: %w", err)
	}

	if err := transaction.Commit(context); err != nil {
		return nil, fmt.Errorf("postgres_job_enqueue_commit_failed: %w", err)
	}
	return inserted, nil
}

/*
PeekNext returns the queue head without claiming it, or nil when empty.
*/
func (store *PostgresStore) PeekNext(context context.Context) (*Job, error) {
	const query = `
		SELECT id, principalid, payloadref, status, position, estimatedwaitseconds,
		       createdat, startedat, completedat, result, COALESCE(bundlename, ''),
		       COALESCE(errorkind, ''), COALESCE(errormessage, ''), COALESCE(processingseconds, 0)
		FROM jobs
		WHERE status = 'queued'
		ORDER BY createdat ASC
		LIMIT 1`

	head, err := scanJob(store.pool.QueryRow(context, query))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("postgres_job_peek_failed: %w", err)
	}
	return head, nil
}

/*
ClaimNext atomically moves the oldest queued job to processing.

Description:
  The subselect locks the head row with SKIP LOCKED, so two claimers can
  never take the same job. Returns nil without error when the queue is
  empty.
*/
func (store *PostgresStore) ClaimNext(context context.Context) (*Job, error) {
	transaction, err := store.pool.Begin(context)
	if err != nil {
		return nil, fmt.Errorf("postgres_job_claim_begin_failed: %w", err)
	}
	defer transaction.Rollback(context)

	const lockQuery = `SELECT pg_advisory_xact_lock(hashtext($1))`
	if _, err := transaction.Exec(context, lockQuery, queueLock); err != nil {
		return nil, fmt.Errorf("postgres_job_claim_lock_failed: %w", err)
	}

	const query = `
		UPDATE jobs
		SET status = 'processing', position = 0, startedat = NOW()
		WHERE id = (
		    SELECT id FROM jobs
		    WHERE status = 'queued'
		    ORDER BY createdat ASC
		    LIMIT 1
		    FOR UPDATE SKIP LOCKED
		)
		AND status = 'queued'
		RETURNING id, principalid, payloadref, status, position, estimatedwaitseconds,
		          createdat, startedat, completedat, result, COALESCE(bundlename, ''),
		          COALESCE(errorkind, ''), COALESCE(errormessage, ''), COALESCE(processingseconds, 0)`

	claimed, err := scanJob(transaction.QueryRow(context, query))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("postgres_job_claim_failed: %w", err)
	}

	if err := transaction.Commit(context); err != nil {
		return nil, fmt.Errorf("postgres_job_claim_commit_failed: %w", err)
	}
	return claimed, nil
}

/*
CompleteSuccess stores the extraction result on a processing job.
*/
func (store *PostgresStore) CompleteSuccess(context context.Context, jobID string, result []byte, bundleName string, processingSeconds float64) error {
	const query = `
		UPDATE jobs
		SET status = 'completed', completedat = NOW(), result = $2, bundlename = NULLIF($3, ''), processingseconds = $4
		WHERE id = $1 AND status = 'processing'`

	tag, err := store.pool.Exec(context, query, jobID, result, bundleName, processingSeconds)
	if err != nil {
		return fmt.Errorf("postgres_job_complete_failed: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotProcessing
	}
	return nil
}

/*
CompleteFailure stores a classified failure on a processing job.
*/
func (store *PostgresStore) CompleteFailure(context context.Context, jobID, errorKind, errorMessage string, processingSeconds float64) error {
	const query = `
		UPDATE jobs
		SET status = 'failed', completedat = NOW(), errorkind = $2, errormessage = $3, processingseconds = $4
		WHERE id = $1 AND status = 'processing'`

	tag, err := store.pool.Exec(context, query, jobID, errorKind, errorMessage, processingSeconds)
	if err != nil {
		return fmt.Errorf("postgres_job_fail_failed: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotProcessing
	}
	return nil
}

/*
Cancel marks a queued job cancelled for its owner.

Description:
  When the guarded update matches nothing, a follow-up read decides whether
  the job is invisible to the caller (NOT_FOUND) or has already started or
  finished (CONFLICT).
*/
func (store *PostgresStore) Cancel(context context.Context, jobID, principalID string) error {
	const query = `
		UPDATE jobs
		SET status = 'cancelled', position = 0, completedat = NOW()
		WHERE id = $1 AND principalid = $2 AND status = 'queued'`

	tag, err := store.pool.Exec(context, query, jobID, principalID)
	if err != nil {
		return fmt.Errorf("postgres_job_cancel_failed: %w", err)
	}
	if tag.RowsAffected() > 0 {
		return nil
	}

	const probeQuery = `SELECT status FROM jobs WHERE id = $1 AND principalid = $2`
	var status string
	err = store.pool.QueryRow(context, probeQuery, jobID, principalID).Scan(&status)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return apperr.NotFound("Job")
		}
		return fmt.Errorf("postgres_job_cancel_probe_failed: %w", err)
	}
	return apperr.Conflict("Job can no longer be cancelled.")
}

/*
RecomputePositions rewrites queued positions to 1..N in created-at order
and reports the resulting queue length.
*/
func (store *PostgresStore) RecomputePositions(context context.Context) (int64, error) {
	transaction, err := store.pool.Begin(context)
	if err != nil {
		return 0, fmt.Errorf("postgres_job_recompute_begin_failed: %w", err)
	}
	defer transaction.Rollback(context)

	const lockQuery = `SELECT pg_advisory_xact_lock(hashtext($1))`
	if _, err := transaction.Exec(context, lockQuery, queueLock); err != nil {
		return 0, fmt.Errorf("postgres_job_recompute_lock_failed: %w", err)
	}

	const query = `
		UPDATE jobs
		SET position = ranked.newposition
		FROM (
		    SELECT id, ROW_NUMBER() OVER (ORDER BY createdat ASC) AS newposition
		    FROM jobs
		    WHERE status = 'queued'
		) AS ranked
		WHERE jobs.id = ranked.id`
	tag, err := transaction.Exec(context, query)
	if err != nil {
		return 0, fmt.Errorf("postgres_job_recompute_failed: %w", err)
	}

	if err := transaction.Commit(context); err != nil {
		return 0, fmt.Errorf("postgres_job_recompute_commit_failed: %w", err)
	}
	return tag.RowsAffected(), nil
}

/*
Get fetches a job, recomputing the live position for queued rows.
*/
func (store *PostgresStore) Get(context context.Context, jobID string) (*Job, error) {
	const query = `
		SELECT id, principalid, payloadref, status,
		       CASE WHEN status = 'queued'
		            THEN 1 + (SELECT COUNT(*) FROM jobs AS earlier
		                      WHERE earlier.status = 'queued' AND earlier.createdat < jobs.createdat)
		            ELSE position
		       END,
		       estimatedwaitseconds, createdat, startedat, completedat, result,
		       COALESCE(bundlename, ''),
		       COALESCE(errorkind, ''), COALESCE(errormessage, ''), COALESCE(processingseconds, 0)
		FROM jobs
		WHERE id = $1`

	found, err := scanJob(store.pool.QueryRow(context, query, jobID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperr.NotFound("Job")
		}
		return nil, fmt.Errorf("postgres_job_get_failed: %w", err)
	}
	return found, nil
}

/*
SweepTerminal deletes completed, failed, and cancelled jobs finished before
the cutoff.
*/
func (store *PostgresStore) SweepTerminal(context context.Context, olderThan time.Time) (int64, error) {
	const query = `
		DELETE FROM jobs
		WHERE status IN ('completed', 'failed', 'cancelled') AND completedat < $1`

	tag, err := store.pool.Exec(context, query, olderThan)
	if err != nil {
		return 0, fmt.Errorf("postgres_job_sweep_failed: %w", err)
	}
	return tag.RowsAffected(), nil
}

/*
ListIDs returns every job ID regardless of state.
*/
func (store *PostgresStore) ListIDs(context context.Context) ([]string, error) {
	const query = `SELECT id FROM jobs`

	rows, err := store.pool.Query(context, query)
	if err != nil {
		return nil, fmt.Errorf("postgres_job_list_failed: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("postgres_job_list_scan_failed: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres_job_list_failed: %w", err)
	}
	return ids, nil
}

/*
FailInterrupted fails forward every job left in processing by a dead run.
*/
func (store *PostgresStore) FailInterrupted(context context.Context, errorKind, errorMessage string) (int64, error) {
	const query = `
		UPDATE jobs
		SET status = 'failed', errorkind = $1, errormessage = $2, completedat = NOW(),
		    processingseconds = COALESCE(EXTRACT(EPOCH FROM (NOW() - startedat)), 0)
		WHERE status = 'processing'`

	tag, err := store.pool.Exec(context, query, errorKind, errorMessage)
	if err != nil {
		return 0, fmt.Errorf("postgres_job_fail_interrupted_failed: %w", err)
	}
	return tag.RowsAffected(), nil
}

// scanJob maps one row onto a Job. Column order matches the SELECT lists
// above.
func scanJob(row pgx.Row) (*Job, error) {
	var scanned Job
	err := row.Scan(
		&scanned.ID,
		&scanned.PrincipalID,
		&scanned.PayloadRef,
		&scanned.Status,
		&scanned.Position,
		&scanned.EstimatedWaitSeconds,
		&scanned.CreatedAt,
		&scanned.StartedAt,
		&scanned.CompletedAt,
		&scanned.Result,
		&scanned.BundleName,
		&scanned.ErrorKind,
		&scanned.ErrorMessage,
		&scanned.ProcessingSeconds,
	)
	if err != nil {
		return nil, err
	}
	return &scanned, nil
}
