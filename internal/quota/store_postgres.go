// Copyright (c) 2026 Resumora. All rights reserved.
// Author: engineering@resumora.app

// PostgreSQL implementation of the quota ledger.
//
// # Concurrency
//
// Every counter write is a single INSERT ... ON CONFLICT DO UPDATE statement,
// so concurrent charges serialize inside the database and always sum. No
// read-modify-write cycles exist at this layer.
package quota

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresLedger implements the Ledger interface using pgx.
type PostgresLedger struct {
	pool *pgxpool.Pool
}

// NewLedger creates a new PostgreSQL implementation of the Ledger.
func NewLedger(pool *pgxpool.Pool) *PostgresLedger {
	return &PostgresLedger{pool: pool}
}

/*
GetDaily retrieves the counter for one (principal, api-kind, day).

Parameters:
  - context: context.Context
  - principalID: string
  - apiKind: string
  - day: time.Time

Returns:
  - *DailyCounter: Zero-valued counter when no row exists
  - error: Execution errors
*/
func (ledger *PostgresLedger) GetDaily(context context.Context, principalID, apiKind string, day time.Time) (*DailyCounter, error) {
	const query = `
		SELECT callcount, tokencount, lasttouched
		FROM quota_daily
		WHERE principalid = $1 AND apikind = $2 AND day = $3`

	counter := &DailyCounter{
		PrincipalID: principalID,
		APIKind:     apiKind,
		Day:         day,
	}
	err := ledger.pool.QueryRow(context, query, principalID, apiKind, day).Scan(
		&counter.Requests,
		&counter.Tokens,
		&counter.LastTouched,
	)

	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return counter, nil
		}
		return nil, fmt.Errorf("postgres_quota_ledger_get_daily_failed: %w", err)
	}

	return counter, nil
}

/*
SumTokens totals token usage across a half-open day range.

Parameters:
  - context: context.Context
  - principalID: string
  - apiKind: string
  - from: time.Time (inclusive)
  - to: time.Time (exclusive)

Returns:
  - int64: Token sum
  - error: Execution errors
*/
func (ledger *PostgresLedger) SumTokens(context context.Context, principalID, apiKind string, from, to time.Time) (int64, error) {
	const query = `
		SELECT COALESCE(SUM(tokencount), 0)
		FROM quota_daily
		WHERE principalid = $1 AND apikind = $2 AND day >= $3 AND day < $4`

	var total int64
	if err := ledger.pool.QueryRow(context, query, principalID, apiKind, from, to).Scan(&total); err != nil {
		return 0, fmt.Errorf("postgres_quota_ledger_sum_tokens_failed: %w", err)
	}
	return total, nil
}

/*
Record charges requests and tokens against a daily counter.

Description: Single-statement upsert; concurrent charges for the same key
always produce the sum.

Parameters:
  - context: context.Context
  - principalID: string
  - apiKind: string
  - day: time.Time
  - requests: int64
  - tokens: int64

Returns:
  - error: Execution errors
*/
func (ledger *PostgresLedger) Record(context context.Context, principalID, apiKind string, day time.Time, requests, tokens int64) error {
	const query = `
		INSERT INTO quota_daily (principalid, apikind, day, callcount, tokencount, lasttouched)
		VALUES ($1, $2, $3, $4, $5, NOW())
		ON CONFLICT (principalid, apikind, day) DO UPDATE SET
			callcount   = quota_daily.callcount + EXCLUDED.callcount,
			tokencount  = quota_daily.tokencount + EXCLUDED.tokencount,
			lasttouched = NOW()`

	if _, err := ledger.pool.Exec(context, query, principalID, apiKind, day, requests, tokens); err != nil {
		return fmt.Errorf("postgres_quota_ledger_record_failed: %w", err)
	}
	return nil
}

/*
IncrementWindow bumps one fixed-window counter and returns the new value.

Parameters:
  - context: context.Context
  - principalKey: string
  - endpoint: string
  - windowStart: time.Time

Returns:
  - int64: Count after the increment
  - error: Execution errors
*/
func (ledger *PostgresLedger) IncrementWindow(context context.Context, principalKey, endpoint string, windowStart time.Time) (int64, error) {
	const query = `
		INSERT INTO quota_window (principalid, endpoint, windowstart, count)
		VALUES ($1, $2, $3, 1)
		ON CONFLICT (principalid, endpoint, windowstart) DO UPDATE SET
			count = quota_window.count + 1
		RETURNING count`

	var count int64
	if err := ledger.pool.QueryRow(context, query, principalKey, endpoint, windowStart).Scan(&count); err != nil {
		return 0, fmt.Errorf("postgres_quota_ledger_increment_window_failed: %w", err)
	}
	return count, nil
}

/*
PruneWindows deletes window rows that started before the cutoff.

Parameters:
  - context: context.Context
  - olderThan: time.Time

Returns:
  - int64: Rows removed
  - error: Execution errors
*/
func (ledger *PostgresLedger) PruneWindows(context context.Context, olderThan time.Time) (int64, error) {
	const query = "DELETE FROM quota_window WHERE windowstart < $1"
	tag, err := ledger.pool.Exec(context, query, olderThan)
	if err != nil {
		return 0, fmt.Errorf("postgres_quota_ledger_prune_windows_failed: %w", err)
	}
	return tag.RowsAffected(), nil
}

/*
PruneDaily deletes daily rows for days before the cutoff.

Parameters:
  - context: context.Context
  - olderThan: time.Time

Returns:
  - int64: Rows removed
  - error: Execution errors
*/
func (ledger *PostgresLedger) PruneDaily(context context.Context, olderThan time.Time) (int64, error) {
	const query = "DELETE FROM quota_daily WHERE day < $1"
	tag, err := ledger.pool.Exec(context, query, olderThan)
	if err != nil {
		return 0, fmt.Errorf("postgres_quota_ledger_prune_daily_failed: %w", err)
	}
	return tag.RowsAffected(), nil
}

/*
PurgePrincipal removes every counter owned by one principal.

Parameters:
  - context: context.Context
  - principalID: string

Returns:
  - int64: Rows removed across both tables
  - error: Execution errors
*/
func (ledger *PostgresLedger) PurgePrincipal(context context.Context, principalID string) (int64, error) {
	const dailyQuery = "DELETE FROM quota_daily WHERE principalid = $1"
	dailyTag, err := ledger.pool.Exec(context, dailyQuery, principalID)
	if err != nil {
		return 0, fmt.Errorf("postgres_quota_ledger_purge_daily_failed: %w", err)
	}

	const windowQuery = "DELETE FROM quota_window WHERE principalid = $1"
	windowTag, err := ledger.pool.Exec(context, windowQuery, principalID)
	if err != nil {
		return dailyTag.RowsAffected(), fmt.Errorf("postgres_quota_ledger_purge_window_failed: %w", err)
	}

	return dailyTag.RowsAffected() + windowTag.RowsAffected(), nil
}
