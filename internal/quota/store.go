// Copyright (c) 2026 Resumora. All rights reserved.
// Author: engineering@resumora.app

package quota

import (
	"context"
	"time"
)

// # Ledger Data Access

// Ledger defines the data access contract for usage counters.
//
// Every write is an atomic upsert: two concurrent charges for the same key
// must produce the sum, never a lost update.
type Ledger interface {

	/*
		GetDaily returns the counter for one (principal, api-kind, day).

		Description: A missing row is not an error; a zero-valued counter
		is returned so callers can treat "never used" and "used zero" alike.

		Parameters:
		  - context: context.Context
		  - principalID: string
		  - apiKind: string
		  - day: time.Time (UTC calendar date)

		Returns:
		  - *DailyCounter: Current counts, zero-valued when absent
		  - error: Database retrieval failures
	*/
	GetDaily(context context.Context, principalID, apiKind string, day time.Time) (*DailyCounter, error)

	/*
		SumTokens totals token usage across a half-open day range.

		Parameters:
		  - context: context.Context
		  - principalID: string
		  - apiKind: string
		  - from: time.Time (inclusive)
		  - to: time.Time (exclusive)

		Returns:
		  - int64: Token sum, zero when no rows match
		  - error: Database retrieval failures
	*/
	SumTokens(context context.Context, principalID, apiKind string, from, to time.Time) (int64, error)

	/*
		Record charges requests and tokens against a daily counter.

		Description: Upsert. The first charge of a day inserts the row;
		later charges increment both counters and refresh last-touched.

		Parameters:
		  - context: context.Context
		  - principalID: string
		  - apiKind: string
		  - day: time.Time (UTC calendar date)
		  - requests: int64
		  - tokens: int64

		Returns:
		  - error: Persistence failures
	*/
	Record(context context.Context, principalID, apiKind string, day time.Time, requests, tokens int64) error

	/*
		IncrementWindow bumps the counter for one fixed window and returns
		the incremented value.

		Description: Upsert returning the post-increment count, so the
		caller can compare against the window maximum without a second
		round trip.

		Parameters:
		  - context: context.Context
		  - principalKey: string (principal ID, or an address key for
		    anonymous traffic)
		  - endpoint: string (endpoint class name)
		  - windowStart: time.Time

		Returns:
		  - int64: Count after the increment
		  - error: Persistence failures
	*/
	IncrementWindow(context context.Context, principalKey, endpoint string, windowStart time.Time) (int64, error)

	/*
		PruneWindows deletes window rows that started before the cutoff.

		Parameters:
		  - context: context.Context
		  - olderThan: time.Time

		Returns:
		  - int64: Rows removed
		  - error: Cleanup failures
	*/
	PruneWindows(context context.Context, olderThan time.Time) (int64, error)

	/*
		PruneDaily deletes daily rows for days before the cutoff.

		Parameters:
		  - context: context.Context
		  - olderThan: time.Time

		Returns:
		  - int64: Rows removed
		  - error: Cleanup failures
	*/
	PruneDaily(context context.Context, olderThan time.Time) (int64, error)

	/*
		PurgePrincipal removes every counter owned by one principal.

		Description: Erasure support. Quota tables carry no foreign keys
		(window rows may be keyed by client address), so the ledger removes
		its own rows when an account is erased.

		Parameters:
		  - context: context.Context
		  - principalID: string

		Returns:
		  - int64: Rows removed across both tables
		  - error: Cleanup failures
	*/
	PurgePrincipal(context context.Context, principalID string) (int64, error)
}
