// Copyright (c) 2026 Resumora. All rights reserved.
// Author: engineering@resumora.app

package quota

import (
	"context"
	"fmt"
	"math"
	"time"
)

// # Contracts & Types

// Config carries the budget limits the service enforces.
type Config struct {
	// DailyRequests caps upstream calls per principal per UTC day.
	DailyRequests int64

	// MonthlyTokens caps provider tokens per principal per calendar month.
	MonthlyTokens int64
}

// Service implements budget checks and usage charging on top of the Ledger.
type Service struct {
	ledger Ledger
	config Config
}

// NewService constructs a new quota [Service] with necessary dependencies.
func NewService(ledger Ledger, config Config) *Service {
	return &Service{ledger: ledger, config: config}
}

// # Daily Budgets

/*
CheckDaily decides whether the principal may make one more upstream call.

Description: Compares today's request count against the daily cap, then the
calendar-month token sum against the monthly budget. The check reads only;
usage is charged separately by [Service.Record] after a successful call.

Parameters:
  - context: context.Context
  - principalID: string
  - apiKind: string

Returns:
  - DailyDecision: Allowed with remaining budget, or a denial with reset time
  - err: Ledger failures
*/
func (service *Service) CheckDaily(context context.Context, principalID, apiKind string) (DailyDecision, error) {
	now := time.Now().UTC()
	day := utcDay(now)

	counter, err := service.ledger.GetDaily(context, principalID, apiKind, day)
	if err != nil {
		return DailyDecision{}, fmt.Errorf("quota_service_check_daily_failed: %w", err)
	}

	if counter.Requests >= service.config.DailyRequests {
		return DailyDecision{
			Allowed:           false,
			Reason:            ReasonDailyRequests,
			RetryAfterSeconds: secondsUntil(now, day.AddDate(0, 0, 1)),
		}, nil
	}

	monthStart := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC)
	nextMonth := monthStart.AddDate(0, 1, 0)
	tokens, err := service.ledger.SumTokens(context, principalID, apiKind, monthStart, nextMonth)
	if err != nil {
		return DailyDecision{}, fmt.Errorf("quota_service_sum_tokens_failed: %w", err)
	}

	if tokens >= service.config.MonthlyTokens {
		return DailyDecision{
			Allowed:           false,
			Reason:            ReasonMonthlyTokens,
			RetryAfterSeconds: secondsUntil(now, nextMonth),
		}, nil
	}

	return DailyDecision{
		Allowed:           true,
		RemainingRequests: service.config.DailyRequests - counter.Requests,
	}, nil
}

/*
Record charges usage for one completed upstream call.

Description: Charged only after a call actually consumed provider capacity.
A failed call is never charged, so honest retries stay possible.

Parameters:
  - context: context.Context
  - principalID: string
  - apiKind: string
  - requests: int64
  - tokens: int64

Returns:
  - err: Ledger failures
*/
func (service *Service) Record(context context.Context, principalID, apiKind string, requests, tokens int64) error {
	day := utcDay(time.Now().UTC())
	if err := service.ledger.Record(context, principalID, apiKind, day, requests, tokens); err != nil {
		return fmt.Errorf("quota_service_record_failed: %w", err)
	}
	return nil
}

// # Rolling Windows

/*
CheckWindow admits or denies one request under a fixed-window rate limit.

Description: The window key is floor(now, windowSize); the counter for the
current window is incremented first and the decision compares the result to
the maximum, so concurrent requests race inside the database, not here.

Parameters:
  - context: context.Context
  - principalKey: string (principal ID, or an address key for anonymous traffic)
  - endpoint: string (endpoint class name)
  - windowSize: time.Duration
  - maxInWindow: int64

Returns:
  - WindowDecision: Allowed, or denied with seconds until the window closes
  - err: Ledger failures
*/
func (service *Service) CheckWindow(context context.Context, principalKey, endpoint string, windowSize time.Duration, maxInWindow int64) (WindowDecision, error) {
	now := time.Now()
	windowStart := now.Truncate(windowSize)

	count, err := service.ledger.IncrementWindow(context, principalKey, endpoint, windowStart)
	if err != nil {
		return WindowDecision{}, fmt.Errorf("quota_service_check_window_failed: %w", err)
	}

	if count > maxInWindow {
		return WindowDecision{
			Allowed:           false,
			RetryAfterSeconds: secondsUntil(now, windowStart.Add(windowSize)),
		}, nil
	}

	return WindowDecision{Allowed: true}, nil
}

// # Maintenance

/*
PruneWindows deletes window counters older than the cutoff.

Parameters:
  - context: context.Context
  - olderThan: time.Time

Returns:
  - int64: Rows removed
  - err: Ledger failures
*/
func (service *Service) PruneWindows(context context.Context, olderThan time.Time) (int64, error) {
	removed, err := service.ledger.PruneWindows(context, olderThan)
	if err != nil {
		return 0, fmt.Errorf("quota_service_prune_windows_failed: %w", err)
	}
	return removed, nil
}

/*
PruneDaily deletes daily counters for days before the cutoff.

Parameters:
  - context: context.Context
  - olderThan: time.Time

Returns:
  - int64: Rows removed
  - err: Ledger failures
*/
func (service *Service) PruneDaily(context context.Context, olderThan time.Time) (int64, error) {
	removed, err := service.ledger.PruneDaily(context, olderThan)
	if err != nil {
		return 0, fmt.Errorf("quota_service_prune_daily_failed: %w", err)
	}
	return removed, nil
}

/*
PurgePrincipal removes every counter owned by one principal.

Description: Erasure hook invoked when an account is deleted.

Parameters:
  - context: context.Context
  - principalID: string

Returns:
  - err: Ledger failures
*/
func (service *Service) PurgePrincipal(context context.Context, principalID string) error {
	if _, err := service.ledger.PurgePrincipal(context, principalID); err != nil {
		return fmt.Errorf("quota_service_purge_principal_failed: %w", err)
	}
	return nil
}

// # Helpers

// utcDay floors a timestamp to its UTC calendar date.
func utcDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// secondsUntil reports the whole seconds between now and deadline, at least 1.
func secondsUntil(now, deadline time.Time) int {
	seconds := int(math.Ceil(deadline.Sub(now).Seconds()))
	if seconds < 1 {
		return 1
	}
	return seconds
}
