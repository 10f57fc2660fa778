// Copyright (c) 2026 Resumora. All rights reserved.
// Author: engineering@resumora.app

/*
Package quota implements the usage ledger for per-principal, per-API caps.

It tracks two kinds of counters:

  - Daily counters: request and token totals per (principal, api-kind, day),
    compared against the daily request cap and the calendar-month token budget.
  - Window counters: fixed-window request counts per (principal, endpoint,
    window-start), backing the rolling rate limits of the admission path.

# Architecture

This layer is the "Truth" of usage accounting. Counters only grow; callers
never decrement, so remaining budget is monotonically non-increasing within
a day. Reclamation happens exclusively through pruning of rows whose period
has passed.
*/
package quota

import "time"

// # Domain Entities

// APIKindLLM is the api-kind under which extraction calls are accounted.
const APIKindLLM = "llm"

// DailyCounter accumulates usage for one (principal, api-kind, day).
type DailyCounter struct {
	PrincipalID string
	APIKind     string
	// Day is the UTC calendar date the counts belong to.
	Day time.Time
	// Requests is the number of upstream calls charged so far.
	Requests int64
	// Tokens is the number of provider tokens charged so far.
	Tokens int64
	// LastTouched is refreshed on every recorded charge.
	LastTouched time.Time
}

// WindowCounter counts requests inside one fixed rate-limit window.
//
// The principal key is a plain string, not a foreign key: anonymous traffic
// is keyed by client address before a principal exists.
type WindowCounter struct {
	PrincipalKey string
	Endpoint     string
	WindowStart  time.Time
	Count        int64
}

// # Decisions

// Denial reasons for daily budget checks.
const (
	ReasonDailyRequests = "daily_requests"
	ReasonMonthlyTokens = "monthly_tokens"
)

// DailyDecision is the outcome of a daily budget check.
type DailyDecision struct {
	Allowed bool
	// Reason names the exhausted budget when not allowed.
	Reason string
	// RemainingRequests is how many calls are left today when allowed.
	RemainingRequests int64
	// RetryAfterSeconds is when the exhausted budget resets.
	RetryAfterSeconds int
}

// WindowDecision is the outcome of a rolling window check.
type WindowDecision struct {
	Allowed bool
	// RetryAfterSeconds is the time left until the current window closes.
	RetryAfterSeconds int
}
