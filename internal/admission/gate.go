// Copyright (c) 2026 Resumora. All rights reserved.
// Author: engineering@resumora.app

/*
Package admission decides whether an inbound operation may proceed.

The gate composes three independent checks, evaluated in order with the
first denial winning:

 1. Memory pressure, for endpoint classes marked pressure-sensitive.
 2. Rolling per-endpoint rate windows, via the quota ledger.
 3. Daily and monthly budgets, when the operation is attributed to an
    upstream API kind.

An accepted request records nothing; usage is charged only after the
upstream call actually succeeds. Health, readiness, metrics, and static
assets never pass through the gate.
*/
package admission

import (
	"context"
	"time"

	"github.com/resumora/resumora/internal/platform/constants"
	"github.com/resumora/resumora/internal/platform/metrics"
	"github.com/resumora/resumora/internal/quota"
)

// # Contracts & Types

// Denial codes surfaced to the HTTP layer.
const (
	CodeMemoryPressure = "memory_pressure"
	CodeRateLimited    = "rate_limited"
	CodeQuotaExhausted = "quota_exhausted"
)

// PressureReader reports the current memory pressure state.
type PressureReader interface {
	Pressure() bool
}

// UsageChecker exposes the two ledger checks the gate composes.
type UsageChecker interface {
	CheckWindow(context context.Context, principalKey, endpoint string, windowSize time.Duration, maxInWindow int64) (quota.WindowDecision, error)
	CheckDaily(context context.Context, principalID, apiKind string) (quota.DailyDecision, error)
}

// Decision is the outcome of one admission evaluation.
type Decision struct {
	Allowed bool
	// Code is the denial code when not allowed.
	Code string
	// Reason is a short denial detail (budget name, endpoint class).
	Reason string
	// RetryAfterSeconds hints when a retry may succeed.
	RetryAfterSeconds int
}

// Config carries the window policy per endpoint class.
type Config struct {
	// WindowSize is the fixed rate-limit window applied to every class.
	WindowSize time.Duration

	// MaxDefault, MaxLLM, MaxIdentity are the per-window caps by class.
	MaxDefault  int64
	MaxLLM      int64
	MaxIdentity int64

	// PressureSensitive lists the endpoint classes denied under memory
	// pressure. Empty means only the LLM class is sensitive.
	PressureSensitive []string
}

// Gate evaluates the admission policy.
type Gate struct {
	pressure          PressureReader
	usage             UsageChecker
	metrics           *metrics.Metrics
	config            Config
	pressureSensitive map[string]bool
}

// NewGate constructs a [Gate] with its policy dependencies.
func NewGate(pressure PressureReader, usage UsageChecker, collector *metrics.Metrics, config Config) *Gate {
	sensitive := make(map[string]bool, len(config.PressureSensitive))
	for _, class := range config.PressureSensitive {
		sensitive[class] = true
	}
	if len(sensitive) == 0 {
		sensitive[constants.EndpointClassLLM] = true
	}

	return &Gate{
		pressure:          pressure,
		usage:             usage,
		metrics:           collector,
		config:            config,
		pressureSensitive: sensitive,
	}
}

// # Evaluation

/*
Admit decides whether one inbound operation may proceed.

Description: Evaluates pressure, then the rolling window, then the daily
budget; the first denial wins and later checks never run, so a denied
request consumes no further budget reads.

Parameters:
  - context: context.Context
  - principalKey: string (principal ID, or an address key for anonymous traffic)
  - endpointClass: string
  - apiKind: string (empty when the operation has no daily budget)

Returns:
  - Decision: Accept, or the winning denial with its retry hint
  - err: Ledger failures; callers map these to a generic unavailable response
*/
func (gate *Gate) Admit(context context.Context, principalKey, endpointClass, apiKind string) (Decision, error) {
	if gate.pressureSensitive[endpointClass] && gate.pressure.Pressure() {
		return gate.deny(Decision{
			Code:              CodeMemoryPressure,
			Reason:            endpointClass,
			RetryAfterSeconds: int(constants.PressureRetryAfter.Seconds()),
		}), nil
	}

	window, err := gate.usage.CheckWindow(context, principalKey, endpointClass, gate.config.WindowSize, gate.maxForClass(endpointClass))
	if err != nil {
		return Decision{}, err
	}
	if !window.Allowed {
		return gate.deny(Decision{
			Code:              CodeRateLimited,
			Reason:            endpointClass,
			RetryAfterSeconds: window.RetryAfterSeconds,
		}), nil
	}

	if apiKind != "" {
		daily, err := gate.usage.CheckDaily(context, principalKey, apiKind)
		if err != nil {
			return Decision{}, err
		}
		if !daily.Allowed {
			return gate.deny(Decision{
				Code:              CodeQuotaExhausted,
				Reason:            daily.Reason,
				RetryAfterSeconds: daily.RetryAfterSeconds,
			}), nil
		}
	}

	return Decision{Allowed: true}, nil
}

// maxForClass resolves the window cap for an endpoint class.
func (gate *Gate) maxForClass(endpointClass string) int64 {
	switch endpointClass {
	case constants.EndpointClassLLM:
		return gate.config.MaxLLM
	case constants.EndpointClassIdentity:
		return gate.config.MaxIdentity
	default:
		return gate.config.MaxDefault
	}
}

// deny counts the denial and returns it.
func (gate *Gate) deny(decision Decision) Decision {
	gate.metrics.AdmissionDenialsTotal.WithLabelValues(decision.Code).Inc()
	return decision
}
