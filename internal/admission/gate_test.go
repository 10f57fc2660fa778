// Copyright (c) 2026 Resumora. All rights reserved.
// Author: engineering@resumora.app

package admission_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/resumora/resumora/internal/admission"
	"github.com/resumora/resumora/internal/platform/constants"
	"github.com/resumora/resumora/internal/platform/metrics"
	"github.com/resumora/resumora/internal/quota"
)

// # Stubs

type stubPressure struct {
	under bool
}

func (stub *stubPressure) Pressure() bool { return stub.under }

type stubUsage struct {
	windowDecision quota.WindowDecision
	dailyDecision  quota.DailyDecision
	windowCalls    int
	dailyCalls     int
	lastEndpoint   string
	lastMax        int64
}

func (stub *stubUsage) CheckWindow(_ context.Context, _, endpoint string, _ time.Duration, maxInWindow int64) (quota.WindowDecision, error) {
	stub.windowCalls++
	stub.lastEndpoint = endpoint
	stub.lastMax = maxInWindow
	return stub.windowDecision, nil
}

func (stub *stubUsage) CheckDaily(_ context.Context, _, _ string) (quota.DailyDecision, error) {
	stub.dailyCalls++
	return stub.dailyDecision, nil
}

func newGate(pressure *stubPressure, usage *stubUsage) *admission.Gate {
	return admission.NewGate(pressure, usage, metrics.NewWithRegisterer(prometheus.NewRegistry()), admission.Config{
		WindowSize:  15 * time.Minute,
		MaxDefault:  100,
		MaxLLM:      50,
		MaxIdentity: 20,
	})
}

// # Tests

/*
TestGate_Admit_FirstDenialWins verifies the evaluation order: a pressure
denial short-circuits the window check, and a window denial short-circuits
the daily check.
*/
func TestGate_Admit_FirstDenialWins(t *testing.T) {
	t.Run("pressure_shortcircuits_window", func(t *testing.T) {
		usage := &stubUsage{windowDecision: quota.WindowDecision{Allowed: true}}
		gate := newGate(&stubPressure{under: true}, usage)

		decision, err := gate.Admit(context.Background(), "principal-1", constants.EndpointClassLLM, quota.APIKindLLM)
		require.NoError(t, err)

		assert.False(t, decision.Allowed)
		assert.Equal(t, admission.CodeMemoryPressure, decision.Code)
		assert.Equal(t, 120, decision.RetryAfterSeconds)
		assert.Zero(t, usage.windowCalls)
		assert.Zero(t, usage.dailyCalls)
	})

	t.Run("window_shortcircuits_daily", func(t *testing.T) {
		usage := &stubUsage{
			windowDecision: quota.WindowDecision{Allowed: false, RetryAfterSeconds: 371},
			dailyDecision:  quota.DailyDecision{Allowed: true},
		}
		gate := newGate(&stubPressure{}, usage)

		decision, err := gate.Admit(context.Background(), "principal-1", constants.EndpointClassLLM, quota.APIKindLLM)
		require.NoError(t, err)

		assert.False(t, decision.Allowed)
		assert.Equal(t, admission.CodeRateLimited, decision.Code)
		assert.Equal(t, 371, decision.RetryAfterSeconds)
		assert.Equal(t, 1, usage.windowCalls)
		assert.Zero(t, usage.dailyCalls)
	})

	t.Run("daily_denies_last", func(t *testing.T) {
		usage := &stubUsage{
			windowDecision: quota.WindowDecision{Allowed: true},
			dailyDecision: quota.DailyDecision{
				Allowed:           false,
				Reason:            quota.ReasonDailyRequests,
				RetryAfterSeconds: 12_345,
			},
		}
		gate := newGate(&stubPressure{}, usage)

		decision, err := gate.Admit(context.Background(), "principal-1", constants.EndpointClassLLM, quota.APIKindLLM)
		require.NoError(t, err)

		assert.False(t, decision.Allowed)
		assert.Equal(t, admission.CodeQuotaExhausted, decision.Code)
		assert.Equal(t, quota.ReasonDailyRequests, decision.Reason)
		assert.Equal(t, 12_345, decision.RetryAfterSeconds)
	})

	t.Run("all_pass", func(t *testing.T) {
		usage := &stubUsage{
			windowDecision: quota.WindowDecision{Allowed: true},
			dailyDecision:  quota.DailyDecision{Allowed: true},
		}
		gate := newGate(&stubPressure{}, usage)

		decision, err := gate.Admit(context.Background(), "principal-1", constants.EndpointClassLLM, quota.APIKindLLM)
		require.NoError(t, err)

		assert.True(t, decision.Allowed)
		assert.Equal(t, 1, usage.windowCalls)
		assert.Equal(t, 1, usage.dailyCalls)
	})
}

/*
TestGate_Admit_PressureSensitivity verifies that only pressure-sensitive
endpoint classes are denied under pressure; the rest continue to the window
check.
*/
func TestGate_Admit_PressureSensitivity(t *testing.T) {
	usage := &stubUsage{windowDecision: quota.WindowDecision{Allowed: true}}
	gate := newGate(&stubPressure{under: true}, usage)

	llm, err := gate.Admit(context.Background(), "principal-1", constants.EndpointClassLLM, "")
	require.NoError(t, err)
	assert.False(t, llm.Allowed)
	assert.Equal(t, admission.CodeMemoryPressure, llm.Code)

	status, err := gate.Admit(context.Background(), "principal-1", constants.EndpointClassDefault, "")
	require.NoError(t, err)
	assert.True(t, status.Allowed)
}

/*
TestGate_Admit_ClassCaps verifies that each endpoint class carries its own
window maximum into the ledger check.
*/
func TestGate_Admit_ClassCaps(t *testing.T) {
	tests := []struct {
		name          string
		endpointClass string
		wantMax       int64
	}{
		{"default_class", constants.EndpointClassDefault, 100},
		{"llm_class", constants.EndpointClassLLM, 50},
		{"identity_class", constants.EndpointClassIdentity, 20},
		{"unknown_class_falls_back", "unknown", 100},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			usage := &stubUsage{windowDecision: quota.WindowDecision{Allowed: true}}
			gate := newGate(&stubPressure{}, usage)

			_, err := gate.Admit(context.Background(), "principal-1", tt.endpointClass, "")
			require.NoError(t, err)
			assert.Equal(t, tt.endpointClass, usage.lastEndpoint)
			assert.Equal(t, tt.wantMax, usage.lastMax)
		})
	}
}

/*
TestGate_Admit_NoAPIKindSkipsDaily verifies that operations without an API
kind never consult the daily budget.
*/
func TestGate_Admit_NoAPIKindSkipsDaily(t *testing.T) {
	usage := &stubUsage{windowDecision: quota.WindowDecision{Allowed: true}}
	gate := newGate(&stubPressure{}, usage)

	decision, err := gate.Admit(context.Background(), "principal-1", constants.EndpointClassDefault, "")
	require.NoError(t, err)

	assert.True(t, decision.Allowed)
	assert.Zero(t, usage.dailyCalls)
}

/*
TestMiddleware verifies the HTTP mapping: denials carry the right status and
Retry-After header, accepted requests reach the inner handler, and anonymous
callers are keyed by address.
*/
func TestMiddleware(t *testing.T) {
	t.Run("memory_pressure_503", func(t *testing.T) {
		gate := newGate(&stubPressure{under: true}, &stubUsage{})
		handler := admission.Middleware(gate, constants.EndpointClassLLM, "")(
			http.HandlerFunc(func(http.ResponseWriter, *http.Request) { t.Fatal("inner handler reached") }),
		)

		recorder := httptest.NewRecorder()
		handler.ServeHTTP(recorder, httptest.NewRequest(http.MethodPost, "/api/v1/resumes", nil))

		assert.Equal(t, http.StatusServiceUnavailable, recorder.Code)
		assert.Equal(t, "120", recorder.Header().Get("Retry-After"))
	})

	t.Run("rate_limited_429", func(t *testing.T) {
		usage := &stubUsage{windowDecision: quota.WindowDecision{Allowed: false, RetryAfterSeconds: 42}}
		gate := newGate(&stubPressure{}, usage)
		handler := admission.Middleware(gate, constants.EndpointClassIdentity, "")(
			http.HandlerFunc(func(http.ResponseWriter, *http.Request) { t.Fatal("inner handler reached") }),
		)

		recorder := httptest.NewRecorder()
		handler.ServeHTTP(recorder, httptest.NewRequest(http.MethodPost, "/api/v1/identity/sessions", nil))

		assert.Equal(t, http.StatusTooManyRequests, recorder.Code)
		assert.Equal(t, "42", recorder.Header().Get("Retry-After"))
	})

	t.Run("accepted_passes_through", func(t *testing.T) {
		usage := &stubUsage{
			windowDecision: quota.WindowDecision{Allowed: true},
			dailyDecision:  quota.DailyDecision{Allowed: true},
		}
		gate := newGate(&stubPressure{}, usage)

		reached := false
		handler := admission.Middleware(gate, constants.EndpointClassDefault, "")(
			http.HandlerFunc(func(writer http.ResponseWriter, _ *http.Request) {
				reached = true
				writer.WriteHeader(http.StatusOK)
			}),
		)

		recorder := httptest.NewRecorder()
		handler.ServeHTTP(recorder, httptest.NewRequest(http.MethodGet, "/api/v1/jobs/abc", nil))

		assert.True(t, reached)
		assert.Equal(t, http.StatusOK, recorder.Code)
	})
}
