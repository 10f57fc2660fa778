// Copyright (c) 2026 Resumora. All rights reserved.
// Author: engineering@resumora.app

package extract_test

import (
	"context"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/resumora/resumora/internal/extract"
	"github.com/resumora/resumora/internal/platform/metrics"
	"github.com/resumora/resumora/internal/quota"
)

// # Test Doubles

// stubProvider replays canned replies and records what it was asked.
type stubProvider struct {
	mu         sync.Mutex
	text       string
	tokens     int
	err        error
	calls      int
	lastPrompt string
	lastConfig extract.GenerationConfig
}

func (provider *stubProvider) GenerateStructured(_ context.Context, prompt string, config extract.GenerationConfig) (string, int, error) {
	provider.mu.Lock()
	defer provider.mu.Unlock()

	provider.calls++
	provider.lastPrompt = prompt
	provider.lastConfig = config
	if provider.err != nil {
		return "", 0, provider.err
	}
	return provider.text, provider.tokens, nil
}

// recordingLedger fakes the quota slice and captures charges.
type recordingLedger struct {
	mu               sync.Mutex
	deny             bool
	denyReason       string
	checkCalls       int
	recordCalls      int
	recordedRequests int64
	recordedTokens   int64
}

func (ledger *recordingLedger) CheckDaily(_ context.Context, _, _ string) (quota.DailyDecision, error) {
	ledger.mu.Lock()
	defer ledger.mu.Unlock()

	ledger.checkCalls++
	if ledger.deny {
		return quota.DailyDecision{Allowed: false, Reason: ledger.denyReason, RetryAfterSeconds: 3600}, nil
	}
	return quota.DailyDecision{Allowed: true, RemainingRequests: 10}, nil
}

func (ledger *recordingLedger) Record(_ context.Context, _, _ string, requests, tokens int64) error {
	ledger.mu.Lock()
	defer ledger.mu.Unlock()

	ledger.recordCalls++
	ledger.recordedRequests += requests
	ledger.recordedTokens += tokens
	return nil
}

// # Fixtures

const validReply = `{"personalInfo":{"name":"Jane Smith"},"experience":[{"title":"Chef","company":"X","startDate":"2020","endDate":"2023"}],"skills":{"technical":["French cuisine","knife skills"]}}`

func newExtractService(provider *stubProvider, ledger *recordingLedger) *extract.Service {
	collector := metrics.NewWithRegisterer(prometheus.NewRegistry())
	return extract.NewService(provider, ledger, collector, slog.Default(), extract.Config{
		LLMDeadline: time.Second,
	})
}

// # Tests

/*
TestService_Extract_HappyPath verifies the full pass: prompt construction,
structured sampling options, parsing, and the single usage charge with
provider-reported tokens.
*/
func TestService_Extract_HappyPath(t *testing.T) {
	provider := &stubProvider{text: validReply, tokens: 321}
	ledger := &recordingLedger{}
	service := newExtractService(provider, ledger)

	record, err := service.Extract(context.Background(), "principal-1", "Jane Smith | Chef at X | 2020-2023")
	require.NoError(t, err)

	assert.Equal(t, "Jane Smith", record.PersonalInfo.Name)
	require.Len(t, record.Experience, 1)
	assert.Equal(t, "Chef", record.Experience[0].Title)
	assert.NotNil(t, record.Projects, "missing sections still materialize")

	assert.Equal(t, 1, provider.calls)
	assert.Contains(t, provider.lastPrompt, "Jane Smith | Chef at X")
	assert.Contains(t, provider.lastPrompt, `"certifications"`)
	assert.Contains(t, provider.lastPrompt, "whatever that profession is")
	assert.Contains(t, provider.lastPrompt, "valid JSON only")
	assert.InDelta(t, 0.1, provider.lastConfig.Temperature, 0.0001)
	assert.Equal(t, extract.MIMEApplicationJSON, provider.lastConfig.ResponseMIMEType)

	assert.Equal(t, 1, ledger.checkCalls)
	assert.Equal(t, 1, ledger.recordCalls)
	assert.Equal(t, int64(1), ledger.recordedRequests)
	assert.Equal(t, int64(321), ledger.recordedTokens)
}

/*
TestService_Extract_EstimatesTokensWhenUnreported verifies the length-based
fallback when the provider gives no usage data.
*/
func TestService_Extract_EstimatesTokensWhenUnreported(t *testing.T) {
	provider := &stubProvider{text: validReply, tokens: 0}
	ledger := &recordingLedger{}
	service := newExtractService(provider, ledger)

	_, err := service.Extract(context.Background(), "principal-1", "Jane Smith | Chef")
	require.NoError(t, err)

	expected := int64((len(provider.lastPrompt) + len(validReply)) / 4)
	assert.Equal(t, expected, ledger.recordedTokens)
	assert.Positive(t, ledger.recordedTokens)
}

/*
TestService_Extract_QuotaDenied verifies a ledger denial fails before any
provider traffic and charges nothing.
*/
func TestService_Extract_QuotaDenied(t *testing.T) {
	provider := &stubProvider{text: validReply}
	ledger := &recordingLedger{deny: true, denyReason: quota.ReasonDailyRequests}
	service := newExtractService(provider, ledger)

	_, err := service.Extract(context.Background(), "principal-1", "text")
	require.Error(t, err)

	assert.Equal(t, extract.KindQuotaExhausted, extract.KindOf(err))
	assert.Zero(t, provider.calls)
	assert.Zero(t, ledger.recordCalls)
}

/*
TestService_Extract_NoChargeOnRejectedReplies verifies neither a parse
failure nor a schema failure records usage.
*/
func TestService_Extract_NoChargeOnRejectedReplies(t *testing.T) {
	tests := []struct {
		name string
		text string
		kind string
	}{
		{name: "parse_failure", text: "I cannot help with that.", kind: extract.KindParseFailure},
		{name: "schema_failure", text: `{"status":"ok"}`, kind: extract.KindSchemaFailure},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			provider := &stubProvider{text: test.text}
			ledger := &recordingLedger{}
			service := newExtractService(provider, ledger)

			_, err := service.Extract(context.Background(), "principal-1", "text")
			require.Error(t, err)
			assert.Equal(t, test.kind, extract.KindOf(err))
			assert.Zero(t, ledger.recordCalls)
		})
	}
}

/*
TestService_Extract_PassesThroughProviderKinds verifies classified provider
errors surface unchanged.
*/
func TestService_Extract_PassesThroughProviderKinds(t *testing.T) {
	provider := &stubProvider{err: extract.NewError(extract.KindTimeout, "provider call exceeded deadline", nil)}
	ledger := &recordingLedger{}
	service := newExtractService(provider, ledger)

	_, err := service.Extract(context.Background(), "principal-1", "text")
	require.Error(t, err)
	assert.Equal(t, extract.KindTimeout, extract.KindOf(err))
	assert.Zero(t, ledger.recordCalls)
}

/*
TestService_Extract_BreakerOpensAfterConsecutiveFailures verifies that the
third transport failure opens the circuit and the next attempt fails as
unavailable without reaching the provider.
*/
func TestService_Extract_BreakerOpensAfterConsecutiveFailures(t *testing.T) {
	provider := &stubProvider{err: extract.NewError(extract.KindUnavailable, "provider unreachable", nil)}
	ledger := &recordingLedger{}
	service := newExtractService(provider, ledger)

	for attempt := 0; attempt < 3; attempt++ {
		_, err := service.Extract(context.Background(), "principal-1", "text")
		require.Error(t, err)
		assert.Equal(t, extract.KindUnavailable, extract.KindOf(err))
	}
	require.Equal(t, 3, provider.calls)

	_, err := service.Extract(context.Background(), "principal-1", "text")
	require.Error(t, err)
	assert.Equal(t, extract.KindUnavailable, extract.KindOf(err))
	assert.Equal(t, 3, provider.calls, "open circuit must not touch the provider")
}

/*
TestService_Extract_QuotaRejectionsDoNotTrip verifies provider-side quota
denials never open the circuit; the provider is healthy, just strict.
*/
func TestService_Extract_QuotaRejectionsDoNotTrip(t *testing.T) {
	provider := &stubProvider{err: extract.NewError(extract.KindQuotaExhausted, "provider rejected the call over quota", nil)}
	ledger := &recordingLedger{}
	service := newExtractService(provider, ledger)

	for attempt := 0; attempt < 5; attempt++ {
		_, err := service.Extract(context.Background(), "principal-1", "text")
		require.Error(t, err)
		assert.Equal(t, extract.KindQuotaExhausted, extract.KindOf(err))
	}
	assert.Equal(t, 5, provider.calls, "quota denials must keep the circuit closed")
}
