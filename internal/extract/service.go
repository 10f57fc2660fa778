// Copyright (c) 2026 Resumora. All rights reserved.
// Author: engineering@resumora.app

package extract

import (
	stdctx "context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/sony/gobreaker/v2"

	"github.com/resumora/resumora/internal/platform/metrics"
	"github.com/resumora/resumora/internal/quota"
)

// Sampling settings for the extraction call. Low temperature keeps the
// output shape stable across identical inputs.
const (
	samplingTemperature = 0.1
	samplingTopP        = 1.0
	outputTokenCeiling  = 8192
)

// Breaker tuning: trip after three consecutive transport failures, stay
// open for 30 seconds, then let one probe through.
const (
	breakerTripThreshold    = 3
	breakerOpenInterval     = 30 * time.Second
	breakerHalfOpenRequests = 1
)

// UsageLedger is the quota slice extraction consumes: a pre-call gate and
// a post-success charge.
type UsageLedger interface {
	CheckDaily(context stdctx.Context, principalID, apiKind string) (quota.DailyDecision, error)
	Record(context stdctx.Context, principalID, apiKind string, requests, tokens int64) error
}

// Config carries the extraction deadlines.
type Config struct {
	// LLMDeadline bounds one provider call.
	LLMDeadline time.Duration
}

// providerReply pairs the raw model text with reported usage for transport
// through the breaker.
type providerReply struct {
	text   string
	tokens int
}

// # Service

/*
Service runs the single-pass extraction pipeline.

Description:
  Quota gate, prompt, one provider call through the circuit breaker, parse
  with one repair, normalize, charge usage. No in-service retries: a failed
  call surfaces immediately and the caller decides what to tell the user.
*/
type Service struct {
	provider Provider
	ledger   UsageLedger
	breaker  *gobreaker.CircuitBreaker[providerReply]
	metrics  *metrics.Metrics
	logger   *slog.Logger
	config   Config
}

/*
NewService creates the extraction service around one provider.
*/
func NewService(provider Provider, ledger UsageLedger, collector *metrics.Metrics, logger *slog.Logger, config Config) *Service {
	breaker := gobreaker.NewCircuitBreaker[providerReply](gobreaker.Settings{
		Name:        "llm-provider",
		MaxRequests: breakerHalfOpenRequests,
		Timeout:     breakerOpenInterval,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= breakerTripThreshold
		},
		IsSuccessful: func(err error) bool {
			// A quota denial is the provider working as intended, not a
			// transport fault.
			return err == nil || KindOf(err) == KindQuotaExhausted
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("provider breaker state changed",
				slog.String("breaker", name),
				slog.String("from", from.String()),
				slog.String("to", to.String()))
		},
	})

	return &Service{
		provider: provider,
		ledger:   ledger,
		breaker:  breaker,
		metrics:  collector,
		logger:   logger,
		config:   config,
	}
}

/*
Extract converts cleaned resume text into a normalized record.

Description:
  The daily ledger is consulted first; a denial costs nothing. The provider
  call runs under the LLM deadline through the breaker, the reply is parsed
  with at most one repair pass, and usage is charged only after the record
  passes the schema gate.

Parameters:
  - context: Context bounding the whole attempt.
  - principalID: Principal charged for the call.
  - cleanedText: Plain resume text, already stripped of layout.

Returns:
  - *Record: Fully populated extraction record.
  - error: Classified [Error].
*/
func (service *Service) Extract(context stdctx.Context, principalID, cleanedText string) (*Record, error) {
	decision, err := service.ledger.CheckDaily(context, principalID, quota.APIKindLLM)
	if err != nil {
		return nil, NewError(KindUnknown, "quota check failed", err)
	}
	if !decision.Allowed {
		return nil, NewError(KindQuotaExhausted, fmt.Sprintf("daily ledger denied the call: %s", decision.Reason), nil)
	}

	prompt := BuildPrompt(cleanedText)

	started := time.Now()
	defer func() {
		service.metrics.ExtractionSeconds.Observe(time.Since(started).Seconds())
	}()

	callContext, cancel := stdctx.WithTimeout(context, service.config.LLMDeadline)
	defer cancel()

	reply, err := service.breaker.Execute(func() (providerReply, error) {
		text, tokens, callErr := service.provider.GenerateStructured(callContext, prompt, GenerationConfig{
			Temperature:      samplingTemperature,
			TopP:             samplingTopP,
			MaxOutputTokens:  outputTokenCeiling,
			ResponseMIMEType: MIMEApplicationJSON,
		})
		if callErr != nil {
			return providerReply{}, callErr
		}
		return providerReply{text: text, tokens: tokens}, nil
	})
	if err != nil {
		return nil, service.classifyCallError(err)
	}

	record, err := ParseResponse(reply.text)
	if err != nil {
		service.logger.Warn("extraction response rejected",
			slog.String("kind", KindOf(err)),
			slog.String("preview", truncateForLog(reply.text, 200)))
		return nil, err
	}

	tokens := reply.tokens
	if tokens == 0 {
		tokens = estimateTokens(prompt, reply.text)
	}
	if err := service.ledger.Record(context, principalID, quota.APIKindLLM, 1, int64(tokens)); err != nil {
		// The owner keeps the paid result; only the accounting is short.
		service.logger.Error("usage record failed",
			slog.String("principal_id", principalID),
			slog.Any("error", err))
	} else {
		service.metrics.LLMTokensTotal.Add(float64(tokens))
	}

	return record, nil
}

// classifyCallError folds breaker rejections into the taxonomy and passes
// provider classifications through.
func (service *Service) classifyCallError(err error) error {
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return NewError(KindUnavailable, "provider circuit open", err)
	}
	var classified *Error
	if errors.As(err, &classified) {
		return classified
	}
	return NewError(KindUnknown, "provider call failed", err)
}
