// Copyright (c) 2026 Resumora. All rights reserved.
// Author: engineering@resumora.app

package extract

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/url"
	"strings"
	"syscall"
)

// # Failure Taxonomy

// Error kinds surfaced to the queue engine. Provider-specific failures are
// always mapped onto one of these before leaving the package.
const (
	KindUnavailable    = "unavailable"
	KindTimeout        = "timeout"
	KindQuotaExhausted = "quota_exhausted"
	KindParseFailure   = "parse_failure"
	KindSchemaFailure  = "schema_failure"
	KindUnknown        = "unknown"
)

// Error is a classified extraction failure.
type Error struct {
	Kind    string
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("extract_%s: %s: %v", e.Kind, e.Message, e.Cause)
	}
	return fmt.Sprintf("extract_%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Cause }

// NewError builds a classified extraction error.
func NewError(kind, message string, cause error) *Error {
	return &Error{Kind: kind, Message: message, Cause: cause}
}

// KindOf returns the classification of err, or [KindUnknown] for anything
// that is not an extraction error.
func KindOf(err error) string {
	var classified *Error
	if errors.As(err, &classified) {
		return classified.Kind
	}
	return KindUnknown
}

// # Provider Contract

// MIMEApplicationJSON requests structured JSON output from providers that
// support a response format constraint.
const MIMEApplicationJSON = "application/json"

// GenerationConfig carries the sampling options a provider may honor.
// Zero values mean "provider default"; ResponseMIMEType requests structured
// output where the provider supports it.
type GenerationConfig struct {
	Temperature      float32
	TopP             float32
	TopK             int
	MaxOutputTokens  int
	ResponseMIMEType string
}

/*
Provider is a single-shot structured text generator.

GenerateStructured returns the raw model text and the total token count the
provider reported, or 0 when the provider gives no usage data. Errors are
classified [Error] values.
*/
type Provider interface {
	GenerateStructured(context context.Context, prompt string, config GenerationConfig) (string, int, error)
}

// # Transport Classification

/*
ClassifyTransport maps a raw provider transport error onto the taxonomy.

Description:
  Deadline and cancellation map to timeout; refused connections, DNS
  failures, and unreachable hosts map to unavailable. HTTP-level statuses
  are classified by the providers themselves since each reports them
  differently.
*/
func ClassifyTransport(err error) *Error {
	if err == nil {
		return nil
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return NewError(KindTimeout, "provider call exceeded deadline", err)
	}
	if errors.Is(err, context.Canceled) {
		return NewError(KindTimeout, "provider call cancelled", err)
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return NewError(KindTimeout, "provider connection timed out", err)
	}

	if errors.Is(err, syscall.ECONNREFUSED) || errors.Is(err, syscall.EHOSTUNREACH) || errors.Is(err, syscall.ENETUNREACH) {
		return NewError(KindUnavailable, "provider unreachable", err)
	}

	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return NewError(KindUnavailable, "provider host not resolvable", err)
	}

	var urlErr *url.Error
	if errors.As(err, &urlErr) {
		if urlErr.Timeout() {
			return NewError(KindTimeout, "provider connection timed out", err)
		}
		return NewError(KindUnavailable, "provider unreachable", err)
	}

	if strings.Contains(err.Error(), "connection refused") {
		return NewError(KindUnavailable, "provider unreachable", err)
	}

	return NewError(KindUnknown, "provider call failed", err)
}
