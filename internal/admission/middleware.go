// Copyright (c) 2026 Resumora. All rights reserved.
// Author: engineering@resumora.app

package admission

import (
	"net/http"

	"github.com/resumora/resumora/internal/platform/apperr"
	"github.com/resumora/resumora/internal/platform/constants"
	"github.com/resumora/resumora/internal/platform/ctxutil"
	"github.com/resumora/resumora/internal/platform/respond"
)

// # HTTP Integration

/*
Middleware returns a chi-compatible middleware enforcing the gate for one
route group.

Description: Authenticated requests are keyed by principal ID; anonymous
ones by client address, so the identity endpoints are rate-limited before a
principal exists. Ledger failures surface as a generic unavailable response
rather than an open gate.

Parameters:
  - gate: *Gate
  - endpointClass: string (constants.EndpointClass*)
  - apiKind: string (empty when the group has no daily budget)

Returns:
  - func(http.Handler) http.Handler: The wrapping middleware
*/
func Middleware(gate *Gate, endpointClass, apiKind string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {
			principalKey := callerKey(request)

			decision, err := gate.Admit(request.Context(), principalKey, endpointClass, apiKind)
			if err != nil {
				respond.Error(writer, request, apperr.ServiceUnavailable("Service is temporarily unavailable. Please retry."))
				return
			}

			if !decision.Allowed {
				respond.Error(writer, request, denialError(decision))
				return
			}

			next.ServeHTTP(writer, request)
		})
	}
}

// callerKey resolves the admission key for a request.
func callerKey(request *http.Request) string {
	if claims := ctxutil.GetPrincipal(request.Context()); claims != nil {
		return claims.PrincipalID()
	}

	ip := request.Header.Get(constants.HeaderXRealIP)
	if ip == "" {
		ip = request.RemoteAddr
	}
	return "ip:" + ip
}

// denialError maps a gate decision to its transport error.
func denialError(decision Decision) *apperr.AppError {
	switch decision.Code {
	case CodeMemoryPressure:
		return apperr.MemoryPressure(decision.RetryAfterSeconds)
	case CodeQuotaExhausted:
		return apperr.QuotaExhausted("Service usage limit reached. Please try again later.", decision.RetryAfterSeconds)
	default:
		return apperr.RateLimited(decision.RetryAfterSeconds)
	}
}
