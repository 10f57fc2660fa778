// Copyright (c) 2026 Resumora. All rights reserved.
// Author: engineering@resumora.app

// Package middleware provides the HTTP middleware chain for the Resumora API server.
//
// # Architecture
//
// Middleware intercepts incoming HTTP requests to apply global policies
// before they reach the domain handlers. This includes cross-cutting concerns
// like Logging, AuthN, Rate Limiting, and CORS.
package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/resumora/resumora/internal/platform/apperr"
	"github.com/resumora/resumora/internal/platform/constants"
	"github.com/resumora/resumora/internal/platform/ctxkey"
	"github.com/resumora/resumora/internal/platform/respond"
	"github.com/resumora/resumora/internal/platform/sec"
)

// CredentialAuthenticator validates a bearer credential end to end.
//
// # Why an interface?
//
// Verification is more than a signature check: the identity service also
// consults the revocation list and the backing session record. Defining the
// interface here decouples the middleware from that service and allows mocks
// during unit testing.
type CredentialAuthenticator interface {
	Authenticate(ctx context.Context, credential string) (*sec.CredentialClaims, error)
}

// Authenticate extracts and verifies the credential from the Authorization header.
//
// # Flow
//  1. Check for 'Authorization: Bearer <credential>' header.
//  2. If absent, request proceeds as anonymous.
//  3. If present, validate via [CredentialAuthenticator] (signature, expiry,
//     revocation list, session record).
//  4. Inject [*sec.CredentialClaims] into the request context for downstream use.
//
// # Parameters
//   - authenticator: The CredentialAuthenticator instance.
//
// # Returns
//   - An [http.Handler] middleware.
func Authenticate(authenticator CredentialAuthenticator) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {
			authHeader := request.Header.Get(constants.HeaderAuthorization)

			// ── 1. Anonymous Access ───────────────────────────────────────────
			if authHeader == "" {
				next.ServeHTTP(writer, request)
				return
			}

			// ── 2. Format Validation ──────────────────────────────────────────
			parts := strings.Split(authHeader, " ")
			if len(parts) != 2 || strings.ToLower(parts[0]) != "bearer" {
				respond.Error(writer, request, apperr.Unauthorized("Invalid authorization format"))
				return
			}

			// ── 3. Credential Verification ────────────────────────────────────
			claims, err := authenticator.Authenticate(request.Context(), parts[1])
			if err != nil {
				if ae := apperr.As(err); ae != nil {
					respond.Error(writer, request, ae)
					return
				}
				respond.Error(writer, request, apperr.Unauthorized("Invalid or expired credential"))
				return
			}

			// ── 4. Context Injection ──────────────────────────────────────────
			ctx := context.WithValue(request.Context(), ctxkey.KeyPrincipal, claims)
			next.ServeHTTP(writer, request.WithContext(ctx))
		})
	}
}

// RequireAuth blocks requests that are not authenticated.
//
// # Usage
//
// Must be registered in the router AFTER [Authenticate].
//
// # Flow
//  1. Check if [*sec.CredentialClaims] exists in context.
//  2. If missing, abort with HTTP 401 Unauthorized.
func RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {
		claims := GetPrincipal(request.Context())
		if claims == nil {
			respond.Error(writer, request, apperr.Unauthorized("Authentication required"))
			return
		}
		next.ServeHTTP(writer, request)
	})
}

// GetPrincipal retrieves the [*sec.CredentialClaims] from the [context.Context].
//
// # Returns
//   - A pointer to [*sec.CredentialClaims] if the caller is authenticated.
//   - nil if the caller is anonymous.
func GetPrincipal(ctx context.Context) *sec.CredentialClaims {
	claims, ok := ctx.Value(ctxkey.KeyPrincipal).(*sec.CredentialClaims)
	if !ok {
		return nil
	}
	return claims
}
