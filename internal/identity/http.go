// Copyright (c) 2026 Resumora. All rights reserved.
// Author: engineering@resumora.app

/*
Package identity provides the HTTP delivery layer for session management.

It implements the boundary for the credential lifecycle, from session
establishment to revocation and account erasure.

# Architecture

The handler acts as a thin mediation layer between the web and domain services:
  - Protocol: Standard RESTful JSON interface.
  - Security: Issues bearer credentials; never sets cookies.
  - Verification: Enforces strict input validation before passing to [Service].

This layer is strictly responsible for transport concerns (status codes, headers, JSON).
*/
package identity

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/resumora/resumora/internal/platform/middleware"
	requestutil "github.com/resumora/resumora/internal/platform/request"
	"github.com/resumora/resumora/internal/platform/respond"
	"github.com/resumora/resumora/internal/platform/validate"
)

// # Definitions & Constructors

// Handler implements identity-related HTTP endpoints.
//
// # Scope
//
// This handler manages the session lifecycle entry points (session
// establishment, sign-out, account erasure).
type Handler struct {
	identityService *Service
}

// NewHandler constructs a new [Handler] with its service dependency.
func NewHandler(service *Service) *Handler {
	return &Handler{identityService: service}
}

// Routes returns a [chi.Router] configured with identity-specific routes.
//
// # Endpoints
//   - POST   /sessions  : Opens a session and returns a credential.
//   - DELETE /sessions  : Revokes the caller's current session.
//   - DELETE /principal : Erases the caller's account and owned data.
func (handler *Handler) Routes() chi.Router {
	router := chi.NewRouter()

	// Public endpoints
	router.Post("/sessions", handler.startSession)

	// Protected endpoints
	router.Group(func(r chi.Router) {
		r.Use(middleware.RequireAuth)
		r.Delete("/sessions", handler.revokeSession)
		r.Delete("/principal", handler.erasePrincipal)
	})

	return router
}

// # Request Payloads

type startSessionRequest struct {
	ExternalRef string `json:"externalRef"`
	DisplayName string `json:"displayName"`
	Email       string `json:"email"`
}

/*
StartSession opens a session and issues a bearer credential.

POST /api/v1/identity/sessions

Description: Validates the identity assertion, resolves or creates the
principal, and returns a signed credential bound to a capped session.

Request:
  - Body: startSessionRequest (ExternalRef, DisplayName, Email)

Response:
  - 201: SessionGrant: Credential, expiry, and session metadata
  - 400: ErrInvalidJSON: Bad input or validation failure
*/
func (handler *Handler) startSession(writer http.ResponseWriter, request *http.Request) {
	var input startSessionRequest

	if err := requestutil.DecodeJSON(request, &input); err != nil {
		respond.Error(writer, request, validate.ErrInvalidJSON)
		return
	}

	validator := &validate.Validator{}
	validator.Required(FieldExternalRef, input.ExternalRef).
		MaxLen(FieldExternalRef, input.ExternalRef, 255).
		Required(FieldDisplayName, input.DisplayName).
		UTF8(FieldDisplayName, input.DisplayName).
		MaxLen(FieldDisplayName, input.DisplayName, 100).
		Required(FieldEmail, input.Email).
		Email(FieldEmail, input.Email)

	if err := validator.Err(); err != nil {
		respond.Error(writer, request, err)
		return
	}

	grant, err := handler.identityService.StartSession(request.Context(), StartSessionInput{
		ExternalRef: input.ExternalRef,
		DisplayName: input.DisplayName,
		Email:       input.Email,
		UserAgent:   request.UserAgent(),
		IPAddress:   getClientIP(request),
	})

	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	respond.Created(writer, map[string]any{
		FieldCredential: grant.Credential,
		FieldExpiresAt:  grant.ExpiresAt,
		FieldSession:    grant.Session,
	})
}

/*
RevokeSession terminates the caller's current session.

DELETE /api/v1/identity/sessions

Description: Adds the presented credential to the revocation list and removes
the session record, so the credential dies before its natural expiry.

Response:
  - 204: No Content: Session revoked
  - 401: ErrUnauthorized: Missing or invalid credential
*/
func (handler *Handler) revokeSession(writer http.ResponseWriter, request *http.Request) {
	claims, err := requestutil.RequiredClaims(request)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	if err := handler.identityService.RevokeCurrent(request.Context(), claims); err != nil {
		respond.Error(writer, request, err)
		return
	}

	respond.NoContent(writer)
}

/*
ErasePrincipal deletes the caller's account and everything it owns.

DELETE /api/v1/identity/principal

Description: Revokes every live session so outstanding credentials die
immediately, purges quota counters, then deletes the principal row;
payloads and jobs follow by storage-level cascade.

Response:
  - 204: No Content: Account erased
  - 401: ErrUnauthorized: Missing or invalid credential
*/
func (handler *Handler) erasePrincipal(writer http.ResponseWriter, request *http.Request) {
	principalID, err := requestutil.RequiredPrincipalID(request)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	if err := handler.identityService.Erase(request.Context(), principalID); err != nil {
		respond.Error(writer, request, err)
		return
	}

	respond.NoContent(writer)
}

// getClientIP tries to extract the real IP address of a caller over proxy environments.
func getClientIP(request *http.Request) string {

	ip := request.Header.Get("X-Real-IP")
	if ip == "" {
		ip = request.Header.Get("X-Forwarded-For")
	}

	if ip == "" {
		ip = request.RemoteAddr
	}
	return ip
}
