// Copyright (c) 2026 Resumora. All rights reserved.
// Author: engineering@resumora.app

/*
Package request provides utilities for extracting data from HTTP requests.

It abstracts away the underlying router's parameter extraction and common
body decoding patterns, ensuring consistent error handling and type safety.
*/
package requestutil

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/resumora/resumora/internal/platform/apperr"
	"github.com/resumora/resumora/internal/platform/ctxutil"
	"github.com/resumora/resumora/internal/platform/sec"
	"github.com/resumora/resumora/internal/platform/validate"
)

/*
DecodeJSON reads the request body and decodes it into the target structure.

Parameters:
  - request: *http.Request
  - target: interface{} (Pointer to the destination struct)

Returns:
  - error: validate.ErrInvalidJSON if decoding fails, otherwise nil
*/
func DecodeJSON(request *http.Request, target interface{}) error {
	if err := json.NewDecoder(request.Body).Decode(target); err != nil {
		return validate.ErrInvalidJSON
	}
	return nil
}

/*
ID retrieves a named URL parameter (UUID/Slug) from the request.
*/
func ID(request *http.Request, name string) string {
	return chi.URLParam(request, name)
}

/*
Param retrieves a named URL parameter from the request.
*/
func Param(request *http.Request, name string) string {
	return chi.URLParam(request, name)
}

/*
Claims extracts the authenticated credential claims from the request context.

Returns nil if the request is not authenticated.
*/
func Claims(request *http.Request) *sec.CredentialClaims {
	return ctxutil.GetPrincipal(request.Context())
}

/*
RequiredClaims ensures the request is authenticated and returns the credential claims.

Returns:
  - *sec.CredentialClaims: The authenticated credential claims
  - error: apperr.Unauthorized if the request is not authenticated
*/
func RequiredClaims(request *http.Request) (*sec.CredentialClaims, error) {

	// Get credential claims
	claims := ctxutil.GetPrincipal(request.Context())

	// If the caller is not authenticated, return an error
	if claims == nil {
		return nil, apperr.Unauthorized("Authentication required")
	}

	return claims, nil
}

/*
RequiredPrincipalID returns the principal ID of the currently authenticated caller.

Returns:
  - string: Principal UUID
  - error: apperr.Unauthorized if not authenticated
*/
func RequiredPrincipalID(request *http.Request) (string, error) {

	// Get credential claims
	claims, err := RequiredClaims(request)

	// If the caller is not authenticated, return an error
	if err != nil {
		return "", err
	}

	return claims.PrincipalID(), nil
}
