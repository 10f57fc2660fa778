// Copyright (c) 2026 Resumora. All rights reserved.
// Author: engineering@resumora.app

// Package sec provides cryptographic primitives and credential management.
//
// # Architecture
//
// This package isolates security-sensitive code (key derivation, credential
// signing) from the domain logic. It acts as an Infrastructure service
// injected into the Application layer; the identity service consumes it
// through the [TokenService].
package sec

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// CredentialClaims represents the payload embedded inside a bearer credential.
//
// # Why custom claims?
//
// By embedding the principal ID and session ID directly inside the credential,
// the authentication middleware can reconstruct the caller's identity WITHOUT
// a principal lookup on every request. Only the revocation list and the
// session row are consulted, both single-key reads.
//
// The registered ID claim ("jti") is the credential ID tracked by the
// revocation list; revocation wins over the self-contained expiry.
type CredentialClaims struct {
	jwt.RegisteredClaims

	// SessionID binds the credential to one session record.
	SessionID string `json:"sid"`
}

// PrincipalID returns the subject claim, the stable principal identifier.
func (c *CredentialClaims) PrincipalID() string { return c.Subject }

// CredentialID returns the "jti" claim consulted against the revocation list.
func (c *CredentialClaims) CredentialID() string { return c.ID }

// TokenService handles generation and verification of credentials using HS256.
//
// The signing key is derived from the configured session secret via HKDF,
// see [DeriveSigningKey]. A single symmetric key suffices because issuance
// and verification both happen inside this process.
type TokenService struct {
	signingKey []byte
	issuer     string
}

// NewTokenService creates a new TokenService from a derived signing key.
func NewTokenService(signingKey []byte, issuer string) (*TokenService, error) {
	if len(signingKey) < 32 {
		return nil, fmt.Errorf("sec: signing key must be at least 32 bytes, got %d", len(signingKey))
	}
	return &TokenService{signingKey: signingKey, issuer: issuer}, nil
}

// Issue creates a signed credential for a principal bound to a session.
func (service *TokenService) Issue(principalID, sessionID, credentialID string, timeToLive time.Duration) (string, error) {
	currentTime := time.Now()
	claims := CredentialClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   principalID,
			ID:        credentialID,
			Issuer:    service.issuer,
			IssuedAt:  jwt.NewNumericDate(currentTime),
			ExpiresAt: jwt.NewNumericDate(currentTime.Add(timeToLive)),
		},
		SessionID: sessionID,
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signedToken, err := token.SignedString(service.signingKey)
	if err != nil {
		return "", fmt.Errorf("sec: failed to sign credential: %w", err)
	}

	return signedToken, nil
}

// Verify checks the signature and validity of a credential string.
//
// A valid result only proves the credential is well formed and unexpired;
// callers must still consult the revocation list and the session store.
func (service *TokenService) Verify(tokenString string) (*CredentialClaims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &CredentialClaims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("sec: unexpected signing method: %v", token.Header["alg"])
		}
		return service.signingKey, nil
	})

	if err != nil {
		return nil, fmt.Errorf("sec: invalid credential: %w", err)
	}

	claims, ok := token.Claims.(*CredentialClaims)
	if !ok || !token.Valid {
		return nil, fmt.Errorf("sec: invalid credential claims")
	}

	return claims, nil
}
