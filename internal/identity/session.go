// Copyright (c) 2026 Resumora. All rights reserved.
// Author: engineering@resumora.app

package identity

import "time"

// # Domain Entities

// Principal is the identified end user owning sessions, jobs, and quotas.
//
// A principal is created on the first authenticated interaction and removed
// only by an erasure request, which cascades to every owned record.
type Principal struct {
	// ID is the stable opaque identifier (UUIDv7) used across all tables.
	ID string `json:"id"`
	// ExternalRef is the upstream identity reference this principal was
	// created from. Unique; never shown to other principals.
	ExternalRef string `json:"-"`
	// DisplayName is the human-readable name used for artifact slugs.
	DisplayName string `json:"displayName"`
	// Email is the contact address carried from the identity assertion.
	Email string `json:"email"`
	// CreatedAt is the first-interaction timestamp.
	CreatedAt time.Time `json:"createdAt"`
}

// Session represents one authenticated device/browser for a principal.
//
// The number of live (non-expired) sessions per principal is capped;
// creating one past the cap evicts the oldest and revokes its credential.
type Session struct {
	// ID uniquely identifies the session (UUIDv7).
	ID string `json:"id"`
	// PrincipalID is the owner of this session.
	PrincipalID string `json:"principalId"`
	// CredentialID is the "jti" of the bearer credential bound to this session.
	CredentialID string `json:"-"`
	// UserAgent records the client software for audit purposes.
	UserAgent string `json:"userAgent"`
	// IPAddress records the remote address observed at creation.
	IPAddress string `json:"-"`
	// CreatedAt orders sessions for cap eviction (oldest first).
	CreatedAt time.Time `json:"createdAt"`
	// LastActiveAt is refreshed on every authenticated request.
	LastActiveAt time.Time `json:"lastActiveAt"`
	// ExpiresAt is the hard end of the session's life.
	ExpiresAt time.Time `json:"expiresAt"`
}

// Revocation invalidates one credential until the entry itself expires.
//
// A revoked credential is rejected even while its self-contained expiration
// claim is still in the future.
type Revocation struct {
	// CredentialID is the "jti" being invalidated.
	CredentialID string
	// RevokedAt records when the invalidation happened.
	RevokedAt time.Time
	// ExpiresAt bounds how long the entry is kept queryable, typically the
	// credential's natural expiry plus a safety margin.
	ExpiresAt time.Time
}

// # Field Identifiers

// Global field names for validation and response mapping in the identity domain.
const (
	FieldExternalRef = "externalRef"
	FieldDisplayName = "displayName"
	FieldEmail       = "email"
	FieldCredential  = "credential"
	FieldExpiresAt   = "expiresAt"
	FieldSession     = "session"
	FieldMessage     = "message"
)
