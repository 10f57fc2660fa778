// Copyright (c) 2026 Resumora. All rights reserved.
// Author: engineering@resumora.app

package identity

import (
	"context"
	"time"
)

// # Principal Data Access

// PrincipalRepository defines the data access contract for principals.
type PrincipalRepository interface {

	/*
		FindByID returns the principal with the given ID.

		Parameters:
		  - context: context.Context
		  - id: string

		Returns:
		  - *Principal: Hydrated entity
		  - error: apperr.NotFound or database retrieval failures
	*/
	FindByID(context context.Context, id string) (*Principal, error)

	/*
		FindByExternalRef returns the principal created from the given
		upstream identity reference.

		Parameters:
		  - context: context.Context
		  - externalRef: string

		Returns:
		  - *Principal: Hydrated entity
		  - error: apperr.NotFound or database retrieval failures
	*/
	FindByExternalRef(context context.Context, externalRef string) (*Principal, error)

	/*
		Create persists a brand-new principal.

		Parameters:
		  - context: context.Context
		  - principal: *Principal

		Returns:
		  - error: Persistence failures
	*/
	Create(context context.Context, principal *Principal) error

	/*
		Delete removes the principal row. Owned sessions, jobs, and
		payloads are removed by the schema's cascade rules.

		Parameters:
		  - context: context.Context
		  - id: string

		Returns:
		  - error: Persistence failures
	*/
	Delete(context context.Context, id string) error
}

// # Session & Revocation Data Access

// SessionRepository owns session records and the revocation list together,
// because cap eviction must move a credential from one to the other inside
// a single transaction.
type SessionRepository interface {

	/*
		Create inserts a session, enforcing the per-principal cap.

		Description: Counts live sessions inside a transaction serialized per
		principal. At the cap, the oldest session is deleted and its
		credential added to the revocation list before the insert.

		Parameters:
		  - context: context.Context
		  - session: *Session (ID, PrincipalID, CredentialID, ExpiresAt set by caller)
		  - cap: int (maximum live sessions per principal)
		  - revocationTTL: time.Duration (lifetime of the eviction's revocation entry)

		Returns:
		  - string: Credential ID of the evicted session, or "" if none
		  - error: Persistence failures
	*/
	Create(context context.Context, session *Session, sessionCap int, revocationTTL time.Duration) (string, error)

	/*
		FindByID returns the session with the given ID regardless of expiry;
		callers decide how to treat expired rows.

		Parameters:
		  - context: context.Context
		  - sessionID: string

		Returns:
		  - *Session: Hydrated entity
		  - error: apperr.NotFound or database retrieval failures
	*/
	FindByID(context context.Context, sessionID string) (*Session, error)

	/*
		Touch refreshes lastactiveat for a live session.

		Parameters:
		  - context: context.Context
		  - sessionID: string

		Returns:
		  - error: apperr.NotFound when the session is missing or expired,
		    otherwise persistence failures
	*/
	Touch(context context.Context, sessionID string) error

	/*
		IsRevoked reports whether the credential has an unexpired entry on
		the revocation list.

		Parameters:
		  - context: context.Context
		  - credentialID: string

		Returns:
		  - bool: true when the credential must be rejected
		  - error: Database retrieval failures
	*/
	IsRevoked(context context.Context, credentialID string) (bool, error)

	/*
		Revoke invalidates one credential and deletes its session.

		Parameters:
		  - context: context.Context
		  - sessionID: string
		  - credentialID: string
		  - revocationTTL: time.Duration

		Returns:
		  - error: Persistence failures
	*/
	Revoke(context context.Context, sessionID, credentialID string, revocationTTL time.Duration) error

	/*
		RevokeAllForPrincipal invalidates every session the principal owns.

		Parameters:
		  - context: context.Context
		  - principalID: string
		  - revocationTTL: time.Duration

		Returns:
		  - int64: Number of sessions revoked
		  - error: Persistence failures
	*/
	RevokeAllForPrincipal(context context.Context, principalID string, revocationTTL time.Duration) (int64, error)

	/*
		SweepExpired deletes expired sessions and expired revocation entries.
		Idempotent; safe to run concurrently with user activity.

		Parameters:
		  - context: context.Context

		Returns:
		  - int64: Sessions removed
		  - int64: Revocation entries removed
		  - error: Persistence failures
	*/
	SweepExpired(context context.Context) (int64, int64, error)
}
