// Copyright (c) 2026 Resumora. All rights reserved.
// Author: engineering@resumora.app

// PostgreSQL implementations of the identity repositories.
//
// # Error Mapping
//
// Storage-specific errors (like pgx.ErrNoRows) are mapped to domain-friendly
// [apperr.AppError] types to avoid leaking storage implementation details.
package identity

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/resumora/resumora/internal/platform/apperr"
	"github.com/resumora/resumora/internal/platform/dberr"
)

// # Principal Repository

// PostgresPrincipalRepository implements the PrincipalRepository interface using pgx.
type PostgresPrincipalRepository struct {
	pool *pgxpool.Pool
}

// NewPrincipalRepository creates a new PostgreSQL implementation of the PrincipalRepository.
func NewPrincipalRepository(pool *pgxpool.Pool) *PostgresPrincipalRepository {
	return &PostgresPrincipalRepository{pool: pool}
}

/*
FindByID retrieves a principal record by its unique ID.

Parameters:
  - context: context.Context
  - id: string (UUIDv7)

Returns:
  - *Principal: Hydrated entity
  - error: apperr.NotFound or execution errors
*/
func (repository *PostgresPrincipalRepository) FindByID(context context.Context, id string) (*Principal, error) {
	const query = `
		SELECT id, externalref, displayname, email, createdat
		FROM principals
		WHERE id = $1`

	principal := &Principal{}
	err := repository.pool.QueryRow(context, query, id).Scan(
		&principal.ID,
		&principal.ExternalRef,
		&principal.DisplayName,
		&principal.Email,
		&principal.CreatedAt,
	)

	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperr.NotFound("Principal")
		}
		return nil, fmt.Errorf("postgres_principal_repo_find_by_id_failed: %w", err)
	}

	return principal, nil
}

/*
FindByExternalRef retrieves a principal by its upstream identity reference.

Description: Resolution step for session creation; the reference is unique
per upstream identity.

Parameters:
  - context: context.Context
  - externalRef: string

Returns:
  - *Principal: Hydrated entity
  - error: apperr.NotFound or execution errors
*/
func (repository *PostgresPrincipalRepository) FindByExternalRef(context context.Context, externalRef string) (*Principal, error) {
	const query = `
		SELECT id, externalref, displayname, email, createdat
		FROM principals
		WHERE externalref = $1`

	principal := &Principal{}
	err := repository.pool.QueryRow(context, query, externalRef).Scan(
		&principal.ID,
		&principal.ExternalRef,
		&principal.DisplayName,
		&principal.Email,
		&principal.CreatedAt,
	)

	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperr.NotFound("Principal")
		}
		return nil, fmt.Errorf("postgres_principal_repo_find_by_ref_failed: %w", err)
	}

	return principal, nil
}

/*
Create persists a new principal record.

Parameters:
  - context: context.Context
  - principal: *Principal

Returns:
  - error: Constraint violations or connectivity errors
*/
func (repository *PostgresPrincipalRepository) Create(context context.Context, principal *Principal) error {
	const query = `
		INSERT INTO principals (id, externalref, displayname, email, createdat)
		VALUES ($1, $2, $3, $4, $5)`

	if principal.CreatedAt.IsZero() {
		principal.CreatedAt = time.Now()
	}

	_, err := repository.pool.Exec(context, query,
		principal.ID,
		principal.ExternalRef,
		principal.DisplayName,
		principal.Email,
		principal.CreatedAt,
	)

	// Unique violations on externalref surface as apperr.Conflict so the
	// service can resolve the concurrent first-login race.
	if err != nil {
		return dberr.Wrap(err, "postgres_principal_repo_create_failed")
	}

	return nil
}

/*
Delete removes a principal row, cascading to every owned record.

Description: The erasure path. Sessions, payloads, jobs, and quota counters
reference principals with ON DELETE CASCADE; revocation entries survive on
purpose so evicted credentials stay invalid until their TTL.

Parameters:
  - context: context.Context
  - id: string

Returns:
  - error: Execution errors
*/
func (repository *PostgresPrincipalRepository) Delete(context context.Context, id string) error {
	const query = "DELETE FROM principals WHERE id = $1"
	_, err := repository.pool.Exec(context, query, id)
	if err != nil {
		return fmt.Errorf("postgres_principal_repo_delete_failed: %w", err)
	}
	return nil
}

// # Session Repository

// PostgresSessionRepository implements the SessionRepository interface.
type PostgresSessionRepository struct {
	pool *pgxpool.Pool
}

// NewSessionRepository creates a new PostgreSQL implementation of SessionRepository.
func NewSessionRepository(pool *pgxpool.Pool) *PostgresSessionRepository {
	return &PostgresSessionRepository{pool: pool}
}

/*
Create persists a new session record, enforcing the per-principal cap.

Description: The whole count-evict-insert sequence runs inside one
transaction holding a per-principal advisory lock, so two concurrent creates
for the same principal serialize and the cap holds exactly.

Parameters:
  - context: context.Context
  - session: *Session
  - cap: int
  - revocationTTL: time.Duration

Returns:
  - string: Credential ID of the evicted session ("" when under the cap)
  - error: Storage failures
*/
func (repository *PostgresSessionRepository) Create(context context.Context, session *Session, sessionCap int, revocationTTL time.Duration) (string, error) {
	transaction, err := repository.pool.Begin(context)
	if err != nil {
		return "", fmt.Errorf("postgres_session_repo_begin_failed: %w", err)
	}
	defer func() { _ = transaction.Rollback(context) }()

	// Serialize concurrent creates for the same principal. The lock is
	// released automatically at commit/rollback.
	if _, err := transaction.Exec(context, "SELECT pg_advisory_xact_lock(hashtext($1))", session.PrincipalID); err != nil {
		return "", fmt.Errorf("postgres_session_repo_lock_failed: %w", err)
	}

	var liveCount int
	const countQuery = `
		SELECT COUNT(*) FROM sessions
		WHERE principalid = $1 AND expiresat > NOW()`
	if err := transaction.QueryRow(context, countQuery, session.PrincipalID).Scan(&liveCount); err != nil {
		return "", fmt.Errorf("postgres_session_repo_count_failed: %w", err)
	}

	evictedCredentialID := ""
	if liveCount >= sessionCap {
		// Evict the oldest live session and capture its credential.
		const evictQuery = `
			DELETE FROM sessions
			WHERE id = (
				SELECT id FROM sessions
				WHERE principalid = $1 AND expiresat > NOW()
				ORDER BY createdat ASC
				LIMIT 1
			)
			RETURNING credentialid`
		if err := transaction.QueryRow(context, evictQuery, session.PrincipalID).Scan(&evictedCredentialID); err != nil {
			return "", fmt.Errorf("postgres_session_repo_evict_failed: %w", err)
		}

		const revokeQuery = `
			INSERT INTO revocations (credentialid, revokedat, expiresat)
			VALUES ($1, NOW(), $2)
			ON CONFLICT (credentialid) DO UPDATE SET expiresat = EXCLUDED.expiresat`
		if _, err := transaction.Exec(context, revokeQuery, evictedCredentialID, time.Now().Add(revocationTTL)); err != nil {
			return "", fmt.Errorf("postgres_session_repo_evict_revoke_failed: %w", err)
		}
	}

	if session.CreatedAt.IsZero() {
		session.CreatedAt = time.Now()
	}
	session.LastActiveAt = session.CreatedAt

	const insertQuery = `
		INSERT INTO sessions (
			id, principalid, credentialid, useragent, ipaddress, createdat, lastactiveat, expiresat
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`
	_, err = transaction.Exec(context, insertQuery,
		session.ID,
		session.PrincipalID,
		session.CredentialID,
		session.UserAgent,
		session.IPAddress,
		session.CreatedAt,
		session.LastActiveAt,
		session.ExpiresAt,
	)
	if err != nil {
		return "", fmt.Errorf("postgres_session_repo_create_failed: %w", err)
	}

	if err := transaction.Commit(context); err != nil {
		return "", fmt.Errorf("postgres_session_repo_commit_failed: %w", err)
	}

	return evictedCredentialID, nil
}

/*
FindByID retrieves a session by its unique ID.

Parameters:
  - context: context.Context
  - sessionID: string

Returns:
  - *Session: Hydrated session metadata
  - error: apperr.NotFound or execution errors
*/
func (repository *PostgresSessionRepository) FindByID(context context.Context, sessionID string) (*Session, error) {
	const query = `
		SELECT id, principalid, credentialid, useragent, ipaddress, createdat, lastactiveat, expiresat
		FROM sessions
		WHERE id = $1`

	session := &Session{}
	err := repository.pool.QueryRow(context, query, sessionID).Scan(
		&session.ID,
		&session.PrincipalID,
		&session.CredentialID,
		&session.UserAgent,
		&session.IPAddress,
		&session.CreatedAt,
		&session.LastActiveAt,
		&session.ExpiresAt,
	)

	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperr.NotFound("Session")
		}
		return nil, fmt.Errorf("postgres_session_repo_find_failed: %w", err)
	}

	return session, nil
}

/*
Touch refreshes lastactiveat for a live session.

Parameters:
  - context: context.Context
  - sessionID: string

Returns:
  - error: apperr.NotFound when missing or expired, otherwise execution errors
*/
func (repository *PostgresSessionRepository) Touch(context context.Context, sessionID string) error {
	const query = `
		UPDATE sessions SET lastactiveat = NOW()
		WHERE id = $1 AND expiresat > NOW()`

	tag, err := repository.pool.Exec(context, query, sessionID)
	if err != nil {
		return fmt.Errorf("postgres_session_repo_touch_failed: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperr.NotFound("Session")
	}
	return nil
}

/*
IsRevoked reports whether a credential has an unexpired revocation entry.

Parameters:
  - context: context.Context
  - credentialID: string

Returns:
  - bool: true when the credential must be rejected
  - error: Execution errors
*/
func (repository *PostgresSessionRepository) IsRevoked(context context.Context, credentialID string) (bool, error) {
	const query = `
		SELECT EXISTS (
			SELECT 1 FROM revocations
			WHERE credentialid = $1 AND expiresat > NOW()
		)`

	var revoked bool
	if err := repository.pool.QueryRow(context, query, credentialID).Scan(&revoked); err != nil {
		return false, fmt.Errorf("postgres_session_repo_is_revoked_failed: %w", err)
	}
	return revoked, nil
}

/*
Revoke invalidates one credential and deletes its session.

Description: Both writes run in one transaction so a crash can never leave a
deleted session whose credential still verifies.

Parameters:
  - context: context.Context
  - sessionID: string
  - credentialID: string
  - revocationTTL: time.Duration

Returns:
  - error: Revocation failures
*/
func (repository *PostgresSessionRepository) Revoke(context context.Context, sessionID, credentialID string, revocationTTL time.Duration) error {
	transaction, err := repository.pool.Begin(context)
	if err != nil {
		return fmt.Errorf("postgres_session_repo_begin_failed: %w", err)
	}
	defer func() { _ = transaction.Rollback(context) }()

	const revokeQuery = `
		INSERT INTO revocations (credentialid, revokedat, expiresat)
		VALUES ($1, NOW(), $2)
		ON CONFLICT (credentialid) DO UPDATE SET expiresat = EXCLUDED.expiresat`
	if _, err := transaction.Exec(context, revokeQuery, credentialID, time.Now().Add(revocationTTL)); err != nil {
		return fmt.Errorf("postgres_session_repo_revoke_failed: %w", err)
	}

	const deleteQuery = "DELETE FROM sessions WHERE id = $1"
	if _, err := transaction.Exec(context, deleteQuery, sessionID); err != nil {
		return fmt.Errorf("postgres_session_repo_delete_failed: %w", err)
	}

	if err := transaction.Commit(context); err != nil {
		return fmt.Errorf("postgres_session_repo_commit_failed: %w", err)
	}
	return nil
}

/*
RevokeAllForPrincipal invalidates every session the principal owns.

Description: Moves all of the principal's credentials onto the revocation
list, then deletes the session rows, in one transaction.

Parameters:
  - context: context.Context
  - principalID: string
  - revocationTTL: time.Duration

Returns:
  - int64: Number of sessions revoked
  - error: Batch revocation failures
*/
func (repository *PostgresSessionRepository) RevokeAllForPrincipal(context context.Context, principalID string, revocationTTL time.Duration) (int64, error) {
	transaction, err := repository.pool.Begin(context)
	if err != nil {
		return 0, fmt.Errorf("postgres_session_repo_begin_failed: %w", err)
	}
	defer func() { _ = transaction.Rollback(context) }()

	const revokeQuery = `
		INSERT INTO revocations (credentialid, revokedat, expiresat)
		SELECT credentialid, NOW(), $2 FROM sessions WHERE principalid = $1
		ON CONFLICT (credentialid) DO UPDATE SET expiresat = EXCLUDED.expiresat`
	if _, err := transaction.Exec(context, revokeQuery, principalID, time.Now().Add(revocationTTL)); err != nil {
		return 0, fmt.Errorf("postgres_session_repo_revoke_all_failed: %w", err)
	}

	const deleteQuery = "DELETE FROM sessions WHERE principalid = $1"
	tag, err := transaction.Exec(context, deleteQuery, principalID)
	if err != nil {
		return 0, fmt.Errorf("postgres_session_repo_delete_all_failed: %w", err)
	}

	if err := transaction.Commit(context); err != nil {
		return 0, fmt.Errorf("postgres_session_repo_commit_failed: %w", err)
	}
	return tag.RowsAffected(), nil
}

/*
SweepExpired permanently removes expired sessions and revocation entries.

Description: Cleanup task to reclaim storage; each DELETE stands alone so a
partial pass is safe to rerun.

Parameters:
  - context: context.Context

Returns:
  - int64: Sessions removed
  - int64: Revocation entries removed
  - error: Cleanup failures
*/
func (repository *PostgresSessionRepository) SweepExpired(context context.Context) (int64, int64, error) {
	const sessionQuery = "DELETE FROM sessions WHERE expiresat <= NOW()"
	sessionTag, err := repository.pool.Exec(context, sessionQuery)
	if err != nil {
		return 0, 0, fmt.Errorf("postgres_session_repo_sweep_sessions_failed: %w", err)
	}

	const revocationQuery = "DELETE FROM revocations WHERE expiresat <= NOW()"
	revocationTag, err := repository.pool.Exec(context, revocationQuery)
	if err != nil {
		return sessionTag.RowsAffected(), 0, fmt.Errorf("postgres_session_repo_sweep_revocations_failed: %w", err)
	}

	return sessionTag.RowsAffected(), revocationTag.RowsAffected(), nil
}
