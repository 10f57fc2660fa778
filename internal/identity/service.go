// Copyright (c) 2026 Resumora. All rights reserved.
// Author: engineering@resumora.app

package identity

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/resumora/resumora/internal/platform/apperr"
	"github.com/resumora/resumora/internal/platform/metrics"
	"github.com/resumora/resumora/internal/platform/sec"
	"github.com/resumora/resumora/pkg/uuidv7"
)

// # Contracts & Types

// TokenProvider defines the contract for issuing and verifying bearer credentials.
type TokenProvider interface {
	// Issue creates a signed credential bound to a principal and session.
	//
	// # Parameters
	//   - principalID: The stable identifier of the account.
	//   - sessionID: The session record the credential belongs to.
	//   - credentialID: The identifier tracked by the revocation list.
	//   - timeToLive: The duration before the credential expires.
	//
	// # Returns
	//   - A signed credential string, or an err if signing fails.
	Issue(principalID, sessionID, credentialID string, timeToLive time.Duration) (string, error)

	// Verify checks signature and self-contained expiry of a credential.
	Verify(credential string) (*sec.CredentialClaims, error)
}

// OwnedDataPurger removes principal-owned records that live outside the
// identity domain and are not covered by storage-level cascades.
type OwnedDataPurger interface {
	PurgePrincipal(context context.Context, principalID string) error
}

// Config carries the session lifecycle knobs the service enforces.
type Config struct {
	// SessionCap is the maximum number of live sessions per principal.
	SessionCap int

	// SessionTTL bounds both the session record and the credential lifetime.
	SessionTTL time.Duration

	// RevocationTTL keeps revocation entries queryable past the natural
	// credential expiry, so evicted credentials stay dead.
	RevocationTTL time.Duration
}

// Service implements session and credential lifecycle use cases.
//
// # Review Process
//
// This service is critical for security. Any changes to credential
// verification or revocation logic must be reviewed by the security team.
type Service struct {
	principalRepository PrincipalRepository
	sessionRepository   SessionRepository
	tokenProvider       TokenProvider
	purgers             []OwnedDataPurger
	metrics             *metrics.Metrics
	logger              *slog.Logger
	config              Config
}

// NewService constructs a new identity [Service] with necessary dependencies.
func NewService(
	principalRepo PrincipalRepository,
	sessionRepo SessionRepository,
	tokenProv TokenProvider,
	collector *metrics.Metrics,
	logger *slog.Logger,
	config Config,
	purgers ...OwnedDataPurger,
) *Service {
	return &Service{
		principalRepository: principalRepo,
		sessionRepository:   sessionRepo,
		tokenProvider:       tokenProv,
		purgers:             purgers,
		metrics:             collector,
		logger:              logger,
		config:              config,
	}
}

// # Session Establishment

// StartSessionInput holds the data required to open a session.
type StartSessionInput struct {
	ExternalRef string
	DisplayName string
	Email       string
	UserAgent   string
	IPAddress   string
}

// SessionGrant represents a successfully established session.
type SessionGrant struct {
	Credential string
	ExpiresAt  time.Time
	Session    *Session
	Principal  *Principal
}

/*
StartSession resolves the principal and opens a capped session for it.

Description: Finds or creates the principal behind the upstream reference,
then inserts a session under the per-principal cap. When the cap is full the
oldest session is evicted and its credential revoked; the eviction is
reported through logs and metrics but never fails the call.

Parameters:
  - context: context.Context
  - input: StartSessionInput

Returns:
  - *SessionGrant: Transport-ready credential and session metadata
  - err: Storage or signing failures
*/
func (service *Service) StartSession(context context.Context, input StartSessionInput) (*SessionGrant, error) {

	// Resolve the principal. First session for an upstream identity creates
	// the row; later sessions reuse it.
	principal, err := service.principalRepository.FindByExternalRef(context, input.ExternalRef)
	if err != nil {
		if !apperr.IsAppError(err) {
			return nil, fmt.Errorf("identity_service_principal_lookup_failed: %w", err)
		}

		principal = &Principal{
			ID:          uuidv7.New(),
			ExternalRef: input.ExternalRef,
			DisplayName: input.DisplayName,
			Email:       input.Email,
		}
		if err := service.principalRepository.Create(context, principal); err != nil {
			// Two first logins can race on the externalref uniqueness
			// constraint. The loser adopts the row the winner created.
			if ae := apperr.As(err); ae != nil && ae.Code == "CONFLICT" {
				principal, err = service.principalRepository.FindByExternalRef(context, input.ExternalRef)
				if err != nil {
					return nil, fmt.Errorf("identity_service_principal_lookup_failed: %w", err)
				}
			} else {
				return nil, fmt.Errorf("identity_service_principal_create_failed: %w", err)
			}
		}
	}

	// Time-sortable IDs to prevent PG index fragmentation.
	currentTime := time.Now()
	session := &Session{
		ID:           uuidv7.New(),
		PrincipalID:  principal.ID,
		CredentialID: uuidv7.New(),
		UserAgent:    input.UserAgent,
		IPAddress:    input.IPAddress,
		CreatedAt:    currentTime,
		ExpiresAt:    currentTime.Add(service.config.SessionTTL),
	}

	evictedCredentialID, err := service.sessionRepository.Create(context, session, service.config.SessionCap, service.config.RevocationTTL)
	if err != nil {
		return nil, fmt.Errorf("identity_service_session_creation_failed: %w", err)
	}

	if evictedCredentialID != "" {
		service.metrics.SessionEvictionsTotal.Inc()
		service.logger.Info("session evicted at cap",
			"principal_id", principal.ID,
			"evicted_credential_id", evictedCredentialID,
		)
	}

	credential, err := service.tokenProvider.Issue(principal.ID, session.ID, session.CredentialID, service.config.SessionTTL)
	if err != nil {
		return nil, fmt.Errorf("identity_service_credential_issue_failed: %w", err)
	}

	return &SessionGrant{
		Credential: credential,
		ExpiresAt:  session.ExpiresAt,
		Session:    session,
		Principal:  principal,
	}, nil
}

// # Credential Verification

/*
Authenticate validates a bearer credential end to end.

Description: Checks signature and self-contained expiry, then the revocation
list, then the backing session record. A transient storage failure denies
the request rather than letting an unverifiable credential through.

Parameters:
  - context: context.Context
  - credential: string

Returns:
  - *sec.CredentialClaims: Verified caller identity
  - err: Unauthorized, Revoked, or SessionExpired
*/
func (service *Service) Authenticate(context context.Context, credential string) (*sec.CredentialClaims, error) {
	claims, err := service.tokenProvider.Verify(credential)
	if err != nil {
		return nil, apperr.Unauthorized("Invalid or expired credential")
	}

	// Revocation wins over the credential's own expiry claim.
	revoked, err := service.sessionRepository.IsRevoked(context, claims.CredentialID())
	if err != nil {
		service.logger.Error("revocation check failed, denying", "error", err)
		return nil, apperr.Unauthorized("Credential could not be verified")
	}
	if revoked {
		return nil, apperr.Revoked()
	}

	session, err := service.sessionRepository.FindByID(context, claims.SessionID)
	if err != nil {
		if apperr.IsAppError(err) {
			return nil, apperr.SessionExpired()
		}
		service.logger.Error("session lookup failed, denying", "error", err)
		return nil, apperr.Unauthorized("Credential could not be verified")
	}
	if time.Now().After(session.ExpiresAt) {
		return nil, apperr.SessionExpired()
	}

	// Touch is best-effort bookkeeping only when the row is already gone,
	// but a storage failure still denies.
	if err := service.sessionRepository.Touch(context, claims.SessionID); err != nil {
		if apperr.IsAppError(err) {
			return nil, apperr.SessionExpired()
		}
		service.logger.Error("session touch failed, denying", "error", err)
		return nil, apperr.Unauthorized("Credential could not be verified")
	}

	return claims, nil
}

// # Revocation & Erasure

/*
RevokeCurrent permanently invalidates the caller's active session.

Description: Ensures the presented credential can never be used again, even
before its self-contained expiry.

Parameters:
  - context: context.Context
  - claims: *sec.CredentialClaims

Returns:
  - err: Revocation failures
*/
func (service *Service) RevokeCurrent(context context.Context, claims *sec.CredentialClaims) error {
	if err := service.sessionRepository.Revoke(context, claims.SessionID, claims.CredentialID(), service.config.RevocationTTL); err != nil {
		return fmt.Errorf("identity_service_revoke_failed: %w", err)
	}
	return nil
}

/*
Erase removes a principal and everything it owns.

Description: The account deletion path. Every live session is revoked first
so outstanding credentials die immediately; registered purgers then clear
records without storage-level cascades (quota counters); finally the
principal row is deleted, cascading to payloads and jobs.

Parameters:
  - context: context.Context
  - principalID: string

Returns:
  - err: Revocation, purge, or deletion failures
*/
func (service *Service) Erase(context context.Context, principalID string) error {
	revokedCount, err := service.sessionRepository.RevokeAllForPrincipal(context, principalID, service.config.RevocationTTL)
	if err != nil {
		return fmt.Errorf("identity_service_erase_revoke_failed: %w", err)
	}

	for _, purger := range service.purgers {
		if err := purger.PurgePrincipal(context, principalID); err != nil {
			return fmt.Errorf("identity_service_erase_purge_failed: %w", err)
		}
	}

	if err := service.principalRepository.Delete(context, principalID); err != nil {
		return fmt.Errorf("identity_service_erase_delete_failed: %w", err)
	}

	service.logger.Info("principal erased", "principal_id", principalID, "sessions_revoked", revokedCount)
	return nil
}

// # Maintenance

/*
SweepExpired removes expired sessions and revocation entries.

Description: Scheduled storage reclamation; safe to run at any frequency.

Parameters:
  - context: context.Context

Returns:
  - int64: Sessions removed
  - int64: Revocation entries removed
  - err: Cleanup failures
*/
func (service *Service) SweepExpired(context context.Context) (int64, int64, error) {
	sessionsRemoved, revocationsRemoved, err := service.sessionRepository.SweepExpired(context)
	if err != nil {
		return 0, 0, fmt.Errorf("identity_service_sweep_failed: %w", err)
	}
	return sessionsRemoved, revocationsRemoved, nil
}
