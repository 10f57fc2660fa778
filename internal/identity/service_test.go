// Copyright (c) 2026 Resumora. All rights reserved.
// Author: engineering@resumora.app

package identity_test

import (
	"context"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/resumora/resumora/internal/identity"
	"github.com/resumora/resumora/internal/platform/apperr"
	"github.com/resumora/resumora/internal/platform/metrics"
	"github.com/resumora/resumora/internal/platform/sec"
)

// # In-Memory Repositories
//
// The fakes honor the same contracts the PostgreSQL implementations do,
// including the count-evict-insert rule on session creation, so the service
// orchestration can be exercised without a database.

type memoryPrincipalRepository struct {
	mu         sync.Mutex
	byID       map[string]*identity.Principal
	byRef      map[string]*identity.Principal
	deletedIDs []string
	// findMisses makes FindByExternalRef report NotFound that many times
	// even for stored rows, to stage the concurrent first-login race.
	findMisses int
}

func newMemoryPrincipalRepository() *memoryPrincipalRepository {
	return &memoryPrincipalRepository{
		byID:  make(map[string]*identity.Principal),
		byRef: make(map[string]*identity.Principal),
	}
}

func (repo *memoryPrincipalRepository) FindByID(_ context.Context, id string) (*identity.Principal, error) {
	repo.mu.Lock()
	defer repo.mu.Unlock()
	principal, ok := repo.byID[id]
	if !ok {
		return nil, apperr.NotFound("Principal")
	}
	copied := *principal
	return &copied, nil
}

func (repo *memoryPrincipalRepository) FindByExternalRef(_ context.Context, externalRef string) (*identity.Principal, error) {
	repo.mu.Lock()
	defer repo.mu.Unlock()
	if repo.findMisses > 0 {
		repo.findMisses--
		return nil, apperr.NotFound("Principal")
	}
	principal, ok := repo.byRef[externalRef]
	if !ok {
		return nil, apperr.NotFound("Principal")
	}
	copied := *principal
	return &copied, nil
}

func (repo *memoryPrincipalRepository) Create(_ context.Context, principal *identity.Principal) error {
	repo.mu.Lock()
	defer repo.mu.Unlock()
	if _, exists := repo.byRef[principal.ExternalRef]; exists {
		return apperr.Conflict("Resource already exists")
	}
	copied := *principal
	repo.byID[principal.ID] = &copied
	repo.byRef[principal.ExternalRef] = &copied
	return nil
}

func (repo *memoryPrincipalRepository) Delete(_ context.Context, id string) error {
	repo.mu.Lock()
	defer repo.mu.Unlock()
	if principal, ok := repo.byID[id]; ok {
		delete(repo.byRef, principal.ExternalRef)
		delete(repo.byID, id)
	}
	repo.deletedIDs = append(repo.deletedIDs, id)
	return nil
}

type memorySessionRepository struct {
	mu          sync.Mutex
	sessions    map[string]*identity.Session
	revocations map[string]time.Time
}

func newMemorySessionRepository() *memorySessionRepository {
	return &memorySessionRepository{
		sessions:    make(map[string]*identity.Session),
		revocations: make(map[string]time.Time),
	}
}

func (repo *memorySessionRepository) liveCount(principalID string, now time.Time) int {
	count := 0
	for _, session := range repo.sessions {
		if session.PrincipalID == principalID && session.ExpiresAt.After(now) {
			count++
		}
	}
	return count
}

func (repo *memorySessionRepository) Create(_ context.Context, session *identity.Session, sessionCap int, revocationTTL time.Duration) (string, error) {
	repo.mu.Lock()
	defer repo.mu.Unlock()

	now := time.Now()
	evicted := ""
	if repo.liveCount(session.PrincipalID, now) >= sessionCap {
		var oldest *identity.Session
		for _, candidate := range repo.sessions {
			if candidate.PrincipalID != session.PrincipalID || !candidate.ExpiresAt.After(now) {
				continue
			}
			if oldest == nil || candidate.CreatedAt.Before(oldest.CreatedAt) {
				oldest = candidate
			}
		}
		if oldest != nil {
			evicted = oldest.CredentialID
			delete(repo.sessions, oldest.ID)
			repo.revocations[evicted] = now.Add(revocationTTL)
		}
	}

	session.LastActiveAt = session.CreatedAt
	copied := *session
	repo.sessions[session.ID] = &copied
	return evicted, nil
}

func (repo *memorySessionRepository) FindByID(_ context.Context, sessionID string) (*identity.Session, error) {
	repo.mu.Lock()
	defer repo.mu.Unlock()
	session, ok := repo.sessions[sessionID]
	if !ok {
		return nil, apperr.NotFound("Session")
	}
	copied := *session
	return &copied, nil
}

func (repo *memorySessionRepository) Touch(_ context.Context, sessionID string) error {
	repo.mu.Lock()
	defer repo.mu.Unlock()
	session, ok := repo.sessions[sessionID]
	if !ok || !session.ExpiresAt.After(time.Now()) {
		return apperr.NotFound("Session")
	}
	session.LastActiveAt = time.Now()
	return nil
}

func (repo *memorySessionRepository) IsRevoked(_ context.Context, credentialID string) (bool, error) {
	repo.mu.Lock()
	defer repo.mu.Unlock()
	expiry, ok := repo.revocations[credentialID]
	return ok && expiry.After(time.Now()), nil
}

func (repo *memorySessionRepository) Revoke(_ context.Context, sessionID, credentialID string, revocationTTL time.Duration) error {
	repo.mu.Lock()
	defer repo.mu.Unlock()
	repo.revocations[credentialID] = time.Now().Add(revocationTTL)
	delete(repo.sessions, sessionID)
	return nil
}

func (repo *memorySessionRepository) RevokeAllForPrincipal(_ context.Context, principalID string, revocationTTL time.Duration) (int64, error) {
	repo.mu.Lock()
	defer repo.mu.Unlock()
	var revoked int64
	for id, session := range repo.sessions {
		if session.PrincipalID != principalID {
			continue
		}
		repo.revocations[session.CredentialID] = time.Now().Add(revocationTTL)
		delete(repo.sessions, id)
		revoked++
	}
	return revoked, nil
}

func (repo *memorySessionRepository) SweepExpired(_ context.Context) (int64, int64, error) {
	repo.mu.Lock()
	defer repo.mu.Unlock()
	now := time.Now()
	var sessionsRemoved, revocationsRemoved int64
	for id, session := range repo.sessions {
		if !session.ExpiresAt.After(now) {
			delete(repo.sessions, id)
			sessionsRemoved++
		}
	}
	for credentialID, expiry := range repo.revocations {
		if !expiry.After(now) {
			delete(repo.revocations, credentialID)
			revocationsRemoved++
		}
	}
	return sessionsRemoved, revocationsRemoved, nil
}

// # Harness

type identityFixture struct {
	service    *identity.Service
	principals *memoryPrincipalRepository
	sessions   *memorySessionRepository
}

func newIdentityFixture(t *testing.T, sessionCap int) *identityFixture {
	t.Helper()

	tokens, err := sec.NewTokenService([]byte("0123456789abcdef0123456789abcdef"), "resumora.test")
	require.NoError(t, err)

	principals := newMemoryPrincipalRepository()
	sessions := newMemorySessionRepository()

	service := identity.NewService(
		principals,
		sessions,
		tokens,
		metrics.NewWithRegisterer(prometheus.NewRegistry()),
		slog.Default(),
		identity.Config{
			SessionCap:    sessionCap,
			SessionTTL:    time.Hour,
			RevocationTTL: 7 * 24 * time.Hour,
		},
	)

	return &identityFixture{service: service, principals: principals, sessions: sessions}
}

func (fixture *identityFixture) startSession(t *testing.T, externalRef string) *identity.SessionGrant {
	t.Helper()
	grant, err := fixture.service.StartSession(context.Background(), identity.StartSessionInput{
		ExternalRef: externalRef,
		DisplayName: "Jane Smith",
		Email:       "jane@resumora.app",
	})
	require.NoError(t, err)
	return grant
}

// # Tests

/*
TestService_StartSession_CreatesPrincipalOnFirstUse verifies that the first
session for an upstream reference creates the principal row and later
sessions reuse it.
*/
func TestService_StartSession_CreatesPrincipalOnFirstUse(t *testing.T) {
	fixture := newIdentityFixture(t, 5)

	first := fixture.startSession(t, "upstream|jane")
	second := fixture.startSession(t, "upstream|jane")

	assert.NotEmpty(t, first.Credential)
	assert.Equal(t, first.Principal.ID, second.Principal.ID)
	assert.NotEqual(t, first.Session.ID, second.Session.ID)
	assert.Len(t, fixture.principals.byID, 1)
}

/*
TestService_StartSession_ConcurrentFirstLoginAdoptsWinner verifies the race
where two first logins arrive together: the losing insert sees the
uniqueness conflict and adopts the row the winner created.
*/
func TestService_StartSession_ConcurrentFirstLoginAdoptsWinner(t *testing.T) {
	fixture := newIdentityFixture(t, 5)

	winner := fixture.startSession(t, "upstream|jane")

	// Stage the loser: its lookup misses, its insert conflicts, and the
	// follow-up lookup lands on the winner's row.
	fixture.principals.mu.Lock()
	fixture.principals.findMisses = 1
	fixture.principals.mu.Unlock()

	loser := fixture.startSession(t, "upstream|jane")

	assert.Equal(t, winner.Principal.ID, loser.Principal.ID)
	assert.Len(t, fixture.principals.byID, 1)
}

/*
TestService_SessionCap_EvictsOldest verifies the session cap invariant: the
live session count never exceeds the cap, each eviction removes the oldest
session, and evicted credentials land on the revocation list.
*/
func TestService_SessionCap_EvictsOldest(t *testing.T) {
	const sessionCap = 3
	fixture := newIdentityFixture(t, sessionCap)

	grants := make([]*identity.SessionGrant, 0, sessionCap+2)
	for i := 0; i < sessionCap+2; i++ {
		// Distinct created-at ordering for deterministic eviction.
		time.Sleep(2 * time.Millisecond)
		grants = append(grants, fixture.startSession(t, "upstream|jane"))
	}

	fixture.sessions.mu.Lock()
	liveSessions := len(fixture.sessions.sessions)
	fixture.sessions.mu.Unlock()
	assert.Equal(t, sessionCap, liveSessions)

	// The two oldest grants were evicted in order and their credentials revoked.
	for _, evicted := range grants[:2] {
		revoked, err := fixture.sessions.IsRevoked(context.Background(), evicted.Session.CredentialID)
		require.NoError(t, err)
		assert.True(t, revoked)

		_, err = fixture.service.Authenticate(context.Background(), evicted.Credential)
		require.Error(t, err)
		ae := apperr.As(err)
		require.NotNil(t, ae)
		assert.Equal(t, "REVOKED", ae.Code)
	}

	// The newest grants still authenticate.
	for _, live := range grants[2:] {
		claims, err := fixture.service.Authenticate(context.Background(), live.Credential)
		require.NoError(t, err)
		assert.Equal(t, live.Principal.ID, claims.PrincipalID())
	}
}

/*
TestService_Authenticate covers the verification order: malformed credential,
revocation, and a deleted session record.
*/
func TestService_Authenticate(t *testing.T) {
	fixture := newIdentityFixture(t, 5)
	grant := fixture.startSession(t, "upstream|jane")

	t.Run("valid_credential", func(t *testing.T) {
		claims, err := fixture.service.Authenticate(context.Background(), grant.Credential)
		require.NoError(t, err)
		assert.Equal(t, grant.Principal.ID, claims.PrincipalID())
		assert.Equal(t, grant.Session.ID, claims.SessionID)
	})

	t.Run("garbage_credential", func(t *testing.T) {
		_, err := fixture.service.Authenticate(context.Background(), "not-a-credential")
		require.Error(t, err)
		ae := apperr.As(err)
		require.NotNil(t, ae)
		assert.Equal(t, "UNAUTHORIZED", ae.Code)
	})

	t.Run("revoked_credential", func(t *testing.T) {
		revokedGrant := fixture.startSession(t, "upstream|jane")
		claims, err := fixture.service.Authenticate(context.Background(), revokedGrant.Credential)
		require.NoError(t, err)

		require.NoError(t, fixture.service.RevokeCurrent(context.Background(), claims))

		_, err = fixture.service.Authenticate(context.Background(), revokedGrant.Credential)
		require.Error(t, err)
		ae := apperr.As(err)
		require.NotNil(t, ae)
		assert.Equal(t, "REVOKED", ae.Code)
	})

	t.Run("session_record_gone", func(t *testing.T) {
		orphanGrant := fixture.startSession(t, "upstream|jane")

		// Remove the backing row without revoking, as an expiry sweep would.
		fixture.sessions.mu.Lock()
		delete(fixture.sessions.sessions, orphanGrant.Session.ID)
		fixture.sessions.mu.Unlock()

		_, err := fixture.service.Authenticate(context.Background(), orphanGrant.Credential)
		require.Error(t, err)
		ae := apperr.As(err)
		require.NotNil(t, ae)
		assert.Equal(t, "SESSION_EXPIRED", ae.Code)
	})
}

/*
TestService_Erase verifies account erasure: every session is revoked and the
principal row is deleted.
*/
func TestService_Erase(t *testing.T) {
	fixture := newIdentityFixture(t, 5)

	first := fixture.startSession(t, "upstream|jane")
	second := fixture.startSession(t, "upstream|jane")

	require.NoError(t, fixture.service.Erase(context.Background(), first.Principal.ID))

	for _, grant := range []*identity.SessionGrant{first, second} {
		_, err := fixture.service.Authenticate(context.Background(), grant.Credential)
		require.Error(t, err)
		ae := apperr.As(err)
		require.NotNil(t, ae)
		assert.Equal(t, "REVOKED", ae.Code)
	}

	_, err := fixture.principals.FindByID(context.Background(), first.Principal.ID)
	require.Error(t, err)
	assert.Contains(t, fixture.principals.deletedIDs, first.Principal.ID)
}

/*
TestService_SweepExpired verifies that expired sessions and revocation
entries are removed and live ones survive.
*/
func TestService_SweepExpired(t *testing.T) {
	fixture := newIdentityFixture(t, 5)
	live := fixture.startSession(t, "upstream|jane")

	// Plant an already-expired session and a stale revocation entry.
	fixture.sessions.mu.Lock()
	fixture.sessions.sessions["expired-session"] = &identity.Session{
		ID:           "expired-session",
		PrincipalID:  live.Principal.ID,
		CredentialID: "expired-credential",
		CreatedAt:    time.Now().Add(-48 * time.Hour),
		ExpiresAt:    time.Now().Add(-24 * time.Hour),
	}
	fixture.sessions.revocations["stale-credential"] = time.Now().Add(-time.Minute)
	fixture.sessions.mu.Unlock()

	sessionsRemoved, revocationsRemoved, err := fixture.service.SweepExpired(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(1), sessionsRemoved)
	assert.Equal(t, int64(1), revocationsRemoved)

	_, err = fixture.service.Authenticate(context.Background(), live.Credential)
	assert.NoError(t, err)
}
