package auth

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/edulearn/portal/internal/apperror"
	"github.com/edulearn/portal/internal/model"
)

const testSecret = "test-secret-that-is-at-least-32-chars!!"

// =========================================================================
// FAKES AND HELPERS
// =========================================================================

// memStore is an in-memory SessionStore. storeErr simulates a broken backend.
type memStore struct {
	mu       sync.Mutex
	sessions map[string]*model.Session
	storeErr error
}

func newMemStore() *memStore {
	return &memStore{sessions: make(map[string]*model.Session)}
}

func (m *memStore) CreateSession(ctx context.Context, s *model.Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.storeErr != nil {
		return m.storeErr
	}
	cp := *s
	m.sessions[s.ID] = &cp
	return nil
}

func (m *memStore) GetSession(ctx context.Context, id string) (*model.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.storeErr != nil {
		return nil, m.storeErr
	}
	s, ok := m.sessions[id]
	if !ok {
		return nil, apperror.NotFound("sessie", id)
	}
	cp := *s
	return &cp, nil
}

func (m *memStore) DeleteSession(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sessions, id)
	return nil
}

func (m *memStore) DeleteUserSessions(ctx context.Context, userID string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	for id, s := range m.sessions {
		if s.UserID == userID {
			delete(m.sessions, id)
			n++
		}
	}
	return n, nil
}

func (m *memStore) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}

func newTestManager(t *testing.T) (*SessionManager, *memStore) {
	t.Helper()
	store := newMemStore()
	m, err := NewSessionManager(testSecret, store)
	if err != nil {
		t.Fatalf("NewSessionManager: %v", err)
	}
	return m, store
}

// =========================================================================
// CONSTRUCTION
// =========================================================================

func TestNewSessionManager_ShortSecret(t *testing.T) {
	if _, err := NewSessionManager("short", newMemStore()); err == nil {
		t.Fatal("NewSessionManager() should reject secrets shorter than 32 chars")
	}
}

func TestNewSessionManager_NilStore(t *testing.T) {
	if _, err := NewSessionManager(testSecret, nil); err == nil {
		t.Fatal("NewSessionManager() should reject a nil store")
	}
}

// =========================================================================
// ISSUE / RESOLVE
// =========================================================================

func TestIssueResolve_RoundTrip(t *testing.T) {
	m, store := newTestManager(t)
	ctx := context.Background()

	issued, err := m.Issue(ctx, "user-123")
	if err != nil {
		t.Fatalf("Issue() error = %v", err)
	}
	if strings.Count(issued.Token, ".") != 2 {
		t.Errorf("token does not look like a JWT: %q", issued.Token)
	}
	if store.count() != 1 {
		t.Errorf("store has %d sessions, want 1", store.count())
	}

	userID, err := m.Resolve(ctx, issued.Token)
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	if userID != "user-123" {
		t.Errorf("Resolve() = %q, want %q", userID, "user-123")
	}
}

func TestIssue_ExpiryIsSevenDays(t *testing.T) {
	m, _ := newTestManager(t)
	fixed := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	m.now = func() time.Time { return fixed }

	issued, err := m.Issue(context.Background(), "user-1")
	if err != nil {
		t.Fatalf("Issue() error = %v", err)
	}
	if want := fixed.Add(7 * 24 * time.Hour); !issued.ExpiresAt.Equal(want) {
		t.Errorf("ExpiresAt = %v, want %v", issued.ExpiresAt, want)
	}
}

func TestIssue_EachLoginGetsOwnSession(t *testing.T) {
	m, store := newTestManager(t)
	ctx := context.Background()

	a, _ := m.Issue(ctx, "user-1")
	b, _ := m.Issue(ctx, "user-1")

	if a.Token == b.Token {
		t.Fatal("two logins produced the same token")
	}
	if store.count() != 2 {
		t.Errorf("store has %d sessions, want 2", store.count())
	}
	for _, tok := range []string{a.Token, b.Token} {
		if _, err := m.Resolve(ctx, tok); err != nil {
			t.Errorf("Resolve() error = %v; earlier sessions must stay valid", err)
		}
	}
}

func TestIssue_EmptyUserID(t *testing.T) {
	m, _ := newTestManager(t)
	if _, err := m.Issue(context.Background(), ""); err == nil {
		t.Fatal("Issue(\"\") should fail")
	}
}

func TestIssue_StoreFailure(t *testing.T) {
	m, store := newTestManager(t)
	store.storeErr = errors.New("disk full")

	if _, err := m.Issue(context.Background(), "user-1"); err == nil {
		t.Fatal("Issue() should surface store errors")
	}
}

func TestResolve_Denials(t *testing.T) {
	m, _ := newTestManager(t)
	ctx := context.Background()

	issued, err := m.Issue(ctx, "user-1")
	if err != nil {
		t.Fatalf("Issue() error = %v", err)
	}

	other, err := NewSessionManager("another-secret-that-is-32-chars-long!", newMemStore())
	if err != nil {
		t.Fatalf("NewSessionManager: %v", err)
	}
	foreign, _ := other.Issue(ctx, "user-1")

	parts := strings.Split(issued.Token, ".")
	tampered := parts[0] + "." + parts[1] + "x." + parts[2]

	noneToken, _ := jwt.NewWithClaims(jwt.SigningMethodNone, jwt.RegisteredClaims{
		Subject: "user-1", ID: "whatever", Issuer: issuer,
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	}).SignedString(jwt.UnsafeAllowNoneSignatureType)

	tests := []struct {
		name  string
		token string
	}{
		{name: "empty", token: ""},
		{name: "garbage", token: "not-a-token"},
		{name: "tampered payload", token: tampered},
		{name: "signed with another secret", token: foreign.Token},
		{name: "alg none", token: noneToken},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := m.Resolve(ctx, tt.token)
			if !errors.Is(err, ErrNoSession) {
				t.Errorf("Resolve() error = %v, want ErrNoSession", err)
			}
		})
	}
}

func TestResolve_Expired(t *testing.T) {
	m, _ := newTestManager(t)
	ctx := context.Background()

	start := time.Now()
	m.now = func() time.Time { return start }
	issued, err := m.Issue(ctx, "user-1")
	if err != nil {
		t.Fatalf("Issue() error = %v", err)
	}

	m.now = func() time.Time { return start.Add(SessionTTL + time.Minute) }
	if _, err := m.Resolve(ctx, issued.Token); !errors.Is(err, ErrNoSession) {
		t.Errorf("Resolve() after TTL error = %v, want ErrNoSession", err)
	}
}

func TestResolve_StoreFailureIsNotErrNoSession(t *testing.T) {
	m, store := newTestManager(t)
	ctx := context.Background()

	issued, _ := m.Issue(ctx, "user-1")
	store.storeErr = errors.New("connection refused")

	_, err := m.Resolve(ctx, issued.Token)
	if err == nil || errors.Is(err, ErrNoSession) {
		t.Errorf("Resolve() error = %v, want a store error distinct from ErrNoSession", err)
	}
}

// =========================================================================
// REVOKE
// =========================================================================

func TestRevoke_ReplayedTokenStopsResolving(t *testing.T) {
	m, store := newTestManager(t)
	ctx := context.Background()

	issued, _ := m.Issue(ctx, "user-1")
	if err := m.Revoke(ctx, issued.Token); err != nil {
		t.Fatalf("Revoke() error = %v", err)
	}
	if store.count() != 0 {
		t.Errorf("store has %d sessions after revoke, want 0", store.count())
	}
	if _, err := m.Resolve(ctx, issued.Token); !errors.Is(err, ErrNoSession) {
		t.Errorf("Resolve() after revoke error = %v, want ErrNoSession", err)
	}
}

func TestRevoke_Idempotent(t *testing.T) {
	m, _ := newTestManager(t)
	ctx := context.Background()

	issued, _ := m.Issue(ctx, "user-1")
	for i := 0; i < 2; i++ {
		if err := m.Revoke(ctx, issued.Token); err != nil {
			t.Fatalf("Revoke() #%d error = %v", i+1, err)
		}
	}
	if err := m.Revoke(ctx, ""); err != nil {
		t.Errorf("Revoke(\"\") error = %v", err)
	}
	if err := m.Revoke(ctx, "garbage"); err != nil {
		t.Errorf("Revoke(garbage) error = %v", err)
	}
}

func TestRevoke_ExpiredTokenStillDeletesRow(t *testing.T) {
	m, store := newTestManager(t)
	ctx := context.Background()

	start := time.Now()
	m.now = func() time.Time { return start }
	issued, _ := m.Issue(ctx, "user-1")

	m.now = func() time.Time { return start.Add(SessionTTL * 2) }
	if err := m.Revoke(ctx, issued.Token); err != nil {
		t.Fatalf("Revoke() error = %v", err)
	}
	if store.count() != 0 {
		t.Errorf("store has %d sessions, want 0", store.count())
	}
}

func TestRevokeAll(t *testing.T) {
	m, _ := newTestManager(t)
	ctx := context.Background()

	a, _ := m.Issue(ctx, "user-1")
	b, _ := m.Issue(ctx, "user-1")
	c, _ := m.Issue(ctx, "user-2")

	n, err := m.RevokeAll(ctx, "user-1")
	if err != nil {
		t.Fatalf("RevokeAll() error = %v", err)
	}
	if n != 2 {
		t.Errorf("RevokeAll() removed %d, want 2", n)
	}
	for _, tok := range []string{a.Token, b.Token} {
		if _, err := m.Resolve(ctx, tok); !errors.Is(err, ErrNoSession) {
			t.Errorf("revoked token still resolves")
		}
	}
	if _, err := m.Resolve(ctx, c.Token); err != nil {
		t.Errorf("other user's session was revoked: %v", err)
	}
}
