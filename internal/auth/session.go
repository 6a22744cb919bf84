// SESSION FLOW OVERVIEW:
//  1. Login/register succeeds → Issue stores a session row and signs a token
//  2. The token travels in the HttpOnly "session_user_id" cookie
//  3. Every request → Resolve verifies the signature, then looks the row up
//  4. Logout → Revoke deletes the row; the cookie is dead even if replayed
//
// WHY SIGNED TOKEN + SERVER ROW?
// The signature (HS256) lets us reject forged or corrupted cookies without a
// database round trip. The row makes revocation real: logout, password reset
// and admin lockout delete rows, and a token whose row is gone never resolves.
//
// TOKEN STRUCTURE (standard JWT, three base64 parts):
//
//	{"alg":"HS256","typ":"JWT"} . {"sub":"<userID>","jti":"<sessionID>","exp":...,"iss":"edulearn"} . HMAC
package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/rs/xid"

	"github.com/edulearn/portal/internal/apperror"
	"github.com/edulearn/portal/internal/model"
)

const (
	// SessionTTL is fixed from issuance; sessions are not extended on use.
	SessionTTL = 7 * 24 * time.Hour

	// MinSecretLength guards against toy signing keys in production.
	MinSecretLength = 32

	issuer = "edulearn"
)

// ErrNoSession is returned by Resolve for every ordinary denial: missing,
// malformed, forged, expired or revoked token. Callers treat it as anonymous.
var ErrNoSession = errors.New("auth: no valid session")

// SessionStore persists session rows. Implemented by the SQLite repository
// and by the Redis store; GetSession returns an apperror.ErrNotFound error
// for unknown ids and DeleteSession is idempotent.
type SessionStore interface {
	CreateSession(ctx context.Context, s *model.Session) error
	GetSession(ctx context.Context, id string) (*model.Session, error)
	DeleteSession(ctx context.Context, id string) error
	DeleteUserSessions(ctx context.Context, userID string) (int64, error)
}

// SessionManager issues, resolves and revokes sessions.
type SessionManager struct {
	secret []byte
	store  SessionStore
	ttl    time.Duration
	now    func() time.Time
}

// NewSessionManager creates a SessionManager signing with secret.
// Generate a secret with: openssl rand -hex 32
func NewSessionManager(secret string, store SessionStore) (*SessionManager, error) {
	if len(secret) < MinSecretLength {
		return nil, fmt.Errorf("auth: session secret must be at least %d characters", MinSecretLength)
	}
	if store == nil {
		return nil, errors.New("auth: session store is required")
	}
	return &SessionManager{
		secret: []byte(secret),
		store:  store,
		ttl:    SessionTTL,
		now:    time.Now,
	}, nil
}

// IssuedSession is what a handler needs to set the cookie.
type IssuedSession struct {
	Token     string
	ExpiresAt time.Time
}

type claims struct {
	jwt.RegisteredClaims
}

// Issue creates a new session for userID. Earlier sessions of the same user
// stay valid: one row per login event.
func (m *SessionManager) Issue(ctx context.Context, userID string) (*IssuedSession, error) {
	if userID == "" {
		return nil, errors.New("auth: cannot issue session without user id")
	}

	now := m.now().UTC()
	sess := &model.Session{
		ID:        xid.New().String(),
		UserID:    userID,
		CreatedAt: now,
		ExpiresAt: now.Add(m.ttl),
	}

	if err := m.store.CreateSession(ctx, sess); err != nil {
		return nil, fmt.Errorf("auth: storing session: %w", err)
	}

	c := claims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        sess.ID,
			Subject:   userID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(sess.ExpiresAt),
			Issuer:    issuer,
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, c).SignedString(m.secret)
	if err != nil {
		return nil, fmt.Errorf("auth: signing session token: %w", err)
	}

	return &IssuedSession{Token: signed, ExpiresAt: sess.ExpiresAt}, nil
}

// Resolve returns the user id bound to token.
//
// Every ordinary denial yields ErrNoSession. Any other error means the store
// itself failed; the caller should log it and still treat the request as
// anonymous.
func (m *SessionManager) Resolve(ctx context.Context, token string) (string, error) {
	if token == "" {
		return "", ErrNoSession
	}

	c, err := m.parse(token, true)
	if err != nil {
		return "", ErrNoSession
	}

	sess, err := m.store.GetSession(ctx, c.ID)
	if err != nil {
		if errors.Is(err, apperror.ErrNotFound) {
			return "", ErrNoSession
		}
		return "", fmt.Errorf("auth: loading session: %w", err)
	}

	// The row must agree with the signed claims and still be alive.
	if sess.UserID != c.Subject || sess.Expired(m.now()) {
		return "", ErrNoSession
	}

	return sess.UserID, nil
}

// Revoke deletes the session behind token. Revoking an empty, invalid or
// already revoked token is not an error.
func (m *SessionManager) Revoke(ctx context.Context, token string) error {
	if token == "" {
		return nil
	}

	// Expired tokens are still revoked so their rows disappear immediately.
	c, err := m.parse(token, false)
	if err != nil {
		return nil
	}

	if err := m.store.DeleteSession(ctx, c.ID); err != nil {
		return fmt.Errorf("auth: deleting session: %w", err)
	}
	return nil
}

// RevokeAll deletes every session of userID and returns how many were removed.
func (m *SessionManager) RevokeAll(ctx context.Context, userID string) (int64, error) {
	n, err := m.store.DeleteUserSessions(ctx, userID)
	if err != nil {
		return 0, fmt.Errorf("auth: deleting sessions of user %s: %w", userID, err)
	}
	return n, nil
}

// parse verifies signature, algorithm and issuer. With validateTime=false the
// exp claim is not checked.
//
// ALGORITHM CONFUSION ATTACK:
// jwt.WithValidMethods rejects tokens claiming "none" or an asymmetric alg.
func (m *SessionManager) parse(token string, validateTime bool) (*claims, error) {
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(issuer),
		jwt.WithTimeFunc(m.now),
	}
	if validateTime {
		opts = append(opts, jwt.WithExpirationRequired())
	} else {
		opts = append(opts, jwt.WithoutClaimsValidation())
	}

	parsed, err := jwt.ParseWithClaims(token, &claims{}, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("auth: unexpected signing method: %v", t.Header["alg"])
		}
		return m.secret, nil
	}, opts...)
	if err != nil {
		return nil, fmt.Errorf("auth: invalid session token: %w", err)
	}

	c, ok := parsed.Claims.(*claims)
	if !ok || c.Subject == "" || c.ID == "" {
		return nil, errors.New("auth: session token is missing claims")
	}
	return c, nil
}
