package model

import "time"

// Session is one authenticated browser.
//
// The cookie carries a signed token whose "jti" is Session.ID. The row is the
// source of truth: deleting it revokes the cookie even before ExpiresAt.
type Session struct {
	ID        string    `json:"id"`
	UserID    string    `json:"userId"`
	ExpiresAt time.Time `json:"expiresAt"`
	CreatedAt time.Time `json:"createdAt"`
}

// Expired reports whether the session is past its TTL at instant now.
func (s *Session) Expired(now time.Time) bool {
	return !now.Before(s.ExpiresAt)
}

// PasswordReset is a single-use capability to set a new password.
// At most one exists per user at any time.
type PasswordReset struct {
	Token     string    `json:"-"`
	UserID    string    `json:"userId"`
	ExpiresAt time.Time `json:"expiresAt"`
	CreatedAt time.Time `json:"createdAt"`
}
