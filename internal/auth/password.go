// Package auth holds the authentication core of the portal: password hashing,
// server-backed sessions carried in a signed cookie, the authorization gate
// every endpoint consults, and the middleware that resolves the current user.
package auth

import (
	"fmt"

	"golang.org/x/crypto/bcrypt"
)

// DefaultCost is the bcrypt work factor used when configuration does not set one.
//
// COST TUNING RULE OF THUMB:
// Each +1 doubles the work. Cost 10 keeps a login in the tens of milliseconds
// on commodity hardware while still making offline cracking expensive.
const DefaultCost = 10

// MaxPasswordBytes is bcrypt's input limit. Longer inputs are rejected instead of
// being silently truncated.
const MaxPasswordBytes = 72

// PasswordService provides bcrypt hashing and verification.
//
// It's a struct (not free functions) so the cost can be injected: tests use
// bcrypt.MinCost (4) to stay fast.
type PasswordService struct {
	cost int
}

// NewPasswordService creates a PasswordService with the given cost.
// Out-of-range costs fall back to DefaultCost.
func NewPasswordService(cost int) *PasswordService {
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		cost = DefaultCost
	}
	return &PasswordService{cost: cost}
}

// NewPasswordServiceForTest returns a PasswordService using the minimum bcrypt cost.
// Do NOT use in production.
func NewPasswordServiceForTest() *PasswordService {
	return &PasswordService{cost: bcrypt.MinCost}
}

// Cost returns the configured work factor.
func (p *PasswordService) Cost() int {
	return p.cost
}

// Hash hashes plaintext with bcrypt. The output embeds algorithm version,
// cost and salt:
//
//	$2a$10$<22-char salt><31-char hash>
func (p *PasswordService) Hash(plaintext string) (string, error) {
	if len(plaintext) > MaxPasswordBytes {
		return "", fmt.Errorf("auth: password must be %d bytes or fewer", MaxPasswordBytes)
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(plaintext), p.cost)
	if err != nil {
		return "", fmt.Errorf("auth: hashing password: %w", err)
	}

	return string(hashed), nil
}

// Verify reports whether plaintext matches digest.
//
// It never returns an error: a malformed or empty digest simply does not match.
// bcrypt.CompareHashAndPassword compares in constant time.
func (p *PasswordService) Verify(plaintext, digest string) bool {
	if digest == "" {
		return false
	}
	return bcrypt.CompareHashAndPassword([]byte(digest), []byte(plaintext)) == nil
}

// dummyDigest is a valid bcrypt hash of a random string. Comparing against it
// when a username is unknown makes "no such user" cost as much as "wrong password".
var dummyDigest = func() string {
	h, err := bcrypt.GenerateFromPassword([]byte("edulearn-timing-equalizer"), DefaultCost)
	if err != nil {
		panic(fmt.Sprintf("auth: building dummy digest: %v", err))
	}
	return string(h)
}()

// Burn performs one throwaway comparison at DefaultCost. Used on login paths
// where no stored digest exists.
func (p *PasswordService) Burn(plaintext string) {
	_ = bcrypt.CompareHashAndPassword([]byte(dummyDigest), []byte(plaintext))
}
