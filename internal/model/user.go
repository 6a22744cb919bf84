// Package model defines the data structures used throughout the portal.
//
// Models are plain structs with JSON tags. They carry no behaviour beyond small
// derived helpers (IsAdmin, Public) so every layer can share them freely.
package model

import "time"

// Role is the privilege tier of an account.
//
// Stored as TEXT in the database and serialized as a string, so adding a third
// tier later (e.g. "teacher") does not reinterpret existing rows.
type Role string

const (
	RoleAdmin   Role = "admin"
	RoleStudent Role = "student"
)

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	return r == RoleAdmin || r == RoleStudent
}

// User represents a registered account.
//
// PasswordHash has json:"-" so a User can never leak its credential, even if a
// handler forgets to call Public().
type User struct {
	ID           string    `json:"id"`
	Username     string    `json:"username"`
	PasswordHash string    `json:"-"`
	Role         Role      `json:"role"`
	Email        *string   `json:"email"`
	IsPro        bool      `json:"isPro"`
	CreatedAt    time.Time `json:"createdAt"`
}

// IsAdmin is derived from Role. Nil-safe.
func (u *User) IsAdmin() bool {
	return u != nil && u.Role == RoleAdmin
}

// PublicUser is the wire shape of an account returned by /auth/* and /api/users.
// The boolean isAdmin is kept next to role for clients that predate roles.
type PublicUser struct {
	ID        string    `json:"id"`
	Username  string    `json:"username"`
	Role      Role      `json:"role"`
	IsAdmin   bool      `json:"isAdmin"`
	Email     *string   `json:"email"`
	IsPro     bool      `json:"isPro"`
	CreatedAt time.Time `json:"createdAt"`
}

// Public returns the client-safe view of u, or nil when u is nil.
func (u *User) Public() *PublicUser {
	if u == nil {
		return nil
	}
	return &PublicUser{
		ID:        u.ID,
		Username:  u.Username,
		Role:      u.Role,
		IsAdmin:   u.IsAdmin(),
		Email:     u.Email,
		IsPro:     u.IsPro,
		CreatedAt: u.CreatedAt,
	}
}

// UserCounts are the per-user aggregates shown on the admin user list.
type UserCounts struct {
	Grades          int `json:"grades"`
	SupportMessages int `json:"supportMessages"`
}

// UserWithCounts is one row of the admin user overview.
type UserWithCounts struct {
	PublicUser
	Count UserCounts `json:"_count"`
}
