package auth

import (
	"context"
	"net/http"

	"github.com/edulearn/portal/internal/model"
)

// contextKey is an unexported type so no other package can read or shadow
// the values stored here.
type contextKey string

const userKey contextKey = "currentUser"

// UserResolver turns a raw session token into the current user, or nil.
// Implemented by service.AuthService.CurrentUser; it must not fail.
type UserResolver interface {
	CurrentUser(ctx context.Context, token string) *model.User
}

// LoadUser resolves the session cookie once per request and stores the user
// (possibly nil) in the context.
//
// It never blocks a request: anonymous callers pass through and each endpoint
// decides with the gate (RequireUser, RequireAdmin, RequireSelfOrAdmin)
// whether that is acceptable.
func LoadUser(resolver UserResolver) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if token := SessionToken(r); token != "" {
				if u := resolver.CurrentUser(r.Context(), token); u != nil {
					r = r.WithContext(WithUser(r.Context(), u))
				}
			}
			next.ServeHTTP(w, r)
		})
	}
}

// WithUser returns a copy of ctx carrying u.
func WithUser(ctx context.Context, u *model.User) context.Context {
	return context.WithValue(ctx, userKey, u)
}

// UserFromContext returns the user stored by LoadUser, or nil for anonymous requests.
//
//	u := auth.UserFromContext(r.Context())
//	if err := auth.RequireAdmin(u); err != nil { ... }
func UserFromContext(ctx context.Context) *model.User {
	u, _ := ctx.Value(userKey).(*model.User)
	return u
}
