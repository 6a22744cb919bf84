package auth

import (
	"net/http"
	"time"
)

// SessionCookieName is kept from the first version of the portal so existing
// browser clients keep working. The value is a signed session token, not a user id.
const SessionCookieName = "session_user_id"

// SetSessionCookie writes the session cookie.
//
//   - HttpOnly: scripts cannot read it (XSS cannot steal the session)
//   - SameSite=Lax: not sent on cross-site POSTs
//   - Secure: HTTPS only, enabled in production
func SetSessionCookie(w http.ResponseWriter, issued *IssuedSession, secure bool) {
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookieName,
		Value:    issued.Token,
		Path:     "/",
		MaxAge:   int(SessionTTL.Seconds()),
		Expires:  issued.ExpiresAt,
		HttpOnly: true,
		Secure:   secure,
		SameSite: http.SameSiteLaxMode,
	})
}

// ClearSessionCookie tells the browser to drop the session cookie.
func ClearSessionCookie(w http.ResponseWriter, secure bool) {
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		Expires:  time.Unix(0, 0),
		HttpOnly: true,
		Secure:   secure,
		SameSite: http.SameSiteLaxMode,
	})
}

// SessionToken returns the raw cookie value, or "" when absent.
func SessionToken(r *http.Request) string {
	c, err := r.Cookie(SessionCookieName)
	if err != nil {
		return ""
	}
	return c.Value
}
