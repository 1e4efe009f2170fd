package middleware

import (
	"crypto/subtle"
	"net/http"

	"golang.org/x/crypto/bcrypt"
)

// AdminAuth guards the admin dashboard endpoints with HTTP basic auth.
// The password is compared against a bcrypt hash so the clear credential
// never lives in config.
type AdminAuth struct {
	user         string
	passwordHash string
}

// NewAdminAuth creates the admin auth middleware. An empty hash disables
// all admin endpoints rather than leaving them open.
func NewAdminAuth(user, passwordHash string) *AdminAuth {
	return &AdminAuth{user: user, passwordHash: passwordHash}
}

// Require verifies the basic auth credentials.
func (a *AdminAuth) Require(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if a.passwordHash == "" {
			jsonError(w, http.StatusForbidden, "admin access not configured")
			return
		}

		user, pass, ok := r.BasicAuth()
		if !ok {
			w.Header().Set("WWW-Authenticate", `Basic realm="admin"`)
			jsonError(w, http.StatusUnauthorized, "credentials required")
			return
		}

		userMatch := subtle.ConstantTimeCompare([]byte(user), []byte(a.user)) == 1
		passMatch := bcrypt.CompareHashAndPassword([]byte(a.passwordHash), []byte(pass)) == nil
		if !userMatch || !passMatch {
			jsonError(w, http.StatusUnauthorized, "invalid credentials")
			return
		}

		next.ServeHTTP(w, r)
	})
}

// jsonError writes a JSON error body with the given status.
func jsonError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	w.Write([]byte(`{"error":"` + message + `"}`))
}
