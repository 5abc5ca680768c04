package middleware

import (
	"crypto/subtle"
	"net/http"
)

const adminRealm = "TopAgents Admin"

// AdminAuth protects operator endpoints with HTTP basic auth. Any username is
// accepted; only the password is checked. An empty password disables the check.
func AdminAuth(password string) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if password == "" {
			return next
		}
		expected := []byte(password)
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			_, pass, ok := r.BasicAuth()
			if !ok || subtle.ConstantTimeCompare([]byte(pass), expected) != 1 {
				w.Header().Set("WWW-Authenticate", `Basic realm="`+adminRealm+`"`)
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusUnauthorized)
				w.Write([]byte(`{"status": "error", "message": "Unauthorized"}`))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
