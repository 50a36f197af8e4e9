package shared

import (
	"net/http"

	"github.com/wholesale-hub/settlement/internal/platform/httpx"
)

// RequireCapability rejects requests whose role lacks c.
func RequireCapability(c Capability) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !RoleFromContext(r.Context()).Can(c) {
				httpx.Problem(w, http.StatusForbidden, "Forbidden", "missing capability "+string(c))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// RequireUser rejects requests without a caller identity.
func RequireUser(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, ok := UserIDFromContext(r.Context()); !ok {
			httpx.Problem(w, http.StatusUnauthorized, "Unauthorized", ErrMissingUser.Error())
			return
		}
		next.ServeHTTP(w, r)
	})
}
