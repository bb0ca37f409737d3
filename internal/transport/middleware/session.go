package middleware

import (
	"net/http"

	errors "github.com/frahmantamala/pix-deposit/internal"
	"github.com/frahmantamala/pix-deposit/internal/session"
)

// Session puts the payment session key from the cookie on the request context.
func Session(manager *session.Manager) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if key, ok := manager.Key(r); ok {
				r = r.WithContext(errors.ContextWithSessionKey(r.Context(), key))
			}
			next.ServeHTTP(w, r)
		})
	}
}
