package web

import (
	"net/http"
)

// AuthMiddleware requires valid basic credentials on protected routes. A nil
// auth lets every request through.
func AuthMiddleware(auth *BasicAuth) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if auth == nil {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ok, locked := auth.Check(r)
			if locked {
				http.Error(w, "Too many failed attempts. Try again later.", http.StatusTooManyRequests)
				return
			}
			if !ok {
				w.Header().Set("WWW-Authenticate", `Basic realm="netcanary", charset="UTF-8"`)
				http.Error(w, "Unauthorized", http.StatusUnauthorized)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
