package middleware

import (
	"net/http"
	"strings"
)

// Headers the dashboard API speaks. The method list mirrors the registered
// routes; the header list covers JSON bodies and nothing else.
const (
	allowMethods = "GET, POST, PUT, DELETE, OPTIONS"
	allowHeaders = "Content-Type"
	maxAge       = "86400"
)

// CORS returns middleware admitting the dashboard UI's browser origins. With
// no configured origins every origin is admitted, which matches local use
// where the UI runs off a dev server on an arbitrary port. Preflight
// requests are answered here and never reach the mux.
func CORS(allowedOrigins []string) func(http.Handler) http.Handler {
	allowAll := len(allowedOrigins) == 0
	allowed := make(map[string]bool, len(allowedOrigins))
	for _, o := range allowedOrigins {
		if o == "*" {
			allowAll = true
			continue
		}
		allowed[strings.ToLower(o)] = true
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if origin := r.Header.Get("Origin"); origin != "" {
				if allowAll || allowed[strings.ToLower(origin)] {
					hdr := w.Header()
					hdr.Set("Access-Control-Allow-Origin", origin)
					hdr.Add("Vary", "Origin")
					hdr.Set("Access-Control-Allow-Methods", allowMethods)
					hdr.Set("Access-Control-Allow-Headers", allowHeaders)
					hdr.Set("Access-Control-Max-Age", maxAge)
				}
			}
			if r.Method == http.MethodOptions {
				w.WriteHeader(http.StatusNoContent)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
