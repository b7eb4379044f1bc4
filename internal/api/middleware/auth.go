package middleware

import (
	"context"
	"crypto/subtle"
	"net/http"
	"strings"
)

type contextKey string

const PrivilegedKey contextKey = "privileged"

// Capability marks requests presenting the admin bearer token as
// privileged. It never rejects: endpoints that require the capability
// refuse unprivileged callers themselves, so public endpoints stay open
// to clients that send no token at all. An empty configured token means
// no request is ever privileged.
func Capability(adminToken string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if adminToken != "" {
				authHeader := r.Header.Get("Authorization")
				if token, ok := strings.CutPrefix(authHeader, "Bearer "); ok {
					if subtle.ConstantTimeCompare([]byte(token), []byte(adminToken)) == 1 {
						ctx := context.WithValue(r.Context(), PrivilegedKey, true)
						r = r.WithContext(ctx)
					}
				}
			}
			next.ServeHTTP(w, r)
		})
	}
}

// IsPrivileged reports whether the request carried the admin capability.
func IsPrivileged(ctx context.Context) bool {
	privileged, _ := ctx.Value(PrivilegedKey).(bool)
	return privileged
}
