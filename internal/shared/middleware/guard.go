package middleware

import (
	"crypto/subtle"
	"net"
	"net/http"
	"strings"
)

// CronSecretHeader carries the shared secret of the scheduled-job endpoints.
const CronSecretHeader = "X-Cron-Secret"

// CronSecret rejects requests whose X-Cron-Secret header does not match
// secret. An empty secret rejects every request.
func CronSecret(secret string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			got := r.Header.Get(CronSecretHeader)
			if secret == "" || subtle.ConstantTimeCompare([]byte(got), []byte(secret)) != 1 {
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// AllowedHosts rejects requests for a Host outside allowedHosts.
func AllowedHosts(allowedHosts []string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !IsHostAllowed(r.Host, allowedHosts) {
				http.Error(w, "host not allowed", http.StatusMisdirectedRequest)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// IsHostAllowed validates a host against the allowed hosts list.
// Returns true if no allowed hosts are configured.
func IsHostAllowed(host string, allowedHosts []string) bool {
	if len(allowedHosts) == 0 {
		return true
	}

	host = strings.ToLower(strings.TrimSpace(host))
	hostWithoutPort, _, err := net.SplitHostPort(host)
	if err != nil {
		hostWithoutPort = host
	}

	for _, allowed := range allowedHosts {
		allowed = strings.ToLower(strings.TrimSpace(allowed))
		allowedWithoutPort := allowed
		if idx := strings.Index(allowed, ":"); idx != -1 {
			allowedWithoutPort = allowed[:idx]
		}

		if host == allowed || hostWithoutPort == allowedWithoutPort {
			return true
		}
	}

	return false
}

// Chain applies middlewares so the first one is outermost.
func Chain(h http.Handler, middlewares ...func(http.Handler) http.Handler) http.Handler {
	for i := len(middlewares) - 1; i >= 0; i-- {
		h = middlewares[i](h)
	}
	return h
}
