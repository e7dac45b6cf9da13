package middleware

import (
	"net"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/calcmesh/edge-gateway/metrics"
	"github.com/calcmesh/edge-gateway/problem"
	"github.com/calcmesh/edge-gateway/ratelimit"
)

// The limiter runs before authentication, so the subject is usually unknown
// and callers fall back to their network address.
const fallbackCallerKey = "anonymous"

// RateLimit rejects requests over the caller's budget with a 429 problem
// response carrying the seconds until the window resets.
func RateLimit(limiter ratelimit.Limiter, logger *zap.Logger) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := CallerKey(r)

			decision := limiter.Allow(key)
			if !decision.Allowed {
				metrics.RateLimitedTotal.Inc()
				logger.Warn("Rate limit exceeded.",
					zap.String("caller", key),
					zap.Int("reset_seconds", decision.ResetSeconds),
				)

				w.Header().Set("Retry-After", strconv.Itoa(decision.ResetSeconds))
				problem.Write(w, problem.RateLimited(decision.ResetSeconds, r.URL.Path))

				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// CallerKey identifies the caller for rate limiting: authenticated subject
// when already established, else the origin host, else a constant.
func CallerKey(r *http.Request) string {
	if subject := SubjectFromContext(r.Context()); subject != "" {
		return subject
	}

	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil && host != "" {
		return host
	}

	if r.RemoteAddr != "" {
		return r.RemoteAddr
	}

	return fallbackCallerKey
}
