package middleware

import (
	"net/http"
	"time"

	"github.com/go-chi/httprate"

	"github.com/edvin/vdesk/internal/api/response"
)

// RateLimitPerCaller limits requests per authenticated caller, falling back
// to the client IP for anonymous requests.
func RateLimitPerCaller(requests int, window time.Duration) func(http.Handler) http.Handler {
	return httprate.Limit(requests, window,
		httprate.WithKeyFuncs(callerKey),
		httprate.WithLimitHandler(func(w http.ResponseWriter, r *http.Request) {
			response.WriteError(w, http.StatusTooManyRequests, "rate limit exceeded")
		}),
	)
}

// RateLimitByIP limits requests per client IP.
func RateLimitByIP(requests int, window time.Duration) func(http.Handler) http.Handler {
	return httprate.Limit(requests, window,
		httprate.WithKeyFuncs(httprate.KeyByIP),
		httprate.WithLimitHandler(func(w http.ResponseWriter, r *http.Request) {
			response.WriteError(w, http.StatusTooManyRequests, "rate limit exceeded")
		}),
	)
}

func callerKey(r *http.Request) (string, error) {
	if identity := GetIdentity(r.Context()); identity != nil {
		return "user:" + identity.UserID, nil
	}
	return httprate.KeyByIP(r)
}
