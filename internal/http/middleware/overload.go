package middleware

import (
	"net/http"
	"strconv"
	"time"

	"github.com/reelsmith/reelsmith/internal/config"
)

// Overload sheds requests once max_inflight_requests handlers are active.
// New requests wait up to the acquire timeout for a slot, then receive 503
// with a Retry-After header. The health endpoint always passes through.
// A zero or negative limit disables shedding.
func Overload(cfg config.OverloadConfig) func(http.Handler) http.Handler {
	if cfg.MaxInflightRequests <= 0 {
		return func(next http.Handler) http.Handler { return next }
	}

	sem := make(chan struct{}, cfg.MaxInflightRequests)
	timeout := time.Duration(cfg.AcquireTimeoutSeconds * float64(time.Second))
	retryAfter := strconv.Itoa(cfg.RetryAfterSeconds)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Path == "/health" {
				next.ServeHTTP(w, r)
				return
			}

			timer := time.NewTimer(timeout)
			defer timer.Stop()

			select {
			case sem <- struct{}{}:
				defer func() { <-sem }()
				next.ServeHTTP(w, r)
			case <-timer.C:
				w.Header().Set("Retry-After", retryAfter)
				WriteDetail(w, http.StatusServiceUnavailable, "OVERLOADED")
			case <-r.Context().Done():
				// Client went away while waiting for a slot.
			}
		})
	}
}
