package rest

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"net/http"
	"strconv"
	"time"
)

// Limiter decides whether another request for key fits in the window
type Limiter interface {
	Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error)
}

// RateLimitMiddleware caps requests per authenticated user. It must run
// after Authenticate. A failing limiter lets the request through.
func RateLimitMiddleware(limiter Limiter, scope string, limit int, window time.Duration, logger *slog.Logger) Middleware {
	if limiter == nil || limit <= 0 {
		return func(next http.Handler) http.Handler { return next }
	}
	retryAfter := strconv.Itoa(int(math.Ceil(window.Seconds())))

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			actor, ok := ActorFromContext(r.Context())
			if !ok {
				next.ServeHTTP(w, r)
				return
			}

			allowed, err := limiter.Allow(r.Context(), scope+":"+actor.String(), limit, window)
			if err != nil {
				logger.WarnContext(r.Context(), "rate limiter unavailable",
					"scope", scope,
					"error", err)
				next.ServeHTTP(w, r)
				return
			}
			if !allowed {
				w.Header().Set("Content-Type", "application/json")
				w.Header().Set("Retry-After", retryAfter)
				w.WriteHeader(http.StatusTooManyRequests)
				fmt.Fprintf(w, `{"success":false,"error":{"code":"RATE_LIMITED","message":%q}}`,
					fmt.Sprintf("at most %d requests per %s", limit, window))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
