package middleware

import (
	"fmt"
	"log"
	"net"
	"net/http"

	"github.com/go-redis/redis/v8"

	"github.com/bankledger/backend/internal/config"
)

// RateLimit enforces a fixed-window request budget per caller, keyed by
// the authenticated user when present and the remote IP otherwise, so it
// must be mounted after the auth middleware on authenticated routes. The
// counter lives in Redis so a pool of processes shares one window. With
// no Redis the limiter is a no-op rather than an outage.
func RateLimit(client *redis.Client, cfg *config.RateLimitConfig) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if client == nil {
				next.ServeHTTP(w, r)
				return
			}

			// RemoteAddr carries the ephemeral port; keying on it would
			// give every connection its own window
			caller := r.RemoteAddr
			if host, _, err := net.SplitHostPort(caller); err == nil {
				caller = host
			}
			if userID, ok := r.Context().Value("userID").(string); ok && userID != "" {
				caller = userID
			}
			key := fmt.Sprintf("ratelimit:%s", caller)

			count, err := client.Incr(r.Context(), key).Result()
			if err != nil {
				log.Printf("[RATELIMIT] Redis error, allowing request: %v", err)
				next.ServeHTTP(w, r)
				return
			}
			if count == 1 {
				client.Expire(r.Context(), key, cfg.Window)
			}

			if count > int64(cfg.Requests) {
				w.Header().Set("Retry-After", fmt.Sprintf("%d", int(cfg.Window.Seconds())))
				http.Error(w, "Too many requests", http.StatusTooManyRequests)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
