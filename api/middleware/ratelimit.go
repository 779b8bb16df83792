package middleware

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/hauslist/hauslist-backend/api/responses"
	pkgerrors "github.com/hauslist/hauslist-backend/pkg/errors"
	"github.com/hauslist/hauslist-backend/pkg/logger"
)

// FixedWindowLimiter is the counting surface the rate limiter needs from redis.
type FixedWindowLimiter interface {
	FixedWindowAllow(ctx context.Context, scope string, limit int64, window time.Duration) (bool, int64, error)
}

// RateLimit throttles requests per authenticated host using a fixed redis
// window. Unauthenticated requests pass through; the auth middleware rejects
// those later. A redis outage fails open so billing actions stay available.
func RateLimit(scope string, store FixedWindowLimiter, limit int64, window time.Duration, logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if store == nil || limit <= 0 || window <= 0 {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			hostID := HostIDFromContext(r.Context())
			if hostID == "" {
				next.ServeHTTP(w, r)
				return
			}

			key := fmt.Sprintf("%s:%s", scope, hostID)
			allowed, count, err := store.FixedWindowAllow(r.Context(), key, limit, window)
			if err != nil {
				if logg != nil {
					logg.Error(r.Context(), "rate limit check failed", err)
				}
				next.ServeHTTP(w, r)
				return
			}
			if !allowed {
				if logg != nil {
					logCtx := logg.WithFields(r.Context(), map[string]any{
						"scope": scope,
						"count": count,
					})
					logg.Warn(logCtx, "rate limit exceeded")
				}
				responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeRateLimit, "too many requests"))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
