package middleware

import (
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/angelmondragon/shopchat-core/api/responses"
	pkgerrors "github.com/angelmondragon/shopchat-core/pkg/errors"
	"github.com/angelmondragon/shopchat-core/pkg/logger"
	"github.com/angelmondragon/shopchat-core/pkg/redis"
)

// RateLimitPolicy is a fixed window per client IP on one surface.
type RateLimitPolicy struct {
	Name   string
	Limit  int
	Window time.Duration
}

func (p RateLimitPolicy) enabled() bool {
	return p.Limit > 0 && p.Window > 0
}

// RateLimit throttles a surface per client IP. When the limiter itself fails
// the request is let through and the failure logged.
func RateLimit(policy RateLimitPolicy, limiter redis.RateLimiter, logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if !policy.enabled() || limiter == nil {
			return next
		}
		name := strings.ToLower(strings.TrimSpace(policy.Name))
		if name == "" {
			name = "http"
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			ip := clientIP(r)
			allowed, count, err := limiter.FixedWindowAllow(ctx, name+":ip:"+ip, int64(policy.Limit), policy.Window)
			if err != nil {
				if logg != nil {
					logg.Error(ctx, "rate limiter unavailable", err)
				}
				next.ServeHTTP(w, r)
				return
			}
			if !allowed {
				if logg != nil {
					logg.Warn(logg.WithFields(ctx, map[string]any{
						"policy":   name,
						"ip":       ip,
						"attempts": count,
						"limit":    policy.Limit,
					}), "rate_limit.blocked")
				}
				responses.WriteError(ctx, nil, w, pkgerrors.New(pkgerrors.CodeRateLimit, "rate limit exceeded"))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func clientIP(r *http.Request) string {
	if header := r.Header.Get("X-Forwarded-For"); header != "" {
		for _, part := range strings.Split(header, ",") {
			if ip := strings.TrimSpace(part); ip != "" {
				return ip
			}
		}
	}
	if ip := strings.TrimSpace(r.Header.Get("X-Real-IP")); ip != "" {
		return ip
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err == nil && host != "" {
		return host
	}
	return r.RemoteAddr
}
