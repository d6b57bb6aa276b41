package api

import (
	"context"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/rasterlabs/rasterflow/internal/ratelimit"
)

type RateLimiter interface {
	AllowN(ctx context.Context, subject string, cost int) (ratelimit.Decision, error)
}

func (s *Server) withRateLimit(next http.Handler) http.Handler {
	if s.rateLimiter == nil {
		return next
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !shouldRateLimit(r) {
			next.ServeHTTP(w, r)
			return
		}

		subject := strings.TrimSpace(r.Header.Get(s.userIDHeader))
		if subject == "" {
			subject = "anonymous"
		}
		route := routeLabel(r.URL.Path)
		subject = subject + ":" + route

		cost := 1
		if route == "/v1/convert" {
			cost = s.convertCost
		}

		decision, err := s.rateLimiter.AllowN(r.Context(), subject, cost)
		if err != nil {
			s.logger.Printf("rate limiter check failed for subject=%s err=%v", subject, err)
			next.ServeHTTP(w, r)
			return
		}

		w.Header().Set("X-RateLimit-Remaining", strconv.FormatInt(decision.Remaining, 10))
		if decision.Allowed {
			next.ServeHTTP(w, r)
			return
		}

		retryAfter := int(decision.RetryAfter.Round(time.Second).Seconds())
		if retryAfter < 1 {
			retryAfter = 1
		}
		w.Header().Set("Retry-After", strconv.Itoa(retryAfter))
		s.metrics.rateLimitRejected.WithLabelValues(route).Inc()
		writeJSON(w, http.StatusTooManyRequests, map[string]string{
			"error": "rate limit exceeded",
			"kind":  "rate_limited",
		})
	})
}

func shouldRateLimit(r *http.Request) bool {
	if r.Method == http.MethodGet {
		return false
	}
	return strings.HasPrefix(r.URL.Path, "/v1/")
}
