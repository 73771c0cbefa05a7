package api

import (
	"math"
	"net/http"
	"strconv"

	"go.uber.org/zap"
)

// rateLimited fails open: if Redis is unavailable the request goes through.
func (a *api) rateLimited(next http.HandlerFunc) http.HandlerFunc {
	if a.limiter == nil {
		return next
	}

	return func(w http.ResponseWriter, r *http.Request) {
		ip := a.clientIP(r)

		d, err := a.limiter.Allow(r.Context(), ip)
		if err != nil {
			a.logger.Warn("rate limiter unavailable", zap.Error(err))
			next(w, r)
			return
		}

		w.Header().Set("X-RateLimit-Limit", strconv.FormatInt(d.Limit, 10))
		w.Header().Set("X-RateLimit-Remaining", strconv.FormatInt(d.Remaining, 10))

		if !d.Allowed {
			secs := int(math.Ceil(d.RetryAfter.Seconds()))
			w.Header().Set("Retry-After", strconv.Itoa(secs))
			_ = a.statsd.Incr("ratelimit.blocked", []string{}, 1)
			a.errorResponse(w, r, http.StatusTooManyRequests, codeRateLimited, "rate limit exceeded")
			return
		}

		next(w, r)
	}
}
