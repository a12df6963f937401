package middleware

import (
	"fmt"
	"net"
	"net/http"
	"strings"

	"github.com/rs/zerolog/log"

	apierrors "monitorflow/internal/pkg/errors"
	"monitorflow/internal/pkg/metrics"
	"monitorflow/internal/platform/config"
	"monitorflow/internal/platform/repositories"
)

// RateLimitMiddleware guards ingestion with a fixed-window counter keyed
// by caller IP. The counter lives in the database (shared across
// instances) and is advanced with a single atomic upsert.
type RateLimitMiddleware struct {
	repo *repositories.RateLimitRepository
	cfg  config.RateLimitConfig
}

func NewRateLimitMiddleware(repo *repositories.RateLimitRepository, cfg config.RateLimitConfig) *RateLimitMiddleware {
	return &RateLimitMiddleware{repo: repo, cfg: cfg}
}

func (m *RateLimitMiddleware) Handle(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		key := "rate_limit:" + clientIP(r)

		allowed, retryAfter, err := m.repo.Allow(key, m.cfg.MaxRequests, m.cfg.Window)
		if err != nil {
			// Fail open: a broken limiter should not take ingestion down.
			log.Error().Err(err).Str("key", key).Msg("rate limit check failed")
			next(w, r)
			return
		}

		if !allowed {
			metrics.RateLimitExceeded.Inc()
			w.Header().Set("Retry-After", fmt.Sprintf("%d", int(retryAfter.Seconds())))
			apierrors.WriteError(w, http.StatusTooManyRequests, apierrors.ErrCodeRateLimitExceeded,
				"Too many requests. Please try again later.", nil)
			return
		}

		next(w, r)
	}
}

func clientIP(r *http.Request) string {
	if forwarded := r.Header.Get("X-Forwarded-For"); forwarded != "" {
		// First hop is the original client.
		return strings.TrimSpace(strings.Split(forwarded, ",")[0])
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
