package gateway

import (
	"net/http"
	"sync"
	"time"

	"github.com/rasinmuhammed/matrix-admin/internal/config"
	"github.com/rasinmuhammed/matrix-admin/internal/observability"
	"github.com/rasinmuhammed/matrix-admin/model"
)

// bucket is a token bucket for one client.
type bucket struct {
	tokens   float64
	lastSeen time.Time
}

// RateLimiter is a per-client token bucket applied to mutating routes.
type RateLimiter struct {
	mu      sync.Mutex
	buckets map[string]*bucket
	rate    float64
	burst   float64
	now     func() time.Time
	metrics *observability.Metrics
}

// NewRateLimiter builds a limiter refilling cfg.Rate tokens every
// cfg.Per, with cfg.Burst extra headroom.
func NewRateLimiter(cfg config.RateLimitConfig, metrics *observability.Metrics) *RateLimiter {
	per := cfg.Per
	if per <= 0 {
		per = time.Minute
	}
	burst := float64(cfg.Burst)
	if burst < 1 {
		burst = float64(cfg.Rate)
	}
	return &RateLimiter{
		buckets: map[string]*bucket{},
		rate:    float64(cfg.Rate) / per.Seconds(),
		burst:   burst,
		now:     time.Now,
		metrics: metrics,
	}
}

// Allow consumes one token for the client, reporting whether the request
// may proceed.
func (l *RateLimiter) Allow(client string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	b, ok := l.buckets[client]
	if !ok {
		b = &bucket{tokens: l.burst, lastSeen: now}
		l.buckets[client] = b
	}

	b.tokens += now.Sub(b.lastSeen).Seconds() * l.rate
	if b.tokens > l.burst {
		b.tokens = l.burst
	}
	b.lastSeen = now

	// Opportunistic cleanup of clients idle long enough to be full again.
	if len(l.buckets) > 1024 {
		for ip, old := range l.buckets {
			if now.Sub(old.lastSeen).Seconds()*l.rate >= l.burst {
				delete(l.buckets, ip)
			}
		}
	}

	if b.tokens < 1 {
		return false
	}
	b.tokens--
	return true
}

// Middleware rejects over-limit mutating requests with 429. Reads pass
// through untouched.
func (l *RateLimiter) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet, http.MethodHead, http.MethodOptions:
			next.ServeHTTP(w, r)
			return
		}
		if !l.Allow(clientIP(r)) {
			if l.metrics != nil {
				l.metrics.RecordRateLimited()
			}
			WriteError(w, model.NewRateLimitedError())
			return
		}
		next.ServeHTTP(w, r)
	})
}
