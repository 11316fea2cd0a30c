package gateway

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rasinmuhammed/matrix-admin/internal/config"
)

func TestRateLimiterAllow(t *testing.T) {
	now := time.Unix(1000, 0)
	l := NewRateLimiter(config.RateLimitConfig{Rate: 60, Per: time.Minute, Burst: 2}, nil)
	l.now = func() time.Time { return now }

	if !l.Allow("10.0.0.1") || !l.Allow("10.0.0.1") {
		t.Fatal("burst requests should be allowed")
	}
	if l.Allow("10.0.0.1") {
		t.Error("third immediate request should be rejected")
	}
	if !l.Allow("10.0.0.2") {
		t.Error("a different client has its own bucket")
	}

	// One token refills per second at 60/min.
	now = now.Add(time.Second)
	if !l.Allow("10.0.0.1") {
		t.Error("request after refill should be allowed")
	}
	if l.Allow("10.0.0.1") {
		t.Error("refill grants exactly one token")
	}
}

func TestRateLimitMiddlewareSparesReads(t *testing.T) {
	l := NewRateLimiter(config.RateLimitConfig{Rate: 1, Per: time.Minute, Burst: 1}, nil)
	handler := l.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	for i := 0; i < 5; i++ {
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/admin/order", nil))
		if w.Code != http.StatusOK {
			t.Fatalf("read %d limited, status = %d", i, w.Code)
		}
	}

	w := httptest.NewRecorder()
	handler.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/admin/order", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("first write: status = %d", w.Code)
	}
	w = httptest.NewRecorder()
	handler.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/admin/order", nil))
	if w.Code != http.StatusTooManyRequests {
		t.Fatalf("second write: status = %d, want 429", w.Code)
	}
}
