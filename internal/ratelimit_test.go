package internal

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

// TestClientLimitersAllow tests that a client is limited after its burst and refilled over time.
func TestClientLimitersAllow(t *testing.T) {
	limiters := newClientLimiters(1, 1, time.Minute)
	now := time.Now()

	if !limiters.allow("client", now) {
		t.Fatalf("expected first request to be allowed")
	}
	if limiters.allow("client", now) {
		t.Fatalf("expected second request to be rate limited")
	}
	if !limiters.allow("other", now) {
		t.Fatalf("expected a different client to have its own bucket")
	}
	if !limiters.allow("client", now.Add(1100*time.Millisecond)) {
		t.Fatalf("expected request after refill to be allowed")
	}
}

// TestClientLimitersForgetIdleClients tests that idle clients are swept after the ttl.
func TestClientLimitersForgetIdleClients(t *testing.T) {
	limiters := newClientLimiters(1, 1, time.Second)
	now := time.Now()
	limiters.allow("idle", now)
	limiters.allow("fresh", now.Add(5*time.Second))

	if _, ok := limiters.clients["idle"]; ok {
		t.Fatalf("expected idle client to be forgotten")
	}
	if _, ok := limiters.clients["fresh"]; !ok {
		t.Fatalf("expected fresh client to be tracked")
	}
}

// TestRateLimitHandler tests that the handler answers 429 once the burst is spent.
func TestRateLimitHandler(t *testing.T) {
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	handler := NewRateLimitHandler(next, 1, 2, time.Minute)

	codes := make([]int, 0, 3)
	for i := 0; i < 3; i++ {
		req := httptest.NewRequest(http.MethodPost, "/", nil)
		req.Header.Set("X-Forwarded-For", "203.0.113.9, 10.0.0.1")
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		codes = append(codes, rec.Code)
	}
	if codes[0] != http.StatusOK || codes[1] != http.StatusOK || codes[2] != http.StatusTooManyRequests {
		t.Fatalf("unexpected status codes: %v", codes)
	}
}

// TestClientIP tests the precedence of forwarded headers over the remote address.
func TestClientIP(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/", nil)
	req.RemoteAddr = "192.0.2.1:4321"
	if got := clientIP(req); got != "192.0.2.1" {
		t.Fatalf("expected remote host, got %q", got)
	}
	req.Header.Set("X-Real-Ip", "198.51.100.2")
	if got := clientIP(req); got != "198.51.100.2" {
		t.Fatalf("expected real ip, got %q", got)
	}
	req.Header.Set("X-Forwarded-For", "203.0.113.9")
	if got := clientIP(req); got != "203.0.113.9" {
		t.Fatalf("expected forwarded ip, got %q", got)
	}
}
