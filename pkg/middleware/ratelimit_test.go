package middleware

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func limitedHandler(rl *RateLimiter) http.Handler {
	return rl.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
}

func sendFrom(h http.Handler, remoteAddr string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/api/v1/drafts/d1/files", nil)
	req.RemoteAddr = remoteAddr
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	return rr
}

func TestRateLimit_WithinBurst(t *testing.T) {
	rl := NewRateLimiter("test", RateLimitConfig{Enabled: true, RPS: 1, Burst: 5}, newTestLogger(&bytes.Buffer{}))
	h := limitedHandler(rl)

	for i := 0; i < 5; i++ {
		assert.Equal(t, http.StatusOK, sendFrom(h, "192.168.1.1:12345").Code, "request %d", i+1)
	}
}

func TestRateLimit_ExceedingBurst(t *testing.T) {
	rl := NewRateLimiter("test", RateLimitConfig{Enabled: true, RPS: 0.5, Burst: 2}, newTestLogger(&bytes.Buffer{}))
	h := limitedHandler(rl)

	require.Equal(t, http.StatusOK, sendFrom(h, "10.0.0.1:1").Code)
	require.Equal(t, http.StatusOK, sendFrom(h, "10.0.0.1:1").Code)

	rr := sendFrom(h, "10.0.0.1:1")
	assert.Equal(t, http.StatusTooManyRequests, rr.Code)
	assert.Contains(t, rr.Body.String(), "RATE_LIMITED")
	assert.Equal(t, "2", rr.Header().Get("Retry-After"))

	// Another client has its own bucket.
	assert.Equal(t, http.StatusOK, sendFrom(h, "10.0.0.2:1").Code)
}

func TestRateLimit_Disabled(t *testing.T) {
	rl := NewRateLimiter("test", RateLimitConfig{Enabled: false, RPS: 1, Burst: 1}, newTestLogger(&bytes.Buffer{}))
	require.Nil(t, rl)

	h := limitedHandler(rl)
	for i := 0; i < 5; i++ {
		assert.Equal(t, http.StatusOK, sendFrom(h, "10.0.0.1:1").Code)
	}
}

func TestRateLimit_SweepsIdleBuckets(t *testing.T) {
	rl := NewRateLimiter("test", RateLimitConfig{Enabled: true, RPS: 1, Burst: 1, IdleTTL: time.Minute}, newTestLogger(&bytes.Buffer{}))
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	rl.now = func() time.Time { return now }

	assert.True(t, rl.Allow("a"))
	assert.True(t, rl.Allow("b"))
	assert.Equal(t, 2, rl.Len())

	now = now.Add(2 * time.Minute)
	assert.True(t, rl.Allow("c"))
	assert.Equal(t, 1, rl.Len())
}

func TestClientIP(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "10.1.1.1:5000"
	assert.Equal(t, "10.1.1.1", ClientIP(req))

	req.Header.Set("X-Real-IP", "172.16.0.9")
	assert.Equal(t, "172.16.0.9", ClientIP(req))

	req.Header.Set("X-Forwarded-For", "203.0.113.7, 10.0.0.1")
	assert.Equal(t, "203.0.113.7", ClientIP(req))

	req.Header.Set("X-Forwarded-For", "garbage")
	assert.Equal(t, "172.16.0.9", ClientIP(req))
}
