package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

func TestRateLimit_RejectsOverBurst(t *testing.T) {
	core, logs := observer.New(zap.DebugLevel)
	handler := RateLimit(NewClientRateLimiter(0.001, 2), zap.New(core))(okHandler())

	var statuses []int
	for range 3 {
		req := httptest.NewRequest(http.MethodPost, "/v1/estimate", nil)
		req.RemoteAddr = "192.0.2.1:5000"
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		statuses = append(statuses, rec.Code)

		if rec.Code == http.StatusTooManyRequests {
			assert.Equal(t, "1", rec.Header().Get("Retry-After"))
			assert.Contains(t, rec.Body.String(), `"error":"rate_limited"`)
		}
	}

	assert.Equal(t, []int{http.StatusOK, http.StatusOK, http.StatusTooManyRequests}, statuses)
	require.Equal(t, 1, logs.FilterMessage("Request rate limited").Len())
	assert.Equal(t, "192.0.2.1", logs.All()[0].ContextMap()["client"])
}

func TestRateLimit_ClientsAreIndependent(t *testing.T) {
	handler := RateLimit(NewClientRateLimiter(0.001, 1), nil)(okHandler())

	for _, addr := range []string{"192.0.2.1:1", "192.0.2.2:1", "192.0.2.1:2"} {
		req := httptest.NewRequest(http.MethodGet, "/v1/chat", nil)
		req.RemoteAddr = addr
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)

		want := http.StatusOK
		if addr == "192.0.2.1:2" {
			want = http.StatusTooManyRequests
		}
		assert.Equal(t, want, rec.Code, addr)
	}
}

func TestRateLimit_NilLimiterPassesThrough(t *testing.T) {
	handler := RateLimit(nil, zap.NewNop())(okHandler())

	for range 5 {
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/estimate", nil))
		assert.Equal(t, http.StatusOK, rec.Code)
	}
}

func TestClientRateLimiter_DropsIdleClients(t *testing.T) {
	limiter := NewClientRateLimiter(1, 1)
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	limiter.now = func() time.Time { return now }

	assert.True(t, limiter.Allow("a"))
	now = now.Add(time.Minute)
	assert.True(t, limiter.Allow("b"))
	assert.Equal(t, 2, limiter.Len())

	now = now.Add(limiterIdleTTL - 30*time.Second)
	assert.True(t, limiter.Allow("c"))
	assert.Equal(t, 2, limiter.Len(), "a is swept, b is still within the idle window")
}

func TestClientAddr(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "[2001:db8::1]:443"
	assert.Equal(t, "2001:db8::1", clientAddr(req))

	req.RemoteAddr = "pipe"
	assert.Equal(t, "pipe", clientAddr(req))
}
