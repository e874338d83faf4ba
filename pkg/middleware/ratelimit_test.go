package middleware

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRateLimiterAllow(t *testing.T) {
	limiter := NewRateLimiter(&RateLimitConfig{
		RequestsPerWindow: 2,
		WindowDuration:    time.Minute,
		BurstSize:         1,
	})

	assert.True(t, limiter.Allow("ip:1.2.3.4"))
	assert.True(t, limiter.Allow("ip:1.2.3.4"))
	assert.True(t, limiter.Allow("ip:1.2.3.4"))
	assert.False(t, limiter.Allow("ip:1.2.3.4"))

	// A different key has its own bucket.
	assert.True(t, limiter.Allow("ip:5.6.7.8"))
}

func TestRateLimiterRemaining(t *testing.T) {
	limiter := NewRateLimiter(&RateLimitConfig{
		RequestsPerWindow: 5,
		WindowDuration:    time.Minute,
		BurstSize:         0,
	})

	assert.Equal(t, 5, limiter.Remaining("ip:1.2.3.4"))
	limiter.Allow("ip:1.2.3.4")
	assert.Equal(t, 4, limiter.Remaining("ip:1.2.3.4"))
}

func TestRateLimitMiddlewareLoginKeyedByIP(t *testing.T) {
	middleware := NewRateLimitMiddleware()
	handler := middleware.Handler(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	send := func(ip string) int {
		req := httptest.NewRequest("POST", "/api/v1/auth/login", nil)
		req.Header.Set("X-Forwarded-For", ip)
		recorder := httptest.NewRecorder()
		handler.ServeHTTP(recorder, req)
		return recorder.Code
	}

	limit := LoginRateLimitConfig()
	total := limit.RequestsPerWindow + limit.BurstSize
	for i := 0; i < total; i++ {
		require.Equal(t, http.StatusOK, send("1.2.3.4"))
	}
	assert.Equal(t, http.StatusTooManyRequests, send("1.2.3.4"))

	// Another client is unaffected.
	assert.Equal(t, http.StatusOK, send("5.6.7.8"))
}

func TestRateLimitMiddlewareHeaders(t *testing.T) {
	middleware := NewRateLimitMiddleware()
	handler := middleware.Handler(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest("GET", "/api/v1/auth/providers", nil)
	recorder := httptest.NewRecorder()
	handler.ServeHTTP(recorder, req)

	assert.Equal(t, http.StatusOK, recorder.Code)
	assert.NotEmpty(t, recorder.Header().Get("X-RateLimit-Limit"))
	assert.NotEmpty(t, recorder.Header().Get("X-RateLimit-Remaining"))
	assert.NotEmpty(t, recorder.Header().Get("X-RateLimit-Reset"))
}

func newTestRedis(t *testing.T) *redis.Client {
	t.Helper()
	server := miniredis.RunT(t)
	return redis.NewClient(&redis.Options{Addr: server.Addr()})
}

func TestDistributedRateLimiterAllow(t *testing.T) {
	client := newTestRedis(t)
	limiter := NewDistributedRateLimiter(client, &RateLimitConfig{
		RequestsPerWindow: 3,
		WindowDuration:    time.Minute,
	}, "test")

	ctx := context.Background()
	for i := 0; i < 3; i++ {
		allowed, err := limiter.Allow(ctx, "ip:1.2.3.4")
		require.NoError(t, err)
		assert.True(t, allowed)
	}

	allowed, err := limiter.Allow(ctx, "ip:1.2.3.4")
	require.NoError(t, err)
	assert.False(t, allowed)

	remaining, err := limiter.Remaining(ctx, "ip:1.2.3.4")
	require.NoError(t, err)
	assert.Equal(t, 0, remaining)
}

func TestDistributedRateLimiterReset(t *testing.T) {
	client := newTestRedis(t)
	limiter := NewDistributedRateLimiter(client, &RateLimitConfig{
		RequestsPerWindow: 1,
		WindowDuration:    time.Minute,
	}, "test")

	ctx := context.Background()
	allowed, err := limiter.Allow(ctx, "ip:1.2.3.4")
	require.NoError(t, err)
	assert.True(t, allowed)

	allowed, err = limiter.Allow(ctx, "ip:1.2.3.4")
	require.NoError(t, err)
	assert.False(t, allowed)

	require.NoError(t, limiter.Reset(ctx, "ip:1.2.3.4"))

	allowed, err = limiter.Allow(ctx, "ip:1.2.3.4")
	require.NoError(t, err)
	assert.True(t, allowed)
}

func TestDistributedRateLimitMiddleware(t *testing.T) {
	client := newTestRedis(t)
	middleware := NewDistributedRateLimitMiddleware(client)
	handler := middleware.Handler(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	send := func() int {
		req := httptest.NewRequest("POST", "/api/v1/auth/login", nil)
		req.Header.Set("X-Forwarded-For", "1.2.3.4")
		recorder := httptest.NewRecorder()
		handler.ServeHTTP(recorder, req)
		return recorder.Code
	}

	limit := LoginRateLimitConfig()
	for i := 0; i < limit.RequestsPerWindow; i++ {
		require.Equal(t, http.StatusOK, send())
	}
	assert.Equal(t, http.StatusTooManyRequests, send())
}

func TestDistributedRateLimitMiddlewareFailsOpen(t *testing.T) {
	server := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: server.Addr()})
	middleware := NewDistributedRateLimitMiddleware(client)
	server.Close()

	handler := middleware.Handler(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest("GET", "/api/v1/auth/providers", nil)
	recorder := httptest.NewRecorder()
	handler.ServeHTTP(recorder, req)
	assert.Equal(t, http.StatusOK, recorder.Code)
}

func TestGetClientIP(t *testing.T) {
	req := httptest.NewRequest("GET", "/", nil)
	req.RemoteAddr = "10.0.0.1:1234"
	assert.Equal(t, "10.0.0.1", getClientIP(req))

	req.Header.Set("X-Real-IP", "2.3.4.5")
	assert.Equal(t, "2.3.4.5", getClientIP(req))

	req.Header.Set("X-Forwarded-For", "1.2.3.4")
	assert.Equal(t, "1.2.3.4", getClientIP(req))

	// Only the hop appended by the fronting proxy counts.
	req.Header.Set("X-Forwarded-For", "6.7.8.9, 1.2.3.4")
	assert.Equal(t, "1.2.3.4", getClientIP(req))
}

func TestLoginLimiterKeyIgnoresSpoofedForwardedFor(t *testing.T) {
	// Rotating the client-controlled part of X-Forwarded-For must not
	// yield fresh login buckets.
	middleware := NewRateLimitMiddleware()
	// Bucket capacity is RequestsPerWindow + BurstSize, two here.
	middleware.loginLimiter = NewRateLimiter(&RateLimitConfig{
		RequestsPerWindow: 1,
		WindowDuration:    time.Minute,
		BurstSize:         1,
	})
	handler := middleware.Handler(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	var last int
	for i := 0; i < 3; i++ {
		req := httptest.NewRequest("POST", "/api/v1/auth/login", nil)
		req.RemoteAddr = "10.0.0.1:1234"
		req.Header.Set("X-Forwarded-For", fmt.Sprintf("203.0.113.%d, 1.2.3.4", i))
		recorder := httptest.NewRecorder()
		handler.ServeHTTP(recorder, req)
		last = recorder.Code
	}

	assert.Equal(t, http.StatusTooManyRequests, last)
}
