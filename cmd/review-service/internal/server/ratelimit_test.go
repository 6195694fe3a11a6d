package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/go-kratos/kratos/v2/log"
	"github.com/stretchr/testify/assert"
)

type countingCache struct {
	mu     sync.Mutex
	counts map[string]int64
	err    error
}

func newCountingCache() *countingCache {
	return &countingCache{counts: make(map[string]int64)}
}

func (c *countingCache) GetObject(ctx context.Context, key string, dest interface{}) error { return nil }
func (c *countingCache) SetObject(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	return nil
}
func (c *countingCache) Delete(ctx context.Context, key string) error { return nil }
func (c *countingCache) Exists(ctx context.Context, key string) (bool, error) {
	return false, nil
}
func (c *countingCache) Ping(ctx context.Context) error { return nil }
func (c *countingCache) Close() error                   { return nil }

func (c *countingCache) Incr(ctx context.Context, key string, ttl time.Duration) (int64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.err != nil {
		return 0, c.err
	}
	c.counts[key]++
	return c.counts[key], nil
}

func limitedHandler(c *countingCache, maxRequests int) http.Handler {
	filter := RateLimitFilter(c, &RateLimitConfig{MaxRequests: maxRequests, Window: time.Minute}, log.NewStdLogger(discardWriter{}))
	return filter(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
}

type discardWriter struct{}

func (discardWriter) Write(p []byte) (int, error) { return len(p), nil }

// withVerifiedCaller 模拟AuthFilter验签通过后的请求
func withVerifiedCaller(req *http.Request, userID string) *http.Request {
	ctx := context.WithValue(req.Context(), callerKey{}, callerInfo{id: userID, verified: true})
	return req.WithContext(ctx)
}

func TestRateLimitFilterBlocksOverLimit(t *testing.T) {
	handler := limitedHandler(newCountingCache(), 2)

	for i := 0; i < 2; i++ {
		rec := httptest.NewRecorder()
		req := withVerifiedCaller(httptest.NewRequest("GET", "/api/v1/collections", nil), "user_1")
		handler.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusOK, rec.Code)
	}

	rec := httptest.NewRecorder()
	req := withVerifiedCaller(httptest.NewRequest("GET", "/api/v1/collections", nil), "user_1")
	handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "0", rec.Header().Get("X-RateLimit-Remaining"))
}

func TestRateLimitFilterIsPerCaller(t *testing.T) {
	handler := limitedHandler(newCountingCache(), 1)

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, withVerifiedCaller(httptest.NewRequest("GET", "/", nil), "user_1"))
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, withVerifiedCaller(httptest.NewRequest("GET", "/", nil), "user_2"))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestRateLimitFilterIgnoresSpoofedHeader(t *testing.T) {
	handler := limitedHandler(newCountingCache(), 2)

	// 换X-User-ID头骗不过配额：未验签的请求都按IP计数
	for i := 0; i < 3; i++ {
		rec := httptest.NewRecorder()
		req := httptest.NewRequest("GET", "/api/v1/collections", nil)
		req.Header.Set("X-User-ID", fmt.Sprintf("user_%d", i))
		req.RemoteAddr = "192.168.1.5:4711"
		handler.ServeHTTP(rec, req)
		if i < 2 {
			assert.Equal(t, http.StatusOK, rec.Code)
		} else {
			assert.Equal(t, http.StatusTooManyRequests, rec.Code)
		}
	}
}

func TestRateLimitFilterFailsOpen(t *testing.T) {
	c := newCountingCache()
	c.err = errors.New("redis down")
	handler := limitedHandler(c, 1)

	// 计数器不可用时放行
	for i := 0; i < 3; i++ {
		rec := httptest.NewRecorder()
		req := httptest.NewRequest("GET", "/", nil)
		handler.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusOK, rec.Code)
	}
}

func TestCallerKeyFor(t *testing.T) {
	req := withVerifiedCaller(httptest.NewRequest("GET", "/", nil), "user_1")
	assert.Equal(t, "user:user_1", callerKeyFor(req))

	// 未验签的X-User-ID头不参与key
	req = httptest.NewRequest("GET", "/", nil)
	req.Header.Set("X-User-ID", "user_1")
	req.RemoteAddr = "192.168.1.5:4711"
	assert.Equal(t, "ip:192.168.1.5", callerKeyFor(req))

	req = httptest.NewRequest("GET", "/", nil)
	req.Header.Set("X-Forwarded-For", "10.0.0.1, 10.0.0.2")
	assert.Equal(t, "ip:10.0.0.1", callerKeyFor(req))
}
