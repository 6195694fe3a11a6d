package server

import (
	"fmt"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/go-kratos/kratos/v2/log"

	"docreview/pkg/cache"
)

// RateLimitConfig 限流配置。固定窗口计数，计数器放redis，
// 多实例共享同一份额度。
type RateLimitConfig struct {
	MaxRequests int
	Window      time.Duration
}

// RateLimitFilter 按调用方限流。只认验签过的身份做key，
// 其余请求全部按客户端IP计数——请求头可以随意伪造，
// 不能当配额维度。redis不可用时放行，限流只是保护手段，
// 不能成为单点。必须排在AuthFilter之后。
func RateLimitFilter(c cache.Cache, config *RateLimitConfig, logger log.Logger) func(http.Handler) http.Handler {
	helper := log.NewHelper(log.With(logger, "module", "ratelimit"))

	maxRequests := 100
	window := time.Minute
	if config != nil {
		if config.MaxRequests > 0 {
			maxRequests = config.MaxRequests
		}
		if config.Window > 0 {
			window = config.Window
		}
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			key := "ratelimit:" + callerKeyFor(req)

			count, err := c.Incr(req.Context(), key, window)
			if err != nil {
				helper.Warnf("rate limit counter unavailable: %v", err)
				next.ServeHTTP(w, req)
				return
			}

			reset := time.Now().Add(window).Unix()
			w.Header().Set("X-RateLimit-Limit", fmt.Sprintf("%d", maxRequests))
			w.Header().Set("X-RateLimit-Reset", fmt.Sprintf("%d", reset))

			if count > int64(maxRequests) {
				w.Header().Set("X-RateLimit-Remaining", "0")
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusTooManyRequests)
				fmt.Fprintf(w, `{"error":"rate limit exceeded","retry_after":%d}`, int(window.Seconds()))
				return
			}

			w.Header().Set("X-RateLimit-Remaining", fmt.Sprintf("%d", maxRequests-int(count)))
			next.ServeHTTP(w, req)
		})
	}
}

// callerKeyFor 提取限流维度：验签过的用户身份优先，其次客户端IP
func callerKeyFor(req *http.Request) string {
	if userID, ok := VerifiedCallerFromContext(req.Context()); ok && userID != "" {
		return "user:" + userID
	}
	if forwarded := req.Header.Get("X-Forwarded-For"); forwarded != "" {
		if idx := strings.IndexByte(forwarded, ','); idx > 0 {
			return "ip:" + strings.TrimSpace(forwarded[:idx])
		}
		return "ip:" + strings.TrimSpace(forwarded)
	}
	host, _, err := net.SplitHostPort(req.RemoteAddr)
	if err != nil {
		return "ip:" + req.RemoteAddr
	}
	return "ip:" + host
}
