package server

import (
	"time"

	"github.com/go-kratos/kratos/v2/log"
	"github.com/go-kratos/kratos/v2/middleware/logging"
	"github.com/go-kratos/kratos/v2/middleware/recovery"
	"github.com/go-kratos/kratos/v2/middleware/tracing"
	"github.com/go-kratos/kratos/v2/transport/http"
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"docreview/cmd/review-service/internal/service"
	"docreview/pkg/auth"
	"docreview/pkg/cache"
	"docreview/pkg/health"
)

// HTTPConfig HTTP服务器配置
type HTTPConfig struct {
	Addr      string
	Timeout   string
	RateLimit *RateLimitConfig
}

// NewHTTPServer 创建HTTP服务器
func NewHTTPServer(
	config *HTTPConfig,
	reviewService *service.ReviewService,
	verifier *auth.JWTVerifier,
	c cache.Cache,
	checks *health.Registry,
	logger log.Logger,
) *http.Server {
	var rateLimit *RateLimitConfig
	if config != nil {
		rateLimit = config.RateLimit
	}

	opts := []http.ServerOption{
		http.Middleware(
			recovery.Recovery(),
			tracing.Server(),
			logging.Server(logger),
		),
		// 认证在限流之前：限流key只认验签过的身份
		http.Filter(
			AuthFilter(verifier, logger),
			RateLimitFilter(c, rateLimit, logger),
		),
	}

	addr := ":8000"
	if config != nil && config.Addr != "" {
		addr = config.Addr
	}
	opts = append(opts, http.Address(addr))
	if config != nil && config.Timeout != "" {
		opts = append(opts, http.Timeout(parseDuration(config.Timeout)))
	}

	srv := http.NewServer(opts...)

	router := mux.NewRouter()
	RegisterRoutes(router, NewReviewHandler(reviewService, logger))
	srv.HandlePrefix("/api/", router)
	srv.Handle("/metrics", promhttp.Handler())
	srv.Handle("/healthz", checks.Handler())

	log.NewHelper(logger).Infof("HTTP server created on %s", addr)
	return srv
}

// parseDuration 解析时间字符串
func parseDuration(s string) time.Duration {
	d, err := time.ParseDuration(s)
	if err != nil {
		return 30 * time.Second // 默认值
	}
	return d
}
