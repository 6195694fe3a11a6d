package health

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"
)

// Status 健康状态
type Status string

const (
	// StatusHealthy 健康
	StatusHealthy Status = "healthy"
	// StatusUnhealthy 不健康
	StatusUnhealthy Status = "unhealthy"
)

// CheckResult 单项检查结果
type CheckResult struct {
	Status   Status        `json:"status"`
	Duration time.Duration `json:"duration"`
	Error    string        `json:"error,omitempty"`
}

// Checker 健康检查器接口
type Checker interface {
	// Check 执行健康检查
	Check(ctx context.Context) CheckResult
	// Name 检查器名称
	Name() string
}

// Registry 健康检查注册表，并发执行所有已注册的检查
type Registry struct {
	mu       sync.RWMutex
	checkers map[string]Checker
}

// NewRegistry 创建健康检查注册表
func NewRegistry() *Registry {
	return &Registry{checkers: make(map[string]Checker)}
}

// Register 注册检查器
func (r *Registry) Register(checker Checker) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.checkers[checker.Name()] = checker
}

// Check 执行所有检查
func (r *Registry) Check(ctx context.Context) map[string]CheckResult {
	r.mu.RLock()
	checkers := make([]Checker, 0, len(r.checkers))
	for _, checker := range r.checkers {
		checkers = append(checkers, checker)
	}
	r.mu.RUnlock()

	var (
		mu      sync.Mutex
		wg      sync.WaitGroup
		results = make(map[string]CheckResult, len(checkers))
	)
	for _, checker := range checkers {
		wg.Add(1)
		go func(c Checker) {
			defer wg.Done()
			result := c.Check(ctx)
			mu.Lock()
			results[c.Name()] = result
			mu.Unlock()
		}(checker)
	}
	wg.Wait()
	return results
}

// Handler 返回健康检查HTTP端点。任一检查不健康时返回503。
func (r *Registry) Handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		ctx, cancel := context.WithTimeout(req.Context(), 5*time.Second)
		defer cancel()

		results := r.Check(ctx)
		overall := StatusHealthy
		for _, result := range results {
			if result.Status != StatusHealthy {
				overall = StatusUnhealthy
				break
			}
		}

		code := http.StatusOK
		if overall != StatusHealthy {
			code = http.StatusServiceUnavailable
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(code)
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"status": overall,
			"checks": results,
		})
	})
}

// PingChecker 基于ping函数的检查器，适用于数据库、缓存等连接型依赖
type PingChecker struct {
	name   string
	pingFn func(context.Context) error
}

// NewPingChecker 创建ping检查器
func NewPingChecker(name string, pingFn func(context.Context) error) *PingChecker {
	return &PingChecker{name: name, pingFn: pingFn}
}

// Name 返回检查器名称
func (p *PingChecker) Name() string {
	return p.name
}

// Check 执行检查
func (p *PingChecker) Check(ctx context.Context) CheckResult {
	start := time.Now()
	err := p.pingFn(ctx)
	duration := time.Since(start)

	if err != nil {
		return CheckResult{
			Status:   StatusUnhealthy,
			Duration: duration,
			Error:    err.Error(),
		}
	}
	return CheckResult{
		Status:   StatusHealthy,
		Duration: duration,
	}
}
