package handlers

import (
	"context"
	"net/http"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/BaSui01/aihub/api"
	"github.com/BaSui01/aihub/internal/dispatch"
)

const (
	healthyMessage  = "AI Image Platform Demo API is running"
	readyTimeout    = 5 * time.Second
	statusHealthy   = "healthy"
	statusUnhealthy = "unhealthy"
	statusAvailable = "healthy"
	statusMissing   = "unavailable"
)

// serviceDescriptions 各服务的固定说明文字
var serviceDescriptions = map[string]string{
	"pollinations": "Free image generation service",
	"gemini":       "Requires GEMINI_API_KEY environment variable",
	"openai":       "Requires OPENAI_API_KEY environment variable",
}

// =============================================================================
// 🏥 健康检查 Handler
// =============================================================================

// ProviderLister 列出提供方状态
type ProviderLister interface {
	Providers() []dispatch.ProviderStatus
}

// HealthHandler 健康检查处理器
type HealthHandler struct {
	logger    *zap.Logger
	providers ProviderLister
	version   string
	checks    []HealthCheck
	mu        sync.RWMutex
}

// HealthCheck 健康检查接口
type HealthCheck interface {
	Name() string
	Check(ctx context.Context) error
}

// ReadyStatus 探针响应
type ReadyStatus struct {
	Status    string                 `json:"status"` // "healthy", "unhealthy"
	Timestamp time.Time              `json:"timestamp"`
	Checks    map[string]CheckResult `json:"checks,omitempty"`
}

// CheckResult 单个检查结果
type CheckResult struct {
	Status  string `json:"status"` // "pass", "fail"
	Message string `json:"message,omitempty"`
	Latency string `json:"latency,omitempty"`
}

// NewHealthHandler 创建健康检查处理器
func NewHealthHandler(providers ProviderLister, version string, logger *zap.Logger) *HealthHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &HealthHandler{
		logger:    logger,
		providers: providers,
		version:   version,
	}
}

// RegisterCheck 注册就绪检查
func (h *HealthHandler) RegisterCheck(check HealthCheck) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.checks = append(h.checks, check)
}

// Register 注册路由
func (h *HealthHandler) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/health", h.HandleHealth)
	mux.HandleFunc("GET /healthz", h.HandleHealthz)
	mux.HandleFunc("GET /ready", h.HandleReady)
}

// =============================================================================
// 🎯 HTTP 处理程序
// =============================================================================

// HandleHealth 处理 /api/health 请求，报告各服务是否已配置
// @Summary 服务状态
// @Tags 健康
// @Produce json
// @Success 200 {object} api.HealthResponse
// @Router /api/health [get]
func (h *HealthHandler) HandleHealth(w http.ResponseWriter, r *http.Request) {
	resp := api.HealthResponse{
		Status:   statusHealthy,
		Message:  healthyMessage,
		Version:  h.version,
		Services: make(map[string]api.ServiceStatus),

		AspectRatios: dispatch.AspectRatios(),
	}

	if h.providers != nil {
		for _, p := range h.providers.Providers() {
			svc := api.ServiceStatus{
				Status:  statusMissing,
				Message: serviceDescriptions[p.Name],
				Reason:  p.Reason,
			}
			if p.Available {
				svc.Status = statusAvailable
			}
			if svc.Message == "" {
				svc.Message = p.Reason
			}
			for _, k := range p.Capabilities {
				svc.Capabilities = append(svc.Capabilities, string(k))
			}
			resp.Services[p.Name] = svc
		}
	}

	WriteJSON(w, http.StatusOK, resp)
}

// HandleHealthz 处理 /healthz 请求（存活探针）
// @Summary 存活探针
// @Tags 健康
// @Produce json
// @Success 200 {object} ReadyStatus
// @Router /healthz [get]
func (h *HealthHandler) HandleHealthz(w http.ResponseWriter, r *http.Request) {
	WriteJSON(w, http.StatusOK, ReadyStatus{
		Status:    statusHealthy,
		Timestamp: time.Now(),
	})
}

// HandleReady 处理 /ready 请求，并发执行所有已注册检查
// @Summary 就绪探针
// @Tags 健康
// @Produce json
// @Success 200 {object} ReadyStatus
// @Failure 503 {object} ReadyStatus
// @Router /ready [get]
func (h *HealthHandler) HandleReady(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), readyTimeout)
	defer cancel()

	h.mu.RLock()
	checks := make([]HealthCheck, len(h.checks))
	copy(checks, h.checks)
	h.mu.RUnlock()

	results := make([]CheckResult, len(checks))
	var g errgroup.Group
	for i, check := range checks {
		g.Go(func() error {
			start := time.Now()
			err := check.Check(ctx)
			latency := time.Since(start)

			results[i] = CheckResult{Status: "pass", Latency: latency.String()}
			if err != nil {
				results[i].Status = "fail"
				results[i].Message = err.Error()
				h.logger.Warn("readiness check failed",
					zap.String("check", check.Name()),
					zap.Error(err),
					zap.Duration("latency", latency),
				)
			}
			return nil
		})
	}
	_ = g.Wait()

	status := ReadyStatus{
		Status:    statusHealthy,
		Timestamp: time.Now(),
		Checks:    make(map[string]CheckResult, len(checks)),
	}
	for i, check := range checks {
		status.Checks[check.Name()] = results[i]
		if results[i].Status != "pass" {
			status.Status = statusUnhealthy
		}
	}

	if status.Status != statusHealthy {
		WriteJSON(w, http.StatusServiceUnavailable, status)
		return
	}
	WriteJSON(w, http.StatusOK, status)
}

// =============================================================================
// 🔧 内置健康检查实现
// =============================================================================

// FuncCheck 以函数实现的健康检查
type FuncCheck struct {
	name  string
	check func(ctx context.Context) error
}

// NewFuncCheck 创建函数健康检查
func NewFuncCheck(name string, check func(ctx context.Context) error) *FuncCheck {
	return &FuncCheck{name: name, check: check}
}

func (c *FuncCheck) Name() string {
	return c.name
}

func (c *FuncCheck) Check(ctx context.Context) error {
	return c.check(ctx)
}
