package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/BaSui01/aihub/api/handlers"
	"github.com/BaSui01/aihub/config"
	"github.com/BaSui01/aihub/internal/convo"
	"github.com/BaSui01/aihub/internal/dispatch"
	"github.com/BaSui01/aihub/internal/httpclient"
	"github.com/BaSui01/aihub/internal/imaging"
	"github.com/BaSui01/aihub/internal/metrics"
	"github.com/BaSui01/aihub/internal/server"
	"github.com/BaSui01/aihub/internal/telemetry"
	"github.com/BaSui01/aihub/providers"
	"github.com/BaSui01/aihub/providers/gemini"
	"github.com/BaSui01/aihub/providers/openai"
	"github.com/BaSui01/aihub/providers/pollinations"
)

// =============================================================================
// 🖥️ Server 结构
// =============================================================================

// Server 是 AIHub 的主服务器
type Server struct {
	cfg    *config.Config
	logger *zap.Logger

	collector *metrics.Collector
	otel      *telemetry.Providers
}

// NewServer 创建新的服务器实例
func NewServer(cfg *config.Config, logger *zap.Logger) *Server {
	return &Server{cfg: cfg, logger: logger}
}

// Run 启动 API 与 Metrics 服务器，收到 SIGINT/SIGTERM 后优雅关闭
func (s *Server) Run() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	otelProviders, err := telemetry.Init(s.cfg.Telemetry, s.logger)
	if err != nil {
		s.logger.Warn("failed to initialize telemetry", zap.Error(err))
		otelProviders = &telemetry.Providers{}
	}
	s.otel = otelProviders
	s.collector = metrics.NewCollector("aihub", s.logger)

	set := buildProviders(ctx, s.cfg.Providers, s.logger)
	for name, up := range set.up {
		s.collector.SetProviderUp(name, up)
	}

	router := s.newRouter(set)
	health := handlers.NewHealthHandler(router, Version, s.logger)
	for _, check := range set.checks {
		health.RegisterCheck(check)
	}
	ai := handlers.NewAIHandler(router, s.logger, handlers.WithMaxBodyBytes(s.cfg.Server.MaxBodyBytes))

	managers := []*server.Manager{
		server.NewManager(s.apiHandler(ctx, ai, health), s.apiServerConfig(), s.logger),
	}
	if s.cfg.Server.MetricsPort > 0 {
		managers = append(managers, server.NewManager(metricsHandler(), s.metricsServerConfig(), s.logger))
	}

	s.logger.Info("serving",
		zap.Int("http_port", s.cfg.Server.HTTPPort),
		zap.Int("metrics_port", s.cfg.Server.MetricsPort),
	)
	runErr := server.Run(ctx, managers...)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := s.otel.Shutdown(shutdownCtx); err != nil {
		s.logger.Warn("telemetry shutdown error", zap.Error(err))
	}

	s.logger.Info("Graceful shutdown completed")
	return runErr
}

// =============================================================================
// 🔧 组件装配
// =============================================================================

// providerSet 初始化结果：可用的 Provider、不可用原因与就绪检查
type providerSet struct {
	available   []dispatch.Provider
	unavailable map[string]string
	checks      []handlers.HealthCheck
	up          map[string]bool
}

func (ps *providerSet) add(p dispatch.Provider) {
	ps.available = append(ps.available, p)
	ps.up[p.Name()] = true
	if hc, ok := p.(interface{ HealthCheck(context.Context) error }); ok {
		ps.checks = append(ps.checks, handlers.NewFuncCheck(p.Name(), hc.HealthCheck))
	}
}

func (ps *providerSet) markUnavailable(name, reason string) {
	ps.unavailable[name] = reason
	ps.up[name] = false
}

// options 转换为路由选项
func (ps *providerSet) options() []dispatch.Option {
	opts := make([]dispatch.Option, 0, len(ps.available)+len(ps.unavailable))
	for _, p := range ps.available {
		opts = append(opts, dispatch.WithProvider(p))
	}
	for name, reason := range ps.unavailable {
		opts = append(opts, dispatch.WithUnavailable(name, reason))
	}
	return opts
}

// buildProviders 构造所有外部服务适配器，初始化失败的记为不可用而不中断启动
func buildProviders(ctx context.Context, cfg config.ProvidersConfig, logger *zap.Logger) *providerSet {
	set := &providerSet{
		unavailable: make(map[string]string),
		up:          make(map[string]bool),
	}

	if cfg.Pollinations.Enabled {
		set.add(pollinations.New(providers.PollinationsConfig{
			BaseURL: cfg.Pollinations.BaseURL,
			Model:   cfg.Pollinations.Model,
			NoLogo:  cfg.Pollinations.NoLogo,
			Timeout: cfg.Pollinations.Timeout,
		}, logger))
	} else {
		set.markUnavailable(pollinations.Name, "Pollinations disabled by configuration")
	}

	if p, err := gemini.New(ctx, providers.GeminiConfig(cfg.Gemini), logger); err != nil {
		logger.Warn("gemini unavailable", zap.Error(err))
		set.markUnavailable(gemini.Name, err.Error())
	} else {
		set.add(p)
	}

	if p, err := openai.New(providers.OpenAIConfig(cfg.OpenAI), logger); err != nil {
		logger.Info("openai unavailable", zap.Error(err))
		set.markUnavailable(openai.Name, err.Error())
	} else {
		set.add(p)
	}

	return set
}

func (s *Server) newRouter(set *providerSet) *dispatch.Router {
	ingestor := imaging.NewIngestor(
		imaging.Config{
			MaxBytes:     s.cfg.Imaging.MaxBytes,
			MaxDimension: s.cfg.Imaging.MaxDimension,
			MaxPixels:    s.cfg.Imaging.MaxPixels,
			FetchTimeout: s.cfg.Imaging.FetchTimeout,
		},
		imaging.NewHTTPFetcher(
			httpclient.New(httpclient.Options{Timeout: s.cfg.Imaging.FetchTimeout}),
			s.cfg.Imaging.MaxBytes,
		),
		s.logger,
		imaging.WithRecorder(s.collector),
	)

	builder := convo.NewBuilder(convo.Limits{
		TextChatTurns:       s.cfg.Context.TextChatTurns,
		MultimodalChatTurns: s.cfg.Context.MultimodalChatTurns,
		MaxContextLines:     s.cfg.Context.MaxContextLines,
	})

	opts := append(set.options(),
		dispatch.WithRecorder(s.collector),
		dispatch.WithTracerProvider(s.otel.TracerProvider()),
		dispatch.WithMeterProvider(s.otel.MeterProvider()),
	)

	return dispatch.NewRouter(dispatch.Config{
		GenerateProvider: s.cfg.Dispatch.GenerateProvider,
		DefaultProvider:  s.cfg.Dispatch.DefaultProvider,
		DefaultStyle:     s.cfg.Dispatch.DefaultStyle,
	}, builder, ingestor, s.logger, opts...)
}

// =============================================================================
// 🌐 HTTP 服务器
// =============================================================================

// apiHandler 注册路由并构建中间件链
func (s *Server) apiHandler(ctx context.Context, ai *handlers.AIHandler, health *handlers.HealthHandler) http.Handler {
	mux := http.NewServeMux()
	ai.Register(mux)
	health.Register(mux)

	return Chain(mux,
		Recovery(s.logger),
		RequestID(),
		SecurityHeaders(),
		RequestLogger(s.logger),
		MetricsMiddleware(s.collector),
		OTelTracing(s.otel.TracerProvider()),
		CORS(s.cfg.Server.CORSAllowedOrigins),
		RateLimiter(ctx, s.cfg.Server.RateLimitRPS, s.cfg.Server.RateLimitBurst, s.logger),
	)
}

func (s *Server) apiServerConfig() server.Config {
	cfg := server.DefaultConfig()
	cfg.Name = "api"
	cfg.Addr = fmt.Sprintf(":%d", s.cfg.Server.HTTPPort)
	cfg.ReadTimeout = s.cfg.Server.ReadTimeout
	cfg.WriteTimeout = s.cfg.Server.WriteTimeout
	cfg.IdleTimeout = 2 * s.cfg.Server.ReadTimeout
	cfg.ShutdownTimeout = s.cfg.Server.ShutdownTimeout
	return cfg
}

// =============================================================================
// 📊 Metrics 服务器
// =============================================================================

func metricsHandler() http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	return mux
}

func (s *Server) metricsServerConfig() server.Config {
	cfg := server.DefaultConfig()
	cfg.Name = "metrics"
	cfg.Addr = fmt.Sprintf(":%d", s.cfg.Server.MetricsPort)
	cfg.WriteTimeout = 30 * time.Second
	cfg.ShutdownTimeout = s.cfg.Server.ShutdownTimeout
	return cfg
}
