// =============================================================================
// 📦 AIHub 默认配置
// =============================================================================
package config

import "time"

// DefaultConfig 返回默认配置
func DefaultConfig() *Config {
	return &Config{
		Server:    DefaultServerConfig(),
		Log:       DefaultLogConfig(),
		Telemetry: DefaultTelemetryConfig(),
		Providers: DefaultProvidersConfig(),
		Context:   DefaultContextConfig(),
		Imaging:   DefaultImagingConfig(),
		Dispatch:  DefaultDispatchConfig(),
	}
}

// DefaultServerConfig 返回默认服务器配置
func DefaultServerConfig() ServerConfig {
	return ServerConfig{
		HTTPPort:        5000,
		MetricsPort:     9091,
		ReadTimeout:     30 * time.Second,
		WriteTimeout:    150 * time.Second,
		ShutdownTimeout: 15 * time.Second,
		RateLimitRPS:    10,
		RateLimitBurst:  20,
		MaxBodyBytes:    32 << 20,
	}
}

// DefaultLogConfig 返回默认日志配置
func DefaultLogConfig() LogConfig {
	return LogConfig{
		Level:            "info",
		Format:           "json",
		OutputPaths:      []string{"stdout"},
		EnableCaller:     true,
		EnableStacktrace: false,
		File: LogFileConfig{
			MaxSizeMB:  100,
			MaxBackups: 5,
			MaxAgeDays: 28,
			Compress:   true,
		},
	}
}

// DefaultTelemetryConfig 返回默认遥测配置
func DefaultTelemetryConfig() TelemetryConfig {
	return TelemetryConfig{
		Enabled:      false,
		OTLPEndpoint: "localhost:4317",
		Insecure:     true,
		ServiceName:  "aihub",
		SampleRate:   0.1,
	}
}

// DefaultProvidersConfig 返回默认 Provider 配置（不含密钥）
func DefaultProvidersConfig() ProvidersConfig {
	return ProvidersConfig{
		Gemini: GeminiConfig{
			ChatModel:   "gemini-2.0-flash",
			VisionModel: "gemini-2.5-flash",
			ImageModel:  "gemini-2.0-flash-preview-image-generation",
			Timeout:     2 * time.Minute,
		},
		Pollinations: PollinationsConfig{
			Enabled: true,
			BaseURL: "https://image.pollinations.ai",
			Model:   "flux-pro",
			NoLogo:  true,
			Timeout: 2 * time.Minute,
		},
		OpenAI: OpenAIConfig{
			BaseURL:    "https://api.openai.com/v1",
			Model:      "gpt-4o-mini",
			MaxRetries: 2,
			Timeout:    2 * time.Minute,
		},
	}
}

// DefaultContextConfig 返回默认上下文窗口
func DefaultContextConfig() ContextConfig {
	return ContextConfig{
		TextChatTurns:       10,
		MultimodalChatTurns: 5,
		MaxContextLines:     20,
	}
}

// DefaultImagingConfig 返回默认图片摄入配置
func DefaultImagingConfig() ImagingConfig {
	return ImagingConfig{
		MaxBytes:     20 << 20,
		MaxDimension: 2048,
		MaxPixels:    40_000_000,
		FetchTimeout: 20 * time.Second,
	}
}

// DefaultDispatchConfig 返回默认路由配置
func DefaultDispatchConfig() DispatchConfig {
	return DispatchConfig{
		GenerateProvider: "pollinations",
		DefaultProvider:  "gemini",
		DefaultStyle:     "photorealistic",
	}
}
