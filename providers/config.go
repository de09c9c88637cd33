package providers

import "time"

// GeminiConfig Gemini Provider 配置
type GeminiConfig struct {
	APIKey  string `json:"api_key" yaml:"api_key"`
	BaseURL string `json:"base_url,omitempty" yaml:"base_url,omitempty"`
	// ChatModel 纯文本对话模型
	ChatModel string `json:"chat_model,omitempty" yaml:"chat_model,omitempty"`
	// VisionModel 带图对话与图片分析模型
	VisionModel string `json:"vision_model,omitempty" yaml:"vision_model,omitempty"`
	// ImageModel 图片生成与编辑模型（responseModalities 含 IMAGE）
	ImageModel      string        `json:"image_model,omitempty" yaml:"image_model,omitempty"`
	MaxOutputTokens int           `json:"max_output_tokens,omitempty" yaml:"max_output_tokens,omitempty"`
	Timeout         time.Duration `json:"timeout,omitempty" yaml:"timeout,omitempty"`
}

// PollinationsConfig Pollinations 图片生成配置
type PollinationsConfig struct {
	BaseURL string        `json:"base_url,omitempty" yaml:"base_url,omitempty"`
	Model   string        `json:"model,omitempty" yaml:"model,omitempty"`
	NoLogo  bool          `json:"nologo" yaml:"nologo"`
	Timeout time.Duration `json:"timeout,omitempty" yaml:"timeout,omitempty"`
}

// OpenAIConfig OpenAI 兼容 Provider 配置
type OpenAIConfig struct {
	APIKey      string        `json:"api_key" yaml:"api_key"`
	BaseURL     string        `json:"base_url,omitempty" yaml:"base_url,omitempty"`
	Model       string        `json:"model,omitempty" yaml:"model,omitempty"`
	VisionModel string        `json:"vision_model,omitempty" yaml:"vision_model,omitempty"`
	MaxTokens   int           `json:"max_tokens,omitempty" yaml:"max_tokens,omitempty"`
	MaxRetries  int           `json:"max_retries,omitempty" yaml:"max_retries,omitempty"`
	Timeout     time.Duration `json:"timeout,omitempty" yaml:"timeout,omitempty"`
}

// 默认值
const (
	DefaultGeminiChatModel   = "gemini-2.0-flash"
	DefaultGeminiVisionModel = "gemini-2.5-flash"
	DefaultGeminiImageModel  = "gemini-2.0-flash-preview-image-generation"

	DefaultPollinationsBaseURL = "https://image.pollinations.ai"
	DefaultPollinationsModel   = "flux-pro"

	DefaultOpenAIBaseURL = "https://api.openai.com/v1"
	DefaultOpenAIModel   = "gpt-4o-mini"

	DefaultTimeout = 60 * time.Second
)

// DefaultGeminiConfig 返回 Gemini 默认配置（不含 APIKey）
func DefaultGeminiConfig() GeminiConfig {
	return GeminiConfig{
		ChatModel:   DefaultGeminiChatModel,
		VisionModel: DefaultGeminiVisionModel,
		ImageModel:  DefaultGeminiImageModel,
		Timeout:     DefaultTimeout,
	}
}

// DefaultPollinationsConfig 返回 Pollinations 默认配置
func DefaultPollinationsConfig() PollinationsConfig {
	return PollinationsConfig{
		BaseURL: DefaultPollinationsBaseURL,
		Model:   DefaultPollinationsModel,
		NoLogo:  true,
		Timeout: DefaultTimeout,
	}
}

// DefaultOpenAIConfig 返回 OpenAI 默认配置（不含 APIKey）
func DefaultOpenAIConfig() OpenAIConfig {
	return OpenAIConfig{
		BaseURL:    DefaultOpenAIBaseURL,
		Model:      DefaultOpenAIModel,
		MaxRetries: 2,
		Timeout:    DefaultTimeout,
	}
}
