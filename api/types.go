package api

import "encoding/json"

// =============================================================================
// 请求类型
// =============================================================================

// GenerateRequest 图片生成请求
type GenerateRequest struct {
	// 生成提示词
	Prompt string `json:"prompt" example:"a red fox in snow"`
	// 风格，默认 photorealistic
	Style string `json:"style,omitempty" example:"photorealistic"`
	// 提供方，默认 pollinations
	Provider string `json:"provider,omitempty" example:"pollinations"`
	Model    string `json:"model,omitempty"`
	// 宽高比：1:1、16:9、9:16、4:3、3:4
	AspectRatio string `json:"aspect_ratio,omitempty" example:"16:9"`
}

// ChatRequest 文本对话请求
type ChatRequest struct {
	Message  string `json:"message" example:"Hello"`
	Model    string `json:"model,omitempty" example:"gemini-2.0-flash"`
	Provider string `json:"provider,omitempty"`
	// 历史轮次，[{role, parts:[{text}|{image}]}]
	History json.RawMessage `json:"history,omitempty" swaggertype:"array,object"`
}

// AnalyzeRequest 图片分析请求，image 与 image_url 二选一，同时提供时使用 image
type AnalyzeRequest struct {
	// base64 图片，可带 data URI 头
	Image    string `json:"image,omitempty"`
	ImageURL string `json:"image_url,omitempty"`
	Provider string `json:"provider,omitempty"`
	Model    string `json:"model,omitempty"`
}

// EditRequest 图片编辑请求
type EditRequest struct {
	// base64 图片，可带 data URI 头
	Image       string `json:"image"`
	EditPrompt  string `json:"edit_prompt"`
	Style       string `json:"style,omitempty"`
	Provider    string `json:"provider,omitempty"`
	Model       string `json:"model,omitempty"`
	AspectRatio string `json:"aspect_ratio,omitempty"`
}

// =============================================================================
// 响应类型
// =============================================================================

// ServiceStatus 单个外部服务状态
type ServiceStatus struct {
	// healthy 或 unavailable
	Status       string   `json:"status"`
	Message      string   `json:"message"`
	Reason       string   `json:"reason,omitempty"`
	Capabilities []string `json:"capabilities,omitempty"`
}

// HealthResponse /api/health 响应
type HealthResponse struct {
	Status   string                   `json:"status"`
	Message  string                   `json:"message"`
	Version  string                   `json:"version,omitempty"`
	Services map[string]ServiceStatus `json:"services"`

	// AspectRatios 是生成与编辑接受的画幅标签
	AspectRatios []string `json:"aspect_ratios"`
}
