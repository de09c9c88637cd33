// Package gemini adapts the Google Gemini API (google.golang.org/genai) to the
// dispatch capability interfaces: chat, multimodal chat, analysis, image
// generation and image editing.
package gemini

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
	"google.golang.org/genai"

	"github.com/BaSui01/aihub/internal/dispatch"
	"github.com/BaSui01/aihub/internal/httpclient"
	"github.com/BaSui01/aihub/internal/imaging"
	"github.com/BaSui01/aihub/providers"
	"github.com/BaSui01/aihub/types"
)

// Name 是 Provider 注册名
const Name = "gemini"

// ErrMissingAPIKey 未配置 API Key
var ErrMissingAPIKey = errors.New("Gemini service unavailable - GEMINI_API_KEY required")

// modelsClient 是 genai.Models 的最小子集，便于测试替换
type modelsClient interface {
	GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)
	Get(ctx context.Context, model string, config *genai.GetModelConfig) (*genai.Model, error)
}

var newClient = func(ctx context.Context, cfg *genai.ClientConfig) (*genai.Client, error) {
	return genai.NewClient(ctx, cfg)
}

// Provider 实现 Gemini 的全部能力
type Provider struct {
	cfg    providers.GeminiConfig
	models modelsClient
	logger *zap.Logger
}

var (
	_ dispatch.Chatter           = (*Provider)(nil)
	_ dispatch.MultimodalChatter = (*Provider)(nil)
	_ dispatch.Analyzer          = (*Provider)(nil)
	_ dispatch.Generator         = (*Provider)(nil)
	_ dispatch.Editor            = (*Provider)(nil)
)

// New 创建 Gemini Provider。缺少 APIKey 时返回 ErrMissingAPIKey。
func New(ctx context.Context, cfg providers.GeminiConfig, logger *zap.Logger) (*Provider, error) {
	cfg.APIKey = strings.TrimSpace(cfg.APIKey)
	if cfg.APIKey == "" {
		return nil, ErrMissingAPIKey
	}
	cfg = withDefaults(cfg)

	clientCfg := &genai.ClientConfig{
		APIKey:     cfg.APIKey,
		Backend:    genai.BackendGeminiAPI,
		HTTPClient: httpclient.New(httpclient.Options{}),
	}
	if cfg.BaseURL != "" {
		clientCfg.HTTPOptions = genai.HTTPOptions{BaseURL: cfg.BaseURL}
	}

	client, err := newClient(ctx, clientCfg)
	if err != nil {
		return nil, fmt.Errorf("create gemini client: %w", err)
	}
	return newWithModels(cfg, client.Models, logger), nil
}

func newWithModels(cfg providers.GeminiConfig, models modelsClient, logger *zap.Logger) *Provider {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Provider{
		cfg:    withDefaults(cfg),
		models: models,
		logger: logger.With(zap.String("provider", Name)),
	}
}

func withDefaults(cfg providers.GeminiConfig) providers.GeminiConfig {
	def := providers.DefaultGeminiConfig()
	if cfg.ChatModel == "" {
		cfg.ChatModel = def.ChatModel
	}
	if cfg.VisionModel == "" {
		cfg.VisionModel = def.VisionModel
	}
	if cfg.ImageModel == "" {
		cfg.ImageModel = def.ImageModel
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = def.Timeout
	}
	return cfg
}

// Name 返回 Provider 名称
func (p *Provider) Name() string { return Name }

// HealthCheck 读取对话模型的元数据探测 API 可达性与 Key 有效性，不发起生成请求
func (p *Provider) HealthCheck(ctx context.Context) error {
	callCtx, cancel := providers.WithTimeout(ctx, p.cfg.Timeout)
	defer cancel()

	if _, err := p.models.Get(callCtx, p.cfg.ChatModel, nil); err != nil {
		p.logger.Debug("gemini health check failed", zap.String("model", p.cfg.ChatModel), zap.Error(err))
		return mapError(err)
	}
	return nil
}

// =============================================================================
// 💬 Chat
// =============================================================================

// Chat 发送扁平化的对话上下文
func (p *Provider) Chat(ctx context.Context, in dispatch.ChatInput) (dispatch.TextOutput, error) {
	model := providers.ChooseModel(in.Model, p.cfg.ChatModel, providers.DefaultGeminiChatModel)
	resp, err := p.generate(ctx, model, []*genai.Part{genai.NewPartFromText(in.Context.Text())}, p.textConfig())
	if err != nil {
		return dispatch.TextOutput{}, err
	}
	return textOutput(resp, model), nil
}

// ChatMultimodal 发送上下文与图片。图片对话固定使用视觉模型。
func (p *Provider) ChatMultimodal(ctx context.Context, in dispatch.ChatInput, img *imaging.CanonicalImage) (dispatch.TextOutput, error) {
	imgPart, err := imagePart(img)
	if err != nil {
		return dispatch.TextOutput{}, err
	}

	parts := make([]*genai.Part, 0, 2)
	if text := in.Context.Text(); text != "" {
		parts = append(parts, genai.NewPartFromText(text))
	}
	parts = append(parts, imgPart)

	model := p.cfg.VisionModel
	resp, err := p.generate(ctx, model, parts, p.textConfig())
	if err != nil {
		return dispatch.TextOutput{}, err
	}
	return textOutput(resp, model), nil
}

// Analyze 按指令描述图片
func (p *Provider) Analyze(ctx context.Context, in dispatch.AnalyzeInput) (dispatch.TextOutput, error) {
	imgPart, err := imagePart(in.Image)
	if err != nil {
		return dispatch.TextOutput{}, err
	}
	model := providers.ChooseModel(in.Model, p.cfg.VisionModel, providers.DefaultGeminiVisionModel)
	parts := []*genai.Part{genai.NewPartFromText(in.Instruction), imgPart}

	resp, err := p.generate(ctx, model, parts, p.textConfig())
	if err != nil {
		return dispatch.TextOutput{}, err
	}
	return textOutput(resp, model), nil
}

// =============================================================================
// 🖼️ Image
// =============================================================================

// Generate 使用图片模型生成图片
func (p *Provider) Generate(ctx context.Context, in dispatch.GenerateInput) (dispatch.ImageOutput, error) {
	model := providers.ChooseModel(in.Model, p.cfg.ImageModel, providers.DefaultGeminiImageModel)
	prompt := fmt.Sprintf("%s. Aspect ratio %s.", providers.StylePrompt(in.Prompt, in.Style), in.AspectRatio)

	resp, err := p.generate(ctx, model, []*genai.Part{genai.NewPartFromText(prompt)}, imageConfig())
	if err != nil {
		return dispatch.ImageOutput{}, err
	}
	return imageOutput(resp, model), nil
}

// Edit 在保留主体的前提下按指令改写图片
func (p *Provider) Edit(ctx context.Context, in dispatch.EditInput) (dispatch.ImageOutput, error) {
	imgPart, err := imagePart(in.Image)
	if err != nil {
		return dispatch.ImageOutput{}, err
	}
	model := providers.ChooseModel(in.Model, p.cfg.ImageModel, providers.DefaultGeminiImageModel)
	parts := []*genai.Part{genai.NewPartFromText(editPrompt(in)), imgPart}

	resp, err := p.generate(ctx, model, parts, imageConfig())
	if err != nil {
		return dispatch.ImageOutput{}, err
	}
	return imageOutput(resp, model), nil
}

func editPrompt(in dispatch.EditInput) string {
	var sb strings.Builder
	sb.WriteString("Edit this image: ")
	sb.WriteString(strings.TrimSpace(in.Prompt))
	sb.WriteString(". Keep the same main subject, identity and composition.")
	if in.Style != "" {
		fmt.Fprintf(&sb, " Render it in a %s style.", in.Style)
	}
	if in.AspectRatio != "" {
		fmt.Fprintf(&sb, " Aspect ratio %s.", in.AspectRatio)
	}
	return sb.String()
}

// =============================================================================
// 🔧 内部
// =============================================================================

func (p *Provider) generate(ctx context.Context, model string, parts []*genai.Part, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error) {
	callCtx, cancel := providers.WithTimeout(ctx, p.cfg.Timeout)
	defer cancel()

	start := time.Now()
	contents := []*genai.Content{genai.NewContentFromParts(parts, genai.RoleUser)}
	resp, err := p.models.GenerateContent(callCtx, model, contents, config)
	if err != nil {
		p.logger.Warn("gemini request failed",
			zap.String("model", model),
			zap.Duration("latency", time.Since(start)),
			zap.Error(err))
		return nil, mapError(err)
	}
	if reason := blockReason(resp); reason != "" {
		return nil, types.NewError(types.ErrAdapterFailure, "blocked: "+reason).WithProvider(Name)
	}

	p.logger.Debug("gemini request completed",
		zap.String("model", model),
		zap.Duration("latency", time.Since(start)))
	return resp, nil
}

func (p *Provider) textConfig() *genai.GenerateContentConfig {
	cfg := &genai.GenerateContentConfig{}
	if p.cfg.MaxOutputTokens > 0 {
		cfg.MaxOutputTokens = int32(p.cfg.MaxOutputTokens)
	}
	return cfg
}

func imageConfig() *genai.GenerateContentConfig {
	return &genai.GenerateContentConfig{
		ResponseModalities: []string{"TEXT", "IMAGE"},
	}
}

func imagePart(img *imaging.CanonicalImage) (*genai.Part, error) {
	if img == nil {
		return nil, types.NewError(types.ErrInternalError, "missing image").WithProvider(Name)
	}
	data, err := img.JPEG()
	if err != nil {
		return nil, fmt.Errorf("encode image: %w", err)
	}
	return &genai.Part{InlineData: &genai.Blob{MIMEType: "image/jpeg", Data: data}}, nil
}

func mapError(err error) error {
	var apiErr genai.APIError
	if errors.As(err, &apiErr) {
		return providers.MapHTTPError(apiErr.Code, apiErr.Message, Name)
	}
	return err
}

// blockReason 返回提示词被拦截或候选被安全策略终止的原因
func blockReason(resp *genai.GenerateContentResponse) string {
	if resp == nil {
		return ""
	}
	if len(resp.Candidates) == 0 && resp.PromptFeedback != nil && resp.PromptFeedback.BlockReason != "" {
		return string(resp.PromptFeedback.BlockReason)
	}
	if len(resp.Candidates) > 0 && resp.Candidates[0] != nil {
		switch reason := resp.Candidates[0].FinishReason; reason {
		case genai.FinishReasonSafety, genai.FinishReasonProhibitedContent, genai.FinishReasonBlocklist:
			return string(reason)
		}
	}
	return ""
}

func candidateParts(resp *genai.GenerateContentResponse) []*genai.Part {
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0] == nil || resp.Candidates[0].Content == nil {
		return nil
	}
	return resp.Candidates[0].Content.Parts
}

func extractText(resp *genai.GenerateContentResponse) string {
	var sb strings.Builder
	for _, part := range candidateParts(resp) {
		if part == nil || part.Thought || part.Text == "" {
			continue
		}
		sb.WriteString(part.Text)
	}
	return strings.TrimSpace(sb.String())
}

func textOutput(resp *genai.GenerateContentResponse, model string) dispatch.TextOutput {
	out := dispatch.TextOutput{Text: extractText(resp), Model: model}
	if resp != nil && resp.UsageMetadata != nil {
		out.PromptTokens = int(resp.UsageMetadata.PromptTokenCount)
		out.CompletionTokens = int(resp.UsageMetadata.CandidatesTokenCount)
	}
	return out
}

func imageOutput(resp *genai.GenerateContentResponse, model string) dispatch.ImageOutput {
	out := dispatch.ImageOutput{Model: model, Text: extractText(resp)}
	for _, part := range candidateParts(resp) {
		if part == nil || part.InlineData == nil || len(part.InlineData.Data) == 0 {
			continue
		}
		out.Data = part.InlineData.Data
		out.MIMEType = part.InlineData.MIMEType
		break
	}
	return out
}
