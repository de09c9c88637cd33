// Package openai adapts any OpenAI-compatible chat completions endpoint to the
// dispatch chat, multimodal chat and analysis capabilities.
package openai

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
	"go.uber.org/zap"

	"github.com/BaSui01/aihub/internal/dispatch"
	"github.com/BaSui01/aihub/internal/httpclient"
	"github.com/BaSui01/aihub/internal/imaging"
	"github.com/BaSui01/aihub/providers"
	"github.com/BaSui01/aihub/types"
)

// Name 是 Provider 注册名
const Name = "openai"

// ErrMissingAPIKey 未配置 API Key
var ErrMissingAPIKey = errors.New("OpenAI service unavailable - OPENAI_API_KEY required")

// Provider 通过 openai-go 调用 Chat Completions
type Provider struct {
	cfg    providers.OpenAIConfig
	client openai.Client
	logger *zap.Logger
}

var (
	_ dispatch.Chatter           = (*Provider)(nil)
	_ dispatch.MultimodalChatter = (*Provider)(nil)
	_ dispatch.Analyzer          = (*Provider)(nil)
)

// New 创建 OpenAI 兼容 Provider
func New(cfg providers.OpenAIConfig, logger *zap.Logger) (*Provider, error) {
	cfg.APIKey = strings.TrimSpace(cfg.APIKey)
	if cfg.APIKey == "" {
		return nil, ErrMissingAPIKey
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	def := providers.DefaultOpenAIConfig()
	if cfg.BaseURL == "" {
		cfg.BaseURL = def.BaseURL
	}
	if cfg.Model == "" {
		cfg.Model = def.Model
	}
	if cfg.VisionModel == "" {
		cfg.VisionModel = cfg.Model
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = def.Timeout
	}

	client := openai.NewClient(
		option.WithAPIKey(cfg.APIKey),
		option.WithBaseURL(strings.TrimRight(cfg.BaseURL, "/")+"/"),
		option.WithHTTPClient(httpclient.New(httpclient.Options{})),
		option.WithMaxRetries(cfg.MaxRetries),
	)

	return &Provider{
		cfg:    cfg,
		client: client,
		logger: logger.With(zap.String("provider", Name)),
	}, nil
}

// Name 返回 Provider 名称
func (p *Provider) Name() string { return Name }

// Chat 发送扁平化上下文
func (p *Provider) Chat(ctx context.Context, in dispatch.ChatInput) (dispatch.TextOutput, error) {
	model := providers.ChooseModel(in.Model, p.cfg.Model, providers.DefaultOpenAIModel)
	msg := openai.UserMessage(in.Context.Text())
	return p.complete(ctx, model, msg)
}

// ChatMultimodal 发送上下文与图片
func (p *Provider) ChatMultimodal(ctx context.Context, in dispatch.ChatInput, img *imaging.CanonicalImage) (dispatch.TextOutput, error) {
	msg, err := imageMessage(in.Context.Text(), img)
	if err != nil {
		return dispatch.TextOutput{}, err
	}
	model := providers.ChooseModel(in.Model, p.cfg.VisionModel, p.cfg.Model)
	return p.complete(ctx, model, msg)
}

// Analyze 按指令描述图片
func (p *Provider) Analyze(ctx context.Context, in dispatch.AnalyzeInput) (dispatch.TextOutput, error) {
	msg, err := imageMessage(in.Instruction, in.Image)
	if err != nil {
		return dispatch.TextOutput{}, err
	}
	model := providers.ChooseModel(in.Model, p.cfg.VisionModel, p.cfg.Model)
	return p.complete(ctx, model, msg)
}

func (p *Provider) complete(ctx context.Context, model string, msg openai.ChatCompletionMessageParamUnion) (dispatch.TextOutput, error) {
	callCtx, cancel := providers.WithTimeout(ctx, p.cfg.Timeout)
	defer cancel()

	params := openai.ChatCompletionNewParams{
		Model:    openai.ChatModel(model),
		Messages: []openai.ChatCompletionMessageParamUnion{msg},
	}
	if p.cfg.MaxTokens > 0 {
		params.MaxTokens = openai.Int(int64(p.cfg.MaxTokens))
	}

	start := time.Now()
	resp, err := p.client.Chat.Completions.New(callCtx, params)
	if err != nil {
		p.logger.Warn("openai request failed",
			zap.String("model", model),
			zap.Duration("latency", time.Since(start)),
			zap.Error(err))
		return dispatch.TextOutput{}, mapError(err)
	}
	p.logger.Debug("openai request completed",
		zap.String("model", model),
		zap.Duration("latency", time.Since(start)))

	out := dispatch.TextOutput{
		Model:            model,
		PromptTokens:     int(resp.Usage.PromptTokens),
		CompletionTokens: int(resp.Usage.CompletionTokens),
	}
	if resp.Model != "" {
		out.Model = resp.Model
	}
	if len(resp.Choices) > 0 {
		out.Text = strings.TrimSpace(resp.Choices[0].Message.Content)
		if refusal := resp.Choices[0].Message.Refusal; out.Text == "" && refusal != "" {
			return dispatch.TextOutput{}, types.NewError(types.ErrAdapterFailure, "refused: "+refusal).WithProvider(Name)
		}
	}
	return out, nil
}

func imageMessage(text string, img *imaging.CanonicalImage) (openai.ChatCompletionMessageParamUnion, error) {
	if img == nil {
		return openai.ChatCompletionMessageParamUnion{}, types.NewError(types.ErrInternalError, "missing image").WithProvider(Name)
	}
	data, err := img.JPEG()
	if err != nil {
		return openai.ChatCompletionMessageParamUnion{}, fmt.Errorf("encode image: %w", err)
	}

	parts := make([]openai.ChatCompletionContentPartUnionParam, 0, 2)
	if text != "" {
		parts = append(parts, openai.TextContentPart(text))
	}
	parts = append(parts, openai.ImageContentPart(openai.ChatCompletionContentPartImageImageURLParam{
		URL:    "data:image/jpeg;base64," + base64.StdEncoding.EncodeToString(data),
		Detail: "auto",
	}))
	return openai.UserMessage(parts), nil
}

func mapError(err error) error {
	var apiErr *openai.Error
	if errors.As(err, &apiErr) {
		return providers.MapHTTPError(apiErr.StatusCode, apiErr.Message, Name)
	}
	return err
}
