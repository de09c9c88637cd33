// Package pollinations generates images through the public Pollinations
// prompt endpoint.
package pollinations

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/gabriel-vasile/mimetype"
	"go.uber.org/zap"

	"github.com/BaSui01/aihub/internal/dispatch"
	"github.com/BaSui01/aihub/internal/httpclient"
	"github.com/BaSui01/aihub/providers"
	"github.com/BaSui01/aihub/types"
)

// Name 是 Provider 注册名
const Name = "pollinations"

// maxImageBytes 单张生成图片的读取上限
const maxImageBytes = 32 << 20

// Provider 调用 GET {base}/prompt/{prompt}?width=&height=&model=
type Provider struct {
	cfg    providers.PollinationsConfig
	client *http.Client
	logger *zap.Logger
}

var _ dispatch.Generator = (*Provider)(nil)

// New 创建 Pollinations Provider。Pollinations 无需凭证。
func New(cfg providers.PollinationsConfig, logger *zap.Logger) *Provider {
	def := providers.DefaultPollinationsConfig()
	if cfg.BaseURL == "" {
		cfg.BaseURL = def.BaseURL
	}
	if cfg.Model == "" {
		cfg.Model = def.Model
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = def.Timeout
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Provider{
		cfg:    cfg,
		client: httpclient.New(httpclient.Options{Timeout: cfg.Timeout}),
		logger: logger.With(zap.String("provider", Name)),
	}
}

// Name 返回 Provider 名称
func (p *Provider) Name() string { return Name }

// HealthCheck 探测服务根路径
func (p *Provider) HealthCheck(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, strings.TrimRight(p.cfg.BaseURL, "/")+"/", nil)
	if err != nil {
		return err
	}
	resp, err := p.client.Do(req)
	if err != nil {
		return fmt.Errorf("pollinations health check: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= http.StatusInternalServerError {
		return providers.MapHTTPError(resp.StatusCode, "", Name)
	}
	return nil
}

// Generate 生成图片并返回字节与可复用的 URL
func (p *Provider) Generate(ctx context.Context, in dispatch.GenerateInput) (dispatch.ImageOutput, error) {
	model := providers.ChooseModel(in.Model, p.cfg.Model, providers.DefaultPollinationsModel)
	imageURL := p.buildURL(in, model)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, imageURL, nil)
	if err != nil {
		return dispatch.ImageOutput{}, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "image/*")

	start := time.Now()
	resp, err := p.client.Do(req)
	if err != nil {
		p.logger.Warn("pollinations request failed", zap.Error(err))
		return dispatch.ImageOutput{}, fmt.Errorf("pollinations request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxImageBytes+1))
	if err != nil {
		return dispatch.ImageOutput{}, fmt.Errorf("read pollinations response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return dispatch.ImageOutput{}, providers.MapHTTPError(resp.StatusCode, truncate(string(body), 200), Name)
	}
	if len(body) > maxImageBytes {
		return dispatch.ImageOutput{}, types.NewError(types.ErrAdapterFailure, "image exceeds size limit").WithProvider(Name)
	}

	p.logger.Debug("pollinations image generated",
		zap.String("model", model),
		zap.Int("bytes", len(body)),
		zap.Duration("latency", time.Since(start)))

	if len(body) == 0 {
		return dispatch.ImageOutput{Model: model}, nil
	}
	mtype := mimetype.Detect(body)
	if !strings.HasPrefix(mtype.String(), "image/") {
		return dispatch.ImageOutput{}, types.NewError(types.ErrAdapterFailure,
			fmt.Sprintf("unexpected content type %s", mtype.String())).WithProvider(Name)
	}

	return dispatch.ImageOutput{
		Data:     body,
		MIMEType: mtype.String(),
		URL:      imageURL,
		Model:    model,
	}, nil
}

func (p *Provider) buildURL(in dispatch.GenerateInput, model string) string {
	q := url.Values{}
	q.Set("width", strconv.Itoa(in.Size.Width))
	q.Set("height", strconv.Itoa(in.Size.Height))
	q.Set("model", model)
	if p.cfg.NoLogo {
		q.Set("nologo", "true")
	}
	prompt := providers.StylePrompt(in.Prompt, in.Style)
	return fmt.Sprintf("%s/prompt/%s?%s",
		strings.TrimRight(p.cfg.BaseURL, "/"), url.PathEscape(prompt), q.Encode())
}

func truncate(s string, n int) string {
	s = strings.TrimSpace(s)
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
