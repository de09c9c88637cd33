package providers

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/BaSui01/aihub/types"
)

// ChooseModel selects the model to use based on priority:
// request model, then config model, then the provider default.
func ChooseModel(requested, configModel, defaultModel string) string {
	if m := strings.TrimSpace(requested); m != "" {
		return m
	}
	if m := strings.TrimSpace(configModel); m != "" {
		return m
	}
	return defaultModel
}

// MapHTTPError 将上游 HTTP 状态码映射为 ADAPTER_FAILURE 错误。
// 429 与 5xx 标记为可重试。
func MapHTTPError(status int, msg string, provider string) *types.Error {
	msg = strings.TrimSpace(msg)
	if msg == "" {
		msg = http.StatusText(status)
	}

	var text string
	retryable := false
	switch {
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		text = fmt.Sprintf("authentication rejected (%d): %s", status, msg)
	case status == http.StatusTooManyRequests:
		text = fmt.Sprintf("rate limited (%d): %s", status, msg)
		retryable = true
	case status == http.StatusBadRequest && isQuotaMessage(msg):
		text = fmt.Sprintf("quota exceeded (%d): %s", status, msg)
	case status >= 500:
		text = fmt.Sprintf("upstream error (%d): %s", status, msg)
		retryable = true
	default:
		text = fmt.Sprintf("request rejected (%d): %s", status, msg)
	}

	return types.NewError(types.ErrAdapterFailure, text).
		WithRetryable(retryable).
		WithProvider(provider)
}

func isQuotaMessage(msg string) bool {
	lower := strings.ToLower(msg)
	return strings.Contains(lower, "quota") ||
		strings.Contains(lower, "credit") ||
		strings.Contains(lower, "limit")
}

// WithTimeout 在调用方未设置截止时间时附加 Provider 超时
func WithTimeout(ctx context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	if ctx == nil {
		ctx = context.Background()
	}
	if _, ok := ctx.Deadline(); ok || timeout <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, timeout)
}

// StylePrompt 将风格附加到提示词
func StylePrompt(prompt, style string) string {
	prompt = strings.TrimSpace(prompt)
	style = strings.TrimSpace(style)
	if style == "" {
		return prompt
	}
	return fmt.Sprintf("%s, %s style", prompt, style)
}
