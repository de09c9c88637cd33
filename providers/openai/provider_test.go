package openai

import (
	"context"
	"encoding/json"
	"image"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"
	"go.uber.org/zap"

	"github.com/BaSui01/aihub/internal/convo"
	"github.com/BaSui01/aihub/internal/dispatch"
	"github.com/BaSui01/aihub/internal/imaging"
	"github.com/BaSui01/aihub/providers"
	"github.com/BaSui01/aihub/types"
)

const completionBody = `{
	"id": "chatcmpl-1",
	"object": "chat.completion",
	"created": 1,
	"model": "gpt-4o-mini-2024",
	"choices": [{"index": 0, "finish_reason": "stop", "message": {"role": "assistant", "content": " hello "}}],
	"usage": {"prompt_tokens": 5, "completion_tokens": 3, "total_tokens": 8}
}`

type capture struct {
	path string
	body []byte
}

func newServer(t *testing.T, status int, body string, got *capture) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got.path = r.URL.Path
		got.body, _ = io.ReadAll(r.Body)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func newTestProvider(t *testing.T, baseURL string) *Provider {
	t.Helper()
	p, err := New(providers.OpenAIConfig{
		APIKey:      "sk-test",
		BaseURL:     baseURL + "/v1",
		Model:       "gpt-4o-mini",
		VisionModel: "gpt-4o",
	}, zap.NewNop())
	require.NoError(t, err)
	return p
}

func TestNew_RequiresAPIKey(t *testing.T) {
	_, err := New(providers.OpenAIConfig{}, nil)
	assert.ErrorIs(t, err, ErrMissingAPIKey)
}

func TestChat(t *testing.T) {
	var got capture
	srv := newServer(t, http.StatusOK, completionBody, &got)
	p := newTestProvider(t, srv.URL)

	out, err := p.Chat(context.Background(), dispatch.ChatInput{
		Context: convo.Context{Lines: []string{"User: hi", "Assistant: hey", "User: bye"}},
	})
	require.NoError(t, err)

	assert.Equal(t, "hello", out.Text)
	assert.Equal(t, "gpt-4o-mini-2024", out.Model)
	assert.Equal(t, 5, out.PromptTokens)
	assert.Equal(t, 3, out.CompletionTokens)

	assert.Equal(t, "/v1/chat/completions", got.path)
	assert.Equal(t, "gpt-4o-mini", gjson.GetBytes(got.body, "model").String())
	assert.Equal(t, "user", gjson.GetBytes(got.body, "messages.0.role").String())
	assert.Equal(t, "User: hi\nAssistant: hey\nUser: bye", gjson.GetBytes(got.body, "messages.0.content").String())
}

func TestChatMultimodal_SendsDataURL(t *testing.T) {
	var got capture
	srv := newServer(t, http.StatusOK, completionBody, &got)
	p := newTestProvider(t, srv.URL)

	img := imaging.Canonicalize(image.NewRGBA(image.Rect(0, 0, 2, 2)), "png", 0)
	_, err := p.ChatMultimodal(context.Background(), dispatch.ChatInput{
		Context: convo.Context{Lines: []string{"User: what is it"}},
	}, img)
	require.NoError(t, err)

	assert.Equal(t, "gpt-4o", gjson.GetBytes(got.body, "model").String())
	content := gjson.GetBytes(got.body, "messages.0.content")
	require.True(t, content.IsArray())
	assert.Equal(t, "text", content.Get("0.type").String())
	assert.Equal(t, "User: what is it", content.Get("0.text").String())
	assert.Equal(t, "image_url", content.Get("1.type").String())
	assert.True(t, strings.HasPrefix(content.Get("1.image_url.url").String(), "data:image/jpeg;base64,"))
}

func TestAnalyze(t *testing.T) {
	var got capture
	srv := newServer(t, http.StatusOK, completionBody, &got)
	p := newTestProvider(t, srv.URL)

	img := imaging.Canonicalize(image.NewRGBA(image.Rect(0, 0, 2, 2)), "png", 0)
	out, err := p.Analyze(context.Background(), dispatch.AnalyzeInput{Image: img, Instruction: "describe"})
	require.NoError(t, err)
	assert.Equal(t, "hello", out.Text)
	assert.Equal(t, "describe", gjson.GetBytes(got.body, "messages.0.content.0.text").String())
}

func TestChat_MapsHTTPError(t *testing.T) {
	var got capture
	body, _ := json.Marshal(map[string]any{"error": map[string]any{"message": "bad key", "type": "invalid_request_error"}})
	srv := newServer(t, http.StatusUnauthorized, string(body), &got)
	p := newTestProvider(t, srv.URL)

	_, err := p.Chat(context.Background(), dispatch.ChatInput{Context: convo.Context{Lines: []string{"User: x"}}})
	require.Error(t, err)

	e, ok := types.AsError(err)
	require.True(t, ok)
	assert.Equal(t, types.ErrAdapterFailure, e.Code)
	assert.Contains(t, e.Message, "401")
	assert.Contains(t, e.Message, "bad key")
	assert.False(t, e.Retryable)
}
