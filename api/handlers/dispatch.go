package handlers

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/BaSui01/aihub/api"
	"github.com/BaSui01/aihub/internal/convo"
	"github.com/BaSui01/aihub/internal/dispatch"
	"github.com/BaSui01/aihub/internal/imaging"
	"github.com/BaSui01/aihub/types"
	"go.uber.org/zap"
)

// DefaultMaxBodyBytes 默认请求体上限
const DefaultMaxBodyBytes int64 = 32 << 20

// multipartMemory 表单解析时驻留内存的上限，超出部分落盘
const multipartMemory int64 = 8 << 20

// Dispatcher 请求分发接口
type Dispatcher interface {
	Dispatch(ctx context.Context, req dispatch.Request) types.ResultEnvelope
}

// =============================================================================
// 🎯 AI 处理器
// =============================================================================

// AIHandler 处理生成、对话、分析、编辑请求
type AIHandler struct {
	dispatcher   Dispatcher
	maxBodyBytes int64
	logger       *zap.Logger
}

// AIHandlerOption 处理器选项
type AIHandlerOption func(*AIHandler)

// WithMaxBodyBytes 设置请求体上限，<=0 时使用默认值
func WithMaxBodyBytes(n int64) AIHandlerOption {
	return func(h *AIHandler) {
		if n > 0 {
			h.maxBodyBytes = n
		}
	}
}

// NewAIHandler 创建 AI 处理器
func NewAIHandler(d Dispatcher, logger *zap.Logger, opts ...AIHandlerOption) *AIHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	h := &AIHandler{
		dispatcher:   d,
		maxBodyBytes: DefaultMaxBodyBytes,
		logger:       logger.With(zap.String("component", "ai_handler")),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Register 注册路由
func (h *AIHandler) Register(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/generate", h.HandleGenerate)
	mux.HandleFunc("POST /api/chat", h.HandleChat)
	mux.HandleFunc("POST /api/chat-with-image", h.HandleChatWithImage)
	mux.HandleFunc("POST /api/analyze", h.HandleAnalyze)
	mux.HandleFunc("POST /api/edit", h.HandleEdit)
}

// HandleGenerate 处理图片生成
// @Summary 文生图
// @Tags ai
// @Accept json
// @Produce json
// @Param request body api.GenerateRequest true "生成请求"
// @Router /api/generate [post]
func (h *AIHandler) HandleGenerate(w http.ResponseWriter, r *http.Request) {
	var req api.GenerateRequest
	if err := DecodeJSONBody(w, r, &req, h.maxBodyBytes); err != nil {
		WriteError(w, err, h.logger)
		return
	}

	h.dispatch(w, r, dispatch.Request{
		Kind:        dispatch.KindGenerate,
		Provider:    req.Provider,
		Model:       req.Model,
		Prompt:      req.Prompt,
		Style:       req.Style,
		AspectRatio: req.AspectRatio,
	})
}

// HandleChat 处理文本对话
// @Summary 文本对话
// @Tags ai
// @Accept json
// @Produce json
// @Param request body api.ChatRequest true "对话请求"
// @Router /api/chat [post]
func (h *AIHandler) HandleChat(w http.ResponseWriter, r *http.Request) {
	var req api.ChatRequest
	if err := DecodeJSONBody(w, r, &req, h.maxBodyBytes); err != nil {
		WriteError(w, err, h.logger)
		return
	}

	history, err := convo.ParseHistory(req.History)
	if err != nil {
		WriteError(w, asTypedError(err), h.logger)
		return
	}

	h.dispatch(w, r, dispatch.Request{
		Kind:     dispatch.KindChat,
		Provider: req.Provider,
		Model:    req.Model,
		Message:  req.Message,
		History:  history,
	})
}

// HandleChatWithImage 处理带图对话（multipart/form-data）
// @Summary 带图对话
// @Tags ai
// @Accept mpfd
// @Produce json
// @Param message formData string false "消息"
// @Param model formData string false "模型"
// @Param history formData string false "JSON 历史"
// @Param image formData file false "图片"
// @Router /api/chat-with-image [post]
func (h *AIHandler) HandleChatWithImage(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, h.maxBodyBytes)
	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		WriteError(w, formError(err), h.logger)
		return
	}
	if r.MultipartForm != nil {
		defer func() { _ = r.MultipartForm.RemoveAll() }()
	}

	history, err := convo.ParseHistoryString(r.FormValue("history"))
	if err != nil {
		WriteError(w, asTypedError(err), h.logger)
		return
	}

	req := dispatch.Request{
		Kind:     dispatch.KindChatWithImage,
		Provider: r.FormValue("provider"),
		Model:    r.FormValue("model"),
		Message:  r.FormValue("message"),
		History:  history,
	}

	file, _, err := r.FormFile("image")
	switch {
	case err == nil:
		defer file.Close()
		data, readErr := io.ReadAll(file)
		if readErr != nil {
			WriteError(w, types.NewDecodeError("Failed to read uploaded image", readErr), h.logger)
			return
		}
		req.Image.Raw = data
	case errors.Is(err, http.ErrMissingFile):
		// 纯文本消息
	default:
		WriteError(w, formError(err), h.logger)
		return
	}

	h.dispatch(w, r, req)
}

// HandleAnalyze 处理图片分析
// @Summary 图片分析
// @Tags ai
// @Accept json
// @Produce json
// @Param request body api.AnalyzeRequest true "分析请求"
// @Router /api/analyze [post]
func (h *AIHandler) HandleAnalyze(w http.ResponseWriter, r *http.Request) {
	var req api.AnalyzeRequest
	if err := DecodeJSONBody(w, r, &req, h.maxBodyBytes); err != nil {
		WriteError(w, err, h.logger)
		return
	}

	dr := dispatch.Request{
		Kind:     dispatch.KindAnalyze,
		Provider: req.Provider,
		Model:    req.Model,
	}
	// 同时提供时以 base64 为准
	if strings.TrimSpace(req.Image) != "" {
		dr.Image.Base64 = req.Image
	} else {
		dr.Image.URL = req.ImageURL
	}

	h.dispatch(w, r, dr)
}

// HandleEdit 处理图片编辑
// @Summary 图片编辑
// @Tags ai
// @Accept json
// @Produce json
// @Param request body api.EditRequest true "编辑请求"
// @Router /api/edit [post]
func (h *AIHandler) HandleEdit(w http.ResponseWriter, r *http.Request) {
	var req api.EditRequest
	if err := DecodeJSONBody(w, r, &req, h.maxBodyBytes); err != nil {
		WriteError(w, err, h.logger)
		return
	}

	h.dispatch(w, r, dispatch.Request{
		Kind:        dispatch.KindEdit,
		Provider:    req.Provider,
		Model:       req.Model,
		Prompt:      req.EditPrompt,
		Style:       req.Style,
		AspectRatio: req.AspectRatio,
		Image:       imaging.Source{Base64: req.Image},
	})
}

// =============================================================================
// 🔧 内部辅助
// =============================================================================

func (h *AIHandler) dispatch(w http.ResponseWriter, r *http.Request, req dispatch.Request) {
	env := h.dispatcher.Dispatch(r.Context(), req)
	WriteEnvelope(w, env)
}

func asTypedError(err error) *types.Error {
	if te, ok := types.AsError(err); ok {
		return te
	}
	return types.NewValidationError(err.Error()).WithCause(err)
}

func formError(err error) *types.Error {
	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		return types.NewValidationError("Request body too large").
			WithCause(err).
			WithHTTPStatus(http.StatusRequestEntityTooLarge)
	}
	return types.NewValidationError("Invalid multipart form").WithCause(err)
}
