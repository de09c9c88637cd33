package handlers

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/BaSui01/aihub/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// =============================================================================
// 🧪 Common 函数测试
// =============================================================================

func TestWriteJSON(t *testing.T) {
	tests := []struct {
		name       string
		data       any
		wantStatus int
	}{
		{
			name:       "simple object",
			data:       map[string]string{"message": "hello"},
			wantStatus: http.StatusOK,
		},
		{
			name:       "array",
			data:       []int{1, 2, 3},
			wantStatus: http.StatusAccepted,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			WriteJSON(w, tt.wantStatus, tt.data)

			assert.Equal(t, tt.wantStatus, w.Code)
			assert.Equal(t, "application/json; charset=utf-8", w.Header().Get("Content-Type"))
			assert.Equal(t, "nosniff", w.Header().Get("X-Content-Type-Options"))
		})
	}
}

func TestWriteEnvelope_Success(t *testing.T) {
	w := httptest.NewRecorder()
	WriteEnvelope(w, types.Success(map[string]any{"answer": "hi", "model_used": "m"}))

	assert.Equal(t, http.StatusOK, w.Code)

	var body map[string]any
	require.NoError(t, json.NewDecoder(w.Body).Decode(&body))
	assert.Equal(t, "success", body["status"])
	assert.Equal(t, "hi", body["answer"])
	assert.Equal(t, "m", body["model_used"])
	assert.NotContains(t, body, "error")
}

func TestWriteEnvelope_ErrorStatus(t *testing.T) {
	tests := []struct {
		code       types.ErrorCode
		wantStatus int
	}{
		{types.ErrValidation, http.StatusBadRequest},
		{types.ErrDecode, http.StatusBadRequest},
		{types.ErrFetch, http.StatusBadRequest},
		{types.ErrProviderUnavailable, http.StatusServiceUnavailable},
		{types.ErrAdapterFailure, http.StatusBadGateway},
		{types.ErrEmptyResult, http.StatusBadGateway},
		{types.ErrInternalError, http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(string(tt.code), func(t *testing.T) {
			w := httptest.NewRecorder()
			WriteEnvelope(w, types.Failure(types.NewError(tt.code, "boom")))

			assert.Equal(t, tt.wantStatus, w.Code)

			var body map[string]any
			require.NoError(t, json.NewDecoder(w.Body).Decode(&body))
			assert.Equal(t, "error", body["status"])
			assert.Equal(t, "boom", body["error"])
			assert.Equal(t, string(tt.code), body["code"])
		})
	}
}

func TestWriteError_UsesExplicitStatus(t *testing.T) {
	w := httptest.NewRecorder()
	err := types.NewValidationError("too big").WithHTTPStatus(http.StatusRequestEntityTooLarge)

	WriteError(w, err, zap.NewNop())

	assert.Equal(t, http.StatusRequestEntityTooLarge, w.Code)
	assert.Contains(t, w.Body.String(), `"code":"VALIDATION_ERROR"`)
}

func TestDecodeJSONBody(t *testing.T) {
	type payload struct {
		Name string `json:"name"`
	}

	tests := []struct {
		name    string
		body    string
		wantErr string
		want    string
	}{
		{name: "valid", body: `{"name":"fox"}`, want: "fox"},
		{name: "unknown fields ignored", body: `{"name":"fox","extra":1}`, want: "fox"},
		{name: "empty body", body: "", wantErr: "Request body is required"},
		{name: "malformed", body: `{"name":`, wantErr: "Invalid JSON body"},
		{name: "wrong type", body: `{"name":42}`, wantErr: "Invalid JSON body"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			r := httptest.NewRequest(http.MethodPost, "/test", strings.NewReader(tt.body))

			var got payload
			err := DecodeJSONBody(w, r, &got, 1<<20)
			if tt.wantErr != "" {
				require.NotNil(t, err)
				assert.Equal(t, types.ErrValidation, err.Code)
				assert.Equal(t, tt.wantErr, err.Message)
				return
			}
			require.Nil(t, err)
			assert.Equal(t, tt.want, got.Name)
		})
	}
}

func TestDecodeJSONBody_MaxBodySize(t *testing.T) {
	oversized := `{"name":"` + strings.Repeat("x", 2<<10) + `"}`

	w := httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodPost, "/test", bytes.NewBufferString(oversized))

	var dst map[string]any
	err := DecodeJSONBody(w, r, &dst, 1<<10)

	require.NotNil(t, err)
	assert.Equal(t, http.StatusRequestEntityTooLarge, err.Status())
}

func TestResponseWriter(t *testing.T) {
	w := httptest.NewRecorder()
	rw := NewResponseWriter(w)

	// 初始状态
	assert.Equal(t, http.StatusOK, rw.StatusCode)
	assert.False(t, rw.Written)

	// 写入状态码
	rw.WriteHeader(http.StatusCreated)
	assert.Equal(t, http.StatusCreated, rw.StatusCode)
	assert.True(t, rw.Written)

	// 再次写入应该被忽略
	rw.WriteHeader(http.StatusBadRequest)
	assert.Equal(t, http.StatusCreated, rw.StatusCode)

	n, err := rw.Write([]byte("test"))
	assert.NoError(t, err)
	assert.Equal(t, 4, n)
	assert.Equal(t, int64(4), rw.BytesWritten)
	assert.Same(t, w, rw.Unwrap())
}
