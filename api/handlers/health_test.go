package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/BaSui01/aihub/api"
	"github.com/BaSui01/aihub/internal/dispatch"
)

// =============================================================================
// 🧪 测试辅助类型
// =============================================================================

type mockHealthCheck struct {
	name string
	err  error
}

func (m *mockHealthCheck) Name() string {
	return m.name
}

func (m *mockHealthCheck) Check(ctx context.Context) error {
	return m.err
}

type staticProviders []dispatch.ProviderStatus

func (s staticProviders) Providers() []dispatch.ProviderStatus { return s }

// =============================================================================
// 🧪 HealthHandler 测试
// =============================================================================

func TestHealthHandler_HandleHealth(t *testing.T) {
	providers := staticProviders{
		{Name: "gemini", Reason: "Gemini service unavailable - GEMINI_API_KEY required"},
		{Name: "pollinations", Available: true, Capabilities: []dispatch.Kind{dispatch.KindGenerate}},
		{Name: "custom", Reason: "disabled"},
	}
	handler := NewHealthHandler(providers, "1.2.3", zap.NewNop())

	w := httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodGet, "/api/health", nil)
	handler.HandleHealth(w, r)

	assert.Equal(t, http.StatusOK, w.Code)

	var resp api.HealthResponse
	require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))

	assert.Equal(t, "healthy", resp.Status)
	assert.Equal(t, "AI Image Platform Demo API is running", resp.Message)
	assert.Equal(t, "1.2.3", resp.Version)
	require.Len(t, resp.Services, 3)

	assert.Equal(t, "healthy", resp.Services["pollinations"].Status)
	assert.Equal(t, "Free image generation service", resp.Services["pollinations"].Message)
	assert.Equal(t, []string{"generate"}, resp.Services["pollinations"].Capabilities)

	assert.Equal(t, "unavailable", resp.Services["gemini"].Status)
	assert.Equal(t, "Requires GEMINI_API_KEY environment variable", resp.Services["gemini"].Message)
	assert.Contains(t, resp.Services["gemini"].Reason, "GEMINI_API_KEY")

	// 没有固定说明时回退到原因
	assert.Equal(t, "disabled", resp.Services["custom"].Message)

	assert.Equal(t, []string{"1:1", "16:9", "9:16", "4:3", "3:4"}, resp.AspectRatios)
}

func TestHealthHandler_HandleHealth_NoProviders(t *testing.T) {
	handler := NewHealthHandler(nil, "", nil)

	w := httptest.NewRecorder()
	handler.HandleHealth(w, httptest.NewRequest(http.MethodGet, "/api/health", nil))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"healthy","message":"AI Image Platform Demo API is running","services":{}}`, w.Body.String())
}

func TestHealthHandler_HandleHealthz(t *testing.T) {
	handler := NewHealthHandler(nil, "", zap.NewNop())

	w := httptest.NewRecorder()
	handler.HandleHealthz(w, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	assert.Equal(t, http.StatusOK, w.Code)

	var status ReadyStatus
	require.NoError(t, json.NewDecoder(w.Body).Decode(&status))
	assert.Equal(t, "healthy", status.Status)
	assert.False(t, status.Timestamp.IsZero())
}

func TestHealthHandler_HandleReady(t *testing.T) {
	tests := []struct {
		name           string
		setupChecks    func(*HealthHandler)
		expectedStatus int
		checkStatus    func(*testing.T, *ReadyStatus)
	}{
		{
			name:           "no checks - ready",
			setupChecks:    func(h *HealthHandler) {},
			expectedStatus: http.StatusOK,
			checkStatus: func(t *testing.T, status *ReadyStatus) {
				assert.Equal(t, "healthy", status.Status)
			},
		},
		{
			name: "all checks pass",
			setupChecks: func(h *HealthHandler) {
				h.RegisterCheck(&mockHealthCheck{name: "gemini"})
				h.RegisterCheck(&mockHealthCheck{name: "pollinations"})
			},
			expectedStatus: http.StatusOK,
			checkStatus: func(t *testing.T, status *ReadyStatus) {
				assert.Equal(t, "healthy", status.Status)
				assert.Len(t, status.Checks, 2)
				assert.Equal(t, "pass", status.Checks["gemini"].Status)
				assert.Equal(t, "pass", status.Checks["pollinations"].Status)
			},
		},
		{
			name: "one check fails",
			setupChecks: func(h *HealthHandler) {
				h.RegisterCheck(&mockHealthCheck{name: "gemini"})
				h.RegisterCheck(&mockHealthCheck{name: "pollinations", err: errors.New("upstream down")})
			},
			expectedStatus: http.StatusServiceUnavailable,
			checkStatus: func(t *testing.T, status *ReadyStatus) {
				assert.Equal(t, "unhealthy", status.Status)
				assert.Equal(t, "pass", status.Checks["gemini"].Status)
				assert.Equal(t, "fail", status.Checks["pollinations"].Status)
				assert.Equal(t, "upstream down", status.Checks["pollinations"].Message)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := NewHealthHandler(nil, "", zap.NewNop())
			tt.setupChecks(h)

			w := httptest.NewRecorder()
			h.HandleReady(w, httptest.NewRequest(http.MethodGet, "/ready", nil))

			assert.Equal(t, tt.expectedStatus, w.Code)

			var status ReadyStatus
			require.NoError(t, json.NewDecoder(w.Body).Decode(&status))
			tt.checkStatus(t, &status)
		})
	}
}

func TestHealthHandler_ReadyRunsChecksConcurrently(t *testing.T) {
	h := NewHealthHandler(nil, "", zap.NewNop())

	var running, peak atomic.Int32
	slow := func(ctx context.Context) error {
		n := running.Add(1)
		defer running.Add(-1)
		for {
			p := peak.Load()
			if n <= p || peak.CompareAndSwap(p, n) {
				break
			}
		}
		time.Sleep(50 * time.Millisecond)
		return nil
	}
	for _, name := range []string{"a", "b", "c"} {
		h.RegisterCheck(NewFuncCheck(name, slow))
	}

	w := httptest.NewRecorder()
	h.HandleReady(w, httptest.NewRequest(http.MethodGet, "/ready", nil))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Greater(t, peak.Load(), int32(1))
}

func TestHealthHandler_Register(t *testing.T) {
	h := NewHealthHandler(staticProviders{}, "", zap.NewNop())
	mux := http.NewServeMux()
	h.Register(mux)

	for _, path := range []string{"/api/health", "/healthz", "/ready"} {
		w := httptest.NewRecorder()
		mux.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))
		assert.Equal(t, http.StatusOK, w.Code, path)
	}

	w := httptest.NewRecorder()
	mux.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/api/health", nil))
	assert.Equal(t, http.StatusMethodNotAllowed, w.Code)
}

func TestFuncCheck(t *testing.T) {
	c := NewFuncCheck("probe", func(ctx context.Context) error { return errors.New("nope") })
	assert.Equal(t, "probe", c.Name())
	assert.EqualError(t, c.Check(context.Background()), "nope")
}
