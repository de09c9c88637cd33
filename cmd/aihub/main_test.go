package main

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"

	"github.com/BaSui01/aihub/config"
)

func TestRun_Commands(t *testing.T) {
	tests := []struct {
		name       string
		args       []string
		wantCode   int
		wantStdout string
		wantStderr string
	}{
		{name: "no args", args: nil, wantCode: 1, wantStderr: "Usage:"},
		{name: "help", args: []string{"help"}, wantCode: 0, wantStdout: "aihub <command>"},
		{name: "version", args: []string{"version"}, wantCode: 0, wantStdout: "AIHub dev"},
		{name: "unknown", args: []string{"frobnicate"}, wantCode: 1, wantStderr: "Unknown command: frobnicate"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var stdout, stderr bytes.Buffer
			code := run(tt.args, &stdout, &stderr)

			assert.Equal(t, tt.wantCode, code)
			if tt.wantStdout != "" {
				assert.Contains(t, stdout.String(), tt.wantStdout)
			}
			if tt.wantStderr != "" {
				assert.Contains(t, stderr.String(), tt.wantStderr)
			}
		})
	}
}

func TestRunHealthCheck(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/health" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		_, _ = w.Write([]byte(`{"status":"healthy"}`))
	}))
	defer srv.Close()

	var stdout, stderr bytes.Buffer
	assert.Equal(t, 0, run([]string{"health", "--addr", srv.URL}, &stdout, &stderr))
	assert.Equal(t, "OK\n", stdout.String())
}

func TestRunHealthCheck_Unreachable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	var stdout, stderr bytes.Buffer
	assert.Equal(t, 1, run([]string{"health", "--addr", srv.URL}, &stdout, &stderr))
	assert.Contains(t, stderr.String(), "status 503")
}

func TestLoadConfig_Invalid(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("server:\n  http_port: -1\n"), 0o600))

	_, err := loadConfig(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid config")
}

func TestInitLogger(t *testing.T) {
	dir := t.TempDir()
	cfg := config.LogConfig{
		Level:       "debug",
		Format:      "json",
		OutputPaths: []string{filepath.Join(dir, "out.log")},
		File: config.LogFileConfig{
			Path:      filepath.Join(dir, "rotating.log"),
			MaxSizeMB: 1,
		},
	}

	logger := initLogger(cfg)
	logger.Debug("hello file")
	_ = logger.Sync()

	assert.True(t, logger.Core().Enabled(zapcore.DebugLevel))

	data, err := os.ReadFile(filepath.Join(dir, "rotating.log"))
	require.NoError(t, err)
	assert.Contains(t, string(data), "hello file")
	assert.Contains(t, string(data), `"timestamp"`)
}

func TestInitLogger_BadLevelFallsBackToInfo(t *testing.T) {
	logger := initLogger(config.LogConfig{Level: "loud", Format: "console", OutputPaths: []string{"stderr"}})
	assert.False(t, logger.Core().Enabled(zapcore.DebugLevel))
	assert.True(t, logger.Core().Enabled(zapcore.InfoLevel))
}
