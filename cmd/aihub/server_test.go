package main

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/BaSui01/aihub/config"
	"github.com/BaSui01/aihub/internal/dispatch"
)

func TestBuildProviders_MissingKeys(t *testing.T) {
	cfg := config.DefaultConfig().Providers
	cfg.Gemini.APIKey = ""
	cfg.OpenAI.APIKey = ""

	set := buildProviders(context.Background(), cfg, zap.NewNop())

	require.Len(t, set.available, 1)
	assert.Equal(t, "pollinations", set.available[0].Name())
	assert.Contains(t, set.unavailable["gemini"], "GEMINI_API_KEY")
	assert.Contains(t, set.unavailable["openai"], "OPENAI_API_KEY")
	assert.Equal(t, map[string]bool{"pollinations": true, "gemini": false, "openai": false}, set.up)

	// pollinations 提供 HealthCheck
	require.Len(t, set.checks, 1)
	assert.Equal(t, "pollinations", set.checks[0].Name())
}

func TestBuildProviders_AllConfigured(t *testing.T) {
	cfg := config.DefaultConfig().Providers
	cfg.Gemini.APIKey = "test-gemini-key"
	cfg.OpenAI.APIKey = "test-openai-key"
	cfg.Pollinations.Enabled = false

	set := buildProviders(context.Background(), cfg, zap.NewNop())

	names := make([]string, 0, len(set.available))
	for _, p := range set.available {
		names = append(names, p.Name())
	}
	assert.ElementsMatch(t, []string{"gemini", "openai"}, names)
	assert.Equal(t, "Pollinations disabled by configuration", set.unavailable["pollinations"])

	router := dispatch.NewRouter(dispatch.DefaultConfig(), nil, nil, zap.NewNop(), set.options()...)
	statuses := router.Providers()
	require.Len(t, statuses, 3)
	for _, st := range statuses {
		assert.Equal(t, st.Name != "pollinations", st.Available, st.Name)
	}
}
