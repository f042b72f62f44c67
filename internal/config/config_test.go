package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaultsWithoutFile(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)

	assert.Equal(t, "http://localhost:8010", cfg.Backend.BaseURL)
	assert.Equal(t, "/notebooks/watch", cfg.Backend.WatchPath)
	assert.Equal(t, "x-session-id", cfg.Backend.SessionHeader)
	assert.Equal(t, ProviderKitsune, cfg.Provider.Type)
	assert.Equal(t, "kitsune-session-id", cfg.Session.Key)
	assert.Equal(t, ".py", cfg.Viewer.FileSuffix)
	assert.Equal(t, "Welcome", cfg.Viewer.Welcome)
	assert.Equal(t, 500*time.Millisecond, cfg.Reconnect.MinWait)
	assert.Equal(t, "127.0.0.1:8020", cfg.Server.Addr())
	assert.Equal(t, 10.0, cfg.Backend.RequestsPerSecond)
	assert.True(t, cfg.Server.Metrics)
}

func TestLoadFileAndEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	body := []byte(`
backend:
  base_url: http://kitsune.internal:9000
session:
  store: memory
reconnect:
  min_wait: 1s
  max_wait: 5s
log:
  level: debug
`)
	require.NoError(t, os.WriteFile(path, body, 0o644))
	t.Setenv("KITSUNE_SERVER_PORT", "9999")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "http://kitsune.internal:9000", cfg.Backend.BaseURL)
	assert.Equal(t, "memory", cfg.Session.Store)
	assert.Equal(t, time.Second, cfg.Reconnect.MinWait)
	assert.Equal(t, 5*time.Second, cfg.Reconnect.MaxWait)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, 9999, cfg.Server.Port)
}

func TestLoadProviderKeyFallback(t *testing.T) {
	t.Setenv("KITSUNE_PROVIDER_TYPE", "openai")
	t.Setenv("OPENAI_API_KEY", "sk-test")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, ProviderOpenAI, cfg.Provider.Type)
	assert.Equal(t, "sk-test", cfg.Provider.OpenAI.APIKey)
}

func TestValidate(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	bad := *cfg
	bad.Provider.Type = "gemini"
	assert.Error(t, bad.Validate())

	bad = *cfg
	bad.Session.Store = "cookie"
	assert.Error(t, bad.Validate())

	bad = *cfg
	bad.Reconnect.MaxWait = bad.Reconnect.MinWait / 2
	assert.Error(t, bad.Validate())
}
