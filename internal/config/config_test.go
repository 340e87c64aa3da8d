package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadWithNoArgsReturnsDefaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)
	def := DefaultConfig()
	assert.Equal(t, def.Bind, cfg.Bind)
	assert.Equal(t, def.Port, cfg.Port)
	assert.Equal(t, def.MaxConcurrentSessions, cfg.MaxConcurrentSessions)
	assert.Equal(t, def.SessionDeadline, cfg.SessionDeadline)
}

func TestLoadEnvOverridesDefault(t *testing.T) {
	t.Setenv("PROVER_PORT", "9999")
	t.Setenv("PROVER_LOG_LEVEL", "debug")
	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 9999, cfg.Port)
	assert.Equal(t, "debug", cfg.LogLevel)
}

func TestLoadReadsConfigFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.json")
	body, err := json.Marshal(map[string]any{
		"bind":                    "127.0.0.1",
		"port":                    7001,
		"max_concurrent_sessions": 4,
	})
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(path, body, 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "127.0.0.1", cfg.Bind)
	assert.Equal(t, 7001, cfg.Port)
	assert.Equal(t, 4, cfg.MaxConcurrentSessions)
}

func TestLoadMissingConfigPathFallsBackToDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "does-not-exist.json"))
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig().Port, cfg.Port)
}

func TestDefaultConfigSessionDeadline(t *testing.T) {
	assert.Equal(t, 60*time.Second, DefaultConfig().SessionDeadline)
}
