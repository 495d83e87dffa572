package config_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"goalline/internal/config"
)

func TestDefaultIsValid(t *testing.T) {
	t.Setenv("EDITOR", "nano")
	cfg := config.Default()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, "nano", cfg.Editor.Command)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "/v0", cfg.Server.BasePath)
	assert.False(t, cfg.Outline.IncludeArchived)
}

func TestFromYAMLLayersOverDefaults(t *testing.T) {
	cfg, err := config.FromYAML([]byte("editor:\n  timezone: UTC\nwebhooks:\n  - url: http://hooks.test/x\n    events: [goal.*]\n"))
	require.NoError(t, err)
	assert.Equal(t, "UTC", cfg.Editor.Timezone)
	assert.Equal(t, "console", cfg.Log.Format)
	require.Len(t, cfg.Webhooks, 1)
	assert.Equal(t, []string{"goal.*"}, cfg.Webhooks[0].Events)
}

func TestValidateRejects(t *testing.T) {
	for name, doc := range map[string]string{
		"timezone":  "editor:\n  timezone: Mars/Olympus\n",
		"log level": "log:\n  level: loud\n",
		"base path": "server:\n  base_path: v0\n",
		"webhook":   "webhooks:\n  - events: [goal.created]\n",
	} {
		_, err := config.FromYAML([]byte(doc))
		assert.Error(t, err, name)
	}
}

func TestLoadReadsFileAndEnv(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, config.FileName), []byte("editor:\n  command: ed\n  timezone: UTC\nlog:\n  level: debug\n"), 0o644))
	t.Setenv("GOALLINE_LOG_LEVEL", "warn")

	cfg, err := config.Load(dir)
	require.NoError(t, err)
	assert.Equal(t, "ed", cfg.Editor.Command)
	assert.Equal(t, "UTC", cfg.Editor.Timezone)
	assert.Equal(t, "warn", cfg.Log.Level)
	assert.Equal(t, "127.0.0.1:8080", cfg.Server.Addr)
}

func TestLoadWithoutFileUsesDefaults(t *testing.T) {
	cfg, err := config.Load(t.TempDir())
	require.NoError(t, err)
	assert.Equal(t, config.Default().Log.Level, cfg.Log.Level)
}

func TestToYAMLRoundTrip(t *testing.T) {
	cfg := config.Default()
	cfg.Server.JWTSecret = "s3cret"
	out, err := config.ToYAML(cfg)
	require.NoError(t, err)
	back, err := config.FromYAML([]byte(out))
	require.NoError(t, err)
	assert.Equal(t, cfg, back)
}
