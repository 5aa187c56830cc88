package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func envOf(m map[string]string) func(string) string {
	return func(k string) string { return m[k] }
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := LoadWithEnv("", envOf(nil))
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
	assert.Equal(t, "mem", cfg.Engine.Kind)
	assert.Equal(t, "info", cfg.Logging.Level)
}

func TestLoad_FileThenEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cozoq.yaml")
	err := os.WriteFile(path, []byte(`
engine:
  kind: sqlite
  path: data.db
  options:
    cache_size: 64
journal:
  path: j.db
logging:
  level: debug
`), 0644)
	require.NoError(t, err)

	cfg, err := LoadWithEnv(path, envOf(map[string]string{
		"COZOQ_LOG_LEVEL":  "warn",
		"COZOQ_LOG_FORMAT": "json",
	}))
	require.NoError(t, err)

	assert.Equal(t, "sqlite", cfg.Engine.Kind)
	assert.Equal(t, "data.db", cfg.Engine.Path)
	assert.Equal(t, 64, cfg.Engine.Options["cache_size"])
	assert.Equal(t, "j.db", cfg.Journal.Path)
	assert.Equal(t, "warn", cfg.Logging.Level)
	assert.Equal(t, "json", cfg.Logging.Format)
}

func TestLoad_Errors(t *testing.T) {
	_, err := LoadWithEnv(filepath.Join(t.TempDir(), "missing.yaml"), envOf(nil))
	assert.ErrorContains(t, err, "config file not found")

	bad := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(bad, []byte("engine: [unclosed"), 0644))
	_, err = LoadWithEnv(bad, envOf(nil))
	assert.ErrorContains(t, err, "parse config")

	_, err = LoadWithEnv("", envOf(map[string]string{"COZOQ_LOG_INCLUDE_CALLER": "maybe"}))
	assert.ErrorContains(t, err, "invalid COZOQ_LOG_INCLUDE_CALLER")

	_, err = LoadWithEnv("", envOf(map[string]string{"COZOQ_ENGINE": "sqlite"}))
	assert.ErrorContains(t, err, "requires engine.path")

	_, err = LoadWithEnv("", envOf(map[string]string{"COZOQ_ENGINE": "leveldb"}))
	assert.ErrorContains(t, err, "invalid engine kind")

	_, err = LoadWithEnv("", envOf(map[string]string{"COZOQ_LOG_FORMAT": "xml"}))
	assert.ErrorContains(t, err, "invalid logging format")
}
