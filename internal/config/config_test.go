package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	t.Chdir(t.TempDir())

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
	assert.NoError(t, cfg.Validate())
}

func TestLoad_FileThenEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "custom.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
port: "9000"
worker_count: 8
job_ttl: 30m
fallback_scan: false
ignore:
  - "archive/**"
`), 0o644))
	t.Setenv("PMDAPARSE_WORKER_COUNT", "2")
	t.Setenv("PMDAPARSE_API_KEY", "secret")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "9000", cfg.Port)
	assert.Equal(t, 2, cfg.WorkerCount)
	assert.Equal(t, 30*time.Minute, cfg.JobTTL)
	assert.False(t, cfg.FallbackScan)
	assert.Equal(t, []string{"archive/**"}, cfg.Ignore)
	assert.Equal(t, "secret", cfg.APIKey)
	assert.NoError(t, cfg.ValidateServe())
}

func TestLoad_MissingExplicitFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Config)
	}{
		{"workers", func(c *Config) { c.WorkerCount = 0 }},
		{"queue", func(c *Config) { c.MaxQueueSize = -1 }},
		{"upload", func(c *Config) { c.MaxUploadBytes = 0 }},
		{"depth", func(c *Config) { c.MaxDepth = 0 }},
		{"glob", func(c *Config) { c.Include = []string{"[bad"} }},
		{"level", func(c *Config) { c.LogLevel = "verbose" }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := Default()
			tc.mutate(&cfg)
			assert.Error(t, cfg.Validate())
		})
	}

	assert.Error(t, Default().ValidateServe(), "serve needs an api key")
}

func TestLevel(t *testing.T) {
	cfg := Default()
	cfg.LogLevel = "debug"
	l, err := cfg.Level()
	require.NoError(t, err)
	assert.Equal(t, slog.LevelDebug, l)
}
