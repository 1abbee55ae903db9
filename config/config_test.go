package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	require.Equal(t, "http://host.containers.internal:8000", cfg.BaseURL)
	require.Equal(t, "uploaded_files", cfg.UploadRoot)
	require.Equal(t, BackendFile, cfg.Lock.Backend)
	require.Equal(t, "nirmatai_webapp.lock", cfg.Lock.Path)
	require.Equal(t, 30*time.Minute, cfg.DefaultLockDuration())
	require.Equal(t, 5*time.Minute, cfg.PerRequirementWindow())
	require.Equal(t, 12*time.Minute, cfg.AnalysisTimeout())
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	data := `
base_url = "http://analysis:9000"
upload_root = "/srv/submissions"

[lock]
backend = "redis"
default_duration_seconds = 600

[lock.redis]
addr = "redis:6379"
`
	require.NoError(t, os.WriteFile(path, []byte(data), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, "http://analysis:9000", cfg.BaseURL)
	require.Equal(t, "/srv/submissions", cfg.UploadRoot)
	require.Equal(t, BackendRedis, cfg.Lock.Backend)
	require.Equal(t, "redis:6379", cfg.Lock.Redis.Addr)
	require.Equal(t, 10*time.Minute, cfg.DefaultLockDuration())
	// Settings the file does not mention keep their defaults.
	require.Equal(t, "nirmatai:webapp:lock", cfg.Lock.Redis.Key)
	require.Equal(t, 5*time.Minute, cfg.PerRequirementWindow())
}

func TestLoadEnvOverridesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(path, []byte(`base_url = "http://from-file:8000"`), 0o644))
	t.Setenv(BaseURLEnv, "http://from-env:8000")

	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, "http://from-env:8000", cfg.BaseURL)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.toml"))
	require.Error(t, err)
}

func TestValidate(t *testing.T) {
	for name, mutate := range map[string]func(*Config){
		"empty base url":       func(c *Config) { c.BaseURL = "" },
		"empty upload root":    func(c *Config) { c.UploadRoot = "" },
		"unknown backend":      func(c *Config) { c.Lock.Backend = "zookeeper" },
		"empty lock path":      func(c *Config) { c.Lock.Path = "" },
		"zero duration":        func(c *Config) { c.Lock.DefaultDurationSeconds = 0 },
		"negative per-req":     func(c *Config) { c.Lock.PerRequirementSeconds = -1 },
		"zero request timeout": func(c *Config) { c.Analysis.TimeoutSeconds = 0 },
	} {
		t.Run(name, func(t *testing.T) {
			cfg := Default()
			mutate(cfg)
			require.Error(t, cfg.Validate())
		})
	}

	require.NoError(t, Default().Validate())
}
