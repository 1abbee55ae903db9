package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/pelletier/go-toml/v2"
)

// BaseURLEnv overrides the analysis service address when set.
const BaseURLEnv = "NIRMATAI_BASE_URL"

// Lock backend names accepted in the configuration file.
const (
	BackendFile       = "file"
	BackendRedis      = "redis"
	BackendEtcd       = "etcd"
	BackendKubernetes = "kubernetes"
)

// Config holds the portal settings. Durations are configured in seconds to
// stay compatible with the values the original deployment used.
type Config struct {
	BaseURL    string `toml:"base_url"`
	UploadRoot string `toml:"upload_root"`

	Lock     LockConfig     `toml:"lock"`
	Analysis AnalysisConfig `toml:"analysis"`
}

type LockConfig struct {
	Backend                string           `toml:"backend"`
	Path                   string           `toml:"path"`
	DefaultDurationSeconds float64          `toml:"default_duration_seconds"`
	PerRequirementSeconds  float64          `toml:"per_requirement_seconds"`
	Redis                  RedisConfig      `toml:"redis"`
	Etcd                   EtcdConfig       `toml:"etcd"`
	Kubernetes             KubernetesConfig `toml:"kubernetes"`
}

type RedisConfig struct {
	Addr     string `toml:"addr"`
	Password string `toml:"password"`
	DB       int    `toml:"db"`
	Key      string `toml:"key"`
}

type EtcdConfig struct {
	Endpoints []string `toml:"endpoints"`
	Key       string   `toml:"key"`
}

type KubernetesConfig struct {
	Namespace string `toml:"namespace"`
	LeaseName string `toml:"lease_name"`
}

type AnalysisConfig struct {
	TimeoutSeconds float64 `toml:"timeout_seconds"`
}

// Default returns the configuration the portal runs with when no file is
// provided. The base URL default matches the containerized deployment of the
// analysis service.
func Default() *Config {
	return &Config{
		BaseURL:    "http://host.containers.internal:8000",
		UploadRoot: "uploaded_files",
		Lock: LockConfig{
			Backend:                BackendFile,
			Path:                   "nirmatai_webapp.lock",
			DefaultDurationSeconds: 1800,
			PerRequirementSeconds:  300,
			Redis: RedisConfig{
				Addr: "localhost:6379",
				Key:  "nirmatai:webapp:lock",
			},
			Etcd: EtcdConfig{
				Endpoints: []string{"localhost:2379"},
				Key:       "/nirmatai/webapp/lock",
			},
			Kubernetes: KubernetesConfig{
				Namespace: "default",
				LeaseName: "nirmatai-webapp",
			},
		},
		Analysis: AnalysisConfig{
			TimeoutSeconds: 720,
		},
	}
}

// Load builds the configuration from defaults, an optional TOML file, and the
// environment, in that order of increasing precedence.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config file: %w", err)
		}
		if err := toml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config file: %w", err)
		}
	}

	if url := os.Getenv(BaseURLEnv); url != "" {
		cfg.BaseURL = url
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects settings the portal cannot run with.
func (c *Config) Validate() error {
	if c.BaseURL == "" {
		return errors.New("base_url cannot be empty")
	}
	if c.UploadRoot == "" {
		return errors.New("upload_root cannot be empty")
	}
	switch c.Lock.Backend {
	case BackendFile, BackendRedis, BackendEtcd, BackendKubernetes:
	default:
		return fmt.Errorf("unknown lock backend %q", c.Lock.Backend)
	}
	if c.Lock.Backend == BackendFile && c.Lock.Path == "" {
		return errors.New("lock.path cannot be empty with the file backend")
	}
	if c.Lock.DefaultDurationSeconds <= 0 {
		return errors.New("lock.default_duration_seconds must be positive")
	}
	if c.Lock.PerRequirementSeconds <= 0 {
		return errors.New("lock.per_requirement_seconds must be positive")
	}
	if c.Analysis.TimeoutSeconds <= 0 {
		return errors.New("analysis.timeout_seconds must be positive")
	}
	return nil
}

// DefaultLockDuration is the configured validity window of a fresh lock.
func (c *Config) DefaultLockDuration() time.Duration {
	return secondsToDuration(c.Lock.DefaultDurationSeconds)
}

// PerRequirementWindow is the processing window granted per requirement when
// extending the lock.
func (c *Config) PerRequirementWindow() time.Duration {
	return secondsToDuration(c.Lock.PerRequirementSeconds)
}

// AnalysisTimeout bounds a single call to the analysis service.
func (c *Config) AnalysisTimeout() time.Duration {
	return secondsToDuration(c.Analysis.TimeoutSeconds)
}

func secondsToDuration(seconds float64) time.Duration {
	return time.Duration(seconds * float64(time.Second))
}
