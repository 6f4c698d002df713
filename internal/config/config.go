// Package config loads client configuration from ~/.meallens/config.yaml
// with environment variable overrides.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog/log"
	"gopkg.in/yaml.v3"
)

// Environment overrides.
const (
	envAPIURL   = "MEALLENS_API_URL"
	envAIURL    = "MEALLENS_AI_URL"
	envCacheDir = "MEALLENS_CACHE_DIR"
	envTimeout  = "MEALLENS_TIMEOUT"
)

// Duration is a time.Duration that unmarshals from YAML strings like "30s".
type Duration time.Duration

func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	parsed, err := time.ParseDuration(value.Value)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", value.Value, err)
	}
	*d = Duration(parsed)
	return nil
}

// Config holds the client's configuration.
type Config struct {
	// APIURL is the backend REST API base URL.
	APIURL string `yaml:"api_url"`

	// AIURL is the inference service base URL, overridable independently of
	// the main API.
	AIURL string `yaml:"ai_url"`

	// CacheDir holds the durable storage for session and resource caches.
	CacheDir string `yaml:"cache_dir"`

	// Timeout is the default request timeout.
	Timeout Duration `yaml:"timeout"`

	Debug bool `yaml:"debug"`
}

// Default returns the built-in configuration. CacheDir lives under
// ~/.meallens; an unavailable home directory leaves it empty, which keeps
// storage in memory.
func Default() Config {
	cfg := Config{
		APIURL:  "https://api.meallensai.com/api/v1",
		AIURL:   "https://ai.meallensai.com",
		Timeout: Duration(10 * time.Second),
	}
	if home, err := os.UserHomeDir(); err == nil {
		cfg.CacheDir = filepath.Join(home, ".meallens", "cache")
	}
	return cfg
}

// DefaultPath returns the default config file location, or "" when the home
// directory is unavailable.
func DefaultPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".meallens", "config.yaml")
}

// Load reads configuration from path (DefaultPath when empty), then applies
// environment overrides. A missing file is not an error; a malformed one is.
func Load(path string) (Config, error) {
	cfg := Default()

	if path == "" {
		path = DefaultPath()
	}
	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case os.IsNotExist(err):
			log.Debug().Str("path", path).Msg("no config file, using defaults")
		case err != nil:
			return cfg, fmt.Errorf("failed to read config: %w", err)
		default:
			if err := yaml.Unmarshal(data, &cfg); err != nil {
				return cfg, fmt.Errorf("failed to parse config: %w", err)
			}
		}
	}

	applyEnv(&cfg)
	return cfg, nil
}

func applyEnv(cfg *Config) {
	if v := os.Getenv(envAPIURL); v != "" {
		cfg.APIURL = v
	}
	if v := os.Getenv(envAIURL); v != "" {
		cfg.AIURL = v
	}
	if v := os.Getenv(envCacheDir); v != "" {
		cfg.CacheDir = v
	}
	if v := os.Getenv(envTimeout); v != "" {
		if parsed, err := time.ParseDuration(v); err == nil {
			cfg.Timeout = Duration(parsed)
		} else {
			log.Warn().Str("value", v).Msg("ignoring invalid " + envTimeout)
		}
	}
}
