package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	toml "github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"
)

// Config holds runtime parameters for the service.
// Zero values mean "unspecified" and are replaced by WithDefaults.
type Config struct {
	Addr        string   `json:"addr" yaml:"addr" toml:"addr"`
	DBPath      string   `json:"db_path" yaml:"db_path" toml:"db_path"`
	ModelsDir   string   `json:"models_dir" yaml:"models_dir" toml:"models_dir"`
	KVPath      string   `json:"kv_path" yaml:"kv_path" toml:"kv_path"`
	LogLevel    string   `json:"log_level" yaml:"log_level" toml:"log_level"`
	CORSOrigins []string `json:"cors_origins" yaml:"cors_origins" toml:"cors_origins"`
	// BytesPerToken tunes the prompt-length estimate.
	BytesPerToken int `json:"bytes_per_token" yaml:"bytes_per_token" toml:"bytes_per_token"`
	MaxNotices    int `json:"max_notices" yaml:"max_notices" toml:"max_notices"`
	// MaxBodyBytes caps JSON and preset request bodies; 0 keeps 1 MiB.
	MaxBodyBytes int64         `json:"max_body_bytes" yaml:"max_body_bytes" toml:"max_body_bytes"`
	Backend      BackendConfig `json:"backend" yaml:"backend" toml:"backend"`
}

// BackendConfig selects and configures the completion backend.
type BackendConfig struct {
	Kind           string   `json:"kind" yaml:"kind" toml:"kind"`
	BaseURL        string   `json:"base_url" yaml:"base_url" toml:"base_url"`
	APIKey         string   `json:"api_key" yaml:"api_key" toml:"api_key"`
	Model          string   `json:"model" yaml:"model" toml:"model"`
	RequestTimeout Duration `json:"request_timeout" yaml:"request_timeout" toml:"request_timeout"`
	ConnectTimeout Duration `json:"connect_timeout" yaml:"connect_timeout" toml:"connect_timeout"`
}

// Duration reads Go duration strings such as "30s" from every format.
type Duration struct{ time.Duration }

func (d *Duration) UnmarshalText(b []byte) error {
	v, err := time.ParseDuration(strings.TrimSpace(string(b)))
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", string(b), err)
	}
	d.Duration = v
	return nil
}

func (d Duration) MarshalText() ([]byte, error) { return []byte(d.String()), nil }

// Defaults used when a field is left empty.
const (
	DefaultAddr          = ":8080"
	DefaultDBPath        = "~/.chatd/chatd.db"
	DefaultModelsDir     = "~/models/llm"
	DefaultKVPath        = "~/.chatd/session.bin"
	DefaultLogLevel      = "info"
	DefaultBackend       = "local"
	DefaultBytesPerToken = 4
)

// WithDefaults returns cfg with empty fields filled in.
func (cfg Config) WithDefaults() Config {
	if cfg.Addr == "" {
		cfg.Addr = DefaultAddr
	}
	if cfg.DBPath == "" {
		cfg.DBPath = DefaultDBPath
	}
	if cfg.ModelsDir == "" {
		cfg.ModelsDir = DefaultModelsDir
	}
	if cfg.KVPath == "" {
		cfg.KVPath = DefaultKVPath
	}
	if cfg.LogLevel == "" {
		cfg.LogLevel = DefaultLogLevel
	}
	if cfg.BytesPerToken <= 0 {
		cfg.BytesPerToken = DefaultBytesPerToken
	}
	if cfg.Backend.Kind == "" {
		cfg.Backend.Kind = DefaultBackend
	}
	return cfg
}

// Validate checks combinations the loader cannot express.
func (cfg Config) Validate() error {
	switch cfg.Backend.Kind {
	case "", "local":
	case "llamacpp", "openai":
		if cfg.Backend.BaseURL == "" {
			return fmt.Errorf("backend %s requires base_url", cfg.Backend.Kind)
		}
	default:
		return fmt.Errorf("unknown backend kind %q", cfg.Backend.Kind)
	}
	if cfg.Backend.RequestTimeout.Duration < 0 || cfg.Backend.ConnectTimeout.Duration < 0 {
		return fmt.Errorf("backend timeouts must not be negative")
	}
	return nil
}

// Load reads a configuration file based on its extension.
// Supports: .yaml/.yml, .json, .toml
func Load(path string) (Config, error) {
	var cfg Config
	if path == "" {
		return cfg, fmt.Errorf("empty config path")
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return cfg, err
	}
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(b, &cfg); err != nil {
			return cfg, err
		}
	case ".json":
		if err := json.Unmarshal(b, &cfg); err != nil {
			return cfg, err
		}
	case ".toml":
		if err := toml.Unmarshal(b, &cfg); err != nil {
			return cfg, err
		}
	default:
		return cfg, fmt.Errorf("unsupported config extension: %s", ext)
	}
	return cfg, nil
}
