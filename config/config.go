package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"project_plan_chat/generator"
)

const (
	DefaultServerAddr      = ":8080"
	DefaultRequestTimeout  = 120
	DefaultMaxResponseSize = generator.DefaultMaxResponseBytes

	StorageMemory = "memory"
	StorageSQLite = "sqlite"
)

// Config is the service configuration file.
type Config struct {
	ServerAddr            string     `json:"server_addr,omitempty" yaml:"server_addr,omitempty"`
	DefaultModel          string     `json:"default_model,omitempty" yaml:"default_model,omitempty"`
	MaxResponseBytes      int        `json:"max_response_bytes,omitempty" yaml:"max_response_bytes,omitempty"`
	RequestTimeoutSeconds int        `json:"request_timeout_seconds,omitempty" yaml:"request_timeout_seconds,omitempty"`
	Storage               Storage    `json:"storage" yaml:"storage"`
	Providers             []Provider `json:"providers,omitempty" yaml:"providers,omitempty"`
}

// Storage selects where chats are kept.
type Storage struct {
	Driver string `json:"driver,omitempty" yaml:"driver,omitempty"`
	Path   string `json:"path,omitempty" yaml:"path,omitempty"`
}

// Provider configures one model backend.
type Provider struct {
	Provider string `json:"provider" yaml:"provider"`
	APIKey   string `json:"api_key,omitempty" yaml:"api_key,omitempty"`
	// APIKeyEnv names the variable holding the key. It defaults to the
	// provider's conventional variable, e.g. OPENAI_API_KEY.
	APIKeyEnv      string   `json:"api_key_env,omitempty" yaml:"api_key_env,omitempty"`
	BaseURL        string   `json:"base_url,omitempty" yaml:"base_url,omitempty"`
	DefaultModel   string   `json:"default_model,omitempty" yaml:"default_model,omitempty"`
	Models         []string `json:"models,omitempty" yaml:"models,omitempty"`
	SimulateStream bool     `json:"simulate_stream,omitempty" yaml:"simulate_stream,omitempty"`
}

var envKeys = map[generator.Provider]string{
	generator.ProviderGemini:    "GEMINI_API_KEY",
	generator.ProviderOpenAI:    "OPENAI_API_KEY",
	generator.ProviderGroq:      "GROQ_API_KEY",
	generator.ProviderAnthropic: "ANTHROPIC_API_KEY",
}

// Default runs on the mock provider with in-memory storage.
func Default() Config {
	cfg := Config{Providers: []Provider{{Provider: string(generator.ProviderMock)}}}
	cfg.applyDefaults()
	return cfg
}

// Load reads a JSON or YAML config, chosen by extension. A missing file
// yields Default.
func Load(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		slog.Debug("config file not found, using defaults", "path", path)
		return Default(), nil
	}
	if err != nil {
		return Config{}, err
	}
	return Parse(data, filepath.Ext(path))
}

// Parse decodes data in the format named by ext (".json", ".yaml" or
// ".yml"), fills defaults and validates the result.
func Parse(data []byte, ext string) (Config, error) {
	var cfg Config
	switch strings.ToLower(ext) {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse yaml config: %w", err)
		}
	default:
		if err := json.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse json config: %w", err)
		}
	}
	if len(cfg.Providers) == 0 {
		cfg.Providers = []Provider{{Provider: string(generator.ProviderMock)}}
	}
	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c *Config) applyDefaults() {
	if c.ServerAddr == "" {
		c.ServerAddr = DefaultServerAddr
	}
	if c.MaxResponseBytes == 0 {
		c.MaxResponseBytes = DefaultMaxResponseSize
	}
	if c.RequestTimeoutSeconds == 0 {
		c.RequestTimeoutSeconds = DefaultRequestTimeout
	}
	if c.Storage.Driver == "" {
		c.Storage.Driver = StorageMemory
	}
}

// Validate checks the config without contacting any provider.
func (c Config) Validate() error {
	if c.MaxResponseBytes < 0 {
		return errors.New("max_response_bytes must not be negative")
	}
	if c.RequestTimeoutSeconds < 0 {
		return errors.New("request_timeout_seconds must not be negative")
	}
	switch c.Storage.Driver {
	case StorageMemory:
	case StorageSQLite:
		if strings.TrimSpace(c.Storage.Path) == "" {
			return errors.New("storage.path is required for the sqlite driver")
		}
	default:
		return fmt.Errorf("unknown storage driver %q", c.Storage.Driver)
	}
	seen := make(map[generator.Provider]bool, len(c.Providers))
	for i, p := range c.Providers {
		name, err := generator.ParseProvider(p.Provider)
		if err != nil {
			return fmt.Errorf("providers[%d]: %w", i, err)
		}
		if seen[name] {
			return fmt.Errorf("providers[%d]: provider %q configured twice", i, name)
		}
		seen[name] = true
	}
	return nil
}

// RequestTimeout is the per-request limit; zero disables it.
func (c Config) RequestTimeout() time.Duration {
	return time.Duration(c.RequestTimeoutSeconds) * time.Second
}

// LLMSettings resolves every provider entry into client settings, reading
// API keys from the environment when the file leaves them out.
func (c Config) LLMSettings(log *slog.Logger) ([]generator.LLMSettings, error) {
	out := make([]generator.LLMSettings, 0, len(c.Providers))
	for i, p := range c.Providers {
		name, err := generator.ParseProvider(p.Provider)
		if err != nil {
			return nil, fmt.Errorf("providers[%d]: %w", i, err)
		}
		key := strings.TrimSpace(p.APIKey)
		if key == "" {
			env := p.APIKeyEnv
			if env == "" {
				env = envKeys[name]
			}
			if env != "" {
				key = strings.TrimSpace(os.Getenv(env))
			}
		}
		out = append(out, generator.LLMSettings{
			Provider:       name,
			APIKey:         key,
			BaseURL:        strings.TrimSpace(p.BaseURL),
			DefaultModel:   strings.TrimSpace(p.DefaultModel),
			Models:         p.Models,
			SimulateStream: p.SimulateStream,
			Logger:         log,
		})
	}
	return out, nil
}
