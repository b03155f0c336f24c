package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"project_plan_chat/generator"
)

func TestLoad_MissingFileUsesDefaults(t *testing.T) {
	t.Parallel()

	cfg, err := Load(filepath.Join(t.TempDir(), "absent.json"))
	require.NoError(t, err)
	require.Equal(t, Default(), cfg)
	require.Equal(t, ":8080", cfg.ServerAddr)
	require.Equal(t, StorageMemory, cfg.Storage.Driver)
	require.Equal(t, 120*time.Second, cfg.RequestTimeout())
	require.Equal(t, []Provider{{Provider: "mock"}}, cfg.Providers)
}

func TestLoad_JSON(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, os.WriteFile(path, []byte(`{
  "server_addr": ":9000",
  "default_model": "gpt-4o-mini",
  "max_response_bytes": 4096,
  "storage": {"driver": "sqlite", "path": "chats.db"},
  "providers": [
    {"provider": "openai", "api_key": "sk-test", "models": ["gpt-4o-mini"]},
    {"provider": "gemini", "api_key": "g-test", "simulate_stream": true}
  ]
}`), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, ":9000", cfg.ServerAddr)
	require.Equal(t, "gpt-4o-mini", cfg.DefaultModel)
	require.Equal(t, 4096, cfg.MaxResponseBytes)
	require.Equal(t, DefaultRequestTimeout, cfg.RequestTimeoutSeconds)
	require.Equal(t, Storage{Driver: StorageSQLite, Path: "chats.db"}, cfg.Storage)
	require.Len(t, cfg.Providers, 2)
	require.True(t, cfg.Providers[1].SimulateStream)
}

func TestLoad_YAML(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
server_addr: ":7000"
request_timeout_seconds: 30
providers:
  - provider: anthropic
    api_key: a-test
    default_model: claude-haiku-4-5
`), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, ":7000", cfg.ServerAddr)
	require.Equal(t, 30*time.Second, cfg.RequestTimeout())
	require.Equal(t, "claude-haiku-4-5", cfg.Providers[0].DefaultModel)
}

func TestParse_Invalid(t *testing.T) {
	t.Parallel()

	cases := map[string]string{
		"syntax":           `{"server_addr":`,
		"unknown provider": `{"providers":[{"provider":"cohere"}]}`,
		"duplicate":        `{"providers":[{"provider":"mock"},{"provider":"mock"}]}`,
		"unknown driver":   `{"storage":{"driver":"postgres"}}`,
		"sqlite no path":   `{"storage":{"driver":"sqlite"}}`,
		"negative limit":   `{"max_response_bytes":-1}`,
		"negative timeout": `{"request_timeout_seconds":-5}`,
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			t.Parallel()
			_, err := Parse([]byte(body), ".json")
			require.Error(t, err)
		})
	}

	_, err := Parse([]byte(`{"providers":[{"provider":"cohere"}]}`), ".json")
	require.ErrorIs(t, err, generator.ErrUnknownProvider)
}

func TestLLMSettings_EnvFallback(t *testing.T) {
	t.Setenv("GROQ_API_KEY", "from-env")
	t.Setenv("PLAN_CHAT_OPENAI", "custom-env")

	cfg, err := Parse([]byte(`{"providers":[
  {"provider":"groq"},
  {"provider":"openai","api_key_env":"PLAN_CHAT_OPENAI","base_url":" http://localhost:1234/v1 "},
  {"provider":"anthropic","api_key":"inline"}
]}`), ".json")
	require.NoError(t, err)

	settings, err := cfg.LLMSettings(nil)
	require.NoError(t, err)
	require.Len(t, settings, 3)
	require.Equal(t, generator.ProviderGroq, settings[0].Provider)
	require.Equal(t, "from-env", settings[0].APIKey)
	require.Equal(t, "custom-env", settings[1].APIKey)
	require.Equal(t, "http://localhost:1234/v1", settings[1].BaseURL)
	require.Equal(t, "inline", settings[2].APIKey)
}
