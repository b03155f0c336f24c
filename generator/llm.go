package generator

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"project_plan_chat/stream"
)

// LLMClient is one provider's capability set.
type LLMClient interface {
	// SendMessage returns the complete response in one call.
	SendMessage(ctx context.Context, msgs []Message, model string) (string, error)
	// StreamMessage calls onToken with each delta and returns the final text.
	StreamMessage(ctx context.Context, msgs []Message, model string, onToken func(string)) (string, error)
	// ListModels returns the models this provider serves, default first.
	ListModels() []string
}

// Provider names an LLMClient variant.
type Provider string

const (
	ProviderGemini    Provider = "gemini"
	ProviderOpenAI    Provider = "openai"
	ProviderGroq      Provider = "groq"
	ProviderAnthropic Provider = "anthropic"
	ProviderMock      Provider = "mock"
)

// Providers lists every supported provider in catalogue order.
var Providers = []Provider{ProviderGemini, ProviderOpenAI, ProviderGroq, ProviderAnthropic, ProviderMock}

var (
	ErrUnknownProvider       = errors.New("unknown llm provider")
	ErrProviderNotConfigured = errors.New("llm provider not configured")
	ErrMissingAPIKey         = errors.New("llm api key missing")
	ErrUnauthorized          = errors.New("llm provider rejected credentials")
	ErrRateLimited           = errors.New("llm provider rate limited")
	ErrUnavailable           = errors.New("llm provider unavailable")
	ErrResponseTooLarge      = errors.New("llm response exceeds size limit")
	// ErrEmptyResponse is returned when a provider produced no text at all.
	ErrEmptyResponse = stream.ErrEmptyResponse
)

// ParseProvider maps a configuration value to a Provider.
func ParseProvider(s string) (Provider, error) {
	p := Provider(strings.ToLower(strings.TrimSpace(s)))
	for _, known := range Providers {
		if p == known {
			return p, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownProvider, s)
}

// ProviderForModel routes a model name to the provider that serves it.
// Unrecognised names go to gemini.
func ProviderForModel(model string) Provider {
	m := strings.ToLower(strings.TrimSpace(model))
	switch {
	case strings.Contains(m, "gemini"):
		return ProviderGemini
	case strings.HasPrefix(m, "gpt-"):
		return ProviderOpenAI
	case strings.HasPrefix(m, "llama-"), strings.HasPrefix(m, "mixtral-"), strings.HasPrefix(m, "gemma"):
		return ProviderGroq
	case strings.HasPrefix(m, "claude-"):
		return ProviderAnthropic
	case strings.HasPrefix(m, "mock-"):
		return ProviderMock
	default:
		return ProviderGemini
	}
}

// LLMSettings configures one provider.
type LLMSettings struct {
	Provider     Provider
	APIKey       string
	BaseURL      string
	DefaultModel string
	Models       []string
	// SimulateStream makes the gemini client call the blocking endpoint and
	// replay the result in small chunks.
	SimulateStream bool
	HTTPClient     *http.Client
	Logger         *slog.Logger
}

// NewLLM builds the client for cfg.Provider.
func NewLLM(cfg LLMSettings) (LLMClient, error) {
	if cfg.Logger == nil {
		cfg.Logger = discardLogger()
	}
	if cfg.Provider != ProviderMock && strings.TrimSpace(cfg.APIKey) == "" {
		return nil, fmt.Errorf("%s: %w", cfg.Provider, ErrMissingAPIKey)
	}
	switch cfg.Provider {
	case ProviderGemini:
		return NewGeminiLLM(cfg), nil
	case ProviderOpenAI, ProviderGroq:
		return NewOpenAILLM(cfg), nil
	case ProviderAnthropic:
		return NewAnthropicLLM(cfg), nil
	case ProviderMock:
		return NewMockLLM(cfg), nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownProvider, cfg.Provider)
	}
}

var defaultModels = map[Provider][]string{
	ProviderGemini:    {"gemini-2.5-flash", "gemini-3-pro-preview", "gemini-2.5-pro", "gemini-2.0-flash-exp"},
	ProviderOpenAI:    {"gpt-5-nano", "gpt-5-mini", "gpt-4o-mini", "gpt-4o"},
	ProviderGroq:      {"llama-3.3-70b-versatile", "llama-3.1-8b-instant", "mixtral-8x7b-32768", "gemma2-9b-it"},
	ProviderAnthropic: {"claude-sonnet-4-5", "claude-haiku-4-5"},
	ProviderMock:      {"mock-planner"},
}

// modelCatalogue puts the default model first and drops duplicates.
func modelCatalogue(cfg LLMSettings) []string {
	models := cfg.Models
	if len(models) == 0 {
		models = defaultModels[cfg.Provider]
	}
	def := cfg.DefaultModel
	if def == "" && len(models) > 0 {
		def = models[0]
	}
	out := []string{def}
	seen := map[string]bool{def: true}
	for _, m := range models {
		if !seen[m] {
			seen[m] = true
			out = append(out, m)
		}
	}
	return out
}

// statusError maps a provider HTTP status to a sentinel error. It returns
// nil for success codes.
func statusError(code int) error {
	switch {
	case code == http.StatusUnauthorized || code == http.StatusForbidden:
		return ErrUnauthorized
	case code == http.StatusTooManyRequests:
		return ErrRateLimited
	case code >= 500:
		return ErrUnavailable
	case code < 200 || code >= 300:
		return fmt.Errorf("unexpected status %d", code)
	}
	return nil
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}
