package generator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	anthropic "github.com/anthropics/anthropic-sdk-go"
	aoption "github.com/anthropics/anthropic-sdk-go/option"

	"project_plan_chat/stream"
)

const anthropicMaxTokens = 4096

// AnthropicLLM serves Claude models through the Messages API.
type AnthropicLLM struct {
	client anthropic.Client
	models []string
	log    *slog.Logger
}

func NewAnthropicLLM(cfg LLMSettings) *AnthropicLLM {
	opts := []aoption.RequestOption{aoption.WithAPIKey(strings.TrimSpace(cfg.APIKey))}
	if baseURL := strings.TrimSpace(cfg.BaseURL); baseURL != "" {
		opts = append(opts, aoption.WithBaseURL(baseURL))
	}
	if cfg.HTTPClient != nil {
		opts = append(opts, aoption.WithHTTPClient(cfg.HTTPClient))
	}
	log := cfg.Logger
	if log == nil {
		log = discardLogger()
	}
	return &AnthropicLLM{client: anthropic.NewClient(opts...), models: modelCatalogue(cfg), log: log}
}

func (a *AnthropicLLM) ListModels() []string { return a.models }

func (a *AnthropicLLM) SendMessage(ctx context.Context, msgs []Message, model string) (string, error) {
	resp, err := a.client.Messages.New(ctx, a.params(msgs, model))
	if err != nil {
		return "", wrapAnthropic(err)
	}
	var sb strings.Builder
	for _, block := range resp.Content {
		if text, ok := block.AsAny().(anthropic.TextBlock); ok {
			sb.WriteString(text.Text)
		}
	}
	if sb.Len() == 0 {
		return "", fmt.Errorf("%s: %w", ProviderAnthropic, stream.ErrEmptyResponse)
	}
	return sb.String(), nil
}

func (a *AnthropicLLM) StreamMessage(ctx context.Context, msgs []Message, model string, onToken func(string)) (string, error) {
	sse := a.client.Messages.NewStreaming(ctx, a.params(msgs, model))
	defer sse.Close()

	var acc stream.AppendState
	for sse.Next() {
		event, ok := sse.Current().AsAny().(anthropic.ContentBlockDeltaEvent)
		if !ok {
			continue
		}
		text, ok := event.Delta.AsAny().(anthropic.TextDelta)
		if !ok {
			continue
		}
		if delta := acc.Feed(text.Text); delta != "" && onToken != nil {
			onToken(delta)
		}
	}
	if err := sse.Err(); err != nil {
		return "", wrapAnthropic(err)
	}
	text, err := acc.Finish()
	if err != nil {
		return "", fmt.Errorf("%s: %w", ProviderAnthropic, err)
	}
	a.log.Debug("stream finished", "provider", ProviderAnthropic, "model", model, "deltas", acc.Deltas())
	return text, nil
}

func (a *AnthropicLLM) params(msgs []Message, model string) anthropic.MessageNewParams {
	if model == "" {
		model = a.models[0]
	}
	p := anthropic.MessageNewParams{
		Model:     anthropic.Model(model),
		MaxTokens: anthropicMaxTokens,
	}
	if system := systemText(msgs); len(system) > 0 {
		p.System = []anthropic.TextBlockParam{{Text: strings.Join(system, "\n\n")}}
	}
	for _, m := range msgs {
		switch m.Role {
		case RoleUser:
			p.Messages = append(p.Messages, anthropic.NewUserMessage(anthropic.NewTextBlock(m.Content)))
		case RoleAssistant:
			p.Messages = append(p.Messages, anthropic.NewAssistantMessage(anthropic.NewTextBlock(m.Content)))
		}
	}
	return p
}

func wrapAnthropic(err error) error {
	var apiErr *anthropic.Error
	if errors.As(err, &apiErr) {
		if sentinel := statusError(apiErr.StatusCode); sentinel != nil {
			return fmt.Errorf("%s: %w: %w", ProviderAnthropic, sentinel, err)
		}
	}
	return fmt.Errorf("%s: %w", ProviderAnthropic, err)
}
