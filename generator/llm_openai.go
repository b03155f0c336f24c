package generator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	openai "github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"project_plan_chat/stream"
)

const groqBaseURL = "https://api.groq.com/openai/v1"

// OpenAILLM serves OpenAI and any OpenAI-compatible endpoint. Groq is the
// same client pointed at Groq's base URL with its request shaping applied.
type OpenAILLM struct {
	client   openai.Client
	provider Provider
	models   []string
	log      *slog.Logger
}

func NewOpenAILLM(cfg LLMSettings) *OpenAILLM {
	opts := []option.RequestOption{option.WithAPIKey(strings.TrimSpace(cfg.APIKey))}
	baseURL := strings.TrimSpace(cfg.BaseURL)
	if baseURL == "" && cfg.Provider == ProviderGroq {
		baseURL = groqBaseURL
	}
	if baseURL != "" {
		opts = append(opts, option.WithBaseURL(baseURL))
	}
	if cfg.HTTPClient != nil {
		opts = append(opts, option.WithHTTPClient(cfg.HTTPClient))
	}
	log := cfg.Logger
	if log == nil {
		log = discardLogger()
	}
	return &OpenAILLM{
		client:   openai.NewClient(opts...),
		provider: cfg.Provider,
		models:   modelCatalogue(cfg),
		log:      log,
	}
}

func (o *OpenAILLM) ListModels() []string { return o.models }

func (o *OpenAILLM) SendMessage(ctx context.Context, msgs []Message, model string) (string, error) {
	resp, err := o.client.Chat.Completions.New(ctx, o.params(msgs, model))
	if err != nil {
		return "", o.wrap(err)
	}
	if len(resp.Choices) == 0 || resp.Choices[0].Message.Content == "" {
		return "", fmt.Errorf("%s: %w", o.provider, stream.ErrEmptyResponse)
	}
	return resp.Choices[0].Message.Content, nil
}

func (o *OpenAILLM) StreamMessage(ctx context.Context, msgs []Message, model string, onToken func(string)) (string, error) {
	sse := o.client.Chat.Completions.NewStreaming(ctx, o.params(msgs, model))
	defer sse.Close()

	var acc stream.AppendState
	for sse.Next() {
		chunk := sse.Current()
		if len(chunk.Choices) == 0 {
			continue
		}
		if delta := acc.Feed(chunk.Choices[0].Delta.Content); delta != "" && onToken != nil {
			onToken(delta)
		}
	}
	if err := sse.Err(); err != nil {
		return "", o.wrap(err)
	}
	text, err := acc.Finish()
	if err != nil {
		return "", fmt.Errorf("%s: %w", o.provider, err)
	}
	o.log.Debug("stream finished", "provider", o.provider, "model", model, "deltas", acc.Deltas())
	return text, nil
}

func (o *OpenAILLM) params(msgs []Message, model string) openai.ChatCompletionNewParams {
	if model == "" {
		model = o.models[0]
	}
	p := openai.ChatCompletionNewParams{Model: openai.ChatModel(model)}
	if o.provider != ProviderGroq {
		p.Messages = toOpenAIMessages(msgs)
		return p
	}

	p.Messages = toOpenAIMessages(mergeSystemIntoFirstUser(msgs))
	p.Temperature = openai.Float(0.7)
	for _, s := range systemText(msgs) {
		if strings.Contains(s, "JSON") || strings.Contains(s, "json") {
			p.Temperature = openai.Float(0.1)
			break
		}
	}
	return p
}

func toOpenAIMessages(msgs []Message) []openai.ChatCompletionMessageParamUnion {
	out := make([]openai.ChatCompletionMessageParamUnion, 0, len(msgs))
	for _, m := range msgs {
		switch m.Role {
		case RoleSystem:
			out = append(out, openai.SystemMessage(m.Content))
		case RoleAssistant:
			out = append(out, openai.ChatCompletionMessageParamOfAssistant(m.Content))
		default:
			out = append(out, openai.UserMessage(m.Content))
		}
	}
	return out
}

// mergeSystemIntoFirstUser drops system messages and prefixes their text to
// the first conversational message when that message is from the user.
func mergeSystemIntoFirstUser(msgs []Message) []Message {
	system := systemText(msgs)
	out := make([]Message, 0, len(msgs))
	for _, m := range msgs {
		if m.Role != RoleSystem {
			out = append(out, m)
		}
	}
	if len(system) > 0 && len(out) > 0 && out[0].Role == RoleUser {
		out[0].Content = strings.Join(system, "\n\n") + "\n\n" + out[0].Content
	}
	return out
}

func (o *OpenAILLM) wrap(err error) error {
	var apiErr *openai.Error
	if errors.As(err, &apiErr) {
		if sentinel := statusError(apiErr.StatusCode); sentinel != nil {
			return fmt.Errorf("%s: %w: %w", o.provider, sentinel, err)
		}
	}
	return fmt.Errorf("%s: %w", o.provider, err)
}
