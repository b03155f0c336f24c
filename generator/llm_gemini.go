package generator

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"unicode/utf8"

	"project_plan_chat/stream"
)

const (
	geminiBaseURL = "https://generativelanguage.googleapis.com"
	// simulatedChunkBytes is the replay size when streaming is simulated.
	simulatedChunkBytes = 10
)

// GeminiLLM talks to the Gemini REST API directly. Its streaming endpoint
// repeats the full text so far in every chunk, so deltas come from a
// stream.SnapshotState.
type GeminiLLM struct {
	baseURL  string
	apiKey   string
	client   *http.Client
	models   []string
	simulate bool
	log      *slog.Logger
}

func NewGeminiLLM(cfg LLMSettings) *GeminiLLM {
	baseURL := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if baseURL == "" {
		baseURL = geminiBaseURL
	}
	client := cfg.HTTPClient
	if client == nil {
		client = &http.Client{}
	}
	log := cfg.Logger
	if log == nil {
		log = discardLogger()
	}
	return &GeminiLLM{
		baseURL:  baseURL,
		apiKey:   strings.TrimSpace(cfg.APIKey),
		client:   client,
		models:   modelCatalogue(cfg),
		simulate: cfg.SimulateStream,
		log:      log,
	}
}

func (g *GeminiLLM) ListModels() []string { return g.models }

func (g *GeminiLLM) SendMessage(ctx context.Context, msgs []Message, model string) (string, error) {
	resp, err := g.post(ctx, "generateContent", msgs, model)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("%s: read response: %w", ProviderGemini, err)
	}
	text, ok := stream.GeminiText(string(body))
	if !ok || text == "" {
		return "", fmt.Errorf("%s: %w", ProviderGemini, stream.ErrEmptyResponse)
	}
	return text, nil
}

func (g *GeminiLLM) StreamMessage(ctx context.Context, msgs []Message, model string, onToken func(string)) (string, error) {
	if g.simulate {
		return g.replay(ctx, msgs, model, onToken)
	}
	resp, err := g.post(ctx, "streamGenerateContent", msgs, model)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	st := stream.NewSnapshotState(stream.GeminiText)
	if err := stream.ReadAll(ctx, resp.Body, st.Feed, onToken); err != nil {
		return "", fmt.Errorf("%s: %w", ProviderGemini, err)
	}
	text, err := st.Finish()
	if err != nil {
		return "", fmt.Errorf("%s: %w", ProviderGemini, err)
	}
	g.log.Debug("stream finished", "provider", ProviderGemini, "model", model, "deltas", st.Deltas(), "longest", len(st.LongestText))
	return text, nil
}

// replay fetches the whole response and hands it out in chunks of at least
// simulatedChunkBytes, cut on rune boundaries.
func (g *GeminiLLM) replay(ctx context.Context, msgs []Message, model string, onToken func(string)) (string, error) {
	text, err := g.SendMessage(ctx, msgs, model)
	if err != nil {
		return "", err
	}
	for i := 0; i < len(text); {
		if err := ctx.Err(); err != nil {
			return "", err
		}
		end := min(i+simulatedChunkBytes, len(text))
		for end < len(text) && !utf8.RuneStart(text[end]) {
			end++
		}
		if onToken != nil {
			onToken(text[i:end])
		}
		i = end
	}
	return text, nil
}

func (g *GeminiLLM) post(ctx context.Context, method string, msgs []Message, model string) (*http.Response, error) {
	if model == "" {
		model = g.models[0]
	}
	body, err := json.Marshal(toGeminiRequest(msgs))
	if err != nil {
		return nil, err
	}
	endpoint := fmt.Sprintf("%s/v1beta/models/%s:%s?key=%s", g.baseURL, url.PathEscape(model), method, url.QueryEscape(g.apiKey))
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("content-type", "application/json")
	resp, err := g.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", ProviderGemini, err)
	}
	if sentinel := statusError(resp.StatusCode); sentinel != nil {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		resp.Body.Close()
		return nil, fmt.Errorf("%s: %w: %s", ProviderGemini, sentinel, strings.TrimSpace(string(detail)))
	}
	return resp, nil
}

type geminiRequest struct {
	Contents          []geminiContent `json:"contents"`
	SystemInstruction *geminiContent  `json:"systemInstruction,omitempty"`
}

type geminiContent struct {
	Role  string       `json:"role,omitempty"`
	Parts []geminiPart `json:"parts"`
}

type geminiPart struct {
	Text string `json:"text"`
}

func toGeminiRequest(msgs []Message) geminiRequest {
	var req geminiRequest
	if system := systemText(msgs); len(system) > 0 {
		req.SystemInstruction = &geminiContent{Parts: []geminiPart{{Text: strings.Join(system, "\n\n")}}}
	}
	for _, m := range msgs {
		switch m.Role {
		case RoleUser:
			req.Contents = append(req.Contents, geminiContent{Role: "user", Parts: []geminiPart{{Text: m.Content}}})
		case RoleAssistant:
			req.Contents = append(req.Contents, geminiContent{Role: "model", Parts: []geminiPart{{Text: m.Content}}})
		}
	}
	return req
}
