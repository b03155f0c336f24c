package generator

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"project_plan_chat/plan"
)

// DefaultMaxResponseBytes bounds one response when no limit is configured.
const DefaultMaxResponseBytes = 256 << 10

// Agent runs one generation: classify the turn, build the prompt, stream the
// response and normalise any plan in it.
type Agent struct {
	router   *Router
	log      *slog.Logger
	maxBytes int
}

// AgentOptions configures NewAgent. Zero values pick defaults.
type AgentOptions struct {
	Logger *slog.Logger
	// MaxResponseBytes aborts a stream whose text grows past the limit.
	MaxResponseBytes int
}

func NewAgent(router *Router, opts AgentOptions) (*Agent, error) {
	if router == nil {
		return nil, errors.New("llm router is required")
	}
	log := opts.Logger
	if log == nil {
		log = discardLogger()
	}
	maxBytes := opts.MaxResponseBytes
	if maxBytes <= 0 {
		maxBytes = DefaultMaxResponseBytes
	}
	return &Agent{router: router, log: log, maxBytes: maxBytes}, nil
}

// Router exposes the provider catalogue.
func (a *Agent) Router() *Router { return a.router }

// Reply answers message given the earlier turns in history. onToken, when
// set, receives every delta as it arrives. Nothing is returned but an error
// when the stream fails, is cancelled or exceeds the size limit.
func (a *Agent) Reply(ctx context.Context, model string, history []Message, message string, onToken func(string)) (Reply, error) {
	client, provider, model, err := a.router.Resolve(model)
	if err != nil {
		return Reply{}, err
	}

	var lastAssistant string
	var priorUser []string
	for _, m := range history {
		switch m.Role {
		case RoleAssistant:
			lastAssistant = m.Content
		case RoleUser:
			priorUser = append(priorUser, m.Content)
		}
	}
	decision := plan.ClassifyPlanRequest(message, lastAssistant)
	goal := message
	if decision.Requested {
		goal = plan.PlanGoal(message, priorUser)
	}
	prompt := BuildChatPrompt(history, message, decision, goal)

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	var size, tokens int
	tooLarge := false
	forward := func(delta string) {
		if tooLarge {
			return
		}
		size += len(delta)
		if size > a.maxBytes {
			tooLarge = true
			cancel()
			return
		}
		tokens++
		if onToken != nil {
			onToken(delta)
		}
	}

	start := time.Now()
	a.log.Info("stream started", "provider", provider, "model", model, "plan_requested", decision.Requested, "reason", decision.Reason, "messages", len(history)+1)
	raw, err := client.StreamMessage(ctx, prompt.Messages(), model, forward)
	if tooLarge {
		return Reply{}, fmt.Errorf("%w: more than %d bytes", ErrResponseTooLarge, a.maxBytes)
	}
	if err != nil {
		return Reply{}, err
	}

	text, outcome, err := PostProcess(raw, decision)
	if err != nil {
		return Reply{}, err
	}
	a.log.Info("stream completed", "provider", provider, "model", model, "tokens", tokens, "response_length", len(raw), "outcome", outcome, "elapsed", time.Since(start))
	return Reply{
		Text:     text,
		Raw:      raw,
		Model:    model,
		Provider: provider,
		Decision: decision,
		Outcome:  outcome,
		Tokens:   tokens,
	}, nil
}

// GeneratePlan asks provider for a bare JSON plan and returns the first
// valid JSON object in its answer. An empty model means the provider's
// default.
func (a *Agent) GeneratePlan(ctx context.Context, provider Provider, model, userPrompt string) (json.RawMessage, string, error) {
	client, err := a.router.Client(provider)
	if err != nil {
		return nil, "", err
	}
	if model == "" {
		if models := client.ListModels(); len(models) > 0 {
			model = models[0]
		}
	}
	raw, err := client.SendMessage(ctx, BuildProjectPlanPrompt(userPrompt).Messages(), model)
	if err != nil {
		return nil, "", err
	}
	out, err := extractJSON(raw)
	if err != nil {
		a.log.Warn("plan generation returned non-JSON", "provider", provider, "model", model, "response_length", len(raw))
		return nil, "", err
	}
	return out, model, nil
}
