package generator

import (
	"fmt"
	"strings"
)

// ModelInfo is one entry of the model catalogue.
type ModelInfo struct {
	Name     string   `json:"name"`
	Provider Provider `json:"provider"`
}

// Router holds the configured providers and picks one per model.
type Router struct {
	clients      map[Provider]LLMClient
	order        []Provider
	defaultModel string
}

func NewRouter(defaultModel string) *Router {
	return &Router{clients: make(map[Provider]LLMClient), defaultModel: strings.TrimSpace(defaultModel)}
}

// NewRouterFromSettings builds a client for every entry of settings.
func NewRouterFromSettings(settings []LLMSettings, defaultModel string) (*Router, error) {
	r := NewRouter(defaultModel)
	for _, s := range settings {
		c, err := NewLLM(s)
		if err != nil {
			return nil, err
		}
		if err := r.Register(s.Provider, c); err != nil {
			return nil, err
		}
	}
	return r, nil
}

func (r *Router) Register(p Provider, c LLMClient) error {
	if _, dup := r.clients[p]; dup {
		return fmt.Errorf("provider %q registered twice", p)
	}
	r.clients[p] = c
	r.order = append(r.order, p)
	return nil
}

// DefaultModel is the configured default, or the first model of the first
// registered provider.
func (r *Router) DefaultModel() string {
	if r.defaultModel != "" {
		return r.defaultModel
	}
	for _, p := range r.order {
		if models := r.clients[p].ListModels(); len(models) > 0 {
			return models[0]
		}
	}
	return ""
}

// Resolve returns the client for model. An empty model means the default.
// When the provider a model routes to is not configured, the mock provider
// answers if it is registered.
func (r *Router) Resolve(model string) (LLMClient, Provider, string, error) {
	model = strings.TrimSpace(model)
	if model == "" {
		model = r.DefaultModel()
	}
	p := ProviderForModel(model)
	if c, ok := r.clients[p]; ok {
		return c, p, model, nil
	}
	if c, ok := r.clients[ProviderMock]; ok {
		return c, ProviderMock, model, nil
	}
	return nil, "", "", fmt.Errorf("%w: %s (model %q)", ErrProviderNotConfigured, p, model)
}

// Client returns the registered client for p.
func (r *Router) Client(p Provider) (LLMClient, error) {
	c, ok := r.clients[p]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrProviderNotConfigured, p)
	}
	return c, nil
}

// Models lists every model of every registered provider.
func (r *Router) Models() []ModelInfo {
	var out []ModelInfo
	for _, p := range r.order {
		for _, m := range r.clients[p].ListModels() {
			out = append(out, ModelInfo{Name: m, Provider: p})
		}
	}
	return out
}
