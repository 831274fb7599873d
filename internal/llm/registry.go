// Package llm resolves a provider and model choice into a langchaingo model.
package llm

import (
	"errors"
	"fmt"
	"sync"

	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/openai"

	"chefia/internal/config"
)

var (
	ErrUnknownProvider = errors.New("unknown provider")
	ErrUnknownModel    = errors.New("unknown model")
	ErrMissingKey      = errors.New("missing API key")
)

// ProviderType selects how a provider's client is built.
type ProviderType string

const (
	// OpenAICompatible providers speak the OpenAI chat API at BaseURL.
	OpenAICompatible ProviderType = "openai"
	// AzureOpenAI providers go through the Azure SDK.
	AzureOpenAI ProviderType = "azure"
)

// Provider is an LLM vendor the user can pick for a session.
type Provider struct {
	ID      string       `json:"id"`
	Name    string       `json:"name"`
	Type    ProviderType `json:"type"`
	Models  []string     `json:"models"`
	BaseURL string       `json:"-"`
}

// HasModel reports whether model is offered by p.
func (p *Provider) HasModel(model string) bool {
	for _, m := range p.Models {
		if m == model {
			return true
		}
	}
	return false
}

// DefaultProviders are the vendors offered out of the box, in display order.
func DefaultProviders() []*Provider {
	return []*Provider{
		{
			ID:      "gemini",
			Name:    "Google Gemini",
			Type:    OpenAICompatible,
			Models:  []string{"gemini-1.5-flash", "gemini-1.5-pro", "gemini-pro"},
			BaseURL: "https://generativelanguage.googleapis.com/v1beta/openai/",
		},
		{
			ID:     "openai",
			Name:   "OpenAI ChatGPT",
			Type:   OpenAICompatible,
			Models: []string{"gpt-4o-mini", "gpt-4o", "gpt-4-turbo"},
		},
		{
			ID:      "deepseek",
			Name:    "DeepSeek",
			Type:    OpenAICompatible,
			Models:  []string{"deepseek-chat", "deepseek-coder"},
			BaseURL: "https://api.deepseek.com",
		},
		{
			ID:      "perplexity",
			Name:    "Perplexity",
			Type:    OpenAICompatible,
			Models:  []string{"sonar-pro", "sonar", "sonar-reasoning"},
			BaseURL: "https://api.perplexity.ai",
		},
		{
			ID:     "azure",
			Name:   "Azure OpenAI",
			Type:   AzureOpenAI,
			Models: []string{"gpt-4o-mini", "gpt-4o"},
		},
	}
}

// Factory builds a model client for a provider.
type Factory func(p *Provider, model, apiKey string) (llms.Model, error)

// Registry manages the available providers and caches their clients.
type Registry struct {
	cfg       config.LLMConfig
	providers map[string]*Provider
	order     []string
	instances map[string]llms.Model
	factory   Factory
	mu        sync.RWMutex
}

// NewRegistry creates a registry over DefaultProviders, honouring base URL
// overrides from cfg.
func NewRegistry(cfg config.LLMConfig) *Registry {
	r := &Registry{
		cfg:       cfg,
		providers: make(map[string]*Provider),
		instances: make(map[string]llms.Model),
	}
	for _, p := range DefaultProviders() {
		if pc, ok := cfg.Providers[p.ID]; ok && pc.BaseURL != "" {
			p.BaseURL = pc.BaseURL
		}
		r.providers[p.ID] = p
		r.order = append(r.order, p.ID)
	}
	r.factory = r.newModel
	return r
}

// WithFactory replaces the client constructor, mainly for tests.
func (r *Registry) WithFactory(f Factory) *Registry {
	r.factory = f
	return r
}

// Providers lists the providers in display order.
func (r *Registry) Providers() []Provider {
	out := make([]Provider, 0, len(r.order))
	for _, id := range r.order {
		out = append(out, *r.providers[id])
	}
	return out
}

// Validate checks that provider offers model.
func (r *Registry) Validate(provider, model string) error {
	p, ok := r.providers[provider]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownProvider, provider)
	}
	if !p.HasModel(model) {
		return fmt.Errorf("%w: %s does not offer %s", ErrUnknownModel, p.Name, model)
	}
	return nil
}

// HasKey reports whether a key is configured for provider.
func (r *Registry) HasKey(provider string) bool {
	return r.cfg.Providers[provider].APIKey != ""
}

// Resolve returns a client for provider/model. An empty apiKey falls back to
// the configured key; clients built from configured keys are cached.
func (r *Registry) Resolve(provider, model, apiKey string) (llms.Model, error) {
	if err := r.Validate(provider, model); err != nil {
		return nil, err
	}
	p := r.providers[provider]

	if apiKey != "" {
		return r.factory(p, model, apiKey)
	}

	cacheKey := provider + "/" + model
	r.mu.RLock()
	m, ok := r.instances[cacheKey]
	r.mu.RUnlock()
	if ok {
		return m, nil
	}

	apiKey = r.cfg.Providers[provider].APIKey
	if apiKey == "" {
		return nil, fmt.Errorf("%w for %s", ErrMissingKey, p.Name)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if m, ok := r.instances[cacheKey]; ok {
		return m, nil
	}
	m, err := r.factory(p, model, apiKey)
	if err != nil {
		return nil, err
	}
	r.instances[cacheKey] = m
	return m, nil
}

func (r *Registry) newModel(p *Provider, model, apiKey string) (llms.Model, error) {
	switch p.Type {
	case OpenAICompatible:
		return r.initializeOpenAI(p, model, apiKey)
	case AzureOpenAI:
		deployment := model
		if d, ok := r.cfg.AzureDeploymentMap[model]; ok && d != "" {
			deployment = d
		}
		return NewAzureModel(r.cfg.AzureEndpoint, apiKey, deployment)
	default:
		return nil, fmt.Errorf("unsupported provider type: %s", p.Type)
	}
}

// initializeOpenAI creates a client for an OpenAI-compatible endpoint
func (r *Registry) initializeOpenAI(p *Provider, model, apiKey string) (llms.Model, error) {
	opts := []openai.Option{
		openai.WithModel(model),
		openai.WithToken(apiKey),
	}
	if p.BaseURL != "" {
		opts = append(opts, openai.WithBaseURL(p.BaseURL))
	}
	client, err := openai.New(opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize %s model: %w", p.Name, err)
	}
	return client, nil
}
