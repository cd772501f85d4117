// Package registry maps model identifiers to provider adapters.
//
// Identifiers are routed by prefix:
//
//	gemini-*               -> gemini
//	gpt-*, o1*, o3*, o4*   -> openai
//	claude-*               -> anthropic
//	ollama/<name>          -> ollama
//
// A provider override sends every identifier to one backend. Resolved
// models are cached per identifier.
package registry

import (
	"errors"
	"fmt"
	"strings"
	"sync"

	anthropicsdk "github.com/anthropics/anthropic-sdk-go"

	"github.com/hupe1980/adkpatterns/model"
	"github.com/hupe1980/adkpatterns/model/anthropic"
	"github.com/hupe1980/adkpatterns/model/gemini"
	"github.com/hupe1980/adkpatterns/model/ollama"
	"github.com/hupe1980/adkpatterns/model/openai"
)

// Provider names.
const (
	ProviderGemini    = "gemini"
	ProviderOpenAI    = "openai"
	ProviderAnthropic = "anthropic"
	ProviderOllama    = "ollama"
)

// ErrUnknownModel is returned for identifiers no provider claims.
var ErrUnknownModel = errors.New("unknown model")

// Factory builds a model for a provider-local model name.
type Factory func(name string) (model.Model, error)

// Options configures a Registry.
type Options struct {
	// Provider forces every identifier through one backend.
	Provider string
	// Model replaces every identifier when set.
	Model string

	GoogleAPIKey    string
	OpenAIAPIKey    string
	AnthropicAPIKey string
	OllamaHost      string

	// Factories override the built-in constructors per provider.
	Factories map[string]Factory
}

// Registry resolves and caches models.
type Registry struct {
	opts Options

	mu    sync.Mutex
	cache map[string]model.Model
}

// New creates a Registry.
func New(optFns ...func(o *Options)) *Registry {
	opts := Options{}
	for _, fn := range optFns {
		fn(&opts)
	}

	r := &Registry{opts: opts, cache: map[string]model.Model{}}

	factories := map[string]Factory{
		ProviderGemini:    r.newGemini,
		ProviderOpenAI:    r.newOpenAI,
		ProviderAnthropic: r.newAnthropic,
		ProviderOllama:    r.newOllama,
	}
	for k, f := range opts.Factories {
		factories[k] = f
	}

	r.opts.Factories = factories

	return r
}

// ProviderFor returns the provider and provider-local name for an identifier.
func ProviderFor(id string) (provider, name string, err error) {
	switch {
	case strings.HasPrefix(id, "ollama/"):
		return ProviderOllama, strings.TrimPrefix(id, "ollama/"), nil
	case strings.HasPrefix(id, "gemini-"):
		return ProviderGemini, id, nil
	case strings.HasPrefix(id, "gpt-"), strings.HasPrefix(id, "o1"), strings.HasPrefix(id, "o3"), strings.HasPrefix(id, "o4"):
		return ProviderOpenAI, id, nil
	case strings.HasPrefix(id, "claude-"):
		return ProviderAnthropic, id, nil
	default:
		return "", "", fmt.Errorf("%w: %q", ErrUnknownModel, id)
	}
}

// Resolve returns the model for id, constructing it on first use.
func (r *Registry) Resolve(id string) (model.Model, error) {
	if r.opts.Model != "" {
		id = r.opts.Model
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if m, ok := r.cache[id]; ok {
		return m, nil
	}

	provider, name := r.opts.Provider, strings.TrimPrefix(id, "ollama/")
	if provider == "" {
		var err error
		if provider, name, err = ProviderFor(id); err != nil {
			return nil, err
		}
	}

	factory, ok := r.opts.Factories[provider]
	if !ok {
		return nil, fmt.Errorf("unknown provider %q", provider)
	}

	m, err := factory(name)
	if err != nil {
		return nil, fmt.Errorf("%s model %q: %w", provider, name, err)
	}

	r.cache[id] = m

	return m, nil
}

// Resolver adapts the registry to model.Resolver.
func (r *Registry) Resolver() model.Resolver { return r.Resolve }

func (r *Registry) newGemini(name string) (model.Model, error) {
	return gemini.NewModel(func(o *gemini.Options) {
		o.Model = name
		o.APIKey = r.opts.GoogleAPIKey
	}), nil
}

func (r *Registry) newOpenAI(name string) (model.Model, error) {
	return openai.NewModel(func(o *openai.Options) {
		o.Model = name
		o.APIKey = r.opts.OpenAIAPIKey
	}), nil
}

func (r *Registry) newAnthropic(name string) (model.Model, error) {
	return anthropic.NewModel(func(o *anthropic.Options) {
		o.Model = anthropicsdk.Model(name)
		o.APIKey = r.opts.AnthropicAPIKey
	}), nil
}

func (r *Registry) newOllama(name string) (model.Model, error) {
	return ollama.NewModel(func(o *ollama.Options) {
		o.Model = name
		if r.opts.OllamaHost != "" {
			o.Host = r.opts.OllamaHost
		}
	}), nil
}
