package manager

import (
	"context"
	"fmt"
	"time"

	"chatd/internal/sampler"
	"chatd/pkg/types"
)

// Kind selects the backend variant.
type Kind string

const (
	KindLocal    Kind = "local"
	KindLlamaCpp Kind = "llamacpp"
	KindOpenAI   Kind = "openai"
)

// ParseKind validates a configured backend kind. Empty means local.
func ParseKind(s string) (Kind, error) {
	switch Kind(s) {
	case "", KindLocal:
		return KindLocal, nil
	case KindLlamaCpp, KindOpenAI:
		return Kind(s), nil
	}
	return "", fmt.Errorf("unknown backend kind %q", s)
}

// Payload is the flat request object a backend receives. Keys are the
// backend's native parameter names.
type Payload map[string]any

// PayloadInput is everything BuildPayload needs.
type PayloadInput struct {
	Preset sampler.Preset
	Stop   []string
	// BuildPrompt returns the prompt trimmed to maxTokens.
	BuildPrompt func(maxTokens int) (string, error)
}

// Backend is the capability set every backend variant implements.
type Backend interface {
	Kind() Kind
	// Samplers is the ordered sampler mapping of this backend.
	Samplers() []sampler.Mapping
	// BuildPayload turns the preset into this backend's request shape.
	// It performs no network I/O.
	BuildPayload(in PayloadInput) (Payload, error)
	// Completion runs one generation. onStream receives increments in order
	// and is never called after Completion returns. The returned text is
	// the full completion; on error it may be empty.
	Completion(ctx context.Context, p Payload, onStream func(string)) (string, error)
	// StopCompletion asks a running Completion to finish early.
	StopCompletion(ctx context.Context) error
}

// ModelLoader is implemented by backends that own a model context.
type ModelLoader interface {
	Loaded() bool
	LoadedModel() (types.Model, bool)
	Load(ctx context.Context, m types.Model, preset sampler.Preset) error
	Unload() error
	LoadKV(ctx context.Context) error
	SaveKV(ctx context.Context) error
}

// BackendConfig carries the settings for every backend variant.
type BackendConfig struct {
	Kind           Kind
	BaseURL        string
	APIKey         string
	Model          string
	RequestTimeout time.Duration
	ConnectTimeout time.Duration
	// KVPath is where the local engine keeps its saved session state.
	KVPath string
	// Engine overrides the embedded runtime of the local backend.
	Engine Engine
}

// NewBackend constructs the variant selected by cfg.Kind.
func NewBackend(cfg BackendConfig) (Backend, error) {
	switch cfg.Kind {
	case "", KindLocal:
		eng := cfg.Engine
		if eng == nil {
			eng = NewLlamaEngine(cfg.KVPath)
		}
		return NewLocalBackend(eng), nil
	case KindLlamaCpp:
		if cfg.BaseURL == "" {
			return nil, ErrConfiguration("llamacpp backend requires a base url")
		}
		return NewLlamaServerBackend(cfg), nil
	case KindOpenAI:
		if cfg.BaseURL == "" {
			return nil, ErrConfiguration("openai backend requires a base url")
		}
		return NewOpenAIBackend(cfg), nil
	}
	return nil, ErrConfiguration(fmt.Sprintf("unknown backend kind %q", cfg.Kind))
}
