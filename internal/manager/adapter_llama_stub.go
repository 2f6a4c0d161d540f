//go:build !llama

package manager

// No-CGO stub for the llama engine, compiled when the 'llama' build tag is
// not set. The real engine lives in adapter_llama.go.

import (
	"context"

	"chatd/pkg/types"
)

var llamaBuilt = false

const llamaMissing = "llama support not built (missing 'llama' build tag)"

type llamaEngine struct{}

// NewLlamaEngine returns an engine that refuses to load models.
func NewLlamaEngine(kvPath string) Engine { return llamaEngine{} }

func (llamaEngine) Loaded() bool               { return false }
func (llamaEngine) Model() (types.Model, bool) { return types.Model{}, false }
func (llamaEngine) Unload() error              { return nil }
func (llamaEngine) Stop() error                { return nil }

func (llamaEngine) Load(ctx context.Context, m types.Model, contextLength, threads int) error {
	return ErrDependencyUnavailable(llamaMissing)
}

func (llamaEngine) LoadKV(ctx context.Context) error { return ErrDependencyUnavailable(llamaMissing) }
func (llamaEngine) SaveKV(ctx context.Context) error { return ErrDependencyUnavailable(llamaMissing) }

func (llamaEngine) Completion(ctx context.Context, p Payload, onToken func(string)) (string, error) {
	select {
	case <-ctx.Done():
		return "", ctx.Err()
	default:
	}
	return "", ErrDependencyUnavailable(llamaMissing)
}
