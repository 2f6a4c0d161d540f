package manager

import (
	"context"

	"chatd/internal/sampler"
	"chatd/pkg/types"
)

// Engine is the embedded model runtime behind the local backend.
type Engine interface {
	Loaded() bool
	Model() (types.Model, bool)
	Load(ctx context.Context, m types.Model, contextLength, threads int) error
	Unload() error
	LoadKV(ctx context.Context) error
	SaveKV(ctx context.Context) error
	// Completion generates from a local payload, forwarding each token.
	Completion(ctx context.Context, p Payload, onToken func(string)) (string, error)
	Stop() error
}

var localSamplers = []sampler.Mapping{
	{External: "n_predict", ID: sampler.GeneratedLength},
	{External: "temperature", ID: sampler.Temperature},
	{External: "top_p", ID: sampler.TopP},
	{External: "top_k", ID: sampler.TopK},
	{External: "min_p", ID: sampler.MinP},
	{External: "typical_p", ID: sampler.Typical},
	{External: "mirostat", ID: sampler.MirostatMode},
	{External: "mirostat_tau", ID: sampler.MirostatTau},
	{External: "mirostat_eta", ID: sampler.MirostatEta},
	{External: "grammar", ID: sampler.GrammarString},
	{External: "penalty_last_n", ID: sampler.RepetitionPenaltyRange},
	{External: "penalty_repeat", ID: sampler.RepetitionPenalty},
	{External: "penalty_present", ID: sampler.PresencePenalty},
	{External: "penalty_freq", ID: sampler.FrequencyPenalty},
	{External: "xtc_t", ID: sampler.XTCThreshold},
	{External: "xtc_p", ID: sampler.XTCProbability},
	{External: "seed", ID: sampler.Seed},
	{External: "dry_base", ID: sampler.DryBase},
	{External: "dry_allowed_length", ID: sampler.DryAllowedLength},
	{External: "dry_multiplier", ID: sampler.DryMultiplier},
	{External: "dry_sequence_breakers", ID: sampler.DrySequenceBreak},
}

// localBackend runs completions on the embedded engine.
type localBackend struct {
	engine Engine
}

// NewLocalBackend wraps an embedded engine.
func NewLocalBackend(e Engine) Backend { return &localBackend{engine: e} }

func (b *localBackend) Kind() Kind                  { return KindLocal }
func (b *localBackend) Samplers() []sampler.Mapping { return localSamplers }

func (b *localBackend) BuildPayload(in PayloadInput) (Payload, error) {
	p, _, err := completionPayload(localSamplers, "n_predict", in)
	if err != nil {
		return nil, err
	}
	p["penalize_nl"] = penalizeNewline(p, "penalty_repeat")
	p["n_threads"] = in.Preset.Threads
	p["emit_partial_completion"] = true
	return p, nil
}

func (b *localBackend) Completion(ctx context.Context, p Payload, onStream func(string)) (string, error) {
	return b.engine.Completion(ctx, p, onStream)
}

func (b *localBackend) StopCompletion(ctx context.Context) error { return b.engine.Stop() }

func (b *localBackend) Loaded() bool                     { return b.engine.Loaded() }
func (b *localBackend) LoadedModel() (types.Model, bool) { return b.engine.Model() }
func (b *localBackend) Unload() error                    { return b.engine.Unload() }
func (b *localBackend) LoadKV(ctx context.Context) error { return b.engine.LoadKV(ctx) }
func (b *localBackend) SaveKV(ctx context.Context) error { return b.engine.SaveKV(ctx) }

func (b *localBackend) Load(ctx context.Context, m types.Model, preset sampler.Preset) error {
	return b.engine.Load(ctx, m, preset.ContextLength, preset.Threads)
}
