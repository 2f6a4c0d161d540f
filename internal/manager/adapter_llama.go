//go:build llama

package manager

import (
	"context"
	"errors"
	"strings"
	"sync"
	"sync/atomic"

	llama "github.com/go-skynet/go-llama.cpp"

	"chatd/internal/common/fsutil"
	"chatd/internal/sampler"
	"chatd/pkg/types"
)

// llamaBuilt indicates this binary was compiled with real llama support.
var llamaBuilt = true

// llamaEngine owns at most one loaded model context.
type llamaEngine struct {
	mu      sync.Mutex
	model   *llama.LLama
	desc    types.Model
	threads int
	kvPath  string
	stopped atomic.Bool
}

// NewLlamaEngine returns the in-process llama.cpp engine. kvPath is where
// session state is saved and restored; empty disables both.
func NewLlamaEngine(kvPath string) Engine {
	return &llamaEngine{kvPath: kvPath}
}

func (e *llamaEngine) Loaded() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.model != nil
}

func (e *llamaEngine) Model() (types.Model, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.desc, e.model != nil
}

func (e *llamaEngine) Load(ctx context.Context, m types.Model, contextLength, threads int) error {
	if strings.TrimSpace(m.Path) == "" {
		return errors.New("model path is empty")
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	mo := []llama.ModelOption{}
	if contextLength > 0 {
		mo = append(mo, llama.SetContext(contextLength))
	}
	mdl, err := llama.New(m.Path, mo...)
	if err != nil {
		return err
	}
	e.mu.Lock()
	if e.model != nil {
		e.model.Free()
	}
	e.model, e.desc, e.threads = mdl, m, threads
	e.mu.Unlock()
	return nil
}

func (e *llamaEngine) Unload() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.model != nil {
		e.model.Free()
		e.model = nil
		e.desc = types.Model{}
	}
	return nil
}

func (e *llamaEngine) LoadKV(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.model == nil {
		return errors.New("llama model not initialized")
	}
	if e.kvPath == "" {
		return nil
	}
	if !fsutil.PathExists(e.kvPath) {
		return nil
	}
	return e.model.LoadState(e.kvPath)
}

func (e *llamaEngine) SaveKV(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.model == nil || e.kvPath == "" {
		return nil
	}
	return e.model.SaveState(e.kvPath)
}

func (e *llamaEngine) Stop() error {
	e.stopped.Store(true)
	return nil
}

func (e *llamaEngine) Completion(ctx context.Context, p Payload, onToken func(string)) (string, error) {
	e.mu.Lock()
	mdl, threads := e.model, e.threads
	e.mu.Unlock()
	if mdl == nil {
		return "", errors.New("llama model not initialized")
	}
	e.stopped.Store(false)

	var b strings.Builder
	mdl.SetTokenCallback(func(tok string) bool {
		select {
		case <-ctx.Done():
			return false
		default:
		}
		if e.stopped.Load() {
			return false
		}
		b.WriteString(tok)
		onToken(tok)
		return true
	})
	prompt, _ := p["prompt"].(string)
	text, err := mdl.Predict(prompt, mapPayloadToPredictOptions(p, threads)...)
	if err != nil {
		if ctx.Err() != nil {
			return b.String(), ctx.Err()
		}
		return b.String(), err
	}
	if text == "" {
		text = b.String()
	}
	return text, nil
}

func num(p Payload, key string) (float64, bool) { return sampler.Number(p[key]) }

// mapPayloadToPredictOptions converts a local payload into go-llama.cpp
// options. Fields the binding has no setter for (min_p, xtc, dry) are
// ignored.
func mapPayloadToPredictOptions(p Payload, threads int) []llama.PredictOption {
	if n, ok := num(p, "n_threads"); ok && n > 0 {
		threads = int(n)
	}
	if threads <= 0 {
		threads = 1
	}
	po := []llama.PredictOption{llama.SetThreads(threads)}
	if n, ok := num(p, "n_predict"); ok && n > 0 {
		po = append(po, llama.SetTokens(int(n)))
	}
	if v, ok := num(p, "temperature"); ok {
		po = append(po, llama.SetTemperature(float32(v)))
	}
	if v, ok := num(p, "top_p"); ok {
		po = append(po, llama.SetTopP(float32(v)))
	}
	if v, ok := num(p, "top_k"); ok {
		po = append(po, llama.SetTopK(int(v)))
	}
	if v, ok := num(p, "typical_p"); ok {
		po = append(po, llama.SetTypicalP(float32(v)))
	}
	if v, ok := num(p, "mirostat"); ok {
		po = append(po, llama.SetMirostat(int(v)))
	}
	if v, ok := num(p, "mirostat_tau"); ok {
		po = append(po, llama.SetMirostatTAU(float32(v)))
	}
	if v, ok := num(p, "mirostat_eta"); ok {
		po = append(po, llama.SetMirostatETA(float32(v)))
	}
	if v, ok := num(p, "penalty_repeat"); ok {
		po = append(po, llama.SetPenalty(float32(v)))
	}
	if v, ok := num(p, "penalty_last_n"); ok {
		po = append(po, llama.SetRepeat(int(v)))
	}
	if v, ok := num(p, "penalty_present"); ok {
		po = append(po, llama.SetPresencePenalty(float32(v)))
	}
	if v, ok := num(p, "penalty_freq"); ok {
		po = append(po, llama.SetFrequencyPenalty(float32(v)))
	}
	if v, ok := num(p, "seed"); ok {
		po = append(po, llama.SetSeed(int(v)))
	}
	if nl, ok := p["penalize_nl"].(bool); ok {
		po = append(po, llama.SetPenalizeNL(nl))
	}
	if g, ok := p["grammar"].(string); ok && g != "" {
		po = append(po, llama.WithGrammar(g))
	}
	if stop, ok := p["stop"].([]string); ok && len(stop) > 0 {
		po = append(po, llama.SetStopWords(stop...))
	}
	return po
}
