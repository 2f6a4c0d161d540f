package sampler

import (
	"encoding/json"
	"math"
)

// Preset is a named set of sampler values plus backend extras.
// Samplers is keyed by ID.String() so presets round-trip through
// JSON, YAML and TOML unchanged.
type Preset struct {
	Name          string         `json:"name" yaml:"name" toml:"name"`
	Samplers      map[string]any `json:"samplers" yaml:"samplers" toml:"samplers"`
	Threads       int            `json:"threads" yaml:"threads" toml:"threads"`
	ContextLength int            `json:"context_length" yaml:"context_length" toml:"context_length"`
}

// DefaultPreset is the preset a fresh install starts with.
func DefaultPreset() Preset {
	p := Preset{Name: "Default", Threads: 4, ContextLength: 4096}
	p.Set(GeneratedLength, 256)
	p.Set(Temperature, 1.0)
	p.Set(TopP, 1.0)
	p.Set(TopK, 0)
	p.Set(MinP, 0.05)
	p.Set(Typical, 1.0)
	p.Set(RepetitionPenalty, 1.05)
	p.Set(RepetitionPenaltyRange, 64)
	p.Set(Seed, -1)
	return p
}

// Set stores v for id, replacing any previous value.
func (p *Preset) Set(id ID, v any) {
	if p.Samplers == nil {
		p.Samplers = make(map[string]any)
	}
	p.Samplers[id.String()] = v
}

// Unset removes id from the preset.
func (p *Preset) Unset(id ID) { delete(p.Samplers, id.String()) }

// Values returns the sampler values present in p. Unknown keys and values
// that are not a finite number, a string or a bool are omitted.
func Values(p Preset) map[ID]any {
	out := make(map[ID]any, len(p.Samplers))
	for k, v := range p.Samplers {
		id, ok := ParseID(k)
		if !ok {
			continue
		}
		switch tv := v.(type) {
		case string, bool:
			out[id] = tv
		case json.Number:
			if f, err := tv.Float64(); err == nil && finite(f) {
				out[id] = f
			}
		default:
			if f, ok := Number(v); ok && finite(f) {
				out[id] = v
			}
		}
	}
	return out
}

// Number reports v as a float64 when it holds any Go numeric type.
func Number(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int8:
		return float64(n), true
	case int16:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint:
		return float64(n), true
	case uint8:
		return float64(n), true
	case uint16:
		return float64(n), true
	case uint32:
		return float64(n), true
	case uint64:
		return float64(n), true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	}
	return 0, false
}

func finite(f float64) bool { return !math.IsNaN(f) && !math.IsInf(f, 0) }
