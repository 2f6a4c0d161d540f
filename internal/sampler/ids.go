// Package sampler holds the backend-independent model of generation
// parameters: stable sampler ids, presets and per-backend field mappings.
package sampler

import "fmt"

// ID identifies one generation parameter independently of any backend.
type ID int

const (
	GeneratedLength ID = iota + 1
	Temperature
	TopP
	TopK
	MinP
	Typical
	MirostatMode
	MirostatTau
	MirostatEta
	GrammarString
	RepetitionPenalty
	RepetitionPenaltyRange
	PresencePenalty
	FrequencyPenalty
	XTCThreshold
	XTCProbability
	Seed
	DryBase
	DryAllowedLength
	DryMultiplier
	DrySequenceBreak
)

var idNames = map[ID]string{
	GeneratedLength:        "genamt",
	Temperature:            "temp",
	TopP:                   "top_p",
	TopK:                   "top_k",
	MinP:                   "min_p",
	Typical:                "typical",
	MirostatMode:           "mirostat_mode",
	MirostatTau:            "mirostat_tau",
	MirostatEta:            "mirostat_eta",
	GrammarString:          "grammar_string",
	RepetitionPenalty:      "rep_pen",
	RepetitionPenaltyRange: "rep_pen_range",
	PresencePenalty:        "presence_pen",
	FrequencyPenalty:       "freq_pen",
	XTCThreshold:           "xtc_threshold",
	XTCProbability:         "xtc_probability",
	Seed:                   "seed",
	DryBase:                "dry_base",
	DryAllowedLength:       "dry_allowed_length",
	DryMultiplier:          "dry_multiplier",
	DrySequenceBreak:       "dry_sequence_breakers",
}

var idByName = func() map[string]ID {
	out := make(map[string]ID, len(idNames))
	for id, name := range idNames {
		out[name] = id
	}
	return out
}()

// String returns the persisted key of the sampler.
func (id ID) String() string {
	if n, ok := idNames[id]; ok {
		return n
	}
	return fmt.Sprintf("sampler(%d)", int(id))
}

// ParseID resolves a persisted key back to its ID.
func ParseID(s string) (ID, bool) {
	id, ok := idByName[s]
	return id, ok
}

// All returns every known sampler id in declaration order.
func All() []ID {
	out := make([]ID, 0, len(idNames))
	for id := GeneratedLength; id <= DrySequenceBreak; id++ {
		out = append(out, id)
	}
	return out
}

// Mapping pairs a sampler with the field name a backend expects for it.
type Mapping struct {
	External string
	ID       ID
}
