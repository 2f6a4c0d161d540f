package manager

import (
	"math"

	"chatd/internal/sampler"
)

// samplerFields emits {external: value} for every mapping whose sampler has
// a value, and nothing else.
func samplerFields(maps []sampler.Mapping, vals map[sampler.ID]any) Payload {
	out := make(Payload, len(maps)+8)
	for _, m := range maps {
		if v, ok := vals[m.ID]; ok {
			out[m.External] = v
		}
	}
	return out
}

// requestedTokens reads the generated-length field; absent, non-numeric
// and negative values count as 0.
func requestedTokens(p Payload, key string) int {
	v, ok := p[key]
	if !ok {
		return 0
	}
	n, ok := sampler.Number(v)
	if !ok || n <= 0 || math.IsNaN(n) {
		return 0
	}
	if n > math.MaxInt32 {
		return math.MaxInt32
	}
	return int(n)
}

// penalizeNewline is true iff the repetition penalty is a number above 1.
func penalizeNewline(p Payload, key string) bool {
	n, ok := sampler.Number(p[key])
	return ok && n > 1
}

// promptBudget is the token budget left for the prompt. A non-positive
// budget is clamped to 0 and generation proceeds best effort.
func promptBudget(contextLength, nPredict int) int {
	if b := contextLength - nPredict; b > 0 {
		return b
	}
	return 0
}

// completionPayload runs the steps shared by every backend: mapped sampler
// fields, normalised length, prompt within budget, stop list.
func completionPayload(maps []sampler.Mapping, lengthKey string, in PayloadInput) (Payload, int, error) {
	p := samplerFields(maps, sampler.Values(in.Preset))
	n := requestedTokens(p, lengthKey)
	if _, ok := p[lengthKey]; ok {
		p[lengthKey] = n
	}
	prompt := ""
	if in.BuildPrompt != nil {
		var err error
		prompt, err = in.BuildPrompt(promptBudget(in.Preset.ContextLength, n))
		if err != nil {
			return nil, n, err
		}
	}
	p["prompt"] = prompt
	stop := in.Stop
	if stop == nil {
		stop = []string{}
	}
	p["stop"] = stop
	return p, n, nil
}
