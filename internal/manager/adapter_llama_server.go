package manager

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"chatd/internal/sampler"
)

var llamaServerSamplers = []sampler.Mapping{
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
	{External: "repeat_last_n", ID: sampler.RepetitionPenaltyRange},
	{External: "repeat_penalty", ID: sampler.RepetitionPenalty},
	{External: "presence_penalty", ID: sampler.PresencePenalty},
	{External: "frequency_penalty", ID: sampler.FrequencyPenalty},
	{External: "xtc_threshold", ID: sampler.XTCThreshold},
	{External: "xtc_probability", ID: sampler.XTCProbability},
	{External: "seed", ID: sampler.Seed},
	{External: "dry_base", ID: sampler.DryBase},
	{External: "dry_allowed_length", ID: sampler.DryAllowedLength},
	{External: "dry_multiplier", ID: sampler.DryMultiplier},
	{External: "dry_sequence_breakers", ID: sampler.DrySequenceBreak},
}

// llamaServerBackend talks to a running llama.cpp server through its
// native /completion endpoint.
type llamaServerBackend struct {
	baseURL    string
	apiKey     string
	reqTimeout time.Duration
	httpClient *http.Client
	logger     zerolog.Logger
}

// NewLlamaServerBackend constructs a llama.cpp server backend.
func NewLlamaServerBackend(cfg BackendConfig) Backend {
	return &llamaServerBackend{
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:     cfg.APIKey,
		reqTimeout: cfg.RequestTimeout,
		httpClient: newHTTPClient(cfg.ConnectTimeout),
		logger:     log.With().Str("backend", string(KindLlamaCpp)).Logger(),
	}
}

func (b *llamaServerBackend) Kind() Kind                  { return KindLlamaCpp }
func (b *llamaServerBackend) Samplers() []sampler.Mapping { return llamaServerSamplers }

func (b *llamaServerBackend) BuildPayload(in PayloadInput) (Payload, error) {
	p, _, err := completionPayload(llamaServerSamplers, "n_predict", in)
	if err != nil {
		return nil, err
	}
	p["penalize_nl"] = penalizeNewline(p, "repeat_penalty")
	p["stream"] = true
	p["cache_prompt"] = true
	return p, nil
}

// llamaServerChunk is one streamed /completion event.
type llamaServerChunk struct {
	Content string `json:"content"`
	Stop    bool   `json:"stop"`
}

func (b *llamaServerBackend) Completion(ctx context.Context, p Payload, onStream func(string)) (string, error) {
	if b.httpClient == nil {
		return "", errors.New("llama server backend not initialized")
	}
	if b.reqTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, b.reqTimeout)
		defer cancel()
	}
	body, err := json.Marshal(p)
	if err != nil {
		return "", err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, b.baseURL+"/completion", bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "text/event-stream")
	if b.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+b.apiKey)
	}
	resp, err := b.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		return "", err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", httpStatusError("llama server http error", resp)
	}

	var text strings.Builder
	err = readSSE(ctx, resp.Body, func(data string) error {
		var chunk llamaServerChunk
		if err := json.Unmarshal([]byte(data), &chunk); err != nil {
			b.logger.Debug().Str("line", data).Msg("unknown stream line")
			return nil
		}
		if chunk.Content != "" {
			text.WriteString(chunk.Content)
			onStream(chunk.Content)
		}
		if chunk.Stop {
			return errStreamDone
		}
		return nil
	})
	return text.String(), err
}

// StopCompletion is a no-op: the server stops generating once the
// streaming connection is closed by the canceled request context.
func (b *llamaServerBackend) StopCompletion(ctx context.Context) error { return nil }
