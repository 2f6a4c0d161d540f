package manager

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"chatd/internal/sampler"
)

var openAISamplers = []sampler.Mapping{
	{External: "max_tokens", ID: sampler.GeneratedLength},
	{External: "temperature", ID: sampler.Temperature},
	{External: "top_p", ID: sampler.TopP},
	{External: "top_k", ID: sampler.TopK},
	{External: "min_p", ID: sampler.MinP},
	{External: "presence_penalty", ID: sampler.PresencePenalty},
	{External: "frequency_penalty", ID: sampler.FrequencyPenalty},
	{External: "repeat_penalty", ID: sampler.RepetitionPenalty},
	{External: "seed", ID: sampler.Seed},
}

// openAIBackend streams from an OpenAI-compatible /v1/completions endpoint.
type openAIBackend struct {
	baseURL    string
	apiKey     string
	model      string
	reqTimeout time.Duration
	httpClient *http.Client
	logger     zerolog.Logger
}

// NewOpenAIBackend constructs an OpenAI-compatible backend.
func NewOpenAIBackend(cfg BackendConfig) Backend {
	return &openAIBackend{
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:     cfg.APIKey,
		model:      cfg.Model,
		reqTimeout: cfg.RequestTimeout,
		httpClient: newHTTPClient(cfg.ConnectTimeout),
		logger:     log.With().Str("backend", string(KindOpenAI)).Logger(),
	}
}

func (b *openAIBackend) Kind() Kind                  { return KindOpenAI }
func (b *openAIBackend) Samplers() []sampler.Mapping { return openAISamplers }

func (b *openAIBackend) BuildPayload(in PayloadInput) (Payload, error) {
	p, _, err := completionPayload(openAISamplers, "max_tokens", in)
	if err != nil {
		return nil, err
	}
	if b.model != "" {
		p["model"] = b.model
	}
	p["stream"] = true
	return p, nil
}

// openAIStreamResponse covers both completion (text) and chat (delta) chunks.
type openAIStreamResponse struct {
	Choices []struct {
		Text  string `json:"text"`
		Delta struct {
			Content string `json:"content"`
		} `json:"delta"`
		FinishReason string `json:"finish_reason"`
	} `json:"choices"`
}

func (b *openAIBackend) Completion(ctx context.Context, p Payload, onStream func(string)) (string, error) {
	if b.reqTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, b.reqTimeout)
		defer cancel()
	}
	body, err := json.Marshal(p)
	if err != nil {
		return "", err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, b.baseURL+"/v1/completions", bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")
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
		return "", httpStatusError("openai http error", resp)
	}

	var text strings.Builder
	err = readSSE(ctx, resp.Body, func(data string) error {
		var msg openAIStreamResponse
		if err := json.Unmarshal([]byte(data), &msg); err != nil || len(msg.Choices) == 0 {
			b.logger.Debug().Str("line", data).Msg("unknown stream line")
			return nil
		}
		frag := msg.Choices[0].Text
		if frag == "" {
			frag = msg.Choices[0].Delta.Content
		}
		if frag != "" {
			text.WriteString(frag)
			onStream(frag)
		}
		return nil
	})
	return text.String(), err
}

func (b *openAIBackend) StopCompletion(ctx context.Context) error { return nil }
