package manager

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"chatd/internal/filter"
	"chatd/internal/prompt"
	"chatd/internal/sampler"
	"chatd/internal/store"
	"chatd/pkg/types"
)

// run drives one generation through autoload, streaming and finalize. It
// always leaves the controller idle with the regeneration cache cleared.
func (c *Controller) run(ctx context.Context, chatID, entryID int64) (res Result, err error) {
	start := time.Now()
	kind := string(c.backend.Kind())
	res = Result{ChatID: chatID, EntryID: entryID, Outcome: OutcomeNotStarted}
	logger := c.logger.With().Int64("chat_id", chatID).Int64("entry_id", entryID).Str("backend", kind).Logger()

	gen := ""
	finalized := false
	defer func() {
		// Subscribers always see Done, even when a backend panics.
		switch {
		case gen == "":
			c.buf.skip()
		case !finalized:
			c.buf.finish(gen, c.buf.Text())
		}
		generationsTotal.WithLabelValues(kind, string(res.Outcome)).Inc()
		generationDuration.WithLabelValues(kind, string(res.Outcome)).Observe(time.Since(start).Seconds())
		c.finish(err)
	}()

	preset := c.loadPreset(ctx)
	if err = c.ensureModel(ctx, preset); err != nil {
		c.publish("generation_failed", chatID, entryID, map[string]any{"error": err.Error()})
		return res, err
	}
	instruct := c.loadInstruct(ctx)
	chat, err := c.chats.Chat(ctx, chatID)
	if err != nil {
		c.notifier.Log(fmt.Sprintf("Failed to generate: %v", err), true)
		return res, err
	}
	names := prompt.Names{User: chat.UserName, Char: chat.CharacterName}
	replacer := c.replace.Get(filter.ReplaceStrings(instruct, names))
	bypass := c.flag(ctx, store.KeyBypassContextLength)
	printContext := c.flag(ctx, store.KeyPrintContext)

	genCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	gen = c.buf.begin()
	c.mu.Lock()
	c.state = StateStreaming
	c.aborted = false
	c.abort = func(actx context.Context) error {
		cancel()
		return c.backend.StopCompletion(actx)
	}
	c.mu.Unlock()
	c.publish("generation_start", chatID, entryID, nil)
	logger.Debug().Msg("generation started")

	payload, genErr := c.backend.BuildPayload(PayloadInput{
		Preset: preset,
		Stop:   filter.StopSequences(instruct, names),
		BuildPrompt: func(maxTokens int) (string, error) {
			if maxTokens <= 0 && !bypass {
				logger.Warn().Int("budget", maxTokens).Msg("prompt budget exhausted; sending system block only")
			}
			return c.prompts.BuildTextCompletionContext(ctx, prompt.Request{
				ChatID:        chatID,
				TargetEntryID: entryID,
				Instruct:      instruct,
				Bypass:        bypass,
			}, maxTokens)
		},
	})
	if genErr == nil && printContext {
		logger.Info().Interface("prompt", payload["prompt"]).Msg("Completion Context")
	}

	var raw strings.Builder
	var full string
	if genErr == nil {
		full, genErr = c.backend.Completion(genCtx, payload, func(inc string) {
			streamChunksTotal.WithLabelValues(kind).Inc()
			c.buf.update(gen, func(cur string) string {
				raw.WriteString(inc)
				return replacer.Apply(cur + inc)
			})
		})
	}
	c.buf.seal(gen)

	c.mu.Lock()
	c.state = StateFinalizing
	c.abort = nil
	aborted := c.aborted || ctx.Err() != nil
	c.mu.Unlock()

	text := full
	switch {
	case genErr == nil && !aborted:
		res.Outcome = OutcomeCompleted
	case aborted:
		res.Outcome = OutcomeAborted
		if text == "" {
			text = raw.String()
		}
		genErr = nil
	default:
		res.Outcome = OutcomeFailed
		text = raw.String()
		logger.Error().Err(genErr).Msg("Failed to generate")
		c.notifier.Log(fmt.Sprintf("Failed to generate: %v", genErr), true)
		genErr = backendError{op: "completion", err: genErr}
	}
	if genErr == nil && text == "" {
		text = raw.String()
	}

	final := replacer.Apply(c.buf.RegenCache() + text)
	c.buf.finish(gen, final)
	finalized = true
	res.Text = final

	pctx, pcancel := context.WithTimeout(context.WithoutCancel(ctx), c.finalizeTimeout)
	defer pcancel()
	if perr := c.chats.UpdateEntryText(pctx, entryID, final); perr != nil {
		logger.Error().Err(perr).Msg("failed to save generated text")
		c.notifier.Log("Failed to save message", true)
		if genErr == nil {
			genErr = perr
		}
	}
	if printContext {
		logger.Info().Str("output", final).Msg("Completion Output")
	}
	if res.Outcome != OutcomeFailed {
		c.saveKV(pctx, logger)
	}

	logger.Info().
		Str("outcome", string(res.Outcome)).
		Int("chars", len(final)).
		Dur("elapsed", time.Since(start)).
		Msg("generation finished")
	c.publish(outcomeEvent[res.Outcome], chatID, entryID, nil)
	return res, genErr
}

var outcomeEvent = map[Outcome]string{
	OutcomeCompleted: "generation_done",
	OutcomeAborted:   "generation_aborted",
	OutcomeFailed:    "generation_failed",
}

// ensureModel makes sure a local backend has a model context and, when
// enabled, restores the saved KV cache once per process. Remote backends
// need neither.
func (c *Controller) ensureModel(ctx context.Context, preset sampler.Preset) error {
	loader, ok := c.backend.(ModelLoader)
	if !ok {
		return nil
	}

	var desc types.Model
	haveDesc := false
	switch err := c.settings.JSON(ctx, store.KeyLocalModel, &desc); {
	case err == nil:
		haveDesc = true
	case store.IsNotFound(err):
		if !loader.Loaded() {
			c.notifier.Log("No Auto-Load Model Set", true)
		}
	default:
		if !loader.Loaded() {
			c.notifier.Log("Failed to Auto-Load Model", true)
		}
	}

	var loadErr error
	if haveDesc && !loader.Loaded() && c.flag(ctx, store.KeyAutoLoadLocal) {
		c.setState(StateAutoLoading)
		c.notifier.Log("Auto-loading: "+desc.Name, true)
		c.publish("autoload_start", 0, 0, map[string]any{"model": desc.ID})
		if loadErr = loader.Load(ctx, desc, preset); loadErr != nil {
			c.notifier.Log(fmt.Sprintf("Failed to load model: %v", loadErr), true)
		} else {
			c.publish("autoload_done", 0, 0, map[string]any{"model": desc.ID})
		}
	}
	if !loader.Loaded() {
		c.notifier.Log("No Model Loaded", true)
		if loadErr != nil {
			return backendError{op: "load model", err: loadErr}
		}
		return ErrConfiguration("no model loaded")
	}

	if c.flag(ctx, store.KeySaveLocalKV) && !c.flag(ctx, store.KeyLocalSessionLoaded) {
		c.setState(StateAwaitingModel)
		if err := loader.LoadKV(ctx); err != nil {
			c.notifier.Log(fmt.Sprintf("Failed to load KV cache: %v", err), true)
			return backendError{op: "load kv", err: err}
		}
		if err := c.settings.SetBool(ctx, store.KeyLocalSessionLoaded, true); err != nil {
			c.logger.Warn().Err(err).Msg("failed to record kv restore")
		}
		c.notifier.Debug("KV cache restored")
		c.publish("kv_restored", 0, 0, nil)
	}
	return nil
}

func (c *Controller) saveKV(ctx context.Context, logger zerolog.Logger) {
	loader, ok := c.backend.(ModelLoader)
	if !ok || !loader.Loaded() || !c.flag(ctx, store.KeySaveLocalKV) {
		return
	}
	if err := loader.SaveKV(ctx); err != nil {
		logger.Warn().Err(err).Msg("failed to save kv cache")
	}
}

// finish returns the controller to idle.
func (c *Controller) finish(err error) {
	c.mu.Lock()
	c.state = StateIdle
	c.nowGenerating = false
	c.abort = nil
	c.aborted = false
	c.lastErr = ""
	if err != nil {
		c.lastErr = err.Error()
	}
	c.mu.Unlock()
	c.buf.SetRegenCache("")
	generatingGauge.Set(0)
}

// loadPreset returns the stored preset, or the default when none is stored
// or it cannot be decoded.
func (c *Controller) loadPreset(ctx context.Context) sampler.Preset {
	var p sampler.Preset
	switch err := c.settings.JSON(ctx, store.KeyLocalPreset, &p); {
	case err == nil:
		return p
	case !store.IsNotFound(err):
		c.notifier.Log("Failed to read preset, using defaults", true)
	}
	return sampler.DefaultPreset()
}

func (c *Controller) loadInstruct(ctx context.Context) prompt.Instruct {
	var in prompt.Instruct
	switch err := c.settings.JSON(ctx, store.KeyInstruct, &in); {
	case err == nil:
		return in
	case !store.IsNotFound(err):
		c.notifier.Log("Failed to read instruct format, using defaults", true)
	}
	return prompt.DefaultInstruct()
}

func (c *Controller) flag(ctx context.Context, key string) bool {
	v, err := c.settings.Bool(ctx, key)
	if err != nil {
		c.logger.Debug().Err(err).Str("key", key).Msg("setting read failed")
		return false
	}
	return v
}

func (c *Controller) publish(name string, chatID, entryID int64, fields map[string]any) {
	c.publisher.Publish(Event{Name: name, ChatID: chatID, EntryID: entryID, Fields: fields})
}
