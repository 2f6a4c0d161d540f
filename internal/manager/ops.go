package manager

import (
	"context"
	"strings"

	"chatd/internal/sampler"
	"chatd/internal/store"
	"chatd/pkg/types"
)

// StartInference generates into the existing entry entryID of chatID and
// returns without waiting. It fails with a busy error when a generation is
// already active.
func (c *Controller) StartInference(ctx context.Context, chatID, entryID int64) (*Generation, error) {
	if !c.tryAcquire() {
		return nil, busyError{}
	}
	return c.launch(ctx, chatID, entryID), nil
}

// Inference is StartInference followed by Wait.
func (c *Controller) Inference(ctx context.Context, chatID, entryID int64) (Result, error) {
	g, err := c.StartInference(ctx, chatID, entryID)
	if err != nil {
		return Result{}, err
	}
	<-g.Done()
	return g.res, g.err
}

// Send appends message as a user entry (blank messages are skipped), adds
// an empty character entry and starts generating into it.
func (c *Controller) Send(ctx context.Context, chatID int64, message string) (*Generation, error) {
	if !c.tryAcquire() {
		return nil, busyError{}
	}
	entryID, err := c.prepareSend(ctx, chatID, message)
	if err != nil {
		c.release()
		return nil, err
	}
	return c.launch(ctx, chatID, entryID), nil
}

func (c *Controller) prepareSend(ctx context.Context, chatID int64, message string) (int64, error) {
	chat, err := c.chats.Chat(ctx, chatID)
	if err != nil {
		return 0, err
	}
	if strings.TrimSpace(message) != "" {
		if _, err := c.chats.AddEntry(ctx, chatID, chat.UserName, true, message); err != nil {
			return 0, err
		}
	}
	return c.chats.AddEntry(ctx, chatID, chat.CharacterName, false, "")
}

// Regenerate generates the last character entry again. keep becomes the
// regeneration cache and prefixes the new output. When the chat ends with
// a user entry a new character entry is added instead.
func (c *Controller) Regenerate(ctx context.Context, chatID int64, keep string) (*Generation, error) {
	if !c.tryAcquire() {
		return nil, busyError{}
	}
	entryID, err := c.prepareRegenerate(ctx, chatID)
	if err != nil {
		c.release()
		return nil, err
	}
	c.buf.SetRegenCache(keep)
	return c.launch(ctx, chatID, entryID), nil
}

func (c *Controller) prepareRegenerate(ctx context.Context, chatID int64) (int64, error) {
	chat, err := c.chats.Chat(ctx, chatID)
	if err != nil {
		return 0, err
	}
	last, err := c.chats.LastEntry(ctx, chatID)
	if err != nil && !store.IsNotFound(err) {
		return 0, err
	}
	if err != nil || last.IsUser {
		return c.chats.AddEntry(ctx, chatID, chat.CharacterName, false, "")
	}
	return last.ID, nil
}

// LoadModel loads m into the local backend and records it as the model to
// auto-load. A newly loaded model has no restored KV cache.
func (c *Controller) LoadModel(ctx context.Context, m types.Model) error {
	loader, ok := c.backend.(ModelLoader)
	if !ok {
		return ErrConfiguration("backend " + string(c.backend.Kind()) + " does not load models")
	}
	if !c.tryAcquire() {
		return busyError{}
	}
	defer c.release()

	if cur, ok := loader.LoadedModel(); ok && cur.Path != m.Path {
		if err := loader.Unload(); err != nil {
			return backendError{op: "unload model", err: err}
		}
	}
	c.notifier.Log("Loading: "+m.Name, true)
	if err := loader.Load(ctx, m, c.loadPreset(ctx)); err != nil {
		c.notifier.Log("Failed to load model: "+err.Error(), true)
		return backendError{op: "load model", err: err}
	}
	if err := c.settings.SetJSON(ctx, store.KeyLocalModel, m); err != nil {
		return err
	}
	if err := c.settings.SetBool(ctx, store.KeyLocalSessionLoaded, false); err != nil {
		return err
	}
	c.publish("model_loaded", 0, 0, map[string]any{"model": m.ID})
	return nil
}

// UnloadModel releases the local model context.
func (c *Controller) UnloadModel(ctx context.Context) error {
	loader, ok := c.backend.(ModelLoader)
	if !ok {
		return ErrConfiguration("backend " + string(c.backend.Kind()) + " does not load models")
	}
	if !c.tryAcquire() {
		return busyError{}
	}
	defer c.release()
	if !loader.Loaded() {
		return nil
	}
	if err := loader.Unload(); err != nil {
		return backendError{op: "unload model", err: err}
	}
	if err := c.settings.SetBool(ctx, store.KeyLocalSessionLoaded, false); err != nil {
		return err
	}
	c.notifier.Log("Model unloaded", true)
	c.publish("model_unloaded", 0, 0, nil)
	return nil
}

// Preset returns the stored sampler preset or the default.
func (c *Controller) Preset(ctx context.Context) sampler.Preset { return c.loadPreset(ctx) }

// SetPreset stores p for the next generation.
func (c *Controller) SetPreset(ctx context.Context, p sampler.Preset) error {
	return c.settings.SetJSON(ctx, store.KeyLocalPreset, p)
}
