package manager

import (
	"context"
	"fmt"
)

// tryAcquire takes the single generation slot without waiting. A second
// request while one is active is rejected, never queued.
func (c *Controller) tryAcquire() bool {
	select {
	case c.slot <- struct{}{}:
		return true
	default:
		return false
	}
}

func (c *Controller) release() { <-c.slot }

// Generation is a started generation.
type Generation struct {
	ChatID  int64
	EntryID int64
	done    chan struct{}
	res     Result
	err     error
}

// Done is closed once the generation has finalized and released the slot.
func (g *Generation) Done() <-chan struct{} { return g.done }

// Wait blocks until the generation finishes or ctx is done. Returning on
// ctx does not stop the generation; use Controller.Abort for that.
func (g *Generation) Wait(ctx context.Context) (Result, error) {
	select {
	case <-g.done:
		return g.res, g.err
	case <-ctx.Done():
		return Result{}, ctx.Err()
	}
}

// launch runs a generation into entryID in the background. The caller
// must hold the slot; launch releases it when the generation ends.
func (c *Controller) launch(ctx context.Context, chatID, entryID int64) *Generation {
	g := &Generation{ChatID: chatID, EntryID: entryID, done: make(chan struct{})}
	c.mu.Lock()
	c.nowGenerating = true
	c.chatID, c.entryID = chatID, entryID
	c.mu.Unlock()
	generatingGauge.Set(1)
	c.generations.Add(1)

	go func() {
		defer close(g.done)
		defer c.release()
		defer func() {
			if r := recover(); r != nil {
				g.err = fmt.Errorf("generation panic: %v", r)
				c.logger.Error().Int64("chat_id", chatID).Int64("entry_id", entryID).Err(g.err).Msg("generation panicked")
			}
		}()
		g.res, g.err = c.run(ctx, chatID, entryID)
	}()
	return g
}
