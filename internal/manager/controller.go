package manager

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"chatd/internal/filter"
)

// Controller owns the single generation session: it builds payloads,
// streams into the Buffer, finalizes into chat storage and exposes abort.
type Controller struct {
	mu            sync.Mutex
	state         State
	nowGenerating bool
	chatID        int64
	entryID       int64
	lastErr       string
	abort         func(context.Context) error
	aborted       bool

	// slot holds one token while a generation owns the session.
	slot    chan struct{}
	buf     *Buffer
	replace filter.Cache

	backend         Backend
	chats           ChatStore
	settings        Settings
	prompts         PromptBuilder
	notifier        *Notifier
	publisher       EventPublisher
	logger          zerolog.Logger
	finalizeTimeout time.Duration

	startTime   time.Time
	generations atomic.Uint64
	aborts      atomic.Uint64
}

// New constructs a Controller from cfg.
func New(cfg Config) *Controller {
	c := &Controller{
		state:           StateIdle,
		slot:            make(chan struct{}, 1),
		buf:             NewBuffer(),
		backend:         cfg.Backend,
		chats:           cfg.Chats,
		settings:        cfg.Settings,
		prompts:         cfg.Prompts,
		notifier:        cfg.Notifier,
		publisher:       cfg.Publisher,
		logger:          cfg.Logger,
		finalizeTimeout: cfg.FinalizeTimeout,
		startTime:       time.Now(),
	}
	if c.publisher == nil {
		c.publisher = noopPublisher{}
	}
	if c.notifier == nil {
		c.notifier = NewNotifier(cfg.Logger, 0)
	}
	if c.finalizeTimeout <= 0 {
		c.finalizeTimeout = defaultFinalizeTimeout
	}
	return c
}

// Buffer returns the live output buffer for observers.
func (c *Controller) Buffer() *Buffer { return c.buf }

// Notifier returns the controller's log sink.
func (c *Controller) Notifier() *Notifier { return c.notifier }

// Backend returns the active backend.
func (c *Controller) Backend() Backend { return c.backend }

// Generating reports whether a generation currently owns the session.
func (c *Controller) Generating() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.nowGenerating
}

// Snapshot returns a read-only view of the controller state.
func (c *Controller) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return Snapshot{
		State:         c.state,
		NowGenerating: c.nowGenerating,
		ChatID:        c.chatID,
		EntryID:       c.entryID,
		Err:           c.lastErr,
	}
}

// AbortFunction returns the abort handle of the streaming generation, or
// nil when nothing can be aborted.
func (c *Controller) AbortFunction() func(context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != StateStreaming || c.abort == nil {
		return nil
	}
	return c.Abort
}

// Abort asks the streaming generation to stop. The generation still
// finalizes with the text received so far. Abort is a no-op unless a
// generation is streaming.
func (c *Controller) Abort(ctx context.Context) error {
	c.mu.Lock()
	fn := c.abort
	if c.state != StateStreaming || fn == nil {
		c.mu.Unlock()
		return nil
	}
	c.aborted = true
	c.mu.Unlock()
	c.notifier.Log("Aborting Generation", false)
	c.aborts.Add(1)
	return fn(ctx)
}

func (c *Controller) setState(s State) {
	c.mu.Lock()
	c.state = s
	c.mu.Unlock()
}
