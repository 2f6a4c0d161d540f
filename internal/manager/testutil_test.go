package manager

import (
	"context"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"chatd/internal/prompt"
	"chatd/internal/store"
	"chatd/pkg/types"
)

// fakeEngine is an in-memory Engine used by controller tests.
type fakeEngine struct {
	mu      sync.Mutex
	loaded  bool
	model   types.Model
	loadErr error
	kvErr   error
	genErr  error
	tokens  []string
	final   string
	// block, when set, holds Completion open after the tokens were sent
	// until it is closed or the context ends.
	block   chan struct{}
	started chan struct{}

	loads, kvLoads, kvSaves, stops, completions int
	lastPayload                                 Payload
}

func newFakeEngine(tokens ...string) *fakeEngine {
	return &fakeEngine{loaded: true, model: types.Model{ID: "tiny.gguf", Name: "tiny"}, tokens: tokens, started: make(chan struct{})}
}

func (f *fakeEngine) Loaded() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.loaded
}

func (f *fakeEngine) Model() (types.Model, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.model, f.loaded
}

func (f *fakeEngine) Load(ctx context.Context, m types.Model, contextLength, threads int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.loads++
	if f.loadErr != nil {
		return f.loadErr
	}
	f.loaded, f.model = true, m
	return nil
}

func (f *fakeEngine) Unload() error {
	f.mu.Lock()
	f.loaded = false
	f.mu.Unlock()
	return nil
}

func (f *fakeEngine) LoadKV(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.kvLoads++
	return f.kvErr
}

func (f *fakeEngine) SaveKV(ctx context.Context) error {
	f.mu.Lock()
	f.kvSaves++
	f.mu.Unlock()
	return nil
}

func (f *fakeEngine) Stop() error {
	f.mu.Lock()
	f.stops++
	f.mu.Unlock()
	return nil
}

func (f *fakeEngine) Completion(ctx context.Context, p Payload, onToken func(string)) (string, error) {
	f.mu.Lock()
	f.completions++
	f.lastPayload = p
	tokens, block, genErr, final := f.tokens, f.block, f.genErr, f.final
	f.mu.Unlock()

	var sb strings.Builder
	for _, t := range tokens {
		sb.WriteString(t)
		onToken(t)
	}
	if f.started != nil {
		select {
		case <-f.started:
		default:
			close(f.started)
		}
	}
	if block != nil {
		select {
		case <-block:
		case <-ctx.Done():
			return sb.String(), ctx.Err()
		}
	}
	if genErr != nil {
		return "", genErr
	}
	if final != "" {
		return final, nil
	}
	return sb.String(), nil
}

func (f *fakeEngine) counts() (loads, kvLoads, kvSaves, stops, completions int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.loads, f.kvLoads, f.kvSaves, f.stops, f.completions
}

type testEnv struct {
	c    *Controller
	st   *store.Store
	chat types.Chat
	pub  *MemoryPublisher
}

// newTestEnv wires a controller to a temp sqlite store and backend.
func newTestEnv(t *testing.T, backend Backend) testEnv {
	t.Helper()
	ctx := context.Background()
	st, err := store.Open(ctx, filepath.Join(t.TempDir(), "chatd.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { _ = st.Close() })
	chat, err := st.CreateChat(ctx, "Aria", "Bo")
	if err != nil {
		t.Fatalf("create chat: %v", err)
	}
	pub := NewMemoryPublisher(0)
	c := New(Config{
		Backend:   backend,
		Chats:     st,
		Settings:  st,
		Prompts:   prompt.NewBuilder(st, nil),
		Publisher: pub,
		Logger:    zerolog.Nop(),
	})
	return testEnv{c: c, st: st, chat: chat, pub: pub}
}

func waitStarted(t *testing.T, f *fakeEngine) {
	t.Helper()
	select {
	case <-f.started:
	case <-time.After(2 * time.Second):
		t.Fatalf("completion did not start")
	}
}

func wait(t *testing.T, g *Generation) (Result, error) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	res, err := g.Wait(ctx)
	if ctx.Err() != nil {
		t.Fatalf("generation did not finish")
	}
	return res, err
}

func hasNotice(c *Controller, msg string) bool {
	for _, n := range c.Notifier().Notices() {
		if n.Message == msg {
			return true
		}
	}
	return false
}

func testLogger() zerolog.Logger { return zerolog.Nop() }
