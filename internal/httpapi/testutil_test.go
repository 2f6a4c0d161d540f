package httpapi

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"chatd/internal/manager"
	"chatd/internal/prompt"
	"chatd/internal/store"
	"chatd/pkg/types"
)

// fakeEngine streams fixed tokens; block holds the completion open.
type fakeEngine struct {
	mu      sync.Mutex
	loaded  bool
	model   types.Model
	tokens  []string
	block   chan struct{}
	started chan struct{}
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
	f.loaded, f.model = true, m
	f.mu.Unlock()
	return nil
}

func (f *fakeEngine) Unload() error {
	f.mu.Lock()
	f.loaded = false
	f.mu.Unlock()
	return nil
}

func (f *fakeEngine) LoadKV(ctx context.Context) error { return nil }
func (f *fakeEngine) SaveKV(ctx context.Context) error { return nil }
func (f *fakeEngine) Stop() error                      { return nil }

func (f *fakeEngine) Completion(ctx context.Context, p manager.Payload, onToken func(string)) (string, error) {
	var sb strings.Builder
	for _, t := range f.tokens {
		sb.WriteString(t)
		onToken(t)
	}
	if f.started != nil {
		close(f.started)
	}
	if f.block != nil {
		select {
		case <-f.block:
		case <-ctx.Done():
			return sb.String(), ctx.Err()
		}
	}
	return sb.String(), nil
}

type testEnv struct {
	h    http.Handler
	ctrl *manager.Controller
	st   *store.Store
	chat types.Chat
	eng  *fakeEngine
}

var testModels = []types.Model{{ID: "tiny.gguf", Name: "tiny", Path: "/m/tiny.gguf", Quant: "Q4_K_M"}}

func newTestEnv(t *testing.T, eng *fakeEngine) testEnv {
	t.Helper()
	return newTestEnvWithBackend(t, eng, manager.NewLocalBackend(eng))
}

func newTestEnvWithBackend(t *testing.T, eng *fakeEngine, b manager.Backend) testEnv {
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
	ctrl := manager.New(manager.Config{
		Backend:  b,
		Chats:    st,
		Settings: st,
		Prompts:  prompt.NewBuilder(st, nil),
		Logger:   zerolog.Nop(),
	})
	h := NewMux(Service{
		Controller: ctrl,
		Chats:      st,
		Settings:   st,
		Models:     func() ([]types.Model, error) { return testModels, nil },
	})
	t.Cleanup(func() { waitIdle(t, ctrl) })
	return testEnv{h: h, ctrl: ctrl, st: st, chat: chat, eng: eng}
}

func loadedEngine(tokens ...string) *fakeEngine {
	return &fakeEngine{loaded: true, model: testModels[0], tokens: tokens}
}

func do(h http.Handler, method, path, contentType, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, bytes.NewBufferString(body))
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func waitIdle(t *testing.T, ctrl *manager.Controller) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for ctrl.Generating() {
		if time.Now().After(deadline) {
			t.Fatalf("controller did not become idle")
		}
		time.Sleep(5 * time.Millisecond)
	}
}
