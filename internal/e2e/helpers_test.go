package e2e

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"chatd/internal/httpapi"
	"chatd/internal/manager"
	"chatd/internal/prompt"
	"chatd/internal/store"
	"chatd/pkg/types"
)

// fakeLlama emulates the llama.cpp server /completion endpoint. With hold
// set it streams the tokens and then waits for the client to go away.
type fakeLlama struct {
	tokens []string
	hold   bool

	mu       sync.Mutex
	payloads []map[string]any
}

func (f *fakeLlama) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/completion" {
		w.WriteHeader(http.StatusOK)
		return
	}
	var p map[string]any
	_ = json.NewDecoder(r.Body).Decode(&p)
	f.mu.Lock()
	f.payloads = append(f.payloads, p)
	f.mu.Unlock()

	w.Header().Set("Content-Type", "text/event-stream")
	fl, _ := w.(http.Flusher)
	for _, tok := range f.tokens {
		b, _ := json.Marshal(map[string]any{"content": tok, "stop": false})
		fmt.Fprintf(w, "data: %s\n\n", b)
		if fl != nil {
			fl.Flush()
		}
	}
	if f.hold {
		<-r.Context().Done()
		return
	}
	fmt.Fprint(w, "data: {\"content\":\"\",\"stop\":true}\n\n")
}

func (f *fakeLlama) lastPrompt() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.payloads) == 0 {
		return ""
	}
	s, _ := f.payloads[len(f.payloads)-1]["prompt"].(string)
	return s
}

// newServer wires the full stack against a fake llama.cpp server.
func newServer(t *testing.T, llama *fakeLlama) *httptest.Server {
	t.Helper()
	upstream := httptest.NewServer(llama)
	t.Cleanup(upstream.Close)

	st, err := store.Open(context.Background(), filepath.Join(t.TempDir(), "chatd.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	backend, err := manager.NewBackend(manager.BackendConfig{Kind: manager.KindLlamaCpp, BaseURL: upstream.URL})
	if err != nil {
		t.Fatalf("backend: %v", err)
	}
	ctrl := manager.New(manager.Config{
		Backend:  backend,
		Chats:    st,
		Settings: st,
		Prompts:  prompt.NewBuilder(st, nil),
		Logger:   zerolog.Nop(),
	})
	srv := httptest.NewServer(httpapi.NewMux(httpapi.Service{
		Controller: ctrl,
		Chats:      st,
		Settings:   st,
		Models:     func() ([]types.Model, error) { return nil, nil },
	}))
	t.Cleanup(func() {
		srv.Close()
		waitFor(t, func() bool { return !ctrl.Generating() })
		_ = st.Close()
	})
	return srv
}

func httpGet(t *testing.T, url string) (*http.Response, []byte) {
	t.Helper()
	req, err := http.NewRequestWithContext(context.Background(), http.MethodGet, url, nil)
	if err != nil {
		t.Fatalf("new req: %v", err)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("do req: %v", err)
	}
	body, _ := io.ReadAll(resp.Body)
	_ = resp.Body.Close()
	return resp, body
}

func httpPostJSON(t *testing.T, url string, payload []byte) (*http.Response, []byte) {
	t.Helper()
	req, err := http.NewRequestWithContext(context.Background(), http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		t.Fatalf("new req: %v", err)
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("do req: %v", err)
	}
	body, _ := io.ReadAll(resp.Body)
	_ = resp.Body.Close()
	return resp, body
}

func createChat(t *testing.T, srv *httptest.Server) types.Chat {
	t.Helper()
	resp, body := httpPostJSON(t, srv.URL+"/chats", []byte(`{"character_name":"Aria","user_name":"Bo"}`))
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("create chat: %d %s", resp.StatusCode, body)
	}
	var chat types.Chat
	if err := json.Unmarshal(body, &chat); err != nil {
		t.Fatalf("decode chat: %v", err)
	}
	return chat
}

func entries(t *testing.T, srv *httptest.Server, chatID int64) []types.ChatEntry {
	t.Helper()
	_, body := httpGet(t, fmt.Sprintf("%s/chats/%d/entries", srv.URL, chatID))
	var out types.EntriesResponse
	if err := json.Unmarshal(body, &out); err != nil {
		t.Fatalf("decode entries: %v", err)
	}
	return out.Entries
}

func status(t *testing.T, srv *httptest.Server) types.StatusResponse {
	t.Helper()
	_, body := httpGet(t, srv.URL+"/status")
	var st types.StatusResponse
	if err := json.Unmarshal(body, &st); err != nil {
		t.Fatalf("decode status: %v", err)
	}
	return st
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("condition not met before deadline")
		}
		time.Sleep(10 * time.Millisecond)
	}
}
