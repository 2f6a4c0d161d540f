package httpapi

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"chatd/internal/manager"
	"chatd/pkg/types"
)

func TestModelsHandler(t *testing.T) {
	env := newTestEnv(t, loadedEngine())
	w := do(env.h, http.MethodGet, "/models", "", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status=%d", w.Code)
	}
	if ct := w.Header().Get("Content-Type"); !strings.Contains(ct, "application/json") {
		t.Fatalf("content-type=%s", ct)
	}
	var body types.ModelsResponse
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("json: %v", err)
	}
	if len(body.Models) != 1 || body.Models[0].Quant != "Q4_K_M" {
		t.Fatalf("unexpected models: %+v", body.Models)
	}
}

func TestStatusHandler(t *testing.T) {
	env := newTestEnv(t, loadedEngine())
	w := do(env.h, http.MethodGet, "/status", "", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status=%d", w.Code)
	}
	var body types.StatusResponse
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("json: %v", err)
	}
	if body.State != "idle" || body.Backend != "local" || body.LoadedModel != "tiny.gguf" {
		t.Fatalf("unexpected body: %+v", body)
	}
}

func TestHealthAndReady(t *testing.T) {
	b, err := manager.NewBackend(manager.BackendConfig{Kind: manager.KindOpenAI, BaseURL: "http://127.0.0.1:1"})
	if err != nil {
		t.Fatal(err)
	}
	env := newTestEnvWithBackend(t, nil, b)
	if w := do(env.h, http.MethodGet, "/healthz", "", ""); w.Code != http.StatusOK || w.Body.String() != "ok" {
		t.Fatalf("healthz: %d %q", w.Code, w.Body.String())
	}
	if w := do(env.h, http.MethodGet, "/readyz", "", ""); w.Code != http.StatusOK {
		t.Fatalf("readyz: %d", w.Code)
	}
}

func TestChats(t *testing.T) {
	env := newTestEnv(t, loadedEngine())
	w := do(env.h, http.MethodPost, "/chats", "application/json", `{"character_name":"Zed"}`)
	if w.Code != http.StatusCreated {
		t.Fatalf("create: %d %s", w.Code, w.Body.String())
	}
	var chat types.Chat
	_ = json.Unmarshal(w.Body.Bytes(), &chat)
	if chat.CharacterName != "Zed" || chat.UserName != "User" {
		t.Fatalf("unexpected chat: %+v", chat)
	}

	w = do(env.h, http.MethodGet, "/chats", "", "")
	var list types.ChatsResponse
	_ = json.Unmarshal(w.Body.Bytes(), &list)
	if len(list.Chats) != 2 {
		t.Fatalf("expected 2 chats, got %d", len(list.Chats))
	}

	if w := do(env.h, http.MethodPost, "/chats", "application/json", `{}`); w.Code != http.StatusBadRequest {
		t.Fatalf("missing character: %d", w.Code)
	}
	if w := do(env.h, http.MethodGet, "/chats/999/entries", "", ""); w.Code != http.StatusNotFound {
		t.Fatalf("unknown chat: %d", w.Code)
	}
	if w := do(env.h, http.MethodGet, "/chats/abc/entries", "", ""); w.Code != http.StatusBadRequest {
		t.Fatalf("bad id: %d", w.Code)
	}
}

func TestSend_Wait(t *testing.T) {
	env := newTestEnv(t, loadedEngine("Hel", "lo wor", "ld"))
	path := fmt.Sprintf("/chats/%d/send?wait=1", env.chat.ID)
	w := do(env.h, http.MethodPost, path, "application/json", `{"message":"hi"}`)
	if w.Code != http.StatusOK {
		t.Fatalf("send: %d %s", w.Code, w.Body.String())
	}
	var res types.GenerationResponse
	if err := json.Unmarshal(w.Body.Bytes(), &res); err != nil {
		t.Fatal(err)
	}
	if res.Text != "Hello world" || res.EntryID == 0 || res.Aborted {
		t.Fatalf("unexpected response: %+v", res)
	}

	w = do(env.h, http.MethodGet, fmt.Sprintf("/chats/%d/entries", env.chat.ID), "", "")
	var entries types.EntriesResponse
	_ = json.Unmarshal(w.Body.Bytes(), &entries)
	if len(entries.Entries) != 2 || entries.Entries[1].Text != "Hello world" {
		t.Fatalf("unexpected entries: %+v", entries.Entries)
	}
}

func TestSend_AsyncThenRegenerate(t *testing.T) {
	env := newTestEnv(t, loadedEngine("ok"))
	w := do(env.h, http.MethodPost, fmt.Sprintf("/chats/%d/send", env.chat.ID), "application/json", `{"message":"hi"}`)
	if w.Code != http.StatusAccepted {
		t.Fatalf("send: %d %s", w.Code, w.Body.String())
	}
	waitIdle(t, env.ctrl)

	w = do(env.h, http.MethodPost, fmt.Sprintf("/chats/%d/regenerate?wait=1", env.chat.ID), "application/json", `{"keep":"well, "}`)
	if w.Code != http.StatusOK {
		t.Fatalf("regenerate: %d %s", w.Code, w.Body.String())
	}
	var res types.GenerationResponse
	_ = json.Unmarshal(w.Body.Bytes(), &res)
	if res.Text != "well, ok" {
		t.Fatalf("unexpected text %q", res.Text)
	}
	// regenerate without a body
	if w := do(env.h, http.MethodPost, fmt.Sprintf("/chats/%d/regenerate?wait=1", env.chat.ID), "", ""); w.Code != http.StatusOK {
		t.Fatalf("regenerate without body: %d", w.Code)
	}
}

func TestSend_BusyAndAbort(t *testing.T) {
	eng := loadedEngine("partial")
	eng.block = make(chan struct{})
	eng.started = make(chan struct{})
	env := newTestEnv(t, eng)

	path := fmt.Sprintf("/chats/%d/send", env.chat.ID)
	if w := do(env.h, http.MethodPost, path, "application/json", `{"message":"hi"}`); w.Code != http.StatusAccepted {
		t.Fatalf("send: %d", w.Code)
	}
	select {
	case <-eng.started:
	case <-time.After(2 * time.Second):
		t.Fatalf("generation did not start")
	}
	w := do(env.h, http.MethodPost, path, "application/json", `{"message":"again"}`)
	if w.Code != http.StatusConflict {
		t.Fatalf("expected 409, got %d", w.Code)
	}
	var e types.ErrorResponse
	_ = json.Unmarshal(w.Body.Bytes(), &e)
	if e.Code != http.StatusConflict || e.Error == "" {
		t.Fatalf("unexpected error body: %+v", e)
	}

	if w := do(env.h, http.MethodPost, "/generation/abort", "", ""); w.Code != http.StatusNoContent {
		t.Fatalf("abort: %d", w.Code)
	}
	waitIdle(t, env.ctrl)
	if st := env.ctrl.Status(); st.Buffer != "partial" || st.AbortsTotal != 1 {
		t.Fatalf("unexpected status after abort: %+v", st)
	}
	// abort while idle is a no-op
	if w := do(env.h, http.MethodPost, "/generation/abort", "", ""); w.Code != http.StatusNoContent {
		t.Fatalf("idle abort: %d", w.Code)
	}
}

func TestSend_NoModel(t *testing.T) {
	env := newTestEnv(t, &fakeEngine{})
	w := do(env.h, http.MethodPost, fmt.Sprintf("/chats/%d/send?wait=1", env.chat.ID), "application/json", `{"message":"hi"}`)
	if w.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422, got %d %s", w.Code, w.Body.String())
	}
	w = do(env.h, http.MethodGet, "/notices", "", "")
	var n types.NoticesResponse
	_ = json.Unmarshal(w.Body.Bytes(), &n)
	found := false
	for _, x := range n.Notices {
		if x.Message == "No Model Loaded" {
			found = true
		}
	}
	if !found {
		t.Fatalf("missing notice: %+v", n.Notices)
	}
}

func TestSend_BadRequests(t *testing.T) {
	env := newTestEnv(t, loadedEngine("x"))
	path := fmt.Sprintf("/chats/%d/send", env.chat.ID)
	if w := do(env.h, http.MethodPost, path, "text/plain", `{"message":"hi"}`); w.Code != http.StatusUnsupportedMediaType {
		t.Fatalf("content type: %d", w.Code)
	}
	if w := do(env.h, http.MethodPost, path, "application/json", `{"message":`); w.Code != http.StatusBadRequest {
		t.Fatalf("invalid json: %d", w.Code)
	}
	if w := do(env.h, http.MethodPost, "/chats/999/send", "application/json", `{"message":"hi"}`); w.Code != http.StatusNotFound {
		t.Fatalf("unknown chat: %d", w.Code)
	}
}

func TestLoadModel(t *testing.T) {
	env := newTestEnv(t, &fakeEngine{})
	if w := do(env.h, http.MethodPost, "/model/load", "application/json", `{"id":"missing.gguf"}`); w.Code != http.StatusNotFound {
		t.Fatalf("unknown model: %d", w.Code)
	}
	if w := do(env.h, http.MethodPost, "/model/load", "application/json", `{}`); w.Code != http.StatusBadRequest {
		t.Fatalf("missing id: %d", w.Code)
	}
	if w := do(env.h, http.MethodPost, "/model/load", "application/json", `{"id":"tiny.gguf"}`); w.Code != http.StatusNoContent {
		t.Fatalf("load: %d %s", w.Code, w.Body.String())
	}
	if got := env.ctrl.Status().LoadedModel; got != "tiny.gguf" {
		t.Fatalf("loaded model %q", got)
	}
	w := do(env.h, http.MethodGet, "/settings/local_model", "", "")
	var sv types.SettingValue
	_ = json.Unmarshal(w.Body.Bytes(), &sv)
	if m, _ := sv.Value.(map[string]any); m["id"] != "tiny.gguf" {
		t.Fatalf("descriptor not stored: %+v", sv)
	}
	if w := do(env.h, http.MethodPost, "/model/unload", "", ""); w.Code != http.StatusNoContent {
		t.Fatalf("unload: %d", w.Code)
	}
}

func TestStatusFor(t *testing.T) {
	cases := []struct {
		err  error
		want int
	}{
		{manager.ErrConfiguration("x"), http.StatusUnprocessableEntity},
		{manager.ErrDependencyUnavailable("x"), http.StatusServiceUnavailable},
		{notFound("x"), http.StatusNotFound},
		{fmt.Errorf("wrapped: %w", notFound("x")), http.StatusNotFound},
		{context.Canceled, http.StatusInternalServerError},
	}
	for _, c := range cases {
		if got := statusFor(c.err); got != c.want {
			t.Fatalf("%v: got %d want %d", c.err, got, c.want)
		}
	}
}

func TestMetricsEndpoint(t *testing.T) {
	env := newTestEnv(t, loadedEngine())
	_ = do(env.h, http.MethodGet, "/status", "", "")
	w := do(env.h, http.MethodGet, "/metrics", "", "")
	if w.Code != http.StatusOK || !strings.Contains(w.Body.String(), "chatd_http_requests_total") {
		t.Fatalf("metrics missing request counter")
	}
	if !strings.Contains(w.Body.String(), `path="/status"`) {
		t.Fatalf("expected route pattern label")
	}
}

func TestCORS(t *testing.T) {
	SetCORSOptions(true, []string{"http://ui.local"}, nil, nil)
	t.Cleanup(func() { SetCORSOptions(false, nil, nil, nil) })
	env := newTestEnv(t, loadedEngine())

	req := httptest.NewRequest(http.MethodOptions, "/status", nil)
	req.Header.Set("Origin", "http://ui.local")
	req.Header.Set("Access-Control-Request-Method", "GET")
	w := httptest.NewRecorder()
	env.h.ServeHTTP(w, req)
	if got := w.Header().Get("Access-Control-Allow-Origin"); got != "http://ui.local" {
		t.Fatalf("allow-origin=%q", got)
	}
}

func TestJoinContexts(t *testing.T) {
	a, cancelA := context.WithCancel(context.Background())
	ctx, cancel := joinContexts(a, context.Background())
	defer cancel()
	cancelA()
	select {
	case <-ctx.Done():
	case <-time.After(time.Second):
		t.Fatalf("joined context not canceled")
	}
}
