package httpapi

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"chatd/internal/manager"
	"chatd/internal/registry"
	"chatd/internal/sampler"
	"chatd/pkg/types"
)

// Controller is the generation side the HTTP API drives.
type Controller interface {
	Status() types.StatusResponse
	Ready() bool
	Send(ctx context.Context, chatID int64, message string) (*manager.Generation, error)
	Regenerate(ctx context.Context, chatID int64, keep string) (*manager.Generation, error)
	Abort(ctx context.Context) error
	LoadModel(ctx context.Context, m types.Model) error
	UnloadModel(ctx context.Context) error
	Preset(ctx context.Context) sampler.Preset
	SetPreset(ctx context.Context, p sampler.Preset) error
	Buffer() *manager.Buffer
	Notifier() *manager.Notifier
}

// ChatStore is the chat storage the API reads and creates chats in.
type ChatStore interface {
	CreateChat(ctx context.Context, characterName, userName string) (types.Chat, error)
	Chat(ctx context.Context, chatID int64) (types.Chat, error)
	ListChats(ctx context.Context) ([]types.Chat, error)
	Entries(ctx context.Context, chatID int64) ([]types.ChatEntry, error)
}

// SettingsStore exposes raw setting values.
type SettingsStore interface {
	String(ctx context.Context, key string) (string, error)
	SetString(ctx context.Context, key, value string) error
}

// Service bundles what NewMux serves.
type Service struct {
	Controller Controller
	Chats      ChatStore
	Settings   SettingsStore
	// Models lists loadable models. It runs per request so new files show up.
	Models func() ([]types.Model, error)
}

func NewMux(svc Service) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(MetricsMiddleware)
	r.Use(accessLog)
	if corsOptions.enabled {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins: corsOptions.origins,
			AllowedMethods: corsOptions.methods,
			AllowedHeaders: corsOptions.headers,
			MaxAge:         300,
		}))
	}
	// text/event-stream is not in the compressible set, so SSE passes through.
	r.Use(middleware.Compress(5))
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("X-Content-Type-Options", "nosniff")
			next.ServeHTTP(w, r)
		})
	})

	h := &handlers{svc: svc}
	r.Get("/models", h.listModels)
	r.Get("/status", h.status)
	r.Post("/model/load", h.loadModel)
	r.Post("/model/unload", h.unloadModel)

	r.Get("/chats", h.listChats)
	r.Post("/chats", h.createChat)
	r.Get("/chats/{id}/entries", h.entries)
	r.Post("/chats/{id}/send", h.send)
	r.Post("/chats/{id}/regenerate", h.regenerate)

	r.Post("/generation/abort", h.abort)
	r.Get("/generation/stream", h.stream)

	r.Get("/preset", h.getPreset)
	r.Put("/preset", h.putPreset)
	r.Get("/settings/{key}", h.getSetting)
	r.Put("/settings/{key}", h.putSetting)
	r.Get("/notices", h.notices)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})
	r.Get("/readyz", func(w http.ResponseWriter, r *http.Request) {
		if svc.Controller.Ready() {
			w.WriteHeader(http.StatusOK)
			w.Write([]byte("ready"))
			return
		}
		w.WriteHeader(http.StatusServiceUnavailable)
		w.Write([]byte("unavailable"))
	})
	r.Get("/metrics", promhttp.Handler().ServeHTTP)
	MountSwagger(r)
	return r
}

type handlers struct {
	svc Service
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// decodeJSON reads a bounded JSON body into dst. An empty body leaves dst
// untouched when allowEmpty is set.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any, allowEmpty bool) bool {
	ct := r.Header.Get("Content-Type")
	if r.ContentLength == 0 && allowEmpty {
		return true
	}
	if ct == "" || !strings.HasPrefix(strings.ToLower(ct), "application/json") {
		writeJSONError(w, http.StatusUnsupportedMediaType, "Content-Type must be application/json")
		return false
	}
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid JSON body")
		return false
	}
	return true
}

func chatIDParam(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		writeJSONError(w, http.StatusBadRequest, "invalid chat id")
		return 0, false
	}
	return id, true
}

// listModels godoc
// @Summary  List loadable models
// @Produce  json
// @Success  200 {object} types.ModelsResponse
// @Router   /models [get]
func (h *handlers) listModels(w http.ResponseWriter, r *http.Request) {
	models, err := h.models()
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, types.ModelsResponse{Models: models})
}

func (h *handlers) models() ([]types.Model, error) {
	if h.svc.Models == nil {
		return []types.Model{}, nil
	}
	models, err := h.svc.Models()
	if models == nil {
		models = []types.Model{}
	}
	return models, err
}

// status godoc
// @Summary  Generation status
// @Produce  json
// @Success  200 {object} types.StatusResponse
// @Router   /status [get]
func (h *handlers) status(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.svc.Controller.Status())
}

// loadModel godoc
// @Summary  Load a model into the local engine
// @Accept   json
// @Param    body body types.LoadModelRequest true "model id"
// @Success  204
// @Failure  404 {object} types.ErrorResponse
// @Failure  409 {object} types.ErrorResponse
// @Router   /model/load [post]
func (h *handlers) loadModel(w http.ResponseWriter, r *http.Request) {
	var req types.LoadModelRequest
	if !decodeJSON(w, r, &req, false) {
		return
	}
	if strings.TrimSpace(req.ID) == "" {
		writeJSONError(w, http.StatusBadRequest, "id is required")
		return
	}
	models, err := h.models()
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	m, ok := registry.Find(models, req.ID)
	if !ok {
		writeServiceError(w, r, notFound("model "+req.ID+" not found"))
		return
	}
	ctx, cancel := joinContexts(serverBaseCtx, r.Context())
	defer cancel()
	if err := h.svc.Controller.LoadModel(ctx, m); err != nil {
		writeServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *handlers) unloadModel(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.Controller.UnloadModel(r.Context()); err != nil {
		writeServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *handlers) listChats(w http.ResponseWriter, r *http.Request) {
	chats, err := h.svc.Chats.ListChats(r.Context())
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	if chats == nil {
		chats = []types.Chat{}
	}
	writeJSON(w, http.StatusOK, types.ChatsResponse{Chats: chats})
}

func (h *handlers) createChat(w http.ResponseWriter, r *http.Request) {
	var req types.CreateChatRequest
	if !decodeJSON(w, r, &req, false) {
		return
	}
	if strings.TrimSpace(req.CharacterName) == "" {
		writeJSONError(w, http.StatusBadRequest, "character_name is required")
		return
	}
	if req.UserName == "" {
		req.UserName = "User"
	}
	chat, err := h.svc.Chats.CreateChat(r.Context(), req.CharacterName, req.UserName)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, chat)
}

func (h *handlers) entries(w http.ResponseWriter, r *http.Request) {
	id, ok := chatIDParam(w, r)
	if !ok {
		return
	}
	if _, err := h.svc.Chats.Chat(r.Context(), id); err != nil {
		writeServiceError(w, r, err)
		return
	}
	entries, err := h.svc.Chats.Entries(r.Context(), id)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	if entries == nil {
		entries = []types.ChatEntry{}
	}
	writeJSON(w, http.StatusOK, types.EntriesResponse{Entries: entries})
}

// send godoc
// @Summary  Send a message and generate the reply
// @Description Returns 202 with the entry being generated; follow
// @Description /generation/stream for text. With ?wait=1 the response is
// @Description sent once the generation has finished.
// @Accept   json
// @Produce  json
// @Param    id   path int true "chat id"
// @Param    body body types.SendRequest true "message"
// @Success  200 {object} types.GenerationResponse
// @Success  202 {object} types.GenerationResponse
// @Failure  409 {object} types.ErrorResponse
// @Router   /chats/{id}/send [post]
func (h *handlers) send(w http.ResponseWriter, r *http.Request) {
	id, ok := chatIDParam(w, r)
	if !ok {
		return
	}
	var req types.SendRequest
	if !decodeJSON(w, r, &req, false) {
		return
	}
	h.generate(w, r, func(ctx context.Context) (*manager.Generation, error) {
		return h.svc.Controller.Send(ctx, id, req.Message)
	})
}

func (h *handlers) regenerate(w http.ResponseWriter, r *http.Request) {
	id, ok := chatIDParam(w, r)
	if !ok {
		return
	}
	var req types.RegenerateRequest
	if !decodeJSON(w, r, &req, true) {
		return
	}
	h.generate(w, r, func(ctx context.Context) (*manager.Generation, error) {
		return h.svc.Controller.Regenerate(ctx, id, req.Keep)
	})
}

// generate starts a generation under the server context. A waiting client
// that disconnects aborts it.
func (h *handlers) generate(w http.ResponseWriter, r *http.Request, start func(context.Context) (*manager.Generation, error)) {
	wait := r.URL.Query().Get("wait") == "1"
	ctx := serverBaseCtx
	if wait {
		var cancel context.CancelFunc
		ctx, cancel = joinContexts(serverBaseCtx, r.Context())
		defer cancel()
	}
	g, err := start(ctx)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	logFor(r).Info().Int64("chat_id", g.ChatID).Int64("entry_id", g.EntryID).Bool("wait", wait).Msg("generation accepted")
	if !wait {
		writeJSON(w, http.StatusAccepted, types.GenerationResponse{EntryID: g.EntryID})
		return
	}
	res, err := g.Wait(context.WithoutCancel(ctx))
	if err != nil {
		if r.Context().Err() != nil {
			return
		}
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, types.GenerationResponse{
		EntryID: res.EntryID,
		Text:    res.Text,
		Aborted: res.Outcome == manager.OutcomeAborted,
	})
}

func (h *handlers) abort(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.Controller.Abort(r.Context()); err != nil {
		writeServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *handlers) notices(w http.ResponseWriter, r *http.Request) {
	n := h.svc.Controller.Notifier().Notices()
	if n == nil {
		n = []types.Notice{}
	}
	writeJSON(w, http.StatusOK, types.NoticesResponse{Notices: n})
}
