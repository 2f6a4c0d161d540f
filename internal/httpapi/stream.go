package httpapi

import (
	"encoding/json"
	"fmt"
	"net/http"

	"chatd/internal/manager"
)

// streamSnapshot is the first event of every stream.
type streamSnapshot struct {
	Text       string `json:"text"`
	Generating bool   `json:"generating"`
}

// stream godoc
// @Summary  Live generation output (Server-Sent Events)
// @Description Emits "snapshot" once, then "stream" with the full filtered
// @Description buffer text on every change and "done" when a generation
// @Description finalizes.
// @Produce  text/event-stream
// @Router   /generation/stream [get]
func (h *handlers) stream(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		writeJSONError(w, http.StatusInternalServerError, "streaming unsupported")
		return
	}
	buf := h.svc.Controller.Buffer()
	sub := buf.Subscribe()
	defer sub.Close()
	sseClients.Inc()
	defer sseClients.Dec()

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)

	if err := writeEvent(w, "snapshot", streamSnapshot{Text: buf.Text(), Generating: buf.Generating()}); err != nil {
		return
	}
	flusher.Flush()

	ctx, cancel := joinContexts(serverBaseCtx, r.Context())
	defer cancel()
	for {
		ev, err := sub.Next(ctx)
		if err != nil {
			return
		}
		if err := writeEvent(w, eventName(ev), ev); err != nil {
			logFor(r).Debug().Err(err).Msg("stream client gone")
			return
		}
		flusher.Flush()
	}
}

func eventName(ev manager.BufferEvent) string {
	if ev.Done {
		return "done"
	}
	return "stream"
}

func writeEvent(w http.ResponseWriter, name string, v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	if _, err = fmt.Fprintf(w, "event: %s\ndata: %s\n\n", name, b); err != nil {
		return err
	}
	sseEventsTotal.WithLabelValues(name).Inc()
	return nil
}
