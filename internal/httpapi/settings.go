package httpapi

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"

	"github.com/go-chi/chi/v5"
	toml "github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"

	"chatd/internal/prompt"
	"chatd/internal/sampler"
	"chatd/internal/store"
	"chatd/pkg/types"
)

type settingKind int

const (
	settingBool settingKind = iota
	settingInstruct
	settingModel
)

type settingDef struct {
	kind     settingKind
	writable bool
}

// settingDefs lists the settings exposed over HTTP. The model descriptor
// is written by /model/load and the session flag by the controller.
var settingDefs = map[string]settingDef{
	store.KeyAutoLoadLocal:       {kind: settingBool, writable: true},
	store.KeySaveLocalKV:         {kind: settingBool, writable: true},
	store.KeyPrintContext:        {kind: settingBool, writable: true},
	store.KeyBypassContextLength: {kind: settingBool, writable: true},
	store.KeyLocalSessionLoaded:  {kind: settingBool},
	store.KeyInstruct:            {kind: settingInstruct, writable: true},
	store.KeyLocalModel:          {kind: settingModel},
}

func (h *handlers) getSetting(w http.ResponseWriter, r *http.Request) {
	key := chi.URLParam(r, "key")
	def, ok := settingDefs[key]
	if !ok {
		writeJSONError(w, http.StatusNotFound, "unknown setting "+key)
		return
	}
	raw, err := h.svc.Settings.String(r.Context(), key)
	switch {
	case store.IsNotFound(err) && def.kind == settingBool:
		writeJSON(w, http.StatusOK, types.SettingValue{Key: key, Value: false})
		return
	case store.IsNotFound(err) && def.kind == settingInstruct:
		writeJSON(w, http.StatusOK, types.SettingValue{Key: key, Value: prompt.DefaultInstruct()})
		return
	case err != nil:
		writeServiceError(w, r, err)
		return
	}
	var v any
	if err := json.Unmarshal([]byte(raw), &v); err != nil {
		v = raw
	}
	writeJSON(w, http.StatusOK, types.SettingValue{Key: key, Value: v})
}

func (h *handlers) putSetting(w http.ResponseWriter, r *http.Request) {
	key := chi.URLParam(r, "key")
	def, ok := settingDefs[key]
	if !ok {
		writeJSONError(w, http.StatusNotFound, "unknown setting "+key)
		return
	}
	if !def.writable {
		writeJSONError(w, http.StatusBadRequest, "setting "+key+" is read-only")
		return
	}
	var req struct {
		Value json.RawMessage `json:"value"`
	}
	if !decodeJSON(w, r, &req, false) {
		return
	}
	val, err := normaliseSetting(def.kind, req.Value)
	if err != nil {
		writeJSONError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := h.svc.Settings.SetString(r.Context(), key, val); err != nil {
		writeServiceError(w, r, err)
		return
	}
	var out any
	_ = json.Unmarshal([]byte(val), &out)
	writeJSON(w, http.StatusOK, types.SettingValue{Key: key, Value: out})
}

// normaliseSetting validates raw against kind and returns the stored form.
func normaliseSetting(kind settingKind, raw json.RawMessage) (string, error) {
	switch kind {
	case settingBool:
		var b bool
		if err := json.Unmarshal(raw, &b); err != nil {
			return "", errors.New("value must be a boolean")
		}
		return fmt.Sprint(b), nil
	case settingInstruct:
		var in prompt.Instruct
		if err := json.Unmarshal(raw, &in); err != nil {
			return "", errors.New("value must be an instruct format object")
		}
		b, err := json.Marshal(in)
		return string(b), err
	}
	return "", errors.New("setting is not writable")
}

// getPreset godoc
// @Summary  Current sampler preset
// @Produce  json
// @Success  200 {object} sampler.Preset
// @Router   /preset [get]
func (h *handlers) getPreset(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.svc.Controller.Preset(r.Context()))
}

// putPreset accepts a preset as JSON, YAML or TOML.
func (h *handlers) putPreset(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	b, err := io.ReadAll(r.Body)
	if err != nil {
		var mbe *http.MaxBytesError
		if errors.As(err, &mbe) {
			writeJSONError(w, http.StatusRequestEntityTooLarge, "preset too large")
			return
		}
		writeJSONError(w, http.StatusBadRequest, "failed to read body")
		return
	}
	p, status, err := decodePreset(r.Header.Get("Content-Type"), b)
	if err != nil {
		writeJSONError(w, status, err.Error())
		return
	}
	if p.ContextLength < 0 || p.Threads < 0 {
		writeJSONError(w, http.StatusBadRequest, "context_length and threads must not be negative")
		return
	}
	for k := range p.Samplers {
		if _, ok := sampler.ParseID(k); !ok {
			writeJSONError(w, http.StatusBadRequest, "unknown sampler "+k)
			return
		}
	}
	if err := h.svc.Controller.SetPreset(r.Context(), p); err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func decodePreset(contentType string, b []byte) (sampler.Preset, int, error) {
	var p sampler.Preset
	mt, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return p, http.StatusUnsupportedMediaType, errors.New("Content-Type is required")
	}
	switch mt {
	case "application/json":
		err = json.Unmarshal(b, &p)
	case "application/yaml", "application/x-yaml", "text/yaml":
		err = yaml.Unmarshal(b, &p)
	case "application/toml":
		err = toml.Unmarshal(b, &p)
	default:
		return p, http.StatusUnsupportedMediaType, fmt.Errorf("unsupported preset format %s", mt)
	}
	if err != nil {
		return p, http.StatusBadRequest, fmt.Errorf("invalid preset: %w", err)
	}
	return p, http.StatusOK, nil
}
