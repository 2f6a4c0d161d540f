package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"

	"chatd/internal/manager"
	"chatd/internal/store"
	"chatd/pkg/types"
)

// HTTPError allows services to provide an HTTP status code for an error.
type HTTPError interface {
	error
	StatusCode() int
}

// writeJSONError writes a consistent JSON error payload.
func writeJSONError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(types.ErrorResponse{Error: msg, Code: status})
}

// statusFor maps controller and store errors to HTTP status codes.
func statusFor(err error) int {
	var he HTTPError
	switch {
	case manager.IsBusy(err):
		return http.StatusConflict
	case manager.IsConfiguration(err):
		return http.StatusUnprocessableEntity
	case store.IsNotFound(err):
		return http.StatusNotFound
	case manager.IsDependencyUnavailable(err):
		return http.StatusServiceUnavailable
	case errors.As(err, &he):
		return he.StatusCode()
	}
	return http.StatusInternalServerError
}

// writeServiceError writes err with its mapped status and logs it.
func writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	if status == http.StatusConflict {
		IncrementBackpressure("busy")
	}
	logFor(r).Warn().Int("status", status).Err(err).Msg("request failed")
	writeJSONError(w, status, err.Error())
}

type notFound string

func (e notFound) Error() string   { return string(e) }
func (e notFound) StatusCode() int { return http.StatusNotFound }
