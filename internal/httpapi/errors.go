package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/oulianov/audioghost-ai/internal/failure"
	"github.com/oulianov/audioghost-ai/internal/jobs"
	"github.com/oulianov/audioghost-ai/internal/store"
	"github.com/oulianov/audioghost-ai/pkg/types"
)

// HTTPError allows services to provide an HTTP status code for an error.
type HTTPError interface {
	error
	StatusCode() int
}

// writeJSONError writes a consistent JSON error payload.
func writeJSONError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, types.ErrorResponse{Error: msg, Code: status})
}

// writeError maps err to a status code and writes it.
func writeError(w http.ResponseWriter, err error) int {
	status := statusForError(err)
	resp := types.ErrorResponse{Error: err.Error(), Code: status}
	if k := failure.KindOf(err); k != "" && k != failure.KindInternal {
		resp.Kind = string(k)
	}
	writeJSON(w, status, resp)
	return status
}

func statusForError(err error) int {
	switch {
	case errors.Is(err, store.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, jobs.ErrQueueFull), errors.Is(err, jobs.ErrStopped):
		return http.StatusServiceUnavailable
	case errors.Is(err, jobs.ErrAlreadySettled):
		return http.StatusConflict
	}
	var he HTTPError
	if errors.As(err, &he) {
		return he.StatusCode()
	}
	switch failure.KindOf(err) {
	case failure.KindConfiguration:
		return http.StatusPreconditionFailed
	case failure.KindInput:
		return http.StatusUnprocessableEntity
	case failure.KindResourceLoad:
		return http.StatusServiceUnavailable
	}
	return http.StatusInternalServerError
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
