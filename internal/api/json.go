package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/starford/prepcost/internal/apperr"
	"github.com/starford/prepcost/internal/session"
)

const maxBody = 10 << 20

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("json encode failed", slog.String("error", err.Error()))
	}
}

type errResponse struct {
	Error string `json:"error" validate:"required"`
}

func errorBody(msg string) errResponse {
	return errResponse{Error: msg}
}

// decode reads a JSON request body into v, answering 400 on failure.
func decode(w http.ResponseWriter, r *http.Request, v any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBody)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid JSON body"))
		return false
	}
	return true
}

// writeError maps domain errors to status codes. op names the failed
// operation in the log.
func writeError(w http.ResponseWriter, op string, err error) {
	var (
		yieldErr *session.YieldError
		saveErr  *session.SaveError
	)
	switch {
	case errors.As(err, &yieldErr):
		status := http.StatusUnprocessableEntity
		if errors.Is(err, apperr.ErrSaveAborted) {
			status = http.StatusConflict
		}
		writeJSON(w, status, YieldErrorResponse{
			Error:   yieldErr.Error(),
			Outcome: yieldErr.Outcome,
			Message: yieldErr.Outcome.Message(),
		})
	case errors.As(err, &saveErr):
		slog.Error(op+" failed",
			slog.String("state", string(saveErr.State)),
			slog.String("error", err.Error()))
		writeJSON(w, http.StatusInternalServerError, errorBody(saveErr.Message()))
	case errors.Is(err, apperr.ErrNotFound):
		writeJSON(w, http.StatusNotFound, errorBody("not found"))
	case errors.Is(err, apperr.ErrForbidden):
		writeJSON(w, http.StatusForbidden, errorBody(err.Error()))
	case errors.Is(err, apperr.ErrNoSession),
		errors.Is(err, apperr.ErrSaveInProgress):
		writeJSON(w, http.StatusConflict, errorBody(err.Error()))
	default:
		slog.Error(op+" failed", slog.String("error", err.Error()))
		writeJSON(w, http.StatusInternalServerError, errorBody("internal error"))
	}
}
