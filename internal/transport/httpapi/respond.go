package httpapi

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"civicdesk/internal/bootstrap/logging"
	domain "civicdesk/internal/domain/grievance"
	"civicdesk/internal/errs"
)

type successResponse struct {
	Success bool `json:"success"`
	Data    any  `json:"data,omitempty"`
}

type errorResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
	Kind    string `json:"kind"`
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeData(w http.ResponseWriter, data any) {
	writeJSON(w, http.StatusOK, successResponse{Success: true, Data: data})
}

func writeFailure(w http.ResponseWriter, status int, kind string, message string) {
	writeJSON(w, status, errorResponse{Success: false, Error: message, Kind: kind})
}

// statusForKind maps the error taxonomy onto HTTP status codes.
func statusForKind(kind string) int {
	switch kind {
	case domain.KindValidation:
		return http.StatusBadRequest
	case domain.KindNotFound:
		return http.StatusNotFound
	case domain.KindInvalidTransition:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// serverFailureMessage keeps upstream and storage detail out of 5xx bodies.
// The full error is logged.
func serverFailureMessage(kind string) string {
	switch kind {
	case domain.KindClassification:
		return "classification service failed"
	case domain.KindMediaStore:
		return "media store failed"
	case domain.KindPersistence:
		return "storage failed"
	default:
		return "internal server error"
	}
}

func writeError(w http.ResponseWriter, r *http.Request, err error) {
	kind := domain.ErrorKind(err)

	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		writeFailure(w, http.StatusRequestEntityTooLarge, domain.KindValidation, "upload exceeds size limit")
		return
	}

	status := statusForKind(kind)
	message := err.Error()
	if status >= http.StatusInternalServerError {
		message = serverFailureMessage(kind)
		logging.Error(r.Context(), "request failed", slog.Any("err", errs.Loggable(err)))
	}
	writeFailure(w, status, kind, message)
}
