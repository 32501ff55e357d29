package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/barrdunn/dutywatch-backend/internal/core"
)

// MediaType is the Content-Type for every API response.
const MediaType = "application/json"

// ErrorResponse is the envelope for all error bodies.
type ErrorResponse struct {
	Error ErrorBody `json:"error"`
}

// ErrorBody carries the machine-matchable error code plus context.
type ErrorBody struct {
	Code      string         `json:"code"`
	Message   string         `json:"message"`
	Details   map[string]any `json:"details,omitempty"`
	RequestID string         `json:"request_id,omitempty"`
}

// WriteJSON writes data as a JSON response with the given status.
func WriteJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", MediaType)
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		slog.Error("failed to encode response", "error", err)
	}
}

// WriteError writes a DutyError as a JSON error response. The request id is
// picked up from the response headers set by the middleware.
func WriteError(w http.ResponseWriter, status int, dutyErr *core.DutyError) {
	resp := ErrorResponse{Error: ErrorBody{
		Code:      dutyErr.Code,
		Message:   dutyErr.Message,
		Details:   dutyErr.Details,
		RequestID: w.Header().Get("X-Request-Id"),
	}}
	WriteJSON(w, status, resp)
}

// writeEngineError maps an engine error onto the wire. Unknown error types
// become opaque internal errors rather than leaking internals.
func writeEngineError(w http.ResponseWriter, err error) {
	var dutyErr *core.DutyError
	if errors.As(err, &dutyErr) {
		WriteError(w, dutyErr.HTTPStatus(), dutyErr)
		return
	}
	slog.Error("unclassified engine error", "error", err)
	WriteError(w, http.StatusInternalServerError, core.NewInternalError("internal error"))
}
