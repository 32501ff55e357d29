package core

import (
	"fmt"
	"net/http"
)

// Error codes returned to API callers and matched in tests.
const (
	ErrCodeInvalidPolicy  = "invalid_policy"
	ErrCodeInvalidRequest = "invalid_request"
	ErrCodeNotFound       = "not_found"
	ErrCodeDispatchFailed = "dispatch_failed"
	ErrCodeInternal       = "internal"
)

// DutyError is the typed error surfaced by the engine. Code is stable and
// machine-matchable; Details carries optional structured context.
type DutyError struct {
	Code    string         `json:"code"`
	Message string         `json:"message"`
	Details map[string]any `json:"details,omitempty"`
}

func (e *DutyError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// HTTPStatus maps an error code to the HTTP status used by the API layer.
func (e *DutyError) HTTPStatus() int {
	switch e.Code {
	case ErrCodeInvalidPolicy, ErrCodeInvalidRequest:
		return http.StatusBadRequest
	case ErrCodeNotFound:
		return http.StatusNotFound
	case ErrCodeDispatchFailed:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// NewInvalidPolicyError reports a policy document that failed validation.
func NewInvalidPolicyError(message string, details map[string]any) *DutyError {
	return &DutyError{Code: ErrCodeInvalidPolicy, Message: message, Details: details}
}

// NewInvalidRequestError reports a malformed request.
func NewInvalidRequestError(message string, details map[string]any) *DutyError {
	return &DutyError{Code: ErrCodeInvalidRequest, Message: message, Details: details}
}

// NewNotFoundError reports a lookup on a key that was never registered.
func NewNotFoundError(kind, id string) *DutyError {
	return &DutyError{
		Code:    ErrCodeNotFound,
		Message: fmt.Sprintf("%s %q not found.", kind, id),
		Details: map[string]any{"id": id},
	}
}

// NewDispatchError reports a notifier delivery failure. The scheduler treats
// these as recoverable and retries on the next tick while the attempt is due.
func NewDispatchError(attemptID string, cause error) *DutyError {
	return &DutyError{
		Code:    ErrCodeDispatchFailed,
		Message: fmt.Sprintf("dispatch of attempt %s failed: %v", attemptID, cause),
		Details: map[string]any{"attempt_id": attemptID},
	}
}

// NewInternalError reports an unexpected backend failure.
func NewInternalError(message string) *DutyError {
	return &DutyError{Code: ErrCodeInternal, Message: message}
}
