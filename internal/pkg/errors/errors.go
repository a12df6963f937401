package errors

import (
	"encoding/json"
	"errors"
	"net/http"
)

type ErrorResponse struct {
	Error   string      `json:"error"`
	Message string      `json:"message"`
	Code    string      `json:"code"`
	EventID string      `json:"eventId,omitempty"`
	Details interface{} `json:"details,omitempty"`
}

const (
	ErrCodeInvalidInput      = "INVALID_INPUT"
	ErrCodeValidation        = "VALIDATION_ERROR"
	ErrCodeUnauthorized      = "UNAUTHORIZED"
	ErrCodeForbidden         = "FORBIDDEN"
	ErrCodeNotFound          = "NOT_FOUND"
	ErrCodeConflict          = "CONFLICT"
	ErrCodeQuotaExceeded     = "QUOTA_EXCEEDED"
	ErrCodeRateLimitExceeded = "RATE_LIMIT_EXCEEDED"
	ErrCodeDeliveryFailed    = "DELIVERY_FAILED"
	ErrCodeInternal          = "INTERNAL_ERROR"
)

// APIError is a terminal request error carrying its HTTP status, so the
// engine layer can signal outcomes without importing handler code.
type APIError struct {
	Status  int
	Code    string
	Message string
	EventID string
	Details interface{}
}

func (e *APIError) Error() string {
	return e.Message
}

func New(status int, code, message string) *APIError {
	return &APIError{Status: status, Code: code, Message: message}
}

func Unauthorized(message string) *APIError {
	return New(http.StatusUnauthorized, ErrCodeUnauthorized, message)
}

func Forbidden(message string) *APIError {
	return New(http.StatusForbidden, ErrCodeForbidden, message)
}

func NotFound(message string) *APIError {
	return New(http.StatusNotFound, ErrCodeNotFound, message)
}

func Conflict(message string) *APIError {
	return New(http.StatusConflict, ErrCodeConflict, message)
}

func Validation(message string, details interface{}) *APIError {
	e := New(http.StatusUnprocessableEntity, ErrCodeValidation, message)
	e.Details = details
	return e
}

func BadRequest(message string) *APIError {
	return New(http.StatusBadRequest, ErrCodeInvalidInput, message)
}

func QuotaExceeded(message string) *APIError {
	return New(http.StatusTooManyRequests, ErrCodeQuotaExceeded, message)
}

func RateLimited(message string) *APIError {
	return New(http.StatusTooManyRequests, ErrCodeRateLimitExceeded, message)
}

func Internal(message string) *APIError {
	return New(http.StatusInternalServerError, ErrCodeInternal, message)
}

// AsAPIError unwraps err to an *APIError if there is one in the chain.
func AsAPIError(err error) (*APIError, bool) {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr, true
	}
	return nil, false
}

func WriteError(w http.ResponseWriter, status int, code, message string, details interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	json.NewEncoder(w).Encode(ErrorResponse{
		Error:   http.StatusText(status),
		Message: message,
		Code:    code,
		Details: details,
	})
}

// WriteAPIError renders an *APIError; anything else becomes a 500.
func WriteAPIError(w http.ResponseWriter, err error) {
	if apiErr, ok := AsAPIError(err); ok {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(apiErr.Status)
		json.NewEncoder(w).Encode(ErrorResponse{
			Error:   http.StatusText(apiErr.Status),
			Message: apiErr.Message,
			Code:    apiErr.Code,
			EventID: apiErr.EventID,
			Details: apiErr.Details,
		})
		return
	}
	WriteError(w, http.StatusInternalServerError, ErrCodeInternal, "Internal server error", nil)
}
