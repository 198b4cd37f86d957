package gateway

import "net/http"

// Machine error codes returned to callers.
const (
	CodeUnauthorized          = "unauthorized"
	CodeBadRequest            = "bad_request"
	CodeProviderNotConfigured = "provider_not_configured"
	CodeNotFound              = "not_found"
	CodeForbidden             = "forbidden"
	CodeConflict              = "conflict"
	CodeRateLimited           = "rate_limited"
	CodeInternal              = "internal_error"
)

// Error is a terminal pipeline failure surfaced to the caller.
type Error struct {
	Code    string `json:"error"`
	Message string `json:"message"`
}

func (e *Error) Error() string { return e.Code + ": " + e.Message }

// NewError constructs an Error with a machine code and human message.
func NewError(code, message string) *Error {
	return &Error{Code: code, Message: message}
}

// HTTPStatus maps a machine code to its HTTP status.
func HTTPStatus(code string) int {
	switch code {
	case CodeUnauthorized:
		return http.StatusUnauthorized
	case CodeBadRequest:
		return http.StatusBadRequest
	case CodeProviderNotConfigured:
		return http.StatusBadRequest
	case CodeNotFound:
		return http.StatusNotFound
	case CodeForbidden:
		return http.StatusForbidden
	case CodeConflict:
		return http.StatusConflict
	case CodeRateLimited:
		return http.StatusTooManyRequests
	default:
		return http.StatusInternalServerError
	}
}
