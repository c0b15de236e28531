package api

import (
	"encoding/json"
	"fmt"
	"net/http"
)

// ErrorType is the closed set of error categories surfaced to clients.
type ErrorType string

const (
	InvalidRequestType ErrorType = "invalid_request_error"
	RateLimitType      ErrorType = "rate_limit_error"
	APIErrorType       ErrorType = "api_error"
)

// Error is the standard error shape for the API. It serializes to
// {"error": {...}} and keeps the originating error for server-side logs.
type Error struct {
	// HTTP Status Code (e.g., 400, 429, 500)
	Status  int
	Type    ErrorType
	Code    string
	Message string
	Param   string
	Errors  map[string]string

	// Original error for internal logging
	Log error
}

func (e *Error) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("[%d] %s (%s): %s", e.Status, e.Type, e.Code, e.Message)
	}
	return fmt.Sprintf("[%d] %s: %s", e.Status, e.Type, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Log
}

// ErrorDetail is the body nested under the "error" key.
type ErrorDetail struct {
	Message string            `json:"message"`
	Type    ErrorType         `json:"type"`
	Code    *string           `json:"code"`
	Param   string            `json:"param,omitempty"`
	Errors  map[string]string `json:"errors,omitempty"`
}

// ErrorResponse is the wire envelope for every error.
type ErrorResponse struct {
	Error ErrorDetail `json:"error"`
}

func (e *Error) Response() ErrorResponse {
	d := ErrorDetail{
		Message: e.Message,
		Type:    e.Type,
		Param:   e.Param,
		Errors:  e.Errors,
	}
	if e.Code != "" {
		code := e.Code
		d.Code = &code
	}
	return ErrorResponse{Error: d}
}

func (e *Error) MarshalJSON() ([]byte, error) {
	return json.Marshal(e.Response())
}

type ErrorOption func(*Error)

// WithLog attaches an internal error for server-side logging
func WithLog(err error) ErrorOption {
	return func(e *Error) {
		e.Log = err
	}
}

func WithParam(param string) ErrorOption {
	return func(e *Error) {
		e.Param = param
	}
}

func WithCode(code string) ErrorOption {
	return func(e *Error) {
		e.Code = code
	}
}

func NewError(status int, typ ErrorType, message string, opts ...ErrorOption) *Error {
	e := &Error{
		Status:  status,
		Type:    typ,
		Message: message,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// InvalidRequest is a malformed-input error; it is never retried.
func InvalidRequest(message string, opts ...ErrorOption) *Error {
	return NewError(http.StatusBadRequest, InvalidRequestType, message, opts...)
}

// ValidationError creates a rich validation error keyed by JSON field path.
func ValidationError(fields map[string]string) *Error {
	e := InvalidRequest("One or more fields failed validation", WithCode("validation_failed"))
	e.Errors = fields
	return e
}

func ContentRejected(message string, err error) *Error {
	return InvalidRequest(message, WithCode("content_rejected"), WithLog(err))
}

func RateLimitError(message string) *Error {
	return NewError(http.StatusTooManyRequests, RateLimitType, message, WithCode("rate_limit_exceeded"))
}

// ProviderError creates 502 gateway error for providers
func ProviderError(message string, err error) *Error {
	return NewError(http.StatusBadGateway, APIErrorType, message, WithCode("provider_error"), WithLog(err))
}

// InternalError creates a standard error for any internal server error
func InternalError(message string, err error) *Error {
	return NewError(http.StatusInternalServerError, APIErrorType, message, WithCode("internal_error"), WithLog(err))
}

func Unauthorized(message string) *Error {
	return NewError(http.StatusUnauthorized, InvalidRequestType, message, WithCode("invalid_api_key"))
}
