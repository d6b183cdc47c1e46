package models

import (
	"errors"
	"fmt"
)

var (
	// ErrUpstreamUnavailable is wrapped by every provider failure. Callers
	// treat the generation service as one failure surface and never retry.
	ErrUpstreamUnavailable = errors.New("upstream unavailable")

	// ErrEmptyResponse is returned when the model produced no text.
	ErrEmptyResponse = errors.New("empty response")
)

// ErrorCode represents a provider error code.
type ErrorCode string

const (
	ErrorCodeAuth           ErrorCode = "authentication_failed"
	ErrorCodeRateLimit      ErrorCode = "rate_limit"
	ErrorCodeInvalidRequest ErrorCode = "invalid_request"
	ErrorCodeUnavailable    ErrorCode = "service_unavailable"
	ErrorCodeEmptyResponse  ErrorCode = "empty_response"
	ErrorCodeNetwork        ErrorCode = "network_error"
)

// ProviderError wraps errors with additional context.
type ProviderError struct {
	Code       ErrorCode
	Message    string
	StatusCode int
	Underlying error
}

// Error implements the error interface.
func (e *ProviderError) Error() string {
	if e.Underlying != nil {
		return fmt.Sprintf("%s: %s (%v)", e.Code, e.Message, e.Underlying)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap exposes both the upstream sentinel and the underlying cause.
func (e *ProviderError) Unwrap() []error {
	if e.Underlying == nil {
		return []error{ErrUpstreamUnavailable}
	}
	return []error{ErrUpstreamUnavailable, e.Underlying}
}

// CodeForStatus maps an HTTP status from the upstream API to an error code.
func CodeForStatus(status int) ErrorCode {
	switch {
	case status == 401 || status == 403:
		return ErrorCodeAuth
	case status == 429:
		return ErrorCodeRateLimit
	case status >= 400 && status < 500:
		return ErrorCodeInvalidRequest
	case status >= 500:
		return ErrorCodeUnavailable
	default:
		return ErrorCodeNetwork
	}
}

// NewStatusError builds the error for an upstream API status.
func NewStatusError(status int, message string, underlying error) *ProviderError {
	return &ProviderError{
		Code:       CodeForStatus(status),
		Message:    message,
		StatusCode: status,
		Underlying: underlying,
	}
}

// NewEmptyResponseError reports a response with no text.
func NewEmptyResponseError(model string) *ProviderError {
	return &ProviderError{
		Code:       ErrorCodeEmptyResponse,
		Message:    "model " + model + " returned no text",
		Underlying: ErrEmptyResponse,
	}
}

// NewNetworkError wraps a transport failure.
func NewNetworkError(err error) *ProviderError {
	return &ProviderError{Code: ErrorCodeNetwork, Message: "network error", Underlying: err}
}

// CodeOf returns the code of a provider error, or "" for other errors.
func CodeOf(err error) ErrorCode {
	var pe *ProviderError
	if errors.As(err, &pe) {
		return pe.Code
	}
	return ""
}
