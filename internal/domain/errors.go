package domain

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
)

// HTTPError defines errors that can be mapped to HTTP status codes.
type HTTPError interface {
	error
	StatusCode() int
}

// ErrorDetailer is implemented by errors that expose structured detail
// for the "errors" field of the response envelope.
type ErrorDetailer interface {
	Details() any
}

// Sentinel errors - use with errors.Is()
var (
	ErrNotFound           = errors.New("not found")
	ErrValidation         = errors.New("validation failed")
	ErrUnauthorized       = errors.New("unauthorized")
	ErrForbidden          = errors.New("forbidden")
	ErrRateLimited        = errors.New("rate limited")
	ErrStorageUnavailable = errors.New("storage unavailable")
	ErrUpstream           = errors.New("completion provider failure")
)

// ValidationError carries field-level detail from request validation.
type ValidationError struct {
	Message string
	Fields  map[string]string
}

// NewValidationError converts an ozzo-validation result into a ValidationError.
// Non field errors are reported under the "request" key.
func NewValidationError(message string, err error) *ValidationError {
	fields := map[string]string{}
	var verrs validation.Errors
	if errors.As(err, &verrs) {
		for field, ferr := range verrs {
			if ferr != nil {
				fields[field] = ferr.Error()
			}
		}
	} else if err != nil {
		fields["request"] = err.Error()
	}
	return &ValidationError{Message: message, Fields: fields}
}

func (e *ValidationError) Error() string {
	if len(e.Fields) == 0 {
		return e.Message
	}
	return fmt.Sprintf("%s: %v", e.Message, e.Fields)
}
func (e *ValidationError) StatusCode() int      { return http.StatusUnprocessableEntity }
func (e *ValidationError) Details() any         { return e.Fields }
func (e *ValidationError) Is(target error) bool { return target == ErrValidation }

// RateLimitedError is returned when a guest exhausted its quota for the window.
type RateLimitedError struct {
	Limit      int
	Window     time.Duration
	RetryAfter time.Duration
}

func (e *RateLimitedError) Error() string {
	return fmt.Sprintf("guest request limit of %d per %s reached; sign in or retry later", e.Limit, e.Window)
}
func (e *RateLimitedError) StatusCode() int      { return http.StatusTooManyRequests }
func (e *RateLimitedError) Is(target error) bool { return target == ErrRateLimited }
func (e *RateLimitedError) Details() any {
	return map[string]any{
		"limit":               e.Limit,
		"window_seconds":      int(e.Window.Seconds()),
		"retry_after_seconds": RetryAfterSeconds(e.RetryAfter),
	}
}

// RetryAfterSeconds rounds a wait up to whole seconds, never below one.
func RetryAfterSeconds(d time.Duration) int {
	secs := int((d + time.Second - 1) / time.Second)
	if secs < 1 {
		return 1
	}
	return secs
}

// StorageUnavailableError means the rate limiter could not run its atomic
// region. It must surface as a hard failure.
type StorageUnavailableError struct {
	Cause error
}

func (e *StorageUnavailableError) Error() string {
	return fmt.Sprintf("rate limit storage unavailable: %v", e.Cause)
}
func (e *StorageUnavailableError) Unwrap() error        { return e.Cause }
func (e *StorageUnavailableError) StatusCode() int      { return http.StatusInternalServerError }
func (e *StorageUnavailableError) Is(target error) bool { return target == ErrStorageUnavailable }

// UpstreamConnectionError: the completion provider could not be reached.
type UpstreamConnectionError struct {
	Cause error
}

func (e *UpstreamConnectionError) Error() string {
	return fmt.Sprintf("could not connect to completion provider: %v", e.Cause)
}
func (e *UpstreamConnectionError) Unwrap() error        { return e.Cause }
func (e *UpstreamConnectionError) StatusCode() int      { return http.StatusInternalServerError }
func (e *UpstreamConnectionError) Is(target error) bool { return target == ErrUpstream }
func (e *UpstreamConnectionError) Details() any {
	return map[string]any{"cause": causeText(e.Cause)}
}

// UpstreamRejectedError: the provider answered with an error response.
// Body is the provider's error payload, kept for diagnostics.
type UpstreamRejectedError struct {
	ProviderStatus int
	Body           string
}

func (e *UpstreamRejectedError) Error() string {
	return fmt.Sprintf("completion provider rejected the request (status %d): %s", e.ProviderStatus, e.Body)
}
func (e *UpstreamRejectedError) StatusCode() int      { return http.StatusBadGateway }
func (e *UpstreamRejectedError) Is(target error) bool { return target == ErrUpstream }
func (e *UpstreamRejectedError) Details() any {
	return map[string]any{
		"provider_status": e.ProviderStatus,
		"provider_body":   e.Body,
	}
}

// UpstreamFailureError covers transport failures that are neither a refused
// connection nor an error response (malformed payloads, aborted reads).
type UpstreamFailureError struct {
	Cause error
}

func (e *UpstreamFailureError) Error() string {
	return fmt.Sprintf("completion request failed: %v", e.Cause)
}
func (e *UpstreamFailureError) Unwrap() error        { return e.Cause }
func (e *UpstreamFailureError) StatusCode() int      { return http.StatusInternalServerError }
func (e *UpstreamFailureError) Is(target error) bool { return target == ErrUpstream }
func (e *UpstreamFailureError) Details() any {
	return map[string]any{"cause": causeText(e.Cause)}
}

func causeText(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}
