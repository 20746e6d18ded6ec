package shipper

import (
	"errors"
	"fmt"
	"strings"
)

// CarrierError represents a failed call to the carrier API: a non-2xx
// response, a transport failure or a timeout.
type CarrierError struct {
	Carrier    string
	Code       string
	Message    string
	StatusCode int
	Body       string
	Retryable  bool
	Cause      error
}

// Error implements the error interface.
func (e *CarrierError) Error() string {
	msg := fmt.Sprintf("%s error (%s): %s", e.Carrier, e.Code, e.Message)
	if e.StatusCode != 0 {
		msg = fmt.Sprintf("%s error (%s, HTTP %d): %s", e.Carrier, e.Code, e.StatusCode, e.Message)
	}
	if e.Cause != nil {
		return msg + ": " + e.Cause.Error()
	}
	return msg
}

// Unwrap returns the underlying cause.
func (e *CarrierError) Unwrap() error {
	return e.Cause
}

// Is matches another CarrierError with the same code, or ErrRemote.
func (e *CarrierError) Is(target error) bool {
	if target == ErrRemote {
		return true
	}
	t, ok := target.(*CarrierError)
	if !ok {
		return false
	}
	return e.Code == t.Code
}

// NewCarrierError creates a new CarrierError.
func NewCarrierError(carrier, code, message string) *CarrierError {
	return &CarrierError{
		Carrier: carrier,
		Code:    code,
		Message: message,
	}
}

// WithCause adds a cause to the error.
func (e *CarrierError) WithCause(err error) *CarrierError {
	e.Cause = err
	return e
}

// WithStatusCode adds an HTTP status code to the error.
func (e *CarrierError) WithStatusCode(code int) *CarrierError {
	e.StatusCode = code
	return e
}

// WithBody keeps the raw response body for diagnostics.
func (e *CarrierError) WithBody(body string) *CarrierError {
	e.Body = body
	return e
}

// WithRetryable marks the error as retryable.
func (e *CarrierError) WithRetryable(retryable bool) *CarrierError {
	e.Retryable = retryable
	return e
}

// ValidationError reports an input rejected before any network call.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// Is matches ErrValidation.
func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}

// NewValidationError creates a new ValidationError.
func NewValidationError(field, reason string) *ValidationError {
	return &ValidationError{Field: field, Reason: reason}
}

// IncompleteLabelError is returned when the carrier answers 2xx to a label
// purchase but the response carries no label data.
type IncompleteLabelError struct {
	CarrierOrderID string
	ShipmentID     string
}

func (e *IncompleteLabelError) Error() string {
	return fmt.Sprintf("label response for carrier order %s has no label data", e.CarrierOrderID)
}

// Is matches ErrIncompleteLabel.
func (e *IncompleteLabelError) Is(target error) bool {
	return target == ErrIncompleteLabel
}

// ConfigurationError lists required settings that are missing or invalid.
// It is fatal at startup.
type ConfigurationError struct {
	Component string
	Missing   []string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("%s configuration incomplete: missing %s", e.Component, strings.Join(e.Missing, ", "))
}

// Is matches ErrConfiguration.
func (e *ConfigurationError) Is(target error) bool {
	return target == ErrConfiguration
}

// Sentinel errors for common shipping scenarios.
var (
	// ErrRemote matches every CarrierError.
	ErrRemote = errors.New("carrier request failed")

	// ErrValidation matches every ValidationError.
	ErrValidation = errors.New("validation failed")

	// ErrIncompleteLabel matches every IncompleteLabelError.
	ErrIncompleteLabel = errors.New("incomplete label")

	// ErrConfiguration matches every ConfigurationError.
	ErrConfiguration = errors.New("configuration error")

	// ErrServiceUnavailable indicates the carrier service is temporarily unavailable.
	ErrServiceUnavailable = errors.New("service unavailable")

	// ErrAuthenticationFailed indicates carrier authentication failed.
	ErrAuthenticationFailed = errors.New("authentication failed")

	// ErrRateLimitExceeded indicates the carrier rate limit was exceeded.
	ErrRateLimitExceeded = errors.New("rate limit exceeded")

	// ErrCarrierNotFound indicates the requested carrier is not registered.
	ErrCarrierNotFound = errors.New("carrier not found")
)

// IsRetryable returns true if the error is retryable.
func IsRetryable(err error) bool {
	var carrierErr *CarrierError
	if errors.As(err, &carrierErr) {
		return carrierErr.Retryable
	}
	return errors.Is(err, ErrServiceUnavailable) || errors.Is(err, ErrRateLimitExceeded)
}
