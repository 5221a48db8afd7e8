package types

import (
	"errors"
	"fmt"
)

// ErrorCode is a typed string for categorizing dispatch errors.
type ErrorCode string

// Every failure inside a dispatch unit is classified as exactly one of
// these codes before it reaches the acknowledgment step. The code decides
// the terminal queue operation for the delivery.
const (
	// ErrCodeMalformedPayload covers bodies that do not decode into an
	// Envelope: invalid JSON, a missing required field, or an unknown
	// payload discriminator. Retrying cannot fix the body, so the
	// delivery is rejected without redelivery.
	ErrCodeMalformedPayload ErrorCode = "malformed_payload"

	// ErrCodeTemplateBuild covers email construction failures, i.e. a
	// sender or recipient address that does not parse into a valid mail
	// address form. Rejected without redelivery.
	ErrCodeTemplateBuild ErrorCode = "template_build_failure"

	// ErrCodeTransportUnavailable covers any failure of the mail
	// transport send call (network, auth, quota). The delivery is held
	// for a cooldown and then requeued.
	ErrCodeTransportUnavailable ErrorCode = "transport_unavailable"
)

// AppError is the standard error type for the dispatch pipeline. The Code
// field carries the classification consumed by the acknowledgment
// controller; the wrapped Err preserves the original cause for logging.
type AppError struct {
	Code    ErrorCode
	Message string
	Err     error
}

// Error implements the error interface.
func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying error for errors.Is/errors.As support.
func (e *AppError) Unwrap() error {
	return e.Err
}

// NewAppError creates a new AppError with the given code, message, and
// optional underlying error.
func NewAppError(code ErrorCode, message string, err error) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
		Err:     err,
	}
}

// CodeOf returns the ErrorCode carried by err. Errors that reach the
// acknowledgment controller without a code fall back to
// ErrCodeMalformedPayload, which keeps unclassified failures out of the
// requeue path.
func CodeOf(err error) ErrorCode {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Code
	}
	return ErrCodeMalformedPayload
}
