package errors

import (
	"errors"
	"fmt"
)

var (
	// ErrMissingCredentials indicates that a project alias or API key was not configured
	ErrMissingCredentials = errors.New("missing Heartcore credentials")

	// ErrNotFound indicates that a content item could not be resolved
	ErrNotFound = errors.New("content not found")

	// ErrMalformedPayload indicates that a remote payload did not match the expected shape
	ErrMalformedPayload = errors.New("malformed payload")

	// ErrUnknownSource indicates that no linked source matches the requested id
	ErrUnknownSource = errors.New("unknown linked source")

	// ErrNoContentType indicates that a search was attempted without a content type
	ErrNoContentType = errors.New("no content type selected")
)

// ErrorType classifies an AppError by how callers must react to it.
type ErrorType string

const (
	// Configuration errors are fatal: missing or rejected credentials, bad settings.
	Configuration ErrorType = "configuration"
	// Unauthorized errors come from the remote API refusing the credentials.
	Unauthorized ErrorType = "unauthorized"
	// NotFound errors are local to one content id and never fatal.
	NotFound ErrorType = "not_found"
	// Transient errors are network or server failures surfaced to the user without retry.
	Transient ErrorType = "transient"
	// ValidationFailed errors describe invalid input values.
	ValidationFailed ErrorType = "validation_failed"
	// Internal errors are everything else.
	Internal ErrorType = "internal"
)

// AppError represents a structured Heartcore error
type AppError struct {
	// Type drives fatal/non-fatal handling
	Type ErrorType

	// Code is a machine-readable error code
	Code string

	// Message is a human-readable error message
	Message string

	// Err is the underlying error, if any
	Err error
}

// Error implements the error interface
func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying error
func (e *AppError) Unwrap() error {
	return e.Err
}

// NewError creates a new AppError
func NewError(errType ErrorType, code, message string, err error) *AppError {
	return &AppError{
		Type:    errType,
		Code:    code,
		Message: message,
		Err:     err,
	}
}

// NewConfigurationError creates a fatal configuration error
func NewConfigurationError(message string, err error) *AppError {
	return NewError(Configuration, ErrorCodeConfiguration, message, err)
}

// NewUnauthorizedError creates an error for credentials rejected by the remote API
func NewUnauthorizedError(message string, err error) *AppError {
	return NewError(Unauthorized, ErrorCodeUnauthorized, message, err)
}

// NewNotFoundError creates an error for a single unresolvable content id
func NewNotFoundError(id string, err error) *AppError {
	if err == nil {
		err = ErrNotFound
	}
	return NewError(NotFound, ErrorCodeNotFound, fmt.Sprintf("content %q could not be resolved", id), err)
}

// NewTransientError creates an error for a failed network call
func NewTransientError(message string, err error) *AppError {
	return NewError(Transient, ErrorCodeNetwork, message, err)
}

// NewValidationError creates an error for invalid input
func NewValidationError(message string, err error) *AppError {
	return NewError(ValidationFailed, ErrorCodeValidation, message, err)
}

// TypeOf returns the ErrorType of the first AppError in err's chain, or Internal.
func TypeOf(err error) ErrorType {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Type
	}
	return Internal
}

// IsConfiguration checks if an error is a configuration error
func IsConfiguration(err error) bool {
	return err != nil && (TypeOf(err) == Configuration || errors.Is(err, ErrMissingCredentials))
}

// IsNotFound checks if an error means the content id could not be resolved
func IsNotFound(err error) bool {
	return err != nil && (TypeOf(err) == NotFound || errors.Is(err, ErrNotFound) || errors.Is(err, ErrMalformedPayload))
}

// IsTransient checks if an error is a network or server failure
func IsTransient(err error) bool {
	return err != nil && TypeOf(err) == Transient
}

// IsFatal reports whether err must abort a whole batch instead of degrading one item.
func IsFatal(err error) bool {
	if err == nil {
		return false
	}
	return IsConfiguration(err) || TypeOf(err) == Unauthorized
}

// Is and As re-export the standard helpers so callers need a single errors import.
func Is(err, target error) bool { return errors.Is(err, target) }

// As finds the first error in err's chain that matches target.
func As(err error, target any) bool { return errors.As(err, target) }

// New returns an error that formats as the given text.
func New(text string) error { return errors.New(text) }
