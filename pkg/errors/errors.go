// Package errors provides domain-specific error types for the client secret rotator.
package errors

import (
	"errors"
	"fmt"
)

// ErrorCode represents a machine-readable error code.
type ErrorCode string

const (
	// CodeConfigIncomplete indicates required inputs are missing (not retryable, disables rotation).
	CodeConfigIncomplete ErrorCode = "ConfigIncomplete"
	// CodeValidation indicates an invalid argument such as an empty config field (not retryable).
	CodeValidation ErrorCode = "ValidationError"
	// CodeMalformedSignature indicates a DER signature could not be decoded (retryable).
	CodeMalformedSignature ErrorCode = "MalformedSignature"
	// CodeSigning indicates the private key could not be parsed or used (retryable).
	CodeSigning ErrorCode = "SigningFailure"
	// CodePersistence indicates the environment store could not be read or written (retryable).
	CodePersistence ErrorCode = "PersistenceFailure"
	// CodeNotification indicates a rotation event could not be delivered (retryable).
	CodeNotification ErrorCode = "NotificationError"
	// CodeInternal indicates an unexpected internal error (retryable).
	CodeInternal ErrorCode = "InternalError"
)

// retryableCodes contains the set of error codes the next scheduled tick may recover from.
var retryableCodes = map[ErrorCode]bool{
	CodeMalformedSignature: true,
	CodeSigning:            true,
	CodePersistence:        true,
	CodeNotification:       true,
	CodeInternal:           true,
}

// RotatorError is the base error type for all rotator errors.
type RotatorError struct {
	Code      ErrorCode
	Component string
	Message   string
	Err       error
}

func (e *RotatorError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %s: %v", e.Code, e.Component, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s: %s", e.Code, e.Component, e.Message)
}

func (e *RotatorError) Unwrap() error {
	return e.Err
}

// New creates a new RotatorError.
func New(code ErrorCode, component, message string, err error) *RotatorError {
	return &RotatorError{
		Code:      code,
		Component: component,
		Message:   message,
		Err:       err,
	}
}

// --- Constructors for each error category ---

// NewConfigIncompleteError creates a config-incomplete error.
func NewConfigIncompleteError(component, message string, err error) *RotatorError {
	return New(CodeConfigIncomplete, component, message, err)
}

// NewValidationError creates a validation error.
func NewValidationError(component, message string, err error) *RotatorError {
	return New(CodeValidation, component, message, err)
}

// NewMalformedSignatureError creates a malformed signature error.
func NewMalformedSignatureError(component, message string, err error) *RotatorError {
	return New(CodeMalformedSignature, component, message, err)
}

// NewSigningError creates a signing error.
func NewSigningError(component, message string, err error) *RotatorError {
	return New(CodeSigning, component, message, err)
}

// NewPersistenceError creates a persistence error.
func NewPersistenceError(component, message string, err error) *RotatorError {
	return New(CodePersistence, component, message, err)
}

// NewNotificationError creates a notification error.
func NewNotificationError(component, message string, err error) *RotatorError {
	return New(CodeNotification, component, message, err)
}

// NewInternalError creates an internal error.
func NewInternalError(component, message string, err error) *RotatorError {
	return New(CodeInternal, component, message, err)
}

// --- Type checking helpers ---

// AsRotatorError extracts a RotatorError from the error chain.
func AsRotatorError(err error) (*RotatorError, bool) {
	var rErr *RotatorError
	if errors.As(err, &rErr) {
		return rErr, true
	}
	return nil, false
}

// IsCode checks if an error in the chain has the given error code.
func IsCode(err error, code ErrorCode) bool {
	rErr, ok := AsRotatorError(err)
	if !ok {
		return false
	}
	return rErr.Code == code
}

// IsConfigIncompleteError checks if the error is a config-incomplete error.
func IsConfigIncompleteError(err error) bool { return IsCode(err, CodeConfigIncomplete) }

// IsValidationError checks if the error is a validation error.
func IsValidationError(err error) bool { return IsCode(err, CodeValidation) }

// IsMalformedSignatureError checks if the error is a malformed signature error.
func IsMalformedSignatureError(err error) bool { return IsCode(err, CodeMalformedSignature) }

// IsSigningError checks if the error is a signing error.
func IsSigningError(err error) bool { return IsCode(err, CodeSigning) }

// IsPersistenceError checks if the error is a persistence error.
func IsPersistenceError(err error) bool { return IsCode(err, CodePersistence) }

// IsNotificationError checks if the error is a notification error.
func IsNotificationError(err error) bool { return IsCode(err, CodeNotification) }

// IsRetryable checks if the error is retryable based on its code.
func IsRetryable(err error) bool {
	rErr, ok := AsRotatorError(err)
	if !ok {
		return false
	}
	return retryableCodes[rErr.Code]
}

// GetCode returns the error code, or empty string if not a RotatorError.
func GetCode(err error) ErrorCode {
	rErr, ok := AsRotatorError(err)
	if !ok {
		return ""
	}
	return rErr.Code
}

// GetComponent returns the component name, or empty string if not a RotatorError.
func GetComponent(err error) string {
	rErr, ok := AsRotatorError(err)
	if !ok {
		return ""
	}
	return rErr.Component
}
