// Package errors provides structured error handling for violette operations.
// It defines error codes and typed errors for the store, probe, and scan
// paths, and utilities for classifying failures.
package errors

import (
	"errors"
	"fmt"
)

// ErrorCode represents different types of errors that can occur.
type ErrorCode string

const (
	// General errors.
	CodeUnknown       ErrorCode = "UNKNOWN"
	CodeValidation    ErrorCode = "VALIDATION"
	CodeConfiguration ErrorCode = "CONFIGURATION"
	CodeCanceled      ErrorCode = "CANCELED"

	// Probe errors. These are always recoverable at per-host granularity.
	CodeNoResponse  ErrorCode = "NO_RESPONSE"
	CodeTimeout     ErrorCode = "TIMEOUT"
	CodeEngineError ErrorCode = "ENGINE_ERROR"

	// Range expansion errors.
	CodeRangeInvalid ErrorCode = "RANGE_INVALID"

	// Store errors. Fatal on the write path, transient on the read path.
	CodeStoreOpen   ErrorCode = "STORE_OPEN"
	CodeStoreQuery  ErrorCode = "STORE_QUERY"
	CodeStoreCommit ErrorCode = "STORE_COMMIT"
	CodeStoreSchema ErrorCode = "STORE_SCHEMA"
)

// StoreError represents a failure in the result store.
type StoreError struct {
	Code      ErrorCode
	Message   string
	Operation string
	Cause     error
}

// Error implements the error interface.
func (e *StoreError) Error() string {
	if e.Operation != "" {
		return fmt.Sprintf("[%s] %s (operation: %s)", e.Code, e.Message, e.Operation)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying error.
func (e *StoreError) Unwrap() error {
	return e.Cause
}

// NewStoreError creates a new store error.
func NewStoreError(code ErrorCode, message string) *StoreError {
	return &StoreError{Code: code, Message: message}
}

// WrapStoreError wraps an existing error as a store error.
func WrapStoreError(code ErrorCode, message string, err error) *StoreError {
	return &StoreError{Code: code, Message: message, Cause: err}
}

// WithOperation records the store operation that failed.
func (e *StoreError) WithOperation(op string) *StoreError {
	e.Operation = op
	return e
}

// ProbeError represents a failure to probe a single target. Probe errors
// never abort a scan: the orchestrator logs them and moves on.
type ProbeError struct {
	Code    ErrorCode
	Message string
	Target  string
	Cause   error
}

// Error implements the error interface.
func (e *ProbeError) Error() string {
	if e.Target != "" {
		return fmt.Sprintf("[%s] %s (target: %s)", e.Code, e.Message, e.Target)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying error.
func (e *ProbeError) Unwrap() error {
	return e.Cause
}

// NewProbeError creates a probe error for a specific target.
func NewProbeError(code ErrorCode, message, target string) *ProbeError {
	return &ProbeError{Code: code, Message: message, Target: target}
}

// WrapProbeError wraps an engine error with target information.
func WrapProbeError(code ErrorCode, message, target string, err error) *ProbeError {
	return &ProbeError{Code: code, Message: message, Target: target, Cause: err}
}

// RangeError represents malformed range input. Fatal before any work starts.
type RangeError struct {
	Range   string
	Message string
	Cause   error
}

// Error implements the error interface.
func (e *RangeError) Error() string {
	return fmt.Sprintf("[%s] %s (range: %s)", CodeRangeInvalid, e.Message, e.Range)
}

// Unwrap returns the underlying error.
func (e *RangeError) Unwrap() error {
	return e.Cause
}

// NewRangeError creates an error for an invalid target range.
func NewRangeError(target, message string, err error) *RangeError {
	return &RangeError{Range: target, Message: message, Cause: err}
}

// ConfigError represents configuration-related errors.
type ConfigError struct {
	Field   string
	Message string
	Cause   error
}

// Error implements the error interface.
func (e *ConfigError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("[%s] %s (field: %s)", CodeConfiguration, e.Message, e.Field)
	}
	return fmt.Sprintf("[%s] %s", CodeConfiguration, e.Message)
}

// Unwrap returns the underlying error.
func (e *ConfigError) Unwrap() error {
	return e.Cause
}

// NewConfigError creates a configuration error for a specific field.
func NewConfigError(field, message string) *ConfigError {
	return &ConfigError{Field: field, Message: message}
}

// WrapConfigError wraps an existing error as a configuration error.
func WrapConfigError(message string, err error) *ConfigError {
	return &ConfigError{Message: message, Cause: err}
}

// GetCode extracts the error code from an error if it has one.
func GetCode(err error) ErrorCode {
	var storeErr *StoreError
	if errors.As(err, &storeErr) {
		return storeErr.Code
	}
	var probeErr *ProbeError
	if errors.As(err, &probeErr) {
		return probeErr.Code
	}
	var rangeErr *RangeError
	if errors.As(err, &rangeErr) {
		return CodeRangeInvalid
	}
	var configErr *ConfigError
	if errors.As(err, &configErr) {
		return CodeConfiguration
	}
	return CodeUnknown
}

// IsCode checks whether an error carries a specific error code.
func IsCode(err error, code ErrorCode) bool {
	return GetCode(err) == code
}

// IsProbeFailure reports whether an error is a per-host probe failure,
// which is recoverable and must not abort the scan.
func IsProbeFailure(err error) bool {
	var probeErr *ProbeError
	return errors.As(err, &probeErr)
}

// IsFatal determines if an error should stop the whole scan. Store write
// failures and bad input abort; per-host probe failures never do.
func IsFatal(err error) bool {
	switch GetCode(err) {
	case CodeStoreOpen, CodeStoreQuery, CodeStoreCommit, CodeStoreSchema,
		CodeRangeInvalid, CodeConfiguration:
		return true
	default:
		return false
	}
}
