// Package errors defines the structured error taxonomy used across the
// compile pipeline. Every per-backend failure is an *AssetError carrying a
// type, a stable code, and the backend and request path it belongs to, so the
// dispatcher can decide whether the failure is soft (try the next backend) or
// hard (log it and let the request continue).
package errors

import (
	"errors"
	"fmt"
	"strings"
)

// ErrorType represents different categories of errors.
type ErrorType string

const (
	ErrorTypeConfig    ErrorType = "config"
	ErrorTypeNoMatch   ErrorType = "no_match"
	ErrorTypeNotFound  ErrorType = "not_found"
	ErrorTypeStaleness ErrorType = "staleness"
	ErrorTypeBackend   ErrorType = "backend"
	ErrorTypeIO        ErrorType = "io"
	ErrorTypeInternal  ErrorType = "internal"
)

// Error codes.
const (
	ErrCodeConfiguration    = "CONFIGURATION"
	ErrCodeNoMatch          = "NO_MATCH"
	ErrCodeSourceNotFound   = "SOURCE_NOT_FOUND"
	ErrCodeStalenessCheck   = "STALENESS_CHECK"
	ErrCodeSourceVanished   = "SOURCE_VANISHED"
	ErrCodeBackendCompile   = "BACKEND_COMPILE"
	ErrCodeBackendExecution = "BACKEND_EXECUTION"
	ErrCodeRead             = "READ"
	ErrCodeWrite            = "WRITE"
	ErrCodeMkdir            = "MKDIR"
	ErrCodeInternal         = "INTERNAL"
)

// AssetError is a structured error type with context.
type AssetError struct {
	Type    ErrorType
	Code    string
	Message string
	Cause   error
	Backend string
	Path    string
	Context map[string]interface{}
}

// Error implements the error interface.
func (e *AssetError) Error() string {
	var parts []string

	if e.Code != "" {
		parts = append(parts, fmt.Sprintf("[%s]", e.Code))
	}
	if e.Backend != "" {
		parts = append(parts, "backend:"+e.Backend)
	}
	if e.Path != "" {
		parts = append(parts, e.Path)
	}
	parts = append(parts, e.Message)

	result := strings.Join(parts, " ")
	if e.Cause != nil {
		result += fmt.Sprintf(": %v", e.Cause)
	}

	return result
}

// Unwrap returns the underlying cause error.
func (e *AssetError) Unwrap() error {
	return e.Cause
}

// Is matches another *AssetError with the same type and code.
func (e *AssetError) Is(target error) bool {
	var t *AssetError
	if errors.As(target, &t) {
		return e.Type == t.Type && e.Code == t.Code
	}

	return false
}

// WithContext adds context information to the error.
func (e *AssetError) WithContext(key string, value interface{}) *AssetError {
	if e.Context == nil {
		e.Context = make(map[string]interface{})
	}
	e.Context[key] = value

	return e
}

// WithBackend records the backend the error belongs to.
func (e *AssetError) WithBackend(id string) *AssetError {
	e.Backend = id

	return e
}

// WithPath records the file or request path the error concerns.
func (e *AssetError) WithPath(path string) *AssetError {
	e.Path = path

	return e
}

// Sentinels for errors.Is comparisons.
var (
	ErrConfiguration    = &AssetError{Type: ErrorTypeConfig, Code: ErrCodeConfiguration}
	ErrNoMatch          = &AssetError{Type: ErrorTypeNoMatch, Code: ErrCodeNoMatch}
	ErrSourceNotFound   = &AssetError{Type: ErrorTypeNotFound, Code: ErrCodeSourceNotFound}
	ErrStalenessCheck   = &AssetError{Type: ErrorTypeStaleness, Code: ErrCodeStalenessCheck}
	ErrSourceVanished   = &AssetError{Type: ErrorTypeStaleness, Code: ErrCodeSourceVanished}
	ErrBackendCompile   = &AssetError{Type: ErrorTypeBackend, Code: ErrCodeBackendCompile}
	ErrBackendExecution = &AssetError{Type: ErrorTypeBackend, Code: ErrCodeBackendExecution}
	ErrWrite            = &AssetError{Type: ErrorTypeIO, Code: ErrCodeWrite}
)

// NewConfigError creates a configuration error. Configuration errors are
// fatal at setup.
func NewConfigError(message string) *AssetError {
	return &AssetError{
		Type:    ErrorTypeConfig,
		Code:    ErrCodeConfiguration,
		Message: message,
	}
}

// NewConfigErrorf creates a configuration error with a formatted message.
func NewConfigErrorf(format string, args ...interface{}) *AssetError {
	return NewConfigError(fmt.Sprintf(format, args...))
}

// NewNoMatchError reports that nothing matched the request.
func NewNoMatchError(message string) *AssetError {
	return &AssetError{
		Type:    ErrorTypeNoMatch,
		Code:    ErrCodeNoMatch,
		Message: message,
	}
}

// NewSourceNotFoundError reports that no candidate source exists.
func NewSourceNotFoundError(candidates []string) *AssetError {
	e := &AssetError{
		Type:    ErrorTypeNotFound,
		Code:    ErrCodeSourceNotFound,
		Message: "no matching sources",
	}
	if len(candidates) > 0 {
		e.WithContext("candidates", candidates)
	}

	return e
}

// NewStalenessError wraps an unexpected stat failure.
func NewStalenessError(code, message string, cause error) *AssetError {
	return &AssetError{
		Type:    ErrorTypeStaleness,
		Code:    code,
		Message: message,
		Cause:   cause,
	}
}

// NewBackendError creates a backend compile or execution error.
func NewBackendError(code, message string, cause error) *AssetError {
	return &AssetError{
		Type:    ErrorTypeBackend,
		Code:    code,
		Message: message,
		Cause:   cause,
	}
}

// NewIOError creates an I/O error.
func NewIOError(code, message string, cause error) *AssetError {
	return &AssetError{
		Type:    ErrorTypeIO,
		Code:    code,
		Message: message,
		Cause:   cause,
	}
}

// IsSoft reports whether err lets the dispatcher move on silently: nothing
// matched, or no source exists for this backend.
func IsSoft(err error) bool {
	var ae *AssetError
	if errors.As(err, &ae) {
		return ae.Type == ErrorTypeNoMatch || ae.Type == ErrorTypeNotFound
	}

	return false
}

// IsHard reports whether err is a failure that must be surfaced in the logs.
func IsHard(err error) bool {
	return err != nil && !IsSoft(err)
}

// IsConfigError checks if an error is configuration-related.
func IsConfigError(err error) bool {
	return TypeOf(err) == ErrorTypeConfig
}

// TypeOf returns the error type, or ErrorTypeInternal for foreign errors.
func TypeOf(err error) ErrorType {
	if err == nil {
		return ""
	}
	var ae *AssetError
	if errors.As(err, &ae) {
		return ae.Type
	}

	return ErrorTypeInternal
}

// CodeOf returns the error code, or ErrCodeInternal for foreign errors.
func CodeOf(err error) string {
	if err == nil {
		return ""
	}
	var ae *AssetError
	if errors.As(err, &ae) {
		return ae.Code
	}

	return ErrCodeInternal
}
