package errors

import (
	"errors"
)

// Wrap wraps an error with additional context, creating an AssetError if the
// input is not already one. An existing AssetError keeps its backend and path.
func Wrap(err error, errType ErrorType, code, message string) *AssetError {
	if err == nil {
		return nil
	}

	var ae *AssetError
	if errors.As(err, &ae) {
		return &AssetError{
			Type:    errType,
			Code:    code,
			Message: message,
			Cause:   ae,
			Backend: ae.Backend,
			Path:    ae.Path,
			Context: ae.Context,
		}
	}

	return &AssetError{
		Type:    errType,
		Code:    code,
		Message: message,
		Cause:   err,
	}
}

// WrapBackend wraps an error as a backend compile error.
func WrapBackend(err error, backend, message string) *AssetError {
	if err == nil {
		return nil
	}
	var ae *AssetError
	if errors.As(err, &ae) && ae.Type == ErrorTypeBackend {
		if ae.Backend == "" {
			ae.Backend = backend
		}
		return ae
	}
	e := Wrap(err, ErrorTypeBackend, ErrCodeBackendCompile, message)
	e.Backend = backend

	return e
}

// WrapIO wraps an error as an I/O error for the given path.
func WrapIO(err error, code, message, path string) *AssetError {
	e := Wrap(err, ErrorTypeIO, code, message)
	if e != nil {
		e.Path = path
	}

	return e
}

// Annotate attaches backend and request path to err, converting foreign
// errors into internal AssetErrors. Existing fields are not overwritten.
func Annotate(err error, backend, path string) error {
	if err == nil {
		return nil
	}

	var ae *AssetError
	if !errors.As(err, &ae) {
		ae = &AssetError{
			Type:    ErrorTypeInternal,
			Code:    ErrCodeInternal,
			Message: err.Error(),
			Cause:   err,
		}
	}
	if ae.Backend == "" {
		ae.Backend = backend
	}
	if ae.Path == "" {
		ae.Path = path
	}

	return ae
}

// LogFields returns key/value pairs suitable for the structured logger.
func LogFields(err error) []interface{} {
	var ae *AssetError
	if !errors.As(err, &ae) {
		return nil
	}

	fields := []interface{}{"error_type", string(ae.Type), "error_code", ae.Code}
	if ae.Backend != "" {
		fields = append(fields, "backend", ae.Backend)
	}
	if ae.Path != "" {
		fields = append(fields, "path", ae.Path)
	}
	for k, v := range ae.Context {
		fields = append(fields, k, v)
	}

	return fields
}
