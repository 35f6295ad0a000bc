package config

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/conneroisu/assetc/internal/errors"
	"github.com/conneroisu/assetc/internal/logging"
)

// ValidationError represents a configuration validation error with suggestions
type ValidationError struct {
	Field       string
	Value       interface{}
	Message     string
	Suggestions []string
}

func (ve *ValidationError) Error() string {
	return fmt.Sprintf("validation error in %s: %s", ve.Field, ve.Message)
}

// ValidationResult holds the result of configuration validation
type ValidationResult struct {
	Errors   []ValidationError
	Warnings []ValidationError
}

// HasErrors returns true if there are any validation errors
func (vr *ValidationResult) HasErrors() bool {
	return len(vr.Errors) > 0
}

// String returns a formatted string of all validation issues
func (vr *ValidationResult) String() string {
	var builder strings.Builder

	if len(vr.Errors) > 0 {
		builder.WriteString("Validation errors:\n")
		for _, err := range vr.Errors {
			builder.WriteString(fmt.Sprintf("  - %s: %s\n", err.Field, err.Message))
			for _, suggestion := range err.Suggestions {
				builder.WriteString(fmt.Sprintf("    hint: %s\n", suggestion))
			}
		}
	}

	if len(vr.Warnings) > 0 {
		builder.WriteString("Validation warnings:\n")
		for _, warning := range vr.Warnings {
			builder.WriteString(fmt.Sprintf("  - %s: %s\n", warning.Field, warning.Message))
		}
	}

	return builder.String()
}

// Validate checks the configuration for use by the dispatcher. Any error is
// returned as a configuration error.
func (c *Config) Validate() error {
	result := c.ValidateWithDetails()
	if !result.HasErrors() {
		return nil
	}

	first := result.Errors[0]
	err := errors.NewConfigError(first.Field + ": " + first.Message)
	if len(result.Errors) > 1 {
		err.WithContext("additional_errors", len(result.Errors)-1)
	}
	return err
}

// ValidateWithDetails performs validation with detailed feedback.
func (c *Config) ValidateWithDetails() *ValidationResult {
	result := &ValidationResult{}

	if len(c.Enabled) == 0 {
		result.Errors = append(result.Errors, ValidationError{
			Field:   "enabled",
			Value:   c.Enabled,
			Message: "you must supply a list of enabled backends",
			Suggestions: []string{
				"Set enabled: [coffee, uglify] in .assetc.yml",
				"Run 'assetc backends' to list the registered backends",
			},
		})
	}

	if len(c.Roots) == 0 {
		result.Errors = append(result.Errors, ValidationError{
			Field:   "roots",
			Message: "at least one source/destination root pair is required",
		})
	}
	for i, r := range c.Roots {
		if !filepath.IsAbs(r.Source) || !filepath.IsAbs(r.Dest) {
			result.Errors = append(result.Errors, ValidationError{
				Field:   fmt.Sprintf("roots[%d]", i),
				Value:   r,
				Message: "root directories must be absolute paths",
			})
		}
	}

	if c.Delta < 0 {
		result.Errors = append(result.Errors, ValidationError{
			Field:   "delta",
			Value:   c.Delta,
			Message: "staleness tolerance cannot be negative",
		})
	}
	if c.Expires < 0 {
		result.Errors = append(result.Errors, ValidationError{
			Field:   "expires",
			Value:   c.Expires,
			Message: "expiry window cannot be negative",
		})
	}

	if c.sortedRoots {
		result.Warnings = append(result.Warnings, ValidationError{
			Field:   "roots",
			Value:   c.Roots,
			Message: "map form roots resolve in sorted order, not the written order; use the list form",
		})
	}

	if len(c.AllowedMethods) == 0 {
		result.Warnings = append(result.Warnings, ValidationError{
			Field:   "allowed_methods",
			Message: "no request method is eligible; every request passes through",
		})
	}

	if c.ResolveIndex != "" && strings.ContainsAny(c.ResolveIndex, `/\`) {
		result.Warnings = append(result.Warnings, ValidationError{
			Field:   "resolve_index",
			Value:   c.ResolveIndex,
			Message: "index file name contains a path separator",
		})
	}

	if c.Server.Port < 0 || c.Server.Port > 65535 {
		result.Errors = append(result.Errors, ValidationError{
			Field:   "server.port",
			Value:   c.Server.Port,
			Message: fmt.Sprintf("port %d is not in valid range 0-65535", c.Server.Port),
			Suggestions: []string{
				"Common development ports: 3000, 8080, 8000",
				"Port 0 allows system to assign an available port",
			},
		})
	}

	if _, err := logging.ParseLevel(c.LogLevel); err != nil {
		result.Errors = append(result.Errors, ValidationError{
			Field:       "log_level",
			Value:       c.LogLevel,
			Message:     err.Error(),
			Suggestions: []string{"Use one of: debug, info, warn, error, silent"},
		})
	}

	return result
}
