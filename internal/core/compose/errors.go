// Package compose renders Applications into compose manifests and checks
// manifests with compose-go.
// This is part of the Functional Core - all functions are pure with no I/O.
package compose

import (
	"errors"
	"fmt"
)

// =============================================================================
// Error Types
// =============================================================================

var (
	// Input validation errors
	ErrEmptyInput = errors.New("compose manifest is empty")

	// YAML parsing errors
	ErrInvalidYAML = errors.New("invalid YAML syntax")

	// Compose structure errors
	ErrNoServices        = errors.New("compose manifest must define at least one service")
	ErrServiceNoImage    = errors.New("service must have an image")
	ErrUndefinedVolume   = errors.New("service refers to an undefined volume")
	ErrInvalidManifest   = errors.New("compose manifest rejected by loader")
	ErrVersionMismatch   = errors.New("manifest version does not match application")
	ErrServiceSetChanged = errors.New("manifest services do not match application")
)

// ParseError wraps errors with context about where parsing failed.
type ParseError struct {
	Field   string // e.g., "services.web.volumes"
	Message string
	Err     error
}

func (e *ParseError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("%s: %s", e.Field, e.Message)
	}
	return e.Message
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

// NewParseError creates a new ParseError.
func NewParseError(field, message string, err error) *ParseError {
	return &ParseError{
		Field:   field,
		Message: message,
		Err:     err,
	}
}
