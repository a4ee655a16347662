package docker

import (
	"errors"
	"fmt"
)

// =============================================================================
// Error Types
// =============================================================================

var (
	// Image errors
	ErrImageNotFound = errors.New("image not found")
	ErrBuildFailed   = errors.New("image build failed")
	ErrContextFailed = errors.New("failed to prepare build context")

	// Registry errors
	ErrLoginFailed = errors.New("registry login failed")
	ErrPushFailed  = errors.New("image push failed")

	// Connection errors
	ErrConnectionFailed = errors.New("docker connection failed")
)

// DockerError wraps runtime tool errors (remove, login, push) with context.
type DockerError struct {
	Op      string // Operation that failed
	Entity  string // Entity type (image, registry)
	ID      string // Entity ID if applicable
	Message string
	Err     error
}

func (e *DockerError) Error() string {
	if e.ID != "" {
		return fmt.Sprintf("%s %s %s: %s", e.Op, e.Entity, e.ID, e.Message)
	}
	if e.Entity != "" {
		return fmt.Sprintf("%s %s: %s", e.Op, e.Entity, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Op, e.Message)
}

func (e *DockerError) Unwrap() error {
	return e.Err
}

// NewDockerError creates a new DockerError.
func NewDockerError(op, entity, id, message string, err error) *DockerError {
	return &DockerError{
		Op:      op,
		Entity:  entity,
		ID:      id,
		Message: message,
		Err:     err,
	}
}

// BuildError is a failed image build. Output holds the build tool's log
// verbatim, up to and including the failing step.
type BuildError struct {
	Ref    string
	Output string
	Err    error
}

func (e *BuildError) Error() string {
	return fmt.Sprintf("build %s: %v", e.Ref, e.Err)
}

func (e *BuildError) Unwrap() error {
	return e.Err
}

// Is lets errors.Is(err, ErrBuildFailed) match any BuildError.
func (e *BuildError) Is(target error) bool {
	return target == ErrBuildFailed
}
