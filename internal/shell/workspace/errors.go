package workspace

import (
	"errors"
	"fmt"
)

// ErrOutsideWorkspace is returned when a derived path would escape its
// storage directory.
var ErrOutsideWorkspace = errors.New("path escapes workspace")

// IOError is a filesystem failure inside the workspace.
type IOError struct {
	Op   string // e.g., "WriteDockerfile", "RemoveSource"
	Path string
	Err  error
}

func (e *IOError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Op, e.Path, e.Err)
}

func (e *IOError) Unwrap() error {
	return e.Err
}

func newIOError(op, path string, err error) *IOError {
	return &IOError{Op: op, Path: path, Err: err}
}
