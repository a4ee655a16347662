package vcs

import (
	"errors"
	"fmt"
)

var (
	ErrRemoteRequired = errors.New("remote is required")
	ErrNotRepository  = errors.New("destination exists but is not a git repository")
)

// FetchError is a failed clone or pull.
type FetchError struct {
	Op     string // "clone", "pull" or "reclone"
	Remote string
	Path   string
	Err    error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("%s %s into %s: %v", e.Op, e.Remote, e.Path, e.Err)
}

func (e *FetchError) Unwrap() error {
	return e.Err
}

func newFetchError(op, remote, path string, err error) *FetchError {
	return &FetchError{Op: op, Remote: remote, Path: path, Err: err}
}
