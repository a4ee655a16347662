package compose

import (
	"errors"
	"fmt"
	"strings"
)

// ErrComposeFailed is wrapped by every failed compose invocation.
var ErrComposeFailed = errors.New("compose command failed")

// CommandError is a compose invocation that exited non-zero or could not
// start. Stdout and Stderr are kept verbatim.
type CommandError struct {
	Command  string
	Args     []string
	ExitCode int
	Stdout   string
	Stderr   string
	Err      error
}

func (e *CommandError) Error() string {
	msg := strings.TrimSpace(e.Stderr)
	if msg == "" && e.Err != nil {
		msg = e.Err.Error()
	}
	return fmt.Sprintf("%s %s (exit %d): %s", e.Command, strings.Join(e.Args, " "), e.ExitCode, msg)
}

func (e *CommandError) Unwrap() []error {
	return []error{ErrComposeFailed, e.Err}
}
