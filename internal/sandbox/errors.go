package sandbox

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrCommandFailed is returned when a sandboxed command exits non-zero.
	ErrCommandFailed = errors.New("command failed")
	// ErrSandboxUnavailable is returned when the runtime cannot spawn or the
	// dev server dies.
	ErrSandboxUnavailable = errors.New("sandbox unavailable")
	// ErrReadyTimeout is returned when the dev server never reports ready.
	ErrReadyTimeout = fmt.Errorf("%w: timed out waiting for dev server", ErrSandboxUnavailable)
	// ErrSuperseded is returned by waits on a session replaced by a newer build.
	ErrSuperseded = errors.New("session superseded")
)

// CommandError reports a command that ran and failed.
type CommandError struct {
	Command  string
	ExitCode int
	Output   string
}

func (e *CommandError) Error() string {
	return fmt.Sprintf("command %q exited with code %d", e.Command, e.ExitCode)
}

func (e *CommandError) Unwrap() error {
	return ErrCommandFailed
}

// Tail returns the last n lines of the captured output.
func (e *CommandError) Tail(n int) string {
	lines := strings.Split(strings.TrimRight(e.Output, "\n"), "\n")
	if len(lines) > n {
		lines = lines[len(lines)-n:]
	}
	return strings.Join(lines, "\n")
}
