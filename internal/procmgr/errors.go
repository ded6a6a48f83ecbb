package procmgr

import (
	"errors"
	"fmt"
)

var (
	// ErrEmptyCommand is returned when an exec request carries no command.
	ErrEmptyCommand = errors.New("command is required")
	// ErrNotFound is returned when a process ID is unknown to the registry.
	ErrNotFound = errors.New("process not found")
	// ErrNotRunning is returned when an operation requires a running process
	// but the target has already reached a terminal status.
	ErrNotRunning = errors.New("process is not running")
	// ErrBadSignal is returned for signal names outside the supported set.
	ErrBadSignal = errors.New("unrecognized signal")
)

// TimeoutError reports that a synchronous execution exceeded its deadline.
// The child is force-killed and reaped before this error is returned.
type TimeoutError struct {
	Seconds int
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("execution timeout after %d seconds", e.Seconds)
}

// SpawnError wraps an OS-level start failure (command not found, bad cwd).
type SpawnError struct {
	Err error
}

func (e *SpawnError) Error() string { return "failed to start command: " + e.Err.Error() }
func (e *SpawnError) Unwrap() error { return e.Err }
