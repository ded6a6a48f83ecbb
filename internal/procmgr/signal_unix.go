//go:build !windows

package procmgr

import (
	"fmt"
	"strings"
	"syscall"
)

// parseSignal maps a case-insensitive signal name to an OS signal.
// Empty input defaults to SIGTERM.
func parseSignal(name string) (syscall.Signal, string, error) {
	switch strings.ToUpper(strings.TrimSpace(name)) {
	case "", "SIGTERM", "TERM":
		return syscall.SIGTERM, "SIGTERM", nil
	case "SIGKILL", "KILL":
		return syscall.SIGKILL, "SIGKILL", nil
	case "SIGINT", "INT":
		return syscall.SIGINT, "SIGINT", nil
	default:
		return 0, "", fmt.Errorf("%w: %s", ErrBadSignal, name)
	}
}

// sendSignal delivers a signal to a single process.
func sendSignal(pid int, sig syscall.Signal) error {
	return syscall.Kill(pid, sig)
}

// killGroup force-kills the whole process group. Children are started with
// Setpgid, so -pid reaches the group leader and its descendants.
func killGroup(pid int) {
	_ = syscall.Kill(-pid, syscall.SIGKILL)
}
