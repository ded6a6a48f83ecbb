//go:build windows

package procmgr

import (
	"fmt"
	"os"
	"strings"
	"syscall"
)

// parseSignal maps a case-insensitive signal name to an OS signal.
// Windows cannot deliver SIGTERM/SIGINT to another process, so any
// recognized signal degrades to a hard kill at delivery time.
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

func sendSignal(pid int, _ syscall.Signal) error {
	p, err := os.FindProcess(pid)
	if err != nil {
		return err
	}
	return p.Kill()
}

func killGroup(pid int) {
	p, err := os.FindProcess(pid)
	if err != nil {
		return
	}
	_ = p.Kill()
}
