//go:build !windows

package procmgr

import (
	"os/exec"
	"syscall"
)

// configureSysProcAttr places the child in its own process group so group
// signaling (timeout kill) reaches any grandchildren as well.
func configureSysProcAttr(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
}
