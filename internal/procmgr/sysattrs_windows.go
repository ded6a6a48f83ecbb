//go:build windows

package procmgr

import "os/exec"

func configureSysProcAttr(_ *exec.Cmd) {}
