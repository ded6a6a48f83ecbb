package procmgr

import (
	"fmt"
	"os"
	"os/exec"
	"strings"
)

// ExecSpec describes a command to execute inside the devbox.
// It is shared by the async launcher and the synchronous executor.
type ExecSpec struct {
	Command        string            `json:"command"`
	Args           []string          `json:"args,omitempty"`
	Cwd            string            `json:"cwd,omitempty"`
	Env            map[string]string `json:"env,omitempty"`
	Shell          string            `json:"shell,omitempty"`
	TimeoutSeconds int               `json:"timeout,omitempty"`
}

// Validate checks request-level invariants before any process is spawned.
func (s *ExecSpec) Validate() error {
	if strings.TrimSpace(s.Command) == "" {
		return ErrEmptyCommand
	}
	return nil
}

// BuildCommand constructs an *exec.Cmd for the spec.
// Resolution order: an explicit shell wraps the whole command line via -c;
// explicit args are used verbatim; otherwise a command string containing
// whitespace is tokenized with strings.Fields (no quoting support).
func (s *ExecSpec) BuildCommand() *exec.Cmd {
	cmdStr := strings.TrimSpace(s.Command)
	var cmd *exec.Cmd
	switch {
	case s.Shell != "":
		line := cmdStr
		if len(s.Args) > 0 {
			line = cmdStr + " " + strings.Join(s.Args, " ")
		}
		// ok: intentional execution of a caller-supplied command
		// #nosec G204
		cmd = exec.Command(s.Shell, "-c", line)
	case len(s.Args) > 0:
		// #nosec G204
		cmd = exec.Command(cmdStr, s.Args...)
	case strings.ContainsAny(cmdStr, " \t"):
		parts := strings.Fields(cmdStr)
		// #nosec G204
		cmd = exec.Command(parts[0], parts[1:]...)
	default:
		// #nosec G204
		cmd = exec.Command(cmdStr)
	}
	if s.Cwd != "" {
		cmd.Dir = s.Cwd
	}
	if len(s.Env) > 0 {
		cmd.Env = s.mergedEnv()
	}
	configureSysProcAttr(cmd)
	return cmd
}

// CommandLine returns the display form of the command for listings.
func (s *ExecSpec) CommandLine() string {
	if len(s.Args) == 0 {
		return strings.TrimSpace(s.Command)
	}
	return strings.TrimSpace(s.Command) + " " + strings.Join(s.Args, " ")
}

// mergedEnv layers the spec overrides on top of the parent environment.
func (s *ExecSpec) mergedEnv() []string {
	env := os.Environ()
	for k, v := range s.Env {
		env = append(env, fmt.Sprintf("%s=%s", k, v))
	}
	return env
}
