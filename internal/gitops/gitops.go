// Package gitops wraps the git porcelain by shelling out through the
// synchronous executor. Repositories live under the workspace root.
package gitops

import (
	"fmt"
	"strings"

	"github.com/loykin/devboxd/internal/fsops"
	"github.com/loykin/devboxd/internal/procmgr"
)

const gitTimeoutSeconds = 120

// Service runs git commands inside workspace directories.
type Service struct {
	mgr   *procmgr.Manager
	files *fsops.Service
}

func New(mgr *procmgr.Manager, files *fsops.Service) *Service {
	return &Service{mgr: mgr, files: files}
}

// run executes git with args in the workspace-relative dir.
func (s *Service) run(dir string, args ...string) (procmgr.SyncResult, error) {
	cwd := s.files.Root()
	if dir != "" {
		abs, err := s.files.Resolve(dir)
		if err != nil {
			return procmgr.SyncResult{}, err
		}
		cwd = abs
	}
	res, err := s.mgr.ExecSync(procmgr.ExecSpec{
		Command:        "git",
		Args:           args,
		Cwd:            cwd,
		TimeoutSeconds: gitTimeoutSeconds,
	})
	if err != nil {
		return res, err
	}
	if res.ExitCode != 0 {
		return res, fmt.Errorf("git %s: %s", args[0], strings.TrimSpace(res.Stderr))
	}
	return res, nil
}

// Clone clones url into the workspace-relative dir.
func (s *Service) Clone(url, dir string) error {
	if strings.TrimSpace(url) == "" {
		return fmt.Errorf("repository url is required")
	}
	args := []string{"clone", url}
	if dir != "" {
		abs, err := s.files.Resolve(dir)
		if err != nil {
			return err
		}
		args = append(args, abs)
	}
	_, err := s.run("", args...)
	return err
}

// Pull fast-forwards the repository at dir.
func (s *Service) Pull(dir string) error {
	_, err := s.run(dir, "pull", "--ff-only")
	return err
}

// Checkout switches the repository at dir to ref.
func (s *Service) Checkout(dir, ref string) error {
	if strings.TrimSpace(ref) == "" {
		return fmt.Errorf("ref is required")
	}
	_, err := s.run(dir, "checkout", ref)
	return err
}

// Status returns porcelain status lines for the repository at dir.
func (s *Service) Status(dir string) ([]string, error) {
	res, err := s.run(dir, "status", "--porcelain")
	if err != nil {
		return nil, err
	}
	out := strings.TrimRight(res.Stdout, "\n")
	if out == "" {
		return []string{}, nil
	}
	return strings.Split(out, "\n"), nil
}

// Branch returns the current branch name for the repository at dir.
func (s *Service) Branch(dir string) (string, error) {
	res, err := s.run(dir, "rev-parse", "--abbrev-ref", "HEAD")
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(res.Stdout), nil
}
