package gitops

import (
	"errors"
	"os/exec"
	"strings"
	"testing"

	"github.com/loykin/devboxd/internal/fsops"
	"github.com/loykin/devboxd/internal/procmgr"
)

func newService(t *testing.T) (*Service, *fsops.Service) {
	t.Helper()
	if _, err := exec.LookPath("git"); err != nil {
		t.Skip("git not installed")
	}
	files, err := fsops.New(t.TempDir())
	if err != nil {
		t.Fatalf("fsops: %v", err)
	}
	return New(procmgr.New(), files), files
}

// initRepo creates a repository with one commit in the workspace-relative
// dir and returns the service.
func initRepo(t *testing.T, svc *Service, files *fsops.Service, dir string) {
	t.Helper()
	if _, err := svc.run("", "init", "-b", "main", dir); err != nil {
		t.Fatalf("git init: %v", err)
	}
	for _, kv := range [][]string{
		{"user.email", "dev@example.com"},
		{"user.name", "dev"},
	} {
		if _, err := svc.run(dir, "config", kv[0], kv[1]); err != nil {
			t.Fatalf("git config: %v", err)
		}
	}
	if err := files.Write(dir+"/README.md", []byte("# test\n")); err != nil {
		t.Fatalf("write: %v", err)
	}
	if _, err := svc.run(dir, "add", "."); err != nil {
		t.Fatalf("git add: %v", err)
	}
	if _, err := svc.run(dir, "commit", "-m", "initial"); err != nil {
		t.Fatalf("git commit: %v", err)
	}
}

func TestStatusCleanAndDirty(t *testing.T) {
	svc, files := newService(t)
	initRepo(t, svc, files, "repo")

	lines, err := svc.Status("repo")
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	if len(lines) != 0 {
		t.Fatalf("expected clean status, got %v", lines)
	}

	if err := files.Write("repo/dirty.txt", []byte("x")); err != nil {
		t.Fatalf("write: %v", err)
	}
	lines, err = svc.Status("repo")
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	if len(lines) != 1 || !strings.Contains(lines[0], "dirty.txt") {
		t.Fatalf("expected untracked entry, got %v", lines)
	}
}

func TestBranchAndCheckout(t *testing.T) {
	svc, files := newService(t)
	initRepo(t, svc, files, "repo")

	branch, err := svc.Branch("repo")
	if err != nil {
		t.Fatalf("branch: %v", err)
	}
	if branch != "main" {
		t.Fatalf("expected main, got %q", branch)
	}

	if _, err := svc.run("repo", "branch", "feature"); err != nil {
		t.Fatalf("git branch: %v", err)
	}
	if err := svc.Checkout("repo", "feature"); err != nil {
		t.Fatalf("checkout: %v", err)
	}
	branch, err = svc.Branch("repo")
	if err != nil {
		t.Fatalf("branch: %v", err)
	}
	if branch != "feature" {
		t.Fatalf("expected feature, got %q", branch)
	}
}

func TestCheckoutRequiresRef(t *testing.T) {
	svc, files := newService(t)
	initRepo(t, svc, files, "repo")
	if err := svc.Checkout("repo", "  "); err == nil {
		t.Fatalf("expected error for empty ref")
	}
}

func TestCloneLocalRepoAndPull(t *testing.T) {
	svc, files := newService(t)
	initRepo(t, svc, files, "origin")

	src, err := files.Resolve("origin")
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if err := svc.Clone(src, "clone"); err != nil {
		t.Fatalf("clone: %v", err)
	}
	data, err := files.Read("clone/README.md")
	if err != nil || !strings.Contains(string(data), "# test") {
		t.Fatalf("clone content wrong: %q %v", data, err)
	}

	if err := svc.Pull("clone"); err != nil {
		t.Fatalf("pull: %v", err)
	}
}

func TestCloneRequiresURL(t *testing.T) {
	svc, _ := newService(t)
	if err := svc.Clone("", "x"); err == nil {
		t.Fatalf("expected error for empty url")
	}
}

func TestRunRejectsEscapingDir(t *testing.T) {
	svc, _ := newService(t)
	if _, err := svc.Status("../outside"); !errors.Is(err, fsops.ErrPathEscape) {
		t.Fatalf("expected ErrPathEscape, got %v", err)
	}
}

func TestStatusOutsideRepo(t *testing.T) {
	svc, _ := newService(t)
	if _, err := svc.Status(""); err == nil {
		t.Fatalf("expected error outside a repository")
	}
}
