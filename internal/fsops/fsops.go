// Package fsops provides workspace-rooted file operations for the devbox.
// Every path is resolved against the workspace root; traversal outside the
// root is rejected before any filesystem access.
package fsops

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// ErrPathEscape is returned when a request path resolves outside the
// workspace root.
var ErrPathEscape = errors.New("path escapes workspace root")

// Entry is one directory listing item.
type Entry struct {
	Name    string    `json:"name"`
	Path    string    `json:"path"`
	IsDir   bool      `json:"isDir"`
	Size    int64     `json:"size"`
	ModTime time.Time `json:"modTime"`
}

// Service performs file operations rooted at a workspace directory.
type Service struct {
	root string
}

func New(root string) (*Service, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(abs, 0o750); err != nil {
		return nil, err
	}
	return &Service{root: abs}, nil
}

// Root returns the absolute workspace root.
func (s *Service) Root() string { return s.root }

// Resolve turns a request path into an absolute path under the root.
// Absolute request paths and ".." traversal that leave the root fail with
// ErrPathEscape.
func (s *Service) Resolve(p string) (string, error) {
	if filepath.IsAbs(p) {
		return "", ErrPathEscape
	}
	abs := filepath.Clean(filepath.Join(s.root, p))
	if abs != s.root && !strings.HasPrefix(abs, s.root+string(filepath.Separator)) {
		return "", ErrPathEscape
	}
	return abs, nil
}

func (s *Service) Read(p string) ([]byte, error) {
	abs, err := s.Resolve(p)
	if err != nil {
		return nil, err
	}
	// ok: safe path checked
	return os.ReadFile(abs) // #nosec G304
}

// Write stores data at p, creating parent directories as needed.
func (s *Service) Write(p string, data []byte) error {
	abs, err := s.Resolve(p)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(abs), 0o750); err != nil {
		return err
	}
	return os.WriteFile(abs, data, 0o640)
}

func (s *Service) List(p string) ([]Entry, error) {
	abs, err := s.Resolve(p)
	if err != nil {
		return nil, err
	}
	dirents, err := os.ReadDir(abs)
	if err != nil {
		return nil, err
	}
	entries := make([]Entry, 0, len(dirents))
	for _, de := range dirents {
		info, err := de.Info()
		if err != nil {
			continue
		}
		rel, _ := filepath.Rel(s.root, filepath.Join(abs, de.Name()))
		entries = append(entries, Entry{
			Name:    de.Name(),
			Path:    rel,
			IsDir:   de.IsDir(),
			Size:    info.Size(),
			ModTime: info.ModTime(),
		})
	}
	return entries, nil
}

// Move renames src to dst, creating dst's parent directories as needed.
func (s *Service) Move(src, dst string) error {
	absSrc, err := s.Resolve(src)
	if err != nil {
		return err
	}
	absDst, err := s.Resolve(dst)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(absDst), 0o750); err != nil {
		return err
	}
	return os.Rename(absSrc, absDst)
}

// Delete removes a file or directory tree. Deleting the root itself is
// rejected.
func (s *Service) Delete(p string) error {
	abs, err := s.Resolve(p)
	if err != nil {
		return err
	}
	if abs == s.root {
		return ErrPathEscape
	}
	return os.RemoveAll(abs)
}
