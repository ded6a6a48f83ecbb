//go:build !windows

package procmgr

import (
	"errors"
	"syscall"
	"testing"
)

func TestParseSignal(t *testing.T) {
	cases := []struct {
		in   string
		sig  syscall.Signal
		name string
	}{
		{"", syscall.SIGTERM, "SIGTERM"},
		{"SIGTERM", syscall.SIGTERM, "SIGTERM"},
		{"term", syscall.SIGTERM, "SIGTERM"},
		{"SIGKILL", syscall.SIGKILL, "SIGKILL"},
		{"kill", syscall.SIGKILL, "SIGKILL"},
		{"SIGINT", syscall.SIGINT, "SIGINT"},
		{"Int", syscall.SIGINT, "SIGINT"},
	}
	for _, c := range cases {
		sig, name, err := parseSignal(c.in)
		if err != nil {
			t.Fatalf("parseSignal(%q): %v", c.in, err)
		}
		if sig != c.sig || name != c.name {
			t.Fatalf("parseSignal(%q) = %v, %s", c.in, sig, name)
		}
	}
}

func TestParseSignalUnknown(t *testing.T) {
	for _, in := range []string{"SIGUSR1", "HUP", "9", "sigterm2"} {
		if _, _, err := parseSignal(in); !errors.Is(err, ErrBadSignal) {
			t.Fatalf("parseSignal(%q): expected ErrBadSignal, got %v", in, err)
		}
	}
}
