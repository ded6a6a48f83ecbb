package metrics

import (
	"context"
	"os"
	"strconv"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

func gaugeCount(t *testing.T, reg *prometheus.Registry, name string) int {
	t.Helper()
	mfs, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather: %v", err)
	}
	for _, mf := range mfs {
		if mf.GetName() == name {
			return len(mf.GetMetric())
		}
	}
	return 0
}

func TestResourceSamplerRegister(t *testing.T) {
	s := NewResourceSampler(time.Second)
	reg := prometheus.NewRegistry()
	if err := s.Register(reg); err != nil {
		t.Fatalf("register: %v", err)
	}
	if err := s.Register(reg); err != nil {
		t.Fatalf("re-register: %v", err)
	}
}

func TestResourceSamplerSampleOwnProcess(t *testing.T) {
	s := NewResourceSampler(time.Second)
	reg := prometheus.NewRegistry()
	if err := s.Register(reg); err != nil {
		t.Fatalf("register: %v", err)
	}

	// Sample this test binary's own PID.
	s.sample(map[string]int{"self": os.Getpid()})
	if n := gaugeCount(t, reg, "devboxd_process_memory_mb"); n != 1 {
		t.Fatalf("expected 1 memory series, got %d", n)
	}
	if n := gaugeCount(t, reg, "devboxd_process_num_threads"); n != 1 {
		t.Fatalf("expected 1 thread series, got %d", n)
	}

	// Once the process disappears from the running set, its series go away.
	s.sample(map[string]int{})
	if n := gaugeCount(t, reg, "devboxd_process_memory_mb"); n != 0 {
		t.Fatalf("expected stale series removed, got %d", n)
	}
}

func TestResourceSamplerSkipsDeadPID(t *testing.T) {
	s := NewResourceSampler(time.Second)
	reg := prometheus.NewRegistry()
	if err := s.Register(reg); err != nil {
		t.Fatalf("register: %v", err)
	}
	// An implausible PID must not create series or panic.
	s.sample(map[string]int{"ghost": 1 << 22})
	if n := gaugeCount(t, reg, "devboxd_process_memory_mb"); n != 0 {
		t.Fatalf("expected no series for dead pid, got %d", n)
	}
}

func TestResourceSamplerStartStop(t *testing.T) {
	s := NewResourceSampler(10 * time.Millisecond)
	reg := prometheus.NewRegistry()
	if err := s.Register(reg); err != nil {
		t.Fatalf("register: %v", err)
	}
	s.Start(context.Background(), func() map[string]int {
		return map[string]int{strconv.Itoa(os.Getpid()): os.Getpid()}
	})
	time.Sleep(50 * time.Millisecond)
	s.Stop()
	if n := gaugeCount(t, reg, "devboxd_process_num_threads"); n == 0 {
		t.Fatalf("expected sampling loop to record series")
	}
}
