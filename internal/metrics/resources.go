package metrics

import (
	"context"
	"errors"
	"runtime"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/shirou/gopsutil/v4/process"
)

// ResourceSampler periodically samples CPU and memory usage of managed
// processes via gopsutil and exposes them as per-process gauges. Samples
// for processes that have exited are removed on the next tick.
type ResourceSampler struct {
	interval time.Duration
	stopCh   chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup

	seen map[string]struct{}

	cpuPercent *prometheus.GaugeVec
	memoryMB   *prometheus.GaugeVec
	numThreads *prometheus.GaugeVec
	numFDs     *prometheus.GaugeVec
}

// NewResourceSampler builds a sampler. An interval of zero means 5s.
func NewResourceSampler(interval time.Duration) *ResourceSampler {
	if interval <= 0 {
		interval = 5 * time.Second
	}
	labels := []string{"process_id"}
	return &ResourceSampler{
		interval: interval,
		stopCh:   make(chan struct{}),
		seen:     make(map[string]struct{}),
		cpuPercent: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "devboxd",
			Subsystem: "process",
			Name:      "cpu_percent",
			Help:      "CPU usage percentage of a managed process.",
		}, labels),
		memoryMB: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "devboxd",
			Subsystem: "process",
			Name:      "memory_mb",
			Help:      "Resident memory in MB of a managed process.",
		}, labels),
		numThreads: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "devboxd",
			Subsystem: "process",
			Name:      "num_threads",
			Help:      "Thread count of a managed process.",
		}, labels),
		numFDs: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "devboxd",
			Subsystem: "process",
			Name:      "num_fds",
			Help:      "Open file descriptors of a managed process (Unix only).",
		}, labels),
	}
}

// Register registers the sampler's gauges with r, tolerating duplicates.
func (s *ResourceSampler) Register(r prometheus.Registerer) error {
	cs := []prometheus.Collector{s.cpuPercent, s.memoryMB, s.numThreads}
	if runtime.GOOS != "windows" {
		cs = append(cs, s.numFDs)
	}
	for _, c := range cs {
		if err := r.Register(c); err != nil {
			var are prometheus.AlreadyRegisteredError
			if errors.As(err, &are) {
				continue
			}
			return err
		}
	}
	return nil
}

// Start launches the sampling loop. running reports the currently
// running processes as id to PID.
func (s *ResourceSampler) Start(ctx context.Context, running func() map[string]int) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-s.stopCh:
				return
			case <-ticker.C:
				s.sample(running())
			}
		}
	}()
}

// Stop terminates the sampling loop and waits for it to exit.
func (s *ResourceSampler) Stop() {
	s.stopOnce.Do(func() { close(s.stopCh) })
	s.wg.Wait()
}

func (s *ResourceSampler) sample(running map[string]int) {
	for id := range s.seen {
		if _, ok := running[id]; !ok {
			s.cpuPercent.DeleteLabelValues(id)
			s.memoryMB.DeleteLabelValues(id)
			s.numThreads.DeleteLabelValues(id)
			s.numFDs.DeleteLabelValues(id)
			delete(s.seen, id)
		}
	}
	for id, pid := range running {
		p, err := process.NewProcess(int32(pid))
		if err != nil {
			continue
		}
		s.seen[id] = struct{}{}
		if cpu, err := p.CPUPercent(); err == nil {
			s.cpuPercent.WithLabelValues(id).Set(cpu)
		}
		if mem, err := p.MemoryInfo(); err == nil && mem != nil {
			s.memoryMB.WithLabelValues(id).Set(float64(mem.RSS) / 1024 / 1024)
		}
		if th, err := p.NumThreads(); err == nil {
			s.numThreads.WithLabelValues(id).Set(float64(th))
		}
		if runtime.GOOS != "windows" {
			if fds, err := p.NumFDs(); err == nil {
				s.numFDs.WithLabelValues(id).Set(float64(fds))
			}
		}
	}
}
