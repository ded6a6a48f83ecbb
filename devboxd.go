package devboxd

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/loykin/devboxd/internal/broadcast"
	cfg "github.com/loykin/devboxd/internal/config"
	"github.com/loykin/devboxd/internal/fsops"
	"github.com/loykin/devboxd/internal/gitops"
	"github.com/loykin/devboxd/internal/history"
	"github.com/loykin/devboxd/internal/history/factory"
	"github.com/loykin/devboxd/internal/metrics"
	"github.com/loykin/devboxd/internal/procmgr"
	iapi "github.com/loykin/devboxd/internal/server"
	"github.com/prometheus/client_golang/prometheus"
)

// Re-export core types for external consumers.
// These are aliases so conversions are zero-cost.

type ExecSpec = procmgr.ExecSpec

type SyncResult = procmgr.SyncResult

type Launched = procmgr.Launched

type StatusInfo = procmgr.StatusInfo

type Snapshot = procmgr.Snapshot

type LogEntry = procmgr.LogEntry

type EmitFunc = procmgr.EmitFunc

type HistorySink = history.Sink

// Manager is a thin facade over internal/procmgr.Manager.
// It provides a stable public API for embedding.

type Manager struct{ inner *procmgr.Manager }

func New() *Manager { return &Manager{inner: procmgr.New()} }

func (m *Manager) Exec(spec ExecSpec) (Launched, error) { return m.inner.Exec(spec) }
func (m *Manager) ExecSync(spec ExecSpec) (SyncResult, error) {
	return m.inner.ExecSync(spec)
}
func (m *Manager) ExecSyncStream(spec ExecSpec, emit EmitFunc) error {
	return m.inner.ExecSyncStream(spec, emit)
}
func (m *Manager) Status(id string) (StatusInfo, error) { return m.inner.Status(id) }
func (m *Manager) List() []Snapshot                     { return m.inner.List() }
func (m *Manager) Logs(id string) ([]string, error)     { return m.inner.Logs(id) }
func (m *Manager) Kill(id, signal string) error         { return m.inner.Kill(id, signal) }

// SetHistorySinks attaches sinks that receive process start/exit events.
func (m *Manager) SetHistorySinks(sinks ...HistorySink) { m.inner.SetHistorySinks(sinks...) }

// SetLogger replaces the manager's internal logger.
func (m *Manager) SetLogger(l *slog.Logger) { m.inner.SetLogger(l) }

// RunningPIDs reports the PIDs of currently running processes keyed by id.
func (m *Manager) RunningPIDs() map[string]int {
	out := make(map[string]int)
	for _, s := range m.inner.List() {
		if s.Status == procmgr.StatusRunning {
			out[s.ID] = s.PID
		}
	}
	return out
}

// Hub facade for WebSocket log fan-out.
type Hub struct{ inner *broadcast.Hub }

func NewHub() *Hub { return &Hub{inner: broadcast.NewHub(slog.Default())} }

func (h *Hub) AttachTo(m *Manager) { m.inner.SetBroadcaster(h.inner) }
func (h *Hub) Close()              { h.inner.Close() }
func (h *Hub) ClientCount() int    { return h.inner.ClientCount() }

type Config = cfg.Config

func LoadConfig(path string) (*Config, error) { return cfg.Load(path) }

func DefaultConfig() *Config { return cfg.Default() }

// NewSinkFromDSN builds a history sink from a DSN. Supported schemes are
// sqlite paths, postgres:// and clickhouse://.
func NewSinkFromDSN(dsn string) (HistorySink, error) { return factory.NewSinkFromDSN(dsn) }

// ServerOptions selects which optional endpoint groups a server exposes.
type ServerOptions struct {
	Workspace string // enables /files and /git endpoints when non-empty
	Hub       *Hub   // enables /ws/logs when non-nil
	Metrics   bool   // serves prometheus metrics at /metrics
}

// NewHTTPServer starts an HTTP server exposing the manager API under
// basePath and returns it for shutdown control.
func NewHTTPServer(addr, basePath string, m *Manager, opts ServerOptions) (*http.Server, error) {
	r, err := newRouter(basePath, m, opts)
	if err != nil {
		return nil, err
	}
	return iapi.NewServer(addr, r), nil
}

// NewHTTPHandler returns an http.Handler exposing the manager API, for
// embedding into an existing server or mux.
func NewHTTPHandler(basePath string, m *Manager, opts ServerOptions) (http.Handler, error) {
	r, err := newRouter(basePath, m, opts)
	if err != nil {
		return nil, err
	}
	return r.Handler(), nil
}

func newRouter(basePath string, m *Manager, opts ServerOptions) (*iapi.Router, error) {
	r := iapi.NewRouter(m.inner, basePath)
	if opts.Workspace != "" {
		files, err := fsops.New(opts.Workspace)
		if err != nil {
			return nil, err
		}
		r.MountFiles(files)
		r.MountGit(gitops.New(m.inner, files))
	}
	if opts.Hub != nil {
		r.MountHub(opts.Hub.inner)
	}
	if opts.Metrics {
		r.MountMetrics()
	}
	return r, nil
}

func RegisterMetrics(r prometheus.Registerer) error { return metrics.Register(r) }
func RegisterMetricsDefault() error                 { return metrics.Register(prometheus.DefaultRegisterer) }

type ResourceSampler = metrics.ResourceSampler

// StartResourceSampler registers per-process CPU and memory gauges with the
// default registerer and begins sampling the manager's running processes.
// An interval of zero uses the sampler default. Stop it on shutdown.
func StartResourceSampler(ctx context.Context, m *Manager, interval time.Duration) (*ResourceSampler, error) {
	s := metrics.NewResourceSampler(interval)
	if err := s.Register(prometheus.DefaultRegisterer); err != nil {
		return nil, err
	}
	s.Start(ctx, m.RunningPIDs)
	return s, nil
}

// ServeMetrics serves prometheus metrics on a dedicated listener.
func ServeMetrics(addr string) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.Handler())
	server := &http.Server{Addr: addr, Handler: mux}
	return server.ListenAndServe()
}
