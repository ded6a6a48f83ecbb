package procmgr

import (
	"context"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/loykin/devboxd/internal/history"
	"github.com/loykin/devboxd/internal/metrics"
)

// Broadcaster receives every structured log entry appended by the log
// collector and status monitor. Implementations must not block; the
// manager calls it inline on the collector goroutines.
type Broadcaster interface {
	BroadcastLogEntry(e LogEntry)
}

// Manager is the registry of launched processes. Registry membership is
// guarded by mu; each record guards its own log buffers so one process's
// log traffic never blocks listing or reading another.
type Manager struct {
	mu    sync.RWMutex
	procs map[string]*Record

	bmu         sync.RWMutex
	broadcaster Broadcaster
	sinks       []history.Sink

	logger *slog.Logger
}

func New() *Manager {
	return &Manager{
		procs:  make(map[string]*Record),
		logger: slog.Default(),
	}
}

// SetLogger replaces the manager's own diagnostic logger.
func (m *Manager) SetLogger(l *slog.Logger) {
	if l != nil {
		m.logger = l
	}
}

// SetBroadcaster configures the optional log fan-out target.
func (m *Manager) SetBroadcaster(b Broadcaster) {
	m.bmu.Lock()
	m.broadcaster = b
	m.bmu.Unlock()
}

// SetHistorySinks configures external exec-history sinks.
// Passing no sinks clears the list.
func (m *Manager) SetHistorySinks(sinks ...history.Sink) {
	m.bmu.Lock()
	m.sinks = append([]history.Sink(nil), sinks...)
	m.bmu.Unlock()
}

// Launched is the immediate result of an async exec.
type Launched struct {
	ProcessID     string `json:"processId"`
	PID           int    `json:"pid"`
	ProcessStatus Status `json:"processStatus"`
}

// StatusInfo is the status-query view of a record.
type StatusInfo struct {
	ProcessID     string    `json:"processId"`
	PID           int       `json:"pid"`
	ProcessStatus Status    `json:"processStatus"`
	StartedAt     time.Time `json:"startedAt"`
}

// Exec validates and launches a command, returning immediately with a new
// process ID. Stdout/stderr collection and exit monitoring run as
// independent goroutines; this call never blocks on process completion.
//
// On spawn failure a failed record is still registered so subsequent
// status and log queries about the returned ID resolve.
func (m *Manager) Exec(spec ExecSpec) (Launched, error) {
	if err := spec.Validate(); err != nil {
		return Launched{}, err
	}
	cmd := spec.BuildCommand()
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return Launched{}, &SpawnError{Err: err}
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return Launched{}, &SpawnError{Err: err}
	}

	id := uuid.NewString()
	rec := newRecord(id, cmd, spec.CommandLine())

	if err := cmd.Start(); err != nil {
		rec.setStatus(StatusFailed)
		entry := rec.appendLog("system", "error", "Failed to start process: "+err.Error())
		m.insert(rec)
		m.publish(entry)
		metrics.IncSpawnFailure()
		m.logger.Warn("process spawn failed", "id", id, "command", rec.Command(), "error", err)
		return Launched{}, &SpawnError{Err: err}
	}

	m.insert(rec)
	metrics.IncExec()
	m.logger.Info("process started", "id", id, "pid", rec.PID(), "command", rec.Command())
	m.recordHistory(history.EventStart, rec, "")

	var wg sync.WaitGroup
	wg.Add(2)
	go m.collect(rec, stdout, "stdout", &wg)
	go m.collect(rec, stderr, "stderr", &wg)
	go m.monitor(rec, &wg)

	return Launched{ProcessID: id, PID: rec.PID(), ProcessStatus: StatusRunning}, nil
}

func (m *Manager) insert(rec *Record) {
	m.mu.Lock()
	m.procs[rec.ID()] = rec
	m.mu.Unlock()
}

// Get returns the record for id or ErrNotFound.
func (m *Manager) Get(id string) (*Record, error) {
	m.mu.RLock()
	rec := m.procs[id]
	m.mu.RUnlock()
	if rec == nil {
		return nil, ErrNotFound
	}
	return rec, nil
}

// Status returns the status-query view for id.
func (m *Manager) Status(id string) (StatusInfo, error) {
	rec, err := m.Get(id)
	if err != nil {
		return StatusInfo{}, err
	}
	return StatusInfo{
		ProcessID:     rec.ID(),
		PID:           rec.PID(),
		ProcessStatus: rec.Status(),
		StartedAt:     rec.StartedAt(),
	}, nil
}

// List returns a snapshot of every record regardless of status,
// ordered by start time.
func (m *Manager) List() []Snapshot {
	m.mu.RLock()
	recs := make([]*Record, 0, len(m.procs))
	for _, r := range m.procs {
		recs = append(recs, r)
	}
	m.mu.RUnlock()
	out := make([]Snapshot, 0, len(recs))
	for _, r := range recs {
		out = append(out, r.snapshot())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StartTime.Before(out[j].StartTime) })
	return out
}

// Logs returns a snapshot copy of the plain-text log buffer for id.
func (m *Manager) Logs(id string) ([]string, error) {
	rec, err := m.Get(id)
	if err != nil {
		return nil, err
	}
	return rec.LogLines(), nil
}

// Kill sends a signal to a running process. The signal name is
// case-insensitive from {SIGTERM/TERM, SIGKILL/KILL, SIGINT/INT} and
// defaults to SIGTERM. Delivery returns immediately; the status monitor
// finalizes state asynchronously. Killing a process that already reached a
// terminal status is rejected with ErrNotRunning.
func (m *Manager) Kill(id, signal string) error {
	sig, name, err := parseSignal(signal)
	if err != nil {
		return err
	}
	rec, err := m.Get(id)
	if err != nil {
		return err
	}
	if rec.Status() != StatusRunning {
		return ErrNotRunning
	}
	if err := sendSignal(rec.PID(), sig); err != nil {
		return err
	}
	metrics.IncSignal(name)
	m.logger.Info("signal delivered", "id", id, "pid", rec.PID(), "signal", name)
	return nil
}

func (m *Manager) publish(e LogEntry) {
	m.bmu.RLock()
	b := m.broadcaster
	m.bmu.RUnlock()
	if b != nil {
		b.BroadcastLogEntry(e)
	}
}

// recordHistory ships a lifecycle event to every configured sink.
// Strictly best-effort; sink errors are logged and dropped.
func (m *Manager) recordHistory(t history.EventType, rec *Record, exitErr string) {
	m.bmu.RLock()
	sinks := append([]history.Sink(nil), m.sinks...)
	m.bmu.RUnlock()
	if len(sinks) == 0 {
		return
	}
	evt := history.Event{
		Type:       t,
		OccurredAt: time.Now().UTC(),
		Record: history.Record{
			ProcessID: rec.ID(),
			PID:       rec.PID(),
			Command:   rec.Command(),
			StartedAt: rec.StartedAt(),
			Status:    string(rec.Status()),
			ExitErr:   exitErr,
		},
	}
	if t == history.EventExit {
		evt.Record.EndedAt = evt.OccurredAt
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		for _, s := range sinks {
			if err := s.Send(ctx, evt); err != nil {
				m.logger.Warn("history sink send failed", "error", err)
			}
		}
	}()
}
