package procmgr

import (
	"fmt"
	"os/exec"
	"sync"
	"time"
)

// Status is the lifecycle state of a launched process. It moves from
// running to exactly one terminal state and never reverts.
type Status string

const (
	StatusRunning   Status = "running"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
)

// MaxLogLines bounds both log buffers per process. Trimming is FIFO.
const MaxLogLines = 1000

// LogEntry is the structured form of a captured log line, used for the
// WebSocket fan-out and the SSE streams.
type LogEntry struct {
	Timestamp  time.Time `json:"timestamp"`
	Level      string    `json:"level"`
	Source     string    `json:"source"`
	TargetID   string    `json:"targetId"`
	TargetType string    `json:"targetType"`
	Message    string    `json:"message"`
}

// Record is the server-side bookkeeping entry for one launched command.
// The registry owns all records; collector and monitor goroutines hold a
// reference and mutate it under the record's own lock, so log writes on one
// process never serialize listings or reads of another.
type Record struct {
	id        string
	cmd       *exec.Cmd
	command   string
	startedAt time.Time

	mu         sync.RWMutex
	status     Status
	logLines   []string
	logEntries []LogEntry
}

func newRecord(id string, cmd *exec.Cmd, command string) *Record {
	return &Record{
		id:        id,
		cmd:       cmd,
		command:   command,
		startedAt: time.Now(),
		status:    StatusRunning,
	}
}

func (r *Record) ID() string           { return r.id }
func (r *Record) Command() string      { return r.command }
func (r *Record) StartedAt() time.Time { return r.startedAt }

// PID returns the OS pid, or 0 when the process never started.
func (r *Record) PID() int {
	if r.cmd == nil || r.cmd.Process == nil {
		return 0
	}
	return r.cmd.Process.Pid
}

func (r *Record) Status() Status {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.status
}

// setStatus finalizes the lifecycle state. The status monitor is the only
// caller after creation; terminal states are never overwritten.
func (r *Record) setStatus(s Status) {
	r.mu.Lock()
	if r.status == StatusRunning {
		r.status = s
	}
	r.mu.Unlock()
}

// appendLog records one line in both buffers and returns the structured
// entry for broadcasting. Both buffers are trimmed from the front at
// MaxLogLines.
func (r *Record) appendLog(source, level, message string) LogEntry {
	now := time.Now()
	entry := LogEntry{
		Timestamp:  now,
		Level:      level,
		Source:     source,
		TargetID:   r.id,
		TargetType: "process",
		Message:    message,
	}
	line := fmt.Sprintf("[%s] %s: %s", now.Format(time.RFC3339), source, message)

	r.mu.Lock()
	r.logLines = append(r.logLines, line)
	if len(r.logLines) > MaxLogLines {
		r.logLines = r.logLines[len(r.logLines)-MaxLogLines:]
	}
	r.logEntries = append(r.logEntries, entry)
	if len(r.logEntries) > MaxLogLines {
		r.logEntries = r.logEntries[len(r.logEntries)-MaxLogLines:]
	}
	r.mu.Unlock()
	return entry
}

// LogLines returns a snapshot copy of the plain-text buffer.
func (r *Record) LogLines() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, len(r.logLines))
	copy(out, r.logLines)
	return out
}

// LogEntries returns a snapshot copy of the structured buffer.
func (r *Record) LogEntries() []LogEntry {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]LogEntry, len(r.logEntries))
	copy(out, r.logEntries)
	return out
}

// TailLines returns up to the n most recent plain-text lines.
func (r *Record) TailLines(n int) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if n > len(r.logLines) {
		n = len(r.logLines)
	}
	out := make([]string, n)
	copy(out, r.logLines[len(r.logLines)-n:])
	return out
}

// Snapshot is the listing view of a record.
type Snapshot struct {
	ID        string    `json:"id"`
	PID       int       `json:"pid"`
	Command   string    `json:"command"`
	Status    Status    `json:"status"`
	StartTime time.Time `json:"startTime"`
}

func (r *Record) snapshot() Snapshot {
	return Snapshot{
		ID:        r.id,
		PID:       r.PID(),
		Command:   r.command,
		Status:    r.Status(),
		StartTime: r.startedAt,
	}
}
