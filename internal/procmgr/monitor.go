package procmgr

import (
	"sync"

	"github.com/loykin/devboxd/internal/history"
	"github.com/loykin/devboxd/internal/metrics"
)

// monitor owns the exit wait for one process. It blocks until both
// collectors have drained their pipes, then reaps the child exactly once
// and finalizes the record's status. This is the only writer of status
// after creation.
func (m *Manager) monitor(rec *Record, collectors *sync.WaitGroup) {
	// cmd.Wait closes the stdout/stderr pipes, so the collectors must
	// finish reading first.
	collectors.Wait()
	err := rec.cmd.Wait()

	var entry LogEntry
	var exitErr string
	if err != nil {
		rec.setStatus(StatusFailed)
		exitErr = err.Error()
		entry = rec.appendLog("system", "error", "Process failed: "+err.Error())
		m.logger.Info("process failed", "id", rec.ID(), "pid", rec.PID(), "error", err)
	} else {
		rec.setStatus(StatusCompleted)
		entry = rec.appendLog("system", "info", "Process completed successfully")
		m.logger.Info("process completed", "id", rec.ID(), "pid", rec.PID())
	}
	m.publish(entry)
	metrics.IncExit(string(rec.Status()))
	m.recordHistory(history.EventExit, rec, exitErr)
}
