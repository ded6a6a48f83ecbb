package server

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/loykin/devboxd/internal/procmgr"
)

// streamTickInterval paces the live log tail.
const streamTickInterval = time.Second

// streamTailSize bounds how many recent lines each tick resends.
// Consumers needing exactly-once delivery must deduplicate by content and
// order; the tail is a resend, not an incremental diff.
const streamTailSize = 10

func setSSEHeaders(c *gin.Context) {
	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Header("X-Accel-Buffering", "no")
}

// sseFlusher verifies the transport supports flush-on-write. Without it
// the stream would buffer silently, so the call fails up front.
func sseFlusher(c *gin.Context) (http.Flusher, bool) {
	flusher, ok := c.Writer.(http.Flusher)
	if !ok {
		writeJSON(c, http.StatusInternalServerError, errorResp{Error: "streaming not supported"})
		return nil, false
	}
	return flusher, true
}

type logsResp struct {
	ProcessID string   `json:"processId"`
	Logs      []string `json:"logs"`
}

// handleLogs serves a snapshot of the log buffer, or an SSE live tail when
// stream=true. The stream replays every buffered line, then resends up to
// the 10 most recent lines each second until the process leaves the
// running state or the client disconnects.
func (r *Router) handleLogs(c *gin.Context) {
	rec, err := r.mgr.Get(c.Param("id"))
	if err != nil {
		writeJSON(c, statusFor(err), errorResp{Error: err.Error()})
		return
	}
	if c.Query("stream") != "true" {
		writeJSON(c, http.StatusOK, logsResp{ProcessID: rec.ID(), Logs: rec.LogLines()})
		return
	}

	flusher, ok := sseFlusher(c)
	if !ok {
		return
	}
	setSSEHeaders(c)
	c.Status(http.StatusOK)

	emit := func(line string) {
		fmt.Fprintf(c.Writer, "event: log\ndata: %s\n\n", line)
	}
	for _, line := range rec.LogLines() {
		emit(line)
	}
	flusher.Flush()

	done := c.Request.Context().Done()
	ticker := time.NewTicker(streamTickInterval)
	defer ticker.Stop()
	for {
		select {
		case <-done:
			return
		case <-ticker.C:
			for _, line := range rec.TailLines(streamTailSize) {
				emit(line)
			}
			flusher.Flush()
			if rec.Status() != procmgr.StatusRunning {
				return
			}
		}
	}
}

// handleExecSyncStream runs a command synchronously while pushing its
// output over SSE: start, stdout/stderr per line, then complete or error.
func (r *Router) handleExecSyncStream(c *gin.Context) {
	spec, ok := r.bindExecSpec(c)
	if !ok {
		return
	}
	// Validation must fail before the stream is committed; afterwards
	// errors can only travel as stream events.
	if err := spec.Validate(); err != nil {
		writeJSON(c, statusFor(err), errorResp{Error: err.Error()})
		return
	}
	flusher, ok := sseFlusher(c)
	if !ok {
		return
	}
	setSSEHeaders(c)
	c.Status(http.StatusOK)

	emit := func(event string, data any) {
		payload, err := json.Marshal(data)
		if err != nil {
			return
		}
		fmt.Fprintf(c.Writer, "event: %s\ndata: %s\n\n", event, payload)
		flusher.Flush()
	}
	// Terminal conditions (timeout, spawn failure) are already delivered
	// as error events on the stream.
	_ = r.mgr.ExecSyncStream(spec, emit)
}
