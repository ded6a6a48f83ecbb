package procmgr

import (
	"bytes"
	"io"
	"os/exec"
	"sync"
	"time"

	"github.com/loykin/devboxd/internal/metrics"
)

// DefaultSyncTimeoutSeconds applies when a sync exec request omits the
// timeout or sets it non-positive.
const DefaultSyncTimeoutSeconds = 30

// spawnFailureExitCode follows the shell convention for "command not found".
const spawnFailureExitCode = 127

// SyncResult is the fully-buffered outcome of a synchronous execution.
// A nonzero ExitCode from a process that ran to completion is data, not an
// error; only spawn failure and timeout surface as errors alongside it.
type SyncResult struct {
	Stdout     string    `json:"stdout"`
	Stderr     string    `json:"stderr"`
	ExitCode   int       `json:"exitCode"`
	DurationMs int64     `json:"durationMs"`
	StartTime  time.Time `json:"startTime"`
	EndTime    time.Time `json:"endTime"`
}

// ExecSync runs a command to completion or timeout within the caller's
// lifetime, buffering stdout and stderr fully. It never registers a record
// in the registry. On timeout the child is force-killed and reaped before
// returning, so no process outlives the call.
func (m *Manager) ExecSync(spec ExecSpec) (SyncResult, error) {
	if err := spec.Validate(); err != nil {
		return SyncResult{}, err
	}
	timeout := spec.TimeoutSeconds
	if timeout <= 0 {
		timeout = DefaultSyncTimeoutSeconds
	}

	cmd := spec.BuildCommand()
	var outBuf, errBuf bytes.Buffer
	cmd.Stdout = &outBuf
	cmd.Stderr = &errBuf

	start := time.Now()
	res := SyncResult{StartTime: start}

	if err := cmd.Start(); err != nil {
		res.EndTime = time.Now()
		res.DurationMs = res.EndTime.Sub(start).Milliseconds()
		res.ExitCode = spawnFailureExitCode
		res.Stderr = err.Error()
		metrics.IncSpawnFailure()
		return res, &SpawnError{Err: err}
	}

	waitCh := make(chan error, 1)
	go func() { waitCh <- cmd.Wait() }()

	timer := time.NewTimer(time.Duration(timeout) * time.Second)
	defer timer.Stop()

	select {
	case err := <-waitCh:
		res.EndTime = time.Now()
		res.DurationMs = res.EndTime.Sub(start).Milliseconds()
		res.Stdout = outBuf.String()
		res.Stderr = errBuf.String()
		res.ExitCode = exitCodeOf(cmd, err)
		metrics.ObserveSyncExec(res.EndTime.Sub(start).Seconds())
		return res, nil
	case <-timer.C:
		killGroup(cmd.Process.Pid)
		<-waitCh // await actual termination, no orphaned child
		res.EndTime = time.Now()
		res.DurationMs = res.EndTime.Sub(start).Milliseconds()
		res.Stdout = outBuf.String()
		res.Stderr = errBuf.String()
		res.ExitCode = -1
		metrics.IncSyncTimeout()
		m.logger.Warn("sync exec timed out", "command", spec.CommandLine(), "timeout_seconds", timeout)
		return res, &TimeoutError{Seconds: timeout}
	}
}

func exitCodeOf(cmd *exec.Cmd, waitErr error) int {
	if waitErr == nil {
		return 0
	}
	if ee, ok := waitErr.(*exec.ExitError); ok {
		return ee.ExitCode()
	}
	return -1
}

// Event payloads for the streamed synchronous executor. Timestamps are
// Unix milliseconds.

type StreamStart struct {
	Timestamp int64 `json:"timestamp"`
}

type StreamOutput struct {
	Output    string `json:"output"`
	Timestamp int64  `json:"timestamp"`
}

type StreamComplete struct {
	ExitCode  int   `json:"exitCode"`
	Duration  int64 `json:"duration"`
	Timestamp int64 `json:"timestamp"`
}

type StreamError struct {
	Error      string `json:"error"`
	ExitCode   *int   `json:"exitCode,omitempty"`
	DurationMs int64  `json:"durationMs"`
	Timestamp  int64  `json:"timestamp"`
}

// EmitFunc receives one stream event. The manager serializes calls, so
// implementations may write to a single response stream without locking.
type EmitFunc func(event string, data any)

// ExecSyncStream runs a command like ExecSync but emits start, per-line
// stdout/stderr, and complete/error events as they happen instead of
// buffering the whole output.
func (m *Manager) ExecSyncStream(spec ExecSpec, emit EmitFunc) error {
	if err := spec.Validate(); err != nil {
		return err
	}
	timeout := spec.TimeoutSeconds
	if timeout <= 0 {
		timeout = DefaultSyncTimeoutSeconds
	}

	var emitMu sync.Mutex
	send := func(event string, data any) {
		emitMu.Lock()
		emit(event, data)
		emitMu.Unlock()
	}

	cmd := spec.BuildCommand()
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return &SpawnError{Err: err}
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return &SpawnError{Err: err}
	}

	start := time.Now()
	if err := cmd.Start(); err != nil {
		code := spawnFailureExitCode
		send("error", StreamError{
			Error:      err.Error(),
			ExitCode:   &code,
			DurationMs: time.Since(start).Milliseconds(),
			Timestamp:  time.Now().UnixMilli(),
		})
		metrics.IncSpawnFailure()
		return &SpawnError{Err: err}
	}
	send("start", StreamStart{Timestamp: start.UnixMilli()})

	var wg sync.WaitGroup
	wg.Add(2)
	stream := func(r io.Reader, event string) {
		defer wg.Done()
		sc := newLineScanner(r)
		for sc.Scan() {
			send(event, StreamOutput{Output: sc.Text(), Timestamp: time.Now().UnixMilli()})
		}
	}
	go stream(stdout, "stdout")
	go stream(stderr, "stderr")

	waitCh := make(chan error, 1)
	go func() {
		wg.Wait()
		waitCh <- cmd.Wait()
	}()

	timer := time.NewTimer(time.Duration(timeout) * time.Second)
	defer timer.Stop()

	select {
	case werr := <-waitCh:
		elapsed := time.Since(start)
		send("complete", StreamComplete{
			ExitCode:  exitCodeOf(cmd, werr),
			Duration:  elapsed.Milliseconds(),
			Timestamp: time.Now().UnixMilli(),
		})
		metrics.ObserveSyncExec(elapsed.Seconds())
		return nil
	case <-timer.C:
		killGroup(cmd.Process.Pid)
		<-waitCh
		terr := &TimeoutError{Seconds: timeout}
		send("error", StreamError{
			Error:      terr.Error(),
			DurationMs: time.Since(start).Milliseconds(),
			Timestamp:  time.Now().UnixMilli(),
		})
		metrics.IncSyncTimeout()
		return terr
	}
}
