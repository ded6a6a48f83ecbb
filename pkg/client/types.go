package client

import "time"

// ExecRequest describes a command to launch or execute on the daemon.
type ExecRequest struct {
	Command        string            `json:"command"`
	Args           []string          `json:"args,omitempty"`
	Cwd            string            `json:"cwd,omitempty"`
	Env            map[string]string `json:"env,omitempty"`
	Shell          string            `json:"shell,omitempty"`
	TimeoutSeconds int               `json:"timeout,omitempty"`
}

// Launched is the acknowledgement returned by an asynchronous exec.
type Launched struct {
	ProcessID     string `json:"processId"`
	PID           int    `json:"pid"`
	ProcessStatus string `json:"processStatus"`
}

// ProcessStatus reports the lifecycle state of one process.
type ProcessStatus struct {
	ProcessID     string    `json:"processId"`
	PID           int       `json:"pid"`
	ProcessStatus string    `json:"processStatus"`
	StartedAt     time.Time `json:"startedAt"`
}

// ProcessSnapshot is one entry of the process listing.
type ProcessSnapshot struct {
	ID        string    `json:"id"`
	PID       int       `json:"pid"`
	Command   string    `json:"command"`
	Status    string    `json:"status"`
	StartTime time.Time `json:"startTime"`
}

// SyncResult is the buffered output of a synchronous execution. Error is
// populated on timeout or spawn failure alongside any partial output.
type SyncResult struct {
	Stdout     string    `json:"stdout"`
	Stderr     string    `json:"stderr"`
	ExitCode   int       `json:"exitCode"`
	DurationMs int64     `json:"durationMs"`
	StartTime  time.Time `json:"startTime"`
	EndTime    time.Time `json:"endTime"`
	Error      string    `json:"error,omitempty"`
}

// LogsResponse carries the buffered log lines of one process.
type LogsResponse struct {
	ProcessID string   `json:"processId"`
	Logs      []string `json:"logs"`
}

type listResponse struct {
	Processes []ProcessSnapshot `json:"processes"`
}

// StreamEvent is one server-sent event read from a streaming endpoint.
type StreamEvent struct {
	Event string
	Data  string
}

// ErrorResponse represents an API error response
type ErrorResponse struct {
	Error string `json:"error"`
}
