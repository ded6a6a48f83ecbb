package client

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"
)

// Client provides HTTP client functionality to communicate with a devboxd daemon
type Client struct {
	baseURL string
	client  *http.Client
	logger  *slog.Logger
}

// Config holds client configuration
type Config struct {
	BaseURL string
	Timeout time.Duration
	Logger  *slog.Logger // Optional logger for client operations
}

// DefaultConfig returns default client configuration
func DefaultConfig() Config {
	return Config{
		BaseURL: "http://localhost:8080/api",
		Timeout: 60 * time.Second,
	}
}

// New creates a new devboxd API client
func New(config Config) *Client {
	if config.BaseURL == "" {
		config.BaseURL = "http://localhost:8080/api"
	}
	if config.Timeout == 0 {
		config.Timeout = 60 * time.Second
	}
	if config.Logger == nil {
		config.Logger = slog.Default()
	}

	return &Client{
		baseURL: strings.TrimRight(config.BaseURL, "/"),
		logger:  config.Logger,
		client:  &http.Client{Timeout: config.Timeout},
	}
}

// IsReachable checks if the daemon is running and reachable
func (c *Client) IsReachable(ctx context.Context) bool {
	req, err := http.NewRequestWithContext(ctx, "GET", c.baseURL+"/healthz", nil)
	if err != nil {
		c.logger.Debug("Failed to create request for reachability check", "error", err)
		return false
	}

	resp, err := c.client.Do(req)
	if err != nil {
		c.logger.Debug("Daemon unreachable", "error", err)
		return false
	}
	defer func() { _ = resp.Body.Close() }()

	return resp.StatusCode == http.StatusOK
}

// Exec launches a process asynchronously and returns its registration.
func (c *Client) Exec(ctx context.Context, req ExecRequest) (Launched, error) {
	c.logger.Debug("Launching process", "command", req.Command)

	var out Launched
	if err := c.doJSON(ctx, "POST", c.baseURL+"/process/exec", req, &out); err != nil {
		return Launched{}, err
	}

	c.logger.Debug("Process launched", "id", out.ProcessID, "pid", out.PID)
	return out, nil
}

// ExecSync runs a command to completion and returns its buffered output.
// The returned result may carry partial output even when err is non-nil,
// for example after a timeout.
func (c *Client) ExecSync(ctx context.Context, req ExecRequest) (SyncResult, error) {
	c.logger.Debug("Executing command synchronously", "command", req.Command)

	var out SyncResult
	if err := c.doJSON(ctx, "POST", c.baseURL+"/process/exec-sync", req, &out); err != nil {
		return out, err
	}
	if out.Error != "" {
		return out, fmt.Errorf("API error: %s", out.Error)
	}
	return out, nil
}

// Status returns the lifecycle state of one process.
func (c *Client) Status(ctx context.Context, processID string) (ProcessStatus, error) {
	var out ProcessStatus
	err := c.doJSON(ctx, "GET", c.baseURL+"/process/"+processID+"/status", nil, &out)
	return out, err
}

// List returns snapshots of every process the daemon has launched.
func (c *Client) List(ctx context.Context) ([]ProcessSnapshot, error) {
	var out listResponse
	if err := c.doJSON(ctx, "GET", c.baseURL+"/processes", nil, &out); err != nil {
		return nil, err
	}
	return out.Processes, nil
}

// Kill sends a signal to a running process. An empty signal means SIGTERM.
func (c *Client) Kill(ctx context.Context, processID, signal string) error {
	c.logger.Debug("Signaling process", "id", processID, "signal", signal)

	url := c.baseURL + "/process/" + processID + "/kill"
	if signal != "" {
		url += "?signal=" + signal
	}
	return c.doJSON(ctx, "POST", url, nil, nil)
}

// Logs returns the buffered log lines of one process.
func (c *Client) Logs(ctx context.Context, processID string) (LogsResponse, error) {
	var out LogsResponse
	err := c.doJSON(ctx, "GET", c.baseURL+"/process/"+processID+"/logs", nil, &out)
	return out, err
}

// StreamLogs follows the log stream of a process over SSE. Each event is
// passed to fn; the call returns when the stream ends or ctx is canceled.
func (c *Client) StreamLogs(ctx context.Context, processID string, fn func(StreamEvent)) error {
	url := c.baseURL + "/process/" + processID + "/logs?stream=true"
	return c.readStream(ctx, "GET", url, nil, fn)
}

// ExecSyncStream runs a command synchronously while streaming its output
// incrementally. Events arrive in order: start, zero or more output events,
// then complete or error.
func (c *Client) ExecSyncStream(ctx context.Context, req ExecRequest, fn func(StreamEvent)) error {
	data, err := json.Marshal(req)
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}
	return c.readStream(ctx, "POST", c.baseURL+"/process/exec-sync-stream", data, fn)
}

// doJSON performs an HTTP request with JSON encoding on both sides. A nil
// out discards the response body after the error check.
func (c *Client) doJSON(ctx context.Context, method, url string, body, out any) error {
	var bodyReader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		bodyReader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, bodyReader)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.client.Do(req)
	if err != nil {
		c.logger.Error("HTTP request failed", "error", err, "url", url)
		return fmt.Errorf("do request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return c.decodeError(resp)
	}
	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

// decodeError converts a non-200 response into an error
func (c *Client) decodeError(resp *http.Response) error {
	var errorResp ErrorResponse
	if err := json.NewDecoder(resp.Body).Decode(&errorResp); err != nil || errorResp.Error == "" {
		c.logger.Error("API request failed", "status", resp.StatusCode)
		return fmt.Errorf("HTTP %d", resp.StatusCode)
	}

	c.logger.Error("API request failed", "error", errorResp.Error, "status", resp.StatusCode)
	return fmt.Errorf("API error: %s", errorResp.Error)
}

// readStream opens an SSE connection and dispatches parsed events to fn.
func (c *Client) readStream(ctx context.Context, method, url string, body []byte, fn func(StreamEvent)) error {
	var bodyReader io.Reader
	if body != nil {
		bodyReader = bytes.NewReader(body)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, bodyReader)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "text/event-stream")

	// Streams outlive the default client timeout, so use a dedicated
	// client and rely on ctx for cancellation.
	streamClient := &http.Client{Transport: c.client.Transport}
	resp, err := streamClient.Do(req)
	if err != nil {
		return fmt.Errorf("do request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return c.decodeError(resp)
	}

	scanner := bufio.NewScanner(resp.Body)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)
	var ev StreamEvent
	for scanner.Scan() {
		line := scanner.Text()
		switch {
		case strings.HasPrefix(line, "event: "):
			ev.Event = strings.TrimPrefix(line, "event: ")
		case strings.HasPrefix(line, "data: "):
			ev.Data = strings.TrimPrefix(line, "data: ")
		case line == "":
			if ev.Event != "" || ev.Data != "" {
				fn(ev)
			}
			ev = StreamEvent{}
		}
	}
	if err := scanner.Err(); err != nil && ctx.Err() == nil {
		return fmt.Errorf("read stream: %w", err)
	}
	return nil
}
