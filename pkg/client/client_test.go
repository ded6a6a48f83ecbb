package client

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func newTestClient(srv *httptest.Server) *Client {
	return New(Config{BaseURL: srv.URL + "/api", Timeout: 5 * time.Second})
}

func TestIsReachable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/healthz" {
			http.NotFound(w, r)
			return
		}
		_, _ = w.Write([]byte(`{"ok":true}`))
	}))
	defer srv.Close()

	c := newTestClient(srv)
	if !c.IsReachable(context.Background()) {
		t.Fatalf("expected daemon reachable")
	}

	srv.Close()
	if c.IsReachable(context.Background()) {
		t.Fatalf("expected daemon unreachable after close")
	}
}

func TestExec(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/api/process/exec" {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		var req ExecRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode request: %v", err)
		}
		if req.Command != "sleep" || len(req.Args) != 1 || req.Args[0] != "5" {
			t.Errorf("unexpected request body %+v", req)
		}
		_ = json.NewEncoder(w).Encode(Launched{ProcessID: "p-1", PID: 42, ProcessStatus: "running"})
	}))
	defer srv.Close()

	got, err := newTestClient(srv).Exec(context.Background(), ExecRequest{Command: "sleep", Args: []string{"5"}})
	if err != nil {
		t.Fatalf("exec: %v", err)
	}
	if got.ProcessID != "p-1" || got.PID != 42 || got.ProcessStatus != "running" {
		t.Fatalf("unexpected result %+v", got)
	}
}

func TestExecServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_ = json.NewEncoder(w).Encode(ErrorResponse{Error: "command is required"})
	}))
	defer srv.Close()

	_, err := newTestClient(srv).Exec(context.Background(), ExecRequest{})
	if err == nil || !strings.Contains(err.Error(), "command is required") {
		t.Fatalf("expected API error, got %v", err)
	}
}

func TestExecNonJSONError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer srv.Close()

	_, err := newTestClient(srv).Exec(context.Background(), ExecRequest{Command: "x"})
	if err == nil || !strings.Contains(err.Error(), "HTTP 500") {
		t.Fatalf("expected HTTP 500 error, got %v", err)
	}
}

func TestExecSync(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/process/exec-sync" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		_ = json.NewEncoder(w).Encode(SyncResult{Stdout: "hello\n", ExitCode: 0, DurationMs: 12})
	}))
	defer srv.Close()

	res, err := newTestClient(srv).ExecSync(context.Background(), ExecRequest{Command: "echo", Args: []string{"hello"}})
	if err != nil {
		t.Fatalf("exec-sync: %v", err)
	}
	if res.Stdout != "hello\n" || res.ExitCode != 0 {
		t.Fatalf("unexpected result %+v", res)
	}
}

func TestExecSyncTimeoutKeepsPartialResult(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Timeout responses carry partial output in the body with HTTP 200
		// replaced by 408 plus the error envelope.
		w.WriteHeader(http.StatusRequestTimeout)
		_ = json.NewEncoder(w).Encode(struct {
			SyncResult
			Error string `json:"error"`
		}{
			SyncResult: SyncResult{Stdout: "partial\n", ExitCode: -1, DurationMs: 1000},
			Error:      "execution timeout after 1 seconds",
		})
	}))
	defer srv.Close()

	_, err := newTestClient(srv).ExecSync(context.Background(), ExecRequest{Command: "sleep", Args: []string{"10"}, TimeoutSeconds: 1})
	if err == nil || !strings.Contains(err.Error(), "execution timeout") {
		t.Fatalf("expected timeout error, got %v", err)
	}
}

func TestStatus(t *testing.T) {
	started := time.Now().UTC().Truncate(time.Second)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/process/p-9/status" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		_ = json.NewEncoder(w).Encode(ProcessStatus{ProcessID: "p-9", PID: 7, ProcessStatus: "completed", StartedAt: started})
	}))
	defer srv.Close()

	st, err := newTestClient(srv).Status(context.Background(), "p-9")
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	if st.ProcessID != "p-9" || st.ProcessStatus != "completed" || !st.StartedAt.Equal(started) {
		t.Fatalf("unexpected status %+v", st)
	}
}

func TestList(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/processes" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		_ = json.NewEncoder(w).Encode(listResponse{Processes: []ProcessSnapshot{
			{ID: "a", PID: 1, Command: "sleep 1", Status: "running"},
			{ID: "b", PID: 2, Command: "echo", Status: "completed"},
		}})
	}))
	defer srv.Close()

	got, err := newTestClient(srv).List(context.Background())
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(got) != 2 || got[0].ID != "a" || got[1].Status != "completed" {
		t.Fatalf("unexpected listing %+v", got)
	}
}

func TestKillSignalQueryParam(t *testing.T) {
	var gotSignal string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/api/process/p-1/kill" {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		gotSignal = r.URL.Query().Get("signal")
		_, _ = w.Write([]byte(`{"ok":true}`))
	}))
	defer srv.Close()

	c := newTestClient(srv)
	if err := c.Kill(context.Background(), "p-1", "SIGKILL"); err != nil {
		t.Fatalf("kill: %v", err)
	}
	if gotSignal != "SIGKILL" {
		t.Fatalf("signal param = %q", gotSignal)
	}
	if err := c.Kill(context.Background(), "p-1", ""); err != nil {
		t.Fatalf("kill default: %v", err)
	}
	if gotSignal != "" {
		t.Fatalf("expected no signal param, got %q", gotSignal)
	}
}

func TestLogs(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(LogsResponse{ProcessID: "p-1", Logs: []string{"stdout: a", "stderr: b"}})
	}))
	defer srv.Close()

	logs, err := newTestClient(srv).Logs(context.Background(), "p-1")
	if err != nil {
		t.Fatalf("logs: %v", err)
	}
	if logs.ProcessID != "p-1" || len(logs.Logs) != 2 {
		t.Fatalf("unexpected logs %+v", logs)
	}
}

func TestStreamLogs(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("stream") != "true" {
			t.Errorf("expected stream=true, got %q", r.URL.RawQuery)
		}
		w.Header().Set("Content-Type", "text/event-stream")
		for _, line := range []string{"stdout: one", "stderr: two"} {
			fmt.Fprintf(w, "event: log\ndata: %s\n\n", line)
		}
	}))
	defer srv.Close()

	var events []StreamEvent
	err := newTestClient(srv).StreamLogs(context.Background(), "p-1", func(ev StreamEvent) {
		events = append(events, ev)
	})
	if err != nil {
		t.Fatalf("stream: %v", err)
	}
	if len(events) != 2 {
		t.Fatalf("expected 2 events, got %d", len(events))
	}
	if events[0].Event != "log" || events[0].Data != "stdout: one" {
		t.Fatalf("unexpected first event %+v", events[0])
	}
	if events[1].Data != "stderr: two" {
		t.Fatalf("unexpected second event %+v", events[1])
	}
}

func TestStreamLogsCancel(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		fmt.Fprint(w, "event: log\ndata: first\n\n")
		if f, ok := w.(http.Flusher); ok {
			f.Flush()
		}
		<-release
	}))
	defer srv.Close()
	defer close(release)

	ctx, cancel := context.WithCancel(context.Background())
	err := newTestClient(srv).StreamLogs(ctx, "p-1", func(ev StreamEvent) {
		cancel()
	})
	// Cancellation mid-stream is not reported as an error.
	if err != nil {
		t.Fatalf("expected nil error on cancel, got %v", err)
	}
}

func TestExecSyncStream(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/api/process/exec-sync-stream" {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		var req ExecRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode request: %v", err)
		}
		w.Header().Set("Content-Type", "text/event-stream")
		fmt.Fprint(w, "event: start\ndata: {\"processId\":\"s-1\"}\n\n")
		fmt.Fprint(w, "event: stdout\ndata: {\"output\":\"hi\\n\"}\n\n")
		fmt.Fprint(w, "event: complete\ndata: {\"exitCode\":0}\n\n")
	}))
	defer srv.Close()

	var names []string
	err := newTestClient(srv).ExecSyncStream(context.Background(), ExecRequest{Command: "echo", Args: []string{"hi"}}, func(ev StreamEvent) {
		names = append(names, ev.Event)
	})
	if err != nil {
		t.Fatalf("exec-sync-stream: %v", err)
	}
	want := []string{"start", "stdout", "complete"}
	if len(names) != len(want) {
		t.Fatalf("events = %v", names)
	}
	for i := range want {
		if names[i] != want[i] {
			t.Fatalf("event %d = %q, want %q", i, names[i], want[i])
		}
	}
}

func TestStreamValidationError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_ = json.NewEncoder(w).Encode(ErrorResponse{Error: "command is required"})
	}))
	defer srv.Close()

	err := newTestClient(srv).ExecSyncStream(context.Background(), ExecRequest{}, func(StreamEvent) {
		t.Errorf("no events expected")
	})
	if err == nil || !strings.Contains(err.Error(), "command is required") {
		t.Fatalf("expected API error, got %v", err)
	}
}

func TestNewNormalizesBaseURL(t *testing.T) {
	c := New(Config{BaseURL: "http://example.test/api/"})
	if c.baseURL != "http://example.test/api" {
		t.Fatalf("baseURL = %q", c.baseURL)
	}
	c = New(Config{})
	if c.baseURL != "http://localhost:8080/api" {
		t.Fatalf("default baseURL = %q", c.baseURL)
	}
}
