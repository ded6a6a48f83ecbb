package main

import (
	"bytes"
	"os"
	"strings"
	"testing"
)

func TestPrintJSON(t *testing.T) {
	old := os.Stdout
	r, w, _ := os.Pipe()
	os.Stdout = w
	defer func() { _ = w.Close(); os.Stdout = old; _ = r.Close() }()

	printJSON(map[string]int{"x": 1})
	_ = w.Close()
	var outBuf bytes.Buffer
	_, _ = outBuf.ReadFrom(r)
	s := outBuf.String()
	if !strings.Contains(s, "\"x\": 1") {
		t.Fatalf("unexpected JSON output: %q", s)
	}
}

func TestStreamOutputLine(t *testing.T) {
	if got := streamOutputLine(`{"output":"hello\n","timestamp":"x"}`); got != "hello\n" {
		t.Fatalf("got %q", got)
	}
	// Non-JSON or missing output falls back to the raw payload.
	if got := streamOutputLine("plain text"); got != "plain text" {
		t.Fatalf("got %q", got)
	}
	if got := streamOutputLine(`{"exitCode":0}`); got != `{"exitCode":0}` {
		t.Fatalf("got %q", got)
	}
}

func TestParseEnvPairs(t *testing.T) {
	env := parseEnvPairs([]string{"A=1", "B=two=parts", "malformed", "=novalue"})
	if len(env) != 2 {
		t.Fatalf("env = %v", env)
	}
	if env["A"] != "1" || env["B"] != "two=parts" {
		t.Fatalf("env = %v", env)
	}
	if parseEnvPairs(nil) != nil {
		t.Fatalf("expected nil map for empty input")
	}
}
