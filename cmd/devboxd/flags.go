package main

import "time"

// Flag structs decouple cobra from logic for testing.

// ExecFlags holds flags for exec and exec-sync commands.
type ExecFlags struct {
	Command string
	Args    []string
	Cwd     string
	Env     []string
	Shell   string
	Timeout int
	Stream  bool
	// Remote daemon connection
	APIUrl     string
	APITimeout time.Duration
}

// StatusFlags holds flags for the status command.
type StatusFlags struct {
	ID string
	// Remote daemon connection
	APIUrl     string
	APITimeout time.Duration
}

// KillFlags holds flags for the kill command.
type KillFlags struct {
	ID     string
	Signal string
	// Remote daemon connection
	APIUrl     string
	APITimeout time.Duration
}

// LogsFlags holds flags for the logs command.
type LogsFlags struct {
	ID     string
	Follow bool
	// Remote daemon connection
	APIUrl     string
	APITimeout time.Duration
}

// ListFlags holds flags for the list command.
type ListFlags struct {
	// Remote daemon connection
	APIUrl     string
	APITimeout time.Duration
}

// ServeFlags holds flags for the serve command.
type ServeFlags struct {
	ConfigPath string
	Listen     string
	Workspace  string
}
