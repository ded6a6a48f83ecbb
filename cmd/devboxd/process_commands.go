package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/loykin/devboxd/pkg/client"
)

// command bundles the client-side handlers. Methods talk to a running
// daemon over its HTTP API.
type command struct{}

func (c command) apiClient(url string, timeout time.Duration) (*client.Client, error) {
	if url == "" {
		url = "http://127.0.0.1:8080/api"
	}
	api := client.New(client.Config{BaseURL: url, Timeout: timeout})

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if !api.IsReachable(ctx) {
		return nil, fmt.Errorf("daemon not reachable at %s - start it first with 'devboxd serve'", url)
	}
	return api, nil
}

func (c command) execRequest(f ExecFlags) client.ExecRequest {
	return client.ExecRequest{
		Command:        f.Command,
		Args:           f.Args,
		Cwd:            f.Cwd,
		Env:            parseEnvPairs(f.Env),
		Shell:          f.Shell,
		TimeoutSeconds: f.Timeout,
	}
}

// Exec launches a process in the background and prints its registration.
func (c command) Exec(f ExecFlags) error {
	api, err := c.apiClient(f.APIUrl, f.APITimeout)
	if err != nil {
		return err
	}

	launched, err := api.Exec(context.Background(), c.execRequest(f))
	if err != nil {
		return err
	}
	printJSON(launched)
	return nil
}

// ExecSync runs a command to completion. With --stream the output is
// printed incrementally as it arrives.
func (c command) ExecSync(f ExecFlags) error {
	api, err := c.apiClient(f.APIUrl, f.APITimeout)
	if err != nil {
		return err
	}

	if f.Stream {
		return api.ExecSyncStream(context.Background(), c.execRequest(f), func(ev client.StreamEvent) {
			switch ev.Event {
			case "stdout":
				fmt.Println(streamOutputLine(ev.Data))
			case "stderr":
				_, _ = fmt.Fprintln(os.Stderr, streamOutputLine(ev.Data))
			case "error":
				_, _ = fmt.Fprintln(os.Stderr, ev.Data)
			}
		})
	}

	res, err := api.ExecSync(context.Background(), c.execRequest(f))
	// A timeout still carries partial output worth showing.
	if res.Stdout != "" || res.Stderr != "" || err == nil {
		printJSON(res)
	}
	return err
}

// Status prints the lifecycle state of one process.
func (c command) Status(f StatusFlags) error {
	api, err := c.apiClient(f.APIUrl, f.APITimeout)
	if err != nil {
		return err
	}

	info, err := api.Status(context.Background(), f.ID)
	if err != nil {
		return err
	}
	printJSON(info)
	return nil
}

// Kill signals a running process.
func (c command) Kill(f KillFlags) error {
	api, err := c.apiClient(f.APIUrl, f.APITimeout)
	if err != nil {
		return err
	}

	if err := api.Kill(context.Background(), f.ID, f.Signal); err != nil {
		return err
	}
	fmt.Printf("signal sent to %s\n", f.ID)
	return nil
}

// Logs prints the buffered log lines of a process, optionally following
// the live stream until the process exits.
func (c command) Logs(f LogsFlags) error {
	api, err := c.apiClient(f.APIUrl, f.APITimeout)
	if err != nil {
		return err
	}

	if f.Follow {
		return api.StreamLogs(context.Background(), f.ID, func(ev client.StreamEvent) {
			if ev.Event == "log" {
				fmt.Println(ev.Data)
			}
		})
	}

	logs, err := api.Logs(context.Background(), f.ID)
	if err != nil {
		return err
	}
	for _, line := range logs.Logs {
		fmt.Println(line)
	}
	return nil
}

// List prints snapshots of every process the daemon has launched.
func (c command) List(f ListFlags) error {
	api, err := c.apiClient(f.APIUrl, f.APITimeout)
	if err != nil {
		return err
	}

	procs, err := api.List(context.Background())
	if err != nil {
		return err
	}
	printJSON(procs)
	return nil
}
