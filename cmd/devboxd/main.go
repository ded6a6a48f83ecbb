package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/loykin/devboxd"
	"github.com/spf13/cobra"
)

func main() {
	root := buildRoot()

	if err := root.Execute(); err != nil {
		_, _ = fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// buildRoot creates the root command with all subcommands attached
func buildRoot() *cobra.Command {
	execFlags := &ExecFlags{}
	execSyncFlags := &ExecFlags{}
	statusFlags := &StatusFlags{}
	killFlags := &KillFlags{}
	logsFlags := &LogsFlags{}
	listFlags := &ListFlags{}
	serveFlags := &ServeFlags{}

	devboxdCommand := command{}

	root := createRootCommand()

	root.AddCommand(
		createServeCommand(serveFlags),
		createExecCommand(devboxdCommand, execFlags),
		createExecSyncCommand(devboxdCommand, execSyncFlags),
		createStatusCommand(devboxdCommand, statusFlags),
		createKillCommand(devboxdCommand, killFlags),
		createLogsCommand(devboxdCommand, logsFlags),
		createListCommand(devboxdCommand, listFlags),
	)

	return root
}

// createRootCommand creates the root command
func createRootCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "devboxd",
		Short: "Development container agent",
		Long: `Devboxd is a lightweight agent for cloud development containers.
It runs commands inside the container, tracks their lifecycle and output,
and exposes file and git operations over HTTP.

Examples:
  devboxd serve --config=config.toml         # Start the agent
  devboxd exec --cmd="npm run dev"           # Launch a background process
  devboxd exec-sync --cmd="ls -la"           # Run and wait for output
  devboxd status --id=<process-id>
  devboxd list --api-url=http://remote:8080/api`,
	}
}

// addAPIFlags attaches the remote daemon connection flags shared by all
// client commands.
func addAPIFlags(cmd *cobra.Command, url *string, timeout *time.Duration) {
	cmd.Flags().StringVar(url, "api-url", "", "daemon URL (default http://127.0.0.1:8080/api)")
	cmd.Flags().DurationVar(timeout, "api-timeout", 60*time.Second, "request timeout")
}

// createExecCommand creates the exec subcommand
func createExecCommand(devboxdCommand command, flags *ExecFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "exec",
		Short: "Launch a process in the background",
		Long: `Launch a process without waiting for it to finish. The daemon
returns a process ID that can be used with status, logs and kill.

Examples:
  devboxd exec --cmd="npm run dev"
  devboxd exec --cmd=python --arg=app.py --cwd=/workspace/app --env=PORT=3000`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return devboxdCommand.Exec(*flags)
		},
	}

	addExecSpecFlags(cmd, flags)
	addAPIFlags(cmd, &flags.APIUrl, &flags.APITimeout)
	return cmd
}

// createExecSyncCommand creates the exec-sync subcommand
func createExecSyncCommand(devboxdCommand command, flags *ExecFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "exec-sync",
		Short: "Run a command and wait for its output",
		Long: `Run a command to completion and print its captured output.
The daemon enforces a timeout and kills the whole process group when it
expires.

Examples:
  devboxd exec-sync --cmd="go test ./..." --timeout=300
  devboxd exec-sync --cmd="npm install" --stream`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return devboxdCommand.ExecSync(*flags)
		},
	}

	addExecSpecFlags(cmd, flags)
	cmd.Flags().BoolVar(&flags.Stream, "stream", false, "stream output incrementally")
	addAPIFlags(cmd, &flags.APIUrl, &flags.APITimeout)
	return cmd
}

func addExecSpecFlags(cmd *cobra.Command, flags *ExecFlags) {
	cmd.Flags().StringVar(&flags.Command, "cmd", "", "command to run (required)")
	cmd.Flags().StringArrayVar(&flags.Args, "arg", nil, "argument passed verbatim (repeatable)")
	cmd.Flags().StringVar(&flags.Cwd, "cwd", "", "working directory (absolute path)")
	cmd.Flags().StringArrayVar(&flags.Env, "env", nil, "KEY=VALUE environment override (repeatable)")
	cmd.Flags().StringVar(&flags.Shell, "shell", "", "run the command through this shell")
	cmd.Flags().IntVar(&flags.Timeout, "timeout", 0, "timeout in seconds for synchronous execution")

	if err := cmd.MarkFlagRequired("cmd"); err != nil {
		panic(err)
	}
}

// createStatusCommand creates the status subcommand
func createStatusCommand(devboxdCommand command, flags *StatusFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show the status of a process",
		RunE: func(cmd *cobra.Command, args []string) error {
			return devboxdCommand.Status(*flags)
		},
	}

	cmd.Flags().StringVar(&flags.ID, "id", "", "process ID (required)")
	addAPIFlags(cmd, &flags.APIUrl, &flags.APITimeout)

	if err := cmd.MarkFlagRequired("id"); err != nil {
		panic(err)
	}
	return cmd
}

// createKillCommand creates the kill subcommand
func createKillCommand(devboxdCommand command, flags *KillFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "kill",
		Short: "Send a signal to a running process",
		Long: `Send a signal to a running process. Supported signals are
SIGTERM (default), SIGKILL and SIGINT.

Examples:
  devboxd kill --id=<process-id>
  devboxd kill --id=<process-id> --signal=SIGKILL`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return devboxdCommand.Kill(*flags)
		},
	}

	cmd.Flags().StringVar(&flags.ID, "id", "", "process ID (required)")
	cmd.Flags().StringVar(&flags.Signal, "signal", "", "signal name (default SIGTERM)")
	addAPIFlags(cmd, &flags.APIUrl, &flags.APITimeout)

	if err := cmd.MarkFlagRequired("id"); err != nil {
		panic(err)
	}
	return cmd
}

// createLogsCommand creates the logs subcommand
func createLogsCommand(devboxdCommand command, flags *LogsFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "logs",
		Short: "Print the captured output of a process",
		Long: `Print the buffered log lines of a process. With --follow the
stream stays open and new lines are printed until the process exits.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return devboxdCommand.Logs(*flags)
		},
	}

	cmd.Flags().StringVar(&flags.ID, "id", "", "process ID (required)")
	cmd.Flags().BoolVar(&flags.Follow, "follow", false, "follow the live log stream")
	addAPIFlags(cmd, &flags.APIUrl, &flags.APITimeout)

	if err := cmd.MarkFlagRequired("id"); err != nil {
		panic(err)
	}
	return cmd
}

// createListCommand creates the list subcommand
func createListCommand(devboxdCommand command, flags *ListFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List all processes launched by the daemon",
		RunE: func(cmd *cobra.Command, args []string) error {
			return devboxdCommand.List(*flags)
		},
	}

	addAPIFlags(cmd, &flags.APIUrl, &flags.APITimeout)
	return cmd
}

// createServeCommand creates the serve subcommand
func createServeCommand(flags *ServeFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve [config.toml]",
		Short: "Start the devboxd agent",
		Long: `Start the devboxd agent server. Configuration is loaded from a
TOML file when one is given; otherwise built-in defaults are used.

Examples:
  devboxd serve                          # Defaults (:8080, /workspace)
  devboxd serve config.toml              # Start with a config file
  devboxd serve --listen=:9090 --workspace=/src`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServeCommand(flags, args)
		},
	}

	cmd.Flags().StringVar(&flags.ConfigPath, "config", "", "path to TOML config file (optional)")
	cmd.Flags().StringVar(&flags.Listen, "listen", "", "listen address override")
	cmd.Flags().StringVar(&flags.Workspace, "workspace", "", "workspace root override")
	return cmd
}

func runServeCommand(flags *ServeFlags, args []string) error {
	configPath := flags.ConfigPath
	if len(args) > 0 {
		configPath = args[0]
	}

	cfg := devboxd.DefaultConfig()
	if configPath != "" {
		loaded, err := devboxd.LoadConfig(configPath)
		if err != nil {
			return fmt.Errorf("error loading config: %w", err)
		}
		cfg = loaded
	}
	if flags.Listen != "" {
		cfg.Server.Listen = flags.Listen
	}
	if flags.Workspace != "" {
		cfg.Workspace = flags.Workspace
	}

	logger := cfg.Log.NewLogger()
	slog.SetDefault(logger)

	mgr := devboxd.New()
	mgr.SetLogger(logger)

	if cfg.Metrics.Enabled {
		if err := devboxd.RegisterMetricsDefault(); err != nil {
			logger.Warn("failed to register metrics", "error", err)
		}
		sampler, err := devboxd.StartResourceSampler(context.Background(), mgr, 0)
		if err != nil {
			logger.Warn("failed to start resource sampler", "error", err)
		} else {
			defer sampler.Stop()
		}
	}

	var hub *devboxd.Hub
	if cfg.Broadcast.Enabled {
		hub = devboxd.NewHub()
		hub.AttachTo(mgr)
		defer hub.Close()
	}

	if cfg.History.Enabled {
		sink, err := devboxd.NewSinkFromDSN(cfg.History.DSN)
		if err != nil {
			return fmt.Errorf("failed to create history sink: %w", err)
		}
		mgr.SetHistorySinks(sink)
	}

	server, err := devboxd.NewHTTPServer(cfg.Server.Listen, cfg.Server.BasePath, mgr, devboxd.ServerOptions{
		Workspace: cfg.Workspace,
		Hub:       hub,
		Metrics:   cfg.Metrics.Enabled,
	})
	if err != nil {
		return fmt.Errorf("failed to create HTTP server: %w", err)
	}

	logger.Info("devboxd serving", "listen", cfg.Server.Listen, "base_path", cfg.Server.BasePath, "workspace", cfg.Workspace)

	// Wait for shutdown signal
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	logger.Info("shutting down")
	return server.Close()
}
