package metrics

import (
	"errors"
	"net/http"
	"sync/atomic"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Package-level Prometheus collectors. They are registered via Register.
var (
	regOK atomic.Bool

	execsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "devboxd",
			Subsystem: "process",
			Name:      "execs_total",
			Help:      "Number of successful async process launches.",
		},
	)
	spawnFailures = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "devboxd",
			Subsystem: "process",
			Name:      "spawn_failures_total",
			Help:      "Number of launches that failed before the process started.",
		},
	)
	exitsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "devboxd",
			Subsystem: "process",
			Name:      "exits_total",
			Help:      "Number of process exits by terminal status.",
		}, []string{"status"},
	)
	runningProcesses = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "devboxd",
			Subsystem: "process",
			Name:      "running",
			Help:      "Current number of running managed processes.",
		},
	)
	signalsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "devboxd",
			Subsystem: "process",
			Name:      "signals_total",
			Help:      "Number of signals delivered via the kill endpoint.",
		}, []string{"signal"},
	)
	logLinesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "devboxd",
			Subsystem: "process",
			Name:      "log_lines_total",
			Help:      "Number of captured log lines by source.",
		}, []string{"source"},
	)
	syncExecDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "devboxd",
			Subsystem: "process",
			Name:      "sync_exec_duration_seconds",
			Help:      "Wall-clock duration of synchronous executions.",
			Buckets:   prometheus.DefBuckets,
		},
	)
	syncExecTimeouts = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "devboxd",
			Subsystem: "process",
			Name:      "sync_exec_timeouts_total",
			Help:      "Number of synchronous executions killed on timeout.",
		},
	)
)

// Register registers all metrics with the provided registerer.
// It is safe to call multiple times; subsequent calls after success are no-ops.
func Register(r prometheus.Registerer) error {
	if regOK.Load() {
		return nil
	}
	cs := []prometheus.Collector{
		execsTotal, spawnFailures, exitsTotal, runningProcesses,
		signalsTotal, logLinesTotal, syncExecDuration, syncExecTimeouts,
	}
	for _, c := range cs {
		if err := r.Register(c); err != nil {
			var are prometheus.AlreadyRegisteredError
			if errors.As(err, &are) {
				continue
			}
			return err
		}
	}
	regOK.Store(true)
	return nil
}

// Handler returns an http.Handler serving Prometheus metrics for the
// DefaultGatherer. The caller wires the route.
func Handler() http.Handler { return promhttp.Handler() }

// Helpers below no-op until Register has been called.

func IncExec() {
	if regOK.Load() {
		execsTotal.Inc()
		runningProcesses.Inc()
	}
}

func IncSpawnFailure() {
	if regOK.Load() {
		spawnFailures.Inc()
	}
}

func IncExit(status string) {
	if regOK.Load() {
		exitsTotal.WithLabelValues(status).Inc()
		runningProcesses.Dec()
	}
}

func IncSignal(signal string) {
	if regOK.Load() {
		signalsTotal.WithLabelValues(signal).Inc()
	}
}

func IncLogLine(source string) {
	if regOK.Load() {
		logLinesTotal.WithLabelValues(source).Inc()
	}
}

func ObserveSyncExec(seconds float64) {
	if regOK.Load() {
		syncExecDuration.Observe(seconds)
	}
}

func IncSyncTimeout() {
	if regOK.Load() {
		syncExecTimeouts.Inc()
	}
}
