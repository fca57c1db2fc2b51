// Package metrics provides Prometheus metrics for go-realtime-console.
//
// The metric surface is small: engine lifecycle (state, launches, exits) and
// control-bus behavior (datagrams sent, coalescing, debounce settle time).
package metrics

import (
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// --- Engine lifecycle ---
var (
	consoleInfo = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "sono_console_info",
			Help: "Information about the console (value always 1)",
		},
		[]string{"version", "engine"},
	)

	engineState = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "sono_console_engine_state",
			Help: "Current runner state (1 for the active state, 0 otherwise)",
		},
		[]string{"state"},
	)

	engineUptimeSeconds = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "sono_console_engine_uptime_seconds",
			Help: "Seconds since the engine confirmed start (0 when not live)",
		},
	)

	launchesTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "sono_console_engine_launches_total",
			Help: "Total engine launch attempts",
		},
	)

	restartsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "sono_console_engine_restarts_total",
			Help: "Total restart commands issued",
		},
	)

	exitsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sono_console_engine_exits_total",
			Help: "Engine exits by classification",
		},
		[]string{"class", "exit_code"},
	)

	launchFailuresTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "sono_console_engine_launch_failures_total",
			Help: "Launches that failed to spawn or confirm start in time",
		},
	)
)

// --- Control bus ---
var (
	oscScheduledTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "sono_console_osc_scheduled_total",
			Help: "Debounced control updates scheduled",
		},
	)

	oscCoalescedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "sono_console_osc_coalesced_total",
			Help: "Pending control updates overwritten before sending",
		},
	)

	oscSentTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sono_console_osc_sent_total",
			Help: "Control datagrams sent, by delivery mode",
		},
		[]string{"mode"},
	)

	oscSettleSeconds = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "sono_console_osc_settle_seconds",
			Help:    "Time from first scheduled edit of a burst to the datagram",
			Buckets: []float64{0.04, 0.05, 0.075, 0.1, 0.15, 0.25, 0.5, 1},
		},
	)
)

// stateNames is every runner state the engine_state gauge tracks.
var stateNames = []string{"Idle", "Launching", "Running", "Paused", "Exited", "Error"}

// Collector wraps metric updates for the console.
type Collector struct {
	mu sync.Mutex
}

// CollectorConfig holds identification labels for the info metric.
type CollectorConfig struct {
	Version    string
	EnginePath string
}

// NewCollector creates a collector registered on the default registry.
func NewCollector(cfg CollectorConfig) *Collector {
	return NewCollectorWithRegistry(cfg, prometheus.DefaultRegisterer)
}

// NewCollectorWithRegistry creates a collector registered on a custom
// registry (used by tests to avoid default-registry collisions).
func NewCollectorWithRegistry(cfg CollectorConfig, registry prometheus.Registerer) *Collector {
	registry.MustRegister(
		consoleInfo,
		engineState,
		engineUptimeSeconds,
		launchesTotal,
		restartsTotal,
		exitsTotal,
		launchFailuresTotal,
		oscScheduledTotal,
		oscCoalescedTotal,
		oscSentTotal,
		oscSettleSeconds,
	)

	consoleInfo.WithLabelValues(cfg.Version, cfg.EnginePath).Set(1)

	c := &Collector{}
	c.SetState("Idle")
	return c
}

// SetState marks the current runner state on the state gauge.
func (c *Collector) SetState(state string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, name := range stateNames {
		v := 0.0
		if name == state {
			v = 1.0
		}
		engineState.WithLabelValues(name).Set(v)
	}
}

// EngineLaunched counts a launch attempt.
func (c *Collector) EngineLaunched() {
	launchesTotal.Inc()
}

// EngineRestarted counts a restart command.
func (c *Collector) EngineRestarted() {
	restartsTotal.Inc()
}

// LaunchFailed counts a launch that never reached Running.
func (c *Collector) LaunchFailed() {
	launchFailuresTotal.Inc()
}

// RecordExit counts an engine exit with its classification.
func (c *Collector) RecordExit(exitCode int, clean bool) {
	class := "error"
	if clean {
		class = "clean"
	}
	exitsTotal.WithLabelValues(class, strconv.Itoa(exitCode)).Inc()
	engineUptimeSeconds.Set(0)
}

// SetUptime updates the live uptime gauge.
func (c *Collector) SetUptime(uptime time.Duration) {
	engineUptimeSeconds.Set(uptime.Seconds())
}

// OSCScheduled counts a debounced schedule call.
func (c *Collector) OSCScheduled() {
	oscScheduledTotal.Inc()
}

// OSCCoalesced counts an overwritten pending update.
func (c *Collector) OSCCoalesced() {
	oscCoalescedTotal.Inc()
}

// OSCSent counts a debounced datagram and its settle latency.
func (c *Collector) OSCSent(settle time.Duration) {
	oscSentTotal.WithLabelValues("debounced").Inc()
	oscSettleSeconds.Observe(settle.Seconds())
}

// OSCImmediate counts an immediate datagram.
func (c *Collector) OSCImmediate() {
	oscSentTotal.WithLabelValues("immediate").Inc()
}
