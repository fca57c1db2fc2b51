// Package console is the transport-controller glue between an operator
// surface (TUI or headless loop) and the engine supervisor.
//
// It maps transport commands onto supervisor calls, keeps the current value
// of every live control, and re-flushes those values over the control bus
// once the engine confirms start. Edits made while Launching are dropped at
// the transport boundary, so the flush is what makes the engine agree with
// the console.
package console

import (
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sonopleth/go-realtime-console/internal/engine"
	"github.com/sonopleth/go-realtime-console/internal/logging"
	"github.com/sonopleth/go-realtime-console/internal/metrics"
	"github.com/sonopleth/go-realtime-console/internal/oscbus"
	"github.com/sonopleth/go-realtime-console/internal/stats"
	"github.com/sonopleth/go-realtime-console/internal/supervisor"
	"github.com/sonopleth/go-realtime-console/internal/timeseries"
)

// EventKind discriminates console events.
type EventKind int

const (
	// EventOutput carries one forwarded line of engine output.
	EventOutput EventKind = iota

	// EventState carries a runner state transition.
	EventState

	// EventFinished carries the terminal exit code of a run.
	EventFinished
)

// Event is one item on the console's event feed.
type Event struct {
	Kind     EventKind
	Line     string
	OldState supervisor.State
	NewState supervisor.State
	ExitCode int
}

// eventBuffer bounds the feed; a slow consumer loses old events, never
// blocks the supervisor.
const eventBuffer = 256

// Config holds configuration for creating a Controller.
type Config struct {
	Logger *slog.Logger

	// Launch is the engine configuration used by Start and Restart.
	Launch *engine.LaunchConfig

	// DebouncePeriod for the control bus. Zero means the bus default.
	DebouncePeriod time.Duration

	// Supervision timing. Zero values mean supervisor defaults.
	StartTimeout time.Duration
	StopTimeout  time.Duration
	RestartDelay time.Duration

	// Collector receives lifecycle and control-bus metrics. Optional.
	Collector *metrics.Collector

	// Verbose controls engine-output log levels.
	Verbose bool

	// Test hooks, passed through to the supervisor.
	BuilderFactory supervisor.BuilderFactory
	ClientFactory  supervisor.ClientFactory
}

// Controller owns the supervisor and presents the transport contract:
// Start / Stop / Kill / Restart / Pause / Play plus control edits.
type Controller struct {
	logger    *slog.Logger
	sup       *supervisor.Supervisor
	launch    *engine.LaunchConfig
	stats     *stats.ControlStats
	collector *metrics.Collector
	output    *logging.OutputBuffer
	rates     *timeseries.RateTracker
	catalog   []Control

	events  chan Event
	dropped atomic.Int64

	mu       sync.Mutex
	values   map[string]float64
	lastExit int
	exited   bool
}

// New creates a Controller and its supervisor/bus stack.
func New(cfg Config) *Controller {
	c := &Controller{
		logger:    cfg.Logger,
		launch:    cfg.Launch,
		stats:     stats.NewControlStats(),
		collector: cfg.Collector,
		output:    logging.NewOutputBuffer(cfg.Logger, cfg.Verbose),
		rates:     timeseries.NewRateTracker(),
		catalog:   Catalog(),
		events:    make(chan Event, eventBuffer),
		values:    make(map[string]float64),
	}

	for _, ctl := range c.catalog {
		c.values[ctl.Address] = ctl.Default
	}
	if cfg.Launch != nil {
		// Command-line gain/focus are also the initial live values.
		c.values[oscbus.AddrGain] = cfg.Launch.MasterGain
		c.values[oscbus.AddrFocus] = cfg.Launch.DBAPFocus
	}

	bus := oscbus.New(oscbus.Config{
		QuietPeriod: cfg.DebouncePeriod,
		Logger:      cfg.Logger,
		Recorder: &telemetry{
			stats:     c.stats,
			collector: cfg.Collector,
			rates:     c.rates,
		},
	})

	c.sup = supervisor.New(supervisor.Config{
		Logger: cfg.Logger,
		Bus:    bus,
		Callbacks: supervisor.Callbacks{
			OnOutput:      c.onOutput,
			OnStateChange: c.onStateChange,
			OnFinished:    c.onFinished,
		},
		StartTimeout:   cfg.StartTimeout,
		StopTimeout:    cfg.StopTimeout,
		RestartDelay:   cfg.RestartDelay,
		BuilderFactory: cfg.BuilderFactory,
		ClientFactory:  cfg.ClientFactory,
	})

	return c
}

// --- Transport commands ---

// Start launches the engine with the configured launch parameters.
func (c *Controller) Start() {
	if c.collector != nil {
		c.collector.EngineLaunched()
	}
	c.sup.Start(c.launch)
}

// Stop requests graceful termination (SIGTERM, bounded wait, SIGKILL).
func (c *Controller) Stop() {
	c.sup.StopGraceful()
}

// Kill forces immediate termination.
func (c *Controller) Kill() {
	c.sup.Kill()
}

// Restart stops the engine and relaunches it with the same configuration.
func (c *Controller) Restart() {
	if c.collector != nil {
		c.collector.EngineRestarted()
	}
	c.sup.Restart()
}

// Pause sends the pause control and flips the belief state when Running.
func (c *Controller) Pause() {
	c.sup.Pause()
}

// Play sends the resume control and flips the belief state when Paused.
func (c *Controller) Play() {
	c.sup.Play()
}

// --- Control edits ---

// SetControl clamps and records a new value for the control at address and
// forwards it to the engine: debounced for continuous controls, immediate
// for discrete ones. Unknown addresses are ignored.
func (c *Controller) SetControl(address string, value float64) {
	ctl, ok := c.control(address)
	if !ok {
		c.logger.Warn("unknown_control", "address", address)
		return
	}
	value = ctl.Clamp(value)

	c.mu.Lock()
	c.values[address] = value
	c.mu.Unlock()

	if ctl.Discrete {
		c.sup.SendControl(address, float32(value))
	} else {
		c.sup.ScheduleControl(address, float32(value))
	}
}

// AdjustControl nudges a control by n steps.
func (c *Controller) AdjustControl(address string, steps int) {
	ctl, ok := c.control(address)
	if !ok {
		return
	}
	c.mu.Lock()
	current := c.values[address]
	c.mu.Unlock()
	c.SetControl(address, current+float64(steps)*ctl.Step)
}

// ResetDefaults restores every control to its default value without firing
// any control-bus traffic, mirroring the reset behavior of the original
// control panel.
func (c *Controller) ResetDefaults() {
	c.mu.Lock()
	for _, ctl := range c.catalog {
		c.values[ctl.Address] = ctl.Default
	}
	c.mu.Unlock()
}

// ControlValue pairs a catalog entry with its current value.
type ControlValue struct {
	Control
	Value float64
}

// Controls returns the catalog with current values, in display order.
func (c *Controller) Controls() []ControlValue {
	c.mu.Lock()
	defer c.mu.Unlock()

	out := make([]ControlValue, 0, len(c.catalog))
	for _, ctl := range c.catalog {
		out = append(out, ControlValue{Control: ctl, Value: c.values[ctl.Address]})
	}
	return out
}

// --- Introspection ---

// Events returns the console event feed.
func (c *Controller) Events() <-chan Event {
	return c.events
}

// State returns the current runner state.
func (c *Controller) State() supervisor.State {
	return c.sup.State()
}

// LastCommand returns the engine command line of the most recent launch.
func (c *Controller) LastCommand() string {
	return c.sup.LastCommand()
}

// Uptime returns the time since the engine confirmed start.
func (c *Controller) Uptime() time.Duration {
	return c.sup.Uptime()
}

// LastExit returns the most recent exit code and whether any run finished.
func (c *Controller) LastExit() (int, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastExit, c.exited
}

// Telemetry returns a snapshot of control-bus statistics.
func (c *Controller) Telemetry() stats.Snapshot {
	return c.stats.Snapshot()
}

// Rates samples the datagram counter and returns rolling send rates.
// Call on a steady cadence (the display tick) for meaningful windows.
func (c *Controller) Rates() timeseries.RateStats {
	c.rates.RecordSample()
	return c.rates.Stats()
}

// RecentOutput returns up to n recent engine output lines, oldest first.
func (c *Controller) RecentOutput(n int) []string {
	return c.output.RecentLines(n)
}

// DroppedEvents returns how many events a slow consumer has lost.
func (c *Controller) DroppedEvents() int64 {
	return c.dropped.Load()
}

// --- Supervisor callbacks ---

func (c *Controller) onOutput(line string) {
	c.output.HandleLine(line)
	c.push(Event{Kind: EventOutput, Line: line})
}

func (c *Controller) onStateChange(oldState, newState supervisor.State) {
	if c.collector != nil {
		c.collector.SetState(newState.String())
		if oldState == supervisor.StateLaunching && newState == supervisor.StateError {
			c.collector.LaunchFailed()
		}
	}

	if newState == supervisor.StateRunning && oldState == supervisor.StateLaunching {
		// The engine just came up with command-line defaults; make it agree
		// with whatever the console currently shows.
		c.flushControls()
	}

	c.push(Event{Kind: EventState, OldState: oldState, NewState: newState})
}

func (c *Controller) onFinished(exitCode int) {
	clean := c.sup.State() == supervisor.StateExited

	c.mu.Lock()
	c.lastExit = exitCode
	c.exited = true
	c.mu.Unlock()

	if c.collector != nil {
		c.collector.RecordExit(exitCode, clean)
	}
	c.push(Event{Kind: EventFinished, ExitCode: exitCode})
}

// flushControls re-sends every current control value immediately.
func (c *Controller) flushControls() {
	c.mu.Lock()
	values := make(map[string]float64, len(c.values))
	for addr, v := range c.values {
		values[addr] = v
	}
	c.mu.Unlock()

	for _, ctl := range c.catalog {
		c.sup.SendControl(ctl.Address, float32(values[ctl.Address]))
	}
}

// control looks up a catalog entry by address.
func (c *Controller) control(address string) (Control, bool) {
	for _, ctl := range c.catalog {
		if ctl.Address == address {
			return ctl, true
		}
	}
	return Control{}, false
}

// push delivers an event without ever blocking the supervisor.
func (c *Controller) push(ev Event) {
	select {
	case c.events <- ev:
	default:
		c.dropped.Add(1)
	}
}

// telemetry fans control-bus telemetry out to stats, Prometheus, and the
// send-rate tracker.
type telemetry struct {
	stats     *stats.ControlStats
	collector *metrics.Collector
	rates     *timeseries.RateTracker
}

func (t *telemetry) RecordScheduled(address string) {
	t.stats.RecordScheduled(address)
	if t.collector != nil {
		t.collector.OSCScheduled()
	}
}

func (t *telemetry) RecordCoalesced(address string) {
	t.stats.RecordCoalesced(address)
	if t.collector != nil {
		t.collector.OSCCoalesced()
	}
}

func (t *telemetry) RecordSent(address string, settle time.Duration) {
	t.stats.RecordSent(address, settle)
	t.rates.Add(1)
	if t.collector != nil {
		t.collector.OSCSent(settle)
	}
}

func (t *telemetry) RecordImmediate(address string) {
	t.stats.RecordImmediate(address)
	t.rates.Add(1)
	if t.collector != nil {
		t.collector.OSCImmediate()
	}
}
