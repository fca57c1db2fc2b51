package supervisor

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os/exec"
	"sync"
	"syscall"
	"time"

	"github.com/hypebeast/go-osc/osc"

	"github.com/sonopleth/go-realtime-console/internal/engine"
	"github.com/sonopleth/go-realtime-console/internal/oscbus"
)

const (
	// oscHost is where the engine's parameter server listens. The engine is
	// always a local child process, so the bus only ever talks to loopback.
	oscHost = "127.0.0.1"

	// stderrPrefix marks forwarded standard-error lines in the output feed.
	stderrPrefix = "[stderr] "

	// maxOutputLine bounds a single forwarded engine line.
	maxOutputLine = 64 * 1024
)

// Default supervision timing. Overridable via Config, mainly for tests.
const (
	DefaultStartTimeout = 3 * time.Second
	DefaultStopTimeout  = 3 * time.Second
	DefaultRestartDelay = 200 * time.Millisecond
)

// CommandBuilder creates the executable command for one engine launch.
// This interface decouples the supervisor from the engine's command-line
// contract and lets tests substitute ordinary shell commands.
type CommandBuilder interface {
	// BuildCommand returns a ready-to-start command. Not yet started.
	BuildCommand(ctx context.Context) (*exec.Cmd, error)

	// Name returns a human-readable name for this process type.
	Name() string

	// CommandString returns the full command line for display.
	CommandString() string
}

// BuilderFactory produces a CommandBuilder for a launch configuration.
type BuilderFactory func(cfg *engine.LaunchConfig) CommandBuilder

// ClientFactory produces the control-bus datagram client for one run.
type ClientFactory func(host string, port int) oscbus.Client

// Callbacks contains optional callback functions for supervisor events.
// Callbacks fire in transition order and exactly once per transition;
// they must not block for long.
type Callbacks struct {
	// OnOutput is called for every forwarded line of engine output.
	OnOutput func(line string)

	// OnStateChange is called when the runner state changes.
	OnStateChange func(oldState, newState State)

	// OnFinished is called when the engine process exits, with the raw
	// exit code, after the corresponding state change.
	OnFinished func(exitCode int)
}

// Config holds configuration for creating a new Supervisor.
type Config struct {
	Logger    *slog.Logger
	Bus       *oscbus.Bus // created internally when nil
	Callbacks Callbacks

	StartTimeout time.Duration // default DefaultStartTimeout
	StopTimeout  time.Duration // default DefaultStopTimeout
	RestartDelay time.Duration // default DefaultRestartDelay

	// BuilderFactory defaults to engine.NewRunner. Tests override it.
	BuilderFactory BuilderFactory

	// ClientFactory defaults to a go-osc UDP client. Tests override it.
	ClientFactory ClientFactory
}

// Supervisor owns the engine process handle, the control bus, and the state
// machine governing the engine lifecycle. The process handle is never shared:
// collaborators interact only through lifecycle commands and events.
type Supervisor struct {
	logger    *slog.Logger
	bus       *oscbus.Bus
	callbacks Callbacks

	startTimeout time.Duration
	stopTimeout  time.Duration
	restartDelay time.Duration

	builderFactory BuilderFactory
	clientFactory  ClientFactory

	mu         sync.Mutex
	state      State
	cmd        *exec.Cmd
	waitDone   chan struct{}
	startTimer *time.Timer
	startTime  time.Time
	lastConfig *engine.LaunchConfig
	lastCmd    string
}

// New creates a new Supervisor with the given configuration.
func New(cfg Config) *Supervisor {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	startTimeout := cfg.StartTimeout
	if startTimeout <= 0 {
		startTimeout = DefaultStartTimeout
	}
	stopTimeout := cfg.StopTimeout
	if stopTimeout <= 0 {
		stopTimeout = DefaultStopTimeout
	}
	restartDelay := cfg.RestartDelay
	if restartDelay <= 0 {
		restartDelay = DefaultRestartDelay
	}

	bus := cfg.Bus
	if bus == nil {
		bus = oscbus.New(oscbus.Config{Logger: logger})
	}

	builderFactory := cfg.BuilderFactory
	if builderFactory == nil {
		builderFactory = func(lc *engine.LaunchConfig) CommandBuilder {
			return engine.NewRunner(lc)
		}
	}

	clientFactory := cfg.ClientFactory
	if clientFactory == nil {
		clientFactory = func(host string, port int) oscbus.Client {
			return osc.NewClient(host, port)
		}
	}

	return &Supervisor{
		logger:         logger,
		bus:            bus,
		callbacks:      cfg.Callbacks,
		startTimeout:   startTimeout,
		stopTimeout:    stopTimeout,
		restartDelay:   restartDelay,
		builderFactory: builderFactory,
		clientFactory:  clientFactory,
		state:          StateIdle,
	}
}

// Start launches the engine with the given configuration.
//
// Rejected (state unchanged, rejection reported) unless the current state
// allows a launch. On acceptance the supervisor transitions to Launching,
// binds the control-bus client, spawns the process asynchronously, and arms
// the start-confirmation timeout. The timeout only flags Error; it never
// kills a late process; state afterwards is driven by the exit watcher alone.
func (s *Supervisor) Start(cfg *engine.LaunchConfig) {
	s.mu.Lock()
	if !s.state.CanStart() {
		st := s.state
		s.mu.Unlock()
		s.logger.Warn("start_rejected", "state", st.String())
		s.emitOutput("[runner] already running - stop the engine first")
		return
	}
	// Reserve the launch before releasing the lock: an overlapping Start
	// (an operator command racing a Restart relaunch) must fail the gate
	// here, not after both have built commands and spawned processes.
	oldState := s.state
	s.state = StateLaunching
	s.lastConfig = cfg
	s.mu.Unlock()

	if s.callbacks.OnStateChange != nil {
		s.callbacks.OnStateChange(oldState, StateLaunching)
	}

	builder := s.builderFactory(cfg)

	cmd, err := builder.BuildCommand(context.Background())
	if err != nil {
		s.setState(StateError)
		s.emitOutput(fmt.Sprintf("[runner] cannot build engine command: %v", err))
		s.logger.Error("build_command_failed", "error", err)
		return
	}

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		s.setState(StateError)
		s.emitOutput(fmt.Sprintf("[runner] cannot attach to engine output: %v", err))
		s.logger.Error("stdout_pipe_failed", "error", err)
		return
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		s.setState(StateError)
		s.emitOutput(fmt.Sprintf("[runner] cannot attach to engine output: %v", err))
		s.logger.Error("stderr_pipe_failed", "error", err)
		return
	}

	// Own process group so graceful stop and kill reach any engine children.
	cmd.SysProcAttr = &syscall.SysProcAttr{
		Setpgid: true,
	}

	// Bind the control-bus transport for this run. The bus never creates or
	// destroys the client itself.
	s.bus.SetClient(s.clientFactory(oscHost, cfg.OSCPort))

	s.mu.Lock()
	s.cmd = cmd
	s.waitDone = make(chan struct{})
	s.lastCmd = builder.CommandString()
	s.mu.Unlock()

	s.logger.Info("engine_launching", "cmd", builder.CommandString())

	s.mu.Lock()
	s.startTimer = time.AfterFunc(s.startTimeout, s.onStartTimeout)
	s.mu.Unlock()

	go s.launch(cmd, stdout, stderr)
}

// launch spawns the process, confirms the start, forwards output, and waits
// for the exit. Runs in its own goroutine per launch.
func (s *Supervisor) launch(cmd *exec.Cmd, stdout, stderr io.ReadCloser) {
	if err := cmd.Start(); err != nil {
		s.stopStartTimer()
		s.bus.SetClient(nil)

		s.mu.Lock()
		s.cmd = nil
		done := s.waitDone
		s.waitDone = nil
		s.mu.Unlock()
		if done != nil {
			close(done)
		}

		s.setState(StateError)
		s.emitOutput(fmt.Sprintf("[runner] failed to start engine: %v", err))
		s.logger.Error("engine_start_failed", "error", err)
		return
	}

	s.mu.Lock()
	s.startTime = time.Now()
	s.mu.Unlock()
	s.stopStartTimer()

	pid := cmd.Process.Pid
	s.logger.Info("engine_started", "pid", pid)

	if s.transition(StateLaunching, StateRunning) {
		s.emitOutput("[runner] engine process started")
	} else {
		// Start confirmed after the timeout already flagged Error.
		s.logger.Warn("engine_started_late", "pid", pid)
	}

	var readers sync.WaitGroup
	readers.Add(2)
	go s.forwardLines(stdout, "", &readers)
	go s.forwardLines(stderr, stderrPrefix, &readers)

	// Drain both streams before reaping so output events always precede the
	// terminal finished event.
	readers.Wait()
	waitErr := cmd.Wait()
	s.onExit(extractExitCode(waitErr))
}

// forwardLines forwards one stream of engine output line by line.
func (s *Supervisor) forwardLines(r io.Reader, prefix string, wg *sync.WaitGroup) {
	defer wg.Done()

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, maxOutputLine), maxOutputLine)
	for scanner.Scan() {
		s.emitOutput(prefix + scanner.Text())
	}
}

// onStartTimeout flags a launch that never confirmed. The process, if it was
// spawned at all, is left alone.
func (s *Supervisor) onStartTimeout() {
	if s.transition(StateLaunching, StateError) {
		s.emitOutput(fmt.Sprintf("[runner] engine failed to start within %s", s.startTimeout))
		s.logger.Error("engine_start_timeout", "timeout", s.startTimeout.String())
	}
}

// onExit reaps the run: tears down the control-bus transport, clears the
// process handle, classifies the exit code, and emits the state change plus
// the terminal finished event.
func (s *Supervisor) onExit(exitCode int) {
	// Unbind before announcing the exit so a consumer reacting to the state
	// change cannot race a send into a dead port.
	s.bus.SetClient(nil)

	s.mu.Lock()
	s.cmd = nil
	done := s.waitDone
	s.waitDone = nil
	uptime := time.Since(s.startTime)
	s.mu.Unlock()

	if done != nil {
		close(done)
	}

	if benignExit(exitCode) {
		s.setState(StateExited)
		s.emitOutput(fmt.Sprintf("[runner] engine exited cleanly (code %d)", exitCode))
	} else {
		s.setState(StateError)
		s.emitOutput(fmt.Sprintf("[runner] engine exited with error code %d", exitCode))
	}

	s.logger.Info("engine_exited",
		"exit_code", exitCode,
		"uptime", uptime.String(),
	)

	if s.callbacks.OnFinished != nil {
		s.callbacks.OnFinished(exitCode)
	}
}

// StopGraceful requests cooperative termination: SIGTERM to the process
// group, a bounded wait for the exit watcher, then a single SIGKILL
// escalation. No-op when no engine is active. State is not changed here;
// only the exit watcher transitions state.
func (s *Supervisor) StopGraceful() {
	s.mu.Lock()
	if !s.state.IsActive() || s.cmd == nil || s.cmd.Process == nil {
		s.mu.Unlock()
		return
	}
	cmd := s.cmd
	done := s.waitDone
	s.mu.Unlock()

	s.logger.Info("engine_stopping", "pid", cmd.Process.Pid)
	signalGroup(cmd, syscall.SIGTERM)

	select {
	case <-done:
	case <-time.After(s.stopTimeout):
		s.logger.Warn("force_killing_engine",
			"pid", cmd.Process.Pid,
			"timeout", s.stopTimeout.String(),
		)
		signalGroup(cmd, syscall.SIGKILL)
	}
}

// Kill sends an immediate, non-gracable SIGKILL, independent of state.
func (s *Supervisor) Kill() {
	s.mu.Lock()
	cmd := s.cmd
	s.mu.Unlock()

	if cmd == nil || cmd.Process == nil {
		return
	}
	s.logger.Warn("engine_killed", "pid", cmd.Process.Pid)
	signalGroup(cmd, syscall.SIGKILL)
}

// Restart stops the engine gracefully and relaunches it with the last
// configuration after a short delay, giving the exit path time to reap the
// process and release the OSC port. With no prior launch it only reports.
func (s *Supervisor) Restart() {
	s.mu.Lock()
	cfg := s.lastConfig
	s.mu.Unlock()

	if cfg == nil {
		s.logger.Warn("restart_without_config")
		s.emitOutput("[runner] no previous launch to restart")
		return
	}

	s.StopGraceful()
	time.AfterFunc(s.restartDelay, func() {
		// Best effort: a competing Start in the meantime re-enters the
		// normal "reject if active" path.
		s.Start(cfg)
	})
}

// Pause sends /realtime/paused 1.0 through the gated send path and flips the
// local state only when currently Running. The datagram goes out (subject to
// gating) regardless, so repeated pauses re-send without changing state.
func (s *Supervisor) Pause() {
	s.SendControl(oscbus.AddrPaused, 1.0)
	if s.transition(StateRunning, StatePaused) {
		s.logger.Info("engine_paused")
	}
}

// Play sends /realtime/paused 0.0 and flips back to Running only from Paused.
func (s *Supervisor) Play() {
	s.SendControl(oscbus.AddrPaused, 0.0)
	if s.transition(StatePaused, StateRunning) {
		s.logger.Info("engine_resumed")
	}
}

// ScheduleControl forwards a debounced control update to the bus, gated on
// the engine being live. Edits during Launching are silently dropped.
func (s *Supervisor) ScheduleControl(address string, value float32) {
	if !s.State().ControlsLive() {
		return
	}
	s.bus.Schedule(address, value)
}

// SendControl forwards an immediate control update to the bus, gated on the
// engine being live.
func (s *Supervisor) SendControl(address string, value float32) {
	if !s.State().ControlsLive() {
		return
	}
	s.bus.SendNow(address, value)
}

// State returns the current runner state.
func (s *Supervisor) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// LastCommand returns the full command line of the most recent launch.
func (s *Supervisor) LastCommand() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastCmd
}

// LastConfig returns the configuration of the most recent launch, or nil.
func (s *Supervisor) LastConfig() *engine.LaunchConfig {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastConfig
}

// Uptime returns the time since start confirmation, or 0 when not live.
func (s *Supervisor) Uptime() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.state.ControlsLive() {
		return 0
	}
	return time.Since(s.startTime)
}

// Bus returns the control bus owned by this supervisor.
func (s *Supervisor) Bus() *oscbus.Bus {
	return s.bus
}

// setState unconditionally moves to newState, emitting at most one
// state-change event.
func (s *Supervisor) setState(newState State) {
	s.mu.Lock()
	oldState := s.state
	if oldState == newState {
		s.mu.Unlock()
		return
	}
	s.state = newState
	s.mu.Unlock()

	if s.callbacks.OnStateChange != nil {
		s.callbacks.OnStateChange(oldState, newState)
	}
}

// transition moves from a required state to newState. Returns false, leaving
// state untouched, when the precondition does not hold.
func (s *Supervisor) transition(from, to State) bool {
	s.mu.Lock()
	if s.state != from {
		s.mu.Unlock()
		return false
	}
	s.state = to
	s.mu.Unlock()

	if s.callbacks.OnStateChange != nil {
		s.callbacks.OnStateChange(from, to)
	}
	return true
}

// stopStartTimer disarms the start-confirmation timeout.
func (s *Supervisor) stopStartTimer() {
	s.mu.Lock()
	if s.startTimer != nil {
		s.startTimer.Stop()
		s.startTimer = nil
	}
	s.mu.Unlock()
}

// emitOutput forwards one line to the output callback.
func (s *Supervisor) emitOutput(line string) {
	if s.callbacks.OnOutput != nil {
		s.callbacks.OnOutput(line)
	}
}

// signalGroup signals the whole process group, falling back to the process
// itself when the group is gone.
func signalGroup(cmd *exec.Cmd, sig syscall.Signal) {
	if pgid, err := syscall.Getpgid(cmd.Process.Pid); err == nil {
		syscall.Kill(-pgid, sig)
	} else {
		cmd.Process.Signal(sig)
	}
}

// benignExit reports whether the exit code counts as a clean termination.
// 0 is a normal exit, 130 is death by SIGINT (128+2), and -2 is kept for
// parity with the engine's historical launcher contract.
func benignExit(code int) bool {
	return code == 0 || code == 130 || code == -2
}

// extractExitCode extracts the exit code from a Wait() error.
func extractExitCode(err error) int {
	if err == nil {
		return 0
	}

	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		if status, ok := exitErr.Sys().(syscall.WaitStatus); ok {
			if status.Signaled() {
				// Signal exit: 128 + signal number
				return 128 + int(status.Signal())
			}
			return status.ExitStatus()
		}
	}

	// Unknown error, assume exit code 1
	return 1
}
