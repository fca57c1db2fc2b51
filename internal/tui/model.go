package tui

import (
	"fmt"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/sonopleth/go-realtime-console/internal/console"
	"github.com/sonopleth/go-realtime-console/internal/supervisor"
)

// =============================================================================
// Messages
// =============================================================================

// TickMsg is sent periodically to refresh the display.
type TickMsg time.Time

// QuitMsg signals the TUI should exit.
type QuitMsg struct{}

// tickInterval is the display refresh period. Engine state and output are
// pulled from the controller on every tick, so the TUI never blocks on the
// supervisor's callbacks.
const tickInterval = 250 * time.Millisecond

// logTailLines is how many recent engine lines the output panel shows.
const logTailLines = 12

// =============================================================================
// Model
// =============================================================================

// Model represents the TUI state.
type Model struct {
	// Configuration
	metricsAddr string
	version     string

	// Controller is the transport/control backend.
	ctl *console.Controller

	// Current display state
	startTime  time.Time
	lastUpdate time.Time
	selected   int
	showOutput bool

	// Display options
	width  int
	height int

	// Quit flag
	quitting bool
}

// Config holds TUI configuration.
type Config struct {
	Controller  *console.Controller
	MetricsAddr string
	Version     string
}

// New creates a new TUI model.
func New(cfg Config) Model {
	return Model{
		ctl:         cfg.Controller,
		metricsAddr: cfg.MetricsAddr,
		version:     cfg.Version,
		startTime:   time.Now(),
		lastUpdate:  time.Now(),
		showOutput:  true,
		width:       80,
		height:      24,
	}
}

// =============================================================================
// Bubble Tea Interface
// =============================================================================

// Init initializes the model.
func (m Model) Init() tea.Cmd {
	return tickCmd()
}

// Update handles messages.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKey(msg)

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil

	case TickMsg:
		m.lastUpdate = time.Now()
		return m, tickCmd()

	case QuitMsg:
		m.quitting = true
		return m, tea.Quit
	}

	return m, nil
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "q", "ctrl+c", "esc":
		m.quitting = true
		return m, tea.Quit

	case "s":
		m.ctl.Start()
	case "x":
		m.ctl.Stop()
	case "k":
		m.ctl.Kill()
	case "r":
		m.ctl.Restart()

	case " ":
		// Space toggles pause/play depending on the current state.
		switch m.ctl.State() {
		case supervisor.StateRunning:
			m.ctl.Pause()
		case supervisor.StatePaused:
			m.ctl.Play()
		}

	case "up":
		if m.selected > 0 {
			m.selected--
		}
	case "down":
		if m.selected < len(m.ctl.Controls())-1 {
			m.selected++
		}

	case "left":
		m.adjustSelected(-1)
	case "right":
		m.adjustSelected(1)
	case "shift+left":
		m.adjustSelected(-5)
	case "shift+right":
		m.adjustSelected(5)

	case "d":
		m.ctl.ResetDefaults()
	case "o":
		m.showOutput = !m.showOutput
	}

	return m, nil
}

// adjustSelected nudges the currently selected control by n steps.
func (m Model) adjustSelected(steps int) {
	controls := m.ctl.Controls()
	if m.selected < 0 || m.selected >= len(controls) {
		return
	}
	m.ctl.AdjustControl(controls[m.selected].Address, steps)
}

// View renders the TUI.
func (m Model) View() string {
	if m.quitting {
		return ""
	}
	return m.renderDashboard()
}

// =============================================================================
// Commands
// =============================================================================

// tickCmd returns a command that sends a tick after the refresh interval.
func tickCmd() tea.Cmd {
	return tea.Tick(tickInterval, func(t time.Time) tea.Msg {
		return TickMsg(t)
	})
}

// =============================================================================
// Accessors
// =============================================================================

// Elapsed returns the time since the console started.
func (m Model) Elapsed() time.Duration {
	return time.Since(m.startTime)
}

// Selected returns the index of the highlighted control.
func (m Model) Selected() int {
	return m.selected
}

// =============================================================================
// Helper for external use
// =============================================================================

// SendQuit sends a quit message to the TUI.
func SendQuit(p *tea.Program) {
	if p != nil {
		p.Send(QuitMsg{})
	}
}

// =============================================================================
// Formatting Helpers (used by view.go)
// =============================================================================

// formatDuration formats a duration as HH:MM:SS.
func formatDuration(d time.Duration) string {
	h := int(d.Hours())
	mins := int(d.Minutes()) % 60
	s := int(d.Seconds()) % 60
	return fmt.Sprintf("%02d:%02d:%02d", h, mins, s)
}

// formatControlValue formats a control value: whole numbers for discrete
// controls, two decimals for continuous ones.
func formatControlValue(c console.ControlValue) string {
	if c.Discrete {
		return fmt.Sprintf("%d", int(c.Value))
	}
	return fmt.Sprintf("%.2f", c.Value)
}

// formatMsValue formats milliseconds for the telemetry line.
func formatMsValue(ms float64) string {
	if ms <= 0 {
		return "-"
	}
	if ms < 1.0 {
		return fmt.Sprintf("%.2fms", ms)
	}
	return fmt.Sprintf("%.1fms", ms)
}
