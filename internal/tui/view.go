package tui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/sonopleth/go-realtime-console/internal/supervisor"
)

// =============================================================================
// Main View Rendering
// =============================================================================

// renderDashboard renders the full console screen.
func (m Model) renderDashboard() string {
	var sections []string

	sections = append(sections, m.renderHeader())
	sections = append(sections, m.renderTransport())
	sections = append(sections, m.renderControls())
	sections = append(sections, m.renderTelemetry())

	if m.showOutput {
		sections = append(sections, m.renderOutput())
	}

	sections = append(sections, m.renderFooter())

	return lipgloss.JoinVertical(lipgloss.Left, sections...)
}

// =============================================================================
// Header
// =============================================================================

func (m Model) renderHeader() string {
	header := fmt.Sprintf(
		" go-realtime-console %s │ %s │ Elapsed: %s ",
		m.version,
		StatePill(m.ctl.State()),
		formatDuration(m.Elapsed()),
	)

	return headerStyle.Width(m.width).Render(header)
}

// =============================================================================
// Transport Section
// =============================================================================

func (m Model) renderTransport() string {
	state := m.ctl.State()

	rows := []string{
		RenderKeyValue("State", StatePill(state)),
	}

	if state.IsActive() {
		rows = append(rows, RenderKeyValue("Uptime", formatDuration(m.ctl.Uptime())))
	} else if code, ok := m.ctl.LastExit(); ok {
		rows = append(rows, RenderKeyValue("Last exit", fmt.Sprintf("code %d", code)))
	}

	if cmd := m.ctl.LastCommand(); cmd != "" {
		rows = append(rows, RenderKeyValue("Command", truncate(cmd, m.width-24)))
	}
	if m.metricsAddr != "" {
		rows = append(rows, RenderKeyValue("Metrics", "http://"+m.metricsAddr+"/metrics"))
	}

	content := lipgloss.JoinVertical(lipgloss.Left,
		append([]string{sectionHeaderStyle.Render("Transport")}, rows...)...,
	)

	return boxStyle.Width(m.width - 2).Render(content)
}

// =============================================================================
// Controls Section
// =============================================================================

func (m Model) renderControls() string {
	controls := m.ctl.Controls()
	live := m.ctl.State().ControlsLive()

	sliderWidth := m.width - 44
	if sliderWidth < 16 {
		sliderWidth = 16
	}

	rows := make([]string, 0, len(controls)+1)
	for i, c := range controls {
		label := labelStyle
		value := valueStyle
		cursor := "  "
		if i == m.selected {
			label = selectedLabelStyle
			value = selectedValueStyle
			cursor = "> "
		}

		var gauge string
		if c.Discrete {
			gauge = RenderToggle(c.Value, c.Max)
		} else {
			gauge = RenderSlider(c.Value, c.Min, c.Max, sliderWidth)
		}

		rows = append(rows, lipgloss.JoinHorizontal(lipgloss.Left,
			cursor,
			label.Render(c.Label),
			value.Width(8).Render(formatControlValue(c)),
			gauge,
		))
	}

	if !live {
		rows = append(rows, dimStyle.Render("controls are sent once the engine is running"))
	}

	content := lipgloss.JoinVertical(lipgloss.Left,
		append([]string{sectionHeaderStyle.Render("Controls")}, rows...)...,
	)

	return boxStyle.Width(m.width - 2).Render(content)
}

// =============================================================================
// Telemetry Section
// =============================================================================

func (m Model) renderTelemetry() string {
	snap := m.ctl.Telemetry()
	rates := m.ctl.Rates()

	line := fmt.Sprintf(
		"sent %d  coalesced %d (%.0f%%)  immediate %d  settle p50 %s  p95 %s  max %s",
		snap.Sent,
		snap.Coalesced,
		snap.CoalesceRatio*100,
		snap.Immediate,
		formatMsValue(snap.SettleP50),
		formatMsValue(snap.SettleP95),
		formatMsValue(float64(snap.SettleMax) / float64(time.Millisecond)),
	)
	rateLine := fmt.Sprintf(
		"rate 1s %.1f/s  10s %.1f/s  overall %.1f/s",
		rates.Rate1s,
		rates.Rate10s,
		rates.RateOverall,
	)

	content := lipgloss.JoinVertical(lipgloss.Left,
		sectionHeaderStyle.Render("Control Bus"),
		mutedStyle.Render(line),
		mutedStyle.Render(rateLine),
	)

	return boxStyle.Width(m.width - 2).Render(content)
}

// =============================================================================
// Engine Output Section
// =============================================================================

func (m Model) renderOutput() string {
	lines := m.ctl.RecentOutput(logTailLines)

	rows := make([]string, 0, len(lines)+1)
	if len(lines) == 0 {
		rows = append(rows, dimStyle.Render("(no engine output yet)"))
	}
	for _, line := range lines {
		style := mutedStyle
		if strings.HasPrefix(line, "[stderr]") || strings.HasPrefix(line, "[runner]") {
			style = dimStyle
		}
		rows = append(rows, style.Render(truncate(line, m.width-6)))
	}

	content := lipgloss.JoinVertical(lipgloss.Left,
		append([]string{sectionHeaderStyle.Render("Engine Output")}, rows...)...,
	)

	return boxStyle.Width(m.width - 2).Render(content)
}

// =============================================================================
// Footer
// =============================================================================

func (m Model) renderFooter() string {
	keys := "s start │ x stop │ k kill │ r restart │ space " + pauseLabel(m.ctl.State()) +
		" │ ↑/↓ select │ ←/→ adjust │ d defaults │ o output │ q quit"
	return footerStyle.Render(keys)
}

func pauseLabel(state supervisor.State) string {
	if state == supervisor.StatePaused {
		return "play"
	}
	return "pause"
}

// truncate shortens a string to fit the available width.
func truncate(s string, max int) string {
	if max < 4 {
		max = 4
	}
	if len(s) <= max {
		return s
	}
	return s[:max-3] + "..."
}
