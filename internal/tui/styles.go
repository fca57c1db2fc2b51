// Package tui provides a live terminal console for the realtime engine.
//
// The TUI uses Bubble Tea for the application framework and Lipgloss for
// styling. It displays:
// - Transport state and engine uptime
// - The live control sliders and toggles
// - Control-bus telemetry (coalescing, settle latency)
// - A tail of engine output
package tui

import (
	"fmt"

	"github.com/charmbracelet/lipgloss"

	"github.com/sonopleth/go-realtime-console/internal/supervisor"
)

// =============================================================================
// Color Palette
// =============================================================================

// Colors based on a modern dark theme
var (
	// Primary colors
	colorPrimary   = lipgloss.Color("#7C3AED") // Purple
	colorSecondary = lipgloss.Color("#06B6D4") // Cyan

	// Status colors
	colorSuccess = lipgloss.Color("#10B981") // Green
	colorWarning = lipgloss.Color("#F59E0B") // Amber
	colorError   = lipgloss.Color("#EF4444") // Red
	colorInfo    = lipgloss.Color("#3B82F6") // Blue

	// Neutral colors
	colorText      = lipgloss.Color("#E5E7EB") // Light gray
	colorTextMuted = lipgloss.Color("#9CA3AF") // Medium gray
	colorTextDim   = lipgloss.Color("#6B7280") // Dark gray
	colorBorder    = lipgloss.Color("#374151") // Border gray
)

// =============================================================================
// Base Styles
// =============================================================================

var (
	mutedStyle = lipgloss.NewStyle().
			Foreground(colorTextMuted)

	dimStyle = lipgloss.NewStyle().
			Foreground(colorTextDim)

	// Section header style
	sectionHeaderStyle = lipgloss.NewStyle().
				Foreground(colorSecondary).
				Bold(true).
				BorderStyle(lipgloss.NormalBorder()).
				BorderBottom(true).
				BorderForeground(colorBorder).
				MarginTop(1)

	// Header style
	headerStyle = lipgloss.NewStyle().
			Foreground(colorText).
			Background(colorPrimary).
			Bold(true).
			Padding(0, 1).
			MarginBottom(1)

	// Footer style
	footerStyle = lipgloss.NewStyle().
			Foreground(colorTextMuted).
			MarginTop(1)

	// Box/panel styles
	boxStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(colorBorder).
			Padding(0, 1)
)

// =============================================================================
// Value Styles
// =============================================================================

var (
	valueStyle = lipgloss.NewStyle().
			Foreground(colorText).
			Bold(true)

	labelStyle = lipgloss.NewStyle().
			Foreground(colorTextMuted).
			Width(18)

	// Selected-row styles for the control table
	selectedLabelStyle = lipgloss.NewStyle().
				Foreground(colorSecondary).
				Bold(true).
				Width(18)

	selectedValueStyle = lipgloss.NewStyle().
				Foreground(colorSecondary).
				Bold(true)
)

// =============================================================================
// State Pill
// =============================================================================

var (
	statePillIdle = lipgloss.NewStyle().
			Foreground(colorTextDim).
			Bold(true)

	statePillLaunching = lipgloss.NewStyle().
				Foreground(colorInfo).
				Bold(true)

	statePillRunning = lipgloss.NewStyle().
				Foreground(colorSuccess).
				Bold(true)

	statePillPaused = lipgloss.NewStyle().
			Foreground(colorWarning).
			Bold(true)

	statePillExited = lipgloss.NewStyle().
			Foreground(colorTextMuted).
			Bold(true)

	statePillError = lipgloss.NewStyle().
			Foreground(colorError).
			Bold(true)
)

// StatePill returns the runner state rendered with its status color.
func StatePill(state supervisor.State) string {
	label := "● " + state.String()
	switch state {
	case supervisor.StateLaunching:
		return statePillLaunching.Render(label)
	case supervisor.StateRunning:
		return statePillRunning.Render(label)
	case supervisor.StatePaused:
		return statePillPaused.Render(label)
	case supervisor.StateExited:
		return statePillExited.Render(label)
	case supervisor.StateError:
		return statePillError.Render(label)
	default:
		return statePillIdle.Render(label)
	}
}

// =============================================================================
// Helper Functions
// =============================================================================

// RenderKeyValue renders a label-value pair.
func RenderKeyValue(label string, value string) string {
	return lipgloss.JoinHorizontal(lipgloss.Left,
		labelStyle.Render(label+":"),
		valueStyle.Render(value),
	)
}

// RenderSlider renders a horizontal gauge for a control's position in its
// min/max range.
func RenderSlider(value, min, max float64, width int) string {
	if width < 10 {
		width = 10
	}

	span := max - min
	var progress float64
	if span > 0 {
		progress = (value - min) / span
	}

	filled := int(progress * float64(width))
	if filled > width {
		filled = width
	}
	if filled < 0 {
		filled = 0
	}

	return lipgloss.NewStyle().Foreground(colorPrimary).Render(repeatChar('█', filled)) +
		lipgloss.NewStyle().Foreground(colorBorder).Render(repeatChar('░', width-filled))
}

// RenderToggle renders a discrete control position, e.g. "[1/2]".
func RenderToggle(value, max float64) string {
	return fmt.Sprintf("[%d/%d]", int(value), int(max))
}

func repeatChar(char rune, count int) string {
	if count <= 0 {
		return ""
	}
	result := make([]rune, count)
	for i := range result {
		result[i] = char
	}
	return string(result)
}
