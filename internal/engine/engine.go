// Package engine builds launch commands for the sonoPleth real-time
// spatial audio engine binary.
//
// The engine is an externally built executable. This package only knows its
// command-line contract; everything at runtime goes through the OSC control
// bus (see internal/oscbus).
package engine

import (
	"context"
	"os/exec"
	"strconv"
	"strings"
)

// LaunchConfig describes one launch of the real-time engine.
// It is immutable for the lifetime of a run and reused verbatim on restart.
type LaunchConfig struct {
	// BinaryPath is the path to the engine executable.
	// Passed in explicitly; the launcher never guesses a repo root.
	BinaryPath string

	// SourcePath is the media input: an ADM WAV file or a LUSID package directory.
	SourcePath string

	// SpeakerLayoutPath is the speaker layout JSON.
	SpeakerLayoutPath string

	// RemapCSVPath is an optional channel remap descriptor.
	RemapCSVPath string

	// BufferSize is the frames-per-callback value.
	BufferSize int

	// ScanAudio asks the engine to scan stems for audio activity.
	ScanAudio bool

	// MasterGain is the initial master gain (live range 0.1-3.0).
	MasterGain float64

	// DBAPFocus is the initial DBAP focus/rolloff exponent (0.2-5.0).
	DBAPFocus float64

	// OSCPort is the UDP port of the engine's parameter server.
	OSCPort int
}

// DefaultLaunchConfig returns a LaunchConfig with the engine's startup defaults.
func DefaultLaunchConfig(binary, source, layout string) *LaunchConfig {
	return &LaunchConfig{
		BinaryPath:        binary,
		SourcePath:        source,
		SpeakerLayoutPath: layout,
		BufferSize:        512,
		MasterGain:        0.5,
		DBAPFocus:         1.5,
		OSCPort:           9009,
	}
}

// Runner builds executable commands for the real-time engine.
type Runner struct {
	config *LaunchConfig
}

// NewRunner creates a new engine runner with the given launch configuration.
func NewRunner(cfg *LaunchConfig) *Runner {
	return &Runner{
		config: cfg,
	}
}

// Name returns "sonoPleth_realtime".
func (r *Runner) Name() string {
	return "sonoPleth_realtime"
}

// BuildCommand creates an exec.Cmd for the engine with all configured options.
func (r *Runner) BuildCommand(ctx context.Context) (*exec.Cmd, error) {
	args := r.buildArgs()
	cmd := exec.CommandContext(ctx, r.config.BinaryPath, args...)
	return cmd, nil
}

// buildArgs constructs the engine command-line arguments.
// The positional order is fixed by the engine:
// <source> <layout> <gain> <focus> <buffer> --osc_port <port> [--remap <csv>] [--scan_audio]
func (r *Runner) buildArgs() []string {
	args := []string{
		r.config.SourcePath,
		r.config.SpeakerLayoutPath,
		formatFloat(r.config.MasterGain),
		formatFloat(r.config.DBAPFocus),
		strconv.Itoa(r.config.BufferSize),
		"--osc_port", strconv.Itoa(r.config.OSCPort),
	}

	if r.config.RemapCSVPath != "" {
		args = append(args, "--remap", r.config.RemapCSVPath)
	}

	if r.config.ScanAudio {
		args = append(args, "--scan_audio")
	}

	return args
}

// Config returns the launch configuration.
func (r *Runner) Config() *LaunchConfig {
	return r.config
}

// CommandString returns the command that would be executed (for display and
// the console's copy-command action).
func (r *Runner) CommandString() string {
	args := r.buildArgs()
	return r.config.BinaryPath + " " + strings.Join(args, " ")
}

// formatFloat renders a float the way the engine expects: shortest
// representation that round-trips, no exponent for these ranges.
func formatFloat(f float64) string {
	return strconv.FormatFloat(f, 'g', -1, 64)
}
