// Package preflight provides startup validation checks.
//
// The engine gives poor diagnostics when launched with a bad path (it prints
// usage and exits), so the console verifies the launch inputs up front and
// reports every problem at once.
package preflight

import (
	"encoding/json"
	"fmt"
	"os"
	"os/exec"

	"github.com/sonopleth/go-realtime-console/internal/engine"
)

// Check represents the result of a single preflight check.
type Check struct {
	Name    string // Name of the check
	Passed  bool   // Whether the check passed
	Warning bool   // True if it's a warning (non-fatal)
	Message string // Additional context
}

// Result holds the results of all preflight checks.
type Result struct {
	Checks []Check
	Passed bool
}

// String returns a human-readable summary of the check.
func (c Check) String() string {
	status := "✓"
	if !c.Passed {
		status = "✗"
	} else if c.Warning {
		status = "⚠"
	}
	return fmt.Sprintf("  %s %s: %s", status, c.Name, c.Message)
}

// RunAll executes all preflight checks for a launch configuration.
func RunAll(cfg *engine.LaunchConfig) *Result {
	result := &Result{
		Checks: make([]Check, 0, 4),
		Passed: true,
	}

	for _, check := range []Check{
		checkEngineBinary(cfg.BinaryPath),
		checkSource(cfg.SourcePath),
		checkLayout(cfg.SpeakerLayoutPath),
		checkRemap(cfg.RemapCSVPath),
	} {
		result.Checks = append(result.Checks, check)
		if !check.Passed {
			result.Passed = false
		}
	}

	return result
}

// checkEngineBinary verifies the engine executable can be found.
func checkEngineBinary(path string) Check {
	resolved, err := exec.LookPath(path)
	if err != nil {
		return Check{
			Name:    "engine_binary",
			Passed:  false,
			Message: fmt.Sprintf("not found or not executable: %s", path),
		}
	}
	return Check{
		Name:    "engine_binary",
		Passed:  true,
		Message: fmt.Sprintf("found at %s", resolved),
	}
}

// checkSource verifies the media input exists. Both a single ADM WAV file and
// a LUSID package directory are accepted.
func checkSource(path string) Check {
	info, err := os.Stat(path)
	if err != nil {
		return Check{
			Name:    "source",
			Passed:  false,
			Message: fmt.Sprintf("not found: %s", path),
		}
	}

	kind := "file"
	if info.IsDir() {
		kind = "package directory"
	}
	return Check{
		Name:    "source",
		Passed:  true,
		Message: fmt.Sprintf("%s (%s)", path, kind),
	}
}

// checkLayout verifies the speaker layout exists and is parseable JSON. The
// engine validates the layout schema itself; catching syntax errors here
// avoids a launch-and-die round trip.
func checkLayout(path string) Check {
	data, err := os.ReadFile(path)
	if err != nil {
		return Check{
			Name:    "speaker_layout",
			Passed:  false,
			Message: fmt.Sprintf("not found: %s", path),
		}
	}

	var layout any
	if err := json.Unmarshal(data, &layout); err != nil {
		return Check{
			Name:    "speaker_layout",
			Passed:  false,
			Message: fmt.Sprintf("invalid JSON in %s: %v", path, err),
		}
	}

	return Check{
		Name:    "speaker_layout",
		Passed:  true,
		Message: path,
	}
}

// checkRemap verifies the optional channel remap CSV exists when configured.
func checkRemap(path string) Check {
	if path == "" {
		return Check{
			Name:    "channel_remap",
			Passed:  true,
			Message: "not configured",
		}
	}

	if _, err := os.Stat(path); err != nil {
		return Check{
			Name:    "channel_remap",
			Passed:  false,
			Message: fmt.Sprintf("not found: %s", path),
		}
	}
	return Check{
		Name:    "channel_remap",
		Passed:  true,
		Message: path,
	}
}

// PrintResults prints the preflight check results to stdout.
func PrintResults(result *Result) {
	fmt.Println("Preflight checks:")
	for _, check := range result.Checks {
		fmt.Println(check.String())
		if !check.Passed {
			fmt.Printf("    Fix: %s\n", suggestFix(check.Name))
		}
	}
	fmt.Println()
}

// suggestFix returns a suggestion for fixing a failed check.
func suggestFix(name string) string {
	switch name {
	case "engine_binary":
		return "build the engine or pass -engine with the binary path"
	case "source":
		return "pass an ADM WAV file or a LUSID package directory"
	case "speaker_layout":
		return "pass a speaker layout JSON (see speaker_layouts/)"
	case "channel_remap":
		return "fix the -remap path or drop the flag"
	default:
		return "see documentation"
	}
}
