package config

import (
	"flag"
	"fmt"
	"os"
)

// ParseFlags parses command-line flags and returns a Config.
// Positional arguments: <source_path> <speaker_layout.json>.
func ParseFlags() (*Config, error) {
	cfg := DefaultConfig()

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, `go-realtime-console - supervise and tune the sonoPleth real-time engine

Usage:
  go-realtime-console [flags] <source_path> <speaker_layout.json>

The source path is either an ADM WAV file or a LUSID package directory.

Engine Flags:
`)
		printFlagCategory([]string{"engine", "buffer", "scan-audio", "remap", "gain", "focus"})

		fmt.Fprintf(os.Stderr, "\nControl Bus:\n")
		printFlagCategory([]string{"osc-port", "debounce"})

		fmt.Fprintf(os.Stderr, "\nSupervision:\n")
		printFlagCategory([]string{"start-timeout", "stop-timeout", "restart-delay"})

		fmt.Fprintf(os.Stderr, "\nObservability:\n")
		printFlagCategory([]string{"metrics", "v", "log-format"})

		fmt.Fprintf(os.Stderr, "\nDiagnostics / Dashboard:\n")
		printFlagCategory([]string{"print-cmd", "tui"})

		fmt.Fprintf(os.Stderr, `
Examples:
  # Launch from a LUSID package with the default layout port
  go-realtime-console sourceData/lusid_package speaker_layouts/allosphere_layout.json

  # Headless with a custom engine binary and smaller buffer
  go-realtime-console -tui=false -engine ./build/sonoPleth_realtime -buffer 256 pkg/ layout.json

  # Print the engine command line and exit
  go-realtime-console -print-cmd pkg/ layout.json

`)
	}

	// Engine launch
	flag.StringVar(&cfg.EnginePath, "engine", cfg.EnginePath, "Path to the real-time engine binary")
	flag.IntVar(&cfg.BufferSize, "buffer", cfg.BufferSize, "Frames per audio callback (64/128/256/512/1024)")
	flag.BoolVar(&cfg.ScanAudio, "scan-audio", cfg.ScanAudio, "Ask the engine to scan stems for audio activity")
	flag.StringVar(&cfg.RemapCSV, "remap", cfg.RemapCSV, "Optional channel remap CSV")
	flag.Float64Var(&cfg.MasterGain, "gain", cfg.MasterGain, "Initial master gain (0.1-3.0)")
	flag.Float64Var(&cfg.DBAPFocus, "focus", cfg.DBAPFocus, "Initial DBAP focus exponent (0.2-5.0)")

	// Control bus
	flag.IntVar(&cfg.OSCPort, "osc-port", cfg.OSCPort, "UDP port of the engine's parameter server")
	flag.DurationVar(&cfg.DebouncePeriod, "debounce", cfg.DebouncePeriod, "Quiet period for debounced control sends")

	// Supervision
	flag.DurationVar(&cfg.StartTimeout, "start-timeout", cfg.StartTimeout, "Time allowed for the engine to confirm start")
	flag.DurationVar(&cfg.StopTimeout, "stop-timeout", cfg.StopTimeout, "Graceful-stop wait before escalating to SIGKILL")
	flag.DurationVar(&cfg.RestartDelay, "restart-delay", cfg.RestartDelay, "Delay between stop and re-start on restart")

	// Observability
	flag.StringVar(&cfg.MetricsAddr, "metrics", cfg.MetricsAddr, "Prometheus metrics address")
	flag.BoolVar(&cfg.Verbose, "v", cfg.Verbose, "Verbose logging")
	flag.StringVar(&cfg.LogFormat, "log-format", cfg.LogFormat, `Log format: "json" or "text"`)

	// Diagnostics / Dashboard
	flag.BoolVar(&cfg.PrintCmd, "print-cmd", cfg.PrintCmd, "Print the engine command line and exit")
	flag.BoolVar(&cfg.TUIEnabled, "tui", cfg.TUIEnabled, "Enable the terminal transport console (use -tui=false for headless)")

	flag.Parse()

	// Positional arguments: source path and speaker layout
	args := flag.Args()
	if len(args) >= 1 {
		cfg.SourcePath = args[0]
	}
	if len(args) >= 2 {
		cfg.LayoutPath = args[1]
	}

	return cfg, nil
}

// printFlagCategory prints flags matching the given names (helper for usage).
func printFlagCategory(names []string) {
	flag.VisitAll(func(f *flag.Flag) {
		for _, name := range names {
			if f.Name == name {
				fmt.Fprintf(os.Stderr, "  -%s\n    \t%s", f.Name, f.Usage)
				if f.DefValue != "" && f.DefValue != "false" && f.DefValue != "0" {
					fmt.Fprintf(os.Stderr, " (default %s)", f.DefValue)
				}
				fmt.Fprintln(os.Stderr)
				return
			}
		}
	})
}
