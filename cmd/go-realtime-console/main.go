// Package main provides the go-realtime-console CLI entry point.
//
// go-realtime-console supervises the sonoPleth realtime spatial audio engine:
// it launches the engine process, watches its lifecycle, and pushes live
// parameter changes to the engine's OSC control server.
package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/sonopleth/go-realtime-console/internal/config"
	"github.com/sonopleth/go-realtime-console/internal/console"
	"github.com/sonopleth/go-realtime-console/internal/engine"
	"github.com/sonopleth/go-realtime-console/internal/logging"
	"github.com/sonopleth/go-realtime-console/internal/metrics"
	"github.com/sonopleth/go-realtime-console/internal/preflight"
	"github.com/sonopleth/go-realtime-console/internal/supervisor"
	"github.com/sonopleth/go-realtime-console/internal/tui"
)

// version is set at build time via ldflags:
//
//	go build -ldflags "-X main.version=1.0.0" ./cmd/go-realtime-console
var version = "dev"

func main() {
	os.Exit(run())
}

func run() int {
	// Handle version flag early (before flag parsing)
	if len(os.Args) > 1 {
		arg := os.Args[1]
		if arg == "-version" || arg == "--version" || arg == "version" {
			fmt.Printf("go-realtime-console %s\n", version)
			return 0
		}
	}

	// Parse command-line flags
	cfg, err := config.ParseFlags()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error parsing flags: %v\n", err)
		return 1
	}

	// Initialize logger
	// When TUI is enabled, suppress logs to avoid interfering with TUI rendering
	var logger *slog.Logger
	if cfg.TUIEnabled && !cfg.PrintCmd {
		logger = logging.NewLoggerWithWriter(io.Discard, "json", "info")
	} else {
		logger = logging.NewLogger(cfg.LogFormat, "info", cfg.Verbose)
	}
	logging.SetDefault(logger)

	// Validate configuration
	if err := config.Validate(cfg); err != nil {
		fmt.Fprintf(os.Stderr, "Configuration error: %v\n", err)
		return 1
	}

	launch := launchConfig(cfg)

	// Handle --print-cmd mode
	if cfg.PrintCmd {
		printEngineCommand(launch)
		return 0
	}

	// Verify launch inputs before anything starts; the engine's own
	// diagnostics for bad paths are just a usage dump.
	if checks := preflight.RunAll(launch); !checks.Passed {
		preflight.PrintResults(checks)
		return 1
	}

	logger.Info("starting",
		"version", version,
		"engine", cfg.EnginePath,
		"source", cfg.SourcePath,
		"layout", cfg.LayoutPath,
		"buffer", cfg.BufferSize,
		"osc_port", cfg.OSCPort,
		"metrics_addr", cfg.MetricsAddr,
	)

	collector := metrics.NewCollector(metrics.CollectorConfig{
		Version:    version,
		EnginePath: cfg.EnginePath,
	})

	metricsServer := metrics.NewServer(cfg.MetricsAddr, logger)
	if err := metricsServer.Start(); err != nil {
		logger.Error("metrics_server_failed", "error", err)
		return 1
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = metricsServer.Shutdown(ctx)
	}()

	ctl := console.New(console.Config{
		Logger:         logger,
		Launch:         launch,
		DebouncePeriod: cfg.DebouncePeriod,
		StartTimeout:   cfg.StartTimeout,
		StopTimeout:    cfg.StopTimeout,
		RestartDelay:   cfg.RestartDelay,
		Collector:      collector,
		Verbose:        cfg.Verbose,
	})

	// Keep the uptime gauge live while the engine runs.
	uptimeDone := make(chan struct{})
	defer close(uptimeDone)
	go trackUptime(ctl, collector, uptimeDone)

	if cfg.TUIEnabled {
		return runTUI(ctl, cfg, logger)
	}
	return runHeadless(ctl, cfg, logger)
}

// runTUI drives the interactive console until the operator quits, then
// stops the engine.
func runTUI(ctl *console.Controller, cfg *config.Config, logger *slog.Logger) int {
	model := tui.New(tui.Config{
		Controller:  ctl,
		MetricsAddr: cfg.MetricsAddr,
		Version:     version,
	})

	program := tea.NewProgram(model, tea.WithAltScreen())

	// Forward SIGINT/SIGTERM into the TUI so a signal quits cleanly too.
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)
	go func() {
		<-sigCh
		tui.SendQuit(program)
	}()

	if _, err := program.Run(); err != nil {
		logger.Error("tui_failed", "error", err)
		return 1
	}

	shutdown(ctl, logger)
	return 0
}

// runHeadless launches the engine immediately and supervises it until the
// engine exits or a signal arrives.
func runHeadless(ctl *console.Controller, cfg *config.Config, logger *slog.Logger) int {
	printBanner(cfg)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	ctl.Start()

	for {
		select {
		case sig := <-sigCh:
			logger.Info("signal_received", "signal", sig.String())
			shutdown(ctl, logger)
			return 0

		case ev := <-ctl.Events():
			if ev.Kind != console.EventFinished {
				continue
			}
			if ctl.State() == supervisor.StateExited {
				logger.Info("engine_finished", "exit_code", ev.ExitCode)
				return 0
			}
			logger.Error("engine_failed", "exit_code", ev.ExitCode)
			return 1
		}
	}
}

// shutdown stops the engine gracefully and waits for it to go down.
func shutdown(ctl *console.Controller, logger *slog.Logger) {
	if !ctl.State().IsActive() {
		return
	}
	logger.Info("stopping_engine")
	ctl.Stop()

	deadline := time.After(supervisor.DefaultStopTimeout + time.Second)
	for {
		select {
		case ev := <-ctl.Events():
			if ev.Kind == console.EventFinished {
				return
			}
		case <-deadline:
			ctl.Kill()
			return
		}
	}
}

// trackUptime refreshes the uptime gauge once a second.
func trackUptime(ctl *console.Controller, collector *metrics.Collector, done <-chan struct{}) {
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			if ctl.State().IsActive() {
				collector.SetUptime(ctl.Uptime())
			} else {
				collector.SetUptime(0)
			}
		case <-done:
			return
		}
	}
}

// launchConfig maps CLI configuration onto the engine launch parameters.
func launchConfig(cfg *config.Config) *engine.LaunchConfig {
	return &engine.LaunchConfig{
		BinaryPath:        cfg.EnginePath,
		SourcePath:        cfg.SourcePath,
		SpeakerLayoutPath: cfg.LayoutPath,
		RemapCSVPath:      cfg.RemapCSV,
		BufferSize:        cfg.BufferSize,
		ScanAudio:         cfg.ScanAudio,
		MasterGain:        cfg.MasterGain,
		DBAPFocus:         cfg.DBAPFocus,
		OSCPort:           cfg.OSCPort,
	}
}

// printBanner prints the startup banner for headless mode.
func printBanner(cfg *config.Config) {
	fmt.Println()
	fmt.Println("╔═══════════════════════════════════════════════════════════════════╗")
	fmt.Println("║                      go-realtime-console                          ║")
	fmt.Println("║        sonoPleth Realtime Engine Supervision and Control          ║")
	fmt.Println("╚═══════════════════════════════════════════════════════════════════╝")
	fmt.Println()
	fmt.Printf("  Source:      %s\n", cfg.SourcePath)
	fmt.Printf("  Layout:      %s\n", cfg.LayoutPath)
	fmt.Printf("  Buffer:      %d frames\n", cfg.BufferSize)
	fmt.Printf("  OSC port:    %d\n", cfg.OSCPort)
	fmt.Printf("  Metrics:     http://%s/metrics\n", cfg.MetricsAddr)
	fmt.Println()
	fmt.Println("Press Ctrl+C to stop.")
	fmt.Println()
}

// printEngineCommand prints the engine command that would be run.
func printEngineCommand(launch *engine.LaunchConfig) {
	runner := engine.NewRunner(launch)

	fmt.Println("# Engine command that would be run:")
	fmt.Println()
	fmt.Println(runner.CommandString())
}
