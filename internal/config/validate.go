package config

import (
	"errors"
	"fmt"
	"strings"
)

// ValidationError represents a configuration validation error.
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// Validate checks the configuration for errors and inconsistencies.
// Returns nil if valid, or an error describing the problem.
func Validate(cfg *Config) error {
	var errs []error

	// Source and layout are required (except for --print-cmd, which only
	// renders the command line)
	if cfg.SourcePath == "" && !cfg.PrintCmd {
		errs = append(errs, ValidationError{
			Field:   "source_path",
			Message: "media file or LUSID package directory is required",
		})
	}
	if cfg.LayoutPath == "" && !cfg.PrintCmd {
		errs = append(errs, ValidationError{
			Field:   "layout_path",
			Message: "speaker layout JSON is required",
		})
	}

	if cfg.EnginePath == "" {
		errs = append(errs, ValidationError{
			Field:   "engine_path",
			Message: "must not be empty",
		})
	}

	// Buffer size must be one of the engine's accepted callback sizes
	if !validBufferSize(cfg.BufferSize) {
		errs = append(errs, ValidationError{
			Field:   "buffer_size",
			Message: fmt.Sprintf("must be one of %s (got %d)", bufferSizeList(), cfg.BufferSize),
		})
	}

	// Initial control values must be inside the live control ranges
	if cfg.MasterGain < 0.1 || cfg.MasterGain > 3.0 {
		errs = append(errs, ValidationError{
			Field:   "master_gain",
			Message: fmt.Sprintf("must be in [0.1, 3.0] (got %g)", cfg.MasterGain),
		})
	}
	if cfg.DBAPFocus < 0.2 || cfg.DBAPFocus > 5.0 {
		errs = append(errs, ValidationError{
			Field:   "dbap_focus",
			Message: fmt.Sprintf("must be in [0.2, 5.0] (got %g)", cfg.DBAPFocus),
		})
	}

	if cfg.OSCPort < 1 || cfg.OSCPort > 65535 {
		errs = append(errs, ValidationError{
			Field:   "osc_port",
			Message: fmt.Sprintf("must be in [1, 65535] (got %d)", cfg.OSCPort),
		})
	}

	if cfg.DebouncePeriod <= 0 {
		errs = append(errs, ValidationError{
			Field:   "debounce_period",
			Message: "must be positive",
		})
	}

	if cfg.StartTimeout <= 0 {
		errs = append(errs, ValidationError{
			Field:   "start_timeout",
			Message: "must be positive",
		})
	}
	if cfg.StopTimeout <= 0 {
		errs = append(errs, ValidationError{
			Field:   "stop_timeout",
			Message: "must be positive",
		})
	}
	if cfg.RestartDelay < 0 {
		errs = append(errs, ValidationError{
			Field:   "restart_delay",
			Message: "must not be negative",
		})
	}

	// Log format must be valid
	validFormats := map[string]bool{"json": true, "text": true}
	if !validFormats[cfg.LogFormat] {
		errs = append(errs, ValidationError{
			Field:   "log_format",
			Message: fmt.Sprintf("must be 'json' or 'text' (got %q)", cfg.LogFormat),
		})
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}

	return nil
}

// validBufferSize reports whether n is an accepted frames-per-callback value.
func validBufferSize(n int) bool {
	for _, s := range BufferSizes {
		if n == s {
			return true
		}
	}
	return false
}

// bufferSizeList returns the accepted buffer sizes as a display string.
func bufferSizeList() string {
	parts := make([]string, len(BufferSizes))
	for i, s := range BufferSizes {
		parts[i] = fmt.Sprint(s)
	}
	return strings.Join(parts, "/")
}
