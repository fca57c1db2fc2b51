// Package config provides configuration management for go-realtime-console.
package config

import "time"

// Config holds all configuration options for the console.
type Config struct {
	// Engine launch
	EnginePath string `json:"engine_path"`
	SourcePath string `json:"source_path"` // media file or LUSID package directory
	LayoutPath string `json:"layout_path"` // speaker layout JSON
	RemapCSV   string `json:"remap_csv"`   // optional channel remap descriptor
	BufferSize int    `json:"buffer_size"` // frames per audio callback
	ScanAudio  bool   `json:"scan_audio"`

	// Initial control values (also passed on the command line)
	MasterGain float64 `json:"master_gain"`
	DBAPFocus  float64 `json:"dbap_focus"`

	// Control bus
	OSCPort        int           `json:"osc_port"`
	DebouncePeriod time.Duration `json:"debounce_period"`

	// Supervision timing
	StartTimeout time.Duration `json:"start_timeout"`
	StopTimeout  time.Duration `json:"stop_timeout"`
	RestartDelay time.Duration `json:"restart_delay"`

	// Observability
	MetricsAddr string `json:"metrics_addr"`
	Verbose     bool   `json:"verbose"`
	LogFormat   string `json:"log_format"` // json, text

	// Diagnostic modes
	PrintCmd bool `json:"print_cmd"`

	// Dashboard
	TUIEnabled bool `json:"tui"`
}

// BufferSizes is the set of frames-per-callback values the engine accepts.
var BufferSizes = []int{64, 128, 256, 512, 1024}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		// Engine launch
		EnginePath: "sonoPleth_realtime",
		BufferSize: 512,
		ScanAudio:  false,

		// Controls
		MasterGain: 0.5,
		DBAPFocus:  1.5,

		// Control bus
		OSCPort:        9009,
		DebouncePeriod: 40 * time.Millisecond,

		// Supervision
		StartTimeout: 3 * time.Second,
		StopTimeout:  3 * time.Second,
		RestartDelay: 200 * time.Millisecond,

		// Observability
		MetricsAddr: "0.0.0.0:17091",
		Verbose:     false,
		LogFormat:   "json",

		// Dashboard
		TUIEnabled: true,
	}
}
