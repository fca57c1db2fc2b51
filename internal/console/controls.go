package console

import (
	"math"

	"github.com/sonopleth/go-realtime-console/internal/oscbus"
)

// Control describes one live-tunable parameter on the engine's OSC server.
type Control struct {
	Address string
	Label   string
	Min     float64
	Max     float64
	Default float64
	Step    float64

	// Discrete controls (toggles, mode selectors) are sent immediately;
	// continuous controls (sliders) go through the debounced path.
	Discrete bool
}

// Catalog returns the live controls in display order. Defaults match the
// engine's startup values; /realtime/paused is driven by the transport
// pause/play commands, not by this catalog.
func Catalog() []Control {
	return []Control{
		{
			Address: oscbus.AddrGain,
			Label:   "Master Gain",
			Min:     0.1, Max: 3.0, Default: 0.5, Step: 0.05,
		},
		{
			Address: oscbus.AddrFocus,
			Label:   "DBAP Focus",
			Min:     0.2, Max: 5.0, Default: 1.5, Step: 0.1,
		},
		{
			Address: oscbus.AddrSpeakerMixDB,
			Label:   "Speaker Mix dB",
			Min:     -10.0, Max: 10.0, Default: 0.0, Step: 0.5,
		},
		{
			Address: oscbus.AddrSubMixDB,
			Label:   "Sub Mix dB",
			Min:     -10.0, Max: 10.0, Default: 0.0, Step: 0.5,
		},
		{
			Address: oscbus.AddrAutoComp,
			Label:   "Auto Comp",
			Min:     0, Max: 1, Default: 0, Step: 1,
			Discrete: true,
		},
		{
			Address: oscbus.AddrElevationMode,
			Label:   "Elevation Mode",
			Min:     0, Max: 2, Default: 0, Step: 1,
			Discrete: true,
		},
	}
}

// Clamp constrains a value to the control's domain. Discrete controls are
// additionally snapped to whole steps.
func (c Control) Clamp(v float64) float64 {
	if c.Discrete {
		v = math.Round(v)
	}
	if v < c.Min {
		return c.Min
	}
	if v > c.Max {
		return c.Max
	}
	return v
}
