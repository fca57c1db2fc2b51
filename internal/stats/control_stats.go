// Package stats tracks control-bus telemetry for the transport console.
//
// The interesting signal during a session is how the debounce behaves under
// slider load: how many edits were coalesced away, and how long a burst of
// edits takes to settle into a datagram. Settle latency is kept in a T-Digest
// so the console can show percentiles without storing every sample.
package stats

import (
	"sync"
	"time"

	"github.com/influxdata/tdigest"
)

// ControlStats implements oscbus.Recorder.
type ControlStats struct {
	mu sync.Mutex

	scheduled int64
	coalesced int64
	sent      int64
	immediate int64

	settleDigest *tdigest.TDigest // settle latency in milliseconds
	settleMax    time.Duration

	lastAddress string
	lastSend    time.Time
}

// NewControlStats creates an empty telemetry collector.
func NewControlStats() *ControlStats {
	return &ControlStats{
		settleDigest: tdigest.NewWithCompression(100),
	}
}

// RecordScheduled counts a debounced schedule call.
func (c *ControlStats) RecordScheduled(address string) {
	c.mu.Lock()
	c.scheduled++
	c.mu.Unlock()
}

// RecordCoalesced counts a pending update that was overwritten before sending.
func (c *ControlStats) RecordCoalesced(address string) {
	c.mu.Lock()
	c.coalesced++
	c.mu.Unlock()
}

// RecordSent counts a debounced datagram and its burst settle latency.
func (c *ControlStats) RecordSent(address string, settle time.Duration) {
	c.mu.Lock()
	c.sent++
	c.settleDigest.Add(float64(settle.Milliseconds()), 1)
	if settle > c.settleMax {
		c.settleMax = settle
	}
	c.lastAddress = address
	c.lastSend = time.Now()
	c.mu.Unlock()
}

// RecordImmediate counts a SendNow datagram.
func (c *ControlStats) RecordImmediate(address string) {
	c.mu.Lock()
	c.immediate++
	c.lastAddress = address
	c.lastSend = time.Now()
	c.mu.Unlock()
}

// Snapshot is a point-in-time view of the telemetry.
type Snapshot struct {
	Timestamp time.Time

	Scheduled int64
	Coalesced int64
	Sent      int64
	Immediate int64

	// CoalesceRatio is coalesced / scheduled (0 when nothing scheduled).
	CoalesceRatio float64

	// Settle latency percentiles in milliseconds.
	SettleP50 float64
	SettleP95 float64
	SettleMax time.Duration

	LastAddress string
	LastSend    time.Time
}

// Snapshot returns a copy of the current telemetry.
func (c *ControlStats) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()

	s := Snapshot{
		Timestamp:   time.Now(),
		Scheduled:   c.scheduled,
		Coalesced:   c.coalesced,
		Sent:        c.sent,
		Immediate:   c.immediate,
		SettleMax:   c.settleMax,
		LastAddress: c.lastAddress,
		LastSend:    c.lastSend,
	}
	if c.scheduled > 0 {
		s.CoalesceRatio = float64(c.coalesced) / float64(c.scheduled)
	}
	if c.sent > 0 {
		s.SettleP50 = c.settleDigest.Quantile(0.50)
		s.SettleP95 = c.settleDigest.Quantile(0.95)
	}
	return s
}
