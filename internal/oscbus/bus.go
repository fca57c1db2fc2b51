// Package oscbus delivers scalar control updates to the engine's OSC
// parameter server over UDP.
//
// The bus has two delivery modes:
//   - Schedule: debounced by a quiet period. Rapid calls coalesce into a
//     single datagram carrying the most recently scheduled update.
//   - SendNow: immediate, bypassing the debounce entirely.
//
// Delivery is fire-and-forget. Transport errors are swallowed: UDP gives no
// delivery guarantee, so the bus never surfaces a send failure to the caller.
package oscbus

import (
	"log/slog"
	"sync"
	"time"

	"github.com/hypebeast/go-osc/osc"
)

// Recognized control addresses on the engine's parameter server.
const (
	AddrGain          = "/realtime/gain"
	AddrFocus         = "/realtime/focus"
	AddrSpeakerMixDB  = "/realtime/speaker_mix_db"
	AddrSubMixDB      = "/realtime/sub_mix_db"
	AddrAutoComp      = "/realtime/auto_comp"
	AddrElevationMode = "/realtime/elevation_mode"
	AddrPaused        = "/realtime/paused"
)

// DefaultQuietPeriod is the debounce quiet period for scheduled sends.
const DefaultQuietPeriod = 40 * time.Millisecond

// Client sends an OSC packet over the wire. *osc.Client satisfies this.
type Client interface {
	Send(packet osc.Packet) error
}

// Recorder receives control-bus telemetry. All methods must be safe for
// concurrent use. A nil Recorder disables telemetry.
type Recorder interface {
	// RecordScheduled is called on every Schedule.
	RecordScheduled(address string)

	// RecordCoalesced is called when a Schedule overwrites a pending update.
	RecordCoalesced(address string)

	// RecordSent is called when a debounced datagram goes out. Settle is the
	// time from the first Schedule of the burst to the send.
	RecordSent(address string, settle time.Duration)

	// RecordImmediate is called when a SendNow datagram goes out.
	RecordImmediate(address string)
}

// PendingUpdate is the single coalescing slot: at most one debounced update
// is outstanding at a time, regardless of address. Scheduling while another
// update is pending overwrites it, so under rapid multi-control input only
// the most recently touched control survives the quiet period. This mirrors
// the behavior of the original controller; a per-address debounce would be
// the obvious alternative (see DESIGN.md).
type PendingUpdate struct {
	Address string
	Value   float32
}

// Config holds configuration for creating a new Bus.
type Config struct {
	// QuietPeriod is the debounce interval. Defaults to DefaultQuietPeriod.
	QuietPeriod time.Duration

	// Logger for debug-level send diagnostics. Required.
	Logger *slog.Logger

	// Recorder receives telemetry. Optional.
	Recorder Recorder
}

// Bus is the parameter control bus. It never owns the transport: the
// supervisor binds a client on engine start via SetClient and unbinds it
// (nil) when the engine exits. With no client bound, both delivery modes
// are silent no-ops.
type Bus struct {
	quiet    time.Duration
	logger   *slog.Logger
	recorder Recorder

	mu           sync.Mutex
	client       Client
	pending      *PendingUpdate
	timer        *time.Timer
	lastSchedule time.Time
	burstStart   time.Time
}

// New creates a new Bus.
func New(cfg Config) *Bus {
	quiet := cfg.QuietPeriod
	if quiet <= 0 {
		quiet = DefaultQuietPeriod
	}
	return &Bus{
		quiet:    quiet,
		logger:   cfg.Logger,
		recorder: cfg.Recorder,
	}
}

// SetClient binds or unbinds the underlying datagram client.
// Unbinding (nil) discards any pending debounced update: a control edit
// must not outlive the engine run it was aimed at.
func (b *Bus) SetClient(c Client) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.client = c
	if c == nil {
		b.pending = nil
		if b.timer != nil {
			b.timer.Stop()
		}
	}
}

// Bound reports whether a transport client is currently bound.
func (b *Bus) Bound() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.client != nil
}

// Schedule records (address, value) as the single pending update and
// (re)starts the quiet-period timer. A call before the timer fires discards
// the previously pending update, whatever its address.
func (b *Bus) Schedule(address string, value float32) {
	b.mu.Lock()
	if b.client == nil {
		b.mu.Unlock()
		return
	}

	now := time.Now()
	if b.pending == nil {
		b.burstStart = now
	} else if b.recorder != nil {
		b.recorder.RecordCoalesced(b.pending.Address)
	}
	b.pending = &PendingUpdate{Address: address, Value: value}
	b.lastSchedule = now

	if b.timer == nil {
		b.timer = time.AfterFunc(b.quiet, b.fire)
	} else {
		b.timer.Reset(b.quiet)
	}
	b.mu.Unlock()

	if b.recorder != nil {
		b.recorder.RecordScheduled(address)
	}
}

// fire runs on timer expiry. If a Schedule slipped in while the callback was
// waiting on the lock, the quiet period has not truly elapsed yet: re-arm for
// the remainder instead of sending early.
func (b *Bus) fire() {
	b.mu.Lock()
	if b.pending == nil {
		b.mu.Unlock()
		return
	}
	if remaining := b.quiet - time.Since(b.lastSchedule); remaining > 0 {
		b.timer.Reset(remaining)
		b.mu.Unlock()
		return
	}

	p := *b.pending
	b.pending = nil
	client := b.client
	settle := time.Since(b.burstStart)
	b.mu.Unlock()

	if client == nil {
		return
	}

	b.send(client, p.Address, p.Value)
	if b.recorder != nil {
		b.recorder.RecordSent(p.Address, settle)
	}
}

// SendNow sends a datagram immediately, bypassing the debounce timer.
// A pending scheduled update, if any, is left untouched.
func (b *Bus) SendNow(address string, value float32) {
	b.mu.Lock()
	client := b.client
	b.mu.Unlock()

	if client == nil {
		return
	}

	b.send(client, address, value)
	if b.recorder != nil {
		b.recorder.RecordImmediate(address)
	}
}

// send builds and sends a one-float OSC message, swallowing transport errors.
func (b *Bus) send(client Client, address string, value float32) {
	msg := osc.NewMessage(address)
	msg.Append(value)
	if err := client.Send(msg); err != nil {
		// Fire-and-forget: dropped datagrams are silent at the API boundary.
		b.logger.Debug("osc_send_failed", "address", address, "error", err)
	}
}
