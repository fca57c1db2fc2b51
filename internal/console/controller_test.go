package console

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"os/exec"
	"sync"
	"testing"
	"time"

	"github.com/hypebeast/go-osc/osc"

	"github.com/sonopleth/go-realtime-console/internal/engine"
	"github.com/sonopleth/go-realtime-console/internal/oscbus"
	"github.com/sonopleth/go-realtime-console/internal/supervisor"
)

// =============================================================================
// Fakes
// =============================================================================

// fakeBuilder implements supervisor.CommandBuilder.
type fakeBuilder struct {
	buildFn func(ctx context.Context) (*exec.Cmd, error)
}

func (f *fakeBuilder) BuildCommand(ctx context.Context) (*exec.Cmd, error) {
	return f.buildFn(ctx)
}

func (f *fakeBuilder) Name() string          { return "fake" }
func (f *fakeBuilder) CommandString() string { return "fake-engine" }

func sleepBuilder(d time.Duration) *fakeBuilder {
	return &fakeBuilder{
		buildFn: func(ctx context.Context) (*exec.Cmd, error) {
			return exec.CommandContext(ctx, "sleep", fmt.Sprintf("%.3f", d.Seconds())), nil
		},
	}
}

func echoBuilder(output string) *fakeBuilder {
	return &fakeBuilder{
		buildFn: func(ctx context.Context) (*exec.Cmd, error) {
			return exec.CommandContext(ctx, "echo", output), nil
		},
	}
}

// fakeClient captures control datagrams.
type fakeClient struct {
	mu       sync.Mutex
	messages []*osc.Message
}

func (f *fakeClient) Send(packet osc.Packet) error {
	msg, ok := packet.(*osc.Message)
	if !ok {
		return errors.New("unexpected packet type")
	}
	f.mu.Lock()
	f.messages = append(f.messages, msg)
	f.mu.Unlock()
	return nil
}

func (f *fakeClient) Messages() []*osc.Message {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]*osc.Message, len(f.messages))
	copy(out, f.messages)
	return out
}

func (f *fakeClient) Count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.messages)
}

// =============================================================================
// Test Helpers
// =============================================================================

func newTestController(builder supervisor.CommandBuilder) (*Controller, *fakeClient) {
	client := &fakeClient{}
	ctl := New(Config{
		Logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
		Launch: engine.DefaultLaunchConfig("engine", "mix.wav", "dome.json"),
		// Long quiet period so only immediate sends reach the client unless a
		// test waits for the debounce on purpose.
		DebouncePeriod: time.Hour,
		StopTimeout:    500 * time.Millisecond,
		BuilderFactory: func(cfg *engine.LaunchConfig) supervisor.CommandBuilder {
			return builder
		},
		ClientFactory: func(host string, port int) oscbus.Client {
			return client
		},
	})
	return ctl, client
}

func waitForState(t *testing.T, ctl *Controller, want supervisor.State) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if ctl.State() == want {
			return
		}
		time.Sleep(2 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for state %s, state is %s", want, ctl.State())
}

// waitForEvent drains the event feed until a matching event arrives.
func waitForEvent(t *testing.T, ctl *Controller, match func(Event) bool) Event {
	t.Helper()
	deadline := time.After(5 * time.Second)
	for {
		select {
		case ev := <-ctl.Events():
			if match(ev) {
				return ev
			}
		case <-deadline:
			t.Fatal("timed out waiting for event")
			return Event{}
		}
	}
}

func controlValue(t *testing.T, ctl *Controller, address string) float64 {
	t.Helper()
	for _, c := range ctl.Controls() {
		if c.Address == address {
			return c.Value
		}
	}
	t.Fatalf("control %s not in catalog", address)
	return 0
}

// =============================================================================
// Launch / flush
// =============================================================================

func TestStart_FlushesControlsOnRunning(t *testing.T) {
	ctl, client := newTestController(sleepBuilder(10 * time.Second))
	defer func() {
		ctl.Kill()
		waitForEvent(t, ctl, func(ev Event) bool { return ev.Kind == EventFinished })
	}()

	ctl.Start()
	waitForState(t, ctl, supervisor.StateRunning)

	// The whole catalog is re-sent once the engine confirms start.
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) && client.Count() < len(Catalog()) {
		time.Sleep(2 * time.Millisecond)
	}

	msgs := client.Messages()
	if len(msgs) != len(Catalog()) {
		t.Fatalf("flush sent %d datagrams, want %d", len(msgs), len(Catalog()))
	}

	seen := make(map[string]float32)
	for _, m := range msgs {
		seen[m.Address] = m.Arguments[0].(float32)
	}
	if v := seen[oscbus.AddrGain]; v != 0.5 {
		t.Errorf("flushed gain = %v, want launch value 0.5", v)
	}
	if v := seen[oscbus.AddrFocus]; v != 1.5 {
		t.Errorf("flushed focus = %v, want launch value 1.5", v)
	}
	if _, ok := seen[oscbus.AddrPaused]; ok {
		t.Error("flush must not touch the paused control")
	}
}

func TestFinishedEvent_CleanExit(t *testing.T) {
	ctl, _ := newTestController(echoBuilder("ready"))

	ctl.Start()

	ev := waitForEvent(t, ctl, func(ev Event) bool { return ev.Kind == EventFinished })
	if ev.ExitCode != 0 {
		t.Errorf("exit code = %d, want 0", ev.ExitCode)
	}

	code, ok := ctl.LastExit()
	if !ok || code != 0 {
		t.Errorf("LastExit = (%d, %v), want (0, true)", code, ok)
	}
	if got := ctl.State(); got != supervisor.StateExited {
		t.Errorf("state = %s, want Exited", got)
	}
}

func TestOutputEvents_Forwarded(t *testing.T) {
	ctl, _ := newTestController(echoBuilder("loaded 12 stems"))

	ctl.Start()
	waitForEvent(t, ctl, func(ev Event) bool {
		return ev.Kind == EventOutput && ev.Line == "loaded 12 stems"
	})
	waitForEvent(t, ctl, func(ev Event) bool { return ev.Kind == EventFinished })

	// The same line lands in the display ring.
	found := false
	for _, line := range ctl.RecentOutput(50) {
		if line == "loaded 12 stems" {
			found = true
		}
	}
	if !found {
		t.Error("engine line missing from RecentOutput")
	}
}

// =============================================================================
// Control edits
// =============================================================================

func TestSetControl_ClampsAndStores(t *testing.T) {
	ctl, _ := newTestController(echoBuilder("x"))

	ctl.SetControl(oscbus.AddrGain, 99)
	if v := controlValue(t, ctl, oscbus.AddrGain); v != 3.0 {
		t.Errorf("gain = %v, want clamped 3.0", v)
	}

	ctl.SetControl(oscbus.AddrGain, -1)
	if v := controlValue(t, ctl, oscbus.AddrGain); v != 0.1 {
		t.Errorf("gain = %v, want clamped 0.1", v)
	}
}

func TestSetControl_UnknownAddressIgnored(t *testing.T) {
	ctl, client := newTestController(echoBuilder("x"))

	ctl.SetControl("/realtime/bogus", 1.0)

	if client.Count() != 0 {
		t.Error("unknown control produced a datagram")
	}
}

func TestSetControl_DiscreteSendsImmediately(t *testing.T) {
	ctl, client := newTestController(sleepBuilder(10 * time.Second))
	defer func() {
		ctl.Kill()
		waitForEvent(t, ctl, func(ev Event) bool { return ev.Kind == EventFinished })
	}()

	ctl.Start()
	waitForState(t, ctl, supervisor.StateRunning)

	// Wait out the post-start flush so counts below are stable.
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) && client.Count() < len(Catalog()) {
		time.Sleep(2 * time.Millisecond)
	}
	base := client.Count()

	// Discrete: bypasses the (hour-long) debounce.
	ctl.SetControl(oscbus.AddrElevationMode, 2)
	if client.Count() != base+1 {
		t.Fatalf("discrete control not sent immediately, count %d want %d", client.Count(), base+1)
	}

	// Continuous: scheduled, still pending behind the debounce.
	ctl.SetControl(oscbus.AddrGain, 1.0)
	if client.Count() != base+1 {
		t.Error("continuous control bypassed the debounce")
	}
}

func TestSetControl_DroppedWhileIdle(t *testing.T) {
	ctl, client := newTestController(echoBuilder("x"))

	// No engine: the value updates locally, nothing goes out.
	ctl.SetControl(oscbus.AddrElevationMode, 1)

	if v := controlValue(t, ctl, oscbus.AddrElevationMode); v != 1 {
		t.Errorf("elevation mode = %v, want 1", v)
	}
	if client.Count() != 0 {
		t.Error("control sent with no engine running")
	}
}

func TestAdjustControl_Steps(t *testing.T) {
	ctl, _ := newTestController(echoBuilder("x"))

	ctl.AdjustControl(oscbus.AddrGain, 2) // 0.5 + 2*0.05
	if v := controlValue(t, ctl, oscbus.AddrGain); math.Abs(v-0.6) > 1e-9 {
		t.Errorf("gain = %v, want 0.6", v)
	}

	ctl.AdjustControl(oscbus.AddrGain, -100) // clamps at min
	if v := controlValue(t, ctl, oscbus.AddrGain); v != 0.1 {
		t.Errorf("gain = %v, want 0.1", v)
	}
}

func TestResetDefaults(t *testing.T) {
	ctl, client := newTestController(echoBuilder("x"))

	ctl.SetControl(oscbus.AddrGain, 2.0)
	ctl.SetControl(oscbus.AddrAutoComp, 1)

	ctl.ResetDefaults()

	if v := controlValue(t, ctl, oscbus.AddrGain); v != 0.5 {
		t.Errorf("gain after reset = %v, want 0.5", v)
	}
	if v := controlValue(t, ctl, oscbus.AddrAutoComp); v != 0 {
		t.Errorf("auto comp after reset = %v, want 0", v)
	}
	// Reset only changes the console's belief; nothing is sent.
	if client.Count() != 0 {
		t.Error("reset produced datagrams")
	}
}

// =============================================================================
// Transport
// =============================================================================

func TestPausePlay_States(t *testing.T) {
	ctl, _ := newTestController(sleepBuilder(10 * time.Second))
	defer func() {
		ctl.Kill()
		waitForEvent(t, ctl, func(ev Event) bool { return ev.Kind == EventFinished })
	}()

	ctl.Start()
	waitForState(t, ctl, supervisor.StateRunning)

	ctl.Pause()
	if got := ctl.State(); got != supervisor.StatePaused {
		t.Errorf("state = %s, want Paused", got)
	}

	waitForEvent(t, ctl, func(ev Event) bool {
		return ev.Kind == EventState && ev.NewState == supervisor.StatePaused
	})

	ctl.Play()
	if got := ctl.State(); got != supervisor.StateRunning {
		t.Errorf("state = %s, want Running", got)
	}
}

func TestTelemetry_CountsFlush(t *testing.T) {
	ctl, client := newTestController(sleepBuilder(10 * time.Second))
	defer func() {
		ctl.Kill()
		waitForEvent(t, ctl, func(ev Event) bool { return ev.Kind == EventFinished })
	}()

	ctl.Start()
	waitForState(t, ctl, supervisor.StateRunning)

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) && client.Count() < len(Catalog()) {
		time.Sleep(2 * time.Millisecond)
	}

	snap := ctl.Telemetry()
	if snap.Immediate != int64(len(Catalog())) {
		t.Errorf("Immediate = %d, want %d flush datagrams", snap.Immediate, len(Catalog()))
	}

	// The rate tracker counts every outgoing datagram.
	if rates := ctl.Rates(); rates.Total != int64(len(Catalog())) {
		t.Errorf("rates.Total = %d, want %d", rates.Total, len(Catalog()))
	}
}

func TestLastCommand_Exposed(t *testing.T) {
	ctl, _ := newTestController(echoBuilder("x"))

	ctl.Start()
	waitForEvent(t, ctl, func(ev Event) bool { return ev.Kind == EventFinished })

	if got := ctl.LastCommand(); got != "fake-engine" {
		t.Errorf("LastCommand = %q, want %q", got, "fake-engine")
	}
}
