package oscbus

import (
	"net"
	"testing"
	"time"

	"github.com/hypebeast/go-osc/osc"
)

// received is one datagram observed by the loopback server.
type received struct {
	address string
	value   float32
}

// startLoopbackServer runs a real OSC server on an ephemeral UDP port and
// returns the port plus a channel of received control messages.
func startLoopbackServer(t *testing.T) (int, <-chan received) {
	t.Helper()

	conn, err := net.ListenPacket("udp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen failed: %v", err)
	}
	t.Cleanup(func() { conn.Close() })

	ch := make(chan received, 16)
	dispatcher := osc.NewStandardDispatcher()
	for _, addr := range []string{AddrGain, AddrFocus, AddrPaused} {
		addr := addr
		if err := dispatcher.AddMsgHandler(addr, func(msg *osc.Message) {
			if len(msg.Arguments) != 1 {
				t.Errorf("message on %s has %d arguments, want 1", addr, len(msg.Arguments))
				return
			}
			v, ok := msg.Arguments[0].(float32)
			if !ok {
				t.Errorf("message on %s argument is %T, want float32", addr, msg.Arguments[0])
				return
			}
			ch <- received{address: msg.Address, value: v}
		}); err != nil {
			t.Fatalf("handler registration failed: %v", err)
		}
	}

	server := &osc.Server{Dispatcher: dispatcher}
	go server.Serve(conn) //nolint:errcheck // returns on conn close

	port := conn.LocalAddr().(*net.UDPAddr).Port
	return port, ch
}

func waitForDatagram(t *testing.T, ch <-chan received) received {
	t.Helper()
	select {
	case r := <-ch:
		return r
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for datagram")
		return received{}
	}
}

// TestLoopback_UDPDelivery exercises the bus end to end over real UDP: a
// go-osc client bound to the bus, a go-osc server standing in for the
// engine's parameter server.
func TestLoopback_UDPDelivery(t *testing.T) {
	port, ch := startLoopbackServer(t)

	bus := New(Config{
		QuietPeriod: 20 * time.Millisecond,
		Logger:      newTestLogger(),
	})
	bus.SetClient(osc.NewClient("127.0.0.1", port))

	// Immediate path.
	bus.SendNow(AddrPaused, 1.0)
	got := waitForDatagram(t, ch)
	if got.address != AddrPaused || got.value != 1.0 {
		t.Errorf("immediate datagram = %+v, want %s=1.0", got, AddrPaused)
	}

	// Debounced path: a burst collapses to the final value.
	bus.Schedule(AddrGain, 0.6)
	bus.Schedule(AddrGain, 0.7)
	bus.Schedule(AddrGain, 0.8)
	got = waitForDatagram(t, ch)
	if got.address != AddrGain {
		t.Errorf("debounced datagram address = %s, want %s", got.address, AddrGain)
	}
	if got.value != 0.8 {
		t.Errorf("debounced datagram value = %v, want 0.8 (last write)", got.value)
	}

	// Cross-address burst: the slot holds one update, last address wins.
	bus.Schedule(AddrGain, 1.2)
	bus.Schedule(AddrFocus, 2.0)
	got = waitForDatagram(t, ch)
	if got.address != AddrFocus || got.value != 2.0 {
		t.Errorf("cross-address datagram = %+v, want %s=2.0", got, AddrFocus)
	}

	// No straggler datagrams.
	select {
	case extra := <-ch:
		t.Errorf("unexpected extra datagram: %+v", extra)
	case <-time.After(100 * time.Millisecond):
	}
}

// TestLoopback_UnbindStopsTraffic verifies that unbinding the client while a
// debounced update is pending keeps that update off the wire.
func TestLoopback_UnbindStopsTraffic(t *testing.T) {
	port, ch := startLoopbackServer(t)

	bus := New(Config{
		QuietPeriod: 50 * time.Millisecond,
		Logger:      newTestLogger(),
	})
	bus.SetClient(osc.NewClient("127.0.0.1", port))

	bus.Schedule(AddrGain, 0.9)
	bus.SetClient(nil)

	select {
	case got := <-ch:
		t.Errorf("datagram arrived after unbind: %+v", got)
	case <-time.After(200 * time.Millisecond):
	}
}
