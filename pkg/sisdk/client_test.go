package sisdk

import (
	"sync"
	"testing"
	"time"

	"github.com/sisdk/sisdk/pkg/errs"
	"github.com/sisdk/sisdk/pkg/level"
	"github.com/sisdk/sisdk/pkg/packet"
)

func TestNewFromConnectionsMem(t *testing.T) {
	c, err := NewFromConnections("mem()")
	if err != nil {
		t.Fatalf("NewFromConnections() error = %v", err)
	}
	defer c.Close()

	c.LogEntry(level.Message, "session", "hello", nil)

	stats := c.Stats()
	s, ok := stats["mem"]
	if !ok {
		t.Fatalf("Stats() missing %q protocol, got %v", "mem", stats)
	}
	if s.PacketsSent != 1 {
		t.Fatalf("PacketsSent = %d, want 1", s.PacketsSent)
	}
}

func TestNewFromConnectionsInvalidSurfacesToCaller(t *testing.T) {
	_, err := NewFromConnections("bogus(")
	if err == nil {
		t.Fatal("expected an error for an unterminated protocol options list")
	}
	var sisErr *errs.Error
	if e, ok := err.(*errs.Error); ok {
		sisErr = e
	} else {
		t.Fatalf("error is not *errs.Error: %T", err)
	}
	if sisErr.Kind != errs.KindInvalidConnections {
		t.Fatalf("Kind = %v, want KindInvalidConnections", sisErr.Kind)
	}
}

func TestNewFromConnectionsUnknownProtocol(t *testing.T) {
	_, err := NewFromConnections("nope()")
	if err == nil {
		t.Fatal("expected an error for an unknown protocol name")
	}
}

func TestMultiProtocolFanOut(t *testing.T) {
	c, err := NewFromConnections("mem(), mem(caption=second)")
	if err != nil {
		t.Fatalf("NewFromConnections() error = %v", err)
	}
	defer c.Close()

	c.LogEntry(level.Warning, "s", "title", []byte("data"))

	stats := c.Stats()
	if len(stats) != 2 {
		t.Fatalf("Stats() has %d entries, want 2: %v", len(stats), stats)
	}
	for caption, s := range stats {
		if s.PacketsSent != 1 {
			t.Fatalf("protocol %q PacketsSent = %d, want 1", caption, s.PacketsSent)
		}
	}
}

func TestSetConnectionsReplacesProtocols(t *testing.T) {
	c, err := NewFromConnections("mem()")
	if err != nil {
		t.Fatalf("NewFromConnections() error = %v", err)
	}
	defer c.Close()

	if err := c.SetConnections("mem(caption=only)"); err != nil {
		t.Fatalf("SetConnections() error = %v", err)
	}

	stats := c.Stats()
	if _, ok := stats["only"]; !ok {
		t.Fatalf("expected caption %q after SetConnections, got %v", "only", stats)
	}
}

func TestSetConnectionsInvalidLeavesPreviousProtocols(t *testing.T) {
	c, err := NewFromConnections("mem(caption=keep)")
	if err != nil {
		t.Fatalf("NewFromConnections() error = %v", err)
	}
	defer c.Close()

	if err := c.SetConnections("mem(bad"); err == nil {
		t.Fatal("expected an error for malformed connections string")
	}

	stats := c.Stats()
	if _, ok := stats["keep"]; !ok {
		t.Fatalf("expected original caption %q to survive a failed SetConnections, got %v", "keep", stats)
	}
}

func TestSetEnabledSuppressesWrites(t *testing.T) {
	c, err := NewFromConnections("mem()")
	if err != nil {
		t.Fatalf("NewFromConnections() error = %v", err)
	}
	defer c.Close()

	c.SetEnabled(false)
	c.LogEntry(level.Error, "s", "dropped", nil)

	if s := c.Stats()["mem"]; s.PacketsSent != 0 {
		t.Fatalf("PacketsSent = %d, want 0 while disabled", s.PacketsSent)
	}
}

func TestDispatchToCaption(t *testing.T) {
	c, err := NewFromConnections("mem(caption=a), mem(caption=b)")
	if err != nil {
		t.Fatalf("NewFromConnections() error = %v", err)
	}
	defer c.Close()

	// memproto's InternalDispatch is a no-op returning nil, but DispatchTo
	// must still route only to the requested caption without error.
	if err := c.DispatchTo("a", "payload"); err != nil {
		t.Fatalf("DispatchTo() error = %v", err)
	}

	if err := c.DispatchTo("nope", "payload"); err == nil {
		t.Fatal("expected an error dispatching to an unknown caption")
	}
}

func TestDispatchBroadcastsToAll(t *testing.T) {
	c, err := NewFromConnections("mem(caption=a), mem(caption=b)")
	if err != nil {
		t.Fatalf("NewFromConnections() error = %v", err)
	}
	defer c.Close()

	if err := c.Dispatch("payload"); err != nil {
		t.Fatalf("Dispatch() error = %v", err)
	}
}

func TestAddErrorListenerSeesSetConnectionsFailure(t *testing.T) {
	c, err := NewFromConnections("mem()")
	if err != nil {
		t.Fatalf("NewFromConnections() error = %v", err)
	}
	defer c.Close()

	var mu sync.Mutex
	var got *errs.Error
	c.AddErrorListener(func(e *errs.Error) {
		mu.Lock()
		got = e
		mu.Unlock()
	})

	_ = c.SetConnections("nope()")

	mu.Lock()
	defer mu.Unlock()
	if got == nil {
		t.Fatal("expected the error listener to be invoked")
	}
	if got.Kind != errs.KindInvalidConnections {
		t.Fatalf("Kind = %v, want KindInvalidConnections", got.Kind)
	}
}

func TestAllPacketTypesRoute(t *testing.T) {
	c, err := NewFromConnections("mem()")
	if err != nil {
		t.Fatalf("NewFromConnections() error = %v", err)
	}
	defer c.Close()

	c.LogEntry(level.Debug, "s", "t", nil)
	c.Watch("n", "v", packet.WatchInt)
	c.ProcessFlow(packet.FlowEnterMethod, "m")
	c.ControlCommand(packet.ControlClearLog, nil)

	if s := c.Stats()["mem"]; s.PacketsSent != 4 {
		t.Fatalf("PacketsSent = %d, want 4", s.PacketsSent)
	}
}

func TestCloseDisposesProtocols(t *testing.T) {
	c, err := NewFromConnections("mem()")
	if err != nil {
		t.Fatalf("NewFromConnections() error = %v", err)
	}
	if err := c.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	if len(c.Stats()) != 0 {
		t.Fatalf("Stats() after Close() = %v, want empty", c.Stats())
	}
	// Double close must not panic.
	if err := c.Close(); err != nil {
		t.Fatalf("second Close() error = %v", err)
	}
}

func TestVariableExpansionInConnections(t *testing.T) {
	cfg := DefaultConfig()
	c, err := NewWithConfig(cfg)
	if err != nil {
		t.Fatalf("NewWithConfig() error = %v", err)
	}
	defer c.Close()

	c.SetVariable("CAPTION", "fromvar")
	if err := c.SetConnections("mem(caption=$CAPTION$)"); err != nil {
		t.Fatalf("SetConnections() error = %v", err)
	}
	if _, ok := c.Stats()["fromvar"]; !ok {
		t.Fatalf("expected caption %q from variable expansion, got %v", "fromvar", c.Stats())
	}
}

func TestConfigValidateFillsHostnameAndAppName(t *testing.T) {
	cfg := DefaultConfig()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate() error = %v", err)
	}
	if cfg.Hostname == "" {
		t.Fatal("Validate() left Hostname empty")
	}
	if cfg.AppName == "" {
		t.Fatal("Validate() left AppName empty")
	}
}

func TestAsyncProtocolEventuallyObservesPacket(t *testing.T) {
	c, err := NewFromConnections("mem(async.enabled=true)")
	if err != nil {
		t.Fatalf("NewFromConnections() error = %v", err)
	}
	defer c.Close()

	c.LogEntry(level.Message, "s", "async", nil)

	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		if c.Stats()["mem"].PacketsSent == 1 {
			return
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatal("async protocol never observed the submitted packet")
}
