// Package sisdk is the caller-facing façade: the "SmartInspect façade" of
// spec.md §2's data-flow diagram. A Client parses a connections string
// into one *protocol.Base per configured sink and fans every submitted
// packet out to all of them, collecting errors via listeners rather than
// a single process-wide singleton (spec.md §9 "Global singletons ->
// explicit context").
//
// Grounded on pkg/omni.Omni's role as the logger-facing entry point that
// owns a set of destinations/backends, adapted from Omni's single
// channel-fed worker model to one *protocol.Base per sink (each with its
// own optional scheduler) since spec.md §5 requires one dedicated worker
// goroutine per asynchronous protocol, not one shared worker for the
// whole Client.
package sisdk

import (
	"fmt"
	"sync"

	"github.com/sisdk/sisdk/internal/metrics"
	"github.com/sisdk/sisdk/pkg/connstring"
	"github.com/sisdk/sisdk/pkg/errs"
	"github.com/sisdk/sisdk/pkg/level"
	"github.com/sisdk/sisdk/pkg/lookup"
	"github.com/sisdk/sisdk/pkg/packet"
	"github.com/sisdk/sisdk/pkg/protocol"
)

// Error, Kind and ErrorListener re-export the pkg/errs taxonomy under the
// façade's own names.
type (
	Error         = errs.Error
	Kind          = errs.Kind
	ErrorListener = errs.ErrorListener
)

// namedProtocol wraps a live *protocol.Base; Stats/Dispatch key off
// base.Caption() rather than the connections-string protocol name, since
// caption (not name) is what spec.md §3 names as the dispatch-by-caption
// identifier.
type namedProtocol struct {
	base *protocol.Base
}

// Client is the façade a caller constructs once and submits packets to.
// Safe for concurrent use by multiple goroutines.
type Client struct {
	mu        sync.RWMutex
	protocols []namedProtocol
	vars      *connstring.VariableTable
	hostname  string
	appname   string
	enabled   bool
	listeners errs.ListenerSet
}

// NewFromConnections builds a Client directly from a connections string,
// using OS-derived hostname/appname defaults (DefaultConfig).
func NewFromConnections(connections string) (*Client, error) {
	cfg := DefaultConfig()
	cfg.Connections = connections
	return NewWithConfig(cfg)
}

// NewWithConfig builds a Client from an explicit Config.
func NewWithConfig(cfg Config) (*Client, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	c := &Client{
		vars:     connstring.NewVariableTable(),
		hostname: cfg.Hostname,
		appname:  cfg.AppName,
		enabled:  cfg.Enabled,
	}
	if cfg.Connections != "" {
		if err := c.SetConnections(cfg.Connections); err != nil {
			return nil, err
		}
	}
	return c, nil
}

// SetVariable defines a $name$ substitution applied to every connections
// string this Client parses from this point forward (spec.md §4.K).
func (c *Client) SetVariable(name, value string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.vars.Set(name, value)
}

// AddErrorListener registers a listener fired for every Error raised by
// any protocol this Client owns, including ones it will build in a future
// SetConnections call.
func (c *Client) AddErrorListener(l errs.ErrorListener) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.listeners.Add(l)
}

// SetConnections tears down the Client's current protocols and replaces
// them with the set described by s. A parse failure leaves the previous
// protocols untouched and is always returned to the caller directly
// (spec.md §7: InvalidConnections is never only an event).
func (c *Client) SetConnections(s string) error {
	c.mu.RLock()
	vars := c.vars
	c.mu.RUnlock()

	parsed, err := connstring.Parse(s, vars)
	if err != nil {
		e := errs.New(errs.KindInvalidConnections, "", "setConnections", err)
		c.fireError(e)
		return e
	}

	built := make([]namedProtocol, 0, len(parsed))
	for _, p := range parsed {
		factory, ok := capabilityFactories[p.Name]
		if !ok {
			e := errs.New(errs.KindInvalidConnections, p.Name, "setConnections",
				fmt.Errorf("unknown protocol %q", p.Name))
			c.fireError(e)
			return e
		}

		base := protocol.New(factory(), c.hostnameLocked(), c.appnameLocked())
		base.AddErrorListener(func(e *errs.Error) { c.fireError(e) })

		table := lookup.New()
		for k, v := range p.Options {
			table.Set(k, v)
		}
		if err := base.SetOptions(table); err != nil {
			e := errs.New(errs.KindProtocolOption, p.Name, "setConnections", err)
			c.fireError(e)
			return e
		}

		built = append(built, namedProtocol{base: base})
	}

	c.mu.Lock()
	old := c.protocols
	c.protocols = built
	enabled := c.enabled
	c.mu.Unlock()

	for _, np := range old {
		_ = np.base.Dispose()
	}

	if enabled {
		for _, np := range built {
			if err := np.base.Connect(); err != nil {
				// Transport errors on connect are already reported via the
				// listener fan-out above; SetConnections itself only
				// fails for InvalidConnections/ProtocolOption.
				_ = err
			}
		}
	}
	return nil
}

func (c *Client) hostnameLocked() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.hostname
}

func (c *Client) appnameLocked() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.appname
}

func (c *Client) fireError(e *errs.Error) {
	c.mu.RLock()
	listeners := c.listeners
	c.mu.RUnlock()
	listeners.Fire(e)
}

func (c *Client) snapshot() []namedProtocol {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]namedProtocol, len(c.protocols))
	copy(out, c.protocols)
	return out
}

// Enabled reports whether this Client currently submits packets to its
// protocols at all.
func (c *Client) Enabled() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.enabled
}

// SetEnabled toggles packet submission without discarding the configured
// protocols; disabling does not disconnect them.
func (c *Client) SetEnabled(enabled bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.enabled = enabled
}

// Send submits p to every configured protocol (spec.md §2 data flow:
// "for each configured Protocol: writePacket"). p must not be mutated by
// the caller after this call — ownership transfers to the pipeline
// (spec.md §9's immutable-once-published discipline).
func (c *Client) Send(p packet.Packet) {
	if !c.Enabled() {
		return
	}
	for _, np := range c.snapshot() {
		_ = np.base.WritePacket(p)
	}
}

// LogEntry submits a LogEntry packet at lvl with the given session/title/
// data to every configured protocol.
func (c *Client) LogEntry(lvl level.Level, session, title string, data []byte) {
	c.Send(packet.NewLogEntry(packet.Level(lvl), session, title, data))
}

// Watch submits a Watch packet.
func (c *Client) Watch(name, value string, typ packet.WatchType) {
	c.Send(packet.NewWatch(name, value, typ))
}

// ProcessFlow submits a ProcessFlow packet.
func (c *Client) ProcessFlow(flowType packet.ProcessFlowType, title string) {
	c.Send(packet.NewProcessFlow(flowType, title))
}

// ControlCommand submits a ControlCommand packet.
func (c *Client) ControlCommand(cmdType packet.ControlCommandType, data []byte) {
	c.Send(packet.NewControlCommand(cmdType, data))
}

// Dispatch delivers cmd to every configured protocol.
func (c *Client) Dispatch(cmd interface{}) error {
	var firstErr error
	for _, np := range c.snapshot() {
		if err := np.base.Dispatch(cmd); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// DispatchTo delivers cmd only to the protocol whose caption is caption
// (spec.md §4.G's "caption" option and the GLOSSARY "Caption" entry).
// Protocols are matched by their caption, not their connections-string
// protocol name, so dispatch-by-caption can target one of several
// same-kind sinks (e.g. two "file" protocols with distinct captions).
func (c *Client) DispatchTo(caption string, cmd interface{}) error {
	for _, np := range c.snapshot() {
		if np.base.Caption() == caption {
			return np.base.Dispatch(cmd)
		}
	}
	return fmt.Errorf("sisdk: no protocol with caption %q", caption)
}

// Stats returns a per-caption snapshot of every configured protocol's
// packet/byte/error/reconnect counters.
func (c *Client) Stats() map[string]metrics.Stats {
	out := make(map[string]metrics.Stats)
	for _, np := range c.snapshot() {
		out[np.base.Caption()] = np.base.Stats()
	}
	return out
}

// Close disconnects and disposes every configured protocol.
func (c *Client) Close() error {
	c.mu.Lock()
	protocols := c.protocols
	c.protocols = nil
	c.mu.Unlock()

	var firstErr error
	for _, np := range protocols {
		if err := np.base.Dispose(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
