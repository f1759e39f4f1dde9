// Package protocol defines the capability-set contract every sisdk sink
// implements (Capability) and the reusable outer dispatch layer (Base)
// that wraps one: synchronous vs. asynchronous dispatch, reconnect gating,
// the backlog ring buffer, and error-event fan-out. Concrete sinks
// (fileproto, tcpproto, pipeproto, memproto, textproto, natsproto) embed a
// *Base and supply only the Capability methods.
//
// This generalizes the class hierarchy the source library used
// (Protocol -> FileProtocol -> TextProtocol, Protocol -> TcpProtocol) into
// a single reusable Base parameterized by a small capability interface,
// following the composition-over-inheritance shape of the teacher's
// pkg/backends.Backend + pkg/plugins registry rather than a class tower.
package protocol

import (
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/sisdk/sisdk/internal/metrics"
	"github.com/sisdk/sisdk/pkg/errs"
	"github.com/sisdk/sisdk/pkg/lookup"
	"github.com/sisdk/sisdk/pkg/packet"
	"github.com/sisdk/sisdk/pkg/scheduler"
)

// Capability is what a concrete sink must supply. Base handles option
// lifecycle, reconnect gating, backlog, sync/async dispatch, and error
// reporting around it.
type Capability interface {
	// Name is the connections-string protocol identifier, e.g. "file".
	Name() string

	// LoadOptions validates and caches protocol-specific options from opts.
	// Called once per SetConnections application, before any I/O.
	LoadOptions(opts *lookup.Table) error

	// InternalConnect opens the sink. Called with the protocol's mutex
	// held.
	InternalConnect() error

	// InternalWritePacket writes one packet to the already-connected sink.
	InternalWritePacket(p packet.Packet) error

	// InternalDisconnect closes the sink. Must tolerate being called when
	// already disconnected.
	InternalDisconnect() error

	// InternalDispatch delivers a custom command while connected. Sinks
	// that don't support dispatch return nil.
	InternalDispatch(cmd scheduler.Command) error

	// HasMetadata reports whether this sink emits a LogHeader on connect
	// (spec.md §4.G "Log-header emission").
	HasMetadata() bool
}

// Base is the reusable outer layer: option lifecycle, sync/async dispatch,
// reconnect gating, the backlog ring buffer, and error-event fan-out,
// around a Capability.
type Base struct {
	mu   sync.Mutex
	cap  Capability
	opts *lookup.Table

	level   packet.Level
	caption string

	reconnect         bool
	reconnectInterval time.Duration
	reconnectLimiter  *rate.Limiter

	keepopen bool

	backlog *backlog

	async        bool
	asyncClearOnDisconnect bool
	sched        *scheduler.Scheduler

	connected bool
	failed    bool

	listeners listenerSet
	hostname  string
	appname   string

	stats *metrics.Collector
}

// listenerSet fans an error out to every listener registered directly on
// this protocol (a protocol can be used headless, outside a Client, in
// tests, without going through pkg/sisdk.Client's own fan-out).
type listenerSet struct {
	listeners []func(*errs.Error)
}

func (ls *listenerSet) add(l func(*errs.Error)) { ls.listeners = append(ls.listeners, l) }
func (ls *listenerSet) fire(err *errs.Error) {
	for _, l := range ls.listeners {
		l(err)
	}
}

// New wraps cap in a Base. hostname/appname are used for the LogHeader
// packet if cap.HasMetadata().
func New(cap Capability, hostname, appname string) *Base {
	return &Base{
		cap:      cap,
		hostname: hostname,
		appname:  appname,
		stats:    metrics.NewCollector(),
	}
}

// Stats returns a snapshot of this protocol's packets-sent/bytes-sent/
// errors/reconnects counters (SPEC_FULL.md §4's dispatch-by-caption
// sibling requirement), kept in-process with no external exporter.
func (b *Base) Stats() metrics.Stats {
	return b.stats.Snapshot()
}

// AddErrorListener registers a listener fired (without the Base's lock
// held) whenever this protocol raises an Error.
func (b *Base) AddErrorListener(l func(*errs.Error)) {
	b.mu.Lock()
	b.listeners.add(l)
	b.mu.Unlock()
}

// Failed reports whether the protocol is currently in the Failed state
// (used by scheduler.Runner).
func (b *Base) Failed() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.failed
}

// SetOptions applies base options (spec.md §4.G) and then delegates
// protocol-specific options to the Capability.
func (b *Base) SetOptions(opts *lookup.Table) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.opts = opts
	b.level = packet.Level(opts.Level("level", 0))
	b.caption = opts.StringDefault("caption", b.cap.Name())
	b.reconnect = opts.Bool("reconnect", false)
	b.reconnectInterval = time.Duration(opts.Timespan("reconnect.interval", 0)) * time.Millisecond
	if b.reconnect {
		b.reconnectLimiter = rate.NewLimiter(rate.Every(b.reconnectInterval), 1)
	} else {
		b.reconnectLimiter = nil
	}
	b.keepopen = opts.Bool("keepopen", false)

	backlogEnabled := opts.Bool("backlog.enabled", false)
	if backlogEnabled {
		size := int(opts.Size("backlog.queue", 0))
		flushOn := opts.Level("backlog.flushon", 0)
		b.backlog = newBacklog(size, flushOn, opts.Bool("backlog.keepopen", false))
	} else {
		b.backlog = nil
	}

	b.async = opts.Bool("async.enabled", false)
	b.asyncClearOnDisconnect = opts.Bool("async.clearondisconnect", false)
	if b.async {
		threshold := int(opts.Size("async.queue", 2048))
		throttle := opts.Bool("async.throttle", false)
		b.sched = scheduler.New(threshold, throttle, &runnerAdapter{b: b})
		b.sched.Start()
	} else if b.sched != nil {
		b.sched.Stop()
		b.sched = nil
	}

	return b.cap.LoadOptions(opts)
}

// Caption returns the dispatch-by-caption identifier for this protocol.
func (b *Base) Caption() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.caption
}

// KeepOpen reports the "keepopen" option, which a Capability consults to
// decide whether it may leave its underlying handle open across idle
// periods instead of closing it.
func (b *Base) KeepOpen() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.keepopen
}

// Connect opens the sink. In async mode it is submitted as a command; in
// sync mode errors propagate to the caller.
func (b *Base) Connect() error {
	if b.isAsync() {
		b.submit(scheduler.Command{Action: scheduler.ActionConnect})
		return nil
	}
	return b.runConnect()
}

// WritePacket submits or performs a write, subject to the protocol's
// minimum level (spec.md §4.G: "packets below are dropped").
func (b *Base) WritePacket(p packet.Packet) error {
	if b.isAsync() {
		b.submit(scheduler.Command{Action: scheduler.ActionWritePacket, Packet: p})
		return nil
	}
	return b.runWritePacket(p)
}

// Dispatch delivers a custom command, by value, to the Capability.
func (b *Base) Dispatch(payload interface{}) error {
	cmd := scheduler.Command{Action: scheduler.ActionDispatch, Payload: payload}
	if b.isAsync() {
		b.submit(cmd)
		return nil
	}
	return b.runDispatch(cmd)
}

// Disconnect closes the sink.
func (b *Base) Disconnect() error {
	if b.isAsync() {
		b.submit(scheduler.Command{Action: scheduler.ActionDisconnect})
		return nil
	}
	return b.runDisconnect()
}

// Dispose stops any scheduler and disconnects.
func (b *Base) Dispose() error {
	b.mu.Lock()
	sched := b.sched
	b.mu.Unlock()
	if sched != nil {
		sched.Stop()
	}
	return b.runDisconnect()
}

func (b *Base) isAsync() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.async && b.sched != nil
}

func (b *Base) submit(cmd scheduler.Command) {
	b.mu.Lock()
	sched := b.sched
	b.mu.Unlock()
	if sched == nil {
		return
	}
	if !sched.Schedule(cmd) {
		b.reportAsync("schedule", errs.KindQueue, errQueueRejected)
	}
}

// Run implements scheduler.Runner: executed by the Scheduler's single
// worker goroutine for every drained command.
func (b *Base) Run(cmd scheduler.Command) error {
	var err error
	switch cmd.Action {
	case scheduler.ActionConnect:
		err = b.runConnect()
	case scheduler.ActionWritePacket:
		err = b.runWritePacket(cmd.Packet)
	case scheduler.ActionDisconnect:
		err = b.runDisconnect()
	case scheduler.ActionDispatch:
		err = b.runDispatch(cmd)
	}
	if err != nil {
		b.reportAsync(actionOpName(cmd.Action), errs.KindTransport, err)
	}
	return err
}

func (b *Base) runConnect() error {
	b.mu.Lock()
	if b.connected {
		b.mu.Unlock()
		return nil
	}

	if err := b.cap.InternalConnect(); err != nil {
		b.failed = true
		b.mu.Unlock()
		return b.report("connect", errs.KindTransport, err)
	}

	b.connected = true
	b.failed = false
	b.mu.Unlock()

	if b.cap.HasMetadata() {
		header := packet.NewLogHeader(b.hostname, b.appname)
		_ = b.cap.InternalWritePacket(header)
	}

	return nil
}

func (b *Base) backlogRef() *backlog {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.backlog
}

// runWritePacket applies the minimum-level filter, then the backlog
// (spec.md §4.G / GLOSSARY "Backlog"): while connected, a LogEntry below
// the configured flushOn level is retained in the backlog instead of
// being written; once a packet at or above flushOn arrives (or a
// non-leveled packet such as a Watch/ControlCommand/ProcessFlow/LogHeader
// is submitted), the backlog is drained and written first so the
// triggering packet reaches the sink with its pre-trigger context ahead
// of it.
func (b *Base) runWritePacket(p packet.Packet) error {
	if p == nil {
		return nil
	}
	entry, isEntry := p.(*packet.LogEntry)
	if isEntry {
		b.mu.Lock()
		min := b.level
		b.mu.Unlock()
		if entry.Lvl < min {
			return nil
		}
	}

	if !b.isConnected() {
		if !b.maybeReconnect() {
			return nil
		}
	}

	bl := b.backlogRef()
	if bl != nil && isEntry && entry.Lvl < packet.Level(bl.flushOn) {
		bl.push(p)
		return nil
	}

	if bl != nil {
		for _, queued := range bl.drain() {
			if err := b.writeOne(queued); err != nil {
				return err
			}
		}
	}

	return b.writeOne(p)
}

// writeOne hands a single packet to the Capability, updating connection
// state and stats on success or transport failure.
func (b *Base) writeOne(p packet.Packet) error {
	if err := b.cap.InternalWritePacket(p); err != nil {
		b.mu.Lock()
		b.failed = true
		b.connected = false
		b.mu.Unlock()
		return b.report("writePacket", errs.KindTransport, err)
	}
	b.stats.AddPacketSent(p.Size())
	return nil
}

func (b *Base) isConnected() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.connected
}

// maybeReconnect attempts a lazy reconnect per spec.md §4.G: only if
// reconnect is enabled and the reconnect-interval rate limiter currently
// allows an attempt (golang.org/x/time/rate.Limiter bounds how often a
// failed protocol retries connect).
func (b *Base) maybeReconnect() bool {
	b.mu.Lock()
	if !b.reconnect || b.reconnectLimiter == nil {
		b.mu.Unlock()
		return false
	}
	allowed := b.reconnectLimiter.Allow()
	b.mu.Unlock()
	if !allowed {
		return false
	}

	ok := b.runConnect() == nil
	if ok {
		b.stats.AddReconnect()
	}
	return ok
}

func (b *Base) runDisconnect() error {
	b.mu.Lock()
	if !b.connected {
		b.mu.Unlock()
		return nil
	}
	if b.asyncClearOnDisconnect && b.sched != nil {
		b.sched.Clear()
	}
	b.mu.Unlock()

	err := b.cap.InternalDisconnect()

	b.mu.Lock()
	b.connected = false
	b.mu.Unlock()

	if err != nil {
		return b.report("disconnect", errs.KindTransport, err)
	}
	return nil
}

func (b *Base) runDispatch(cmd scheduler.Command) error {
	if err := b.cap.InternalDispatch(cmd); err != nil {
		return b.report("dispatch", errs.KindTransport, err)
	}
	return nil
}

// report builds a errs.Error, fires listeners, and returns it so
// synchronous callers can also receive it directly.
func (b *Base) report(op string, kind errs.Kind, cause error) *errs.Error {
	e := &errs.Error{Kind: kind, Protocol: b.Caption(), Op: op, Err: cause, Time: time.Now()}
	b.stats.AddError()
	b.mu.Lock()
	listeners := b.listeners
	b.mu.Unlock()
	listeners.fire(e)
	return e
}

// reportAsync is report without a synchronous caller to hand the Error
// back to — async-mode failures are only ever observed via listeners, per
// spec.md §5 error propagation rules.
func (b *Base) reportAsync(op string, kind errs.Kind, cause error) {
	b.report(op, kind, cause)
}

func actionOpName(a scheduler.Action) string {
	switch a {
	case scheduler.ActionConnect:
		return "connect"
	case scheduler.ActionWritePacket:
		return "writePacket"
	case scheduler.ActionDisconnect:
		return "disconnect"
	default:
		return "dispatch"
	}
}

// runnerAdapter forwards scheduler.Runner calls to Base (Base.Run and
// Base.Failed already match the interface; runnerAdapter exists only for
// clarity at the call site).
type runnerAdapter struct {
	b *Base
}

func (r *runnerAdapter) Run(cmd scheduler.Command) error { return r.b.Run(cmd) }
func (r *runnerAdapter) Failed() bool                     { return r.b.Failed() }

var errQueueRejected = sisdkQueueRejectedError{}

type sisdkQueueRejectedError struct{}

func (sisdkQueueRejectedError) Error() string { return "scheduler queue rejected command" }
