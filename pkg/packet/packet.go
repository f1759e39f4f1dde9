// Package packet defines the tagged-variant packet model that flows
// through every sisdk protocol: LogEntry, ControlCommand, Watch,
// ProcessFlow, and LogHeader.
//
// A Packet is constructed once by the caller and handed to a Client for
// submission. Ownership transfers at that point — the caller must not
// mutate a Packet after submitting it. This immutable-once-published
// discipline is the re-architecture the design notes call for in place of
// the source library's per-packet mutex: there is no lock to take because
// there is no second writer.
package packet

import "time"

// Kind identifies which packet variant a Packet carries, and doubles as
// the on-wire frame tag (spec.md §6).
type Kind uint32

const (
	KindControlCommand Kind = 1
	KindLogEntry        Kind = 4
	KindWatch           Kind = 5
	KindProcessFlow     Kind = 6
	KindLogHeader       Kind = 7
)

func (k Kind) String() string {
	switch k {
	case KindControlCommand:
		return "ControlCommand"
	case KindLogEntry:
		return "LogEntry"
	case KindWatch:
		return "Watch"
	case KindProcessFlow:
		return "ProcessFlow"
	case KindLogHeader:
		return "LogHeader"
	default:
		return "Unknown"
	}
}

// Packet is the common contract every variant satisfies.
type Packet interface {
	// Kind reports which variant this packet is.
	Kind() Kind

	// Size estimates the packet's byte footprint, used for scheduler queue
	// accounting. It need not equal the compiled frame size exactly but
	// must be stable for the lifetime of the packet.
	Size() int

	// Timestamp is the packet's creation time, microsecond-resolution per
	// the data model (stored as time.Time; callers needing raw
	// microseconds-since-epoch use Timestamp().UnixMicro()).
	Timestamp() time.Time
}

// baseOverhead is the constant byte cost every packet's Size() estimate
// starts from: the 8-byte frame header (kind + length) plus a small slop
// factor for struct bookkeeping the real encoder will also pay for.
const baseOverhead = 24

// ViewerID selects how a receiving console renders a LogEntry's payload.
type ViewerID int

const (
	ViewerNone ViewerID = iota
	ViewerTitle
	ViewerData
	ViewerList
	ViewerValueList
)

// LogEntryType distinguishes the many historical LogEntry subtypes the
// source library exposes (separator, message, warning, ...). sisdk keeps
// only the type tag; the hundreds of convenience constructors
// (logMessage, logObject, ...) are out of scope per spec.md §1.
type LogEntryType int

const (
	EntrySeparator LogEntryType = iota
	EntryMessage
	EntryWarning
	EntryError
	EntryFatal
	EntryDebug
	EntryText
)

// LogEntry carries a title, optional data blob, level, viewer id, session
// name, and background color.
type LogEntry struct {
	EntryType  LogEntryType
	Lvl        Level
	Title      string
	Session    string
	ViewerID   ViewerID
	Color      Color
	Data       []byte
	ts         time.Time
}

// Color mirrors pkg/lookup.Color's shape without importing lookup, so the
// packet package stays a leaf with no dependency on the options parser.
type Color struct {
	A, R, G, B byte
}

// Level is a local alias so packet doesn't need to import pkg/level for
// the one field that uses it; sisdk.Client converts at the boundary.
type Level int

// NewLogEntry constructs a LogEntry packet stamped with the current time.
func NewLogEntry(lvl Level, session, title string, data []byte) *LogEntry {
	return &LogEntry{
		Lvl:     lvl,
		Session: session,
		Title:   title,
		Data:    data,
		ts:      time.Now(),
	}
}

func (e *LogEntry) Kind() Kind        { return KindLogEntry }
func (e *LogEntry) Timestamp() time.Time { return e.ts }
func (e *LogEntry) Size() int {
	return baseOverhead + len(e.Title) + len(e.Session) + len(e.Data)
}

// ControlCommandType selects the control operation a ControlCommand
// performs.
type ControlCommandType int

const (
	ControlClearLog ControlCommandType = iota
	ControlClearWatches
	ControlClearAutoViews
	ControlClearAll
	ControlClearProcessFlow
)

// ControlCommand carries a control-type enum and optional data.
type ControlCommand struct {
	CmdType ControlCommandType
	Data    []byte
	ts      time.Time
}

// NewControlCommand constructs a ControlCommand packet.
func NewControlCommand(cmdType ControlCommandType, data []byte) *ControlCommand {
	return &ControlCommand{CmdType: cmdType, Data: data, ts: time.Now()}
}

func (c *ControlCommand) Kind() Kind        { return KindControlCommand }
func (c *ControlCommand) Timestamp() time.Time { return c.ts }
func (c *ControlCommand) Size() int        { return baseOverhead + len(c.Data) }

// WatchType tags the value kind carried by a Watch packet.
type WatchType int

const (
	WatchInt WatchType = iota
	WatchString
	WatchBool
	WatchFloat
	WatchTimestamp
	WatchObject
	WatchChar
)

// Watch is a name/value pair with a type tag.
type Watch struct {
	Name  string
	Value string
	Type  WatchType
	ts    time.Time
}

// NewWatch constructs a Watch packet. Value is always carried as its
// string representation; Type records how the original value should be
// interpreted by a viewer.
func NewWatch(name, value string, typ WatchType) *Watch {
	return &Watch{Name: name, Value: value, Type: typ, ts: time.Now()}
}

func (w *Watch) Kind() Kind        { return KindWatch }
func (w *Watch) Timestamp() time.Time { return w.ts }
func (w *Watch) Size() int        { return baseOverhead + len(w.Name) + len(w.Value) }

// ProcessFlowType selects which lifecycle edge a ProcessFlow packet marks.
type ProcessFlowType int

const (
	FlowEnterMethod ProcessFlowType = iota
	FlowLeaveMethod
	FlowEnterThread
	FlowLeaveThread
	FlowEnterProcess
	FlowLeaveProcess
)

// ProcessFlow marks an enter/leave edge for a method, thread, or process.
type ProcessFlow struct {
	FlowType ProcessFlowType
	Title    string
	ts       time.Time
}

// NewProcessFlow constructs a ProcessFlow packet.
func NewProcessFlow(flowType ProcessFlowType, title string) *ProcessFlow {
	return &ProcessFlow{FlowType: flowType, Title: title, ts: time.Now()}
}

func (p *ProcessFlow) Kind() Kind        { return KindProcessFlow }
func (p *ProcessFlow) Timestamp() time.Time { return p.ts }
func (p *ProcessFlow) Size() int        { return baseOverhead + len(p.Title) }

// LogHeader carries connect-time metadata: hostname and application name.
// Protocols with metadata emit one on every successful connect (spec.md
// §4.G).
type LogHeader struct {
	Hostname string
	AppName  string
	ts       time.Time
}

// NewLogHeader constructs a LogHeader packet.
func NewLogHeader(hostname, appName string) *LogHeader {
	return &LogHeader{Hostname: hostname, AppName: appName, ts: time.Now()}
}

func (h *LogHeader) Kind() Kind        { return KindLogHeader }
func (h *LogHeader) Timestamp() time.Time { return h.ts }
func (h *LogHeader) Size() int        { return baseOverhead + len(h.Hostname) + len(h.AppName) }

// Content renders the LogHeader's body in the "key=value\r\n" form the
// wire format expects.
func (h *LogHeader) Content() string {
	return "hostname=" + h.Hostname + "\r\nappname=" + h.AppName + "\r\n"
}
