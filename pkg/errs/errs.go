// Package errs defines sisdk's error taxonomy (Kind, Error, ErrorListener)
// as a leaf package with no dependency on pkg/protocol or pkg/sisdk, so
// that pkg/protocol (which raises these errors) and pkg/sisdk (whose
// Client re-exports them as its public Error/Kind/ErrorListener names)
// can both depend on it without an import cycle. Grounded on
// pkg/omni/errors.go's LogError/ErrorHandler shape.
package errs

import (
	"time"

	"github.com/pkg/errors"
)

// Kind classifies what went wrong so callers and ErrorListeners can decide
// how to react without string-matching messages.
type Kind int

const (
	// KindInvalidConnections marks a malformed connections string. Always
	// surfaced directly to the caller of SetConnections/NewFromConnections,
	// never only via an error event, because there is no recovery short of
	// new input.
	KindInvalidConnections Kind = iota
	// KindProtocolOption marks a rejected or malformed protocol option.
	KindProtocolOption
	// KindTransport marks a connect/write/read failure talking to a sink.
	KindTransport
	// KindQueue marks a scheduler admission failure (queue rejected a
	// command).
	KindQueue
	// KindInternal marks a fault with no clearer classification.
	KindInternal
)

func (k Kind) String() string {
	switch k {
	case KindInvalidConnections:
		return "InvalidConnections"
	case KindProtocolOption:
		return "ProtocolOption"
	case KindTransport:
		return "Transport"
	case KindQueue:
		return "Queue"
	default:
		return "Internal"
	}
}

// Error is the library's error type, carrying enough context for an
// ErrorListener to log or react without re-parsing a message string.
type Error struct {
	Kind     Kind
	Protocol string // protocol name or caption that raised it, if any
	Op       string // operation in progress, e.g. "connect", "writePacket"
	Err      error
	Time     time.Time
}

func (e *Error) Error() string {
	if e.Protocol != "" {
		return e.Op + " (" + e.Protocol + "): " + e.Err.Error()
	}
	return e.Op + ": " + e.Err.Error()
}

// Unwrap exposes the wrapped cause for errors.Is/As.
func (e *Error) Unwrap() error {
	return e.Err
}

// New wraps cause with errors.Wrap for a stack trace and stamps it with
// the reporting context.
func New(kind Kind, protocol, op string, cause error) *Error {
	return &Error{
		Kind:     kind,
		Protocol: protocol,
		Op:       op,
		Err:      errors.Wrap(cause, op),
		Time:     time.Now(),
	}
}

// ErrorListener receives every Error the library raises. Listeners are
// invoked without holding any internal lock, so a listener may safely call
// back into the Client.
type ErrorListener func(*Error)

// ListenerSet fans an Error out to every registered ErrorListener.
type ListenerSet struct {
	listeners []ErrorListener
}

func (ls *ListenerSet) Add(l ErrorListener) {
	ls.listeners = append(ls.listeners, l)
}

func (ls *ListenerSet) Fire(err *Error) {
	for _, l := range ls.listeners {
		l(err)
	}
}
