// Package memproto implements the in-memory ring-buffer sink named in
// spec.md §1's sink list: a fixed-capacity ring of compiled packet frames
// with no I/O, useful for tests and for embedding consumers that want
// packets without a real sink. Reuses internal/queue's trim-from-head
// accounting directly rather than re-deriving ring-buffer eviction.
package memproto

import (
	"sync"

	"github.com/sisdk/sisdk/internal/queue"
	"github.com/sisdk/sisdk/pkg/lookup"
	"github.com/sisdk/sisdk/pkg/packet"
	"github.com/sisdk/sisdk/pkg/protocol"
	"github.com/sisdk/sisdk/pkg/scheduler"
	"github.com/sisdk/sisdk/pkg/wire"
)

// frame is a compiled packet's bytes, sized for queue.Sized so the same
// trim-from-head budget logic the scheduler uses applies here too.
type frame []byte

func (f frame) Size() int { return len(f) }

// Options holds memproto's connections-string options.
type Options struct {
	MaxSize int64 // bytes; 0 = unbounded
}

func ParseOptions(t *lookup.Table) Options {
	// t.Size's def parameter is in KB (it multiplies by 1024 internally
	// when the key is absent), so 2048 here yields a 2 MiB default.
	return Options{MaxSize: t.Size("maxsize", 2048)}
}

// MemProto is a pkg/protocol.Capability holding compiled packet frames in
// a bounded ring, evicting the oldest frames once MaxSize is exceeded.
type MemProto struct {
	opts Options

	mu        sync.Mutex
	ring      *queue.Queue
	formatter *wire.Formatter
}

func New() *MemProto {
	return &MemProto{ring: queue.New(), formatter: wire.NewFormatter()}
}

func (m *MemProto) Name() string { return "mem" }

func (m *MemProto) LoadOptions(t *lookup.Table) error {
	m.opts = ParseOptions(t)
	return nil
}

func (m *MemProto) HasMetadata() bool { return false }

func (m *MemProto) InternalConnect() error { return nil }

func (m *MemProto) InternalWritePacket(p packet.Packet) error {
	if _, err := m.formatter.Compile(p); err != nil {
		return err
	}
	fr := frame(append([]byte(nil), m.formatter.Bytes()...))

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.opts.MaxSize > 0 {
		m.ring.TrimTo(int(m.opts.MaxSize), fr.Size())
	}
	m.ring.Enqueue(fr)
	return nil
}

func (m *MemProto) InternalDisconnect() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ring.Clear()
	return nil
}

func (m *MemProto) InternalDispatch(scheduler.Command) error { return nil }

// Snapshot returns the currently buffered frames, oldest first, without
// draining them.
func (m *MemProto) Snapshot() [][]byte {
	m.mu.Lock()
	defer m.mu.Unlock()

	drained := m.ring.DrainUpTo(m.ring.Count())
	out := make([][]byte, 0, len(drained))
	for _, d := range drained {
		fr := d.(frame)
		out = append(out, []byte(fr))
		m.ring.Enqueue(fr)
	}
	return out
}

var _ protocol.Capability = (*MemProto)(nil)
