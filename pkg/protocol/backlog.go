package protocol

import (
	"github.com/sisdk/sisdk/pkg/level"
	"github.com/sisdk/sisdk/pkg/packet"
)

// backlog is the per-protocol ring buffer of packets retained while
// connected (spec.md §4.G "backlog.*"): bounded by a byte budget like
// the scheduler queue, with a flushOn level that, once reached, causes the
// whole backlog to be flushed ahead of the triggering packet so a
// high-severity LogEntry arrives with its pre-trigger context intact.
type backlog struct {
	size     int
	flushOn  level.Level
	keepopen bool

	items     []packet.Packet
	totalSize int
}

func newBacklog(size int, flushOn level.Level, keepopen bool) *backlog {
	return &backlog{size: size, flushOn: flushOn, keepopen: keepopen}
}

// push appends p, trimming from the head (oldest first) to stay within
// the configured byte budget.
func (bl *backlog) push(p packet.Packet) {
	bl.items = append(bl.items, p)
	bl.totalSize += p.Size()

	for bl.totalSize > bl.size && len(bl.items) > 1 {
		dropped := bl.items[0]
		bl.items = bl.items[1:]
		bl.totalSize -= dropped.Size()
	}
}

// drain returns and clears all backlogged packets, oldest first.
func (bl *backlog) drain() []packet.Packet {
	out := bl.items
	bl.items = nil
	bl.totalSize = 0
	return out
}
