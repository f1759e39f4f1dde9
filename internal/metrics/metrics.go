// Package metrics implements the per-protocol counters exposed by
// Protocol.Stats() (SPEC_FULL.md §4): packets sent, bytes sent, errors,
// reconnects. Grounded on the teacher's internal/metrics.Collector
// atomic-counter shape, trimmed to the four counters a sisdk protocol
// actually reports and with no external exporter wired — the teacher's
// pack has no Prometheus/StatsD dependency for any Collector to push to.
package metrics

import "sync/atomic"

// Collector accumulates counters for one protocol instance. All methods
// are safe for concurrent use.
type Collector struct {
	packetsSent uint64
	bytesSent   uint64
	errors      uint64
	reconnects  uint64
}

// NewCollector returns a zeroed Collector.
func NewCollector() *Collector {
	return &Collector{}
}

func (c *Collector) AddPacketSent(bytes int) {
	atomic.AddUint64(&c.packetsSent, 1)
	atomic.AddUint64(&c.bytesSent, uint64(bytes))
}

func (c *Collector) AddError() {
	atomic.AddUint64(&c.errors, 1)
}

func (c *Collector) AddReconnect() {
	atomic.AddUint64(&c.reconnects, 1)
}

// Stats is an immutable snapshot of a Collector's counters.
type Stats struct {
	PacketsSent uint64
	BytesSent   uint64
	Errors      uint64
	Reconnects  uint64
}

func (c *Collector) Snapshot() Stats {
	return Stats{
		PacketsSent: atomic.LoadUint64(&c.packetsSent),
		BytesSent:   atomic.LoadUint64(&c.bytesSent),
		Errors:      atomic.LoadUint64(&c.errors),
		Reconnects:  atomic.LoadUint64(&c.reconnects),
	}
}
