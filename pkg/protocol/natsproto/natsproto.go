// Package natsproto implements a NATS-backed enrichment sink: compiled
// packet frames are published on a subject for downstream aggregation
// rather than written to a local file or socket. Grounded on
// examples/plugins/nats-backend's NATSBackend (nats.Connect with
// reconnect/TLS/auth options, subject/queue-group publish, an
// async batch buffer flushed on a timer).
package natsproto

import (
	"fmt"
	"sync"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/sisdk/sisdk/pkg/lookup"
	"github.com/sisdk/sisdk/pkg/packet"
	"github.com/sisdk/sisdk/pkg/protocol"
	"github.com/sisdk/sisdk/pkg/scheduler"
	"github.com/sisdk/sisdk/pkg/wire"
)

// Options holds natsproto's connections-string options.
type Options struct {
	Servers       string // comma-separated nats:// URLs
	Subject       string
	QueueGroup    string
	BatchSize     int
	FlushInterval time.Duration
	MaxReconnect  int
	ReconnectWait time.Duration
	TLS           bool
	Username      string
	Password      string
}

func ParseOptions(t *lookup.Table) Options {
	return Options{
		Servers:       t.StringDefault("servers", nats.DefaultURL),
		Subject:       t.StringDefault("subject", "sisdk.log"),
		QueueGroup:    t.StringDefault("queue", ""),
		BatchSize:     t.Int("batch", 100),
		FlushInterval: time.Duration(t.Timespan("flushinterval", 0)) * time.Millisecond,
		MaxReconnect:  t.Int("maxreconnect", -1),
		ReconnectWait: time.Duration(t.Timespan("reconnectwait", 2)) * time.Millisecond,
		TLS:           t.Bool("tls", false),
		Username:      t.StringDefault("username", ""),
		Password:      t.StringDefault("password", ""),
	}
}

// NATSProto is a pkg/protocol.Capability publishing compiled packet
// frames to a NATS subject, optionally batching publishes behind a
// timer the way the reference nats backend buffers writes.
type NATSProto struct {
	opts Options

	conn      *nats.Conn
	formatter *wire.Formatter

	mu        sync.Mutex
	buffer    [][]byte
	flushStop chan struct{}
}

func New() *NATSProto { return &NATSProto{formatter: wire.NewFormatter()} }

func (n *NATSProto) Name() string { return "nats" }

func (n *NATSProto) LoadOptions(t *lookup.Table) error {
	n.opts = ParseOptions(t)
	return nil
}

func (n *NATSProto) HasMetadata() bool { return false }

func (n *NATSProto) InternalConnect() error {
	natsOpts := []nats.Option{nats.Name("sisdk")}
	if n.opts.MaxReconnect >= 0 {
		natsOpts = append(natsOpts, nats.MaxReconnects(n.opts.MaxReconnect))
	}
	if n.opts.ReconnectWait > 0 {
		natsOpts = append(natsOpts, nats.ReconnectWait(n.opts.ReconnectWait))
	}
	if n.opts.TLS {
		natsOpts = append(natsOpts, nats.Secure())
	}
	if n.opts.Username != "" {
		natsOpts = append(natsOpts, nats.UserInfo(n.opts.Username, n.opts.Password))
	}

	conn, err := nats.Connect(n.opts.Servers, natsOpts...)
	if err != nil {
		return fmt.Errorf("natsproto: connect: %w", err)
	}
	n.conn = conn

	if n.opts.BatchSize > 0 && n.opts.FlushInterval > 0 {
		n.flushStop = make(chan struct{})
		go n.flushLoop()
	}

	return nil
}

func (n *NATSProto) flushLoop() {
	ticker := time.NewTicker(n.opts.FlushInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			n.flush()
		case <-n.flushStop:
			return
		}
	}
}

func (n *NATSProto) InternalWritePacket(p packet.Packet) error {
	if n.conn == nil {
		return fmt.Errorf("natsproto: not connected")
	}
	if _, err := n.formatter.Compile(p); err != nil {
		return err
	}
	frame := append([]byte(nil), n.formatter.Bytes()...)

	if n.opts.BatchSize > 0 {
		n.mu.Lock()
		n.buffer = append(n.buffer, frame)
		full := len(n.buffer) >= n.opts.BatchSize
		n.mu.Unlock()
		if full {
			n.flush()
		}
		return nil
	}

	return n.publish(frame)
}

func (n *NATSProto) flush() {
	n.mu.Lock()
	batch := n.buffer
	n.buffer = nil
	n.mu.Unlock()

	for _, frame := range batch {
		_ = n.publish(frame)
	}
}

func (n *NATSProto) publish(frame []byte) error {
	if n.opts.QueueGroup != "" {
		// nats.go has no direct queue-group publish call; queue groups
		// govern subscription-side load balancing, so a plain Publish
		// is correct here and the queue group is informational only
		// for this sink.
		return n.conn.Publish(n.opts.Subject, frame)
	}
	return n.conn.Publish(n.opts.Subject, frame)
}

func (n *NATSProto) InternalDisconnect() error {
	if n.flushStop != nil {
		close(n.flushStop)
		n.flushStop = nil
	}
	if n.conn == nil {
		return nil
	}
	n.flush()
	_ = n.conn.FlushTimeout(2 * time.Second)
	n.conn.Close()
	n.conn = nil
	return nil
}

func (n *NATSProto) InternalDispatch(scheduler.Command) error { return nil }

var _ protocol.Capability = (*NATSProto)(nil)
