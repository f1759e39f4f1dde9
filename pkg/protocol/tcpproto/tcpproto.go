// Package tcpproto implements the TCP sink (spec.md §4.I): a banner
// handshake, per-packet framed write + flush + 2-byte ack read, and
// reconnect-on-short-read. Grounded on the network-facing shape of the
// teacher's pkg/backends syslog/network backend (connect-then-stream over
// a net.Conn) and the nats-backend example's connect/publish loop for the
// "read a handshake before first use" pattern.
package tcpproto

import (
	"bufio"
	"fmt"
	"io"
	"net"
	"time"

	"github.com/sisdk/sisdk/pkg/lookup"
	"github.com/sisdk/sisdk/pkg/packet"
	"github.com/sisdk/sisdk/pkg/protocol"
	"github.com/sisdk/sisdk/pkg/scheduler"
	"github.com/sisdk/sisdk/pkg/wire"
)

// ClientBanner is the literal banner this client sends after reading the
// server's, per spec.md §4.I/§6. It is a fixed wire-handshake literal like
// the SILF/SILE magic bytes elsewhere in the protocol, not a value to
// customize per client language.
const ClientBanner = "SmartInspect Java Library v<VERSION>\n"

type Options struct {
	Host    string
	Port    int
	Timeout time.Duration
}

func ParseOptions(t *lookup.Table) Options {
	return Options{
		Host:    t.StringDefault("host", "127.0.0.1"),
		Port:    t.Int("port", 4228),
		Timeout: time.Duration(t.Timespan("timeout", 30)) * time.Millisecond,
	}
}

// TCPProto is a pkg/protocol.Capability writing framed packets over a TCP
// socket, with the handshake and per-packet ack spec.md §4.I requires.
type TCPProto struct {
	opts Options

	conn      net.Conn
	reader    *bufio.Reader
	formatter *wire.Formatter
}

func New() *TCPProto {
	return &TCPProto{formatter: wire.NewFormatter()}
}

func (p *TCPProto) Name() string { return "tcp" }

func (p *TCPProto) LoadOptions(t *lookup.Table) error {
	p.opts = ParseOptions(t)
	return nil
}

func (p *TCPProto) HasMetadata() bool { return true }

func (p *TCPProto) InternalConnect() error {
	addr := fmt.Sprintf("%s:%d", p.opts.Host, p.opts.Port)
	conn, err := net.DialTimeout("tcp", addr, p.opts.Timeout)
	if err != nil {
		return fmt.Errorf("tcpproto: dial %s: %w", addr, err)
	}

	p.conn = conn
	p.reader = bufio.NewReader(conn)

	_ = conn.SetReadDeadline(time.Now().Add(p.opts.Timeout))
	if _, err := p.reader.ReadString('\n'); err != nil {
		conn.Close()
		p.conn = nil
		return fmt.Errorf("tcpproto: read server banner: %w", err)
	}

	_ = conn.SetWriteDeadline(time.Now().Add(p.opts.Timeout))
	if _, err := conn.Write([]byte(ClientBanner)); err != nil {
		conn.Close()
		p.conn = nil
		return fmt.Errorf("tcpproto: write client banner: %w", err)
	}

	return nil
}

func (p *TCPProto) InternalWritePacket(pk packet.Packet) error {
	if p.conn == nil {
		return fmt.Errorf("tcpproto: not connected")
	}

	if _, err := p.formatter.Compile(pk); err != nil {
		return err
	}

	_ = p.conn.SetWriteDeadline(time.Now().Add(p.opts.Timeout))
	if _, err := p.formatter.WriteTo(p.conn); err != nil {
		p.teardown()
		return fmt.Errorf("tcpproto: write packet: %w", err)
	}

	ack := make([]byte, 2)
	_ = p.conn.SetReadDeadline(time.Now().Add(p.opts.Timeout))
	n, err := io.ReadFull(p.conn, ack)
	if n < 2 {
		p.teardown()
		if err == nil {
			err = io.ErrUnexpectedEOF
		}
		return fmt.Errorf("tcpproto: short ack read (%d bytes): %w", n, err)
	}

	return nil
}

func (p *TCPProto) InternalDisconnect() error {
	return p.teardown()
}

func (p *TCPProto) teardown() error {
	if p.conn == nil {
		return nil
	}
	err := p.conn.Close()
	p.conn = nil
	p.reader = nil
	return err
}

func (p *TCPProto) InternalDispatch(scheduler.Command) error { return nil }

var _ protocol.Capability = (*TCPProto)(nil)
