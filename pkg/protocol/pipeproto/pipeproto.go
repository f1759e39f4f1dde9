// Package pipeproto implements the named-pipe sink named in spec.md §1's
// sink list: the same SILF-framed write path as pkg/protocol/fileproto,
// but over a Unix FIFO instead of a regular file. Grounded on
// pkg/backends.FileBackendImpl's buffered-writer-over-a-handle shape,
// adapted from os.OpenFile on a regular path to a FIFO created (if
// missing) via golang.org/x/sys/unix.Mkfifo.
package pipeproto

import (
	"bufio"

	"github.com/sisdk/sisdk/pkg/lookup"
	"github.com/sisdk/sisdk/pkg/packet"
	"github.com/sisdk/sisdk/pkg/protocol"
	"github.com/sisdk/sisdk/pkg/scheduler"
	"github.com/sisdk/sisdk/pkg/wire"
)

// Options holds pipeproto's connections-string options.
type Options struct {
	PipeName string // filesystem path of the named pipe
}

func ParseOptions(t *lookup.Table) Options {
	return Options{
		PipeName: t.StringDefault("pipename", "/tmp/sisdk"),
	}
}

// PipeProto is a pkg/protocol.Capability writing framed packets to a
// Unix named pipe. A reader must have the pipe open for reading before
// InternalConnect's blocking open-for-write call will return; this
// mirrors the source library's documented pipe-protocol behavior rather
// than hiding it behind a non-blocking workaround.
type PipeProto struct {
	opts Options

	pipe      pipeHandle
	bufw      *bufio.Writer
	formatter *wire.Formatter
	wroteMagic bool
}

func New() *PipeProto {
	return &PipeProto{formatter: wire.NewFormatter()}
}

func (p *PipeProto) Name() string { return "pipe" }

func (p *PipeProto) LoadOptions(t *lookup.Table) error {
	p.opts = ParseOptions(t)
	return nil
}

func (p *PipeProto) HasMetadata() bool { return true }

func (p *PipeProto) InternalConnect() error {
	h, err := openPipe(p.opts.PipeName)
	if err != nil {
		return err
	}
	p.pipe = h
	p.bufw = bufio.NewWriter(h)
	p.wroteMagic = false
	return nil
}

func (p *PipeProto) InternalWritePacket(pk packet.Packet) error {
	if p.pipe == nil {
		return errNotConnected
	}

	if !p.wroteMagic {
		if _, err := p.bufw.Write(wire.MagicPlain); err != nil {
			return err
		}
		p.wroteMagic = true
	}

	if _, err := p.formatter.Compile(pk); err != nil {
		return err
	}
	if _, err := p.formatter.WriteTo(p.bufw); err != nil {
		return err
	}
	return p.bufw.Flush()
}

func (p *PipeProto) InternalDisconnect() error {
	if p.pipe == nil {
		return nil
	}
	if p.bufw != nil {
		_ = p.bufw.Flush()
	}
	err := p.pipe.Close()
	p.pipe = nil
	p.bufw = nil
	return err
}

func (p *PipeProto) InternalDispatch(scheduler.Command) error { return nil }

var _ protocol.Capability = (*PipeProto)(nil)
