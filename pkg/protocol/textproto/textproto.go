// Package textproto implements a human-readable text file sink: same
// rotate/maxsize/maxparts machinery as pkg/protocol/fileproto, but each
// packet renders as a "[timestamp] [level] title: data" line instead of
// the binary SILF/SILE wire frame. Grounded on the teacher's
// pkg/formatters.TextFormatter line-building shape (timestamp prefix,
// level prefix, trailing newline), paired with fileproto's rotation code.
package textproto

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/gofrs/flock"

	"github.com/sisdk/sisdk/pkg/level"
	"github.com/sisdk/sisdk/pkg/lookup"
	"github.com/sisdk/sisdk/pkg/packet"
	"github.com/sisdk/sisdk/pkg/protocol"
	"github.com/sisdk/sisdk/pkg/rotater"
	"github.com/sisdk/sisdk/pkg/scheduler"
)

const internalBufferSize = 8 * 1024

// Options holds textproto's connections-string options.
type Options struct {
	Filename    string
	Append      bool
	Rotate      rotater.Mode
	MaxSize     int64
	MaxParts    int
	IncludeTime bool
	IncludeLevel bool
}

func ParseOptions(t *lookup.Table) Options {
	opts := Options{
		Filename:     t.StringDefault("filename", "log.txt"),
		Append:       t.Bool("append", true),
		Rotate:       t.Rotate("rotate", rotater.None),
		MaxSize:      t.Size("maxsize", 0),
		IncludeTime:  t.Bool("includetime", true),
		IncludeLevel: t.Bool("includelevel", true),
	}
	maxParts := t.Int("maxparts", 0)
	if maxParts == 0 && opts.MaxSize > 0 && opts.Rotate == rotater.None {
		maxParts = 2
	}
	opts.MaxParts = maxParts
	return opts
}

// TextProto is a pkg/protocol.Capability writing human-readable lines to
// a local, optionally rotating text file.
type TextProto struct {
	opts Options

	file        *os.File
	bufw        *bufio.Writer
	lock        *flock.Flock
	trackedSize int64

	currentPath    string
	dir, stem, ext string

	rot *rotater.Rotater
}

func New() *TextProto { return &TextProto{} }

func (tp *TextProto) Name() string { return "text" }

func (tp *TextProto) LoadOptions(t *lookup.Table) error {
	tp.opts = ParseOptions(t)
	tp.dir, tp.stem, tp.ext = splitStemExt(tp.opts.Filename)
	if tp.dir == "" {
		tp.dir = "."
	}
	return nil
}

func (tp *TextProto) HasMetadata() bool { return false }

func (tp *TextProto) rotating() bool {
	return tp.opts.Rotate != rotater.None || tp.opts.MaxSize > 0
}

func (tp *TextProto) InternalConnect() error {
	path, err := tp.resolveFilename()
	if err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("textproto: create directory: %w", err)
	}

	flags := os.O_CREATE | os.O_WRONLY
	if tp.opts.Append {
		flags |= os.O_APPEND
	} else {
		flags |= os.O_TRUNC
	}

	file, err := os.OpenFile(path, flags, 0o644)
	if err != nil {
		return fmt.Errorf("textproto: open %s: %w", path, err)
	}

	info, err := file.Stat()
	if err != nil {
		file.Close()
		return fmt.Errorf("textproto: stat %s: %w", path, err)
	}

	tp.file = file
	tp.currentPath = path
	tp.trackedSize = info.Size()
	tp.lock = flock.New(path)
	tp.bufw = bufio.NewWriterSize(file, internalBufferSize)

	tp.rot = rotater.New(tp.opts.Rotate)
	tp.rot.Initialize(info.ModTime())

	if tp.opts.MaxParts > 0 {
		if err := pruneMaxParts(tp.dir, tp.stem, tp.ext, tp.opts.MaxParts, tp.currentPath); err != nil {
			return err
		}
	}

	return nil
}

func (tp *TextProto) resolveFilename() (string, error) {
	if !tp.rotating() {
		return tp.opts.Filename, nil
	}
	now := time.Now().UTC()
	return filepath.Join(tp.dir, rotationName(tp.stem, tp.ext, now)), nil
}

func (tp *TextProto) InternalWritePacket(p packet.Packet) error {
	line := tp.renderLine(p)
	size := int64(len(line))

	if tp.opts.Rotate != rotater.None && tp.rot.Update(time.Now().UTC()) {
		if err := tp.rotate(); err != nil {
			return err
		}
	}
	if tp.opts.MaxSize > 0 && tp.trackedSize+size > tp.opts.MaxSize {
		if size > tp.opts.MaxSize {
			return nil
		}
		if err := tp.rotate(); err != nil {
			return err
		}
	}

	if err := tp.lock.Lock(); err != nil {
		return fmt.Errorf("textproto: acquire lock: %w", err)
	}
	_, writeErr := tp.bufw.WriteString(line)
	_ = tp.lock.Unlock()
	if writeErr != nil {
		return fmt.Errorf("textproto: write line: %w", writeErr)
	}
	tp.trackedSize += size
	return tp.bufw.Flush()
}

// renderLine formats p as "[timestamp] [level] title: data\n", the
// teacher's TextFormatter layout generalized to the packet model.
func (tp *TextProto) renderLine(p packet.Packet) string {
	var b strings.Builder

	if tp.opts.IncludeTime {
		b.WriteString("[")
		b.WriteString(p.Timestamp().UTC().Format(time.RFC3339Nano))
		b.WriteString("] ")
	}

	if entry, ok := p.(*packet.LogEntry); ok {
		if tp.opts.IncludeLevel {
			b.WriteString("[")
			b.WriteString(level.Level(entry.Lvl).String())
			b.WriteString("] ")
		}
		b.WriteString(entry.Title)
		if len(entry.Data) > 0 {
			b.WriteString(": ")
			b.Write(entry.Data)
		}
	} else {
		fmt.Fprintf(&b, "%v", p.Kind())
	}

	if b.Len() == 0 || b.String()[b.Len()-1] != '\n' {
		b.WriteString("\n")
	}
	return b.String()
}

func (tp *TextProto) rotate() error {
	if err := tp.closeCurrent(); err != nil {
		return err
	}
	return tp.InternalConnect()
}

func (tp *TextProto) closeCurrent() error {
	if tp.file == nil {
		return nil
	}
	var firstErr error
	if tp.bufw != nil {
		if err := tp.bufw.Flush(); err != nil {
			firstErr = err
		}
	}
	if tp.lock != nil {
		_ = tp.lock.Unlock()
	}
	if err := tp.file.Close(); err != nil && firstErr == nil {
		firstErr = err
	}
	tp.file = nil
	tp.bufw = nil
	return firstErr
}

func (tp *TextProto) InternalDisconnect() error { return tp.closeCurrent() }

func (tp *TextProto) InternalDispatch(scheduler.Command) error { return nil }

var _ protocol.Capability = (*TextProto)(nil)
