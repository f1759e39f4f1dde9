// Package wire implements the on-wire binary framing shared by every
// sisdk protocol and by the file-protocol's log format: a 4-byte
// little-endian kind tag, a 4-byte little-endian payload length, then the
// payload, per spec.md §4.D/§6.
package wire

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/sisdk/sisdk/pkg/packet"
)

// MagicPlain opens a plain (unencrypted) binary log file.
var MagicPlain = []byte("SILF")

// MagicEncrypted opens an encrypted binary log file; it is followed
// immediately by a 16-byte IV.
var MagicEncrypted = []byte("SILE")

// Formatter compiles a Packet into the binary frame and writes it to a
// sink. Compile is idempotent for a given packet's state; WriteTo must
// follow a Compile call on the same Formatter instance (spec.md §4.D).
type Formatter struct {
	scratch bytes.Buffer
}

// NewFormatter returns a ready-to-use Formatter.
func NewFormatter() *Formatter {
	return &Formatter{}
}

// Compile serializes p into the Formatter's internal scratch buffer and
// returns the total framed byte count (header + payload).
func (f *Formatter) Compile(p packet.Packet) (int, error) {
	f.scratch.Reset()

	var payload bytes.Buffer
	if err := encodePayload(&payload, p); err != nil {
		return 0, fmt.Errorf("wire: encode payload: %w", err)
	}

	var header [8]byte
	binary.LittleEndian.PutUint32(header[0:4], uint32(p.Kind()))
	binary.LittleEndian.PutUint32(header[4:8], uint32(payload.Len()))

	f.scratch.Write(header[:])
	f.scratch.Write(payload.Bytes())

	return f.scratch.Len(), nil
}

// WriteTo writes the most recently compiled frame to w. It must be called
// after Compile on the same Formatter.
func (f *Formatter) WriteTo(w io.Writer) (int64, error) {
	n, err := w.Write(f.scratch.Bytes())
	return int64(n), err
}

// Bytes returns the most recently compiled frame without writing it
// anywhere; useful for sinks (memory ring, NATS) that want the raw bytes
// rather than an io.Writer target.
func (f *Formatter) Bytes() []byte {
	out := make([]byte, f.scratch.Len())
	copy(out, f.scratch.Bytes())
	return out
}

func putString(buf *bytes.Buffer, s string) {
	var lenBuf [4]byte
	binary.LittleEndian.PutUint32(lenBuf[:], uint32(len(s)))
	buf.Write(lenBuf[:])
	buf.WriteString(s)
}

func putUint32(buf *bytes.Buffer, v uint32) {
	var b [4]byte
	binary.LittleEndian.PutUint32(b[:], v)
	buf.Write(b[:])
}

func putUint64(buf *bytes.Buffer, v uint64) {
	var b [8]byte
	binary.LittleEndian.PutUint64(b[:], v)
	buf.Write(b[:])
}

func putBytes(buf *bytes.Buffer, data []byte) {
	var lenBuf [4]byte
	binary.LittleEndian.PutUint32(lenBuf[:], uint32(len(data)))
	buf.Write(lenBuf[:])
	buf.Write(data)
}

// ReadFrame reads one frame's header and payload from r: the 4-byte kind
// tag, the 4-byte payload length, then the payload itself.
func ReadFrame(r io.Reader) (packet.Kind, []byte, error) {
	var header [8]byte
	if _, err := io.ReadFull(r, header[:]); err != nil {
		return 0, nil, err
	}
	kind := packet.Kind(binary.LittleEndian.Uint32(header[0:4]))
	length := binary.LittleEndian.Uint32(header[4:8])

	payload := make([]byte, length)
	if _, err := io.ReadFull(r, payload); err != nil {
		return 0, nil, fmt.Errorf("wire: read payload: %w", err)
	}
	return kind, payload, nil
}

// DecodedLogEntry mirrors packet.LogEntry's wire-visible fields. wire has
// no access to packet's unexported creation timestamp, so Decode
// reconstructs a parallel, fully exported view rather than a
// packet.Packet value.
type DecodedLogEntry struct {
	Timestamp time.Time
	Lvl       packet.Level
	EntryType packet.LogEntryType
	ViewerID  packet.ViewerID
	Color     packet.Color
	Session   string
	Title     string
	Data      []byte
}

// DecodedControlCommand mirrors packet.ControlCommand's wire-visible
// fields.
type DecodedControlCommand struct {
	Timestamp time.Time
	CmdType   packet.ControlCommandType
	Data      []byte
}

// DecodedWatch mirrors packet.Watch's wire-visible fields.
type DecodedWatch struct {
	Timestamp time.Time
	Type      packet.WatchType
	Name      string
	Value     string
}

// DecodedProcessFlow mirrors packet.ProcessFlow's wire-visible fields.
type DecodedProcessFlow struct {
	Timestamp time.Time
	FlowType  packet.ProcessFlowType
	Title     string
}

// DecodedLogHeader mirrors packet.LogHeader's wire-visible fields,
// parsed back out of the "key=value\r\n" body Content() produces.
type DecodedLogHeader struct {
	Timestamp time.Time
	Hostname  string
	AppName   string
}

// Decode parses one frame read from r into the packet.Kind it carries and
// a pointer to the matching Decoded* struct (e.g. *DecodedLogEntry for
// KindLogEntry), the reference decoder spec.md §6's round-trip invariant
// is checked against.
func Decode(r io.Reader) (packet.Kind, interface{}, error) {
	kind, payload, err := ReadFrame(r)
	if err != nil {
		return 0, nil, err
	}

	buf := bytes.NewReader(payload)
	switch kind {
	case packet.KindLogEntry:
		ts, err := getUint64(buf)
		if err != nil {
			return 0, nil, err
		}
		lvl, err := getUint32(buf)
		if err != nil {
			return 0, nil, err
		}
		entryType, err := getUint32(buf)
		if err != nil {
			return 0, nil, err
		}
		viewerID, err := getUint32(buf)
		if err != nil {
			return 0, nil, err
		}
		color, err := getUint32(buf)
		if err != nil {
			return 0, nil, err
		}
		session, err := getString(buf)
		if err != nil {
			return 0, nil, err
		}
		title, err := getString(buf)
		if err != nil {
			return 0, nil, err
		}
		data, err := getBytes(buf)
		if err != nil {
			return 0, nil, err
		}
		return kind, &DecodedLogEntry{
			Timestamp: timeFromMicros(ts),
			Lvl:       packet.Level(lvl),
			EntryType: packet.LogEntryType(entryType),
			ViewerID:  packet.ViewerID(viewerID),
			Color: packet.Color{
				A: byte(color >> 24),
				R: byte(color >> 16),
				G: byte(color >> 8),
				B: byte(color),
			},
			Session: session,
			Title:   title,
			Data:    data,
		}, nil

	case packet.KindControlCommand:
		ts, err := getUint64(buf)
		if err != nil {
			return 0, nil, err
		}
		cmdType, err := getUint32(buf)
		if err != nil {
			return 0, nil, err
		}
		data, err := getBytes(buf)
		if err != nil {
			return 0, nil, err
		}
		return kind, &DecodedControlCommand{
			Timestamp: timeFromMicros(ts),
			CmdType:   packet.ControlCommandType(cmdType),
			Data:      data,
		}, nil

	case packet.KindWatch:
		ts, err := getUint64(buf)
		if err != nil {
			return 0, nil, err
		}
		typ, err := getUint32(buf)
		if err != nil {
			return 0, nil, err
		}
		name, err := getString(buf)
		if err != nil {
			return 0, nil, err
		}
		value, err := getString(buf)
		if err != nil {
			return 0, nil, err
		}
		return kind, &DecodedWatch{
			Timestamp: timeFromMicros(ts),
			Type:      packet.WatchType(typ),
			Name:      name,
			Value:     value,
		}, nil

	case packet.KindProcessFlow:
		ts, err := getUint64(buf)
		if err != nil {
			return 0, nil, err
		}
		flowType, err := getUint32(buf)
		if err != nil {
			return 0, nil, err
		}
		title, err := getString(buf)
		if err != nil {
			return 0, nil, err
		}
		return kind, &DecodedProcessFlow{
			Timestamp: timeFromMicros(ts),
			FlowType:  packet.ProcessFlowType(flowType),
			Title:     title,
		}, nil

	case packet.KindLogHeader:
		ts, err := getUint64(buf)
		if err != nil {
			return 0, nil, err
		}
		content, err := getString(buf)
		if err != nil {
			return 0, nil, err
		}
		h := &DecodedLogHeader{Timestamp: timeFromMicros(ts)}
		for _, line := range strings.Split(content, "\r\n") {
			key, value, ok := strings.Cut(line, "=")
			if !ok {
				continue
			}
			switch key {
			case "hostname":
				h.Hostname = value
			case "appname":
				h.AppName = value
			}
		}
		return kind, h, nil

	default:
		return 0, nil, fmt.Errorf("wire: unsupported packet kind %v", kind)
	}
}

func timeFromMicros(micros uint64) time.Time {
	return time.UnixMicro(int64(micros)).UTC()
}

func getUint32(r *bytes.Reader) (uint32, error) {
	var b [4]byte
	if _, err := io.ReadFull(r, b[:]); err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint32(b[:]), nil
}

func getUint64(r *bytes.Reader) (uint64, error) {
	var b [8]byte
	if _, err := io.ReadFull(r, b[:]); err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint64(b[:]), nil
}

func getString(r *bytes.Reader) (string, error) {
	b, err := getBytes(r)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func getBytes(r *bytes.Reader) ([]byte, error) {
	length, err := getUint32(r)
	if err != nil {
		return nil, err
	}
	out := make([]byte, length)
	if _, err := io.ReadFull(r, out); err != nil {
		return nil, err
	}
	return out, nil
}

func encodePayload(buf *bytes.Buffer, p packet.Packet) error {
	ts := uint64(p.Timestamp().UnixMicro())

	switch v := p.(type) {
	case *packet.LogEntry:
		putUint64(buf, ts)
		putUint32(buf, uint32(v.Lvl))
		putUint32(buf, uint32(v.EntryType))
		putUint32(buf, uint32(v.ViewerID))
		putUint32(buf, uint32(v.Color.A)<<24|uint32(v.Color.R)<<16|uint32(v.Color.G)<<8|uint32(v.Color.B))
		putString(buf, v.Session)
		putString(buf, v.Title)
		putBytes(buf, v.Data)
		return nil

	case *packet.ControlCommand:
		putUint64(buf, ts)
		putUint32(buf, uint32(v.CmdType))
		putBytes(buf, v.Data)
		return nil

	case *packet.Watch:
		putUint64(buf, ts)
		putUint32(buf, uint32(v.Type))
		putString(buf, v.Name)
		putString(buf, v.Value)
		return nil

	case *packet.ProcessFlow:
		putUint64(buf, ts)
		putUint32(buf, uint32(v.FlowType))
		putString(buf, v.Title)
		return nil

	case *packet.LogHeader:
		putUint64(buf, ts)
		putString(buf, v.Content())
		return nil

	default:
		return fmt.Errorf("wire: unsupported packet type %T", p)
	}
}
