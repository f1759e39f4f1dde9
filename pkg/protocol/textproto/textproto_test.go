package textproto

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/sisdk/sisdk/internal/testhelper"
	"github.com/sisdk/sisdk/pkg/lookup"
	"github.com/sisdk/sisdk/pkg/packet"
)

func mustParseRFC3339(s string) time.Time {
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		panic(err)
	}
	return t
}

func newOptions(pairs map[string]string) *lookup.Table {
	tbl := lookup.New()
	for k, v := range pairs {
		tbl.Set(k, v)
	}
	return tbl
}

func TestWritePacketProducesReadableLine(t *testing.T) {
	testhelper.SkipIfUnit(t, "exercises the real filesystem")

	dir := t.TempDir()
	path := filepath.Join(dir, "log.txt")

	tp := New()
	if err := tp.LoadOptions(newOptions(map[string]string{"filename": path})); err != nil {
		t.Fatal(err)
	}
	if err := tp.InternalConnect(); err != nil {
		t.Fatal(err)
	}
	if err := tp.InternalWritePacket(packet.NewLogEntry(0, "s", "hello world", []byte("data"))); err != nil {
		t.Fatal(err)
	}
	if err := tp.InternalDisconnect(); err != nil {
		t.Fatal(err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	line := string(data)
	if !strings.Contains(line, "hello world") {
		t.Fatalf("line missing title: %q", line)
	}
	if !strings.Contains(line, "data") {
		t.Fatalf("line missing data: %q", line)
	}
	if !strings.HasSuffix(line, "\n") {
		t.Fatalf("line missing trailing newline: %q", line)
	}
}

func TestAppendDefaultsTrue(t *testing.T) {
	tp := New()
	if err := tp.LoadOptions(newOptions(nil)); err != nil {
		t.Fatal(err)
	}
	if !tp.opts.Append {
		t.Fatal("textproto should default append=true")
	}
}

func TestMaxPartsDefaultsToTwoForLegacySizeRotation(t *testing.T) {
	tp := New()
	if err := tp.LoadOptions(newOptions(map[string]string{"maxsize": "4KB"})); err != nil {
		t.Fatal(err)
	}
	if tp.opts.MaxParts != 2 {
		t.Fatalf("MaxParts = %d, want 2", tp.opts.MaxParts)
	}
}

func TestRotationNameFormat(t *testing.T) {
	name := rotationName("log", ".txt", mustParseRFC3339("2026-07-30T10:05:09Z"))
	if name != "log-2026-07-30-10-05-09.txt" {
		t.Fatalf("rotationName = %q", name)
	}
}
