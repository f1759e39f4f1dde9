package fileproto

import (
	"bytes"
	"os"
	"path/filepath"
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

func newOptions(t *testing.T, pairs map[string]string) *lookup.Table {
	t.Helper()
	tbl := lookup.New()
	for k, v := range pairs {
		tbl.Set(k, v)
	}
	return tbl
}

func TestConnectWritesSILFMagicOnFreshFile(t *testing.T) {
	testhelper.SkipIfUnit(t, "exercises the real filesystem")

	dir := t.TempDir()
	path := filepath.Join(dir, "log.sil")

	fp := New()
	if err := fp.LoadOptions(newOptions(t, map[string]string{"filename": path})); err != nil {
		t.Fatal(err)
	}
	if err := fp.InternalConnect(); err != nil {
		t.Fatal(err)
	}
	defer fp.InternalDisconnect()

	if err := fp.InternalWritePacket(packet.NewLogEntry(0, "s", "hello", nil)); err != nil {
		t.Fatal(err)
	}
	fp.InternalDisconnect()

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.HasPrefix(data, []byte("SILF")) {
		t.Fatalf("file does not start with SILF magic: %x", data[:4])
	}
}

func TestConnectWritesSILEMagicAndIVWhenEncrypted(t *testing.T) {
	testhelper.SkipIfUnit(t, "exercises the real filesystem")

	dir := t.TempDir()
	path := filepath.Join(dir, "log.sil")

	fp := New()
	if err := fp.LoadOptions(newOptions(t, map[string]string{
		"filename": path,
		"encrypt":  "true",
		"key":      "sixteen byte key",
	})); err != nil {
		t.Fatal(err)
	}
	if err := fp.InternalConnect(); err != nil {
		t.Fatal(err)
	}
	if err := fp.InternalWritePacket(packet.NewLogEntry(0, "s", "secret", nil)); err != nil {
		t.Fatal(err)
	}
	if err := fp.InternalDisconnect(); err != nil {
		t.Fatal(err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.HasPrefix(data, []byte("SILE")) {
		t.Fatalf("file does not start with SILE magic: %x", data[:4])
	}
	body := data[4+16:]
	if len(body)%16 != 0 {
		t.Fatalf("encrypted body length %d is not a multiple of 16", len(body))
	}
}

func TestEncryptRejectsMissingKey(t *testing.T) {
	fp := New()
	err := fp.LoadOptions(newOptions(t, map[string]string{"encrypt": "true"}))
	if err != ErrKeyRequired {
		t.Fatalf("err = %v, want ErrKeyRequired", err)
	}
}

func TestAppendIsIgnoredWhenEncrypted(t *testing.T) {
	fp := New()
	if err := fp.LoadOptions(newOptions(t, map[string]string{
		"encrypt": "true",
		"key":     "sixteen byte key",
		"append":  "true",
	})); err != nil {
		t.Fatal(err)
	}
	if fp.opts.Append {
		t.Fatal("append should be silently forced to false when encrypt=true")
	}
}

func TestMaxPartsDefaultsToTwoForLegacySizeRotation(t *testing.T) {
	fp := New()
	if err := fp.LoadOptions(newOptions(t, map[string]string{"maxsize": "4KB"})); err != nil {
		t.Fatal(err)
	}
	if fp.opts.MaxParts != 2 {
		t.Fatalf("MaxParts = %d, want 2 (legacy default)", fp.opts.MaxParts)
	}
}

func TestRotationBySizeKeepsAtMostMaxParts(t *testing.T) {
	testhelper.SkipIfUnit(t, "exercises the real filesystem")

	dir := t.TempDir()
	path := filepath.Join(dir, "log.sil")

	fp := New()
	if err := fp.LoadOptions(newOptions(t, map[string]string{
		"filename": path,
		"maxsize":  "4KB",
	})); err != nil {
		t.Fatal(err)
	}
	if err := fp.InternalConnect(); err != nil {
		t.Fatal(err)
	}
	defer fp.InternalDisconnect()

	payload := make([]byte, 1024)
	for i := 0; i < 5; i++ {
		if err := fp.InternalWritePacket(packet.NewLogEntry(0, "s", "x", payload)); err != nil {
			t.Fatal(err)
		}
	}
	fp.InternalDisconnect()

	siblings, err := listRotationSiblings(fp.dir, fp.stem, fp.ext)
	if err != nil {
		t.Fatal(err)
	}
	if len(siblings) > 2 {
		t.Fatalf("len(siblings) = %d, want <= 2 (maxparts default)", len(siblings))
	}
}

func TestRotationNameFormat(t *testing.T) {
	name := rotationName("log", ".sil", mustParseRFC3339("2026-07-30T10:05:09Z"))
	if name != "log-2026-07-30-10-05-09.sil" {
		t.Fatalf("rotationName = %q", name)
	}
}
