//go:build unix

package pipeproto

import (
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/sisdk/sisdk/internal/testhelper"
	"github.com/sisdk/sisdk/pkg/lookup"
	"github.com/sisdk/sisdk/pkg/packet"
)

func TestConnectCreatesFIFOAndWritesMagic(t *testing.T) {
	testhelper.SkipIfUnit(t, "exercises a real named pipe")

	dir := t.TempDir()
	path := filepath.Join(dir, "sisdk.pipe")

	p := New()
	tbl := lookup.New()
	tbl.Set("pipename", path)
	if err := p.LoadOptions(tbl); err != nil {
		t.Fatal(err)
	}

	read := make(chan []byte, 1)
	errc := make(chan error, 1)
	go func() {
		// Wait for the FIFO to exist before opening for read, since
		// InternalConnect creates it lazily.
		for i := 0; i < 100; i++ {
			if _, err := os.Stat(path); err == nil {
				break
			}
			time.Sleep(10 * time.Millisecond)
		}
		f, err := os.OpenFile(path, os.O_RDONLY, os.ModeNamedPipe)
		if err != nil {
			errc <- err
			return
		}
		defer f.Close()
		buf := make([]byte, 64)
		n, err := io.ReadAtLeast(f, buf, 4)
		if err != nil {
			errc <- err
			return
		}
		read <- buf[:n]
	}()

	if err := p.InternalConnect(); err != nil {
		t.Fatal(err)
	}
	defer p.InternalDisconnect()

	if err := p.InternalWritePacket(packet.NewLogEntry(0, "s", "hi", nil)); err != nil {
		t.Fatal(err)
	}

	select {
	case got := <-read:
		if string(got[:4]) != "SILF" {
			t.Fatalf("expected SILF magic, got %q", got[:4])
		}
	case err := <-errc:
		t.Fatal(err)
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for reader to see data")
	}
}
