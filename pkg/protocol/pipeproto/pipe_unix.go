//go:build unix

package pipeproto

import (
	"errors"
	"os"

	"golang.org/x/sys/unix"
)

var errNotConnected = errors.New("pipeproto: not connected")

type pipeHandle interface {
	Write(p []byte) (int, error)
	Close() error
}

// openPipe creates the FIFO at path if it does not already exist, then
// opens it for writing. Opening blocks until a reader has the pipe open,
// matching the blocking-handshake behavior of a named pipe.
func openPipe(path string) (pipeHandle, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		if err := unix.Mkfifo(path, 0o600); err != nil {
			return nil, err
		}
	}
	return os.OpenFile(path, os.O_WRONLY, os.ModeNamedPipe)
}
