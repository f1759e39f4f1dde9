//go:build !unix

package pipeproto

import "errors"

var errNotConnected = errors.New("pipeproto: not connected")
var errUnsupported = errors.New("pipeproto: named pipes are unix-only")

type pipeHandle interface {
	Write(p []byte) (int, error)
	Close() error
}

func openPipe(path string) (pipeHandle, error) {
	return nil, errUnsupported
}
