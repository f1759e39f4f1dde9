// Package keyprovider supplies the 16-byte AES key pkg/protocol/fileproto
// uses for encrypted log files. The default is the static key carried
// directly in the connections-string `key` option (spec.md §4.H); this
// package adds a pluggable alternative for sourcing that key from an
// external secrets store instead of a literal in the connections string.
package keyprovider

import "fmt"

// KeySize is the fixed AES-128 key length spec.md §4.H requires.
const KeySize = 16

// Provider resolves the AES key a fileproto instance should use.
type Provider interface {
	Key() ([16]byte, error)
}

// Static wraps an already-prepared 16-byte key — the behavior spec.md
// §4.H describes: UTF-8 encode the `key` option, then pad with zero bytes
// or truncate to exactly 16 bytes.
type Static struct {
	key [16]byte
}

// NewStatic derives a Static provider from raw key bytes, pad/truncating
// to 16 bytes. Preserves the legacy pad/truncate behavior bit-exactly
// rather than switching to a KDF (see DESIGN.md Open Question decisions).
func NewStatic(raw []byte) *Static {
	var k [16]byte
	copy(k[:], raw) // zero-pads short input; copy truncates long input
	return &Static{key: k}
}

func (s *Static) Key() ([16]byte, error) {
	return s.key, nil
}

// errNoKey is returned by providers that have nothing to resolve.
var errNoKey = fmt.Errorf("keyprovider: no key configured")
