// Package fileproto implements the rotating, optionally encrypted binary
// file sink (spec.md §4.H): a pkg/protocol.Capability backed by a local
// file, AES-128-CBC/PKCS7 encryption, calendar or size-based rotation, and
// maxparts retention. Grounded on the teacher's pkg/backends.FileBackendImpl
// (buffered-writer-over-os.File plus gofrs/flock process locking) and
// pkg/features/rotation.go's time-based rollover idiom.
package fileproto

import (
	"errors"

	"github.com/sisdk/sisdk/pkg/keyprovider"
	"github.com/sisdk/sisdk/pkg/lookup"
	"github.com/sisdk/sisdk/pkg/rotater"
)

// Options holds fileproto's resolved connections-string options, per
// spec.md §4.H.
type Options struct {
	Filename string
	Append   bool
	Buffer   int64 // bytes; 0 means "use the internal default buffer"
	Encrypt  bool
	Key      []byte
	Rotate   rotater.Mode
	MaxSize  int64 // bytes; 0 = unbounded
	MaxParts int
	RandomIV bool // opt-in departure from the legacy MD5(millis) IV
	Compress bool // gzip retired parts once rotated out of the active slot

	KeyProvider keyprovider.Provider
}

const internalBufferSize = 8 * 1024 // 8 KiB, spec.md §4.H default

// ErrKeyRequired is returned when encrypt=true but no usable key was
// supplied.
var ErrKeyRequired = errors.New("fileproto: encrypt=true requires a 16-byte key")

// ParseOptions resolves Options from a lookup.Table, applying spec.md
// §4.H's defaults.
func ParseOptions(t *lookup.Table) (Options, error) {
	opts := Options{
		Filename: t.StringDefault("filename", "log.sil"),
		Append:   t.Bool("append", false),
		Buffer:   t.Size("buffer", 0),
		Encrypt:  t.Bool("encrypt", false),
		Rotate:   t.Rotate("rotate", rotater.None),
		MaxSize:  t.Size("maxsize", 0),
		RandomIV: t.Bool("randomiv", false),
		Compress: t.Bool("compress", false),
	}

	// append=true is silently ignored when encrypt=true (spec.md §4.H
	// step 3): an encrypted file's IV and cipher state can't be resumed
	// across process runs, so every connect on an encrypted file starts
	// fresh.
	if opts.Encrypt {
		opts.Append = false
	}

	maxParts := t.Int("maxparts", 0)
	if maxParts == 0 && opts.MaxSize > 0 && opts.Rotate == rotater.None {
		// Legacy compatibility default named explicitly in spec.md §4.H.
		maxParts = 2
	}
	opts.MaxParts = maxParts

	if opts.Encrypt {
		switch {
		case t.Has("key.vault.path"):
			provider, err := keyprovider.NewVaultKeyProvider(keyprovider.VaultConfig{
				Address: t.StringDefault("key.vault.address", ""),
				Token:   t.StringDefault("key.vault.token", ""),
				Mount:   t.StringDefault("key.vault.mount", ""),
				Path:    t.StringDefault("key.vault.path", ""),
				Field:   t.StringDefault("key.vault.field", ""),
			})
			if err != nil {
				return opts, err
			}
			key, err := provider.Key()
			if err != nil {
				return opts, err
			}
			opts.Key = key[:]
			opts.KeyProvider = provider
		case t.Has("key"):
			key := t.Bytes("key", keyprovider.KeySize)
			opts.Key = key
			opts.KeyProvider = keyprovider.NewStatic(key)
		default:
			return opts, ErrKeyRequired
		}
	}

	return opts, nil
}
