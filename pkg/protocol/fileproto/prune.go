package fileproto

import (
	"fmt"
	"io"
	"os"

	"github.com/klauspost/compress/gzip"
)

// pruneMaxParts enumerates rotation siblings for stem/ext in dir, and
// deletes the oldest ones until at most maxParts remain, per spec.md
// §4.H step 7 / §8's maxparts invariant. If compress is set, the oldest
// surviving-but-no-longer-active part retired by this call is
// gzip-compressed first (domain-stack addition, gated behind the
// `compress` option so the byte-for-byte maxparts scenario in spec.md §8
// is unaffected when compress=false).
func pruneMaxParts(dir, stem, ext string, maxParts int, compress bool, activePath string) error {
	if maxParts <= 0 {
		return nil
	}

	siblings, err := listRotationSiblings(dir, stem, ext)
	if err != nil {
		return fmt.Errorf("fileproto: list rotation siblings: %w", err)
	}

	excess := len(siblings) - maxParts
	for i := 0; i < excess; i++ {
		if err := os.Remove(siblings[i].path); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("fileproto: prune %s: %w", siblings[i].path, err)
		}
	}

	if compress && len(siblings) > excess {
		retired := siblings[excess].path
		if retired != activePath {
			if err := gzipInPlace(retired); err != nil {
				return fmt.Errorf("fileproto: compress retired part %s: %w", retired, err)
			}
		}
	}

	return nil
}

// gzipInPlace compresses path to path+".gz" and removes the original,
// mirroring the compress-then-unlink pattern the teacher's compression
// worker (pkg/features/compression.go) uses, swapped to klauspost/compress
// per SPEC_FULL.md's domain-stack wiring.
func gzipInPlace(path string) error {
	if _, err := os.Stat(path + ".gz"); err == nil {
		return nil // already compressed
	}

	src, err := os.Open(path)
	if err != nil {
		return err
	}
	defer src.Close()

	dst, err := os.Create(path + ".gz")
	if err != nil {
		return err
	}

	gw := gzip.NewWriter(dst)
	if _, err := io.Copy(gw, src); err != nil {
		gw.Close()
		dst.Close()
		return err
	}
	if err := gw.Close(); err != nil {
		dst.Close()
		return err
	}
	if err := dst.Close(); err != nil {
		return err
	}

	return os.Remove(path)
}
