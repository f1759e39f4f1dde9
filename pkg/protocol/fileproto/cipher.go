package fileproto

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/md5"
	"crypto/rand"
	"encoding/binary"
	"fmt"
	"io"
	"time"
)

// deriveIV reproduces the legacy IV derivation bit-for-bit: MD5 of the
// current wall-clock millisecond count, little-endian 8-byte encoded.
// spec.md §9 explicitly calls this out as a known weakness ("do not
// silently strengthen"); RandomIV is the opt-in escape hatch using
// crypto/rand instead (see DESIGN.md Open Question decisions).
func deriveIV(randomIV bool) ([16]byte, error) {
	var iv [16]byte
	if randomIV {
		if _, err := rand.Read(iv[:]); err != nil {
			return iv, fmt.Errorf("fileproto: generate IV: %w", err)
		}
		return iv, nil
	}

	var millisBuf [8]byte
	binary.LittleEndian.PutUint64(millisBuf[:], uint64(time.Now().UnixMilli()))
	sum := md5.Sum(millisBuf[:])
	copy(iv[:], sum[:])
	return iv, nil
}

// cbcWriter wraps an underlying io.Writer with AES-128-CBC/PKCS7 encryption
// in encrypt mode: each Write call encrypts and forwards the whole blocks
// it has, without padding. Per spec.md §4.D the body following SILE+IV is a
// contiguous CBC stream, so cbcWriter buffers any partial final block
// across calls rather than re-padding every Write independently; callers
// must call Close to flush and pad the tail.
type cbcWriter struct {
	dst     io.Writer
	stream  cipher.BlockMode
	block   cipher.Block
	pending []byte
}

func newCBCWriter(dst io.Writer, key, iv [16]byte) (*cbcWriter, error) {
	block, err := aes.NewCipher(key[:])
	if err != nil {
		return nil, fmt.Errorf("fileproto: new AES cipher: %w", err)
	}
	return &cbcWriter{
		dst:    dst,
		stream: cipher.NewCBCEncrypter(block, iv[:]),
		block:  block,
	}, nil
}

func (w *cbcWriter) Write(p []byte) (int, error) {
	w.pending = append(w.pending, p...)

	blockSize := w.block.BlockSize()
	full := len(w.pending) - (len(w.pending) % blockSize)
	if full > 0 {
		out := make([]byte, full)
		w.stream.CryptBlocks(out, w.pending[:full])
		if _, err := w.dst.Write(out); err != nil {
			return 0, err
		}
		w.pending = w.pending[full:]
	}
	return len(p), nil
}

// Close applies PKCS7 padding to any buffered partial block and encrypts
// it. It does not close the underlying writer.
func (w *cbcWriter) Close() error {
	blockSize := w.block.BlockSize()
	padLen := blockSize - (len(w.pending) % blockSize)
	padded := append(w.pending, paddingBytes(padLen)...)

	out := make([]byte, len(padded))
	w.stream.CryptBlocks(out, padded)
	_, err := w.dst.Write(out)
	w.pending = nil
	return err
}

func paddingBytes(n int) []byte {
	b := make([]byte, n)
	for i := range b {
		b[i] = byte(n)
	}
	return b
}
