// Package crypto provides checksum utilities for stored payloads.
package crypto

import (
	"encoding/hex"
	"hash"
	"io"

	"golang.org/x/crypto/blake2b"
)

// HashReader wraps an io.Reader and computes a BLAKE2b-256 digest while
// reading, so a payload is hashed in the same pass that stores it.
type HashReader struct {
	reader io.Reader
	hash   hash.Hash
	size   int64
}

// NewHashReader creates a new HashReader.
func NewHashReader(r io.Reader) *HashReader {
	h, err := blake2b.New256(nil)
	if err != nil {
		// only fails for keys longer than 64 bytes
		panic(err)
	}
	return &HashReader{
		reader: r,
		hash:   h,
	}
}

// Read implements io.Reader and updates the digest.
func (h *HashReader) Read(p []byte) (n int, err error) {
	n, err = h.reader.Read(p)
	if n > 0 {
		h.hash.Write(p[:n])
		h.size += int64(n)
	}
	return n, err
}

// Sum returns the hex-encoded digest of the bytes read so far.
func (h *HashReader) Sum() string {
	return hex.EncodeToString(h.hash.Sum(nil))
}

// Size returns the total number of bytes read.
func (h *HashReader) Size() int64 {
	return h.size
}

// Checksum computes the hex-encoded BLAKE2b-256 digest of a byte slice.
func Checksum(data []byte) string {
	sum := blake2b.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// ValidateChecksum reports whether s is a well-formed hex digest.
func ValidateChecksum(s string) bool {
	if len(s) != 2*blake2b.Size256 {
		return false
	}
	_, err := hex.DecodeString(s)
	return err == nil
}
