package cache

import (
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
)

// Digest is a fixed 256-bit key.
type Digest [32]byte

// KeyOf hashes parts with length prefixes so that ("ab","c") and ("a","bc")
// produce different keys.
func KeyOf(parts ...string) Digest {
	h := sha256.New()
	var lenBuf [8]byte
	for _, p := range parts {
		binary.LittleEndian.PutUint64(lenBuf[:], uint64(len(p)))
		_, _ = h.Write(lenBuf[:])
		_, _ = h.Write([]byte(p))
	}
	var out Digest
	copy(out[:], h.Sum(nil))
	return out
}

func (d Digest) String() string {
	return hex.EncodeToString(d[:])
}

// IsZero reports whether d is the zero digest.
func (d Digest) IsZero() bool {
	return d == Digest{}
}
