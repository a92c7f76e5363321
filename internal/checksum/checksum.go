// Package checksum fingerprints record sources for incremental indexing.
package checksum

import (
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"hash"
)

// Digest is a SHA-256 over length-prefixed parts, so ("ab", "c") and
// ("a", "bc") hash differently.
type Digest struct {
	h hash.Hash
}

// New returns an empty Digest.
func New() *Digest {
	return &Digest{h: sha256.New()}
}

// Add appends p as one part.
func (d *Digest) Add(p []byte) *Digest {
	var n [8]byte
	binary.BigEndian.PutUint64(n[:], uint64(len(p)))
	d.h.Write(n[:])
	d.h.Write(p)
	return d
}

// AddString appends s as one part.
func (d *Digest) AddString(s string) *Digest {
	return d.Add([]byte(s))
}

// Hex returns the hex-encoded digest of the parts added so far.
func (d *Digest) Hex() string {
	return hex.EncodeToString(d.h.Sum(nil))
}

// Sum returns the hex-encoded SHA-256 of data.
func Sum(data []byte) string {
	h := sha256.Sum256(data)
	return hex.EncodeToString(h[:])
}

// Short trims a hex digest for log lines.
func Short(sum string) string {
	if len(sum) > 12 {
		return sum[:12]
	}
	return sum
}
