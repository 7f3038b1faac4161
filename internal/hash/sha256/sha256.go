// Package sha256 derives archive keys from page content.
package sha256

import (
	"crypto/sha256"
	"encoding/hex"
)

// Hasher implements corpus.Hasher. A positive Length truncates the hex digest.
type Hasher struct {
	Length int
}

// New returns a hasher producing full-length digests.
func New() *Hasher {
	return &Hasher{}
}

// NewShort returns a hasher producing digests of n hex characters.
func NewShort(n int) *Hasher {
	return &Hasher{Length: n}
}

// Hash returns the hex SHA-256 digest of data.
func (h *Hasher) Hash(data []byte) (string, error) {
	sum := sha256.Sum256(data)
	digest := hex.EncodeToString(sum[:])
	if h.Length > 0 && h.Length < len(digest) {
		digest = digest[:h.Length]
	}
	return digest, nil
}
