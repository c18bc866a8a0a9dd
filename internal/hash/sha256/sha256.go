// Package sha256 derives content fingerprints for snapshot object names.
package sha256

import (
	"crypto/sha256"
	"encoding/hex"
)

// fingerprintLen is the number of hex digits kept in a fingerprint. Twelve
// digits (48 bits) is plenty to keep one run's snapshots collision-free
// while staying readable in object listings.
const fingerprintLen = 12

// Hasher implements scrape.Hasher using a truncated SHA-256 digest.
type Hasher struct{}

// New returns a SHA-256 fingerprint hasher.
func New() *Hasher {
	return &Hasher{}
}

// Fingerprint returns the first fingerprintLen hex digits of the SHA-256
// digest of data.
func (h *Hasher) Fingerprint(data []byte) (string, error) {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])[:fingerprintLen], nil
}
