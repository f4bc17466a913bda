// Package sha256 provides SHA-256 hashing utilities used for catalog
// signatures and stable novel identifiers.
package sha256

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

// Hasher computes hex-encoded SHA-256 digests.
type Hasher struct{}

// New returns a SHA-256 hasher.
func New() *Hasher {
	return &Hasher{}
}

// Hash hashes the input and returns a hex digest.
func (h *Hasher) Hash(data []byte) (string, error) {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:]), nil
}

// Signature digests an ordered list of locators. The same list in the same
// order always yields the same signature; any insertion, removal, or reorder
// changes it.
func Signature(locators []string) string {
	sum := sha256.Sum256([]byte(strings.Join(locators, "\n")))
	return hex.EncodeToString(sum[:])
}

// NovelID derives a short stable identifier from the start locator, used to
// key the progress record and output directory for one novel target.
func NovelID(startLocator string) string {
	sum := sha256.Sum256([]byte(startLocator))
	return hex.EncodeToString(sum[:])[:12]
}
