package digest

import (
	"crypto/sha256"
	"encoding/hex"
)

// Sum returns the hex-encoded sha256 digest of data. Used to detect repeated
// cover broadcasts without holding the raw bytes.
func Sum(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}
