package utils

import (
	"crypto/sha256"
	"encoding/hex"
)

// Fingerprint returns a short stable digest of a payload, used to correlate
// log lines without logging evaluation content.
func Fingerprint(payload []byte) string {
	h := sha256.Sum256(payload)
	return hex.EncodeToString(h[:8])
}
