package audit

import (
	"crypto/sha256"
	"encoding/base64"
)

// Fingerprint reduces a credential to a storable identifier: the SHA-256 of
// the value, base64-encoded. Raw codes and token values never reach audit
// storage; fingerprints let operators correlate entries with a value in hand.
func Fingerprint(value string) string {
	if value == "" {
		return ""
	}
	hash := sha256.Sum256([]byte(value))
	return base64.StdEncoding.EncodeToString(hash[:])
}
