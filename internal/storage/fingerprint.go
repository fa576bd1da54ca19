package storage

import (
	"encoding/hex"

	"golang.org/x/crypto/blake2b"
)

// fingerprintLen is the number of hex characters kept from the digest.
const fingerprintLen = 16

// KeyFingerprint returns a short, stable identifier for an API key so request
// logs can tell keys apart without storing them. An empty key yields "".
func KeyFingerprint(apiKey string) string {
	if apiKey == "" {
		return ""
	}
	sum := blake2b.Sum256([]byte(apiKey))
	return hex.EncodeToString(sum[:])[:fingerprintLen]
}
