package redscript

import (
	"crypto/sha1"
	"encoding/hex"
)

// Digest returns the 40-hex SHA-1 of body, the key Redis uses for its script cache.
// The exact bytes are hashed; no whitespace or encoding normalization.
func Digest(body string) string {
	sum := sha1.Sum([]byte(body))
	return hex.EncodeToString(sum[:])
}
