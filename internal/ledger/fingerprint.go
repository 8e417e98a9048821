package ledger

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

// Normalize canonicalizes input text for fingerprinting and pattern
// matching: lowercased, whitespace collapsed to single spaces, trimmed.
func Normalize(text string) string {
	return strings.Join(strings.Fields(strings.ToLower(text)), " ")
}

// Fingerprint returns the deterministic hex SHA-256 of the normalized text.
// Used for exact-match fallback lookups when semantic search degrades.
func Fingerprint(text string) string {
	sum := sha256.Sum256([]byte(Normalize(text)))
	return hex.EncodeToString(sum[:])
}
