// Package id provides short random identifier generation.
package id

import (
	"crypto/rand"
	"encoding/hex"
)

// Short generates a short random hex ID (16 characters).
// Suitable for user-facing IDs where brevity matters.
func Short() string {
	b := make([]byte, 8)
	_, _ = rand.Read(b)
	return hex.EncodeToString(b)
}

// Prefixed generates a short ID with the given prefix, e.g. "wh-1a2b3c4d5e6f7a8b".
func Prefixed(prefix string) string {
	return prefix + "-" + Short()
}
