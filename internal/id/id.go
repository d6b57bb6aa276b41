// Package id generates opaque identifiers for jobs.
package id

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"time"
)

// New returns a 32-character hex identifier. If the system entropy
// source fails it falls back to a timestamp-derived value rather than
// panicking in a request path.
func New() string {
	var b [16]byte
	if _, err := rand.Read(b[:]); err != nil {
		return fmt.Sprintf("fallback-%x", time.Now().UTC().UnixNano())
	}
	return hex.EncodeToString(b[:])
}
