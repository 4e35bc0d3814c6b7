// Package idgen generates the opaque identifiers the message store hands
// out to callers.
package idgen

import (
	"encoding/hex"

	"github.com/google/uuid"
)

// NewBatchID returns a fresh hex-encoded 128-bit random identifier
// (spec §6). A version-4 UUID's 16 bytes are exactly 128 bits of
// cryptographically random data, so we hex-encode those raw bytes rather
// than uuid's canonical dashed string form.
func NewBatchID() string {
	id := uuid.New()
	return hex.EncodeToString(id[:])
}
