package party

import (
	"crypto/rand"
	"encoding/hex"
)

// NewToken generates a party link token: 32 bytes of randomness, hex encoded.
// Tokens are single-party credentials, so collision handling is left to the
// unique index on the column.
func NewToken() string {
	b := make([]byte, 32)
	rand.Read(b)
	return hex.EncodeToString(b)
}
