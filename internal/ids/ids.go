package ids

import (
	"crypto/rand"
	"encoding/binary"
	"encoding/hex"
	"time"
)

// Package ids generates and validates the 24-hex-character identifiers
// used as primary keys across all collections: 4 bytes of unix seconds
// followed by 8 random bytes, hex encoded. The timestamp prefix keeps ids
// roughly insertion-ordered.

const rawLen = 12

// New returns a fresh 24-hex-character identifier.
func New() string {
	var raw [rawLen]byte
	binary.BigEndian.PutUint32(raw[:4], uint32(time.Now().Unix()))
	if _, err := rand.Read(raw[4:]); err != nil {
		// crypto/rand does not fail on supported platforms
		panic(err)
	}
	return hex.EncodeToString(raw[:])
}

// IsValid reports whether s is a well-formed identifier.
func IsValid(s string) bool {
	if len(s) != rawLen*2 {
		return false
	}
	_, err := hex.DecodeString(s)
	return err == nil
}

// Timestamp extracts the creation time encoded in the id prefix.
// Returns the zero time for malformed ids.
func Timestamp(s string) time.Time {
	if !IsValid(s) {
		return time.Time{}
	}
	raw, _ := hex.DecodeString(s[:8])
	return time.Unix(int64(binary.BigEndian.Uint32(raw)), 0).UTC()
}
