package store

import (
	"crypto/rand"
	"encoding/hex"
)

const shortIDAlphabet = "abcdefghjkmnpqrstuvwxyz23456789"

// NewShortID returns the 6-character token used in join URLs. Uniqueness is
// enforced by the storage layer, not here.
func NewShortID() string {
	buf := make([]byte, 6)
	if _, err := rand.Read(buf); err != nil {
		return "000000"
	}
	for i, b := range buf {
		buf[i] = shortIDAlphabet[int(b)%len(shortIDAlphabet)]
	}
	return string(buf)
}

// NewSecretKey returns an unguessable capability token for admin and
// window-operator URLs.
func NewSecretKey() string {
	buf := make([]byte, 16)
	if _, err := rand.Read(buf); err != nil {
		return ""
	}
	return hex.EncodeToString(buf)
}
