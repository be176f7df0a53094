package store

import (
	"crypto/rand"
	"fmt"
	"math/big"
)

const displayCodeLetters = "ABCDEFGHJKMNPQRSTUVWXYZ"

// NewDisplayCode returns a short human-friendly ticket label: one letter and
// two digits, e.g. "K42". It is a display aid shown on wait screens and window
// panels, not a lookup key, so collisions within a queue are tolerated.
func NewDisplayCode() string {
	letter := displayCodeLetters[randomInt(len(displayCodeLetters))]
	number := 10 + randomInt(90)
	return fmt.Sprintf("%c%d", letter, number)
}

func randomInt(max int) int {
	n, err := rand.Int(rand.Reader, big.NewInt(int64(max)))
	if err != nil {
		// crypto/rand only fails when the platform source is broken; the
		// code is cosmetic, so fall back to a constant rather than error.
		return 0
	}
	return int(n.Int64())
}
