package store

import (
	"strings"
	"testing"
)

func TestNewDisplayCodeFormat(t *testing.T) {
	for i := 0; i < 200; i++ {
		code := NewDisplayCode()
		if len(code) != 3 {
			t.Fatalf("expected 3-character code, got %q", code)
		}
		if !strings.ContainsRune(displayCodeLetters, rune(code[0])) {
			t.Fatalf("unexpected letter in code %q", code)
		}
		if code[1] < '1' || code[1] > '9' {
			t.Fatalf("first digit out of range in code %q", code)
		}
		if code[2] < '0' || code[2] > '9' {
			t.Fatalf("second digit out of range in code %q", code)
		}
	}
}

func TestNewShortIDFormat(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 100; i++ {
		id := NewShortID()
		if len(id) != 6 {
			t.Fatalf("expected 6-character short id, got %q", id)
		}
		for _, r := range id {
			if !strings.ContainsRune(shortIDAlphabet, r) {
				t.Fatalf("unexpected character in short id %q", id)
			}
		}
		seen[id] = true
	}
	if len(seen) < 2 {
		t.Fatalf("short ids are not random")
	}
}

func TestNewSecretKeyFormat(t *testing.T) {
	a := NewSecretKey()
	b := NewSecretKey()
	if len(a) != 32 || len(b) != 32 {
		t.Fatalf("expected 32-character hex keys, got %q and %q", a, b)
	}
	if a == b {
		t.Fatalf("secret keys must not repeat")
	}
}
