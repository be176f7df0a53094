package store

import "testing"

func TestValidTransition(t *testing.T) {
	cases := []struct {
		action string
		from   string
		valid  bool
	}{
		{"call_next", "waiting", true},
		{"call_next", "called", false},
		{"call_specific", "waiting", true},
		{"call_specific", "acknowledged", false},
		{"acknowledge", "called", true},
		{"acknowledge", "waiting", false},
		{"acknowledge", "acknowledged", false},
		{"return", "called", true},
		{"return", "acknowledged", true},
		{"return", "waiting", false},
		{"return", "serviced", false},
		{"complete", "called", true},
		{"complete", "acknowledged", true},
		{"complete", "waiting", false},
		{"complete", "serviced", false},
		{"remove", "waiting", true},
		{"remove", "called", true},
		{"remove", "acknowledged", true},
		{"remove", "serviced", false},
		{"unknown", "waiting", false},
	}

	for _, tt := range cases {
		if got := ValidTransition(tt.action, tt.from); got != tt.valid {
			t.Fatalf("ValidTransition(%q, %q)=%v, want %v", tt.action, tt.from, got, tt.valid)
		}
	}
}
