package cli

import "testing"

func TestIsQuit(t *testing.T) {
	tests := []struct {
		in   string
		want bool
	}{
		{"quit", true},
		{"Quit", true},
		{"exit", true},
		{"  exit  ", true},
		{"stop listening", true},
		{"Stop listening.", true},
		{"quit the sketch mode", false},
		{"extrude it", false},
		{"", false},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			if got := isQuit(tt.in); got != tt.want {
				t.Errorf("isQuit(%q) = %v, want %v", tt.in, got, tt.want)
			}
		})
	}
}
