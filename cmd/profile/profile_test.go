package profile

import (
	"bytes"
	"strings"
	"testing"
)

func TestReadConfirmation(t *testing.T) {
	tests := []struct {
		input string
		want  bool
	}{
		{"y\n", true},
		{"YES\n", true},
		{" yes \n", true},
		{"n\n", false},
		{"\n", false},
		{"", false},
		{"maybe\n", false},
	}

	for _, tt := range tests {
		var out bytes.Buffer
		got := readConfirmation(strings.NewReader(tt.input), &out, "Delete?")
		if got != tt.want {
			t.Errorf("readConfirmation(%q) = %t, want %t", tt.input, got, tt.want)
		}
		if !strings.Contains(out.String(), "Delete? [y/N]") {
			t.Errorf("Expected prompt, got %q", out.String())
		}
	}
}

func TestProfilePath(t *testing.T) {
	if got := profilePath("work desk"); got != "/api/profiles/work%20desk" {
		t.Errorf("Expected escaped path, got %s", got)
	}
}
