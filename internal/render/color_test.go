package render

import "testing"

func TestAccentHex(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"pure red", "0, 100%, 50%", "#FF0000"},
		{"dark green", "120, 100%, 25%", "#008000"},
		{"brand blue", "217, 91%, 60%", "#3C83F6"},
		{"white", "0, 0%, 100%", "#FFFFFF"},
		{"black", "0, 0%, 0%", "#000000"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := AccentHex(tt.in); got != tt.want {
				t.Errorf("AccentHex(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestAccentHex_MalformedFallsBack(t *testing.T) {
	tests := []struct {
		name string
		in   string
	}{
		{"empty", ""},
		{"keyword", "blue"},
		{"two components", "12, 34%"},
		{"missing percent", "217, 91, 60"},
		{"hue out of range", "400, 50%, 50%"},
		{"saturation out of range", "200, 150%, 50%"},
		{"not numbers", "a, b%, c%"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := AccentHex(tt.in); got != DefaultAccentHex {
				t.Errorf("AccentHex(%q) = %q, want fallback %q", tt.in, got, DefaultAccentHex)
			}
		})
	}
}
