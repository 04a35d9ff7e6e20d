package strutil

import "testing"

func TestTruncate(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		maxRunes int
		expected string
	}{
		{"empty", "", 10, ""},
		{"short", "hello", 10, "hello"},
		{"exact", "hello", 5, "hello"},
		{"cut", "hello world", 5, "hello..."},
		{"zero", "hello", 0, ""},
		{"negative", "hello", -1, ""},
		{"diacritics kept", "Đà Nẵng", 7, "Đà Nẵng"},
		{"diacritics cut on rune", "Thời tiết Đà Nẵng", 4, "Thời..."},
		{"combining marks count as runes", "a\u0301b", 1, "a..."},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Truncate(tt.input, tt.maxRunes); got != tt.expected {
				t.Errorf("Truncate(%q, %d) = %q, want %q", tt.input, tt.maxRunes, got, tt.expected)
			}
		})
	}
}
