package render

import "testing"

func TestValidFormat(t *testing.T) {
	tests := []struct {
		format string
		want   bool
	}{
		{"dot", true},
		{"svg", true},
		{"png", true},
		{"pdf", true},
		{"json", true},
		{"SVG", false},
		{"", false},
	}
	for _, tt := range tests {
		if got := ValidFormat(tt.format); got != tt.want {
			t.Errorf("ValidFormat(%q) = %v, want %v", tt.format, got, tt.want)
		}
	}
}

func TestContentType(t *testing.T) {
	if got := ContentType(FormatSVG); got != "image/svg+xml" {
		t.Errorf("svg = %q", got)
	}
	if got := ContentType(FormatDOT); got != "text/vnd.graphviz; charset=utf-8" {
		t.Errorf("dot = %q", got)
	}
}
