package cli

import (
	"testing"

	"automail/internal/workers"
)

func TestTruncate(t *testing.T) {
	tests := []struct {
		input    string
		maxLen   int
		expected string
	}{
		{"short", 10, "short"},
		{"exactly-ten", 11, "exactly-ten"},
		{"this is a longer string", 10, "this is..."},
		{"abc", 3, "abc"},
		{"abcdef", 3, "abc"},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			result := truncate(tt.input, tt.maxLen)
			if result != tt.expected {
				t.Errorf("truncate(%q, %d) = %q, want %q", tt.input, tt.maxLen, result, tt.expected)
			}
			if len(result) > tt.maxLen {
				t.Errorf("truncate(%q, %d) returned %d chars", tt.input, tt.maxLen, len(result))
			}
		})
	}
}

func TestPrintStatusUnsupportedFormat(t *testing.T) {
	formatter := NewOutputFormatter("xml", false)

	err := formatter.PrintStatus(&workers.Status{State: "idle"})
	if err == nil {
		t.Fatal("Expected error for unsupported format")
	}
}

func TestNoColorDisablesStyles(t *testing.T) {
	formatter := NewOutputFormatterWithColor("table", false, true)

	if formatter.colorEnabled() {
		t.Error("Expected color to be disabled with noColor flag")
	}

	rendered := formatter.render(successStyle, "plain")
	if rendered != "plain" {
		t.Errorf("Expected unstyled text, got %q", rendered)
	}
}

func TestNoColorEnvVar(t *testing.T) {
	t.Setenv("NO_COLOR", "1")

	formatter := NewOutputFormatterWithColor("table", false, false)
	if formatter.colorEnabled() {
		t.Error("Expected NO_COLOR env var to disable color")
	}
}
