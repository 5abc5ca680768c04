package util

import (
	"strings"
	"testing"
)

func TestTruncateLog(t *testing.T) {
	tests := []struct {
		name   string
		in     string
		maxLen int
		want   string
	}{
		{"short", "upstream 429", DefaultLogMaxLen, "upstream 429"},
		{"exact limit", "12345678901234567890", 20, "12345678901234567890"},
		{"over limit", "1234567890abcdefghij", 10, "1234567890... [truncated, 20 bytes total]"},
		{"empty", "", 10, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := TruncateLog(tt.in, tt.maxLen); got != tt.want {
				t.Errorf("TruncateLog() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestTruncateBytes_LongBody(t *testing.T) {
	body := []byte(strings.Repeat("x", 2000))
	got := TruncateBytes(body)
	if !strings.HasPrefix(got, string(body[:DefaultLogMaxLen])) {
		t.Error("TruncateBytes() should keep the first DefaultLogMaxLen bytes")
	}
	if !strings.HasSuffix(got, "[truncated, 2000 bytes total]") {
		t.Errorf("TruncateBytes() suffix = %q", got[len(got)-40:])
	}
}
