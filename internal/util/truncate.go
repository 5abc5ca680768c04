// Package util holds small string helpers shared by logging and API views.
package util

import "fmt"

// DefaultLogMaxLen bounds upstream bodies written to the log (1KB).
const DefaultLogMaxLen = 1024

// TruncateLog cuts s to maxLen bytes and notes the original size.
func TruncateLog(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + fmt.Sprintf("... [truncated, %d bytes total]", len(s))
}

// TruncateBytes is TruncateLog for byte slices with DefaultLogMaxLen.
func TruncateBytes(b []byte) string {
	return TruncateLog(string(b), DefaultLogMaxLen)
}
