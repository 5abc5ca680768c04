package util

import "strings"

// MaskSecret hides a credential for display. Short values are fully masked;
// longer ones keep their last four characters. Multi-line values such as PEM or
// JSON keys are always fully masked.
func MaskSecret(s string) string {
	if s == "" {
		return ""
	}
	if len(s) <= 8 || strings.ContainsAny(s, "\n{") {
		return "********"
	}
	return "********" + s[len(s)-4:]
}
