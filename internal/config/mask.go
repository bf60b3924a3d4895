package config

import "strings"

// MaskValue hides the middle of a secret, keeping visible characters at each
// end. Values no longer than visible*2 are masked entirely.
func MaskValue(value string, visible int) string {
	if value == "" {
		return ""
	}
	r := []rune(value)
	if len(r) <= visible*2 {
		return strings.Repeat("*", len(r))
	}
	return string(r[:visible]) + strings.Repeat("*", len(r)-visible*2) + string(r[len(r)-visible:])
}
