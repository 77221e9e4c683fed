package atis

import "strings"

// NextLetter advances an ATIS identifier cyclically A→…→Z→A. Anything that is not a
// single letter restarts the cycle at A.
func NextLetter(cur string) string {
	cur = strings.ToUpper(strings.TrimSpace(cur))
	if len(cur) != 1 || cur[0] < 'A' || cur[0] > 'Z' {
		return "A"
	}
	if cur[0] == 'Z' {
		return "A"
	}
	return string(cur[0] + 1)
}
