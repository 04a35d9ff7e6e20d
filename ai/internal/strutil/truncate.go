// Package strutil holds small string helpers shared by the ai packages.
package strutil

import "unicode/utf8"

// Ellipsis is appended to truncated strings.
const Ellipsis = "..."

// Truncate shortens s to at most maxRunes runes for log output, appending
// Ellipsis when anything was cut. Vietnamese diacritics stay intact because
// the cut happens on rune boundaries.
func Truncate(s string, maxRunes int) string {
	if maxRunes <= 0 {
		return ""
	}
	if utf8.RuneCountInString(s) <= maxRunes {
		return s
	}
	n := 0
	for i := range s {
		if n == maxRunes {
			return s[:i] + Ellipsis
		}
		n++
	}
	return s
}
