// Package stringutil holds small text helpers for terminal output.
package stringutil

import (
	"strings"
	"unicode/utf8"
)

// Ellipsis flattens s to one line and shortens it to at most maxRunes runes,
// ending in "..." when something was cut. With maxRunes <= 3 there is no room
// for the dots and s is simply cut. A negative limit yields "".
func Ellipsis(s string, maxRunes int) string {
	s = strings.TrimSpace(s)
	s = strings.ReplaceAll(s, "\r", "")
	s = strings.ReplaceAll(s, "\n", " ")

	if maxRunes < 0 {
		return ""
	}
	if utf8.RuneCountInString(s) <= maxRunes {
		return s
	}
	r := []rune(s)
	if maxRunes <= 3 {
		return string(r[:maxRunes])
	}
	return string(r[:maxRunes-3]) + "..."
}
