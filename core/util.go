package core

import (
	"strings"
	"time"
	"unicode"
	"unicode/utf8"
)

// NowFunc returns the current UTC time. Tests may replace it.
var NowFunc = func() time.Time { return time.Now().UTC() }

// CleanString trims all leading and trailing whitespace in `s` and optionally lowers it.
func CleanString(s string, lower ...bool) string {
	s = strings.TrimSpace(s)
	if len(lower) > 0 && lower[0] {
		return strings.ToLower(s)
	}
	return s
}

// Initials builds upper-cased initials from a first and last name.
// Missing parts are skipped; "--" is returned when both are blank.
func Initials(first, last string) string {
	var b strings.Builder
	for _, part := range []string{first, last} {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		r, _ := utf8.DecodeRuneInString(part)
		b.WriteRune(unicode.ToUpper(r))
	}
	if b.Len() == 0 {
		return "--"
	}
	return b.String()
}

// FullName joins non-blank name parts with a single space.
func FullName(first, last string) string {
	return strings.TrimSpace(CleanString(first) + " " + CleanString(last))
}
