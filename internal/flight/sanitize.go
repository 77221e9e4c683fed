// Package flight holds the validation and derivation rules applied to flight strips
// before anything reaches the store.
package flight

import (
	"strings"
	"unicode"
)

type charClass func(r rune) bool

func alnum(r rune) bool { return (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') }

func alnumDash(r rune) bool { return alnum(r) || r == '-' }

func station(r rune) bool { return alnumDash(r) || r == '_' }

func letters(r rune) bool { return r >= 'A' && r <= 'Z' }

// keep uppercases s, drops runes outside class and truncates to max runes.
func keep(s string, max int, class charClass) string {
	s = strings.ToUpper(strings.TrimSpace(s))
	var b strings.Builder
	n := 0
	for _, r := range s {
		if n == max {
			break
		}
		if class(r) {
			b.WriteRune(r)
			n++
		}
	}
	return b.String()
}

// freeText strips control characters and truncates to max runes, preserving case.
func freeText(s string, max int) string {
	s = strings.TrimSpace(s)
	var b strings.Builder
	n := 0
	for _, r := range s {
		if n == max {
			break
		}
		if unicode.IsControl(r) {
			continue
		}
		b.WriteRune(r)
		n++
	}
	return b.String()
}

// Field sanitizers. Each returns the value that may be persisted.
var sanitizers = map[string]func(string) string{
	"callsign":    func(s string) string { return keep(s, 16, alnum) },
	"aircraft":    func(s string) string { return keep(s, 8, alnum) },
	"runway":      func(s string) string { return keep(s, 10, alnum) },
	"sid":         func(s string) string { return keep(s, 16, alnum) },
	"star":        func(s string) string { return keep(s, 16, alnum) },
	"gate":        func(s string) string { return keep(s, 8, alnumDash) },
	"stand":       func(s string) string { return keep(s, 8, alnumDash) },
	"departure":   func(s string) string { return keep(s, 4, letters) },
	"arrival":     func(s string) string { return keep(s, 4, letters) },
	"alternate":   func(s string) string { return keep(s, 4, letters) },
	"station":     func(s string) string { return keep(s, 16, station) },
	"remark":      func(s string) string { return freeText(s, 500) },
	"route":       func(s string) string { return freeText(s, 1000) },
	"pdc_remarks": func(s string) string { return freeText(s, 2000) },
}

// Sanitize applies the sanitizer registered for field, or returns s trimmed.
func Sanitize(field, s string) string {
	if fn, ok := sanitizers[field]; ok {
		return fn(s)
	}
	return strings.TrimSpace(s)
}
