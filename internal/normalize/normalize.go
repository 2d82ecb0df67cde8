// Package normalize standardizes titles and personal names before they are
// compared across sources.
package normalize

import (
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

var (
	initialsRe = regexp.MustCompile(`(\w\.)\s(\w\.)`)
	// Canonical decomposition followed by combining-mark removal strips
	// diacritics ("Müller" → "muller").
	deaccent = transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)))
)

// String normalizes s for matching:
//  1. lowercase
//  2. strip diacritics (NFD + combining-mark removal)
//  3. collapse spaced initials "x. y." to "x.y."
//  4. drop "!" and "?"
//  5. trim surrounding whitespace
//
// The result of String is a fixed point: normalizing it again returns it
// unchanged.
func String(s string) string {
	s = strings.ToLower(s)
	if out, _, err := transform.String(deaccent, s); err == nil {
		s = out
	}
	s = initialsRe.ReplaceAllString(s, "$1$2")
	s = strings.NewReplacer("!", "", "?", "").Replace(s)
	return strings.TrimSpace(s)
}

// Equal reports whether a and b are the same string after normalization.
func Equal(a, b string) bool {
	return String(a) == String(b)
}
