// Package slug derives URL and filesystem safe identifiers from titles.
package slug

import (
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"
)

var (
	nonAlphanumeric = regexp.MustCompile(`[^a-z0-9]+`)

	// NFKD leaves these untouched, so they are spelled out first.
	ligatures = strings.NewReplacer(
		"œ", "oe", "Œ", "OE",
		"æ", "ae", "Æ", "AE",
		"ß", "ss",
	)
)

// Make converts s to a lowercase, accent-free slug.
// "Le Lac" -> "le-lac".
// "À une passante" -> "a-une-passante".
// "L'Œuvre d'art" -> "l-oeuvre-d-art".
func Make(s string) string {
	s = ligatures.Replace(s)
	s = norm.NFKD.String(s)
	s = strings.Map(func(r rune) rune {
		switch {
		case unicode.Is(unicode.Mn, r):
			return -1
		case r > unicode.MaxASCII:
			return ' '
		}
		return r
	}, s)
	s = strings.ToLower(s)
	s = nonAlphanumeric.ReplaceAllString(s, "-")
	return strings.Trim(s, "-")
}
