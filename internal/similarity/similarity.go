// Package similarity provides the string normalization and scoring used to
// resolve catalog songs against external search candidates.
package similarity

import (
	"regexp"
	"strings"
	"unicode"

	"github.com/agext/levenshtein"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// versionSuffix matches parenthetical qualifiers and release-variant dashes
// that title listings append: "(Live)", "- Remastered 2011", "- Radio Edit".
var versionSuffix = regexp.MustCompile(
	`(?i)\s*\(.*?\)|\s*-\s*(Remaster(ed)?( \d{4})?|Live|Acoustic|Radio Edit|Single Version|Mono|Stereo|Deluxe).*$`)

var multiSpace = regexp.MustCompile(`\s{2,}`)

var stripMarks = transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)

// Fold lowercases, strips diacritics and punctuation, and collapses
// whitespace. It is the case/punctuation-insensitive form used for exact
// equality short-circuits.
func Fold(s string) string {
	if folded, _, err := transform.String(stripMarks, s); err == nil {
		s = folded
	}
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range strings.ToLower(s) {
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			b.WriteRune(r)
		case unicode.IsSpace(r):
			b.WriteRune(' ')
		}
	}
	return strings.TrimSpace(multiSpace.ReplaceAllString(b.String(), " "))
}

// NormalizeTitle removes version qualifiers before folding, so "Blue
// (Remastered 2003)" and "Blue" compare equal.
func NormalizeTitle(title string) string {
	return Fold(versionSuffix.ReplaceAllString(title, ""))
}

// Key builds the cache key for a (title, artist) pair.
func Key(title, artist string) string {
	return NormalizeTitle(title) + "|" + Fold(artist)
}

// Score computes a similarity in [0,1] between a catalog record and a
// candidate, weighting title and artist equally over normalized forms.
func Score(title, artist, candTitle, candArtist string) float64 {
	t := levenshtein.Match(NormalizeTitle(title), NormalizeTitle(candTitle), nil)
	a := levenshtein.Match(Fold(artist), Fold(candArtist), nil)
	return 0.5*t + 0.5*a
}

// Exact reports case/punctuation-insensitive equality of both title and
// artist after version-qualifier stripping.
func Exact(title, artist, candTitle, candArtist string) bool {
	return NormalizeTitle(title) == NormalizeTitle(candTitle) && Fold(artist) == Fold(candArtist)
}
