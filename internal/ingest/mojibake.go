package ingest

import (
	"strings"
	"unicode/utf8"

	"golang.org/x/text/encoding/charmap"
)

// mojibakeMarkers are byte sequences that appear when UTF-8 text was
// decoded as Latin-1 or Windows-1252 somewhere upstream.
var mojibakeMarkers = []string{"Ã", "â€", "Â", "ï»¿"}

// FixMojibake repairs UTF-8 text that was mangled by a Latin-1 round trip
// ("donâ€™t" becomes "don't"). Clean text passes through unchanged.
func FixMojibake(s string) string {
	if !hasMojibake(s) {
		return strings.TrimPrefix(s, "\uFEFF")
	}

	// Re-encode as Windows-1252 bytes and decode those bytes as UTF-8.
	// When the round trip yields valid UTF-8 it is the original text.
	enc := charmap.Windows1252.NewEncoder()
	raw, err := enc.String(s)
	if err != nil || !utf8.ValidString(raw) {
		return s
	}
	repaired := raw

	// A second marker pass catches doubly mangled text.
	if hasMojibake(repaired) {
		if raw2, err := enc.String(repaired); err == nil && utf8.ValidString(raw2) && !hasMojibake(raw2) {
			repaired = raw2
		}
	}
	return strings.TrimPrefix(repaired, "\uFEFF")
}

func hasMojibake(s string) bool {
	for _, marker := range mojibakeMarkers {
		if strings.Contains(s, marker) {
			return true
		}
	}
	return false
}
