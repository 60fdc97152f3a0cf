package genius

import (
	"html"
	"regexp"
	"strings"
)

var (
	containerRe = regexp.MustCompile(`(?s)<div[^>]*data-lyrics-container="true"[^>]*>(.*?)</div>`)
	brRe        = regexp.MustCompile(`<br\s*/?>`)
	tagRe       = regexp.MustCompile(`<[^>]+>`)
	sectionRe   = regexp.MustCompile(`(?m)^[ \t]*\[[^\]]*\][ \t]*$`)
	embedRe     = regexp.MustCompile(`\s*\d*\s*Embed\s*$`)
	blankRunRe  = regexp.MustCompile(`\n{3,}`)
)

// extractLyrics pulls lyric text out of a Genius song page.
func extractLyrics(page string) string {
	matches := containerRe.FindAllStringSubmatch(page, -1)
	if len(matches) == 0 {
		return ""
	}

	var parts []string
	for _, m := range matches {
		text := brRe.ReplaceAllString(m[1], "\n")
		text = tagRe.ReplaceAllString(text, "")
		parts = append(parts, html.UnescapeString(text))
	}
	return CleanLyrics(strings.Join(parts, "\n"))
}

// CleanLyrics strips section headers like [Chorus], trailing embed counters,
// and collapses runs of blank lines.
func CleanLyrics(text string) string {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	text = sectionRe.ReplaceAllString(text, "")
	text = embedRe.ReplaceAllString(text, "")
	text = blankRunRe.ReplaceAllString(text, "\n\n")
	return strings.TrimSpace(text)
}
