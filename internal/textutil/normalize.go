package textutil

import (
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"
)

// punctPattern matches separators and punctuation replaced with spaces.
var punctPattern = regexp.MustCompile(`[:\-_,.;!?()\[\]{}"']`)

// volumeWords are per-language volume/part markers stripped as whole words.
var volumeWords = []string{"band", "teil", "buch", "volume", "vol", "part", "pt"}

var volumeWordPattern = regexp.MustCompile(`\b(` + strings.Join(volumeWords, "|") + `)\b`)

var whitespacePattern = regexp.MustCompile(`\s+`)

// Normalize prepares text for fuzzy matching: lowercase, diacritic folding,
// punctuation removal, volume-marker removal, and whitespace collapsing.
// It is total and deterministic; empty input yields an empty string.
func Normalize(text string) string {
	if text == "" {
		return ""
	}

	lowered := strings.ToLower(text)

	decomposed := norm.NFD.String(lowered)
	var b strings.Builder
	b.Grow(len(decomposed))
	for _, r := range decomposed {
		if unicode.Is(unicode.Mn, r) {
			continue
		}
		b.WriteRune(r)
	}

	folded := punctPattern.ReplaceAllString(b.String(), " ")
	folded = volumeWordPattern.ReplaceAllString(folded, "")
	folded = whitespacePattern.ReplaceAllString(folded, " ")
	return strings.TrimSpace(folded)
}
