package pathing

import (
	"errors"
	"fmt"
	"path/filepath"
	"regexp"
	"strings"

	"shelfward/internal/catalog"
	"shelfward/internal/textutil"
)

const (
	// Extension is the fixed output container extension.
	Extension = ".m4b"

	// maxBracketPasses caps conditional group resolution so malformed
	// patterns with stray brackets cannot loop forever.
	maxBracketPasses = 10
)

var (
	placeholderPattern = regexp.MustCompile(`\{([A-Za-z]+)\}`)
	bracketPattern     = regexp.MustCompile(`\[[^\[\]]*\]`)
	emptyPairPattern   = regexp.MustCompile(`\(\s*\)|\[\s*\]|\{\s*\}`)
	spaceRunPattern    = regexp.MustCompile(`\s{2,}`)
	dashRunPattern     = regexp.MustCompile(`(\s*-\s*){2,}`)
)

// Fields maps placeholder names to resolved values. Missing or empty values
// cause conditional groups referencing them to vanish.
type Fields map[string]string

// FieldsFromItem resolves every supported placeholder for a catalog item.
func FieldsFromItem(item *catalog.Item) Fields {
	if item == nil {
		return Fields{}
	}
	seriesName, volume := FormatSeries(item.Series)
	return Fields{
		"Author":    FormatAuthors(item.Authors),
		"Narrator":  FormatNarrators(item.Narrators),
		"Series":    seriesName,
		"Volume":    volume,
		"Title":     strings.TrimSpace(item.Title),
		"Year":      item.ReleaseYear(),
		"Publisher": strings.TrimSpace(item.Publisher),
		"Language":  strings.TrimSpace(item.Language),
		"ASIN":      item.ID,
	}
}

// Build compiles pattern against fields and returns the destination path
// under baseDir. It never fails: a pattern that resolves to nothing falls
// back to base/<title>/<title>.m4b.
func Build(baseDir, pattern string, fields Fields) string {
	resolved := resolveBrackets(pattern, fields)
	resolved = placeholderPattern.ReplaceAllStringFunc(resolved, func(token string) string {
		name := token[1 : len(token)-1]
		return fields[name]
	})

	segments := make([]string, 0, 4)
	for _, raw := range strings.Split(resolved, "/") {
		segment := cleanSegment(raw)
		if segment == "" || bareExtension(segment) {
			continue
		}
		segments = append(segments, segment)
	}

	if len(segments) == 0 {
		title := textutil.SanitizeSegment(strings.TrimSpace(fields["Title"]))
		if title == "" {
			title = "Unknown Title"
		}
		return filepath.Join(baseDir, title, title+Extension)
	}

	parts := append([]string{baseDir}, segments...)
	return filepath.Join(parts...)
}

// resolveBrackets repeatedly resolves the first innermost conditional group:
// the whole span is dropped when any placeholder inside it resolves empty,
// otherwise the brackets are stripped and the inner text kept.
func resolveBrackets(pattern string, fields Fields) string {
	for pass := 0; pass < maxBracketPasses; pass++ {
		loc := bracketPattern.FindStringIndex(pattern)
		if loc == nil {
			return pattern
		}
		span := pattern[loc[0]:loc[1]]
		inner := span[1 : len(span)-1]

		drop := false
		for _, match := range placeholderPattern.FindAllStringSubmatch(inner, -1) {
			if strings.TrimSpace(fields[match[1]]) == "" {
				drop = true
				break
			}
		}

		if drop {
			pattern = pattern[:loc[0]] + pattern[loc[1]:]
		} else {
			pattern = pattern[:loc[0]] + inner + pattern[loc[1]:]
		}
	}
	return pattern
}

func cleanSegment(segment string) string {
	segment = emptyPairPattern.ReplaceAllString(segment, "")
	segment = spaceRunPattern.ReplaceAllString(segment, " ")
	segment = dashRunPattern.ReplaceAllString(segment, " - ")
	segment = strings.TrimSpace(segment)
	segment = strings.Trim(segment, "-")
	segment = strings.TrimSpace(segment)
	return textutil.SanitizeSegment(segment)
}

// bareExtension reports whether a segment is nothing but a file extension,
// which happens when every placeholder in a filename resolves empty.
func bareExtension(segment string) bool {
	return strings.HasPrefix(segment, ".") && !strings.Contains(segment[1:], ".")
}

// ValidatePattern checks a naming pattern before it is stored: it must
// reference {Title}, end in the output extension, and contain no characters
// that are illegal in paths outside of placeholder substitution.
func ValidatePattern(pattern string) error {
	trimmed := strings.TrimSpace(pattern)
	if trimmed == "" {
		return errors.New("pattern must not be empty")
	}
	if !strings.Contains(trimmed, "{Title}") {
		return errors.New("pattern must contain {Title}")
	}
	if !strings.HasSuffix(trimmed, Extension) {
		return fmt.Errorf("pattern must end in %s", Extension)
	}
	literal := placeholderPattern.ReplaceAllString(trimmed, "")
	for _, r := range literal {
		if r < 0x20 || strings.ContainsRune(`<>:"\|?*`, r) {
			return fmt.Errorf("pattern contains illegal character %q", r)
		}
	}
	return nil
}
