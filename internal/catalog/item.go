package catalog

import (
	"regexp"
	"strings"
)

// idPattern matches the fixed-length alphanumeric catalog identifier.
var idPattern = regexp.MustCompile(`^[A-Z0-9]{10}$`)

// ValidID reports whether value looks like a catalog identifier.
func ValidID(value string) bool {
	return idPattern.MatchString(strings.TrimSpace(value))
}

// Contributor is a single credited person on a catalog item. ID is the
// contributor's own catalog identifier and may be empty; ID-less entries on
// multi-author titles are usually translators or editors.
type Contributor struct {
	Name string `json:"name"`
	ID   string `json:"asin,omitempty"`
}

// SeriesRef places an item within a series. Sequence is carried raw (the
// service emits values like "1" and "1.5") and formatted only at path-build
// time.
type SeriesRef struct {
	Name     string `json:"name"`
	Sequence string `json:"sequence,omitempty"`
}

// Item is a catalog record as returned by the content service's detail
// endpoint. All fields other than ID and Title are optional.
type Item struct {
	ID          string      `json:"id"`
	Title       string      `json:"title"`
	Subtitle    string      `json:"subtitle,omitempty"`
	Authors     People      `json:"authors,omitempty"`
	Narrators   People      `json:"narrators,omitempty"`
	Series      []SeriesRef `json:"series,omitempty"`
	Publisher   string      `json:"publisher,omitempty"`
	ReleaseDate string      `json:"release_date,omitempty"`
	Language    string      `json:"language,omitempty"`
	ISBN        string      `json:"isbn,omitempty"`
	Description string      `json:"description,omitempty"`
}

// ReleaseYear extracts the year component from the item's release date
// (YYYY-MM-DD or bare YYYY). Returns "" when no date is present.
func (i *Item) ReleaseYear() string {
	if i == nil || i.ReleaseDate == "" {
		return ""
	}
	year, _, _ := strings.Cut(i.ReleaseDate, "-")
	return strings.TrimSpace(year)
}
