// Package tags reads and writes audiobook metadata through a capability
// interface, keeping container-specific atom I/O behind the Store boundary.
//
// The catalog identifier is recorded in the comment field as "ASIN: <id>" so
// the library ledger can be rebuilt from files alone.
package tags

import (
	"errors"
	"fmt"
	"regexp"
	"strings"

	"shelfward/internal/textutil"
)

// ErrNoItemID indicates a file carries no recoverable catalog identifier.
var ErrNoItemID = errors.New("tags: no item id in metadata")

// commentIDPattern matches the identifier stamp in a comment field.
var commentIDPattern = regexp.MustCompile(`ASIN:\s*([A-Z0-9]{10})`)

// maxDescriptionLength bounds the description field; longer texts are
// truncated, not rejected.
const maxDescriptionLength = 255

// Tags carries every field the writer embeds.
type Tags struct {
	ItemID         string
	Title          string
	Subtitle       string
	Authors        string
	Narrators      string
	Publisher      string
	ReleaseDate    string
	Year           string
	Description    string
	SeriesName     string
	SeriesSequence string
	Language       string
	ISBN           string
}

// Store is the tag I/O capability the pipeline and scanner depend on.
type Store interface {
	// ReadItemID recovers the catalog identifier from a file's comment
	// field. Returns ErrNoItemID when none is recorded.
	ReadItemID(path string) (string, error)
	// Write embeds the full tag set into the file at path.
	Write(path string, t Tags) error
}

// Comment renders the comment field carrying the identifier stamp.
func (t Tags) Comment() string {
	return "ASIN: " + t.ItemID
}

// Album renders the series album field ("Name #Seq") or empty.
func (t Tags) Album() string {
	if t.SeriesName == "" {
		return ""
	}
	if t.SeriesSequence == "" {
		return t.SeriesName
	}
	return fmt.Sprintf("%s #%s", t.SeriesName, t.SeriesSequence)
}

// ClampedDescription returns the description truncated to the field limit.
func (t Tags) ClampedDescription() string {
	return textutil.TruncateRunes(strings.TrimSpace(t.Description), maxDescriptionLength)
}

// ExtractItemID parses an identifier stamp out of arbitrary comment text.
func ExtractItemID(comment string) (string, bool) {
	match := commentIDPattern.FindStringSubmatch(comment)
	if match == nil {
		return "", false
	}
	return match[1], true
}
