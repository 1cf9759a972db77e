package pathing

import (
	"strings"

	"shelfward/internal/catalog"
)

// translatorMarkers flag credited names that are translations credits rather
// than authors. Matched case-insensitively as suffix markers.
var translatorMarkers = []string{
	"- übersetzer",
	"- translator",
	"- traducteur",
	"- traductor",
	"- traduttore",
	"- vertaler",
	"- översättare",
}

// FormatAuthors renders an author credit for paths and tags. Translator
// credits are dropped, and when several names remain but only some carry
// catalog IDs the ID-less ones (typically editors) are dropped too. Joining
// follows shelf convention: two names with "&", three with a serial "and",
// four or more collapse to "Various Authors".
func FormatAuthors(people catalog.People) string {
	records := people.Records()
	filtered := make([]catalog.Contributor, 0, len(records))
	for _, record := range records {
		if record.Name == "" || isTranslator(record.Name) {
			continue
		}
		filtered = append(filtered, record)
	}

	if len(filtered) > 1 {
		withID := make([]catalog.Contributor, 0, len(filtered))
		for _, record := range filtered {
			if record.ID != "" {
				withID = append(withID, record)
			}
		}
		if len(withID) > 0 && len(withID) < len(filtered) {
			filtered = withID
		}
	}

	switch len(filtered) {
	case 0:
		return "Unknown Author"
	case 1:
		return filtered[0].Name
	case 2:
		return filtered[0].Name + " & " + filtered[1].Name
	case 3:
		return filtered[0].Name + ", " + filtered[1].Name + " and " + filtered[2].Name
	default:
		return "Various Authors"
	}
}

// FormatNarrators renders a narrator credit: at most the first two names
// joined with "&". Empty input yields "".
func FormatNarrators(people catalog.People) string {
	records := people.Records()
	names := make([]string, 0, 2)
	for _, record := range records {
		if record.Name == "" {
			continue
		}
		names = append(names, record.Name)
		if len(names) == 2 {
			break
		}
	}
	return strings.Join(names, " & ")
}

// FormatSeries returns the name and volume of the item's primary series.
func FormatSeries(series []catalog.SeriesRef) (name, volume string) {
	for _, ref := range series {
		if strings.TrimSpace(ref.Name) == "" {
			continue
		}
		return strings.TrimSpace(ref.Name), strings.TrimSpace(ref.Sequence)
	}
	return "", ""
}

func isTranslator(name string) bool {
	lowered := strings.ToLower(name)
	for _, marker := range translatorMarkers {
		if strings.Contains(lowered, marker) {
			return true
		}
	}
	return false
}
