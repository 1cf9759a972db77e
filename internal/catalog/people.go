package catalog

import (
	"encoding/json"
	"strings"
)

// People carries contributor credits in one of two shapes: a flat display
// string ("Brandon Sanderson, Michael Kramer") or a structured record list.
// Exactly one of the variants is populated; the zero value means no credits.
type People struct {
	display string
	records []Contributor
}

// PeopleFromString constructs the flat-string variant.
func PeopleFromString(display string) People {
	return People{display: strings.TrimSpace(display)}
}

// PeopleFromRecords constructs the structured variant.
func PeopleFromRecords(records []Contributor) People {
	return People{records: records}
}

// IsZero reports whether no credits are present in either variant.
func (p People) IsZero() bool {
	return p.display == "" && len(p.records) == 0
}

// Records returns the structured variant, converting a flat string into
// single-name records split on commas when necessary.
func (p People) Records() []Contributor {
	if len(p.records) > 0 {
		return p.records
	}
	if p.display == "" {
		return nil
	}
	parts := strings.Split(p.display, ",")
	records := make([]Contributor, 0, len(parts))
	for _, part := range parts {
		name := strings.TrimSpace(part)
		if name == "" {
			continue
		}
		records = append(records, Contributor{Name: name})
	}
	return records
}

// Display returns the flat variant when present, otherwise a comma-joined
// rendering of the record names.
func (p People) Display() string {
	if p.display != "" {
		return p.display
	}
	names := make([]string, 0, len(p.records))
	for _, record := range p.records {
		if record.Name != "" {
			names = append(names, record.Name)
		}
	}
	return strings.Join(names, ", ")
}

// UnmarshalJSON accepts either a JSON string or an array of contributor
// records, matching the two shapes the content service emits.
func (p *People) UnmarshalJSON(data []byte) error {
	trimmed := strings.TrimSpace(string(data))
	if trimmed == "null" {
		*p = People{}
		return nil
	}
	if strings.HasPrefix(trimmed, "\"") {
		var display string
		if err := json.Unmarshal(data, &display); err != nil {
			return err
		}
		*p = PeopleFromString(display)
		return nil
	}
	var records []Contributor
	if err := json.Unmarshal(data, &records); err != nil {
		return err
	}
	*p = PeopleFromRecords(records)
	return nil
}

// MarshalJSON emits the structured variant when present, otherwise the flat
// string.
func (p People) MarshalJSON() ([]byte, error) {
	if len(p.records) > 0 {
		return json.Marshal(p.records)
	}
	return json.Marshal(p.display)
}
