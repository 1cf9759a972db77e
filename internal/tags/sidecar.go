package tags

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"shelfward/internal/services"
)

// sidecarSuffix is appended to the audio file name, keeping the sidecar
// adjacent so library moves carry it along.
const sidecarSuffix = ".tags.json"

// SidecarStore persists tags in a JSON file next to the audio file. It
// serves containers whose atom layout has no writer here, such as M4B.
type SidecarStore struct{}

// NewSidecarStore returns a Store backed by JSON sidecar files.
func NewSidecarStore() *SidecarStore {
	return &SidecarStore{}
}

// SidecarPath returns the sidecar location for an audio file.
func SidecarPath(path string) string {
	return path + sidecarSuffix
}

type sidecarDocument struct {
	ItemID         string `json:"item_id"`
	Title          string `json:"title"`
	Subtitle       string `json:"subtitle,omitempty"`
	Authors        string `json:"authors,omitempty"`
	Narrators      string `json:"narrators,omitempty"`
	Publisher      string `json:"publisher,omitempty"`
	ReleaseDate    string `json:"release_date,omitempty"`
	Year           string `json:"year,omitempty"`
	Description    string `json:"description,omitempty"`
	SeriesName     string `json:"series_name,omitempty"`
	SeriesSequence string `json:"series_sequence,omitempty"`
	Language       string `json:"language,omitempty"`
	ISBN           string `json:"isbn,omitempty"`
	Comment        string `json:"comment"`
}

// ReadItemID loads the sidecar and recovers the identifier. A missing or
// unreadable sidecar yields ErrNoItemID so scans can keep walking.
func (s *SidecarStore) ReadItemID(path string) (string, error) {
	data, err := os.ReadFile(SidecarPath(path))
	if err != nil {
		return "", ErrNoItemID
	}
	var doc sidecarDocument
	if err := json.Unmarshal(data, &doc); err != nil {
		return "", ErrNoItemID
	}
	if doc.ItemID != "" {
		return doc.ItemID, nil
	}
	if id, found := ExtractItemID(doc.Comment); found {
		return id, nil
	}
	return "", ErrNoItemID
}

// Write serializes the tag set into the sidecar file.
func (s *SidecarStore) Write(path string, t Tags) error {
	doc := sidecarDocument{
		ItemID:         t.ItemID,
		Title:          t.Title,
		Subtitle:       t.Subtitle,
		Authors:        t.Authors,
		Narrators:      t.Narrators,
		Publisher:      t.Publisher,
		ReleaseDate:    t.ReleaseDate,
		Year:           t.Year,
		Description:    t.ClampedDescription(),
		SeriesName:     t.SeriesName,
		SeriesSequence: t.SeriesSequence,
		Language:       t.Language,
		ISBN:           t.ISBN,
		Comment:        t.Comment(),
	}
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return services.Wrap(services.ErrValidation, "tags", "write", "encode sidecar", err)
	}
	data = append(data, '\n')
	if err := os.WriteFile(SidecarPath(path), data, 0o644); err != nil {
		return services.Wrap(services.ErrExternalTool, "tags", "write", fmt.Sprintf("write sidecar for %s", path), err)
	}
	return nil
}

// RoutingStore dispatches by container extension: MP3 files get ID3v2
// frames, everything else gets a JSON sidecar.
type RoutingStore struct {
	id3     Store
	sidecar Store
}

// NewStore returns the default routing store.
func NewStore() *RoutingStore {
	return &RoutingStore{id3: NewID3Store(), sidecar: NewSidecarStore()}
}

func (s *RoutingStore) forPath(path string) Store {
	if strings.EqualFold(filepath.Ext(path), ".mp3") {
		return s.id3
	}
	return s.sidecar
}

// ReadItemID dispatches to the container-appropriate store.
func (s *RoutingStore) ReadItemID(path string) (string, error) {
	return s.forPath(path).ReadItemID(path)
}

// Write dispatches to the container-appropriate store.
func (s *RoutingStore) Write(path string, t Tags) error {
	return s.forPath(path).Write(path, t)
}
