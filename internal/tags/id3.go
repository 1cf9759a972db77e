package tags

import (
	"fmt"
	"os"

	"github.com/bogem/id3v2"

	"shelfward/internal/services"
)

// ID3Store reads and writes ID3v2 frames on MP3 containers.
type ID3Store struct{}

// NewID3Store returns a Store backed by ID3v2 frames.
func NewID3Store() *ID3Store {
	return &ID3Store{}
}

// ReadItemID scans the file's comment frames for an identifier stamp.
func (s *ID3Store) ReadItemID(path string) (string, error) {
	tag, err := id3v2.Open(path, id3v2.Options{Parse: true})
	if err != nil {
		if os.IsNotExist(err) {
			return "", services.Wrap(services.ErrNotFound, "tags", "read_item_id", fmt.Sprintf("open %s", path), err)
		}
		return "", services.Wrap(services.ErrExternalTool, "tags", "read_item_id", fmt.Sprintf("parse %s", path), err)
	}
	defer tag.Close()

	for _, frame := range tag.GetFrames(tag.CommonID("Comments")) {
		comment, ok := frame.(id3v2.CommentFrame)
		if !ok {
			continue
		}
		if id, found := ExtractItemID(comment.Text); found {
			return id, nil
		}
	}
	return "", ErrNoItemID
}

// Write replaces the file's text frames with the supplied tag set.
func (s *ID3Store) Write(path string, t Tags) error {
	tag, err := id3v2.Open(path, id3v2.Options{Parse: true})
	if err != nil {
		return services.Wrap(services.ErrExternalTool, "tags", "write", fmt.Sprintf("open %s", path), err)
	}
	defer tag.Close()

	tag.SetTitle(t.Title)
	tag.SetArtist(t.Authors)
	if album := t.Album(); album != "" {
		tag.SetAlbum(album)
	}
	if t.Narrators != "" {
		// Composer carries the narrator credit, mirroring common
		// audiobook tagging practice.
		tag.AddTextFrame("TCOM", id3v2.EncodingUTF8, t.Narrators)
	}
	if t.Publisher != "" {
		tag.AddTextFrame("TPUB", id3v2.EncodingUTF8, t.Publisher)
	}
	if t.Year != "" {
		tag.AddTextFrame("TYER", id3v2.EncodingUTF8, t.Year)
	}
	if t.ReleaseDate != "" {
		tag.AddTextFrame("TDRC", id3v2.EncodingUTF8, t.ReleaseDate)
	}
	if t.Subtitle != "" {
		tag.AddTextFrame("TIT3", id3v2.EncodingUTF8, t.Subtitle)
	}
	if t.Language != "" {
		tag.AddTextFrame("TLAN", id3v2.EncodingUTF8, t.Language)
	}
	if desc := t.ClampedDescription(); desc != "" {
		tag.AddUnsynchronisedLyricsFrame(id3v2.UnsynchronisedLyricsFrame{
			Encoding:          id3v2.EncodingUTF8,
			Language:          "eng",
			ContentDescriptor: "description",
			Lyrics:            desc,
		})
	}
	tag.DeleteFrames(tag.CommonID("Comments"))
	tag.AddCommentFrame(id3v2.CommentFrame{
		Encoding:    id3v2.EncodingUTF8,
		Language:    "eng",
		Description: "",
		Text:        t.Comment(),
	})

	if err := tag.Save(); err != nil {
		return services.Wrap(services.ErrExternalTool, "tags", "write", fmt.Sprintf("save %s", path), err)
	}
	return nil
}
