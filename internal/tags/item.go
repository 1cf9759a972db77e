package tags

import (
	"shelfward/internal/catalog"
	"shelfward/internal/pathing"
)

// FromItem projects a catalog record into the embeddable tag set.
func FromItem(item *catalog.Item) Tags {
	if item == nil {
		return Tags{}
	}
	seriesName, seriesVolume := pathing.FormatSeries(item.Series)
	return Tags{
		ItemID:         item.ID,
		Title:          item.Title,
		Subtitle:       item.Subtitle,
		Authors:        pathing.FormatAuthors(item.Authors),
		Narrators:      pathing.FormatNarrators(item.Narrators),
		Publisher:      item.Publisher,
		ReleaseDate:    item.ReleaseDate,
		Year:           item.ReleaseYear(),
		Description:    item.Description,
		SeriesName:     seriesName,
		SeriesSequence: seriesVolume,
		Language:       item.Language,
		ISBN:           item.ISBN,
	}
}
