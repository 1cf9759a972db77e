// Package dedup detects whether a requested book already exists in the
// target library by fuzzy-matching ledger entries.
package dedup

import (
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"shelfward/internal/library"
	"shelfward/internal/logging"
	"shelfward/internal/textutil"
)

// Match describes an existing library entry considered a duplicate.
type Match struct {
	ID    string
	Path  string
	Score float64
}

// Detector scans the ledger for titles similar to a download request.
type Detector struct {
	ledger *library.Ledger
	logger *slog.Logger
}

// NewDetector constructs a detector over the given ledger.
func NewDetector(ledger *library.Ledger, logger *slog.Logger) *Detector {
	return &Detector{
		ledger: ledger,
		logger: logging.NewComponentLogger(logger, "dedup"),
	}
}

// Find returns the first ledger entry whose title similarity reaches
// threshold, restricted to entries whose file still exists under
// libraryRoot. Entries filed in other roots never count as duplicates, so
// the same book can be downloaded into separate libraries. Returns nil when
// no duplicate is found.
//
// Author similarity is computed for the log line only; titles decide.
func (d *Detector) Find(title, authors, libraryRoot string, threshold float64) (*Match, error) {
	if d == nil || d.ledger == nil {
		return nil, nil
	}
	entries, err := d.ledger.All()
	if err != nil {
		return nil, err
	}

	wantTitle := textutil.Normalize(title)
	wantAuthors := textutil.Normalize(authors)
	root := filepath.Clean(libraryRoot)

	for _, entry := range entries {
		if entry.State != library.StateConverted || entry.Path == "" {
			continue
		}
		if _, err := os.Stat(entry.Path); err != nil {
			// Stale entry; the pipeline pre-flight removes it.
			continue
		}
		if !underRoot(entry.Path, root) {
			continue
		}

		score := textutil.Similarity(wantTitle, textutil.Normalize(entry.Title))
		if score < threshold {
			continue
		}

		authorScore := 0.0
		if wantAuthors != "" {
			authorScore = textutil.Similarity(wantAuthors, textutil.Normalize(filepath.Base(filepath.Dir(entry.Path))))
		}
		d.logger.Info("duplicate found",
			logging.String("item_id", entry.ID),
			logging.String("path", entry.Path),
			logging.Float64("title_score", score),
			logging.Float64("author_score", authorScore),
		)
		return &Match{ID: entry.ID, Path: entry.Path, Score: score}, nil
	}
	return nil, nil
}

func underRoot(path, root string) bool {
	if root == "" || root == "." {
		return true
	}
	cleaned := filepath.Clean(path)
	return cleaned == root || strings.HasPrefix(cleaned, root+string(filepath.Separator))
}
