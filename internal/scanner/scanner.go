// Package scanner rebuilds ledger state from files on disk and compares a
// remote catalog listing against what is already shelved.
package scanner

import (
	"context"
	"errors"
	"io/fs"
	"log/slog"
	"path/filepath"
	"strings"

	"shelfward/internal/catalog"
	"shelfward/internal/library"
	"shelfward/internal/logging"
	"shelfward/internal/pathing"
	"shelfward/internal/tags"
	"shelfward/internal/textutil"
)

// audioExtensions are the containers the sweep considers.
var audioExtensions = map[string]struct{}{
	".m4b": {},
	".m4a": {},
	".mp3": {},
}

// Stats summarizes one re-sync sweep.
type Stats struct {
	Scanned   int
	Recovered int
	Added     int
	Updated   int
	Errors    int
}

// ScannedBook is one shelved file with whatever identity could be read back.
type ScannedBook struct {
	ID     string
	Path   string
	Title  string
	Author string
}

// Scanner walks library roots and reconciles the ledger with disk.
type Scanner struct {
	ledger *library.Ledger
	tags   tags.Store
	logger *slog.Logger
}

// New builds a scanner over the given ledger and tag store.
func New(ledger *library.Ledger, tagStore tags.Store, logger *slog.Logger) *Scanner {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Scanner{
		ledger: ledger,
		tags:   tagStore,
		logger: logging.NewComponentLogger(logger, "scanner"),
	}
}

// Sync walks root for audiobook files and upserts ledger entries keyed by
// the identifier recovered from each file's tags. Files without a
// recoverable identifier count as scan errors but never abort the sweep.
func (s *Scanner) Sync(ctx context.Context, root string) (Stats, error) {
	var stats Stats
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			stats.Errors++
			s.logger.Warn("walk error", logging.String("path", path), logging.Error(err))
			if d != nil && d.IsDir() {
				return fs.SkipDir
			}
			return nil
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		if d.IsDir() {
			return nil
		}
		if _, ok := audioExtensions[strings.ToLower(filepath.Ext(path))]; !ok {
			return nil
		}

		stats.Scanned++
		id, err := s.tags.ReadItemID(path)
		if err != nil {
			stats.Errors++
			s.logger.Debug("no identifier recovered", logging.String("path", path), logging.Error(err))
			return nil
		}
		stats.Recovered++

		entry, err := s.ledger.Get(id)
		switch {
		case err == nil:
			if entry.Path == path {
				return nil
			}
			if err := s.ledger.Put(id, entry.Title, path, entry.Account); err != nil {
				return err
			}
			stats.Updated++
		case errors.Is(err, library.ErrNotFound):
			title := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
			if err := s.ledger.Put(id, title, path, ""); err != nil {
				return err
			}
			stats.Added++
		default:
			return err
		}
		return nil
	})
	return stats, err
}

// LocalBooks projects current ledger entries into ScannedBooks for Compare.
func (s *Scanner) LocalBooks() ([]ScannedBook, error) {
	entries, err := s.ledger.All()
	if err != nil {
		return nil, err
	}
	books := make([]ScannedBook, 0, len(entries))
	for _, entry := range entries {
		books = append(books, ScannedBook{ID: entry.ID, Path: entry.Path, Title: entry.Title})
	}
	return books, nil
}

// Comparison buckets a remote catalog listing against the shelved library.
// Available items are shelved already; Missing items exist remotely but not
// locally; LocalOnly files have no remote counterpart.
type Comparison struct {
	Missing   []catalog.Item
	Available []catalog.Item
	LocalOnly []ScannedBook
}

// fuzzy match floors for the fallback pass.
const (
	titleMatchThreshold  = 0.8
	authorMatchThreshold = 0.6
)

// Compare cross-matches remote items against local books: an exact
// normalized title+author lookup first, then a fuzzy sweep for retitled
// editions. A missing author on either side waives the author check.
func Compare(remote []catalog.Item, local []ScannedBook) Comparison {
	type localKey struct {
		title  string
		author string
	}
	exact := make(map[localKey]int, len(local))
	normLocal := make([]struct{ title, author string }, len(local))
	for i, book := range local {
		normLocal[i].title = textutil.Normalize(book.Title)
		normLocal[i].author = textutil.Normalize(book.Author)
		exact[localKey{normLocal[i].title, normLocal[i].author}] = i
	}

	matched := make([]bool, len(local))
	var cmp Comparison
	for _, item := range remote {
		title := textutil.Normalize(item.Title)
		author := textutil.Normalize(pathing.FormatAuthors(item.Authors))

		if idx, ok := exact[localKey{title, author}]; ok {
			matched[idx] = true
			cmp.Available = append(cmp.Available, item)
			continue
		}

		found := -1
		for i := range local {
			if matched[i] {
				continue
			}
			if textutil.Similarity(title, normLocal[i].title) < titleMatchThreshold {
				continue
			}
			if author != "" && normLocal[i].author != "" &&
				textutil.Similarity(author, normLocal[i].author) < authorMatchThreshold {
				continue
			}
			found = i
			break
		}
		if found >= 0 {
			matched[found] = true
			cmp.Available = append(cmp.Available, item)
		} else {
			cmp.Missing = append(cmp.Missing, item)
		}
	}

	for i, book := range local {
		if !matched[i] {
			cmp.LocalOnly = append(cmp.LocalOnly, book)
		}
	}
	return cmp
}
