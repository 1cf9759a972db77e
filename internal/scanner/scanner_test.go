package scanner_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"shelfward/internal/catalog"
	"shelfward/internal/library"
	"shelfward/internal/scanner"
	"shelfward/internal/tags"
	"shelfward/internal/testsupport"
)

func openLedger(t *testing.T) *library.Ledger {
	t.Helper()
	ledger, err := library.Open(filepath.Join(t.TempDir(), "ledger.db"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { ledger.Close() })
	return ledger
}

// writeBook creates an audio file plus a tag sidecar carrying id.
func writeBook(t *testing.T, dir, name, id string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	testsupport.WriteAudioFile(t, path, 64)
	if id != "" {
		if err := tags.NewStore().Write(path, tags.Tags{ItemID: id, Title: name}); err != nil {
			t.Fatal(err)
		}
	}
	return path
}

func TestSyncAddsRecoversAndCounts(t *testing.T) {
	root := t.TempDir()
	ledger := openLedger(t)

	writeBook(t, root, "Terry Goodkind/Wizard's First Rule.m4b", "B004TR2AMC")
	writeBook(t, root, "Terry Goodkind/Stone of Tears.m4b", "B00AAAAAA2")
	writeBook(t, root, "Unknown/untagged.m4b", "")
	// Non-audio files are ignored entirely.
	if err := os.WriteFile(filepath.Join(root, "notes.txt"), []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}

	sc := scanner.New(ledger, tags.NewStore(), nil)
	stats, err := sc.Sync(context.Background(), root)
	if err != nil {
		t.Fatalf("sync: %v", err)
	}

	if stats.Scanned != 3 {
		t.Fatalf("scanned = %d", stats.Scanned)
	}
	if stats.Recovered != 2 || stats.Added != 2 {
		t.Fatalf("stats = %+v", stats)
	}
	if stats.Errors != 1 {
		t.Fatalf("errors = %d", stats.Errors)
	}

	entry, err := ledger.Get("B004TR2AMC")
	if err != nil {
		t.Fatalf("ledger entry: %v", err)
	}
	if filepath.Base(entry.Path) != "Wizard's First Rule.m4b" {
		t.Fatalf("entry path = %q", entry.Path)
	}
	if entry.Title != "Wizard's First Rule" {
		t.Fatalf("entry title = %q", entry.Title)
	}
}

func TestSyncUpdatesMovedFiles(t *testing.T) {
	root := t.TempDir()
	ledger := openLedger(t)
	path := writeBook(t, root, "moved/Wizard's First Rule.m4b", "B004TR2AMC")
	if err := ledger.Put("B004TR2AMC", "Wizard's First Rule", filepath.Join(root, "old-location.m4b"), "main"); err != nil {
		t.Fatal(err)
	}

	stats, err := scanner.New(ledger, tags.NewStore(), nil).Sync(context.Background(), root)
	if err != nil {
		t.Fatalf("sync: %v", err)
	}
	if stats.Updated != 1 || stats.Added != 0 {
		t.Fatalf("stats = %+v", stats)
	}

	entry, err := ledger.Get("B004TR2AMC")
	if err != nil {
		t.Fatal(err)
	}
	if entry.Path != path {
		t.Fatalf("path = %q, want %q", entry.Path, path)
	}
	if entry.Account != "main" {
		t.Fatalf("account lost on update: %q", entry.Account)
	}
}

func TestSyncRepeatIsIdempotent(t *testing.T) {
	root := t.TempDir()
	ledger := openLedger(t)
	writeBook(t, root, "book.m4b", "B004TR2AMC")
	sc := scanner.New(ledger, tags.NewStore(), nil)

	if _, err := sc.Sync(context.Background(), root); err != nil {
		t.Fatal(err)
	}
	stats, err := sc.Sync(context.Background(), root)
	if err != nil {
		t.Fatal(err)
	}
	if stats.Added != 0 || stats.Updated != 0 {
		t.Fatalf("second sweep changed state: %+v", stats)
	}
}

func remoteItem(id, title, author string) catalog.Item {
	return catalog.Item{ID: id, Title: title, Authors: catalog.PeopleFromString(author)}
}

func TestCompareBuckets(t *testing.T) {
	remote := []catalog.Item{
		remoteItem("B004TR2AMC", "Wizard's First Rule", "Terry Goodkind"),
		remoteItem("B00AAAAAA2", "Stone of Tears", "Terry Goodkind"),
		remoteItem("B00AAAAAA3", "Project Hail Mary", "Andy Weir"),
	}
	local := []scanner.ScannedBook{
		{ID: "B004TR2AMC", Title: "Wizard's First Rule", Author: "Terry Goodkind"},
		{ID: "", Title: "The Martian", Author: "Andy Weir"},
	}

	cmp := scanner.Compare(remote, local)
	if len(cmp.Available) != 1 || cmp.Available[0].ID != "B004TR2AMC" {
		t.Fatalf("available = %+v", cmp.Available)
	}
	if len(cmp.Missing) != 2 {
		t.Fatalf("missing = %+v", cmp.Missing)
	}
	if len(cmp.LocalOnly) != 1 || cmp.LocalOnly[0].Title != "The Martian" {
		t.Fatalf("local only = %+v", cmp.LocalOnly)
	}
}

func TestCompareFuzzyFallback(t *testing.T) {
	remote := []catalog.Item{
		remoteItem("B004TR2AMC", "Wizard's First Rule", "Terry Goodkind"),
	}
	local := []scanner.ScannedBook{
		{Title: "Wizard's First Rule (Unabridged)", Author: "Terry Goodkind"},
	}

	cmp := scanner.Compare(remote, local)
	if len(cmp.Available) != 1 {
		t.Fatalf("fuzzy edition not matched: %+v", cmp)
	}
	if len(cmp.LocalOnly) != 0 {
		t.Fatalf("local only = %+v", cmp.LocalOnly)
	}
}

func TestCompareWaivesMissingAuthor(t *testing.T) {
	remote := []catalog.Item{
		remoteItem("B004TR2AMC", "Wizard's First Rule", "Terry Goodkind"),
	}
	local := []scanner.ScannedBook{
		{Title: "Wizard's First Rule"},
	}

	cmp := scanner.Compare(remote, local)
	if len(cmp.Available) != 1 {
		t.Fatalf("author-less local book not matched: %+v", cmp)
	}
}

func TestCompareMismatchedAuthorBlocksMatch(t *testing.T) {
	remote := []catalog.Item{
		remoteItem("B004TR2AMC", "The Stand", "Stephen King"),
	}
	local := []scanner.ScannedBook{
		{Title: "The Stand", Author: "Completely Different Person"},
	}

	cmp := scanner.Compare(remote, local)
	if len(cmp.Missing) != 1 {
		t.Fatalf("same title different author should not match: %+v", cmp)
	}
}
