package library_test

import (
	"errors"
	"path/filepath"
	"testing"

	"shelfward/internal/library"
)

func openLedger(t *testing.T) *library.Ledger {
	t.Helper()
	ledger, err := library.Open(filepath.Join(t.TempDir(), "library.db"))
	if err != nil {
		t.Fatalf("open ledger: %v", err)
	}
	t.Cleanup(func() { _ = ledger.Close() })
	return ledger
}

func TestPutGetRoundTrip(t *testing.T) {
	ledger := openLedger(t)

	if err := ledger.Put("B004V9OF4G", "Wizards First Rule", "/books/a.m4b", "main"); err != nil {
		t.Fatalf("put: %v", err)
	}

	entry, err := ledger.Get("B004V9OF4G")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if entry.Title != "Wizards First Rule" || entry.Path != "/books/a.m4b" {
		t.Errorf("entry = %+v", entry)
	}
	if entry.State != library.StateConverted {
		t.Errorf("State = %q", entry.State)
	}
	if entry.Timestamp.IsZero() {
		t.Error("timestamp not stamped")
	}
}

func TestGetMissing(t *testing.T) {
	ledger := openLedger(t)
	if _, err := ledger.Get("B000000000"); !errors.Is(err, library.ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}

func TestPutOverwrites(t *testing.T) {
	ledger := openLedger(t)

	if err := ledger.Put("B004V9OF4G", "Old Title", "/books/old.m4b", ""); err != nil {
		t.Fatal(err)
	}
	if err := ledger.Put("B004V9OF4G", "New Title", "/books/new.m4b", ""); err != nil {
		t.Fatal(err)
	}

	entry, err := ledger.Get("B004V9OF4G")
	if err != nil {
		t.Fatal(err)
	}
	if entry.Path != "/books/new.m4b" {
		t.Errorf("Path = %q, want overwrite", entry.Path)
	}

	count, err := ledger.Len()
	if err != nil {
		t.Fatal(err)
	}
	if count != 1 {
		t.Errorf("Len = %d, want 1", count)
	}
}

func TestRemoveAndAll(t *testing.T) {
	ledger := openLedger(t)

	for _, id := range []string{"B004V9OF4G", "B07B4HVJFV"} {
		if err := ledger.Put(id, id, "/books/"+id+".m4b", ""); err != nil {
			t.Fatal(err)
		}
	}
	if err := ledger.Remove("B004V9OF4G"); err != nil {
		t.Fatalf("remove: %v", err)
	}
	if err := ledger.Remove("B004V9OF4G"); err != nil {
		t.Fatalf("double remove should be a no-op: %v", err)
	}

	entries, err := ledger.All()
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 || entries[0].ID != "B07B4HVJFV" {
		t.Errorf("All = %+v", entries)
	}
}
