package testsupport

import (
	"path/filepath"
	"testing"

	"shelfward/internal/config"
	"shelfward/internal/library"
	"shelfward/internal/queue"
)

// MustOpenStore opens a queue.Store for tests and registers cleanup.
func MustOpenStore(t testing.TB, cfg *config.Config) *queue.Store {
	t.Helper()

	store, err := queue.Open(cfg)
	if err != nil {
		t.Fatalf("queue.Open: %v", err)
	}
	t.Cleanup(func() {
		store.Close()
	})
	return store
}

// MustOpenLedger opens a library ledger in the config's log dir and
// registers cleanup.
func MustOpenLedger(t testing.TB, cfg *config.Config) *library.Ledger {
	t.Helper()

	ledger, err := library.Open(filepath.Join(cfg.Paths.LogDir, "library.db"))
	if err != nil {
		t.Fatalf("library.Open: %v", err)
	}
	t.Cleanup(func() {
		ledger.Close()
	})
	return ledger
}
