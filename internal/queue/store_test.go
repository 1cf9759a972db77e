package queue_test

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"shelfward/internal/queue"
)

func openStore(t *testing.T) *queue.Store {
	t.Helper()
	store, err := queue.OpenPath(filepath.Join(t.TempDir(), "queue.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestEnqueueOpensBatch(t *testing.T) {
	store := openStore(t)
	ctx := context.Background()

	first, err := store.Enqueue(ctx, "B004V9OF4G", "Wizards First Rule", queue.Update{})
	if err != nil {
		t.Fatalf("enqueue: %v", err)
	}
	if first.State != queue.StatePending {
		t.Errorf("State = %s, want pending", first.State)
	}
	if first.BatchID == "" {
		t.Fatal("expected a batch id")
	}

	second, err := store.Enqueue(ctx, "B07B4HVJFV", "Dune", queue.Update{})
	if err != nil {
		t.Fatalf("enqueue second: %v", err)
	}
	if second.BatchID != first.BatchID {
		t.Errorf("second item joined batch %s, want %s", second.BatchID, first.BatchID)
	}
}

func TestEnqueueExistingItemResetsBookkeeping(t *testing.T) {
	store := openStore(t)
	ctx := context.Background()

	if _, err := store.Enqueue(ctx, "B004V9OF4G", "Wizards First Rule", queue.Update{}); err != nil {
		t.Fatal(err)
	}
	if err := store.Upsert(ctx, "B004V9OF4G", queue.Update{
		State:        queue.StatePtr(queue.StateError),
		ErrorMessage: queue.StringPtr("network down"),
		ErrorKind:    queue.StringPtr("transient"),
		Attempt:      queue.IntPtr(3),
	}); err != nil {
		t.Fatal(err)
	}

	item, err := store.Enqueue(ctx, "B004V9OF4G", "Wizards First Rule", queue.Update{})
	if err != nil {
		t.Fatalf("re-enqueue: %v", err)
	}
	if item.State != queue.StatePending {
		t.Errorf("State = %s, want pending", item.State)
	}
	if item.ErrorMessage != "" || item.ErrorKind != "" || item.Attempt != 0 {
		t.Errorf("bookkeeping not reset: %+v", item)
	}
}

func TestUpsertMergesFields(t *testing.T) {
	store := openStore(t)
	ctx := context.Background()

	if _, err := store.Enqueue(ctx, "B004V9OF4G", "Wizards First Rule", queue.Update{}); err != nil {
		t.Fatal(err)
	}

	if err := store.Upsert(ctx, "B004V9OF4G", queue.Update{
		State:    queue.StatePtr(queue.StateDownloading),
		FilePath: queue.StringPtr("/staging/B004V9OF4G.aax"),
	}); err != nil {
		t.Fatalf("upsert: %v", err)
	}

	item, err := store.Get(ctx, "B004V9OF4G")
	if err != nil {
		t.Fatal(err)
	}
	if item.State != queue.StateDownloading {
		t.Errorf("State = %s", item.State)
	}
	if item.FilePath != "/staging/B004V9OF4G.aax" {
		t.Errorf("FilePath = %q", item.FilePath)
	}
	if item.Title != "Wizards First Rule" {
		t.Errorf("untouched field changed: Title = %q", item.Title)
	}
}

func TestUpsertMissingItem(t *testing.T) {
	store := openStore(t)
	err := store.Upsert(context.Background(), "B000000000", queue.Update{
		State: queue.StatePtr(queue.StateError),
	})
	if !errors.Is(err, queue.ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}

func TestProgressAndPercent(t *testing.T) {
	store := openStore(t)
	ctx := context.Background()

	if _, err := store.Enqueue(ctx, "B004V9OF4G", "Wizards First Rule", queue.Update{}); err != nil {
		t.Fatal(err)
	}
	if err := store.Progress(ctx, "B004V9OF4G", 500, 2000, 125.5, 12); err != nil {
		t.Fatalf("progress: %v", err)
	}

	item, err := store.Get(ctx, "B004V9OF4G")
	if err != nil {
		t.Fatal(err)
	}
	if item.DownloadedBytes != 500 || item.TotalBytes != 2000 {
		t.Errorf("bytes = %d/%d", item.DownloadedBytes, item.TotalBytes)
	}
	if got := item.PercentComplete(); got != 25 {
		t.Errorf("PercentComplete = %v, want 25", got)
	}
}

func TestStatisticsDetectsBatchCompletion(t *testing.T) {
	store := openStore(t)
	ctx := context.Background()

	first, err := store.Enqueue(ctx, "B004V9OF4G", "Wizards First Rule", queue.Update{})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := store.Enqueue(ctx, "B07B4HVJFV", "Dune", queue.Update{}); err != nil {
		t.Fatal(err)
	}
	if err := store.SetExpectedItems(ctx, 2); err != nil {
		t.Fatal(err)
	}

	stats, err := store.Statistics(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if stats.Queued != 2 || stats.BatchComplete {
		t.Fatalf("early stats = %+v", stats)
	}

	if err := store.SetState(ctx, "B004V9OF4G", queue.StateConverted); err != nil {
		t.Fatal(err)
	}
	if err := store.SetState(ctx, "B07B4HVJFV", queue.StateError); err != nil {
		t.Fatal(err)
	}

	stats, err = store.Statistics(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if stats.Completed != 1 || stats.Failed != 1 {
		t.Fatalf("final stats = %+v", stats)
	}
	if !stats.BatchComplete {
		t.Fatal("expected batch completion to be detected")
	}

	// The next enqueue must open a fresh batch.
	next, err := store.Enqueue(ctx, "B0000000AA", "Project Hail Mary", queue.Update{})
	if err != nil {
		t.Fatal(err)
	}
	if next.BatchID == first.BatchID {
		t.Errorf("new item reused completed batch %s", next.BatchID)
	}
}

func TestStatisticsSumsActiveSpeed(t *testing.T) {
	store := openStore(t)
	ctx := context.Background()

	for _, id := range []string{"B004V9OF4G", "B07B4HVJFV"} {
		if _, err := store.Enqueue(ctx, id, id, queue.Update{}); err != nil {
			t.Fatal(err)
		}
		if err := store.SetState(ctx, id, queue.StateDownloading); err != nil {
			t.Fatal(err)
		}
	}
	if err := store.Progress(ctx, "B004V9OF4G", 10, 100, 100, 0); err != nil {
		t.Fatal(err)
	}
	if err := store.Progress(ctx, "B07B4HVJFV", 10, 100, 50, 0); err != nil {
		t.Fatal(err)
	}

	stats, err := store.Statistics(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if stats.Active != 2 {
		t.Errorf("Active = %d", stats.Active)
	}
	if stats.SpeedTotal != 150 {
		t.Errorf("SpeedTotal = %v, want 150", stats.SpeedTotal)
	}
}

func TestPruneSparesCurrentBatch(t *testing.T) {
	store := openStore(t)
	ctx := context.Background()

	// Old batch: converted item, batch flipped complete by Statistics.
	if _, err := store.Enqueue(ctx, "B004V9OF4G", "Old Book", queue.Update{}); err != nil {
		t.Fatal(err)
	}
	if err := store.SetState(ctx, "B004V9OF4G", queue.StateConverted); err != nil {
		t.Fatal(err)
	}
	if _, err := store.Statistics(ctx); err != nil {
		t.Fatal(err)
	}

	// New batch with a terminal item that must survive.
	if _, err := store.Enqueue(ctx, "B07B4HVJFV", "Current Book", queue.Update{}); err != nil {
		t.Fatal(err)
	}
	if err := store.SetState(ctx, "B07B4HVJFV", queue.StateError); err != nil {
		t.Fatal(err)
	}

	removed, err := store.Prune(ctx, -time.Minute)
	if err != nil {
		t.Fatalf("prune: %v", err)
	}
	if removed != 1 {
		t.Errorf("removed = %d, want 1", removed)
	}
	if _, err := store.Get(ctx, "B004V9OF4G"); !errors.Is(err, queue.ErrNotFound) {
		t.Error("old item should be pruned")
	}
	if _, err := store.Get(ctx, "B07B4HVJFV"); err != nil {
		t.Errorf("current-batch item should survive: %v", err)
	}
}

func TestListFiltersByState(t *testing.T) {
	store := openStore(t)
	ctx := context.Background()

	if _, err := store.Enqueue(ctx, "B004V9OF4G", "A", queue.Update{}); err != nil {
		t.Fatal(err)
	}
	if _, err := store.Enqueue(ctx, "B07B4HVJFV", "B", queue.Update{}); err != nil {
		t.Fatal(err)
	}
	if err := store.SetState(ctx, "B07B4HVJFV", queue.StateError); err != nil {
		t.Fatal(err)
	}

	failed, err := store.List(ctx, queue.StateError)
	if err != nil {
		t.Fatal(err)
	}
	if len(failed) != 1 || failed[0].ID != "B07B4HVJFV" {
		t.Errorf("List(error) = %+v", failed)
	}

	all, err := store.List(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(all) != 2 {
		t.Errorf("List() returned %d items", len(all))
	}
}

func TestConcurrentMutationsSurviveContention(t *testing.T) {
	store := openStore(t)
	ctx := context.Background()

	ids := []string{
		"B00000000A", "B00000000B", "B00000000C", "B00000000D",
		"B00000000E", "B00000000F", "B00000000G", "B00000000H",
	}

	var wg sync.WaitGroup
	errs := make([]error, len(ids))
	for i, id := range ids {
		wg.Add(1)
		go func(i int, id string) {
			defer wg.Done()
			if _, err := store.Enqueue(ctx, id, "Book "+id, queue.Update{}); err != nil {
				errs[i] = err
				return
			}
			for _, state := range []queue.State{queue.StateDownloading, queue.StateConverted} {
				if err := store.SetState(ctx, id, state); err != nil {
					errs[i] = err
					return
				}
			}
		}(i, id)
	}
	wg.Wait()

	for i, err := range errs {
		if err != nil {
			t.Errorf("worker %d: %v", i, err)
		}
	}

	stats, err := store.Statistics(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if stats.Completed != len(ids) {
		t.Errorf("Completed = %d, want %d", stats.Completed, len(ids))
	}
}

func TestParseState(t *testing.T) {
	if state, ok := queue.ParseState(" Downloading "); !ok || state != queue.StateDownloading {
		t.Errorf("ParseState = (%v, %v)", state, ok)
	}
	if _, ok := queue.ParseState("nonsense"); ok {
		t.Error("expected unknown state to be rejected")
	}
	if !queue.StateConverted.IsTerminal() || !queue.StateError.IsTerminal() {
		t.Error("terminal states misclassified")
	}
	if !queue.StateRetrying.IsActive() || queue.StatePending.IsActive() {
		t.Error("active states misclassified")
	}
}
