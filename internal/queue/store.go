package queue

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"shelfward/internal/config"
)

// ErrNotFound indicates the requested work item does not exist.
var ErrNotFound = errors.New("queue: item not found")

// Store manages queue persistence backed by SQLite.
type Store struct {
	db   *sql.DB
	path string
}

const (
	sqliteBusyCode          = 5
	busyRetryAttempts       = 5
	busyRetryInitialBackoff = 10 * time.Millisecond
	busyRetryMaxBackoff     = 200 * time.Millisecond
)

// busy_timeout only covers the pooled connection the pragma ran on, so
// concurrent workers can still surface SQLITE_BUSY from sibling connections.
// Mutations retry those with a short backoff.
func isSQLiteBusy(err error) bool {
	if err == nil {
		return false
	}
	var coder interface{ Code() int }
	if errors.As(err, &coder) && coder.Code() == sqliteBusyCode {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "SQLITE_BUSY") || strings.Contains(msg, "database is locked")
}

func retryOnBusy(ctx context.Context, op func() error) error {
	delay := busyRetryInitialBackoff
	var lastErr error
	for attempt := 0; attempt < busyRetryAttempts; attempt++ {
		lastErr = op()
		if lastErr == nil {
			return nil
		}
		if !isSQLiteBusy(lastErr) || attempt == busyRetryAttempts-1 {
			break
		}
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return ctx.Err()
		}
		if next := delay * 2; next <= busyRetryMaxBackoff {
			delay = next
		}
	}
	return lastErr
}

func (s *Store) execWithRetry(ctx context.Context, query string, args ...any) (sql.Result, error) {
	var (
		res     sql.Result
		execErr error
	)
	if err := retryOnBusy(ctx, func() error {
		res, execErr = s.db.ExecContext(ctx, query, args...)
		return execErr
	}); err != nil {
		return nil, err
	}
	return res, nil
}

func (s *Store) execWithoutResultRetry(ctx context.Context, query string, args ...any) error {
	return retryOnBusy(ctx, func() error {
		_, err := s.db.ExecContext(ctx, query, args...)
		return err
	})
}

// Open initializes or connects to the queue database.
func Open(cfg *config.Config) (*Store, error) {
	if err := cfg.EnsureDirectories(); err != nil {
		return nil, fmt.Errorf("ensure directories: %w", err)
	}

	dbPath := filepath.Join(cfg.Paths.LogDir, "queue.db")
	return OpenPath(dbPath)
}

// OpenPath opens the queue database at an explicit location.
func OpenPath(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA foreign_keys = ON",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, execErr := db.Exec(pragma); execErr != nil {
			_ = db.Close()
			return nil, fmt.Errorf("apply pragma %q: %w", pragma, execErr)
		}
	}

	store := &Store{db: db, path: dbPath}
	if err := store.initSchema(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}

	return store, nil
}

// Path returns the database file location.
func (s *Store) Path() string {
	return s.path
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

const itemColumns = `item_id, title, state, batch_id, created_at, updated_at,
    downloaded_bytes, total_bytes, speed, eta_seconds,
    error_message, error_kind, attempt, max_attempts, file_path, account`

// Get fetches a work item by identifier. Returns ErrNotFound when absent.
func (s *Store) Get(ctx context.Context, id string) (*WorkItem, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+itemColumns+` FROM work_items WHERE item_id = ?`, id)
	item, err := scanItem(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get item %s: %w", id, err)
	}
	return item, nil
}

// Enqueue registers an item under the current batch, opening a new batch when
// none is open. Re-enqueueing an existing item moves it into the current
// batch and resets its error and retry bookkeeping.
func (s *Store) Enqueue(ctx context.Context, id, title string, upd Update) (*WorkItem, error) {
	if err := retryOnBusy(ctx, func() error {
		return s.enqueueTx(ctx, id, title, upd)
	}); err != nil {
		return nil, err
	}
	return s.Get(ctx, id)
}

func (s *Store) enqueueTx(ctx context.Context, id, title string, upd Update) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin enqueue tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	batchID, err := currentBatchTx(ctx, tx)
	if err != nil {
		return err
	}
	if batchID == "" {
		batchID = newBatchID()
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO batches (batch_id, started_at) VALUES (?, ?)`,
			batchID, timestamp(time.Now()),
		); err != nil {
			return fmt.Errorf("open batch: %w", err)
		}
	}

	now := timestamp(time.Now())
	state := StatePending
	if upd.State != nil {
		state = *upd.State
	}
	account := ""
	if upd.Account != nil {
		account = *upd.Account
	}
	maxAttempts := 0
	if upd.MaxAttempts != nil {
		maxAttempts = *upd.MaxAttempts
	}

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO work_items (item_id, title, state, batch_id, created_at, updated_at, max_attempts, account)
         VALUES (?, ?, ?, ?, ?, ?, ?, ?)
         ON CONFLICT(item_id) DO UPDATE SET
             title = excluded.title,
             state = excluded.state,
             batch_id = excluded.batch_id,
             updated_at = excluded.updated_at,
             max_attempts = excluded.max_attempts,
             account = excluded.account,
             error_message = '',
             error_kind = '',
             attempt = 0,
             downloaded_bytes = 0,
             total_bytes = 0,
             speed = 0,
             eta_seconds = 0`,
		id, title, state, batchID, now, now, maxAttempts, account,
	); err != nil {
		return fmt.Errorf("enqueue item %s: %w", id, err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit enqueue: %w", err)
	}
	return nil
}

// Upsert applies the non-nil fields of upd to an existing item and stamps
// updated_at in the same committed transaction.
func (s *Store) Upsert(ctx context.Context, id string, upd Update) error {
	assignments := make([]string, 0, 12)
	args := make([]any, 0, 13)

	appendSet := func(column string, value any) {
		assignments = append(assignments, column+" = ?")
		args = append(args, value)
	}

	if upd.Title != nil {
		appendSet("title", *upd.Title)
	}
	if upd.State != nil {
		appendSet("state", string(*upd.State))
	}
	if upd.DownloadedBytes != nil {
		appendSet("downloaded_bytes", *upd.DownloadedBytes)
	}
	if upd.TotalBytes != nil {
		appendSet("total_bytes", *upd.TotalBytes)
	}
	if upd.Speed != nil {
		appendSet("speed", *upd.Speed)
	}
	if upd.ETASeconds != nil {
		appendSet("eta_seconds", *upd.ETASeconds)
	}
	if upd.ErrorMessage != nil {
		appendSet("error_message", *upd.ErrorMessage)
	}
	if upd.ErrorKind != nil {
		appendSet("error_kind", *upd.ErrorKind)
	}
	if upd.Attempt != nil {
		appendSet("attempt", *upd.Attempt)
	}
	if upd.MaxAttempts != nil {
		appendSet("max_attempts", *upd.MaxAttempts)
	}
	if upd.FilePath != nil {
		appendSet("file_path", *upd.FilePath)
	}
	if upd.Account != nil {
		appendSet("account", *upd.Account)
	}

	appendSet("updated_at", timestamp(time.Now()))
	args = append(args, id)

	res, err := s.execWithRetry(ctx,
		`UPDATE work_items SET `+strings.Join(assignments, ", ")+` WHERE item_id = ?`, args...)
	if err != nil {
		return fmt.Errorf("upsert item %s: %w", id, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("upsert item %s: %w", id, err)
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

// SetState is shorthand for an Upsert that only moves the state.
func (s *Store) SetState(ctx context.Context, id string, state State) error {
	return s.Upsert(ctx, id, Update{State: &state})
}

// Progress records download counters for an item.
func (s *Store) Progress(ctx context.Context, id string, downloaded, total int64, speed float64, etaSeconds int64) error {
	res, err := s.execWithRetry(ctx,
		`UPDATE work_items
         SET downloaded_bytes = ?, total_bytes = ?, speed = ?, eta_seconds = ?, updated_at = ?
         WHERE item_id = ?`,
		downloaded, total, speed, etaSeconds, timestamp(time.Now()), id)
	if err != nil {
		return fmt.Errorf("record progress for %s: %w", id, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("record progress for %s: %w", id, err)
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

// CurrentBatch returns the open batch, or nil when every batch is complete.
func (s *Store) CurrentBatch(ctx context.Context) (*Batch, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT batch_id, started_at, complete, expected_items
         FROM batches WHERE complete = 0 ORDER BY started_at DESC LIMIT 1`)
	batch, err := scanBatch(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("current batch: %w", err)
	}
	return batch, nil
}

// SetExpectedItems records the planned size of the current batch.
func (s *Store) SetExpectedItems(ctx context.Context, n int) error {
	res, err := s.execWithRetry(ctx,
		`UPDATE batches SET expected_items = ?
         WHERE batch_id = (SELECT batch_id FROM batches WHERE complete = 0 ORDER BY started_at DESC LIMIT 1)`, n)
	if err != nil {
		return fmt.Errorf("set expected items: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("set expected items: %w", err)
	}
	if affected == 0 {
		return errors.New("queue: no open batch")
	}
	return nil
}

// List returns items ordered by creation time, optionally filtered to the
// given states.
func (s *Store) List(ctx context.Context, states ...State) ([]*WorkItem, error) {
	query := `SELECT ` + itemColumns + ` FROM work_items`
	args := make([]any, 0, len(states))
	if len(states) > 0 {
		marks := make([]string, len(states))
		for i, state := range states {
			marks[i] = "?"
			args = append(args, string(state))
		}
		query += ` WHERE state IN (` + strings.Join(marks, ", ") + `)`
	}
	query += ` ORDER BY created_at, item_id`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list items: %w", err)
	}
	defer rows.Close()

	var items []*WorkItem
	for rows.Next() {
		item, err := scanItem(rows)
		if err != nil {
			return nil, fmt.Errorf("scan item: %w", err)
		}
		items = append(items, item)
	}
	return items, rows.Err()
}

// Statistics aggregates the current batch. It is also the single place batch
// completion is detected: when every item in the batch has reached a terminal
// state (and any declared expected count is satisfied) the batch is flagged
// complete so the next enqueue opens a fresh one.
func (s *Store) Statistics(ctx context.Context) (*Statistics, error) {
	batch, err := s.CurrentBatch(ctx)
	if err != nil {
		return nil, err
	}
	if batch == nil {
		return &Statistics{BatchComplete: true}, nil
	}

	stats := &Statistics{BatchID: batch.ID, ExpectedItems: batch.ExpectedItems}

	rows, err := s.db.QueryContext(ctx,
		`SELECT state, COUNT(1), COALESCE(SUM(speed), 0) FROM work_items WHERE batch_id = ? GROUP BY state`,
		batch.ID)
	if err != nil {
		return nil, fmt.Errorf("batch statistics: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var raw string
		var count int
		var speed float64
		if err := rows.Scan(&raw, &count, &speed); err != nil {
			return nil, fmt.Errorf("scan statistics: %w", err)
		}
		state, _ := ParseState(raw)
		stats.Total += count
		switch {
		case state.IsQueued():
			stats.Queued += count
		case state == StateConverted:
			stats.Completed += count
		case state == StateError:
			stats.Failed += count
		default:
			stats.Active += count
			stats.SpeedTotal += speed
		}
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	done := stats.Total > 0 && stats.Queued == 0 && stats.Active == 0
	if done && batch.ExpectedItems > 0 {
		done = stats.Completed+stats.Failed >= batch.ExpectedItems
	}
	if done {
		if err := s.execWithoutResultRetry(ctx,
			`UPDATE batches SET complete = 1 WHERE batch_id = ?`, batch.ID); err != nil {
			return nil, fmt.Errorf("mark batch complete: %w", err)
		}
		stats.BatchComplete = true
	}

	return stats, nil
}

// Prune removes terminal items of completed batches whose last update is
// older than the retention window, then drops batches left empty. Items of
// the current batch are never pruned.
func (s *Store) Prune(ctx context.Context, olderThan time.Duration) (int64, error) {
	var removed int64
	if err := retryOnBusy(ctx, func() error {
		var err error
		removed, err = s.pruneTx(ctx, olderThan)
		return err
	}); err != nil {
		return 0, err
	}
	return removed, nil
}

func (s *Store) pruneTx(ctx context.Context, olderThan time.Duration) (int64, error) {
	cutoff := timestamp(time.Now().Add(-olderThan))

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin prune tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	res, err := tx.ExecContext(ctx,
		`DELETE FROM work_items
         WHERE state IN (?, ?)
           AND updated_at < ?
           AND batch_id NOT IN (SELECT batch_id FROM batches WHERE complete = 0)`,
		string(StateConverted), string(StateError), cutoff)
	if err != nil {
		return 0, fmt.Errorf("prune items: %w", err)
	}
	removed, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("prune items: %w", err)
	}

	if _, err := tx.ExecContext(ctx,
		`DELETE FROM batches
         WHERE complete = 1
           AND batch_id NOT IN (SELECT DISTINCT batch_id FROM work_items)`); err != nil {
		return 0, fmt.Errorf("prune batches: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit prune: %w", err)
	}
	return removed, nil
}

// ClearFailed deletes every item in the error state.
func (s *Store) ClearFailed(ctx context.Context) (int64, error) {
	res, err := s.execWithRetry(ctx,
		`DELETE FROM work_items WHERE state = ?`, string(StateError))
	if err != nil {
		return 0, fmt.Errorf("clear failed: %w", err)
	}
	return res.RowsAffected()
}

func currentBatchTx(ctx context.Context, tx *sql.Tx) (string, error) {
	var batchID string
	err := tx.QueryRowContext(ctx,
		`SELECT batch_id FROM batches WHERE complete = 0 ORDER BY started_at DESC LIMIT 1`,
	).Scan(&batchID)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("current batch: %w", err)
	}
	return batchID, nil
}

func newBatchID() string {
	return fmt.Sprintf("batch_%d_%s", time.Now().Unix(), uuid.NewString()[:8])
}

func timestamp(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanItem(row rowScanner) (*WorkItem, error) {
	var item WorkItem
	var state, createdAt, updatedAt string
	if err := row.Scan(
		&item.ID, &item.Title, &state, &item.BatchID, &createdAt, &updatedAt,
		&item.DownloadedBytes, &item.TotalBytes, &item.Speed, &item.ETASeconds,
		&item.ErrorMessage, &item.ErrorKind, &item.Attempt, &item.MaxAttempts,
		&item.FilePath, &item.Account,
	); err != nil {
		return nil, err
	}
	item.State, _ = ParseState(state)
	item.CreatedAt = parseTimestamp(createdAt)
	item.UpdatedAt = parseTimestamp(updatedAt)
	return &item, nil
}

func scanBatch(row rowScanner) (*Batch, error) {
	var batch Batch
	var startedAt string
	var complete int
	if err := row.Scan(&batch.ID, &startedAt, &complete, &batch.ExpectedItems); err != nil {
		return nil, err
	}
	batch.StartedAt = parseTimestamp(startedAt)
	batch.Complete = complete != 0
	return &batch, nil
}

func parseTimestamp(value string) time.Time {
	t, err := time.Parse(time.RFC3339Nano, value)
	if err != nil {
		return time.Time{}
	}
	return t
}
