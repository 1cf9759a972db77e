package library

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	bolt "go.etcd.io/bbolt"
)

// StateConverted is the only state a ledger entry carries: a book is listed
// once its file exists in the library.
const StateConverted = "converted"

var booksBucket = []byte("books")

// ErrNotFound indicates no ledger entry exists for the identifier.
var ErrNotFound = errors.New("library: entry not found")

// Entry records one filed book.
type Entry struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	Path      string    `json:"path"`
	State     string    `json:"state"`
	Timestamp time.Time `json:"timestamp"`
	Account   string    `json:"account,omitempty"`
}

// Ledger is the persistent identifier-to-path index backed by bbolt.
type Ledger struct {
	db *bolt.DB
}

// Open opens or creates the ledger database at path.
func Open(path string) (*Ledger, error) {
	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: 5 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("open ledger db: %w", err)
	}
	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(booksBucket)
		return err
	})
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create books bucket: %w", err)
	}
	return &Ledger{db: db}, nil
}

// Close releases the underlying database.
func (l *Ledger) Close() error {
	if l == nil || l.db == nil {
		return nil
	}
	return l.db.Close()
}

// Get returns the entry for id, or ErrNotFound.
func (l *Ledger) Get(id string) (*Entry, error) {
	var entry *Entry
	err := l.db.View(func(tx *bolt.Tx) error {
		data := tx.Bucket(booksBucket).Get([]byte(id))
		if data == nil {
			return ErrNotFound
		}
		entry = &Entry{}
		return json.Unmarshal(data, entry)
	})
	if err != nil {
		return nil, err
	}
	return entry, nil
}

// Put records a filed book, stamping state and timestamp, in one committed
// transaction.
func (l *Ledger) Put(id, title, path, account string) error {
	entry := Entry{
		ID:        id,
		Title:     title,
		Path:      path,
		State:     StateConverted,
		Timestamp: time.Now().UTC(),
		Account:   account,
	}
	data, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("marshal entry %s: %w", id, err)
	}
	err = l.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(booksBucket).Put([]byte(id), data)
	})
	if err != nil {
		return fmt.Errorf("put entry %s: %w", id, err)
	}
	return nil
}

// Remove deletes the entry for id. Removing a missing entry is not an error.
func (l *Ledger) Remove(id string) error {
	err := l.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(booksBucket).Delete([]byte(id))
	})
	if err != nil {
		return fmt.Errorf("remove entry %s: %w", id, err)
	}
	return nil
}

// All returns every ledger entry, ordered by identifier.
func (l *Ledger) All() ([]Entry, error) {
	var entries []Entry
	err := l.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(booksBucket).ForEach(func(_, data []byte) error {
			var entry Entry
			if err := json.Unmarshal(data, &entry); err != nil {
				return err
			}
			entries = append(entries, entry)
			return nil
		})
	})
	if err != nil {
		return nil, fmt.Errorf("scan ledger: %w", err)
	}
	return entries, nil
}

// Len returns the number of ledger entries.
func (l *Ledger) Len() (int, error) {
	var count int
	err := l.db.View(func(tx *bolt.Tx) error {
		count = tx.Bucket(booksBucket).Stats().KeyN
		return nil
	})
	if err != nil {
		return 0, err
	}
	return count, nil
}
