package queue

import (
	"strings"
	"time"
)

// State represents the lifecycle of a work item.
type State string

const (
	StatePending          State = "pending"
	StateLicenseRequested State = "license_requested"
	StateLicenseGranted   State = "license_granted"
	StateDownloading      State = "downloading"
	StateDownloadComplete State = "download_complete"
	StateDecrypting       State = "decrypting"
	StateConverted        State = "converted"
	StateRetrying         State = "retrying"
	StateError            State = "error"
)

var allStates = []State{
	StatePending,
	StateLicenseRequested,
	StateLicenseGranted,
	StateDownloading,
	StateDownloadComplete,
	StateDecrypting,
	StateConverted,
	StateRetrying,
	StateError,
}

var stateSet = func() map[State]struct{} {
	set := make(map[State]struct{}, len(allStates))
	for _, state := range allStates {
		set[state] = struct{}{}
	}
	return set
}()

var activeStates = map[State]struct{}{
	StateLicenseRequested: {},
	StateLicenseGranted:   {},
	StateDownloading:      {},
	StateDownloadComplete: {},
	StateDecrypting:       {},
	StateRetrying:         {},
}

// AllStates returns the ordered list of known states.
func AllStates() []State {
	cp := make([]State, len(allStates))
	copy(cp, allStates)
	return cp
}

// ParseState converts a string into a known State.
func ParseState(value string) (State, bool) {
	normalized := State(strings.ToLower(strings.TrimSpace(value)))
	if normalized == "" {
		return "", false
	}
	_, ok := stateSet[normalized]
	return normalized, ok
}

// IsTerminal reports whether the state ends an item's lifecycle.
func (s State) IsTerminal() bool {
	return s == StateConverted || s == StateError
}

// IsActive reports whether the state reflects an in-flight operation.
func (s State) IsActive() bool {
	_, ok := activeStates[s]
	return ok
}

// IsQueued reports whether the item is waiting to be picked up.
func (s State) IsQueued() bool {
	return s == StatePending
}

// WorkItem represents one audiobook acquisition persisted in SQLite.
type WorkItem struct {
	ID              string
	Title           string
	State           State
	BatchID         string
	CreatedAt       time.Time
	UpdatedAt       time.Time
	DownloadedBytes int64
	TotalBytes      int64
	Speed           float64
	ETASeconds      int64
	ErrorMessage    string
	ErrorKind       string
	Attempt         int
	MaxAttempts     int
	FilePath        string
	Account         string
}

// PercentComplete derives download progress from the byte counters.
func (w *WorkItem) PercentComplete() float64 {
	if w == nil || w.TotalBytes <= 0 {
		return 0
	}
	pct := float64(w.DownloadedBytes) / float64(w.TotalBytes) * 100
	if pct > 100 {
		pct = 100
	}
	return pct
}

// Batch groups the items enqueued together in one download run.
type Batch struct {
	ID            string
	StartedAt     time.Time
	Complete      bool
	ExpectedItems int
}

// Statistics aggregates the current batch for status reporting.
type Statistics struct {
	BatchID       string
	ExpectedItems int
	Queued        int
	Active        int
	Completed     int
	Failed        int
	Total         int
	SpeedTotal    float64
	BatchComplete bool
}

// Update carries field-level changes for a merge upsert. Nil fields are left
// untouched.
type Update struct {
	Title           *string
	State           *State
	DownloadedBytes *int64
	TotalBytes      *int64
	Speed           *float64
	ETASeconds      *int64
	ErrorMessage    *string
	ErrorKind       *string
	Attempt         *int
	MaxAttempts     *int
	FilePath        *string
	Account         *string
}

// StringPtr returns a pointer to value, for building Updates inline.
func StringPtr(value string) *string { return &value }

// StatePtr returns a pointer to state, for building Updates inline.
func StatePtr(state State) *State { return &state }

// IntPtr returns a pointer to value, for building Updates inline.
func IntPtr(value int) *int { return &value }

// Int64Ptr returns a pointer to value, for building Updates inline.
func Int64Ptr(value int64) *int64 { return &value }
