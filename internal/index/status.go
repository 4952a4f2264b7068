package index

// Status is the sync state machine's current phase.
type Status string

const (
	// StatusIdle means no sync is running; the last one, if any, succeeded.
	StatusIdle Status = "idle"
	// StatusSyncing means the corpus and manifest are being fetched.
	StatusSyncing Status = "syncing"
	// StatusIndexing means recordings are being chunked and embedded.
	StatusIndexing Status = "indexing"
	// StatusError means the last sync failed before its per-recording loop.
	StatusError Status = "error"
)

// Snapshot is one observable point-in-time view of the sync state machine.
type Snapshot struct {
	Status Status
	// ErrorMessage is set only when Status is StatusError.
	ErrorMessage string
	// TotalToIndex is the corpus size of the running or last sync.
	TotalToIndex int
	// IndexedCount counts recordings actually re-chunked this sync; unchanged
	// recordings are skipped and do not count.
	IndexedCount int
}

// Progress reports IndexedCount over TotalToIndex in [0, 1].
func (s Snapshot) Progress() float64 {
	if s.TotalToIndex <= 0 {
		return 0
	}
	p := float64(s.IndexedCount) / float64(s.TotalToIndex)
	if p > 1 {
		return 1
	}
	return p
}

// Listener receives state change notifications. Listeners run synchronously
// on the syncing goroutine; a panicking listener is recovered and logged
// without affecting the sync or other listeners.
type Listener func(Snapshot)
