package lexical

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/murmurnotes/murmur/internal/note"
)

// Stats describes the manager's current state.
type Stats struct {
	DocCount  int
	Building  bool
	LastBuilt time.Time
}

// Manager owns the keyword index lifecycle: it fetches the corpus from
// storage and rebuilds the index when it is stale. Concurrent rebuild
// requests collapse into a single build whose outcome every waiter shares.
type Manager struct {
	storage note.Storage
	index   *Index

	group    singleflight.Group
	mu       sync.RWMutex
	building bool
}

// NewManager creates a manager over the given storage and index.
func NewManager(storage note.Storage, index *Index) *Manager {
	return &Manager{
		storage: storage,
		index:   index,
	}
}

// Rebuild fetches all recordings and rebuilds the index. Overlapping calls
// join the in-flight build; a failed build fails every waiter and leaves the
// index marked stale so the next call retries.
func (m *Manager) Rebuild(ctx context.Context) error {
	_, err, _ := m.group.Do("rebuild", func() (interface{}, error) {
		m.setBuilding(true)
		defer m.setBuilding(false)

		start := time.Now()

		recordings, err := m.storage.GetRecordings(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to fetch recordings: %w", err)
		}

		if err := m.index.Build(ctx, recordings); err != nil {
			return nil, fmt.Errorf("failed to build keyword index: %w", err)
		}

		slog.Debug("keyword index rebuilt",
			slog.Int("recordings", len(recordings)),
			slog.Duration("elapsed", time.Since(start)))

		return nil, nil
	})
	return err
}

// EnsureReady rebuilds only when the index is unbuilt or stale.
func (m *Manager) EnsureReady(ctx context.Context) error {
	if !m.index.NeedsRebuild() {
		return nil
	}
	return m.Rebuild(ctx)
}

// Search runs a keyword query, building the index first if needed.
func (m *Manager) Search(ctx context.Context, query string, limit int) ([]*Result, error) {
	if err := m.EnsureReady(ctx); err != nil {
		return nil, err
	}
	return m.index.Search(ctx, query, limit)
}

// Invalidate marks the index stale. The next EnsureReady or Search rebuilds.
func (m *Manager) Invalidate() {
	m.index.Invalidate()
}

// Building reports whether a rebuild is in flight.
func (m *Manager) Building() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.building
}

// LastBuilt returns when the index contents were last built.
func (m *Manager) LastBuilt() time.Time {
	return m.index.BuiltAt()
}

// Stats returns a snapshot of the manager's state.
func (m *Manager) Stats() Stats {
	return Stats{
		DocCount:  m.index.DocCount(),
		Building:  m.Building(),
		LastBuilt: m.index.BuiltAt(),
	}
}

// Close releases the underlying index.
func (m *Manager) Close() error {
	return m.index.Close()
}

func (m *Manager) setBuilding(v bool) {
	m.mu.Lock()
	m.building = v
	m.mu.Unlock()
}
