package lexical

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/murmurnotes/murmur/internal/note"
)

// fakeStorage is a note.Storage with call counting and error injection.
type fakeStorage struct {
	mu         sync.Mutex
	recordings []*note.Recording
	err        error
	calls      int32
	gate       chan struct{} // when set, GetRecordings blocks until it closes
}

func (f *fakeStorage) GetRecordings(ctx context.Context) ([]*note.Recording, error) {
	atomic.AddInt32(&f.calls, 1)
	if f.gate != nil {
		<-f.gate
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	return f.recordings, nil
}

func (f *fakeStorage) fetchCount() int32 {
	return atomic.LoadInt32(&f.calls)
}

func TestManagerRebuildAndSearch(t *testing.T) {
	storage := &fakeStorage{recordings: testRecordings()}
	m := NewManager(storage, NewIndex())
	defer func() { _ = m.Close() }()

	results, err := m.Search(context.Background(), "espresso", 10)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "rec-coffee", results[0].RecordingID)
	assert.Equal(t, int32(1), storage.fetchCount())
	assert.False(t, m.LastBuilt().IsZero())
}

func TestManagerEnsureReadySkipsFreshIndex(t *testing.T) {
	storage := &fakeStorage{recordings: testRecordings()}
	m := NewManager(storage, NewIndex())
	defer func() { _ = m.Close() }()

	require.NoError(t, m.EnsureReady(context.Background()))
	require.NoError(t, m.EnsureReady(context.Background()))

	assert.Equal(t, int32(1), storage.fetchCount())
}

func TestManagerInvalidateTriggersRebuild(t *testing.T) {
	storage := &fakeStorage{recordings: testRecordings()}
	m := NewManager(storage, NewIndex())
	defer func() { _ = m.Close() }()

	require.NoError(t, m.EnsureReady(context.Background()))
	m.Invalidate()
	require.NoError(t, m.EnsureReady(context.Background()))

	assert.Equal(t, int32(2), storage.fetchCount())
}

func TestManagerConcurrentRebuildsCollapse(t *testing.T) {
	gate := make(chan struct{})
	storage := &fakeStorage{recordings: testRecordings(), gate: gate}
	m := NewManager(storage, NewIndex())
	defer func() { _ = m.Close() }()

	const waiters = 5
	errs := make(chan error, waiters)
	var started sync.WaitGroup
	started.Add(waiters)
	for i := 0; i < waiters; i++ {
		go func() {
			started.Done()
			errs <- m.Rebuild(context.Background())
		}()
	}
	started.Wait()
	close(gate)

	for i := 0; i < waiters; i++ {
		require.NoError(t, <-errs)
	}

	// Every waiter shared at most two builds: one in flight plus one that
	// started after the first completed.
	assert.LessOrEqual(t, storage.fetchCount(), int32(2))
}

func TestManagerRebuildFailurePropagates(t *testing.T) {
	storage := &fakeStorage{err: errors.New("disk unplugged")}
	m := NewManager(storage, NewIndex())
	defer func() { _ = m.Close() }()

	err := m.Rebuild(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "disk unplugged")

	// Failure clears the building flag and leaves the index stale.
	assert.False(t, m.Building())
	assert.True(t, m.LastBuilt().IsZero())

	// A later rebuild succeeds once the fault is gone.
	storage.mu.Lock()
	storage.err = nil
	storage.recordings = testRecordings()
	storage.mu.Unlock()

	require.NoError(t, m.Rebuild(context.Background()))
	assert.Equal(t, 3, m.Stats().DocCount)
}

func TestManagerStats(t *testing.T) {
	storage := &fakeStorage{recordings: testRecordings()}
	m := NewManager(storage, NewIndex())
	defer func() { _ = m.Close() }()

	stats := m.Stats()
	assert.Zero(t, stats.DocCount)
	assert.False(t, stats.Building)

	require.NoError(t, m.Rebuild(context.Background()))

	stats = m.Stats()
	assert.Equal(t, 3, stats.DocCount)
	assert.False(t, stats.Building)
	assert.False(t, stats.LastBuilt.IsZero())
}
