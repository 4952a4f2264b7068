// Package index orchestrates the hybrid search index: it reconciles the
// recording corpus against the persistent vector store using content hashes,
// keeps the keyword index fresh, and exposes the observable sync state
// machine (idle, syncing, indexing, error).
package index

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"golang.org/x/sync/singleflight"

	"github.com/murmurnotes/murmur/internal/chunk"
	"github.com/murmurnotes/murmur/internal/embed"
	"github.com/murmurnotes/murmur/internal/lexical"
	"github.com/murmurnotes/murmur/internal/note"
	"github.com/murmurnotes/murmur/internal/store"
)

// Chunker splits a recording's searchable fields into embeddable candidates.
type Chunker interface {
	ChunkRecording(rec *note.Recording) ([]chunk.Candidate, error)
}

// Config wires the service's collaborators. All fields are required.
type Config struct {
	Storage  note.Storage
	Store    store.VectorStore
	Chunker  Chunker
	Embedder embed.Embedder
	Lexical  *lexical.Manager
	Hasher   note.Hasher
}

// Service is the index orchestrator. One instance owns the vector store and
// the keyword index manager for the life of the process.
type Service struct {
	storage  note.Storage
	store    store.VectorStore
	chunker  Chunker
	embedder embed.Embedder
	lexical  *lexical.Manager
	hasher   note.Hasher

	group singleflight.Group

	mu           sync.Mutex
	snap         Snapshot
	listeners    map[int]Listener
	nextListener int
	disposed     bool
}

// NewService creates the orchestrator in the idle state.
func NewService(cfg Config) (*Service, error) {
	if cfg.Storage == nil || cfg.Store == nil || cfg.Chunker == nil ||
		cfg.Embedder == nil || cfg.Lexical == nil {
		return nil, fmt.Errorf("index service: all collaborators are required")
	}
	return &Service{
		storage:   cfg.Storage,
		store:     cfg.Store,
		chunker:   cfg.Chunker,
		embedder:  cfg.Embedder,
		lexical:   cfg.Lexical,
		hasher:    cfg.Hasher,
		snap:      Snapshot{Status: StatusIdle},
		listeners: make(map[int]Listener),
	}, nil
}

// SyncIndexes reconciles both indexes with the current corpus. Unchanged
// recordings (manifest hash matches) are skipped without re-embedding; new
// and changed ones are re-chunked; recordings gone from the corpus are
// tombstoned; the keyword index is rebuilt unconditionally.
//
// Concurrent calls coalesce into one run whose result all callers share. A
// failure on one recording is logged and skipped; a failure fetching the
// corpus or manifest is fatal and moves the state machine to error.
func (s *Service) SyncIndexes(ctx context.Context) error {
	_, err, _ := s.group.Do("sync", func() (interface{}, error) {
		return nil, s.runSync(ctx)
	})
	return err
}

func (s *Service) runSync(ctx context.Context) error {
	s.transition(func(snap *Snapshot) {
		snap.Status = StatusSyncing
		snap.ErrorMessage = ""
		snap.TotalToIndex = 0
		snap.IndexedCount = 0
	})

	recordings, err := s.storage.GetRecordings(ctx)
	if err != nil {
		err = fmt.Errorf("failed to fetch recordings: %w", err)
		s.fail(err)
		return err
	}

	indexedIDs, err := s.store.IndexedRecordingIDs(ctx)
	if err != nil {
		err = fmt.Errorf("failed to read index manifest: %w", err)
		s.fail(err)
		return err
	}

	s.transition(func(snap *Snapshot) {
		snap.Status = StatusIndexing
		snap.TotalToIndex = len(recordings)
	})

	live := make(map[string]struct{}, len(recordings))
	for _, rec := range recordings {
		live[rec.ID] = struct{}{}

		hash := s.hasher.Hash(rec)
		stored, ok, err := s.store.ContentHash(ctx, rec.ID)
		if err != nil {
			slog.Warn("failed to read content hash, skipping recording",
				slog.String("recording_id", rec.ID),
				slog.String("error", err.Error()))
			continue
		}
		if ok && stored == hash {
			continue
		}

		if err := s.reindex(ctx, rec, hash); err != nil {
			slog.Warn("failed to index recording, skipping",
				slog.String("recording_id", rec.ID),
				slog.String("error", err.Error()))
			continue
		}

		s.transition(func(snap *Snapshot) {
			snap.IndexedCount++
		})
	}

	for _, id := range indexedIDs {
		if _, exists := live[id]; exists {
			continue
		}
		if _, err := s.store.RemoveChunks(ctx, id); err != nil {
			slog.Warn("failed to remove deleted recording from index",
				slog.String("recording_id", id),
				slog.String("error", err.Error()))
		}
	}

	if err := s.lexical.Rebuild(ctx); err != nil {
		err = fmt.Errorf("failed to rebuild keyword index: %w", err)
		s.fail(err)
		return err
	}

	s.transition(func(snap *Snapshot) {
		snap.Status = StatusIdle
	})
	return nil
}

// reindex chunks, embeds and atomically replaces one recording's indexed
// representation. An all-empty recording ends up with no chunks and no
// manifest entry.
func (s *Service) reindex(ctx context.Context, rec *note.Recording, hash string) error {
	candidates, err := s.chunker.ChunkRecording(rec)
	if err != nil {
		return fmt.Errorf("chunking failed: %w", err)
	}

	var chunks []*store.Chunk
	if len(candidates) > 0 {
		texts := make([]string, len(candidates))
		for i, c := range candidates {
			texts[i] = c.Text
		}

		embeddings, err := s.embedder.EmbedBatch(ctx, texts)
		if err != nil {
			return fmt.Errorf("embedding failed: %w", err)
		}
		if len(embeddings) != len(candidates) {
			return fmt.Errorf("embedder returned %d vectors for %d chunks", len(embeddings), len(candidates))
		}

		chunks = make([]*store.Chunk, len(candidates))
		for i, c := range candidates {
			chunks[i] = &store.Chunk{
				RecordingID: rec.ID,
				Field:       c.Field,
				Index:       c.Index,
				Text:        c.Text,
				Embedding:   embeddings[i],
			}
		}
	}

	if err := s.store.ReplaceChunks(ctx, rec.ID, chunks, hash); err != nil {
		return fmt.Errorf("storing chunks failed: %w", err)
	}
	return nil
}

// IndexRecording upserts a single recording immediately, for the save path.
// The keyword index is invalidated rather than rebuilt; the next query
// rebuilds it lazily.
func (s *Service) IndexRecording(ctx context.Context, rec *note.Recording) error {
	if rec == nil {
		return fmt.Errorf("recording is nil")
	}
	if err := s.reindex(ctx, rec, s.hasher.Hash(rec)); err != nil {
		return err
	}
	s.lexical.Invalidate()
	return nil
}

// RemoveRecording drops a recording from both indexes.
func (s *Service) RemoveRecording(ctx context.Context, recordingID string) error {
	if _, err := s.store.RemoveChunks(ctx, recordingID); err != nil {
		return fmt.Errorf("failed to remove recording from index: %w", err)
	}
	s.lexical.Invalidate()
	return nil
}

// ForceFullReindex wipes the vector store and rebuilds everything from the
// corpus as if nothing had ever been indexed.
func (s *Service) ForceFullReindex(ctx context.Context) error {
	if err := s.store.Clear(ctx); err != nil {
		return fmt.Errorf("failed to clear vector store: %w", err)
	}
	s.lexical.Invalidate()
	return s.SyncIndexes(ctx)
}

// SemanticSearch embeds the query and runs a similarity search.
func (s *Service) SemanticSearch(ctx context.Context, query string, opts store.SearchOptions) ([]*store.SearchResult, error) {
	embedding, err := s.embedder.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to embed query: %w", err)
	}
	return s.store.Search(ctx, embedding, opts)
}

// KeywordSearch runs a BM25 query, rebuilding the keyword index if stale.
func (s *Service) KeywordSearch(ctx context.Context, query string, limit int) ([]*lexical.Result, error) {
	return s.lexical.Search(ctx, query, limit)
}

// Stats merges vector store stats, keyword index stats and the current sync
// snapshot.
type Stats struct {
	Vector   store.Stats
	Keyword  lexical.Stats
	Snapshot Snapshot
}

// GetStats returns a merged statistics snapshot.
func (s *Service) GetStats(ctx context.Context) (*Stats, error) {
	vecStats, err := s.store.Stats(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to read vector store stats: %w", err)
	}
	return &Stats{
		Vector:   *vecStats,
		Keyword:  s.lexical.Stats(),
		Snapshot: s.Status(),
	}, nil
}

// Status returns the current state machine snapshot.
func (s *Service) Status() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snap
}

// Subscribe registers a state change listener and returns its unsubscribe
// function. The listener immediately receives the current snapshot.
func (s *Service) Subscribe(l Listener) func() {
	s.mu.Lock()
	id := s.nextListener
	s.nextListener++
	s.listeners[id] = l
	snap := s.snap
	s.mu.Unlock()

	notifyOne(l, snap)

	return func() {
		s.mu.Lock()
		delete(s.listeners, id)
		s.mu.Unlock()
	}
}

// Dispose clears all listeners and closes the vector store and keyword
// index. Idempotent.
func (s *Service) Dispose() error {
	s.mu.Lock()
	if s.disposed {
		s.mu.Unlock()
		return nil
	}
	s.disposed = true
	s.listeners = make(map[int]Listener)
	s.mu.Unlock()

	lexErr := s.lexical.Close()
	if err := s.store.Close(); err != nil {
		return err
	}
	return lexErr
}

// transition mutates the snapshot under the lock and notifies listeners
// outside it.
func (s *Service) transition(mutate func(*Snapshot)) {
	s.mu.Lock()
	mutate(&s.snap)
	snap := s.snap
	listeners := make([]Listener, 0, len(s.listeners))
	for _, l := range s.listeners {
		listeners = append(listeners, l)
	}
	s.mu.Unlock()

	for _, l := range listeners {
		notifyOne(l, snap)
	}
}

func (s *Service) fail(err error) {
	s.transition(func(snap *Snapshot) {
		snap.Status = StatusError
		snap.ErrorMessage = err.Error()
	})
}

// notifyOne invokes one listener inside its own fault boundary. A panicking
// listener is logged and never interrupts the sync or other listeners.
func notifyOne(l Listener, snap Snapshot) {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("index status listener panicked",
				slog.Any("panic", r))
		}
	}()
	l(snap)
}
