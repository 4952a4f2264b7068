// Package store persists indexed chunks and their embeddings, together with
// the per-recording manifest that drives incremental sync. The durable state
// lives in SQLite; similarity search runs over an in-memory HNSW graph that
// mirrors the chunk table.
package store

import (
	"context"
	"fmt"

	"github.com/murmurnotes/murmur/internal/note"
)

// DefaultSearchLimit caps search results when the caller does not specify one.
const DefaultSearchLimit = 10

// Chunk is one embedded span of a recording's searchable content. The
// composite key (RecordingID, Field, Index) is unique within the store.
type Chunk struct {
	RecordingID string
	Field       note.Field
	Index       int
	Text        string
	Embedding   []float32
}

// Manifest records what the store last indexed for a recording. An entry
// exists if and only if at least one chunk exists for that recording.
type Manifest struct {
	RecordingID string
	ContentHash string
	ChunkCount  int
}

// SearchOptions bound a similarity search.
type SearchOptions struct {
	// Limit caps the number of results; non-positive means DefaultSearchLimit.
	Limit int
	// MinScore drops results scoring below the threshold.
	MinScore float32
}

// SearchResult is one ranked similarity hit.
type SearchResult struct {
	RecordingID string
	Field       note.Field
	Text        string
	// Score is cosine similarity: 1.0 for an identical vector.
	Score float32
}

// Stats summarizes the store's contents.
type Stats struct {
	TotalChunks     int
	TotalRecordings int
	TotalSizeBytes  int64
}

// VectorStore is the persistence contract the index orchestrator depends on.
// Implementations own the backing resource exclusively; a single process is
// the single writer.
type VectorStore interface {
	// Initialize opens or creates the backing store. Idempotent.
	Initialize(ctx context.Context) error

	// AddChunks upserts chunks. Any chunk whose embedding length differs from
	// the store dimension is rejected with ErrDimensionMismatch before any
	// write happens.
	AddChunks(ctx context.Context, chunks []*Chunk) error

	// ReplaceChunks atomically swaps a recording's entire chunk set and its
	// manifest entry in one transaction, so the manifest hash always
	// describes exactly the persisted chunk set. An empty chunk set removes
	// the manifest entry.
	ReplaceChunks(ctx context.Context, recordingID string, chunks []*Chunk, contentHash string) error

	// RemoveChunks deletes all chunks and the manifest entry for a recording,
	// reporting whether anything existed.
	RemoveChunks(ctx context.Context, recordingID string) (bool, error)

	// IsIndexed reports whether the recording has a manifest entry.
	IsIndexed(ctx context.Context, recordingID string) (bool, error)

	// IndexedRecordingIDs returns all indexed recording IDs, sorted and
	// duplicate free.
	IndexedRecordingIDs(ctx context.Context) ([]string, error)

	// ContentHash returns the manifest hash for a recording; ok is false when
	// the recording is not indexed.
	ContentHash(ctx context.Context, recordingID string) (hash string, ok bool, err error)

	// UpdateManifest writes a manifest entry.
	UpdateManifest(ctx context.Context, recordingID, contentHash string, chunkCount int) error

	// Search returns chunks ranked by cosine similarity, best first. An empty
	// store yields an empty slice.
	Search(ctx context.Context, query []float32, opts SearchOptions) ([]*SearchResult, error)

	// Stats summarizes stored chunks, recordings and on-disk size.
	Stats(ctx context.Context) (*Stats, error)

	// Clear wipes all chunks and manifest entries.
	Clear(ctx context.Context) error

	// Close releases the backing resource.
	Close() error
}

// ErrDimensionMismatch indicates an embedding whose length does not match the
// store dimension. It is a hard precondition violation, never silently
// truncated or padded.
type ErrDimensionMismatch struct {
	Expected int
	Got      int
}

func (e ErrDimensionMismatch) Error() string {
	return fmt.Sprintf("embedding dimension mismatch: expected %d, got %d", e.Expected, e.Got)
}
