package store

import (
	"context"
	"database/sql"
	"encoding/binary"
	"fmt"
	"log/slog"
	"math"
	"os"
	"path/filepath"
	"sync"

	"github.com/coder/hnsw"
	"github.com/gofrs/flock"
	_ "modernc.org/sqlite" // pure Go SQLite driver, no CGO

	"github.com/murmurnotes/murmur/internal/note"
)

// HNSW parameters. M and EfSearch follow the coder/hnsw recommendations for
// small local corpora.
const (
	hnswM        = 16
	hnswEfSearch = 40
)

// SQLiteStore implements VectorStore on a single SQLite database holding the
// chunk and manifest tables, with an in-memory HNSW graph for cosine search.
// The graph is rebuilt from the chunk table on Initialize and kept in step
// with every write afterwards.
type SQLiteStore struct {
	mu     sync.RWMutex
	db     *sql.DB
	path   string
	dims   int
	flk    *flock.Flock
	closed bool
	ready  bool

	graph   *hnsw.Graph[uint64]
	idMap   map[string]uint64   // composite chunk key -> graph key
	keyMap  map[uint64]chunkRef // graph key -> chunk identity (orphans absent)
	nextKey uint64
}

// chunkRef is what a graph hit resolves back to.
type chunkRef struct {
	recordingID string
	field       note.Field
	index       int
	text        string
}

// Config configures the SQLite vector store.
type Config struct {
	// Path is the database file. Empty means an in-memory database (tests).
	Path string
	// Dimensions is the embedding dimension D every stored vector must have.
	Dimensions int
}

// NewSQLiteStore creates an unopened store; call Initialize before use.
func NewSQLiteStore(cfg Config) (*SQLiteStore, error) {
	if cfg.Dimensions <= 0 {
		return nil, fmt.Errorf("dimensions must be positive, got %d", cfg.Dimensions)
	}
	return &SQLiteStore{
		path: cfg.Path,
		dims: cfg.Dimensions,
	}, nil
}

// Initialize opens or creates the backing database, acquires the single-writer
// lock and loads the search graph. Safe to call more than once.
func (s *SQLiteStore) Initialize(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return fmt.Errorf("store is closed")
	}
	if s.ready {
		return nil
	}

	dsn := ":memory:"
	if s.path != "" {
		dir := filepath.Dir(s.path)
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create index directory: %w", err)
		}

		// One writing process per index directory.
		s.flk = flock.New(s.path + ".lock")
		locked, err := s.flk.TryLock()
		if err != nil {
			return fmt.Errorf("failed to acquire index lock: %w", err)
		}
		if !locked {
			return fmt.Errorf("index at %s is locked by another process", s.path)
		}

		dsn = s.path
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		s.releaseLock()
		return fmt.Errorf("failed to open database: %w", err)
	}

	// Single connection: SQLite is the single-writer resource here, and the
	// in-memory DSN would otherwise give each pooled connection its own
	// database.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA temp_store = MEMORY",
	}
	for _, pragma := range pragmas {
		if _, err := db.ExecContext(ctx, pragma); err != nil {
			_ = db.Close()
			s.releaseLock()
			return fmt.Errorf("failed to set pragma: %w", err)
		}
	}

	if err := initSchema(ctx, db); err != nil {
		_ = db.Close()
		s.releaseLock()
		return fmt.Errorf("failed to initialize schema: %w", err)
	}

	s.db = db
	s.resetGraph()

	if err := s.loadGraph(ctx); err != nil {
		_ = db.Close()
		s.releaseLock()
		s.db = nil
		return fmt.Errorf("failed to load vector graph: %w", err)
	}

	s.ready = true
	slog.Debug("vector store initialized",
		slog.String("path", s.path),
		slog.Int("dimensions", s.dims),
		slog.Int("chunks", len(s.idMap)))

	return nil
}

func initSchema(ctx context.Context, db *sql.DB) error {
	schema := `
	CREATE TABLE IF NOT EXISTS chunks (
		recording_id TEXT NOT NULL,
		field        TEXT NOT NULL,
		chunk_idx    INTEGER NOT NULL,
		chunk_text   TEXT NOT NULL,
		embedding    BLOB NOT NULL,
		PRIMARY KEY (recording_id, field, chunk_idx)
	);

	CREATE TABLE IF NOT EXISTS manifest (
		recording_id TEXT PRIMARY KEY,
		content_hash TEXT NOT NULL,
		chunk_count  INTEGER NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_chunks_recording ON chunks(recording_id);
	`
	_, err := db.ExecContext(ctx, schema)
	return err
}

// resetGraph replaces the search graph and ID mappings with empty ones.
func (s *SQLiteStore) resetGraph() {
	graph := hnsw.NewGraph[uint64]()
	graph.Distance = hnsw.CosineDistance
	graph.M = hnswM
	graph.EfSearch = hnswEfSearch

	s.graph = graph
	s.idMap = make(map[string]uint64)
	s.keyMap = make(map[uint64]chunkRef)
	s.nextKey = 0
}

// loadGraph populates the graph from the chunk table.
func (s *SQLiteStore) loadGraph(ctx context.Context) error {
	rows, err := s.db.QueryContext(ctx,
		`SELECT recording_id, field, chunk_idx, chunk_text, embedding FROM chunks`)
	if err != nil {
		return err
	}
	defer func() { _ = rows.Close() }()

	for rows.Next() {
		var (
			recID, field, text string
			idx                int
			blob               []byte
		)
		if err := rows.Scan(&recID, &field, &idx, &text, &blob); err != nil {
			return err
		}

		vec, err := decodeVector(blob)
		if err != nil {
			return fmt.Errorf("chunk (%s, %s, %d): %w", recID, field, idx, err)
		}
		if len(vec) != s.dims {
			return ErrDimensionMismatch{Expected: s.dims, Got: len(vec)}
		}

		s.addToGraph(&Chunk{
			RecordingID: recID,
			Field:       note.Field(field),
			Index:       idx,
			Text:        text,
			Embedding:   vec,
		})
	}
	return rows.Err()
}

// addToGraph inserts or replaces one chunk in the graph. Replacement is lazy:
// the stale node stays in the graph but loses its keyMap entry, so it can
// never surface in results.
func (s *SQLiteStore) addToGraph(c *Chunk) {
	id := compositeKey(c.RecordingID, c.Field, c.Index)
	if oldKey, exists := s.idMap[id]; exists {
		delete(s.keyMap, oldKey)
		delete(s.idMap, id)
	}

	key := s.nextKey
	s.nextKey++

	vec := make([]float32, len(c.Embedding))
	copy(vec, c.Embedding)
	normalizeInPlace(vec)

	s.graph.Add(hnsw.MakeNode(key, vec))
	s.idMap[id] = key
	s.keyMap[key] = chunkRef{
		recordingID: c.RecordingID,
		field:       c.Field,
		index:       c.Index,
		text:        c.Text,
	}
}

// dropFromGraph lazily deletes every graph entry belonging to a recording.
func (s *SQLiteStore) dropFromGraph(recordingID string) {
	for key, ref := range s.keyMap {
		if ref.recordingID == recordingID {
			delete(s.keyMap, key)
			delete(s.idMap, compositeKey(ref.recordingID, ref.field, ref.index))
		}
	}
}

// validateDims rejects any chunk whose embedding is not exactly D long.
func (s *SQLiteStore) validateDims(chunks []*Chunk) error {
	for _, c := range chunks {
		if len(c.Embedding) != s.dims {
			return ErrDimensionMismatch{Expected: s.dims, Got: len(c.Embedding)}
		}
	}
	return nil
}

// AddChunks upserts chunks into the chunk table and the graph.
func (s *SQLiteStore) AddChunks(ctx context.Context, chunks []*Chunk) error {
	if len(chunks) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.checkReady(); err != nil {
		return err
	}
	if err := s.validateDims(chunks); err != nil {
		return err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if err := insertChunks(ctx, tx, chunks); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit chunks: %w", err)
	}

	for _, c := range chunks {
		s.addToGraph(c)
	}
	return nil
}

func insertChunks(ctx context.Context, tx *sql.Tx, chunks []*Chunk) error {
	stmt, err := tx.PrepareContext(ctx, `
		INSERT OR REPLACE INTO chunks (recording_id, field, chunk_idx, chunk_text, embedding)
		VALUES (?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("failed to prepare chunk insert: %w", err)
	}
	defer func() { _ = stmt.Close() }()

	for _, c := range chunks {
		if _, err := stmt.ExecContext(ctx,
			c.RecordingID, string(c.Field), c.Index, c.Text, encodeVector(c.Embedding)); err != nil {
			return fmt.Errorf("failed to insert chunk (%s, %s, %d): %w", c.RecordingID, c.Field, c.Index, err)
		}
	}
	return nil
}

// ReplaceChunks swaps a recording's chunk set and manifest entry in one
// transaction. A crash can therefore never leave a manifest hash describing a
// chunk set other than the persisted one.
func (s *SQLiteStore) ReplaceChunks(ctx context.Context, recordingID string, chunks []*Chunk, contentHash string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.checkReady(); err != nil {
		return err
	}
	if err := s.validateDims(chunks); err != nil {
		return err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `DELETE FROM chunks WHERE recording_id = ?`, recordingID); err != nil {
		return fmt.Errorf("failed to delete old chunks: %w", err)
	}

	if len(chunks) == 0 {
		// Manifest exists iff chunks exist.
		if _, err := tx.ExecContext(ctx, `DELETE FROM manifest WHERE recording_id = ?`, recordingID); err != nil {
			return fmt.Errorf("failed to delete manifest entry: %w", err)
		}
	} else {
		if err := insertChunks(ctx, tx, chunks); err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, `
			INSERT OR REPLACE INTO manifest (recording_id, content_hash, chunk_count)
			VALUES (?, ?, ?)`, recordingID, contentHash, len(chunks)); err != nil {
			return fmt.Errorf("failed to update manifest: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit replace: %w", err)
	}

	s.dropFromGraph(recordingID)
	for _, c := range chunks {
		s.addToGraph(c)
	}
	return nil
}

// RemoveChunks deletes a recording's chunks and manifest entry, reporting
// whether anything existed.
func (s *SQLiteStore) RemoveChunks(ctx context.Context, recordingID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.checkReady(); err != nil {
		return false, err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return false, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	res, err := tx.ExecContext(ctx, `DELETE FROM chunks WHERE recording_id = ?`, recordingID)
	if err != nil {
		return false, fmt.Errorf("failed to delete chunks: %w", err)
	}
	chunksDeleted, _ := res.RowsAffected()

	res, err = tx.ExecContext(ctx, `DELETE FROM manifest WHERE recording_id = ?`, recordingID)
	if err != nil {
		return false, fmt.Errorf("failed to delete manifest entry: %w", err)
	}
	manifestDeleted, _ := res.RowsAffected()

	if err := tx.Commit(); err != nil {
		return false, fmt.Errorf("failed to commit delete: %w", err)
	}

	s.dropFromGraph(recordingID)
	return chunksDeleted > 0 || manifestDeleted > 0, nil
}

// IsIndexed reports whether a manifest entry exists for the recording.
func (s *SQLiteStore) IsIndexed(ctx context.Context, recordingID string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if err := s.checkReady(); err != nil {
		return false, err
	}

	var one int
	err := s.db.QueryRowContext(ctx,
		`SELECT 1 FROM manifest WHERE recording_id = ?`, recordingID).Scan(&one)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to query manifest: %w", err)
	}
	return true, nil
}

// IndexedRecordingIDs returns all indexed recording IDs, sorted.
func (s *SQLiteStore) IndexedRecordingIDs(ctx context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if err := s.checkReady(); err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT recording_id FROM manifest ORDER BY recording_id`)
	if err != nil {
		return nil, fmt.Errorf("failed to query manifest: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan recording id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// ContentHash returns the manifest hash, with ok=false when unindexed.
func (s *SQLiteStore) ContentHash(ctx context.Context, recordingID string) (string, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if err := s.checkReady(); err != nil {
		return "", false, err
	}

	var hash string
	err := s.db.QueryRowContext(ctx,
		`SELECT content_hash FROM manifest WHERE recording_id = ?`, recordingID).Scan(&hash)
	if err == sql.ErrNoRows {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("failed to query content hash: %w", err)
	}
	return hash, true, nil
}

// UpdateManifest writes one manifest entry.
func (s *SQLiteStore) UpdateManifest(ctx context.Context, recordingID, contentHash string, chunkCount int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.checkReady(); err != nil {
		return err
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT OR REPLACE INTO manifest (recording_id, content_hash, chunk_count)
		VALUES (?, ?, ?)`, recordingID, contentHash, chunkCount)
	if err != nil {
		return fmt.Errorf("failed to update manifest: %w", err)
	}
	return nil
}

// Search returns the closest chunks by cosine similarity, best first.
func (s *SQLiteStore) Search(ctx context.Context, query []float32, opts SearchOptions) ([]*SearchResult, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if err := s.checkReady(); err != nil {
		return nil, err
	}
	if len(query) != s.dims {
		return nil, ErrDimensionMismatch{Expected: s.dims, Got: len(query)}
	}

	limit := opts.Limit
	if limit <= 0 {
		limit = DefaultSearchLimit
	}

	if len(s.idMap) == 0 {
		return []*SearchResult{}, nil
	}

	normalized := make([]float32, len(query))
	copy(normalized, query)
	normalizeInPlace(normalized)

	// Over-fetch by the orphan count so lazily deleted nodes cannot crowd
	// live chunks out of the result set.
	orphans := s.graph.Len() - len(s.idMap)
	k := limit + orphans
	if k > s.graph.Len() {
		k = s.graph.Len()
	}

	nodes := s.graph.Search(normalized, k)

	results := make([]*SearchResult, 0, limit)
	for _, node := range nodes {
		ref, live := s.keyMap[node.Key]
		if !live {
			continue
		}

		score := 1.0 - s.graph.Distance(normalized, node.Value)
		if score < opts.MinScore {
			continue
		}

		results = append(results, &SearchResult{
			RecordingID: ref.recordingID,
			Field:       ref.field,
			Text:        ref.text,
			Score:       score,
		})
		if len(results) == limit {
			break
		}
	}

	return results, nil
}

// Stats summarizes stored chunks, recordings and database size.
func (s *SQLiteStore) Stats(ctx context.Context) (*Stats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if err := s.checkReady(); err != nil {
		return nil, err
	}

	stats := &Stats{}
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM chunks`).Scan(&stats.TotalChunks); err != nil {
		return nil, fmt.Errorf("failed to count chunks: %w", err)
	}
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM manifest`).Scan(&stats.TotalRecordings); err != nil {
		return nil, fmt.Errorf("failed to count manifest entries: %w", err)
	}

	var pageCount, pageSize int64
	if err := s.db.QueryRowContext(ctx, `PRAGMA page_count`).Scan(&pageCount); err == nil {
		if err := s.db.QueryRowContext(ctx, `PRAGMA page_size`).Scan(&pageSize); err == nil {
			stats.TotalSizeBytes = pageCount * pageSize
		}
	}

	return stats, nil
}

// Clear wipes all chunks and manifest entries and resets the graph.
func (s *SQLiteStore) Clear(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.checkReady(); err != nil {
		return err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `DELETE FROM chunks`); err != nil {
		return fmt.Errorf("failed to clear chunks: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM manifest`); err != nil {
		return fmt.Errorf("failed to clear manifest: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit clear: %w", err)
	}

	s.resetGraph()
	return nil
}

// Close checkpoints and closes the database and releases the writer lock.
// Idempotent.
func (s *SQLiteStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true
	s.ready = false

	var err error
	if s.db != nil {
		_, _ = s.db.Exec("PRAGMA wal_checkpoint(TRUNCATE)")
		err = s.db.Close()
		s.db = nil
	}
	s.releaseLock()
	s.graph = nil

	return err
}

func (s *SQLiteStore) releaseLock() {
	if s.flk != nil {
		if err := s.flk.Unlock(); err != nil {
			slog.Warn("failed to release index lock", slog.String("error", err.Error()))
		}
		s.flk = nil
	}
}

func (s *SQLiteStore) checkReady() error {
	if s.closed {
		return fmt.Errorf("store is closed")
	}
	if !s.ready {
		return fmt.Errorf("store is not initialized")
	}
	return nil
}

func compositeKey(recordingID string, field note.Field, index int) string {
	return fmt.Sprintf("%s\x00%s\x00%d", recordingID, field, index)
}

// encodeVector serializes a vector as little-endian float32 bits.
func encodeVector(v []float32) []byte {
	buf := make([]byte, 4*len(v))
	for i, val := range v {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(val))
	}
	return buf
}

// decodeVector is the inverse of encodeVector.
func decodeVector(b []byte) ([]float32, error) {
	if len(b)%4 != 0 {
		return nil, fmt.Errorf("embedding blob length %d is not a multiple of 4", len(b))
	}
	v := make([]float32, len(b)/4)
	for i := range v {
		v[i] = math.Float32frombits(binary.LittleEndian.Uint32(b[i*4:]))
	}
	return v, nil
}

// normalizeInPlace scales a vector to unit length.
func normalizeInPlace(v []float32) {
	var sumSquares float64
	for _, val := range v {
		sumSquares += float64(val) * float64(val)
	}
	if sumSquares == 0 {
		return
	}
	inv := float32(1.0 / math.Sqrt(sumSquares))
	for i := range v {
		v[i] *= inv
	}
}

var _ VectorStore = (*SQLiteStore)(nil)
