package mcp

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/murmurnotes/murmur/internal/chunk"
	"github.com/murmurnotes/murmur/internal/embed"
	"github.com/murmurnotes/murmur/internal/index"
	"github.com/murmurnotes/murmur/internal/lexical"
	"github.com/murmurnotes/murmur/internal/note"
	"github.com/murmurnotes/murmur/internal/store"
)

type staticStorage struct {
	recordings []*note.Recording
}

func (s *staticStorage) GetRecordings(ctx context.Context) ([]*note.Recording, error) {
	return s.recordings, nil
}

func newTestServer(t *testing.T, recs ...*note.Recording) *Server {
	t.Helper()

	storage := &staticStorage{recordings: recs}

	vs, err := store.NewSQLiteStore(store.Config{Dimensions: embed.StaticDimensions})
	require.NoError(t, err)
	require.NoError(t, vs.Initialize(context.Background()))

	svc, err := index.NewService(index.Config{
		Storage:  storage,
		Store:    vs,
		Chunker:  chunk.New(chunk.Config{}),
		Embedder: embed.NewStaticEmbedder(),
		Lexical:  lexical.NewManager(storage, lexical.NewIndex()),
		Hasher:   note.NewHasher(),
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = svc.Dispose() })

	srv, err := NewServer(svc)
	require.NoError(t, err)
	return srv
}

func TestNewServerRequiresService(t *testing.T) {
	_, err := NewServer(nil)
	assert.Error(t, err)
}

func TestSyncThenSemanticSearch(t *testing.T) {
	srv := newTestServer(t, &note.Recording{
		ID:         "rec-1",
		Title:      "Bread notes",
		Transcript: "sourdough starter needs feeding twice a day",
	})
	ctx := context.Background()

	_, syncOut, err := srv.handleSync(ctx, nil, SyncInput{})
	require.NoError(t, err)
	assert.Equal(t, "idle", syncOut.Status)
	assert.Equal(t, 1, syncOut.TotalToIndex)
	assert.Equal(t, 1, syncOut.IndexedCount)

	_, out, err := srv.handleSearch(ctx, nil, SearchInput{
		Query: "sourdough starter needs feeding twice a day",
	})
	require.NoError(t, err)
	require.NotEmpty(t, out.Results)
	assert.Equal(t, "rec-1", out.Results[0].RecordingID)
	assert.InDelta(t, 1.0, out.Results[0].Score, 1e-3)
}

func TestKeywordSearchMode(t *testing.T) {
	srv := newTestServer(t, &note.Recording{
		ID:         "rec-1",
		Title:      "Bread notes",
		Transcript: "sourdough starter needs feeding",
	})
	ctx := context.Background()

	_, _, err := srv.handleSync(ctx, nil, SyncInput{})
	require.NoError(t, err)

	_, out, err := srv.handleSearch(ctx, nil, SearchInput{Query: "sourdough", Mode: "keyword"})
	require.NoError(t, err)
	require.Len(t, out.Results, 1)
	assert.Equal(t, "rec-1", out.Results[0].RecordingID)
	assert.Equal(t, "Bread notes", out.Results[0].Title)
}

func TestSearchRejectsEmptyQuery(t *testing.T) {
	srv := newTestServer(t)
	_, _, err := srv.handleSearch(context.Background(), nil, SearchInput{})
	assert.Error(t, err)
}

func TestSearchRejectsUnknownMode(t *testing.T) {
	srv := newTestServer(t)
	_, _, err := srv.handleSearch(context.Background(), nil, SearchInput{Query: "x", Mode: "hybrid"})
	assert.Error(t, err)
}

func TestForceSyncReindexesEverything(t *testing.T) {
	srv := newTestServer(t, &note.Recording{ID: "rec-1", Transcript: "words"})
	ctx := context.Background()

	_, _, err := srv.handleSync(ctx, nil, SyncInput{})
	require.NoError(t, err)

	_, out, err := srv.handleSync(ctx, nil, SyncInput{Force: true})
	require.NoError(t, err)
	assert.Equal(t, 1, out.IndexedCount, "force sync must treat every note as unseen")
}

func TestIndexStatus(t *testing.T) {
	srv := newTestServer(t, &note.Recording{ID: "rec-1", Transcript: "some words"})
	ctx := context.Background()

	_, _, err := srv.handleSync(ctx, nil, SyncInput{})
	require.NoError(t, err)

	_, out, err := srv.handleStatus(ctx, nil, StatusInput{})
	require.NoError(t, err)
	assert.Equal(t, "idle", out.Status)
	assert.Empty(t, out.ErrorMessage)
	assert.Equal(t, 1, out.TotalRecordings)
	assert.Positive(t, out.TotalChunks)
	assert.Equal(t, 1, out.KeywordDocs)
}
