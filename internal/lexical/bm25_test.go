package lexical

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/murmurnotes/murmur/internal/note"
)

func testRecordings() []*note.Recording {
	return []*note.Recording{
		{
			ID:         "rec-coffee",
			Title:      "Coffee shop ideas",
			Summary:    "Brainstorm about opening a small espresso bar",
			Transcript: "I keep thinking about the espresso machine and the pastry case",
			Tags:       []string{"business", "coffee"},
		},
		{
			ID:         "rec-garden",
			Title:      "Garden planning",
			Summary:    "Notes on spring planting",
			Transcript: "Tomatoes go in the south bed, basil next to them",
			Tags:       []string{"garden"},
		},
		{
			ID:         "rec-meeting",
			Title:      "Team standup",
			Summary:    "Quick sync on the release",
			Transcript: "We agreed to ship on Friday if the tests pass",
			Tags:       []string{"work"},
		},
	}
}

func builtIndex(t *testing.T) *Index {
	t.Helper()
	x := NewIndex()
	require.NoError(t, x.Build(context.Background(), testRecordings()))
	t.Cleanup(func() { _ = x.Close() })
	return x
}

func TestIndexSearchFindsKeyword(t *testing.T) {
	x := builtIndex(t)

	results, err := x.Search(context.Background(), "espresso", 10)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "rec-coffee", results[0].RecordingID)
	assert.Equal(t, "Coffee shop ideas", results[0].Title)
	assert.Positive(t, results[0].Score)
}

func TestIndexSearchTitleOutranksTranscript(t *testing.T) {
	x := NewIndex()
	defer func() { _ = x.Close() }()

	require.NoError(t, x.Build(context.Background(), []*note.Recording{
		{ID: "in-title", Title: "Budget review"},
		{ID: "in-body", Title: "Misc notes", Transcript: "something about the budget"},
	}))

	results, err := x.Search(context.Background(), "budget", 10)
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, "in-title", results[0].RecordingID)
}

func TestIndexSearchEmptyQuery(t *testing.T) {
	x := builtIndex(t)

	results, err := x.Search(context.Background(), "   ", 10)
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestIndexSearchLimit(t *testing.T) {
	x := NewIndex()
	defer func() { _ = x.Close() }()

	recs := []*note.Recording{
		{ID: "a", Transcript: "shared keyword apple"},
		{ID: "b", Transcript: "shared keyword apple pie"},
		{ID: "c", Transcript: "shared keyword apple tart"},
	}
	require.NoError(t, x.Build(context.Background(), recs))

	results, err := x.Search(context.Background(), "apple", 2)
	require.NoError(t, err)
	assert.Len(t, results, 2)
}

func TestIndexSearchBeforeBuildFails(t *testing.T) {
	x := NewIndex()
	defer func() { _ = x.Close() }()

	_, err := x.Search(context.Background(), "anything", 10)
	assert.Error(t, err)
}

func TestIndexRebuildReplacesContents(t *testing.T) {
	x := builtIndex(t)
	ctx := context.Background()

	require.NoError(t, x.Build(ctx, []*note.Recording{
		{ID: "only", Title: "The only note", Transcript: "nothing about coffee here, just knitting"},
	}))

	assert.Equal(t, 1, x.DocCount())

	results, err := x.Search(ctx, "espresso", 10)
	require.NoError(t, err)
	assert.Empty(t, results)

	results, err = x.Search(ctx, "knitting", 10)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "only", results[0].RecordingID)
}

func TestIndexStaleness(t *testing.T) {
	x := NewIndex()
	defer func() { _ = x.Close() }()

	assert.True(t, x.NeedsRebuild())

	require.NoError(t, x.Build(context.Background(), testRecordings()))
	assert.False(t, x.NeedsRebuild())

	x.Invalidate()
	assert.True(t, x.NeedsRebuild())
	assert.True(t, x.BuiltAt().IsZero())

	require.NoError(t, x.Build(context.Background(), testRecordings()))
	assert.False(t, x.NeedsRebuild())
}

func TestIndexClear(t *testing.T) {
	x := builtIndex(t)

	x.Clear()
	assert.Zero(t, x.DocCount())
	assert.True(t, x.NeedsRebuild())
}

func TestIndexCloseIdempotent(t *testing.T) {
	x := builtIndex(t)
	require.NoError(t, x.Close())
	require.NoError(t, x.Close())

	_, err := x.Search(context.Background(), "anything", 10)
	assert.Error(t, err)
}
