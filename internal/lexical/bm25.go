// Package lexical provides keyword search over recordings using a BM25
// scored in-memory index. The index is cheap to build for a personal corpus,
// so it is rebuilt wholesale whenever the underlying recordings change
// instead of being patched incrementally.
package lexical

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/analysis/lang/en"
	"github.com/blevesearch/bleve/v2/mapping"
	"github.com/blevesearch/bleve/v2/search/query"

	"github.com/murmurnotes/murmur/internal/note"
)

// DefaultSearchLimit caps keyword results when the caller does not set one.
const DefaultSearchLimit = 10

// Field boosts: a hit in the title outranks the same hit in the transcript.
const (
	titleBoost = 2.0
	tagsBoost  = 1.5
)

// Result is one BM25 scored keyword hit.
type Result struct {
	RecordingID string
	Score       float64
	Title       string
	// Fragment is a highlighted snippet from the best matching field.
	Fragment string
}

// lexicalDoc is the bleve document shape for one recording.
type lexicalDoc struct {
	Title      string `json:"title"`
	Summary    string `json:"summary"`
	Context    string `json:"context"`
	Tags       string `json:"tags"`
	Transcript string `json:"transcript"`
}

var searchFields = []string{"title", "summary", "context", "tags", "transcript"}

// Index is the rebuilt-wholesale BM25 index. A Build swaps in a fresh bleve
// index under the lock; readers either see the old complete index or the new
// one, never a half-built state.
type Index struct {
	mu      sync.RWMutex
	idx     bleve.Index
	built   bool
	builtAt time.Time
	closed  bool
}

// NewIndex creates an empty, unbuilt index.
func NewIndex() *Index {
	return &Index{}
}

func newIndexMapping() (*mapping.IndexMappingImpl, error) {
	m := bleve.NewIndexMapping()
	m.DefaultAnalyzer = en.AnalyzerName

	doc := bleve.NewDocumentMapping()
	for _, field := range searchFields {
		fm := bleve.NewTextFieldMapping()
		fm.Analyzer = en.AnalyzerName
		// Stored with term vectors so hits can carry highlighted fragments.
		fm.Store = true
		fm.IncludeTermVectors = true
		doc.AddFieldMappingsAt(field, fm)
	}
	m.DefaultMapping = doc

	if err := m.Validate(); err != nil {
		return nil, fmt.Errorf("invalid index mapping: %w", err)
	}
	return m, nil
}

// Build replaces the index contents with the given recordings.
func (x *Index) Build(ctx context.Context, recordings []*note.Recording) error {
	m, err := newIndexMapping()
	if err != nil {
		return err
	}

	idx, err := bleve.NewMemOnly(m)
	if err != nil {
		return fmt.Errorf("failed to create index: %w", err)
	}

	batch := idx.NewBatch()
	for _, rec := range recordings {
		doc := lexicalDoc{
			Title:      rec.Title,
			Summary:    rec.Summary,
			Context:    rec.Context,
			Tags:       strings.Join(rec.Tags, " "),
			Transcript: rec.Transcript,
		}
		if err := batch.Index(rec.ID, doc); err != nil {
			_ = idx.Close()
			return fmt.Errorf("failed to index recording %s: %w", rec.ID, err)
		}
	}
	if err := idx.Batch(batch); err != nil {
		_ = idx.Close()
		return fmt.Errorf("failed to execute index batch: %w", err)
	}

	x.mu.Lock()
	defer x.mu.Unlock()

	if x.closed {
		_ = idx.Close()
		return fmt.Errorf("index is closed")
	}

	old := x.idx
	x.idx = idx
	x.built = true
	x.builtAt = time.Now()

	if old != nil {
		_ = old.Close()
	}
	return nil
}

// Search returns BM25 ranked hits for the query, best first. An empty query
// yields no results. Searching an unbuilt index is an error; callers go
// through the Manager, which builds first.
func (x *Index) Search(ctx context.Context, queryStr string, limit int) ([]*Result, error) {
	x.mu.RLock()
	defer x.mu.RUnlock()

	if x.closed {
		return nil, fmt.Errorf("index is closed")
	}
	if !x.built {
		return nil, fmt.Errorf("index has not been built")
	}

	if strings.TrimSpace(queryStr) == "" {
		return []*Result{}, nil
	}
	if limit <= 0 {
		limit = DefaultSearchLimit
	}

	// One match query per field, boosted, combined as a disjunction so a hit
	// in any field qualifies.
	subs := make([]query.Query, 0, len(searchFields))
	for _, field := range searchFields {
		mq := bleve.NewMatchQuery(queryStr)
		mq.SetField(field)
		switch field {
		case "title":
			mq.SetBoost(titleBoost)
		case "tags":
			mq.SetBoost(tagsBoost)
		}
		subs = append(subs, mq)
	}

	req := bleve.NewSearchRequest(bleve.NewDisjunctionQuery(subs...))
	req.Size = limit
	req.Fields = []string{"title"}
	req.Highlight = bleve.NewHighlight()

	res, err := x.idx.SearchInContext(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("keyword search failed: %w", err)
	}

	results := make([]*Result, 0, len(res.Hits))
	for _, hit := range res.Hits {
		r := &Result{
			RecordingID: hit.ID,
			Score:       hit.Score,
		}
		if title, ok := hit.Fields["title"].(string); ok {
			r.Title = title
		}
		r.Fragment = firstFragment(hit.Fragments)
		results = append(results, r)
	}
	return results, nil
}

// firstFragment picks one highlighted snippet, preferring longer body fields
// over the title.
func firstFragment(fragments map[string][]string) string {
	for _, field := range []string{"transcript", "summary", "context", "tags", "title"} {
		if frags := fragments[field]; len(frags) > 0 {
			return frags[0]
		}
	}
	return ""
}

// DocCount returns the number of indexed recordings.
func (x *Index) DocCount() int {
	x.mu.RLock()
	defer x.mu.RUnlock()

	if x.closed || !x.built {
		return 0
	}
	n, err := x.idx.DocCount()
	if err != nil {
		return 0
	}
	return int(n)
}

// NeedsRebuild reports whether the index must be (re)built before searching.
func (x *Index) NeedsRebuild() bool {
	x.mu.RLock()
	defer x.mu.RUnlock()
	return !x.built
}

// Invalidate discards the index contents and resets the build timestamp,
// marking it stale. The next use rebuilds lazily.
func (x *Index) Invalidate() {
	x.Clear()
}

// BuiltAt returns when the current contents were built; zero when unbuilt.
func (x *Index) BuiltAt() time.Time {
	x.mu.RLock()
	defer x.mu.RUnlock()
	return x.builtAt
}

// Clear discards the index contents.
func (x *Index) Clear() {
	x.mu.Lock()
	defer x.mu.Unlock()

	if x.idx != nil {
		_ = x.idx.Close()
		x.idx = nil
	}
	x.built = false
	x.builtAt = time.Time{}
}

// Close releases the index. Idempotent.
func (x *Index) Close() error {
	x.mu.Lock()
	defer x.mu.Unlock()

	if x.closed {
		return nil
	}
	x.closed = true

	if x.idx != nil {
		err := x.idx.Close()
		x.idx = nil
		return err
	}
	return nil
}
