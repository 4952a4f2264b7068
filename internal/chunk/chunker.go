// Package chunk splits a recording's searchable fields into embeddable text
// spans. Short fields map to a single chunk; long free-text fields are
// windowed with bounded size and overlap.
package chunk

import (
	"strings"
	"unicode"

	"github.com/murmurnotes/murmur/internal/note"
)

// Window defaults, expressed in characters. Derived from the usual RAG
// guidance of ~512 tokens per chunk at roughly 4 characters per token.
const (
	DefaultMaxChunkChars = 2048
	DefaultOverlapChars  = 256
)

// Candidate is a pre-embedding chunk: one bounded span of text from one
// searchable field. Index is the zero-based position within that field.
type Candidate struct {
	Field note.Field
	Index int
	Text  string
}

// Config controls windowing of long fields.
type Config struct {
	// MaxChunkChars bounds the size of a single chunk.
	MaxChunkChars int
	// OverlapChars is how much consecutive windows overlap.
	OverlapChars int
}

// DefaultConfig returns the standard chunking configuration.
func DefaultConfig() Config {
	return Config{
		MaxChunkChars: DefaultMaxChunkChars,
		OverlapChars:  DefaultOverlapChars,
	}
}

// Chunker splits recordings into candidates field by field.
type Chunker struct {
	config Config
}

// New creates a chunker. Zero or negative config values fall back to defaults;
// overlap is clamped below the chunk size so windows always advance.
func New(cfg Config) *Chunker {
	if cfg.MaxChunkChars <= 0 {
		cfg.MaxChunkChars = DefaultMaxChunkChars
	}
	if cfg.OverlapChars < 0 {
		cfg.OverlapChars = DefaultOverlapChars
	}
	if cfg.OverlapChars >= cfg.MaxChunkChars {
		cfg.OverlapChars = cfg.MaxChunkChars / 4
	}
	return &Chunker{config: cfg}
}

// ChunkRecording splits every searchable field of rec. A recording whose
// searchable fields are all empty yields an empty slice, not an error.
func (c *Chunker) ChunkRecording(rec *note.Recording) ([]Candidate, error) {
	var out []Candidate
	for _, field := range note.SearchableFields {
		text := strings.TrimSpace(rec.FieldText(field))
		if text == "" {
			continue
		}
		for i, span := range c.split(field, text) {
			out = append(out, Candidate{Field: field, Index: i, Text: span})
		}
	}
	return out, nil
}

// split applies the per-field policy: title and tags are short by nature and
// become a single chunk, the free-text fields are windowed.
func (c *Chunker) split(field note.Field, text string) []string {
	switch field {
	case note.FieldTitle, note.FieldTags:
		return []string{truncateRunes(text, c.config.MaxChunkChars)}
	default:
		return c.window(text)
	}
}

// window slides a bounded window over text, preferring to break at the last
// whitespace inside the window so words stay intact.
func (c *Chunker) window(text string) []string {
	runes := []rune(text)
	size := c.config.MaxChunkChars
	if len(runes) <= size {
		return []string{text}
	}

	step := size - c.config.OverlapChars
	var spans []string
	for start := 0; start < len(runes); {
		end := start + size
		if end >= len(runes) {
			spans = append(spans, strings.TrimSpace(string(runes[start:])))
			break
		}

		// Break at whitespace when one exists in the back half of the window.
		cut := end
		for i := end; i > start+size/2; i-- {
			if unicode.IsSpace(runes[i-1]) {
				cut = i
				break
			}
		}

		span := strings.TrimSpace(string(runes[start:cut]))
		if span != "" {
			spans = append(spans, span)
		}

		next := cut - c.config.OverlapChars
		if next <= start {
			next = start + step
		}
		start = next
	}
	return spans
}

func truncateRunes(s string, max int) string {
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max])
}
