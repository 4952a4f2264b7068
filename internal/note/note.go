// Package note defines the recording model shared by the storage and index
// layers, plus the content fingerprint used for incremental re-indexing.
package note

import (
	"context"
	"time"
)

// Field identifies one searchable field of a recording.
type Field string

const (
	FieldTitle      Field = "title"
	FieldSummary    Field = "summary"
	FieldContext    Field = "context"
	FieldTags       Field = "tags"
	FieldTranscript Field = "transcript"
)

// SearchableFields lists the fields that participate in hashing and chunking,
// in the canonical order both use.
var SearchableFields = []Field{
	FieldTitle,
	FieldSummary,
	FieldContext,
	FieldTags,
	FieldTranscript,
}

// Recording is a single voice note. Title, Summary, Context, Tags and
// Transcript are searchable content; everything else is metadata and never
// influences the content hash.
type Recording struct {
	ID         string
	Title      string
	Transcript string
	Summary    string
	Context    string
	Tags       []string

	CreatedAt time.Time
	UpdatedAt time.Time
	Duration  time.Duration
	AudioPath string
	FileSize  int64
}

// FieldText returns the text of a searchable field. Tags are joined with a
// comma separator for chunking purposes.
func (r *Recording) FieldText(f Field) string {
	switch f {
	case FieldTitle:
		return r.Title
	case FieldSummary:
		return r.Summary
	case FieldContext:
		return r.Context
	case FieldTags:
		return joinTags(r.Tags)
	case FieldTranscript:
		return r.Transcript
	default:
		return ""
	}
}

// Storage provides the recording corpus. The index layer treats it as an
// external collaborator and only ever asks for the full snapshot.
type Storage interface {
	// GetRecordings returns the full current corpus. Ordering is whatever the
	// implementation produces; callers must not rely on it being stable.
	GetRecordings(ctx context.Context) ([]*Recording, error)
}

func joinTags(tags []string) string {
	out := ""
	for i, t := range tags {
		if i > 0 {
			out += ", "
		}
		out += t
	}
	return out
}
