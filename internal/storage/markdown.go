// Package storage persists recordings as markdown files with YAML front
// matter, one file per recording, inside a single notes directory. The audio
// itself lives next to the markdown and is referenced by path.
package storage

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"

	"github.com/murmurnotes/murmur/internal/note"
)

const markdownExt = ".md"

// frontMatter is the YAML header of a recording file.
type frontMatter struct {
	ID        string    `yaml:"id"`
	Title     string    `yaml:"title"`
	Tags      []string  `yaml:"tags,omitempty"`
	CreatedAt time.Time `yaml:"created_at,omitempty"`
	UpdatedAt time.Time `yaml:"updated_at,omitempty"`
	Duration  string    `yaml:"duration,omitempty"`
	Audio     string    `yaml:"audio,omitempty"`
}

// MarkdownStore is a file-backed recording store. Each recording is
// <id>.md: YAML front matter followed by Summary, Context and Transcript
// sections. Writes go through a temp file and rename, so readers never see a
// half-written recording.
type MarkdownStore struct {
	dir string
	mu  sync.RWMutex
}

// NewMarkdownStore creates the notes directory if needed.
func NewMarkdownStore(dir string) (*MarkdownStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create notes directory: %w", err)
	}
	return &MarkdownStore{dir: dir}, nil
}

// Dir returns the notes directory.
func (s *MarkdownStore) Dir() string {
	return s.dir
}

// GetRecordings reads every markdown file in the notes directory. A file
// that fails to parse is logged and skipped; one corrupt note must not hide
// the rest of the corpus.
func (s *MarkdownStore) GetRecordings(ctx context.Context) ([]*note.Recording, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read notes directory: %w", err)
	}

	recordings := make([]*note.Recording, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), markdownExt) {
			continue
		}
		if strings.HasPrefix(entry.Name(), ".") {
			continue
		}

		rec, err := s.readFile(filepath.Join(s.dir, entry.Name()))
		if err != nil {
			slog.Warn("skipping unreadable recording file",
				slog.String("file", entry.Name()),
				slog.String("error", err.Error()))
			continue
		}
		recordings = append(recordings, rec)
	}
	return recordings, nil
}

// GetRecording loads one recording by ID.
func (s *MarkdownStore) GetRecording(ctx context.Context, id string) (*note.Recording, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, err := s.readFile(s.pathFor(id))
	if os.IsNotExist(err) {
		return nil, fmt.Errorf("recording %s does not exist", id)
	}
	return rec, err
}

// SaveRecording writes a recording, assigning an ID and creation time when
// missing and always refreshing the update time.
func (s *MarkdownStore) SaveRecording(ctx context.Context, rec *note.Recording) error {
	if rec == nil {
		return fmt.Errorf("recording is nil")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = now
	}
	rec.UpdatedAt = now

	data, err := encodeRecording(rec)
	if err != nil {
		return err
	}

	path := s.pathFor(rec.ID)
	tmp, err := os.CreateTemp(s.dir, ".murmur-*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpPath := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpPath)
		return fmt.Errorf("failed to write recording: %w", err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("failed to close temp file: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("failed to replace recording file: %w", err)
	}

	rec.FileSize = int64(len(data))
	return nil
}

// DeleteRecording removes a recording file. Deleting a missing recording is
// not an error.
func (s *MarkdownStore) DeleteRecording(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	err := os.Remove(s.pathFor(id))
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to delete recording %s: %w", id, err)
	}
	return nil
}

func (s *MarkdownStore) pathFor(id string) string {
	return filepath.Join(s.dir, id+markdownExt)
}

func (s *MarkdownStore) readFile(path string) (*note.Recording, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	rec, err := decodeRecording(data)
	if err != nil {
		return nil, err
	}
	if rec.ID == "" {
		// Fall back to the filename so unmanaged files still index.
		rec.ID = strings.TrimSuffix(filepath.Base(path), markdownExt)
	}

	if info, err := os.Stat(path); err == nil {
		rec.FileSize = info.Size()
		if rec.UpdatedAt.IsZero() {
			rec.UpdatedAt = info.ModTime()
		}
	}
	return rec, nil
}

// encodeRecording renders front matter plus the three body sections. Empty
// sections are omitted.
func encodeRecording(rec *note.Recording) ([]byte, error) {
	fm := frontMatter{
		ID:        rec.ID,
		Title:     rec.Title,
		Tags:      rec.Tags,
		CreatedAt: rec.CreatedAt,
		UpdatedAt: rec.UpdatedAt,
		Audio:     rec.AudioPath,
	}
	if rec.Duration > 0 {
		fm.Duration = rec.Duration.String()
	}

	head, err := yaml.Marshal(fm)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal front matter: %w", err)
	}

	var b strings.Builder
	b.WriteString("---\n")
	b.Write(head)
	b.WriteString("---\n")

	writeSection := func(name, text string) {
		if strings.TrimSpace(text) == "" {
			return
		}
		b.WriteString("\n## ")
		b.WriteString(name)
		b.WriteString("\n\n")
		b.WriteString(strings.TrimRight(text, "\n"))
		b.WriteString("\n")
	}
	writeSection("Summary", rec.Summary)
	writeSection("Context", rec.Context)
	writeSection("Transcript", rec.Transcript)

	return []byte(b.String()), nil
}

// decodeRecording parses a recording file: front matter between "---" lines,
// then "## Summary", "## Context" and "## Transcript" sections in any order.
func decodeRecording(data []byte) (*note.Recording, error) {
	text := string(data)

	var fm frontMatter
	body := text
	if strings.HasPrefix(text, "---\n") {
		rest := text[len("---\n"):]
		end := strings.Index(rest, "\n---")
		if end < 0 {
			return nil, fmt.Errorf("unterminated front matter")
		}
		if err := yaml.Unmarshal([]byte(rest[:end]), &fm); err != nil {
			return nil, fmt.Errorf("invalid front matter: %w", err)
		}
		body = rest[end+len("\n---"):]
		body = strings.TrimPrefix(body, "\n")
	}

	rec := &note.Recording{
		ID:        fm.ID,
		Title:     fm.Title,
		Tags:      fm.Tags,
		CreatedAt: fm.CreatedAt,
		UpdatedAt: fm.UpdatedAt,
		AudioPath: fm.Audio,
	}
	if fm.Duration != "" {
		d, err := time.ParseDuration(fm.Duration)
		if err != nil {
			return nil, fmt.Errorf("invalid duration %q: %w", fm.Duration, err)
		}
		rec.Duration = d
	}

	sections := splitSections(body)
	rec.Summary = sections["summary"]
	rec.Context = sections["context"]
	rec.Transcript = sections["transcript"]
	return rec, nil
}

// splitSections maps lowercase "## Heading" names to their trimmed bodies.
func splitSections(body string) map[string]string {
	sections := make(map[string]string)
	var current string
	var buf strings.Builder

	flush := func() {
		if current != "" {
			sections[current] = strings.TrimSpace(buf.String())
		}
		buf.Reset()
	}

	for _, line := range strings.Split(body, "\n") {
		if strings.HasPrefix(line, "## ") {
			flush()
			current = strings.ToLower(strings.TrimSpace(line[3:]))
			continue
		}
		if current != "" {
			buf.WriteString(line)
			buf.WriteString("\n")
		}
	}
	flush()
	return sections
}

var _ note.Storage = (*MarkdownStore)(nil)
