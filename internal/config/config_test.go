package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultIsValid(t *testing.T) {
	require.NoError(t, Default().Validate())
}

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), FileName))
	require.NoError(t, err)

	def := Default()
	assert.Equal(t, def.Search, cfg.Search)
	assert.Equal(t, def.Embeddings, cfg.Embeddings)
}

func TestLoadOverridesDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, FileName)
	require.NoError(t, os.WriteFile(path, []byte(`
paths:
  notes_dir: /tmp/notes
search:
  chunk_size: 512
  max_results: 25
embeddings:
  provider: ollama
  model: nomic-embed-text
  dimensions: 768
watch:
  debounce: 5s
`), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "/tmp/notes", cfg.Paths.NotesDir)
	assert.Equal(t, 512, cfg.Search.ChunkSize)
	assert.Equal(t, 25, cfg.Search.MaxResults)
	assert.Equal(t, "ollama", cfg.Embeddings.Provider)
	assert.Equal(t, "nomic-embed-text", cfg.Embeddings.Model)
	assert.Equal(t, 768, cfg.Embeddings.Dimensions)
	assert.Equal(t, 5*time.Second, cfg.Watch.Debounce)

	// Unset fields keep their defaults.
	assert.Equal(t, 256, cfg.Search.ChunkOverlap)
	assert.Equal(t, "http://localhost:11434", cfg.Embeddings.OllamaHost)
}

func TestLoadRelativeIndexDirAnchorsAtNotesDir(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, FileName)
	require.NoError(t, os.WriteFile(path, []byte(`
paths:
  notes_dir: /tmp/notes
  index_dir: .cache/index
`), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join("/tmp/notes", ".cache/index"), cfg.Paths.IndexDir)
}

func TestLoadInvalidYAML(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, FileName)
	require.NoError(t, os.WriteFile(path, []byte("search: [not a map"), 0o644))

	_, err := Load(path)
	assert.Error(t, err)
}

func TestLoadFromDirPinsNotesDir(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, FileName), []byte(`
paths:
  notes_dir: /somewhere/else
`), 0o644))

	cfg, err := LoadFromDir(dir)
	require.NoError(t, err)
	assert.Equal(t, dir, cfg.Paths.NotesDir)
}

func TestValidateRejectsBadValues(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Config)
	}{
		{"empty notes dir", func(c *Config) { c.Paths.NotesDir = "" }},
		{"zero chunk size", func(c *Config) { c.Search.ChunkSize = 0 }},
		{"negative overlap", func(c *Config) { c.Search.ChunkOverlap = -1 }},
		{"zero max results", func(c *Config) { c.Search.MaxResults = 0 }},
		{"min score above one", func(c *Config) { c.Search.MinScore = 1.5 }},
		{"unknown provider", func(c *Config) { c.Embeddings.Provider = "openai" }},
		{"zero dimensions", func(c *Config) { c.Embeddings.Dimensions = 0 }},
		{"negative debounce", func(c *Config) { c.Watch.Debounce = -time.Second }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := Default()
			tc.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestSaveRoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, FileName)

	cfg := Default()
	cfg.Search.ChunkSize = 1024
	require.NoError(t, cfg.Save(path))

	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 1024, loaded.Search.ChunkSize)
}
