// Package config loads and validates the application configuration from a
// YAML file, layering file values over built-in defaults.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// FileName is the config file looked up inside the notes directory.
const FileName = ".murmur.yaml"

// Config is the complete application configuration.
type Config struct {
	Paths      PathsConfig      `yaml:"paths"`
	Search     SearchConfig     `yaml:"search"`
	Embeddings EmbeddingsConfig `yaml:"embeddings"`
	Server     ServerConfig     `yaml:"server"`
	Watch      WatchConfig      `yaml:"watch"`
}

// PathsConfig locates the notes corpus and the index data.
type PathsConfig struct {
	// NotesDir holds the markdown recordings. Defaults to ~/murmur.
	NotesDir string `yaml:"notes_dir"`
	// IndexDir holds the vector index database. Defaults to NotesDir/.index.
	IndexDir string `yaml:"index_dir"`
}

// SearchConfig tunes chunking and result shaping.
type SearchConfig struct {
	ChunkSize    int     `yaml:"chunk_size"`
	ChunkOverlap int     `yaml:"chunk_overlap"`
	MaxResults   int     `yaml:"max_results"`
	MinScore     float64 `yaml:"min_score"`
}

// EmbeddingsConfig selects and configures the embedding provider.
type EmbeddingsConfig struct {
	// Provider is "static" (default, no external dependency) or "ollama".
	Provider   string `yaml:"provider"`
	Model      string `yaml:"model"`
	Dimensions int    `yaml:"dimensions"`
	// OllamaHost is the Ollama API endpoint (default: http://localhost:11434).
	OllamaHost string `yaml:"ollama_host"`
	CacheSize  int    `yaml:"cache_size"`
	// Timeout bounds a single remote embedding request.
	Timeout time.Duration `yaml:"timeout"`
}

// ServerConfig configures the MCP server and logging.
type ServerConfig struct {
	LogLevel string `yaml:"log_level"`
}

// WatchConfig configures the filesystem watcher.
type WatchConfig struct {
	// Debounce is how long to wait after the last file event before syncing.
	Debounce time.Duration `yaml:"debounce"`
}

// Default returns the built-in configuration.
func Default() *Config {
	home, err := os.UserHomeDir()
	if err != nil {
		home = "."
	}
	notesDir := filepath.Join(home, "murmur")

	return &Config{
		Paths: PathsConfig{
			NotesDir: notesDir,
			IndexDir: filepath.Join(notesDir, ".index"),
		},
		Search: SearchConfig{
			ChunkSize:    2048,
			ChunkOverlap: 256,
			MaxResults:   10,
			MinScore:     0.0,
		},
		Embeddings: EmbeddingsConfig{
			Provider:   "static",
			Dimensions: 256,
			OllamaHost: "http://localhost:11434",
			CacheSize:  1000,
			Timeout:    30 * time.Second,
		},
		Server: ServerConfig{
			LogLevel: "info",
		},
		Watch: WatchConfig{
			Debounce: 2 * time.Second,
		},
	}
}

// Load reads the config file at path over the defaults. A missing file is
// not an error; defaults apply.
func Load(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return cfg, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read config %s: %w", path, err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
	}

	// A relative index dir is anchored at the notes dir.
	if cfg.Paths.IndexDir != "" && !filepath.IsAbs(cfg.Paths.IndexDir) {
		cfg.Paths.IndexDir = filepath.Join(cfg.Paths.NotesDir, cfg.Paths.IndexDir)
	}
	if cfg.Paths.IndexDir == "" {
		cfg.Paths.IndexDir = filepath.Join(cfg.Paths.NotesDir, ".index")
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadFromDir loads NotesDir/.murmur.yaml, pinning NotesDir to the given
// directory regardless of what the file says.
func LoadFromDir(dir string) (*Config, error) {
	cfg, err := Load(filepath.Join(dir, FileName))
	if err != nil {
		return nil, err
	}
	cfg.Paths.NotesDir = dir
	if !filepath.IsAbs(cfg.Paths.IndexDir) {
		cfg.Paths.IndexDir = filepath.Join(dir, cfg.Paths.IndexDir)
	}
	return cfg, nil
}

// Save writes the config as YAML.
func (c *Config) Save(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write config %s: %w", path, err)
	}
	return nil
}

// Validate rejects configurations that cannot work.
func (c *Config) Validate() error {
	if c.Paths.NotesDir == "" {
		return fmt.Errorf("paths.notes_dir must not be empty")
	}
	if c.Search.ChunkSize <= 0 {
		return fmt.Errorf("search.chunk_size must be positive, got %d", c.Search.ChunkSize)
	}
	if c.Search.ChunkOverlap < 0 {
		return fmt.Errorf("search.chunk_overlap must not be negative, got %d", c.Search.ChunkOverlap)
	}
	if c.Search.MaxResults <= 0 {
		return fmt.Errorf("search.max_results must be positive, got %d", c.Search.MaxResults)
	}
	if c.Search.MinScore < 0 || c.Search.MinScore > 1 {
		return fmt.Errorf("search.min_score must be in [0, 1], got %g", c.Search.MinScore)
	}
	switch c.Embeddings.Provider {
	case "", "static", "ollama":
	default:
		return fmt.Errorf("embeddings.provider must be static or ollama, got %q", c.Embeddings.Provider)
	}
	if c.Embeddings.Dimensions <= 0 {
		return fmt.Errorf("embeddings.dimensions must be positive, got %d", c.Embeddings.Dimensions)
	}
	if c.Watch.Debounce < 0 {
		return fmt.Errorf("watch.debounce must not be negative, got %s", c.Watch.Debounce)
	}
	return nil
}
