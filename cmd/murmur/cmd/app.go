package cmd

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/murmurnotes/murmur/internal/chunk"
	"github.com/murmurnotes/murmur/internal/config"
	"github.com/murmurnotes/murmur/internal/embed"
	"github.com/murmurnotes/murmur/internal/index"
	"github.com/murmurnotes/murmur/internal/lexical"
	"github.com/murmurnotes/murmur/internal/note"
	"github.com/murmurnotes/murmur/internal/storage"
	"github.com/murmurnotes/murmur/internal/store"
)

const vectorDBFile = "vectors.db"

// app wires the full stack for one command invocation.
type app struct {
	cfg     *config.Config
	storage *storage.MarkdownStore
	svc     *index.Service
}

// openApp loads config from the notes directory and assembles the service.
func openApp(ctx context.Context) (*app, error) {
	cfg, err := config.LoadFromDir(resolveNotesDir())
	if err != nil {
		return nil, err
	}

	notes, err := storage.NewMarkdownStore(cfg.Paths.NotesDir)
	if err != nil {
		return nil, err
	}

	embedder, err := embed.NewFromConfig(embed.FactoryConfig{
		Provider:   cfg.Embeddings.Provider,
		Model:      cfg.Embeddings.Model,
		Dimensions: cfg.Embeddings.Dimensions,
		OllamaHost: cfg.Embeddings.OllamaHost,
		CacheSize:  cfg.Embeddings.CacheSize,
		Timeout:    cfg.Embeddings.Timeout,
	})
	if err != nil {
		return nil, err
	}

	vs, err := store.NewSQLiteStore(store.Config{
		Path:       filepath.Join(cfg.Paths.IndexDir, vectorDBFile),
		Dimensions: embedder.Dimensions(),
	})
	if err != nil {
		_ = embedder.Close()
		return nil, err
	}
	if err := vs.Initialize(ctx); err != nil {
		_ = embedder.Close()
		return nil, fmt.Errorf("failed to open index: %w", err)
	}

	svc, err := index.NewService(index.Config{
		Storage: notes,
		Store:   vs,
		Chunker: chunk.New(chunk.Config{
			MaxChunkChars: cfg.Search.ChunkSize,
			OverlapChars:  cfg.Search.ChunkOverlap,
		}),
		Embedder: embedder,
		Lexical:  lexical.NewManager(notes, lexical.NewIndex()),
		Hasher:   note.NewHasher(),
	})
	if err != nil {
		_ = vs.Close()
		_ = embedder.Close()
		return nil, err
	}

	return &app{cfg: cfg, storage: notes, svc: svc}, nil
}

func (a *app) close() {
	_ = a.svc.Dispose()
}
