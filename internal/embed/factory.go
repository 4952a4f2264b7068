package embed

import (
	"fmt"
	"log/slog"
	"time"
)

// FactoryConfig selects and configures an embedding provider.
type FactoryConfig struct {
	// Provider is "static" or "ollama".
	Provider string
	// Model overrides the provider's default model name.
	Model string
	// Dimensions overrides the provider's default dimension.
	Dimensions int
	// OllamaHost overrides the default Ollama endpoint.
	OllamaHost string
	// CacheSize is the LRU embedding cache capacity; 0 uses the default.
	CacheSize int
	// Timeout bounds a single remote embedding request.
	Timeout time.Duration
}

// NewFromConfig builds the configured embedder wrapped in the LRU cache.
func NewFromConfig(cfg FactoryConfig) (Embedder, error) {
	var inner Embedder

	switch cfg.Provider {
	case "", "static":
		inner = NewStaticEmbedder()
	case "ollama":
		inner = NewOllamaEmbedder(OllamaConfig{
			Host:       cfg.OllamaHost,
			Model:      cfg.Model,
			Dimensions: cfg.Dimensions,
			Timeout:    cfg.Timeout,
		})
	default:
		return nil, fmt.Errorf("unknown embedding provider %q", cfg.Provider)
	}

	slog.Debug("embedder configured",
		slog.String("provider", inner.ModelName()),
		slog.Int("dimensions", inner.Dimensions()))

	return NewCachedEmbedder(inner, cfg.CacheSize), nil
}
