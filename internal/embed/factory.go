package embed

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/claracenn/finlite/internal/config"
)

// NewFromConfig constructs the encoder selected by configuration, wrapped in
// an LRU cache. "static" never fails. The Ollama endpoint is checked only by
// the dimension probe, which runs when cfg.Dimensions is 0: then provider
// "ollama" fails on an unreachable endpoint and the empty provider falls back
// to the static encoder. With a configured dimension the endpoint is not
// contacted, so "ollama" does not fail and the empty provider always picks
// Ollama.
func NewFromConfig(ctx context.Context, cfg config.EmbeddingsConfig) (Embedder, error) {
	var inner Embedder

	switch cfg.Provider {
	case "static":
		inner = NewStaticEmbedder()

	case "ollama":
		e, err := NewOllamaEmbedder(ctx, OllamaConfig{
			Host:       cfg.Host,
			Model:      cfg.Model,
			Dimensions: cfg.Dimensions,
			BatchSize:  cfg.BatchSize,
		})
		if err != nil {
			return nil, fmt.Errorf("ollama embedder: %w", err)
		}
		inner = e

	case "":
		probeCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()

		e, err := NewOllamaEmbedder(probeCtx, OllamaConfig{
			Host:       cfg.Host,
			Model:      cfg.Model,
			Dimensions: cfg.Dimensions,
			BatchSize:  cfg.BatchSize,
		})
		if err != nil {
			slog.Info("embedder_fallback",
				slog.String("provider", "static"),
				slog.String("reason", err.Error()))
			inner = NewStaticEmbedder()
		} else {
			inner = e
		}

	default:
		return nil, fmt.Errorf("unknown embedding provider %q", cfg.Provider)
	}

	return NewCachedEmbedder(inner, cfg.CacheSize), nil
}
