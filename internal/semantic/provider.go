package semantic

import (
	"context"
	"errors"
	"fmt"

	"github.com/spigell/talent-ranker/internal/ai"
)

// NewEmbedderHandle selects the embedding provider. The Gemini embedder is
// built lazily through newGemini and wrapped in the LRU cache.
func NewEmbedderHandle(cfg Config, newGemini func(ctx context.Context) (ai.Embedder, error)) (*ai.Handle[ai.Embedder], error) {
	switch ProviderName(cfg.Provider) {
	case ProviderHashing:
		return ai.Ready[ai.Embedder](NewHashingEmbedder(cfg.Dimensions)), nil
	case ProviderGemini:
		if newGemini == nil {
			return nil, errors.New("gemini embedder is not configured")
		}
		return ai.NewHandle(func(ctx context.Context) (ai.Embedder, error) {
			inner, err := newGemini(ctx)
			if err != nil {
				return nil, err
			}
			return NewCachedEmbedder(inner, cfg.CacheSize), nil
		}), nil
	default:
		return nil, fmt.Errorf("unknown semantic provider %q", cfg.Provider)
	}
}
