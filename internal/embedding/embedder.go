package embedding

import (
	"context"
	"fmt"

	"github.com/maraichr/reviewlens/internal/config"
	"github.com/maraichr/reviewlens/internal/llm"
)

// Embedder turns a single text into a vector.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	ModelID() string
}

// NewEmbedder selects the provider named by EMBEDDING_PROVIDER. The OpenAI
// provider reuses the shared inference client.
func NewEmbedder(cfg *config.Config, client *llm.Client) (Embedder, error) {
	switch cfg.Inference.EmbeddingProvider {
	case "", "openai":
		if client == nil {
			return nil, fmt.Errorf("openai embedder: inference client is required")
		}
		return NewOpenAIEmbedder(client, cfg.Inference.EmbeddingModel), nil
	case "bedrock":
		c, err := NewClient(cfg.Bedrock)
		if err != nil {
			return nil, fmt.Errorf("bedrock client: %w", err)
		}
		return c, nil
	default:
		return nil, fmt.Errorf("unknown embedding provider %q", cfg.Inference.EmbeddingProvider)
	}
}
