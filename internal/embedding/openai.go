package embedding

import (
	"context"

	"github.com/maraichr/reviewlens/internal/llm"
)

type textEmbedder interface {
	Embed(ctx context.Context, model, text string) ([]float32, error)
	EmbeddingModel() string
}

// OpenAIEmbedder implements Embedder on the OpenAI-compatible embeddings
// endpoint.
type OpenAIEmbedder struct {
	client textEmbedder
	model  string
}

var _ textEmbedder = (*llm.Client)(nil)

func NewOpenAIEmbedder(client textEmbedder, model string) *OpenAIEmbedder {
	if model == "" {
		model = client.EmbeddingModel()
	}
	return &OpenAIEmbedder{client: client, model: model}
}

func (e *OpenAIEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	return e.client.Embed(ctx, e.model, text)
}

func (e *OpenAIEmbedder) ModelID() string { return e.model }
