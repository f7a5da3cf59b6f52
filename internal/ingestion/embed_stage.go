package ingestion

import (
	"context"
	"log/slog"

	"github.com/maraichr/reviewlens/internal/embedding"
)

// EmbedStage generates a vector for each non-blank keyword attribute.
type EmbedStage struct {
	embedder embedding.Embedder
	logger   *slog.Logger
}

func NewEmbedStage(e embedding.Embedder, logger *slog.Logger) *EmbedStage {
	return &EmbedStage{embedder: e, logger: logger}
}

func (s *EmbedStage) Name() string { return "embed" }

func (s *EmbedStage) Execute(ctx context.Context, rc *RunContext) error {
	set, err := embedding.EmbedAttributes(ctx, s.embedder, rc.Keywords, s.logger)
	if err != nil {
		return err
	}
	rc.Embeddings = set
	return nil
}
