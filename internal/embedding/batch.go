package embedding

import (
	"context"
	"fmt"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"github.com/maraichr/reviewlens/pkg/models"
)

// EmbedAttributes embeds every non-blank attribute value. Each distinct
// value is embedded exactly once and the vector is assigned to every field
// holding that value. Blank fields keep the empty sentinel.
//
// Calls run concurrently and write into pre-allocated slots; the first
// failure cancels the rest and no partial set is returned.
func EmbedAttributes(ctx context.Context, e Embedder, rec models.AttributeRecord, logger *slog.Logger) (models.EmbeddingSet, error) {
	var texts []string
	seen := make(map[string]int)
	for _, v := range rec.Values() {
		if models.IsBlank(v) {
			continue
		}
		if _, ok := seen[v]; !ok {
			seen[v] = len(texts)
			texts = append(texts, v)
		}
	}

	vectors := make([][]float32, len(texts))

	eg, egCtx := errgroup.WithContext(ctx)
	for idx, text := range texts {
		eg.Go(func() error {
			vec, err := e.Embed(egCtx, text)
			if err != nil {
				return fmt.Errorf("embed attribute value %d: %w", idx, err)
			}
			vectors[idx] = vec
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return models.EmbeddingSet{}, err
	}

	set := models.NewEmbeddingSet()
	for _, field := range models.AttributeFields {
		v := rec.Get(field)
		if models.IsBlank(v) {
			continue
		}
		set.Set(field, vectors[seen[v]])
	}

	logger.Info("attributes embedded",
		slog.Int("distinct_values", len(texts)),
		slog.String("model", e.ModelID()))
	return set, nil
}
