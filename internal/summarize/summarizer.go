package summarize

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/maraichr/reviewlens/internal/llm"
	"github.com/maraichr/reviewlens/pkg/models"
)

// Summarizer runs the two-level map-reduce summarization: one completion per
// chunk, then one completion over all chunk summaries.
type Summarizer struct {
	llm    llm.Completer
	model  string
	limit  int
	logger *slog.Logger
}

// NewSummarizer creates a summarizer. limit bounds the number of in-flight
// chunk calls; 0 means unbounded.
func NewSummarizer(c llm.Completer, model string, limit int, logger *slog.Logger) *Summarizer {
	return &Summarizer{llm: c, model: model, limit: limit, logger: logger}
}

// SummarizeChunks summarizes every chunk concurrently and returns the
// summaries in chunk order. The first failure cancels the remaining calls
// and fails the whole batch.
func (s *Summarizer) SummarizeChunks(ctx context.Context, chunks [][]models.Review) ([]string, error) {
	summaries := make([]string, len(chunks))

	eg, egCtx := errgroup.WithContext(ctx)
	if s.limit > 0 {
		eg.SetLimit(s.limit)
	}

	for idx, chunk := range chunks {
		eg.Go(func() error {
			s.logger.Info("summarizing chunk",
				slog.Int("chunk", idx+1),
				slog.Int("total_chunks", len(chunks)),
				slog.Int("reviews", len(chunk)))

			summary, err := s.llm.Complete(egCtx, llm.CompletionRequest{
				Model: s.model,
				Messages: []llm.Message{
					{Role: llm.RoleSystem, Content: chunkSystemPrompt},
					{Role: llm.RoleUser, Content: chunkUserPrefix + RenderChunk(chunk)},
				},
				MaxTokens:   chunkMaxTokens,
				Temperature: summaryTemperature,
			})
			if err != nil {
				return fmt.Errorf("summarize chunk %d: %w", idx, err)
			}
			summaries[idx] = summary
			return nil
		})
	}

	if err := eg.Wait(); err != nil {
		return nil, err
	}
	return summaries, nil
}

// Reduce synthesizes one summary from the ordered chunk summaries.
func (s *Summarizer) Reduce(ctx context.Context, summaries []string) (string, error) {
	summary, err := s.llm.Complete(ctx, llm.CompletionRequest{
		Model: s.model,
		Messages: []llm.Message{
			{Role: llm.RoleSystem, Content: finalSystemPrompt},
			{Role: llm.RoleUser, Content: finalUserPrefix + strings.Join(summaries, "\n\n")},
		},
		MaxTokens:   finalMaxTokens,
		Temperature: summaryTemperature,
	})
	if err != nil {
		return "", fmt.Errorf("final summary: %w", err)
	}
	return summary, nil
}
