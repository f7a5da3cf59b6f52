package ingestion

import (
	"bytes"
	"context"
	"path"
	"time"

	"github.com/google/uuid"

	"github.com/maraichr/reviewlens/internal/attributes"
	"github.com/maraichr/reviewlens/internal/store/blob"
	"github.com/maraichr/reviewlens/internal/summarize"
	"github.com/maraichr/reviewlens/pkg/apierr"
	"github.com/maraichr/reviewlens/pkg/models"
)

// Stage represents a step in the enrichment pipeline.
type Stage interface {
	Name() string
	Execute(ctx context.Context, rc *RunContext) error
}

// RunContext carries state through the pipeline stages for one document.
type RunContext struct {
	RunID     uuid.UUID
	ReviewKey string
	StartedAt time.Time

	// Set by fetch stage
	SourceKey string
	Document  *models.Document

	// Set by chunk stage
	Chunks [][]models.Review

	// Set by the summarize stages
	ChunkSummaries []string
	Summary        string

	// Set by extract and embed stages
	Keywords   models.AttributeRecord
	Embeddings models.EmbeddingSet

	// Set by assemble and persist stages
	Result    *models.EnrichedResult
	ResultKey string
}

// FetchStage reads and validates the review document.
type FetchStage struct {
	bucket blob.Bucket
	prefix string
}

func NewFetchStage(bucket blob.Bucket, sourcePrefix string) *FetchStage {
	return &FetchStage{bucket: bucket, prefix: sourcePrefix}
}

func (s *FetchStage) Name() string { return "fetch" }

func (s *FetchStage) Execute(ctx context.Context, rc *RunContext) error {
	rc.SourceKey = SourceKey(s.prefix, rc.ReviewKey)

	data, err := s.bucket.Get(ctx, rc.SourceKey)
	if err != nil {
		return apierr.StoreReadFailed(rc.SourceKey, err)
	}

	var doc *models.Document
	if trimmed := bytes.TrimSpace(data); len(trimmed) > 0 && trimmed[0] == '[' {
		doc, err = models.ParseReviewList(trimmed)
	} else {
		doc, err = models.ParseDocument(data)
	}
	if err != nil {
		return apierr.StoreReadFailed(rc.SourceKey, err)
	}

	rc.Document = doc
	return nil
}

// SourceKey joins the source prefix and the job's review key.
func SourceKey(prefix, reviewKey string) string {
	if prefix == "" {
		return reviewKey
	}
	return path.Join(prefix, reviewKey)
}

// ChunkStage splits the reviews into contiguous chunks.
type ChunkStage struct {
	size int
}

func NewChunkStage(size int) *ChunkStage {
	if size < 1 {
		size = summarize.DefaultChunkSize
	}
	return &ChunkStage{size: size}
}

func (s *ChunkStage) Name() string { return "chunk" }

func (s *ChunkStage) Execute(_ context.Context, rc *RunContext) error {
	rc.Chunks = summarize.Chunk(rc.Document.Reviews, s.size)
	return nil
}

// ChunkSummaryStage summarizes every chunk concurrently.
type ChunkSummaryStage struct {
	summarizer *summarize.Summarizer
}

func NewChunkSummaryStage(s *summarize.Summarizer) *ChunkSummaryStage {
	return &ChunkSummaryStage{summarizer: s}
}

func (s *ChunkSummaryStage) Name() string { return "summarize_chunks" }

func (s *ChunkSummaryStage) Execute(ctx context.Context, rc *RunContext) error {
	summaries, err := s.summarizer.SummarizeChunks(ctx, rc.Chunks)
	if err != nil {
		return err
	}
	rc.ChunkSummaries = summaries
	return nil
}

// FinalSummaryStage reduces the chunk summaries into one summary. It runs
// even when there are no chunks.
type FinalSummaryStage struct {
	summarizer *summarize.Summarizer
}

func NewFinalSummaryStage(s *summarize.Summarizer) *FinalSummaryStage {
	return &FinalSummaryStage{summarizer: s}
}

func (s *FinalSummaryStage) Name() string { return "summarize_final" }

func (s *FinalSummaryStage) Execute(ctx context.Context, rc *RunContext) error {
	summary, err := s.summarizer.Reduce(ctx, rc.ChunkSummaries)
	if err != nil {
		return err
	}
	rc.Summary = summary
	return nil
}

// ExtractStage pulls the keyword attributes out of the final summary.
type ExtractStage struct {
	extractor *attributes.Extractor
}

func NewExtractStage(x *attributes.Extractor) *ExtractStage {
	return &ExtractStage{extractor: x}
}

func (s *ExtractStage) Name() string { return "extract" }

func (s *ExtractStage) Execute(ctx context.Context, rc *RunContext) error {
	rec, err := s.extractor.Extract(ctx, rc.Summary)
	if err != nil {
		return err
	}
	rc.Keywords = rec
	return nil
}
