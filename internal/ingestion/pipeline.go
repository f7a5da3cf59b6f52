package ingestion

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/maraichr/reviewlens/internal/attributes"
	"github.com/maraichr/reviewlens/internal/embedding"
	"github.com/maraichr/reviewlens/internal/llm"
	"github.com/maraichr/reviewlens/internal/store/blob"
	"github.com/maraichr/reviewlens/internal/summarize"
)

// Pipeline runs the enrichment stages for each job message.
//
// Stages run strictly in order. The first failure aborts the run; because
// persist comes after every inference stage, a failed run writes nothing,
// and notify only runs once the result is durable.
type Pipeline struct {
	stages []Stage
	logger *slog.Logger
	now    func() time.Time
}

func NewPipeline(stages []Stage, logger *slog.Logger) *Pipeline {
	return &Pipeline{stages: stages, logger: logger, now: time.Now}
}

// Run processes a single job message through every stage.
func (p *Pipeline) Run(ctx context.Context, msg JobMessage) error {
	_, err := p.Process(ctx, msg)
	return err
}

// Process is Run returning the final run state.
func (p *Pipeline) Process(ctx context.Context, msg JobMessage) (*RunContext, error) {
	if err := msg.Validate(); err != nil {
		return nil, err
	}

	// processedAt is stored at millisecond precision; truncating the start
	// the same way keeps the stored value from preceding it.
	rc := &RunContext{
		RunID:     uuid.New(),
		ReviewKey: msg.ReviewKey,
		StartedAt: p.now().Truncate(time.Millisecond),
	}
	runID := rc.RunID.String()

	p.logger.Info("pipeline started",
		slog.String("run_id", runID),
		slog.String("review_key", msg.ReviewKey))

	for _, stage := range p.stages {
		p.logger.Info("stage started",
			slog.String("stage", stage.Name()),
			slog.String("run_id", runID))

		if err := stage.Execute(ctx, rc); err != nil {
			p.logger.Error("stage failed",
				slog.String("stage", stage.Name()),
				slog.String("run_id", runID),
				slog.String("error", err.Error()))
			return rc, fmt.Errorf("stage %s failed: %w", stage.Name(), err)
		}

		p.logger.Info("stage completed",
			slog.String("stage", stage.Name()),
			slog.String("run_id", runID))
	}

	reviews := 0
	if rc.Document != nil {
		reviews = len(rc.Document.Reviews)
	}
	p.logger.Info("pipeline completed",
		slog.String("run_id", runID),
		slog.String("result_key", rc.ResultKey),
		slog.Int("reviews", reviews),
		slog.Int("chunks", len(rc.Chunks)),
		slog.Duration("elapsed", p.now().Sub(rc.StartedAt)))

	return rc, nil
}

// Options selects the pipeline shape.
type Options struct {
	Variant      Variant
	SourcePrefix string
	ResultPrefix string
	ChunkSize    int
	FanoutLimit  int
	ChatModel    string
}

// Deps are the collaborators the stages call out to. Publisher is only
// used by the extended variant.
type Deps struct {
	Bucket    blob.Bucket
	Completer llm.Completer
	Embedder  embedding.Embedder
	Publisher SaveRequestPublisher
	Now       func() time.Time
	Logger    *slog.Logger
}

// BuildStages assembles the stage list for the configured variant.
func BuildStages(opts Options, deps Deps) []Stage {
	summarizer := summarize.NewSummarizer(deps.Completer, opts.ChatModel, opts.FanoutLimit, deps.Logger)
	extractor := attributes.NewExtractor(deps.Completer, opts.ChatModel, deps.Logger)

	stages := []Stage{
		NewFetchStage(deps.Bucket, opts.SourcePrefix),
		NewChunkStage(opts.ChunkSize),
		NewChunkSummaryStage(summarizer),
		NewFinalSummaryStage(summarizer),
		NewExtractStage(extractor),
		NewEmbedStage(deps.Embedder, deps.Logger),
		NewAssembleStage(opts.Variant, deps.Now),
		NewPersistStage(deps.Bucket, opts.ResultPrefix),
	}
	if opts.Variant != VariantSimple && deps.Publisher != nil {
		stages = append(stages, NewNotifyStage(deps.Publisher))
	}
	return stages
}
