package ingestion

import (
	"context"
	"encoding/json"
	"fmt"
	"path"
	"strings"
	"time"

	"github.com/maraichr/reviewlens/internal/config"
	"github.com/maraichr/reviewlens/internal/store/blob"
	"github.com/maraichr/reviewlens/pkg/apierr"
	"github.com/maraichr/reviewlens/pkg/models"
)

// Variant selects the result shape and whether a save request follows.
type Variant string

const (
	VariantExtended Variant = config.VariantExtended
	VariantSimple   Variant = config.VariantSimple
)

// AssembleStage builds the enriched result from the run state.
type AssembleStage struct {
	variant Variant
	now     func() time.Time
}

func NewAssembleStage(v Variant, now func() time.Time) *AssembleStage {
	if now == nil {
		now = time.Now
	}
	return &AssembleStage{variant: v, now: now}
}

func (s *AssembleStage) Name() string { return "assemble" }

func (s *AssembleStage) Execute(_ context.Context, rc *RunContext) error {
	res := &models.EnrichedResult{
		Summary:      rc.Summary,
		Keywords:     rc.Keywords,
		Embeddings:   rc.Embeddings,
		ProcessedAt:  s.now(),
		TotalReviews: len(rc.Document.Reviews),
	}
	if res.Embeddings.Purpose == nil && res.Embeddings.Vibe == nil &&
		res.Embeddings.Companion == nil && res.Embeddings.Food == nil {
		res.Embeddings = models.NewEmbeddingSet()
	}

	switch s.variant {
	case VariantSimple:
		res.Metadata = map[string]json.RawMessage{}
		if len(rc.Document.Reviews) > 0 && rc.Document.Reviews[0].PlaceID != nil {
			raw, err := json.Marshal(rc.Document.Reviews[0].PlaceID.String())
			if err != nil {
				return fmt.Errorf("marshal placeId: %w", err)
			}
			res.Metadata["placeId"] = raw
		}
	default:
		res.Metadata = rc.Document.Metadata
	}

	rc.Result = res
	return nil
}

// PersistStage writes the enriched result as pretty-printed JSON.
type PersistStage struct {
	bucket blob.Bucket
	prefix string
}

func NewPersistStage(bucket blob.Bucket, resultPrefix string) *PersistStage {
	return &PersistStage{bucket: bucket, prefix: resultPrefix}
}

func (s *PersistStage) Name() string { return "persist" }

func (s *PersistStage) Execute(ctx context.Context, rc *RunContext) error {
	key := ResultKey(s.prefix, rc.ReviewKey)

	body, err := json.MarshalIndent(rc.Result, "", "  ")
	if err != nil {
		return apierr.StoreWriteFailed(key, fmt.Errorf("marshal result: %w", err))
	}
	if err := s.bucket.Put(ctx, key, body, "application/json"); err != nil {
		return apierr.StoreWriteFailed(key, err)
	}

	rc.ResultKey = key
	return nil
}

// ResultKey derives the result document key from the job's review key:
// "{prefix}/{name}_embedding{ext}", with ext defaulting to ".json".
func ResultKey(prefix, reviewKey string) string {
	ext := path.Ext(reviewKey)
	base := strings.TrimSuffix(reviewKey, ext)
	if ext == "" {
		ext = ".json"
	}
	name := base + "_embedding" + ext
	if prefix == "" {
		return name
	}
	return path.Join(prefix, name)
}
