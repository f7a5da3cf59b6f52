// Package vectorsave loads enriched results into the recommendation
// database: one restaurant_vector row per place plus its crawled reviews.
package vectorsave

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/maraichr/reviewlens/internal/ingestion"
	"github.com/maraichr/reviewlens/internal/store/blob"
	"github.com/maraichr/reviewlens/internal/store/postgres"
	"github.com/maraichr/reviewlens/pkg/apierr"
	"github.com/maraichr/reviewlens/pkg/models"
)

// Repository persists one restaurant atomically.
type Repository interface {
	SaveRestaurant(ctx context.Context, v postgres.RestaurantVector, reviews []postgres.CrawlingReview) (bool, error)
}

// Saver handles save requests published by the embedding worker.
type Saver struct {
	bucket blob.Bucket
	repo   Repository
	now    func() time.Time
	newID  func() string
	logger *slog.Logger
}

func NewSaver(bucket blob.Bucket, repo Repository, logger *slog.Logger) *Saver {
	return &Saver{
		bucket: bucket,
		repo:   repo,
		now:    time.Now,
		newID:  uuid.NewString,
		logger: logger,
	}
}

// resultDocument is the subset of an enriched result the saver reads.
type resultDocument struct {
	PlaceID    models.ReviewID     `json:"placeId"`
	Reviews    []models.Review     `json:"reviews"`
	Embeddings models.EmbeddingSet `json:"embeddings"`
	Latitude   coordinate          `json:"latitude"`
	Longitude  coordinate          `json:"longitude"`
}

// coordinate accepts a JSON number or a numeric string; anything else is 0.
type coordinate float64

func (c *coordinate) UnmarshalJSON(data []byte) error {
	s := strings.Trim(string(bytes.TrimSpace(data)), `"`)
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		*c = 0
		return nil
	}
	*c = coordinate(f)
	return nil
}

// Handle reads the result document named by req and stores it.
func (s *Saver) Handle(ctx context.Context, req ingestion.SaveRequest) error {
	data, err := s.bucket.Get(ctx, req.S3Key)
	if err != nil {
		return apierr.StoreReadFailed(req.S3Key, err)
	}

	var doc resultDocument
	if err := json.Unmarshal(data, &doc); err != nil {
		return apierr.StoreReadFailed(req.S3Key, fmt.Errorf("decode result: %w", err))
	}

	placeID := doc.PlaceID.String()
	if placeID == "" && len(doc.Reviews) > 0 && doc.Reviews[0].PlaceID != nil {
		placeID = doc.Reviews[0].PlaceID.String()
	}
	if placeID == "" {
		return apierr.StoreReadFailed(req.S3Key, errors.New("result has no placeId"))
	}

	restaurantID := req.RestaurantID
	if restaurantID == "" {
		restaurantID = s.newID()
	}

	vec := postgres.RestaurantVector{
		ID:              restaurantID,
		PlaceID:         placeID,
		CompanionVector: doc.Embeddings.Companion,
		FoodVector:      doc.Embeddings.Food,
		PurposeVector:   doc.Embeddings.Purpose,
		VibeVector:      doc.Embeddings.Vibe,
		Latitude:        float64(doc.Latitude),
		Longitude:       float64(doc.Longitude),
		CreatedAt:       s.now(),
	}
	reviews := HashReviews(doc.Reviews, placeID)

	inserted, err := s.repo.SaveRestaurant(ctx, vec, reviews)
	if err != nil {
		return apierr.StoreWriteFailed("restaurant_vector/"+placeID, err)
	}

	s.logger.Info("restaurant vectors saved",
		slog.String("place_id", placeID),
		slog.String("restaurant_id", restaurantID),
		slog.Bool("inserted", inserted),
		slog.Int("reviews", len(reviews)))
	return nil
}

// HashReviews keys each review by the SHA-256 of its content and returns
// them sorted by hash, so concurrent savers lock rows in the same order.
func HashReviews(reviews []models.Review, restaurantID string) []postgres.CrawlingReview {
	out := make([]postgres.CrawlingReview, len(reviews))
	for i, r := range reviews {
		sum := sha256.Sum256([]byte(r.Content))
		out[i] = postgres.CrawlingReview{
			Hash:         hex.EncodeToString(sum[:]),
			Content:      r.Content,
			RestaurantID: restaurantID,
		}
	}
	slices.SortFunc(out, func(a, b postgres.CrawlingReview) int {
		return strings.Compare(a.Hash, b.Hash)
	})
	return out
}
