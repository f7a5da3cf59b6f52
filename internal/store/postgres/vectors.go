package postgres

import (
	"context"
	"time"

	pgvector "github.com/pgvector/pgvector-go"
)

const schemaSQL = `
CREATE EXTENSION IF NOT EXISTS vector;

CREATE TABLE IF NOT EXISTS restaurant_vector (
    id               TEXT PRIMARY KEY,
    place_id         TEXT NOT NULL UNIQUE,
    companion_vector vector,
    food_vector      vector,
    purpose_vector   vector,
    vibe_vector      vector,
    latitude         DOUBLE PRECISION NOT NULL DEFAULT 0,
    longitude        DOUBLE PRECISION NOT NULL DEFAULT 0,
    created_at       TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS crawling_review (
    hash          TEXT PRIMARY KEY,
    content       TEXT NOT NULL,
    restaurant_id TEXT NOT NULL
);
`

// EnsureSchema creates the vector tables when they are missing.
func (q *Queries) EnsureSchema(ctx context.Context) error {
	_, err := q.db.Exec(ctx, schemaSQL)
	return err
}

type RestaurantVector struct {
	ID              string
	PlaceID         string
	CompanionVector []float32
	FoodVector      []float32
	PurposeVector   []float32
	VibeVector      []float32
	Latitude        float64
	Longitude       float64
	CreatedAt       time.Time
}

const insertRestaurantVector = `
INSERT INTO restaurant_vector
    (id, place_id, companion_vector, food_vector, purpose_vector, vibe_vector, latitude, longitude, created_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
ON CONFLICT (place_id) DO NOTHING`

// InsertRestaurantVector reports false when a row for the place already
// exists.
func (q *Queries) InsertRestaurantVector(ctx context.Context, arg RestaurantVector) (bool, error) {
	tag, err := q.db.Exec(ctx, insertRestaurantVector,
		arg.ID,
		arg.PlaceID,
		nullableVector(arg.CompanionVector),
		nullableVector(arg.FoodVector),
		nullableVector(arg.PurposeVector),
		nullableVector(arg.VibeVector),
		arg.Latitude,
		arg.Longitude,
		arg.CreatedAt,
	)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

type CrawlingReview struct {
	Hash         string
	Content      string
	RestaurantID string
}

const insertCrawlingReview = `
INSERT INTO crawling_review (hash, content, restaurant_id)
VALUES ($1, $2, $3)
ON CONFLICT (hash) DO NOTHING`

func (q *Queries) InsertCrawlingReview(ctx context.Context, arg CrawlingReview) error {
	_, err := q.db.Exec(ctx, insertCrawlingReview, arg.Hash, arg.Content, arg.RestaurantID)
	return err
}

// Empty vectors are stored as NULL; pgvector rejects zero-dimension values.
func nullableVector(v []float32) any {
	if len(v) == 0 {
		return nil
	}
	return pgvector.NewVector(v)
}
