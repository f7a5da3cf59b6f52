package store

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/maraichr/reviewlens/internal/store/postgres"
)

type Store struct {
	*postgres.Queries
	pool *pgxpool.Pool
}

func New(pool *pgxpool.Pool) *Store {
	return &Store{
		Queries: postgres.New(pool),
		pool:    pool,
	}
}

func (s *Store) Pool() *pgxpool.Pool {
	return s.pool
}

func (s *Store) WithTx(ctx context.Context, fn func(*postgres.Queries) error) error {
	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	if err := fn(s.Queries.WithTx(tx)); err != nil {
		return err
	}

	return tx.Commit(ctx)
}

// SaveRestaurant writes the restaurant vectors and its reviews in one
// transaction. Reviews must already be in insertion order.
func (s *Store) SaveRestaurant(ctx context.Context, v postgres.RestaurantVector, reviews []postgres.CrawlingReview) (bool, error) {
	var inserted bool
	err := s.WithTx(ctx, func(q *postgres.Queries) error {
		ok, err := q.InsertRestaurantVector(ctx, v)
		if err != nil {
			return fmt.Errorf("insert restaurant vector: %w", err)
		}
		inserted = ok
		for _, r := range reviews {
			if err := q.InsertCrawlingReview(ctx, r); err != nil {
				return fmt.Errorf("insert review %s: %w", r.Hash, err)
			}
		}
		return nil
	})
	return inserted, err
}
