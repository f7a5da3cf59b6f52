package handler

import (
	"errors"

	"github.com/maraichr/reviewlens/internal/ingestion"
	"github.com/maraichr/reviewlens/pkg/apierr"
)

// validateReviewKey applies the consumer's own key rules so the API never
// enqueues a message the worker would drop.
func validateReviewKey(key string) *apierr.Error {
	err := ingestion.JobMessage{ReviewKey: key}.Validate()
	switch {
	case err == nil:
		return nil
	case errors.Is(err, ingestion.ErrEmptyReviewKey):
		return apierr.ReviewKeyRequired()
	default:
		return apierr.ReviewKeyInvalid()
	}
}
