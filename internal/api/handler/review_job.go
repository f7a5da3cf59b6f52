package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/maraichr/reviewlens/internal/ingestion"
	"github.com/maraichr/reviewlens/pkg/apierr"
)

// Enqueuer adds a review job to the work queue.
type Enqueuer interface {
	Enqueue(ctx context.Context, msg ingestion.JobMessage) (string, error)
}

type ReviewJobHandler struct {
	logger   *slog.Logger
	enqueuer Enqueuer
}

func NewReviewJobHandler(logger *slog.Logger, e Enqueuer) *ReviewJobHandler {
	return &ReviewJobHandler{logger: logger, enqueuer: e}
}

type reviewJobResponse struct {
	ID        string `json:"id"`
	ReviewKey string `json:"reviewS3Key"`
}

// Create enqueues a review document for enrichment and answers 202.
func (h *ReviewJobHandler) Create(w http.ResponseWriter, r *http.Request) {
	var msg ingestion.JobMessage
	if err := json.NewDecoder(r.Body).Decode(&msg); err != nil {
		writeAPIError(w, r, h.logger, apierr.InvalidRequestBody())
		return
	}
	if e := validateReviewKey(msg.ReviewKey); e != nil {
		writeAPIError(w, r, h.logger, e)
		return
	}

	id, err := h.enqueuer.Enqueue(r.Context(), msg)
	if err != nil {
		writeAPIError(w, r, h.logger, apierr.EnqueueFailed(err))
		return
	}

	h.logger.Info("review job enqueued", slog.String("id", id), slog.String("review_key", msg.ReviewKey))
	writeJSON(w, http.StatusAccepted, reviewJobResponse{ID: id, ReviewKey: msg.ReviewKey})
}
