package ingestion

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/maraichr/reviewlens/pkg/apierr"
)

const (
	MaxNotifyRetries  = 3
	defaultRetryDelay = 2 * time.Second
)

// Worker is the job handler wired to the queue consumer. A run that failed
// only at the notification step is not reprocessed: the result is already
// written, so the worker re-publishes the save request with a linear backoff.
type Worker struct {
	pipeline     *Pipeline
	publisher    SaveRequestPublisher
	resultPrefix string
	retryDelay   time.Duration
	logger       *slog.Logger
}

func NewWorker(p *Pipeline, publisher SaveRequestPublisher, resultPrefix string, logger *slog.Logger) *Worker {
	return &Worker{
		pipeline:     p,
		publisher:    publisher,
		resultPrefix: resultPrefix,
		retryDelay:   defaultRetryDelay,
		logger:       logger,
	}
}

// Handle processes one job message.
func (w *Worker) Handle(ctx context.Context, msg JobMessage) error {
	err := w.pipeline.Run(ctx, msg)
	if err == nil || !apierr.HasCode(err, apierr.CodeNotificationFailed) || w.publisher == nil {
		return err
	}

	key := ResultKey(w.resultPrefix, msg.ReviewKey)
	w.logger.Warn("result written but save request failed, retrying publish",
		slog.String("result_key", key),
		slog.String("error", err.Error()))
	return w.republish(ctx, key)
}

func (w *Worker) republish(ctx context.Context, key string) error {
	var lastErr error
	for attempt := 1; attempt <= MaxNotifyRetries; attempt++ {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(w.retryDelay * time.Duration(attempt)):
		}

		if err := w.publisher.PublishSaveRequest(ctx, key); err != nil {
			lastErr = err
			w.logger.Warn("save request retry failed",
				slog.String("result_key", key),
				slog.Int("attempt", attempt),
				slog.String("error", err.Error()))
			continue
		}
		w.logger.Info("save request published on retry",
			slog.String("result_key", key),
			slog.Int("attempt", attempt))
		return nil
	}
	return apierr.NotificationFailed(key, fmt.Errorf("after %d retries: %w", MaxNotifyRetries, lastErr))
}
