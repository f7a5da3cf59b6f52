package ingestion

import (
	"context"

	"github.com/maraichr/reviewlens/pkg/apierr"
)

// SaveRequestPublisher announces a written result document downstream.
type SaveRequestPublisher interface {
	PublishSaveRequest(ctx context.Context, resultKey string) error
}

// NotifyStage publishes the save request. It must run after persist.
type NotifyStage struct {
	publisher SaveRequestPublisher
}

func NewNotifyStage(p SaveRequestPublisher) *NotifyStage {
	return &NotifyStage{publisher: p}
}

func (s *NotifyStage) Name() string { return "notify" }

func (s *NotifyStage) Execute(ctx context.Context, rc *RunContext) error {
	if err := s.publisher.PublishSaveRequest(ctx, rc.ResultKey); err != nil {
		return apierr.NotificationFailed(rc.ResultKey, err)
	}
	return nil
}
