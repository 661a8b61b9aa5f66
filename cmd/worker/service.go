package main

import (
	"context"

	"github.com/UnendingLoop/Watermarker/internal/model"
	"github.com/wb-go/wbf/retry"
)

type VideoWorkerService interface {
	GetJob(ctx context.Context, id string) (*model.VideoJob, error)
	UpdateState(ctx context.Context, id string, st model.State, errMsg string) error
	SaveResult(ctx context.Context, res *model.VideoJob) error
}

// NoopPublisher - ЗАГЛУШКА, функциональность настоящего паблишера в очередь не нужна в рамках работы воркера
type NoopPublisher struct{}

func (NoopPublisher) SendWithRetry(ctx context.Context, strategy retry.Strategy, k []byte, v []byte) error {
	return nil
}
