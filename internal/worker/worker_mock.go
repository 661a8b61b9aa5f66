package worker

import (
	"context"
	"io"

	"github.com/UnendingLoop/Watermarker/internal/model"
	"github.com/UnendingLoop/Watermarker/internal/video"
	kafkago "github.com/segmentio/kafka-go"
)

type mockWorkerService struct {
	getFn        func(ctx context.Context, id string) (*model.VideoJob, error)
	updateFn     func(ctx context.Context, id string, st model.State, msg string) error
	saveResultFn func(ctx context.Context, j *model.VideoJob) error
}

func (m *mockWorkerService) GetJob(ctx context.Context, id string) (*model.VideoJob, error) {
	return m.getFn(ctx, id)
}

func (m *mockWorkerService) UpdateState(ctx context.Context, id string, st model.State, msg string) error {
	return m.updateFn(ctx, id, st, msg)
}

func (m *mockWorkerService) SaveResult(ctx context.Context, j *model.VideoJob) error {
	return m.saveResultFn(ctx, j)
}

//----------------------------------

type mockStorage struct {
	getFn func(ctx context.Context, key string) (io.ReadCloser, string, error)
	putFn func(ctx context.Context, key string, size int64, ct string, r io.Reader) error
}

func (m *mockStorage) Get(ctx context.Context, key string) (io.ReadCloser, string, error) {
	return m.getFn(ctx, key)
}

func (m *mockStorage) Put(ctx context.Context, key string, size int64, ct string, r io.Reader) error {
	return m.putFn(ctx, key, size, ct, r)
}

func (m *mockStorage) Delete(ctx context.Context, key string) error {
	return nil
}

func (m *mockStorage) Exists(ctx context.Context, key string) (bool, error) {
	return true, nil
}

//----------------------------------

type mockRunner struct {
	runFn func(ctx context.Context, t video.Task) error
}

func (m *mockRunner) Run(ctx context.Context, t video.Task) error {
	return m.runFn(ctx, t)
}

type mockCommitter struct {
	committed []string
}

func (m *mockCommitter) Commit(_ context.Context, msg kafkago.Message) error {
	m.committed = append(m.committed, string(msg.Key))
	return nil
}
