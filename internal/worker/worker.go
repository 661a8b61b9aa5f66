// Package worker contains methods for worker to init at start, and to process video jobs
package worker

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/UnendingLoop/Watermarker/internal/fontres"
	"github.com/UnendingLoop/Watermarker/internal/model"
	"github.com/UnendingLoop/Watermarker/internal/mwlogger"
	"github.com/UnendingLoop/Watermarker/internal/render"
	"github.com/UnendingLoop/Watermarker/internal/service"
	"github.com/UnendingLoop/Watermarker/internal/video"
	kafkago "github.com/segmentio/kafka-go"
	"github.com/wb-go/wbf/zlog"
)

type VideoWorkerService interface {
	GetJob(ctx context.Context, id string) (*model.VideoJob, error)
	UpdateState(ctx context.Context, id string, st model.State, errMsg string) error
	SaveResult(ctx context.Context, res *model.VideoJob) error
}

// VideoRunner - пайплайн обработки одного видео
type VideoRunner interface {
	Run(ctx context.Context, t video.Task) error
}

// Committer - в проде это *wbfkafka.Consumer
type Committer interface {
	Commit(ctx context.Context, msg kafkago.Message) error
}

type Worker struct {
	storage      service.ObjectStorage
	service      VideoWorkerService
	pipeline     VideoRunner
	queue        <-chan kafkago.Message
	consumer     Committer
	tempDir      string
	resultPrefix string
}

func NewWorkerInstance(strg service.ObjectStorage, svc VideoWorkerService, p VideoRunner, q <-chan kafkago.Message, cons Committer, tempDir, resPr string) *Worker {
	return &Worker{storage: strg, service: svc, pipeline: p, queue: q, consumer: cons, tempDir: tempDir, resultPrefix: resPr}
}

// StartWorker consumes the queue until ctx is done. A job already started is
// finished before the loop returns.
func (w *Worker) StartWorker(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-w.queue:
			if !ok {
				zlog.Logger.Info().Msg("Queue channel closed, stopping worker...")
				return
			}
			id := string(msg.Key)
			if err := w.initProcessor(ctx, id); err != nil &&
				!errors.Is(err, model.ErrJobNotFound) && !errors.Is(err, model.ErrJobInProgress) {
				zlog.Logger.Error().Err(err).Str("job_id", id).Msg("Task failed")
				continue
			}
			if err := w.consumer.Commit(ctx, msg); err != nil {
				zlog.Logger.Error().Err(err).Msg("Failed to commit queue-message")
			}
		}
	}
}

func (w *Worker) initProcessor(ctx context.Context, id string) error {
	// остановка воркера не должна рвать уже начатую задачу
	ctx = context.WithoutCancel(ctx)
	logger := zlog.Logger.With().Str("job_id", id).Logger()
	ctx = mwlogger.WithLogger(ctx, logger)

	// считать из базы задачу
	task, err := w.service.GetJob(ctx, id)
	if err != nil {
		return fmt.Errorf("worker failed to fetch job %q from DB: %w", id, err)
	}

	// проверить статус
	switch {
	case task.State.Terminal():
		return nil
	case task.State.Running() && !task.Stale(time.Now()):
		return model.ErrJobInProgress
	}

	logger.Info().Msg("Processing video job")

	// выполняем саму операцию
	if pErr := w.processTask(ctx, task); pErr != nil {
		if uErr := w.service.UpdateState(ctx, id, model.StateFailed, pErr.Error()); uErr != nil {
			return fmt.Errorf("failed to set state of job %q to `failed` in DB: %w \nAFTER\n error while processing job: %w", id, uErr, pErr)
		}
		return fmt.Errorf("failed to process job %q: %w", id, pErr)
	}

	logger.Info().Str("result_key", task.ResultKey).Msg("Video job done")
	return nil
}

func (w *Worker) processTask(ctx context.Context, task *model.VideoJob) error {
	logger := mwlogger.LoggerFromContext(ctx)
	id := task.UID.String()

	dir, err := os.MkdirTemp(w.tempDir, "wm-"+id+"-")
	if err != nil {
		return fmt.Errorf("worker failed to create temp dir: %w", err)
	}
	defer func() {
		if err := os.RemoveAll(dir); err != nil {
			logger.Warn().Err(err).Str("dir", dir).Msg("Failed to remove temp dir")
		}
	}()

	// достать из storage исходник
	src := filepath.Join(dir, "source"+filepath.Ext(task.SourceKey))
	if err := w.download(ctx, task.SourceKey, src); err != nil {
		return fmt.Errorf("worker failed to fetch src-video from storage: %w", err)
	}

	font, err := w.loadFont(ctx, task.FontKey)
	if err != nil {
		return fmt.Errorf("worker failed to fetch font from storage: %w", err)
	}

	dst := filepath.Join(dir, "result.mp4")
	err = w.pipeline.Run(ctx, video.Task{
		Source: src,
		Dest:   dst,
		Job:    render.Job{Settings: task.Snapshot, Font: font},
		OnState: func(st model.State) {
			// терминальные состояния пишем сами - вместе с ошибкой или результатом
			if st.Terminal() {
				return
			}
			if err := w.service.UpdateState(ctx, id, st, ""); err != nil {
				logger.Warn().Err(err).Str("state", string(st)).Msg("Failed to persist job state")
			}
		},
	})
	if err != nil {
		return err
	}

	// положить результат в сторедж
	resKey := w.resultPrefix + id + ".mp4"
	if err := w.upload(ctx, dst, resKey); err != nil {
		return fmt.Errorf("worker failed to put result video to storage: %w", err)
	}

	task.State = model.StateDone
	task.ResultKey = resKey
	task.ErrMsg = ""

	// обновить запись в БД
	if err := w.service.SaveResult(ctx, task); err != nil {
		return fmt.Errorf("worker failed to save result to DB: %w", err)
	}
	return nil
}

func (w *Worker) download(ctx context.Context, key, path string) error {
	r, _, err := w.storage.Get(ctx, key)
	if err != nil {
		return err
	}
	defer closeFileFlow(r)

	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if _, err := io.Copy(f, r); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

func (w *Worker) upload(ctx context.Context, path, key string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	st, err := f.Stat()
	if err != nil {
		return err
	}
	return w.storage.Put(ctx, key, st.Size(), model.MP4, f)
}

// loadFont - пустой ключ значит встроенный шрифт; битый файл тоже уходит в фоллбек
func (w *Worker) loadFont(ctx context.Context, key string) (*fontres.Version, error) {
	if key == "" {
		return fontres.Fallback(), nil
	}
	r, _, err := w.storage.Get(ctx, key)
	if err != nil {
		return nil, err
	}
	defer closeFileFlow(r)

	data, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	return fontres.OrFallback(data), nil
}

func closeFileFlow(res io.ReadCloser) {
	if res == nil {
		return
	}

	if err := res.Close(); err != nil {
		zlog.Logger.Warn().Err(err).Msg("Worker failed to close fileflow")
	}
}
