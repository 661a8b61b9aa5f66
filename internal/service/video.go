package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/UnendingLoop/Watermarker/internal/model"
	"github.com/UnendingLoop/Watermarker/internal/mwlogger"
	"github.com/google/uuid"
)

// SubmitVideo stores the upload, records a job carrying the settings
// snapshot taken now and queues it for the worker.
func (c *WatermarkService) SubmitVideo(ctx context.Context, data *model.VideoCreateData) (*model.VideoJob, error) {
	logger := mwlogger.LoggerFromContext(ctx)

	// Валидируем входные данные
	if err := validateVideoInfo(data, c.maxVideo); err != nil {
		return nil, err
	}

	// снапшот настроек и шрифта фиксируется в момент приема
	snap := c.Snapshot(data.UserID)
	if err := c.ensureFontStored(ctx, snap.Font); err != nil {
		logger.Error().Err(err).Msg("Failed to save font in Storage")
		return nil, model.ErrCommon500
	}

	job := &model.VideoJob{
		UID:      uuid.New(),
		UserID:   data.UserID,
		State:    model.StateIdle,
		Snapshot: snap.Settings,
		FontKey:  FontKey(snap.Font),
	}

	// кладем в хранилище сорсник
	job.SourceKey = srcKeyPrefix + job.UID.String() + model.GetVideoFileExt[data.ContentType]
	if err := c.storage.Put(ctx, job.SourceKey, data.Size, data.ContentType, data.Video); err != nil {
		logger.Error().Err(err).Msg("Failed to save src-video in Storage")
		return nil, model.ErrCommon500
	}

	// ставим таймстамп
	now := time.Now().UTC()
	job.CreatedAt = &now
	job.UpdatedAt = &now

	// шлем в базу
	if err := c.repo.Create(ctx, job); err != nil {
		logger.Error().Err(err).Msg("Failed to create video job in DB")
		if dErr := c.storage.Delete(ctx, job.SourceKey); dErr != nil {
			logger.Error().Err(dErr).Msg("Failed to remove orphaned src-video from Storage")
		}
		return nil, model.ErrCommon500
	}

	// кладем в очередь задач(в кафку); если не вышло - подберет recovery-цикл
	if err := c.publisher.SendWithRetry(ctx, retryStrategy, []byte(job.UID.String()), nil); err != nil {
		logger.Error().Err(err).Msg(fmt.Sprintf("Failed to publish job %q to task-queue", job.UID))
	}
	return job, nil
}

func (c *WatermarkService) GetJob(ctx context.Context, id string) (*model.VideoJob, error) {
	logger := mwlogger.LoggerFromContext(ctx)
	if err := uuid.Validate(id); err != nil {
		return nil, model.ErrIncorrectID
	}

	res, err := c.repo.Get(ctx, id)
	if err != nil {
		if errors.Is(err, model.ErrJobNotFound) {
			return nil, model.ErrJobNotFound // 404
		}
		logger.Error().Err(err).Msg(fmt.Sprintf("Failed to fetch job %q from DB", id))
		return nil, model.ErrCommon500
	}

	return res, nil
}

func (c *WatermarkService) LoadResult(ctx context.Context, id string) (io.ReadCloser, string, error) {
	logger := mwlogger.LoggerFromContext(ctx)

	res, err := c.GetJob(ctx, id)
	if err != nil {
		return nil, "", err
	}
	if res.State != model.StateDone {
		return nil, "", model.ErrResultNotReady
	}

	// достаем из хранилища
	data, cType, err := c.storage.Get(ctx, res.ResultKey)
	if err != nil {
		logger.Error().Err(err).Msg(fmt.Sprintf("Failed to fetch result-video %q from Storage", id))
		return nil, "", model.ErrCommon500
	}
	if cType == "" {
		cType = model.MP4
	}
	return data, cType, nil
}

func (c *WatermarkService) UpdateState(ctx context.Context, id string, st model.State, errMsg string) error {
	if err := uuid.Validate(id); err != nil {
		return model.ErrIncorrectID
	}

	logger := mwlogger.LoggerFromContext(ctx)

	if err := c.repo.UpdateState(ctx, id, st, errMsg); err != nil {
		switch {
		case errors.Is(err, model.ErrJobNotFound):
			return model.ErrJobNotFound // 404
		default:
			logger.Error().Err(err).Msg("Failed to update job state in DB")
			return model.ErrCommon500 // 500
		}
	}

	return nil
}

func (c *WatermarkService) SaveResult(ctx context.Context, input *model.VideoJob) error {
	logger := mwlogger.LoggerFromContext(ctx)
	t := time.Now().UTC()
	input.UpdatedAt = &t
	if err := c.repo.SaveResult(ctx, input); err != nil {
		switch {
		case errors.Is(err, model.ErrJobNotFound):
			return model.ErrJobNotFound // 404
		default:
			logger.Error().Err(err).Msg("Failed to save job result in DB")
			return model.ErrCommon500 // 500
		}
	}

	return nil
}

// ReviveOrphans re-queues unfinished jobs nobody has touched for a while.
func (c *WatermarkService) ReviveOrphans(ctx context.Context, limit int) {
	logger := mwlogger.LoggerFromContext(ctx)

	orphans, err := c.repo.FetchOrphans(ctx, limit, time.Now().Add(-model.JobStaleAfter))
	if err != nil {
		logger.Error().Err(err).Msg("Failed to load orphans from DB")
		return
	}

	for _, v := range orphans {
		if err := c.publisher.SendWithRetry(ctx, retryStrategy, []byte(v), nil); err != nil {
			logger.Error().Err(err).Msg("Failed to publish orphan to queue")
		}
	}
	if len(orphans) > 0 {
		logger.Info().Int("count", len(orphans)).Msg("Orphaned video jobs re-published")
	}
}
