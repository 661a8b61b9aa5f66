package main

import (
	"context"
	"io"

	"github.com/UnendingLoop/Watermarker/internal/fontres"
	"github.com/UnendingLoop/Watermarker/internal/model"
)

type WatermarkAPIService interface {
	GetSettings(ctx context.Context, uid string) (model.Settings, error)
	UpdateSettings(ctx context.Context, uid string, patch model.SettingsPatch) (model.Settings, error)
	ReplaceFont(ctx context.Context, data []byte) (*fontres.Version, error)
	RenderImage(ctx context.Context, uid string, data []byte, contentType string) ([]byte, error)
	SubmitVideo(ctx context.Context, data *model.VideoCreateData) (*model.VideoJob, error)
	GetJob(ctx context.Context, id string) (*model.VideoJob, error)
	LoadResult(ctx context.Context, id string) (io.ReadCloser, string, error)
	ReviveOrphans(ctx context.Context, limit int)
}
