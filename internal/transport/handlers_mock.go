package transport

import (
	"context"
	"io"

	"github.com/UnendingLoop/Watermarker/internal/fontres"
	"github.com/UnendingLoop/Watermarker/internal/model"
	"github.com/gin-gonic/gin"
)

type mockWatermarkService struct {
	getSettingsFn    func(ctx context.Context, uid string) (model.Settings, error)
	updateSettingsFn func(ctx context.Context, uid string, patch model.SettingsPatch) (model.Settings, error)
	replaceFontFn    func(ctx context.Context, data []byte) (*fontres.Version, error)
	renderImageFn    func(ctx context.Context, uid string, data []byte, ct string) ([]byte, error)
	submitVideoFn    func(ctx context.Context, d *model.VideoCreateData) (*model.VideoJob, error)
	getJobFn         func(ctx context.Context, id string) (*model.VideoJob, error)
	loadResultFn     func(ctx context.Context, id string) (io.ReadCloser, string, error)
}

func (m *mockWatermarkService) GetSettings(ctx context.Context, uid string) (model.Settings, error) {
	return m.getSettingsFn(ctx, uid)
}

func (m *mockWatermarkService) UpdateSettings(ctx context.Context, uid string, patch model.SettingsPatch) (model.Settings, error) {
	return m.updateSettingsFn(ctx, uid, patch)
}

func (m *mockWatermarkService) ReplaceFont(ctx context.Context, data []byte) (*fontres.Version, error) {
	return m.replaceFontFn(ctx, data)
}

func (m *mockWatermarkService) RenderImage(ctx context.Context, uid string, data []byte, ct string) ([]byte, error) {
	return m.renderImageFn(ctx, uid, data, ct)
}

func (m *mockWatermarkService) SubmitVideo(ctx context.Context, d *model.VideoCreateData) (*model.VideoJob, error) {
	return m.submitVideoFn(ctx, d)
}

func (m *mockWatermarkService) GetJob(ctx context.Context, id string) (*model.VideoJob, error) {
	return m.getJobFn(ctx, id)
}

func (m *mockWatermarkService) LoadResult(ctx context.Context, id string) (io.ReadCloser, string, error) {
	return m.loadResultFn(ctx, id)
}

func init() {
	gin.SetMode(gin.TestMode)
}
