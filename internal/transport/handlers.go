// Package transport provides methods for processing requests from endpoints
package transport

import (
	"context"
	"io"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/UnendingLoop/Watermarker/internal/fontres"
	"github.com/UnendingLoop/Watermarker/internal/model"
	"github.com/UnendingLoop/Watermarker/internal/mwlogger"
	"github.com/wb-go/wbf/ginext"
)

const (
	maxImageBytes int64 = 20 << 20
	maxFontBytes  int64 = 10 << 20
)

type WatermarkHandler struct {
	service WatermarkService
	limiter *RateLimiter
}

type WatermarkService interface {
	GetSettings(ctx context.Context, uid string) (model.Settings, error)
	UpdateSettings(ctx context.Context, uid string, patch model.SettingsPatch) (model.Settings, error)
	ReplaceFont(ctx context.Context, data []byte) (*fontres.Version, error)
	RenderImage(ctx context.Context, uid string, data []byte, contentType string) ([]byte, error) // готовый jpeg
	SubmitVideo(ctx context.Context, data *model.VideoCreateData) (*model.VideoJob, error)
	GetJob(ctx context.Context, id string) (*model.VideoJob, error)
	LoadResult(ctx context.Context, id string) (io.ReadCloser, string, error) // прям скачать результат
}

// NewWatermarkHandler - limiter может быть nil, тогда без ограничений
func NewWatermarkHandler(svc WatermarkService, limiter *RateLimiter) *WatermarkHandler {
	return &WatermarkHandler{
		service: svc,
		limiter: limiter,
	}
}

func (h WatermarkHandler) SimplePinger(ctx *ginext.Context) {
	ctx.JSON(200, map[string]string{"message": "pong"})
}

func (h WatermarkHandler) GetSettings(ctx *ginext.Context) {
	res, err := h.service.GetSettings(ctx.Request.Context(), ctx.Param("uid"))
	if err != nil {
		ctx.JSON(errorCodeDefiner(err), map[string]string{"error": err.Error()})
		return
	}

	ctx.JSON(200, res)
}

func (h WatermarkHandler) PatchSettings(ctx *ginext.Context) {
	var patch model.SettingsPatch
	if err := ctx.ShouldBindJSON(&patch); err != nil {
		ctx.JSON(400, map[string]string{"error": "failed to parse settings payload"})
		return
	}

	res, err := h.service.UpdateSettings(ctx.Request.Context(), ctx.Param("uid"), patch)
	if err != nil {
		ctx.JSON(errorCodeDefiner(err), map[string]string{"error": err.Error()})
		return
	}

	ctx.JSON(200, res)
}

func (h WatermarkHandler) ReplaceFont(ctx *ginext.Context) {
	file, header, err := ctx.Request.FormFile("font")
	if err != nil {
		ctx.JSON(400, map[string]string{"error": "font is required"})
		return
	}
	defer closeFileFlow(file)

	if !fontExtensions[strings.ToLower(filepath.Ext(header.Filename))] {
		ctx.JSON(400, map[string]string{"error": model.ErrUnsupportedFormat.Error()})
		return
	}

	data, err := readLimited(file, maxFontBytes)
	if err != nil {
		ctx.JSON(errorCodeDefiner(err), map[string]string{"error": err.Error()})
		return
	}

	v, err := h.service.ReplaceFont(ctx.Request.Context(), data)
	if err != nil {
		ctx.JSON(errorCodeDefiner(err), map[string]string{"error": err.Error()})
		return
	}

	ctx.JSON(200, map[string]string{"font_version": v.ID})
}

func (h WatermarkHandler) RenderImage(ctx *ginext.Context) {
	uid := ctx.Param("uid")
	if !h.allow(uid) {
		ctx.JSON(429, map[string]string{"error": model.ErrTooManyRequests.Error()})
		return
	}

	file, header, err := ctx.Request.FormFile("image")
	if err != nil {
		ctx.JSON(400, map[string]string{"error": "image is required"})
		return
	}
	defer closeFileFlow(file)

	data, err := readLimited(file, maxImageBytes)
	if err != nil {
		ctx.JSON(errorCodeDefiner(err), map[string]string{"error": err.Error()})
		return
	}

	res, err := h.service.RenderImage(ctx.Request.Context(), uid, data, header.Header.Get("Content-Type"))
	if err != nil {
		ctx.JSON(errorCodeDefiner(err), map[string]string{"error": err.Error()})
		return
	}

	ctx.Data(200, model.JPEG, res)
}

func (h WatermarkHandler) SubmitVideo(ctx *ginext.Context) {
	uid := ctx.Param("uid")
	userID, err := strconv.ParseInt(uid, 10, 64)
	if err != nil || userID <= 0 {
		ctx.JSON(400, map[string]string{"error": model.ErrIncorrectUser.Error()})
		return
	}
	if !h.allow(uid) {
		ctx.JSON(429, map[string]string{"error": model.ErrTooManyRequests.Error()})
		return
	}

	file, header, err := ctx.Request.FormFile("video")
	if err != nil {
		ctx.JSON(400, map[string]string{"error": "video is required"})
		return
	}
	defer closeFileFlow(file)

	// собираем все в структуру
	raw := model.VideoCreateData{
		UserID:      userID,
		Video:       file,
		ContentType: videoContentType(header),
		Size:        header.Size,
	}

	// передаем в сервис
	res, err := h.service.SubmitVideo(ctx.Request.Context(), &raw)
	if err != nil {
		ctx.JSON(errorCodeDefiner(err), map[string]string{"error": err.Error()})
		return
	}

	ctx.JSON(202, res)
}

func (h WatermarkHandler) GetJob(ctx *ginext.Context) {
	res, err := h.service.GetJob(ctx.Request.Context(), ctx.Param("id"))
	if err != nil {
		ctx.JSON(errorCodeDefiner(err), map[string]string{"error": err.Error()})
		return
	}

	ctx.JSON(200, res)
}

func (h WatermarkHandler) LoadResult(ctx *ginext.Context) {
	id := ctx.Param("id")

	res, cType, err := h.service.LoadResult(ctx.Request.Context(), id)
	if err != nil {
		ctx.JSON(errorCodeDefiner(err), map[string]string{"error": err.Error()})
		return
	}
	defer closeFileFlow(res)

	ctx.Writer.Header().Set("Content-Type", cType)
	ctx.Writer.WriteHeader(200)
	if n, err := io.Copy(ctx.Writer, res); err != nil {
		logger := mwlogger.LoggerFromContext(ctx.Request.Context())
		logger.Error().Err(err).Int64("written", n).Str("job_id", id).Msg("Failed to write result to response")
	}
}

func (h WatermarkHandler) allow(uid string) bool {
	if h.limiter == nil {
		return true
	}
	return h.limiter.Allow(uid)
}
