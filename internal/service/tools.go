package service

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/UnendingLoop/Watermarker/internal/fontres"
	"github.com/UnendingLoop/Watermarker/internal/model"
	"github.com/UnendingLoop/Watermarker/internal/mwlogger"
)

func parseUserID(raw string) (int64, error) {
	id, err := strconv.ParseInt(strings.TrimSpace(raw), 10, 64)
	if err != nil || id <= 0 {
		return 0, model.ErrIncorrectUser
	}
	return id, nil
}

func validateImageInfo(data []byte, contentType string) error {
	if len(data) == 0 {
		return model.ErrEmptySource
	}

	// клиенты часто шлют octet-stream, тогда смотрим на сами байты
	ct := strings.ToLower(strings.TrimSpace(contentType))
	if ct == "" || ct == "application/octet-stream" {
		ct = http.DetectContentType(data)
	}
	if !model.InImageTypeMap[ct] {
		return model.ErrUnsupportedFormat
	}
	return nil
}

func validateVideoInfo(raw *model.VideoCreateData, maxBytes int64) error {
	if raw == nil || raw.Video == nil || raw.Size <= 0 {
		return model.ErrEmptySource
	}
	if raw.UserID <= 0 {
		return model.ErrIncorrectUser
	}
	if _, ok := model.GetVideoFileExt[raw.ContentType]; !ok {
		return model.ErrUnsupportedFormat
	}
	// окончательная проверка лимитов в пайплайне, тут отсекаем заведомо большие
	if maxBytes > 0 && raw.Size > maxBytes {
		return model.ErrSizeLimitExceeded
	}
	return nil
}

func versionID(v *fontres.Version) string {
	if v.IsFallback() {
		return fontres.FallbackID
	}
	return v.ID
}

// mapRenderErr keeps taxonomy errors for the caller and hides the rest.
func mapRenderErr(ctx context.Context, err error, msg string) error {
	switch {
	case errors.Is(err, model.ErrDecodeFailure):
		return model.ErrDecodeFailure
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return err
	}
	logger := mwlogger.LoggerFromContext(ctx)
	logger.Error().Err(err).Msg(msg)
	return model.ErrCommon500
}
