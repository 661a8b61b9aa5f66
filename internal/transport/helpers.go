package transport

import (
	"errors"
	"io"
	"mime/multipart"
	"path/filepath"
	"strings"

	"github.com/UnendingLoop/Watermarker/internal/model"
	"github.com/wb-go/wbf/zlog"
)

func errorCodeDefiner(err error) int {
	switch {
	case errors.Is(err, model.ErrCommon500),
		errors.Is(err, model.ErrEncodeFailure):
		return 500
	case errors.Is(err, model.ErrJobNotFound),
		errors.Is(err, model.ErrResultNotReady):
		return 404
	case errors.Is(err, model.ErrSizeLimitExceeded):
		return 413
	case errors.Is(err, model.ErrTooManyRequests):
		return 429
	case errors.Is(err, model.ErrIncorrectID),
		errors.Is(err, model.ErrIncorrectUser),
		errors.Is(err, model.ErrEmptySource),
		errors.Is(err, model.ErrEmptyPatch),
		errors.Is(err, model.ErrUnsupportedFormat),
		errors.Is(err, model.ErrInvalidText),
		errors.Is(err, model.ErrInvalidColor),
		errors.Is(err, model.ErrInvalidSize),
		errors.Is(err, model.ErrInvalidMode),
		errors.Is(err, model.ErrInvalidPosition),
		errors.Is(err, model.ErrFontLoadFailure),
		errors.Is(err, model.ErrDecodeFailure),
		errors.Is(err, model.ErrDurationLimitExceeded):
		return 400
	default:
		return 500
	}
}

func closeFileFlow(res io.ReadCloser) {
	if res == nil {
		return
	}
	if err := res.Close(); err != nil {
		zlog.Logger.Warn().Err(err).Msg("Handler failed to close fileflow")
	}
}

// readLimited reads at most limit bytes, anything longer is ErrSizeLimitExceeded
func readLimited(r io.Reader, limit int64) ([]byte, error) {
	data, err := io.ReadAll(io.LimitReader(r, limit+1))
	if err != nil {
		return nil, model.ErrEmptySource
	}
	if int64(len(data)) > limit {
		return nil, model.ErrSizeLimitExceeded
	}
	return data, nil
}

var fontExtensions = map[string]bool{
	".ttf": true,
	".otf": true,
}

// videoContentType - браузеры не всегда проставляют тип, тогда смотрим на расширение
func videoContentType(h *multipart.FileHeader) string {
	ct := strings.ToLower(strings.TrimSpace(h.Header.Get("Content-Type")))
	if _, ok := model.GetVideoFileExt[ct]; ok {
		return ct
	}
	ext := strings.ToLower(filepath.Ext(h.Filename))
	for k, v := range model.GetVideoFileExt {
		if v == ext {
			return k
		}
	}
	return ct
}
