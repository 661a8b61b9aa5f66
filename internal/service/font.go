package service

import (
	"bytes"
	"context"
	"fmt"

	"github.com/UnendingLoop/Watermarker/internal/fontres"
	"github.com/UnendingLoop/Watermarker/internal/model"
	"github.com/UnendingLoop/Watermarker/internal/mwlogger"
)

const fontContentType = "font/ttf"

// ReplaceFont validates the upload, stores it as an immutable object so the
// video workers can fetch the exact version, then makes it current.
func (c *WatermarkService) ReplaceFont(ctx context.Context, data []byte) (*fontres.Version, error) {
	logger := mwlogger.LoggerFromContext(ctx)

	if len(data) == 0 {
		return nil, model.ErrEmptySource
	}

	candidate, err := fontres.FromBytes(data)
	if err != nil {
		return nil, err // 400, текущий шрифт остается
	}

	if err := c.ensureFontStored(ctx, candidate); err != nil {
		logger.Error().Err(err).Msg("Failed to save font in Storage")
		return nil, model.ErrCommon500
	}

	v, err := c.fonts.Replace(data)
	if err != nil {
		logger.Error().Err(err).Msg("Failed to replace local font file")
		return nil, model.ErrCommon500
	}

	logger.Info().Str("font_version", v.ID).Msg("Font replaced")
	return v, nil
}

func (c *WatermarkService) ensureFontStored(ctx context.Context, v *fontres.Version) error {
	if v.IsFallback() {
		return nil
	}
	if _, ok := c.uploadedFonts.Load(v.ID); ok {
		return nil
	}

	key := FontKey(v)
	exists, err := c.storage.Exists(ctx, key)
	if err != nil {
		return fmt.Errorf("stat font %q: %w", key, err)
	}
	if !exists {
		if err := c.storage.Put(ctx, key, int64(len(v.Data)), fontContentType, bytes.NewReader(v.Data)); err != nil {
			return fmt.Errorf("put font %q: %w", key, err)
		}
	}
	c.uploadedFonts.Store(v.ID, struct{}{})
	return nil
}
