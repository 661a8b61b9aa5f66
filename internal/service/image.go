package service

import (
	"context"

	"github.com/UnendingLoop/Watermarker/internal/cache"
	"github.com/UnendingLoop/Watermarker/internal/mwlogger"
)

// RenderImage watermarks a still with the user's current settings and
// returns JPEG bytes. The render itself runs on the pool.
func (c *WatermarkService) RenderImage(ctx context.Context, uid string, data []byte, contentType string) ([]byte, error) {
	logger := mwlogger.LoggerFromContext(ctx)

	userID, err := parseUserID(uid)
	if err != nil {
		return nil, err
	}
	if err := validateImageInfo(data, contentType); err != nil {
		return nil, err
	}

	// снапшот один раз на запрос
	job := c.Snapshot(userID)
	key := cache.Key(data, job.Settings, versionID(job.Font), c.renderer.Options())

	if c.cache != nil {
		cached, ok, err := c.cache.Get(ctx, key)
		switch {
		case err != nil:
			logger.Warn().Err(err).Msg("Render cache lookup failed")
		case ok:
			return cached, nil
		}
	}

	var out []byte
	err = c.pool.Submit(ctx, func() error {
		var rErr error
		out, rErr = c.renderer.RenderImage(data, job.Settings, job.Font)
		return rErr
	})
	if err != nil {
		return nil, mapRenderErr(ctx, err, "Failed to render image")
	}

	if c.cache != nil {
		if err := c.cache.Set(ctx, key, out); err != nil {
			logger.Warn().Err(err).Msg("Failed to put render into cache")
		}
	}
	return out, nil
}
