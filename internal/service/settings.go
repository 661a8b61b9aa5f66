package service

import (
	"context"

	"github.com/UnendingLoop/Watermarker/internal/model"
)

func (c *WatermarkService) GetSettings(ctx context.Context, uid string) (model.Settings, error) {
	userID, err := parseUserID(uid)
	if err != nil {
		return model.Settings{}, err
	}
	return c.store.Get(userID), nil
}

// UpdateSettings applies a partial write. Either every provided field is
// valid and all of them land, or nothing changes.
func (c *WatermarkService) UpdateSettings(ctx context.Context, uid string, patch model.SettingsPatch) (model.Settings, error) {
	userID, err := parseUserID(uid)
	if err != nil {
		return model.Settings{}, err
	}
	if patch.Empty() {
		return model.Settings{}, model.ErrEmptyPatch
	}

	return c.store.Update(userID, patch.Apply)
}
