// Package service provides business-logic for the app
package service

import (
	"context"
	"io"
	"sync"
	"time"

	"github.com/UnendingLoop/Watermarker/internal/fontres"
	"github.com/UnendingLoop/Watermarker/internal/model"
	"github.com/UnendingLoop/Watermarker/internal/render"
	"github.com/UnendingLoop/Watermarker/internal/repository"
	"github.com/UnendingLoop/Watermarker/internal/settings"
	"github.com/wb-go/wbf/retry"
)

const (
	srcKeyPrefix    = "src/"
	resultKeyPrefix = "result/"
	fontKeyPrefix   = "fonts/"
)

// TaskPublisher - контракт для работы с очередью
type TaskPublisher interface {
	SendWithRetry(ctx context.Context, strategy retry.Strategy, key []byte, v []byte) error
}

// ObjectStorage - контракт для работы с хранилищем
type ObjectStorage interface {
	Delete(ctx context.Context, key string) error
	Get(ctx context.Context, key string) (output io.ReadCloser, ctype string, err error)
	Put(ctx context.Context, key string, size int64, contentType string, r io.Reader) error
	Exists(ctx context.Context, key string) (bool, error)
}

// RenderCache - кэш готовых картинок, промах это (nil, false, nil)
type RenderCache interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, data []byte) error
}

// ImageRenderer - движок наложения для статичных картинок
type ImageRenderer interface {
	RenderImage(data []byte, s model.Settings, font *fontres.Version) ([]byte, error)
	Options() render.Options
}

// RenderPool - ограниченный пул горутин под CPU-работу
type RenderPool interface {
	Submit(ctx context.Context, fn func() error) error
}

// FontSource - общий шрифт
type FontSource interface {
	Current() *fontres.Version
	Replace(data []byte) (*fontres.Version, error)
}

// Стратегия ретрая отправки в очередь - можно потом вынести значения в конфиг/env
var retryStrategy = retry.Strategy{
	Attempts: 5,
	Delay:    3 * time.Second,
	Backoff:  1.5,
}

type Deps struct {
	Repo      repository.JobRepo
	Publisher TaskPublisher
	Storage   ObjectStorage
	Settings  settings.Store
	Fonts     FontSource
	Renderer  ImageRenderer
	Pool      RenderPool
	Cache     RenderCache
	MaxVideo  int64
}

type WatermarkService struct {
	repo      repository.JobRepo
	publisher TaskPublisher
	storage   ObjectStorage
	store     settings.Store
	fonts     FontSource
	renderer  ImageRenderer
	pool      RenderPool
	cache     RenderCache
	maxVideo  int64

	uploadedFonts sync.Map // id версии -> уже лежит в хранилище
}

func NewWatermarkService(d Deps) *WatermarkService {
	return &WatermarkService{
		repo:      d.Repo,
		publisher: d.Publisher,
		storage:   d.Storage,
		store:     d.Settings,
		fonts:     d.Fonts,
		renderer:  d.Renderer,
		pool:      d.Pool,
		cache:     d.Cache,
		maxVideo:  d.MaxVideo,
	}
}

// Snapshot captures the settings and font in effect right now. A job keeps
// using it to the end, whatever happens to the store or the font later.
func (c *WatermarkService) Snapshot(userID int64) render.Job {
	return render.Job{
		Settings: c.store.Get(userID),
		Font:     c.fonts.Current(),
	}
}

// FontKey is the storage key of a font version; the built-in font has none.
func FontKey(v *fontres.Version) string {
	if v.IsFallback() {
		return ""
	}
	return fontKeyPrefix + v.ID + ".ttf"
}
