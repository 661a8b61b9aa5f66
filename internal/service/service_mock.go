package service

import (
	"bytes"
	"context"
	"io"
	"time"

	"github.com/UnendingLoop/Watermarker/internal/fontres"
	"github.com/UnendingLoop/Watermarker/internal/model"
	"github.com/UnendingLoop/Watermarker/internal/render"
	"github.com/wb-go/wbf/retry"
)

// MOCK RESPOSITORY

type mockRepo struct {
	createFn       func(ctx context.Context, j *model.VideoJob) error
	getFn          func(ctx context.Context, id string) (*model.VideoJob, error)
	updateStateFn  func(ctx context.Context, id string, st model.State, errMsg string) error
	saveResultFn   func(ctx context.Context, j *model.VideoJob) error
	fetchOrphansFn func(ctx context.Context, limit int, cutoff time.Time) ([]string, error)
}

func (m *mockRepo) Create(ctx context.Context, j *model.VideoJob) error {
	return m.createFn(ctx, j)
}

func (m *mockRepo) Get(ctx context.Context, id string) (*model.VideoJob, error) {
	return m.getFn(ctx, id)
}

func (m *mockRepo) UpdateState(ctx context.Context, id string, st model.State, errMsg string) error {
	return m.updateStateFn(ctx, id, st, errMsg)
}

func (m *mockRepo) SaveResult(ctx context.Context, j *model.VideoJob) error {
	return m.saveResultFn(ctx, j)
}

func (m *mockRepo) FetchOrphans(ctx context.Context, limit int, cutoff time.Time) ([]string, error) {
	return m.fetchOrphansFn(ctx, limit, cutoff)
}

// MOCK STORAGE

type mockStorage struct {
	putFn    func(ctx context.Context, key string, size int64, ct string, r io.Reader) error
	getFn    func(ctx context.Context, key string) (io.ReadCloser, string, error)
	deleteFn func(ctx context.Context, key string) error
	existsFn func(ctx context.Context, key string) (bool, error)
}

func (m *mockStorage) Put(ctx context.Context, key string, size int64, ct string, r io.Reader) error {
	return m.putFn(ctx, key, size, ct, r)
}

func (m *mockStorage) Get(ctx context.Context, key string) (io.ReadCloser, string, error) {
	return m.getFn(ctx, key)
}

func (m *mockStorage) Delete(ctx context.Context, key string) error {
	return m.deleteFn(ctx, key)
}

func (m *mockStorage) Exists(ctx context.Context, key string) (bool, error) {
	return m.existsFn(ctx, key)
}

// MOCK PUBLISHER

type mockPublisher struct {
	sendFn func(ctx context.Context, s retry.Strategy, key []byte, v []byte) error
}

func (m *mockPublisher) SendWithRetry(ctx context.Context, s retry.Strategy, key []byte, v []byte) error {
	return m.sendFn(ctx, s, key, v)
}

// MOCK RENDER

type mockRenderer struct {
	renderFn func(data []byte, s model.Settings, f *fontres.Version) ([]byte, error)
	opts     render.Options
}

func (m *mockRenderer) Options() render.Options {
	return m.opts
}

func (m *mockRenderer) RenderImage(data []byte, s model.Settings, f *fontres.Version) ([]byte, error) {
	return m.renderFn(data, s, f)
}

// синхронный "пул" - выполняет задачу прямо в вызывающей горутине
type inlinePool struct{}

func (inlinePool) Submit(ctx context.Context, fn func() error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return fn()
}

type mockCache struct {
	data map[string][]byte
}

func (m *mockCache) Get(_ context.Context, key string) ([]byte, bool, error) {
	v, ok := m.data[key]
	return v, ok, nil
}

func (m *mockCache) Set(_ context.Context, key string, data []byte) error {
	m.data[key] = data
	return nil
}

// MOCK FONTS

type mockFonts struct {
	cur       *fontres.Version
	replaceFn func(data []byte) (*fontres.Version, error)
}

func (m *mockFonts) Current() *fontres.Version {
	return m.cur
}

func (m *mockFonts) Replace(data []byte) (*fontres.Version, error) {
	return m.replaceFn(data)
}

// MOCK для multipart.File
type fakeMultipartFile struct {
	*bytes.Reader
}

func (f *fakeMultipartFile) Close() error {
	return nil
}
