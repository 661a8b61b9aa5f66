package service

import (
	"bytes"
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/UnendingLoop/Watermarker/internal/fontres"
	"github.com/UnendingLoop/Watermarker/internal/model"
	"github.com/UnendingLoop/Watermarker/internal/render"
	"github.com/UnendingLoop/Watermarker/internal/settings"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"github.com/wb-go/wbf/retry"
	"golang.org/x/image/font/gofont/gobold"
)

func newFakeFile(content string) *fakeMultipartFile {
	return &fakeMultipartFile{Reader: bytes.NewReader([]byte(content))}
}

func newTestService(d Deps) *WatermarkService {
	if d.Settings == nil {
		d.Settings = settings.NewMemoryStore()
	}
	if d.Fonts == nil {
		d.Fonts = &mockFonts{cur: fontres.Fallback()}
	}
	if d.Pool == nil {
		d.Pool = inlinePool{}
	}
	return NewWatermarkService(d)
}

func validVideoData() *model.VideoCreateData {
	return &model.VideoCreateData{
		UserID:      5,
		Video:       newFakeFile("video"),
		ContentType: model.MP4,
		Size:        5,
	}
}

// SETTINGS

func TestWatermarkService_Settings(t *testing.T) {
	svc := newTestService(Deps{})
	ctx := context.Background()

	s, err := svc.GetSettings(ctx, "12")
	require.NoError(t, err)
	require.Equal(t, model.DefaultSettings(), s)

	_, err = svc.GetSettings(ctx, "abc")
	require.ErrorIs(t, err, model.ErrIncorrectUser)

	_, err = svc.UpdateSettings(ctx, "12", model.SettingsPatch{})
	require.ErrorIs(t, err, model.ErrEmptyPatch)

	color := "#00ff00"
	s, err = svc.UpdateSettings(ctx, "12", model.SettingsPatch{Color: &color})
	require.NoError(t, err)
	require.Equal(t, model.RGB{G: 255}, s.Color)

	bad := 5000
	_, err = svc.UpdateSettings(ctx, "12", model.SettingsPatch{Size: &bad})
	require.ErrorIs(t, err, model.ErrInvalidSize)

	s, err = svc.GetSettings(ctx, "12")
	require.NoError(t, err)
	require.Equal(t, model.RGB{G: 255}, s.Color)
	require.Equal(t, 40, s.Size)
}

// SNAPSHOT

func TestWatermarkService_Snapshot_IsCopy(t *testing.T) {
	store := settings.NewMemoryStore()
	svc := newTestService(Deps{Settings: store})

	snap := svc.Snapshot(3)
	text := "later"
	_, err := store.Update(3, model.SettingsPatch{Text: &text}.Apply)
	require.NoError(t, err)

	require.Equal(t, "Watermark", snap.Settings.Text)
	require.True(t, snap.Font.IsFallback())
	require.Equal(t, "later", svc.Snapshot(3).Settings.Text)
}

// FONT

func TestWatermarkService_ReplaceFont(t *testing.T) {
	t.Run("invalid font keeps current", func(t *testing.T) {
		replaced := false
		svc := newTestService(Deps{
			Fonts: &mockFonts{cur: fontres.Fallback(), replaceFn: func([]byte) (*fontres.Version, error) {
				replaced = true
				return nil, nil
			}},
		})
		_, err := svc.ReplaceFont(context.Background(), []byte("nope"))
		require.ErrorIs(t, err, model.ErrFontLoadFailure)
		require.False(t, replaced)
	})

	t.Run("empty upload", func(t *testing.T) {
		svc := newTestService(Deps{})
		_, err := svc.ReplaceFont(context.Background(), nil)
		require.ErrorIs(t, err, model.ErrEmptySource)
	})

	t.Run("stored then replaced", func(t *testing.T) {
		var order []string
		storage := &mockStorage{
			existsFn: func(ctx context.Context, key string) (bool, error) {
				order = append(order, "exists:"+key)
				return false, nil
			},
			putFn: func(ctx context.Context, key string, size int64, ct string, r io.Reader) error {
				order = append(order, "put:"+key)
				require.Equal(t, int64(len(gobold.TTF)), size)
				return nil
			},
		}
		fonts := &mockFonts{cur: fontres.Fallback(), replaceFn: func(data []byte) (*fontres.Version, error) {
			order = append(order, "replace")
			return fontres.FromBytes(data)
		}}
		svc := newTestService(Deps{Storage: storage, Fonts: fonts})

		v, err := svc.ReplaceFont(context.Background(), gobold.TTF)
		require.NoError(t, err)

		key := "fonts/" + v.ID + ".ttf"
		require.Equal(t, []string{"exists:" + key, "put:" + key, "replace"}, order)
		require.Equal(t, key, FontKey(v))
	})

	t.Run("storage down", func(t *testing.T) {
		storage := &mockStorage{
			existsFn: func(ctx context.Context, key string) (bool, error) {
				return false, errors.New("minio down")
			},
		}
		svc := newTestService(Deps{Storage: storage})
		_, err := svc.ReplaceFont(context.Background(), gobold.TTF)
		require.ErrorIs(t, err, model.ErrCommon500)
	})
}

func TestFontKey_Fallback(t *testing.T) {
	require.Empty(t, FontKey(fontres.Fallback()))
	require.Empty(t, FontKey(nil))
}

// RENDER IMAGE

func TestWatermarkService_RenderImage(t *testing.T) {
	png := []byte("\x89PNG\r\n\x1a\n0000")

	tests := []struct {
		name     string
		uid      string
		data     []byte
		ctype    string
		renderFn func([]byte, model.Settings, *fontres.Version) ([]byte, error)
		want     []byte
		wantErr  error
	}{
		{
			name:  "ok",
			uid:   "1",
			data:  png,
			ctype: model.PNG,
			renderFn: func(_ []byte, s model.Settings, _ *fontres.Version) ([]byte, error) {
				require.Equal(t, model.DefaultSettings(), s)
				return []byte("jpeg"), nil
			},
			want: []byte("jpeg"),
		},
		{
			name:  "octet-stream is sniffed",
			uid:   "1",
			data:  png,
			ctype: "application/octet-stream",
			renderFn: func([]byte, model.Settings, *fontres.Version) ([]byte, error) {
				return []byte("jpeg"), nil
			},
			want: []byte("jpeg"),
		},
		{name: "bad user", uid: "x", data: png, ctype: model.PNG, wantErr: model.ErrIncorrectUser},
		{name: "empty", uid: "1", ctype: model.PNG, wantErr: model.ErrEmptySource},
		{name: "unsupported", uid: "1", data: []byte("hello"), ctype: "text/plain", wantErr: model.ErrUnsupportedFormat},
		{
			name:  "decode failure",
			uid:   "1",
			data:  png,
			ctype: model.PNG,
			renderFn: func([]byte, model.Settings, *fontres.Version) ([]byte, error) {
				return nil, model.ErrDecodeFailure
			},
			wantErr: model.ErrDecodeFailure,
		},
		{
			name:  "internal failure",
			uid:   "1",
			data:  png,
			ctype: model.PNG,
			renderFn: func([]byte, model.Settings, *fontres.Version) ([]byte, error) {
				return nil, model.ErrEncodeFailure
			},
			wantErr: model.ErrCommon500,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := newTestService(Deps{Renderer: &mockRenderer{renderFn: tt.renderFn}})

			got, err := svc.RenderImage(context.Background(), tt.uid, tt.data, tt.ctype)
			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			require.Equal(t, tt.want, got)
		})
	}
}

func TestWatermarkService_RenderImage_Cache(t *testing.T) {
	calls := 0
	svc := newTestService(Deps{
		Renderer: &mockRenderer{renderFn: func([]byte, model.Settings, *fontres.Version) ([]byte, error) {
			calls++
			return []byte("jpeg"), nil
		}},
		Cache: &mockCache{data: map[string][]byte{}},
	})
	png := []byte("\x89PNG\r\n\x1a\n0000")

	for i := 0; i < 3; i++ {
		out, err := svc.RenderImage(context.Background(), "9", png, model.PNG)
		require.NoError(t, err)
		require.Equal(t, []byte("jpeg"), out)
	}
	require.Equal(t, 1, calls)

	size := 99
	_, err := svc.UpdateSettings(context.Background(), "9", model.SettingsPatch{Size: &size})
	require.NoError(t, err)
	_, err = svc.RenderImage(context.Background(), "9", png, model.PNG)
	require.NoError(t, err)
	require.Equal(t, 2, calls)
}

func TestWatermarkService_RenderImage_SharedCacheAcrossOptions(t *testing.T) {
	shared := &mockCache{data: map[string][]byte{}}
	png := []byte("\x89PNG\r\n\x1a\n0000")

	newSvc := func(alpha uint8, out string) *WatermarkService {
		opts := render.DefaultOptions()
		opts.Alpha = alpha
		return newTestService(Deps{
			Renderer: &mockRenderer{opts: opts, renderFn: func([]byte, model.Settings, *fontres.Version) ([]byte, error) {
				return []byte(out), nil
			}},
			Cache: shared,
		})
	}

	got, err := newSvc(180, "opaque").RenderImage(context.Background(), "1", png, model.PNG)
	require.NoError(t, err)
	require.Equal(t, []byte("opaque"), got)

	// тот же редис, но инстанс с другой прозрачностью рендерит сам
	got, err = newSvc(60, "faint").RenderImage(context.Background(), "1", png, model.PNG)
	require.NoError(t, err)
	require.Equal(t, []byte("faint"), got)
	require.Len(t, shared.data, 2)
}

// SUBMIT VIDEO - SUCCESS
func TestWatermarkService_SubmitVideo_OK(t *testing.T) {
	ctx := context.Background()
	store := settings.NewMemoryStore()
	mode := "tiled"
	_, err := store.Update(5, model.SettingsPatch{Mode: &mode}.Apply)
	require.NoError(t, err)

	repo := &mockRepo{
		createFn: func(ctx context.Context, j *model.VideoJob) error {
			require.NotEmpty(t, j.UID)
			require.Equal(t, model.StateIdle, j.State)
			require.Equal(t, model.ModeTiled, j.Snapshot.Mode)
			require.Empty(t, j.FontKey)
			require.Equal(t, "src/"+j.UID.String()+".mp4", j.SourceKey)
			return nil
		},
	}

	storage := &mockStorage{
		putFn: func(ctx context.Context, key string, size int64, ct string, r io.Reader) error {
			require.Equal(t, model.MP4, ct)
			return nil
		},
	}

	var published []byte
	pub := &mockPublisher{
		sendFn: func(ctx context.Context, s retry.Strategy, key []byte, v []byte) error {
			published = key
			return nil
		},
	}

	svc := newTestService(Deps{Repo: repo, Storage: storage, Publisher: pub, Settings: store})

	job, err := svc.SubmitVideo(ctx, validVideoData())
	require.NoError(t, err)
	require.Equal(t, job.UID.String(), string(published))
}

func TestWatermarkService_SubmitVideo_Validation(t *testing.T) {
	svc := newTestService(Deps{MaxVideo: 10})

	_, err := svc.SubmitVideo(context.Background(), &model.VideoCreateData{})
	require.ErrorIs(t, err, model.ErrEmptySource)

	d := validVideoData()
	d.ContentType = "video/x-flv"
	_, err = svc.SubmitVideo(context.Background(), d)
	require.ErrorIs(t, err, model.ErrUnsupportedFormat)

	d = validVideoData()
	d.Size = 11
	_, err = svc.SubmitVideo(context.Background(), d)
	require.ErrorIs(t, err, model.ErrSizeLimitExceeded)
}

// SUBMIT VIDEO - DB FAIL removes uploaded source
func TestWatermarkService_SubmitVideo_DBError(t *testing.T) {
	deleted := ""
	storage := &mockStorage{
		putFn: func(ctx context.Context, key string, size int64, ct string, r io.Reader) error { return nil },
		deleteFn: func(ctx context.Context, key string) error {
			deleted = key
			return nil
		},
	}
	repo := &mockRepo{
		createFn: func(ctx context.Context, j *model.VideoJob) error { return errors.New("db down") },
	}
	svc := newTestService(Deps{Repo: repo, Storage: storage})

	_, err := svc.SubmitVideo(context.Background(), validVideoData())
	require.ErrorIs(t, err, model.ErrCommon500)
	require.Contains(t, deleted, "src/")
}

// SUBMIT VIDEO - custom font key travels with the job
func TestWatermarkService_SubmitVideo_FontKey(t *testing.T) {
	v, err := fontres.FromBytes(gobold.TTF)
	require.NoError(t, err)

	var keys []string
	storage := &mockStorage{
		existsFn: func(ctx context.Context, key string) (bool, error) { return true, nil },
		putFn: func(ctx context.Context, key string, size int64, ct string, r io.Reader) error {
			keys = append(keys, key)
			return nil
		},
	}
	var fontKey string
	repo := &mockRepo{createFn: func(ctx context.Context, j *model.VideoJob) error {
		fontKey = j.FontKey
		return nil
	}}
	pub := &mockPublisher{sendFn: func(context.Context, retry.Strategy, []byte, []byte) error { return nil }}

	svc := newTestService(Deps{Repo: repo, Storage: storage, Publisher: pub, Fonts: &mockFonts{cur: v}})
	_, err = svc.SubmitVideo(context.Background(), validVideoData())
	require.NoError(t, err)

	require.Equal(t, "fonts/"+v.ID+".ttf", fontKey)
	// шрифт уже был в хранилище - заливается только сорсник
	require.Len(t, keys, 1)
}

// GET - FAIL
func TestWatermarkService_GetJob(t *testing.T) {
	svc := newTestService(Deps{})
	_, err := svc.GetJob(context.Background(), "bad-id")
	require.ErrorIs(t, err, model.ErrIncorrectID)

	id := uuid.New().String()
	repo := &mockRepo{getFn: func(ctx context.Context, uid string) (*model.VideoJob, error) {
		return nil, model.ErrJobNotFound
	}}
	svc = newTestService(Deps{Repo: repo})
	_, err = svc.GetJob(context.Background(), id)
	require.ErrorIs(t, err, model.ErrJobNotFound)

	repo.getFn = func(ctx context.Context, uid string) (*model.VideoJob, error) {
		return nil, errors.New("db down")
	}
	_, err = svc.GetJob(context.Background(), id)
	require.ErrorIs(t, err, model.ErrCommon500)
}

// LOADRESULT
func TestWatermarkService_LoadResult(t *testing.T) {
	id := uuid.New().String()

	t.Run("not ready", func(t *testing.T) {
		repo := &mockRepo{getFn: func(ctx context.Context, id string) (*model.VideoJob, error) {
			return &model.VideoJob{State: model.StateProcessing}, nil
		}}
		svc := newTestService(Deps{Repo: repo})
		_, _, err := svc.LoadResult(context.Background(), id)
		require.ErrorIs(t, err, model.ErrResultNotReady)
	})

	t.Run("done", func(t *testing.T) {
		repo := &mockRepo{getFn: func(ctx context.Context, id string) (*model.VideoJob, error) {
			return &model.VideoJob{State: model.StateDone, ResultKey: "result/x.mp4"}, nil
		}}
		storage := &mockStorage{getFn: func(ctx context.Context, key string) (io.ReadCloser, string, error) {
			require.Equal(t, "result/x.mp4", key)
			return newFakeFile("mp4"), "", nil
		}}
		svc := newTestService(Deps{Repo: repo, Storage: storage})

		rc, ct, err := svc.LoadResult(context.Background(), id)
		require.NoError(t, err)
		defer rc.Close()
		require.Equal(t, model.MP4, ct)
	})
}

func TestWatermarkService_UpdateState(t *testing.T) {
	repo := &mockRepo{updateStateFn: func(ctx context.Context, id string, st model.State, msg string) error {
		return errors.New("db down")
	}}
	svc := newTestService(Deps{Repo: repo})

	require.ErrorIs(t, svc.UpdateState(context.Background(), "bad", model.StateDone, ""), model.ErrIncorrectID)
	require.ErrorIs(t, svc.UpdateState(context.Background(), uuid.New().String(), model.StateDone, ""), model.ErrCommon500)

	repo.updateStateFn = func(ctx context.Context, id string, st model.State, msg string) error { return model.ErrJobNotFound }
	require.ErrorIs(t, svc.UpdateState(context.Background(), uuid.New().String(), model.StateDone, ""), model.ErrJobNotFound)
}

func TestWatermarkService_SaveResult(t *testing.T) {
	repo := &mockRepo{saveResultFn: func(ctx context.Context, j *model.VideoJob) error {
		require.NotNil(t, j.UpdatedAt)
		return nil
	}}
	svc := newTestService(Deps{Repo: repo})
	require.NoError(t, svc.SaveResult(context.Background(), &model.VideoJob{UID: uuid.New(), State: model.StateDone}))
}

// REVIVE ORPHANS
func TestWatermarkService_ReviveOrphans(t *testing.T) {
	sent := 0
	repo := &mockRepo{fetchOrphansFn: func(ctx context.Context, limit int, cutoff time.Time) ([]string, error) {
		require.Equal(t, 20, limit)
		require.WithinDuration(t, time.Now().Add(-model.JobStaleAfter), cutoff, time.Minute)
		return []string{"a", "b"}, nil
	}}
	pub := &mockPublisher{sendFn: func(ctx context.Context, s retry.Strategy, key []byte, v []byte) error {
		sent++
		return nil
	}}
	svc := newTestService(Deps{Repo: repo, Publisher: pub})
	svc.ReviveOrphans(context.Background(), 20)
	require.Equal(t, 2, sent)
}
