package fontres

import (
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/UnendingLoop/Watermarker/internal/model"
	"github.com/stretchr/testify/require"
	"golang.org/x/image/font/gofont/gobold"
	"golang.org/x/image/font/gofont/goregular"
)

func TestFallback(t *testing.T) {
	fb := Fallback()
	require.Same(t, fb, Fallback())
	require.True(t, fb.IsFallback())
	require.Nil(t, fb.Data)

	var nilVersion *Version
	require.True(t, nilVersion.IsFallback())

	face, err := nilVersion.Face(24)
	require.NoError(t, err)
	defer face.Close()
	require.Positive(t, face.Metrics().Height.Ceil())
}

func TestFromBytes(t *testing.T) {
	v, err := FromBytes(gobold.TTF)
	require.NoError(t, err)
	require.Len(t, v.ID, 16)
	require.Equal(t, VersionID(gobold.TTF), v.ID)
	require.False(t, v.IsFallback())

	_, err = FromBytes([]byte("definitely not a font"))
	require.ErrorIs(t, err, model.ErrFontLoadFailure)

	_, err = FromBytes(nil)
	require.ErrorIs(t, err, model.ErrFontLoadFailure)
}

func TestOrFallback(t *testing.T) {
	require.True(t, OrFallback(nil).IsFallback())
	require.True(t, OrFallback([]byte("junk")).IsFallback())
	require.Equal(t, VersionID(gobold.TTF), OrFallback(gobold.TTF).ID)
}

func TestNew(t *testing.T) {
	dir := t.TempDir()

	t.Run("missing file", func(t *testing.T) {
		r := New(filepath.Join(dir, "absent.ttf"))
		require.True(t, r.Current().IsFallback())
	})

	t.Run("broken file", func(t *testing.T) {
		p := filepath.Join(dir, "broken.ttf")
		require.NoError(t, os.WriteFile(p, []byte("garbage"), 0o644))
		r := New(p)
		require.True(t, r.Current().IsFallback())
	})

	t.Run("valid file", func(t *testing.T) {
		p := filepath.Join(dir, "ok.ttf")
		require.NoError(t, os.WriteFile(p, gobold.TTF, 0o644))
		r := New(p)
		require.Equal(t, VersionID(gobold.TTF), r.Current().ID)
	})
}

func TestReplace(t *testing.T) {
	dir := t.TempDir()
	p := filepath.Join(dir, "fonts", "watermark.ttf")
	r := New(p)

	old := r.Current()
	_, err := r.Replace([]byte("not a font"))
	require.ErrorIs(t, err, model.ErrFontLoadFailure)
	require.Same(t, old, r.Current())
	_, err = os.Stat(p)
	require.ErrorIs(t, err, os.ErrNotExist)

	v, err := r.Replace(gobold.TTF)
	require.NoError(t, err)
	require.Same(t, v, r.Current())

	onDisk, err := os.ReadFile(p)
	require.NoError(t, err)
	require.Equal(t, gobold.TTF, onDisk)

	// старая версия у читателя остается рабочей
	face, err := old.Face(20)
	require.NoError(t, err)
	require.NoError(t, face.Close())

	entries, err := os.ReadDir(filepath.Dir(p))
	require.NoError(t, err)
	require.Len(t, entries, 1)
}

func TestReplace_ConcurrentReaders(t *testing.T) {
	r := New(filepath.Join(t.TempDir(), "f.ttf"))
	fonts := [][]byte{gobold.TTF, goregular.TTF}

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(2)
		go func(n int) {
			defer wg.Done()
			if _, err := r.Replace(fonts[n%2]); err != nil {
				t.Error(err)
			}
		}(i)
		go func() {
			defer wg.Done()
			v := r.Current()
			if v == nil || len(v.ID) == 0 {
				t.Error("empty version observed")
			}
		}()
	}
	wg.Wait()
}
