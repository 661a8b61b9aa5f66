package cache

import (
	"context"
	"strings"
	"testing"

	"github.com/UnendingLoop/Watermarker/internal/model"
	"github.com/UnendingLoop/Watermarker/internal/render"
	"github.com/stretchr/testify/require"
)

func TestKey(t *testing.T) {
	img := []byte("jpeg-bytes")
	s := model.DefaultSettings()
	opts := render.DefaultOptions()

	k := Key(img, s, "fallback", opts)
	require.True(t, strings.HasPrefix(k, keyPrefix))
	require.Equal(t, k, Key(img, s, "fallback", opts))

	other := s
	other.Size = 41
	require.NotEqual(t, k, Key(img, other, "fallback", opts))
	require.NotEqual(t, k, Key(img, s, "0123456789abcdef", opts))
	require.NotEqual(t, k, Key([]byte("png-bytes"), s, "fallback", opts))

	// тот же запрос на инстансе с другой прозрачностью/качеством - другой рендер
	faint := opts
	faint.Alpha = 90
	require.NotEqual(t, k, Key(img, s, "fallback", faint))
	lowQ := opts
	lowQ.JPEGQuality = 60
	require.NotEqual(t, k, Key(img, s, "fallback", lowQ))
}

func TestNoop(t *testing.T) {
	var c Noop
	require.NoError(t, c.Set(context.Background(), "k", []byte("v")))

	data, ok, err := c.Get(context.Background(), "k")
	require.NoError(t, err)
	require.False(t, ok)
	require.Nil(t, data)
}
