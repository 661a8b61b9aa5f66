package video

import (
	"context"
	"image"
	"image/color"
	"io"
	"os"
)

type mockCodec struct {
	probeFn   func(ctx context.Context, path string) (Info, error)
	frames    int
	fill      color.RGBA
	onFrame   func(i int)
	writeErr  error
	failAfter int // сколько кадров энкодер примет до writeErr

	decoderOpened bool
	aborted       bool
	written       []*image.RGBA
}

func (m *mockCodec) Probe(ctx context.Context, path string) (Info, error) {
	return m.probeFn(ctx, path)
}

func (m *mockCodec) OpenDecoder(_ context.Context, _ string, info Info) (Decoder, error) {
	m.decoderOpened = true
	return &mockDecoder{codec: m, w: info.Width, h: info.Height}, nil
}

func (m *mockCodec) OpenEncoder(_ context.Context, _, dst string, _ Info) (Encoder, error) {
	return &mockEncoder{codec: m, dst: dst}, nil
}

type mockDecoder struct {
	codec *mockCodec
	w, h  int
	n     int
}

func (d *mockDecoder) Next() (*image.RGBA, error) {
	if d.n >= d.codec.frames {
		return nil, io.EOF
	}
	if d.codec.onFrame != nil {
		d.codec.onFrame(d.n)
	}
	d.n++

	return solid(d.w, d.h, d.codec.fill), nil
}

func (d *mockDecoder) Close() error { return nil }

type mockEncoder struct {
	codec *mockCodec
	dst   string
}

func (e *mockEncoder) WriteFrame(frame *image.RGBA) error {
	if e.codec.writeErr != nil && len(e.codec.written) >= e.codec.failAfter {
		return e.codec.writeErr
	}
	e.codec.written = append(e.codec.written, frame)
	return os.WriteFile(e.dst, []byte("partial"), 0o644)
}

func (e *mockEncoder) Close() error {
	return os.WriteFile(e.dst, []byte("mp4"), 0o644)
}

func (e *mockEncoder) Abort() {
	e.codec.aborted = true
}

func solid(w, h int, c color.RGBA) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for i := 0; i < len(img.Pix); i += 4 {
		img.Pix[i], img.Pix[i+1], img.Pix[i+2], img.Pix[i+3] = c.R, c.G, c.B, 0xff
	}
	return img
}
