package render

import (
	"bytes"
	"fmt"
	"image"
	"image/draw"

	"github.com/UnendingLoop/Watermarker/internal/fontres"
	"github.com/UnendingLoop/Watermarker/internal/model"
	"github.com/disintegration/imaging"
	"github.com/wb-go/wbf/zlog"
)

// Options tune the layout. NewEngine fills unset fields from DefaultOptions;
// MinPadding and TileMargin accept zero.
type Options struct {
	Alpha        uint8   // непрозрачность текста, 0..255
	PaddingRatio float64 // доля короткой стороны кадра
	MinPadding   int
	GapFactor    float64 // зазор между плитками в размерах шрифта
	TileMargin   int
	JPEGQuality  int
}

func DefaultOptions() Options {
	return Options{
		Alpha:        180,
		PaddingRatio: 0.05,
		MinPadding:   10,
		GapFactor:    4,
		TileMargin:   50,
		JPEGQuality:  95,
	}
}

func (o Options) withDefaults() Options {
	def := DefaultOptions()
	if o.Alpha == 0 {
		o.Alpha = def.Alpha
	}
	if o.PaddingRatio <= 0 {
		o.PaddingRatio = def.PaddingRatio
	}
	if o.MinPadding < 0 {
		o.MinPadding = def.MinPadding
	}
	if o.GapFactor <= 0 {
		o.GapFactor = def.GapFactor
	}
	if o.TileMargin < 0 {
		o.TileMargin = def.TileMargin
	}
	if o.JPEGQuality <= 0 || o.JPEGQuality > 100 {
		o.JPEGQuality = def.JPEGQuality
	}
	return o
}

// Job is everything a render needs, captured once before the first frame.
type Job struct {
	Settings model.Settings
	Font     *fontres.Version // nil - встроенный шрифт
}

type Engine struct {
	opts Options
}

func NewEngine(opts Options) *Engine {
	return &Engine{opts: opts.withDefaults()}
}

func (e *Engine) Options() Options {
	return e.opts
}

// Layer builds the w×h watermark layer for job. It depends only on the frame
// size and the job, so video callers build it once and reuse it.
func (e *Engine) Layer(w, h int, job Job) (*image.RGBA, error) {
	face, err := job.Font.Face(float64(job.Settings.Size))
	if err != nil {
		zlog.Logger.Warn().Err(err).Msg("Failed to build font face, using built-in font")
		if face, err = fontres.Fallback().Face(float64(job.Settings.Size)); err != nil {
			return nil, err
		}
	}
	defer face.Close()

	var mask *image.Alpha
	switch job.Settings.Mode {
	case model.ModeTiled:
		mask = e.tiledMask(w, h, face, job.Settings)
	default:
		mask = e.singleMask(w, h, face, job.Settings)
	}

	layer := image.NewRGBA(mask.Rect)
	fill := image.NewUniform(job.Settings.Color.NRGBA(e.opts.Alpha))
	draw.DrawMask(layer, layer.Rect, fill, image.Point{}, mask, image.Point{}, draw.Src)
	return layer, nil
}

// Apply watermarks one frame.
func (e *Engine) Apply(frame image.Image, job Job) (*image.RGBA, error) {
	b := frame.Bounds()
	layer, err := e.Layer(b.Dx(), b.Dy(), job)
	if err != nil {
		return nil, err
	}
	return Composite(frame, layer), nil
}

// RenderImage decodes a still, watermarks it and returns it as JPEG.
func (e *Engine) RenderImage(data []byte, s model.Settings, font *fontres.Version) ([]byte, error) {
	img, err := imaging.Decode(bytes.NewReader(data), imaging.AutoOrientation(true))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", model.ErrDecodeFailure, err)
	}

	out, err := e.Apply(img, Job{Settings: s, Font: font})
	if err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	if err := imaging.Encode(&buf, out, imaging.JPEG, imaging.JPEGQuality(e.opts.JPEGQuality)); err != nil {
		return nil, fmt.Errorf("%w: %v", model.ErrEncodeFailure, err)
	}
	return buf.Bytes(), nil
}
