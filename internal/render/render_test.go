package render

import (
	"bytes"
	"image"
	"image/color"
	"math"
	"testing"

	"github.com/UnendingLoop/Watermarker/internal/fontres"
	"github.com/UnendingLoop/Watermarker/internal/model"
	"github.com/disintegration/imaging"
	"github.com/stretchr/testify/require"
	"golang.org/x/image/font"
)

func testFace(t *testing.T, size float64) font.Face {
	t.Helper()

	face, err := fontres.Fallback().Face(size)
	require.NoError(t, err)
	t.Cleanup(func() { face.Close() })
	return face
}

func solidImage(w, h int, c color.Color) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, c)
		}
	}
	return img
}

func encoded(t *testing.T, img image.Image, format imaging.Format) []byte {
	t.Helper()

	var buf bytes.Buffer
	require.NoError(t, imaging.Encode(&buf, img, format))
	return buf.Bytes()
}

func TestMeasure(t *testing.T) {
	face := testFace(t, 40)

	require.Equal(t, TextBox{}, Measure(face, ""))
	require.True(t, Measure(face, "").Empty())

	for _, text := range []string{"A", "Watermark", "(c) 2024 ÄÖÜ", "gjpqy"} {
		box := Measure(face, text)
		require.Positive(t, box.Width, text)
		require.Positive(t, box.Height, text)
		require.False(t, box.Empty())
	}

	// пробелы без чернил, но место занимают
	blank := Measure(face, "   ")
	require.Positive(t, blank.Width)
	require.Positive(t, blank.Height)
	require.Greater(t, Measure(face, "      ").Width, blank.Width)

	short := Measure(face, "Wa")
	long := Measure(face, "Watermark")
	require.Greater(t, long.Width, short.Width)
}

func TestMeasure_InkLandsInsideBox(t *testing.T) {
	face := testFace(t, 60)
	box := Measure(face, "Hg")

	at := image.Pt(20, 30)
	mask := image.NewAlpha(image.Rect(0, 0, box.Width+60, box.Height+80))
	drawText(mask, face, "Hg", box, at)

	inside := image.Rect(at.X, at.Y, at.X+box.Width, at.Y+box.Height).Inset(-1)
	var inked int
	for y := mask.Rect.Min.Y; y < mask.Rect.Max.Y; y++ {
		for x := mask.Rect.Min.X; x < mask.Rect.Max.X; x++ {
			if mask.AlphaAt(x, y).A == 0 {
				continue
			}
			inked++
			require.True(t, image.Pt(x, y).In(inside), "ink at %d,%d outside %v", x, y, inside)
		}
	}
	require.Positive(t, inked)
}

func TestPadding(t *testing.T) {
	require.Equal(t, 50, Padding(1000, 1000, 0.05, 10))
	require.Equal(t, 25, Padding(500, 2000, 0.05, 10))
	require.Equal(t, 10, Padding(100, 100, 0.05, 10))
}

func TestAnchor(t *testing.T) {
	box := TextBox{Width: 200, Height: 50}

	tests := []struct {
		pos  model.Position
		want image.Point
	}{
		{model.PosTopLeft, image.Pt(50, 50)},
		{model.PosTopRight, image.Pt(750, 50)},
		{model.PosBottomLeft, image.Pt(50, 900)},
		{model.PosBottomRight, image.Pt(750, 900)},
		{model.PosCenter, image.Pt(400, 475)},
	}

	for _, tt := range tests {
		t.Run(string(tt.pos), func(t *testing.T) {
			got := Anchor(1000, 1000, box, tt.pos, 50)
			require.Equal(t, tt.want, got)
			require.Equal(t, got, Anchor(1000, 1000, box, tt.pos, 50))
		})
	}
}

func TestAnchor_NoClamping(t *testing.T) {
	box := TextBox{Width: 300, Height: 40}
	require.Equal(t, image.Pt(-210, 60), Anchor(150, 150, box, model.PosTopRight, 60))
	require.Equal(t, image.Pt(-75, 55), Anchor(150, 150, box, model.PosCenter, 60))
}

func TestCanvasSize(t *testing.T) {
	sizes := [][2]int{{1, 1}, {640, 480}, {1920, 1080}, {1000, 1000}, {3, 4000}}
	for _, s := range sizes {
		w, h := s[0], s[1]
		diag := math.Hypot(float64(w), float64(h))
		c := CanvasSize(w, h)
		require.Greater(t, float64(c), 1.4*diag, "%dx%d", w, h)
		require.Equal(t, c, CanvasSize(w, h))
	}
	require.Equal(t, 5, Diagonal(3, 4))
}

func TestRotation_CornersInsideCanvas(t *testing.T) {
	for _, s := range [][2]int{{640, 480}, {1920, 1080}, {7, 3000}} {
		w, h := s[0], s[1]
		c := CanvasSize(w, h)
		m := rotation(w, h, c)

		// обратное отображение: углы окна должны попадать внутрь холста
		a, b, tx := m[0], m[1], m[2]
		d, e, ty := m[3], m[4], m[5]
		det := a*e - b*d
		for _, p := range [][2]float64{{0, 0}, {float64(w), 0}, {0, float64(h)}, {float64(w), float64(h)}} {
			x, y := p[0]-tx, p[1]-ty
			sx := (e*x - b*y) / det
			sy := (-d*x + a*y) / det
			require.GreaterOrEqual(t, sx, 0.0)
			require.GreaterOrEqual(t, sy, 0.0)
			require.LessOrEqual(t, sx, float64(c))
			require.LessOrEqual(t, sy, float64(c))
		}
	}
}

func TestTileGrid(t *testing.T) {
	box := TextBox{Width: 100, Height: 20}
	pts := TileGrid(500, box, 40, 50)

	require.Equal(t, image.Pt(-50, -50), pts[0])
	require.Equal(t, pts, TileGrid(500, box, 40, 50))

	// шаг 140 по x: -50, 90, 230, 370; шаг 60 по y: -50 ... 490
	require.Len(t, pts, 4*10)
	for _, p := range pts {
		require.Less(t, p.X, 500)
		require.Less(t, p.Y, 500)
	}

	require.NotEmpty(t, TileGrid(10, TextBox{}, 0, 0))
	require.Equal(t, 1, TileGap(0, 4))
	require.Equal(t, 160, TileGap(40, 4))
}

func TestComposite(t *testing.T) {
	base := solidImage(64, 48, color.RGBA{R: 10, G: 20, B: 30, A: 255})
	layer := image.NewRGBA(image.Rect(0, 0, 64, 48))
	layer.Set(5, 5, color.RGBA{R: 255, G: 255, B: 255, A: 255})

	baseCopy := imaging.Clone(base)
	layerCopy := imaging.Clone(layer)

	out := Composite(base, layer)
	require.Equal(t, 64, out.Bounds().Dx())
	require.Equal(t, 48, out.Bounds().Dy())
	require.Equal(t, color.RGBA{R: 255, G: 255, B: 255, A: 255}, out.RGBAAt(5, 5))
	require.Equal(t, color.RGBA{R: 10, G: 20, B: 30, A: 255}, out.RGBAAt(0, 0))

	require.Equal(t, baseCopy.Pix, imaging.Clone(base).Pix)
	require.Equal(t, layerCopy.Pix, imaging.Clone(layer).Pix)
}

func TestComposite_FlattensAlpha(t *testing.T) {
	base := image.NewNRGBA(image.Rect(0, 0, 2, 1))
	base.SetNRGBA(0, 0, color.NRGBA{R: 200, G: 100, B: 50, A: 128})

	out := Composite(base, nil)
	px := out.RGBAAt(0, 0)
	require.Equal(t, uint8(0xff), px.A)
	require.InDelta(t, 200, int(px.R), 2)
	require.InDelta(t, 100, int(px.G), 2)
	require.InDelta(t, 50, int(px.B), 2)
	require.Equal(t, color.RGBA{A: 0xff}, out.RGBAAt(1, 0))
}

func TestPackRGB(t *testing.T) {
	img := solidImage(3, 2, color.RGBA{R: 1, G: 2, B: 3, A: 255})
	sub := img.SubImage(image.Rect(1, 0, 3, 2)).(*image.RGBA)

	buf := PackRGB(sub, nil)
	require.Len(t, buf, 2*2*3)
	require.Equal(t, []byte{1, 2, 3, 1, 2, 3, 1, 2, 3, 1, 2, 3}, buf)

	reused := PackRGB(sub, make([]byte, 0, 100))
	require.Equal(t, buf, reused)
}

func TestEngine_Layer(t *testing.T) {
	eng := NewEngine(Options{})
	require.Equal(t, DefaultOptions().Alpha, eng.Options().Alpha)

	red := model.RGB{R: 255}
	tests := []struct {
		name string
		mode model.Mode
	}{
		{"single", model.ModeSingle},
		{"tiled", model.ModeTiled},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := model.DefaultSettings()
			s.Mode = tt.mode
			s.Color = red

			layer, err := eng.Layer(320, 200, Job{Settings: s})
			require.NoError(t, err)
			require.Equal(t, image.Rect(0, 0, 320, 200), layer.Bounds())

			var maxA uint8
			for i := 3; i < len(layer.Pix); i += 4 {
				maxA = max(maxA, layer.Pix[i])
				// только красный канал, остальные нули
				require.Zero(t, layer.Pix[i-2])
				require.Zero(t, layer.Pix[i-1])
			}
			require.Positive(t, maxA)
			require.LessOrEqual(t, maxA, eng.Options().Alpha+1)
		})
	}
}

func TestEngine_SingleStampCorner(t *testing.T) {
	eng := NewEngine(DefaultOptions())
	s := model.DefaultSettings()
	s.Position = model.PosTopLeft

	layer, err := eng.Layer(400, 400, Job{Settings: s})
	require.NoError(t, err)

	// нижний правый квадрант пустой при якоре tl
	for y := 300; y < 400; y++ {
		for x := 300; x < 400; x++ {
			require.Zero(t, layer.RGBAAt(x, y).A)
		}
	}
}

func TestEngine_TiledCoversFrame(t *testing.T) {
	eng := NewEngine(DefaultOptions())
	s := model.DefaultSettings()
	s.Mode = model.ModeTiled
	s.Size = 20

	layer, err := eng.Layer(600, 400, Job{Settings: s})
	require.NoError(t, err)

	// в каждой четверти кадра есть хоть один штамп
	quads := []image.Rectangle{
		image.Rect(0, 0, 300, 200), image.Rect(300, 0, 600, 200),
		image.Rect(0, 200, 300, 400), image.Rect(300, 200, 600, 400),
	}
	for _, q := range quads {
		var found bool
		for y := q.Min.Y; y < q.Max.Y && !found; y++ {
			for x := q.Min.X; x < q.Max.X; x++ {
				if layer.RGBAAt(x, y).A > 0 {
					found = true
					break
				}
			}
		}
		require.True(t, found, "quadrant %v", q)
	}
}

func TestEngine_RenderImage(t *testing.T) {
	eng := NewEngine(DefaultOptions())
	src := encoded(t, solidImage(120, 80, color.RGBA{B: 200, A: 255}), imaging.PNG)

	out, err := eng.RenderImage(src, model.DefaultSettings(), nil)
	require.NoError(t, err)

	img, format, err := image.Decode(bytes.NewReader(out))
	require.NoError(t, err)
	require.Equal(t, "jpeg", format)
	require.Equal(t, 120, img.Bounds().Dx())
	require.Equal(t, 80, img.Bounds().Dy())

	_, err = eng.RenderImage([]byte("not-an-image"), model.DefaultSettings(), nil)
	require.ErrorIs(t, err, model.ErrDecodeFailure)
}

func TestEngine_SameJobSameLayer(t *testing.T) {
	eng := NewEngine(DefaultOptions())
	job := Job{Settings: model.DefaultSettings(), Font: fontres.Fallback()}

	a, err := eng.Layer(200, 100, job)
	require.NoError(t, err)
	b, err := eng.Layer(200, 100, job)
	require.NoError(t, err)
	require.Equal(t, a.Pix, b.Pix)
}
