package render

import (
	"image"
	"math"

	"github.com/UnendingLoop/Watermarker/internal/model"
	"golang.org/x/image/draw"
	"golang.org/x/image/font"
	"golang.org/x/image/math/f64"
)

const tileAngle = math.Pi / 4

// Diagonal is ceil(sqrt(w²+h²)).
func Diagonal(w, h int) int {
	return int(math.Ceil(math.Hypot(float64(w), float64(h))))
}

// CanvasSize is the side of the square tile canvas for a w×h frame. Half of
// the diagonal plus half of the longer side on each side of the centre keeps
// the frame covered after any rotation about that centre.
func CanvasSize(w, h int) int {
	return Diagonal(w, h) + max(w, h)
}

// TileGap is the spacing between neighbouring stamps, at least one pixel.
func TileGap(size int, factor float64) int {
	return max(int(float64(size)*factor), 1)
}

// TileGrid lists the top-left corners of every stamp on a canvas of side
// size, starting at -margin on both axes.
func TileGrid(size int, box TextBox, gap, margin int) []image.Point {
	gap = max(gap, 1)
	stepX := max(box.Width+gap, 1)
	stepY := max(box.Height+gap, 1)

	var pts []image.Point
	for y := -margin; y < size; y += stepY {
		for x := -margin; x < size; x += stepX {
			pts = append(pts, image.Pt(x, y))
		}
	}
	return pts
}

// rotation maps the canvas (side c) into a w×h window: rotate 45° counter
// clockwise about the canvas centre and put that centre on the window centre.
func rotation(w, h, c int) f64.Aff3 {
	cos, sin := math.Cos(tileAngle), math.Sin(tileAngle)
	srcC := float64(c) / 2
	dstX, dstY := float64(w)/2, float64(h)/2

	return f64.Aff3{
		cos, sin, dstX - (cos*srcC + sin*srcC),
		-sin, cos, dstY - (-sin*srcC + cos*srcC),
	}
}

func (e *Engine) tiledMask(w, h int, face font.Face, s model.Settings) *image.Alpha {
	mask := image.NewAlpha(image.Rect(0, 0, w, h))

	box := Measure(face, s.Text)
	if box.Empty() {
		return mask
	}

	c := CanvasSize(w, h)
	canvas := image.NewAlpha(image.Rect(0, 0, c, c))
	gap := TileGap(s.Size, e.opts.GapFactor)
	for _, pt := range TileGrid(c, box, gap, e.opts.TileMargin) {
		drawText(canvas, face, s.Text, box, pt)
	}

	// поворот и центральный кроп за один проход, большой холст целиком не вращаем
	draw.CatmullRom.Transform(mask, rotation(w, h, c), canvas, canvas.Bounds(), draw.Src, nil)
	return mask
}
