// Package render composes text watermarks onto frames: layout of a single
// anchored stamp or a rotated tile pattern, and alpha compositing of the
// resulting layer over the base image.
package render

import (
	"image"

	"golang.org/x/image/font"
	"golang.org/x/image/math/fixed"
)

// TextBox is the tight pixel box of a glyph run. Offset moves the box's
// top-left corner onto the drawer's dot.
type TextBox struct {
	Width  int
	Height int
	Offset image.Point
}

func (b TextBox) Empty() bool {
	return b.Width <= 0 || b.Height <= 0
}

// Measure returns the ink bounds of text in face. Empty text gives (0,0);
// text without ink (spaces only) gets its advance width and line height.
func Measure(face font.Face, text string) TextBox {
	if text == "" {
		return TextBox{}
	}

	bounds, _ := font.BoundString(face, text)
	minX, minY := bounds.Min.X.Floor(), bounds.Min.Y.Floor()
	maxX, maxY := bounds.Max.X.Ceil(), bounds.Max.Y.Ceil()
	if maxX <= minX || maxY <= minY {
		return advanceBox(face, text)
	}

	return TextBox{
		Width:  maxX - minX,
		Height: maxY - minY,
		Offset: image.Pt(-minX, -minY),
	}
}

// drawText draws text so that its box's top-left lands on at.
func drawText(dst *image.Alpha, face font.Face, text string, box TextBox, at image.Point) {
	d := &font.Drawer{
		Dst:  dst,
		Src:  image.Opaque,
		Face: face,
		Dot:  fixed.P(at.X+box.Offset.X, at.Y+box.Offset.Y),
	}
	d.DrawString(text)
}

func advanceBox(face font.Face, text string) TextBox {
	m := face.Metrics()
	w := font.MeasureString(face, text).Ceil()
	h := (m.Ascent + m.Descent).Ceil()
	if w <= 0 || h <= 0 {
		return TextBox{}
	}
	return TextBox{Width: w, Height: h, Offset: image.Pt(0, m.Ascent.Ceil())}
}
