package render

import (
	"image"

	"github.com/UnendingLoop/Watermarker/internal/model"
	"golang.org/x/image/font"
)

// Padding is the edge gap for anchored stamps: a share of the shorter side,
// never below floor.
func Padding(w, h int, ratio float64, floor int) int {
	return max(int(float64(min(w, h))*ratio), floor)
}

// Anchor returns the top-left of the text box for pos inside a w×h frame.
// The result is not clamped; text wider than the frame gets negative x.
func Anchor(w, h int, box TextBox, pos model.Position, pad int) image.Point {
	tw, th := box.Width, box.Height

	switch pos {
	case model.PosTopLeft:
		return image.Pt(pad, pad)
	case model.PosTopRight:
		return image.Pt(w-tw-pad, pad)
	case model.PosBottomLeft:
		return image.Pt(pad, h-th-pad)
	case model.PosCenter:
		return image.Pt((w-tw)/2, (h-th)/2)
	default:
		return image.Pt(w-tw-pad, h-th-pad)
	}
}

func (e *Engine) singleMask(w, h int, face font.Face, s model.Settings) *image.Alpha {
	mask := image.NewAlpha(image.Rect(0, 0, w, h))

	box := Measure(face, s.Text)
	if box.Empty() {
		return mask
	}

	pad := Padding(w, h, e.opts.PaddingRatio, e.opts.MinPadding)
	drawText(mask, face, s.Text, box, Anchor(w, h, box, s.Position, pad))
	return mask
}
