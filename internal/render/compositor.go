package render

import (
	"image"
	"image/draw"
)

// Composite draws layer over base into a new opaque frame of base's size.
// Neither input is modified.
func Composite(base, layer image.Image) *image.RGBA {
	b := base.Bounds()
	out := image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(out, out.Bounds(), base, b.Min, draw.Src)
	if layer != nil {
		draw.Draw(out, out.Bounds(), layer, layer.Bounds().Min, draw.Over)
	}
	flatten(out)
	return out
}

// flatten drops alpha keeping the straight colour, so translucent source
// pixels keep their hue instead of darkening.
func flatten(img *image.RGBA) {
	pix := img.Pix
	for i := 0; i+3 < len(pix); i += 4 {
		a := uint32(pix[i+3])
		switch a {
		case 0xff:
			continue
		case 0:
			pix[i], pix[i+1], pix[i+2] = 0, 0, 0
		default:
			pix[i] = uint8(uint32(pix[i]) * 0xff / a)
			pix[i+1] = uint8(uint32(pix[i+1]) * 0xff / a)
			pix[i+2] = uint8(uint32(pix[i+2]) * 0xff / a)
		}
		pix[i+3] = 0xff
	}
}

// PackRGB writes img as tightly packed rgb24 into buf, growing it if needed.
func PackRGB(img *image.RGBA, buf []byte) []byte {
	w, h := img.Rect.Dx(), img.Rect.Dy()
	need := w * h * 3
	if cap(buf) < need {
		buf = make([]byte, need)
	}
	buf = buf[:need]

	j := 0
	for y := 0; y < h; y++ {
		row := img.Pix[y*img.Stride : y*img.Stride+w*4]
		for x := 0; x < len(row); x += 4 {
			buf[j] = row[x]
			buf[j+1] = row[x+1]
			buf[j+2] = row[x+2]
			j += 3
		}
	}
	return buf
}
