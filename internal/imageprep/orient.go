package imageprep

import (
	"bytes"
	"image"

	"github.com/evanoberholster/imagemeta"
)

// orientation returns the EXIF orientation tag (1-8), or 1 when the image
// has no readable EXIF block.
func orientation(data []byte) int {
	meta, err := imagemeta.Decode(bytes.NewReader(data))
	if err != nil {
		return 1
	}
	o := int(meta.Orientation)
	if o < 1 || o > 8 {
		return 1
	}
	return o
}

// orient applies an EXIF orientation so the pixels display upright.
func orient(src *image.RGBA, o int) *image.RGBA {
	if o <= 1 || o > 8 {
		return src
	}
	w, h := src.Bounds().Dx(), src.Bounds().Dy()
	dw, dh := w, h
	if o >= 5 {
		dw, dh = h, w
	}
	dst := image.NewRGBA(image.Rect(0, 0, dw, dh))
	origin := src.Bounds().Min

	for y := 0; y < dh; y++ {
		for x := 0; x < dw; x++ {
			var sx, sy int
			switch o {
			case 2: // mirror horizontal
				sx, sy = w-1-x, y
			case 3: // rotate 180
				sx, sy = w-1-x, h-1-y
			case 4: // mirror vertical
				sx, sy = x, h-1-y
			case 5: // transpose
				sx, sy = y, x
			case 6: // rotate 90 clockwise
				sx, sy = y, h-1-x
			case 7: // transverse
				sx, sy = w-1-y, h-1-x
			case 8: // rotate 90 counter-clockwise
				sx, sy = w-1-y, x
			}
			dst.SetRGBA(x, y, src.RGBAAt(origin.X+sx, origin.Y+sy))
		}
	}
	return dst
}
