package filter

import (
	"image"
	"image/color"
	"math"

	"github.com/disintegration/imaging"
)

// Displace moves the pixels of src by the R and G channels of dmap:
//
//	P'(x,y) = P(x + scale*(R(x,y) - 0.5), y + scale*(G(x,y) - 0.5))
//
// Both images are addressed relative to their own bounds; dmap must be at
// least as large as src. Pixels displaced from outside src are transparent.
func Displace(src image.Image, dmap *image.NRGBA, scale float64) *image.NRGBA {
	in := imaging.Clone(src)
	b := in.Bounds()
	w, h := b.Dx(), b.Dy()
	out := image.NewNRGBA(image.Rect(0, 0, w, h))
	if scale == 0 {
		copy(out.Pix, in.Pix)
		return out
	}

	dm := dmap.Bounds().Min
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			d := dmap.NRGBAAt(dm.X+x, dm.Y+y)
			sx := x + int(math.Floor(scale*(float64(d.R)/255-0.5)+0.5))
			sy := y + int(math.Floor(scale*(float64(d.G)/255-0.5)+0.5))
			if sx < 0 || sy < 0 || sx >= w || sy >= h {
				continue
			}
			out.SetNRGBA(x, y, in.NRGBAAt(sx, sy))
		}
	}
	return out
}

// Transparent reports whether every pixel of img is fully transparent.
func Transparent(img *image.NRGBA) bool {
	for i := 3; i < len(img.Pix); i += 4 {
		if img.Pix[i] != 0 {
			return false
		}
	}
	return true
}

// Fill returns a w×h image of a single color.
func Fill(w, h int, c color.NRGBA) *image.NRGBA {
	return imaging.New(w, h, c)
}
