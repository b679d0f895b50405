package filter

import (
	"image"
	"image/color"
	"math"

	"github.com/disintegration/imaging"
)

// Matrix is a 3×3 color matrix acting on non-premultiplied sRGB column vectors.
type Matrix [3][3]float64

// Identity is the matrix that leaves colors unchanged.
var Identity = Matrix{{1, 0, 0}, {0, 1, 0}, {0, 0, 1}}

// HueRotate returns the CSS hue-rotate(deg) matrix.
func HueRotate(deg float64) Matrix {
	rad := deg * math.Pi / 180
	c, s := math.Cos(rad), math.Sin(rad)
	return Matrix{
		{0.213 + c*0.787 - s*0.213, 0.715 - c*0.715 - s*0.715, 0.072 - c*0.072 + s*0.928},
		{0.213 - c*0.213 + s*0.143, 0.715 + c*0.285 + s*0.140, 0.072 - c*0.072 - s*0.283},
		{0.213 - c*0.213 - s*0.787, 0.715 - c*0.715 + s*0.715, 0.072 + c*0.928 + s*0.072},
	}
}

// Saturate returns the CSS saturate(amount) matrix; 1 is the identity.
func Saturate(amount float64) Matrix {
	s := amount
	return Matrix{
		{0.213 + 0.787*s, 0.715 - 0.715*s, 0.072 - 0.072*s},
		{0.213 - 0.213*s, 0.715 + 0.285*s, 0.072 - 0.072*s},
		{0.213 - 0.213*s, 0.715 - 0.715*s, 0.072 + 0.928*s},
	}
}

// Brightness returns the CSS brightness(amount) matrix; 1 is the identity.
func Brightness(amount float64) Matrix {
	return Matrix{{amount, 0, 0}, {0, amount, 0}, {0, 0, amount}}
}

// Then returns the matrix that applies m first and n second.
func (m Matrix) Then(n Matrix) Matrix {
	var out Matrix
	for r := 0; r < 3; r++ {
		for c := 0; c < 3; c++ {
			for k := 0; k < 3; k++ {
				out[r][c] += n[r][k] * m[k][c]
			}
		}
	}
	return out
}

// Chain builds the matrix for "hue-rotate(hue) saturate(sat%) brightness(bright%)".
func Chain(hue, saturatePct, brightnessPct int) Matrix {
	return HueRotate(float64(hue)).
		Then(Saturate(float64(saturatePct) / 100)).
		Then(Brightness(float64(brightnessPct) / 100))
}

// IsIdentity reports whether m leaves every color unchanged.
func (m Matrix) IsIdentity() bool {
	for r := 0; r < 3; r++ {
		for c := 0; c < 3; c++ {
			if math.Abs(m[r][c]-Identity[r][c]) > 1e-9 {
				return false
			}
		}
	}
	return true
}

// Color applies m to a single color, clamping each channel.
func (m Matrix) Color(c color.NRGBA) color.NRGBA {
	r, g, b := float64(c.R), float64(c.G), float64(c.B)
	return color.NRGBA{
		R: clamp8(m[0][0]*r + m[0][1]*g + m[0][2]*b + 0.5),
		G: clamp8(m[1][0]*r + m[1][1]*g + m[1][2]*b + 0.5),
		B: clamp8(m[2][0]*r + m[2][1]*g + m[2][2]*b + 0.5),
		A: c.A,
	}
}

// Apply returns a copy of img with m applied to every pixel.
func (m Matrix) Apply(img image.Image) *image.NRGBA {
	if m.IsIdentity() {
		return imaging.Clone(img)
	}
	return imaging.AdjustFunc(img, m.Color)
}
