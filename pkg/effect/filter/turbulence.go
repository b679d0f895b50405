// Package filter implements the pixel operations behind the browser filters
// the effect relies on, so that it can be rasterised without a browser.
//
//   - [Turbulence] is the SVG 1.1 feTurbulence Perlin noise generator.
//   - [Displace] is feDisplacementMap with xChannelSelector=R, yChannelSelector=G.
//   - [Matrix] builds the CSS hue-rotate, saturate and brightness color matrices.
package filter

import (
	"image"
	"image/color"
	"math"
)

const (
	bSize   = 0x100
	bMask   = 0xff
	perlinN = 0x1000

	randM = 2147483647 // 2**31 - 1
	randA = 16807      // 7**5, primitive root of m
	randQ = 127773     // m / a
	randR = 2836       // m % a
)

// NoiseType selects between the two feTurbulence noise functions.
type NoiseType int

const (
	// TypeTurbulence sums absolute noise values (the filter's type="turbulence").
	TypeTurbulence NoiseType = iota
	// TypeFractalNoise sums signed noise values (type="fractalNoise").
	TypeFractalNoise
)

// Turbulence generates feTurbulence noise. A Turbulence is immutable after
// construction and safe for concurrent use.
type Turbulence struct {
	Type          NoiseType
	BaseFrequency float64 // applied to both axes
	NumOctaves    int

	lattice  [bSize + bSize + 2]int
	gradient [4][bSize + bSize + 2][2]float64
}

// NewTurbulence seeds the lattice and gradient tables the same way the SVG
// reference implementation does, so a given seed yields the same noise a
// browser would draw.
func NewTurbulence(seed int64, baseFrequency float64, numOctaves int) *Turbulence {
	t := &Turbulence{
		Type:          TypeTurbulence,
		BaseFrequency: baseFrequency,
		NumOctaves:    numOctaves,
	}
	t.init(seed)
	return t
}

func setupSeed(seed int64) int64 {
	if seed <= 0 {
		seed = -(seed % (randM - 1)) + 1
	}
	if seed > randM-1 {
		seed = randM - 1
	}
	return seed
}

func random(seed int64) int64 {
	r := randA*(seed%randQ) - randR*(seed/randQ)
	if r <= 0 {
		r += randM
	}
	return r
}

func (t *Turbulence) init(seed int64) {
	seed = setupSeed(seed)
	var i int
	for k := 0; k < 4; k++ {
		for i = 0; i < bSize; i++ {
			t.lattice[i] = i
			for j := 0; j < 2; j++ {
				seed = random(seed)
				t.gradient[k][i][j] = float64((seed%(bSize+bSize))-bSize) / bSize
			}
			g := &t.gradient[k][i]
			s := math.Sqrt(g[0]*g[0] + g[1]*g[1])
			if s != 0 {
				g[0] /= s
				g[1] /= s
			}
		}
	}
	for i--; i > 0; i-- {
		k := t.lattice[i]
		seed = random(seed)
		j := int(seed % bSize)
		t.lattice[i] = t.lattice[j]
		t.lattice[j] = k
	}
	for i = 0; i < bSize+2; i++ {
		t.lattice[bSize+i] = t.lattice[i]
		for k := 0; k < 4; k++ {
			t.gradient[k][bSize+i] = t.gradient[k][i]
		}
	}
}

func sCurve(t float64) float64 { return t * t * (3 - 2*t) }

func lerp(t, a, b float64) float64 { return a + t*(b-a) }

func (t *Turbulence) noise2(channel int, x, y float64) float64 {
	tx := x + perlinN
	bx0 := int(tx) & bMask
	bx1 := (bx0 + 1) & bMask
	rx0 := tx - float64(int(tx))
	rx1 := rx0 - 1

	ty := y + perlinN
	by0 := int(ty) & bMask
	by1 := (by0 + 1) & bMask
	ry0 := ty - float64(int(ty))
	ry1 := ry0 - 1

	i := t.lattice[bx0]
	j := t.lattice[bx1]
	b00 := t.lattice[i+by0]
	b10 := t.lattice[j+by0]
	b01 := t.lattice[i+by1]
	b11 := t.lattice[j+by1]

	sx := sCurve(rx0)
	sy := sCurve(ry0)

	g := &t.gradient[channel]
	u := rx0*g[b00][0] + ry0*g[b00][1]
	v := rx1*g[b10][0] + ry0*g[b10][1]
	a := lerp(sx, u, v)
	u = rx0*g[b01][0] + ry1*g[b01][1]
	v = rx1*g[b11][0] + ry1*g[b11][1]
	b := lerp(sx, u, v)
	return lerp(sy, a, b)
}

// Sample returns the raw noise sum for one channel (0=R, 1=G, 2=B, 3=A) at
// point (x, y).
func (t *Turbulence) Sample(channel int, x, y float64) float64 {
	vx := x * t.BaseFrequency
	vy := y * t.BaseFrequency
	ratio := 1.0
	var sum float64
	for o := 0; o < t.NumOctaves; o++ {
		n := t.noise2(channel, vx, vy)
		if t.Type == TypeFractalNoise {
			sum += n / ratio
		} else {
			sum += math.Abs(n) / ratio
		}
		vx *= 2
		vy *= 2
		ratio *= 2
	}
	return sum
}

// At returns the filter's color at pixel (x, y).
func (t *Turbulence) At(x, y int) color.NRGBA {
	var c [4]uint8
	for ch := 0; ch < 4; ch++ {
		v := t.Sample(ch, float64(x), float64(y))
		if t.Type == TypeFractalNoise {
			v = (v*255 + 255) / 2
		} else {
			v *= 255
		}
		c[ch] = clamp8(v)
	}
	return color.NRGBA{R: c[0], G: c[1], B: c[2], A: c[3]}
}

// Render fills a w×h noise image.
func (t *Turbulence) Render(w, h int) *image.NRGBA {
	return t.RenderRect(image.Rect(0, 0, w, h))
}

// RenderRect fills r with noise. The returned image has bounds r, so pixels
// outside the origin quadrant keep their filter-space coordinates.
func (t *Turbulence) RenderRect(r image.Rectangle) *image.NRGBA {
	img := image.NewNRGBA(r)
	for y := r.Min.Y; y < r.Max.Y; y++ {
		for x := r.Min.X; x < r.Max.X; x++ {
			img.SetNRGBA(x, y, t.At(x, y))
		}
	}
	return img
}

func clamp8(v float64) uint8 {
	if v <= 0 {
		return 0
	}
	if v >= 255 {
		return 255
	}
	return uint8(v)
}
