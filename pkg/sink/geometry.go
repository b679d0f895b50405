package sink

import (
	"fmt"
	"math"

	"github.com/matzehuels/fractalglass/pkg/effect"
)

// GradientStop is one stop of the shimmer overlay, white at Opacity.
type GradientStop struct {
	Offset  float64 // 0..1 across the strip
	Opacity float64 // 0..1
}

// ShimmerStops describe the glass highlight drawn over each strip.
var ShimmerStops = []GradientStop{
	{Offset: 0, Opacity: 0},
	{Offset: 0.3, Opacity: 0.35},
	{Offset: 0.5, Opacity: 0.05},
	{Offset: 0.8, Opacity: 0.2},
	{Offset: 1, Opacity: 0},
}

// placed is a strip positioned in frame pixels.
type placed struct {
	strip effect.Strip
	x, w  float64
}

func placeStrips(strips []effect.Strip, frameWidth float64) []placed {
	total := effect.TotalWidth(strips)
	x := (100 - total) / 2 * frameWidth / 100
	out := make([]placed, len(strips))
	for i, s := range strips {
		w := s.Width * frameWidth / 100
		out[i] = placed{strip: s, x: x, w: w}
		x += w
	}
	return out
}

// cover scales an iw×ih image to cover a w×h box and positions it at
// (posX%, 50%). It returns the scaled size and the top-left offset.
func cover(iw, ih int, w, h, posX float64) (sw, sh, dx, dy float64) {
	if iw <= 0 || ih <= 0 {
		return w, h, 0, 0
	}
	k := math.Max(w/float64(iw), h/float64(ih))
	sw, sh = float64(iw)*k, float64(ih)*k
	dx = (w - sw) * posX / 100
	dy = (h - sh) / 2
	return sw, sh, dx, dy
}

func cssGradient(stops []GradientStop) string {
	s := "linear-gradient(90deg"
	for _, st := range stops {
		s += fmt.Sprintf(", rgba(255, 255, 255, %s) %s%%", num(st.Opacity), num(st.Offset*100))
	}
	return s + ")"
}

func num(f float64) string {
	return fmt.Sprintf("%g", math.Round(f*1e4)/1e4)
}
