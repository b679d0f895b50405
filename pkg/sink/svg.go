package sink

import (
	"bytes"
	"fmt"
	"html"
	"sync"

	"github.com/matzehuels/fractalglass/pkg/effect"
	"github.com/matzehuels/fractalglass/pkg/settings"
)

const (
	sourceID  = "fg-source"
	shimmerID = "fg-shimmer"
)

// SVGOption configures an SVG surface.
type SVGOption func(*SVG)

// WithSeed sets the feTurbulence seed attribute.
func WithSeed(seed int) SVGOption { return func(s *SVG) { s.seed = seed } }

// WithBackground fills the frame with a CSS color before drawing strips.
func WithBackground(c string) SVGOption { return func(s *SVG) { s.background = c } }

// WithFilterID sets the id of the filter element in <defs>.
func WithFilterID(id string) SVGOption {
	return func(s *SVG) {
		if id != "" {
			s.filterID = id
		}
	}
}

// SVG is a Surface that serialises to a standalone SVG document. Each strip
// is a clipped viewport onto one shared <image>, filtered in strip-local
// coordinates so the displacement noise matches the browser rendering.
type SVG struct {
	mu         sync.Mutex
	width      int
	height     int
	seed       int
	background string
	filterID   string
	strips     []effect.Strip
	params     effect.FilterParams
}

// NewSVG creates an empty width×height SVG surface.
func NewSVG(width, height int, opts ...SVGOption) *SVG {
	s := &SVG{
		width:    width,
		height:   height,
		filterID: effect.DefaultFilterID,
		params:   effect.Params(settings.Defaults()),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Clear implements effect.Surface.
func (s *SVG) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.strips = s.strips[:0]
}

// AddStrip implements effect.Surface.
func (s *SVG) AddStrip(strip effect.Strip) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.strips = append(s.strips, strip)
}

// SetFilterParams implements effect.Surface.
func (s *SVG) SetFilterParams(p effect.FilterParams) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.params = p
}

// Len returns the number of strips currently on the surface.
func (s *SVG) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.strips)
}

// Bytes serialises the current surface. An empty surface yields an empty frame.
func (s *SVG) Bytes() []byte {
	s.mu.Lock()
	defer s.mu.Unlock()

	w, h := float64(s.width), float64(s.height)

	var buf bytes.Buffer
	fmt.Fprintf(&buf, `<svg xmlns="http://www.w3.org/2000/svg" xmlns:xlink="http://www.w3.org/1999/xlink" viewBox="0 0 %d %d" width="%d" height="%d">`+"\n",
		s.width, s.height, s.width, s.height)
	if s.background != "" {
		fmt.Fprintf(&buf, `  <rect width="100%%" height="100%%" fill="%s"/>`+"\n", html.EscapeString(s.background))
	}
	if len(s.strips) == 0 {
		buf.WriteString("</svg>\n")
		return buf.Bytes()
	}

	img := s.strips[0].Image
	iw, ih, err := img.Size()
	if err != nil {
		// Undecodable here but maybe not for the viewer: stretch to the frame.
		iw, ih = s.width, s.height
	}

	buf.WriteString("  <defs>\n")
	writeSVGFilter(&buf, s.filterID, s.strips[0].Color, s.params, s.seed)
	if hasShimmer(s.strips) {
		writeShimmerGradient(&buf)
	}
	fmt.Fprintf(&buf, `    <image id="%s" width="%d" height="%d" preserveAspectRatio="none" href="%s"/>`+"\n",
		sourceID, iw, ih, img.DataURL())
	buf.WriteString("  </defs>\n")

	for _, p := range placeStrips(s.strips, w) {
		writeSVGStrip(&buf, p, iw, ih, h, s.filterID)
	}

	buf.WriteString("</svg>\n")
	return buf.Bytes()
}

func writeSVGFilter(buf *bytes.Buffer, id string, c effect.ColorAdjust, p effect.FilterParams, seed int) {
	fmt.Fprintf(buf, `    <filter id="%s" x="-10%%" y="-10%%" width="120%%" height="120%%" color-interpolation-filters="sRGB">`+"\n", id)
	in := "SourceGraphic"
	if c != (effect.ColorAdjust{HueRotate: 0, Saturate: 100, Brightness: 100}) {
		fmt.Fprintf(buf, `      <feColorMatrix type="hueRotate" values="%d" result="hue"/>`+"\n", c.HueRotate)
		fmt.Fprintf(buf, `      <feColorMatrix in="hue" type="saturate" values="%s" result="saturated"/>`+"\n", num(float64(c.Saturate)/100))
		slope := num(float64(c.Brightness) / 100)
		buf.WriteString(`      <feComponentTransfer in="saturated" result="colored">` + "\n")
		for _, ch := range []string{"R", "G", "B"} {
			fmt.Fprintf(buf, `        <feFunc%s type="linear" slope="%s"/>`+"\n", ch, slope)
		}
		buf.WriteString("      </feComponentTransfer>\n")
		in = "colored"
	}
	fmt.Fprintf(buf, `      <feTurbulence type="turbulence" baseFrequency="%s" numOctaves="%d" seed="%d" result="turbulence"/>`+"\n",
		num(p.BaseFrequency), p.NumOctaves, seed)
	fmt.Fprintf(buf, `      <feDisplacementMap in2="turbulence" in="%s" scale="%d" xChannelSelector="R" yChannelSelector="G"/>`+"\n",
		in, p.Scale)
	buf.WriteString("    </filter>\n")
}

func writeShimmerGradient(buf *bytes.Buffer) {
	fmt.Fprintf(buf, `    <linearGradient id="%s" x1="0" y1="0" x2="1" y2="0">`+"\n", shimmerID)
	for _, st := range ShimmerStops {
		fmt.Fprintf(buf, `      <stop offset="%s" stop-color="#fff" stop-opacity="%s"/>`+"\n", num(st.Offset), num(st.Opacity))
	}
	buf.WriteString("    </linearGradient>\n")
}

func writeSVGStrip(buf *bytes.Buffer, p placed, iw, ih int, h float64, filterID string) {
	sw, sh, dx, dy := cover(iw, ih, p.w, h, p.strip.Offset)
	fmt.Fprintf(buf, `  <g class="cell" data-index="%d" transform="translate(%s 0)">`+"\n", p.strip.Index, num(p.x))

	transform := ""
	if p.strip.Flipped {
		transform = fmt.Sprintf(` transform="matrix(-1 0 0 1 %s 0)"`, num(p.w))
	}
	fmt.Fprintf(buf, `    <g%s filter="url(#%s)">`+"\n", transform, filterID)
	fmt.Fprintf(buf, `      <svg width="%s" height="%s" overflow="hidden">`+"\n", num(p.w), num(h))
	fmt.Fprintf(buf, `        <use href="#%s" transform="translate(%s %s) scale(%s %s)"/>`+"\n",
		sourceID, num(dx), num(dy), num(sw/float64(iw)), num(sh/float64(ih)))
	if p.strip.Shimmer {
		fmt.Fprintf(buf, `        <rect class="shimmer" width="100%%" height="100%%" fill="url(#%s)"/>`+"\n", shimmerID)
	}
	buf.WriteString("      </svg>\n    </g>\n  </g>\n")
}

func hasShimmer(strips []effect.Strip) bool {
	for _, s := range strips {
		if s.Shimmer {
			return true
		}
	}
	return false
}

var _ effect.Surface = (*SVG)(nil)
