package sink

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/png"
	"math"
	"runtime"
	"slices"
	"sync"

	"github.com/disintegration/imaging"
	"github.com/fogleman/gg"
	xdraw "golang.org/x/image/draw"
	"golang.org/x/sync/errgroup"

	"github.com/matzehuels/fractalglass/pkg/effect"
	"github.com/matzehuels/fractalglass/pkg/effect/filter"
	"github.com/matzehuels/fractalglass/pkg/settings"
)

// RasterOption configures a Raster surface.
type RasterOption func(*Raster)

// WithRasterSeed sets the turbulence seed.
func WithRasterSeed(seed int64) RasterOption { return func(r *Raster) { r.seed = seed } }

// WithRasterBackground fills the frame behind the strips. Default is transparent.
func WithRasterBackground(c color.Color) RasterOption {
	return func(r *Raster) { r.background = color.NRGBAModel.Convert(c).(color.NRGBA) }
}

// WithWorkers bounds the number of strips rendered in parallel.
func WithWorkers(n int) RasterOption {
	return func(r *Raster) {
		if n > 0 {
			r.workers = n
		}
	}
}

// Raster is a Surface that renders pixels without a browser. Each strip is
// cropped from the cover-scaled source, overlaid with the shimmer gradient,
// color adjusted, displaced by turbulence noise in strip-local coordinates
// and finally mirrored when flipped.
type Raster struct {
	mu         sync.Mutex
	width      int
	height     int
	seed       int64
	background color.NRGBA
	workers    int
	strips     []effect.Strip
	params     effect.FilterParams
}

// NewRaster creates an empty width×height raster surface.
func NewRaster(width, height int, opts ...RasterOption) *Raster {
	r := &Raster{
		width:   width,
		height:  height,
		workers: runtime.GOMAXPROCS(0),
		params:  effect.Params(settings.Defaults()),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Clear implements effect.Surface.
func (r *Raster) Clear() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.strips = r.strips[:0]
}

// AddStrip implements effect.Surface.
func (r *Raster) AddStrip(s effect.Strip) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.strips = append(r.strips, s)
}

// SetFilterParams implements effect.Surface.
func (r *Raster) SetFilterParams(p effect.FilterParams) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.params = p
}

// Image renders the surface. An empty surface yields the background.
func (r *Raster) Image(ctx context.Context) (*image.NRGBA, error) {
	r.mu.Lock()
	strips := slices.Clone(r.strips)
	params := r.params
	r.mu.Unlock()

	canvas := imaging.New(r.width, r.height, r.background)
	if len(strips) == 0 || r.width <= 0 || r.height <= 0 {
		return canvas, nil
	}

	src, err := strips[0].Image.Decode()
	if err != nil {
		return nil, err
	}

	type cell struct {
		strip  effect.Strip
		x, w   int
		mx, my int // filter region margin
	}
	var cells []cell
	maxW, maxMX := 0, 0
	my := filterMargin(r.height)
	for _, p := range placeStrips(strips, float64(r.width)) {
		left := int(math.Round(p.x))
		w := int(math.Round(p.x+p.w)) - left
		if w <= 0 {
			continue
		}
		c := cell{strip: p.strip, x: left, w: w, mx: filterMargin(w), my: my}
		cells = append(cells, c)
		maxW, maxMX = max(maxW, w), max(maxMX, c.mx)
	}
	if len(cells) == 0 {
		return canvas, nil
	}

	noise := filter.NewTurbulence(r.seed, params.BaseFrequency, params.NumOctaves).
		RenderRect(image.Rect(-maxMX, -my, maxW+maxMX, r.height+my))
	covers := &coverCache{src: src, scaled: make(map[image.Point]*image.NRGBA)}

	out := make([]*image.NRGBA, len(cells))
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(r.workers)
	for i, c := range cells {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			dmap := noise.SubImage(image.Rect(-c.mx, -c.my, c.w+c.mx, r.height+c.my)).(*image.NRGBA)
			out[i] = renderCell(covers, c.strip, c.w, r.height, c.mx, c.my, dmap, params)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	for i, c := range cells {
		rect := image.Rect(c.x-c.mx, -c.my, c.x+c.w+c.mx, r.height+c.my)
		xdraw.Draw(canvas, rect, out[i], image.Point{}, xdraw.Over)
	}
	return canvas, nil
}

// filterMargin is the default SVG filter region overhang (10%) on each side.
func filterMargin(size int) int {
	return int(math.Round(float64(size) * 0.1))
}

// PNG renders the surface and encodes it as PNG.
func (r *Raster) PNG(ctx context.Context) ([]byte, error) {
	img, err := r.Image(ctx)
	if err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// renderCell returns the strip padded by its filter margins on every side.
func renderCell(covers *coverCache, s effect.Strip, w, h, mx, my int, dmap *image.NRGBA, p effect.FilterParams) *image.NRGBA {
	b := covers.src.Bounds()
	sw, sh, dx, dy := cover(b.Dx(), b.Dy(), float64(w), float64(h), s.Offset)
	scaled := covers.get(int(math.Ceil(sw)), int(math.Ceil(sh)))

	cell := imaging.Paste(imaging.New(w, h, color.NRGBA{}), scaled, image.Pt(int(math.Round(dx)), int(math.Round(dy))))
	if s.Shimmer {
		cell = drawShimmer(cell)
	}
	cell = filter.Chain(s.Color.HueRotate, s.Color.Saturate, s.Color.Brightness).Apply(cell)
	cell = imaging.Paste(imaging.New(w+2*mx, h+2*my, color.NRGBA{}), cell, image.Pt(mx, my))
	cell = filter.Displace(cell, dmap, float64(p.Scale))
	if s.Flipped {
		cell = imaging.FlipH(cell)
	}
	return cell
}

func drawShimmer(cell *image.NRGBA) *image.NRGBA {
	b := cell.Bounds()
	dc := gg.NewContextForImage(cell)
	grad := gg.NewLinearGradient(0, 0, float64(b.Dx()), 0)
	for _, st := range ShimmerStops {
		grad.AddColorStop(st.Offset, color.NRGBA{R: 255, G: 255, B: 255, A: uint8(math.Round(st.Opacity * 255))})
	}
	dc.SetFillStyle(grad)
	dc.DrawRectangle(0, 0, float64(b.Dx()), float64(b.Dy()))
	dc.Fill()
	return imaging.Clone(dc.Image())
}

// coverCache holds the source scaled to each size requested by a strip.
// Most strips share the frame height and therefore one scaled copy.
type coverCache struct {
	src    image.Image
	mu     sync.Mutex
	scaled map[image.Point]*image.NRGBA
}

func (c *coverCache) get(w, h int) *image.NRGBA {
	key := image.Pt(w, h)
	c.mu.Lock()
	defer c.mu.Unlock()
	if img, ok := c.scaled[key]; ok {
		return img
	}
	dst := image.NewNRGBA(image.Rect(0, 0, w, h))
	xdraw.ApproxBiLinear.Scale(dst, dst.Bounds(), c.src, c.src.Bounds(), xdraw.Src, nil)
	c.scaled[key] = dst
	return dst
}

var _ effect.Surface = (*Raster)(nil)
