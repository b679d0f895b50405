package effect

import (
	"fmt"
	"math"

	"github.com/matzehuels/fractalglass/pkg/settings"
	"github.com/matzehuels/fractalglass/pkg/source"
)

const (
	// DefaultTaper is the maximum fraction by which edge strips shrink
	// relative to the centre strip.
	DefaultTaper = 0.2

	// DefaultFilterID is the element id of the shared displacement filter.
	DefaultFilterID = "displacementFilter"
)

// Strip is one vertical slice of the source image.
type Strip struct {
	Index   int           `json:"index"`
	Offset  float64       `json:"offset"` // background position, percent of the frame
	Width   float64       `json:"width"`  // percent of the frame
	Filter  string        `json:"filter"` // CSS filter chain
	Color   ColorAdjust   `json:"color"`
	Flipped bool          `json:"flipped"`
	Shimmer bool          `json:"shimmer"`
	Image   *source.Image `json:"-"`
}

// ColorAdjust holds the per-strip color filter arguments.
type ColorAdjust struct {
	HueRotate  int `json:"hue_rotate"` // degrees
	Saturate   int `json:"saturate"`   // percent, 100 is identity
	Brightness int `json:"brightness"` // percent, 100 is identity
}

// FilterParams are the tunable attributes of the shared filter.
type FilterParams struct {
	BaseFrequency float64 `json:"baseFrequency"` // feTurbulence baseFrequency
	NumOctaves    int     `json:"numOctaves"`    // feTurbulence numOctaves
	Scale         int     `json:"scale"`         // feDisplacementMap scale
}

// Surface is the rendering target driven by the engine.
type Surface interface {
	// Clear removes all previously added strips.
	Clear()
	// AddStrip appends one strip, left to right.
	AddStrip(Strip)
	// SetFilterParams updates the shared turbulence and displacement nodes.
	// It is the last call of every render.
	SetFilterParams(FilterParams)
}

// Option configures an Engine.
type Option func(*Engine)

// WithTaper sets the edge shrink factor. Values are clamped to [0, 1].
func WithTaper(t float64) Option {
	return func(e *Engine) { e.taper = math.Min(math.Max(t, 0), 1) }
}

// WithFilterID sets the id referenced by each strip's filter chain.
func WithFilterID(id string) Option {
	return func(e *Engine) {
		if id != "" {
			e.filterID = id
		}
	}
}

// Engine builds strips from settings. It holds no per-render state and is
// safe for concurrent use.
type Engine struct {
	taper    float64
	filterID string
}

// New creates an engine with the given options.
func New(opts ...Option) *Engine {
	e := &Engine{taper: DefaultTaper, filterID: DefaultFilterID}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Taper returns the configured edge shrink factor.
func (e *Engine) Taper() float64 { return e.taper }

// FilterID returns the id of the shared displacement filter.
func (e *Engine) FilterID() string { return e.filterID }

// Render rebuilds the surface for s and img. It returns false, leaving the
// surface untouched, when img is empty.
func (e *Engine) Render(surface Surface, s settings.Settings, img *source.Image) bool {
	if surface == nil || img.Empty() {
		return false
	}

	surface.Clear()
	for _, strip := range e.Layout(s) {
		strip.Image = img
		surface.AddStrip(strip)
	}
	surface.SetFilterParams(Params(s))
	return true
}

// Layout computes the strips for s without touching any surface.
func (e *Engine) Layout(s settings.Settings) []Strip {
	steps := s.Steps
	if steps < 1 {
		return nil
	}

	color := ColorAdjust{
		HueRotate:  s.Hue,
		Saturate:   100 + s.Saturation,
		Brightness: 100 + s.Brightness,
	}
	filter := ColorFilter(s, e.filterID)

	strips := make([]Strip, steps)
	for i := range strips {
		strips[i] = Strip{
			Index:   i,
			Offset:  StripOffset(i, steps),
			Width:   StripWidth(i, steps, e.taper),
			Filter:  filter,
			Color:   color,
			Flipped: s.Flip && i%2 == 0,
			Shimmer: s.Shimmer,
		}
	}
	return strips
}

// Params extracts the shared filter attributes from s.
func Params(s settings.Settings) FilterParams {
	return FilterParams{
		BaseFrequency: s.BaseFrequency,
		NumOctaves:    s.NumOctaves,
		Scale:         s.Scale,
	}
}

// StripOffset returns the horizontal background position of strip i, in percent.
func StripOffset(i, steps int) float64 {
	return float64(i) / float64(steps) * 100
}

// StripWidth returns the width of strip i, in percent of the frame.
func StripWidth(i, steps int, taper float64) float64 {
	n := float64(steps)
	half := n / 2
	return (100 / n) * (1 - (math.Abs(float64(i)-half)/half)*taper)
}

// ColorFilter returns the CSS filter chain applied to every strip.
func ColorFilter(s settings.Settings, filterID string) string {
	return fmt.Sprintf("hue-rotate(%ddeg) saturate(%d%%) brightness(%d%%) url('#%s')",
		s.Hue, 100+s.Saturation, 100+s.Brightness, filterID)
}

// TotalWidth returns the summed width of strips, in percent.
func TotalWidth(strips []Strip) float64 {
	var w float64
	for _, s := range strips {
		w += s.Width
	}
	return w
}
