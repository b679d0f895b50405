package sink

import (
	"encoding/json"
	"sync"

	"github.com/matzehuels/fractalglass/pkg/effect"
	"github.com/matzehuels/fractalglass/pkg/settings"
)

// JSON is a Surface that exports the computed layout and filter parameters.
type JSON struct {
	mu     sync.Mutex
	width  int
	height int
	strips []effect.Strip
	params effect.FilterParams
}

type jsonOutput struct {
	Width  int                 `json:"width"`
	Height int                 `json:"height"`
	Image  *jsonImage          `json:"image,omitempty"`
	Filter effect.FilterParams `json:"filter"`
	Strips []jsonStrip         `json:"strips"`
}

type jsonImage struct {
	Name   string `json:"name,omitempty"`
	MIME   string `json:"mime"`
	SHA256 string `json:"sha256"`
	Width  int    `json:"width,omitempty"`
	Height int    `json:"height,omitempty"`
}

type jsonStrip struct {
	effect.Strip
	X      float64 `json:"x"`       // left edge, frame pixels
	PixelW float64 `json:"pixel_w"` // width, frame pixels
}

// NewJSON creates an empty JSON surface for a width×height frame.
func NewJSON(width, height int) *JSON {
	return &JSON{width: width, height: height, params: effect.Params(settings.Defaults())}
}

// Clear implements effect.Surface.
func (j *JSON) Clear() {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.strips = j.strips[:0]
}

// AddStrip implements effect.Surface.
func (j *JSON) AddStrip(s effect.Strip) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.strips = append(j.strips, s)
}

// SetFilterParams implements effect.Surface.
func (j *JSON) SetFilterParams(p effect.FilterParams) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.params = p
}

// Bytes exports the surface as pretty-printed JSON.
func (j *JSON) Bytes() ([]byte, error) {
	j.mu.Lock()
	defer j.mu.Unlock()

	out := jsonOutput{
		Width:  j.width,
		Height: j.height,
		Filter: j.params,
		Strips: make([]jsonStrip, 0, len(j.strips)),
	}
	if len(j.strips) > 0 && !j.strips[0].Image.Empty() {
		img := j.strips[0].Image
		out.Image = &jsonImage{Name: img.Name, MIME: img.MIME, SHA256: img.Hash()}
		if w, h, err := img.Size(); err == nil {
			out.Image.Width, out.Image.Height = w, h
		}
	}
	for _, p := range placeStrips(j.strips, float64(j.width)) {
		out.Strips = append(out.Strips, jsonStrip{Strip: p.strip, X: p.x, PixelW: p.w})
	}
	return json.MarshalIndent(out, "", "  ")
}

var _ effect.Surface = (*JSON)(nil)
