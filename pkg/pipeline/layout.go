package pipeline

import (
	"math"

	"github.com/matzehuels/fractalglass/pkg/effect"
	"github.com/matzehuels/fractalglass/pkg/source"
)

// Layout is the resolved frame and the strips the engine lays out in it.
type Layout struct {
	Width  int                 `json:"width"`
	Height int                 `json:"height"`
	Strips []effect.Strip      `json:"strips"`
	Params effect.FilterParams `json:"filter"`
}

// Engine returns the effect engine configured by opts.
func (o *Options) Engine() *effect.Engine {
	return effect.New(effect.WithTaper(o.Taper), effect.WithFilterID(o.FilterID))
}

// ComputeLayout sizes the frame and lays out the strips for img.
func ComputeLayout(img *source.Image, opts Options) (Layout, error) {
	if err := opts.ValidateForLayout(); err != nil {
		return Layout{}, err
	}

	w, h := opts.Width, opts.Height
	if h == 0 {
		h = FrameHeight(img, w)
	}

	var rec effect.Recorder
	opts.Engine().Render(&rec, opts.Settings, img)
	params, _ := rec.Params()

	opts.Logger.Debug("computed layout", "width", w, "height", h, "strips", len(rec.Strips()))
	return Layout{Width: w, Height: h, Strips: rec.Strips(), Params: params}, nil
}

// FrameHeight returns the height that keeps img's aspect ratio at width w,
// or DefaultHeight if the image cannot be sized.
func FrameHeight(img *source.Image, w int) int {
	iw, ih, err := img.Size()
	if err != nil || iw <= 0 || ih <= 0 {
		return DefaultHeight
	}
	h := int(math.Round(float64(w) * float64(ih) / float64(iw)))
	return min(max(h, 1), MaxDimension)
}
