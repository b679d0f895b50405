package pipeline

import (
	"context"
	"fmt"
	"image/color"

	"github.com/lucasb-eyer/go-colorful"

	"github.com/matzehuels/fractalglass/pkg/errors"
	"github.com/matzehuels/fractalglass/pkg/sink"
	"github.com/matzehuels/fractalglass/pkg/source"
)

// Render generates output artifacts in the requested formats for img.
// Every format runs the engine against its own surface, so the results
// are independent of one another.
func Render(ctx context.Context, img *source.Image, l Layout, opts Options) (map[string][]byte, error) {
	if err := opts.ValidateForRender(); err != nil {
		return nil, err
	}
	if img.Empty() {
		return nil, errors.New(errors.ErrCodeNoImage, "an image is required")
	}

	engine := opts.Engine()
	artifacts := make(map[string][]byte, len(opts.Formats))
	var svg []byte

	renderSVG := func() []byte {
		if svg == nil {
			surface := sink.NewSVG(l.Width, l.Height, buildSVGOptions(opts)...)
			engine.Render(surface, opts.Settings, img)
			svg = surface.Bytes()
		}
		return svg
	}

	for _, format := range opts.Formats {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		var data []byte
		var err error

		switch format {
		case FormatSVG:
			data = renderSVG()
		case FormatHTML:
			surface := sink.NewHTML(buildHTMLOptions(opts)...)
			engine.Render(surface, opts.Settings, img)
			data = surface.Bytes()
		case FormatPNG:
			var ropts []sink.RasterOption
			ropts, err = buildRasterOptions(opts)
			if err != nil {
				return nil, err
			}
			surface := sink.NewRaster(l.Width, l.Height, ropts...)
			engine.Render(surface, opts.Settings, img)
			data, err = surface.PNG(ctx)
		case FormatJSON:
			surface := sink.NewJSON(l.Width, l.Height)
			engine.Render(surface, opts.Settings, img)
			data, err = surface.Bytes()
		case FormatPDF:
			if !sink.HasRSVG() {
				return nil, errors.New(errors.ErrCodeUnsupported,
					"pdf export requires rsvg-convert (librsvg) on PATH")
			}
			data, err = sink.ToPDF(ctx, renderSVG())
		default:
			return nil, errors.New(errors.ErrCodeInvalidFormat, "unsupported format: %s", format)
		}

		if err != nil {
			return nil, fmt.Errorf("render %s: %w", format, err)
		}
		opts.Logger.Debug("rendered artifact", "format", format, "bytes", len(data))
		artifacts[format] = data
	}

	return artifacts, nil
}

func buildSVGOptions(opts Options) []sink.SVGOption {
	svgOpts := []sink.SVGOption{
		sink.WithSeed(int(opts.Seed)),
		sink.WithFilterID(opts.FilterID),
	}
	if opts.Background != "" {
		svgOpts = append(svgOpts, sink.WithBackground(opts.Background))
	}
	return svgOpts
}

func buildHTMLOptions(opts Options) []sink.HTMLOption {
	htmlOpts := []sink.HTMLOption{sink.WithHTMLFilterID(opts.FilterID)}
	if opts.Page {
		htmlOpts = append(htmlOpts, sink.WithHTMLPage(opts.Title))
	}
	return htmlOpts
}

func buildRasterOptions(opts Options) ([]sink.RasterOption, error) {
	rasterOpts := []sink.RasterOption{sink.WithRasterSeed(opts.Seed)}
	if opts.Background != "" {
		c, err := ParseColor(opts.Background)
		if err != nil {
			return nil, err
		}
		rasterOpts = append(rasterOpts, sink.WithRasterBackground(c))
	}
	return rasterOpts, nil
}

// ParseColor parses a "#rrggbb" or "#rgb" hex color, or "transparent".
func ParseColor(s string) (color.Color, error) {
	if s == "" || s == "transparent" || s == "none" {
		return color.Transparent, nil
	}
	c, err := colorful.Hex(s)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeInvalidInput, err, "background %q", s)
	}
	r, g, b := c.RGB255()
	return color.NRGBA{R: r, G: g, B: b, A: 255}, nil
}
