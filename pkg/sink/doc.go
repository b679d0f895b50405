// Package sink provides the rendering surfaces driven by the effect engine.
//
// # Overview
//
// Every sink implements [effect.Surface]: the engine clears it, adds one
// [effect.Strip] per step and sets the shared filter parameters. The sink
// then serialises what it was given into its output format:
//
//   - [SVG]: standalone SVG document with the turbulence/displacement filter
//     in <defs> and the source image embedded once
//   - [HTML]: the .wrapper > .cell > .shimmer fragment plus the hidden <svg>
//     filter, optionally wrapped in a full page
//   - [Raster]: pixel rendering through [filter], encoded as PNG
//   - [JSON]: the computed layout for external tools
//
// Basic usage:
//
//	svg := sink.NewSVG(800, 600, sink.WithSeed(3))
//	if effect.New().Render(svg, s, img) {
//	    out := svg.Bytes()
//	}
//
// # Geometry
//
// Strip widths are percentages of the frame and sum to less than 100 when
// tapered; the strips are laid out left to right and centred horizontally.
// Inside each strip the source image is scaled to cover the strip and
// positioned at (offset%, 50%), the way a CSS background would be.
//
// # PDF and PNG via librsvg
//
// [ToPDF] and [ToPNG] convert SVG output with rsvg-convert. They require
// librsvg to be installed:
//   - macOS: brew install librsvg
//   - Linux: apt install librsvg2-bin
//
// [Raster] does not need librsvg.
package sink
