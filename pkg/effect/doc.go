// Package effect implements the fractal glass effect engine.
//
// # Overview
//
// The engine turns a [settings.Settings] value and a source image into a set
// of vertical strips plus the parameters of a shared turbulence/displacement
// filter. It does not draw anything itself: it drives a [Surface], which may
// be an SVG document, an HTML fragment, a raster canvas or a test recorder.
//
//	eng := effect.New()
//	svg := sink.NewSVG(800, 600)
//	if eng.Render(svg, s, img) {
//	    out := svg.Bytes()
//	}
//
// # Strips
//
// For strip i of n:
//
//   - offset is i/n*100 percent, used as the horizontal background position;
//   - width is (100/n) * (1 - |i-n/2|/(n/2) * taper) percent, so the centre
//     strips are widest and the edges shrink by up to taper (default 0.2);
//   - the color filter chains hue-rotate, saturate and brightness with a
//     reference to the shared displacement filter;
//   - with Flip set, even-indexed strips are mirrored horizontally;
//   - with Shimmer set, each strip carries one shimmer overlay.
//
// # Rebuild semantics
//
// Every Render call clears the surface and rebuilds all strips; there is no
// incremental diffing. Rendering the same settings and image twice produces
// an equivalent surface. Without an image Render does nothing and returns
// false.
package effect
