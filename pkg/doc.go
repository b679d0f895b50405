// Package pkg provides the core libraries for fractalglass.
//
// # Overview
//
// Fractalglass makes an image look as if it were seen through ribbed, fluted
// glass. The image is cut into vertical strips; each strip shows the image at
// a different offset, optionally mirrored, color-shifted and displaced by
// turbulence noise. The pkg directory is organized into three areas:
//
//  1. Effect - settings, strip layout and the rendering surfaces
//  2. Editing - debounced controllers, control widgets and sessions
//  3. Infrastructure - export pipeline, caching, presets and configuration
//
// # Architecture
//
// The data flow of a live edit:
//
//	control widget  →  [controller] (debounce)  →  [effect] engine  →  surface
//
// and of an export:
//
//	image + settings  →  [pipeline] (load → layout → render)  →  SVG/HTML/PNG/JSON/PDF
//
// # Quick Start
//
// Render an image to SVG:
//
//	import (
//	    "context"
//	    "github.com/matzehuels/fractalglass/pkg/pipeline"
//	    "github.com/matzehuels/fractalglass/pkg/settings"
//	)
//
//	s := settings.Defaults()
//	s.Steps, s.Hue = 48, -40
//	result, _ := pipeline.NewRunner(nil, nil, nil).Execute(context.Background(), pipeline.Options{
//	    Input:    pipeline.Input{Path: "photo.jpg"},
//	    Settings: s,
//	    Formats:  []string{"svg"},
//	})
//	svg := result.Artifacts["svg"]
//
// # Main Packages
//
// ## Effect
//
// [settings] - The Settings object with its field table and ranges. Every
// value that enters from outside is clamped.
//
// [effect] - The engine: strip offsets, tapered widths, color filters and the
// shared displacement filter parameters. [effect/filter] implements the
// turbulence, displacement and color matrix operations for raster output.
//
// [sink] - Surfaces the engine renders into: SVG, HTML, raster PNG and JSON,
// plus PDF conversion.
//
// [source] - The selected image, data URLs and the file chooser.
//
// ## Editing
//
// [controller] - Owns settings and image for one editor and re-renders a
// surface through a [schedule] debouncer.
//
// [controls] - The control panel widgets: toggles and ranges bound to fields.
//
// [session] - Server sessions with TTLs, render subscriptions and the
// terminal panel's resumable state.
//
// ## Infrastructure
//
// [pipeline] - The export pipeline used by the CLI and the preview server.
//
// [cache] - Rendered artifact caching: file, Redis and no-op backends.
//
// [preset] - Named settings in a TOML file or MongoDB.
//
// [config] - The configuration file and XDG paths.
//
// [errors] - Error codes shared by the CLI and the HTTP API.
//
// [observability] - Hooks for metrics and tracing with no-op defaults.
//
// # Testing
//
//	go test ./pkg/...                    # All tests
//	go test -tags integration ./pkg/...  # Include Redis and MongoDB tests
//
// [settings]: https://pkg.go.dev/github.com/matzehuels/fractalglass/pkg/settings
// [effect]: https://pkg.go.dev/github.com/matzehuels/fractalglass/pkg/effect
// [effect/filter]: https://pkg.go.dev/github.com/matzehuels/fractalglass/pkg/effect/filter
// [sink]: https://pkg.go.dev/github.com/matzehuels/fractalglass/pkg/sink
// [source]: https://pkg.go.dev/github.com/matzehuels/fractalglass/pkg/source
// [controller]: https://pkg.go.dev/github.com/matzehuels/fractalglass/pkg/controller
// [schedule]: https://pkg.go.dev/github.com/matzehuels/fractalglass/pkg/schedule
// [controls]: https://pkg.go.dev/github.com/matzehuels/fractalglass/pkg/controls
// [session]: https://pkg.go.dev/github.com/matzehuels/fractalglass/pkg/session
// [pipeline]: https://pkg.go.dev/github.com/matzehuels/fractalglass/pkg/pipeline
// [cache]: https://pkg.go.dev/github.com/matzehuels/fractalglass/pkg/cache
// [preset]: https://pkg.go.dev/github.com/matzehuels/fractalglass/pkg/preset
// [config]: https://pkg.go.dev/github.com/matzehuels/fractalglass/pkg/config
// [errors]: https://pkg.go.dev/github.com/matzehuels/fractalglass/pkg/errors
// [observability]: https://pkg.go.dev/github.com/matzehuels/fractalglass/pkg/observability
package pkg
