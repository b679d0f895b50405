// Package pipeline provides the export pipeline for fractalglass.
//
// This package implements the complete load → layout → render pipeline used
// by the CLI render command and the preview server's download endpoints. By
// centralizing it, every entry point produces identical artifacts for the
// same image and settings.
//
// # Architecture
//
// The pipeline consists of three stages:
//
//  1. Load: Resolve the source image from a path, data URL or raw bytes
//  2. Layout: Size the frame and compute the strip list for the settings
//  3. Render: Generate output in various formats (SVG, HTML, PNG, JSON, PDF)
//
// Each stage can be run independently or as part of the complete pipeline.
//
// # Usage
//
//	runner := pipeline.NewRunner(cache, nil, logger)
//	result, err := runner.Execute(ctx, pipeline.Options{
//	    Input:    pipeline.Input{Path: "photo.jpg"},
//	    Settings: settings.Defaults(),
//	    Formats:  []string{"svg", "png"},
//	})
//	if err != nil {
//	    log.Fatal(err)
//	}
//	svg := result.Artifacts["svg"]
package pipeline

import (
	"io"
	"slices"
	"strings"
	"time"

	"github.com/charmbracelet/log"

	"github.com/matzehuels/fractalglass/pkg/cache"
	"github.com/matzehuels/fractalglass/pkg/effect"
	"github.com/matzehuels/fractalglass/pkg/errors"
	"github.com/matzehuels/fractalglass/pkg/settings"
	"github.com/matzehuels/fractalglass/pkg/source"
)

// =============================================================================
// Default Values - Single Source of Truth for CLI and server
// =============================================================================

const (
	// DefaultWidth is the default frame width in pixels.
	DefaultWidth = 800

	// DefaultHeight is used when the frame height cannot be derived from
	// the image's aspect ratio.
	DefaultHeight = 600

	// MaxDimension bounds either frame side. Raster exports allocate
	// width×height pixels.
	MaxDimension = 8192
)

// Format constants for output formats.
const (
	FormatSVG  = "svg"
	FormatHTML = "html"
	FormatPNG  = "png"
	FormatJSON = "json"
	FormatPDF  = "pdf"
)

// Formats lists every supported output format.
var Formats = []string{FormatSVG, FormatHTML, FormatPNG, FormatJSON, FormatPDF}

// ContentTypes maps formats to MIME types.
var ContentTypes = map[string]string{
	FormatSVG:  "image/svg+xml",
	FormatHTML: "text/html; charset=utf-8",
	FormatPNG:  "image/png",
	FormatJSON: "application/json",
	FormatPDF:  "application/pdf",
}

// =============================================================================
// Options - Pipeline Configuration
// =============================================================================

// Input names the source image. Exactly one field is used, checked in the
// order Image, Path, DataURL, Data.
type Input struct {
	Image   *source.Image `json:"-"`
	Path    string        `json:"path,omitempty"`
	DataURL string        `json:"data_url,omitempty"`
	Data    []byte        `json:"-"`
	Name    string        `json:"name,omitempty"` // file name for Data
}

// Options contains all configuration for the export pipeline.
type Options struct {
	Input    Input             `json:"input"`
	Settings settings.Settings `json:"settings"` // zero value means settings.Defaults()

	// Layout options
	Width    int     `json:"width,omitempty"`
	Height   int     `json:"height,omitempty"` // 0 keeps the image's aspect ratio
	Taper    float64 `json:"taper,omitempty"`
	FilterID string  `json:"filter_id,omitempty"`

	// Render options
	Formats    []string `json:"formats,omitempty"`
	Seed       int64    `json:"seed,omitempty"`
	Background string   `json:"background,omitempty"` // CSS color, empty for transparent
	Page       bool     `json:"page,omitempty"`       // HTML: full document instead of a fragment
	Title      string   `json:"title,omitempty"`
	Refresh    bool     `json:"refresh,omitempty"`

	// Runtime options (not serialized)
	Logger *log.Logger `json:"-"`

	// validated tracks whether ValidateAndSetDefaults has been called.
	validated bool
}

// Result contains the outputs of a pipeline run.
type Result struct {
	// Image is the loaded source image.
	Image *source.Image

	// ImageHash is the content hash of the image.
	ImageHash string

	// Layout is the frame and strip list the artifacts were rendered from.
	Layout Layout

	// Artifacts contains rendered outputs keyed by format.
	Artifacts map[string][]byte

	// Stats contains timing and size information.
	Stats Stats

	// CacheInfo tracks which formats came from the cache.
	CacheInfo CacheInfo
}

// Stats contains pipeline execution statistics.
type Stats struct {
	Strips     int
	LoadTime   time.Duration
	LayoutTime time.Duration
	RenderTime time.Duration
	Bytes      int
}

// CacheInfo tracks cache hits for the render stage.
type CacheInfo struct {
	Hits      []string // formats served from the cache
	RenderHit bool     // whether every artifact came from the cache
}

// =============================================================================
// Validation Functions
// =============================================================================

// ValidateFormat checks that a format is valid.
func ValidateFormat(format string) error {
	if !slices.Contains(Formats, format) {
		return errors.New(errors.ErrCodeInvalidFormat,
			"invalid format: %q (must be one of: %s)", format, strings.Join(Formats, ", "))
	}
	return nil
}

// ValidateFormats checks that all formats are valid.
func ValidateFormats(formats []string) error {
	for _, f := range formats {
		if err := ValidateFormat(f); err != nil {
			return err
		}
	}
	return nil
}

// ParseFormats splits a comma-separated format list, dropping blanks and
// duplicates, and validates each entry.
func ParseFormats(s string) ([]string, error) {
	var out []string
	for _, f := range strings.Split(s, ",") {
		f = strings.ToLower(strings.TrimSpace(f))
		if f == "" || slices.Contains(out, f) {
			continue
		}
		out = append(out, f)
	}
	if err := ValidateFormats(out); err != nil {
		return nil, err
	}
	return out, nil
}

// =============================================================================
// Options Methods
// =============================================================================

// ValidateAndSetDefaults checks the options and applies defaults.
// This method is idempotent.
func (o *Options) ValidateAndSetDefaults() error {
	if o.validated {
		return nil
	}
	if err := o.ValidateForLoad(); err != nil {
		return err
	}
	if err := o.ValidateForLayout(); err != nil {
		return err
	}
	if err := o.ValidateForRender(); err != nil {
		return err
	}
	o.validated = true
	return nil
}

// ValidateForLoad checks that an input was given.
func (o *Options) ValidateForLoad() error {
	in := o.Input
	if in.Image.Empty() && in.Path == "" && in.DataURL == "" && len(in.Data) == 0 {
		return errors.New(errors.ErrCodeNoImage, "an image is required")
	}
	o.setLogger()
	return nil
}

// SetLayoutDefaults sets default values for layout computation.
func (o *Options) SetLayoutDefaults() {
	if o.Width == 0 {
		o.Width = DefaultWidth
	}
	if o.Taper == 0 {
		o.Taper = effect.DefaultTaper
	}
	if o.FilterID == "" {
		o.FilterID = effect.DefaultFilterID
	}
	// The zero value has zero steps, which no real settings can hold.
	if o.Settings == (settings.Settings{}) {
		o.Settings = settings.Defaults()
	}
	o.Settings = o.Settings.Clamp()
	o.setLogger()
}

// ValidateForLayout validates and sets defaults for layout computation.
func (o *Options) ValidateForLayout() error {
	o.SetLayoutDefaults()
	if o.Width < 0 || o.Width > MaxDimension {
		return errors.New(errors.ErrCodeInvalidInput, "width %d outside [1, %d]", o.Width, MaxDimension)
	}
	if o.Height < 0 || o.Height > MaxDimension {
		return errors.New(errors.ErrCodeInvalidInput, "height %d outside [1, %d]", o.Height, MaxDimension)
	}
	if o.Taper < 0 || o.Taper > 1 {
		return errors.New(errors.ErrCodeInvalidInput, "taper %g outside [0, 1]", o.Taper)
	}
	return nil
}

// SetRenderDefaults sets default values for rendering.
func (o *Options) SetRenderDefaults() {
	if len(o.Formats) == 0 {
		o.Formats = []string{FormatSVG}
	}
	if o.Title == "" {
		o.Title = "Fractal Glass"
	}
	o.setLogger()
}

// ValidateForRender validates and sets defaults for rendering.
func (o *Options) ValidateForRender() error {
	o.SetLayoutDefaults()
	o.SetRenderDefaults()
	return ValidateFormats(o.Formats)
}

// ArtifactKeyOpts returns cache key options for one rendered format.
// l supplies the resolved frame height.
func (o *Options) ArtifactKeyOpts(format string, l Layout) cache.ArtifactKeyOpts {
	key := cache.ArtifactKeyOpts{
		Settings: o.Settings,
		Format:   format,
		Width:    l.Width,
		Height:   l.Height,
		Taper:    o.Taper,
		Seed:     o.Seed,
	}
	// Fold the remaining output switches into the format so they key
	// separately without widening the key struct.
	if o.Background != "" {
		key.Format += ";bg=" + o.Background
	}
	if o.FilterID != effect.DefaultFilterID {
		key.Format += ";filter=" + o.FilterID
	}
	if format == FormatHTML && o.Page {
		key.Format += ";page=" + o.Title
	}
	return key
}

func (o *Options) setLogger() {
	if o.Logger == nil {
		o.Logger = log.NewWithOptions(io.Discard, log.Options{})
	}
}
