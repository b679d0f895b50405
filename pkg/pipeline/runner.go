package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/charmbracelet/log"

	"github.com/matzehuels/fractalglass/pkg/cache"
	"github.com/matzehuels/fractalglass/pkg/observability"
	"github.com/matzehuels/fractalglass/pkg/source"
)

// Runner encapsulates pipeline execution with caching.
// Both the CLI and the preview server use it so caching logic lives in one place.
//
// The Runner is stateless except for the cache and logger; it doesn't
// store pipeline results. Multiple goroutines can safely use the same
// Runner with different options.
type Runner struct {
	Cache  cache.Cache
	Keyer  cache.Keyer
	Logger *log.Logger
	TTL    time.Duration
}

// NewRunner creates a runner with the given cache and keyer.
// If keyer is nil, a DefaultKeyer is used.
// If cache is nil, a NullCache is used (caching disabled).
func NewRunner(c cache.Cache, keyer cache.Keyer, logger *log.Logger) *Runner {
	if keyer == nil {
		keyer = cache.NewDefaultKeyer()
	}
	if c == nil {
		c = cache.NewNullCache()
	}
	if logger == nil {
		logger = log.Default()
	}
	return &Runner{
		Cache:  c,
		Keyer:  keyer,
		Logger: logger,
		TTL:    cache.TTLArtifact,
	}
}

// Execute runs the complete load → layout → render pipeline with caching.
func (r *Runner) Execute(ctx context.Context, opts Options) (result *Result, err error) {
	r.applyLogger(&opts)
	if err := opts.ValidateAndSetDefaults(); err != nil {
		return nil, err
	}

	hooks := observability.Export()
	hooks.OnExportStart(ctx, opts.Formats)
	start := time.Now()
	defer func() { hooks.OnExportComplete(ctx, opts.Formats, time.Since(start), err) }()

	result = &Result{}

	// Stage 1: Load
	loadStart := time.Now()
	img, err := Load(ctx, opts)
	if err != nil {
		return nil, err
	}
	result.Image = img
	result.ImageHash = img.Hash()
	result.Stats.LoadTime = time.Since(loadStart)

	r.Logger.Debug("loaded image",
		"name", img.Name,
		"mime", img.MIME,
		"bytes", len(img.Data))

	// Stage 2: Layout
	layoutStart := time.Now()
	l, err := ComputeLayout(img, opts)
	if err != nil {
		return nil, fmt.Errorf("layout: %w", err)
	}
	result.Layout = l
	result.Stats.LayoutTime = time.Since(layoutStart)
	result.Stats.Strips = len(l.Strips)

	r.Logger.Info("computed layout",
		"strips", len(l.Strips),
		"frame", fmt.Sprintf("%dx%d", l.Width, l.Height))

	// Stage 3: Render
	renderStart := time.Now()
	artifacts, hits, err := r.RenderWithCacheInfo(ctx, img, l, opts)
	if err != nil {
		return nil, err
	}
	result.Artifacts = artifacts
	result.Stats.RenderTime = time.Since(renderStart)
	result.CacheInfo.Hits = hits
	result.CacheInfo.RenderHit = len(hits) == len(opts.Formats)
	for _, data := range artifacts {
		result.Stats.Bytes += len(data)
	}

	r.Logger.Info("rendered outputs",
		"formats", opts.Formats,
		"cached", len(hits),
		"duration", result.Stats.RenderTime)

	return result, nil
}

// RenderWithCacheInfo renders each format, serving what it can from the
// cache. It returns the formats that were cache hits.
func (r *Runner) RenderWithCacheInfo(ctx context.Context, img *source.Image, l Layout, opts Options) (map[string][]byte, []string, error) {
	r.applyLogger(&opts)
	if err := opts.ValidateForRender(); err != nil {
		return nil, nil, err
	}

	imageHash := img.Hash()
	hooks := observability.Cache()
	artifacts := make(map[string][]byte, len(opts.Formats))
	var hits, missing []string

	for _, format := range opts.Formats {
		if opts.Refresh {
			missing = append(missing, format)
			continue
		}
		key := r.Keyer.ArtifactKey(imageHash, opts.ArtifactKeyOpts(format, l))
		data, hit, err := r.Cache.Get(ctx, key)
		if err != nil {
			r.Logger.Warn("cache read failed", "format", format, "err", err)
		}
		if err == nil && hit {
			hooks.OnCacheHit(ctx, "artifact:"+format)
			artifacts[format] = data
			hits = append(hits, format)
			continue
		}
		hooks.OnCacheMiss(ctx, "artifact:"+format)
		missing = append(missing, format)
	}

	if len(missing) == 0 {
		return artifacts, hits, nil
	}

	renderOpts := opts
	renderOpts.Formats = missing
	rendered, err := Render(ctx, img, l, renderOpts)
	if err != nil {
		return nil, nil, err
	}

	for format, data := range rendered {
		artifacts[format] = data
		key := r.Keyer.ArtifactKey(imageHash, opts.ArtifactKeyOpts(format, l))
		if err := r.Cache.Set(ctx, key, data, r.TTL); err != nil {
			r.Logger.Warn("cache write failed", "format", format, "err", err)
			continue
		}
		hooks.OnCacheSet(ctx, "artifact:"+format, len(data))
	}

	return artifacts, hits, nil
}

// Render is a convenience wrapper that calls RenderWithCacheInfo and discards the cache hit info.
func (r *Runner) Render(ctx context.Context, img *source.Image, l Layout, opts Options) (map[string][]byte, error) {
	artifacts, _, err := r.RenderWithCacheInfo(ctx, img, l, opts)
	return artifacts, err
}

// Close releases resources held by the runner (primarily the cache).
func (r *Runner) Close() error {
	if r.Cache != nil {
		return r.Cache.Close()
	}
	return nil
}

// applyLogger sets the runner's logger on options if not already set.
func (r *Runner) applyLogger(opts *Options) {
	if opts.Logger == nil {
		opts.Logger = r.Logger
	}
}
