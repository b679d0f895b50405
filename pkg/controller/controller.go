// Package controller owns the editable state of one effect session: the
// current settings and the selected image. Every change schedules a
// debounced re-render of a surface; bursts of changes collapse into a
// single render of the final state.
package controller

import (
	"context"
	"io"
	"sync"
	"time"

	"github.com/charmbracelet/log"

	"github.com/matzehuels/fractalglass/pkg/effect"
	"github.com/matzehuels/fractalglass/pkg/observability"
	"github.com/matzehuels/fractalglass/pkg/schedule"
	"github.com/matzehuels/fractalglass/pkg/settings"
	"github.com/matzehuels/fractalglass/pkg/source"
)

// DefaultDelay is the quiet period between the last change and the render.
const DefaultDelay = 300 * time.Millisecond

// Snapshot is the state a render was computed from.
type Snapshot struct {
	Seq      uint64 // 1 for the first render
	Settings settings.Settings
	Image    *source.Image
	Strips   int
	Duration time.Duration
	At       time.Time
}

// Option configures a Controller.
type Option func(*Controller)

// WithEngine sets the effect engine. Default is effect.New().
func WithEngine(e *effect.Engine) Option {
	return func(c *Controller) {
		if e != nil {
			c.engine = e
		}
	}
}

// WithDelay sets the debounce delay. Negative values are treated as zero.
func WithDelay(d time.Duration) Option {
	return func(c *Controller) { c.delay = max(d, 0) }
}

// WithLogger sets the logger. Default discards output.
func WithLogger(l *log.Logger) Option {
	return func(c *Controller) {
		if l != nil {
			c.logger = l
		}
	}
}

// WithSettings sets the initial settings. They are clamped.
func WithSettings(s settings.Settings) Option {
	return func(c *Controller) { c.settings = s.Clamp() }
}

// OnRender registers fn to be called after each render, on the render goroutine.
func OnRender(fn func(Snapshot)) Option {
	return func(c *Controller) {
		if fn != nil {
			c.onRender = append(c.onRender, fn)
		}
	}
}

// Controller applies changes to settings and image and re-renders its
// surface through a debouncer. It is safe for concurrent use; renders are
// serialized and each sees one consistent snapshot.
type Controller struct {
	surface  effect.Surface
	engine   *effect.Engine
	delay    time.Duration
	logger   *log.Logger
	onRender []func(Snapshot)
	debounce *schedule.Debouncer

	mu       sync.Mutex
	settings settings.Settings
	image    *source.Image
	last     Snapshot
}

// New creates a controller for surface with default settings and no image.
func New(surface effect.Surface, opts ...Option) *Controller {
	c := &Controller{
		surface:  surface,
		engine:   effect.New(),
		delay:    DefaultDelay,
		logger:   log.New(io.Discard),
		settings: settings.Defaults(),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.debounce = schedule.NewDebouncer(c.delay, c.render)
	return c
}

// Set writes one settings field and schedules a render.
func (c *Controller) Set(key string, value any) error {
	c.mu.Lock()
	err := c.settings.Set(key, value)
	c.mu.Unlock()
	if err != nil {
		return err
	}
	c.changed(key)
	return nil
}

// Apply writes several fields atomically and schedules a render. On error
// nothing is changed.
func (c *Controller) Apply(values map[string]any) error {
	c.mu.Lock()
	err := c.settings.Apply(values)
	c.mu.Unlock()
	if err != nil {
		return err
	}
	c.changed("settings")
	return nil
}

// Update edits the settings in place and schedules a render. The result is clamped.
func (c *Controller) Update(fn func(*settings.Settings)) {
	c.mu.Lock()
	s := c.settings
	fn(&s)
	c.settings = s.Clamp()
	c.mu.Unlock()
	c.changed("settings")
}

// SetImage replaces the selected image and schedules a render.
func (c *Controller) SetImage(img *source.Image) {
	c.mu.Lock()
	c.image = img
	c.mu.Unlock()
	c.changed("image")
}

// Settings returns the current settings.
func (c *Controller) Settings() settings.Settings {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.settings
}

// Image returns the selected image, or nil.
func (c *Controller) Image() *source.Image {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.image
}

// Last returns the snapshot of the most recent render. Seq is zero before
// the first render.
func (c *Controller) Last() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.last
}

// Pending reports whether a render is scheduled.
func (c *Controller) Pending() bool { return c.debounce.Pending() }

// Flush renders any pending change now. It reports whether one was pending.
func (c *Controller) Flush() bool { return c.debounce.Flush() }

// Close cancels pending work. Later changes update state but never render.
func (c *Controller) Close() {
	c.debounce.Stop()
}

func (c *Controller) changed(key string) {
	observability.Effect().OnSettingsChange(context.Background(), key)
	c.logger.Debug("change", "key", key)
	c.debounce.Trigger()
}

func (c *Controller) render() {
	c.mu.Lock()
	s, img := c.settings, c.image
	c.mu.Unlock()

	ctx := context.Background()
	hooks := observability.Effect()
	hooks.OnRenderStart(ctx, s.Steps)
	start := time.Now()
	ok := c.engine.Render(c.surface, s, img)
	elapsed := time.Since(start)

	if !ok {
		hooks.OnRenderComplete(ctx, 0, elapsed)
		c.logger.Debug("render skipped", "reason", "no image")
		return
	}
	hooks.OnRenderComplete(ctx, s.Steps, elapsed)

	c.mu.Lock()
	snap := Snapshot{
		Seq:      c.last.Seq + 1,
		Settings: s,
		Image:    img,
		Strips:   s.Steps,
		Duration: elapsed,
		At:       start,
	}
	c.last = snap
	c.mu.Unlock()

	c.logger.Debug("rendered", "seq", snap.Seq, "strips", snap.Strips, "took", elapsed)
	for _, fn := range c.onRender {
		fn(snap)
	}
}
