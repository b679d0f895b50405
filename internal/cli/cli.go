// Package cli implements the fractalglass command-line interface.
//
// # Commands
//
//   - render: apply the effect to an image and write SVG, HTML, PNG, JSON or PDF
//   - tui: adjust the effect interactively with a terminal control panel
//   - serve: run the browser preview server
//   - preset: list, save, show and delete named settings
//   - config: show, locate or initialize the configuration file
//   - cache: manage the render cache
//
// # Logging
//
// All commands support --verbose (-v) for debug-level logging. The logger
// is attached to the command context; see loggerFromContext.
package cli

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/log"

	"github.com/matzehuels/fractalglass/pkg/cache"
	"github.com/matzehuels/fractalglass/pkg/config"
	"github.com/matzehuels/fractalglass/pkg/effect"
	"github.com/matzehuels/fractalglass/pkg/pipeline"
	"github.com/matzehuels/fractalglass/pkg/preset"
	"github.com/matzehuels/fractalglass/pkg/settings"
)

// =============================================================================
// Constants
// =============================================================================

const appName = config.AppName

// Log levels exported for use in main.go.
const (
	LogDebug = log.DebugLevel
	LogInfo  = log.InfoLevel
)

// =============================================================================
// CLI - Central CLI State
// =============================================================================

// CLI holds shared state for all commands.
type CLI struct {
	Logger *log.Logger

	// Config is loaded before every command runs.
	Config     config.Config
	ConfigPath string

	configFlag string
}

// New creates a new CLI instance with a default logger.
func New(w io.Writer, level log.Level) *CLI {
	return &CLI{
		Logger: newLogger(w, level),
		Config: config.Default(),
	}
}

// SetLogLevel updates the logger's level.
func (c *CLI) SetLogLevel(level log.Level) {
	c.Logger.SetLevel(level)
}

// loadConfig reads the file named by --config, or the default location.
func (c *CLI) loadConfig() error {
	path := c.configFlag
	if path == "" {
		p, err := config.Path()
		if err != nil {
			return err
		}
		path = p
	}
	cfg, err := config.Load(path)
	if err != nil {
		return err
	}
	c.Config, c.ConfigPath = cfg, path
	c.Logger.Debug("config", "path", path)
	return nil
}

// =============================================================================
// Runner Factory
// =============================================================================

// newRunner creates a pipeline runner backed by the configured cache.
func (c *CLI) newRunner(ctx context.Context, noCache bool) (*pipeline.Runner, error) {
	ch, err := c.newCache(ctx, noCache)
	if err != nil {
		return nil, err
	}
	var keyer cache.Keyer
	if p := c.Config.Cache.Prefix; p != "" {
		keyer = cache.NewScopedKeyer(nil, p)
	}
	r := pipeline.NewRunner(ch, keyer, c.Logger)
	if ttl := c.Config.Cache.TTL.Duration; ttl > 0 {
		r.TTL = ttl
	}
	return r, nil
}

// newCache opens the cache backend. A Redis server that cannot be reached
// degrades to no caching with a warning.
func (c *CLI) newCache(ctx context.Context, noCache bool) (cache.Cache, error) {
	cc := c.Config.Cache
	if noCache || cc.Backend == config.BackendNone {
		return cache.NewNullCache(), nil
	}
	if cc.Backend == config.BackendRedis {
		rc, err := cache.NewRedisCache(ctx, cache.RedisConfig{
			Addr:     cc.RedisAddr,
			Password: cc.RedisPassword,
			DB:       cc.RedisDB,
			Prefix:   appName + ":",
		})
		if err != nil {
			c.Logger.Warn("cache disabled", "backend", "redis", "err", err)
			return cache.NewNullCache(), nil
		}
		return rc, nil
	}
	dir, err := c.cacheDir()
	if err != nil {
		return cache.NewNullCache(), nil
	}
	return cache.NewFileCache(dir)
}

// cacheDir returns the file cache directory: the configured one, or the
// XDG cache dir.
func (c *CLI) cacheDir() (string, error) {
	if c.Config.Cache.Dir != "" {
		return c.Config.Cache.Dir, nil
	}
	return config.CacheDir()
}

// openPresets opens the configured preset store.
func (c *CLI) openPresets(ctx context.Context) (preset.Store, error) {
	return preset.Open(ctx, c.Config.Presets)
}

// engine builds the effect engine from the [render] section.
func (c *CLI) engine() *effect.Engine {
	var opts []effect.Option
	if t := c.Config.Render.Taper; t > 0 {
		opts = append(opts, effect.WithTaper(t))
	}
	if id := c.Config.Render.FilterID; id != "" {
		opts = append(opts, effect.WithFilterID(id))
	}
	return effect.New(opts...)
}

// =============================================================================
// Options Helpers
// =============================================================================

// renderDefaults fills opts from the [render] section of the config.
func (c *CLI) renderDefaults(opts *pipeline.Options) {
	rc := c.Config.Render
	opts.Width = rc.Width
	opts.Height = rc.Height
	opts.Taper = rc.Taper
	opts.FilterID = rc.FilterID
	opts.Seed = rc.Seed
	opts.Background = rc.Background
	opts.Formats = append([]string(nil), rc.Formats...)
}

// parseAssignments applies "key=value" pairs to s.
func parseAssignments(s *settings.Settings, pairs []string) error {
	for _, pair := range pairs {
		key, raw, ok := strings.Cut(pair, "=")
		if !ok {
			return fmt.Errorf("invalid setting %q (want key=value)", pair)
		}
		key = strings.TrimSpace(key)
		v, err := settings.ParseValue(key, strings.TrimSpace(raw))
		if err != nil {
			return err
		}
		if err := s.Set(key, v); err != nil {
			return err
		}
	}
	return nil
}
