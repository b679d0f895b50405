// Package config loads the fractalglass configuration file.
//
// The file is TOML and every section is optional; absent keys keep their
// defaults:
//
//	[defaults]          # initial effect settings, clamped on load
//	steps = 40
//	flip = true
//
//	[render]
//	width = 1200
//	formats = ["svg", "png"]
//
//	[controller]
//	debounce = "300ms"
//
//	[server]
//	addr = ":8080"
//
//	[cache]
//	backend = "redis"   # "file", "redis" or "none"
//	redis_addr = "localhost:6379"
//
//	[presets]
//	backend = "mongo"   # "file" or "mongo"
//	mongo_uri = "mongodb://localhost:27017"
//
// The file is found through [Path]: $FRACTALGLASS_CONFIG, then
// $XDG_CONFIG_HOME/fractalglass/config.toml, then
// ~/.config/fractalglass/config.toml.
package config

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/BurntSushi/toml"

	"github.com/matzehuels/fractalglass/pkg/controller"
	"github.com/matzehuels/fractalglass/pkg/effect"
	"github.com/matzehuels/fractalglass/pkg/settings"
)

const (
	// AppName names the configuration, cache and data directories.
	AppName = "fractalglass"

	// EnvPath overrides the configuration file location.
	EnvPath = "FRACTALGLASS_CONFIG"
)

// Backend names.
const (
	BackendFile  = "file"
	BackendRedis = "redis"
	BackendMongo = "mongo"
	BackendNone  = "none"
)

// Duration is a time.Duration that reads and writes as a TOML string ("300ms").
type Duration struct {
	time.Duration
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (d *Duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	d.Duration = v
	return nil
}

// MarshalText implements encoding.TextMarshaler.
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

// Config is the whole configuration file.
type Config struct {
	Defaults   settings.Settings `toml:"defaults"`
	Render     Render            `toml:"render"`
	Controller Controller        `toml:"controller"`
	Server     Server            `toml:"server"`
	Cache      Cache             `toml:"cache"`
	Presets    Presets           `toml:"presets"`
}

// Render holds export options.
type Render struct {
	Width      int      `toml:"width"`
	Height     int      `toml:"height"` // 0 keeps the image's aspect ratio
	Taper      float64  `toml:"taper"`
	FilterID   string   `toml:"filter_id"`
	Seed       int64    `toml:"seed"`
	Background string   `toml:"background"`
	Formats    []string `toml:"formats"`
}

// Controller holds live-editing options.
type Controller struct {
	Debounce Duration `toml:"debounce"`
}

// Server holds preview server options.
type Server struct {
	Addr        string   `toml:"addr"`
	MaxUploadMB int      `toml:"max_upload_mb"`
	SessionTTL  Duration `toml:"session_ttl"`
}

// Cache selects and configures the artifact cache.
type Cache struct {
	Backend       string   `toml:"backend"`
	Dir           string   `toml:"dir"` // file backend; empty uses the XDG cache dir
	RedisAddr     string   `toml:"redis_addr"`
	RedisPassword string   `toml:"redis_password"`
	RedisDB       int      `toml:"redis_db"`
	TTL           Duration `toml:"ttl"`
	Prefix        string   `toml:"prefix"` // namespaces keys when deployments share a backend
}

// Presets selects and configures the preset store.
type Presets struct {
	Backend    string `toml:"backend"`
	File       string `toml:"file"` // file backend; empty uses the XDG data dir
	MongoURI   string `toml:"mongo_uri"`
	Database   string `toml:"database"`
	Collection string `toml:"collection"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Defaults: settings.Defaults(),
		Render: Render{
			Width:    800,
			Taper:    effect.DefaultTaper,
			FilterID: effect.DefaultFilterID,
			Formats:  []string{"svg"},
		},
		Controller: Controller{Debounce: Duration{controller.DefaultDelay}},
		Server: Server{
			Addr:        "127.0.0.1:8080",
			MaxUploadMB: 20,
			SessionTTL:  Duration{30 * time.Minute},
		},
		Cache: Cache{
			Backend:   BackendFile,
			RedisAddr: "localhost:6379",
			TTL:       Duration{7 * 24 * time.Hour},
		},
		Presets: Presets{
			Backend:    BackendFile,
			MongoURI:   "mongodb://localhost:27017",
			Database:   AppName,
			Collection: "presets",
		},
	}
}

// Decode reads a configuration from r on top of the defaults. Unknown keys
// are an error so typos do not pass silently.
func Decode(r io.Reader) (Config, error) {
	cfg := Default()
	md, err := toml.NewDecoder(r).Decode(&cfg)
	if err != nil {
		return Default(), fmt.Errorf("decode config: %w", err)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, len(undecoded))
		for i, k := range undecoded {
			keys[i] = k.String()
		}
		return Default(), fmt.Errorf("unknown config keys: %s", strings.Join(keys, ", "))
	}
	cfg.Defaults = cfg.Defaults.Clamp()
	if err := cfg.Validate(); err != nil {
		return Default(), err
	}
	return cfg, nil
}

// Encode writes cfg as TOML.
func Encode(w io.Writer, cfg Config) error {
	return toml.NewEncoder(w).Encode(cfg)
}

// Load reads the configuration file at path. A missing file yields the
// defaults and no error.
func Load(path string) (Config, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Default(), nil
		}
		return Default(), err
	}
	defer f.Close()

	cfg, err := Decode(f)
	if err != nil {
		return cfg, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

// LoadDefault loads the file at Path().
func LoadDefault() (Config, string, error) {
	path, err := Path()
	if err != nil {
		return Default(), "", err
	}
	cfg, err := Load(path)
	return cfg, path, err
}

// Save writes cfg to path, creating parent directories.
func Save(path string, cfg Config) error {
	var buf bytes.Buffer
	if err := Encode(&buf, cfg); err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return os.WriteFile(path, buf.Bytes(), 0o644)
}

// Validate checks the fields that cannot be clamped.
func (c Config) Validate() error {
	if !slices.Contains([]string{BackendFile, BackendRedis, BackendNone}, c.Cache.Backend) {
		return fmt.Errorf("cache.backend: %q (must be one of: file, redis, none)", c.Cache.Backend)
	}
	if !slices.Contains([]string{BackendFile, BackendMongo}, c.Presets.Backend) {
		return fmt.Errorf("presets.backend: %q (must be one of: file, mongo)", c.Presets.Backend)
	}
	if c.Render.Width < 0 || c.Render.Height < 0 {
		return fmt.Errorf("render: width and height must not be negative")
	}
	if c.Render.Taper < 0 || c.Render.Taper > 1 {
		return fmt.Errorf("render.taper: %g outside [0, 1]", c.Render.Taper)
	}
	if c.Controller.Debounce.Duration < 0 {
		return fmt.Errorf("controller.debounce: must not be negative")
	}
	if c.Server.MaxUploadMB < 0 {
		return fmt.Errorf("server.max_upload_mb: must not be negative")
	}
	return nil
}

// MaxUploadBytes returns the upload limit in bytes.
func (s Server) MaxUploadBytes() int64 {
	return int64(s.MaxUploadMB) << 20
}

// =============================================================================
// Paths
// =============================================================================

// Path returns the configuration file location.
func Path() (string, error) {
	if p := os.Getenv(EnvPath); p != "" {
		return p, nil
	}
	dir, err := xdgDir("XDG_CONFIG_HOME", ".config")
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.toml"), nil
}

// CacheDir returns the artifact cache directory (~/.cache/fractalglass/).
func CacheDir() (string, error) {
	return xdgDir("XDG_CACHE_HOME", ".cache")
}

// DataDir returns the data directory (~/.local/share/fractalglass/).
func DataDir() (string, error) {
	return xdgDir("XDG_DATA_HOME", filepath.Join(".local", "share"))
}

func xdgDir(env, fallback string) (string, error) {
	if base := os.Getenv(env); base != "" {
		return filepath.Join(base, AppName), nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, fallback, AppName), nil
}
