package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"image"
	"image/color"
	"image/png"
	"io"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"testing"

	"github.com/matzehuels/fractalglass/pkg/cache"
	"github.com/matzehuels/fractalglass/pkg/config"
	"github.com/matzehuels/fractalglass/pkg/pipeline"
	"github.com/matzehuels/fractalglass/pkg/settings"
)

// captureOutput redirects the print helpers for the duration of the test.
func captureOutput(t *testing.T) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	prev := output
	output = &buf
	t.Cleanup(func() { output = prev })
	return &buf
}

// isolate points every XDG directory and the config file into a temp dir.
func isolate(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", filepath.Join(dir, "config"))
	t.Setenv("XDG_CACHE_HOME", filepath.Join(dir, "cache"))
	t.Setenv("XDG_DATA_HOME", filepath.Join(dir, "data"))
	t.Setenv(config.EnvPath, "")
	return dir
}

// run executes the root command with args and returns what it wrote to
// its own stdout.
func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	c := New(io.Discard, LogInfo)
	root := c.RootCommand()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(io.Discard)
	root.SetArgs(args)
	err := root.ExecuteContext(context.Background())
	return out.String(), err
}

func writePNG(t *testing.T, path string, w, h int) {
	t.Helper()
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.NRGBA{R: uint8(x * 255 / w), G: 140, B: uint8(y * 255 / h), A: 255})
		}
	}
	f, err := os.Create(path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	if err := png.Encode(f, img); err != nil {
		t.Fatal(err)
	}
}

func TestRootCommandRegistersSubcommands(t *testing.T) {
	root := New(io.Discard, LogInfo).RootCommand()
	var names []string
	for _, cmd := range root.Commands() {
		names = append(names, cmd.Name())
	}
	for _, want := range []string{"render", "tui", "serve", "preset", "config", "cache", "completion"} {
		if !slices.Contains(names, want) {
			t.Errorf("missing subcommand %q (have %v)", want, names)
		}
	}
}

func TestParseAssignments(t *testing.T) {
	tests := []struct {
		name    string
		pairs   []string
		check   func(settings.Settings) bool
		wantErr bool
	}{
		{
			name:  "ints and floats",
			pairs: []string{"steps=48", "baseFrequency = 0.1"},
			check: func(s settings.Settings) bool { return s.Steps == 48 && s.BaseFrequency == 0.1 },
		},
		{
			name:  "toggles",
			pairs: []string{"flip=on", "shimmer=false"},
			check: func(s settings.Settings) bool { return s.Flip && !s.Shimmer },
		},
		{
			name:  "clamped",
			pairs: []string{"hue=500"},
			check: func(s settings.Settings) bool { return s.Hue == 180 },
		},
		{name: "missing equals", pairs: []string{"steps"}, wantErr: true},
		{name: "unknown key", pairs: []string{"blur=3"}, wantErr: true},
		{name: "bad number", pairs: []string{"scale=lots"}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := settings.Defaults()
			err := parseAssignments(&s, tt.pairs)
			if (err != nil) != tt.wantErr {
				t.Fatalf("parseAssignments() error = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.check != nil && !tt.check(s) {
				t.Errorf("unexpected settings: %s", s)
			}
		})
	}
}

func TestOutputPaths(t *testing.T) {
	tests := []struct {
		name    string
		output  string
		input   string
		formats []string
		want    map[string]string
	}{
		{
			name:    "derived from input",
			input:   "photos/cat.jpg",
			formats: []string{"svg"},
			want:    map[string]string{"svg": "photos/cat-glass.svg"},
		},
		{
			name:    "single explicit output",
			output:  "out.svg",
			input:   "cat.jpg",
			formats: []string{"svg"},
			want:    map[string]string{"svg": "out.svg"},
		},
		{
			name:    "several formats share a base",
			output:  "out/cat.svg",
			input:   "cat.jpg",
			formats: []string{"svg", "png"},
			want:    map[string]string{"svg": "out/cat.svg", "png": "out/cat.png"},
		},
		{
			name:    "base without extension",
			output:  "out/cat",
			input:   "cat.jpg",
			formats: []string{"html", "json"},
			want:    map[string]string{"html": "out/cat.html", "json": "out/cat.json"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := outputPaths(tt.output, tt.input, tt.formats)
			for f, want := range tt.want {
				if got[f] != want {
					t.Errorf("outputPaths()[%s] = %q, want %q", f, got[f], want)
				}
			}
		})
	}
}

func TestRenderOptionsLayering(t *testing.T) {
	dir := isolate(t)
	c := New(io.Discard, LogInfo)
	c.Config.Defaults.Steps = 20
	c.Config.Defaults.Hue = 30

	settingsFile := filepath.Join(dir, "look.toml")
	s := settings.Defaults()
	s.Hue, s.Scale = -90, 5
	if err := settings.Save(settingsFile, s); err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name  string
		opts  renderOpts
		check func(pipeline.Options) bool
	}{
		{
			name:  "config defaults",
			check: func(o pipeline.Options) bool { return o.Settings.Steps == 20 && o.Settings.Hue == 30 },
		},
		{
			name:  "settings file replaces defaults",
			opts:  renderOpts{settingsFile: settingsFile},
			check: func(o pipeline.Options) bool { return o.Settings.Hue == -90 && o.Settings.Steps == 33 },
		},
		{
			name:  "set wins over file",
			opts:  renderOpts{settingsFile: settingsFile, set: []string{"scale=12"}},
			check: func(o pipeline.Options) bool { return o.Settings.Scale == 12 && o.Settings.Hue == -90 },
		},
		{
			name:  "format from output extension",
			opts:  renderOpts{output: "x.png"},
			check: func(o pipeline.Options) bool { return slices.Equal(o.Formats, []string{"png"}) },
		},
		{
			name:  "explicit formats and frame",
			opts:  renderOpts{formats: "svg, json", width: 320, seed: 7},
			check: func(o pipeline.Options) bool {
				return slices.Equal(o.Formats, []string{"svg", "json"}) && o.Width == 320 && o.Seed == 7
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := c.renderOptions(context.Background(), "in.png", &tt.opts)
			if err != nil {
				t.Fatalf("renderOptions() error: %v", err)
			}
			if !tt.check(got) {
				t.Errorf("unexpected options: formats=%v width=%d settings=%s", got.Formats, got.Width, got.Settings)
			}
		})
	}

	if _, err := c.renderOptions(context.Background(), "in.png", &renderOpts{formats: "gif"}); err == nil {
		t.Error("renderOptions() accepted an unknown format")
	}
	if _, err := c.renderOptions(context.Background(), "in.png", &renderOpts{background: "not-a-color"}); err == nil {
		t.Error("renderOptions() accepted a bad background")
	}
}

func TestRenderCommandWritesFiles(t *testing.T) {
	dir := isolate(t)
	captureOutput(t)

	in := filepath.Join(dir, "photo.png")
	writePNG(t, in, 60, 40)
	base := filepath.Join(dir, "out", "glass")

	_, err := run(t, "render", in, "-f", "svg,json", "-o", base, "--no-cache", "--set", "steps=20", "--width", "300")
	if err != nil {
		t.Fatalf("render: %v", err)
	}

	svg, err := os.ReadFile(base + ".svg")
	if err != nil {
		t.Fatalf("read svg: %v", err)
	}
	if !bytes.Contains(svg, []byte("<svg")) {
		t.Error("svg output has no <svg> element")
	}

	data, err := os.ReadFile(base + ".json")
	if err != nil {
		t.Fatalf("read json: %v", err)
	}
	var layout struct {
		Width  int               `json:"width"`
		Strips []json.RawMessage `json:"strips"`
	}
	if err := json.Unmarshal(data, &layout); err != nil {
		t.Fatalf("decode json: %v", err)
	}
	if layout.Width != 300 || len(layout.Strips) != 20 {
		t.Errorf("layout width=%d strips=%d, want 300 and 20", layout.Width, len(layout.Strips))
	}
}

func TestRenderCommandStdout(t *testing.T) {
	dir := isolate(t)
	in := filepath.Join(dir, "photo.png")
	writePNG(t, in, 30, 30)

	out, err := run(t, "render", in, "-f", "json", "-o", "-", "--no-cache")
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	if !json.Valid([]byte(out)) {
		t.Errorf("stdout is not JSON: %.80q", out)
	}

	if _, err := run(t, "render", in, "-f", "svg,json", "-o", "-"); err == nil {
		t.Error("render to stdout accepted two formats")
	}
}

func TestPresetCommands(t *testing.T) {
	isolate(t)
	out := captureOutput(t)

	if _, err := run(t, "preset", "save", "moody", "--set", "hue=-40", "--set", "steps=48"); err != nil {
		t.Fatalf("preset save: %v", err)
	}
	if !strings.Contains(out.String(), "moody") {
		t.Errorf("save output = %q", out.String())
	}

	shown, err := run(t, "preset", "show", "moody", "--toml")
	if err != nil {
		t.Fatalf("preset show: %v", err)
	}
	s, err := settings.Decode(strings.NewReader(shown))
	if err != nil {
		t.Fatalf("decode shown preset: %v", err)
	}
	if s.Hue != -40 || s.Steps != 48 {
		t.Errorf("shown settings = %s", s)
	}

	out.Reset()
	if _, err := run(t, "preset", "list"); err != nil {
		t.Fatalf("preset list: %v", err)
	}
	if !strings.Contains(out.String(), "moody") || !strings.Contains(out.String(), "hue=-40") {
		t.Errorf("list output = %q", out.String())
	}

	if _, err := run(t, "preset", "save", "copy", "--from", "moody", "--set", "flip=on"); err != nil {
		t.Fatalf("preset save --from: %v", err)
	}
	shown, _ = run(t, "preset", "show", "copy", "--toml")
	if s, _ := settings.Decode(strings.NewReader(shown)); !s.Flip || s.Hue != -40 {
		t.Errorf("copied preset = %s", s)
	}

	if _, err := run(t, "preset", "delete", "moody"); err != nil {
		t.Fatalf("preset delete: %v", err)
	}
	if _, err := run(t, "preset", "show", "moody"); err == nil {
		t.Error("show after delete succeeded")
	}
	if _, err := run(t, "preset", "save", "bad/name"); err == nil {
		t.Error("save accepted an invalid name")
	}
}

func TestConfigCommands(t *testing.T) {
	dir := isolate(t)
	captureOutput(t)
	path := filepath.Join(dir, "fg.toml")

	got, err := run(t, "--config", path, "config", "path")
	if err != nil {
		t.Fatalf("config path: %v", err)
	}
	if strings.TrimSpace(got) != path {
		t.Errorf("config path = %q, want %q", got, path)
	}

	if _, err := run(t, "--config", path, "config", "init"); err != nil {
		t.Fatalf("config init: %v", err)
	}
	if _, err := run(t, "--config", path, "config", "init"); err == nil {
		t.Error("second init without --force succeeded")
	}
	if _, err := run(t, "--config", path, "config", "init", "--force"); err != nil {
		t.Errorf("init --force: %v", err)
	}

	shown, err := run(t, "--config", path, "config", "show")
	if err != nil {
		t.Fatalf("config show: %v", err)
	}
	cfg, err := config.Decode(strings.NewReader(shown))
	if err != nil {
		t.Fatalf("decode shown config: %v", err)
	}
	if cfg.Render.Width != config.Default().Render.Width {
		t.Errorf("shown width = %d", cfg.Render.Width)
	}
}

func TestConfigFlagRejectsInvalidFile(t *testing.T) {
	dir := isolate(t)
	path := filepath.Join(dir, "bad.toml")
	if err := os.WriteFile(path, []byte("[cache]\nbackend = \"tape\"\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := run(t, "--config", path, "config", "show"); err == nil {
		t.Error("invalid config accepted")
	}
}

func TestCacheCommands(t *testing.T) {
	dir := isolate(t)
	out := captureOutput(t)

	got, err := run(t, "cache", "path")
	if err != nil {
		t.Fatalf("cache path: %v", err)
	}
	want := filepath.Join(dir, "cache", config.AppName)
	if strings.TrimSpace(got) != want {
		t.Errorf("cache path = %q, want %q", got, want)
	}

	in := filepath.Join(dir, "photo.png")
	writePNG(t, in, 20, 20)
	if _, err := run(t, "render", in, "-o", filepath.Join(dir, "a.svg")); err != nil {
		t.Fatalf("render: %v", err)
	}

	out.Reset()
	if _, err := run(t, "cache", "clear", "--expired"); err != nil {
		t.Fatalf("cache clear --expired: %v", err)
	}
	if !strings.Contains(out.String(), "No expired renders") {
		t.Errorf("clear --expired output = %q", out.String())
	}

	out.Reset()
	if _, err := run(t, "cache", "clear"); err != nil {
		t.Fatalf("cache clear: %v", err)
	}
	if !strings.Contains(out.String(), "Cleared 1") {
		t.Errorf("clear output = %q", out.String())
	}

	out.Reset()
	if _, err := run(t, "cache", "clear"); err != nil {
		t.Fatalf("second clear: %v", err)
	}
	if !strings.Contains(out.String(), "No cached renders") {
		t.Errorf("second clear output = %q", out.String())
	}
}

func TestNewRunnerScopesKeys(t *testing.T) {
	isolate(t)
	c := New(io.Discard, LogInfo)
	c.Config.Cache.Backend = config.BackendNone
	opts := cache.ArtifactKeyOpts{Settings: settings.Defaults(), Format: "svg"}

	r, err := c.newRunner(context.Background(), false)
	if err != nil {
		t.Fatal(err)
	}
	plain := r.Keyer.ArtifactKey("abc", opts)
	if strings.HasPrefix(plain, "staging:") {
		t.Errorf("unscoped key %q carries a prefix", plain)
	}

	c.Config.Cache.Prefix = "staging:"
	r, err = c.newRunner(context.Background(), false)
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := r.Keyer.(*cache.ScopedKeyer); !ok {
		t.Fatalf("keyer = %T, want *cache.ScopedKeyer", r.Keyer)
	}
	if got := r.Keyer.ArtifactKey("abc", opts); got != "staging:"+plain {
		t.Errorf("scoped key = %q, want %q", got, "staging:"+plain)
	}
}
