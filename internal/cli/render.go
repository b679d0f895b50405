package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/spf13/cobra"

	"github.com/matzehuels/fractalglass/pkg/pipeline"
	"github.com/matzehuels/fractalglass/pkg/settings"
)

// renderOpts holds the command-line flags for the render command.
type renderOpts struct {
	output       string   // output file, base path for several formats, "-" for stdout
	formats      string   // comma-separated formats
	set          []string // key=value settings overrides
	preset       string   // named preset to start from
	settingsFile string   // TOML settings file to start from
	width        int
	height       int
	seed         int64
	background   string
	page         bool
	title        string
	noCache      bool
	refresh      bool
}

// renderCommand creates the render command.
//
// Settings are resolved in order: the [defaults] section of the config,
// then --preset, then --settings, then each --set. Later sources win.
func (c *CLI) renderCommand() *cobra.Command {
	var opts renderOpts

	cmd := &cobra.Command{
		Use:   "render IMAGE",
		Short: "Apply the fractal glass effect to an image",
		Long: `Render slices IMAGE into vertical strips and writes the effect in one or
more formats: svg (default), html, png, json and pdf.

Examples:
  fractalglass render photo.jpg
  fractalglass render photo.jpg -f svg,png --set steps=48 --set hue=-40
  fractalglass render photo.jpg --preset moody -o out/moody
  fractalglass render photo.jpg -f html --page -o - > preview.html`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.runRender(cmd.Context(), args[0], cmd.OutOrStdout(), &opts)
		},
	}

	f := cmd.Flags()
	f.StringVarP(&opts.output, "output", "o", "", "output file, or base path for several formats (- for stdout)")
	f.StringVarP(&opts.formats, "format", "f", "", "output format(s): "+strings.Join(pipeline.Formats, ", ")+" (comma-separated)")
	f.StringArrayVar(&opts.set, "set", nil, "override a setting, e.g. --set steps=48 (repeatable)")
	f.StringVar(&opts.preset, "preset", "", "start from a saved preset")
	f.StringVar(&opts.settingsFile, "settings", "", "start from a TOML settings file")
	f.IntVar(&opts.width, "width", 0, "frame width in pixels (default from config)")
	f.IntVar(&opts.height, "height", 0, "frame height in pixels (default keeps the aspect ratio)")
	f.Int64Var(&opts.seed, "seed", 0, "noise seed")
	f.StringVar(&opts.background, "background", "", "background color, e.g. #101010 (default transparent)")
	f.BoolVar(&opts.page, "page", false, "html: write a full document instead of a fragment")
	f.StringVar(&opts.title, "title", "", "html: document title")
	f.BoolVar(&opts.noCache, "no-cache", false, "bypass the render cache")
	f.BoolVar(&opts.refresh, "refresh", false, "re-render and overwrite cached outputs")

	return cmd
}

func (c *CLI) runRender(ctx context.Context, input string, stdout io.Writer, opts *renderOpts) error {
	logger := loggerFromContext(ctx)

	po, err := c.renderOptions(ctx, input, opts)
	if err != nil {
		return err
	}
	if opts.output == "-" && len(po.Formats) != 1 {
		return fmt.Errorf("--output - needs exactly one format, got %d", len(po.Formats))
	}
	logger.Debug("settings", "values", po.Settings.String())

	runner, err := c.newRunner(ctx, opts.noCache)
	if err != nil {
		return err
	}
	defer runner.Close()

	prog := newProgress(logger)
	spin := newSpinnerWithContext(ctx, "Rendering "+filepath.Base(input)+"...")
	spin.Start()
	result, err := runner.Execute(ctx, po)
	spin.Stop()
	if err != nil {
		if spin.Cancelled() {
			return ctx.Err()
		}
		return err
	}
	prog.done("Rendered "+filepath.Base(input), "strips", result.Stats.Strips)

	if opts.output == "-" {
		_, err := stdout.Write(result.Artifacts[po.Formats[0]])
		return err
	}

	paths := outputPaths(opts.output, input, po.Formats)
	printSuccess("Rendered %s", filepath.Base(input))
	for _, format := range po.Formats {
		if err := writeFile(paths[format], result.Artifacts[format]); err != nil {
			return err
		}
		printFile(paths[format])
	}
	printStats(result.Stats.Strips, len(po.Formats), result.Stats.Bytes, result.CacheInfo.RenderHit)
	return nil
}

// renderOptions builds pipeline options from the config and the flags.
func (c *CLI) renderOptions(ctx context.Context, input string, opts *renderOpts) (pipeline.Options, error) {
	var po pipeline.Options
	c.renderDefaults(&po)
	po.Input = pipeline.Input{Path: input}
	po.Logger = loggerFromContext(ctx)

	s, err := c.resolveSettings(ctx, opts)
	if err != nil {
		return po, err
	}
	po.Settings = s

	if opts.formats != "" {
		formats, err := pipeline.ParseFormats(opts.formats)
		if err != nil {
			return po, err
		}
		po.Formats = formats
	} else if hasFormatExt(opts.output) || len(po.Formats) == 0 {
		po.Formats = []string{formatFromPath(opts.output)}
	}
	if opts.width > 0 {
		po.Width = opts.width
	}
	if opts.height > 0 {
		po.Height = opts.height
	}
	if opts.seed != 0 {
		po.Seed = opts.seed
	}
	if opts.background != "" {
		if _, err := pipeline.ParseColor(opts.background); err != nil {
			return po, err
		}
		po.Background = opts.background
	}
	po.Page = opts.page
	po.Title = opts.title
	po.Refresh = opts.refresh
	return po, nil
}

// resolveSettings layers the settings sources; see renderCommand.
func (c *CLI) resolveSettings(ctx context.Context, opts *renderOpts) (settings.Settings, error) {
	s := c.Config.Defaults.Clamp()
	if opts.preset != "" {
		store, err := c.openPresets(ctx)
		if err != nil {
			return s, err
		}
		defer store.Close()
		p, err := store.Get(ctx, opts.preset)
		if err != nil {
			return s, err
		}
		s = p.Settings
	}
	if opts.settingsFile != "" {
		fs, err := settings.Load(opts.settingsFile)
		if err != nil {
			return s, err
		}
		s = fs
	}
	if err := parseAssignments(&s, opts.set); err != nil {
		return s, err
	}
	return s, nil
}

// formatFromPath guesses the format from an output extension, falling back
// to SVG.
func formatFromPath(path string) string {
	if hasFormatExt(path) {
		return formatExt(path)
	}
	return pipeline.FormatSVG
}

func hasFormatExt(path string) bool {
	return slices.Contains(pipeline.Formats, formatExt(path))
}

func formatExt(path string) string {
	return strings.TrimPrefix(strings.ToLower(filepath.Ext(path)), ".")
}

// outputPaths maps each format to a file. A single format writes to output
// as given; several formats share output (minus any format extension) as a
// base path. An empty output derives the base from the input file name.
func outputPaths(output, input string, formats []string) map[string]string {
	paths := make(map[string]string, len(formats))
	if len(formats) == 1 && output != "" {
		paths[formats[0]] = output
		return paths
	}
	base := basePath(output, input)
	for _, f := range formats {
		paths[f] = base + "." + f
	}
	return paths
}

// basePath strips a known format extension from output, or derives the
// base from input when output is empty.
func basePath(output, input string) string {
	if output == "" {
		return strings.TrimSuffix(input, filepath.Ext(input)) + "-glass"
	}
	if hasFormatExt(output) {
		return strings.TrimSuffix(output, filepath.Ext(output))
	}
	return output
}

// writeFile writes data to path, creating parent directories.
func writeFile(path string, data []byte) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	return os.WriteFile(path, data, 0o644)
}
