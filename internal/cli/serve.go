package cli

import (
	"github.com/spf13/cobra"

	"github.com/matzehuels/fractalglass/internal/server"
)

type serveOpts struct {
	addr      string
	noCache   bool
	noPresets bool
}

// serveCommand runs the browser preview server until interrupted.
func (c *CLI) serveCommand() *cobra.Command {
	var opts serveOpts

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the browser preview server",
		Long: `Serve hosts the interactive preview page. Upload an image, move the
sliders, and export the effect in any format. Stop with Ctrl-C.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			cfg := c.Config
			if opts.addr != "" {
				cfg.Server.Addr = opts.addr
			}

			runner, err := c.newRunner(ctx, opts.noCache)
			if err != nil {
				return err
			}
			defer runner.Close()

			srvOpts := []server.Option{
				server.WithLogger(c.Logger),
				server.WithRunner(runner),
			}
			if !opts.noPresets {
				store, err := c.openPresets(ctx)
				if err != nil {
					return err
				}
				defer store.Close()
				srvOpts = append(srvOpts, server.WithPresets(store))
			}

			printInfo("Preview at %s", StyleHighlight.Render("http://"+cfg.Server.Addr))
			return server.New(cfg, srvOpts...).ListenAndServe(ctx)
		},
	}

	cmd.Flags().StringVar(&opts.addr, "addr", "", "listen address (default from config, 127.0.0.1:8080)")
	cmd.Flags().BoolVar(&opts.noCache, "no-cache", false, "disable the export cache")
	cmd.Flags().BoolVar(&opts.noPresets, "no-presets", false, "disable the preset API")

	return cmd
}
