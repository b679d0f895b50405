package cli

import (
	"github.com/spf13/cobra"

	"github.com/matzehuels/fractalglass/pkg/buildinfo"
	"github.com/matzehuels/fractalglass/pkg/config"
)

// RootCommand creates the root cobra command with all subcommands registered.
// The configuration file is loaded before any subcommand runs.
func (c *CLI) RootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:   appName,
		Short: "Fractal glass renders images through ribbed glass",
		Long: `Fractal glass slices an image into vertical strips, offsets, mirrors and
distorts each one, and renders the result as SVG, HTML, PNG, JSON or PDF.
Settings can be adjusted live in the terminal panel or the browser preview.`,
		Version:      buildinfo.Version,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if err := c.loadConfig(); err != nil {
				return err
			}
			cmd.SetContext(withLogger(cmd.Context(), c.Logger))
			return nil
		},
	}

	root.SetVersionTemplate(buildinfo.Template())
	root.PersistentFlags().StringVar(&c.configFlag, "config", "", "configuration file (default $"+config.EnvPath+" or XDG config dir)")

	root.AddCommand(c.renderCommand())
	root.AddCommand(c.tuiCommand())
	root.AddCommand(c.serveCommand())
	root.AddCommand(c.presetCommand())
	root.AddCommand(c.configCommand())
	root.AddCommand(c.cacheCommand())
	root.AddCommand(c.completionCommand())

	return root
}
