package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/matzehuels/fractalglass/pkg/preset"
	"github.com/matzehuels/fractalglass/pkg/settings"
)

// presetCommand manages named settings in the configured preset store.
func (c *CLI) presetCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "preset",
		Short: "Manage saved settings presets",
	}

	cmd.AddCommand(c.presetListCommand())
	cmd.AddCommand(c.presetSaveCommand())
	cmd.AddCommand(c.presetShowCommand())
	cmd.AddCommand(c.presetDeleteCommand())

	return cmd
}

// withPresets opens the store, runs fn and closes the store.
func (c *CLI) withPresets(cmd *cobra.Command, fn func(preset.Store) error) error {
	store, err := c.openPresets(cmd.Context())
	if err != nil {
		return err
	}
	defer store.Close()
	return fn(store)
}

func (c *CLI) presetListCommand() *cobra.Command {
	return &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "List presets",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.withPresets(cmd, func(store preset.Store) error {
				all, err := store.List(cmd.Context())
				if err != nil {
					return err
				}
				if len(all) == 0 {
					printInfo("No presets saved yet")
					printDetail("Save one with: %s preset save NAME --set key=value", appName)
					return nil
				}
				fmt.Fprintln(output, presetTable(all))
				return nil
			})
		},
	}
}

func (c *CLI) presetSaveCommand() *cobra.Command {
	var (
		set  []string
		from string
		file string
	)
	cmd := &cobra.Command{
		Use:   "save NAME",
		Short: "Save settings under a name",
		Long: `Save stores settings under NAME, replacing an existing preset of the same
name. The settings start from the configured defaults, or from --from (another
preset) or --settings (a TOML file), and each --set is applied on top.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			return c.withPresets(cmd, func(store preset.Store) error {
				s := c.Config.Defaults.Clamp()
				if from != "" {
					p, err := store.Get(ctx, from)
					if err != nil {
						return err
					}
					s = p.Settings
				}
				if file != "" {
					fs, err := settings.Load(file)
					if err != nil {
						return err
					}
					s = fs
				}
				if err := parseAssignments(&s, set); err != nil {
					return err
				}
				p, err := store.Save(ctx, args[0], s)
				if err != nil {
					return err
				}
				loggerFromContext(ctx).Debug("saved preset", "name", p.Name, "id", p.ID)
				printSuccess("Saved preset %s", StyleHighlight.Render(p.Name))
				printDetail("%s", settingsDiff(settings.Defaults(), p.Settings))
				return nil
			})
		},
	}
	cmd.Flags().StringArrayVar(&set, "set", nil, "set a value, e.g. --set hue=90 (repeatable)")
	cmd.Flags().StringVar(&from, "from", "", "start from another preset")
	cmd.Flags().StringVar(&file, "settings", "", "start from a TOML settings file")
	return cmd
}

func (c *CLI) presetShowCommand() *cobra.Command {
	var asTOML bool
	cmd := &cobra.Command{
		Use:   "show NAME",
		Short: "Show a preset's settings",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.withPresets(cmd, func(store preset.Store) error {
				p, err := store.Get(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				if asTOML {
					return settings.Encode(cmd.OutOrStdout(), p.Settings)
				}
				fmt.Fprintln(output, StyleTitle.Render(p.Name))
				printKeyValue("id", p.ID)
				printKeyValue("updated", p.UpdatedAt.Local().Format("2006-01-02 15:04"))
				fmt.Fprintln(output, settingsTable(p.Settings))
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&asTOML, "toml", false, "print the settings as TOML (usable with --settings)")
	return cmd
}

func (c *CLI) presetDeleteCommand() *cobra.Command {
	return &cobra.Command{
		Use:     "delete NAME",
		Aliases: []string{"rm"},
		Short:   "Delete a preset",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.withPresets(cmd, func(store preset.Store) error {
				if err := store.Delete(cmd.Context(), args[0]); err != nil {
					return err
				}
				printSuccess("Deleted preset %s", args[0])
				return nil
			})
		},
	}
}
