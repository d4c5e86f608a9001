package cmd

import (
	"encoding/json"
	"fmt"
	"sort"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"github.com/tanq16/siesta/internal/output"
	"github.com/tanq16/siesta/internal/settings"
	"gopkg.in/yaml.v3"
)

func newConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Inspect and edit the downloader settings file",
	}
	cmd.AddCommand(
		newConfigGetCmd(),
		newConfigSetCmd(),
		newConfigToggleCmd(),
		newConfigShowCmd(),
		newConfigPresetsCmd(),
		newConfigPresetCmd(),
		newConfigResetCmd(),
		newConfigSummaryCmd(),
		newConfigValidateCmd(),
		newConfigBackupCmd(),
		newConfigRestoreCmd(),
		newConfigCleanupCmd(),
	)
	return cmd
}

func newConfigGetCmd() *cobra.Command {
	return &cobra.Command{
		Use:               "get [KEY]",
		ValidArgsFunction: completeKeys,
		Short:             "Print the current value of one setting",
		Args:              cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			v, err := newStore().Get(args[0])
			if err != nil {
				return err
			}
			fmt.Println(v)
			return nil
		},
	}
}

func newConfigSetCmd() *cobra.Command {
	return &cobra.Command{
		Use:               "set [KEY] [VALUE]",
		ValidArgsFunction: completeKeys,
		Short:             "Change one setting, keeping a backup of the previous file",
		Args:              cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := newStore().Set(args[0], args[1]); err != nil {
				return err
			}
			output.PrintSuccess(fmt.Sprintf("%s %s set to %s", output.StyleSymbols["pass"], args[0], args[1]))
			return nil
		},
	}
}

func newConfigToggleCmd() *cobra.Command {
	return &cobra.Command{
		Use:               "toggle [KEY]",
		ValidArgsFunction: completeKeys,
		Short:             "Flip a boolean setting",
		Args:              cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			v, err := newStore().Toggle(args[0])
			if err != nil {
				return err
			}
			output.PrintSuccess(fmt.Sprintf("%s %s is now %t", output.StyleSymbols["pass"], args[0], v))
			return nil
		},
	}
}

func newConfigShowCmd() *cobra.Command {
	var asYAML bool
	cmd := &cobra.Command{
		Use:   "show [KEY]...",
		Short: "Print settings as JSON (or YAML)",
		ValidArgsFunction: func(cmd *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
			return completeKeys(cmd, nil, toComplete)
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			values, err := newStore().Show(args...)
			if err != nil {
				return err
			}
			var data []byte
			if asYAML {
				data, err = yaml.Marshal(values)
			} else {
				data, err = json.MarshalIndent(values, "", "    ")
			}
			if err != nil {
				return fmt.Errorf("error encoding settings: %w", err)
			}
			fmt.Println(string(data))
			return nil
		},
	}
	cmd.Flags().BoolVar(&asYAML, "yaml", false, "Print YAML instead of JSON")
	return cmd
}

func newConfigPresetsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "presets",
		Short: "List the built-in presets",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Print(output.RenderPresets(settings.Presets))
		},
	}
}

func newConfigPresetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "preset [NAME]",
		Short: "Replace the settings file with a preset",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := newStore().ApplyPreset(args[0]); err != nil {
				return err
			}
			output.PrintSuccess(fmt.Sprintf("%s preset %s applied", output.StyleSymbols["pass"], args[0]))
			return nil
		},
	}
}

func newConfigResetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "reset",
		Short: "Restore the default settings",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := newStore().Reset(); err != nil {
				return err
			}
			output.PrintSuccess(output.StyleSymbols["pass"] + " settings reset to defaults")
			return nil
		},
	}
}

func newConfigSummaryCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "summary",
		Short: "Show the settings grouped by section",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Print(output.RenderSummary(newStore().Summary()))
		},
	}
}

func newConfigValidateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "validate",
		Short: "Check the settings file against the allowed values",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			violations, src := newStore().ValidateCurrent()
			if src != settings.SourceFile {
				output.PrintWarning(fmt.Sprintf("%s settings file is %s, defaults were checked", output.StyleSymbols["warning"], src))
			}
			fmt.Println(output.RenderViolations(violations))
			if len(violations) > 0 {
				return fmt.Errorf("settings file has %d problem(s)", len(violations))
			}
			return nil
		},
	}
}

func newConfigBackupCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "backup",
		Short: "Copy the settings file into the backups directory",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			b, err := newStore().Backup()
			if err != nil {
				return err
			}
			log.Debug().Str("op", "cmd/config").Str("backup", b.Name).Msg("manual backup created")
			output.PrintSuccess(fmt.Sprintf("%s backup written to %s", output.StyleSymbols["pass"], b.Path))
			return nil
		},
	}
}

func newConfigRestoreCmd() *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "restore [BACKUP_NAME]",
		Short: "Restore a backup, or list recent backups when no name is given",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store := newStore()
			if len(args) == 0 {
				backups, err := store.Backups()
				if err != nil {
					return err
				}
				if limit > 0 && len(backups) > limit {
					backups = backups[:limit]
				}
				fmt.Print(output.RenderBackups(backups))
				return nil
			}
			if err := store.Restore(args[0]); err != nil {
				return err
			}
			output.PrintSuccess(fmt.Sprintf("%s restored %s", output.StyleSymbols["pass"], args[0]))
			return nil
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 5, "Number of backups to list")
	return cmd
}

// completeKeys offers setting keys for the first positional argument.
func completeKeys(cmd *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
	if len(args) > 0 {
		return nil, cobra.ShellCompDirectiveNoFileComp
	}
	keys := make([]string, 0, len(settings.Fields))
	for _, f := range settings.Fields {
		keys = append(keys, f.Key)
	}
	sort.Strings(keys)
	return keys, cobra.ShellCompDirectiveNoFileComp
}
