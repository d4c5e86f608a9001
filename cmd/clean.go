package cmd

import (
	"fmt"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"github.com/tanq16/siesta/internal/output"
	"github.com/tanq16/siesta/internal/session"
)

func newConfigCleanupCmd() *cobra.Command {
	var keep int
	var dirs bool
	cmd := &cobra.Command{
		Use:   "cleanup [--keep N] [--sessions]",
		Short: "Prune old settings backups and leftover session directories",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if !cmd.Flags().Changed("keep") {
				keep = cfg.BackupKeep
			}
			removed := newStore().PruneBackups(keep)
			output.PrintSuccess(fmt.Sprintf("%s removed %d old backup(s), kept up to %d", output.StyleSymbols["pass"], removed, keep))
			if !dirs {
				return nil
			}
			n, err := session.CleanupStale(cfg.DownloadDir)
			output.PrintSuccess(fmt.Sprintf("%s removed %d leftover session dir(s) from %s", output.StyleSymbols["pass"], n, cfg.DownloadDir))
			if err != nil {
				log.Error().Str("op", "cmd/cleanup").Err(err).Msg("some session directories could not be removed")
				return err
			}
			return nil
		},
	}
	cmd.Flags().IntVarP(&keep, "keep", "k", 5, "Number of backups to keep")
	cmd.Flags().BoolVar(&dirs, "sessions", false, "Also remove leftover session directories under the download directory")
	return cmd
}
