package cmd

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"
	"github.com/tanq16/siesta/internal/output"
	"github.com/tanq16/siesta/internal/session"
	"github.com/tanq16/siesta/internal/settings"
	"github.com/tanq16/siesta/internal/utils"
)

type check struct {
	name   string
	ok     bool
	detail string
}

func binaryCheck(name, explicit string) check {
	path, err := utils.FindBinary(name, explicit)
	if err != nil {
		return check{name: name, detail: err.Error()}
	}
	return check{name: name, ok: true, detail: path}
}

func collectChecks() []check {
	var checks []check
	if len(cfg.Downloader) > 0 {
		checks = append(checks, binaryCheck(cfg.Downloader[0], ""))
	}
	checks = append(checks, binaryCheck("ffmpeg", cfg.FFmpegPath), binaryCheck("ffprobe", cfg.FFprobePath))

	store := newStore()
	violations, src := store.ValidateCurrent()
	checks = append(checks, check{name: "settings file", ok: src == settings.SourceFile, detail: fmt.Sprintf("%s (%s)", store.Path(), src)})
	if len(violations) > 0 {
		checks = append(checks, check{name: "settings values", detail: fmt.Sprintf("%d problem(s), run config validate", len(violations))})
		for _, v := range violations[:min(3, len(violations))] {
			checks = append(checks, check{name: "  " + v.Field, detail: v.Reason})
		}
	} else {
		checks = append(checks, check{name: "settings values", ok: true, detail: "valid"})
	}
	backups, err := store.Backups()
	if err != nil {
		checks = append(checks, check{name: "backups", detail: err.Error()})
	} else {
		checks = append(checks, check{name: "backups", ok: true, detail: fmt.Sprintf("%d in %s", len(backups), store.BackupDir())})
	}
	stale, _ := filepath.Glob(filepath.Join(cfg.DownloadDir, "*", session.DirPrefix+"*"))
	checks = append(checks, check{name: "session dirs", ok: len(stale) == 0, detail: fmt.Sprintf("%d under %s", len(stale), cfg.DownloadDir)})
	return checks
}

func newStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Report the tools, settings file and leftovers siesta depends on",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			output.PrintHeader("Siesta status")
			for _, c := range collectChecks() {
				if c.ok {
					output.PrintSuccess(fmt.Sprintf("%s %-16s %s", output.StyleSymbols["pass"], c.name, c.detail))
				} else {
					output.PrintWarning(fmt.Sprintf("%s %-16s %s", output.StyleSymbols["warning"], c.name, c.detail))
				}
			}
		},
	}
}
