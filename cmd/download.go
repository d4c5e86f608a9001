package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"github.com/tanq16/siesta/internal/output"
	"github.com/tanq16/siesta/internal/scheduler"
	"github.com/tanq16/siesta/internal/session"
	"github.com/tanq16/siesta/internal/utils"
)

// parseOptions turns repeated key=value flags into session overrides.
func parseOptions(opts []string) (map[string]any, error) {
	out := make(map[string]any, len(opts))
	for _, o := range opts {
		k, v, ok := strings.Cut(o, "=")
		if !ok || strings.TrimSpace(k) == "" {
			return nil, fmt.Errorf("option %q is not in key=value form", o)
		}
		out[strings.TrimSpace(k)] = strings.TrimSpace(v)
	}
	return out, nil
}

// signalContext is cancelled on SIGINT or SIGTERM.
func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

func printOutcome(out session.Outcome) {
	if !out.Success {
		return
	}
	output.PrintHeader(fmt.Sprintf("%s %s", out.Kind, out.ContentID))
	for _, md := range out.Metadata {
		label := md.Title
		if md.Artist != "" {
			label = md.Artist + " - " + md.Title
		}
		fmt.Printf("  %s %s %s\n", output.StyleSymbols["bullet"], label, output.FDebug(md.Path))
	}
	output.PrintDetail(fmt.Sprintf("%d file(s), %s in %s, took %s", len(out.Files),
		utils.FormatBytes(utils.TotalSize(out.Files)), out.Dir, utils.FormatDuration(out.Duration)))
}

func newDownloadCmd() *cobra.Command {
	var user string
	var opts []string
	var keep bool

	cmd := &cobra.Command{
		Use:     "download [URL] [--user USER] [--opt KEY=VALUE]...",
		Short:   "Run one supervised download session",
		Aliases: []string{"dl"},
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			overrides, err := parseOptions(opts)
			if err != nil {
				return err
			}
			ctx, stop := signalContext()
			defer stop()

			display := newDisplay()
			runner := newRunner(display)
			req := session.Request{UserID: user, TaskID: uuid.NewString(), URL: args[0], Overrides: overrides}
			log.Debug().Str("op", "cmd/download").Msgf("starting session for %s", req.URL)
			outs := scheduler.Run(ctx, runner, []session.Request{req}, scheduler.Options{Workers: 1, Display: display})
			out := outs[0]
			if out.RestoreErr != nil {
				output.PrintWarning(fmt.Sprintf("settings could not be restored: %v", out.RestoreErr))
			}
			if !out.Success {
				return fmt.Errorf("download %s: %s", out.Status, out.Reason())
			}
			printOutcome(out)
			if !keep {
				return out.Cleanup()
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&user, "user", "u", "", "User the session directory belongs to")
	cmd.Flags().StringArrayVarP(&opts, "opt", "o", []string{}, "Per-session option such as quality=HI_RES_LOSSLESS; can be repeated")
	cmd.Flags().BoolVar(&keep, "keep", true, "Keep the downloaded files after the session")
	return cmd
}
