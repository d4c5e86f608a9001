package cmd

import (
	"fmt"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"github.com/tanq16/siesta/internal/metrics"
	"github.com/tanq16/siesta/internal/scheduler"
)

func newBatchCmd() *cobra.Command {
	var workers int
	var metricsAddr string

	cmd := &cobra.Command{
		Use:   "batch [YAML_FILE] [--workers N]",
		Short: "Run download sessions for every entry of a YAML file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			reqs, err := scheduler.LoadBatch(args[0])
			if err != nil {
				return err
			}
			if !cmd.Flags().Changed("workers") {
				workers = cfg.Workers
			}
			if metricsAddr == "" {
				metricsAddr = cfg.MetricsAddr
			}
			ctx, stop := signalContext()
			defer stop()
			if metricsAddr != "" {
				go func() {
					if err := metrics.Serve(ctx, metricsAddr); err != nil {
						log.Error().Str("op", "cmd/batch").Err(err).Msg("metrics server failed")
					}
				}()
			}

			display := newDisplay()
			runner := newRunner(display)
			log.Debug().Str("op", "cmd/batch").Msgf("starting scheduler with %d sessions", len(reqs))
			outs := scheduler.Run(ctx, runner, reqs, scheduler.Options{Workers: workers, Display: display})
			failed := 0
			for _, out := range outs {
				if !out.Success {
					failed++
				}
			}
			if failed > 0 {
				return fmt.Errorf("%d of %d sessions did not complete", failed, len(outs))
			}
			return nil
		},
	}
	cmd.Flags().IntVarP(&workers, "workers", "w", 1, "Sessions queued in parallel (they still run one at a time against the settings file)")
	cmd.Flags().StringVar(&metricsAddr, "metrics-addr", "", "Expose Prometheus metrics on this address while the batch runs")
	return cmd
}
