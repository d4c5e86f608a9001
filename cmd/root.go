package cmd

import (
	"fmt"
	"os"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"github.com/tanq16/siesta/internal/classify"
	"github.com/tanq16/siesta/internal/config"
	"github.com/tanq16/siesta/internal/output"
	"github.com/tanq16/siesta/internal/progress"
	"github.com/tanq16/siesta/internal/session"
	"github.com/tanq16/siesta/internal/settings"
	"github.com/tanq16/siesta/internal/supervisor"
	"github.com/tanq16/siesta/internal/utils"
)

var (
	debug        bool
	plain        bool
	configFile   string
	settingsPath string
	cfg          config.Config
)

var SiestaVersion = "dev"

var rootCmd = &cobra.Command{
	Use:           "siesta",
	Short:         "Siesta supervises tidal-dl-ng downloads and manages its settings",
	Version:       SiestaVersion,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		utils.InitLogger(debug)
		var err error
		cfg, err = config.Load(configFile)
		if err != nil {
			return err
		}
		if settingsPath != "" {
			cfg.SettingsPath = config.ExpandHome(settingsPath)
		}
		logger := utils.GetLogger("cli")
		logger.Debug().Str("op", "cmd/root").Str("settings", cfg.SettingsPath).Str("downloads", cfg.DownloadDir).Msg("configuration loaded")
		return nil
	},
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "Enable debug logging")
	rootCmd.PersistentFlags().BoolVar(&plain, "plain", false, "Log progress lines instead of redrawing the terminal")
	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "", "Path to YAML config file")
	rootCmd.PersistentFlags().StringVarP(&settingsPath, "settings", "s", "", "Path to the downloader settings.json (overrides config)")

	rootCmd.AddCommand(newDownloadCmd())
	rootCmd.AddCommand(newBatchCmd())
	rootCmd.AddCommand(newStatusCmd())
	rootCmd.AddCommand(newConfigCmd())
}

func newDisplay() *output.Manager {
	display := output.NewManager()
	if plain {
		display.SetPlain(true)
	}
	return display
}

func newStore() *settings.Store {
	return settings.NewStore(cfg.SettingsPath)
}

func newRunner(reporter progress.Reporter) *session.Runner {
	ffprobe, err := utils.FindBinary("ffprobe", cfg.FFprobePath)
	if err != nil {
		log.Warn().Str("op", "cmd/runner").Err(err).Msg("video metadata will be unavailable")
	}
	ffmpeg := cfg.FFmpegPath
	if ffmpeg == "" {
		if found, err := utils.FindBinary("ffmpeg", ""); err == nil {
			ffmpeg = found
		}
	}
	return &session.Runner{
		Store:      newStore(),
		Supervisor: &supervisor.Supervisor{PollInterval: cfg.PollInterval, KillGrace: cfg.KillGrace},
		Classifier: &classify.Classifier{
			Audio:    classify.TagExtractor{FFprobe: ffprobe},
			Video:    classify.ProbeExtractor{Binary: ffprobe},
			Provider: "Tidal NG",
		},
		Reporter:   reporter,
		BaseDir:    cfg.DownloadDir,
		FFmpegPath: ffmpeg,
		Command:    session.CommandTemplate(cfg.Downloader),
	}
}
