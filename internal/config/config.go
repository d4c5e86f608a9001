package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds the application settings, as opposed to the downloader's own
// settings file which internal/settings manages.
type Config struct {
	SettingsPath string        `yaml:"settings_path"`
	DownloadDir  string        `yaml:"download_dir"`
	Downloader   []string      `yaml:"downloader"`
	FFmpegPath   string        `yaml:"ffmpeg_path"`
	FFprobePath  string        `yaml:"ffprobe_path"`
	PollInterval time.Duration `yaml:"poll_interval"`
	KillGrace    time.Duration `yaml:"kill_grace"`
	BackupKeep   int           `yaml:"backup_keep"`
	Workers      int           `yaml:"workers"`
	MetricsAddr  string        `yaml:"metrics_addr"`
}

// Default returns the built-in configuration with SIESTA_* environment
// overrides applied.
func Default() Config {
	return Config{
		SettingsPath: envOr("SIESTA_SETTINGS_PATH", "~/.config/tidal_dl_ng/settings.json"),
		DownloadDir:  envOr("SIESTA_DOWNLOAD_DIR", filepath.Join(os.TempDir(), "siesta")),
		Downloader:   strings.Fields(envOr("SIESTA_DOWNLOADER", "tidal-dl-ng dl {url}")),
		FFmpegPath:   envOr("SIESTA_FFMPEG", ""),
		FFprobePath:  envOr("SIESTA_FFPROBE", ""),
		PollInterval: envDuration("SIESTA_POLL_INTERVAL", time.Second),
		KillGrace:    envDuration("SIESTA_KILL_GRACE", 10*time.Second),
		BackupKeep:   envInt("SIESTA_BACKUP_KEEP", 5),
		Workers:      envInt("SIESTA_WORKERS", 1),
		MetricsAddr:  envOr("SIESTA_METRICS_ADDR", ""),
	}
}

// Load reads path over the defaults. An empty path returns the defaults.
func Load(path string) (Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return cfg, fmt.Errorf("error reading config file: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("error parsing config file: %w", err)
		}
	}
	cfg.SettingsPath = ExpandHome(cfg.SettingsPath)
	cfg.DownloadDir = ExpandHome(cfg.DownloadDir)
	return cfg, cfg.Validate()
}

func (c Config) Validate() error {
	switch {
	case c.SettingsPath == "":
		return fmt.Errorf("settings_path must not be empty")
	case c.DownloadDir == "":
		return fmt.Errorf("download_dir must not be empty")
	case len(c.Downloader) == 0:
		return fmt.Errorf("downloader command must not be empty")
	case !strings.Contains(strings.Join(c.Downloader, " "), "{url}"):
		return fmt.Errorf("downloader command must contain {url}")
	case c.PollInterval <= 0:
		return fmt.Errorf("poll_interval must be positive")
	case c.Workers < 1:
		return fmt.Errorf("workers must be at least 1")
	}
	return nil
}

func ExpandHome(path string) string {
	if path != "~" && !strings.HasPrefix(path, "~/") {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	return filepath.Join(home, strings.TrimPrefix(path, "~"))
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func envInt(key string, def int) int {
	if n, err := strconv.Atoi(os.Getenv(key)); err == nil {
		return n
	}
	return def
}

func envDuration(key string, def time.Duration) time.Duration {
	if d, err := time.ParseDuration(os.Getenv(key)); err == nil {
		return d
	}
	return def
}
