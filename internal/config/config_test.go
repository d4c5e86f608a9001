package config

import (
	"os"
	"path/filepath"
	"reflect"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.PollInterval != time.Second {
		t.Fatalf("poll_interval: want 1s, got %s", cfg.PollInterval)
	}
	if want := []string{"tidal-dl-ng", "dl", "{url}"}; !reflect.DeepEqual(cfg.Downloader, want) {
		t.Fatalf("downloader: want %v, got %v", want, cfg.Downloader)
	}
	if cfg.BackupKeep != 5 {
		t.Fatalf("backup_keep: want 5, got %d", cfg.BackupKeep)
	}
}

func TestLoadYAMLOverridesEnv(t *testing.T) {
	t.Setenv("SIESTA_WORKERS", "4")
	t.Setenv("SIESTA_DOWNLOAD_DIR", "/env/downloads")
	path := filepath.Join(t.TempDir(), "siesta.yaml")
	doc := `
settings_path: /data/settings.json
downloader: [python, cli.py, dl, "{url}"]
poll_interval: 250ms
kill_grace: 3s
`
	if err := os.WriteFile(path, []byte(doc), 0644); err != nil {
		t.Fatalf("write: %v", err)
	}
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.SettingsPath != "/data/settings.json" || cfg.DownloadDir != "/env/downloads" || cfg.Workers != 4 {
		t.Fatalf("unexpected config %+v", cfg)
	}
	if cfg.PollInterval != 250*time.Millisecond || cfg.KillGrace != 3*time.Second {
		t.Fatalf("durations not parsed: %s %s", cfg.PollInterval, cfg.KillGrace)
	}
	if len(cfg.Downloader) != 4 || cfg.Downloader[3] != "{url}" {
		t.Fatalf("unexpected downloader %v", cfg.Downloader)
	}
}

func TestLoadRejectsInvalid(t *testing.T) {
	tests := []struct {
		name string
		doc  string
	}{
		{"missing url placeholder", "downloader: [tidal-dl-ng, dl]"},
		{"zero workers", "workers: 0"},
		{"bad yaml", "workers: [1"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "siesta.yaml")
			if err := os.WriteFile(path, []byte(tt.doc), 0644); err != nil {
				t.Fatalf("write: %v", err)
			}
			if _, err := Load(path); err == nil {
				t.Fatalf("expected error")
			}
		})
	}
}

func TestExpandHome(t *testing.T) {
	home, err := os.UserHomeDir()
	if err != nil {
		t.Skip("no home directory")
	}
	if got := ExpandHome("~/x/y"); got != filepath.Join(home, "x/y") {
		t.Fatalf("want %s, got %s", filepath.Join(home, "x/y"), got)
	}
	if got := ExpandHome("/abs"); got != "/abs" {
		t.Fatalf("want /abs, got %s", got)
	}
}
