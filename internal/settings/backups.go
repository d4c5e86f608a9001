package settings

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"time"

	"github.com/rs/zerolog/log"
)

const backupStamp = "20060102-150405"

var backupPattern = regexp.MustCompile(`^settings\.backup\.(\d{8}-\d{6})\.json$`)

type Backup struct {
	Name      string
	Path      string
	CreatedAt time.Time
	ModTime   time.Time
}

func backupFileName(t time.Time) string {
	return "settings.backup." + t.Format(backupStamp) + ".json"
}

// Backup copies the current settings file into the backups directory.
func (s *Store) Backup() (Backup, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, err := s.backup()
	if errors.Is(err, fs.ErrNotExist) {
		return Backup{}, fmt.Errorf("no settings file to back up: %w", err)
	}
	return b, err
}

func (s *Store) backup() (Backup, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		return Backup{}, err
	}
	dir := s.BackupDir()
	if err := os.MkdirAll(dir, 0755); err != nil {
		return Backup{}, fmt.Errorf("error creating backup directory: %w", err)
	}
	// Names carry one-second resolution; step forward until free so an
	// earlier backup taken in the same second is never overwritten.
	ts := s.now()
	name := backupFileName(ts)
	for {
		if _, err := os.Stat(filepath.Join(dir, name)); errors.Is(err, fs.ErrNotExist) {
			break
		}
		ts = ts.Add(time.Second)
		name = backupFileName(ts)
	}
	path := filepath.Join(dir, name)
	if err := writeAtomic(path, data); err != nil {
		return Backup{}, err
	}
	log.Debug().Str("op", "settings/backup").Str("backup", name).Msg("settings backed up")
	return Backup{Name: name, Path: path, CreatedAt: ts, ModTime: ts}, nil
}

// Backups lists backups newest first. Ordering uses the timestamp in the
// file name, then modification time.
func (s *Store) Backups() ([]Backup, error) {
	entries, err := os.ReadDir(s.BackupDir())
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("error reading backup directory: %w", err)
	}
	var out []Backup
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		m := backupPattern.FindStringSubmatch(e.Name())
		if m == nil {
			continue
		}
		created, err := time.ParseInLocation(backupStamp, m[1], time.Local)
		if err != nil {
			continue
		}
		b := Backup{Name: e.Name(), Path: filepath.Join(s.BackupDir(), e.Name()), CreatedAt: created}
		if info, err := e.Info(); err == nil {
			b.ModTime = info.ModTime()
		}
		out = append(out, b)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		if !out[i].ModTime.Equal(out[j].ModTime) {
			return out[i].ModTime.After(out[j].ModTime)
		}
		return out[i].Name > out[j].Name
	})
	return out, nil
}

// PruneBackups keeps the newest keep backups and removes the rest. Failures
// are logged and skipped.
func (s *Store) PruneBackups(keep int) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	if keep < 0 {
		keep = 0
	}
	backups, err := s.Backups()
	if err != nil {
		log.Error().Str("op", "settings/prune").Err(err).Msg("could not list backups")
		return 0
	}
	removed := 0
	for _, b := range backups[min(keep, len(backups)):] {
		if err := os.Remove(b.Path); err != nil {
			log.Error().Str("op", "settings/prune").Str("backup", b.Name).Err(err).Msg("could not remove backup")
			continue
		}
		log.Info().Str("op", "settings/prune").Str("backup", b.Name).Msg("removed old backup")
		removed++
	}
	return removed
}

// Restore replaces the settings file with the named backup. The name must
// match the backup naming scheme and its content must be valid. The current
// file is backed up before being replaced.
func (s *Store) Restore(name string) error {
	if !backupPattern.MatchString(name) {
		return fmt.Errorf("%w: %q", ErrInvalidBackupName, name)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	data, err := os.ReadFile(filepath.Join(s.BackupDir(), name))
	if errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("%w: %s", ErrBackupNotFound, name)
	}
	if err != nil {
		return fmt.Errorf("error reading backup: %w", err)
	}
	r, err := decode(data)
	if err != nil {
		return fmt.Errorf("%w: backup %s is not a settings document: %v", ErrInvalidValue, name, err)
	}
	if v := Validate(r); len(v) > 0 {
		return &ValidationError{Violations: v}
	}
	if _, err := s.backup(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("error backing up settings: %w", err)
	}
	if err := writeAtomic(s.path, data); err != nil {
		return err
	}
	log.Info().Str("op", "settings/restore").Str("backup", name).Msg("settings restored from backup")
	return nil
}
