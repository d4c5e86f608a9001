package settings

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/rs/zerolog/log"
	"github.com/tanq16/siesta/internal/metrics"
)

// Snapshot captures the settings file exactly as found so it can be put
// back byte for byte.
type Snapshot struct {
	Exists bool
	Raw    []byte
	Mode   fs.FileMode
	Record Record
	Source Source
}

func (s *Store) Snapshot() (Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	data, err := os.ReadFile(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		log.Info().Str("op", "settings/snapshot").Str("path", s.path).Msg("no settings file, snapshot holds defaults")
		return Snapshot{Record: Defaults(), Source: SourceMissing}, nil
	}
	if err != nil {
		return Snapshot{}, fmt.Errorf("error reading settings: %w", err)
	}
	snap := Snapshot{Exists: true, Raw: data, Mode: 0644, Source: SourceFile}
	if info, err := os.Stat(s.path); err == nil {
		snap.Mode = info.Mode().Perm()
	}
	snap.Record, err = decode(data)
	if err != nil {
		log.Warn().Str("op", "settings/snapshot").Err(err).Msg("settings file is corrupt, snapshot holds defaults")
		snap.Record = Defaults()
		snap.Source = SourceCorrupt
	}
	return snap, nil
}

// WriteOverlay puts a transient record in place without creating a backup.
func (s *Store) WriteOverlay(r Record) error {
	if v := Validate(r); len(v) > 0 {
		metrics.SettingsWrites.WithLabelValues("overlay", "invalid").Inc()
		return &ValidationError{Violations: v}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.write(r); err != nil {
		metrics.SettingsWrites.WithLabelValues("overlay", "error").Inc()
		return err
	}
	metrics.SettingsWrites.WithLabelValues("overlay", "ok").Inc()
	return nil
}

// RestoreSnapshot returns the settings file to the captured state. A file
// that did not exist at snapshot time is removed.
func (s *Store) RestoreSnapshot(snap Snapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	var err error
	if snap.Exists {
		err = writeAtomicMode(s.path, snap.Raw, snap.Mode)
	} else if rmErr := os.Remove(s.path); rmErr != nil && !errors.Is(rmErr, fs.ErrNotExist) {
		err = fmt.Errorf("error removing overlay settings: %w", rmErr)
	}
	if err != nil {
		metrics.SettingsWrites.WithLabelValues("restore", "error").Inc()
		return err
	}
	metrics.SettingsWrites.WithLabelValues("restore", "ok").Inc()
	return nil
}
