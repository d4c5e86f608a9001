package settings

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/tanq16/siesta/internal/metrics"
)

// Source tells where a loaded record came from.
type Source int

const (
	SourceFile Source = iota
	SourceMissing
	SourceCorrupt
)

func (s Source) String() string {
	switch s {
	case SourceFile:
		return "file"
	case SourceMissing:
		return "missing"
	case SourceCorrupt:
		return "corrupt"
	}
	return "unknown"
}

// Store owns one settings file and its backups directory. All file
// operations are serialised by mu.
type Store struct {
	path string
	mu   sync.Mutex
	now  func() time.Time
}

func NewStore(path string) *Store {
	return &Store{path: path, now: time.Now}
}

func (s *Store) Path() string {
	return s.path
}

func (s *Store) BackupDir() string {
	return filepath.Join(filepath.Dir(s.path), "backups")
}

// Load never fails: a missing or unreadable file yields the defaults.
func (s *Store) Load() Record {
	r, _ := s.LoadWithSource()
	return r
}

func (s *Store) LoadWithSource() (Record, Source) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.load()
}

func (s *Store) load() (Record, Source) {
	data, err := os.ReadFile(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		log.Info().Str("op", "settings/load").Str("path", s.path).Msg("no settings file found, using defaults")
		return Defaults(), SourceMissing
	}
	if err != nil {
		log.Warn().Str("op", "settings/load").Str("path", s.path).Err(err).Msg("could not read settings, using defaults")
		return Defaults(), SourceCorrupt
	}
	r, err := decode(data)
	if err != nil {
		log.Warn().Str("op", "settings/load").Str("path", s.path).Err(err).Msg("could not parse settings, using defaults")
		return Defaults(), SourceCorrupt
	}
	if v := Validate(r); len(v) > 0 {
		log.Warn().Str("op", "settings/load").Int("violations", len(v)).Msgf("loaded settings have violations: %v", v)
	}
	return r, SourceFile
}

// decode overlays the document's known keys on the defaults. A value of the
// wrong type keeps the default for that key.
func decode(data []byte) (Record, error) {
	doc, err := decodeDocument(data)
	if err != nil {
		return Record{}, err
	}
	r := Defaults()
	for _, f := range Fields {
		v, ok := doc[f.Key]
		if !ok {
			continue
		}
		if err := r.Set(f.Key, v); err != nil {
			log.Warn().Str("op", "settings/load").Str("key", f.Key).Err(err).Msg("keeping default")
		}
	}
	return r, nil
}

func decodeDocument(data []byte) (map[string]any, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var doc map[string]any
	if err := dec.Decode(&doc); err != nil {
		return nil, err
	}
	if doc == nil {
		doc = map[string]any{}
	}
	return doc, nil
}

// Save persists r if it is valid. The current file is backed up first and
// the new content is renamed into place. Keys in the existing document that
// Record does not model are carried over.
func (s *Store) Save(r Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.save(r)
}

func (s *Store) save(r Record) error {
	if v := Validate(r); len(v) > 0 {
		metrics.SettingsWrites.WithLabelValues("save", "invalid").Inc()
		log.Error().Str("op", "settings/save").Msgf("refusing to save invalid settings: %v", v)
		return &ValidationError{Violations: v}
	}
	if _, err := s.backup(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		metrics.SettingsWrites.WithLabelValues("save", "error").Inc()
		return fmt.Errorf("error backing up settings: %w", err)
	}
	if err := s.write(r); err != nil {
		metrics.SettingsWrites.WithLabelValues("save", "error").Inc()
		return err
	}
	metrics.SettingsWrites.WithLabelValues("save", "ok").Inc()
	log.Debug().Str("op", "settings/save").Str("path", s.path).Msg("settings saved")
	return nil
}

func (s *Store) write(r Record) error {
	doc := map[string]any{}
	if data, err := os.ReadFile(s.path); err == nil {
		if existing, err := decodeDocument(data); err == nil {
			doc = existing
		}
	}
	for k, v := range r.ToMap() {
		doc[k] = v
	}
	data, err := json.MarshalIndent(doc, "", "    ")
	if err != nil {
		return fmt.Errorf("error encoding settings: %v", err)
	}
	return writeAtomic(s.path, append(data, '\n'))
}

// writeAtomic replaces path through a sibling temp file. An existing file
// keeps its permission bits; a new one gets 0644.
func writeAtomic(path string, data []byte) error {
	return writeAtomicMode(path, data, 0)
}

// writeAtomicMode is writeAtomic with an explicit mode. Zero means keep the
// existing file's mode.
func writeAtomicMode(path string, data []byte, mode fs.FileMode) error {
	if mode == 0 {
		mode = 0644
		if info, err := os.Stat(path); err == nil {
			mode = info.Mode().Perm()
		}
	}
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("error creating directory: %w", err)
	}
	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("error creating temp file: %w", err)
	}
	tmpPath := tmp.Name()
	cleanup := func() { os.Remove(tmpPath) }
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		cleanup()
		return fmt.Errorf("error writing temp file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		cleanup()
		return fmt.Errorf("error syncing temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		cleanup()
		return fmt.Errorf("error closing temp file: %w", err)
	}
	if err := os.Chmod(tmpPath, mode); err != nil {
		cleanup()
		return fmt.Errorf("error setting permissions: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		cleanup()
		return fmt.Errorf("error replacing %s: %w", filepath.Base(path), err)
	}
	return nil
}

func (s *Store) ApplyPreset(name string) error {
	p, err := FindPreset(name)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.save(p.Record)
}

func (s *Store) Reset() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.save(Defaults())
}

func (s *Store) Get(key string) (any, error) {
	if _, ok := Lookup(key); !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownKey, key)
	}
	return s.Load().Get(key)
}

// SetField updates a single key of the current settings and saves the result.
func (s *Store) SetField(key string, value any) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, _ := s.load()
	if err := r.Set(key, value); err != nil {
		return err
	}
	return s.save(r)
}

// Set parses text according to the key's kind, then behaves like SetField.
func (s *Store) Set(key, text string) error {
	v, err := Parse(key, text)
	if err != nil {
		return err
	}
	return s.SetField(key, v)
}

// Toggle flips a boolean key and returns its new value.
func (s *Store) Toggle(key string) (bool, error) {
	f, ok := Lookup(key)
	if !ok {
		return false, fmt.Errorf("%w: %s", ErrUnknownKey, key)
	}
	if f.Kind != KindBool {
		return false, fmt.Errorf("%w: %s is %s", ErrNotBoolean, key, f.Kind)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	r, _ := s.load()
	cur, _ := r.Get(key)
	next := !cur.(bool)
	if err := r.Set(key, next); err != nil {
		return false, err
	}
	if err := s.save(r); err != nil {
		return false, err
	}
	return next, nil
}

// Show returns the requested keys, or every key when none are given.
func (s *Store) Show(keys ...string) (map[string]any, error) {
	all := s.Load().ToMap()
	if len(keys) == 0 {
		return all, nil
	}
	out := make(map[string]any, len(keys))
	for _, k := range keys {
		v, ok := all[k]
		if !ok {
			return nil, fmt.Errorf("%w: %s", ErrUnknownKey, k)
		}
		out[k] = v
	}
	return out, nil
}

// ValidateCurrent loads the file and reports its violations.
func (s *Store) ValidateCurrent() ([]Violation, Source) {
	r, src := s.LoadWithSource()
	return Validate(r), src
}
