package settings

import (
	"bytes"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"reflect"
	"runtime"
	"strings"
	"testing"
	"time"
)

func stepClock(start time.Time, step time.Duration) func() time.Time {
	cur := start.Add(-step)
	return func() time.Time {
		cur = cur.Add(step)
		return cur
	}
}

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s := NewStore(filepath.Join(t.TempDir(), "settings.json"))
	s.now = stepClock(time.Date(2026, 3, 1, 10, 0, 0, 0, time.Local), time.Minute)
	return s
}

func TestDefaultsAreValid(t *testing.T) {
	if v := Validate(Defaults()); len(v) != 0 {
		t.Fatalf("expected defaults to be valid, got %v", v)
	}
}

func TestFieldTableMatchesRecord(t *testing.T) {
	typ := reflect.TypeOf(Record{})
	if typ.NumField() != len(Fields) {
		t.Fatalf("expected %d fields in table, got %d", typ.NumField(), len(Fields))
	}
	seen := map[string]bool{}
	for _, f := range Fields {
		if seen[f.Key] {
			t.Fatalf("duplicate field %q", f.Key)
		}
		seen[f.Key] = true
		if _, ok := fieldIndex[f.Key]; !ok {
			t.Fatalf("field %q has no struct member", f.Key)
		}
		if f.Label == "" || f.Group == "" {
			t.Fatalf("field %q is missing label or group", f.Key)
		}
	}
}

func TestValidateReportsEveryViolation(t *testing.T) {
	r := Defaults()
	r.QualityAudio = "ULTRA"
	r.TimeoutSeconds = 0
	r.DownloadBasePath = "  "
	got := Validate(r)
	want := []string{"quality_audio", "download_base_path", "timeout_seconds"}
	if len(got) != len(want) {
		t.Fatalf("expected %d violations, got %v", len(want), got)
	}
	for i, v := range got {
		if v.Field != want[i] {
			t.Fatalf("violation %d: want %q, got %q", i, want[i], v.Field)
		}
		if v.Reason == "" {
			t.Fatalf("violation %d has no reason", i)
		}
	}
}

func TestValidateBoundsForEveryRangedField(t *testing.T) {
	for _, f := range Fields {
		if !f.Bounded {
			continue
		}
		for _, bad := range []int{f.Min - 1, f.Max + 1} {
			t.Run(f.Key, func(t *testing.T) {
				r := Defaults()
				if err := r.Set(f.Key, bad); err != nil {
					t.Fatalf("set: %v", err)
				}
				v := Validate(r)
				if len(v) != 1 || v[0].Field != f.Key {
					t.Fatalf("value %d: expected one violation on %s, got %v", bad, f.Key, v)
				}
			})
		}
	}
}

func TestPresetsAreValid(t *testing.T) {
	names := map[string]bool{}
	for _, p := range Presets {
		if names[p.Name] {
			t.Fatalf("duplicate preset %q", p.Name)
		}
		names[p.Name] = true
		if v := Validate(p.Record); len(v) != 0 {
			t.Fatalf("preset %s: expected no violations, got %v", p.Name, v)
		}
		if p.Description == "" {
			t.Fatalf("preset %s has no description", p.Name)
		}
	}
	if len(Presets) != 5 {
		t.Fatalf("expected 5 presets, got %d", len(Presets))
	}
}

func TestSaveLoadRoundTrip(t *testing.T) {
	s := newTestStore(t)
	records := []Record{Defaults()}
	for _, p := range Presets {
		records = append(records, p.Record)
	}
	custom := Defaults()
	custom.DownloadBasePath = "/srv/music"
	custom.QualityVideo = Video360
	custom.ChunkSize = 4096
	custom.SymlinkToTrack = true
	records = append(records, custom)

	for i, want := range records {
		if err := s.Save(want); err != nil {
			t.Fatalf("record %d: save: %v", i, err)
		}
		got, src := s.LoadWithSource()
		if src != SourceFile {
			t.Fatalf("record %d: expected source file, got %s", i, src)
		}
		if got != want {
			t.Fatalf("record %d: round trip mismatch\nwant %+v\ngot  %+v", i, want, got)
		}
	}
}

func TestSaveRefusesInvalidRecord(t *testing.T) {
	s := newTestStore(t)
	if err := s.Save(Defaults()); err != nil {
		t.Fatalf("save: %v", err)
	}
	before, err := os.ReadFile(s.Path())
	if err != nil {
		t.Fatalf("read: %v", err)
	}

	bad := Defaults()
	bad.DownloadsConcurrentMax = 11
	err = s.Save(bad)
	var verr *ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("expected ValidationError, got %v", err)
	}
	if verr.Violations[0].Field != "downloads_concurrent_max" {
		t.Fatalf("expected violation on downloads_concurrent_max, got %v", verr.Violations)
	}
	after, _ := os.ReadFile(s.Path())
	if !bytes.Equal(before, after) {
		t.Fatalf("settings file changed after refused save")
	}
	if b, _ := s.Backups(); len(b) != 0 {
		t.Fatalf("expected no backups after refused save, got %d", len(b))
	}
}

func TestLoadMissingAndCorrupt(t *testing.T) {
	s := newTestStore(t)
	r, src := s.LoadWithSource()
	if src != SourceMissing || r != Defaults() {
		t.Fatalf("missing file: want defaults from %s, got %+v from %s", SourceMissing, r, src)
	}

	if err := os.WriteFile(s.Path(), []byte("{not json"), 0644); err != nil {
		t.Fatalf("write: %v", err)
	}
	r, src = s.LoadWithSource()
	if src != SourceCorrupt || r != Defaults() {
		t.Fatalf("corrupt file: want defaults from %s, got %+v from %s", SourceCorrupt, r, src)
	}
}

func TestLoadKeepsDefaultOnTypeMismatch(t *testing.T) {
	s := newTestStore(t)
	doc := `{"downloads_concurrent_max": "five", "lyrics_embed": false, "quality_video": 720}`
	if err := os.WriteFile(s.Path(), []byte(doc), 0644); err != nil {
		t.Fatalf("write: %v", err)
	}
	r, src := s.LoadWithSource()
	if src != SourceFile {
		t.Fatalf("expected source file, got %s", src)
	}
	if r.DownloadsConcurrentMax != 3 {
		t.Fatalf("downloads_concurrent_max: want 3, got %d", r.DownloadsConcurrentMax)
	}
	if r.LyricsEmbed {
		t.Fatalf("lyrics_embed: want false, got true")
	}
	if r.QualityVideo != Video720 {
		t.Fatalf("quality_video: want %q, got %q", Video720, r.QualityVideo)
	}
}

func TestSavePreservesUnknownKeys(t *testing.T) {
	s := newTestStore(t)
	if err := os.WriteFile(s.Path(), []byte(`{"format_track": "{artist} - {title}"}`), 0644); err != nil {
		t.Fatalf("write: %v", err)
	}
	if err := s.Save(Defaults()); err != nil {
		t.Fatalf("save: %v", err)
	}
	data, _ := os.ReadFile(s.Path())
	doc, err := decodeDocument(data)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if doc["format_track"] != "{artist} - {title}" {
		t.Fatalf("format_track: want preserved, got %v", doc["format_track"])
	}
}

func TestSaveBacksUpPreviousFile(t *testing.T) {
	s := newTestStore(t)
	first := Defaults()
	first.DownloadsConcurrentMax = 2
	if err := s.Save(first); err != nil {
		t.Fatalf("save: %v", err)
	}
	if b, _ := s.Backups(); len(b) != 0 {
		t.Fatalf("expected no backup for first save, got %d", len(b))
	}
	if err := s.Save(Defaults()); err != nil {
		t.Fatalf("save: %v", err)
	}
	backups, err := s.Backups()
	if err != nil || len(backups) != 1 {
		t.Fatalf("expected one backup, got %d (%v)", len(backups), err)
	}
	if !strings.HasPrefix(backups[0].Name, "settings.backup.20260301-") {
		t.Fatalf("unexpected backup name %q", backups[0].Name)
	}
	data, _ := os.ReadFile(backups[0].Path)
	r, err := decode(data)
	if err != nil || r != first {
		t.Fatalf("backup content: want %+v, got %+v (%v)", first, r, err)
	}
}

func TestBackupNamesStayUniqueWithinOneSecond(t *testing.T) {
	s := newTestStore(t)
	fixed := time.Date(2026, 3, 1, 10, 0, 0, 0, time.Local)
	s.now = func() time.Time { return fixed }
	for range 3 {
		if err := s.Save(Defaults()); err != nil {
			t.Fatalf("save: %v", err)
		}
	}
	backups, _ := s.Backups()
	if len(backups) != 2 {
		t.Fatalf("expected 2 backups, got %d", len(backups))
	}
	if backups[0].Name == backups[1].Name {
		t.Fatalf("backup names collided: %s", backups[0].Name)
	}
}

func TestPruneBackupsKeepsNewest(t *testing.T) {
	s := newTestStore(t)
	if err := s.Save(Defaults()); err != nil {
		t.Fatalf("save: %v", err)
	}
	for range 5 {
		if _, err := s.Backup(); err != nil {
			t.Fatalf("backup: %v", err)
		}
	}
	all, _ := s.Backups()
	if removed := s.PruneBackups(2); removed != 3 {
		t.Fatalf("removed: want 3, got %d", removed)
	}
	left, _ := s.Backups()
	if len(left) != 2 || left[0].Name != all[0].Name || left[1].Name != all[1].Name {
		t.Fatalf("expected newest two backups to remain, got %v", left)
	}
	if removed := s.PruneBackups(10); removed != 0 {
		t.Fatalf("removed: want 0, got %d", removed)
	}
}

func TestRestoreBackup(t *testing.T) {
	s := newTestStore(t)
	old := Defaults()
	old.QualityAudio = AudioHigh
	if err := s.Save(old); err != nil {
		t.Fatalf("save: %v", err)
	}
	if err := s.ApplyPreset("archive_quality"); err != nil {
		t.Fatalf("preset: %v", err)
	}
	backups, _ := s.Backups()
	if len(backups) != 1 {
		t.Fatalf("expected one backup, got %d", len(backups))
	}
	if err := s.Restore(backups[0].Name); err != nil {
		t.Fatalf("restore: %v", err)
	}
	if got := s.Load(); got != old {
		t.Fatalf("restored record: want %+v, got %+v", old, got)
	}
	if b, _ := s.Backups(); len(b) != 2 {
		t.Fatalf("expected restore to back up the replaced file, got %d backups", len(b))
	}
}

func TestRestoreRejectsBadNames(t *testing.T) {
	s := newTestStore(t)
	tests := []struct {
		name string
		want error
	}{
		{"../settings.json", ErrInvalidBackupName},
		{"settings.backup.latest.json", ErrInvalidBackupName},
		{"settings.backup.20250101-000000.json", ErrBackupNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := s.Restore(tt.name); !errors.Is(err, tt.want) {
				t.Fatalf("want %v, got %v", tt.want, err)
			}
		})
	}
}

func TestSetParsesAndValidates(t *testing.T) {
	s := newTestStore(t)
	tests := []struct {
		key, value string
		wantErr    error
	}{
		{"downloads_concurrent_max", "7", nil},
		{"quality_audio", "hi_res_lossless", nil},
		{"quality_video", "480", nil},
		{"lyrics_embed", "false", nil},
		{"lyrics_embed", "yes", ErrInvalidValue},
		{"timeout_seconds", "soon", ErrInvalidValue},
		{"quality_video", "4k", ErrInvalidValue},
		{"no_such_key", "1", ErrUnknownKey},
	}
	for _, tt := range tests {
		t.Run(tt.key+"="+tt.value, func(t *testing.T) {
			err := s.Set(tt.key, tt.value)
			if tt.wantErr == nil && err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if tt.wantErr != nil && !errors.Is(err, tt.wantErr) {
				t.Fatalf("want %v, got %v", tt.wantErr, err)
			}
		})
	}
	r := s.Load()
	if r.DownloadsConcurrentMax != 7 || r.QualityAudio != AudioHiResLossless || r.QualityVideo != Video480 || r.LyricsEmbed {
		t.Fatalf("unexpected record after sets: %+v", r)
	}

	var verr *ValidationError
	if err := s.Set("downloads_concurrent_max", "42"); !errors.As(err, &verr) {
		t.Fatalf("expected ValidationError for out of range value, got %v", err)
	}
}

func TestToggle(t *testing.T) {
	s := newTestStore(t)
	got, err := s.Toggle("lyrics_embed")
	if err != nil || got {
		t.Fatalf("toggle: want false, got %v (%v)", got, err)
	}
	if s.Load().LyricsEmbed {
		t.Fatalf("toggle not persisted")
	}
	if _, err := s.Toggle("quality_audio"); !errors.Is(err, ErrNotBoolean) {
		t.Fatalf("want ErrNotBoolean, got %v", err)
	}
}

func TestShowFiltersKeys(t *testing.T) {
	s := newTestStore(t)
	all, err := s.Show()
	if err != nil || len(all) != len(Fields) {
		t.Fatalf("show all: want %d keys, got %d (%v)", len(Fields), len(all), err)
	}
	some, err := s.Show("quality_audio", "retry_attempts")
	if err != nil {
		t.Fatalf("show: %v", err)
	}
	if some["quality_audio"] != "LOSSLESS" || some["retry_attempts"] != 3 {
		t.Fatalf("unexpected values %v", some)
	}
	if _, err := s.Show("bogus"); !errors.Is(err, ErrUnknownKey) {
		t.Fatalf("want ErrUnknownKey, got %v", err)
	}
}

func TestApplyUnknownPreset(t *testing.T) {
	s := newTestStore(t)
	if err := s.ApplyPreset("loud"); !errors.Is(err, ErrUnknownPreset) {
		t.Fatalf("want ErrUnknownPreset, got %v", err)
	}
	if _, err := os.Stat(s.Path()); !errors.Is(err, fs.ErrNotExist) {
		t.Fatalf("expected no settings file after failed preset")
	}
}

func TestSnapshotRestoresBytes(t *testing.T) {
	s := newTestStore(t)
	raw := []byte("{\n  \"quality_audio\": \"HIGH\",\n  \"custom\": [1, 2]\n}")
	if err := os.WriteFile(s.Path(), raw, 0644); err != nil {
		t.Fatalf("write: %v", err)
	}
	snap, err := s.Snapshot()
	if err != nil {
		t.Fatalf("snapshot: %v", err)
	}
	if snap.Record.QualityAudio != AudioHigh {
		t.Fatalf("snapshot quality: want HIGH, got %s", snap.Record.QualityAudio)
	}
	overlay := Defaults()
	overlay.DownloadBasePath = "/tmp/session"
	if err := s.WriteOverlay(overlay); err != nil {
		t.Fatalf("overlay: %v", err)
	}
	if got := s.Load().DownloadBasePath; got != "/tmp/session" {
		t.Fatalf("overlay not applied, got %q", got)
	}
	if err := s.RestoreSnapshot(snap); err != nil {
		t.Fatalf("restore: %v", err)
	}
	after, _ := os.ReadFile(s.Path())
	if !bytes.Equal(raw, after) {
		t.Fatalf("restore not byte-for-byte:\nwant %s\ngot  %s", raw, after)
	}
	if b, _ := s.Backups(); len(b) != 0 {
		t.Fatalf("overlay and restore should not create backups, got %d", len(b))
	}
}

func TestWritesKeepFileMode(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("permission bits are not enforced")
	}
	s := newTestStore(t)
	raw := []byte("{\n    \"quality_audio\": \"HIGH\"\n}\n")
	if err := os.WriteFile(s.Path(), raw, 0600); err != nil {
		t.Fatalf("write: %v", err)
	}
	mode := func() fs.FileMode {
		t.Helper()
		info, err := os.Stat(s.Path())
		if err != nil {
			t.Fatalf("stat: %v", err)
		}
		return info.Mode().Perm()
	}

	snap, err := s.Snapshot()
	if err != nil {
		t.Fatalf("snapshot: %v", err)
	}
	if err := s.WriteOverlay(Defaults()); err != nil {
		t.Fatalf("overlay: %v", err)
	}
	if got := mode(); got != 0600 {
		t.Fatalf("overlay widened mode to %o", got)
	}
	if err := s.RestoreSnapshot(snap); err != nil {
		t.Fatalf("restore: %v", err)
	}
	if got := mode(); got != 0600 {
		t.Fatalf("restore widened mode to %o", got)
	}

	// the snapshot carries the mode even when the file vanished meanwhile
	if err := os.Remove(s.Path()); err != nil {
		t.Fatalf("remove: %v", err)
	}
	if err := s.RestoreSnapshot(snap); err != nil {
		t.Fatalf("restore: %v", err)
	}
	if got := mode(); got != 0600 {
		t.Fatalf("recreated file has mode %o", got)
	}
	if err := s.SetField("lyrics_embed", true); err != nil {
		t.Fatalf("set: %v", err)
	}
	if got := mode(); got != 0600 {
		t.Fatalf("save widened mode to %o", got)
	}
}

func TestSnapshotOfMissingFileRemovesOverlay(t *testing.T) {
	s := newTestStore(t)
	snap, err := s.Snapshot()
	if err != nil || snap.Exists {
		t.Fatalf("snapshot: want missing, got exists=%v (%v)", snap.Exists, err)
	}
	if err := s.WriteOverlay(Defaults()); err != nil {
		t.Fatalf("overlay: %v", err)
	}
	if err := s.RestoreSnapshot(snap); err != nil {
		t.Fatalf("restore: %v", err)
	}
	if _, err := os.Stat(s.Path()); !errors.Is(err, fs.ErrNotExist) {
		t.Fatalf("expected settings file to be removed, got %v", err)
	}
}

func TestSummaryCoversEveryField(t *testing.T) {
	sections := Summarize(Defaults())
	if len(sections) != len(Groups) {
		t.Fatalf("expected %d sections, got %d", len(Groups), len(sections))
	}
	count := 0
	for i, sec := range sections {
		if sec.Group != Groups[i] {
			t.Fatalf("section %d: want %s, got %s", i, Groups[i], sec.Group)
		}
		count += len(sec.Entries)
	}
	if count != len(Fields) {
		t.Fatalf("expected %d entries, got %d", len(Fields), count)
	}
}
