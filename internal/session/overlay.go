package session

import (
	"fmt"
	"maps"
	"slices"
	"strconv"
	"strings"

	"github.com/rs/zerolog/log"
	"github.com/tanq16/siesta/internal/settings"
)

// aliases maps request option names to settings keys.
var aliases = map[string]string{
	"quality":       "quality_audio",
	"video_quality": "quality_video",
	"lyrics":        "lyrics_embed",
	"cover":         "metadata_cover_embed",
	"playlist":      "playlist_create",
	"concurrent":    "downloads_concurrent_max",
	"concurrency":   "downloads_concurrent_max",
	"flac":          "extract_flac",
	"video":         "video_download",
	"convert":       "video_convert_mp4",
	"skip":          "skip_existing",
	"skipExisting":  "skip_existing",
}

// Keys owned by the session; requests cannot override them.
var sessionOwned = []string{"download_base_path", "path_binary_ffmpeg"}

// Overlay builds the settings a session runs with: the snapshot, then the
// forced session values, then the request overrides. Overrides with unknown
// keys or unusable values are dropped with a warning; integers are clamped
// into their field's range.
func Overlay(base settings.Record, dir, ffmpeg string, overrides map[string]any) (settings.Record, error) {
	r := base
	r.DownloadBasePath = dir
	if ffmpeg != "" {
		r.PathBinaryFFmpeg = ffmpeg
	}
	r.DownloadsConcurrentMax = 3
	r.DownloadsSimultaneousPerTrackMax = 1
	r.SkipExisting = true
	r.LyricsEmbed = true
	r.MetadataCoverEmbed = true
	r.ExtractFLAC = true
	r.PlaylistCreate = true
	r.VideoDownload = true
	r.VideoConvertMP4 = true

	for _, name := range slices.Sorted(maps.Keys(overrides)) {
		key := name
		if k, ok := aliases[name]; ok {
			key = k
		}
		f, ok := settings.Lookup(key)
		if !ok || slices.Contains(sessionOwned, key) {
			log.Warn().Str("op", "session/overlay").Str("option", name).Msg("ignoring option")
			continue
		}
		v, err := coerce(f, overrides[name])
		if err != nil {
			log.Warn().Str("op", "session/overlay").Str("option", name).Err(err).Msg("ignoring option")
			continue
		}
		if err := r.Set(key, v); err != nil {
			log.Warn().Str("op", "session/overlay").Str("option", name).Err(err).Msg("ignoring option")
		}
	}
	if v := settings.Validate(r); len(v) > 0 {
		return r, &settings.ValidationError{Violations: v}
	}
	return r, nil
}

func coerce(f settings.Field, value any) (any, error) {
	switch f.Kind {
	case settings.KindBool:
		return toBool(value)
	case settings.KindInt:
		n, err := toInt(value)
		if err != nil {
			return nil, err
		}
		if f.Bounded {
			n = max(f.Min, min(n, f.Max))
		}
		return n, nil
	case settings.KindEnum:
		return settings.Parse(f.Key, fmt.Sprint(value))
	}
	s, ok := value.(string)
	if !ok || strings.TrimSpace(s) == "" {
		return nil, fmt.Errorf("expects a non-empty string")
	}
	return s, nil
}

func toBool(value any) (bool, error) {
	switch v := value.(type) {
	case bool:
		return v, nil
	case int:
		return v != 0, nil
	case float64:
		return v != 0, nil
	case string:
		switch strings.ToLower(strings.TrimSpace(v)) {
		case "true", "1", "yes", "on":
			return true, nil
		case "false", "0", "no", "off":
			return false, nil
		}
	}
	return false, fmt.Errorf("cannot use %v as a boolean", value)
}

func toInt(value any) (int, error) {
	switch v := value.(type) {
	case int:
		return v, nil
	case int64:
		return int(v), nil
	case float64:
		return int(v), nil
	case string:
		n, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil {
			return 0, fmt.Errorf("cannot use %q as an integer", v)
		}
		return n, nil
	}
	return 0, fmt.Errorf("cannot use %v as an integer", value)
}
