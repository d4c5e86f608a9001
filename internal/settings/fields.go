package settings

import (
	"encoding/json"
	"fmt"
	"math"
	"reflect"
	"slices"
	"strconv"
	"strings"
)

type Kind int

const (
	KindBool Kind = iota
	KindInt
	KindString
	KindEnum
)

func (k Kind) String() string {
	switch k {
	case KindBool:
		return "bool"
	case KindInt:
		return "int"
	case KindString:
		return "string"
	case KindEnum:
		return "enum"
	}
	return "unknown"
}

type Group string

const (
	GroupQuality  Group = "quality"
	GroupDownload Group = "download"
	GroupMetadata Group = "metadata"
	GroupFiles    Group = "files"
	GroupPlaylist Group = "playlist"
	GroupSystem   Group = "system"
)

var Groups = []Group{GroupQuality, GroupDownload, GroupMetadata, GroupFiles, GroupPlaylist, GroupSystem}

// Field describes one settings key. Min and Max apply only when Bounded is set.
type Field struct {
	Key      string
	Kind     Kind
	Bounded  bool
	Min, Max int
	Enum     []string
	NonEmpty bool
	Group    Group
	Label    string
}

func enumOf[T ~string](values []T) []string {
	out := make([]string, len(values))
	for i, v := range values {
		out[i] = string(v)
	}
	return out
}

var Fields = []Field{
	{Key: "quality_audio", Kind: KindEnum, Enum: enumOf(AudioQualities), Group: GroupQuality, Label: "Audio quality"},
	{Key: "quality_video", Kind: KindEnum, Enum: enumOf(VideoQualities), Group: GroupQuality, Label: "Video quality"},
	{Key: "download_base_path", Kind: KindString, NonEmpty: true, Group: GroupDownload, Label: "Download path"},
	{Key: "downloads_concurrent_max", Kind: KindInt, Bounded: true, Min: 1, Max: 10, Group: GroupDownload, Label: "Concurrent downloads"},
	{Key: "downloads_simultaneous_per_track_max", Kind: KindInt, Bounded: true, Min: 1, Max: 10, Group: GroupDownload, Label: "Parallel chunks per track"},
	{Key: "download_delay", Kind: KindBool, Group: GroupDownload, Label: "Delay between downloads"},
	{Key: "skip_existing", Kind: KindBool, Group: GroupDownload, Label: "Skip existing files"},
	{Key: "lyrics_embed", Kind: KindBool, Group: GroupMetadata, Label: "Embed lyrics"},
	{Key: "metadata_cover_embed", Kind: KindBool, Group: GroupMetadata, Label: "Embed cover"},
	{Key: "metadata_cover_dimension", Kind: KindInt, Bounded: true, Min: 1, Max: 5000, Group: GroupMetadata, Label: "Cover size"},
	{Key: "metadata_replay_gain", Kind: KindBool, Group: GroupMetadata, Label: "Replay gain"},
	{Key: "lyrics_file", Kind: KindBool, Group: GroupFiles, Label: "Lyrics file"},
	{Key: "cover_album_file", Kind: KindBool, Group: GroupFiles, Label: "Album cover file"},
	{Key: "extract_flac", Kind: KindBool, Group: GroupFiles, Label: "Extract FLAC"},
	{Key: "symlink_to_track", Kind: KindBool, Group: GroupFiles, Label: "Symlink to track"},
	{Key: "video_download", Kind: KindBool, Group: GroupFiles, Label: "Download videos"},
	{Key: "video_convert_mp4", Kind: KindBool, Group: GroupFiles, Label: "Convert videos to MP4"},
	{Key: "playlist_create", Kind: KindBool, Group: GroupPlaylist, Label: "Create playlist files"},
	{Key: "album_track_num_pad_min", Kind: KindInt, Bounded: true, Min: 1, Max: 10, Group: GroupPlaylist, Label: "Track number padding"},
	{Key: "path_binary_ffmpeg", Kind: KindString, NonEmpty: true, Group: GroupSystem, Label: "FFmpeg path"},
	{Key: "retry_attempts", Kind: KindInt, Bounded: true, Min: 0, Max: 10, Group: GroupSystem, Label: "Retry attempts"},
	{Key: "timeout_seconds", Kind: KindInt, Bounded: true, Min: 1, Max: 3600, Group: GroupSystem, Label: "Timeout (s)"},
	{Key: "chunk_size", Kind: KindInt, Bounded: true, Min: 1024, Max: 64 << 20, Group: GroupSystem, Label: "Chunk size"},
}

// fieldIndex maps a json key to the struct field position in Record.
var fieldIndex = func() map[string]int {
	t := reflect.TypeOf(Record{})
	idx := make(map[string]int, t.NumField())
	for i := range t.NumField() {
		tag, _, _ := strings.Cut(t.Field(i).Tag.Get("json"), ",")
		idx[tag] = i
	}
	return idx
}()

func Lookup(key string) (Field, bool) {
	i := slices.IndexFunc(Fields, func(f Field) bool { return f.Key == key })
	if i < 0 {
		return Field{}, false
	}
	return Fields[i], true
}

// Get returns the value stored under key.
func (r Record) Get(key string) (any, error) {
	f, ok := Lookup(key)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownKey, key)
	}
	v := reflect.ValueOf(r).Field(fieldIndex[key])
	switch f.Kind {
	case KindBool:
		return v.Bool(), nil
	case KindInt:
		return int(v.Int()), nil
	default:
		return v.String(), nil
	}
}

// Set assigns value to key after coercing it to the field's kind. Ranges are
// not checked here; Validate does that.
func (r *Record) Set(key string, value any) error {
	f, ok := Lookup(key)
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownKey, key)
	}
	v := reflect.ValueOf(r).Elem().Field(fieldIndex[key])
	switch f.Kind {
	case KindBool:
		b, ok := value.(bool)
		if !ok {
			return fmt.Errorf("%w: %s expects a boolean, got %T", ErrInvalidValue, key, value)
		}
		v.SetBool(b)
	case KindInt:
		n, err := asInt(value)
		if err != nil {
			return fmt.Errorf("%w: %s: %v", ErrInvalidValue, key, err)
		}
		v.SetInt(int64(n))
	case KindString:
		s, ok := value.(string)
		if !ok {
			return fmt.Errorf("%w: %s expects a string, got %T", ErrInvalidValue, key, value)
		}
		v.SetString(s)
	case KindEnum:
		var s string
		switch x := value.(type) {
		case string:
			s = x
		case int, int64, float64, json.Number:
			n, err := asInt(x)
			if err != nil {
				return fmt.Errorf("%w: %s: %v", ErrInvalidValue, key, err)
			}
			s = strconv.Itoa(n)
		default:
			return fmt.Errorf("%w: %s expects one of %s, got %T", ErrInvalidValue, key, strings.Join(f.Enum, ", "), value)
		}
		v.SetString(s)
	}
	return nil
}

func asInt(value any) (int, error) {
	switch x := value.(type) {
	case int:
		return x, nil
	case int64:
		return int(x), nil
	case float64:
		if x != math.Trunc(x) {
			return 0, fmt.Errorf("%v is not an integer", x)
		}
		return int(x), nil
	case json.Number:
		n, err := x.Int64()
		if err != nil {
			return 0, fmt.Errorf("%q is not an integer", x.String())
		}
		return int(n), nil
	}
	return 0, fmt.Errorf("expects an integer, got %T", value)
}

// Parse converts user-supplied text into a value suitable for Record.Set.
// Booleans are strict: only "true" and "false" are accepted.
func Parse(key, text string) (any, error) {
	f, ok := Lookup(key)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownKey, key)
	}
	text = strings.TrimSpace(text)
	switch f.Kind {
	case KindBool:
		switch strings.ToLower(text) {
		case "true":
			return true, nil
		case "false":
			return false, nil
		}
		return nil, fmt.Errorf("%w: %s expects true or false, got %q", ErrInvalidValue, key, text)
	case KindInt:
		n, err := strconv.Atoi(text)
		if err != nil {
			return nil, fmt.Errorf("%w: %s expects an integer, got %q", ErrInvalidValue, key, text)
		}
		return n, nil
	case KindEnum:
		for _, e := range f.Enum {
			if strings.EqualFold(e, text) {
				return e, nil
			}
		}
		return nil, fmt.Errorf("%w: %s expects one of %s, got %q", ErrInvalidValue, key, strings.Join(f.Enum, ", "), text)
	}
	return text, nil
}

// ToMap flattens a record into its on-disk key/value form.
func (r Record) ToMap() map[string]any {
	out := make(map[string]any, len(Fields))
	for _, f := range Fields {
		v, _ := r.Get(f.Key)
		out[f.Key] = v
	}
	return out
}
