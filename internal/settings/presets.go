package settings

import (
	"fmt"
	"slices"
)

type Preset struct {
	Name        string
	Description string
	Record      Record
}

func preset(name, description string, mutate func(*Record)) Preset {
	r := Defaults()
	mutate(&r)
	return Preset{Name: name, Description: description, Record: r}
}

// Presets are applied wholesale over the defaults, never merged with the
// current file.
var Presets = []Preset{
	preset("high_quality", "Maximum quality with slower downloads", func(r *Record) {
		r.QualityAudio = AudioHiResLossless
		r.QualityVideo = Video1080
		r.MetadataCoverDimension = 2000
		r.DownloadsConcurrentMax = 2
		r.RetryAttempts = 5
	}),
	preset("fast_download", "Optimized for speed with good quality", func(r *Record) {
		r.QualityAudio = AudioHigh
		r.QualityVideo = Video720
		r.DownloadsConcurrentMax = 5
		r.DownloadsSimultaneousPerTrackMax = 2
		r.MetadataCoverEmbed = false
		r.LyricsEmbed = false
		r.ExtractFLAC = false
		r.RetryAttempts = 2
		r.TimeoutSeconds = 180
	}),
	preset("minimal", "Minimal settings for basic downloads", func(r *Record) {
		r.QualityAudio = AudioHigh
		r.QualityVideo = Video480
		r.MetadataCoverEmbed = false
		r.LyricsEmbed = false
		r.LyricsFile = false
		r.ExtractFLAC = false
		r.PlaylistCreate = false
		r.DownloadsConcurrentMax = 1
	}),
	preset("archive_quality", "Archive-quality with server-friendly delays", func(r *Record) {
		r.QualityAudio = AudioHiResLossless
		r.QualityVideo = Video1080
		r.MetadataCoverDimension = 3000
		r.MetadataReplayGain = true
		r.DownloadDelay = true
		r.DownloadsConcurrentMax = 1
		r.RetryAttempts = 5
		r.TimeoutSeconds = 600
	}),
	preset("balanced", "Balanced quality and speed (recommended)", func(r *Record) {
		r.QualityAudio = AudioLossless
		r.QualityVideo = Video720
		r.MetadataCoverDimension = 1200
		r.LyricsFile = false
		r.DownloadsConcurrentMax = 3
		r.RetryAttempts = 3
	}),
}

func FindPreset(name string) (Preset, error) {
	i := slices.IndexFunc(Presets, func(p Preset) bool { return p.Name == name })
	if i < 0 {
		return Preset{}, fmt.Errorf("%w: %s", ErrUnknownPreset, name)
	}
	return Presets[i], nil
}
