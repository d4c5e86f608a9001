package settings

import "slices"

type AudioQuality string

const (
	AudioLow           AudioQuality = "LOW"
	AudioHigh          AudioQuality = "HIGH"
	AudioLossless      AudioQuality = "LOSSLESS"
	AudioHiResLossless AudioQuality = "HI_RES_LOSSLESS"
)

var AudioQualities = []AudioQuality{AudioLow, AudioHigh, AudioLossless, AudioHiResLossless}

func (q AudioQuality) Valid() bool {
	return slices.Contains(AudioQualities, q)
}

type VideoQuality string

const (
	Video360  VideoQuality = "360"
	Video480  VideoQuality = "480"
	Video720  VideoQuality = "720"
	Video1080 VideoQuality = "1080"
)

var VideoQualities = []VideoQuality{Video360, Video480, Video720, Video1080}

func (q VideoQuality) Valid() bool {
	return slices.Contains(VideoQualities, q)
}

// Record mirrors the downloader's settings document. JSON keys are the
// on-disk names and must stay in sync with the field table in fields.go.
type Record struct {
	DownloadBasePath                 string       `json:"download_base_path"`
	DownloadsConcurrentMax           int          `json:"downloads_concurrent_max"`
	DownloadsSimultaneousPerTrackMax int          `json:"downloads_simultaneous_per_track_max"`
	DownloadDelay                    bool         `json:"download_delay"`
	QualityAudio                     AudioQuality `json:"quality_audio"`
	QualityVideo                     VideoQuality `json:"quality_video"`
	LyricsEmbed                      bool         `json:"lyrics_embed"`
	LyricsFile                       bool         `json:"lyrics_file"`
	MetadataCoverEmbed               bool         `json:"metadata_cover_embed"`
	MetadataCoverDimension           int          `json:"metadata_cover_dimension"`
	CoverAlbumFile                   bool         `json:"cover_album_file"`
	MetadataReplayGain               bool         `json:"metadata_replay_gain"`
	SkipExisting                     bool         `json:"skip_existing"`
	ExtractFLAC                      bool         `json:"extract_flac"`
	SymlinkToTrack                   bool         `json:"symlink_to_track"`
	VideoDownload                    bool         `json:"video_download"`
	VideoConvertMP4                  bool         `json:"video_convert_mp4"`
	PlaylistCreate                   bool         `json:"playlist_create"`
	AlbumTrackNumPadMin              int          `json:"album_track_num_pad_min"`
	PathBinaryFFmpeg                 string       `json:"path_binary_ffmpeg"`
	RetryAttempts                    int          `json:"retry_attempts"`
	TimeoutSeconds                   int          `json:"timeout_seconds"`
	ChunkSize                        int          `json:"chunk_size"`
}

func Defaults() Record {
	return Record{
		DownloadBasePath:                 "~/download",
		DownloadsConcurrentMax:           3,
		DownloadsSimultaneousPerTrackMax: 1,
		DownloadDelay:                    false,
		QualityAudio:                     AudioLossless,
		QualityVideo:                     Video1080,
		LyricsEmbed:                      true,
		LyricsFile:                       true,
		MetadataCoverEmbed:               true,
		MetadataCoverDimension:           1200,
		CoverAlbumFile:                   true,
		MetadataReplayGain:               true,
		SkipExisting:                     true,
		ExtractFLAC:                      true,
		SymlinkToTrack:                   false,
		VideoDownload:                    true,
		VideoConvertMP4:                  true,
		PlaylistCreate:                   true,
		AlbumTrackNumPadMin:              2,
		PathBinaryFFmpeg:                 "/usr/bin/ffmpeg",
		RetryAttempts:                    3,
		TimeoutSeconds:                   300,
		ChunkSize:                        1048576,
	}
}
