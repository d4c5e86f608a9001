package classify

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"
	"slices"
	"sort"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/tanq16/siesta/internal/metrics"
)

type Kind string

const (
	KindTrack    Kind = "track"
	KindAlbum    Kind = "album"
	KindPlaylist Kind = "playlist"
	KindVideo    Kind = "video"
	KindUnknown  Kind = "unknown"
)

var (
	ErrNoFiles    = errors.New("no files were downloaded")
	ErrNoMetadata = errors.New("metadata extraction failed")
)

var (
	transientSuffixes = []string{".tmp", ".part", ".ytdl"}
	videoExtensions   = []string{".mp4", ".m4v", ".mkv", ".mov", ".webm"}
)

type Metadata struct {
	Path        string
	Provider    string
	Title       string
	Artist      string
	Album       string
	AlbumArtist string
	Track       int
	Disc        int
	Duration    time.Duration
	Width       int
	Height      int
	Format      string
}

// Extractor reads media metadata from a single file.
type Extractor interface {
	Extract(ctx context.Context, path string) (Metadata, error)
}

type ExtractorFunc func(ctx context.Context, path string) (Metadata, error)

func (f ExtractorFunc) Extract(ctx context.Context, path string) (Metadata, error) {
	return f(ctx, path)
}

type Result struct {
	Kind  Kind
	Files []string
	Items []Metadata
}

type Classifier struct {
	Audio    Extractor
	Video    Extractor
	Provider string
}

func IsVideo(path string) bool {
	return slices.Contains(videoExtensions, strings.ToLower(filepath.Ext(path)))
}

func isTransient(name string) bool {
	if strings.HasPrefix(name, ".") {
		return true
	}
	lower := strings.ToLower(name)
	for _, suffix := range transientSuffixes {
		if strings.HasSuffix(lower, suffix) {
			return true
		}
	}
	return false
}

// Collect returns the regular, non-transient files under dir in lexical
// order. Unreadable subdirectories are skipped.
func Collect(dir string) ([]string, error) {
	var files []string
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if d != nil && d.IsDir() && path != dir {
				log.Warn().Str("op", "classify/collect").Str("dir", path).Err(err).Msg("skipping unreadable directory")
				return fs.SkipDir
			}
			return err
		}
		if !d.Type().IsRegular() || isTransient(d.Name()) {
			return nil
		}
		files = append(files, path)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("error walking %s: %w", dir, err)
	}
	sort.Strings(files)
	return files, nil
}

// Classify collects the files in dir, extracts metadata from each one and
// decides the content kind. Files whose extraction fails are skipped.
func (c *Classifier) Classify(ctx context.Context, dir string) (Result, error) {
	files, err := Collect(dir)
	if err != nil {
		return Result{Kind: KindUnknown}, err
	}
	if len(files) == 0 {
		return Result{Kind: KindUnknown}, ErrNoFiles
	}
	res := Result{Files: files}
	for _, path := range files {
		if err := ctx.Err(); err != nil {
			return Result{Kind: KindUnknown, Files: files}, err
		}
		ex := c.Audio
		if IsVideo(path) {
			ex = c.Video
		}
		if ex == nil {
			log.Warn().Str("op", "classify/extract").Str("file", path).Msg("no extractor configured")
			continue
		}
		md, err := ex.Extract(ctx, path)
		if err != nil {
			log.Error().Str("op", "classify/extract").Str("file", path).Err(err).Msg("metadata extraction failed")
			continue
		}
		md.Path = path
		md.Provider = c.Provider
		res.Items = append(res.Items, md)
	}
	if len(res.Items) == 0 {
		res.Kind = KindUnknown
		return res, ErrNoMetadata
	}
	res.Kind = Decide(res.Items, files)
	metrics.ClassifiedTotal.WithLabelValues(string(res.Kind)).Inc()
	log.Debug().Str("op", "classify/decide").Int("files", len(files)).Int("items", len(res.Items)).Msgf("classified as %s", res.Kind)
	return res, nil
}

// Decide applies the classification table: a single item alongside a video
// file is a video; several items sharing one non-empty album are an album,
// otherwise a playlist; anything else is a track.
func Decide(items []Metadata, files []string) Kind {
	if len(items) == 0 {
		return KindUnknown
	}
	if len(items) == 1 && slices.ContainsFunc(files, IsVideo) {
		return KindVideo
	}
	if len(items) > 1 {
		album := items[0].Album
		for _, it := range items[1:] {
			if it.Album != album {
				return KindPlaylist
			}
		}
		if album == "" {
			return KindPlaylist
		}
		return KindAlbum
	}
	return KindTrack
}
