package classify

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"strconv"
	"strings"
	"time"

	"github.com/dhowden/tag"
	"github.com/rs/zerolog/log"
)

// TagExtractor reads embedded audio tags (ID3, MP4, FLAC, OGG). Tags carry
// no duration, so FFprobe, when set, is asked for it.
type TagExtractor struct {
	FFprobe string
}

func (e TagExtractor) Extract(ctx context.Context, path string) (Metadata, error) {
	f, err := os.Open(path)
	if err != nil {
		return Metadata{}, err
	}
	defer f.Close()
	m, err := tag.ReadFrom(f)
	if err != nil {
		return Metadata{}, fmt.Errorf("error reading tags: %w", err)
	}
	track, _ := m.Track()
	disc, _ := m.Disc()
	md := Metadata{
		Title:       m.Title(),
		Artist:      m.Artist(),
		Album:       m.Album(),
		AlbumArtist: m.AlbumArtist(),
		Track:       track,
		Disc:        disc,
		Format:      string(m.FileType()),
	}
	if e.FFprobe != "" {
		if d, err := probeDuration(ctx, e.FFprobe, path); err != nil {
			log.Debug().Str("op", "classify/tags").Str("file", path).Err(err).Msg("duration unavailable")
		} else {
			md.Duration = d
		}
	}
	return md, nil
}

// ProbeExtractor runs ffprobe against video files.
type ProbeExtractor struct {
	Binary string
}

type probeOutput struct {
	Streams []struct {
		CodecType string `json:"codec_type"`
		CodecName string `json:"codec_name"`
		Width     int    `json:"width"`
		Height    int    `json:"height"`
	} `json:"streams"`
	Format struct {
		FormatName string            `json:"format_name"`
		Duration   string            `json:"duration"`
		Tags       map[string]string `json:"tags"`
	} `json:"format"`
}

func (p ProbeExtractor) Extract(ctx context.Context, path string) (Metadata, error) {
	bin := p.Binary
	if bin == "" {
		bin = "ffprobe"
	}
	cmd := exec.CommandContext(ctx, bin, "-v", "quiet", "-print_format", "json", "-show_format", "-show_streams", path)
	log.Debug().Str("op", "classify/probe").Msgf("executing ffprobe command: %s", cmd.String())
	out, err := cmd.Output()
	if err != nil {
		return Metadata{}, fmt.Errorf("ffprobe failed: %v", err)
	}
	return parseProbe(out)
}

func parseProbe(out []byte) (Metadata, error) {
	var probe probeOutput
	if err := json.Unmarshal(out, &probe); err != nil {
		return Metadata{}, fmt.Errorf("error parsing ffprobe output: %v", err)
	}
	md := Metadata{
		Format: probe.Format.FormatName,
		Title:  lookupTag(probe.Format.Tags, "title"),
		Artist: lookupTag(probe.Format.Tags, "artist"),
		Album:  lookupTag(probe.Format.Tags, "album"),
	}
	md.Duration, _ = parseDuration(probe.Format.Duration)
	hasVideo := false
	for _, s := range probe.Streams {
		if s.CodecType == "video" {
			hasVideo = true
			md.Width, md.Height = s.Width, s.Height
			break
		}
	}
	if !hasVideo {
		return Metadata{}, fmt.Errorf("no video stream found")
	}
	return md, nil
}

func probeDuration(ctx context.Context, bin, path string) (time.Duration, error) {
	cmd := exec.CommandContext(ctx, bin, "-v", "quiet", "-print_format", "json", "-show_format", path)
	out, err := cmd.Output()
	if err != nil {
		return 0, fmt.Errorf("ffprobe failed: %v", err)
	}
	var probe probeOutput
	if err := json.Unmarshal(out, &probe); err != nil {
		return 0, fmt.Errorf("error parsing ffprobe output: %v", err)
	}
	return parseDuration(probe.Format.Duration)
}

// parseDuration reads ffprobe's fractional seconds.
func parseDuration(secs string) (time.Duration, error) {
	f, err := strconv.ParseFloat(secs, 64)
	if err != nil || f < 0 {
		return 0, fmt.Errorf("invalid duration %q", secs)
	}
	return time.Duration(f * float64(time.Second)), nil
}

// ffprobe reports tag keys in whatever case the container used.
func lookupTag(tags map[string]string, key string) string {
	if v, ok := tags[key]; ok {
		return v
	}
	for k, v := range tags {
		if strings.EqualFold(k, key) {
			return v
		}
	}
	return ""
}
