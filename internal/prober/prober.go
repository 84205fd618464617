// Package prober derives normalised media specifications for files in the
// scan and watch pipelines, preferring ffprobe and falling back to a raw
// MPEG-TS demux for containers ffprobe can't parse.
package prober

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/jmylchreest/transcodarr/internal/codec"
	"github.com/jmylchreest/transcodarr/internal/ffmpeg"
)

// AudioTrack describes one demuxed audio stream.
type AudioTrack struct {
	Codec      string
	Language   string
	Channels   int
	SampleRate int
}

// MediaSpecs is the normalised contract every probe strategy produces.
type MediaSpecs struct {
	CodecNormalised string
	Resolution      string // "WxH", empty if unknown
	Framerate       float64
	AudioTracks     []AudioTrack
	DurationSeconds float64
	BitRate         int64
}

// tsExtensions lists containers the TS fallback strategy applies to.
var tsExtensions = map[string]bool{
	".ts":   true,
	".m2ts": true,
	".mts":  true,
}

// Prober wraps the low-level ffprobe client with codec normalisation and a
// raw-demux fallback for MPEG-TS files ffprobe fails to parse.
type Prober struct {
	ffprobe *ffmpeg.Prober
	logger  *slog.Logger
}

// New creates a Prober using the given ffprobe binary path.
func New(ffprobePath string, logger *slog.Logger) *Prober {
	return &Prober{
		ffprobe: ffmpeg.NewProber(ffprobePath),
		logger:  logger,
	}
}

// Probe derives MediaSpecs for path. ffprobe is tried first; if it fails and
// path has a recognised MPEG-TS extension, a raw stream-type scan is
// attempted. If both fail, CodecNormalised is "unknown" and err is nil — an
// unreadable file is a scan fact, not a probe error.
func (p *Prober) Probe(ctx context.Context, path string) (MediaSpecs, error) {
	result, err := p.ffprobe.Probe(ctx, path)
	if err == nil {
		return p.fromFFprobe(result), nil
	}
	p.logger.Debug("ffprobe failed, considering fallback", "path", path, "error", err)

	ext := strings.ToLower(filepath.Ext(path))
	if tsExtensions[ext] {
		specs, fbErr := probeTSFallback(path)
		if fbErr == nil {
			return specs, nil
		}
		p.logger.Debug("ts fallback probe failed", "path", path, "error", fbErr)
	}

	return MediaSpecs{CodecNormalised: "unknown"}, nil
}

func (p *Prober) fromFFprobe(result *ffmpeg.ProbeResult) MediaSpecs {
	specs := MediaSpecs{
		CodecNormalised: "unknown",
		DurationSeconds: float64(result.Duration()) / 1000.0,
		BitRate:         int64(result.Bitrate()),
	}

	if v := result.GetVideoStream(); v != nil {
		specs.CodecNormalised = NormalizeCodec(v.CodecName)
		if v.Width > 0 && v.Height > 0 {
			specs.Resolution = fmt.Sprintf("%dx%d", v.Width, v.Height)
		}
		specs.Framerate = preferredFramerate(v)
	}

	for _, s := range result.GetStreamsByType("audio") {
		track := AudioTrack{
			Codec:    NormalizeCodec(s.CodecName),
			Channels: s.Channels,
		}
		if lang, ok := s.Tags["language"]; ok {
			track.Language = lang
		}
		if sr, err := strconv.Atoi(s.SampleRate); err == nil {
			track.SampleRate = sr
		}
		specs.AudioTracks = append(specs.AudioTracks, track)
	}

	return specs
}

// preferredFramerate prefers r_frame_rate over avg_frame_rate per the
// canonical rational contract, rounded to 3 decimal places. "0/0" is never a
// valid rate and is rejected.
func preferredFramerate(v *ffmpeg.ProbeStream) float64 {
	if rate, ok := parseRational(v.RFrameRate); ok {
		return round3(rate)
	}
	if rate, ok := parseRational(v.AvgFrameRate); ok {
		return round3(rate)
	}
	return 0
}

func parseRational(s string) (float64, bool) {
	if s == "" || s == "0/0" {
		return 0, false
	}
	parts := strings.Split(s, "/")
	if len(parts) != 2 {
		f, err := strconv.ParseFloat(s, 64)
		return f, err == nil
	}
	num, err1 := strconv.ParseFloat(parts[0], 64)
	den, err2 := strconv.ParseFloat(parts[1], 64)
	if err1 != nil || err2 != nil || den == 0 {
		return 0, false
	}
	return num / den, true
}

func round3(f float64) float64 {
	return float64(int64(f*1000+0.5)) / 1000
}

// NormalizeCodec maps a raw codec/encoder string to its canonical form using
// the shared codec registry the Encoder Supervisor also keys off of, so
// probe output and profile targets always compare on the same strings.
func NormalizeCodec(raw string) string {
	if raw == "" {
		return "unknown"
	}
	normalised := codec.Normalize(raw)
	if normalised == "" {
		return "unknown"
	}
	return strings.ToLower(normalised)
}
