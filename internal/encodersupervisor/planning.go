package encodersupervisor

import (
	"fmt"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/jmylchreest/transcodarr/internal/codec"
	"github.com/jmylchreest/transcodarr/internal/ffmpeg"
	"github.com/jmylchreest/transcodarr/internal/models"
)

// jobPlan is the outcome of planning one queue item's encode: the ffmpeg
// command ready to run, where it writes to, where the finished file lands,
// and the source duration needed to translate progress into a percentage.
type jobPlan struct {
	command               *ffmpeg.Command
	outputPath            string
	finalPath             string
	sourceDurationSeconds float64
}

// plan builds the ffmpeg invocation for item under profile, reading from
// sourcePath (the original file, or the Upscale Pre-stage's intermediate
// when one was produced). The output path is a sibling of the *original*
// file (`_optimized` suffix, target extension); finalPath is the original
// stem with the target extension, the name the output takes after a
// successful finalise — both always derive from item.FilePath regardless
// of sourcePath, since the intermediate is scratch space that gets deleted.
func (j *Job) plan(item *models.QueueItem, profile *models.Profile, sourcePath string) (*jobPlan, error) {
	if item.FilePath == "" {
		return nil, fmt.Errorf("queue item has no file path")
	}

	hw := codec.HWAccelNone
	if profile.HWAccelEnabled {
		for _, candidate := range j.deps.HWAccelPriority {
			if candidate != codec.HWAccelNone && candidate != "" {
				hw = candidate
				break
			}
		}
	}

	videoCodec := codec.Video(profile.TargetVideoCodec)
	videoEncoder := codec.GetVideoEncoder(videoCodec, hw)

	ext := "." + profile.Container.Extension()
	stem := strings.TrimSuffix(item.FilePath, filepath.Ext(item.FilePath))
	outputPath := stem + "_optimized" + ext
	finalPath := stem + ext

	builder := ffmpeg.NewCommandBuilder(j.deps.FFmpegBinary).
		HideBanner().
		Overwrite().
		Stats().
		Input(sourcePath).
		VideoCodec(videoEncoder)

	if hw != codec.HWAccelNone {
		builder.HWAccel(string(hw))
	}
	if profile.Preset != "" {
		builder.VideoPreset(profile.Preset)
	}
	builder.OutputArgs("-crf", strconv.Itoa(profile.Quality))

	var tracks []models.AudioTrack
	if item.CurrentSpecs.Valid {
		tracks = item.CurrentSpecs.Specs.AudioTracks
	}
	builder.OutputArgs(audioArgs(profile.AudioStrategy, tracks)...)

	if profile.SubtitleStrategy == models.SubtitleStrategyBurnIn {
		builder.VideoFilter(fmt.Sprintf("subtitles=%s", sourcePath))
	} else {
		builder.OutputArgs(subtitleArgs(profile.SubtitleStrategy, profile.Container)...)
	}

	if profile.EnableFilters {
		builder.VideoFilter("bwdif").VideoFilter("hqdn3d=2:1:2:1").VideoFilter("cropdetect")
	}
	if profile.ChapterMarkers {
		builder.OutputArgs("-map_chapters", "0")
	}
	if profile.TwoPass {
		builder.OutputArgs("-pass", "1")
	}
	if profile.CustomArgs != "" {
		validation := ffmpeg.ValidateCustomFlags("", profile.CustomArgs, "")
		if !validation.Valid {
			return nil, fmt.Errorf("profile %q has invalid custom_args: %s", profile.Name, strings.Join(validation.Errors, "; "))
		}
		builder.ApplyCustomOutputOptions(profile.CustomArgs)
	}
	builder.Output(outputPath)

	duration := 0.0
	if item.CurrentSpecs.Valid {
		duration = item.CurrentSpecs.Specs.DurationSeconds
	}

	return &jobPlan{
		command:               builder.Build(),
		outputPath:            outputPath,
		finalPath:             finalPath,
		sourceDurationSeconds: duration,
	}, nil
}

// audioArgs composes the ffmpeg output arguments for each audio strategy
// per the profile's strategy table.
func audioArgs(strategy models.AudioStrategy, tracks []models.AudioTrack) []string {
	switch strategy {
	case models.AudioStrategyPreserveAll:
		n := len(tracks)
		if n == 0 || n > 10 {
			n = 10
		}
		var args []string
		for i := 0; i < n; i++ {
			args = append(args, "-map", fmt.Sprintf("0:a:%d?", i), fmt.Sprintf("-c:a:%d", i), "copy")
		}
		return args
	case models.AudioStrategyKeepPrimary:
		return []string{"-map", "0:a:0?", "-c:a:0", primaryAudioCodec(tracks)}
	case models.AudioStrategyStereoMixdown:
		return []string{
			"-map", "0:a:0?", "-c:a:0", codec.GetAudioEncoder(codec.AudioAAC),
			"-b:a:0", "192k", "-ac:0", "2",
		}
	case models.AudioStrategyHDPlusAAC:
		return []string{
			"-map", "0:a:0?", "-c:a:0", "copy",
			"-map", "0:a:0?", "-c:a:1", codec.GetAudioEncoder(codec.AudioAAC),
			"-b:a:1", "192k", "-ac:1", "2",
		}
	case models.AudioStrategyHighQuality:
		return []string{
			"-map", "0:a:0?", "-c:a:0", codec.GetAudioEncoder(codec.AudioAAC),
			"-b:a:0", "256k", "-ac:0", "2",
		}
	default:
		return []string{"-map", "0:a?", "-c:a", "copy"}
	}
}

// primaryAudioCodec resolves keep_primary's codec mapping: a known passthrough
// codec is re-encoded to its mapped target, anything else copied verbatim.
func primaryAudioCodec(tracks []models.AudioTrack) string {
	if len(tracks) == 0 {
		return codec.GetAudioEncoder(codec.AudioAAC)
	}
	switch strings.ToLower(tracks[0].Codec) {
	case "aac":
		return codec.GetAudioEncoder(codec.AudioAAC)
	case "opus":
		return codec.GetAudioEncoder(codec.AudioOpus)
	case "ac3":
		return codec.GetAudioEncoder(codec.AudioAC3)
	case "flac":
		return codec.GetAudioEncoder(codec.AudioFLAC)
	default:
		return "copy"
	}
}

// subtitleArgs composes the ffmpeg output arguments for each subtitle
// strategy, except burn_in which plan() applies as a video filter instead.
func subtitleArgs(strategy models.SubtitleStrategy, container models.Container) []string {
	switch strategy {
	case models.SubtitleStrategyPreserveAll:
		args := []string{"-map", "0:s?", "-c:s", "copy"}
		if container == models.ContainerMP4 {
			args = append(args, "-default_mode", "infer_no_subs")
		}
		return args
	case models.SubtitleStrategyKeepEnglish:
		return []string{"-map", "0:s:m:language:eng?", "-c:s", "copy"}
	case models.SubtitleStrategyForeignScan:
		return []string{"-map", "0:s?", "-c:s", "copy", "-disposition:s", "forced"}
	case models.SubtitleStrategyNone:
		return []string{"-sn"}
	default:
		return nil
	}
}

// percentFromTime translates an ffmpeg progress timestamp into an overall
// percentage given the source's total duration; returns 0 when the
// duration is unknown rather than dividing by zero.
func percentFromTime(elapsedSeconds, totalSeconds float64) float64 {
	if totalSeconds <= 0 {
		return 0
	}
	pct := elapsedSeconds / totalSeconds * 100
	if pct < 0 {
		return 0
	}
	if pct > 100 {
		return 100
	}
	return pct
}
