package encodersupervisor

import (
	"io"
	"log/slog"
	"path/filepath"
	"testing"

	"github.com/jmylchreest/transcodarr/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testProfile() *models.Profile {
	return &models.Profile{
		BaseModel:        models.BaseModel{ID: models.NewULID()},
		Name:             "default",
		TargetVideoCodec: models.VideoCodecAV1,
		Quality:          28,
		Container:        models.ContainerMKV,
		AudioStrategy:    models.AudioStrategyPreserveAll,
		SubtitleStrategy: models.SubtitleStrategyPreserveAll,
	}
}

func TestPlan_OutputAndFinalPathsDeriveFromSourceStem(t *testing.T) {
	j := &Job{deps: Dependencies{FFmpegBinary: "ffmpeg"}}
	item := &models.QueueItem{FilePath: filepath.Join("/media", "movie.mkv")}
	profile := testProfile()

	plan, err := j.plan(item, profile, item.FilePath)
	require.NoError(t, err)

	assert.Equal(t, filepath.Join("/media", "movie_optimized.mkv"), plan.outputPath)
	assert.Equal(t, filepath.Join("/media", "movie.mkv"), plan.finalPath)
}

func TestPlan_RespectsTargetContainerExtension(t *testing.T) {
	j := &Job{deps: Dependencies{FFmpegBinary: "ffmpeg"}}
	item := &models.QueueItem{FilePath: "/media/show.mkv"}
	profile := testProfile()
	profile.Container = models.ContainerMP4

	plan, err := j.plan(item, profile, item.FilePath)
	require.NoError(t, err)

	assert.Equal(t, "/media/show_optimized.mp4", plan.outputPath)
	assert.Equal(t, "/media/show.mp4", plan.finalPath)
}

func TestPlan_AppliesCustomArgsLast(t *testing.T) {
	j := &Job{deps: Dependencies{FFmpegBinary: "ffmpeg"}}
	item := &models.QueueItem{FilePath: "/media/show.mkv"}
	profile := testProfile()
	profile.CustomArgs = "-map_metadata -1"

	plan, err := j.plan(item, profile, item.FilePath)
	require.NoError(t, err)

	args := plan.command.Args
	require.NotEmpty(t, args)
	assert.Equal(t, "-map_metadata", args[len(args)-3])
	assert.Equal(t, "-1", args[len(args)-2])
}

func TestPlan_MissingFilePathFails(t *testing.T) {
	j := &Job{deps: Dependencies{FFmpegBinary: "ffmpeg"}}
	_, err := j.plan(&models.QueueItem{}, testProfile(), "")
	assert.Error(t, err)
}

func TestAudioArgs_PreserveAllMapsEveryTrackAsCopy(t *testing.T) {
	tracks := []models.AudioTrack{{Codec: "aac"}, {Codec: "ac3"}}
	args := audioArgs(models.AudioStrategyPreserveAll, tracks)
	assert.Contains(t, args, "0:a:0?")
	assert.Contains(t, args, "0:a:1?")
	assert.NotContains(t, args, "0:a:2?")
}

func TestAudioArgs_StereoMixdownForcesTwoChannels(t *testing.T) {
	args := audioArgs(models.AudioStrategyStereoMixdown, nil)
	assert.Contains(t, args, "-ac:0")
	assert.Contains(t, args, "2")
}

func TestAudioArgs_HDPlusAACMapsPrimaryTwice(t *testing.T) {
	args := audioArgs(models.AudioStrategyHDPlusAAC, nil)
	count := 0
	for _, a := range args {
		if a == "0:a:0?" {
			count++
		}
	}
	assert.Equal(t, 2, count)
}

func TestSubtitleArgs_NoneDisablesSubtitles(t *testing.T) {
	args := subtitleArgs(models.SubtitleStrategyNone, models.ContainerMKV)
	assert.Equal(t, []string{"-sn"}, args)
}

func TestSubtitleArgs_PreserveAllForcesInferNoSubsOnMP4(t *testing.T) {
	args := subtitleArgs(models.SubtitleStrategyPreserveAll, models.ContainerMP4)
	assert.Contains(t, args, "-default_mode")
}

func TestPercentFromTime_ZeroDurationReturnsZero(t *testing.T) {
	assert.Equal(t, 0.0, percentFromTime(30, 0))
}

func TestPercentFromTime_ClampsToHundred(t *testing.T) {
	assert.Equal(t, 100.0, percentFromTime(200, 100))
}

func TestPercentFromTime_ComputesFraction(t *testing.T) {
	assert.InDelta(t, 50.0, percentFromTime(50, 100), 0.001)
}
