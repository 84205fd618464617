package prober

import (
	"testing"

	"github.com/jmylchreest/transcodarr/internal/ffmpeg"
	"github.com/stretchr/testify/assert"
)

func TestNormalizeCodec(t *testing.T) {
	cases := map[string]string{
		"av01":    "av1",
		"hevc":    "h265",
		"x265":    "h265",
		"h.265":   "h265",
		"avc":     "h264",
		"x264":    "h264",
		"vp09":    "vp9",
		"vp8":     "vp8",
		"xvid":    "mpeg4",
		"divx":    "mpeg4",
		"mpeg-2":  "mpeg2",
		"wmv3":    "wmv",
		"totally-unknown-thing": "totally-unknown-thing",
	}
	for input, want := range cases {
		assert.Equal(t, want, NormalizeCodec(input), "input=%s", input)
	}
}

func TestNormalizeCodec_Empty(t *testing.T) {
	assert.Equal(t, "unknown", NormalizeCodec(""))
}

func TestParseRational(t *testing.T) {
	v, ok := parseRational("30000/1001")
	assert.True(t, ok)
	assert.InDelta(t, 29.970, v, 0.001)

	_, ok = parseRational("0/0")
	assert.False(t, ok)

	_, ok = parseRational("")
	assert.False(t, ok)

	v, ok = parseRational("25")
	assert.True(t, ok)
	assert.Equal(t, 25.0, v)
}

func TestPreferredFramerate_PrefersRFrameRate(t *testing.T) {
	stream := &ffmpeg.ProbeStream{
		RFrameRate:   "24000/1001",
		AvgFrameRate: "24/1",
	}
	rate := preferredFramerate(stream)
	assert.InDelta(t, 23.976, rate, 0.001)
}

func TestPreferredFramerate_FallsBackToAvg(t *testing.T) {
	stream := &ffmpeg.ProbeStream{
		RFrameRate:   "0/0",
		AvgFrameRate: "25/1",
	}
	rate := preferredFramerate(stream)
	assert.Equal(t, 25.0, rate)
}

func TestFromFFprobe_BuildsResolutionAndTracks(t *testing.T) {
	p := &Prober{}
	result := &ffmpeg.ProbeResult{
		Format: ffmpeg.ProbeFormat{Duration: "120.5", BitRate: "4000000"},
		Streams: []ffmpeg.ProbeStream{
			{CodecType: "video", CodecName: "h264", Width: 1920, Height: 1080, RFrameRate: "25/1"},
			{CodecType: "audio", CodecName: "aac", Channels: 2, SampleRate: "48000", Tags: map[string]string{"language": "eng"}},
		},
	}

	specs := p.fromFFprobe(result)
	assert.Equal(t, "h264", specs.CodecNormalised)
	assert.Equal(t, "1920x1080", specs.Resolution)
	assert.Equal(t, 25.0, specs.Framerate)
	assert.InDelta(t, 120.5, specs.DurationSeconds, 0.01)
	assert.Equal(t, int64(4000000), specs.BitRate)

	if assert.Len(t, specs.AudioTracks, 1) {
		assert.Equal(t, "aac", specs.AudioTracks[0].Codec)
		assert.Equal(t, "eng", specs.AudioTracks[0].Language)
		assert.Equal(t, 2, specs.AudioTracks[0].Channels)
		assert.Equal(t, 48000, specs.AudioTracks[0].SampleRate)
	}
}
