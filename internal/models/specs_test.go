package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNeedsEncoding(t *testing.T) {
	target := MediaSpecs{CodecNormalised: "av1", Resolution: "1920x1080"}

	t.Run("unknown codec always needs encoding", func(t *testing.T) {
		assert.True(t, NeedsEncoding(MediaSpecs{CodecNormalised: "unknown"}, target))
		assert.True(t, NeedsEncoding(MediaSpecs{}, target))
	})

	t.Run("codec mismatch needs encoding", func(t *testing.T) {
		assert.True(t, NeedsEncoding(MediaSpecs{CodecNormalised: "h264", Resolution: "1920x1080"}, target))
	})

	t.Run("resolution mismatch needs encoding", func(t *testing.T) {
		current := MediaSpecs{CodecNormalised: "av1", Resolution: "1280x720"}
		assert.True(t, NeedsEncoding(current, target))
	})

	t.Run("already at target does not need encoding", func(t *testing.T) {
		current := MediaSpecs{CodecNormalised: "av1", Resolution: "1920x1080"}
		assert.False(t, NeedsEncoding(current, target))
	})

	t.Run("no target resolution constraint ignores resolution", func(t *testing.T) {
		looseTarget := MediaSpecs{CodecNormalised: "av1"}
		current := MediaSpecs{CodecNormalised: "av1", Resolution: "1280x720"}
		assert.False(t, NeedsEncoding(current, looseTarget))
	})
}

func TestEstimatedSavingsBytes(t *testing.T) {
	tests := []struct {
		name     string
		source   string
		target   VideoCodec
		size     int64
		expected int64
	}{
		{"av1 to av1 no savings", "av1", VideoCodecAV1, 1000, 0},
		{"h264 to av1", "h264", VideoCodecAV1, 4_000_000_000, 2_000_000_000},
		{"h264 to h265", "h264", VideoCodecH265, 1_000_000_000, 400_000_000},
		{"h264 to h264 no savings", "h264", VideoCodecH264, 1_000_000_000, 0},
		{"legacy mpeg2 to h264", "mpeg2", VideoCodecH264, 1_000_000_000, 300_000_000},
		{"unknown to h265", "unknown", VideoCodecH265, 1_000_000_000, 400_000_000},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := EstimatedSavingsBytes(tt.source, tt.target, tt.size)
			assert.Equal(t, tt.expected, got)
		})
	}
}
