package prober

import (
	"context"
	"fmt"
	"os"

	"github.com/asticode/go-astits"

	"github.com/jmylchreest/transcodarr/internal/codec"
)

// probeTSFallback recovers stream codec tags from a raw MPEG-TS PMT when
// ffprobe fails to parse a truncated or corrupt .ts/.m2ts file. It only goes
// as far as reading program tables — it never decodes frames, so resolution
// and framerate are left at their zero values.
func probeTSFallback(path string) (MediaSpecs, error) {
	f, err := os.Open(path)
	if err != nil {
		return MediaSpecs{}, fmt.Errorf("opening %s: %w", path, err)
	}
	defer f.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	demuxer := astits.NewDemuxer(ctx, f)

	specs := MediaSpecs{CodecNormalised: "unknown"}
	sawPMT := false

	for !sawPMT {
		data, err := demuxer.NextData()
		if err != nil {
			break
		}
		if data.PMT == nil {
			continue
		}
		sawPMT = true

		for _, es := range data.PMT.ElementaryStreams {
			streamType := uint8(es.StreamType)
			if video, ok := codec.VideoFromMPEGTSStreamType(streamType); ok && codec.IsMediacommonCodecSupported(string(video)) {
				if specs.CodecNormalised == "unknown" {
					specs.CodecNormalised = string(video)
				}
				continue
			}
			if audio, ok := codec.AudioFromMPEGTSStreamType(streamType); ok && codec.IsMediacommonCodecSupported(string(audio)) {
				specs.AudioTracks = append(specs.AudioTracks, AudioTrack{Codec: string(audio)})
			}
		}
	}

	if !sawPMT {
		return MediaSpecs{}, fmt.Errorf("no PMT found in %s", path)
	}
	return specs, nil
}
