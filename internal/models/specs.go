package models

import (
	"database/sql/driver"
	"encoding/json"
)

// AudioTrack describes one probed audio stream.
type AudioTrack struct {
	Codec      string `json:"codec"`
	Language   string `json:"language,omitempty"`
	Channels   int    `json:"channels"`
	SampleRate int    `json:"sample_rate"`
}

// MediaSpecs is the versioned, JSON-encoded record stored in the
// current_specs/target_specs columns. Decoding happens only at the
// persistence boundary (QueueItem's Scan/Value methods below); nothing
// downstream parses this JSON ad-hoc.
type MediaSpecs struct {
	Version         int          `json:"version"`
	CodecNormalised string       `json:"codec_normalised"`
	Resolution      string       `json:"resolution,omitempty"`
	Framerate       float64      `json:"framerate,omitempty"`
	AudioTracks     []AudioTrack `json:"audio_tracks,omitempty"`
	DurationSeconds float64      `json:"duration_s,omitempty"`
	BitRate         int64        `json:"bit_rate,omitempty"`
}

const mediaSpecsVersion = 1

// JSONColumn is a generic GORM-friendly JSON column wrapper used by
// MediaSpecsColumn and UpscalePlanColumn below.
type jsonColumn[T any] struct {
	Value T
	Set   bool
}

// MediaSpecsColumn implements driver.Valuer/sql.Scanner for a nullable
// MediaSpecs column.
type MediaSpecsColumn struct {
	Specs MediaSpecs
	Valid bool
}

func (c MediaSpecsColumn) Value() (driver.Value, error) {
	if !c.Valid {
		return nil, nil
	}
	c.Specs.Version = mediaSpecsVersion
	return json.Marshal(c.Specs)
}

func (c *MediaSpecsColumn) Scan(value any) error {
	if value == nil {
		*c = MediaSpecsColumn{}
		return nil
	}
	var raw []byte
	switch v := value.(type) {
	case []byte:
		raw = v
	case string:
		raw = []byte(v)
	default:
		return nil
	}
	if len(raw) == 0 {
		*c = MediaSpecsColumn{}
		return nil
	}
	var specs MediaSpecs
	if err := json.Unmarshal(raw, &specs); err != nil {
		return err
	}
	*c = MediaSpecsColumn{Specs: specs, Valid: true}
	return nil
}

func (MediaSpecsColumn) GormDataType() string {
	return "text"
}

// UpscalePlan is the versioned record describing a planned pre-stage
// upscale for a queue item, per 4.I of the encoding pipeline.
type UpscalePlan struct {
	Version       int     `json:"version"`
	UpscalerKey   string  `json:"upscaler_key"`
	Model         string  `json:"model"`
	Factor        float64 `json:"factor"`
	SourceHeight  int     `json:"source_height"`
	TargetHeight  int     `json:"target_height"`
}

const upscalePlanVersion = 1

// UpscalePlanColumn implements driver.Valuer/sql.Scanner for a nullable
// UpscalePlan column.
type UpscalePlanColumn struct {
	Plan  UpscalePlan
	Valid bool
}

func (c UpscalePlanColumn) Value() (driver.Value, error) {
	if !c.Valid {
		return nil, nil
	}
	c.Plan.Version = upscalePlanVersion
	return json.Marshal(c.Plan)
}

func (c *UpscalePlanColumn) Scan(value any) error {
	if value == nil {
		*c = UpscalePlanColumn{}
		return nil
	}
	var raw []byte
	switch v := value.(type) {
	case []byte:
		raw = v
	case string:
		raw = []byte(v)
	default:
		return nil
	}
	if len(raw) == 0 {
		*c = UpscalePlanColumn{}
		return nil
	}
	var plan UpscalePlan
	if err := json.Unmarshal(raw, &plan); err != nil {
		return err
	}
	*c = UpscalePlanColumn{Plan: plan, Valid: true}
	return nil
}

func (UpscalePlanColumn) GormDataType() string {
	return "text"
}

// NeedsEncoding implements the needs-encoding predicate from the error
// handling design: unknown codec, codec mismatch, or resolution mismatch
// all require encoding; otherwise the file is left alone.
func NeedsEncoding(current MediaSpecs, target MediaSpecs) bool {
	if current.CodecNormalised == "" || current.CodecNormalised == "unknown" {
		return true
	}
	if target.CodecNormalised != "" && current.CodecNormalised != target.CodecNormalised {
		return true
	}
	if target.Resolution != "" && current.Resolution != "" && target.Resolution != current.Resolution {
		return true
	}
	return false
}

// savingsFraction is the estimated-savings-by-codec-transition table from
// the scan pipeline design (4.D). The fraction is the share of the
// original size expected to be saved, not retained.
var savingsFraction = map[string]map[VideoCodec]float64{
	"av1": {
		VideoCodecAV1: 0.00,
	},
	"h265": {
		VideoCodecAV1:  0.50,
		VideoCodecH265: 0.00,
	},
	"h264": {
		VideoCodecAV1:  0.50,
		VideoCodecH265: 0.40,
		VideoCodecH264: 0.00,
	},
	"unknown": {
		VideoCodecAV1:  0.50,
		VideoCodecH265: 0.40,
		VideoCodecH264: 0.30,
	},
}

// legacyCodecs collapses mpeg2/mpeg4/xvid/wmv into the single "unknown" row
// of the savings table, per spec 4.D ("mpeg2/mpeg4/xvid/wmv" share a row).
var legacyCodecs = map[string]bool{
	"mpeg2": true,
	"mpeg4": true,
	"xvid":  true,
	"wmv":   true,
}

// EstimatedSavingsBytes computes estimated_savings_bytes for a candidate
// using the codec-transition table in 4.D. A source codec with no row of
// its own uses the "unknown" row; a target the row has no entry for (e.g.
// av1 to h265, or any vp9 target) yields zero — no savings estimate rather
// than a fabricated one.
func EstimatedSavingsBytes(sourceCodec string, target VideoCodec, fileSizeBytes int64) int64 {
	row := sourceCodec
	if legacyCodecs[row] {
		row = "unknown"
	}
	fractions, ok := savingsFraction[row]
	if !ok {
		fractions = savingsFraction["unknown"]
	}
	fraction, ok := fractions[target]
	if !ok {
		return 0
	}
	return int64(float64(fileSizeBytes) * fraction)
}
