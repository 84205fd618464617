package models

import (
	"gorm.io/gorm"
)

// VideoCodec is the closed enumeration of target video codecs a profile
// may request.
type VideoCodec string

const (
	VideoCodecAV1  VideoCodec = "av1"
	VideoCodecH265 VideoCodec = "h265"
	VideoCodecH264 VideoCodec = "h264"
	VideoCodecVP9  VideoCodec = "vp9"
)

func (c VideoCodec) Valid() bool {
	switch c {
	case VideoCodecAV1, VideoCodecH265, VideoCodecH264, VideoCodecVP9:
		return true
	}
	return false
}

// Container is the closed enumeration of output containers.
type Container string

const (
	ContainerMKV  Container = "mkv"
	ContainerMP4  Container = "mp4"
	ContainerWebM Container = "webm"
)

func (c Container) Valid() bool {
	switch c {
	case ContainerMKV, ContainerMP4, ContainerWebM:
		return true
	}
	return false
}

// Extension returns the filesystem extension (without leading dot) for the
// container, which is also the ffmpeg muxer format name in every case here.
func (c Container) Extension() string {
	return string(c)
}

// AudioStrategy is the closed enumeration of audio track handling policies.
type AudioStrategy string

const (
	AudioStrategyPreserveAll    AudioStrategy = "preserve_all"
	AudioStrategyKeepPrimary    AudioStrategy = "keep_primary"
	AudioStrategyStereoMixdown  AudioStrategy = "stereo_mixdown"
	AudioStrategyHDPlusAAC      AudioStrategy = "hd_plus_aac"
	AudioStrategyHighQuality    AudioStrategy = "high_quality"
)

func (s AudioStrategy) Valid() bool {
	switch s {
	case AudioStrategyPreserveAll, AudioStrategyKeepPrimary, AudioStrategyStereoMixdown,
		AudioStrategyHDPlusAAC, AudioStrategyHighQuality:
		return true
	}
	return false
}

// SubtitleStrategy is the closed enumeration of subtitle handling policies.
type SubtitleStrategy string

const (
	SubtitleStrategyPreserveAll  SubtitleStrategy = "preserve_all"
	SubtitleStrategyKeepEnglish  SubtitleStrategy = "keep_english"
	SubtitleStrategyBurnIn       SubtitleStrategy = "burn_in"
	SubtitleStrategyForeignScan  SubtitleStrategy = "foreign_scan"
	SubtitleStrategyNone         SubtitleStrategy = "none"
)

func (s SubtitleStrategy) Valid() bool {
	switch s {
	case SubtitleStrategyPreserveAll, SubtitleStrategyKeepEnglish, SubtitleStrategyBurnIn,
		SubtitleStrategyForeignScan, SubtitleStrategyNone:
		return true
	}
	return false
}

// Profile is a named encoding recipe. At most one profile may have
// IsDefault=true at any time; ProfileRepository.SetDefault
// enforces this atomically.
type Profile struct {
	BaseModel

	Name string `gorm:"uniqueIndex;not null" json:"name"`

	TargetVideoCodec VideoCodec `gorm:"type:varchar(16);not null" json:"target_video_codec"`
	Encoder          string     `gorm:"type:varchar(64)" json:"encoder"` // resolved ffmpeg encoder name, empty = auto-select
	Quality          int        `gorm:"not null;default:28" json:"quality"`
	Container        Container  `gorm:"type:varchar(8);not null;default:mkv" json:"container"`

	Resolution string  `json:"resolution,omitempty"` // "WxH", empty = unconstrained
	Framerate  float64 `json:"framerate,omitempty"`  // 0 = unconstrained

	AudioStrategy    AudioStrategy    `gorm:"type:varchar(24);not null;default:preserve_all" json:"audio_strategy"`
	SubtitleStrategy SubtitleStrategy `gorm:"type:varchar(24);not null;default:preserve_all" json:"subtitle_strategy"`

	EnableFilters   bool `json:"enable_filters"`
	ChapterMarkers  bool `json:"chapter_markers"`
	HWAccelEnabled  bool `json:"hw_accel_enabled"`
	TwoPass         bool `json:"two_pass"`

	Preset     string `json:"preset,omitempty"`
	CustomArgs string `json:"custom_args,omitempty"`

	IsDefault bool `gorm:"not null;default:false" json:"is_default"`
}

// TableName pins the table name explicitly rather than relying on GORM's
// pluralisation, matching the convention used throughout this store.
func (Profile) TableName() string {
	return "profiles"
}

// Validate checks field-level invariants. Cross-row invariants (at most one
// default) are enforced by the repository inside a transaction.
func (p *Profile) Validate() error {
	if p.Name == "" {
		return ErrNameRequired
	}
	if !p.TargetVideoCodec.Valid() {
		return ErrInvalidVideoCodec
	}
	if !p.Container.Valid() {
		return ErrInvalidContainer
	}
	if !p.AudioStrategy.Valid() {
		return ErrInvalidAudioStrategy
	}
	if !p.SubtitleStrategy.Valid() {
		return ErrInvalidSubtitleStrategy
	}
	if p.Quality < 0 || p.Quality > 51 {
		return ErrInvalidQuality
	}
	return nil
}

// BeforeCreate validates and generates the ULID via BaseModel.
func (p *Profile) BeforeCreate(tx *gorm.DB) error {
	if err := p.BaseModel.BeforeCreate(tx); err != nil {
		return err
	}
	return p.Validate()
}

// BeforeUpdate re-validates on every update.
func (p *Profile) BeforeUpdate(tx *gorm.DB) error {
	return p.Validate()
}

// TargetSpecs derives the MediaSpecs this profile aims to produce, for
// comparison against a probed file's current specs by the needs-encoding
// predicate.
func (p *Profile) TargetSpecs() MediaSpecs {
	return MediaSpecs{
		CodecNormalised: string(p.TargetVideoCodec),
		Resolution:      p.Resolution,
		Framerate:       p.Framerate,
	}
}
