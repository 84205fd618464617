package models

import "gorm.io/gorm"

// ScanRoot is an absolute directory the system is allowed to enumerate for
// candidate files.
type ScanRoot struct {
	BaseModel

	Path        string `gorm:"uniqueIndex;not null" json:"path"`
	ProfileID   ULID   `gorm:"type:varchar(26);not null;index" json:"profile_id"`
	Recursive   bool   `gorm:"not null;default:true" json:"recursive"`
	Enabled     bool   `gorm:"not null;default:true" json:"enabled"`
	LibraryType string `gorm:"type:varchar(32)" json:"library_type,omitempty"`

	UpscaleEnabled           bool    `json:"upscale_enabled"`
	UpscaleTriggerBelowHeight int    `json:"upscale_trigger_below_height,omitempty"`
	UpscaleTargetHeight       int    `json:"upscale_target_height,omitempty"`
	UpscaleModel              string `json:"upscale_model,omitempty"`
	UpscaleFactor              float64 `json:"upscale_factor,omitempty"`
}

func (ScanRoot) TableName() string {
	return "scan_roots"
}

func (r *ScanRoot) Validate() error {
	if r.Path == "" {
		return ErrRootPathRequired
	}
	if r.ProfileID.IsZero() {
		return ErrProfileIDRequired
	}
	return nil
}

func (r *ScanRoot) BeforeCreate(tx *gorm.DB) error {
	if err := r.BaseModel.BeforeCreate(tx); err != nil {
		return err
	}
	return r.Validate()
}

func (r *ScanRoot) BeforeUpdate(tx *gorm.DB) error {
	return r.Validate()
}

// UpscalePolicy builds an UpscalePlan skeleton (missing the probed source
// height, filled in by the scan pipeline once the file has been probed)
// when this root has upscaling enabled.
func (r *ScanRoot) UpscalePolicy() (UpscalePlan, bool) {
	if !r.UpscaleEnabled {
		return UpscalePlan{}, false
	}
	return UpscalePlan{
		Model:        r.UpscaleModel,
		Factor:       r.UpscaleFactor,
		TargetHeight: r.UpscaleTargetHeight,
	}, true
}
