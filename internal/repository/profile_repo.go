// Package repository provides data access implementations.
package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jmylchreest/transcodarr/internal/models"
	"gorm.io/gorm"
)

// profileRepository implements ProfileRepository using GORM.
type profileRepository struct {
	db *gorm.DB
}

// NewProfileRepository creates a new ProfileRepository.
func NewProfileRepository(db *gorm.DB) ProfileRepository {
	return &profileRepository{db: db}
}

func (r *profileRepository) Create(ctx context.Context, profile *models.Profile) error {
	if err := profile.Validate(); err != nil {
		return fmt.Errorf("validating profile: %w", err)
	}
	return r.db.WithContext(ctx).Create(profile).Error
}

func (r *profileRepository) GetByID(ctx context.Context, id models.ULID) (*models.Profile, error) {
	var profile models.Profile
	if err := r.db.WithContext(ctx).First(&profile, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &profile, nil
}

func (r *profileRepository) GetByName(ctx context.Context, name string) (*models.Profile, error) {
	var profile models.Profile
	if err := r.db.WithContext(ctx).First(&profile, "name = ?", name).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &profile, nil
}

func (r *profileRepository) GetAll(ctx context.Context) ([]*models.Profile, error) {
	var profiles []*models.Profile
	if err := r.db.WithContext(ctx).Order("is_default DESC, name ASC").Find(&profiles).Error; err != nil {
		return nil, err
	}
	return profiles, nil
}

func (r *profileRepository) GetDefault(ctx context.Context) (*models.Profile, error) {
	var profile models.Profile
	if err := r.db.WithContext(ctx).First(&profile, "is_default = ?", true).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &profile, nil
}

func (r *profileRepository) Update(ctx context.Context, profile *models.Profile) error {
	if err := profile.Validate(); err != nil {
		return fmt.Errorf("validating profile: %w", err)
	}
	return r.db.WithContext(ctx).Save(profile).Error
}

// Delete refuses deletion while the profile is referenced by a scan root, a
// folder watch, or a non-terminal queue item.
func (r *profileRepository) Delete(ctx context.Context, id models.ULID) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var refCount int64
		if err := tx.Model(&models.QueueItem{}).
			Where("profile_id = ? AND status NOT IN (?, ?)", id, models.StatusCompleted, models.StatusFailed).
			Count(&refCount).Error; err != nil {
			return err
		}
		if refCount > 0 {
			return models.ErrProfileInUse
		}

		if err := tx.Model(&models.ScanRoot{}).Where("profile_id = ?", id).Count(&refCount).Error; err != nil {
			return err
		}
		if refCount > 0 {
			return models.ErrProfileInUse
		}

		if err := tx.Model(&models.FolderWatch{}).Where("profile_id = ?", id).Count(&refCount).Error; err != nil {
			return err
		}
		if refCount > 0 {
			return models.ErrProfileInUse
		}

		return tx.Unscoped().Delete(&models.Profile{}, "id = ?", id).Error
	})
}

func (r *profileRepository) Count(ctx context.Context) (int64, error) {
	var count int64
	if err := r.db.WithContext(ctx).Model(&models.Profile{}).Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

// SetDefault sets a profile as the default, unsetting the previous one in
// the same transaction so exactly one profile is ever default.
func (r *profileRepository) SetDefault(ctx context.Context, id models.ULID) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&models.Profile{}).
			Where("is_default = ?", true).
			UpdateColumn("is_default", false).Error; err != nil {
			return err
		}
		result := tx.Model(&models.Profile{}).
			Where("id = ?", id).
			UpdateColumn("is_default", true)
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return gorm.ErrRecordNotFound
		}
		return nil
	})
}

var _ ProfileRepository = (*profileRepository)(nil)
