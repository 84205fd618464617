package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jmylchreest/transcodarr/internal/models"
	"gorm.io/gorm"
)

type folderWatchRepository struct {
	db *gorm.DB
}

// NewFolderWatchRepository creates a new FolderWatchRepository.
func NewFolderWatchRepository(db *gorm.DB) FolderWatchRepository {
	return &folderWatchRepository{db: db}
}

func (r *folderWatchRepository) Create(ctx context.Context, watch *models.FolderWatch) error {
	if err := watch.Validate(); err != nil {
		return fmt.Errorf("validating folder watch: %w", err)
	}
	return r.db.WithContext(ctx).Create(watch).Error
}

func (r *folderWatchRepository) GetByID(ctx context.Context, id models.ULID) (*models.FolderWatch, error) {
	var watch models.FolderWatch
	if err := r.db.WithContext(ctx).First(&watch, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("getting folder watch by id: %w", err)
	}
	return &watch, nil
}

func (r *folderWatchRepository) GetAll(ctx context.Context) ([]*models.FolderWatch, error) {
	var watches []*models.FolderWatch
	if err := r.db.WithContext(ctx).Order("path ASC").Find(&watches).Error; err != nil {
		return nil, fmt.Errorf("getting all folder watches: %w", err)
	}
	return watches, nil
}

func (r *folderWatchRepository) GetEnabled(ctx context.Context) ([]*models.FolderWatch, error) {
	var watches []*models.FolderWatch
	if err := r.db.WithContext(ctx).Where("enabled = ?", true).Order("path ASC").Find(&watches).Error; err != nil {
		return nil, fmt.Errorf("getting enabled folder watches: %w", err)
	}
	return watches, nil
}

func (r *folderWatchRepository) Update(ctx context.Context, watch *models.FolderWatch) error {
	if err := watch.Validate(); err != nil {
		return fmt.Errorf("validating folder watch: %w", err)
	}
	return r.db.WithContext(ctx).Save(watch).Error
}

func (r *folderWatchRepository) Delete(ctx context.Context, id models.ULID) error {
	if err := r.db.WithContext(ctx).Where("id = ?", id).Delete(&models.FolderWatch{}).Error; err != nil {
		return fmt.Errorf("deleting folder watch: %w", err)
	}
	return nil
}

func (r *folderWatchRepository) TouchLastCheck(ctx context.Context, id models.ULID, at time.Time) error {
	if err := r.db.WithContext(ctx).Model(&models.FolderWatch{}).
		Where("id = ?", id).UpdateColumn("last_check", at).Error; err != nil {
		return fmt.Errorf("touching folder watch last_check: %w", err)
	}
	return nil
}

func (r *folderWatchRepository) CountByProfileID(ctx context.Context, profileID models.ULID) (int64, error) {
	var count int64
	if err := r.db.WithContext(ctx).Model(&models.FolderWatch{}).
		Where("profile_id = ?", profileID).Count(&count).Error; err != nil {
		return 0, fmt.Errorf("counting folder watches by profile: %w", err)
	}
	return count, nil
}

var _ FolderWatchRepository = (*folderWatchRepository)(nil)
