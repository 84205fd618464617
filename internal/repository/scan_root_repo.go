package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jmylchreest/transcodarr/internal/models"
	"gorm.io/gorm"
)

type scanRootRepository struct {
	db *gorm.DB
}

// NewScanRootRepository creates a new ScanRootRepository.
func NewScanRootRepository(db *gorm.DB) ScanRootRepository {
	return &scanRootRepository{db: db}
}

func (r *scanRootRepository) Create(ctx context.Context, root *models.ScanRoot) error {
	if err := r.db.WithContext(ctx).Create(root).Error; err != nil {
		return fmt.Errorf("creating scan root: %w", err)
	}
	return nil
}

func (r *scanRootRepository) GetByID(ctx context.Context, id models.ULID) (*models.ScanRoot, error) {
	var root models.ScanRoot
	if err := r.db.WithContext(ctx).First(&root, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("getting scan root by id: %w", err)
	}
	return &root, nil
}

func (r *scanRootRepository) GetByPath(ctx context.Context, path string) (*models.ScanRoot, error) {
	var root models.ScanRoot
	if err := r.db.WithContext(ctx).First(&root, "path = ?", path).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("getting scan root by path: %w", err)
	}
	return &root, nil
}

func (r *scanRootRepository) GetAll(ctx context.Context) ([]*models.ScanRoot, error) {
	var roots []*models.ScanRoot
	if err := r.db.WithContext(ctx).Order("path ASC").Find(&roots).Error; err != nil {
		return nil, fmt.Errorf("getting all scan roots: %w", err)
	}
	return roots, nil
}

func (r *scanRootRepository) GetEnabled(ctx context.Context) ([]*models.ScanRoot, error) {
	var roots []*models.ScanRoot
	if err := r.db.WithContext(ctx).Where("enabled = ?", true).Order("path ASC").Find(&roots).Error; err != nil {
		return nil, fmt.Errorf("getting enabled scan roots: %w", err)
	}
	return roots, nil
}

func (r *scanRootRepository) Update(ctx context.Context, root *models.ScanRoot) error {
	if err := r.db.WithContext(ctx).Save(root).Error; err != nil {
		return fmt.Errorf("updating scan root: %w", err)
	}
	return nil
}

func (r *scanRootRepository) Delete(ctx context.Context, id models.ULID) error {
	if err := r.db.WithContext(ctx).Where("id = ?", id).Delete(&models.ScanRoot{}).Error; err != nil {
		return fmt.Errorf("deleting scan root: %w", err)
	}
	return nil
}

func (r *scanRootRepository) CountByProfileID(ctx context.Context, profileID models.ULID) (int64, error) {
	var count int64
	if err := r.db.WithContext(ctx).Model(&models.ScanRoot{}).
		Where("profile_id = ?", profileID).Count(&count).Error; err != nil {
		return 0, fmt.Errorf("counting scan roots by profile: %w", err)
	}
	return count, nil
}

var _ ScanRootRepository = (*scanRootRepository)(nil)
