package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jmylchreest/transcodarr/internal/models"
	"gorm.io/gorm"
)

type externalConnectionRepository struct {
	db *gorm.DB
}

// NewExternalConnectionRepository creates a new ExternalConnectionRepository.
func NewExternalConnectionRepository(db *gorm.DB) ExternalConnectionRepository {
	return &externalConnectionRepository{db: db}
}

func (r *externalConnectionRepository) Create(ctx context.Context, conn *models.ExternalConnection) error {
	if err := conn.Validate(); err != nil {
		return fmt.Errorf("validating external connection: %w", err)
	}
	return r.db.WithContext(ctx).Create(conn).Error
}

func (r *externalConnectionRepository) GetByID(ctx context.Context, id models.ULID) (*models.ExternalConnection, error) {
	var conn models.ExternalConnection
	if err := r.db.WithContext(ctx).First(&conn, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("getting external connection by id: %w", err)
	}
	return &conn, nil
}

func (r *externalConnectionRepository) GetByName(ctx context.Context, name string) (*models.ExternalConnection, error) {
	var conn models.ExternalConnection
	if err := r.db.WithContext(ctx).First(&conn, "name = ?", name).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("getting external connection by name: %w", err)
	}
	return &conn, nil
}

func (r *externalConnectionRepository) GetAll(ctx context.Context) ([]*models.ExternalConnection, error) {
	var conns []*models.ExternalConnection
	if err := r.db.WithContext(ctx).Order("name ASC").Find(&conns).Error; err != nil {
		return nil, fmt.Errorf("getting all external connections: %w", err)
	}
	return conns, nil
}

func (r *externalConnectionRepository) GetEnabled(ctx context.Context) ([]*models.ExternalConnection, error) {
	var conns []*models.ExternalConnection
	if err := r.db.WithContext(ctx).Where("enabled = ?", true).Order("name ASC").Find(&conns).Error; err != nil {
		return nil, fmt.Errorf("getting enabled external connections: %w", err)
	}
	return conns, nil
}

func (r *externalConnectionRepository) Update(ctx context.Context, conn *models.ExternalConnection) error {
	if err := conn.Validate(); err != nil {
		return fmt.Errorf("validating external connection: %w", err)
	}
	return r.db.WithContext(ctx).Save(conn).Error
}

func (r *externalConnectionRepository) Delete(ctx context.Context, id models.ULID) error {
	if err := r.db.WithContext(ctx).Where("id = ?", id).Delete(&models.ExternalConnection{}).Error; err != nil {
		return fmt.Errorf("deleting external connection: %w", err)
	}
	return nil
}

func (r *externalConnectionRepository) UpdateLastTested(ctx context.Context, id models.ULID, at time.Time) error {
	if err := r.db.WithContext(ctx).Model(&models.ExternalConnection{}).
		Where("id = ?", id).UpdateColumn("last_tested", at).Error; err != nil {
		return fmt.Errorf("updating external connection last_tested: %w", err)
	}
	return nil
}

func (r *externalConnectionRepository) UpdateLastSynced(ctx context.Context, id models.ULID, at time.Time) error {
	if err := r.db.WithContext(ctx).Model(&models.ExternalConnection{}).
		Where("id = ?", id).UpdateColumn("last_synced", at).Error; err != nil {
		return fmt.Errorf("updating external connection last_synced: %w", err)
	}
	return nil
}

var _ ExternalConnectionRepository = (*externalConnectionRepository)(nil)
