package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jmylchreest/transcodarr/internal/models"
	"gorm.io/gorm"
)

type historyRepository struct {
	db *gorm.DB
}

// NewHistoryRepository creates a new HistoryRepository.
func NewHistoryRepository(db *gorm.DB) HistoryRepository {
	return &historyRepository{db: db}
}

func (r *historyRepository) Create(ctx context.Context, record *models.HistoryRecord) error {
	if err := r.db.WithContext(ctx).Create(record).Error; err != nil {
		return fmt.Errorf("creating history record: %w", err)
	}
	return nil
}

func (r *historyRepository) GetByID(ctx context.Context, id models.ULID) (*models.HistoryRecord, error) {
	var record models.HistoryRecord
	if err := r.db.WithContext(ctx).First(&record, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("getting history record by id: %w", err)
	}
	return &record, nil
}

func (r *historyRepository) List(ctx context.Context, offset, limit int) ([]*models.HistoryRecord, int64, error) {
	var records []*models.HistoryRecord
	var total int64

	query := r.db.WithContext(ctx).Model(&models.HistoryRecord{})
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("counting history records: %w", err)
	}

	if err := query.Order("completed_at DESC").Offset(offset).Limit(limit).Find(&records).Error; err != nil {
		return nil, 0, fmt.Errorf("listing history records: %w", err)
	}
	return records, total, nil
}

func (r *historyRepository) DeleteBefore(ctx context.Context, before time.Time) (int64, error) {
	result := r.db.WithContext(ctx).Where("completed_at < ?", before).Delete(&models.HistoryRecord{})
	if result.Error != nil {
		return 0, fmt.Errorf("deleting old history records: %w", result.Error)
	}
	return result.RowsAffected, nil
}

func (r *historyRepository) TotalSavingsBytes(ctx context.Context) (int64, error) {
	var total int64
	row := r.db.WithContext(ctx).Model(&models.HistoryRecord{}).
		Select("COALESCE(SUM(savings_bytes), 0)").Row()
	if err := row.Scan(&total); err != nil {
		return 0, fmt.Errorf("summing history savings: %w", err)
	}
	return total, nil
}

var _ HistoryRepository = (*historyRepository)(nil)
