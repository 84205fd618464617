package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jmylchreest/transcodarr/internal/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// queueItemRepository implements QueueItemRepository using GORM.
type queueItemRepository struct {
	db     *gorm.DB
	driver string // "sqlite", "postgres", or "mysql"
}

// NewQueueItemRepository creates a new QueueItemRepository.
func NewQueueItemRepository(db *gorm.DB) QueueItemRepository {
	driver := ""
	if db.Dialector != nil {
		driver = db.Dialector.Name()
	}
	return &queueItemRepository{db: db, driver: driver}
}

func (r *queueItemRepository) Create(ctx context.Context, item *models.QueueItem) error {
	if err := r.db.WithContext(ctx).Create(item).Error; err != nil {
		return fmt.Errorf("creating queue item: %w", err)
	}
	return nil
}

func (r *queueItemRepository) GetByID(ctx context.Context, id models.ULID) (*models.QueueItem, error) {
	var item models.QueueItem
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&item).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("getting queue item by id: %w", err)
	}
	return &item, nil
}

func (r *queueItemRepository) GetAll(ctx context.Context) ([]*models.QueueItem, error) {
	var items []*models.QueueItem
	if err := r.db.WithContext(ctx).Order("priority DESC, created_at ASC").Find(&items).Error; err != nil {
		return nil, fmt.Errorf("getting all queue items: %w", err)
	}
	return items, nil
}

func (r *queueItemRepository) GetByStatus(ctx context.Context, status models.QueueItemStatus) ([]*models.QueueItem, error) {
	var items []*models.QueueItem
	if err := r.db.WithContext(ctx).Where("status = ?", status).
		Order("priority DESC, created_at ASC").Find(&items).Error; err != nil {
		return nil, fmt.Errorf("getting queue items by status: %w", err)
	}
	return items, nil
}

// FindActiveByPath returns the non-terminal item for a path, enforcing the
// one-non-terminal-item-per-path invariant before insert.
func (r *queueItemRepository) FindActiveByPath(ctx context.Context, filePath string) (*models.QueueItem, error) {
	var item models.QueueItem
	err := r.db.WithContext(ctx).
		Where("file_path = ? AND status NOT IN (?, ?)", filePath, models.StatusCompleted, models.StatusFailed).
		First(&item).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("finding active queue item by path: %w", err)
	}
	return &item, nil
}

func (r *queueItemRepository) Update(ctx context.Context, item *models.QueueItem) error {
	if err := r.db.WithContext(ctx).Save(item).Error; err != nil {
		return fmt.Errorf("updating queue item: %w", err)
	}
	return nil
}

func (r *queueItemRepository) Delete(ctx context.Context, id models.ULID) error {
	if err := r.db.WithContext(ctx).Where("id = ?", id).Delete(&models.QueueItem{}).Error; err != nil {
		return fmt.Errorf("deleting queue item: %w", err)
	}
	return nil
}

func (r *queueItemRepository) DeleteCompletedBefore(ctx context.Context, before time.Time) (int64, error) {
	result := r.db.WithContext(ctx).
		Where("status IN (?, ?) AND completed_at < ?", models.StatusCompleted, models.StatusFailed, before).
		Delete(&models.QueueItem{})
	if result.Error != nil {
		return 0, fmt.Errorf("deleting completed queue items: %w", result.Error)
	}
	return result.RowsAffected, nil
}

// ClaimNextPending atomically claims a pending item, dispatching by driver
// since SQLite has no row locking.
func (r *queueItemRepository) ClaimNextPending(ctx context.Context, workerID string) (*models.QueueItem, error) {
	if r.driver == "sqlite" {
		return r.claimSQLite(ctx, workerID)
	}
	return r.claimWithRowLocking(ctx, workerID)
}

func (r *queueItemRepository) claimWithRowLocking(ctx context.Context, workerID string) (*models.QueueItem, error) {
	var item models.QueueItem

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		query := tx.
			Clauses(clause.Locking{Strength: "UPDATE", Options: "SKIP LOCKED"}).
			Where("status = ?", models.StatusPending).
			Order("priority DESC, created_at ASC").
			Limit(1)

		if err := query.First(&item).Error; err != nil {
			return err
		}

		item.MarkProcessing(workerID)
		if err := tx.Save(&item).Error; err != nil {
			return fmt.Errorf("claiming queue item: %w", err)
		}
		return nil
	})

	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &item, nil
}

// claimSQLite finds and claims a pending item with a single atomic UPDATE,
// avoiding the SELECT-then-UPDATE race since SQLite offers no row locking.
func (r *queueItemRepository) claimSQLite(ctx context.Context, workerID string) (*models.QueueItem, error) {
	now := models.Now()

	subQuery := r.db.Model(&models.QueueItem{}).
		Select("id").
		Where("status = ?", models.StatusPending).
		Order("priority DESC, created_at ASC").
		Limit(1)

	result := r.db.WithContext(ctx).
		Model(&models.QueueItem{}).
		Where("id = (?)", subQuery).
		UpdateColumns(map[string]any{
			"status":     models.StatusProcessing,
			"started_at": now,
			"locked_by":  workerID,
			"locked_at":  now,
		})

	if result.Error != nil {
		return nil, fmt.Errorf("claiming queue item: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return nil, nil
	}

	var item models.QueueItem
	err := r.db.WithContext(ctx).
		Where("locked_by = ? AND status = ?", workerID, models.StatusProcessing).
		Order("locked_at DESC").
		First(&item).Error
	if err != nil {
		return nil, fmt.Errorf("fetching claimed queue item: %w", err)
	}
	return &item, nil
}

// RenumberByEstimatedSavings advisorially reorders pending items by
// estimated savings, largest first. It runs outside the claim transaction
// and is therefore best-effort, never a consistency guarantee.
func (r *queueItemRepository) RenumberByEstimatedSavings(ctx context.Context) error {
	var items []*models.QueueItem
	if err := r.db.WithContext(ctx).
		Where("status = ?", models.StatusPending).
		Order("estimated_savings_bytes DESC").
		Find(&items).Error; err != nil {
		return fmt.Errorf("loading pending items for renumber: %w", err)
	}

	const maxPriority = 100
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for i, item := range items {
			priority := maxPriority - i
			if priority < 1 {
				priority = 1
			}
			if err := tx.Model(&models.QueueItem{}).
				Where("id = ?", item.ID).
				UpdateColumn("priority", priority).Error; err != nil {
				return fmt.Errorf("renumbering queue item %s: %w", item.ID, err)
			}
		}
		return nil
	})
}

// ReleaseStaleLocks clears locks older than cutoff, returning items to
// pending so a restarted pool can reclaim work orphaned by a crash.
func (r *queueItemRepository) ReleaseStaleLocks(ctx context.Context, cutoff time.Time) (int64, error) {
	result := r.db.WithContext(ctx).
		Model(&models.QueueItem{}).
		Where("status IN (?, ?) AND locked_at < ?", models.StatusProcessing, models.StatusPaused, cutoff).
		UpdateColumns(map[string]any{
			"status":    models.StatusPending,
			"locked_by": nil,
			"locked_at": nil,
		})
	if result.Error != nil {
		return 0, fmt.Errorf("releasing stale locks: %w", result.Error)
	}
	return result.RowsAffected, nil
}

func (r *queueItemRepository) CountByStatus(ctx context.Context, status models.QueueItemStatus) (int64, error) {
	var count int64
	if err := r.db.WithContext(ctx).Model(&models.QueueItem{}).
		Where("status = ?", status).Count(&count).Error; err != nil {
		return 0, fmt.Errorf("counting queue items by status: %w", err)
	}
	return count, nil
}

var _ QueueItemRepository = (*queueItemRepository)(nil)
