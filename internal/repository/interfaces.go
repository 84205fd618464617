// Package repository defines data access interfaces for transcodarr entities.
// All database access goes through these interfaces, enabling easy testing
// and database backend switching.
package repository

import (
	"context"
	"time"

	"github.com/jmylchreest/transcodarr/internal/models"
)

// ProfileRepository defines operations for encoding profile persistence.
type ProfileRepository interface {
	Create(ctx context.Context, profile *models.Profile) error
	GetByID(ctx context.Context, id models.ULID) (*models.Profile, error)
	GetByName(ctx context.Context, name string) (*models.Profile, error)
	GetAll(ctx context.Context) ([]*models.Profile, error)
	GetDefault(ctx context.Context) (*models.Profile, error)
	Update(ctx context.Context, profile *models.Profile) error
	// Delete refuses to delete a profile referenced by a pending, processing,
	// or paused queue item (ErrProfileInUse), or by a scan root/folder watch.
	Delete(ctx context.Context, id models.ULID) error
	Count(ctx context.Context) (int64, error)
	// SetDefault atomically clears the previous default and sets the given
	// profile as the new one. At most one profile is ever default.
	SetDefault(ctx context.Context, id models.ULID) error
}

// QueueItemRepository defines operations for queue item persistence.
type QueueItemRepository interface {
	Create(ctx context.Context, item *models.QueueItem) error
	GetByID(ctx context.Context, id models.ULID) (*models.QueueItem, error)
	GetAll(ctx context.Context) ([]*models.QueueItem, error)
	GetByStatus(ctx context.Context, status models.QueueItemStatus) ([]*models.QueueItem, error)
	// FindActiveByPath returns the non-terminal queue item for a path, if any,
	// enforcing the one-non-terminal-item-per-path invariant at insert time.
	FindActiveByPath(ctx context.Context, filePath string) (*models.QueueItem, error)
	Update(ctx context.Context, item *models.QueueItem) error
	Delete(ctx context.Context, id models.ULID) error
	DeleteCompletedBefore(ctx context.Context, before time.Time) (int64, error)
	// ClaimNextPending atomically claims the highest-priority pending item for
	// the given worker, dispatching to a row-locking strategy on
	// PostgreSQL/MySQL and a single atomic UPDATE on SQLite. Returns nil, nil
	// if nothing is available.
	ClaimNextPending(ctx context.Context, workerID string) (*models.QueueItem, error)
	// RenumberByEstimatedSavings advisorially rewrites priority for every
	// pending item so that larger EstimatedSavingsBytes sort first; it does
	// not run inside the claim transaction, so a claim racing a renumber may
	// observe either ordering.
	RenumberByEstimatedSavings(ctx context.Context) error
	// ReleaseStaleLocks clears LockedBy/LockedAt on items whose lock predates
	// cutoff, returning them to pending. Used on daemon startup to recover
	// items orphaned by an unclean shutdown.
	ReleaseStaleLocks(ctx context.Context, cutoff time.Time) (int64, error)
	CountByStatus(ctx context.Context, status models.QueueItemStatus) (int64, error)
}

// ScanRootRepository defines operations for scan root persistence.
type ScanRootRepository interface {
	Create(ctx context.Context, root *models.ScanRoot) error
	GetByID(ctx context.Context, id models.ULID) (*models.ScanRoot, error)
	GetByPath(ctx context.Context, path string) (*models.ScanRoot, error)
	GetAll(ctx context.Context) ([]*models.ScanRoot, error)
	GetEnabled(ctx context.Context) ([]*models.ScanRoot, error)
	Update(ctx context.Context, root *models.ScanRoot) error
	Delete(ctx context.Context, id models.ULID) error
	CountByProfileID(ctx context.Context, profileID models.ULID) (int64, error)
}

// FolderWatchRepository defines operations for folder watch persistence.
type FolderWatchRepository interface {
	Create(ctx context.Context, watch *models.FolderWatch) error
	GetByID(ctx context.Context, id models.ULID) (*models.FolderWatch, error)
	GetAll(ctx context.Context) ([]*models.FolderWatch, error)
	GetEnabled(ctx context.Context) ([]*models.FolderWatch, error)
	Update(ctx context.Context, watch *models.FolderWatch) error
	Delete(ctx context.Context, id models.ULID) error
	TouchLastCheck(ctx context.Context, id models.ULID, at time.Time) error
	CountByProfileID(ctx context.Context, profileID models.ULID) (int64, error)
}

// ScheduleRepository manages the singleton Schedule row.
type ScheduleRepository interface {
	// Get returns the schedule row, creating one with field defaults if none
	// exists yet.
	Get(ctx context.Context) (*models.Schedule, error)
	Update(ctx context.Context, schedule *models.Schedule) error
}

// HistoryRepository defines operations for completed-job history records.
type HistoryRepository interface {
	Create(ctx context.Context, record *models.HistoryRecord) error
	GetByID(ctx context.Context, id models.ULID) (*models.HistoryRecord, error)
	// List returns history records ordered newest first, paginated.
	List(ctx context.Context, offset, limit int) ([]*models.HistoryRecord, int64, error)
	DeleteBefore(ctx context.Context, before time.Time) (int64, error)
	// TotalSavingsBytes sums SavingsBytes across every history record.
	TotalSavingsBytes(ctx context.Context) (int64, error)
}

// ExternalConnectionRepository defines operations for external catalog
// connection persistence. The API key is always stored encrypted; callers
// pass and receive cleartext only via the explicit encrypt/decrypt methods
// on the connection, never through GORM directly.
type ExternalConnectionRepository interface {
	Create(ctx context.Context, conn *models.ExternalConnection) error
	GetByID(ctx context.Context, id models.ULID) (*models.ExternalConnection, error)
	GetByName(ctx context.Context, name string) (*models.ExternalConnection, error)
	GetAll(ctx context.Context) ([]*models.ExternalConnection, error)
	GetEnabled(ctx context.Context) ([]*models.ExternalConnection, error)
	Update(ctx context.Context, conn *models.ExternalConnection) error
	Delete(ctx context.Context, id models.ULID) error
	UpdateLastTested(ctx context.Context, id models.ULID, at time.Time) error
	UpdateLastSynced(ctx context.Context, id models.ULID, at time.Time) error
}
