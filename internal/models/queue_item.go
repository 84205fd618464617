package models

import (
	"time"

	"gorm.io/gorm"
)

// QueueItemStatus is the closed enumeration of lifecycle states a queue
// item may occupy. Any persisted value outside this set is a
// ConstraintViolation, never silently accepted.
type QueueItemStatus string

const (
	StatusPending         QueueItemStatus = "pending"
	StatusProcessing      QueueItemStatus = "processing"
	StatusPaused          QueueItemStatus = "paused"
	StatusCompleted       QueueItemStatus = "completed"
	StatusFailed          QueueItemStatus = "failed"
	StatusPermissionError QueueItemStatus = "permission_error"
)

func (s QueueItemStatus) Valid() bool {
	switch s {
	case StatusPending, StatusProcessing, StatusPaused, StatusCompleted, StatusFailed, StatusPermissionError:
		return true
	}
	return false
}

// IsTerminal reports whether the status is one a queue item cannot leave.
func (s QueueItemStatus) IsTerminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// IsNonTerminal reports whether the status counts for the
// one-non-terminal-item-per-path invariant (pending/processing/paused all
// count; permission_error is terminal-in-practice since the pipeline never
// re-attempts it automatically, so it does not block a later re-scan once
// permissions are fixed... but until that happens it still occupies the
// path, so it is treated as non-terminal here).
func (s QueueItemStatus) IsNonTerminal() bool {
	return !s.IsTerminal()
}

// PermissionStatus is the closed enumeration of filesystem permission
// outcomes recorded for a candidate during scanning.
type PermissionStatus string

const (
	PermissionOK       PermissionStatus = "ok"
	PermissionNoRead   PermissionStatus = "no_read"
	PermissionNoWrite  PermissionStatus = "no_write"
	PermissionNotFound PermissionStatus = "not_found"
)

// QueueItem is one (file, profile) work record with a lifecycle; the unit
// of scheduling for the Encoder Pool.
type QueueItem struct {
	BaseModel

	FilePath string `gorm:"uniqueIndex:idx_queue_item_path_status;not null" json:"file_path"`

	ProfileID *ULID `gorm:"type:varchar(26);index" json:"profile_id,omitempty"`
	RootID    *ULID `gorm:"type:varchar(26);index" json:"root_id,omitempty"`

	Status   QueueItemStatus `gorm:"type:varchar(24);not null;default:pending;uniqueIndex:idx_queue_item_path_status" json:"status"`
	Priority int             `gorm:"not null;default:50" json:"priority"`

	CurrentSpecs MediaSpecsColumn `gorm:"column:current_specs" json:"current_specs,omitempty"`
	TargetSpecs  MediaSpecsColumn `gorm:"column:target_specs" json:"target_specs,omitempty"`

	FileSizeBytes         int64   `json:"file_size_bytes"`
	EstimatedSavingsBytes int64   `json:"estimated_savings_bytes"`
	Progress              float64 `gorm:"not null;default:0" json:"progress"`

	ProcessCPUPercent float64 `json:"process_cpu_percent,omitempty"`
	ProcessRSSMB      float64 `json:"process_rss_mb,omitempty"`

	PermissionStatus PermissionStatus `gorm:"type:varchar(16);not null;default:ok" json:"permission_status"`
	ErrorMessage     string           `json:"error_message,omitempty"`
	PausedReason     string           `json:"paused_reason,omitempty"`

	UpscalePlan UpscalePlanColumn `gorm:"column:upscale_plan" json:"upscale_plan,omitempty"`

	StartedAt   *time.Time `json:"started_at,omitempty"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`

	// LockedBy/LockedAt identify the pool worker that claimed this item,
	// mirroring the atomic-claim pattern used for every driver.
	LockedBy string     `json:"-"`
	LockedAt *time.Time `json:"-"`
}

func (QueueItem) TableName() string {
	return "queue_items"
}

// Validate checks field-level invariants.
func (q *QueueItem) Validate() error {
	if q.FilePath == "" {
		return ErrFilePathRequired
	}
	if q.Status != "" && !q.Status.Valid() {
		return ErrInvalidStatus
	}
	return nil
}

func (q *QueueItem) BeforeCreate(tx *gorm.DB) error {
	if err := q.BaseModel.BeforeCreate(tx); err != nil {
		return err
	}
	if q.Status == "" {
		q.Status = StatusPending
	}
	return q.Validate()
}

func (q *QueueItem) BeforeUpdate(tx *gorm.DB) error {
	return q.Validate()
}

// MarkProcessing transitions a claimed item into processing and stamps
// started_at. Called only by the Encoder Pool's atomic claim path.
func (q *QueueItem) MarkProcessing(workerID string) {
	now := Now()
	q.Status = StatusProcessing
	q.StartedAt = &now
	q.LockedBy = workerID
	q.LockedAt = &now
}

// MarkPaused records a throttle-induced pause; only the owning Supervisor
// calls this.
func (q *QueueItem) MarkPaused(reason string) {
	q.Status = StatusPaused
	q.PausedReason = reason
}

// MarkResumed clears a pause and returns to processing.
func (q *QueueItem) MarkResumed() {
	q.Status = StatusProcessing
	q.PausedReason = ""
}

// MarkCompleted transitions to the terminal completed state.
func (q *QueueItem) MarkCompleted() {
	now := Now()
	q.Status = StatusCompleted
	q.Progress = 100.0
	q.CompletedAt = &now
	q.ErrorMessage = ""
	q.PausedReason = ""
}

// MarkFailed transitions to the terminal failed state with a reason.
func (q *QueueItem) MarkFailed(reason string) {
	now := Now()
	q.Status = StatusFailed
	q.CompletedAt = &now
	q.ErrorMessage = reason
	q.PausedReason = ""
}

// MarkPermissionError records a scan-time permission failure; this status
// is assigned by the Scan Pipeline, never by the Supervisor.
func (q *QueueItem) MarkPermissionError(permission PermissionStatus, message string) {
	q.Status = StatusPermissionError
	q.PermissionStatus = permission
	q.ErrorMessage = message
}

// IsFinalised reports whether this item has already completed or failed,
// used to make Finalise idempotent-against-mutation (AlreadyFinalised).
func (q *QueueItem) IsFinalised() bool {
	return q.Status.IsTerminal()
}
