package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jmylchreest/transcodarr/internal/models"
	"gorm.io/gorm"
)

type scheduleRepository struct {
	db *gorm.DB
}

// NewScheduleRepository creates a new ScheduleRepository.
func NewScheduleRepository(db *gorm.DB) ScheduleRepository {
	return &scheduleRepository{db: db}
}

// Get returns the singleton schedule row, creating it with field defaults
// on first access so callers never have to special-case a missing row.
func (r *scheduleRepository) Get(ctx context.Context) (*models.Schedule, error) {
	var schedule models.Schedule
	err := r.db.WithContext(ctx).Order("created_at ASC").First(&schedule).Error
	if err == nil {
		return &schedule, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("getting schedule: %w", err)
	}

	schedule = models.Schedule{
		Enabled:           false,
		DaysOfWeek:        "0,1,2,3,4,5,6",
		StartTime:         "22:00",
		EndTime:           "06:00",
		MaxConcurrentJobs: 1,
	}
	if err := r.db.WithContext(ctx).Create(&schedule).Error; err != nil {
		return nil, fmt.Errorf("creating default schedule: %w", err)
	}
	return &schedule, nil
}

func (r *scheduleRepository) Update(ctx context.Context, schedule *models.Schedule) error {
	if err := schedule.Validate(); err != nil {
		return fmt.Errorf("validating schedule: %w", err)
	}
	if err := r.db.WithContext(ctx).Save(schedule).Error; err != nil {
		return fmt.Errorf("updating schedule: %w", err)
	}
	return nil
}

var _ ScheduleRepository = (*scheduleRepository)(nil)
