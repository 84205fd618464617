package repository

import (
	"context"
	"testing"

	"github.com/glebarez/sqlite"
	"github.com/jmylchreest/transcodarr/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func setupScheduleTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	require.NoError(t, db.AutoMigrate(&models.Schedule{}))
	return db
}

func TestScheduleRepo_GetCreatesDefaultOnFirstAccess(t *testing.T) {
	db := setupScheduleTestDB(t)
	repo := NewScheduleRepository(db)
	ctx := context.Background()

	schedule, err := repo.Get(ctx)
	require.NoError(t, err)
	require.NotNil(t, schedule)
	assert.False(t, schedule.Enabled)
	assert.Equal(t, "22:00", schedule.StartTime)
	assert.Equal(t, "06:00", schedule.EndTime)

	again, err := repo.Get(ctx)
	require.NoError(t, err)
	assert.Equal(t, schedule.ID, again.ID)
}

func TestScheduleRepo_UpdateValidates(t *testing.T) {
	db := setupScheduleTestDB(t)
	repo := NewScheduleRepository(db)
	ctx := context.Background()

	schedule, err := repo.Get(ctx)
	require.NoError(t, err)

	schedule.StartTime = "not-a-time"
	assert.Error(t, repo.Update(ctx, schedule))

	schedule.StartTime = "23:30"
	schedule.Enabled = true
	require.NoError(t, repo.Update(ctx, schedule))

	got, err := repo.Get(ctx)
	require.NoError(t, err)
	assert.Equal(t, "23:30", got.StartTime)
	assert.True(t, got.Enabled)
}
