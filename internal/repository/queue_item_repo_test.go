package repository

import (
	"context"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/jmylchreest/transcodarr/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func setupQueueItemTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	require.NoError(t, db.AutoMigrate(&models.QueueItem{}))
	return db
}

func testQueueItem(path string, priority int) *models.QueueItem {
	return &models.QueueItem{
		FilePath: path,
		Status:   models.StatusPending,
		Priority: priority,
	}
}

func TestQueueItemRepo_CreateAndFindActiveByPath(t *testing.T) {
	db := setupQueueItemTestDB(t)
	repo := NewQueueItemRepository(db)
	ctx := context.Background()

	item := testQueueItem("/media/movie.mkv", 50)
	require.NoError(t, repo.Create(ctx, item))

	active, err := repo.FindActiveByPath(ctx, "/media/movie.mkv")
	require.NoError(t, err)
	require.NotNil(t, active)
	assert.Equal(t, item.ID, active.ID)

	item.MarkCompleted()
	require.NoError(t, repo.Update(ctx, item))

	active, err = repo.FindActiveByPath(ctx, "/media/movie.mkv")
	require.NoError(t, err)
	assert.Nil(t, active)
}

func TestQueueItemRepo_ClaimNextPendingOrdersByPriority(t *testing.T) {
	db := setupQueueItemTestDB(t)
	repo := NewQueueItemRepository(db)
	ctx := context.Background()

	low := testQueueItem("/media/low.mkv", 10)
	high := testQueueItem("/media/high.mkv", 90)
	require.NoError(t, repo.Create(ctx, low))
	require.NoError(t, repo.Create(ctx, high))

	claimed, err := repo.ClaimNextPending(ctx, "worker-1")
	require.NoError(t, err)
	require.NotNil(t, claimed)
	assert.Equal(t, high.ID, claimed.ID)
	assert.Equal(t, models.StatusProcessing, claimed.Status)

	second, err := repo.ClaimNextPending(ctx, "worker-1")
	require.NoError(t, err)
	require.NotNil(t, second)
	assert.Equal(t, low.ID, second.ID)

	third, err := repo.ClaimNextPending(ctx, "worker-1")
	require.NoError(t, err)
	assert.Nil(t, third)
}

func TestQueueItemRepo_RenumberByEstimatedSavings(t *testing.T) {
	db := setupQueueItemTestDB(t)
	repo := NewQueueItemRepository(db)
	ctx := context.Background()

	small := &models.QueueItem{FilePath: "/media/small.mkv", Status: models.StatusPending, EstimatedSavingsBytes: 1000}
	big := &models.QueueItem{FilePath: "/media/big.mkv", Status: models.StatusPending, EstimatedSavingsBytes: 9000}
	require.NoError(t, repo.Create(ctx, small))
	require.NoError(t, repo.Create(ctx, big))

	require.NoError(t, repo.RenumberByEstimatedSavings(ctx))

	gotBig, err := repo.GetByID(ctx, big.ID)
	require.NoError(t, err)
	gotSmall, err := repo.GetByID(ctx, small.ID)
	require.NoError(t, err)

	assert.Greater(t, gotBig.Priority, gotSmall.Priority)
}

func TestQueueItemRepo_ReleaseStaleLocks(t *testing.T) {
	db := setupQueueItemTestDB(t)
	repo := NewQueueItemRepository(db)
	ctx := context.Background()

	item := testQueueItem("/media/stuck.mkv", 50)
	require.NoError(t, repo.Create(ctx, item))

	claimed, err := repo.ClaimNextPending(ctx, "worker-1")
	require.NoError(t, err)
	require.NotNil(t, claimed)

	cutoff := time.Now().Add(1 * time.Hour)
	released, err := repo.ReleaseStaleLocks(ctx, cutoff)
	require.NoError(t, err)
	assert.Equal(t, int64(1), released)

	got, err := repo.GetByID(ctx, item.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusPending, got.Status)
}

func TestQueueItemRepo_CountByStatus(t *testing.T) {
	db := setupQueueItemTestDB(t)
	repo := NewQueueItemRepository(db)
	ctx := context.Background()

	require.NoError(t, repo.Create(ctx, testQueueItem("/media/a.mkv", 10)))
	require.NoError(t, repo.Create(ctx, testQueueItem("/media/b.mkv", 20)))

	count, err := repo.CountByStatus(ctx, models.StatusPending)
	require.NoError(t, err)
	assert.Equal(t, int64(2), count)
}

func TestQueueItemRepo_DeleteCompletedBefore(t *testing.T) {
	db := setupQueueItemTestDB(t)
	repo := NewQueueItemRepository(db)
	ctx := context.Background()

	item := testQueueItem("/media/old.mkv", 10)
	item.MarkCompleted()
	require.NoError(t, repo.Create(ctx, item))

	deleted, err := repo.DeleteCompletedBefore(ctx, time.Now().Add(1*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, int64(1), deleted)
}
