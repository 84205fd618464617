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

func setupHistoryTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	require.NoError(t, db.AutoMigrate(&models.HistoryRecord{}))
	return db
}

func TestHistoryRepo_CreateAndGet(t *testing.T) {
	db := setupHistoryTestDB(t)
	repo := NewHistoryRepository(db)
	ctx := context.Background()

	record := models.NewHistoryRecord("/media/movie.mkv", "web-av1", 10_000_000, 4_000_000, 120.5, "av1", "mkv")
	require.NoError(t, repo.Create(ctx, &record))

	got, err := repo.GetByID(ctx, record.ID)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, int64(6_000_000), got.SavingsBytes)
}

func TestHistoryRepo_ListPaginatesNewestFirst(t *testing.T) {
	db := setupHistoryTestDB(t)
	repo := NewHistoryRepository(db)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		r := models.NewHistoryRecord("/media/f.mkv", "p", 100, 50, 1, "av1", "mkv")
		require.NoError(t, repo.Create(ctx, &r))
	}

	page, total, err := repo.List(ctx, 0, 2)
	require.NoError(t, err)
	assert.Equal(t, int64(3), total)
	assert.Len(t, page, 2)
}

func TestHistoryRepo_DeleteBefore(t *testing.T) {
	db := setupHistoryTestDB(t)
	repo := NewHistoryRepository(db)
	ctx := context.Background()

	r := models.NewHistoryRecord("/media/old.mkv", "p", 100, 50, 1, "av1", "mkv")
	require.NoError(t, repo.Create(ctx, &r))

	deleted, err := repo.DeleteBefore(ctx, time.Now().Add(1*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, int64(1), deleted)
}

func TestHistoryRepo_TotalSavingsBytes(t *testing.T) {
	db := setupHistoryTestDB(t)
	repo := NewHistoryRepository(db)
	ctx := context.Background()

	a := models.NewHistoryRecord("/media/a.mkv", "p", 100, 60, 1, "av1", "mkv")
	b := models.NewHistoryRecord("/media/b.mkv", "p", 200, 150, 1, "av1", "mkv")
	require.NoError(t, repo.Create(ctx, &a))
	require.NoError(t, repo.Create(ctx, &b))

	total, err := repo.TotalSavingsBytes(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(90), total)
}
