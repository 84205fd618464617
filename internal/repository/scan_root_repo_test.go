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

func setupScanRootTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	require.NoError(t, db.AutoMigrate(&models.ScanRoot{}))
	return db
}

func TestScanRootRepo_CreateGetUpdateDelete(t *testing.T) {
	db := setupScanRootTestDB(t)
	repo := NewScanRootRepository(db)
	ctx := context.Background()

	profileID := models.NewULID()
	root := &models.ScanRoot{Path: "/media/movies", ProfileID: profileID, Enabled: true}
	require.NoError(t, repo.Create(ctx, root))

	got, err := repo.GetByID(ctx, root.ID)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "/media/movies", got.Path)

	byPath, err := repo.GetByPath(ctx, "/media/movies")
	require.NoError(t, err)
	require.NotNil(t, byPath)
	assert.Equal(t, root.ID, byPath.ID)

	got.Enabled = false
	require.NoError(t, repo.Update(ctx, got))

	all, err := repo.GetAll(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 1)

	enabled, err := repo.GetEnabled(ctx)
	require.NoError(t, err)
	assert.Empty(t, enabled)

	require.NoError(t, repo.Delete(ctx, root.ID))
	gone, err := repo.GetByID(ctx, root.ID)
	require.NoError(t, err)
	assert.Nil(t, gone)
}

func TestScanRootRepo_CountByProfileID(t *testing.T) {
	db := setupScanRootTestDB(t)
	repo := NewScanRootRepository(db)
	ctx := context.Background()

	profileID := models.NewULID()
	other := models.NewULID()
	require.NoError(t, repo.Create(ctx, &models.ScanRoot{Path: "/media/a", ProfileID: profileID}))
	require.NoError(t, repo.Create(ctx, &models.ScanRoot{Path: "/media/b", ProfileID: profileID}))
	require.NoError(t, repo.Create(ctx, &models.ScanRoot{Path: "/media/c", ProfileID: other}))

	count, err := repo.CountByProfileID(ctx, profileID)
	require.NoError(t, err)
	assert.Equal(t, int64(2), count)
}
