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

func setupProfileTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	require.NoError(t, db.AutoMigrate(&models.Profile{}, &models.ScanRoot{}, &models.FolderWatch{}, &models.QueueItem{}))
	return db
}

func testProfile(name string) *models.Profile {
	return &models.Profile{
		Name:             name,
		TargetVideoCodec: models.VideoCodecAV1,
		Container:        models.ContainerMKV,
		AudioStrategy:    models.AudioStrategyPreserveAll,
		SubtitleStrategy: models.SubtitleStrategyPreserveAll,
		Quality:          28,
	}
}

func TestProfileRepo_CreateAndGet(t *testing.T) {
	db := setupProfileTestDB(t)
	repo := NewProfileRepository(db)
	ctx := context.Background()

	p := testProfile("web-av1")
	require.NoError(t, repo.Create(ctx, p))
	assert.False(t, p.ID.IsZero())

	got, err := repo.GetByID(ctx, p.ID)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "web-av1", got.Name)

	byName, err := repo.GetByName(ctx, "web-av1")
	require.NoError(t, err)
	require.NotNil(t, byName)
	assert.Equal(t, p.ID, byName.ID)
}

func TestProfileRepo_SetDefaultIsExclusive(t *testing.T) {
	db := setupProfileTestDB(t)
	repo := NewProfileRepository(db)
	ctx := context.Background()

	a := testProfile("a")
	b := testProfile("b")
	require.NoError(t, repo.Create(ctx, a))
	require.NoError(t, repo.Create(ctx, b))

	require.NoError(t, repo.SetDefault(ctx, a.ID))
	require.NoError(t, repo.SetDefault(ctx, b.ID))

	gotA, err := repo.GetByID(ctx, a.ID)
	require.NoError(t, err)
	gotB, err := repo.GetByID(ctx, b.ID)
	require.NoError(t, err)

	assert.False(t, gotA.IsDefault)
	assert.True(t, gotB.IsDefault)

	def, err := repo.GetDefault(ctx)
	require.NoError(t, err)
	require.NotNil(t, def)
	assert.Equal(t, b.ID, def.ID)
}

func TestProfileRepo_DeleteRefusedWhileInUse(t *testing.T) {
	db := setupProfileTestDB(t)
	repo := NewProfileRepository(db)
	ctx := context.Background()

	p := testProfile("in-use")
	require.NoError(t, repo.Create(ctx, p))

	item := &models.QueueItem{FilePath: "/media/a.mkv", ProfileID: &p.ID, Status: models.StatusPending}
	require.NoError(t, db.Create(item).Error)

	err := repo.Delete(ctx, p.ID)
	assert.ErrorIs(t, err, models.ErrProfileInUse)
}

func TestProfileRepo_DeleteAllowedAfterTerminal(t *testing.T) {
	db := setupProfileTestDB(t)
	repo := NewProfileRepository(db)
	ctx := context.Background()

	p := testProfile("free-to-delete")
	require.NoError(t, repo.Create(ctx, p))

	item := &models.QueueItem{FilePath: "/media/b.mkv", ProfileID: &p.ID, Status: models.StatusCompleted}
	require.NoError(t, db.Create(item).Error)

	require.NoError(t, repo.Delete(ctx, p.ID))

	got, err := repo.GetByID(ctx, p.ID)
	require.NoError(t, err)
	assert.Nil(t, got)
}
