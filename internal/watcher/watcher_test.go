package watcher

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/jmylchreest/transcodarr/internal/candidateprocessor"
	"github.com/jmylchreest/transcodarr/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeFolderWatchRepo struct {
	watches        map[models.ULID]*models.FolderWatch
	lastCheckCalls int
}

func (f *fakeFolderWatchRepo) Create(ctx context.Context, watch *models.FolderWatch) error { return nil }
func (f *fakeFolderWatchRepo) GetByID(ctx context.Context, id models.ULID) (*models.FolderWatch, error) {
	return f.watches[id], nil
}
func (f *fakeFolderWatchRepo) GetAll(ctx context.Context) ([]*models.FolderWatch, error) {
	return nil, nil
}
func (f *fakeFolderWatchRepo) GetEnabled(ctx context.Context) ([]*models.FolderWatch, error) {
	var out []*models.FolderWatch
	for _, w := range f.watches {
		if w.Enabled {
			out = append(out, w)
		}
	}
	return out, nil
}
func (f *fakeFolderWatchRepo) Update(ctx context.Context, watch *models.FolderWatch) error { return nil }
func (f *fakeFolderWatchRepo) Delete(ctx context.Context, id models.ULID) error            { return nil }
func (f *fakeFolderWatchRepo) TouchLastCheck(ctx context.Context, id models.ULID, at time.Time) error {
	f.lastCheckCalls++
	return nil
}
func (f *fakeFolderWatchRepo) CountByProfileID(ctx context.Context, profileID models.ULID) (int64, error) {
	return 0, nil
}

type fakeProfileRepo struct {
	profiles map[models.ULID]*models.Profile
}

func (f *fakeProfileRepo) Create(ctx context.Context, profile *models.Profile) error { return nil }
func (f *fakeProfileRepo) GetByID(ctx context.Context, id models.ULID) (*models.Profile, error) {
	return f.profiles[id], nil
}
func (f *fakeProfileRepo) GetByName(ctx context.Context, name string) (*models.Profile, error) {
	return nil, nil
}
func (f *fakeProfileRepo) GetAll(ctx context.Context) ([]*models.Profile, error) { return nil, nil }
func (f *fakeProfileRepo) GetDefault(ctx context.Context) (*models.Profile, error) {
	return nil, nil
}
func (f *fakeProfileRepo) Update(ctx context.Context, profile *models.Profile) error { return nil }
func (f *fakeProfileRepo) Delete(ctx context.Context, id models.ULID) error          { return nil }
func (f *fakeProfileRepo) Count(ctx context.Context) (int64, error)                 { return 0, nil }
func (f *fakeProfileRepo) SetDefault(ctx context.Context, id models.ULID) error      { return nil }

type fakeProcessor struct {
	processed []string
}

func (f *fakeProcessor) Process(ctx context.Context, path string, profile *models.Profile, rootID *models.ULID) (*models.QueueItem, candidateprocessor.SkipReason, error) {
	f.processed = append(f.processed, path)
	return &models.QueueItem{FilePath: path, Status: models.StatusPending}, candidateprocessor.SkipNone, nil
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func writeFile(t *testing.T, path string) {
	t.Helper()
	require.NoError(t, os.WriteFile(path, []byte("x"), 0o644))
}

func TestSeed_DoesNotQueueExistingFiles(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "existing.mkv"))

	watchID := models.NewULID()
	profileID := models.NewULID()
	watches := &fakeFolderWatchRepo{watches: map[models.ULID]*models.FolderWatch{
		watchID: {BaseModel: models.BaseModel{ID: watchID}, Path: dir, Enabled: true, AutoQueue: true, Extensions: "mkv", ProfileID: profileID},
	}}
	proc := &fakeProcessor{}
	w := New(watches, &fakeProfileRepo{}, proc, time.Hour, discardLogger())

	require.NoError(t, w.seed(context.Background()))

	assert.Empty(t, proc.processed)
	assert.True(t, w.knownFiles[watchID][filepath.Join(dir, "existing.mkv")])
}

func TestCheckWatch_QueuesOnlyFilesAddedAfterSeeding(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "existing.mkv"))

	watchID := models.NewULID()
	profileID := models.NewULID()
	watch := &models.FolderWatch{BaseModel: models.BaseModel{ID: watchID}, Path: dir, Enabled: true, AutoQueue: true, Extensions: "mkv", ProfileID: profileID}
	watches := &fakeFolderWatchRepo{watches: map[models.ULID]*models.FolderWatch{watchID: watch}}
	profiles := &fakeProfileRepo{profiles: map[models.ULID]*models.Profile{
		profileID: {BaseModel: models.BaseModel{ID: profileID}, Name: "p", TargetVideoCodec: models.VideoCodecAV1, Container: models.ContainerMKV},
	}}
	proc := &fakeProcessor{}
	w := New(watches, profiles, proc, time.Hour, discardLogger())

	require.NoError(t, w.seed(context.Background()))
	require.NoError(t, w.checkWatch(context.Background(), watch))
	assert.Empty(t, proc.processed, "seeded file must not be queued on the first check")

	writeFile(t, filepath.Join(dir, "new.mkv"))
	require.NoError(t, w.checkWatch(context.Background(), watch))
	assert.Equal(t, []string{filepath.Join(dir, "new.mkv")}, proc.processed)
	assert.Equal(t, 2, watches.lastCheckCalls)
}

func TestDiscover_ExcludesOptimizedAndWrongExtension(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "movie.mkv"))
	writeFile(t, filepath.Join(dir, "movie_optimized.mkv"))
	writeFile(t, filepath.Join(dir, "notes.txt"))

	found, err := discover(dir, false, map[string]bool{"mkv": true})
	require.NoError(t, err)
	assert.Len(t, found, 1)
	assert.True(t, found[filepath.Join(dir, "movie.mkv")])
}

func TestCheckWatches_SkipsWatchesWithAutoQueueDisabled(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "existing.mkv"))

	watchID := models.NewULID()
	profileID := models.NewULID()
	watches := &fakeFolderWatchRepo{watches: map[models.ULID]*models.FolderWatch{
		watchID: {BaseModel: models.BaseModel{ID: watchID}, Path: dir, Enabled: true, AutoQueue: false, Extensions: "mkv", ProfileID: profileID},
	}}
	proc := &fakeProcessor{}
	w := New(watches, &fakeProfileRepo{}, proc, time.Hour, discardLogger())

	require.NoError(t, w.checkWatches(context.Background()))
	assert.Empty(t, proc.processed)
	assert.Equal(t, 0, watches.lastCheckCalls)
}
