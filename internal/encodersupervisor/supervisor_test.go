package encodersupervisor

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/jmylchreest/transcodarr/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeQueueRepo struct {
	updated []*models.QueueItem
}

func (f *fakeQueueRepo) Create(ctx context.Context, item *models.QueueItem) error { return nil }
func (f *fakeQueueRepo) GetByID(ctx context.Context, id models.ULID) (*models.QueueItem, error) {
	return nil, nil
}
func (f *fakeQueueRepo) GetAll(ctx context.Context) ([]*models.QueueItem, error) { return nil, nil }
func (f *fakeQueueRepo) GetByStatus(ctx context.Context, status models.QueueItemStatus) ([]*models.QueueItem, error) {
	return nil, nil
}
func (f *fakeQueueRepo) FindActiveByPath(ctx context.Context, filePath string) (*models.QueueItem, error) {
	return nil, nil
}
func (f *fakeQueueRepo) Update(ctx context.Context, item *models.QueueItem) error {
	f.updated = append(f.updated, item)
	return nil
}
func (f *fakeQueueRepo) Delete(ctx context.Context, id models.ULID) error { return nil }
func (f *fakeQueueRepo) DeleteCompletedBefore(ctx context.Context, before time.Time) (int64, error) {
	return 0, nil
}
func (f *fakeQueueRepo) ClaimNextPending(ctx context.Context, workerID string) (*models.QueueItem, error) {
	return nil, nil
}
func (f *fakeQueueRepo) RenumberByEstimatedSavings(ctx context.Context) error { return nil }
func (f *fakeQueueRepo) ReleaseStaleLocks(ctx context.Context, cutoff time.Time) (int64, error) {
	return 0, nil
}
func (f *fakeQueueRepo) CountByStatus(ctx context.Context, status models.QueueItemStatus) (int64, error) {
	return 0, nil
}

type fakeHistoryRepo struct {
	created []*models.HistoryRecord
}

func (f *fakeHistoryRepo) Create(ctx context.Context, record *models.HistoryRecord) error {
	f.created = append(f.created, record)
	return nil
}
func (f *fakeHistoryRepo) GetByID(ctx context.Context, id models.ULID) (*models.HistoryRecord, error) {
	return nil, nil
}
func (f *fakeHistoryRepo) List(ctx context.Context, offset, limit int) ([]*models.HistoryRecord, int64, error) {
	return nil, 0, nil
}
func (f *fakeHistoryRepo) DeleteBefore(ctx context.Context, before time.Time) (int64, error) {
	return 0, nil
}
func (f *fakeHistoryRepo) TotalSavingsBytes(ctx context.Context) (int64, error) { return 0, nil }

func TestFinalise_AtomicReplaceRenamesOutputOverOriginal(t *testing.T) {
	dir := t.TempDir()
	original := filepath.Join(dir, "movie.mkv")
	output := filepath.Join(dir, "movie_optimized.mkv")
	require.NoError(t, os.WriteFile(original, []byte("original bytes"), 0o644))
	require.NoError(t, os.WriteFile(output, []byte("x"), 0o644))

	queueRepo := &fakeQueueRepo{}
	historyRepo := &fakeHistoryRepo{}
	j := &Job{deps: Dependencies{QueueRepo: queueRepo, HistoryRepo: historyRepo, Logger: discardLogger()}}

	started := time.Now().Add(-2 * time.Second)
	item := &models.QueueItem{
		BaseModel:     models.BaseModel{ID: models.NewULID()},
		FilePath:      original,
		FileSizeBytes: 14,
		StartedAt:     &started,
	}
	profile := testProfile()
	plan := &jobPlan{outputPath: output, finalPath: original}

	j.finalise(context.Background(), item, profile, plan)

	assert.Equal(t, models.StatusCompleted, item.Status)
	assert.Equal(t, original, item.FilePath)
	_, err := os.Stat(output)
	assert.True(t, os.IsNotExist(err), "output path should have been renamed away")
	data, err := os.ReadFile(original)
	require.NoError(t, err)
	assert.Equal(t, "x", string(data))
	require.Len(t, historyRepo.created, 1)
	assert.Equal(t, int64(13), historyRepo.created[0].SavingsBytes)
}

func TestFinalise_MissingOutputMarksFailedWithoutTouchingOriginal(t *testing.T) {
	dir := t.TempDir()
	original := filepath.Join(dir, "movie.mkv")
	require.NoError(t, os.WriteFile(original, []byte("original"), 0o644))

	queueRepo := &fakeQueueRepo{}
	historyRepo := &fakeHistoryRepo{}
	j := &Job{deps: Dependencies{QueueRepo: queueRepo, HistoryRepo: historyRepo, Logger: discardLogger()}}

	item := &models.QueueItem{BaseModel: models.BaseModel{ID: models.NewULID()}, FilePath: original}
	plan := &jobPlan{outputPath: filepath.Join(dir, "missing_optimized.mkv"), finalPath: original}

	j.finalise(context.Background(), item, testProfile(), plan)

	assert.Equal(t, models.StatusFailed, item.Status)
	_, err := os.Stat(original)
	require.NoError(t, err, "original must survive a missing-output finalise failure")
	assert.Empty(t, historyRepo.created)
}

func TestFinalise_EmptyOutputMarksFailedAndCleansUp(t *testing.T) {
	dir := t.TempDir()
	original := filepath.Join(dir, "movie.mkv")
	output := filepath.Join(dir, "movie_optimized.mkv")
	require.NoError(t, os.WriteFile(original, []byte("original"), 0o644))
	require.NoError(t, os.WriteFile(output, []byte{}, 0o644))

	queueRepo := &fakeQueueRepo{}
	j := &Job{deps: Dependencies{QueueRepo: queueRepo, HistoryRepo: &fakeHistoryRepo{}, Logger: discardLogger()}}
	item := &models.QueueItem{BaseModel: models.BaseModel{ID: models.NewULID()}, FilePath: original}
	plan := &jobPlan{outputPath: output, finalPath: original}

	j.finalise(context.Background(), item, testProfile(), plan)

	assert.Equal(t, models.StatusFailed, item.Status)
	_, err := os.Stat(output)
	assert.True(t, os.IsNotExist(err), "empty output should be cleaned up")
}
