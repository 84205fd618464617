package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestQueueItemLifecycleTransitions(t *testing.T) {
	q := &QueueItem{FilePath: "/media/movies/m.mkv", Status: StatusPending}

	q.MarkProcessing("worker-1")
	assert.Equal(t, StatusProcessing, q.Status)
	assert.NotNil(t, q.StartedAt)
	assert.Equal(t, "worker-1", q.LockedBy)

	q.MarkPaused("CPU usage 95.0% exceeds threshold 90%")
	assert.Equal(t, StatusPaused, q.Status)
	assert.Contains(t, q.PausedReason, "CPU")
	assert.Nil(t, q.CompletedAt)

	q.MarkResumed()
	assert.Equal(t, StatusProcessing, q.Status)
	assert.Empty(t, q.PausedReason)

	q.MarkCompleted()
	assert.Equal(t, StatusCompleted, q.Status)
	assert.Equal(t, 100.0, q.Progress)
	assert.NotNil(t, q.CompletedAt)
	assert.True(t, q.IsFinalised())
}

func TestQueueItemMarkFailedSetsCompletedAt(t *testing.T) {
	q := &QueueItem{FilePath: "/media/x.mkv"}
	q.MarkFailed("Manually stopped")
	assert.Equal(t, StatusFailed, q.Status)
	assert.Equal(t, "Manually stopped", q.ErrorMessage)
	assert.NotNil(t, q.CompletedAt)
	assert.True(t, q.IsFinalised())
}

func TestQueueItemStatusValid(t *testing.T) {
	assert.True(t, StatusPending.Valid())
	assert.True(t, StatusPermissionError.Valid())
	assert.False(t, QueueItemStatus("bogus").Valid())
}

func TestQueueItemValidateRequiresPath(t *testing.T) {
	q := &QueueItem{}
	assert.ErrorIs(t, q.Validate(), ErrFilePathRequired)
}
