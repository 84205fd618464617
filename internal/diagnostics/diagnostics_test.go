package diagnostics

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/jmylchreest/transcodarr/internal/models"
	"github.com/jmylchreest/transcodarr/internal/repository"
)

func setupDiagnosticsDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(
		&models.QueueItem{}, &models.HistoryRecord{},
		&models.ExternalConnection{}, &models.Profile{},
	))
	return db
}

func TestServer_Healthz(t *testing.T) {
	db := setupDiagnosticsDB(t)
	srv := New("127.0.0.1:0", Dependencies{
		QueueRepo: repository.NewQueueItemRepository(db),
		Version:   "test-version",
	})

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec := httptest.NewRecorder()
	srv.router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "ok", body["status"])
	assert.Equal(t, "test-version", body["version"])
}

func TestServer_DebugQueue(t *testing.T) {
	db := setupDiagnosticsDB(t)
	queueRepo := repository.NewQueueItemRepository(db)
	ctx := context.Background()

	require.NoError(t, queueRepo.Create(ctx, &models.QueueItem{FilePath: "/media/a.mkv", Status: models.StatusPending}))
	require.NoError(t, queueRepo.Create(ctx, &models.QueueItem{FilePath: "/media/b.mkv", Status: models.StatusProcessing}))

	srv := New("127.0.0.1:0", Dependencies{QueueRepo: queueRepo})

	req := httptest.NewRequest(http.MethodGet, "/debug/queue", nil)
	rec := httptest.NewRecorder()
	srv.router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	var snapshot queueSnapshot
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &snapshot))
	assert.Equal(t, int64(1), snapshot.CountsByStatus[models.StatusPending])
	assert.Equal(t, int64(1), snapshot.CountsByStatus[models.StatusProcessing])
	require.Len(t, snapshot.Active, 1)
	assert.Equal(t, "/media/b.mkv", snapshot.Active[0].FilePath)
}

func TestServer_DebugQueue_NoRepository(t *testing.T) {
	srv := New("127.0.0.1:0", Dependencies{})

	req := httptest.NewRequest(http.MethodGet, "/debug/queue", nil)
	rec := httptest.NewRecorder()
	srv.router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestServer_DebugCapabilities_NotConfigured(t *testing.T) {
	srv := New("127.0.0.1:0", Dependencies{})

	req := httptest.NewRequest(http.MethodGet, "/debug/capabilities", nil)
	rec := httptest.NewRecorder()
	srv.router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestServer_Webhook_UnknownKind(t *testing.T) {
	db := setupDiagnosticsDB(t)
	srv := New("127.0.0.1:0", Dependencies{
		ConnRepo:    repository.NewExternalConnectionRepository(db),
		ProfileRepo: repository.NewProfileRepository(db),
	})

	req := httptest.NewRequest(http.MethodPost, "/webhooks/not-a-kind", nil)
	rec := httptest.NewRecorder()
	srv.router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestServer_Webhook_NoMatchingConnectionIsIgnored(t *testing.T) {
	db := setupDiagnosticsDB(t)
	srv := New("127.0.0.1:0", Dependencies{
		ConnRepo:    repository.NewExternalConnectionRepository(db),
		ProfileRepo: repository.NewProfileRepository(db),
	})

	body := []byte(`{"eventType":"Download"}`)
	req := httptest.NewRequest(http.MethodPost, "/webhooks/catalog-movie", bytes.NewReader(body))
	rec := httptest.NewRecorder()
	srv.router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	var resp map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "ignored", resp["outcome"])
}

func TestServer_DebugExport(t *testing.T) {
	db := setupDiagnosticsDB(t)
	historyRepo := repository.NewHistoryRepository(db)
	ctx := context.Background()

	rec1 := models.NewHistoryRecord("/media/a.mkv", "Default", 1000, 500, 12.5, "h264", "mkv")
	require.NoError(t, historyRepo.Create(ctx, &rec1))

	srv := New("127.0.0.1:0", Dependencies{HistoryRepo: historyRepo})

	req := httptest.NewRequest(http.MethodGet, "/debug/export", nil)
	recw := httptest.NewRecorder()
	srv.router.ServeHTTP(recw, req)

	assert.Equal(t, http.StatusOK, recw.Code)
	assert.Equal(t, "application/x-xz", recw.Header().Get("Content-Type"))
	assert.NotEmpty(t, recw.Body.Bytes())
}
