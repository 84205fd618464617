package externalsync

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/jmylchreest/transcodarr/internal/candidateprocessor"
	"github.com/jmylchreest/transcodarr/internal/models"
	"github.com/jmylchreest/transcodarr/internal/repository"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func setupExternalSyncDB(t *testing.T) (repository.ExternalConnectionRepository, repository.ProfileRepository) {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&models.ExternalConnection{}, &models.Profile{}))

	return repository.NewExternalConnectionRepository(db), repository.NewProfileRepository(db)
}

func testExternalProfile() *models.Profile {
	return &models.Profile{
		Name:             "Default",
		TargetVideoCodec: models.VideoCodecH264,
		Container:        models.ContainerMKV,
		AudioStrategy:    models.AudioStrategyPreserveAll,
		SubtitleStrategy: models.SubtitleStrategyPreserveAll,
		Quality:          23,
	}
}

// fakeProcessor records every path it's asked to process instead of
// touching the filesystem or a real prober, letting tests assert
// External Sync never bypasses the shared candidate pipeline.
type fakeProcessor struct {
	processed []string
}

func (f *fakeProcessor) Process(_ context.Context, path string, _ *models.Profile, _ *models.ULID) (*models.QueueItem, candidateprocessor.SkipReason, error) {
	f.processed = append(f.processed, path)
	return &models.QueueItem{FilePath: path}, candidateprocessor.SkipNone, nil
}

func TestService_Test_CatalogConnection(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v3/system/status", r.URL.Path)
		assert.Equal(t, "secret-key", r.Header.Get("X-Api-Key"))
		_ = json.NewEncoder(w).Encode(map[string]string{
			"appName": "Radarr", "version": "5.0.0", "instanceName": "radarr-main",
		})
	}))
	defer server.Close()

	connRepo, profileRepo := setupExternalSyncDB(t)
	svc, err := New(connRepo, profileRepo, &fakeProcessor{}, "test-secret", 2*time.Second, nil)
	require.NoError(t, err)

	conn := &models.ExternalConnection{Name: "radarr", Kind: models.ConnectionKindCatalogMovie, BaseURL: server.URL, Enabled: true}
	require.NoError(t, svc.SetAPIKey(conn, "secret-key"))
	require.NoError(t, connRepo.Create(context.Background(), conn))

	result, err := svc.Test(context.Background(), conn)
	require.NoError(t, err)
	assert.True(t, result.OK)
	assert.Equal(t, "Radarr", result.AppName)

	updated, err := connRepo.GetByID(context.Background(), conn.ID)
	require.NoError(t, err)
	assert.NotNil(t, updated.LastTested)
}

func TestService_Test_InvalidAPIKey(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer server.Close()

	connRepo, profileRepo := setupExternalSyncDB(t)
	svc, err := New(connRepo, profileRepo, &fakeProcessor{}, "test-secret", 2*time.Second, nil)
	require.NoError(t, err)

	conn := &models.ExternalConnection{Name: "radarr", Kind: models.ConnectionKindCatalogMovie, BaseURL: server.URL, Enabled: true}
	require.NoError(t, svc.SetAPIKey(conn, "wrong-key"))
	require.NoError(t, connRepo.Create(context.Background(), conn))

	result, err := svc.Test(context.Background(), conn)
	require.NoError(t, err)
	assert.False(t, result.OK)
	assert.NotEmpty(t, result.Error)
}

func TestService_Pull_Radarr(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode([]map[string]any{
			{
				"title": "Movie One",
				"id":    1,
				"movieFile": map[string]any{
					"path": "/media/movies/movie-one.mkv",
					"size": 4_000_000_000,
					"mediaInfo": map[string]any{"videoCodec": "h264", "resolution": "1920x1080"},
				},
			},
			{"title": "No File Yet", "id": 2},
		})
	}))
	defer server.Close()

	connRepo, profileRepo := setupExternalSyncDB(t)
	processor := &fakeProcessor{}
	svc, err := New(connRepo, profileRepo, processor, "test-secret", 2*time.Second, nil)
	require.NoError(t, err)

	conn := &models.ExternalConnection{Name: "radarr", Kind: models.ConnectionKindCatalogMovie, BaseURL: server.URL, Enabled: true}
	require.NoError(t, svc.SetAPIKey(conn, "secret-key"))
	require.NoError(t, connRepo.Create(context.Background(), conn))

	profile := testExternalProfile()
	require.NoError(t, profileRepo.Create(context.Background(), profile))

	count, err := svc.Pull(context.Background(), conn, profile)
	require.NoError(t, err)
	assert.Equal(t, 1, count)
	assert.Equal(t, []string{"/media/movies/movie-one.mkv"}, processor.processed)
}

func TestService_Pull_Sonarr(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/v3/series":
			_ = json.NewEncoder(w).Encode([]map[string]any{{"title": "Show One", "id": 7}})
		case "/api/v3/episodefile":
			assert.Equal(t, "7", r.URL.Query().Get("seriesId"))
			_ = json.NewEncoder(w).Encode([]map[string]any{
				{"path": "/media/tv/show-one/s01e01.mkv", "size": 1_000_000_000,
					"mediaInfo": map[string]any{"videoCodec": "h264", "resolution": "1280x720"}},
			})
		}
	}))
	defer server.Close()

	connRepo, profileRepo := setupExternalSyncDB(t)
	processor := &fakeProcessor{}
	svc, err := New(connRepo, profileRepo, processor, "test-secret", 2*time.Second, nil)
	require.NoError(t, err)

	conn := &models.ExternalConnection{Name: "sonarr", Kind: models.ConnectionKindCatalogSeries, BaseURL: server.URL, Enabled: true}
	require.NoError(t, svc.SetAPIKey(conn, "secret-key"))
	require.NoError(t, connRepo.Create(context.Background(), conn))

	profile := testExternalProfile()
	require.NoError(t, profileRepo.Create(context.Background(), profile))

	count, err := svc.Pull(context.Background(), conn, profile)
	require.NoError(t, err)
	assert.Equal(t, 1, count)
	assert.Equal(t, []string{"/media/tv/show-one/s01e01.mkv"}, processor.processed)
}

func TestService_Pull_Stash(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Variables struct {
				Filter struct {
					Page int `json:"page"`
				} `json:"filter"`
			} `json:"variables"`
		}
		_ = json.NewDecoder(r.Body).Decode(&req)

		if req.Variables.Filter.Page > 1 {
			_ = json.NewEncoder(w).Encode(map[string]any{
				"data": map[string]any{"findScenes": map[string]any{"count": 1, "scenes": []any{}}},
			})
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"data": map[string]any{
				"findScenes": map[string]any{
					"count": 1,
					"scenes": []map[string]any{
						{"id": "42", "files": []map[string]any{
							{"path": "/media/scenes/scene.mp4", "size": 500_000_000, "video_codec": "h264", "width": 1920, "height": 1080, "bit_rate": 8_000_000},
						}},
					},
				},
			},
		})
	}))
	defer server.Close()

	connRepo, profileRepo := setupExternalSyncDB(t)
	processor := &fakeProcessor{}
	svc, err := New(connRepo, profileRepo, processor, "test-secret", 2*time.Second, nil)
	require.NoError(t, err)

	conn := &models.ExternalConnection{Name: "stash", Kind: models.ConnectionKindSceneLibrary, BaseURL: server.URL, Enabled: true}
	require.NoError(t, svc.SetAPIKey(conn, "secret-key"))
	require.NoError(t, connRepo.Create(context.Background(), conn))

	profile := testExternalProfile()
	require.NoError(t, profileRepo.Create(context.Background(), profile))

	count, err := svc.Pull(context.Background(), conn, profile)
	require.NoError(t, err)
	assert.Equal(t, 1, count)
	assert.Equal(t, []string{"/media/scenes/scene.mp4"}, processor.processed)
}

func TestService_HandlePush_DownloadQueues(t *testing.T) {
	connRepo, profileRepo := setupExternalSyncDB(t)
	processor := &fakeProcessor{}
	svc, err := New(connRepo, profileRepo, processor, "test-secret", 2*time.Second, nil)
	require.NoError(t, err)

	profile := testExternalProfile()
	require.NoError(t, profileRepo.Create(context.Background(), profile))
	conn := &models.ExternalConnection{Name: "radarr", Kind: models.ConnectionKindCatalogMovie, BaseURL: "http://example.invalid"}

	payload := WebhookPayload{EventType: PushEventDownload}
	payload.Movie = &struct {
		MovieFile *struct {
			Path      string `json:"path"`
			Size      int64  `json:"size"`
			MediaInfo struct {
				VideoCodec string `json:"videoCodec"`
				Resolution string `json:"resolution"`
			} `json:"mediaInfo"`
		} `json:"movieFile"`
	}{}
	payload.Movie.MovieFile = &struct {
		Path      string `json:"path"`
		Size      int64  `json:"size"`
		MediaInfo struct {
			VideoCodec string `json:"videoCodec"`
			Resolution string `json:"resolution"`
		} `json:"mediaInfo"`
	}{Path: "/media/movies/new.mkv"}

	outcome, err := svc.HandlePush(context.Background(), conn, profile, payload)
	require.NoError(t, err)
	assert.Equal(t, PushQueued, outcome)
	assert.Equal(t, []string{"/media/movies/new.mkv"}, processor.processed)
}

func TestService_HandlePush_IgnoresUnknownEvent(t *testing.T) {
	connRepo, profileRepo := setupExternalSyncDB(t)
	processor := &fakeProcessor{}
	svc, err := New(connRepo, profileRepo, processor, "test-secret", 2*time.Second, nil)
	require.NoError(t, err)

	profile := testExternalProfile()
	conn := &models.ExternalConnection{Name: "radarr", Kind: models.ConnectionKindCatalogMovie}

	outcome, err := svc.HandlePush(context.Background(), conn, profile, WebhookPayload{EventType: "Test"})
	require.NoError(t, err)
	assert.Equal(t, PushIgnored, outcome)
	assert.Empty(t, processor.processed)
}
