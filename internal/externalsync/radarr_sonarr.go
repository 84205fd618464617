package externalsync

import (
	"context"
	"strconv"
)

// systemStatusResponse is the shape Radarr and Sonarr share; both
// services expose GET /api/v3/system/status.
type systemStatusResponse struct {
	AppName      string `json:"appName"`
	Version      string `json:"version"`
	InstanceName string `json:"instanceName"`
}

// testSystemStatus grounds on external_connections.py's test_connection
// default branch (GET /system/status for any non-Stash connection).
func testSystemStatus(ctx context.Context, client *apiClient) (TestResult, error) {
	var status systemStatusResponse
	if _, err := client.get(ctx, "/api/v3/system/status", &status); err != nil {
		return TestResult{}, err
	}
	return TestResult{
		OK:           true,
		AppName:      status.AppName,
		Version:      status.Version,
		InstanceName: status.InstanceName,
	}, nil
}

type radarrMovie struct {
	Title     string `json:"title"`
	MovieFile *struct {
		RelativePath string `json:"relativePath"`
		Path         string `json:"path"`
		Size         int64  `json:"size"`
		MediaInfo    struct {
			VideoCodec string `json:"videoCodec"`
			Resolution string `json:"resolution"`
			VideoBitrate int64 `json:"videoBitrate"`
		} `json:"mediaInfo"`
	} `json:"movieFile"`
	ID int `json:"id"`
}

// fetchRadarrLibrary grounds on external_connections.py's
// fetch_radarr_library: GET /movie, keep only entries with a movieFile.
func fetchRadarrLibrary(ctx context.Context, client *apiClient) ([]Candidate, error) {
	var movies []radarrMovie
	if _, err := client.get(ctx, "/api/v3/movie", &movies); err != nil {
		return nil, err
	}

	var candidates []Candidate
	for _, m := range movies {
		if m.MovieFile == nil {
			continue
		}
		path := m.MovieFile.Path
		if path == "" {
			path = m.MovieFile.RelativePath
		}
		candidates = append(candidates, Candidate{
			FilePath:     path,
			FileSizeByte: m.MovieFile.Size,
			CurrentSpecs: CandidateSpecs{
				Codec:         m.MovieFile.MediaInfo.VideoCodec,
				Resolution:    m.MovieFile.MediaInfo.Resolution,
				BitRate:       m.MovieFile.MediaInfo.VideoBitrate,
				Source:        "radarr",
				RadarrMovieID: m.ID,
				Title:         m.Title,
			},
		})
	}
	return candidates, nil
}

type sonarrSeries struct {
	Title string `json:"title"`
	ID    int    `json:"id"`
}

type sonarrEpisodeFile struct {
	Path      string `json:"path"`
	Size      int64  `json:"size"`
	MediaInfo struct {
		VideoCodec   string `json:"videoCodec"`
		Resolution   string `json:"resolution"`
		VideoBitrate int64  `json:"videoBitrate"`
	} `json:"mediaInfo"`
}

// fetchSonarrLibrary grounds on external_connections.py's
// fetch_sonarr_library: GET /series, then GET /episodefile?seriesId=X per
// series.
func fetchSonarrLibrary(ctx context.Context, client *apiClient) ([]Candidate, error) {
	var series []sonarrSeries
	if _, err := client.get(ctx, "/api/v3/series", &series); err != nil {
		return nil, err
	}

	var candidates []Candidate
	for _, show := range series {
		var files []sonarrEpisodeFile
		if _, err := client.get(ctx, "/api/v3/episodefile?seriesId="+strconv.Itoa(show.ID), &files); err != nil {
			return nil, err
		}
		for _, f := range files {
			if f.Path == "" {
				continue
			}
			candidates = append(candidates, Candidate{
				FilePath:     f.Path,
				FileSizeByte: f.Size,
				CurrentSpecs: CandidateSpecs{
					Codec:          f.MediaInfo.VideoCodec,
					Resolution:     f.MediaInfo.Resolution,
					BitRate:        f.MediaInfo.VideoBitrate,
					Source:         "sonarr",
					SonarrSeriesID: show.ID,
					Title:          show.Title,
				},
			})
		}
	}
	return candidates, nil
}
