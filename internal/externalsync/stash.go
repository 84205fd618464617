package externalsync

import (
	"context"
	"fmt"
)

// stashVersionQuery grounds on external_connections.py's
// _STASH_VERSION_QUERY, used by testStash to confirm reachability and
// API-key validity via GraphQL rather than a REST status endpoint.
const stashVersionQuery = `query Version { version { version } }`

type stashVersionResponse struct {
	Version struct {
		Version string `json:"version"`
	} `json:"version"`
}

func testStash(ctx context.Context, client *apiClient) (TestResult, error) {
	var resp stashVersionResponse
	if err := client.graphQL(ctx, stashVersionQuery, nil, &resp); err != nil {
		return TestResult{}, err
	}
	return TestResult{OK: true, AppName: "stash", Version: resp.Version.Version}, nil
}

// stashScenesQuery is a trimmed form of external_connections.py's
// _STASH_SCENES_QUERY, paginated by per_page=200 like the original.
const stashScenesQuery = `
query FindScenes($filter: FindFilterType) {
  findScenes(filter: $filter) {
    count
    scenes {
      id
      files {
        path
        size
        video_codec
        width
        height
        bit_rate
      }
    }
  }
}`

type stashScenesResponse struct {
	FindScenes struct {
		Count  int `json:"count"`
		Scenes []struct {
			ID    string `json:"id"`
			Files []struct {
				Path       string `json:"path"`
				Size       int64  `json:"size"`
				VideoCodec string `json:"video_codec"`
				Width      int    `json:"width"`
				Height     int    `json:"height"`
				BitRate    int64  `json:"bit_rate"`
			} `json:"files"`
		} `json:"scenes"`
	} `json:"findScenes"`
}

const stashPageSize = 200

// fetchStashLibrary grounds on external_connections.py's
// fetch_stash_library: paginated findScenes query, one candidate per
// scene file.
func fetchStashLibrary(ctx context.Context, client *apiClient) ([]Candidate, error) {
	var candidates []Candidate

	for page := 1; ; page++ {
		variables := map[string]any{
			"filter": map[string]any{"page": page, "per_page": stashPageSize},
		}

		var resp stashScenesResponse
		if err := client.graphQL(ctx, stashScenesQuery, variables, &resp); err != nil {
			return nil, fmt.Errorf("fetching stash scenes page %d: %w", page, err)
		}

		for _, scene := range resp.FindScenes.Scenes {
			for _, f := range scene.Files {
				if f.Path == "" {
					continue
				}
				candidates = append(candidates, Candidate{
					FilePath:     f.Path,
					FileSizeByte: f.Size,
					CurrentSpecs: CandidateSpecs{
						Codec:        f.VideoCodec,
						Resolution:   resolutionOf(f.Width, f.Height),
						BitRate:      f.BitRate,
						Source:       "stash",
						StashSceneID: scene.ID,
					},
				})
			}
		}

		if len(resp.FindScenes.Scenes) < stashPageSize {
			break
		}
	}

	return candidates, nil
}

func resolutionOf(width, height int) string {
	if width == 0 || height == 0 {
		return ""
	}
	return fmt.Sprintf("%dx%d", width, height)
}
