package externalsync

import (
	"encoding/json"
)

// WebhookPayload is the JSON body delivered to /webhooks/{kind}. Sonarr
// and Radarr send structurally different payloads for the same event
// types, so the file-of-interest fields are extracted from whichever
// kind-specific substructure is present rather than one shared shape,
// grounded on external_connections.py's register_webhook payload shape
// (onDownload/onUpgrade).
type WebhookPayload struct {
	EventType PushEventKind `json:"eventType"`

	Movie *struct {
		MovieFile *struct {
			Path      string `json:"path"`
			Size      int64  `json:"size"`
			MediaInfo struct {
				VideoCodec string `json:"videoCodec"`
				Resolution string `json:"resolution"`
			} `json:"mediaInfo"`
		} `json:"movieFile"`
	} `json:"movie,omitempty"`

	Episodes []struct {
		EpisodeFile *struct {
			Path      string `json:"path"`
			Size      int64  `json:"size"`
			MediaInfo struct {
				VideoCodec string `json:"videoCodec"`
				Resolution string `json:"resolution"`
			} `json:"mediaInfo"`
		} `json:"episodeFile"`
	} `json:"episodes,omitempty"`
}

// FilePath extracts the single file path this payload is about, checking
// the Radarr-shaped Movie substructure first and falling back to the
// first Sonarr-shaped episode with a file. Returns "" if neither is
// present, which HandlePush treats as nothing to do.
func (p WebhookPayload) FilePath() string {
	if p.Movie != nil && p.Movie.MovieFile != nil {
		return p.Movie.MovieFile.Path
	}
	for _, ep := range p.Episodes {
		if ep.EpisodeFile != nil && ep.EpisodeFile.Path != "" {
			return ep.EpisodeFile.Path
		}
	}
	return ""
}

// ParseWebhookPayload decodes one webhook request body.
func ParseWebhookPayload(body []byte) (WebhookPayload, error) {
	var payload WebhookPayload
	err := json.Unmarshal(body, &payload)
	return payload, err
}
