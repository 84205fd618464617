package externalsync

// Candidate describes one file an external connection reports as part of
// its library, destined for the same needs-encoding/permission/dedup
// decision the Scan Pipeline and Folder Watcher apply to locally
// discovered files.
type Candidate struct {
	FilePath     string
	FileSizeByte int64
	CurrentSpecs CandidateSpecs
}

// CandidateSpecs is the subset of a remote file's reported specs worth
// logging alongside the candidate; the candidate processor re-probes the
// file itself via ffprobe rather than trusting these, so they're metadata
// only, not an input to the needs-encoding decision.
type CandidateSpecs struct {
	Codec      string
	Resolution string
	BitRate    int64

	// Source-specific identifiers, populated per ConnectionKind.
	Source          string // "radarr", "sonarr", "stash"
	RadarrMovieID   int    `json:",omitempty"`
	SonarrSeriesID  int    `json:",omitempty"`
	StashSceneID    string `json:",omitempty"`
	Title           string `json:",omitempty"`
}

// TestResult is the outcome of Test.
type TestResult struct {
	OK           bool
	AppName      string
	Version      string
	InstanceName string
	Error        string
}

// PushEventKind is the subset of webhook event types External Sync acts
// on; anything else is acknowledged but ignored per §6's contract.
type PushEventKind string

const (
	PushEventDownload PushEventKind = "Download"
	PushEventUpgrade  PushEventKind = "Upgrade"
)

// PushOutcome reports what HandlePush did with one webhook payload.
type PushOutcome string

const (
	PushQueued  PushOutcome = "queued"
	PushIgnored PushOutcome = "ignored"
)
