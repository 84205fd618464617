// Package candidateprocessor implements the per-file decision pipeline
// shared by the Scan Pipeline, Folder Watcher, and External Sync: check for
// an existing non-terminal queue item, check filesystem permissions, probe
// the file, decide whether it needs encoding, and insert a queue item.
package candidateprocessor

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/jmylchreest/transcodarr/internal/models"
	"github.com/jmylchreest/transcodarr/internal/prober"
	"github.com/jmylchreest/transcodarr/internal/repository"
)

// SkipReason explains why Process did not insert a queue item.
type SkipReason string

const (
	SkipNone             SkipReason = ""
	SkipAlreadyQueued    SkipReason = "already_queued"
	SkipAlreadyOptimized SkipReason = "already_optimized"
)

// mediaProber is the subset of *prober.Prober this package depends on,
// narrowed so tests can supply a fake without touching a real ffprobe
// binary.
type mediaProber interface {
	Probe(ctx context.Context, path string) (prober.MediaSpecs, error)
}

// Processor owns the repositories and prober needed to turn a candidate
// path into a queue item.
type Processor struct {
	queueRepo repository.QueueItemRepository
	prober    mediaProber
	logger    *slog.Logger
}

// New creates a Processor.
func New(queueRepo repository.QueueItemRepository, p *prober.Prober, logger *slog.Logger) *Processor {
	return &Processor{queueRepo: queueRepo, prober: p, logger: logger}
}

// checkPermissions mirrors the three-tier filesystem check: existence,
// readability, and writability of the containing directory (ffmpeg writes
// its temp output alongside the source before the atomic rename).
func checkPermissions(path string) models.PermissionStatus {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return models.PermissionNotFound
		}
		return models.PermissionNotFound
	}
	if info.IsDir() {
		return models.PermissionNotFound
	}
	if f, err := os.Open(path); err != nil {
		return models.PermissionNoRead
	} else {
		f.Close()
	}
	dir := filepath.Dir(path)
	probe := filepath.Join(dir, ".transcodarr-write-check")
	if f, err := os.OpenFile(probe, os.O_CREATE|os.O_WRONLY, 0o600); err != nil {
		return models.PermissionNoWrite
	} else {
		f.Close()
		os.Remove(probe)
	}
	return models.PermissionOK
}

// Process runs the full per-candidate pipeline for path against profile,
// optionally attached to a scan root (rootID may be nil, e.g. for the
// Folder Watcher or External Sync). It returns the inserted item (nil if
// none was inserted), the reason nothing was inserted, and any error that
// prevented the candidate from being evaluated at all — a probe failure is
// never such an error, since an unprobable file still gets queued with
// codec "unknown".
func (p *Processor) Process(ctx context.Context, path string, profile *models.Profile, rootID *models.ULID) (*models.QueueItem, SkipReason, error) {
	existing, err := p.queueRepo.FindActiveByPath(ctx, path)
	if err != nil {
		return nil, SkipNone, fmt.Errorf("checking existing queue state for %s: %w", path, err)
	}
	if existing != nil {
		return nil, SkipAlreadyQueued, nil
	}

	permission := checkPermissions(path)

	var fileSize int64
	if info, err := os.Stat(path); err == nil {
		fileSize = info.Size()
	}

	specs, err := p.prober.Probe(ctx, path)
	if err != nil {
		return nil, SkipNone, fmt.Errorf("probing %s: %w", path, err)
	}

	currentSpecs := toModelSpecs(specs)
	targetSpecs := profile.TargetSpecs()

	if !models.NeedsEncoding(currentSpecs, targetSpecs) {
		p.logger.Debug("candidate already optimised, skipping", "path", path, "codec", currentSpecs.CodecNormalised)
		return nil, SkipAlreadyOptimized, nil
	}

	savings := models.EstimatedSavingsBytes(currentSpecs.CodecNormalised, profile.TargetVideoCodec, fileSize)

	item := &models.QueueItem{
		FilePath:              path,
		ProfileID:             &profile.ID,
		RootID:                rootID,
		FileSizeBytes:         fileSize,
		EstimatedSavingsBytes: savings,
		CurrentSpecs:          models.MediaSpecsColumn{Specs: currentSpecs, Valid: true},
		TargetSpecs:           models.MediaSpecsColumn{Specs: targetSpecs, Valid: true},
		PermissionStatus:      permission,
	}

	if permission == models.PermissionOK {
		item.Status = models.StatusPending
	} else {
		item.MarkPermissionError(permission, fmt.Sprintf("permission check failed: %s", permission))
	}

	if err := p.queueRepo.Create(ctx, item); err != nil {
		return nil, SkipNone, fmt.Errorf("inserting queue item for %s: %w", path, err)
	}

	p.logger.Info("queued candidate", "path", path, "codec", currentSpecs.CodecNormalised,
		"resolution", currentSpecs.Resolution, "estimated_savings_bytes", savings, "permission", permission)

	return item, SkipNone, nil
}

func toModelSpecs(specs prober.MediaSpecs) models.MediaSpecs {
	tracks := make([]models.AudioTrack, 0, len(specs.AudioTracks))
	for _, t := range specs.AudioTracks {
		tracks = append(tracks, models.AudioTrack{
			Codec:      t.Codec,
			Language:   t.Language,
			Channels:   t.Channels,
			SampleRate: t.SampleRate,
		})
	}
	return models.MediaSpecs{
		CodecNormalised: specs.CodecNormalised,
		Resolution:      specs.Resolution,
		Framerate:       specs.Framerate,
		AudioTracks:     tracks,
		DurationSeconds: specs.DurationSeconds,
		BitRate:         specs.BitRate,
	}
}
