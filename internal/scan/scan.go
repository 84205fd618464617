// Package scan implements the Scan Pipeline: enumerating a scan root's
// video files and handing each one to the shared candidate processor.
package scan

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/jmylchreest/transcodarr/internal/candidateprocessor"
	"github.com/jmylchreest/transcodarr/internal/models"
	"github.com/jmylchreest/transcodarr/internal/repository"
)

// optimizedSuffix marks our own output files so a re-scan never re-queues
// something this system already produced.
const optimizedSuffix = "_optimized"

// candidateProcessor is the subset of *candidateprocessor.Processor this
// package depends on, narrowed so tests can supply a fake.
type candidateProcessor interface {
	Process(ctx context.Context, path string, profile *models.Profile, rootID *models.ULID) (*models.QueueItem, candidateprocessor.SkipReason, error)
}

// Pipeline scans configured roots for candidates needing encoding.
type Pipeline struct {
	rootRepo    repository.ScanRootRepository
	profileRepo repository.ProfileRepository
	processor   candidateProcessor
	extensions  map[string]bool
	logger      *slog.Logger
}

// New creates a Pipeline. extensions is the lowercased, dot-prefixed
// video-extension allowlist (e.g. ".mkv") used to recognise candidates.
func New(rootRepo repository.ScanRootRepository, profileRepo repository.ProfileRepository, processor candidateProcessor, extensions []string, logger *slog.Logger) *Pipeline {
	set := make(map[string]bool, len(extensions))
	for _, ext := range extensions {
		set[strings.ToLower(ext)] = true
	}
	return &Pipeline{
		rootRepo:    rootRepo,
		profileRepo: profileRepo,
		processor:   processor,
		extensions:  set,
		logger:      logger,
	}
}

// isCandidate reports whether a path is eligible for scanning: an
// allowlisted extension that isn't one of our own optimized outputs.
func (p *Pipeline) isCandidate(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	if !p.extensions[ext] {
		return false
	}
	base := strings.TrimSuffix(filepath.Base(path), ext)
	return !strings.HasSuffix(base, optimizedSuffix)
}

// discover walks root looking for candidate files, honoring the recursive
// flag. Results are returned in sorted order so a scan is deterministic.
func (p *Pipeline) discover(root string, recursive bool) ([]string, error) {
	var found []string

	if !recursive {
		entries, err := os.ReadDir(root)
		if err != nil {
			return nil, fmt.Errorf("reading directory %s: %w", root, err)
		}
		for _, entry := range entries {
			if entry.IsDir() {
				continue
			}
			path := filepath.Join(root, entry.Name())
			if p.isCandidate(path) {
				found = append(found, path)
			}
		}
		sort.Strings(found)
		return found, nil
	}

	err := filepath.WalkDir(root, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			p.logger.Warn("skipping unreadable path during scan", "path", path, "error", err)
			return nil
		}
		if d.IsDir() {
			return nil
		}
		if p.isCandidate(path) {
			found = append(found, path)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walking %s: %w", root, err)
	}

	sort.Strings(found)
	return found, nil
}

// ScanRoot runs the full pipeline for a single root and returns the number
// of queue items added. A disabled or missing root, or one whose profile
// has gone missing, returns 0 with a logged reason rather than an error —
// ScanAllRoots must keep iterating its other roots regardless.
func (p *Pipeline) ScanRoot(ctx context.Context, rootID models.ULID) (int, error) {
	root, err := p.rootRepo.GetByID(ctx, rootID)
	if err != nil {
		return 0, fmt.Errorf("loading scan root %s: %w", rootID, err)
	}
	if root == nil {
		p.logger.Warn("scan root not found", "root_id", rootID)
		return 0, nil
	}
	if !root.Enabled {
		p.logger.Info("scan root disabled, skipping", "root_id", rootID, "path", root.Path)
		return 0, nil
	}

	profile, err := p.profileRepo.GetByID(ctx, root.ProfileID)
	if err != nil {
		return 0, fmt.Errorf("loading profile for root %s: %w", rootID, err)
	}
	if profile == nil {
		p.logger.Warn("scan root's profile not found, skipping", "root_id", rootID, "profile_id", root.ProfileID)
		return 0, nil
	}

	p.logger.Info("scanning root", "root_id", rootID, "path", root.Path, "recursive", root.Recursive)

	candidates, err := p.discover(root.Path, root.Recursive)
	if err != nil {
		return 0, fmt.Errorf("discovering candidates under %s: %w", root.Path, err)
	}
	p.logger.Info("candidates discovered", "root_id", rootID, "count", len(candidates))

	added := 0
	for _, path := range candidates {
		item, reason, err := p.processor.Process(ctx, path, profile, &root.ID)
		if err != nil {
			p.logger.Error("candidate processing failed", "path", path, "error", err)
			continue
		}
		if item == nil {
			p.logger.Debug("candidate skipped", "path", path, "reason", reason)
			continue
		}
		added++
	}

	p.logger.Info("scan complete", "root_id", rootID, "added", added)
	return added, nil
}

// ScanAllRoots scans every enabled root and sums the number of items
// added. A failure scanning one root is logged and does not abort the
// remaining roots.
func (p *Pipeline) ScanAllRoots(ctx context.Context) (int, error) {
	roots, err := p.rootRepo.GetEnabled(ctx)
	if err != nil {
		return 0, fmt.Errorf("loading enabled scan roots: %w", err)
	}

	total := 0
	for _, root := range roots {
		added, err := p.ScanRoot(ctx, root.ID)
		if err != nil {
			p.logger.Error("scan root failed", "root_id", root.ID, "path", root.Path, "error", err)
			continue
		}
		total += added
	}
	return total, nil
}
