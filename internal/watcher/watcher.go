// Package watcher implements the Folder Watcher: a polling daemon that
// diffs each enabled watch's directory contents against an in-memory
// known-files set and queues only the files that appear after the initial
// seeding pass.
package watcher

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/jmylchreest/transcodarr/internal/candidateprocessor"
	"github.com/jmylchreest/transcodarr/internal/models"
	"github.com/jmylchreest/transcodarr/internal/repository"
)

// optimizedSuffix matches the scan pipeline's own-output exclusion rule.
const optimizedSuffix = "_optimized"

// candidateProcessor is the subset of *candidateprocessor.Processor this
// package depends on, narrowed so tests can supply a fake.
type candidateProcessor interface {
	Process(ctx context.Context, path string, profile *models.Profile, rootID *models.ULID) (*models.QueueItem, candidateprocessor.SkipReason, error)
}

// Watcher polls enabled folder watches on a fixed interval and auto-queues
// newly appeared files.
type Watcher struct {
	watchRepo   repository.FolderWatchRepository
	profileRepo repository.ProfileRepository
	processor   candidateProcessor
	pollInterval time.Duration
	logger      *slog.Logger

	mu         sync.Mutex
	knownFiles map[models.ULID]map[string]bool

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New creates a Watcher with the given poll interval.
func New(watchRepo repository.FolderWatchRepository, profileRepo repository.ProfileRepository, processor candidateProcessor, pollInterval time.Duration, logger *slog.Logger) *Watcher {
	return &Watcher{
		watchRepo:    watchRepo,
		profileRepo:  profileRepo,
		processor:    processor,
		pollInterval: pollInterval,
		logger:       logger,
		knownFiles:   make(map[models.ULID]map[string]bool),
	}
}

// Start performs the initial seeding pass and launches the poll loop. The
// seeding pass records every file currently present under each enabled
// watch without queuing any of them — only files that appear on a later
// pass are ever queued.
func (w *Watcher) Start(ctx context.Context) error {
	w.mu.Lock()
	if w.ctx != nil {
		w.mu.Unlock()
		return fmt.Errorf("watcher already started")
	}
	w.ctx, w.cancel = context.WithCancel(ctx)
	w.mu.Unlock()

	if err := w.seed(w.ctx); err != nil {
		w.logger.Error("initial watcher seeding failed", "error", err)
	}

	w.wg.Add(1)
	go w.pollLoop()

	w.logger.Info("folder watcher started", "poll_interval", w.pollInterval)
	return nil
}

// Stop cancels the poll loop and waits for it to exit.
func (w *Watcher) Stop() {
	w.mu.Lock()
	if w.cancel != nil {
		w.cancel()
	}
	w.mu.Unlock()

	w.wg.Wait()

	w.mu.Lock()
	w.ctx = nil
	w.cancel = nil
	w.mu.Unlock()

	w.logger.Info("folder watcher stopped")
}

func (w *Watcher) pollLoop() {
	defer w.wg.Done()

	ticker := time.NewTicker(w.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-w.ctx.Done():
			return
		case <-ticker.C:
			if err := w.checkWatches(w.ctx); err != nil {
				w.logger.Error("watcher poll failed", "error", err)
			}
		}
	}
}

func (w *Watcher) seed(ctx context.Context) error {
	watches, err := w.watchRepo.GetEnabled(ctx)
	if err != nil {
		return fmt.Errorf("loading enabled folder watches: %w", err)
	}
	for _, watch := range watches {
		files, err := discover(watch.Path, watch.Recursive, watch.ExtensionSet())
		if err != nil {
			w.logger.Warn("seeding watch failed", "path", watch.Path, "error", err)
			continue
		}
		w.mu.Lock()
		w.knownFiles[watch.ID] = files
		w.mu.Unlock()
		w.logger.Info("watch seeded", "path", watch.Path, "existing_files", len(files))
	}
	return nil
}

// checkWatches runs one poll pass over every enabled watch.
func (w *Watcher) checkWatches(ctx context.Context) error {
	watches, err := w.watchRepo.GetEnabled(ctx)
	if err != nil {
		return fmt.Errorf("loading enabled folder watches: %w", err)
	}

	for _, watch := range watches {
		if !watch.AutoQueue {
			continue
		}
		if err := w.checkWatch(ctx, watch); err != nil {
			w.logger.Error("checking watch failed", "path", watch.Path, "error", err)
		}
	}
	return nil
}

func (w *Watcher) checkWatch(ctx context.Context, watch *models.FolderWatch) error {
	current, err := discover(watch.Path, watch.Recursive, watch.ExtensionSet())
	if err != nil {
		return err
	}

	w.mu.Lock()
	known := w.knownFiles[watch.ID]
	w.mu.Unlock()

	var newPaths []string
	for path := range current {
		if !known[path] {
			newPaths = append(newPaths, path)
		}
	}

	if len(newPaths) > 0 {
		profile, err := w.profileRepo.GetByID(ctx, watch.ProfileID)
		if err != nil {
			return fmt.Errorf("loading profile for watch %s: %w", watch.Path, err)
		}
		if profile == nil {
			w.logger.Warn("watch's profile not found, skipping new files", "path", watch.Path, "profile_id", watch.ProfileID)
		} else {
			queued := 0
			for _, path := range newPaths {
				item, reason, err := w.processor.Process(ctx, path, profile, nil)
				if err != nil {
					w.logger.Error("watcher candidate processing failed", "path", path, "error", err)
					continue
				}
				if item != nil {
					queued++
				} else {
					w.logger.Debug("watcher candidate skipped", "path", path, "reason", reason)
				}
			}
			if queued > 0 {
				w.logger.Info("watcher auto-queued new files", "path", watch.Path, "count", queued)
			}
		}
	}

	w.mu.Lock()
	w.knownFiles[watch.ID] = current
	w.mu.Unlock()

	if err := w.watchRepo.TouchLastCheck(ctx, watch.ID, time.Now()); err != nil {
		return fmt.Errorf("touching last_check for watch %s: %w", watch.Path, err)
	}
	return nil
}

// discover enumerates path for files whose extension (without leading dot)
// is in extensions, excluding our own _optimized output.
func discover(path string, recursive bool, extensions map[string]bool) (map[string]bool, error) {
	found := make(map[string]bool)

	info, err := os.Stat(path)
	if err != nil || !info.IsDir() {
		return found, nil
	}

	walk := func(p string, d os.DirEntry) {
		if d.IsDir() {
			return
		}
		ext := strings.ToLower(filepath.Ext(p))
		if len(ext) < 2 || !extensions[ext[1:]] {
			return
		}
		base := strings.TrimSuffix(filepath.Base(p), ext)
		if strings.HasSuffix(base, optimizedSuffix) {
			return
		}
		found[p] = true
	}

	if !recursive {
		entries, err := os.ReadDir(path)
		if err != nil {
			return nil, fmt.Errorf("reading directory %s: %w", path, err)
		}
		for _, entry := range entries {
			walk(filepath.Join(path, entry.Name()), entry)
		}
		return found, nil
	}

	err = filepath.WalkDir(path, func(p string, d os.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		walk(p, d)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walking %s: %w", path, err)
	}
	return found, nil
}
