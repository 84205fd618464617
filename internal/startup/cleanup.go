// Package startup provides utilities for application startup tasks.
package startup

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/jmylchreest/transcodarr/internal/repository"
)

// TempDirPrefix is the prefix used for Upscale Pre-stage working
// directories (frame extraction/reassembly), per 4.I.
const TempDirPrefix = "transcodarr-upscale-"

// CleanupOrphanedTempDirs removes orphaned temporary directories that are older
// than the specified maxAge. It looks for directories matching the pattern
// TempDirPrefix ("transcodarr-upscale-*") in the specified base directory.
//
// Returns the number of directories removed and any error encountered.
func CleanupOrphanedTempDirs(logger *slog.Logger, baseDir string, maxAge time.Duration) (int, error) {
	// Check if the base directory exists
	if _, err := os.Stat(baseDir); os.IsNotExist(err) {
		logger.Debug("base directory does not exist, skipping cleanup",
			"path", baseDir,
		)
		return 0, nil
	}

	entries, err := os.ReadDir(baseDir)
	if err != nil {
		logger.Error("failed to read directory for cleanup",
			"path", baseDir,
			"error", err,
		)
		return 0, err
	}

	cutoff := time.Now().Add(-maxAge)
	var removed int

	for _, entry := range entries {
		// Only process directories
		if !entry.IsDir() {
			continue
		}

		// Only process directories matching our prefix
		if !strings.HasPrefix(entry.Name(), TempDirPrefix) {
			continue
		}

		dirPath := filepath.Join(baseDir, entry.Name())

		// Get file info for modification time
		info, err := entry.Info()
		if err != nil {
			logger.Warn("failed to get directory info",
				"path", dirPath,
				"error", err,
			)
			continue
		}

		// Check if directory is older than cutoff
		if info.ModTime().After(cutoff) {
			logger.Debug("preserving recent temp directory",
				"path", dirPath,
				"age", time.Since(info.ModTime()).Round(time.Second),
			)
			continue
		}

		// Remove the orphaned directory
		if err := os.RemoveAll(dirPath); err != nil {
			logger.Warn("failed to remove orphaned temp directory",
				"path", dirPath,
				"error", err,
			)
			continue
		}

		logger.Info("removed orphaned temp directory",
			"path", dirPath,
			"age", time.Since(info.ModTime()).Round(time.Second),
		)
		removed++
	}

	return removed, nil
}

// DefaultCleanupAge is the default maximum age for orphaned temp directories (1 hour).
const DefaultCleanupAge = 1 * time.Hour

// CleanupSystemTempDirs cleans up orphaned transcodarr temp directories from the system
// temp directory using the default cleanup age.
func CleanupSystemTempDirs(logger *slog.Logger) (int, error) {
	return CleanupOrphanedTempDirs(logger, os.TempDir(), DefaultCleanupAge)
}

// ReleaseStaleEncoderLocks releases queue items left claimed ("processing"/
// "paused" with a stale lock) by a Supervisor that never got to finalise or
// fail them — the crash-recovery case where the process died or was killed
// mid-encode. Without this, those items would stay claimed forever since the
// Encoder Pool only ever observes its own in-memory active count, not a
// lock left behind by a previous process.
//
// Returns the number of items released and any error encountered.
func ReleaseStaleEncoderLocks(ctx context.Context, logger *slog.Logger, queueRepo repository.QueueItemRepository, maxAge time.Duration) (int, error) {
	cutoff := time.Now().Add(-maxAge)

	released, err := queueRepo.ReleaseStaleLocks(ctx, cutoff)
	if err != nil {
		logger.Error("failed to release stale encoder locks", "error", err)
		return 0, err
	}

	if released > 0 {
		logger.Warn("released stale encoder locks left by a previous process", "count", released, "cutoff", cutoff)
	}

	return int(released), nil
}
