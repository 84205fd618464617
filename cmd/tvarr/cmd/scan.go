package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/jmylchreest/transcodarr/internal/candidateprocessor"
	"github.com/jmylchreest/transcodarr/internal/prober"
	"github.com/jmylchreest/transcodarr/internal/repository"
	"github.com/jmylchreest/transcodarr/internal/scan"
)

var scanCmd = &cobra.Command{
	Use:   "scan",
	Short: "Scan configured roots for encode candidates",
	Long: `scan walks every enabled scan root once, queuing files that don't already
match their profile's target specs. Unlike the folder watcher, it runs to
completion and exits rather than continuing to watch for changes.`,
	RunE: runScan,
}

func init() {
	rootCmd.AddCommand(scanCmd)
}

func runScan(_ *cobra.Command, _ []string) error {
	db, cfg, logger, err := openDB()
	if err != nil {
		return err
	}
	defer func() { _ = db.Close() }()

	ctx := context.Background()

	rootRepo := repository.NewScanRootRepository(db.DB)
	profileRepo := repository.NewProfileRepository(db.DB)
	queueRepo := repository.NewQueueItemRepository(db.DB)

	ffprobePath := cfg.FFmpeg.ProbePath
	if ffprobePath == "" {
		ffprobePath = "ffprobe"
	}

	mediaProber := prober.New(ffprobePath, logger)
	processor := candidateprocessor.New(queueRepo, mediaProber, logger)
	pipeline := scan.New(rootRepo, profileRepo, processor, cfg.Scan.DefaultExtensions, logger)

	queued, err := pipeline.ScanAllRoots(ctx)
	if err != nil {
		return fmt.Errorf("scanning roots: %w", err)
	}

	fmt.Printf("scan complete: %d candidate(s) queued\n", queued)
	return nil
}
