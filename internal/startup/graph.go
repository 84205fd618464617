package startup

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/jmylchreest/transcodarr/internal/candidateprocessor"
	"github.com/jmylchreest/transcodarr/internal/codec"
	"github.com/jmylchreest/transcodarr/internal/config"
	"github.com/jmylchreest/transcodarr/internal/database"
	"github.com/jmylchreest/transcodarr/internal/diagnostics"
	"github.com/jmylchreest/transcodarr/internal/encoderpool"
	"github.com/jmylchreest/transcodarr/internal/encodersupervisor"
	"github.com/jmylchreest/transcodarr/internal/externalsync"
	"github.com/jmylchreest/transcodarr/internal/hwaccel"
	"github.com/jmylchreest/transcodarr/internal/prober"
	"github.com/jmylchreest/transcodarr/internal/repository"
	"github.com/jmylchreest/transcodarr/internal/resource"
	"github.com/jmylchreest/transcodarr/internal/scan"
	"github.com/jmylchreest/transcodarr/internal/upscale"
	"github.com/jmylchreest/transcodarr/internal/watcher"
	"github.com/jmylchreest/transcodarr/internal/windowscheduler"
)

// staleLockAge is how old a queue item's lock must be, on startup, before
// ReleaseStaleEncoderLocks treats it as abandoned by a crashed Supervisor.
const staleLockAge = 10 * time.Minute

// Graph is the fully wired set of long-running daemons this repo starts:
// Persistence -> ResourceMonitor -> Prober -> ScanPipeline -> Watcher ->
// Scheduler -> EncoderPool -> ExternalSync -> Diagnostics, each handed the
// repositories and collaborators built ahead of it. It owns the one root
// context every background goroutine runs off, matching the teacher's
// daemon-per-package, WaitGroup-joined shutdown idiom.
type Graph struct {
	DB *database.DB

	ScanPipeline  *scan.Pipeline
	Watcher       *watcher.Watcher
	Scheduler     *windowscheduler.Scheduler
	EncoderPool   *encoderpool.Pool
	ExternalSync  *externalsync.Service
	Diagnostics   *diagnostics.Server
	HWAccel       *hwaccel.Detector

	logger *slog.Logger
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// Build constructs the full object graph from cfg, opening the database,
// running migrations, releasing any locks left behind by a crashed
// previous process, and wiring every daemon's dependencies. It does not
// start anything; call Start for that.
func Build(ctx context.Context, cfg *config.Config, logger *slog.Logger, version string) (*Graph, error) {
	if logger == nil {
		logger = slog.Default()
	}

	db, err := database.New(cfg.Database, logger, nil)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	if err := db.Migrate(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	queueRepo := repository.NewQueueItemRepository(db.DB)
	profileRepo := repository.NewProfileRepository(db.DB)
	scanRootRepo := repository.NewScanRootRepository(db.DB)
	watchRepo := repository.NewFolderWatchRepository(db.DB)
	scheduleRepo := repository.NewScheduleRepository(db.DB)
	historyRepo := repository.NewHistoryRepository(db.DB)
	connRepo := repository.NewExternalConnectionRepository(db.DB)

	if released, err := ReleaseStaleEncoderLocks(ctx, logger, queueRepo, staleLockAge); err != nil {
		logger.Warn("startup: releasing stale encoder locks failed", "error", err)
	} else if released > 0 {
		logger.Info("startup: released stale encoder locks", "count", released)
	}
	if removed, err := CleanupSystemTempDirs(logger); err != nil {
		logger.Warn("startup: cleaning orphaned upscale temp dirs failed", "error", err)
	} else if removed > 0 {
		logger.Info("startup: removed orphaned upscale temp dirs", "count", removed)
	}

	resourceMonitor := resource.New(logger, cfg.Resources.NvidiaSMIPath, cfg.Resources.EnableGPUSampling)

	ffmpegPath := cfg.FFmpeg.BinaryPath
	if ffmpegPath == "" {
		ffmpegPath = "ffmpeg"
	}
	ffprobePath := cfg.FFmpeg.ProbePath
	if ffprobePath == "" {
		ffprobePath = "ffprobe"
	}

	mediaProber := prober.New(ffprobePath, logger)
	processor := candidateprocessor.New(queueRepo, mediaProber, logger)

	detector := hwaccel.New(ffmpegPath, logger)
	if _, err := detector.Detect(ctx); err != nil {
		logger.Warn("startup: hardware acceleration detection failed, falling back to configured priority", "error", err)
	}

	scanPipeline := scan.New(scanRootRepo, profileRepo, processor, cfg.Scan.DefaultExtensions, logger)
	fileWatcher := watcher.New(watchRepo, profileRepo, processor, cfg.Watcher.PollFallback, logger)

	upscalePipeline := upscale.New(upscale.Dependencies{
		FFmpegBinary:        ffmpegPath,
		Prober:              mediaProber,
		Logger:              logger,
		DiskHeadroomPercent: cfg.Upscale.DiskHeadroomPercent,
	})

	hwPriority := hwAccelPriority(cfg.FFmpeg.HWAccelPriority, detector)

	supervisorFactory := encodersupervisor.NewFactory(encodersupervisor.Dependencies{
		QueueRepo:             queueRepo,
		HistoryRepo:           historyRepo,
		Resource:              resourceMonitor,
		Upscaler:              upscalePipeline,
		Logger:                logger,
		FFmpegBinary:          ffmpegPath,
		HWAccelPriority:       hwPriority,
		PauseMechanism:        cfg.Encoder.PauseMechanism,
		ResourceCheckInterval: cfg.Resources.PollInterval,
		ProgressCoalesce:      cfg.Encoder.ProgressPollEvery.Duration(),
		CPUThresholdPct:       cfg.Resources.CPUThresholdPct,
		MemThresholdPct:       cfg.Resources.MemThresholdPct,
		GPUThresholdPct:       cfg.Resources.GPUThresholdPct,
	})

	workerID := fmt.Sprintf("transcodarr-%d", os.Getpid())
	pool := encoderpool.New(queueRepo, profileRepo, supervisorFactory, workerID, cfg.Encoder.MaxConcurrentJobs, logger)

	scheduler := windowscheduler.New(scheduleRepo, pool, nil, cfg.Scheduler.TickInterval, logger)

	var syncService *externalsync.Service
	if cfg.ExternalSync.Enabled {
		secret := os.Getenv(cfg.ExternalSync.EncryptionKeyEnv)
		syncService, err = externalsync.New(connRepo, profileRepo, processor, secret, cfg.ExternalSync.HTTPTimeout, logger)
		if err != nil {
			logger.Warn("startup: external sync disabled, encryption key unavailable", "error", err)
			syncService = nil
		}
	}

	var diagServer *diagnostics.Server
	if cfg.Diagnostics.Enabled {
		addr := fmt.Sprintf("%s:%d", cfg.Diagnostics.Host, cfg.Diagnostics.Port)
		diagServer = diagnostics.New(addr, diagnostics.Dependencies{
			QueueRepo:    queueRepo,
			HistoryRepo:  historyRepo,
			ConnRepo:     connRepo,
			ProfileRepo:  profileRepo,
			ExternalSync: syncService,
			Logger:       logger,
			Version:      version,
			FFmpegBinary: ffmpegPath,
		})
	}

	graphCtx, cancel := context.WithCancel(ctx)

	return &Graph{
		DB:           db,
		ScanPipeline: scanPipeline,
		Watcher:      fileWatcher,
		Scheduler:    scheduler,
		EncoderPool:  pool,
		ExternalSync: syncService,
		Diagnostics:  diagServer,
		HWAccel:      detector,
		logger:       logger,
		ctx:          graphCtx,
		cancel:       cancel,
	}, nil
}

// hwAccelPriority parses the configured acceleration name list, falling
// back to whatever the detector actually found on this host when config
// leaves it empty (nothing configured, or every configured name was
// unrecognized).
func hwAccelPriority(configured []string, detector *hwaccel.Detector) []codec.HWAccel {
	var parsed []codec.HWAccel
	for _, name := range configured {
		if accel, ok := codec.ParseHWAccel(name); ok {
			parsed = append(parsed, accel)
		}
	}
	if len(parsed) > 0 {
		return parsed
	}
	return detector.PriorityList()
}

// Start launches every long-running daemon as its own goroutine off the
// graph's root context: the Folder Watcher, the Window Scheduler (which in
// turn starts/stops the Encoder Pool as the rest window opens and closes),
// and the Diagnostics HTTP server. The Scan Pipeline has no background
// loop of its own; it's invoked on demand (manual scan or a future
// periodic trigger), so it is not started here.
func (g *Graph) Start() error {
	if err := g.Watcher.Start(g.ctx); err != nil {
		return fmt.Errorf("starting folder watcher: %w", err)
	}
	if err := g.Scheduler.Start(g.ctx); err != nil {
		return fmt.Errorf("starting window scheduler: %w", err)
	}

	if g.Diagnostics != nil {
		g.wg.Add(1)
		go func() {
			defer g.wg.Done()
			if err := g.Diagnostics.Start(g.ctx); err != nil {
				g.logger.Error("diagnostics server stopped with error", "error", err)
			}
		}()
	}

	return nil
}

// Shutdown cancels the root context, stops every daemon, waits for the
// diagnostics server's goroutine to exit, and closes the database.
func (g *Graph) Shutdown() error {
	g.cancel()
	g.Watcher.Stop()
	g.Scheduler.Stop()
	g.EncoderPool.Stop()
	g.wg.Wait()
	return g.DB.Close()
}
