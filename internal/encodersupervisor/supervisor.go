// Package encodersupervisor implements the Encoder Supervisor: one queue
// item's lifetime from planning an ffmpeg invocation through running it,
// pausing and resuming it under resource pressure, and finalising the
// result onto disk.
package encodersupervisor

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"runtime"
	"syscall"
	"time"

	"github.com/jmylchreest/transcodarr/internal/codec"
	"github.com/jmylchreest/transcodarr/internal/encoderpool"
	"github.com/jmylchreest/transcodarr/internal/ffmpeg"
	"github.com/jmylchreest/transcodarr/internal/models"
	"github.com/jmylchreest/transcodarr/internal/repository"
	"github.com/jmylchreest/transcodarr/internal/resource"
	"github.com/jmylchreest/transcodarr/internal/upscale"
)

// resourceSampler is the subset of *resource.Monitor this package depends
// on, narrowed for testability.
type resourceSampler interface {
	HostSnapshot(ctx context.Context) (resource.HostSnapshot, error)
}

// upscalePipeline is the subset of *upscale.Pipeline this package depends
// on, narrowed for testability.
type upscalePipeline interface {
	Run(ctx context.Context, sourcePath string, plan models.UpscalePlan, progress func(float64)) (*upscale.Result, error)
	Cleanup(workDir string) error
}

// Dependencies are the shared, process-lifetime collaborators every Job
// needs; one Dependencies value is bound once at startup and reused by
// NewFactory for every claimed item.
type Dependencies struct {
	QueueRepo   repository.QueueItemRepository
	HistoryRepo repository.HistoryRepository
	Resource    resourceSampler
	Upscaler    upscalePipeline
	Logger      *slog.Logger

	FFmpegBinary    string
	HWAccelPriority []codec.HWAccel

	// PauseMechanism overrides the runtime.GOOS-based default pause
	// strategy when non-empty ("signal" or "affinity").
	PauseMechanism string

	ResourceCheckInterval time.Duration
	ProgressCoalesce      time.Duration

	CPUThresholdPct float64
	MemThresholdPct float64
	GPUThresholdPct float64
}

// Job supervises exactly one queue item's encode.
type Job struct {
	deps Dependencies
}

// NewFactory returns an encoderpool.SupervisorFactory bound to deps. Every
// claimed item gets its own *Job, but all share the same Dependencies.
func NewFactory(deps Dependencies) encoderpool.SupervisorFactory {
	if deps.ResourceCheckInterval <= 0 {
		deps.ResourceCheckInterval = 5 * time.Second
	}
	if deps.ProgressCoalesce <= 0 {
		deps.ProgressCoalesce = time.Second
	}
	return func(item *models.QueueItem, profile *models.Profile) encoderpool.Supervisor {
		return &Job{deps: deps}
	}
}

type pauseDecision struct {
	shouldPause bool
	reason      string
}

// Run drives item from planning to a terminal state. It satisfies
// encoderpool.Supervisor.
func (j *Job) Run(ctx context.Context, item *models.QueueItem, profile *models.Profile) {
	sourcePath, upscaleCleanup := j.runUpscaleStage(ctx, item)
	defer upscaleCleanup()

	plan, err := j.plan(item, profile, sourcePath)
	if err != nil {
		item.MarkFailed(fmt.Sprintf("planning failed: %v", err))
		j.update(context.Background(), item)
		return
	}

	runErr := make(chan error, 1)
	progressCh := make(chan ffmpeg.Progress, 4)
	go func() {
		runErr <- plan.command.RunWithProgress(ctx, progressCh)
	}()

	pid := j.waitForPID(plan.command)
	pauser := newPauser(plan.command, pid, j.deps.PauseMechanism, runtime.GOOS)

	decisions := make(chan pauseDecision, 1)
	monitorDone := make(chan struct{})
	go j.monitorLoop(ctx, decisions, monitorDone)

	var lastPersist time.Time
	paused := false

	for {
		select {
		case <-ctx.Done():
			close(monitorDone)
			j.stop(plan.command, runErr)
			item.MarkFailed("Manually stopped")
			j.update(context.Background(), item)
			j.cleanupOutput(plan.outputPath)
			return

		case d := <-decisions:
			if d.shouldPause && !paused {
				if err := pauser.Pause(); err == nil {
					paused = true
					item.MarkPaused(d.reason)
					j.update(ctx, item)
				}
			} else if !d.shouldPause && paused {
				if err := pauser.Resume(); err == nil {
					paused = false
					item.MarkResumed()
					j.update(ctx, item)
				}
			}

		case p, ok := <-progressCh:
			if !ok {
				continue
			}
			if time.Since(lastPersist) >= j.deps.ProgressCoalesce {
				item.Progress = percentFromTime(p.Time.Seconds(), plan.sourceDurationSeconds)
				j.update(ctx, item)
				lastPersist = time.Now()
			}

		case err := <-runErr:
			close(monitorDone)
			if err != nil {
				item.MarkFailed(fmt.Sprintf("transcoder exited: %v", err))
				j.update(context.Background(), item)
				j.cleanupOutput(plan.outputPath)
				return
			}
			j.finalise(context.Background(), item, profile, plan)
			return
		}
	}
}

// runUpscaleStage delegates to the Upscale Pre-stage when item carries a
// plan, per 4.G step 2. A pre-stage failure is logged and swallowed — the
// supervisor proceeds with the original source rather than failing the job.
// The returned cleanup is always safe to call, even when no pre-stage ran.
func (j *Job) runUpscaleStage(ctx context.Context, item *models.QueueItem) (sourcePath string, cleanup func()) {
	sourcePath = item.FilePath
	cleanup = func() {}

	if !item.UpscalePlan.Valid || j.deps.Upscaler == nil {
		return sourcePath, cleanup
	}

	result, err := j.deps.Upscaler.Run(ctx, item.FilePath, item.UpscalePlan.Plan, nil)
	if err != nil {
		j.deps.Logger.Warn("upscale pre-stage failed, proceeding with original source",
			"item_id", item.ID, "error", err)
		return sourcePath, cleanup
	}

	return result.IntermediatePath, func() {
		if err := j.deps.Upscaler.Cleanup(result.WorkDir); err != nil {
			j.deps.Logger.Warn("failed to remove upscale work dir", "path", result.WorkDir, "error", err)
		}
	}
}

// waitForPID polls briefly for the child's PID to become available;
// RunWithProgress starts the process asynchronously in its own goroutine,
// so there's a short window before cmd.PID() is populated.
func (j *Job) waitForPID(cmd *ffmpeg.Command) int32 {
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if pid := cmd.PID(); pid != 0 {
			return int32(pid)
		}
		time.Sleep(10 * time.Millisecond)
	}
	return 0
}

// stop sends SIGTERM and gives the child 10s to exit before escalating to
// Kill, matching 4.G step 7.
func (j *Job) stop(cmd *ffmpeg.Command, runErr <-chan error) {
	cmd.Signal(syscall.SIGTERM)
	select {
	case <-runErr:
	case <-time.After(10 * time.Second):
		cmd.Kill()
		<-runErr
	}
}

func (j *Job) monitorLoop(ctx context.Context, decisions chan<- pauseDecision, done <-chan struct{}) {
	ticker := time.NewTicker(j.deps.ResourceCheckInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-done:
			return
		case <-ticker.C:
			snap, err := j.deps.Resource.HostSnapshot(ctx)
			if err != nil {
				continue
			}
			result := resource.CheckThresholds(snap, j.deps.CPUThresholdPct, j.deps.MemThresholdPct, j.deps.GPUThresholdPct)
			select {
			case decisions <- pauseDecision{shouldPause: result.ShouldPause, reason: result.Reason}:
			default:
			}
		}
	}
}

// finalise verifies the transcoder's output, performs the atomic replace,
// and records history. It never deletes the original unless a non-empty
// output exists to replace it with.
func (j *Job) finalise(ctx context.Context, item *models.QueueItem, profile *models.Profile, plan *jobPlan) {
	info, err := os.Stat(plan.outputPath)
	if err != nil {
		item.MarkFailed(fmt.Sprintf("finalise failed: output missing: %v", err))
		j.update(ctx, item)
		return
	}
	if info.Size() == 0 {
		item.MarkFailed("finalise failed: output is empty")
		j.update(ctx, item)
		j.cleanupOutput(plan.outputPath)
		return
	}

	originalSize := item.FileSizeBytes
	newSize := info.Size()

	if err := os.Remove(item.FilePath); err != nil && !os.IsNotExist(err) {
		item.MarkFailed(fmt.Sprintf("finalise failed: removing original: %v", err))
		j.update(ctx, item)
		return
	}
	if err := os.Rename(plan.outputPath, plan.finalPath); err != nil {
		item.MarkFailed(fmt.Sprintf("finalise failed: renaming output: %v", err))
		j.update(ctx, item)
		return
	}

	elapsed := 0.0
	if item.StartedAt != nil {
		elapsed = time.Since(*item.StartedAt).Seconds()
	}

	item.FilePath = plan.finalPath
	item.MarkCompleted()
	j.update(ctx, item)

	record := models.NewHistoryRecord(plan.finalPath, profile.Name, originalSize, newSize, elapsed,
		string(profile.TargetVideoCodec), string(profile.Container))
	if err := j.deps.HistoryRepo.Create(ctx, &record); err != nil {
		j.deps.Logger.Error("recording history failed", "item_id", item.ID, "error", err)
	}
}

func (j *Job) cleanupOutput(path string) {
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		j.deps.Logger.Warn("failed to remove incomplete output", "path", path, "error", err)
	}
}

func (j *Job) update(ctx context.Context, item *models.QueueItem) {
	if err := j.deps.QueueRepo.Update(ctx, item); err != nil {
		j.deps.Logger.Error("updating queue item failed", "item_id", item.ID, "error", err)
	}
}
