// Package upscale implements the Upscale Pre-stage (4.I): an optional
// frame-extract → AI-upscale → reassemble step that hands the Encoder
// Supervisor a lossless intermediate in place of the original source when a
// scan root's upscale policy applies. It orchestrates ffmpeg and an
// upscaler binary as opaque subprocesses; it carries no codec or container
// logic of its own beyond the lossless intermediate it reassembles into.
package upscale

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"sync"

	"github.com/jmylchreest/transcodarr/internal/ffmpeg"
	"github.com/jmylchreest/transcodarr/internal/models"
	"github.com/jmylchreest/transcodarr/internal/prober"
	"github.com/jmylchreest/transcodarr/internal/startup"
	"github.com/jmylchreest/transcodarr/internal/storage"
	"github.com/jmylchreest/transcodarr/internal/util"
	"github.com/shirou/gopsutil/v4/disk"
)

// Errors an attempted pre-stage can abort with. Per 4.I, any of these mean
// the caller proceeds with the original source — the pre-stage never fails
// the encode outright.
var (
	ErrProbeFailed           = errors.New("upscale: could not determine source dimensions")
	ErrAlreadyCloseEnough    = errors.New("upscale: source already close to target height")
	ErrInsufficientDiskSpace = errors.New("upscale: insufficient free disk space")
	ErrExtractionFailed      = errors.New("upscale: frame extraction failed")
	ErrNoFramesExtracted     = errors.New("upscale: no frames extracted")
	ErrBinaryNotFound        = errors.New("upscale: upscaler binary not found")
	ErrUpscaleFailed         = errors.New("upscale: upscaler process failed")
	ErrNoFramesUpscaled      = errors.New("upscale: no upscaled frames produced")
	ErrReassemblyFailed      = errors.New("upscale: reassembly failed")
	ErrOutputMissing         = errors.New("upscale: reassembled output missing or empty")
)

// lossless is the intermediate codec the reassembly stage encodes into; the
// transcoder re-encodes it for real afterward, so picking a fast lossless
// codec over quality matters more than file size here.
const lossless = "ffv1"

// bytesPerFrameFactor approximates PNG size per upscaled pixel before
// compression; conservative so the disk guard errs toward aborting.
const bytesPerFrameFactor = 1.5

const diskHeadroomBytes = 500 * 1024 * 1024

// BinaryResolver locates the upscaler binary for a given upscaler_key.
type BinaryResolver func(key string) (string, error)

// Dependencies are the Pipeline's process-lifetime collaborators.
type Dependencies struct {
	FFmpegBinary string
	Prober       *prober.Prober
	Resolve      BinaryResolver
	Logger       *slog.Logger

	// DiskHeadroomPercent scales the disk-space estimate beyond the fixed
	// 500MB floor, per the Upscale section (UpscaleConfig) of the config.
	DiskHeadroomPercent float64
}

// DefaultResolver finds an upscaler binary by name on PATH, honouring a
// per-key environment variable override (e.g. TRANSCODARR_UPSCALER_REALESRGAN).
func DefaultResolver(key string) (string, error) {
	envVar := "TRANSCODARR_UPSCALER_" + strings.ToUpper(key)
	return util.FindBinary(key, envVar)
}

// Pipeline runs the Upscale Pre-stage for one source file at a time.
type Pipeline struct {
	deps Dependencies
}

// New constructs a Pipeline. A nil Resolve falls back to DefaultResolver.
func New(deps Dependencies) *Pipeline {
	if deps.Resolve == nil {
		deps.Resolve = DefaultResolver
	}
	return &Pipeline{deps: deps}
}

// Result is the outcome of a successful pre-stage run.
type Result struct {
	// IntermediatePath is the lossless intermediate file the Supervisor
	// should transcode instead of the original source.
	IntermediatePath string
	// WorkDir is the unique working directory backing IntermediatePath;
	// pass it to Cleanup once the Supervisor has finished with it.
	WorkDir string
}

// Run executes the full pipeline in plan.Run: probe, disk guard, extract,
// upscale, reassemble. progress, if non-nil, is called with values 0-100
// spanning the whole pipeline (matching 4.I's 10/80/10 stage split).
func (p *Pipeline) Run(ctx context.Context, sourcePath string, plan models.UpscalePlan, progress func(float64)) (*Result, error) {
	report := func(pct float64) {
		if progress != nil {
			progress(pct)
		}
	}

	specs, err := p.deps.Prober.Probe(ctx, sourcePath)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrProbeFailed, err)
	}
	srcW, srcH, ok := parseResolution(specs.Resolution)
	if !ok {
		return nil, ErrProbeFailed
	}
	if plan.TargetHeight > 0 && float64(srcH) >= float64(plan.TargetHeight)*0.85 {
		return nil, ErrAlreadyCloseEnough
	}

	factor := plan.Factor
	if factor <= 0 {
		factor = 2
	}
	outW := int(float64(srcW) * factor)
	outH := int(float64(srcH) * factor)

	frameCount := estimateFrameCount(specs)
	required := estimateRequiredBytes(frameCount, outW, outH, p.deps.DiskHeadroomPercent)

	tmpBase := os.TempDir()
	usage, err := disk.UsageWithContext(ctx, tmpBase)
	if err == nil && usage.Free < required {
		return nil, fmt.Errorf("%w: need %d bytes, have %d free in %s", ErrInsufficientDiskSpace, required, usage.Free, tmpBase)
	}

	workDir, err := os.MkdirTemp(tmpBase, startup.TempDirPrefix+filepath.Base(sourcePath)+"-")
	if err != nil {
		return nil, fmt.Errorf("upscale: creating work dir: %w", err)
	}

	// The whole pre-stage's scratch space (extracted frames, upscaled
	// frames, the reassembled intermediate) lives under one workDir, so a
	// Sandbox rooted there keeps every relative path this stage touches
	// from ever resolving outside its own scratch directory.
	sandbox, err := storage.NewSandbox(workDir)
	if err != nil {
		os.RemoveAll(workDir)
		return nil, fmt.Errorf("upscale: sandboxing work dir: %w", err)
	}
	if err := sandbox.MkdirAll("frames_in"); err != nil {
		return nil, err
	}
	if err := sandbox.MkdirAll("frames_out"); err != nil {
		return nil, err
	}
	framesIn, err := sandbox.ResolvePath("frames_in")
	if err != nil {
		return nil, err
	}
	framesOut, err := sandbox.ResolvePath("frames_out")
	if err != nil {
		return nil, err
	}
	defer sandbox.RemoveAll("frames_in")

	report(2)

	if err := p.extractFrames(ctx, sourcePath, framesIn); err != nil {
		os.RemoveAll(workDir)
		return nil, err
	}
	report(10)

	binaryPath, err := p.deps.Resolve(plan.UpscalerKey)
	if err != nil {
		os.RemoveAll(workDir)
		return nil, fmt.Errorf("%w: %s: %v", ErrBinaryNotFound, plan.UpscalerKey, err)
	}
	if err := p.runUpscaler(ctx, binaryPath, plan, framesIn, framesOut, report); err != nil {
		os.RemoveAll(workDir)
		return nil, err
	}
	report(90)

	stem := strings.TrimSuffix(filepath.Base(sourcePath), filepath.Ext(sourcePath))
	outputPath, err := sandbox.ResolvePath(stem + "_upscaled.mkv")
	if err != nil {
		os.RemoveAll(workDir)
		return nil, err
	}
	if err := p.reassemble(ctx, sourcePath, framesOut, outputPath, specs.Framerate); err != nil {
		os.RemoveAll(workDir)
		return nil, err
	}

	info, err := os.Stat(outputPath)
	if err != nil || info.Size() == 0 {
		os.RemoveAll(workDir)
		return nil, ErrOutputMissing
	}
	report(100)

	return &Result{IntermediatePath: outputPath, WorkDir: workDir}, nil
}

// Cleanup removes the pre-stage's working directory. It refuses to touch a
// path that isn't one of its own, the same guard the teacher's startup
// cleanup applies to orphan sweeps.
func (p *Pipeline) Cleanup(workDir string) error {
	if !strings.HasPrefix(filepath.Base(workDir), startup.TempDirPrefix) {
		return fmt.Errorf("upscale: refusing to remove non-upscale directory %q", workDir)
	}
	return os.RemoveAll(workDir)
}

func (p *Pipeline) extractFrames(ctx context.Context, sourcePath, framesIn string) error {
	cmd := ffmpeg.NewCommandBuilder(p.deps.FFmpegBinary).
		Overwrite().
		Input(sourcePath).
		OutputArgs("-vsync", "0").
		Output(filepath.Join(framesIn, "%08d.png")).
		Build()

	if err := cmd.Run(ctx); err != nil {
		return fmt.Errorf("%w: %v", ErrExtractionFailed, err)
	}

	entries, err := os.ReadDir(framesIn)
	if err != nil || len(entries) == 0 {
		return ErrNoFramesExtracted
	}
	return nil
}

var frameProgressRe = regexp.MustCompile(`(\d+)/(\d+)`)

// scanFrameProgress reads lines from an upscaler pipe (stdout or stderr —
// Real-ESRGAN/CUGAN/waifu2x vary on which one they print to) and maps any
// "done/total" line onto the pipeline's 10-90% progress band.
func scanFrameProgress(r io.Reader, report func(float64), wg *sync.WaitGroup) {
	defer wg.Done()
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 4096), 64*1024)
	for scanner.Scan() {
		m := frameProgressRe.FindStringSubmatch(scanner.Text())
		if m == nil {
			continue
		}
		done, _ := strconv.ParseFloat(m[1], 64)
		total, _ := strconv.ParseFloat(m[2], 64)
		if total > 0 {
			report(10 + (done/total)*80)
		}
	}
}

func (p *Pipeline) runUpscaler(ctx context.Context, binaryPath string, plan models.UpscalePlan, framesIn, framesOut string, report func(float64)) error {
	factor := int(plan.Factor)
	if factor <= 0 {
		factor = 2
	}
	cmd := exec.CommandContext(ctx, binaryPath,
		"-i", framesIn,
		"-o", framesOut,
		"-n", plan.Model,
		"-s", strconv.Itoa(factor),
		"-f", "png",
	)
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUpscaleFailed, err)
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUpscaleFailed, err)
	}
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("%w: %v", ErrUpscaleFailed, err)
	}

	var wg sync.WaitGroup
	wg.Add(2)
	go scanFrameProgress(stdout, report, &wg)
	go scanFrameProgress(stderr, report, &wg)
	wg.Wait()

	if err := cmd.Wait(); err != nil {
		return fmt.Errorf("%w: %v", ErrUpscaleFailed, err)
	}

	entries, err := os.ReadDir(framesOut)
	if err != nil || len(entries) == 0 {
		return ErrNoFramesUpscaled
	}
	return nil
}

func (p *Pipeline) reassemble(ctx context.Context, sourcePath, framesOut, outputPath string, fps float64) error {
	if fps <= 0 {
		fps = 24
	}
	cmd := ffmpeg.NewCommandBuilder(p.deps.FFmpegBinary).
		Overwrite().
		InputArgs("-framerate", formatFramerate(fps), "-i", filepath.Join(framesOut, "%08d.png")).
		Input(sourcePath).
		OutputArgs(
			"-map", "0:v:0",
			"-map", "1:a?",
			"-map", "1:s?",
			"-c:v", lossless,
			"-c:a", "copy",
			"-c:s", "copy",
			"-shortest",
		).
		Output(outputPath).
		Build()

	if err := cmd.Run(ctx); err != nil {
		return fmt.Errorf("%w: %v", ErrReassemblyFailed, err)
	}
	return nil
}

func formatFramerate(fps float64) string {
	return strconv.FormatFloat(fps, 'g', 6, 64)
}

func parseResolution(res string) (w, h int, ok bool) {
	parts := strings.SplitN(res, "x", 2)
	if len(parts) != 2 {
		return 0, 0, false
	}
	w, err1 := strconv.Atoi(parts[0])
	h, err2 := strconv.Atoi(parts[1])
	if err1 != nil || err2 != nil || w <= 0 || h <= 0 {
		return 0, 0, false
	}
	return w, h, true
}

func estimateFrameCount(specs prober.MediaSpecs) int {
	if specs.DurationSeconds > 0 && specs.Framerate > 0 {
		return int(specs.Framerate * specs.DurationSeconds)
	}
	return 2000
}

func estimateRequiredBytes(frameCount, outW, outH int, headroomPercent float64) uint64 {
	bytesPerFrame := float64(outW) * float64(outH) * bytesPerFrameFactor
	base := float64(frameCount) * bytesPerFrame * 2 // source + output frames
	if headroomPercent > 0 {
		base *= 1 + headroomPercent/100
	}
	return uint64(base) + diskHeadroomBytes
}
