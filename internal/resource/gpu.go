package resource

import (
	"bytes"
	"context"
	"encoding/csv"
	"fmt"
	"os/exec"
	"strconv"
	"strings"
	"time"
)

// GPUSnapshot reports usage for a single NVIDIA GPU, as reported by
// nvidia-smi. Fields default to zero when nvidia-smi omits them (e.g. power
// reporting unsupported on some cards).
type GPUSnapshot struct {
	Index            int
	Name             string
	UtilizationPct   float64
	MemoryUsedMB     float64
	MemoryTotalMB    float64
	TemperatureC     float64
	PowerUsageWatts  float64
}

// gpuQueryFields mirrors the columns pynvml exposes in the original
// implementation: utilization, memory, temperature, power.
var gpuQueryFields = "index,name,utilization.gpu,memory.used,memory.total,temperature.gpu,power.draw"

// gpuReader invokes nvidia-smi as a CSV-emitting subprocess. It is the Go
// equivalent of the pynvml binding the original implementation uses, chosen
// because driving the NVML C API from Go needs cgo; the CLI is present on
// every host that has a working NVIDIA driver stack.
type gpuReader struct {
	binaryPath string
	timeout    time.Duration
}

func newGPUReader(binaryPath string) *gpuReader {
	return &gpuReader{binaryPath: binaryPath, timeout: 3 * time.Second}
}

// probe verifies the binary runs and returns parseable output. Called once
// at startup so a missing/broken nvidia-smi disables GPU sampling instead of
// failing every subsequent host snapshot.
func (g *gpuReader) probe() error {
	ctx, cancel := context.WithTimeout(context.Background(), g.timeout)
	defer cancel()
	_, err := g.sample(ctx)
	return err
}

func (g *gpuReader) sample(ctx context.Context) ([]GPUSnapshot, error) {
	cmd := exec.CommandContext(ctx, g.binaryPath,
		"--query-gpu="+gpuQueryFields,
		"--format=csv,noheader,nounits",
	)
	var out bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &out

	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("running nvidia-smi: %w", err)
	}

	reader := csv.NewReader(strings.NewReader(out.String()))
	reader.TrimLeadingSpace = true
	records, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("parsing nvidia-smi output: %w", err)
	}

	gpus := make([]GPUSnapshot, 0, len(records))
	for _, rec := range records {
		if len(rec) < 7 {
			continue
		}
		gpus = append(gpus, GPUSnapshot{
			Index:           parseIntOr(rec[0], 0),
			Name:            rec[1],
			UtilizationPct:  parseFloatOr(rec[2], 0),
			MemoryUsedMB:    parseFloatOr(rec[3], 0),
			MemoryTotalMB:   parseFloatOr(rec[4], 0),
			TemperatureC:    parseFloatOr(rec[5], 0),
			PowerUsageWatts: parseFloatOr(rec[6], 0),
		})
	}
	return gpus, nil
}

func parseIntOr(s string, fallback int) int {
	v, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return fallback
	}
	return v
}

func parseFloatOr(s string, fallback float64) float64 {
	v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return fallback
	}
	return v
}
