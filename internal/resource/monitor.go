// Package resource samples host and process resource usage so the encoder
// pool can throttle itself under load without guessing at thresholds.
package resource

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/shirou/gopsutil/v4/cpu"
	"github.com/shirou/gopsutil/v4/disk"
	gopsprocess "github.com/shirou/gopsutil/v4/process"

	"github.com/shirou/gopsutil/v4/mem"
)

// cpuSampleWindow is the minimum sampling interval for cpu.Percent so the
// result reflects steady-state load rather than an instantaneous spike.
const cpuSampleWindow = 600 * time.Millisecond

// MemorySnapshot reports system memory usage.
type MemorySnapshot struct {
	TotalBytes     uint64
	UsedBytes      uint64
	AvailableBytes uint64
	Percent        float64
}

// DiskIOSnapshot reports cumulative disk I/O counters, summed across all
// physical devices gopsutil reports.
type DiskIOSnapshot struct {
	ReadBytes  uint64
	WriteBytes uint64
	ReadCount  uint64
	WriteCount uint64
}

// HostSnapshot is a full point-in-time resource sample.
type HostSnapshot struct {
	Timestamp   time.Time
	CPUPercent  float64
	PerCore     []float64
	Memory      MemorySnapshot
	DiskIO      DiskIOSnapshot
	GPUs        []GPUSnapshot // nil when GPU sampling is disabled or unavailable
}

// ProcessSnapshot reports resource usage for a single process.
type ProcessSnapshot struct {
	PID           int32
	CPUPercent    float64
	MemoryRSSMB   float64
	MemoryPercent float32
	NumThreads    int32
	Status        string
}

// Monitor samples host and process resource usage on demand. It is safe for
// concurrent use; each call opens its own gopsutil handles rather than
// caching state, since samples are infrequent relative to process lifetime.
type Monitor struct {
	logger    *slog.Logger
	gpuReader *gpuReader
}

// New creates a Monitor. When gpuPath is non-empty, GPU sampling is attempted
// through an nvidia-smi sidecar at that path; a missing or non-functional
// binary disables GPU sampling silently after one startup log line, the same
// treatment the original implementation gives a missing pynvml.
func New(logger *slog.Logger, gpuPath string, enableGPU bool) *Monitor {
	m := &Monitor{logger: logger}
	if enableGPU && gpuPath != "" {
		m.gpuReader = newGPUReader(gpuPath)
		if err := m.gpuReader.probe(); err != nil {
			logger.Info("gpu monitoring unavailable", "error", err)
			m.gpuReader = nil
		} else {
			logger.Info("gpu monitoring enabled", "path", gpuPath)
		}
	}
	return m
}

// HostSnapshot samples system-wide CPU, memory, disk I/O, and (if enabled)
// GPU usage. The CPU sample blocks for cpuSampleWindow.
func (m *Monitor) HostSnapshot(ctx context.Context) (HostSnapshot, error) {
	snap := HostSnapshot{Timestamp: time.Now()}

	overall, err := cpu.PercentWithContext(ctx, cpuSampleWindow, false)
	if err != nil {
		return snap, fmt.Errorf("sampling cpu percent: %w", err)
	}
	if len(overall) > 0 {
		snap.CPUPercent = overall[0]
	}

	perCore, err := cpu.PercentWithContext(ctx, 0, true)
	if err == nil {
		snap.PerCore = perCore
	}

	vmem, err := mem.VirtualMemoryWithContext(ctx)
	if err != nil {
		return snap, fmt.Errorf("sampling memory: %w", err)
	}
	snap.Memory = MemorySnapshot{
		TotalBytes:     vmem.Total,
		UsedBytes:      vmem.Used,
		AvailableBytes: vmem.Available,
		Percent:        vmem.UsedPercent,
	}

	counters, err := disk.IOCountersWithContext(ctx)
	if err == nil {
		for _, c := range counters {
			snap.DiskIO.ReadBytes += c.ReadBytes
			snap.DiskIO.WriteBytes += c.WriteBytes
			snap.DiskIO.ReadCount += c.ReadCount
			snap.DiskIO.WriteCount += c.WriteCount
		}
	}

	if m.gpuReader != nil {
		gpus, err := m.gpuReader.sample(ctx)
		if err != nil {
			m.logger.Debug("gpu sample failed", "error", err)
		} else {
			snap.GPUs = gpus
		}
	}

	return snap, nil
}

// ProcessSnapshot samples a single process by PID. It returns
// (ProcessSnapshot{}, false, nil) when the process does not exist, never an
// error — a vanished encoder process is routine, not exceptional.
func (m *Monitor) ProcessSnapshot(ctx context.Context, pid int32) (ProcessSnapshot, bool, error) {
	proc, err := gopsprocess.NewProcessWithContext(ctx, pid)
	if err != nil {
		return ProcessSnapshot{}, false, nil
	}

	cpuPercent, err := proc.CPUPercentWithContext(ctx)
	if err != nil {
		return ProcessSnapshot{}, false, nil
	}
	memInfo, err := proc.MemoryInfoWithContext(ctx)
	if err != nil {
		return ProcessSnapshot{}, false, nil
	}
	memPercent, _ := proc.MemoryPercentWithContext(ctx)
	numThreads, _ := proc.NumThreadsWithContext(ctx)
	status, _ := proc.StatusWithContext(ctx)

	statusStr := ""
	if len(status) > 0 {
		statusStr = status[0]
	}

	return ProcessSnapshot{
		PID:           pid,
		CPUPercent:    cpuPercent,
		MemoryRSSMB:   float64(memInfo.RSS) / (1024 * 1024),
		MemoryPercent: memPercent,
		NumThreads:    numThreads,
		Status:        statusStr,
	}, true, nil
}
