package resource

import (
	"fmt"
	"strings"
)

// ThresholdResult is the outcome of comparing a HostSnapshot against
// configured limits. Thresholds are soft: callers only ever act on
// ShouldPause, never on the individual exceeded flags.
type ThresholdResult struct {
	CPUExceeded    bool
	MemoryExceeded bool
	GPUExceeded    bool
	ShouldPause    bool
	Reason         string
}

// CheckThresholds compares a snapshot against percentage thresholds (0-100).
// A zero threshold disables that check. The config validator rejects a zero
// CPU or memory threshold, so only the GPU threshold can reach here as 0
// from configuration.
func CheckThresholds(snap HostSnapshot, cpuThresholdPct, memThresholdPct, gpuThresholdPct float64) ThresholdResult {
	result := ThresholdResult{}

	var reasons []string

	if cpuThresholdPct > 0 && snap.CPUPercent > cpuThresholdPct {
		result.CPUExceeded = true
		reasons = append(reasons, fmt.Sprintf("CPU usage %.1f%% exceeds threshold %.1f%%", snap.CPUPercent, cpuThresholdPct))
	}

	if memThresholdPct > 0 && snap.Memory.Percent > memThresholdPct {
		result.MemoryExceeded = true
		reasons = append(reasons, fmt.Sprintf("memory usage %.1f%% exceeds threshold %.1f%%", snap.Memory.Percent, memThresholdPct))
	}

	if gpuThresholdPct > 0 && len(snap.GPUs) > 0 {
		maxUtil := 0.0
		for _, g := range snap.GPUs {
			if g.UtilizationPct > maxUtil {
				maxUtil = g.UtilizationPct
			}
		}
		if maxUtil > gpuThresholdPct {
			result.GPUExceeded = true
			reasons = append(reasons, fmt.Sprintf("GPU usage %.1f%% exceeds threshold %.1f%%", maxUtil, gpuThresholdPct))
		}
	}

	result.ShouldPause = result.CPUExceeded || result.MemoryExceeded || result.GPUExceeded
	result.Reason = strings.Join(reasons, "; ")
	return result
}
