package accelerator

import (
	"runtime"

	"github.com/klauspost/cpuid/v2"
)

// CPUInfo summarizes the host CPU for the probe command and startup log.
type CPUInfo struct {
	BrandName     string `json:"brand"`
	PhysicalCores int    `json:"physical_cores"`
	LogicalCores  int    `json:"logical_cores"`
	XNNPACK       bool   `json:"xnnpack"`
}

// HostCPU reads CPU details through cpuid.
func HostCPU() CPUInfo {
	return CPUInfo{
		BrandName:     cpuid.CPU.BrandName,
		PhysicalCores: cpuid.CPU.PhysicalCores,
		LogicalCores:  cpuid.CPU.LogicalCores,
		XNNPACK:       xnnpackSupported(),
	}
}

// ThreadCount resolves the configured interpreter thread count. Zero selects
// the physical core count; any value is capped at runtime.NumCPU.
func ThreadCount(configured int) int {
	available := runtime.NumCPU()
	if configured <= 0 {
		if cores := cpuid.CPU.PhysicalCores; cores > 0 {
			return min(cores, available)
		}
		return available
	}
	return min(configured, available)
}

// xnnpackSupported reports whether the XNNPACK delegate can run here.
// On amd64 it needs SSE4.1; arm64 always has NEON.
func xnnpackSupported() bool {
	switch runtime.GOARCH {
	case "amd64", "386":
		return cpuid.CPU.Supports(cpuid.SSE4)
	default:
		return true
	}
}
