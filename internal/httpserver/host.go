package httpserver

import (
	"context"

	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/disk"
	"github.com/shirou/gopsutil/v3/mem"
)

// HostStats is a coarse view of the machine running the pipeline.
type HostStats struct {
	CPUPercent    float64 `json:"cpu_percent"`
	MemoryPercent float64 `json:"memory_percent"`
	MemoryUsed    uint64  `json:"memory_used"`
	DiskPercent   float64 `json:"disk_percent"`
	DiskFree      uint64  `json:"disk_free"`
}

// HostStatsFunc samples host usage; diskPath selects the filesystem.
type HostStatsFunc func(ctx context.Context, diskPath string) HostStats

// SampleHost reads host usage with gopsutil. CPU usage is measured since the
// previous call so the request never blocks on a sampling interval. Values
// that cannot be read are left at zero.
func SampleHost(ctx context.Context, diskPath string) HostStats {
	var stats HostStats
	if pct, err := cpu.PercentWithContext(ctx, 0, false); err == nil && len(pct) > 0 {
		stats.CPUPercent = pct[0]
	}
	if vm, err := mem.VirtualMemoryWithContext(ctx); err == nil {
		stats.MemoryPercent = vm.UsedPercent
		stats.MemoryUsed = vm.Used
	}
	if diskPath != "" {
		if usage, err := disk.UsageWithContext(ctx, diskPath); err == nil {
			stats.DiskPercent = usage.UsedPercent
			stats.DiskFree = usage.Free
		}
	}
	return stats
}
