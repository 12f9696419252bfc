package metrics

import (
	"time"

	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/disk"
	"github.com/shirou/gopsutil/v3/host"
	"github.com/shirou/gopsutil/v3/mem"
)

// Snapshot captures host-level resource usage of the machine running the
// agent, surfaced on the health endpoint.
type Snapshot struct {
	CPUPercent    float64   `json:"cpu_percent"`
	MemoryPercent float64   `json:"memory_percent"`
	MemoryUsed    uint64    `json:"memory_used_bytes"`
	MemoryTotal   uint64    `json:"memory_total_bytes"`
	DiskPercent   float64   `json:"disk_percent"`
	DiskUsed      uint64    `json:"disk_used_bytes"`
	DiskTotal     uint64    `json:"disk_total_bytes"`
	UptimeSec     uint64    `json:"uptime_sec"`
	SampledAt     time.Time `json:"sampled_at"`
}

// Collect samples current host metrics. Individual probe failures leave the
// corresponding fields zeroed rather than failing the whole sample.
func Collect() Snapshot {
	snapshot := Snapshot{SampledAt: time.Now().UTC()}

	if percents, err := cpu.Percent(0, false); err == nil && len(percents) > 0 {
		snapshot.CPUPercent = percents[0]
	}
	if vm, err := mem.VirtualMemory(); err == nil {
		snapshot.MemoryPercent = vm.UsedPercent
		snapshot.MemoryUsed = vm.Used
		snapshot.MemoryTotal = vm.Total
	}
	if usage, err := disk.Usage("/"); err == nil {
		snapshot.DiskPercent = usage.UsedPercent
		snapshot.DiskUsed = usage.Used
		snapshot.DiskTotal = usage.Total
	}
	if uptime, err := host.Uptime(); err == nil {
		snapshot.UptimeSec = uptime
	}
	return snapshot
}
