// Package sysinfo takes a one-shot snapshot of host resources, logged at
// startup. The snapshot is not sent to the dispatcher.
package sysinfo

import (
	"runtime"

	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/mem"
)

// Snapshot is a point-in-time host resource reading.
type Snapshot struct {
	CPUPercent    float64
	MemoryPercent float64
	NumCPU        int
	NumGoroutine  int
}

// Capture reads current CPU and memory utilization. Errors from gopsutil
// are non-fatal: an unavailable reading just comes back as zero.
func Capture() Snapshot {
	snap := Snapshot{
		NumCPU:       runtime.NumCPU(),
		NumGoroutine: runtime.NumGoroutine(),
	}

	if pct, err := cpu.Percent(0, false); err == nil && len(pct) > 0 {
		snap.CPUPercent = pct[0]
	}
	if vm, err := mem.VirtualMemory(); err == nil {
		snap.MemoryPercent = vm.UsedPercent
	}

	return snap
}
