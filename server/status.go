package server

import (
	"scriptrelay/pkg/logger"

	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/mem"
)

// collectSystemStats samples the relay host's cpu and memory usage.
// Returns nil when sampling fails; /status then omits the system section.
func collectSystemStats(log *logger.Logger) *SystemStats {
	cpuPercents, err := cpu.Percent(0, false)
	if err != nil || len(cpuPercents) == 0 {
		log.DebugWith("cpu sampling failed", "error", err)
		return nil
	}

	vm, err := mem.VirtualMemory()
	if err != nil {
		log.DebugWith("memory sampling failed", "error", err)
		return nil
	}

	return &SystemStats{
		CPUPercent:    cpuPercents[0],
		MemoryPercent: vm.UsedPercent,
	}
}
