package ws

import (
	"os"
	"runtime"
	"time"

	"github.com/shirou/gopsutil/v3/process"
)

// HealthReport is served by /api/health.
type HealthReport struct {
	Status     string  `json:"status"`
	UptimeSec  float64 `json:"uptimeSec"`
	Clients    int     `json:"clients"`
	Goroutines int     `json:"goroutines"`
	RSSBytes   uint64  `json:"rssBytes,omitempty"`
	CPUPercent float64 `json:"cpuPercent,omitempty"`
	Threads    int32   `json:"threads,omitempty"`
}

// processStats samples this process. Fields that cannot be read on the
// current platform are left zero.
type processStats struct {
	proc *process.Process
}

func newProcessStats() *processStats {
	p, err := process.NewProcess(int32(os.Getpid()))
	if err != nil {
		return &processStats{}
	}
	return &processStats{proc: p}
}

func (ps *processStats) fill(h *HealthReport) {
	h.Goroutines = runtime.NumGoroutine()
	if ps.proc == nil {
		return
	}
	if mem, err := ps.proc.MemoryInfo(); err == nil {
		h.RSSBytes = mem.RSS
	}
	if cpu, err := ps.proc.CPUPercent(); err == nil {
		h.CPUPercent = cpu
	}
	if n, err := ps.proc.NumThreads(); err == nil {
		h.Threads = n
	}
}

func (s *Server) health() HealthReport {
	h := HealthReport{
		Status:    "ok",
		UptimeSec: time.Since(s.started).Seconds(),
		Clients:   s.broadcaster.ClientCount(),
	}
	s.procStats.fill(&h)
	return h
}
