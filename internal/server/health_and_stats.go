package server

import (
	"fmt"
	"net/http"
	"os/exec"
	"runtime"
	"time"

	"go.uber.org/zap"
)

type HealthStatus struct {
	Status             string `json:"status"`
	Tool               string `json:"tool"`
	ToolAvailable      bool   `json:"tool_available"`
	ActiveDownloads    int64  `json:"active_downloads"`
	CompletedDownloads int64  `json:"completed_downloads"`
	FailedDownloads    int64  `json:"failed_downloads"`
	Uptime             string `json:"uptime"`
	MemoryUsage        string `json:"memory_usage"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	status := "healthy"
	_, err := exec.LookPath(s.opts.ToolPath)
	if err != nil {
		status = "degraded"
	}
	writeJSON(w, http.StatusOK, HealthStatus{
		Status:             status,
		Tool:               s.opts.ToolPath,
		ToolAvailable:      err == nil,
		ActiveDownloads:    s.stats.activeDownloads.Load(),
		CompletedDownloads: s.stats.completedDownloads.Load(),
		FailedDownloads:    s.stats.failedDownloads.Load(),
		Uptime:             time.Since(s.startedAt).Round(time.Second).String(),
		MemoryUsage:        memoryUsage(),
	})
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	stats := map[string]interface{}{
		"metadata_requests":   s.stats.metadataRequests.Load(),
		"metadata_failed":     s.stats.metadataFailed.Load(),
		"active_downloads":    s.stats.activeDownloads.Load(),
		"completed_downloads": s.stats.completedDownloads.Load(),
		"failed_downloads":    s.stats.failedDownloads.Load(),
		"bytes_served":        s.stats.bytesServed.Load(),
		"rate_limited":        s.stats.rateLimited.Load(),
		"success_rate":        s.successRate(),
		"uptime_seconds":      time.Since(s.startedAt).Seconds(),
	}
	if s.opts.History != nil {
		if n, err := s.opts.History.Count(); err != nil {
			s.requestLog(r).Warn("failed to count history", zap.Error(err))
		} else {
			stats["history_entries"] = n
		}
	}
	writeJSON(w, http.StatusOK, stats)
}

// successRate is the percentage of finished downloads that completed.
func (s *Server) successRate() float64 {
	completed := s.stats.completedDownloads.Load()
	total := completed + s.stats.failedDownloads.Load()
	if total == 0 {
		return 0
	}
	return float64(completed) / float64(total) * 100
}

func memoryUsage() string {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)
	return fmt.Sprintf("%.1f MiB", float64(m.Alloc)/(1<<20))
}
