package server

import (
	"context"
	"time"

	"go.uber.org/zap"

	"ytconvert/internal/workarea"
)

// RunBackground sweeps stale work areas and periodically logs counters until
// ctx is done. Work areas are normally removed by the request that created
// them; the sweep catches those left behind by a crash.
func (s *Server) RunBackground(ctx context.Context) {
	s.sweep(time.Now())

	cleanup := newTicker(s.opts.JanitorInterval)
	defer cleanup.Stop()
	health := newTicker(s.opts.HealthInterval)
	defer health.Stop()

	for {
		select {
		case now := <-cleanup.C:
			s.sweep(now)
		case <-health.C:
			s.logStats()
		case <-ctx.Done():
			return
		}
	}
}

func (s *Server) sweep(now time.Time) {
	if s.opts.WorkAreaExpiration <= 0 {
		return
	}
	removed, err := workarea.Sweep(s.opts.TempRoot, s.opts.WorkAreaExpiration, now)
	if err != nil {
		s.log.Warn("work area sweep incomplete", zap.Strings("removed", removed), zap.Error(err))
		return
	}
	if len(removed) > 0 {
		s.log.Info("swept stale work areas", zap.Strings("removed", removed))
	}
}

func (s *Server) logStats() {
	s.log.Info("stats",
		zap.Int64("active_downloads", s.stats.activeDownloads.Load()),
		zap.Int64("completed_downloads", s.stats.completedDownloads.Load()),
		zap.Int64("failed_downloads", s.stats.failedDownloads.Load()),
		zap.Int64("metadata_requests", s.stats.metadataRequests.Load()),
		zap.Int64("rate_limited", s.stats.rateLimited.Load()),
	)
}

type ticker struct {
	C    <-chan time.Time
	stop func()
}

func (t ticker) Stop() { t.stop() }

// newTicker returns a ticker that never fires when d <= 0.
func newTicker(d time.Duration) ticker {
	if d <= 0 {
		return ticker{C: nil, stop: func() {}}
	}
	t := time.NewTicker(d)
	return ticker{C: t.C, stop: t.Stop}
}
