package server

import (
	"context"
	"time"

	"go.uber.org/zap"

	"filedrop/internal/storage"
)

// CleanupConfig controls the stale upload sweeper.
type CleanupConfig struct {
	Enabled  bool
	Interval time.Duration
	MaxAge   time.Duration
}

// StartCleanupJob periodically removes partial uploads older than MaxAge. It
// blocks until ctx is done and returns immediately when the job is disabled
// or the store has nothing to sweep.
func (s *Server) StartCleanupJob(ctx context.Context, cfg CleanupConfig) {
	log := s.log.With(zap.String("service", "cleanup"))

	sw, ok := s.store.(storage.Sweeper)
	if !cfg.Enabled || !ok || cfg.Interval <= 0 {
		log.Info("disabled")
		return
	}

	log.Info("starting", zap.Duration("interval", cfg.Interval), zap.Duration("max_age", cfg.MaxAge))

	ticker := time.NewTicker(cfg.Interval)
	defer ticker.Stop()

	// Run immediately on start
	s.runCleanup(ctx, sw, cfg.MaxAge)

	for {
		select {
		case <-ctx.Done():
			log.Info("shutting down")
			return
		case <-ticker.C:
			s.runCleanup(ctx, sw, cfg.MaxAge)
		}
	}
}

func (s *Server) runCleanup(ctx context.Context, sw storage.Sweeper, maxAge time.Duration) {
	start := time.Now()
	removed, err := sw.SweepStale(ctx, start.Add(-maxAge))
	s.metrics.RecordStaleUploadsRemoved(removed)

	log := s.log.With(zap.String("service", "cleanup"))
	if err != nil && ctx.Err() == nil {
		log.Error("sweep failed", zap.Int("removed", removed), zap.Error(err))
		return
	}
	if removed > 0 {
		log.Info("removed stale uploads",
			zap.Int("removed", removed),
			zap.Int64("duration_ms", time.Since(start).Milliseconds()))
	}
}
