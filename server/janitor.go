package server

import (
	"context"
	"time"

	"Chroma/core/utils"
	"Chroma/logger"
	"Chroma/metrics"
)

// runJanitor 定期清理崩溃请求遗留的工作目录，本进程仍在执行的任务不清理
func (s *Server) runJanitor(ctx context.Context) {
	ttl := s.cfg.WorkDirTTL
	if ttl <= 0 {
		return
	}
	interval := ttl / 4
	if interval < time.Minute {
		interval = time.Minute
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		s.sweepWorkDirs(time.Now())
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

func (s *Server) sweepWorkDirs(now time.Time) int {
	removed, err := utils.RemoveStaleDirs(s.cfg.TempDir, s.cfg.WorkDirTTL, now, s.pipeline.Running)
	if err != nil {
		logger.Warn("清理工作目录失败", logger.String("dir", s.cfg.TempDir), logger.ErrorField(err))
	}
	if len(removed) > 0 {
		metrics.WorkDirsRemovedTotal.Add(float64(len(removed)))
		logger.Info("已清理过期工作目录",
			logger.String("dir", s.cfg.TempDir),
			logger.Int("count", len(removed)),
			logger.Duration("ttl", s.cfg.WorkDirTTL))
	}
	return len(removed)
}
