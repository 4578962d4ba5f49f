package service

import (
	"context"
	"time"

	"go.uber.org/zap"

	"polymerbot/internal/config"
	"polymerbot/internal/repository"
)

// RetentionService prunes records older than the configured horizon. Pruning
// is an operational convenience, not required for correctness; it is off by
// default.
type RetentionService struct {
	Repo   repository.Repository
	Config config.RetentionConfig
	Logger *zap.Logger
}

func (s *RetentionService) RunOnce(ctx context.Context) error {
	if s == nil || s.Repo == nil || !s.Config.Enabled {
		return nil
	}
	days := s.Config.Days
	if days <= 0 {
		days = 30
	}
	cutoff := dateOnly(time.Now().UTC()).AddDate(0, 0, -days)
	deleted, err := s.Repo.DeletePriceRecordsBefore(ctx, cutoff)
	if err != nil {
		if s.Logger != nil {
			s.Logger.Warn("retention prune failed", zap.Error(err))
		}
		return err
	}
	if deleted > 0 && s.Logger != nil {
		s.Logger.Info("retention prune complete",
			zap.Int64("deleted", deleted),
			zap.Time("cutoff", cutoff))
	}
	return nil
}
