package service

import (
	"context"
	"time"

	"github.com/Rijughosh14/EShop/internal/repository"
	"github.com/Rijughosh14/EShop/pkg/logger"
	"go.uber.org/zap"
)

// TokenSweeper periodically deletes expired refresh tokens
type TokenSweeper struct {
	repo     repository.RefreshTokenRepository
	interval time.Duration
	log      *logger.Logger
}

// NewTokenSweeper creates a TokenSweeper; a non-positive interval defaults to one hour
func NewTokenSweeper(repo repository.RefreshTokenRepository, interval time.Duration, log *logger.Logger) *TokenSweeper {
	if interval <= 0 {
		interval = time.Hour
	}
	if log == nil {
		log = logger.Get()
	}
	return &TokenSweeper{repo: repo, interval: interval, log: log}
}

// Run sweeps until ctx is cancelled
func (s *TokenSweeper) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.Sweep(ctx)
		}
	}
}

// Sweep runs one deletion pass
func (s *TokenSweeper) Sweep(ctx context.Context) int64 {
	n, err := s.repo.DeleteExpired(ctx, time.Now())
	if err != nil {
		s.log.Warn("Failed to delete expired refresh tokens", zap.Error(err))
		return 0
	}
	if n > 0 {
		s.log.Info("Deleted expired refresh tokens", zap.Int64("count", n))
	}
	return n
}
