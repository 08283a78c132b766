// Package services отдает агрегатную статистику по базе. Срезы
// считаются точечными запросами без кеширования: частота вызовов
// низкая, а свежесть важнее задержки.
package services

import (
	"context"
	"log/slog"
	"time"

	"github.com/wolfstream/account-store/internal/lib/sl"
	"github.com/wolfstream/account-store/internal/models"
)

// StatsRepository определяет агрегатные запросы хранилища.
type StatsRepository interface {
	GetStats(ctx context.Context, now time.Time) (*models.Stats, error)
	CountAdSessions(ctx context.Context) (int, error)
}

// StatsService реализует снятие агрегатного среза.
type StatsService struct {
	repo StatsRepository
	log  *slog.Logger
}

// NewStatsService создает новый экземпляр StatsService.
func NewStatsService(repo StatsRepository, log *slog.Logger) *StatsService {
	return &StatsService{
		repo: repo,
		log:  log,
	}
}

// Snapshot возвращает текущий срез агрегатов. При ошибке хранилища
// возвращается пустой срез.
func (s *StatsService) Snapshot(ctx context.Context) *models.Stats {
	stats, err := s.repo.GetStats(ctx, time.Now())
	if err != nil {
		s.log.Error("failed to get stats", sl.Err(err))
		return &models.Stats{}
	}
	return stats
}

// AdSessionCount возвращает число живых рекламных сессий.
func (s *StatsService) AdSessionCount(ctx context.Context) int {
	count, err := s.repo.CountAdSessions(ctx)
	if err != nil {
		s.log.Error("failed to count ad sessions", sl.Err(err))
		return 0
	}
	return count
}
