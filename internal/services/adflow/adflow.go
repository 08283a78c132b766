// Package services реализует рекламный поток разблокировки: сессии
// просмотра рекламы, одноразовые коды подтверждения и периодическую
// чистку просроченных записей.
package services

import (
	"context"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/wolfstream/account-store/internal/cache"
	"github.com/wolfstream/account-store/internal/lib/sl"
	"github.com/wolfstream/account-store/internal/metrics"
	"github.com/wolfstream/account-store/internal/models"
)

// ExpiryCutoff — возраст, после которого сессии и коды считаются
// просроченными и удаляются чисткой.
const ExpiryCutoff = 60 * time.Minute

// AdFlowRepository определяет методы хранилища для рекламного потока.
type AdFlowRepository interface {
	CreateAdSession(ctx context.Context, sessionID string, userID int64, now time.Time) error
	GetAdSession(ctx context.Context, sessionID string) (*models.AdSession, error)
	MarkAdSessionUsed(ctx context.Context, sessionID string) (bool, error)
	DeleteAdSession(ctx context.Context, sessionID string) error
	CountAdSessions(ctx context.Context) (int, error)
	CreateVerificationCode(ctx context.Context, code string, userID int64, now time.Time) error
	GetVerificationCode(ctx context.Context, code string) (*models.VerificationCode, error)
	DeleteVerificationCode(ctx context.Context, code string) error
	DeleteExpiredAdFlow(ctx context.Context, cutoff time.Time) (int, int, []int64, error)
}

// Cache описывает методы для кэширования данных.
type Cache interface {
	Get(key string, result any) (bool, error)
	Set(key string, value any, expiration time.Duration) error
	Invalidate(key string) error
}

// AdFlowService реализует операции рекламного потока.
type AdFlowService struct {
	repo  AdFlowRepository
	cache Cache
	gate  *sync.Mutex
	log   *slog.Logger
}

// NewAdFlowService создает новый экземпляр AdFlowService.
func NewAdFlowService(repo AdFlowRepository, c Cache, gate *sync.Mutex, log *slog.Logger) *AdFlowService {
	return &AdFlowService{
		repo:  repo,
		cache: c,
		gate:  gate,
		log:   log,
	}
}

// NewSessionID генерирует непрозрачный идентификатор сессии.
func NewSessionID() string {
	return uuid.NewString()
}

// NewVerificationCode генерирует одноразовый код подтверждения.
func NewVerificationCode() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")
}

// CreateSession сохраняет новую рекламную сессию.
func (s *AdFlowService) CreateSession(ctx context.Context, sessionID string, userID int64) bool {
	s.gate.Lock()
	err := s.repo.CreateAdSession(ctx, sessionID, userID, time.Now())
	s.gate.Unlock()
	if err != nil {
		s.log.Error("failed to create ad session", slog.Int64("user_id", userID), sl.Err(err))
		return false
	}
	return true
}

// GetSession возвращает рекламную сессию либо nil.
func (s *AdFlowService) GetSession(ctx context.Context, sessionID string) *models.AdSession {
	sess, err := s.repo.GetAdSession(ctx, sessionID)
	if err != nil {
		s.log.Error("failed to get ad session", sl.Err(err))
		return nil
	}
	return sess
}

// MarkSessionUsed помечает сессию использованной. Повторный вызов
// возвращает false и состояние не меняет.
func (s *AdFlowService) MarkSessionUsed(ctx context.Context, sessionID string) bool {
	s.gate.Lock()
	ok, err := s.repo.MarkAdSessionUsed(ctx, sessionID)
	s.gate.Unlock()
	if err != nil {
		s.log.Error("failed to mark ad session used", sl.Err(err))
		return false
	}
	return ok
}

// DeleteSession удаляет рекламную сессию.
func (s *AdFlowService) DeleteSession(ctx context.Context, sessionID string) bool {
	s.gate.Lock()
	err := s.repo.DeleteAdSession(ctx, sessionID)
	s.gate.Unlock()
	if err != nil {
		s.log.Error("failed to delete ad session", sl.Err(err))
		return false
	}
	return true
}

// CountSessions возвращает число живых рекламных сессий.
func (s *AdFlowService) CountSessions(ctx context.Context) int {
	count, err := s.repo.CountAdSessions(ctx)
	if err != nil {
		s.log.Error("failed to count ad sessions", sl.Err(err))
		return 0
	}
	return count
}

// CreateCode сохраняет одноразовый код подтверждения.
func (s *AdFlowService) CreateCode(ctx context.Context, code string, userID int64) bool {
	s.gate.Lock()
	err := s.repo.CreateVerificationCode(ctx, code, userID, time.Now())
	s.gate.Unlock()
	if err != nil {
		s.log.Error("failed to create verification code", slog.Int64("user_id", userID), sl.Err(err))
		return false
	}
	return true
}

// GetCode возвращает код подтверждения либо nil.
func (s *AdFlowService) GetCode(ctx context.Context, code string) *models.VerificationCode {
	v, err := s.repo.GetVerificationCode(ctx, code)
	if err != nil {
		s.log.Error("failed to get verification code", sl.Err(err))
		return nil
	}
	return v
}

// DeleteCode удаляет код подтверждения (погашение).
func (s *AdFlowService) DeleteCode(ctx context.Context, code string) bool {
	s.gate.Lock()
	err := s.repo.DeleteVerificationCode(ctx, code)
	s.gate.Unlock()
	if err != nil {
		s.log.Error("failed to delete verification code", sl.Err(err))
		return false
	}
	return true
}

// SweepExpired удаляет сессии и коды старше ExpiryCutoff и сбрасывает
// кеш записи пользователя для каждого владельца удаленной сессии:
// закешированное чтение не должно опираться на сметенную сессию.
// Возвращает числа удаленных сессий и кодов.
func (s *AdFlowService) SweepExpired(ctx context.Context) (int, int) {
	cutoff := time.Now().Add(-ExpiryCutoff)

	s.gate.Lock()
	sessions, codes, userIDs, err := s.repo.DeleteExpiredAdFlow(ctx, cutoff)
	s.gate.Unlock()
	if err != nil {
		s.log.Error("failed to sweep expired ad flow records", sl.Err(err))
		return 0, 0
	}

	for _, userID := range userIDs {
		if err := s.cache.Invalidate(cache.UserKey(userID)); err != nil {
			s.log.Warn("failed to invalidate cache", slog.Int64("user_id", userID), sl.Err(err))
		}
	}

	if sessions > 0 || codes > 0 {
		metrics.SweptAdSessions.Add(float64(sessions))
		metrics.SweptVerificationCodes.Add(float64(codes))
		s.log.Info("cleaned up expired ad flow records",
			slog.Int("sessions", sessions), slog.Int("codes", codes))
	}
	return sessions, codes
}

// RunSweeper запускает периодическую чистку с интервалом interval
// до отмены контекста.
func (s *AdFlowService) RunSweeper(ctx context.Context, interval time.Duration) {
	s.SweepExpired(ctx)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.SweepExpired(ctx)
		}
	}
}
