// Package services реализует реестр администраторов и журнал рассылок.
// Членство в реестре само по себе является предикатом admin и всегда
// перекрывает тарифные правила квоты.
package services

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/wolfstream/account-store/internal/cache"
	"github.com/wolfstream/account-store/internal/lib/sl"
)

// AdminRepository определяет методы хранилища, нужные реестру.
type AdminRepository interface {
	IsAdmin(ctx context.Context, userID int64) (bool, error)
	AddAdmin(ctx context.Context, userID, addedBy int64, now time.Time) error
	RemoveAdmin(ctx context.Context, userID int64) (bool, error)
	SaveBroadcast(ctx context.Context, message string, sentBy int64, totalUsers, successfulSends int, now time.Time) error
}

// Cache описывает методы для кэширования данных.
type Cache interface {
	Get(key string, result any) (bool, error)
	Set(key string, value any, expiration time.Duration) error
	Invalidate(key string) error
}

// AdminService реализует операции реестра администраторов.
type AdminService struct {
	repo  AdminRepository
	cache Cache
	gate  *sync.Mutex
	log   *slog.Logger
}

// NewAdminService создает новый экземпляр AdminService.
func NewAdminService(repo AdminRepository, c Cache, gate *sync.Mutex, log *slog.Logger) *AdminService {
	return &AdminService{
		repo:  repo,
		cache: c,
		gate:  gate,
		log:   log,
	}
}

func (s *AdminService) invalidate(userID int64) {
	// Смена членства сбрасывает и флаг администратора, и запись
	// пользователя: действующий тип собирается из обоих.
	for _, key := range cache.AdminMutationKeys(userID) {
		if err := s.cache.Invalidate(key); err != nil {
			s.log.Warn("failed to invalidate cache", slog.String("key", key), sl.Err(err))
		}
	}
}

// IsAdmin сообщает, является ли пользователь администратором (кешируется).
func (s *AdminService) IsAdmin(ctx context.Context, userID int64) bool {
	var cached bool
	found, err := s.cache.Get(cache.AdminKey(userID), &cached)
	if err != nil {
		s.log.Warn("failed to read admin flag from cache", slog.Int64("user_id", userID), sl.Err(err))
	}
	if found {
		return cached
	}

	isAdmin, err := s.repo.IsAdmin(ctx, userID)
	if err != nil {
		s.log.Error("failed to check admin status", slog.Int64("user_id", userID), sl.Err(err))
		return false
	}

	if err := s.cache.Set(cache.AdminKey(userID), isAdmin, cache.AdminTTL); err != nil {
		s.log.Warn("failed to cache admin flag", slog.Int64("user_id", userID), sl.Err(err))
	}
	return isAdmin
}

// AddAdmin добавляет администратора (идемпотентно).
func (s *AdminService) AddAdmin(ctx context.Context, userID, addedBy int64) bool {
	s.gate.Lock()
	err := s.repo.AddAdmin(ctx, userID, addedBy, time.Now())
	s.gate.Unlock()
	if err != nil {
		s.log.Error("failed to add admin", slog.Int64("user_id", userID), sl.Err(err))
		return false
	}

	s.invalidate(userID)
	return true
}

// RemoveAdmin удаляет администратора; сообщает, существовала ли запись.
func (s *AdminService) RemoveAdmin(ctx context.Context, userID int64) bool {
	s.gate.Lock()
	removed, err := s.repo.RemoveAdmin(ctx, userID)
	s.gate.Unlock()
	if err != nil {
		s.log.Error("failed to remove admin", slog.Int64("user_id", userID), sl.Err(err))
		return false
	}

	s.invalidate(userID)
	return removed
}

// RecordBroadcast фиксирует итог рассылки в журнале аудита.
func (s *AdminService) RecordBroadcast(ctx context.Context, message string, sentBy int64, totalUsers, successfulSends int) bool {
	s.gate.Lock()
	err := s.repo.SaveBroadcast(ctx, message, sentBy, totalUsers, successfulSends, time.Now())
	s.gate.Unlock()
	if err != nil {
		s.log.Error("failed to save broadcast", slog.Int64("sent_by", sentBy), sl.Err(err))
		return false
	}
	return true
}
