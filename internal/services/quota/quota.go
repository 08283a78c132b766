// Package services реализует движок квот: решение "можно ли скачать
// count файлов" и списание за скачивание.
//
// Порядок правил фиксирован: admin и paid проходят безусловно; далее
// при необходимости сбрасывается дневной рекламный баланс; ненулевой
// рекламный баланс авторитетен для запроса; и только при исчерпанном
// балансе действует дневной бесплатный лимит.
package services

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/wolfstream/account-store/internal/cache"
	"github.com/wolfstream/account-store/internal/lib/sl"
	"github.com/wolfstream/account-store/internal/metrics"
	"github.com/wolfstream/account-store/internal/models"
)

// DailyFreeLimit — число файлов в календарный день для free-пользователя
// с исчерпанным рекламным балансом. Единственное место, где лимит задан.
const DailyFreeLimit = 1

// Причины отказов для метрик.
const (
	reasonInsufficientAd = "insufficient_ad_downloads"
	reasonDailyLimit     = "daily_limit"
)

// QuotaRepository определяет методы хранилища, нужные движку квот.
type QuotaRepository interface {
	DeductAdDownloads(ctx context.Context, userID int64, count int) (bool, error)
	AddAdDownloads(ctx context.Context, userID int64, count int) (bool, error)
	ResetAdDownloads(ctx context.Context, userID int64, day time.Time) error
	GetDailyUsage(ctx context.Context, userID int64, day time.Time) (int, error)
	AddDailyUsage(ctx context.Context, userID int64, day time.Time, count int) error
	AdvanceShortener(ctx context.Context, userID int64, steps int) (bool, error)
}

// AccountReader — чтения учетной записи, которыми пользуется движок.
// Реализуется сервисом учетных записей: GetUserType применяет ленивое
// понижение просроченного премиума до того, как движок примет решение.
type AccountReader interface {
	GetUser(ctx context.Context, userID int64) *models.User
	GetUserType(ctx context.Context, userID int64) string
}

// Cache описывает методы для кэширования данных.
type Cache interface {
	Get(key string, result any) (bool, error)
	Set(key string, value any, expiration time.Duration) error
	Invalidate(key string) error
}

// Notifier — внешний триггер резервного копирования.
type Notifier interface {
	Notify(event string, userID int64) error
}

// QuotaService отвечает на вопросы квоты и списывает использование.
type QuotaService struct {
	repo     QuotaRepository
	accounts AccountReader
	cache    Cache
	notifier Notifier
	gate     *sync.Mutex
	log      *slog.Logger
}

// NewQuotaService создает новый экземпляр QuotaService.
func NewQuotaService(repo QuotaRepository, accounts AccountReader, c Cache, notifier Notifier, gate *sync.Mutex, log *slog.Logger) *QuotaService {
	return &QuotaService{
		repo:     repo,
		accounts: accounts,
		cache:    c,
		notifier: notifier,
		gate:     gate,
		log:      log,
	}
}

func (s *QuotaService) invalidateUser(userID int64) {
	for _, key := range cache.UserMutationKeys(userID) {
		if err := s.cache.Invalidate(key); err != nil {
			s.log.Warn("failed to invalidate cache", slog.String("key", key), sl.Err(err))
		}
	}
}

// sameDay сравнивает календарные даты в UTC: дата сброса хранится как
// DATE и читается обратно с полуночью UTC, поэтому локальная зона
// процесса не должна участвовать в сравнении.
func sameDay(a, b time.Time) bool {
	return a.UTC().Format(time.DateOnly) == b.UTC().Format(time.DateOnly)
}

// resetAdDownloadsIfNeeded обнуляет рекламный баланс, если дата сброса
// не сегодняшняя. Вызывается до любого чтения баланса.
func (s *QuotaService) resetAdDownloadsIfNeeded(ctx context.Context, userID int64) {
	user := s.accounts.GetUser(ctx, userID)
	if user == nil {
		return
	}

	now := time.Now()
	if user.AdDownloadsResetDate != nil && sameDay(*user.AdDownloadsResetDate, now) {
		return
	}

	s.gate.Lock()
	err := s.repo.ResetAdDownloads(ctx, userID, now)
	s.gate.Unlock()
	if err != nil {
		s.log.Error("failed to reset ad downloads", slog.Int64("user_id", userID), sl.Err(err))
		return
	}
	s.invalidateUser(userID)
}

// CanDownload сообщает, может ли пользователь скачать count файлов
// прямо сейчас. Возвращает признак и текст причины отказа для
// пользователя; отказ — обычный результат, а не ошибка.
func (s *QuotaService) CanDownload(ctx context.Context, userID int64, count int) (bool, string) {
	userType := s.accounts.GetUserType(ctx, userID)
	if userType == models.UserTypeAdmin || userType == models.UserTypePaid {
		return true, ""
	}

	s.resetAdDownloadsIfNeeded(ctx, userID)

	var adDownloads int
	if user := s.accounts.GetUser(ctx, userID); user != nil {
		adDownloads = user.AdDownloads
	}

	if adDownloads > 0 {
		if adDownloads < count {
			metrics.QuotaRejections.WithLabelValues(reasonInsufficientAd).Inc()
			return false, fmt.Sprintf("insufficient ad downloads: you have %d ad download(s) but need %d", adDownloads, count)
		}
		return true, ""
	}

	dailyUsage, err := s.repo.GetDailyUsage(ctx, userID, time.Now())
	if err != nil {
		s.log.Error("failed to get daily usage", slog.Int64("user_id", userID), sl.Err(err))
		dailyUsage = 0
	}
	if dailyUsage+count > DailyFreeLimit {
		metrics.QuotaRejections.WithLabelValues(reasonDailyLimit).Inc()
		return false, "daily limit reached"
	}

	return true, ""
}

// ChargeUsage списывает count скачиваний. Для admin и paid двигается
// только индекс ротации; для free сначала тратится рекламный баланс
// (условное списание, при гонке — отказ без повтора), затем дневной
// счетчик. Возвращает false, если списание не прошло.
func (s *QuotaService) ChargeUsage(ctx context.Context, userID int64, count int) bool {
	userType := s.accounts.GetUserType(ctx, userID)
	if userType == models.UserTypeAdmin || userType == models.UserTypePaid {
		s.advanceRotation(ctx, userID, count)
		return true
	}

	s.resetAdDownloadsIfNeeded(ctx, userID)

	var adDownloads int
	if user := s.accounts.GetUser(ctx, userID); user != nil {
		adDownloads = user.AdDownloads
	}

	if adDownloads > 0 {
		if count > adDownloads {
			s.log.Warn("not enough ad downloads",
				slog.Int64("user_id", userID), slog.Int("have", adDownloads), slog.Int("need", count))
			return false
		}

		s.gate.Lock()
		ok, err := s.repo.DeductAdDownloads(ctx, userID, count)
		s.gate.Unlock()
		if err != nil {
			s.log.Error("failed to deduct ad downloads", slog.Int64("user_id", userID), sl.Err(err))
			return false
		}
		if !ok {
			// Баланса не хватило в момент записи: конкурентное списание
			// успело раньше. Отказ без повтора.
			s.log.Warn("ad download deduction lost the race", slog.Int64("user_id", userID))
			return false
		}

		s.invalidateUser(userID)
		s.log.Info("charged ad downloads",
			slog.Int64("user_id", userID), slog.Int("count", count),
			slog.Int("remaining", adDownloads-count))
		s.advanceRotation(ctx, userID, count)
		return true
	}

	dailyUsage, err := s.repo.GetDailyUsage(ctx, userID, time.Now())
	if err != nil {
		s.log.Error("failed to get daily usage", slog.Int64("user_id", userID), sl.Err(err))
		return false
	}
	if dailyUsage+count > DailyFreeLimit {
		s.log.Warn("daily limit exceeded",
			slog.Int64("user_id", userID), slog.Int("usage", dailyUsage), slog.Int("count", count))
		return false
	}

	s.gate.Lock()
	err = s.repo.AddDailyUsage(ctx, userID, time.Now(), count)
	s.gate.Unlock()
	if err != nil {
		s.log.Error("failed to add daily usage", slog.Int64("user_id", userID), sl.Err(err))
		return false
	}

	s.advanceRotation(ctx, userID, count)
	return true
}

func (s *QuotaService) advanceRotation(ctx context.Context, userID int64, steps int) {
	s.gate.Lock()
	_, err := s.repo.AdvanceShortener(ctx, userID, steps)
	s.gate.Unlock()
	if err != nil {
		s.log.Error("failed to advance shortener rotation", slog.Int64("user_id", userID), sl.Err(err))
		return
	}
	s.invalidateUser(userID)
}

// GetAdDownloads возвращает остаток рекламных загрузок на сегодня.
func (s *QuotaService) GetAdDownloads(ctx context.Context, userID int64) int {
	s.resetAdDownloadsIfNeeded(ctx, userID)
	user := s.accounts.GetUser(ctx, userID)
	if user == nil {
		return 0
	}
	return user.AdDownloads
}

// AddAdDownloads начисляет count рекламных загрузок (без верхнего
// предела) и триггерит резервное копирование.
func (s *QuotaService) AddAdDownloads(ctx context.Context, userID int64, count int) bool {
	s.gate.Lock()
	ok, err := s.repo.AddAdDownloads(ctx, userID, count)
	s.gate.Unlock()
	if err != nil {
		s.log.Error("failed to add ad downloads", slog.Int64("user_id", userID), sl.Err(err))
		return false
	}
	if !ok {
		return false
	}

	s.invalidateUser(userID)
	if err := s.notifier.Notify(models.BackupEventAddAdDownloads, userID); err != nil {
		s.log.Warn("backup trigger failed",
			slog.String("event", models.BackupEventAddAdDownloads),
			slog.Int64("user_id", userID), sl.Err(err))
	}
	return true
}
