// Package services содержит бизнес-логику учетных записей: регистрацию
// при первом контакте, чтение через кеш, ленивое списание просроченного
// премиума, блокировки, сессии и миниатюры.
//
// Все мутации проходят через общий write-гейт и после фиксации
// инвалидируют затронутые ключи кеша. Чтения гейт не берут.
package services

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/wolfstream/account-store/internal/cache"
	"github.com/wolfstream/account-store/internal/lib/sl"
	"github.com/wolfstream/account-store/internal/models"
)

// UserRepository определяет методы хранилища, нужные сервису учетных записей.
type UserRepository interface {
	UpsertUser(ctx context.Context, userID int64, profile models.ProfileUpdate, now time.Time) (bool, error)
	GetUser(ctx context.Context, userID int64) (*models.User, error)
	UpdateUserType(ctx context.Context, userID int64, userType string, subscriptionEnd *time.Time, premiumSource *string) (bool, error)
	SetBanned(ctx context.Context, userID int64, banned bool) (bool, error)
	GetSessionString(ctx context.Context, userID int64) (*string, error)
	SetSessionString(ctx context.Context, userID int64, session *string) (bool, error)
	SetCustomThumbnail(ctx context.Context, userID int64, fileID *string) (bool, error)
	AdvanceShortener(ctx context.Context, userID int64, steps int) (bool, error)
	ListUserIDs(ctx context.Context) ([]int64, error)
	ListPremiumUsers(ctx context.Context, now time.Time) ([]*models.PremiumUser, error)
}

// Cache описывает методы для кэширования данных.
type Cache interface {
	Get(key string, result any) (bool, error)
	Set(key string, value any, expiration time.Duration) error
	Invalidate(key string) error
}

// Notifier — внешний триггер резервного копирования. Ошибки уведомителя
// логируются и никогда не влияют на результат мутации.
type Notifier interface {
	Notify(event string, userID int64) error
}

// AdminChecker сообщает, является ли пользователь администратором.
type AdminChecker interface {
	IsAdmin(ctx context.Context, userID int64) bool
}

// AccountService реализует операции над учетными записями.
type AccountService struct {
	repo     UserRepository
	cache    Cache
	notifier Notifier
	admins   AdminChecker
	gate     *sync.Mutex
	log      *slog.Logger
}

// NewAccountService создает новый экземпляр AccountService. Гейт gate
// общий для всех сервисов, мутирующих хранилище.
func NewAccountService(repo UserRepository, c Cache, notifier Notifier, admins AdminChecker, gate *sync.Mutex, log *slog.Logger) *AccountService {
	return &AccountService{
		repo:     repo,
		cache:    c,
		notifier: notifier,
		admins:   admins,
		gate:     gate,
		log:      log,
	}
}

func (s *AccountService) invalidate(keys ...string) {
	for _, key := range keys {
		if err := s.cache.Invalidate(key); err != nil {
			s.log.Warn("failed to invalidate cache", slog.String("key", key), sl.Err(err))
		}
	}
}

func (s *AccountService) notify(event string, userID int64) {
	if err := s.notifier.Notify(event, userID); err != nil {
		s.log.Warn("backup trigger failed",
			slog.String("event", event), slog.Int64("user_id", userID), sl.Err(err))
	}
}

// RegisterOrTouch создает пользователя при первом контакте. Повторный
// вызов идемпотентен: обновляются только поля профиля и отметка
// активности, счетчики и тариф не сбрасываются.
func (s *AccountService) RegisterOrTouch(ctx context.Context, userID int64, profile models.ProfileUpdate) bool {
	s.gate.Lock()
	created, err := s.repo.UpsertUser(ctx, userID, profile, time.Now())
	s.gate.Unlock()
	if err != nil {
		s.log.Error("failed to upsert user", slog.Int64("user_id", userID), sl.Err(err))
		return false
	}

	if created {
		s.notify(models.BackupEventAddUser, userID)
	}
	return true
}

// GetUser возвращает пользователя, используя кеш или хранилище.
// При любой ошибке возвращает nil.
func (s *AccountService) GetUser(ctx context.Context, userID int64) *models.User {
	var cached models.User
	found, err := s.cache.Get(cache.UserKey(userID), &cached)
	if err != nil {
		s.log.Warn("failed to read user from cache", slog.Int64("user_id", userID), sl.Err(err))
	}
	if found {
		return &cached
	}

	user, err := s.repo.GetUser(ctx, userID)
	if err != nil {
		s.log.Error("failed to get user", slog.Int64("user_id", userID), sl.Err(err))
		return nil
	}
	if user == nil {
		return nil
	}

	if err := s.cache.Set(cache.UserKey(userID), user, cache.UserTTL); err != nil {
		s.log.Warn("failed to cache user", slog.Int64("user_id", userID), sl.Err(err))
	}
	return user
}

// GetUserType возвращает действующий тип учетной записи: admin по
// членству в реестре, paid при непросроченной подписке, иначе free.
//
// Чтение может выполнить синхронную корректирующую запись: если
// подписка paid-пользователя истекла, он тут же понижается до free
// в хранилище (с очисткой срока и источника премиума), а не только
// в возвращаемом значении.
func (s *AccountService) GetUserType(ctx context.Context, userID int64) string {
	user := s.GetUser(ctx, userID)
	if user == nil {
		return models.UserTypeFree
	}

	if s.admins.IsAdmin(ctx, userID) {
		return models.UserTypeAdmin
	}

	if user.UserType == models.UserTypePaid && user.SubscriptionEnd != nil {
		if user.SubscriptionEnd.After(time.Now()) {
			return models.UserTypePaid
		}

		s.gate.Lock()
		_, err := s.repo.UpdateUserType(ctx, userID, models.UserTypeFree, nil, nil)
		s.gate.Unlock()
		if err != nil {
			s.log.Error("failed to downgrade expired premium", slog.Int64("user_id", userID), sl.Err(err))
		} else {
			s.invalidate(cache.UserMutationKeys(userID)...)
			s.log.Info("premium expired, downgraded to free", slog.Int64("user_id", userID))
		}
	}

	return models.UserTypeFree
}

// SetUserType напрямую выставляет тариф. Для paid подписка действует
// days дней от текущего момента.
func (s *AccountService) SetUserType(ctx context.Context, userID int64, userType string, days int) bool {
	var subscriptionEnd *time.Time
	var source *string
	if userType == models.UserTypePaid {
		end := time.Now().AddDate(0, 0, days)
		subscriptionEnd = &end
		src := models.UserTypePaid
		source = &src
	}

	s.gate.Lock()
	ok, err := s.repo.UpdateUserType(ctx, userID, userType, subscriptionEnd, source)
	s.gate.Unlock()
	if err != nil {
		s.log.Error("failed to set user type", slog.Int64("user_id", userID), sl.Err(err))
		return false
	}
	if ok {
		s.invalidate(cache.UserMutationKeys(userID)...)
	}
	return ok
}

// GrantPremium выдает премиум до expiry с указанием источника.
//
// Правило приоритета: выдача из источника "ads" не перетирает
// действующий премиум из другого источника — такой запрос отклоняется,
// чтобы вызывающая сторона могла сообщить пользователю, что его
// подписка не тронута. Любая другая выдача перезаписывает тариф,
// срок и источник.
func (s *AccountService) GrantPremium(ctx context.Context, userID int64, expiry time.Time, source string) bool {
	user := s.GetUser(ctx, userID)
	if user != nil && user.HasActivePremium(time.Now()) {
		existingSource := ""
		if user.PremiumSource != nil {
			existingSource = *user.PremiumSource
		}
		if source == models.PremiumSourceAds && existingSource != models.PremiumSourceAds {
			s.log.Warn("user has active premium from another source, skipping ad-based premium",
				slog.Int64("user_id", userID),
				slog.Time("until", *user.SubscriptionEnd),
				slog.String("existing_source", existingSource))
			return false
		}
	}

	s.gate.Lock()
	ok, err := s.repo.UpdateUserType(ctx, userID, models.UserTypePaid, &expiry, &source)
	s.gate.Unlock()
	if err != nil {
		s.log.Error("failed to grant premium", slog.Int64("user_id", userID), sl.Err(err))
		return false
	}
	if ok {
		s.invalidate(cache.UserMutationKeys(userID)...)
		s.notify(models.BackupEventSetPremium, userID)
	}
	return ok
}

// Ban выставляет флаг блокировки.
func (s *AccountService) Ban(ctx context.Context, userID int64) bool {
	return s.setBanned(ctx, userID, true)
}

// Unban снимает флаг блокировки.
func (s *AccountService) Unban(ctx context.Context, userID int64) bool {
	return s.setBanned(ctx, userID, false)
}

func (s *AccountService) setBanned(ctx context.Context, userID int64, banned bool) bool {
	s.gate.Lock()
	ok, err := s.repo.SetBanned(ctx, userID, banned)
	s.gate.Unlock()
	if err != nil {
		s.log.Error("failed to set ban flag", slog.Int64("user_id", userID), sl.Err(err))
		return false
	}
	if ok {
		s.invalidate(cache.BanMutationKeys(userID)...)
	}
	return ok
}

// IsBanned сообщает, заблокирован ли пользователь (кешируется отдельно
// от записи пользователя).
func (s *AccountService) IsBanned(ctx context.Context, userID int64) bool {
	var cached bool
	found, err := s.cache.Get(cache.BannedKey(userID), &cached)
	if err != nil {
		s.log.Warn("failed to read ban flag from cache", slog.Int64("user_id", userID), sl.Err(err))
	}
	if found {
		return cached
	}

	user := s.GetUser(ctx, userID)
	banned := user != nil && user.IsBanned
	if err := s.cache.Set(cache.BannedKey(userID), banned, cache.BannedTTL); err != nil {
		s.log.Warn("failed to cache ban flag", slog.Int64("user_id", userID), sl.Err(err))
	}
	return banned
}

// SetSessionString привязывает или очищает строку сессии. Первая
// привязка (раньше сессии не было) триггерит резервное копирование.
func (s *AccountService) SetSessionString(ctx context.Context, userID int64, session *string) bool {
	s.gate.Lock()
	previous, err := s.repo.GetSessionString(ctx, userID)
	if err != nil {
		s.gate.Unlock()
		s.log.Error("failed to read previous session", slog.Int64("user_id", userID), sl.Err(err))
		return false
	}
	ok, err := s.repo.SetSessionString(ctx, userID, session)
	s.gate.Unlock()
	if err != nil {
		s.log.Error("failed to set session", slog.Int64("user_id", userID), sl.Err(err))
		return false
	}
	if !ok {
		return false
	}

	s.invalidate(cache.UserMutationKeys(userID)...)

	if session != nil && previous == nil {
		s.notify(models.BackupEventSetSession, userID)
	}
	return true
}

// GetSessionString возвращает строку сессии пользователя.
func (s *AccountService) GetSessionString(ctx context.Context, userID int64) *string {
	user := s.GetUser(ctx, userID)
	if user == nil {
		return nil
	}
	return user.SessionString
}

// SetCustomThumbnail сохраняет ссылку на пользовательскую миниатюру.
func (s *AccountService) SetCustomThumbnail(ctx context.Context, userID int64, fileID string) bool {
	return s.setThumbnail(ctx, userID, &fileID)
}

// DeleteCustomThumbnail удаляет пользовательскую миниатюру.
func (s *AccountService) DeleteCustomThumbnail(ctx context.Context, userID int64) bool {
	return s.setThumbnail(ctx, userID, nil)
}

func (s *AccountService) setThumbnail(ctx context.Context, userID int64, fileID *string) bool {
	s.gate.Lock()
	ok, err := s.repo.SetCustomThumbnail(ctx, userID, fileID)
	s.gate.Unlock()
	if err != nil {
		s.log.Error("failed to set custom thumbnail", slog.Int64("user_id", userID), sl.Err(err))
		return false
	}
	if ok {
		s.invalidate(cache.UserMutationKeys(userID)...)
	}
	return ok
}

// GetCustomThumbnail возвращает ссылку на миниатюру пользователя.
func (s *AccountService) GetCustomThumbnail(ctx context.Context, userID int64) *string {
	user := s.GetUser(ctx, userID)
	if user == nil {
		return nil
	}
	return user.CustomThumbnail
}

// GetShortenerIndex возвращает текущий индекс ротации (0..3).
func (s *AccountService) GetShortenerIndex(ctx context.Context, userID int64) int {
	user := s.GetUser(ctx, userID)
	if user == nil {
		return 0
	}
	return user.ShortenerIndex
}

// RotateShortener сдвигает индекс ротации на единицу по кругу.
func (s *AccountService) RotateShortener(ctx context.Context, userID int64) bool {
	s.gate.Lock()
	ok, err := s.repo.AdvanceShortener(ctx, userID, 1)
	s.gate.Unlock()
	if err != nil {
		s.log.Error("failed to rotate shortener", slog.Int64("user_id", userID), sl.Err(err))
		return false
	}
	if ok {
		s.invalidate(cache.UserMutationKeys(userID)...)
	}
	return ok
}

// ListUserIDs возвращает идентификаторы незаблокированных пользователей.
func (s *AccountService) ListUserIDs(ctx context.Context) []int64 {
	ids, err := s.repo.ListUserIDs(ctx)
	if err != nil {
		s.log.Error("failed to list users", sl.Err(err))
		return nil
	}
	return ids
}

// ListPremiumUsers возвращает пользователей с действующим премиумом.
func (s *AccountService) ListPremiumUsers(ctx context.Context) []*models.PremiumUser {
	users, err := s.repo.ListPremiumUsers(ctx, time.Now())
	if err != nil {
		s.log.Error("failed to list premium users", sl.Err(err))
		return nil
	}
	return users
}
