package services

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"github.com/wolfstream/account-store/internal/models"
)

type QuotaRepoMock struct{ mock.Mock }

func (m *QuotaRepoMock) DeductAdDownloads(ctx context.Context, userID int64, count int) (bool, error) {
	args := m.Called(ctx, userID, count)
	return args.Bool(0), args.Error(1)
}
func (m *QuotaRepoMock) AddAdDownloads(ctx context.Context, userID int64, count int) (bool, error) {
	args := m.Called(ctx, userID, count)
	return args.Bool(0), args.Error(1)
}
func (m *QuotaRepoMock) ResetAdDownloads(ctx context.Context, userID int64, day time.Time) error {
	return m.Called(ctx, userID, day).Error(0)
}
func (m *QuotaRepoMock) GetDailyUsage(ctx context.Context, userID int64, day time.Time) (int, error) {
	args := m.Called(ctx, userID, day)
	return args.Int(0), args.Error(1)
}
func (m *QuotaRepoMock) AddDailyUsage(ctx context.Context, userID int64, day time.Time, count int) error {
	return m.Called(ctx, userID, day, count).Error(0)
}
func (m *QuotaRepoMock) AdvanceShortener(ctx context.Context, userID int64, steps int) (bool, error) {
	args := m.Called(ctx, userID, steps)
	return args.Bool(0), args.Error(1)
}

type AccountReaderMock struct{ mock.Mock }

func (m *AccountReaderMock) GetUser(ctx context.Context, userID int64) *models.User {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil
	}
	return args.Get(0).(*models.User)
}
func (m *AccountReaderMock) GetUserType(ctx context.Context, userID int64) string {
	return m.Called(ctx, userID).String(0)
}

type CacheMock struct{ mock.Mock }

func (m *CacheMock) Get(key string, result any) (bool, error) {
	args := m.Called(key, result)
	return args.Bool(0), args.Error(1)
}
func (m *CacheMock) Set(key string, value any, expiration time.Duration) error {
	return m.Called(key, value, expiration).Error(0)
}
func (m *CacheMock) Invalidate(key string) error {
	return m.Called(key).Error(0)
}

type NotifierMock struct{ mock.Mock }

func (m *NotifierMock) Notify(event string, userID int64) error {
	return m.Called(event, userID).Error(0)
}

func newNoopLogger() *slog.Logger {
	h := slog.NewTextHandler(io.Discard, &slog.HandlerOptions{})
	return slog.New(h)
}

func newService(repo *QuotaRepoMock, accounts *AccountReaderMock, c *CacheMock, n *NotifierMock) *QuotaService {
	return NewQuotaService(repo, accounts, c, n, &sync.Mutex{}, newNoopLogger())
}

func todayPtr() *time.Time {
	now := time.Now()
	return &now
}

func yesterdayPtr() *time.Time {
	d := time.Now().AddDate(0, 0, -1)
	return &d
}

func freeUser(id int64, adDownloads int, resetDate *time.Time) *models.User {
	return &models.User{
		UserID:               id,
		UserType:             models.UserTypeFree,
		AdDownloads:          adDownloads,
		AdDownloadsResetDate: resetDate,
	}
}

func TestCanDownload_AdminAndPaidAlwaysAllowed(t *testing.T) {
	for _, userType := range []string{models.UserTypeAdmin, models.UserTypePaid} {
		t.Run(userType, func(t *testing.T) {
			repo := &QuotaRepoMock{}
			accounts := &AccountReaderMock{}
			c := &CacheMock{}
			n := &NotifierMock{}

			accounts.On("GetUserType", mock.Anything, int64(1)).Return(userType)

			svc := newService(repo, accounts, c, n)
			ok, reason := svc.CanDownload(context.Background(), 1, 100)

			assert.True(t, ok)
			assert.Empty(t, reason)
			repo.AssertNotCalled(t, "GetDailyUsage", mock.Anything, mock.Anything, mock.Anything)
		})
	}
}

func TestCanDownload_AdBalanceAuthoritative(t *testing.T) {
	repo := &QuotaRepoMock{}
	accounts := &AccountReaderMock{}
	c := &CacheMock{}
	n := &NotifierMock{}

	accounts.On("GetUserType", mock.Anything, int64(2)).Return(models.UserTypeFree)
	accounts.On("GetUser", mock.Anything, int64(2)).Return(freeUser(2, 3, todayPtr()))

	svc := newService(repo, accounts, c, n)
	ok, reason := svc.CanDownload(context.Background(), 2, 2)

	assert.True(t, ok)
	assert.Empty(t, reason)
	// Ненулевой баланс авторитетен: до дневного лимита дело не доходит.
	repo.AssertNotCalled(t, "GetDailyUsage", mock.Anything, mock.Anything, mock.Anything)
}

func TestCanDownload_InsufficientAdBalanceRejectsWithoutDailyFallback(t *testing.T) {
	repo := &QuotaRepoMock{}
	accounts := &AccountReaderMock{}
	c := &CacheMock{}
	n := &NotifierMock{}

	accounts.On("GetUserType", mock.Anything, int64(3)).Return(models.UserTypeFree)
	accounts.On("GetUser", mock.Anything, int64(3)).Return(freeUser(3, 1, todayPtr()))

	svc := newService(repo, accounts, c, n)
	ok, reason := svc.CanDownload(context.Background(), 3, 2)

	assert.False(t, ok)
	assert.Contains(t, reason, "insufficient ad downloads")
	repo.AssertNotCalled(t, "GetDailyUsage", mock.Anything, mock.Anything, mock.Anything)
}

func TestCanDownload_DailyLimit(t *testing.T) {
	tests := []struct {
		name     string
		usage    int
		count    int
		expectOK bool
	}{
		{name: "first file of the day allowed", usage: 0, count: 1, expectOK: true},
		{name: "limit already reached", usage: 1, count: 1, expectOK: false},
		{name: "batch over the limit", usage: 0, count: 2, expectOK: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := &QuotaRepoMock{}
			accounts := &AccountReaderMock{}
			c := &CacheMock{}
			n := &NotifierMock{}

			accounts.On("GetUserType", mock.Anything, int64(4)).Return(models.UserTypeFree)
			accounts.On("GetUser", mock.Anything, int64(4)).Return(freeUser(4, 0, todayPtr()))
			repo.On("GetDailyUsage", mock.Anything, int64(4), mock.Anything).Return(tt.usage, nil)

			svc := newService(repo, accounts, c, n)
			ok, reason := svc.CanDownload(context.Background(), 4, tt.count)

			assert.Equal(t, tt.expectOK, ok)
			if !tt.expectOK {
				assert.Equal(t, "daily limit reached", reason)
			}
		})
	}
}

func TestCanDownload_StaleBalanceResetBeforeDecision(t *testing.T) {
	repo := &QuotaRepoMock{}
	accounts := &AccountReaderMock{}
	c := &CacheMock{}
	n := &NotifierMock{}

	// Баланс 5 с вчерашней датой сброса: перед решением он обнуляется,
	// и пользователь идет по ветке дневного лимита.
	accounts.On("GetUserType", mock.Anything, int64(5)).Return(models.UserTypeFree)
	accounts.On("GetUser", mock.Anything, int64(5)).Return(freeUser(5, 5, yesterdayPtr())).Once()
	repo.On("ResetAdDownloads", mock.Anything, int64(5), mock.Anything).Return(nil).Once()
	c.On("Invalidate", mock.Anything).Return(nil)
	accounts.On("GetUser", mock.Anything, int64(5)).Return(freeUser(5, 0, todayPtr()))
	repo.On("GetDailyUsage", mock.Anything, int64(5), mock.Anything).Return(0, nil)

	svc := newService(repo, accounts, c, n)
	ok, _ := svc.CanDownload(context.Background(), 5, 1)

	assert.True(t, ok)
	repo.AssertExpectations(t)
}

func TestCanDownload_ResetDateAtUTCMidnightCountsAsToday(t *testing.T) {
	repo := &QuotaRepoMock{}
	accounts := &AccountReaderMock{}
	c := &CacheMock{}
	n := &NotifierMock{}

	// Дата сброса приходит из колонки DATE как полночь UTC; в зоне
	// процесса, отличной от UTC, это не повод обнулять баланс.
	utc := time.Now().UTC()
	utcMidnight := time.Date(utc.Year(), utc.Month(), utc.Day(), 0, 0, 0, 0, time.UTC)

	accounts.On("GetUserType", mock.Anything, int64(16)).Return(models.UserTypeFree)
	accounts.On("GetUser", mock.Anything, int64(16)).Return(freeUser(16, 2, &utcMidnight))

	svc := newService(repo, accounts, c, n)
	ok, _ := svc.CanDownload(context.Background(), 16, 1)

	assert.True(t, ok)
	repo.AssertNotCalled(t, "ResetAdDownloads", mock.Anything, mock.Anything, mock.Anything)
}

func TestChargeUsage_AdminRotatesOnly(t *testing.T) {
	repo := &QuotaRepoMock{}
	accounts := &AccountReaderMock{}
	c := &CacheMock{}
	n := &NotifierMock{}

	accounts.On("GetUserType", mock.Anything, int64(6)).Return(models.UserTypeAdmin)
	repo.On("AdvanceShortener", mock.Anything, int64(6), 2).Return(true, nil).Once()
	c.On("Invalidate", mock.Anything).Return(nil)

	svc := newService(repo, accounts, c, n)
	assert.True(t, svc.ChargeUsage(context.Background(), 6, 2))

	repo.AssertNotCalled(t, "DeductAdDownloads", mock.Anything, mock.Anything, mock.Anything)
	repo.AssertNotCalled(t, "AddDailyUsage", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	repo.AssertExpectations(t)
}

func TestChargeUsage_AdBalanceDeducted(t *testing.T) {
	repo := &QuotaRepoMock{}
	accounts := &AccountReaderMock{}
	c := &CacheMock{}
	n := &NotifierMock{}

	accounts.On("GetUserType", mock.Anything, int64(7)).Return(models.UserTypeFree)
	accounts.On("GetUser", mock.Anything, int64(7)).Return(freeUser(7, 3, todayPtr()))
	repo.On("DeductAdDownloads", mock.Anything, int64(7), 1).Return(true, nil).Once()
	repo.On("AdvanceShortener", mock.Anything, int64(7), 1).Return(true, nil).Once()
	c.On("Invalidate", mock.Anything).Return(nil)

	svc := newService(repo, accounts, c, n)
	assert.True(t, svc.ChargeUsage(context.Background(), 7, 1))

	repo.AssertNotCalled(t, "AddDailyUsage", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	repo.AssertExpectations(t)
}

func TestChargeUsage_DeductionRaceRejectedWithoutRetry(t *testing.T) {
	repo := &QuotaRepoMock{}
	accounts := &AccountReaderMock{}
	c := &CacheMock{}
	n := &NotifierMock{}

	accounts.On("GetUserType", mock.Anything, int64(8)).Return(models.UserTypeFree)
	accounts.On("GetUser", mock.Anything, int64(8)).Return(freeUser(8, 1, todayPtr()))
	repo.On("DeductAdDownloads", mock.Anything, int64(8), 1).Return(false, nil).Once()

	svc := newService(repo, accounts, c, n)
	assert.False(t, svc.ChargeUsage(context.Background(), 8, 1))

	repo.AssertNumberOfCalls(t, "DeductAdDownloads", 1)
	repo.AssertNotCalled(t, "AddDailyUsage", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestChargeUsage_PartialAdChargeRejected(t *testing.T) {
	repo := &QuotaRepoMock{}
	accounts := &AccountReaderMock{}
	c := &CacheMock{}
	n := &NotifierMock{}

	accounts.On("GetUserType", mock.Anything, int64(9)).Return(models.UserTypeFree)
	accounts.On("GetUser", mock.Anything, int64(9)).Return(freeUser(9, 1, todayPtr()))

	svc := newService(repo, accounts, c, n)
	assert.False(t, svc.ChargeUsage(context.Background(), 9, 3))

	repo.AssertNotCalled(t, "DeductAdDownloads", mock.Anything, mock.Anything, mock.Anything)
}

func TestChargeUsage_DailyPath(t *testing.T) {
	repo := &QuotaRepoMock{}
	accounts := &AccountReaderMock{}
	c := &CacheMock{}
	n := &NotifierMock{}

	accounts.On("GetUserType", mock.Anything, int64(10)).Return(models.UserTypeFree)
	accounts.On("GetUser", mock.Anything, int64(10)).Return(freeUser(10, 0, todayPtr()))
	repo.On("GetDailyUsage", mock.Anything, int64(10), mock.Anything).Return(0, nil).Once()
	repo.On("AddDailyUsage", mock.Anything, int64(10), mock.Anything, 1).Return(nil).Once()
	repo.On("AdvanceShortener", mock.Anything, int64(10), 1).Return(true, nil).Once()
	c.On("Invalidate", mock.Anything).Return(nil)

	svc := newService(repo, accounts, c, n)
	assert.True(t, svc.ChargeUsage(context.Background(), 10, 1))
	repo.AssertExpectations(t)
}

func TestChargeUsage_DailyLimitExceeded(t *testing.T) {
	repo := &QuotaRepoMock{}
	accounts := &AccountReaderMock{}
	c := &CacheMock{}
	n := &NotifierMock{}

	accounts.On("GetUserType", mock.Anything, int64(11)).Return(models.UserTypeFree)
	accounts.On("GetUser", mock.Anything, int64(11)).Return(freeUser(11, 0, todayPtr()))
	repo.On("GetDailyUsage", mock.Anything, int64(11), mock.Anything).Return(DailyFreeLimit, nil).Once()

	svc := newService(repo, accounts, c, n)
	assert.False(t, svc.ChargeUsage(context.Background(), 11, 1))

	repo.AssertNotCalled(t, "AddDailyUsage", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestGetAdDownloads_ResetsStaleBalanceFirst(t *testing.T) {
	repo := &QuotaRepoMock{}
	accounts := &AccountReaderMock{}
	c := &CacheMock{}
	n := &NotifierMock{}

	accounts.On("GetUser", mock.Anything, int64(12)).Return(freeUser(12, 7, yesterdayPtr())).Once()
	repo.On("ResetAdDownloads", mock.Anything, int64(12), mock.Anything).Return(nil).Once()
	c.On("Invalidate", mock.Anything).Return(nil)
	accounts.On("GetUser", mock.Anything, int64(12)).Return(freeUser(12, 0, todayPtr()))

	svc := newService(repo, accounts, c, n)
	assert.Equal(t, 0, svc.GetAdDownloads(context.Background(), 12))
	repo.AssertExpectations(t)
}

func TestGetAdDownloads_FreshBalanceUntouched(t *testing.T) {
	repo := &QuotaRepoMock{}
	accounts := &AccountReaderMock{}
	c := &CacheMock{}
	n := &NotifierMock{}

	accounts.On("GetUser", mock.Anything, int64(13)).Return(freeUser(13, 4, todayPtr()))

	svc := newService(repo, accounts, c, n)
	assert.Equal(t, 4, svc.GetAdDownloads(context.Background(), 13))
	repo.AssertNotCalled(t, "ResetAdDownloads", mock.Anything, mock.Anything, mock.Anything)
}

func TestAddAdDownloads_InvalidatesAndNotifies(t *testing.T) {
	repo := &QuotaRepoMock{}
	accounts := &AccountReaderMock{}
	c := &CacheMock{}
	n := &NotifierMock{}

	repo.On("AddAdDownloads", mock.Anything, int64(14), 5).Return(true, nil).Once()
	c.On("Invalidate", "user:14").Return(nil).Once()
	n.On("Notify", models.BackupEventAddAdDownloads, int64(14)).Return(nil).Once()

	svc := newService(repo, accounts, c, n)
	assert.True(t, svc.AddAdDownloads(context.Background(), 14, 5))
	n.AssertExpectations(t)
	c.AssertExpectations(t)
}

func TestAddAdDownloads_UnknownUser(t *testing.T) {
	repo := &QuotaRepoMock{}
	accounts := &AccountReaderMock{}
	c := &CacheMock{}
	n := &NotifierMock{}

	repo.On("AddAdDownloads", mock.Anything, int64(15), 5).Return(false, nil).Once()

	svc := newService(repo, accounts, c, n)
	assert.False(t, svc.AddAdDownloads(context.Background(), 15, 5))
	n.AssertNotCalled(t, "Notify", mock.Anything, mock.Anything)
}
