package services

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"github.com/wolfstream/account-store/internal/models"
)

type RepoMock struct{ mock.Mock }

func (m *RepoMock) UpsertUser(ctx context.Context, userID int64, profile models.ProfileUpdate, now time.Time) (bool, error) {
	args := m.Called(ctx, userID, profile, now)
	return args.Bool(0), args.Error(1)
}
func (m *RepoMock) GetUser(ctx context.Context, userID int64) (*models.User, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.User), args.Error(1)
}
func (m *RepoMock) UpdateUserType(ctx context.Context, userID int64, userType string, subscriptionEnd *time.Time, premiumSource *string) (bool, error) {
	args := m.Called(ctx, userID, userType, subscriptionEnd, premiumSource)
	return args.Bool(0), args.Error(1)
}
func (m *RepoMock) SetBanned(ctx context.Context, userID int64, banned bool) (bool, error) {
	args := m.Called(ctx, userID, banned)
	return args.Bool(0), args.Error(1)
}
func (m *RepoMock) GetSessionString(ctx context.Context, userID int64) (*string, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*string), args.Error(1)
}
func (m *RepoMock) SetSessionString(ctx context.Context, userID int64, session *string) (bool, error) {
	args := m.Called(ctx, userID, session)
	return args.Bool(0), args.Error(1)
}
func (m *RepoMock) SetCustomThumbnail(ctx context.Context, userID int64, fileID *string) (bool, error) {
	args := m.Called(ctx, userID, fileID)
	return args.Bool(0), args.Error(1)
}
func (m *RepoMock) AdvanceShortener(ctx context.Context, userID int64, steps int) (bool, error) {
	args := m.Called(ctx, userID, steps)
	return args.Bool(0), args.Error(1)
}
func (m *RepoMock) ListUserIDs(ctx context.Context) ([]int64, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]int64), args.Error(1)
}
func (m *RepoMock) ListPremiumUsers(ctx context.Context, now time.Time) ([]*models.PremiumUser, error) {
	args := m.Called(ctx, now)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.PremiumUser), args.Error(1)
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

type AdminCheckerMock struct{ mock.Mock }

func (m *AdminCheckerMock) IsAdmin(ctx context.Context, userID int64) bool {
	return m.Called(ctx, userID).Bool(0)
}

func newNoopLogger() *slog.Logger {
	h := slog.NewTextHandler(io.Discard, &slog.HandlerOptions{})
	return slog.New(h)
}

func newService(repo *RepoMock, c *CacheMock, n *NotifierMock, a *AdminCheckerMock) *AccountService {
	return NewAccountService(repo, c, n, a, &sync.Mutex{}, newNoopLogger())
}

func strPtr(s string) *string { return &s }

func TestRegisterOrTouch(t *testing.T) {
	tests := []struct {
		name         string
		created      bool
		upsertErr    error
		notifyErr    error
		expectNotify bool
		expectOK     bool
	}{
		{name: "new user triggers backup", created: true, expectNotify: true, expectOK: true},
		{name: "existing user does not trigger backup", created: false, expectOK: true},
		{name: "notifier failure is swallowed", created: true, notifyErr: errors.New("broker down"), expectNotify: true, expectOK: true},
		{name: "storage error reported as failure", upsertErr: errors.New("db error"), expectOK: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := &RepoMock{}
			c := &CacheMock{}
			n := &NotifierMock{}
			a := &AdminCheckerMock{}

			repo.On("UpsertUser", mock.Anything, int64(1), mock.Anything, mock.Anything).
				Return(tt.created, tt.upsertErr).Once()
			if tt.expectNotify {
				n.On("Notify", models.BackupEventAddUser, int64(1)).Return(tt.notifyErr).Once()
			}

			svc := newService(repo, c, n, a)
			ok := svc.RegisterOrTouch(context.Background(), 1, models.ProfileUpdate{Username: strPtr("alice")})

			assert.Equal(t, tt.expectOK, ok)
			repo.AssertExpectations(t)
			n.AssertExpectations(t)
		})
	}
}

func TestGetUser_CacheHit(t *testing.T) {
	repo := &RepoMock{}
	c := &CacheMock{}
	n := &NotifierMock{}
	a := &AdminCheckerMock{}

	c.On("Get", "user:7", mock.Anything).Run(func(args mock.Arguments) {
		out := args.Get(1).(*models.User)
		*out = models.User{UserID: 7, UserType: models.UserTypeFree}
	}).Return(true, nil).Once()

	svc := newService(repo, c, n, a)
	user := svc.GetUser(context.Background(), 7)

	assert.NotNil(t, user)
	assert.Equal(t, int64(7), user.UserID)
	repo.AssertNotCalled(t, "GetUser", mock.Anything, mock.Anything)
}

func TestGetUser_CacheMissReadsStoreAndCaches(t *testing.T) {
	repo := &RepoMock{}
	c := &CacheMock{}
	n := &NotifierMock{}
	a := &AdminCheckerMock{}

	stored := &models.User{UserID: 7, UserType: models.UserTypeFree}
	c.On("Get", "user:7", mock.Anything).Return(false, nil).Once()
	repo.On("GetUser", mock.Anything, int64(7)).Return(stored, nil).Once()
	c.On("Set", "user:7", stored, mock.Anything).Return(nil).Once()

	svc := newService(repo, c, n, a)
	user := svc.GetUser(context.Background(), 7)

	assert.Equal(t, stored, user)
	c.AssertExpectations(t)
}

func TestGetUserType_Admin(t *testing.T) {
	repo := &RepoMock{}
	c := &CacheMock{}
	n := &NotifierMock{}
	a := &AdminCheckerMock{}

	c.On("Get", "user:2", mock.Anything).Return(false, nil)
	repo.On("GetUser", mock.Anything, int64(2)).
		Return(&models.User{UserID: 2, UserType: models.UserTypeFree}, nil)
	c.On("Set", mock.Anything, mock.Anything, mock.Anything).Return(nil)
	a.On("IsAdmin", mock.Anything, int64(2)).Return(true)

	svc := newService(repo, c, n, a)
	assert.Equal(t, models.UserTypeAdmin, svc.GetUserType(context.Background(), 2))
}

func TestGetUserType_ActivePaid(t *testing.T) {
	repo := &RepoMock{}
	c := &CacheMock{}
	n := &NotifierMock{}
	a := &AdminCheckerMock{}

	end := time.Now().Add(24 * time.Hour)
	c.On("Get", "user:3", mock.Anything).Return(false, nil)
	repo.On("GetUser", mock.Anything, int64(3)).
		Return(&models.User{UserID: 3, UserType: models.UserTypePaid, SubscriptionEnd: &end}, nil)
	c.On("Set", mock.Anything, mock.Anything, mock.Anything).Return(nil)
	a.On("IsAdmin", mock.Anything, int64(3)).Return(false)

	svc := newService(repo, c, n, a)
	assert.Equal(t, models.UserTypePaid, svc.GetUserType(context.Background(), 3))
	repo.AssertNotCalled(t, "UpdateUserType", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestGetUserType_ExpiredPaidDowngradedAndPersisted(t *testing.T) {
	repo := &RepoMock{}
	c := &CacheMock{}
	n := &NotifierMock{}
	a := &AdminCheckerMock{}

	end := time.Now().Add(-24 * time.Hour)
	src := "referral"
	c.On("Get", "user:4", mock.Anything).Return(false, nil)
	repo.On("GetUser", mock.Anything, int64(4)).
		Return(&models.User{UserID: 4, UserType: models.UserTypePaid, SubscriptionEnd: &end, PremiumSource: &src}, nil)
	c.On("Set", mock.Anything, mock.Anything, mock.Anything).Return(nil)
	a.On("IsAdmin", mock.Anything, int64(4)).Return(false)
	repo.On("UpdateUserType", mock.Anything, int64(4), models.UserTypeFree, (*time.Time)(nil), (*string)(nil)).
		Return(true, nil).Once()
	c.On("Invalidate", "user:4").Return(nil).Once()

	svc := newService(repo, c, n, a)
	assert.Equal(t, models.UserTypeFree, svc.GetUserType(context.Background(), 4))
	repo.AssertExpectations(t)
	c.AssertExpectations(t)
}

func TestGrantPremium_AdsDoesNotOverrideActiveOtherSource(t *testing.T) {
	repo := &RepoMock{}
	c := &CacheMock{}
	n := &NotifierMock{}
	a := &AdminCheckerMock{}

	end := time.Now().Add(48 * time.Hour)
	src := "referral"
	c.On("Get", "user:5", mock.Anything).Return(false, nil)
	repo.On("GetUser", mock.Anything, int64(5)).
		Return(&models.User{UserID: 5, UserType: models.UserTypePaid, SubscriptionEnd: &end, PremiumSource: &src}, nil)
	c.On("Set", mock.Anything, mock.Anything, mock.Anything).Return(nil)

	svc := newService(repo, c, n, a)
	ok := svc.GrantPremium(context.Background(), 5, time.Now().Add(time.Hour), models.PremiumSourceAds)

	assert.False(t, ok)
	repo.AssertNotCalled(t, "UpdateUserType", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	n.AssertNotCalled(t, "Notify", mock.Anything, mock.Anything)
}

func TestGrantPremium_NonAdsOverwritesAndNotifies(t *testing.T) {
	repo := &RepoMock{}
	c := &CacheMock{}
	n := &NotifierMock{}
	a := &AdminCheckerMock{}

	end := time.Now().Add(48 * time.Hour)
	src := "referral"
	expiry := time.Now().Add(30 * 24 * time.Hour)
	c.On("Get", "user:5", mock.Anything).Return(false, nil)
	repo.On("GetUser", mock.Anything, int64(5)).
		Return(&models.User{UserID: 5, UserType: models.UserTypePaid, SubscriptionEnd: &end, PremiumSource: &src}, nil)
	c.On("Set", mock.Anything, mock.Anything, mock.Anything).Return(nil)
	repo.On("UpdateUserType", mock.Anything, int64(5), models.UserTypePaid, &expiry, strPtr("referral")).
		Return(true, nil).Once()
	c.On("Invalidate", "user:5").Return(nil).Once()
	n.On("Notify", models.BackupEventSetPremium, int64(5)).Return(nil).Once()

	svc := newService(repo, c, n, a)
	ok := svc.GrantPremium(context.Background(), 5, expiry, "referral")

	assert.True(t, ok)
	repo.AssertExpectations(t)
	n.AssertExpectations(t)
}

func TestGrantPremium_AdsAllowedWhenNoActivePremium(t *testing.T) {
	repo := &RepoMock{}
	c := &CacheMock{}
	n := &NotifierMock{}
	a := &AdminCheckerMock{}

	expiry := time.Now().Add(12 * time.Hour)
	c.On("Get", "user:6", mock.Anything).Return(false, nil)
	repo.On("GetUser", mock.Anything, int64(6)).
		Return(&models.User{UserID: 6, UserType: models.UserTypeFree}, nil)
	c.On("Set", mock.Anything, mock.Anything, mock.Anything).Return(nil)
	repo.On("UpdateUserType", mock.Anything, int64(6), models.UserTypePaid, &expiry, strPtr(models.PremiumSourceAds)).
		Return(true, nil).Once()
	c.On("Invalidate", "user:6").Return(nil).Once()
	n.On("Notify", models.BackupEventSetPremium, int64(6)).Return(nil).Once()

	svc := newService(repo, c, n, a)
	assert.True(t, svc.GrantPremium(context.Background(), 6, expiry, models.PremiumSourceAds))
}

func TestBanInvalidatesBanAndUserKeys(t *testing.T) {
	repo := &RepoMock{}
	c := &CacheMock{}
	n := &NotifierMock{}
	a := &AdminCheckerMock{}

	repo.On("SetBanned", mock.Anything, int64(8), true).Return(true, nil).Once()
	c.On("Invalidate", "banned:8").Return(nil).Once()
	c.On("Invalidate", "user:8").Return(nil).Once()

	svc := newService(repo, c, n, a)
	assert.True(t, svc.Ban(context.Background(), 8))
	c.AssertExpectations(t)
}

func TestIsBanned_CachedFlag(t *testing.T) {
	repo := &RepoMock{}
	c := &CacheMock{}
	n := &NotifierMock{}
	a := &AdminCheckerMock{}

	c.On("Get", "banned:9", mock.Anything).Run(func(args mock.Arguments) {
		*(args.Get(1).(*bool)) = true
	}).Return(true, nil).Once()

	svc := newService(repo, c, n, a)
	assert.True(t, svc.IsBanned(context.Background(), 9))
	repo.AssertNotCalled(t, "GetUser", mock.Anything, mock.Anything)
}

func TestSetSessionString_FirstAttachTriggersBackup(t *testing.T) {
	repo := &RepoMock{}
	c := &CacheMock{}
	n := &NotifierMock{}
	a := &AdminCheckerMock{}

	session := strPtr("session-data")
	repo.On("GetSessionString", mock.Anything, int64(10)).Return(nil, nil).Once()
	repo.On("SetSessionString", mock.Anything, int64(10), session).Return(true, nil).Once()
	c.On("Invalidate", "user:10").Return(nil).Once()
	n.On("Notify", models.BackupEventSetSession, int64(10)).Return(nil).Once()

	svc := newService(repo, c, n, a)
	assert.True(t, svc.SetSessionString(context.Background(), 10, session))
	n.AssertExpectations(t)
}

func TestSetSessionString_ReplaceDoesNotTriggerBackup(t *testing.T) {
	repo := &RepoMock{}
	c := &CacheMock{}
	n := &NotifierMock{}
	a := &AdminCheckerMock{}

	session := strPtr("new-session")
	repo.On("GetSessionString", mock.Anything, int64(10)).Return(strPtr("old-session"), nil).Once()
	repo.On("SetSessionString", mock.Anything, int64(10), session).Return(true, nil).Once()
	c.On("Invalidate", "user:10").Return(nil).Once()

	svc := newService(repo, c, n, a)
	assert.True(t, svc.SetSessionString(context.Background(), 10, session))
	n.AssertNotCalled(t, "Notify", mock.Anything, mock.Anything)
}

func TestRotateShortenerInvalidatesUser(t *testing.T) {
	repo := &RepoMock{}
	c := &CacheMock{}
	n := &NotifierMock{}
	a := &AdminCheckerMock{}

	repo.On("AdvanceShortener", mock.Anything, int64(11), 1).Return(true, nil).Once()
	c.On("Invalidate", "user:11").Return(nil).Once()

	svc := newService(repo, c, n, a)
	assert.True(t, svc.RotateShortener(context.Background(), 11))
	c.AssertExpectations(t)
}
