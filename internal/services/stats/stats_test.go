package services

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"github.com/wolfstream/account-store/internal/models"
)

type StatsRepoMock struct{ mock.Mock }

func (m *StatsRepoMock) GetStats(ctx context.Context, now time.Time) (*models.Stats, error) {
	args := m.Called(ctx, now)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Stats), args.Error(1)
}
func (m *StatsRepoMock) CountAdSessions(ctx context.Context) (int, error) {
	args := m.Called(ctx)
	return args.Int(0), args.Error(1)
}

func newNoopLogger() *slog.Logger {
	h := slog.NewTextHandler(io.Discard, &slog.HandlerOptions{})
	return slog.New(h)
}

func TestSnapshot(t *testing.T) {
	repo := &StatsRepoMock{}

	stored := &models.Stats{TotalUsers: 10, ActiveUsers: 4, PaidUsers: 2, AdminCount: 1, TodayDownloads: 7, TodayNewUsers: 3}
	repo.On("GetStats", mock.Anything, mock.Anything).Return(stored, nil).Once()

	svc := NewStatsService(repo, newNoopLogger())
	assert.Equal(t, stored, svc.Snapshot(context.Background()))
}

func TestSnapshot_StorageErrorYieldsEmptyStats(t *testing.T) {
	repo := &StatsRepoMock{}

	repo.On("GetStats", mock.Anything, mock.Anything).Return(nil, errors.New("db error")).Once()

	svc := NewStatsService(repo, newNoopLogger())
	stats := svc.Snapshot(context.Background())

	assert.NotNil(t, stats)
	assert.Zero(t, stats.TotalUsers)
}

func TestAdSessionCount(t *testing.T) {
	repo := &StatsRepoMock{}

	repo.On("CountAdSessions", mock.Anything).Return(5, nil).Once()

	svc := NewStatsService(repo, newNoopLogger())
	assert.Equal(t, 5, svc.AdSessionCount(context.Background()))
}
