package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/wolfstream/account-store/internal/models"
)

// GetStats собирает точечный срез агрегатов: всего пользователей,
// активных за 7 дней, с действующим платным тарифом, администраторов,
// загрузок за сегодня и новых пользователей за сегодня.
func (s *Storage) GetStats(ctx context.Context, now time.Time) (*models.Stats, error) {
	const op = "repository.GetStats"
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	stats := &models.Stats{}

	if err := s.DB.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM users`).Scan(&stats.TotalUsers); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	weekAgo := now.AddDate(0, 0, -7)
	if err := s.DB.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM users WHERE last_activity > $1`, weekAgo).Scan(&stats.ActiveUsers); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	if err := s.DB.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM users WHERE user_type = $1 AND subscription_end > $2`,
		models.UserTypePaid, now).Scan(&stats.PaidUsers); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	if err := s.DB.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM admins`).Scan(&stats.AdminCount); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	var downloads sql.NullInt64
	if err := s.DB.QueryRowContext(ctx,
		`SELECT SUM(files_downloaded) FROM daily_usage WHERE date = $1::date`,
		now).Scan(&downloads); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if downloads.Valid {
		stats.TodayDownloads = int(downloads.Int64)
	}

	todayStart := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	if err := s.DB.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM users WHERE joined_date >= $1`, todayStart).Scan(&stats.TodayNewUsers); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return stats, nil
}
