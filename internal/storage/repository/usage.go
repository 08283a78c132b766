package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// GetDailyUsage возвращает число файлов, скачанных пользователем за день.
func (s *Storage) GetDailyUsage(ctx context.Context, userID int64, day time.Time) (int, error) {
	const op = "repository.GetDailyUsage"
	select {
	case <-ctx.Done():
		return 0, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	var files int
	err := s.DB.QueryRowContext(ctx,
		`SELECT files_downloaded FROM daily_usage WHERE user_id = $1 AND date = $2::date`,
		userID, day).Scan(&files)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}
	return files, nil
}

// AddDailyUsage прибавляет count к дневному счетчику, создавая строку дня
// при первом использовании. Один атомарный upsert, счетчик не убывает.
func (s *Storage) AddDailyUsage(ctx context.Context, userID int64, day time.Time, count int) error {
	const op = "repository.AddDailyUsage"
	select {
	case <-ctx.Done():
		return fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `INSERT INTO daily_usage (user_id, date, files_downloaded)
			  VALUES ($1, $2::date, $3)
			  ON CONFLICT (user_id, date) DO UPDATE
			      SET files_downloaded = daily_usage.files_downloaded + EXCLUDED.files_downloaded`
	if _, err := s.DB.ExecContext(ctx, query, userID, day, count); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}
