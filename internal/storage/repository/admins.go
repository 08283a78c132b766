package repository

import (
	"context"
	"fmt"
	"time"
)

// IsAdmin сообщает, есть ли пользователь в таблице администраторов.
func (s *Storage) IsAdmin(ctx context.Context, userID int64) (bool, error) {
	const op = "repository.IsAdmin"
	select {
	case <-ctx.Done():
		return false, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	var exists bool
	err := s.DB.QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM admins WHERE user_id = $1)`, userID).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("%s: %w", op, err)
	}
	return exists, nil
}

// AddAdmin добавляет администратора. Повторное добавление перезаписывает
// грантора и дату.
func (s *Storage) AddAdmin(ctx context.Context, userID, addedBy int64, now time.Time) error {
	const op = "repository.AddAdmin"
	select {
	case <-ctx.Done():
		return fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `INSERT INTO admins (user_id, added_by, added_date)
			  VALUES ($1, $2, $3)
			  ON CONFLICT (user_id) DO UPDATE
			      SET added_by = EXCLUDED.added_by, added_date = EXCLUDED.added_date`
	if _, err := s.DB.ExecContext(ctx, query, userID, addedBy, now); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// RemoveAdmin удаляет администратора и сообщает, существовала ли запись.
func (s *Storage) RemoveAdmin(ctx context.Context, userID int64) (bool, error) {
	const op = "repository.RemoveAdmin"
	select {
	case <-ctx.Done():
		return false, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	res, err := s.DB.ExecContext(ctx, `DELETE FROM admins WHERE user_id = $1`, userID)
	if err != nil {
		return false, fmt.Errorf("%s: %w", op, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("%s: %w", op, err)
	}
	return n > 0, nil
}

// SaveBroadcast добавляет запись в журнал рассылок.
func (s *Storage) SaveBroadcast(ctx context.Context, message string, sentBy int64, totalUsers, successfulSends int, now time.Time) error {
	const op = "repository.SaveBroadcast"
	select {
	case <-ctx.Done():
		return fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `INSERT INTO broadcasts (message, sent_by, sent_date, total_users, successful_sends)
			  VALUES ($1, $2, $3, $4, $5)`
	if _, err := s.DB.ExecContext(ctx, query, message, sentBy, now, totalUsers, successfulSends); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}
