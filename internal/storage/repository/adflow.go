package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/wolfstream/account-store/internal/models"
)

// CreateAdSession сохраняет новую рекламную сессию.
func (s *Storage) CreateAdSession(ctx context.Context, sessionID string, userID int64, now time.Time) error {
	const op = "repository.CreateAdSession"
	select {
	case <-ctx.Done():
		return fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	_, err := s.DB.ExecContext(ctx,
		`INSERT INTO ad_sessions (session_id, user_id, created_at) VALUES ($1, $2, $3)`,
		sessionID, userID, now)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// GetAdSession возвращает рекламную сессию либо nil, если записи нет.
func (s *Storage) GetAdSession(ctx context.Context, sessionID string) (*models.AdSession, error) {
	const op = "repository.GetAdSession"
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	sess := &models.AdSession{}
	err := s.DB.QueryRowContext(ctx,
		`SELECT session_id, user_id, created_at, used FROM ad_sessions WHERE session_id = $1`,
		sessionID).Scan(&sess.SessionID, &sess.UserID, &sess.CreatedAt, &sess.Used)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return sess, nil
}

// MarkAdSessionUsed помечает сессию использованной. Условный UPDATE:
// срабатывает только если сессия еще не использована, что исключает
// двойное погашение при конкурентных попытках.
func (s *Storage) MarkAdSessionUsed(ctx context.Context, sessionID string) (bool, error) {
	const op = "repository.MarkAdSessionUsed"
	select {
	case <-ctx.Done():
		return false, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	res, err := s.DB.ExecContext(ctx,
		`UPDATE ad_sessions SET used = TRUE WHERE session_id = $1 AND used = FALSE`,
		sessionID)
	if err != nil {
		return false, fmt.Errorf("%s: %w", op, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("%s: %w", op, err)
	}
	return n > 0, nil
}

// DeleteAdSession удаляет рекламную сессию.
func (s *Storage) DeleteAdSession(ctx context.Context, sessionID string) error {
	const op = "repository.DeleteAdSession"
	select {
	case <-ctx.Done():
		return fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	if _, err := s.DB.ExecContext(ctx,
		`DELETE FROM ad_sessions WHERE session_id = $1`, sessionID); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// CountAdSessions возвращает число живых рекламных сессий.
func (s *Storage) CountAdSessions(ctx context.Context) (int, error) {
	const op = "repository.CountAdSessions"
	select {
	case <-ctx.Done():
		return 0, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	var count int
	if err := s.DB.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM ad_sessions`).Scan(&count); err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}
	return count, nil
}

// CreateVerificationCode сохраняет одноразовый код подтверждения.
func (s *Storage) CreateVerificationCode(ctx context.Context, code string, userID int64, now time.Time) error {
	const op = "repository.CreateVerificationCode"
	select {
	case <-ctx.Done():
		return fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	_, err := s.DB.ExecContext(ctx,
		`INSERT INTO ad_verifications (code, user_id, created_at) VALUES ($1, $2, $3)`,
		code, userID, now)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// GetVerificationCode возвращает код подтверждения либо nil, если записи нет.
func (s *Storage) GetVerificationCode(ctx context.Context, code string) (*models.VerificationCode, error) {
	const op = "repository.GetVerificationCode"
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	v := &models.VerificationCode{}
	err := s.DB.QueryRowContext(ctx,
		`SELECT code, user_id, created_at FROM ad_verifications WHERE code = $1`,
		code).Scan(&v.Code, &v.UserID, &v.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return v, nil
}

// DeleteVerificationCode удаляет код подтверждения.
func (s *Storage) DeleteVerificationCode(ctx context.Context, code string) error {
	const op = "repository.DeleteVerificationCode"
	select {
	case <-ctx.Done():
		return fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	if _, err := s.DB.ExecContext(ctx,
		`DELETE FROM ad_verifications WHERE code = $1`, code); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// DeleteExpiredAdFlow удаляет сессии и коды старше cutoff. Возвращает
// число удаленных сессий, число удаленных кодов и идентификаторы
// владельцев удаленных сессий для инвалидации кеша.
func (s *Storage) DeleteExpiredAdFlow(ctx context.Context, cutoff time.Time) (int, int, []int64, error) {
	const op = "repository.DeleteExpiredAdFlow"
	select {
	case <-ctx.Done():
		return 0, 0, nil, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	rows, err := s.DB.QueryContext(ctx,
		`DELETE FROM ad_sessions WHERE created_at < $1 RETURNING user_id`, cutoff)
	if err != nil {
		return 0, 0, nil, fmt.Errorf("%s: %w", op, err)
	}
	var userIDs []int64
	for rows.Next() {
		var id int64
		if err = rows.Scan(&id); err != nil {
			_ = rows.Close()
			return 0, 0, nil, fmt.Errorf("%s: %w", op, err)
		}
		userIDs = append(userIDs, id)
	}
	if err = rows.Err(); err != nil {
		_ = rows.Close()
		return 0, 0, nil, fmt.Errorf("%s: %w", op, err)
	}
	_ = rows.Close()

	res, err := s.DB.ExecContext(ctx,
		`DELETE FROM ad_verifications WHERE created_at < $1`, cutoff)
	if err != nil {
		return 0, 0, nil, fmt.Errorf("%s: %w", op, err)
	}
	codes, err := res.RowsAffected()
	if err != nil {
		return 0, 0, nil, fmt.Errorf("%s: %w", op, err)
	}

	return len(userIDs), int(codes), userIDs, nil
}
