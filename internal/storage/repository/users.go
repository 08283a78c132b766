package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/wolfstream/account-store/internal/models"
)

const userColumns = `user_id, username, first_name, last_name, user_type,
		subscription_end, premium_source, joined_date, last_activity, is_banned,
		session_string, custom_thumbnail, ad_downloads, ad_downloads_reset_date,
		shortener_index`

func scanUser(row interface{ Scan(...any) error }) (*models.User, error) {
	u := &models.User{}
	var username, firstName, lastName, premiumSource, sessionString, thumbnail sql.NullString
	var subscriptionEnd, resetDate sql.NullTime
	if err := row.Scan(&u.UserID, &username, &firstName, &lastName, &u.UserType,
		&subscriptionEnd, &premiumSource, &u.JoinedDate, &u.LastActivity, &u.IsBanned,
		&sessionString, &thumbnail, &u.AdDownloads, &resetDate,
		&u.ShortenerIndex); err != nil {
		return nil, err
	}
	if username.Valid {
		u.Username = &username.String
	}
	if firstName.Valid {
		u.FirstName = &firstName.String
	}
	if lastName.Valid {
		u.LastName = &lastName.String
	}
	if premiumSource.Valid {
		u.PremiumSource = &premiumSource.String
	}
	if sessionString.Valid {
		u.SessionString = &sessionString.String
	}
	if thumbnail.Valid {
		u.CustomThumbnail = &thumbnail.String
	}
	if subscriptionEnd.Valid {
		u.SubscriptionEnd = &subscriptionEnd.Time
	}
	if resetDate.Valid {
		u.AdDownloadsResetDate = &resetDate.Time
	}
	return u, nil
}

// UpsertUser создаёт пользователя при первом контакте или обновляет
// поля профиля и отметку активности при повторном. Счетчики и тариф
// при повторном вызове не трогаются. Возвращает true, если запись
// была создана.
func (s *Storage) UpsertUser(ctx context.Context, userID int64, profile models.ProfileUpdate, now time.Time) (bool, error) {
	const op = "repository.UpsertUser"
	select {
	case <-ctx.Done():
		return false, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `INSERT INTO users (user_id, username, first_name, last_name,
			      joined_date, last_activity, ad_downloads_reset_date)
			  VALUES ($1, $2, $3, $4, $5, $5, $5::date)
			  ON CONFLICT (user_id) DO UPDATE SET
			      last_activity = EXCLUDED.last_activity,
			      username = COALESCE(EXCLUDED.username, users.username),
			      first_name = COALESCE(EXCLUDED.first_name, users.first_name),
			      last_name = COALESCE(EXCLUDED.last_name, users.last_name)
			  RETURNING (xmax = 0)`
	var created bool
	if err := s.DB.QueryRowContext(ctx, query, userID, profile.Username,
		profile.FirstName, profile.LastName, now).Scan(&created); err != nil {
		return false, fmt.Errorf("%s: %w", op, err)
	}
	return created, nil
}

// GetUser возвращает пользователя по ID либо nil, если записи нет.
func (s *Storage) GetUser(ctx context.Context, userID int64) (*models.User, error) {
	const op = "repository.GetUser"
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `SELECT ` + userColumns + ` FROM users WHERE user_id = $1`
	u, err := scanUser(s.DB.QueryRowContext(ctx, query, userID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return u, nil
}

// UpdateUserType выставляет тариф вместе с датой окончания подписки и
// источником премиума. Для free оба дополнительных поля очищаются.
func (s *Storage) UpdateUserType(ctx context.Context, userID int64, userType string, subscriptionEnd *time.Time, premiumSource *string) (bool, error) {
	const op = "repository.UpdateUserType"
	select {
	case <-ctx.Done():
		return false, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `UPDATE users
			  SET user_type = $2, subscription_end = $3, premium_source = $4
			  WHERE user_id = $1`
	res, err := s.DB.ExecContext(ctx, query, userID, userType, subscriptionEnd, premiumSource)
	if err != nil {
		return false, fmt.Errorf("%s: %w", op, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("%s: %w", op, err)
	}
	return n > 0, nil
}

// SetBanned выставляет флаг блокировки.
func (s *Storage) SetBanned(ctx context.Context, userID int64, banned bool) (bool, error) {
	const op = "repository.SetBanned"
	select {
	case <-ctx.Done():
		return false, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	res, err := s.DB.ExecContext(ctx,
		`UPDATE users SET is_banned = $2 WHERE user_id = $1`, userID, banned)
	if err != nil {
		return false, fmt.Errorf("%s: %w", op, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("%s: %w", op, err)
	}
	return n > 0, nil
}

// GetSessionString возвращает строку сессии пользователя (nil — не задана).
func (s *Storage) GetSessionString(ctx context.Context, userID int64) (*string, error) {
	const op = "repository.GetSessionString"
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	var session sql.NullString
	err := s.DB.QueryRowContext(ctx,
		`SELECT session_string FROM users WHERE user_id = $1`, userID).Scan(&session)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if !session.Valid {
		return nil, nil
	}
	return &session.String, nil
}

// SetSessionString записывает строку сессии; nil очищает её.
func (s *Storage) SetSessionString(ctx context.Context, userID int64, session *string) (bool, error) {
	const op = "repository.SetSessionString"
	select {
	case <-ctx.Done():
		return false, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	res, err := s.DB.ExecContext(ctx,
		`UPDATE users SET session_string = $2 WHERE user_id = $1`, userID, session)
	if err != nil {
		return false, fmt.Errorf("%s: %w", op, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("%s: %w", op, err)
	}
	return n > 0, nil
}

// SetCustomThumbnail записывает ссылку на пользовательскую миниатюру;
// nil удаляет её.
func (s *Storage) SetCustomThumbnail(ctx context.Context, userID int64, fileID *string) (bool, error) {
	const op = "repository.SetCustomThumbnail"
	select {
	case <-ctx.Done():
		return false, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	res, err := s.DB.ExecContext(ctx,
		`UPDATE users SET custom_thumbnail = $2 WHERE user_id = $1`, userID, fileID)
	if err != nil {
		return false, fmt.Errorf("%s: %w", op, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("%s: %w", op, err)
	}
	return n > 0, nil
}

// AddAdDownloads добавляет count рекламных загрузок без верхнего предела.
func (s *Storage) AddAdDownloads(ctx context.Context, userID int64, count int) (bool, error) {
	const op = "repository.AddAdDownloads"
	select {
	case <-ctx.Done():
		return false, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	res, err := s.DB.ExecContext(ctx,
		`UPDATE users SET ad_downloads = ad_downloads + $2 WHERE user_id = $1`,
		userID, count)
	if err != nil {
		return false, fmt.Errorf("%s: %w", op, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("%s: %w", op, err)
	}
	return n > 0, nil
}

// DeductAdDownloads списывает count рекламных загрузок одним условным
// UPDATE: запись меняется только если баланса хватает в момент записи.
// Возвращает false, если предусловие не выполнилось.
func (s *Storage) DeductAdDownloads(ctx context.Context, userID int64, count int) (bool, error) {
	const op = "repository.DeductAdDownloads"
	select {
	case <-ctx.Done():
		return false, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `UPDATE users
			  SET ad_downloads = ad_downloads - $2
			  WHERE user_id = $1 AND ad_downloads >= $2`
	res, err := s.DB.ExecContext(ctx, query, userID, count)
	if err != nil {
		return false, fmt.Errorf("%s: %w", op, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("%s: %w", op, err)
	}
	return n > 0, nil
}

// ResetAdDownloads обнуляет рекламный баланс и фиксирует дату сброса.
func (s *Storage) ResetAdDownloads(ctx context.Context, userID int64, day time.Time) error {
	const op = "repository.ResetAdDownloads"
	select {
	case <-ctx.Done():
		return fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	_, err := s.DB.ExecContext(ctx,
		`UPDATE users SET ad_downloads = 0, ad_downloads_reset_date = $2::date WHERE user_id = $1`,
		userID, day)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// AdvanceShortener сдвигает индекс ротации на steps по модулю 4.
func (s *Storage) AdvanceShortener(ctx context.Context, userID int64, steps int) (bool, error) {
	const op = "repository.AdvanceShortener"
	select {
	case <-ctx.Done():
		return false, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	res, err := s.DB.ExecContext(ctx,
		`UPDATE users SET shortener_index = MOD(shortener_index + $2, 4) WHERE user_id = $1`,
		userID, steps)
	if err != nil {
		return false, fmt.Errorf("%s: %w", op, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("%s: %w", op, err)
	}
	return n > 0, nil
}

// ListUserIDs возвращает идентификаторы всех незаблокированных пользователей.
func (s *Storage) ListUserIDs(ctx context.Context) ([]int64, error) {
	const op = "repository.ListUserIDs"
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	rows, err := s.DB.QueryContext(ctx,
		`SELECT user_id FROM users WHERE is_banned = FALSE`)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer func() {
		_ = rows.Close()
	}()

	var ids []int64
	for rows.Next() {
		var id int64
		if err = rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		ids = append(ids, id)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return ids, nil
}

// ListPremiumUsers возвращает пользователей с действующей премиум-подпиской,
// отсортированных по убыванию даты окончания.
func (s *Storage) ListPremiumUsers(ctx context.Context, now time.Time) ([]*models.PremiumUser, error) {
	const op = "repository.ListPremiumUsers"
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `SELECT user_id, username, subscription_end
			  FROM users
			  WHERE user_type = $1 AND subscription_end > $2
			  ORDER BY subscription_end DESC`
	rows, err := s.DB.QueryContext(ctx, query, models.UserTypePaid, now)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer func() {
		_ = rows.Close()
	}()

	var result []*models.PremiumUser
	for rows.Next() {
		var p models.PremiumUser
		var username sql.NullString
		if err = rows.Scan(&p.UserID, &username, &p.PremiumExpiry); err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		if username.Valid {
			p.Username = &username.String
		}
		result = append(result, &p)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return result, nil
}
