package models

import "time"

// Stats — точечный срез агрегатов по базе.
type Stats struct {
	TotalUsers     int `json:"total_users"`
	ActiveUsers    int `json:"active_users"`
	PaidUsers      int `json:"paid_users"`
	AdminCount     int `json:"admin_count"`
	TodayDownloads int `json:"today_downloads"`
	TodayNewUsers  int `json:"today_new_users"`
}

// События критических изменений, известные воркеру резервного копирования.
const (
	BackupEventAddUser        = "add_user"
	BackupEventSetPremium     = "set_premium"
	BackupEventSetSession     = "set_session"
	BackupEventAddAdDownloads = "add_ad_downloads"
)

// BackupEvent — событие критического изменения, публикуемое
// для внешнего воркера резервного копирования.
type BackupEvent struct {
	Event      string    `json:"event"`
	UserID     int64     `json:"user_id"`
	OccurredAt time.Time `json:"occurred_at"`
}
