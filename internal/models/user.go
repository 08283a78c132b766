// Package models содержит структуры данных, общие для хранилища,
// сервисов и HTTP-обработчиков.
package models

import "time"

// Типы учетной записи. Тип admin не хранится в таблице users,
// он вычисляется по членству в таблице admins.
const (
	UserTypeFree  = "free"
	UserTypePaid  = "paid"
	UserTypeAdmin = "admin"
)

// PremiumSourceAds — источник премиума, выданного за просмотр рекламы.
// Такой премиум не должен перетирать активный премиум из другого источника.
const PremiumSourceAds = "ads"

// User представляет учетную запись пользователя.
type User struct {
	UserID               int64      `json:"user_id"`
	Username             *string    `json:"username,omitempty"`
	FirstName            *string    `json:"first_name,omitempty"`
	LastName             *string    `json:"last_name,omitempty"`
	UserType             string     `json:"user_type"`
	SubscriptionEnd      *time.Time `json:"subscription_end,omitempty"`
	PremiumSource        *string    `json:"premium_source,omitempty"`
	JoinedDate           time.Time  `json:"joined_date"`
	LastActivity         time.Time  `json:"last_activity"`
	IsBanned             bool       `json:"is_banned"`
	SessionString        *string    `json:"session_string,omitempty"`
	CustomThumbnail      *string    `json:"custom_thumbnail,omitempty"`
	AdDownloads          int        `json:"ad_downloads"`
	AdDownloadsResetDate *time.Time `json:"ad_downloads_reset_date,omitempty"`
	ShortenerIndex       int        `json:"shortener_index"`
}

// HasActivePremium сообщает, действует ли платная подписка на момент now.
func (u *User) HasActivePremium(now time.Time) bool {
	return u.UserType == UserTypePaid && u.SubscriptionEnd != nil && u.SubscriptionEnd.After(now)
}

// PremiumUser описывает пользователя с активной премиум-подпиской.
type PremiumUser struct {
	UserID        int64     `json:"user_id"`
	Username      *string   `json:"username,omitempty"`
	PremiumExpiry time.Time `json:"premium_expiry"`
}

// ProfileUpdate содержит необязательные поля профиля, обновляемые при
// каждом контакте пользователя. Нулевой указатель означает "оставить
// прежнее значение".
type ProfileUpdate struct {
	Username  *string
	FirstName *string
	LastName  *string
}
