package cache

import (
	"fmt"
	"time"
)

// Время жизни закешированных проекций.
const (
	UserTTL   = 180 * time.Second
	AdminTTL  = 300 * time.Second
	BannedTTL = 300 * time.Second
)

// UserKey — ключ записи пользователя.
func UserKey(userID int64) string { return fmt.Sprintf("user:%d", userID) }

// AdminKey — ключ флага администратора.
func AdminKey(userID int64) string { return fmt.Sprintf("admin:%d", userID) }

// BannedKey — ключ флага блокировки.
func BannedKey(userID int64) string { return fmt.Sprintf("banned:%d", userID) }

// Наборы инвалидации: каждая мутация объявляет, какие ключи она
// сбрасывает. Тип учетной записи читается и через запись пользователя,
// и через флаг администратора, поэтому смена членства в admins
// сбрасывает оба ключа; то же касается флага блокировки.

// UserMutationKeys — мутации полей записи пользователя (тариф, премиум,
// сессия, миниатюра, рекламный баланс, индекс ротации).
func UserMutationKeys(userID int64) []string {
	return []string{UserKey(userID)}
}

// AdminMutationKeys — добавление и удаление администратора.
func AdminMutationKeys(userID int64) []string {
	return []string{AdminKey(userID), UserKey(userID)}
}

// BanMutationKeys — блокировка и разблокировка.
func BanMutationKeys(userID int64) []string {
	return []string{BannedKey(userID), UserKey(userID)}
}
