package models

import "time"

// AdSession описывает одну незавершённую попытку разблокировки через
// просмотр рекламы. Поле Used меняется только в одну сторону: false -> true.
type AdSession struct {
	SessionID string    `json:"session_id"`
	UserID    int64     `json:"user_id"`
	CreatedAt time.Time `json:"created_at"`
	Used      bool      `json:"used"`
}

// VerificationCode — одноразовый код, подтверждающий просмотр рекламы.
// Удаляется при погашении.
type VerificationCode struct {
	Code      string    `json:"code"`
	UserID    int64     `json:"user_id"`
	CreatedAt time.Time `json:"created_at"`
}
