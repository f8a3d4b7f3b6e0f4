// Package admin реализует вход администратора по общему паролю (Argon2id)
// и сессии для HTTP API и Telegram-консоли.
// models.go описывает структуры сессий и попыток входа.
package admin

import (
	"strconv"
	"time"
)

// Session — активная сессия администратора.
// Subject — кто вошёл: "tg:<telegram id>" или "web:<ip>".
type Session struct {
	ID              int64     `db:"id" json:"-"`
	Subject         string    `db:"subject" json:"subject"`
	SessionToken    string    `db:"session_token" json:"token"`
	AuthenticatedAt time.Time `db:"authenticated_at" json:"authenticatedAt"`
	ExpiresAt       time.Time `db:"expires_at" json:"expiresAt"`
	LastActivity    time.Time `db:"last_activity" json:"-"`
	IsActive        bool      `db:"is_active" json:"-"`
}

// LoginAttempt — попытка входа (для защиты от brute-force).
type LoginAttempt struct {
	ID          int64     `db:"id"`
	Subject     string    `db:"subject"`
	AttemptTime time.Time `db:"attempt_time"`
	Success     bool      `db:"success"`
}

// AdminState — состояние диалога с админом в Telegram.
type AdminState struct {
	State     string    // "" или StateAwaitingPassword
	ExpiresAt time.Time // Когда состояние истекает (5 минут)
}

const (
	StateNone             = ""                  // Нет активного состояния
	StateAwaitingPassword = "awaiting_password" // Ждём пароль следующим сообщением
)

// TelegramSubject — субъект сессии для Telegram-пользователя.
func TelegramSubject(userID int64) string {
	return "tg:" + strconv.FormatInt(userID, 10)
}

// WebSubject — субъект сессии для HTTP-клиента.
func WebSubject(ip string) string {
	return "web:" + ip
}
