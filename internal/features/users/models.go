// Package users — пользователи приложения знакомств, как их видит админка.
// models.go описывает пользователя и фильтр списка.
package users

import (
	"strconv"
	"time"
)

// User представляет пользователя в базе данных.
// Поле Coins меняется только через леджер монет,
// IsPremium — только через сервис подписок.
type User struct {
	ID          int64     `db:"id" json:"id"`
	Username    *string   `db:"username" json:"username,omitempty"`
	DisplayName string    `db:"display_name" json:"displayName"`
	Coins       int64     `db:"coins" json:"coins"`            // Всегда >= 0
	IsPremium   bool      `db:"is_premium" json:"isPremium"`   // Есть активная неистёкшая подписка
	IsFake      bool      `db:"is_fake" json:"isFake"`         // Помечен модератором как фейк
	CreatedAt   time.Time `db:"created_at" json:"createdAt"`
	UpdatedAt   time.Time `db:"updated_at" json:"updatedAt"`
}

// Label возвращает отображаемое имя: @username, иначе имя, иначе #id.
func (u *User) Label() string {
	if u.Username != nil && *u.Username != "" {
		return "@" + *u.Username
	}
	if u.DisplayName != "" {
		return u.DisplayName
	}
	return "#" + strconv.FormatInt(u.ID, 10)
}

// ListFilter — фильтр списка пользователей.
type ListFilter struct {
	IsPremium *bool
	IsFake    *bool
	Page      int
	Limit     int
}
