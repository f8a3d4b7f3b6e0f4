// Package admin — handlers.go обрабатывает вход в Telegram-консоль.
// Поток: /login → пароль (в той же команде или следующим сообщением) → сессия.
package admin

import (
	"context"
	"strings"

	"lovespark.app/admin/internal/common"
)

// Handler обрабатывает вход и выход администратора в Telegram.
type Handler struct {
	service *Service
}

// NewHandler создаёт обработчик входа.
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

// HandlePendingPassword перехватывает сообщение, если от пользователя
// ждём пароль. Возвращает ответ и признак, что сообщение обработано.
func (h *Handler) HandlePendingPassword(ctx context.Context, userID int64, text string) (string, bool) {
	if !h.AwaitingPassword(userID) {
		return "", false
	}
	h.service.ClearState(userID)
	return h.login(ctx, userID, strings.TrimSpace(text)), true
}

// AwaitingPassword — следующее сообщение пользователя будет паролем.
func (h *Handler) AwaitingPassword(userID int64) bool {
	state := h.service.GetState(userID)
	return state != nil && state.State == StateAwaitingPassword
}

// HandleLogin обрабатывает /login [пароль].
func (h *Handler) HandleLogin(ctx context.Context, userID int64, args []string) string {
	if len(args) == 0 {
		h.service.SetState(userID, StateAwaitingPassword)
		return "🔐 Введите пароль для доступа к админ-консоли:"
	}
	return h.login(ctx, userID, strings.Join(args, " "))
}

// HandleLogout обрабатывает /logout.
func (h *Handler) HandleLogout(ctx context.Context, userID int64) string {
	if err := h.service.Logout(ctx, TelegramSubject(userID)); err != nil {
		return common.ReplyText(err)
	}
	return "👋 Сессия завершена"
}

// IsAuthorized — есть ли у пользователя действующая сессия.
func (h *Handler) IsAuthorized(ctx context.Context, userID int64) bool {
	return h.service.HasActiveSession(ctx, TelegramSubject(userID))
}

func (h *Handler) login(ctx context.Context, userID int64, password string) string {
	if _, err := h.service.Login(ctx, TelegramSubject(userID), password); err != nil {
		return common.ReplyText(err)
	}
	return "✅ Аутентификация успешна! Команды: /help"
}
