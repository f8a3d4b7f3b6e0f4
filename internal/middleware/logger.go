package middleware

import (
	"github.com/mymmrac/telego"
	log "github.com/sirupsen/logrus"
)

// LogMessage логирует входящее сообщение консоли.
// Записывает: user_id, chat_id, username, текст (первые 50 символов).
// Пароль после /login не логируется.
func LogMessage(message *telego.Message, hideText bool) {
	if message == nil || message.From == nil {
		return
	}

	text := []rune(message.Text)
	if len(text) > 50 {
		text = append(text[:50], []rune("...")...)
	}
	if hideText {
		text = []rune("***")
	}

	log.WithFields(log.Fields{
		"user_id":  message.From.ID,
		"chat_id":  message.Chat.ID,
		"username": message.From.Username,
		"text":     string(text),
	}).Debug("Входящее сообщение")
}
