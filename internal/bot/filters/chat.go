package filters

import (
	"github.com/mymmrac/telego"
	log "github.com/sirupsen/logrus"
)

// ChatFilter пропускает в консоль только личные сообщения администраторов.
type ChatFilter struct {
	isAdmin func(userID int64) bool
}

func NewChatFilter(isAdmin func(userID int64) bool) *ChatFilter {
	return &ChatFilter{isAdmin: isAdmin}
}

func (f *ChatFilter) CheckAccess(message *telego.Message) bool {
	if message == nil || message.From == nil {
		log.WithField("component", "ChatFilter").Warn("nil message/from")
		return false
	}

	// Группы и каналы игнорируем молча
	if message.Chat.Type != telego.ChatTypePrivate {
		return false
	}

	if !f.isAdmin(message.From.ID) {
		log.WithFields(log.Fields{
			"component": "ChatFilter",
			"user_id":   message.From.ID,
			"username":  message.From.Username,
		}).Warn("Доступ к консоли запрещён: не администратор")
		return false
	}
	return true
}
