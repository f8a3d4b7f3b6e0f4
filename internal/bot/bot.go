// Package bot — Telegram-консоль администратора.
// bot.go принимает апдейты long polling'ом, фильтрует их и маршрутизирует
// команды к обработчикам фич; ответы уходят обычным сообщением в тот же чат.
package bot

import (
	"context"
	"fmt"
	"strings"

	"github.com/mymmrac/telego"
	tu "github.com/mymmrac/telego/telegoutil"
	log "github.com/sirupsen/logrus"

	"lovespark.app/admin/internal/bot/filters"
	"lovespark.app/admin/internal/config"
	"lovespark.app/admin/internal/features/admin"
	"lovespark.app/admin/internal/features/coins"
	"lovespark.app/admin/internal/features/premium"
	"lovespark.app/admin/internal/middleware"
)

const helpText = `🛠 Админ-консоль LoveSpark

/login [пароль] — вход
/logout — выход

💰 Монеты
/coins <userId> <±сумма> [описание] — начислить или списать
/reverse <txId> — отменить админскую транзакцию
/txs <userId> — последние транзакции
/balance <userId> — баланс и итоги

⭐ Премиум
/packages — пакеты
/buy <userId> <packageId> [способ оплаты] — оформить подписку
/renew <subId> [способ оплаты] — продлить
/cancel <subId> — отменить
/subs <userId> — подписки пользователя`

// Sender отправляет сообщения. Реализуется *telego.Bot.
type Sender interface {
	SendMessage(ctx context.Context, params *telego.SendMessageParams) (*telego.Message, error)
}

// Bot — главная структура консоли, объединяющая все компоненты.
type Bot struct {
	api    *telego.Bot
	sender Sender
	cfg    *config.Config

	chatFilter  *filters.ChatFilter
	rateLimiter *middleware.RateLimiter

	adminHandler   *admin.Handler
	coinsHandler   *coins.Handler
	premiumHandler *premium.Handler

	parser *CommandParser

	// ограничитель параллелизма обработки апдейтов
	inflight chan struct{}
}

// New создаёт консоль со всеми зависимостями.
func New(
	api *telego.Bot,
	cfg *config.Config,
	adminHandler *admin.Handler,
	coinsHandler *coins.Handler,
	premiumHandler *premium.Handler,
) *Bot {
	b := newBot(api, cfg, adminHandler, coinsHandler, premiumHandler)
	b.api = api
	return b
}

func newBot(
	sender Sender,
	cfg *config.Config,
	adminHandler *admin.Handler,
	coinsHandler *coins.Handler,
	premiumHandler *premium.Handler,
) *Bot {
	maxInFlight := cfg.BotMaxInflight
	if maxInFlight <= 0 {
		maxInFlight = 16
	}

	return &Bot{
		sender:         sender,
		cfg:            cfg,
		chatFilter:     filters.NewChatFilter(cfg.IsAdminID),
		rateLimiter:    middleware.NewRateLimiter(cfg.RateLimitRequests, cfg.RateLimitWindow),
		adminHandler:   adminHandler,
		coinsHandler:   coinsHandler,
		premiumHandler: premiumHandler,
		parser:         NewCommandParser(),
		inflight:       make(chan struct{}, maxInFlight),
	}
}

// Start запускает long polling и блокируется до отмены ctx.
func (b *Bot) Start(ctx context.Context) error {
	defer b.rateLimiter.Close()

	updates, err := b.api.UpdatesViaLongPolling(ctx, &telego.GetUpdatesParams{
		Timeout: b.cfg.BotUpdateTimeoutSeconds,
	})
	if err != nil {
		return fmt.Errorf("не удалось запустить long polling: %w", err)
	}

	log.WithFields(log.Fields{
		"max_inflight": cap(b.inflight),
		"timeout_sec":  b.cfg.BotUpdateTimeoutSeconds,
	}).Info("Консоль запущена и ожидает сообщения...")

	for {
		select {
		case <-ctx.Done():
			log.Info("Консоль останавливается (ctx done)...")
			return nil

		case update, ok := <-updates:
			if !ok {
				log.Info("Канал updates закрыт, консоль остановлена")
				return nil
			}

			// лимит параллелизма
			select {
			case b.inflight <- struct{}{}:
			case <-ctx.Done():
				return nil
			}
			go func(upd telego.Update) {
				defer func() { <-b.inflight }()
				b.handleUpdate(ctx, upd)
			}(update)
		}
	}
}

// handleUpdate обрабатывает одно обновление от Telegram.
func (b *Bot) handleUpdate(ctx context.Context, update telego.Update) {
	defer middleware.RecoverFromPanic("bot")

	message := update.Message
	if message == nil || message.Text == "" {
		return
	}

	if !b.chatFilter.CheckAccess(message) {
		return
	}

	userID := message.From.ID
	if !b.rateLimiter.Allow(admin.TelegramSubject(userID)) {
		log.WithField("user_id", userID).Debug("rate limited")
		return
	}

	reply := b.dispatch(ctx, message)
	if reply != "" {
		b.sendMessage(ctx, message.Chat.ID, reply)
	}
}

// dispatch возвращает ответ на сообщение администратора (пустой — не отвечать).
func (b *Bot) dispatch(ctx context.Context, message *telego.Message) string {
	userID := message.From.ID

	// Ожидаемый пароль после /login перехватывается до разбора команд
	pending := b.adminHandler.AwaitingPassword(userID)
	cmd, args, isCommand := b.parser.ParseCommand(message.Text)
	middleware.LogMessage(message, pending || cmd == "login")

	if pending && !isCommand {
		reply, _ := b.adminHandler.HandlePendingPassword(ctx, userID, message.Text)
		return reply
	}
	if !isCommand {
		return ""
	}

	log.WithFields(log.Fields{
		"cmd":     cmd,
		"args_n":  len(args),
		"user_id": userID,
	}).Debug("routing command")

	return b.routeCommand(ctx, userID, cmd, args)
}

// routeCommand маршрутизирует команду к нужному обработчику.
func (b *Bot) routeCommand(ctx context.Context, userID int64, cmd string, args []string) string {
	switch cmd {
	case "start", "help":
		return helpText
	case "login":
		return b.adminHandler.HandleLogin(ctx, userID, args)
	}

	if !b.adminHandler.IsAuthorized(ctx, userID) {
		return "🔒 Сначала войдите: /login"
	}

	switch cmd {
	case "logout":
		return b.adminHandler.HandleLogout(ctx, userID)

	case "coins":
		return b.coinsHandler.HandleAdjust(ctx, args)
	case "reverse":
		return b.coinsHandler.HandleReverse(ctx, args)
	case "txs":
		return b.coinsHandler.HandleTransactions(ctx, args)
	case "balance":
		return b.coinsHandler.HandleBalance(ctx, args)

	case "packages":
		return b.premiumHandler.HandlePackages(ctx)
	case "buy":
		return b.premiumHandler.HandlePurchase(ctx, args)
	case "renew":
		return b.premiumHandler.HandleRenew(ctx, args)
	case "cancel":
		return b.premiumHandler.HandleCancel(ctx, args)
	case "subs":
		return b.premiumHandler.HandleList(ctx, args)
	}

	return "🤷 Неизвестная команда. /help"
}

// sendMessage — утилита для отправки сообщений.
func (b *Bot) sendMessage(ctx context.Context, chatID int64, text string) {
	if _, err := b.sender.SendMessage(ctx, tu.Message(tu.ID(chatID), text)); err != nil {
		log.WithError(err).WithField("chat_id", chatID).Error("Ошибка отправки сообщения")
	}
}

// CommandParser парсит команды с префиксами /, ! и .
type CommandParser struct {
	validPrefixes []string
}

// NewCommandParser создаёт парсер команд.
func NewCommandParser() *CommandParser {
	return &CommandParser{
		validPrefixes: []string{"/", "!", "."},
	}
}

// ParseCommand разбирает текст на команду и аргументы.
// Суффикс @botname у команды отбрасывается.
func (p *CommandParser) ParseCommand(text string) (string, []string, bool) {
	text = strings.TrimSpace(text)

	hasPrefix := false
	for _, prefix := range p.validPrefixes {
		if strings.HasPrefix(text, prefix) {
			text = strings.TrimPrefix(text, prefix)
			hasPrefix = true
			break
		}
	}

	if !hasPrefix {
		return "", nil, false
	}

	parts := strings.Fields(text)
	if len(parts) == 0 {
		return "", nil, false
	}

	command, _, _ := strings.Cut(strings.ToLower(parts[0]), "@")
	var args []string
	if len(parts) > 1 {
		args = parts[1:]
	}

	return command, args, true
}
