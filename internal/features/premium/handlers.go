// Package premium — handlers.go обрабатывает команды админ-консоли:
// /buy, /renew, /cancel, /subs, /packages.
package premium

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"lovespark.app/admin/internal/common"
)

// defaultPaymentMethod — способ оплаты, если админ его не указал.
const defaultPaymentMethod = "admin"

// Handler обрабатывает команды подписок.
type Handler struct {
	service *Service
	loc     *time.Location
}

// NewHandler создаёт обработчик команд подписок.
func NewHandler(service *Service, loc *time.Location) *Handler {
	return &Handler{service: service, loc: loc}
}

// HandlePurchase обрабатывает /buy <userId> <packageId> [способ оплаты].
func (h *Handler) HandlePurchase(ctx context.Context, args []string) string {
	if len(args) < 2 || len(args) > 3 {
		return "❌ Формат: /buy <userId> <packageId> [способ оплаты]"
	}
	userID, err := parseID(args[0])
	if err != nil {
		return "❌ userId должен быть положительным числом"
	}
	packageID, err := parseID(args[1])
	if err != nil {
		return "❌ packageId должен быть положительным числом"
	}

	sub, err := h.service.Purchase(ctx, PurchaseInput{
		UserID:        userID,
		PackageID:     packageID,
		PaymentMethod: paymentMethod(args, 2),
	})
	if err != nil {
		return common.ReplyText(err)
	}
	return fmt.Sprintf("✅ Подписка #%d оформлена пользователю %d до %s",
		sub.ID, userID, common.FormatDateTime(sub.ExpiresAt, h.loc))
}

// HandleRenew обрабатывает /renew <subId> [способ оплаты].
func (h *Handler) HandleRenew(ctx context.Context, args []string) string {
	if len(args) < 1 || len(args) > 2 {
		return "❌ Формат: /renew <subId> [способ оплаты]"
	}
	id, err := parseID(args[0])
	if err != nil {
		return "❌ subId должен быть положительным числом"
	}

	sub, err := h.service.Renew(ctx, RenewInput{SubscriptionID: id, PaymentMethod: paymentMethod(args, 1)})
	if err != nil {
		return common.ReplyText(err)
	}
	return fmt.Sprintf("✅ Подписка #%d продлена до %s (%s)",
		sub.ID, common.FormatDateTime(sub.ExpiresAt, h.loc), statusLabel(h.service.View(sub).Status))
}

// HandleCancel обрабатывает /cancel <subId>.
func (h *Handler) HandleCancel(ctx context.Context, args []string) string {
	if len(args) != 1 {
		return "❌ Формат: /cancel <subId>"
	}
	id, err := parseID(args[0])
	if err != nil {
		return "❌ subId должен быть положительным числом"
	}

	sub, err := h.service.Cancel(ctx, id)
	if err != nil {
		return common.ReplyText(err)
	}
	return fmt.Sprintf("✅ Подписка #%d пользователя %d отменена", sub.ID, sub.UserID)
}

// HandleList обрабатывает /subs <userId>.
//
// Формат ответа:
//
//	⭐ Подписки пользователя 42:
//	#3 пакет 1, 31.01.2024 12:00 – 29.02.2024 12:00, активна
func (h *Handler) HandleList(ctx context.Context, args []string) string {
	if len(args) != 1 {
		return "❌ Формат: /subs <userId>"
	}
	userID, err := parseID(args[0])
	if err != nil {
		return "❌ userId должен быть положительным числом"
	}

	page, err := h.service.ListSubscriptions(ctx, ListFilter{UserID: &userID, Page: 1, Limit: 10})
	if err != nil {
		return common.ReplyText(err)
	}
	if len(page.Subscriptions) == 0 {
		return fmt.Sprintf("⭐ У пользователя %d нет подписок", userID)
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "⭐ Подписки пользователя %d:\n", userID)
	for _, v := range page.Subscriptions {
		fmt.Fprintf(&sb, "#%d пакет %d, %s – %s, %s\n",
			v.ID, v.PackageID,
			common.FormatDateTime(v.StartsAt, h.loc), common.FormatDateTime(v.ExpiresAt, h.loc),
			statusLabel(v.Status))
	}
	return strings.TrimRight(sb.String(), "\n")
}

// HandlePackages обрабатывает /packages — активный каталог.
func (h *Handler) HandlePackages(ctx context.Context) string {
	packages, err := h.service.ListPackages(ctx, true)
	if err != nil {
		return common.ReplyText(err)
	}
	if len(packages) == 0 {
		return "📦 Каталог пуст"
	}

	var sb strings.Builder
	sb.WriteString("📦 Пакеты:\n")
	for _, p := range packages {
		fmt.Fprintf(&sb, "#%d %s: %d × %s, %s %s\n",
			p.ID, p.Name, p.DurationValue, p.DurationType, p.Price.StringFixed(2), p.Currency)
	}
	return strings.TrimRight(sb.String(), "\n")
}

func statusLabel(s Status) string {
	switch s {
	case StatusActive:
		return "активна"
	case StatusExpired:
		return "истекла"
	case StatusCancelled:
		return "отменена"
	}
	return string(s)
}

func paymentMethod(args []string, i int) string {
	if len(args) > i && args[i] != "" {
		return args[i]
	}
	return defaultPaymentMethod
}

func parseID(s string) (int64, error) {
	id, err := strconv.ParseInt(strings.TrimPrefix(s, "#"), 10, 64)
	if err != nil {
		return 0, err
	}
	if id <= 0 {
		return 0, fmt.Errorf("id должен быть положительным: %d", id)
	}
	return id, nil
}
