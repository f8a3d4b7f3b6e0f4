// Package coins — handlers.go обрабатывает команды админ-консоли:
// /coins (начислить или списать), /reverse (отменить), /txs (история), /balance.
// Обработчики возвращают текст ответа, отправкой занимается бот.
package coins

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"lovespark.app/admin/internal/common"
)

// historySize — сколько последних транзакций показывает /txs.
const historySize = 10

// Handler обрабатывает команды леджера.
type Handler struct {
	service *Service
	loc     *time.Location // Зона для отображения дат
}

// NewHandler создаёт обработчик команд леджера.
func NewHandler(service *Service, loc *time.Location) *Handler {
	return &Handler{service: service, loc: loc}
}

// HandleAdjust обрабатывает /coins <userId> <±сумма> [описание].
// Положительная сумма — ADMIN_ADD, отрицательная — ADMIN_REMOVE.
//
// Ответ при успехе:
//
//	✅ +100 монет пользователю 42
//	Баланс: 150 монет (транзакция #17)
func (h *Handler) HandleAdjust(ctx context.Context, args []string) string {
	if len(args) < 2 {
		return "❌ Формат: /coins <userId> <±сумма> [описание]"
	}

	userID, err := parseID(args[0])
	if err != nil {
		return "❌ userId должен быть положительным числом"
	}
	amount, err := strconv.ParseInt(args[1], 10, 64)
	if err != nil || amount == 0 {
		return "❌ Сумма должна быть ненулевым целым числом"
	}

	typ := TxAdminAdd
	if amount < 0 {
		typ = TxAdminRemove
	}

	res, err := h.service.ApplyAdjustment(ctx, AdjustInput{
		UserID:      userID,
		Amount:      amount,
		Type:        typ,
		Description: strings.Join(args[2:], " "),
	})
	if err != nil {
		return common.ReplyText(err)
	}

	return fmt.Sprintf("✅ %s пользователю %d\nБаланс: %s (транзакция #%d)",
		common.FormatCoinsAmount(amount), userID,
		common.FormatBalance(res.NewBalance), res.Transaction.ID)
}

// HandleReverse обрабатывает /reverse <txId>.
func (h *Handler) HandleReverse(ctx context.Context, args []string) string {
	if len(args) != 1 {
		return "❌ Формат: /reverse <txId>"
	}
	id, err := parseID(args[0])
	if err != nil {
		return "❌ txId должен быть положительным числом"
	}

	if err := h.service.ReverseAdminTransaction(ctx, id); err != nil {
		return common.ReplyText(err)
	}
	return fmt.Sprintf("✅ Транзакция #%d отменена", id)
}

// HandleTransactions обрабатывает /txs <userId> — последние транзакции.
//
// Формат ответа:
//
//	📜 Транзакции пользователя 42 (всего 3):
//	#17 15.01.2024 12:00 ADMIN_ADD +100 монет → 150
func (h *Handler) HandleTransactions(ctx context.Context, args []string) string {
	if len(args) != 1 {
		return "❌ Формат: /txs <userId>"
	}
	userID, err := parseID(args[0])
	if err != nil {
		return "❌ userId должен быть положительным числом"
	}

	page, err := h.service.ListTransactions(ctx, ListFilter{UserID: &userID, Page: 1, Limit: historySize})
	if err != nil {
		return common.ReplyText(err)
	}
	if len(page.Transactions) == 0 {
		return fmt.Sprintf("📜 У пользователя %d нет транзакций", userID)
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "📜 Транзакции пользователя %d (всего %d):\n", userID, page.TotalCount)
	for _, t := range page.Transactions {
		fmt.Fprintf(&sb, "#%d %s %s %s → %s\n",
			t.ID, common.FormatDateTime(t.CreatedAt, h.loc), t.Type,
			common.FormatCoinsAmount(t.Amount), common.FormatNumber(t.BalanceAfter))
	}
	return strings.TrimRight(sb.String(), "\n")
}

// HandleBalance обрабатывает /balance <userId>.
func (h *Handler) HandleBalance(ctx context.Context, args []string) string {
	if len(args) != 1 {
		return "❌ Формат: /balance <userId>"
	}
	userID, err := parseID(args[0])
	if err != nil {
		return "❌ userId должен быть положительным числом"
	}

	sum, err := h.service.Summary(ctx, userID)
	if err != nil {
		return common.ReplyText(err)
	}
	return fmt.Sprintf("💰 Баланс пользователя %d: %s\nНачислено: %s, списано: %s, транзакций: %d",
		userID, common.FormatBalance(sum.Balance),
		common.FormatNumber(sum.TotalCredited), common.FormatNumber(sum.TotalDebited), sum.Count)
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
