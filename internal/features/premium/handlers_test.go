package premium

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestHandler_Lifecycle(t *testing.T) {
	svc, store, _ := newTestService(t, time.Date(2024, 1, 31, 12, 0, 0, 0, time.UTC))
	h := NewHandler(svc, time.UTC)
	ctx := context.Background()

	assert.Equal(t, "✅ Подписка #1 оформлена пользователю 7 до 29.02.2024 12:00",
		h.HandlePurchase(ctx, []string{"7", "1", "card"}))
	assert.True(t, store.isPremium(testUser))

	assert.Equal(t, "✅ Подписка #1 продлена до 29.03.2024 12:00 (активна)",
		h.HandleRenew(ctx, []string{"#1"}))

	assert.Equal(t, "✅ Подписка #1 пользователя 7 отменена", h.HandleCancel(ctx, []string{"1"}))
	assert.False(t, store.isPremium(testUser))

	assert.Equal(t, "⭐ Подписки пользователя 7:\n#1 пакет 1, 31.01.2024 12:00 – 29.03.2024 12:00, отменена",
		h.HandleList(ctx, []string{"7"}))
}

func TestHandler_Errors(t *testing.T) {
	svc, _, _ := newTestService(t, time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC))
	h := NewHandler(svc, time.UTC)
	ctx := context.Background()

	assert.Contains(t, h.HandlePurchase(ctx, []string{"7"}), "Формат")
	assert.Contains(t, h.HandlePurchase(ctx, []string{"x", "1"}), "userId")
	assert.Equal(t, "❌ премиум-пакет не найден", h.HandlePurchase(ctx, []string{"7", "99"}))
	assert.Equal(t, "❌ подписка не найдена", h.HandleCancel(ctx, []string{"5"}))
	assert.Equal(t, "❌ подписка не найдена", h.HandleRenew(ctx, []string{"5", "card"}))
	assert.Equal(t, "⭐ У пользователя 7 нет подписок", h.HandleList(ctx, []string{"7"}))
}

func TestHandler_Packages(t *testing.T) {
	svc, _, _ := newTestService(t, time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC))
	h := NewHandler(svc, time.UTC)

	assert.Equal(t, "📦 Пакеты:\n#1 Месяц: 1 × MONTHLY, 29.99 TRY\n#2 Неделя: 1 × WEEKLY, 9.99 TRY",
		h.HandlePackages(context.Background()))
}
