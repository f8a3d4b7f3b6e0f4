package premium

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"lovespark.app/admin/internal/common"
	"lovespark.app/admin/internal/config"
)

const (
	testUser    int64 = 7
	monthlyPkg  int64 = 1
	weeklyPkg   int64 = 2
	disabledPkg int64 = 3
)

// testClock — часы, которые тест двигает вручную.
type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = t
}

func newTestService(t *testing.T, start time.Time) (*Service, *memStore, *testClock) {
	t.Helper()
	clock := &testClock{now: start}
	store := newMemStore(clock.Now, testUser)
	store.addPackage(&Package{ID: monthlyPkg, Name: "Месяц", DurationType: DurationMonthly, DurationValue: 1,
		Price: decimal.RequireFromString("29.99"), Currency: "TRY", IsActive: true})
	store.addPackage(&Package{ID: weeklyPkg, Name: "Неделя", DurationType: DurationWeekly, DurationValue: 1,
		Price: decimal.RequireFromString("9.99"), Currency: "TRY", IsActive: true})
	store.addPackage(&Package{ID: disabledPkg, Name: "Год (архив)", DurationType: DurationYearly, DurationValue: 1,
		Price: decimal.RequireFromString("199.00"), Currency: "TRY", IsActive: false})

	cfg := &config.Config{LedgerMaxRetries: 3, PaginationDefaultLimit: 20, PaginationMaxLimit: 100}
	return NewService(store, clock.Now, cfg), store, clock
}

func buy(t *testing.T, svc *Service, pkg int64) *Subscription {
	t.Helper()
	sub, err := svc.Purchase(context.Background(), PurchaseInput{UserID: testUser, PackageID: pkg, PaymentMethod: "card"})
	require.NoError(t, err)
	return sub
}

func TestPurchase_MonthlyOnJan31(t *testing.T) {
	start := time.Date(2024, 1, 31, 12, 0, 0, 0, time.UTC)
	svc, store, _ := newTestService(t, start)

	sub := buy(t, svc, monthlyPkg)
	assert.Equal(t, time.Date(2024, 2, 29, 12, 0, 0, 0, time.UTC), sub.ExpiresAt)
	assert.Equal(t, start, sub.StartsAt)
	assert.True(t, sub.IsActive)
	assert.True(t, sub.AmountPaid.Equal(decimal.RequireFromString("29.99")))
	assert.Equal(t, "TRY", sub.Currency)
	assert.True(t, store.isPremium(testUser))
}

func TestPurchase_MonthlyOnJan31NonLeap(t *testing.T) {
	svc, _, _ := newTestService(t, time.Date(2023, 1, 31, 12, 0, 0, 0, time.UTC))

	sub := buy(t, svc, monthlyPkg)
	assert.Equal(t, time.Date(2023, 2, 28, 12, 0, 0, 0, time.UTC), sub.ExpiresAt)
}

func TestPurchase_ReplacesActiveSubscription(t *testing.T) {
	svc, store, clock := newTestService(t, time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC))

	first := buy(t, svc, monthlyPkg)
	clock.Set(time.Date(2024, 3, 10, 0, 0, 0, 0, time.UTC))
	second := buy(t, svc, weeklyPkg)

	old, err := store.Get(context.Background(), first.ID)
	require.NoError(t, err)
	assert.False(t, old.IsActive)
	assert.True(t, second.IsActive)
	assert.Equal(t, 1, store.activeCount(testUser))
	assert.True(t, store.isPremium(testUser))
}

func TestPurchase_AmountAndTransaction(t *testing.T) {
	svc, _, _ := newTestService(t, time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC))
	paid := decimal.RequireFromString("15.00")
	txID := "pay-123"

	sub, err := svc.Purchase(context.Background(), PurchaseInput{
		UserID: testUser, PackageID: monthlyPkg, PaymentMethod: "promo",
		TransactionID: &txID, AmountPaid: &paid, IsAutoRenewable: true,
	})
	require.NoError(t, err)
	assert.True(t, sub.AmountPaid.Equal(paid))
	assert.Equal(t, &txID, sub.TransactionID)
	assert.True(t, sub.IsAutoRenewable)
}

func TestPurchase_Rejections(t *testing.T) {
	svc, store, _ := newTestService(t, time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC))
	ctx := context.Background()

	_, err := svc.Purchase(ctx, PurchaseInput{UserID: testUser, PackageID: 99, PaymentMethod: "card"})
	assert.ErrorIs(t, err, common.ErrPackageNotFound)

	_, err = svc.Purchase(ctx, PurchaseInput{UserID: testUser, PackageID: disabledPkg, PaymentMethod: "card"})
	assert.ErrorIs(t, err, common.ErrPackageNotFound)

	_, err = svc.Purchase(ctx, PurchaseInput{UserID: 1000, PackageID: monthlyPkg, PaymentMethod: "card"})
	assert.ErrorIs(t, err, common.ErrUserNotFound)

	_, err = svc.Purchase(ctx, PurchaseInput{UserID: testUser, PackageID: monthlyPkg})
	assert.ErrorIs(t, err, common.ErrInvalidInput)

	negative := decimal.RequireFromString("-1")
	_, err = svc.Purchase(ctx, PurchaseInput{UserID: testUser, PackageID: monthlyPkg, PaymentMethod: "card", AmountPaid: &negative})
	assert.ErrorIs(t, err, common.ErrInvalidAmount)

	assert.False(t, store.isPremium(testUser))
	assert.Equal(t, 0, store.activeCount(testUser))
}

func TestPurchase_ConcurrentKeepsOneActive(t *testing.T) {
	svc, store, _ := newTestService(t, time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC))

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			pkg := monthlyPkg
			if i%2 == 0 {
				pkg = weeklyPkg
			}
			_, err := svc.Purchase(context.Background(), PurchaseInput{UserID: testUser, PackageID: pkg, PaymentMethod: "card"})
			assert.NoError(t, err)
		}(i)
	}
	wg.Wait()

	assert.Equal(t, 1, store.activeCount(testUser))
	assert.True(t, store.isPremium(testUser))
}

func TestRenew_ExtendsFromExpiry(t *testing.T) {
	svc, store, clock := newTestService(t, time.Date(2024, 1, 31, 9, 0, 0, 0, time.UTC))

	sub := buy(t, svc, monthlyPkg)
	require.Equal(t, time.Date(2024, 2, 29, 9, 0, 0, 0, time.UTC), sub.ExpiresAt)

	// Раннее продление: 10 февраля, остаток срока не теряется
	clock.Set(time.Date(2024, 2, 10, 0, 0, 0, 0, time.UTC))
	txID := "renew-1"
	renewed, err := svc.Renew(context.Background(), RenewInput{SubscriptionID: sub.ID, PaymentMethod: "card", TransactionID: &txID})
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, 3, 29, 9, 0, 0, 0, time.UTC), renewed.ExpiresAt)
	assert.True(t, renewed.IsActive)
	assert.Equal(t, &txID, renewed.TransactionID)
	assert.True(t, store.isPremium(testUser))
}

func TestRenew_ReactivatesCancelled(t *testing.T) {
	svc, store, _ := newTestService(t, time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC))

	sub := buy(t, svc, weeklyPkg)
	_, err := svc.Cancel(context.Background(), sub.ID)
	require.NoError(t, err)
	require.False(t, store.isPremium(testUser))

	renewed, err := svc.Renew(context.Background(), RenewInput{SubscriptionID: sub.ID, PaymentMethod: "card"})
	require.NoError(t, err)
	assert.True(t, renewed.IsActive)
	assert.Equal(t, time.Date(2024, 5, 15, 0, 0, 0, 0, time.UTC), renewed.ExpiresAt)
	assert.True(t, store.isPremium(testUser))
}

func TestRenew_OldSubscriptionKeepsOneActive(t *testing.T) {
	svc, store, clock := newTestService(t, time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC))

	old := buy(t, svc, weeklyPkg)
	clock.Set(time.Date(2024, 5, 3, 0, 0, 0, 0, time.UTC))
	current := buy(t, svc, monthlyPkg)

	_, err := svc.Renew(context.Background(), RenewInput{SubscriptionID: old.ID, PaymentMethod: "card"})
	require.NoError(t, err)

	assert.Equal(t, 1, store.activeCount(testUser))
	got, err := store.Get(context.Background(), current.ID)
	require.NoError(t, err)
	assert.False(t, got.IsActive)
}

func TestRenew_LongExpiredStaysExpired(t *testing.T) {
	svc, store, clock := newTestService(t, time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC))

	sub := buy(t, svc, weeklyPkg)
	clock.Set(time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC))

	renewed, err := svc.Renew(context.Background(), RenewInput{SubscriptionID: sub.ID, PaymentMethod: "card"})
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC), renewed.ExpiresAt)
	assert.Equal(t, StatusExpired, svc.View(renewed).Status)
	assert.False(t, store.isPremium(testUser))
}

func TestRenew_NotFound(t *testing.T) {
	svc, _, _ := newTestService(t, time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC))

	_, err := svc.Renew(context.Background(), RenewInput{SubscriptionID: 404, PaymentMethod: "card"})
	assert.ErrorIs(t, err, common.ErrSubscriptionNotFound)
}

func TestCancel_OnlySubscriptionClearsPremium(t *testing.T) {
	svc, store, _ := newTestService(t, time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC))

	sub := buy(t, svc, monthlyPkg)
	cancelled, err := svc.Cancel(context.Background(), sub.ID)
	require.NoError(t, err)
	assert.False(t, cancelled.IsActive)
	assert.False(t, cancelled.IsAutoRenewable)
	assert.Equal(t, StatusCancelled, svc.View(cancelled).Status)
	assert.False(t, store.isPremium(testUser))
}

func TestCancel_AnotherActiveKeepsPremium(t *testing.T) {
	svc, store, clock := newTestService(t, time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC))

	old := buy(t, svc, weeklyPkg)
	buy(t, svc, monthlyPkg)

	// Гонка из старых данных: вторая активная подписка в обход сервиса
	store.mu.Lock()
	store.subs[old.ID].IsActive = true
	store.mu.Unlock()
	require.Equal(t, 2, store.activeCount(testUser))

	clock.Set(time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC))
	_, err := svc.Cancel(context.Background(), old.ID)
	require.NoError(t, err)
	assert.True(t, store.isPremium(testUser))
	assert.Equal(t, 1, store.activeCount(testUser))
}

func TestCancel_NotFound(t *testing.T) {
	svc, _, _ := newTestService(t, time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC))
	_, err := svc.Cancel(context.Background(), 12345)
	assert.ErrorIs(t, err, common.ErrSubscriptionNotFound)
}

func TestCancelAndPurchaseRace(t *testing.T) {
	svc, store, _ := newTestService(t, time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC))

	for i := 0; i < 20; i++ {
		sub := buy(t, svc, weeklyPkg)

		var wg sync.WaitGroup
		wg.Add(2)
		go func() {
			defer wg.Done()
			_, err := svc.Cancel(context.Background(), sub.ID)
			assert.NoError(t, err)
		}()
		go func() {
			defer wg.Done()
			_, err := svc.Purchase(context.Background(), PurchaseInput{UserID: testUser, PackageID: monthlyPkg, PaymentMethod: "card"})
			assert.NoError(t, err)
		}()
		wg.Wait()

		// Покупка всегда оставляет действующую подписку: флаг должен совпадать
		assert.LessOrEqual(t, store.activeCount(testUser), 1)
		assert.Equal(t, store.activeCount(testUser) == 1, store.isPremium(testUser))
	}
}

func TestSweepExpired(t *testing.T) {
	svc, store, clock := newTestService(t, time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC))

	sub := buy(t, svc, weeklyPkg)

	cleared, err := svc.SweepExpired(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, cleared)
	assert.True(t, store.isPremium(testUser))

	// Истечение без отмены
	clock.Set(time.Date(2024, 1, 8, 0, 0, 1, 0, time.UTC))
	view, err := svc.Get(context.Background(), sub.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusExpired, view.Status)

	cleared, err = svc.SweepExpired(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, cleared)
	assert.False(t, store.isPremium(testUser))

	cleared, err = svc.SweepExpired(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, cleared)
}

func TestListSubscriptions(t *testing.T) {
	svc, _, clock := newTestService(t, time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC))
	ctx := context.Background()

	first := buy(t, svc, weeklyPkg)
	second := buy(t, svc, monthlyPkg)
	clock.Set(time.Date(2024, 1, 10, 0, 0, 0, 0, time.UTC))

	uid := testUser
	page, err := svc.ListSubscriptions(ctx, ListFilter{UserID: &uid})
	require.NoError(t, err)
	require.Len(t, page.Subscriptions, 2)
	assert.Equal(t, 2, page.TotalCount)
	assert.Equal(t, second.ID, page.Subscriptions[0].ID)
	assert.Equal(t, StatusActive, page.Subscriptions[0].Status)
	assert.Equal(t, first.ID, page.Subscriptions[1].ID)
	assert.Equal(t, StatusCancelled, page.Subscriptions[1].Status)

	cancelled := StatusCancelled
	page, err = svc.ListSubscriptions(ctx, ListFilter{Status: &cancelled})
	require.NoError(t, err)
	require.Len(t, page.Subscriptions, 1)
	assert.Equal(t, first.ID, page.Subscriptions[0].ID)

	bad := Status("PAUSED")
	_, err = svc.ListSubscriptions(ctx, ListFilter{Status: &bad})
	assert.ErrorIs(t, err, common.ErrInvalidInput)
}

func TestListPackages(t *testing.T) {
	svc, _, _ := newTestService(t, time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC))

	active, err := svc.ListPackages(context.Background(), true)
	require.NoError(t, err)
	assert.Len(t, active, 2)

	all, err := svc.ListPackages(context.Background(), false)
	require.NoError(t, err)
	assert.Len(t, all, 3)
}
