// Package premium — премиум-подписки: каталог пакетов, покупка, продление,
// отмена и синхронизация флага users.is_premium.
package premium

import (
	"time"

	"github.com/shopspring/decimal"
)

// DurationType — единица длительности пакета.
type DurationType string

const (
	DurationWeekly  DurationType = "WEEKLY"
	DurationMonthly DurationType = "MONTHLY"
	DurationYearly  DurationType = "YEARLY"
)

// Package — запись каталога премиум-пакетов. Подписками не изменяется.
type Package struct {
	ID            int64           `db:"id" json:"id"`
	Name          string          `db:"name" json:"name"`
	DurationType  DurationType    `db:"duration_type" json:"durationType"`
	DurationValue int             `db:"duration_value" json:"durationValue"`
	Price         decimal.Decimal `db:"price" json:"price"`
	Currency      string          `db:"currency" json:"currency"`
	IsActive      bool            `db:"is_active" json:"isActive"`
	CreatedAt     time.Time       `db:"created_at" json:"createdAt"`
}

// Status — отображаемое состояние подписки.
type Status string

const (
	StatusActive    Status = "ACTIVE"    // активна и не истекла
	StatusExpired   Status = "EXPIRED"   // активна, но срок вышел
	StatusCancelled Status = "CANCELLED" // выключена
)

// Subscription — подписка пользователя. Активной (IsActive) у пользователя
// может быть не больше одной.
type Subscription struct {
	ID              int64           `db:"id" json:"id"`
	UserID          int64           `db:"user_id" json:"userId"`
	PackageID       int64           `db:"package_id" json:"packageId"`
	StartsAt        time.Time       `db:"starts_at" json:"startsAt"`
	ExpiresAt       time.Time       `db:"expires_at" json:"expiresAt"`
	IsActive        bool            `db:"is_active" json:"isActive"`
	IsAutoRenewable bool            `db:"is_auto_renewable" json:"isAutoRenewable"`
	PaymentMethod   string          `db:"payment_method" json:"paymentMethod"`
	TransactionID   *string         `db:"transaction_id" json:"transactionId,omitempty"`
	AmountPaid      decimal.Decimal `db:"amount_paid" json:"amountPaid"`
	Currency        string          `db:"currency" json:"currency"`
	CreatedAt       time.Time       `db:"created_at" json:"createdAt"`
	UpdatedAt       time.Time       `db:"updated_at" json:"updatedAt"`
}

// IsExpired: now > expiresAt.
func (s *Subscription) IsExpired(now time.Time) bool {
	return now.After(s.ExpiresAt)
}

// StatusAt вычисляет состояние на момент now.
func (s *Subscription) StatusAt(now time.Time) Status {
	switch {
	case !s.IsActive:
		return StatusCancelled
	case s.IsExpired(now):
		return StatusExpired
	default:
		return StatusActive
	}
}

// SubscriptionView — подписка с вычисленным статусом для фасадов.
type SubscriptionView struct {
	*Subscription
	Status Status `json:"status"`
}

// PurchaseInput — вход purchaseSubscription.
type PurchaseInput struct {
	UserID          int64            `json:"userId" validate:"required,gt=0"`
	PackageID       int64            `json:"packageId" validate:"required,gt=0"`
	PaymentMethod   string           `json:"paymentMethod" validate:"required,max=32"`
	TransactionID   *string          `json:"transactionId,omitempty" validate:"omitempty,max=255"`
	AmountPaid      *decimal.Decimal `json:"amountPaid,omitempty"`
	IsAutoRenewable bool             `json:"isAutoRenewable"`
}

// RenewInput — вход renewSubscription.
type RenewInput struct {
	SubscriptionID int64            `json:"subscriptionId" validate:"required,gt=0"`
	PaymentMethod  string           `json:"paymentMethod" validate:"required,max=32"`
	TransactionID  *string          `json:"transactionId,omitempty" validate:"omitempty,max=255"`
	AmountPaid     *decimal.Decimal `json:"amountPaid,omitempty"`
}

// ListFilter — фильтры списка подписок. Nil-поля не фильтруют.
type ListFilter struct {
	UserID    *int64  `json:"userId,omitempty"`
	PackageID *int64  `json:"packageId,omitempty"`
	Status    *Status `json:"status,omitempty"`
	Page      int     `json:"page"`
	Limit     int     `json:"limit"`
}

// SubscriptionPage — страница подписок, новые сверху.
type SubscriptionPage struct {
	Subscriptions []SubscriptionView `json:"subscriptions"`
	TotalCount    int                `json:"totalCount"`
	Page          int                `json:"page"`
	Limit         int                `json:"limit"`
}
