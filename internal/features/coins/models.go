// Package coins — леджер монет: неизменяемые транзакции и баланс пользователя.
// models.go описывает транзакции, входные структуры операций и фильтры.
package coins

import "time"

// TxType — тип транзакции монет.
type TxType string

const (
	TxPurchase    TxType = "PURCHASE"     // Покупка пакета монет (внешняя платёжка)
	TxSpend       TxType = "SPEND"        // Трата в приложении (подарки, бусты)
	TxReward      TxType = "REWARD"       // Награда (ежедневный бонус, рефералка)
	TxRefund      TxType = "REFUND"       // Возврат
	TxAdminAdd    TxType = "ADMIN_ADD"    // Начисление админом
	TxAdminRemove TxType = "ADMIN_REMOVE" // Списание админом
)

// AllTypes — допустимые типы в порядке отображения.
var AllTypes = []TxType{TxPurchase, TxSpend, TxReward, TxRefund, TxAdminAdd, TxAdminRemove}

// Valid сообщает, известен ли тип.
func (t TxType) Valid() bool {
	for _, known := range AllTypes {
		if t == known {
			return true
		}
	}
	return false
}

// IsCredit — тип начисляет монеты (amount > 0).
// SPEND и ADMIN_REMOVE списывают (amount < 0).
func (t TxType) IsCredit() bool {
	return t != TxSpend && t != TxAdminRemove
}

// Reversible — отменять можно только админские транзакции:
// остальные отражают события внешних систем.
func (t TxType) Reversible() bool {
	return t == TxAdminAdd || t == TxAdminRemove
}

// DefaultDescription — описание, если вызывающий его не передал.
func (t TxType) DefaultDescription() string {
	switch t {
	case TxPurchase:
		return "Покупка монет"
	case TxSpend:
		return "Трата монет"
	case TxReward:
		return "Награда"
	case TxRefund:
		return "Возврат монет"
	case TxAdminAdd:
		return "Начисление администратором"
	case TxAdminRemove:
		return "Списание администратором"
	}
	return ""
}

// Transaction — одна неизменяемая запись леджера.
// BalanceAfter — баланс сразу после применения этой записи.
type Transaction struct {
	ID            int64     `db:"id" json:"id"`
	UserID        int64     `db:"user_id" json:"userId"`
	Type          TxType    `db:"transaction_type" json:"transactionType"`
	Amount        int64     `db:"amount" json:"amount"` // Со знаком
	BalanceAfter  int64     `db:"balance_after" json:"balanceAfter"`
	Description   string    `db:"description" json:"description"`
	ReferenceType *string   `db:"reference_type" json:"referenceType,omitempty"`
	ReferenceID   *string   `db:"reference_id" json:"referenceId,omitempty"`
	PackageID     *int64    `db:"package_id" json:"packageId,omitempty"`
	CreatedAt     time.Time `db:"created_at" json:"createdAt"`
}

// AdjustInput — вход операции addOrRemoveCoins.
type AdjustInput struct {
	UserID        int64   `json:"userId" validate:"required,gt=0"`
	Amount        int64   `json:"amount"`
	Type          TxType  `json:"type" validate:"required,oneof=PURCHASE SPEND REWARD REFUND ADMIN_ADD ADMIN_REMOVE"`
	Description   string  `json:"description,omitempty" validate:"max=500"`
	ReferenceType *string `json:"referenceType,omitempty" validate:"omitempty,max=64"`
	ReferenceID   *string `json:"referenceId,omitempty" validate:"omitempty,max=255"`
	PackageID     *int64  `json:"packageId,omitempty" validate:"omitempty,gt=0"`
}

// AdjustResult — результат addOrRemoveCoins.
type AdjustResult struct {
	Transaction *Transaction `json:"transaction"`
	NewBalance  int64        `json:"newBalance"`
}

// ListFilter — фильтры listCoinTransactions. Nil-поля не фильтруют.
type ListFilter struct {
	UserID        *int64     `json:"userId,omitempty"`
	Type          *TxType    `json:"type,omitempty"`
	ReferenceType *string    `json:"referenceType,omitempty"`
	PackageID     *int64     `json:"packageId,omitempty"`
	From          *time.Time `json:"from,omitempty"`
	To            *time.Time `json:"to,omitempty"`
	Page          int        `json:"page"`
	Limit         int        `json:"limit"`
}

// TransactionPage — страница транзакций, новые сверху.
type TransactionPage struct {
	Transactions []*Transaction `json:"transactions"`
	TotalCount   int            `json:"totalCount"`
	Page         int            `json:"page"`
	Limit        int            `json:"limit"`
}

// Summary — сводка по счёту пользователя для карточки в админке.
type Summary struct {
	UserID        int64 `json:"userId"`
	Balance       int64 `json:"balance"`
	TotalCredited int64 `json:"totalCredited"`
	TotalDebited  int64 `json:"totalDebited"` // Положительное число
	Count         int   `json:"transactionCount"`
}

// Mismatch — расхождение баланса и суммы леджера.
type Mismatch struct {
	UserID    int64 `json:"userId"`
	Balance   int64 `json:"balance"`
	LedgerSum int64 `json:"ledgerSum"`
}
