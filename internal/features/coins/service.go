// Package coins — service.go содержит бизнес-логику леджера монет:
// проверку сумм, применение изменений баланса, отмену админских транзакций.
// Все изменения одного пользователя выполняются под его блокировкой (Store.InUserTx),
// поэтому параллельные списания не могут увести баланс в минус.
package coins

import (
	"context"
	"fmt"
	"math"
	"strings"

	log "github.com/sirupsen/logrus"

	"lovespark.app/admin/internal/common"
	"lovespark.app/admin/internal/config"
	"lovespark.app/admin/internal/metrics"
)

// LedgerTx — операции внутри транзакции, привязанной к одному
// заблокированному пользователю.
type LedgerTx interface {
	// Balance возвращает текущий баланс заблокированного пользователя.
	Balance(ctx context.Context) (int64, error)
	// SetBalance записывает новый баланс.
	SetBalance(ctx context.Context, coins int64) error
	// Insert сохраняет транзакцию и заполняет её ID.
	Insert(ctx context.Context, t *Transaction) error
	// GetForUpdate читает транзакцию этого пользователя с блокировкой.
	// Чужая или отсутствующая транзакция — common.ErrTransactionNotFound.
	GetForUpdate(ctx context.Context, id int64) (*Transaction, error)
	// Delete удаляет транзакцию.
	Delete(ctx context.Context, id int64) error
}

// Store — хранилище леджера. Реализуется Repository (PostgreSQL).
type Store interface {
	// InUserTx выполняет fn атомарно под блокировкой пользователя.
	// Нет пользователя — common.ErrUserNotFound.
	InUserTx(ctx context.Context, userID int64, fn func(tx LedgerTx) error) error
	Get(ctx context.Context, id int64) (*Transaction, error)
	List(ctx context.Context, f ListFilter, p common.Paging) ([]*Transaction, int, error)
	Summary(ctx context.Context, userID int64) (*Summary, error)
	Mismatches(ctx context.Context) ([]Mismatch, error)
}

// Service управляет леджером монет.
type Service struct {
	store        Store
	clock        common.Clock
	maxRetries   int
	defaultLimit int
	maxLimit     int
}

// NewService создаёт сервис леджера.
func NewService(store Store, clock common.Clock, cfg *config.Config) *Service {
	if clock == nil {
		clock = common.SystemClock
	}
	return &Service{
		store:        store,
		clock:        clock,
		maxRetries:   cfg.LedgerMaxRetries,
		defaultLimit: cfg.PaginationDefaultLimit,
		maxLimit:     cfg.PaginationMaxLimit,
	}
}

// ApplyAdjustment применяет изменение баланса (addOrRemoveCoins).
//
// Проверки:
//   - сумма не ноль, знак соответствует типу (SPEND/ADMIN_REMOVE < 0, остальные > 0)
//   - пользователь существует
//   - после списания баланс не станет отрицательным
//
// Транзакция леджера и новый баланс записываются одной транзакцией БД.
func (s *Service) ApplyAdjustment(ctx context.Context, in AdjustInput) (*AdjustResult, error) {
	if err := s.validateAdjust(in); err != nil {
		s.reject("adjust", err)
		return nil, err
	}

	description := strings.TrimSpace(in.Description)
	if description == "" {
		description = in.Type.DefaultDescription()
	}

	var result *AdjustResult
	err := s.withRetry(ctx, "adjust", func() error {
		return s.store.InUserTx(ctx, in.UserID, func(tx LedgerTx) error {
			current, err := tx.Balance(ctx)
			if err != nil {
				return err
			}
			if in.Amount > 0 && current > math.MaxInt64-in.Amount {
				return common.ErrInvalidAmount.WithMessage("сумма %d переполняет баланс", in.Amount)
			}

			newBalance := current + in.Amount
			if newBalance < 0 {
				return common.ErrInsufficientBalance.WithMessage(
					"недостаточно монет: нужно %d, есть %d", -in.Amount, current)
			}

			t := &Transaction{
				UserID:        in.UserID,
				Type:          in.Type,
				Amount:        in.Amount,
				BalanceAfter:  newBalance,
				Description:   description,
				ReferenceType: in.ReferenceType,
				ReferenceID:   in.ReferenceID,
				PackageID:     in.PackageID,
				CreatedAt:     s.clock(),
			}
			if err := tx.Insert(ctx, t); err != nil {
				return err
			}
			if err := tx.SetBalance(ctx, newBalance); err != nil {
				return err
			}

			result = &AdjustResult{Transaction: t, NewBalance: newBalance}
			return nil
		})
	})
	if err != nil {
		s.reject("adjust", err)
		return nil, err
	}

	metrics.CoinAdjustments.WithLabelValues(string(in.Type)).Inc()
	log.WithFields(log.Fields{
		"user_id":     in.UserID,
		"type":        in.Type,
		"amount":      in.Amount,
		"balance":     result.NewBalance,
		"transaction": result.Transaction.ID,
	}).Info("Баланс изменён")

	return result, nil
}

// ReverseAdminTransaction отменяет ADMIN_ADD или ADMIN_REMOVE (reverseCoinTransaction).
// Запись удаляется, баланс уменьшается на её сумму. BalanceAfter более поздних
// транзакций не пересчитывается: это снимки баланса на момент их записи.
func (s *Service) ReverseAdminTransaction(ctx context.Context, transactionID int64) error {
	if transactionID <= 0 {
		err := common.ErrTransactionNotFound.WithMessage("транзакция %d не найдена", transactionID)
		s.reject("reverse", err)
		return err
	}

	// Узнаём владельца, чтобы взять его блокировку
	t, err := s.store.Get(ctx, transactionID)
	if err != nil {
		s.reject("reverse", err)
		return err
	}
	if !t.Type.Reversible() {
		err := common.ErrInvalidReversalTarget.WithMessage(
			"транзакцию типа %s отменить нельзя", t.Type)
		s.reject("reverse", err)
		return err
	}

	var restored int64
	err = s.withRetry(ctx, "reverse", func() error {
		return s.store.InUserTx(ctx, t.UserID, func(tx LedgerTx) error {
			// Перечитываем под блокировкой: запись могли уже отменить
			locked, err := tx.GetForUpdate(ctx, transactionID)
			if err != nil {
				return err
			}

			current, err := tx.Balance(ctx)
			if err != nil {
				return err
			}

			restored = current - locked.Amount
			if restored < 0 {
				return common.ErrWouldUnderflow.WithMessage(
					"отмена %s приведёт к балансу %d", common.FormatCoinsAmount(locked.Amount), restored)
			}

			if err := tx.Delete(ctx, transactionID); err != nil {
				return err
			}
			return tx.SetBalance(ctx, restored)
		})
	})
	if err != nil {
		s.reject("reverse", err)
		return err
	}

	metrics.CoinReversals.Inc()
	log.WithFields(log.Fields{
		"user_id":     t.UserID,
		"transaction": transactionID,
		"amount":      t.Amount,
		"balance":     restored,
	}).Info("Админская транзакция отменена")

	return nil
}

// ListTransactions возвращает страницу транзакций, новые сверху (listCoinTransactions).
func (s *Service) ListTransactions(ctx context.Context, f ListFilter) (*TransactionPage, error) {
	if f.Type != nil && !f.Type.Valid() {
		return nil, common.ErrInvalidInput.WithMessage("неизвестный тип транзакции %q", *f.Type)
	}
	if f.From != nil && f.To != nil && f.To.Before(*f.From) {
		return nil, common.ErrInvalidInput.WithMessage("конец периода раньше начала")
	}

	p := common.NewPaging(f.Page, f.Limit, s.defaultLimit, s.maxLimit)
	list, total, err := s.store.List(ctx, f, p)
	if err != nil {
		return nil, err
	}
	if list == nil {
		list = []*Transaction{}
	}
	return &TransactionPage{Transactions: list, TotalCount: total, Page: p.Page, Limit: p.Limit}, nil
}

// Summary возвращает сводку по счёту пользователя.
func (s *Service) Summary(ctx context.Context, userID int64) (*Summary, error) {
	return s.store.Summary(ctx, userID)
}

// Balance возвращает текущий баланс пользователя.
func (s *Service) Balance(ctx context.Context, userID int64) (int64, error) {
	sum, err := s.store.Summary(ctx, userID)
	if err != nil {
		return 0, err
	}
	return sum.Balance, nil
}

// Reconcile сверяет балансы с суммой леджера и логирует расхождения.
func (s *Service) Reconcile(ctx context.Context) ([]Mismatch, error) {
	mismatches, err := s.store.Mismatches(ctx)
	if err != nil {
		return nil, fmt.Errorf("сверка леджера: %w", err)
	}

	metrics.LedgerMismatches.Set(float64(len(mismatches)))
	for _, m := range mismatches {
		log.WithFields(log.Fields{
			"user_id":    m.UserID,
			"balance":    m.Balance,
			"ledger_sum": m.LedgerSum,
		}).Error("Баланс не совпадает с суммой леджера")
	}
	return mismatches, nil
}

func (s *Service) validateAdjust(in AdjustInput) error {
	if err := common.Validate(in); err != nil {
		return err
	}
	if in.Amount == 0 {
		return common.ErrInvalidAmount.WithMessage("сумма не может быть нулевой")
	}
	if in.Type.IsCredit() && in.Amount < 0 {
		return common.ErrInvalidAmount.WithMessage("для %s сумма должна быть положительной", in.Type)
	}
	if !in.Type.IsCredit() && in.Amount > 0 {
		return common.ErrInvalidAmount.WithMessage("для %s сумма должна быть отрицательной", in.Type)
	}
	return nil
}

// withRetry повторяет fn при конфликте блокировок.
func (s *Service) withRetry(ctx context.Context, op string, fn func() error) error {
	return common.RetryConcurrent(ctx, s.maxRetries, func(attempt int, err error) {
		metrics.Retries.WithLabelValues(op).Inc()
		log.WithError(err).WithFields(log.Fields{
			"operation": op,
			"attempt":   attempt,
		}).Debug("Конфликт блокировок, повторяем")
	}, fn)
}

func (s *Service) reject(op string, err error) {
	if !common.IsDomain(err) {
		log.WithError(err).WithField("operation", op).Error("Ошибка леджера")
		return
	}
	metrics.Rejections.WithLabelValues(op, string(common.KindOf(err))).Inc()
	log.WithError(err).WithField("operation", op).Debug("Операция отклонена")
}
