// Package premium — service.go: жизненный цикл подписки.
// Покупка, продление и отмена выполняются под блокировкой пользователя
// (Store.InUserTx), в той же транзакции пересчитывается users.is_premium.
package premium

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"

	"lovespark.app/admin/internal/common"
	"lovespark.app/admin/internal/config"
	"lovespark.app/admin/internal/metrics"
)

// SubTx — операции над подписками одного заблокированного пользователя.
type SubTx interface {
	// GetForUpdate читает подписку этого пользователя с блокировкой.
	// Чужая или отсутствующая — common.ErrSubscriptionNotFound.
	GetForUpdate(ctx context.Context, id int64) (*Subscription, error)
	// DeactivateOthers выключает все активные подписки, кроме exceptID
	// (0 — выключить все). Возвращает число выключенных.
	DeactivateOthers(ctx context.Context, exceptID int64) (int, error)
	// Insert сохраняет подписку и заполняет ID, CreatedAt, UpdatedAt.
	Insert(ctx context.Context, s *Subscription) error
	// Update записывает изменяемые поля подписки.
	Update(ctx context.Context, s *Subscription) error
	// CountCurrent — число активных и не истёкших на момент now подписок.
	CountCurrent(ctx context.Context, now time.Time) (int, error)
	IsPremium(ctx context.Context) (bool, error)
	SetPremium(ctx context.Context, premium bool) error
}

// Store — хранилище подписок и каталога. Реализуется Repository (PostgreSQL).
type Store interface {
	// InUserTx выполняет fn атомарно под блокировкой пользователя.
	InUserTx(ctx context.Context, userID int64, fn func(tx SubTx) error) error
	GetPackage(ctx context.Context, id int64) (*Package, error)
	ListPackages(ctx context.Context, onlyActive bool) ([]*Package, error)
	Get(ctx context.Context, id int64) (*Subscription, error)
	List(ctx context.Context, f ListFilter, now time.Time, p common.Paging) ([]*Subscription, int, error)
	// StalePremiumUsers — пользователи с is_premium, у которых нет
	// активной и не истёкшей подписки.
	StalePremiumUsers(ctx context.Context, now time.Time) ([]int64, error)
}

// Service управляет премиум-подписками.
type Service struct {
	store        Store
	clock        common.Clock
	maxRetries   int
	defaultLimit int
	maxLimit     int
}

// NewService создаёт сервис подписок. clock == nil — системное время.
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

// Purchase оформляет подписку (purchaseSubscription): выключает прежнюю
// активную, создаёт новую с началом сейчас и ставит is_premium.
func (s *Service) Purchase(ctx context.Context, in PurchaseInput) (*Subscription, error) {
	if err := common.Validate(in); err != nil {
		s.reject("purchase", err)
		return nil, err
	}

	pkg, err := s.store.GetPackage(ctx, in.PackageID)
	if err != nil {
		s.reject("purchase", err)
		return nil, err
	}
	if !pkg.IsActive {
		err := common.ErrPackageNotFound.WithMessage("пакет %d отключён", pkg.ID)
		s.reject("purchase", err)
		return nil, err
	}

	amount, err := amountOrPrice(in.AmountPaid, pkg)
	if err != nil {
		s.reject("purchase", err)
		return nil, err
	}

	var sub *Subscription
	var replaced int
	err = s.withRetry(ctx, "purchase", func() error {
		return s.store.InUserTx(ctx, in.UserID, func(tx SubTx) error {
			now := s.clock()
			expiresAt, err := AddDuration(now, pkg.DurationType, pkg.DurationValue)
			if err != nil {
				return err
			}

			replaced, err = tx.DeactivateOthers(ctx, 0)
			if err != nil {
				return err
			}

			sub = &Subscription{
				UserID:          in.UserID,
				PackageID:       pkg.ID,
				StartsAt:        now,
				ExpiresAt:       expiresAt,
				IsActive:        true,
				IsAutoRenewable: in.IsAutoRenewable,
				PaymentMethod:   in.PaymentMethod,
				TransactionID:   in.TransactionID,
				AmountPaid:      amount,
				Currency:        pkg.Currency,
			}
			if err := tx.Insert(ctx, sub); err != nil {
				return err
			}
			return tx.SetPremium(ctx, true)
		})
	})
	if err != nil {
		s.reject("purchase", err)
		return nil, err
	}

	metrics.SubscriptionOps.WithLabelValues("purchase").Inc()
	log.WithFields(log.Fields{
		"user_id":      in.UserID,
		"package_id":   pkg.ID,
		"subscription": sub.ID,
		"expires_at":   sub.ExpiresAt,
		"replaced":     replaced,
	}).Info("Подписка оформлена")

	return sub, nil
}

// Renew продлевает подписку (renewSubscription). Срок прибавляется
// к текущему expiresAt, а не к «сейчас», поэтому раннее продление
// не теряет оставшиеся дни. Подписка снова становится активной.
func (s *Service) Renew(ctx context.Context, in RenewInput) (*Subscription, error) {
	if err := common.Validate(in); err != nil {
		s.reject("renew", err)
		return nil, err
	}

	current, err := s.store.Get(ctx, in.SubscriptionID)
	if err != nil {
		s.reject("renew", err)
		return nil, err
	}
	// Продлеваем по пакету подписки, даже если его уже убрали с витрины
	pkg, err := s.store.GetPackage(ctx, current.PackageID)
	if err != nil {
		s.reject("renew", err)
		return nil, err
	}

	amount, err := amountOrPrice(in.AmountPaid, pkg)
	if err != nil {
		s.reject("renew", err)
		return nil, err
	}

	var sub *Subscription
	err = s.withRetry(ctx, "renew", func() error {
		return s.store.InUserTx(ctx, current.UserID, func(tx SubTx) error {
			locked, err := tx.GetForUpdate(ctx, in.SubscriptionID)
			if err != nil {
				return err
			}

			expiresAt, err := AddDuration(locked.ExpiresAt, pkg.DurationType, pkg.DurationValue)
			if err != nil {
				return err
			}

			// Активной остаётся только продлеваемая
			if _, err := tx.DeactivateOthers(ctx, locked.ID); err != nil {
				return err
			}

			locked.ExpiresAt = expiresAt
			locked.IsActive = true
			locked.PaymentMethod = in.PaymentMethod
			locked.TransactionID = in.TransactionID
			locked.AmountPaid = amount
			if err := tx.Update(ctx, locked); err != nil {
				return err
			}

			sub = locked
			return s.syncPremium(ctx, tx)
		})
	})
	if err != nil {
		s.reject("renew", err)
		return nil, err
	}

	metrics.SubscriptionOps.WithLabelValues("renew").Inc()
	log.WithFields(log.Fields{
		"user_id":      sub.UserID,
		"subscription": sub.ID,
		"expires_at":   sub.ExpiresAt,
	}).Info("Подписка продлена")

	return sub, nil
}

// Cancel отменяет подписку (cancelSubscription): выключает её и автопродление.
// is_premium пересчитывается в той же транзакции, поэтому параллельная
// покупка не может оставить флаг в неверном состоянии.
func (s *Service) Cancel(ctx context.Context, subscriptionID int64) (*Subscription, error) {
	current, err := s.store.Get(ctx, subscriptionID)
	if err != nil {
		s.reject("cancel", err)
		return nil, err
	}

	var sub *Subscription
	err = s.withRetry(ctx, "cancel", func() error {
		return s.store.InUserTx(ctx, current.UserID, func(tx SubTx) error {
			locked, err := tx.GetForUpdate(ctx, subscriptionID)
			if err != nil {
				return err
			}

			locked.IsActive = false
			locked.IsAutoRenewable = false
			if err := tx.Update(ctx, locked); err != nil {
				return err
			}

			sub = locked
			return s.syncPremium(ctx, tx)
		})
	})
	if err != nil {
		s.reject("cancel", err)
		return nil, err
	}

	metrics.SubscriptionOps.WithLabelValues("cancel").Inc()
	log.WithFields(log.Fields{
		"user_id":      sub.UserID,
		"subscription": sub.ID,
	}).Info("Подписка отменена")

	return sub, nil
}

// Get возвращает подписку со статусом на текущий момент.
func (s *Service) Get(ctx context.Context, id int64) (*SubscriptionView, error) {
	sub, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	v := s.View(sub)
	return &v, nil
}

// View добавляет к подписке статус на текущий момент.
func (s *Service) View(sub *Subscription) SubscriptionView {
	return SubscriptionView{Subscription: sub, Status: sub.StatusAt(s.clock())}
}

// ListSubscriptions возвращает страницу подписок со статусами.
func (s *Service) ListSubscriptions(ctx context.Context, f ListFilter) (*SubscriptionPage, error) {
	if f.Status != nil {
		switch *f.Status {
		case StatusActive, StatusExpired, StatusCancelled:
		default:
			return nil, common.ErrInvalidInput.WithMessage("неизвестный статус %q", *f.Status)
		}
	}

	now := s.clock()
	p := common.NewPaging(f.Page, f.Limit, s.defaultLimit, s.maxLimit)
	list, total, err := s.store.List(ctx, f, now, p)
	if err != nil {
		return nil, err
	}

	views := make([]SubscriptionView, 0, len(list))
	for _, sub := range list {
		views = append(views, SubscriptionView{Subscription: sub, Status: sub.StatusAt(now)})
	}
	return &SubscriptionPage{Subscriptions: views, TotalCount: total, Page: p.Page, Limit: p.Limit}, nil
}

// ListPackages возвращает каталог пакетов.
func (s *Service) ListPackages(ctx context.Context, onlyActive bool) ([]*Package, error) {
	return s.store.ListPackages(ctx, onlyActive)
}

// SweepExpired снимает is_premium у пользователей, чьи подписки истекли сами
// по себе. Проверка повторяется под блокировкой: между выборкой и записью
// пользователь мог купить новую подписку. Возвращает число снятых флагов.
func (s *Service) SweepExpired(ctx context.Context) (int, error) {
	now := s.clock()
	userIDs, err := s.store.StalePremiumUsers(ctx, now)
	if err != nil {
		return 0, fmt.Errorf("выборка истёкших премиумов: %w", err)
	}

	cleared := 0
	var errs []error
	for _, userID := range userIDs {
		var changed bool
		err := s.withRetry(ctx, "sweep", func() error {
			changed = false
			return s.store.InUserTx(ctx, userID, func(tx SubTx) error {
				premium, err := tx.IsPremium(ctx)
				if err != nil || !premium {
					return err
				}
				n, err := tx.CountCurrent(ctx, s.clock())
				if err != nil || n > 0 {
					return err
				}
				changed = true
				return tx.SetPremium(ctx, false)
			})
		})
		if err != nil {
			log.WithError(err).WithField("user_id", userID).Error("Не удалось снять премиум")
			errs = append(errs, err)
			continue
		}
		if changed {
			cleared++
			log.WithField("user_id", userID).Info("Премиум истёк, флаг снят")
		}
	}

	metrics.PremiumFlagsCleared.Set(float64(cleared))
	return cleared, errors.Join(errs...)
}

// syncPremium ставит is_premium = есть активная и не истёкшая подписка.
func (s *Service) syncPremium(ctx context.Context, tx SubTx) error {
	n, err := tx.CountCurrent(ctx, s.clock())
	if err != nil {
		return err
	}
	return tx.SetPremium(ctx, n > 0)
}

func amountOrPrice(amount *decimal.Decimal, pkg *Package) (decimal.Decimal, error) {
	if amount == nil {
		return pkg.Price, nil
	}
	if amount.IsNegative() {
		return decimal.Zero, common.ErrInvalidAmount.WithMessage("сумма оплаты не может быть отрицательной")
	}
	return *amount, nil
}

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
		log.WithError(err).WithField("operation", op).Error("Ошибка подписок")
		return
	}
	metrics.Rejections.WithLabelValues(op, string(common.KindOf(err))).Inc()
	log.WithError(err).WithField("operation", op).Debug("Операция отклонена")
}
