// Package premium — repository.go работает с таблицами premium_packages,
// subscriptions и полем users.is_premium.
package premium

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"

	"lovespark.app/admin/internal/common"
	"lovespark.app/admin/internal/db/postgres"
)

const (
	packageColumns = `id, name, duration_type, duration_value, price, currency, is_active, created_at`
	subColumns     = `id, user_id, package_id, starts_at, expires_at, is_active, is_auto_renewable,
		payment_method, transaction_id, amount_paid, currency, created_at, updated_at`
)

// Repository — PostgreSQL-хранилище подписок.
type Repository struct {
	locker *postgres.UserLocker
}

// NewRepository создаёт репозиторий подписок.
func NewRepository(locker *postgres.UserLocker) *Repository {
	return &Repository{locker: locker}
}

// InUserTx выполняет fn в транзакции под блокировкой пользователя.
func (r *Repository) InUserTx(ctx context.Context, userID int64, fn func(tx SubTx) error) error {
	return r.locker.InUserTx(ctx, userID, func(tx pgx.Tx) error {
		return fn(&subTx{tx: tx, userID: userID})
	})
}

// GetPackage: если не найден — common.ErrPackageNotFound.
func (r *Repository) GetPackage(ctx context.Context, id int64) (*Package, error) {
	query := `SELECT ` + packageColumns + ` FROM premium_packages WHERE id = $1`
	p, err := scanPackage(r.locker.Pool().QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, common.ErrPackageNotFound.WithMessage("пакет %d не найден", id)
		}
		return nil, fmt.Errorf("ошибка чтения пакета %d: %w", id, err)
	}
	return p, nil
}

// ListPackages возвращает каталог, упорядоченный по цене.
func (r *Repository) ListPackages(ctx context.Context, onlyActive bool) ([]*Package, error) {
	query := `SELECT ` + packageColumns + ` FROM premium_packages
		WHERE (NOT $1 OR is_active) ORDER BY price, id`
	rows, err := r.locker.Pool().Query(ctx, query, onlyActive)
	if err != nil {
		return nil, fmt.Errorf("ошибка получения пакетов: %w", err)
	}
	defer rows.Close()

	var out []*Package
	for rows.Next() {
		p, err := scanPackage(rows)
		if err != nil {
			return nil, fmt.Errorf("ошибка сканирования пакета: %w", err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// CreatePackage добавляет пакет в каталог.
func (r *Repository) CreatePackage(ctx context.Context, p *Package) error {
	query := `
		INSERT INTO premium_packages (name, duration_type, duration_value, price, currency, is_active)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, created_at
	`
	err := r.locker.Pool().QueryRow(ctx, query,
		p.Name, string(p.DurationType), p.DurationValue, p.Price, p.Currency, p.IsActive,
	).Scan(&p.ID, &p.CreatedAt)
	if err != nil {
		return fmt.Errorf("ошибка создания пакета: %w", err)
	}
	return nil
}

// Get: если не найдена — common.ErrSubscriptionNotFound.
func (r *Repository) Get(ctx context.Context, id int64) (*Subscription, error) {
	query := `SELECT ` + subColumns + ` FROM subscriptions WHERE id = $1`
	s, err := scanSubscription(r.locker.Pool().QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, common.ErrSubscriptionNotFound.WithMessage("подписка %d не найдена", id)
		}
		return nil, fmt.Errorf("ошибка чтения подписки %d: %w", id, err)
	}
	return s, nil
}

// List возвращает страницу подписок, новые сверху.
func (r *Repository) List(ctx context.Context, f ListFilter, now time.Time, p common.Paging) ([]*Subscription, int, error) {
	where, args := buildListWhere(f, now)

	var total int
	if err := r.locker.Pool().QueryRow(ctx, `SELECT COUNT(*) FROM subscriptions`+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("ошибка подсчёта подписок: %w", err)
	}

	args = append(args, p.Limit, p.Offset())
	query := fmt.Sprintf(`SELECT %s FROM subscriptions%s ORDER BY created_at DESC, id DESC LIMIT $%d OFFSET $%d`,
		subColumns, where, len(args)-1, len(args))

	rows, err := r.locker.Pool().Query(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("ошибка получения подписок: %w", err)
	}
	defer rows.Close()

	var out []*Subscription
	for rows.Next() {
		s, err := scanSubscription(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("ошибка сканирования подписки: %w", err)
		}
		out = append(out, s)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("ошибка чтения подписок: %w", err)
	}
	return out, total, nil
}

// StalePremiumUsers — пользователи с флагом премиума без действующей подписки.
func (r *Repository) StalePremiumUsers(ctx context.Context, now time.Time) ([]int64, error) {
	query := `
		SELECT u.id FROM users u
		WHERE u.is_premium
		  AND NOT EXISTS (
		      SELECT 1 FROM subscriptions s
		      WHERE s.user_id = u.id AND s.is_active AND s.expires_at >= $1
		  )
		ORDER BY u.id
	`
	rows, err := r.locker.Pool().Query(ctx, query, now)
	if err != nil {
		return nil, fmt.Errorf("ошибка поиска истёкших премиумов: %w", err)
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// subTx — операции внутри заблокированной транзакции одного пользователя.
type subTx struct {
	tx     pgx.Tx
	userID int64
}

func (t *subTx) GetForUpdate(ctx context.Context, id int64) (*Subscription, error) {
	query := `SELECT ` + subColumns + ` FROM subscriptions WHERE id = $1 AND user_id = $2 FOR UPDATE`
	s, err := scanSubscription(t.tx.QueryRow(ctx, query, id, t.userID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, common.ErrSubscriptionNotFound.WithMessage("подписка %d не найдена", id)
		}
		return nil, fmt.Errorf("ошибка чтения подписки %d: %w", id, err)
	}
	return s, nil
}

func (t *subTx) DeactivateOthers(ctx context.Context, exceptID int64) (int, error) {
	tag, err := t.tx.Exec(ctx, `
		UPDATE subscriptions SET is_active = FALSE, updated_at = NOW()
		WHERE user_id = $1 AND is_active AND id <> $2
	`, t.userID, exceptID)
	if err != nil {
		return 0, fmt.Errorf("ошибка деактивации подписок: %w", err)
	}
	return int(tag.RowsAffected()), nil
}

func (t *subTx) Insert(ctx context.Context, s *Subscription) error {
	query := `
		INSERT INTO subscriptions
			(user_id, package_id, starts_at, expires_at, is_active, is_auto_renewable,
			 payment_method, transaction_id, amount_paid, currency)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING id, created_at, updated_at
	`
	err := t.tx.QueryRow(ctx, query,
		t.userID, s.PackageID, s.StartsAt, s.ExpiresAt, s.IsActive, s.IsAutoRenewable,
		s.PaymentMethod, s.TransactionID, s.AmountPaid, s.Currency,
	).Scan(&s.ID, &s.CreatedAt, &s.UpdatedAt)
	if err != nil {
		return fmt.Errorf("ошибка создания подписки: %w", err)
	}
	return nil
}

func (t *subTx) Update(ctx context.Context, s *Subscription) error {
	query := `
		UPDATE subscriptions
		SET expires_at = $3, is_active = $4, is_auto_renewable = $5,
		    payment_method = $6, transaction_id = $7, amount_paid = $8, updated_at = NOW()
		WHERE id = $1 AND user_id = $2
		RETURNING updated_at
	`
	err := t.tx.QueryRow(ctx, query,
		s.ID, t.userID, s.ExpiresAt, s.IsActive, s.IsAutoRenewable,
		s.PaymentMethod, s.TransactionID, s.AmountPaid,
	).Scan(&s.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return common.ErrSubscriptionNotFound.WithMessage("подписка %d не найдена", s.ID)
		}
		return fmt.Errorf("ошибка обновления подписки %d: %w", s.ID, err)
	}
	return nil
}

func (t *subTx) CountCurrent(ctx context.Context, now time.Time) (int, error) {
	var n int
	err := t.tx.QueryRow(ctx, `
		SELECT COUNT(*) FROM subscriptions
		WHERE user_id = $1 AND is_active AND expires_at >= $2
	`, t.userID, now).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("ошибка подсчёта активных подписок: %w", err)
	}
	return n, nil
}

func (t *subTx) IsPremium(ctx context.Context) (bool, error) {
	var premium bool
	if err := t.tx.QueryRow(ctx, `SELECT is_premium FROM users WHERE id = $1`, t.userID).Scan(&premium); err != nil {
		return false, fmt.Errorf("ошибка чтения флага премиума: %w", err)
	}
	return premium, nil
}

func (t *subTx) SetPremium(ctx context.Context, premium bool) error {
	_, err := t.tx.Exec(ctx, `UPDATE users SET is_premium = $2, updated_at = NOW() WHERE id = $1`, t.userID, premium)
	if err != nil {
		return fmt.Errorf("ошибка обновления флага премиума: %w", err)
	}
	return nil
}

func buildListWhere(f ListFilter, now time.Time) (string, []any) {
	var conds []string
	var args []any
	add := func(cond string, v any) {
		args = append(args, v)
		conds = append(conds, fmt.Sprintf(cond, len(args)))
	}

	if f.UserID != nil {
		add("user_id = $%d", *f.UserID)
	}
	if f.PackageID != nil {
		add("package_id = $%d", *f.PackageID)
	}
	if f.Status != nil {
		switch *f.Status {
		case StatusCancelled:
			conds = append(conds, "NOT is_active")
		case StatusExpired:
			add("is_active AND expires_at < $%d", now)
		case StatusActive:
			add("is_active AND expires_at >= $%d", now)
		}
	}

	if len(conds) == 0 {
		return "", args
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}

func scanPackage(row pgx.Row) (*Package, error) {
	var p Package
	var dt string
	err := row.Scan(&p.ID, &p.Name, &dt, &p.DurationValue, &p.Price, &p.Currency, &p.IsActive, &p.CreatedAt)
	if err != nil {
		return nil, err
	}
	p.DurationType = DurationType(dt)
	return &p, nil
}

func scanSubscription(row pgx.Row) (*Subscription, error) {
	var s Subscription
	err := row.Scan(
		&s.ID, &s.UserID, &s.PackageID, &s.StartsAt, &s.ExpiresAt, &s.IsActive, &s.IsAutoRenewable,
		&s.PaymentMethod, &s.TransactionID, &s.AmountPaid, &s.Currency, &s.CreatedAt, &s.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &s, nil
}
