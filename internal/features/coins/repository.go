// Package coins — repository.go работает с таблицами users (поле coins)
// и coin_transactions. Изменения выполняются только внутри InUserTx,
// где строка пользователя заблокирована FOR UPDATE.
package coins

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"

	"lovespark.app/admin/internal/common"
	"lovespark.app/admin/internal/db/postgres"
)

const txColumns = `id, user_id, transaction_type, amount, balance_after, description,
	reference_type, reference_id, package_id, created_at`

// Repository — PostgreSQL-хранилище леджера.
type Repository struct {
	locker *postgres.UserLocker
}

// NewRepository создаёт репозиторий леджера.
func NewRepository(locker *postgres.UserLocker) *Repository {
	return &Repository{locker: locker}
}

// InUserTx выполняет fn в транзакции под блокировкой пользователя.
func (r *Repository) InUserTx(ctx context.Context, userID int64, fn func(tx LedgerTx) error) error {
	return r.locker.InUserTx(ctx, userID, func(tx pgx.Tx) error {
		return fn(&ledgerTx{tx: tx, userID: userID})
	})
}

// Get возвращает транзакцию по ID.
func (r *Repository) Get(ctx context.Context, id int64) (*Transaction, error) {
	query := `SELECT ` + txColumns + ` FROM coin_transactions WHERE id = $1`
	t, err := scanTransaction(r.locker.Pool().QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, common.ErrTransactionNotFound.WithMessage("транзакция %d не найдена", id)
		}
		return nil, fmt.Errorf("ошибка чтения транзакции %d: %w", id, err)
	}
	return t, nil
}

// List возвращает страницу транзакций по фильтру, новые сверху.
func (r *Repository) List(ctx context.Context, f ListFilter, p common.Paging) ([]*Transaction, int, error) {
	where, args := buildListWhere(f)

	var total int
	if err := r.locker.Pool().QueryRow(ctx, `SELECT COUNT(*) FROM coin_transactions`+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("ошибка подсчёта транзакций: %w", err)
	}

	args = append(args, p.Limit, p.Offset())
	query := fmt.Sprintf(`SELECT %s FROM coin_transactions%s ORDER BY created_at DESC, id DESC LIMIT $%d OFFSET $%d`,
		txColumns, where, len(args)-1, len(args))

	rows, err := r.locker.Pool().Query(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("ошибка получения транзакций: %w", err)
	}
	defer rows.Close()

	var out []*Transaction
	for rows.Next() {
		t, err := scanTransaction(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("ошибка сканирования транзакции: %w", err)
		}
		out = append(out, t)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("ошибка чтения транзакций: %w", err)
	}
	return out, total, nil
}

// Summary возвращает баланс и обороты пользователя.
func (r *Repository) Summary(ctx context.Context, userID int64) (*Summary, error) {
	query := `
		SELECT u.coins,
		       COALESCE(SUM(t.amount) FILTER (WHERE t.amount > 0), 0)::bigint,
		       COALESCE(-SUM(t.amount) FILTER (WHERE t.amount < 0), 0)::bigint,
		       COUNT(t.id)
		FROM users u
		LEFT JOIN coin_transactions t ON t.user_id = u.id
		WHERE u.id = $1
		GROUP BY u.id, u.coins
	`
	s := Summary{UserID: userID}
	err := r.locker.Pool().QueryRow(ctx, query, userID).Scan(&s.Balance, &s.TotalCredited, &s.TotalDebited, &s.Count)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, common.ErrUserNotFound.WithMessage("пользователь %d не найден", userID)
		}
		return nil, fmt.Errorf("ошибка получения сводки: %w", err)
	}
	return &s, nil
}

// Mismatches возвращает пользователей, у которых coins != SUM(amount).
func (r *Repository) Mismatches(ctx context.Context) ([]Mismatch, error) {
	query := `
		SELECT u.id, u.coins, COALESCE(SUM(t.amount), 0)::bigint AS ledger_sum
		FROM users u
		LEFT JOIN coin_transactions t ON t.user_id = u.id
		GROUP BY u.id, u.coins
		HAVING u.coins <> COALESCE(SUM(t.amount), 0)
		ORDER BY u.id
	`
	rows, err := r.locker.Pool().Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("ошибка сверки леджера: %w", err)
	}
	defer rows.Close()

	var out []Mismatch
	for rows.Next() {
		var m Mismatch
		if err := rows.Scan(&m.UserID, &m.Balance, &m.LedgerSum); err != nil {
			return nil, fmt.Errorf("ошибка сканирования сверки: %w", err)
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

// ledgerTx — операции внутри заблокированной транзакции одного пользователя.
type ledgerTx struct {
	tx     pgx.Tx
	userID int64
}

func (l *ledgerTx) Balance(ctx context.Context) (int64, error) {
	var coins int64
	if err := l.tx.QueryRow(ctx, `SELECT coins FROM users WHERE id = $1`, l.userID).Scan(&coins); err != nil {
		return 0, fmt.Errorf("ошибка получения баланса: %w", err)
	}
	return coins, nil
}

func (l *ledgerTx) SetBalance(ctx context.Context, coins int64) error {
	_, err := l.tx.Exec(ctx, `UPDATE users SET coins = $2, updated_at = NOW() WHERE id = $1`, l.userID, coins)
	if err != nil {
		return fmt.Errorf("ошибка обновления баланса: %w", err)
	}
	return nil
}

func (l *ledgerTx) Insert(ctx context.Context, t *Transaction) error {
	query := `
		INSERT INTO coin_transactions
			(user_id, transaction_type, amount, balance_after, description,
			 reference_type, reference_id, package_id, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING id
	`
	err := l.tx.QueryRow(ctx, query,
		l.userID, string(t.Type), t.Amount, t.BalanceAfter, t.Description,
		t.ReferenceType, t.ReferenceID, t.PackageID, t.CreatedAt,
	).Scan(&t.ID)
	if err != nil {
		return fmt.Errorf("ошибка записи транзакции: %w", err)
	}
	return nil
}

func (l *ledgerTx) GetForUpdate(ctx context.Context, id int64) (*Transaction, error) {
	query := `SELECT ` + txColumns + ` FROM coin_transactions WHERE id = $1 AND user_id = $2 FOR UPDATE`
	t, err := scanTransaction(l.tx.QueryRow(ctx, query, id, l.userID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, common.ErrTransactionNotFound.WithMessage("транзакция %d не найдена", id)
		}
		return nil, fmt.Errorf("ошибка чтения транзакции %d: %w", id, err)
	}
	return t, nil
}

func (l *ledgerTx) Delete(ctx context.Context, id int64) error {
	tag, err := l.tx.Exec(ctx, `DELETE FROM coin_transactions WHERE id = $1 AND user_id = $2`, id, l.userID)
	if err != nil {
		return fmt.Errorf("ошибка удаления транзакции: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return common.ErrTransactionNotFound.WithMessage("транзакция %d не найдена", id)
	}
	return nil
}

// buildListWhere собирает WHERE для фильтра с позиционными параметрами.
func buildListWhere(f ListFilter) (string, []any) {
	var conds []string
	var args []any
	add := func(cond string, v any) {
		args = append(args, v)
		conds = append(conds, fmt.Sprintf(cond, len(args)))
	}

	if f.UserID != nil {
		add("user_id = $%d", *f.UserID)
	}
	if f.Type != nil {
		add("transaction_type = $%d", string(*f.Type))
	}
	if f.ReferenceType != nil {
		add("reference_type = $%d", *f.ReferenceType)
	}
	if f.PackageID != nil {
		add("package_id = $%d", *f.PackageID)
	}
	if f.From != nil {
		add("created_at >= $%d", *f.From)
	}
	if f.To != nil {
		add("created_at < $%d", *f.To)
	}

	if len(conds) == 0 {
		return "", args
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}

func scanTransaction(row pgx.Row) (*Transaction, error) {
	var t Transaction
	var txType string
	err := row.Scan(
		&t.ID, &t.UserID, &txType, &t.Amount, &t.BalanceAfter, &t.Description,
		&t.ReferenceType, &t.ReferenceID, &t.PackageID, &t.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	t.Type = TxType(txType)
	return &t, nil
}
