package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"lovespark.app/admin/internal/common"
)

// UserLocker выполняет работу в транзакции под блокировкой строки пользователя.
// Все изменения баланса и подписок одного пользователя проходят через неё,
// поэтому они сериализуются на уровне БД (SELECT ... FOR UPDATE).
type UserLocker struct {
	pool        *pgxpool.Pool
	lockTimeout time.Duration
}

// NewUserLocker создаёт блокировщик. lockTimeout ограничивает ожидание
// чужой блокировки; 0 — ждать без ограничения.
func NewUserLocker(pool *pgxpool.Pool, lockTimeout time.Duration) *UserLocker {
	return &UserLocker{pool: pool, lockTimeout: lockTimeout}
}

// Pool возвращает пул для запросов на чтение вне блокировки.
func (l *UserLocker) Pool() *pgxpool.Pool {
	return l.pool
}

// InUserTx открывает транзакцию, блокирует строку users(id = userID)
// и вызывает fn. Если fn вернула ошибку — транзакция откатывается,
// иначе фиксируется. Соединение возвращается в пул на любом выходе.
func (l *UserLocker) InUserTx(ctx context.Context, userID int64, fn func(tx pgx.Tx) error) error {
	tx, err := l.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("ошибка начала транзакции: %w", err)
	}
	defer tx.Rollback(ctx)

	if l.lockTimeout > 0 {
		// SET LOCAL не принимает параметры, значение собираем из числа
		stmt := fmt.Sprintf("SET LOCAL lock_timeout = %d", l.lockTimeout.Milliseconds())
		if _, err := tx.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("ошибка установки lock_timeout: %w", err)
		}
	}

	var id int64
	err = tx.QueryRow(ctx, `SELECT id FROM users WHERE id = $1 FOR UPDATE`, userID).Scan(&id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return common.ErrUserNotFound.WithMessage("пользователь %d не найден", userID)
		}
		return TranslateError(fmt.Errorf("ошибка блокировки пользователя %d: %w", userID, err))
	}

	if err := fn(tx); err != nil {
		return TranslateError(err)
	}

	if err := tx.Commit(ctx); err != nil {
		return TranslateError(fmt.Errorf("ошибка фиксации транзакции: %w", err))
	}
	return nil
}
