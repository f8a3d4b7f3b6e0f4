// Package postgres — вспомогательные функции для работы с БД.
// queries.go содержит применение миграций и перевод ошибок драйвера
// в доменные ошибки.
package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"lovespark.app/admin/internal/common"
)

// Коды ошибок PostgreSQL, означающие гонку, а не отказ по бизнес-правилу.
const (
	codeSerializationFailure = "40001"
	codeDeadlockDetected     = "40P01"
	codeLockNotAvailable     = "55P03"
	codeCheckViolation       = "23514"
	codeUniqueViolation      = "23505"
)

// ExecMigrationSQL выполняет один SQL-запрос миграции в транзакции.
// Возвращает true, если миграция применена сейчас, и false, если она уже была.
func ExecMigrationSQL(ctx context.Context, pool *pgxpool.Pool, version int, sql string) (bool, error) {
	tx, err := pool.Begin(ctx)
	if err != nil {
		return false, fmt.Errorf("ошибка начала транзакции: %w", err)
	}
	defer tx.Rollback(ctx)

	var exists bool
	err = tx.QueryRow(ctx,
		"SELECT EXISTS(SELECT 1 FROM schema_migrations WHERE version = $1)", version,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("ошибка проверки миграции: %w", err)
	}
	if exists {
		return false, nil
	}

	if _, err := tx.Exec(ctx, sql); err != nil {
		return false, fmt.Errorf("ошибка выполнения миграции %d: %w", version, err)
	}

	if _, err := tx.Exec(ctx,
		"INSERT INTO schema_migrations (version) VALUES ($1)", version,
	); err != nil {
		return false, fmt.Errorf("ошибка записи версии миграции: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return false, fmt.Errorf("ошибка фиксации миграции %d: %w", version, err)
	}
	return true, nil
}

// TranslateError переводит ошибки драйвера в доменные там, где это гонка
// или нарушение инварианта на стороне БД. Доменные ошибки и nil
// возвращаются как есть, остальное остаётся инфраструктурной ошибкой.
func TranslateError(err error) error {
	if err == nil || common.IsDomain(err) {
		return err
	}

	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return err
	}

	switch pgErr.Code {
	case codeSerializationFailure, codeDeadlockDetected, codeLockNotAvailable:
		return fmt.Errorf("%w: %s", common.ErrConcurrentModification, pgErr.Message)
	case codeUniqueViolation:
		// subscriptions_one_active_per_user: два активных — это гонка покупок
		if pgErr.ConstraintName == "subscriptions_one_active_per_user" {
			return fmt.Errorf("%w: %s", common.ErrConcurrentModification, pgErr.Message)
		}
	case codeCheckViolation:
		if pgErr.ConstraintName == "users_coins_non_negative" {
			return fmt.Errorf("%w: %s", common.ErrInsufficientBalance, pgErr.Message)
		}
	}
	return err
}
