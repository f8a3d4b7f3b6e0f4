// Package users — repository.go отвечает за операции с таблицей users.
// Баланс и флаг премиума здесь только читаются: их меняют леджер и подписки
// в своих транзакциях.
package users

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"lovespark.app/admin/internal/common"
)

const userColumns = `id, username, display_name, coins, is_premium, is_fake, created_at, updated_at`

type Repository struct {
	db *pgxpool.Pool
}

func NewRepository(db *pgxpool.Pool) *Repository {
	return &Repository{db: db}
}

// Create добавляет пользователя с нулевым балансом.
func (r *Repository) Create(ctx context.Context, username *string, displayName string) (*User, error) {
	query := `
		INSERT INTO users (username, display_name)
		VALUES ($1, $2)
		RETURNING ` + userColumns
	u, err := scanUser(r.db.QueryRow(ctx, query, username, displayName))
	if err != nil {
		return nil, fmt.Errorf("ошибка создания пользователя: %w", err)
	}
	return u, nil
}

// GetByID: если не найден — common.ErrUserNotFound.
func (r *Repository) GetByID(ctx context.Context, id int64) (*User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE id = $1`
	u, err := scanUser(r.db.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, common.ErrUserNotFound.WithMessage("пользователь %d не найден", id)
		}
		return nil, fmt.Errorf("ошибка чтения пользователя (id=%d): %w", id, err)
	}
	return u, nil
}

// List возвращает страницу пользователей и общее количество.
func (r *Repository) List(ctx context.Context, f ListFilter, p common.Paging) ([]*User, int, error) {
	where := `WHERE ($1::boolean IS NULL OR is_premium = $1) AND ($2::boolean IS NULL OR is_fake = $2)`

	var total int
	if err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM users `+where, f.IsPremium, f.IsFake).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("ошибка подсчёта пользователей: %w", err)
	}

	query := `SELECT ` + userColumns + ` FROM users ` + where + ` ORDER BY id DESC LIMIT $3 OFFSET $4`
	rows, err := r.db.Query(ctx, query, f.IsPremium, f.IsFake, p.Limit, p.Offset())
	if err != nil {
		return nil, 0, fmt.Errorf("ошибка запроса пользователей: %w", err)
	}
	defer rows.Close()

	var out []*User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("ошибка сканирования строки: %w", err)
		}
		out = append(out, u)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("ошибка чтения строк: %w", err)
	}
	return out, total, nil
}

// SetFake ставит или снимает модераторский флаг «фейк».
func (r *Repository) SetFake(ctx context.Context, id int64, fake bool) error {
	tag, err := r.db.Exec(ctx, `UPDATE users SET is_fake = $2, updated_at = NOW() WHERE id = $1`, id, fake)
	if err != nil {
		return fmt.Errorf("ошибка обновления флага фейка: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return common.ErrUserNotFound.WithMessage("пользователь %d не найден", id)
	}
	return nil
}

func scanUser(row pgx.Row) (*User, error) {
	var u User
	err := row.Scan(
		&u.ID, &u.Username, &u.DisplayName, &u.Coins,
		&u.IsPremium, &u.IsFake, &u.CreatedAt, &u.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &u, nil
}
