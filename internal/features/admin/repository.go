// Package admin — repository.go работает с таблицами admin_sessions и admin_login_attempts.
package admin

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"lovespark.app/admin/internal/common"
)

const sessionColumns = `id, subject, session_token, authenticated_at, expires_at, last_activity, is_active`

// Repository работает с админ-таблицами.
type Repository struct {
	db *pgxpool.Pool
}

// NewRepository создаёт репозиторий.
func NewRepository(db *pgxpool.Pool) *Repository {
	return &Repository{db: db}
}

// CreateSession создаёт новую сессию администратора.
func (r *Repository) CreateSession(ctx context.Context, s *Session) error {
	query := `
		INSERT INTO admin_sessions (subject, session_token, authenticated_at, expires_at, last_activity, is_active)
		VALUES ($1, $2, $3, $4, $3, TRUE)
		RETURNING id
	`
	err := r.db.QueryRow(ctx, query, s.Subject, s.SessionToken, s.AuthenticatedAt, s.ExpiresAt).Scan(&s.ID)
	if err != nil {
		return fmt.Errorf("ошибка создания сессии: %w", err)
	}
	s.LastActivity = s.AuthenticatedAt
	s.IsActive = true
	return nil
}

// GetActiveSession возвращает последнюю действующую сессию субъекта.
func (r *Repository) GetActiveSession(ctx context.Context, subject string, now time.Time) (*Session, error) {
	query := `
		SELECT ` + sessionColumns + `
		FROM admin_sessions
		WHERE subject = $1 AND is_active = TRUE AND expires_at > $2
		ORDER BY authenticated_at DESC
		LIMIT 1
	`
	return r.getSession(ctx, query, subject, now)
}

// GetSessionByToken возвращает действующую сессию по токену.
func (r *Repository) GetSessionByToken(ctx context.Context, token string, now time.Time) (*Session, error) {
	query := `
		SELECT ` + sessionColumns + `
		FROM admin_sessions
		WHERE session_token = $1 AND is_active = TRUE AND expires_at > $2
	`
	return r.getSession(ctx, query, token, now)
}

func (r *Repository) getSession(ctx context.Context, query string, key string, now time.Time) (*Session, error) {
	var s Session
	err := r.db.QueryRow(ctx, query, key, now).Scan(
		&s.ID, &s.Subject, &s.SessionToken, &s.AuthenticatedAt,
		&s.ExpiresAt, &s.LastActivity, &s.IsActive,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, common.ErrUnauthorized.WithMessage("активная сессия не найдена")
		}
		return nil, fmt.Errorf("ошибка чтения сессии: %w", err)
	}
	return &s, nil
}

// DeactivateSessions завершает все сессии субъекта.
func (r *Repository) DeactivateSessions(ctx context.Context, subject string) error {
	_, err := r.db.Exec(ctx, `UPDATE admin_sessions SET is_active = FALSE WHERE subject = $1`, subject)
	if err != nil {
		return fmt.Errorf("ошибка завершения сессий: %w", err)
	}
	return nil
}

// UpdateActivity обновляет время последней активности сессии.
func (r *Repository) UpdateActivity(ctx context.Context, sessionID int64, now time.Time) error {
	_, err := r.db.Exec(ctx, `UPDATE admin_sessions SET last_activity = $2 WHERE id = $1`, sessionID, now)
	return err
}

// LogAttempt записывает попытку входа.
func (r *Repository) LogAttempt(ctx context.Context, subject string, success bool, at time.Time) error {
	query := `INSERT INTO admin_login_attempts (subject, attempt_time, success) VALUES ($1, $2, $3)`
	_, err := r.db.Exec(ctx, query, subject, at, success)
	return err
}

// CountFailedAttempts возвращает количество неудачных попыток начиная с since.
func (r *Repository) CountFailedAttempts(ctx context.Context, subject string, since time.Time) (int, error) {
	query := `
		SELECT COUNT(*) FROM admin_login_attempts
		WHERE subject = $1 AND success = FALSE AND attempt_time >= $2
	`
	var count int
	err := r.db.QueryRow(ctx, query, subject, since).Scan(&count)
	return count, err
}
