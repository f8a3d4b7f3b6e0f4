// Package users — service.go: чтение пользователей и модерация флага «фейк».
package users

import (
	"context"

	log "github.com/sirupsen/logrus"

	"lovespark.app/admin/internal/common"
)

// Store — хранилище пользователей. Реализуется Repository.
type Store interface {
	GetByID(ctx context.Context, id int64) (*User, error)
	List(ctx context.Context, f ListFilter, p common.Paging) ([]*User, int, error)
	SetFake(ctx context.Context, id int64, fake bool) error
}

// Service управляет пользователями со стороны админки.
type Service struct {
	repo         Store
	defaultLimit int
	maxLimit     int
}

// NewService создаёт сервис пользователей.
func NewService(repo Store, defaultLimit, maxLimit int) *Service {
	return &Service{repo: repo, defaultLimit: defaultLimit, maxLimit: maxLimit}
}

// Get возвращает пользователя по ID.
func (s *Service) Get(ctx context.Context, id int64) (*User, error) {
	if id <= 0 {
		return nil, common.ErrUserNotFound.WithMessage("пользователь %d не найден", id)
	}
	return s.repo.GetByID(ctx, id)
}

// List возвращает страницу пользователей и их общее число.
func (s *Service) List(ctx context.Context, f ListFilter) ([]*User, int, error) {
	return s.repo.List(ctx, f, common.NewPaging(f.Page, f.Limit, s.defaultLimit, s.maxLimit))
}

// MarkFake ставит или снимает флаг фейкового профиля.
func (s *Service) MarkFake(ctx context.Context, id int64, fake bool) error {
	if err := s.repo.SetFake(ctx, id, fake); err != nil {
		return err
	}
	log.WithFields(log.Fields{
		"user_id": id,
		"is_fake": fake,
	}).Info("Флаг фейкового профиля обновлён")
	return nil
}
