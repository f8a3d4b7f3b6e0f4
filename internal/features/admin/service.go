// Package admin — service.go содержит логику аутентификации, управления сессиями
// и состояние диалога ввода пароля в Telegram.
package admin

import (
	"context"
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"fmt"
	"strings"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"
	"golang.org/x/crypto/argon2"

	"lovespark.app/admin/internal/common"
	"lovespark.app/admin/internal/config"
)

const (
	// attemptsWindow — за какой период считаются неудачные попытки
	attemptsWindow = time.Hour
	// stateTTL — сколько ждём пароль после /login без аргументов
	stateTTL = 5 * time.Minute
)

// Параметры Argon2id для новых хешей.
const (
	argonMemory      = 64 * 1024
	argonIterations  = 3
	argonParallelism = 2
	argonSaltLen     = 16
	argonKeyLen      = 32
)

// Store — хранилище сессий и попыток входа.
type Store interface {
	CreateSession(ctx context.Context, s *Session) error
	GetActiveSession(ctx context.Context, subject string, now time.Time) (*Session, error)
	GetSessionByToken(ctx context.Context, token string, now time.Time) (*Session, error)
	DeactivateSessions(ctx context.Context, subject string) error
	UpdateActivity(ctx context.Context, sessionID int64, now time.Time) error
	LogAttempt(ctx context.Context, subject string, success bool, at time.Time) error
	CountFailedAttempts(ctx context.Context, subject string, since time.Time) (int, error)
}

// Service управляет входом администратора.
type Service struct {
	store        Store
	passwordHash string
	sessionTTL   time.Duration
	maxAttempts  int
	clock        common.Clock

	states   map[int64]*AdminState // Состояния диалогов (in-memory)
	statesMu sync.RWMutex
}

// NewService создаёт сервис входа.
func NewService(store Store, clock common.Clock, cfg *config.Config) *Service {
	if clock == nil {
		clock = common.SystemClock
	}
	return &Service{
		store:        store,
		passwordHash: cfg.AdminPasswordHash,
		sessionTTL:   cfg.AdminSessionTTL,
		maxAttempts:  cfg.AdminMaxLoginAttempts,
		clock:        clock,
		states:       make(map[int64]*AdminState),
	}
}

// Login проверяет пароль и создаёт сессию для subject.
// Защита от brute-force: maxAttempts неудачных попыток за час блокируют вход.
func (s *Service) Login(ctx context.Context, subject, password string) (*Session, error) {
	now := s.clock()

	attempts, err := s.store.CountFailedAttempts(ctx, subject, now.Add(-attemptsWindow))
	if err != nil {
		return nil, fmt.Errorf("ошибка проверки попыток входа: %w", err)
	}
	if attempts >= s.maxAttempts {
		log.WithField("subject", subject).Warn("Вход заблокирован: слишком много попыток")
		return nil, common.ErrTooManyAttempts
	}

	match := verifyArgon2id(password, s.passwordHash)

	if err := s.store.LogAttempt(ctx, subject, match, now); err != nil {
		log.WithError(err).WithField("subject", subject).Error("Не удалось записать попытку входа")
	}

	if !match {
		log.WithField("subject", subject).Warn("Неверный пароль администратора")
		return nil, common.ErrUnauthorized.WithMessage("неверный пароль")
	}

	token, err := generateSecureToken()
	if err != nil {
		return nil, err
	}
	session := &Session{
		Subject:         subject,
		SessionToken:    token,
		AuthenticatedAt: now,
		ExpiresAt:       now.Add(s.sessionTTL),
	}
	if err := s.store.CreateSession(ctx, session); err != nil {
		return nil, err
	}

	log.WithFields(log.Fields{
		"subject":    subject,
		"expires_at": session.ExpiresAt,
	}).Info("Администратор вошёл")
	return session, nil
}

// Authenticate проверяет токен сессии (HTTP Bearer).
func (s *Service) Authenticate(ctx context.Context, token string) (*Session, error) {
	if token == "" {
		return nil, common.ErrUnauthorized
	}
	now := s.clock()
	session, err := s.store.GetSessionByToken(ctx, token, now)
	if err != nil {
		return nil, err
	}
	s.touch(ctx, session, now)
	return session, nil
}

// HasActiveSession проверяет, есть ли у субъекта действующая сессия.
func (s *Service) HasActiveSession(ctx context.Context, subject string) bool {
	now := s.clock()
	session, err := s.store.GetActiveSession(ctx, subject, now)
	if err != nil {
		if !common.IsDomain(err) {
			log.WithError(err).WithField("subject", subject).Error("Ошибка проверки сессии")
		}
		return false
	}
	s.touch(ctx, session, now)
	return true
}

// Logout завершает все сессии субъекта.
func (s *Service) Logout(ctx context.Context, subject string) error {
	return s.store.DeactivateSessions(ctx, subject)
}

func (s *Service) touch(ctx context.Context, session *Session, now time.Time) {
	if err := s.store.UpdateActivity(ctx, session.ID, now); err != nil {
		log.WithError(err).WithField("subject", session.Subject).Debug("Не удалось обновить активность сессии")
	}
}

// GetState возвращает текущее состояние диалога.
func (s *Service) GetState(userID int64) *AdminState {
	s.statesMu.RLock()
	defer s.statesMu.RUnlock()

	state, ok := s.states[userID]
	if !ok || s.clock().After(state.ExpiresAt) {
		return nil
	}
	return state
}

// SetState устанавливает состояние диалога с 5-минутным таймаутом.
func (s *Service) SetState(userID int64, stateName string) {
	s.statesMu.Lock()
	defer s.statesMu.Unlock()

	s.states[userID] = &AdminState{
		State:     stateName,
		ExpiresAt: s.clock().Add(stateTTL),
	}
}

// ClearState сбрасывает состояние диалога.
func (s *Service) ClearState(userID int64) {
	s.statesMu.Lock()
	defer s.statesMu.Unlock()
	delete(s.states, userID)
}

// --- Криптографические утилиты ---

// HashPassword возвращает хеш Argon2id в формате
// $argon2id$v=19$m=65536,t=3,p=2$<salt_base64>$<hash_base64>.
func HashPassword(password string) (string, error) {
	salt := make([]byte, argonSaltLen)
	if _, err := rand.Read(salt); err != nil {
		return "", fmt.Errorf("ошибка генерации соли: %w", err)
	}
	hash := argon2.IDKey([]byte(password), salt, argonIterations, argonMemory, argonParallelism, argonKeyLen)
	return fmt.Sprintf("$argon2id$v=%d$m=%d,t=%d,p=%d$%s$%s",
		argon2.Version, argonMemory, argonIterations, argonParallelism,
		base64.RawStdEncoding.EncodeToString(salt),
		base64.RawStdEncoding.EncodeToString(hash),
	), nil
}

// verifyArgon2id проверяет пароль по хешу Argon2id.
func verifyArgon2id(password, encodedHash string) bool {
	parts := strings.Split(encodedHash, "$")
	if len(parts) != 6 || parts[1] != "argon2id" {
		log.Error("Некорректный формат хеша Argon2id")
		return false
	}

	var memory uint32
	var iterations uint32
	var parallelism uint8
	_, err := fmt.Sscanf(parts[3], "m=%d,t=%d,p=%d", &memory, &iterations, &parallelism)
	if err != nil {
		log.WithError(err).Error("Ошибка парсинга параметров Argon2id")
		return false
	}

	salt, err := base64.RawStdEncoding.DecodeString(parts[4])
	if err != nil {
		log.WithError(err).Error("Ошибка декодирования соли")
		return false
	}

	expectedHash, err := base64.RawStdEncoding.DecodeString(parts[5])
	if err != nil {
		log.WithError(err).Error("Ошибка декодирования хеша")
		return false
	}

	computedHash := argon2.IDKey([]byte(password), salt, iterations, memory, parallelism, uint32(len(expectedHash)))

	// Сравнение в постоянном времени
	return subtle.ConstantTimeCompare(computedHash, expectedHash) == 1
}

// generateSecureToken генерирует случайный токен сессии.
func generateSecureToken() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("ошибка генерации токена: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}
