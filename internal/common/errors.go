// Package common — errors.go определяет доменные ошибки, общие для всех модулей.
// У каждой ошибки есть стабильный вид (Kind), по которому фасады (HTTP, бот)
// выбирают ответ, и человекочитаемое сообщение.
// Всё, что не является *Error, считается инфраструктурной ошибкой.
package common

import (
	"errors"
	"fmt"
)

// Kind — стабильный код доменной ошибки.
type Kind string

const (
	KindUserNotFound           Kind = "UserNotFound"
	KindPackageNotFound        Kind = "PackageNotFound"
	KindSubscriptionNotFound   Kind = "SubscriptionNotFound"
	KindTransactionNotFound    Kind = "TransactionNotFound"
	KindInsufficientBalance    Kind = "InsufficientBalance"
	KindWouldUnderflow         Kind = "WouldUnderflow"
	KindInvalidAmount          Kind = "InvalidAmount"
	KindInvalidReversalTarget  Kind = "InvalidReversalTarget"
	KindConcurrentModification Kind = "ConcurrentModification"
	KindInvalidInput           Kind = "InvalidInput"
	KindUnauthorized           Kind = "Unauthorized"
	KindTooManyAttempts        Kind = "TooManyAttempts"

	// KindInternal — не доменная ошибка (БД недоступна, таймаут и т.п.)
	KindInternal Kind = "Internal"
)

// Error — доменная ошибка.
type Error struct {
	Kind    Kind
	Message string
}

func (e *Error) Error() string { return e.Message }

// Is сравнивает ошибки по виду, чтобы errors.Is работал и для копий,
// созданных через WithMessage.
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) {
		return false
	}
	return t.Kind == e.Kind
}

// WithMessage возвращает ошибку того же вида с уточнённым сообщением.
func (e *Error) WithMessage(format string, args ...any) *Error {
	return &Error{Kind: e.Kind, Message: fmt.Sprintf(format, args...)}
}

func newError(kind Kind, msg string) *Error {
	return &Error{Kind: kind, Message: msg}
}

// Ошибки поиска
var (
	// ErrUserNotFound — пользователь не найден
	ErrUserNotFound = newError(KindUserNotFound, "пользователь не найден")
	// ErrPackageNotFound — премиум-пакет не найден или отключён
	ErrPackageNotFound = newError(KindPackageNotFound, "премиум-пакет не найден")
	// ErrSubscriptionNotFound — подписка не найдена
	ErrSubscriptionNotFound = newError(KindSubscriptionNotFound, "подписка не найдена")
	// ErrTransactionNotFound — транзакция монет не найдена
	ErrTransactionNotFound = newError(KindTransactionNotFound, "транзакция не найдена")
)

// Ошибки экономики (монеты)
var (
	// ErrInsufficientBalance — списание увело бы баланс в минус
	ErrInsufficientBalance = newError(KindInsufficientBalance, "недостаточно монет на счёте")
	// ErrWouldUnderflow — отмена транзакции увела бы баланс в минус
	ErrWouldUnderflow = newError(KindWouldUnderflow, "отмена транзакции приведёт к отрицательному балансу")
	// ErrInvalidAmount — нулевая сумма или сумма с неверным знаком для типа
	ErrInvalidAmount = newError(KindInvalidAmount, "некорректная сумма")
	// ErrInvalidReversalTarget — отменять можно только ADMIN_ADD и ADMIN_REMOVE
	ErrInvalidReversalTarget = newError(KindInvalidReversalTarget, "отменять можно только админские начисления и списания")
)

// Ошибки конкурентного доступа
var (
	// ErrConcurrentModification — конфликт блокировок, повторы исчерпаны
	ErrConcurrentModification = newError(KindConcurrentModification, "данные изменены параллельным запросом, повторите попытку")
)

// Ошибки ввода и админки
var (
	// ErrInvalidInput — входные данные не прошли валидацию
	ErrInvalidInput = newError(KindInvalidInput, "некорректные входные данные")
	// ErrUnauthorized — неверный пароль или сессия истекла
	ErrUnauthorized = newError(KindUnauthorized, "требуется авторизация")
	// ErrTooManyAttempts — слишком много неудачных попыток входа
	ErrTooManyAttempts = newError(KindTooManyAttempts, "слишком много попыток, подождите 1 час")
)

// KindOf возвращает вид ошибки. Для nil — пустую строку,
// для не доменных ошибок — KindInternal.
func KindOf(err error) Kind {
	if err == nil {
		return ""
	}
	var de *Error
	if errors.As(err, &de) {
		return de.Kind
	}
	return KindInternal
}

// IsDomain сообщает, является ли ошибка доменной (отказ по бизнес-правилу),
// а не инфраструктурной.
func IsDomain(err error) bool {
	k := KindOf(err)
	return k != "" && k != KindInternal
}

// ReplyText — текст ошибки для ответа администратору в консоли.
// Детали инфраструктурных ошибок наружу не отдаются, они уже в логах.
func ReplyText(err error) string {
	if IsDomain(err) {
		return "❌ " + err.Error()
	}
	return "❌ Внутренняя ошибка, попробуйте позже"
}
