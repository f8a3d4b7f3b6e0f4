// Package common содержит общие утилиты, используемые во всём проекте.
// Сюда входят: русская плюрализация, форматирование сумм, работа со временем.
package common

import (
	"fmt"
	"time"

	log "github.com/sirupsen/logrus"
)

// Clock возвращает текущее время. Сервисы получают его снаружи,
// чтобы тесты могли управлять временем (истечение подписок, продления).
type Clock func() time.Time

// SystemClock — настоящее время в UTC.
func SystemClock() time.Time {
	return time.Now().UTC()
}

// FixedClock возвращает часы, которые всегда показывают t.
func FixedClock(t time.Time) Clock {
	return func() time.Time { return t }
}

// pluralForm выбирает форму слова по правилам русского языка.
//
//   - n%10==1 И n%100!=11 → one (1, 21, 101)
//   - n%10 в [2,4] И n%100 НЕ в [12,14] → few (2, 3, 22)
//   - остальное → many (0, 5-20, 100)
func pluralForm(n int64, one, few, many string) string {
	if n < 0 {
		n = -n
	}
	lastDigit := n % 10
	lastTwoDigits := n % 100

	if lastDigit == 1 && lastTwoDigits != 11 {
		return one
	}
	if lastDigit >= 2 && lastDigit <= 4 && (lastTwoDigits < 12 || lastTwoDigits > 14) {
		return few
	}
	return many
}

// PluralizeCoins возвращает правильную форму слова «монета» для числа n.
//
// Примеры:
//
//	PluralizeCoins(1)  → "монета"
//	PluralizeCoins(3)  → "монеты"
//	PluralizeCoins(11) → "монет"
func PluralizeCoins(n int64) string {
	return pluralForm(n, "монета", "монеты", "монет")
}

// FormatBalance форматирует баланс: FormatBalance(150) → "150 монет"
func FormatBalance(balance int64) string {
	return fmt.Sprintf("%s %s", FormatNumber(balance), PluralizeCoins(balance))
}

// LoadLocation загружает часовой пояс для отображения дат.
// Если зона не найдена — используется UTC.
func LoadLocation(name string) *time.Location {
	loc, err := time.LoadLocation(name)
	if err != nil {
		log.WithError(err).WithField("tz", name).Warn("Не удалось загрузить часовой пояс, используем UTC")
		return time.UTC
	}
	return loc
}

// FormatDateTime форматирует время в вид "02.01.2006 15:04" в заданной зоне.
func FormatDateTime(t time.Time, loc *time.Location) string {
	if loc == nil {
		loc = time.UTC
	}
	return t.In(loc).Format("02.01.2006 15:04")
}
