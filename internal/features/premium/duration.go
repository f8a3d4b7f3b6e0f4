package premium

import (
	"fmt"
	"time"
)

// AddDuration прибавляет к t value единиц длительности пакета.
//
// Неделя — ровно 7 календарных дней. Месяц и год прибавляются по календарю,
// день обрезается до последнего дня целевого месяца:
// 31 января + 1 месяц = 29 февраля (високосный год) или 28 февраля.
// Время суток и часовой пояс t сохраняются.
func AddDuration(t time.Time, dt DurationType, value int) (time.Time, error) {
	if value <= 0 {
		return time.Time{}, fmt.Errorf("длительность должна быть положительной: %d", value)
	}

	switch dt {
	case DurationWeekly:
		return t.AddDate(0, 0, 7*value), nil
	case DurationMonthly:
		return addMonths(t, value), nil
	case DurationYearly:
		return addMonths(t, 12*value), nil
	}
	return time.Time{}, fmt.Errorf("неизвестный тип длительности %q", dt)
}

// addMonths в отличие от time.AddDate не переносит лишние дни
// в следующий месяц (AddDate даёт 31.01 + 1 месяц = 02.03 или 03.03).
func addMonths(t time.Time, months int) time.Time {
	year, month, day := t.Date()
	hour, minute, sec := t.Clock()

	// Первое число целевого месяца, нормализация года делается time.Date
	first := time.Date(year, month+time.Month(months), 1, hour, minute, sec, t.Nanosecond(), t.Location())
	if last := daysIn(first.Year(), first.Month()); day > last {
		day = last
	}
	return time.Date(first.Year(), first.Month(), day, hour, minute, sec, t.Nanosecond(), t.Location())
}

func daysIn(year int, month time.Month) int {
	// Нулевой день следующего месяца — последний день текущего
	return time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
}
