// Package common — pluralize.go содержит форматирование сумм со знаком
// и разделителями тысяч для ответов админ-консоли.
package common

import "fmt"

// FormatCoinsAmount создаёт строку вида "+100 монет" или "-50 монет".
//
// Примеры:
//
//	FormatCoinsAmount(100) → "+100 монет"
//	FormatCoinsAmount(-2)  → "-2 монеты"
//	FormatCoinsAmount(1)   → "+1 монета"
func FormatCoinsAmount(amount int64) string {
	if amount >= 0 {
		return fmt.Sprintf("+%s %s", FormatNumber(amount), PluralizeCoins(amount))
	}
	return fmt.Sprintf("%s %s", FormatNumber(amount), PluralizeCoins(amount))
}

// FormatNumber форматирует число с разделителями тысяч (пробелами).
// Пример: FormatNumber(2350) → "2 350"
func FormatNumber(n int64) string {
	if n < 0 {
		return "-" + FormatNumber(-n)
	}
	if n < 1000 {
		return fmt.Sprintf("%d", n)
	}
	return fmt.Sprintf("%s %03d", FormatNumber(n/1000), n%1000)
}
