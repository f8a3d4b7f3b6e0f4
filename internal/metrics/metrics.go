// Package metrics регистрирует метрики Prometheus для леджера монет
// и подписок. Эндпоинт /metrics отдаёт их через promhttp.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// CoinAdjustments — применённые изменения баланса по типу транзакции
	CoinAdjustments = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ledger_coin_adjustments_total",
			Help: "Applied coin balance adjustments by transaction type",
		},
		[]string{"type"},
	)

	// CoinReversals — отменённые админские транзакции
	CoinReversals = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "ledger_coin_reversals_total",
			Help: "Reversed admin coin transactions",
		},
	)

	// Rejections — операции, отклонённые по доменной ошибке
	Rejections = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ledger_rejections_total",
			Help: "Operations rejected with a domain error, by operation and kind",
		},
		[]string{"operation", "kind"},
	)

	// Retries — повторы после конфликта блокировок
	Retries = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ledger_concurrent_retries_total",
			Help: "Transparent retries after a concurrent modification",
		},
		[]string{"operation"},
	)

	// SubscriptionOps — операции с подписками (purchase, renew, cancel)
	SubscriptionOps = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "premium_subscription_operations_total",
			Help: "Subscription lifecycle operations by action",
		},
		[]string{"action"},
	)

	// PremiumFlagsCleared — сколько флагов is_premium сняла последняя проверка истечений
	PremiumFlagsCleared = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "premium_flags_cleared_last_sweep",
			Help: "isPremium flags cleared by the last expiry sweep",
		},
	)

	// LedgerMismatches — пользователи, у которых баланс не равен сумме леджера
	LedgerMismatches = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "ledger_balance_mismatches",
			Help: "Users whose coin balance differs from the ledger sum at last reconciliation",
		},
	)
)
