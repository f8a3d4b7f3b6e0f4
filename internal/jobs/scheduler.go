// Package jobs управляет фоновыми задачами (cron).
// scheduler.go настраивает расписание: снятие просроченного премиума
// и сверку балансов с леджером.
package jobs

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	log "github.com/sirupsen/logrus"

	"lovespark.app/admin/internal/common"
	"lovespark.app/admin/internal/config"
	"lovespark.app/admin/internal/features/coins"
)

// Sweeper снимает флаг премиума у пользователей без действующей подписки.
type Sweeper interface {
	SweepExpired(ctx context.Context) (int, error)
}

// Reconciler сверяет балансы с суммой леджера.
type Reconciler interface {
	Reconcile(ctx context.Context) ([]coins.Mismatch, error)
}

// Scheduler управляет фоновыми задачами.
type Scheduler struct {
	cron       *cron.Cron
	loc        *time.Location
	sweeper    Sweeper
	reconciler Reconciler
	sweepSpec  string
	reconSpec  string
}

// NewScheduler создаёт планировщик в часовом поясе APP_TIMEZONE.
func NewScheduler(cfg *config.Config, sweeper Sweeper, reconciler Reconciler) *Scheduler {
	loc := common.LoadLocation(cfg.AppTimezone)

	return &Scheduler{
		cron:       cron.New(cron.WithLocation(loc)),
		loc:        loc,
		sweeper:    sweeper,
		reconciler: reconciler,
		sweepSpec:  cfg.PremiumSweepCron,
		reconSpec:  cfg.LedgerReconcileCron,
	}
}

// Start регистрирует задачи и запускает cron.
// Некорректное расписание — ошибка, задачи не запускаются.
func (s *Scheduler) Start(ctx context.Context) error {
	if _, err := s.cron.AddFunc(s.sweepSpec, func() { s.runSweep(ctx) }); err != nil {
		return fmt.Errorf("расписание PREMIUM_SWEEP_CRON %q: %w", s.sweepSpec, err)
	}
	if _, err := s.cron.AddFunc(s.reconSpec, func() { s.runReconcile(ctx) }); err != nil {
		return fmt.Errorf("расписание LEDGER_RECONCILE_CRON %q: %w", s.reconSpec, err)
	}

	s.cron.Start()
	log.WithFields(log.Fields{
		"tz":        s.loc.String(),
		"sweep":     s.sweepSpec,
		"reconcile": s.reconSpec,
	}).Info("Планировщик задач запущен")
	return nil
}

// Stop останавливает планировщик и ждёт завершения текущих задач.
func (s *Scheduler) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
	log.Info("Планировщик задач остановлен")
}

func (s *Scheduler) runSweep(ctx context.Context) {
	log.Debug("[CRON] Проверка просроченного премиума")
	cleared, err := s.sweeper.SweepExpired(ctx)
	if err != nil {
		log.WithError(err).Error("[CRON] Ошибка снятия премиума")
	}
	if cleared > 0 {
		log.WithField("cleared", cleared).Info("[CRON] Премиум снят у пользователей с истёкшей подпиской")
	}
}

func (s *Scheduler) runReconcile(ctx context.Context) {
	log.Debug("[CRON] Сверка леджера")
	mismatches, err := s.reconciler.Reconcile(ctx)
	if err != nil {
		log.WithError(err).Error("[CRON] Ошибка сверки леджера")
		return
	}
	if len(mismatches) > 0 {
		log.WithField("mismatches", len(mismatches)).Error("[CRON] Найдены расхождения балансов")
	}
}
