// Package app инициализирует все компоненты приложения.
// app.go — точка сборки: создаёт БД-пул, репозитории, сервисы, обработчики
// и собирает из них HTTP API, Telegram-консоль и планировщик.
package app

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/mymmrac/telego"
	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"lovespark.app/admin/internal/api"
	"lovespark.app/admin/internal/bot"
	"lovespark.app/admin/internal/common"
	"lovespark.app/admin/internal/config"
	"lovespark.app/admin/internal/db/postgres"
	"lovespark.app/admin/internal/features/admin"
	"lovespark.app/admin/internal/features/coins"
	"lovespark.app/admin/internal/features/premium"
	"lovespark.app/admin/internal/features/users"
	"lovespark.app/admin/internal/jobs"
)

// App содержит все компоненты приложения.
type App struct {
	cfg       *config.Config
	DB        *pgxpool.Pool
	Server    *api.Server
	Bot       *bot.Bot // nil, если консоль выключена
	Scheduler *jobs.Scheduler
}

// New создаёт и инициализирует приложение.
// Порядок инициализации важен — компоненты зависят друг от друга.
func New(ctx context.Context, cfg *config.Config) (*App, error) {
	// === 1. База данных ===
	pool, err := postgres.NewPool(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("ошибка подключения к БД: %w", err)
	}
	if err := postgres.Migrate(ctx, pool); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ошибка миграций: %w", err)
	}

	loc := common.LoadLocation(cfg.AppTimezone)

	// === 2. Репозитории ===
	locker := postgres.NewUserLocker(pool, cfg.LedgerLockTimeout)
	usersRepo := users.NewRepository(pool)
	coinsRepo := coins.NewRepository(locker)
	premiumRepo := premium.NewRepository(locker)
	adminRepo := admin.NewRepository(pool)

	// === 3. Сервисы ===
	usersService := users.NewService(usersRepo, cfg.PaginationDefaultLimit, cfg.PaginationMaxLimit)
	coinsService := coins.NewService(coinsRepo, common.SystemClock, cfg)
	premiumService := premium.NewService(premiumRepo, common.SystemClock, cfg)
	adminService := admin.NewService(adminRepo, common.SystemClock, cfg)

	// === 4. HTTP API ===
	server := api.NewServer(cfg, api.Services{
		Auth:    adminService,
		Coins:   coinsService,
		Premium: premiumService,
		Users:   usersService,
		Health:  pool.Ping,
	})

	// === 5. Telegram-консоль ===
	var console *bot.Bot
	if cfg.BotEnabled() {
		console, err = newConsole(ctx, cfg, loc, adminService, coinsService, premiumService)
		if err != nil {
			pool.Close()
			return nil, err
		}
	} else {
		log.Info("Telegram-консоль выключена (нет токена или FEATURE_BOT_ENABLED=false)")
	}

	// === 6. Планировщик задач ===
	scheduler := jobs.NewScheduler(cfg, premiumService, coinsService)

	return &App{
		cfg:       cfg,
		DB:        pool,
		Server:    server,
		Bot:       console,
		Scheduler: scheduler,
	}, nil
}

func newConsole(
	ctx context.Context,
	cfg *config.Config,
	loc *time.Location,
	adminService *admin.Service,
	coinsService *coins.Service,
	premiumService *premium.Service,
) (*bot.Bot, error) {
	var opts []telego.BotOption
	if cfg.AppEnv == "development" {
		opts = append(opts, telego.WithDefaultDebugLogger())
	}

	botAPI, err := telego.NewBot(cfg.TelegramBotToken, opts...)
	if err != nil {
		return nil, fmt.Errorf("ошибка создания Telegram API: %w", err)
	}
	me, err := botAPI.GetMe(ctx)
	if err != nil {
		return nil, fmt.Errorf("ошибка авторизации в Telegram: %w", err)
	}
	log.Infof("Авторизован как @%s", me.Username)

	return bot.New(
		botAPI, cfg,
		admin.NewHandler(adminService),
		coins.NewHandler(coinsService, loc),
		premium.NewHandler(premiumService, loc),
	), nil
}

// Run запускает все компоненты и ждёт отмены ctx или падения любого из них.
func (a *App) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)

	if a.cfg.FeatureJobsEnabled {
		if err := a.Scheduler.Start(ctx); err != nil {
			return err
		}
		g.Go(func() error {
			<-ctx.Done()
			a.Scheduler.Stop()
			return nil
		})
	}

	g.Go(func() error {
		return a.Server.Run(ctx)
	})

	if a.Bot != nil {
		g.Go(func() error {
			return a.Bot.Start(ctx)
		})
	}

	return g.Wait()
}

// Close освобождает ресурсы.
func (a *App) Close() {
	a.DB.Close()
}
