// Package main — точка входа админ-бэкенда.
// Загружает конфигурацию, инициализирует приложение и запускает
// HTTP API, Telegram-консоль и планировщик.
// Поддерживает graceful shutdown по SIGINT/SIGTERM.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	_ "time/tzdata"

	log "github.com/sirupsen/logrus"

	"lovespark.app/admin/internal/app"
	"lovespark.app/admin/internal/config"
)

func main() {
	// Настраиваем логирование
	setupLogging()

	log.Info("=== Админ-бэкенд запускается ===")

	// Загружаем конфигурацию из переменных окружения
	cfg, err := config.Load()
	if err != nil {
		log.WithError(err).Fatal("Не удалось загрузить конфигурацию")
	}

	// Устанавливаем уровень логирования из конфига
	if level, err := log.ParseLevel(cfg.AppLogLevel); err == nil {
		log.SetLevel(level)
	}
	if cfg.AppEnv == "production" {
		log.SetFormatter(&log.JSONFormatter{})
	}

	// Контекст отменяется по Ctrl+C или docker stop
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	application, err := app.New(ctx, cfg)
	if err != nil {
		log.WithError(err).Fatal("Не удалось инициализировать приложение")
	}
	defer application.Close()

	log.Info("=== Админ-бэкенд готов к работе ===")

	if err := application.Run(ctx); err != nil {
		log.WithError(err).Error("Приложение завершилось с ошибкой")
		application.Close()
		os.Exit(1)
	}

	log.Info("=== Админ-бэкенд остановлен ===")
}

// setupLogging настраивает формат логов.
func setupLogging() {
	log.SetFormatter(&log.TextFormatter{
		FullTimestamp:   true,
		TimestampFormat: "2006-01-02 15:04:05",
	})
	log.SetOutput(os.Stdout)
	log.SetLevel(log.DebugLevel)
}
