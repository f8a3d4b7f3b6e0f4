// Package config загружает конфигурацию админ-бэкенда из переменных окружения.
// Используется envconfig для маппинга переменных окружения на поля структуры.
package config

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// Config содержит ВСЕ настройки приложения.
type Config struct {
	// --- Database ---
	// В Docker дефолт "postgres" (имя сервиса в docker-compose), для локалки DB_HOST=localhost.
	DBHost     string `envconfig:"DB_HOST" default:"postgres"`
	DBPort     int    `envconfig:"DB_PORT" default:"5432"`
	DBUser     string `envconfig:"DB_USER" default:"admin"`
	DBPassword string `envconfig:"DB_PASSWORD" required:"true"`
	DBName     string `envconfig:"DB_NAME" default:"dating"`
	DBSSLMode  string `envconfig:"DB_SSLMODE" default:"disable"`
	DBMaxConns int32  `envconfig:"DB_MAX_CONNS" default:"25"`
	DBMinConns int32  `envconfig:"DB_MIN_CONNS" default:"5"`

	// --- Application ---
	AppEnv      string `envconfig:"APP_ENV" default:"development"`
	AppLogLevel string `envconfig:"APP_LOG_LEVEL" default:"debug"`
	AppTimezone string `envconfig:"APP_TIMEZONE" default:"Europe/Istanbul"`

	// --- HTTP ---
	HTTPAddr         string        `envconfig:"HTTP_ADDR" default:":8080"`
	HTTPReadTimeout  time.Duration `envconfig:"HTTP_READ_TIMEOUT" default:"10s"`
	HTTPWriteTimeout time.Duration `envconfig:"HTTP_WRITE_TIMEOUT" default:"15s"`

	// --- Admin ---
	AdminPasswordHash     string        `envconfig:"ADMIN_PASSWORD_HASH" required:"true"`
	AdminSessionTTL       time.Duration `envconfig:"ADMIN_SESSION_TTL" default:"24h"`
	AdminMaxLoginAttempts int           `envconfig:"ADMIN_MAX_LOGIN_ATTEMPTS" default:"3"`

	// --- Telegram (админ-консоль) ---
	// Пустой токен = бот выключен.
	TelegramBotToken string  `envconfig:"TELEGRAM_BOT_TOKEN"`
	AdminIDsRaw      string  `envconfig:"ADMIN_IDS"`
	AdminIDs         []int64 `envconfig:"-"` // заполним вручную
	// Сколько апдейтов обрабатываем параллельно.
	BotMaxInflight          int `envconfig:"BOT_MAX_INFLIGHT" default:"16"`
	BotUpdateTimeoutSeconds int `envconfig:"BOT_UPDATE_TIMEOUT_SECONDS" default:"60"`

	// --- Rate Limiting ---
	RateLimitRequests int           `envconfig:"RATE_LIMIT_REQUESTS" default:"30"`
	RateLimitWindow   time.Duration `envconfig:"RATE_LIMIT_WINDOW" default:"1m"`

	// --- Ledger ---
	// Сколько раз повторять операцию при конфликте блокировок
	LedgerMaxRetries  int           `envconfig:"LEDGER_MAX_RETRIES" default:"3"`
	LedgerLockTimeout time.Duration `envconfig:"LEDGER_LOCK_TIMEOUT" default:"5s"`

	// --- Pagination ---
	PaginationDefaultLimit int `envconfig:"PAGINATION_DEFAULT_LIMIT" default:"20"`
	PaginationMaxLimit     int `envconfig:"PAGINATION_MAX_LIMIT" default:"100"`

	// --- Jobs ---
	PremiumSweepCron    string `envconfig:"PREMIUM_SWEEP_CRON" default:"*/5 * * * *"`
	LedgerReconcileCron string `envconfig:"LEDGER_RECONCILE_CRON" default:"0 * * * *"`

	// --- Feature Flags ---
	FeatureBotEnabled  bool `envconfig:"FEATURE_BOT_ENABLED" default:"true"`
	FeatureJobsEnabled bool `envconfig:"FEATURE_JOBS_ENABLED" default:"true"`
}

// DatabaseDSN возвращает строку подключения к PostgreSQL в формате DSN.
func (c *Config) DatabaseDSN() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		c.DBUser, c.DBPassword, c.DBHost, c.DBPort, c.DBName, c.DBSSLMode,
	)
}

// BotEnabled — бот запускается только при наличии токена и флага.
func (c *Config) BotEnabled() bool {
	return c.FeatureBotEnabled && c.TelegramBotToken != ""
}

// IsAdminID проверяет, есть ли Telegram ID в списке ADMIN_IDS.
func (c *Config) IsAdminID(id int64) bool {
	for _, a := range c.AdminIDs {
		if a == id {
			return true
		}
	}
	return false
}

func (c *Config) Validate() error {
	if c.DBMaxConns <= 0 || c.DBMinConns < 0 || c.DBMinConns > c.DBMaxConns {
		return fmt.Errorf("некорректные DB_MIN_CONNS/DB_MAX_CONNS")
	}
	if c.AdminMaxLoginAttempts <= 0 {
		return fmt.Errorf("ADMIN_MAX_LOGIN_ATTEMPTS должен быть > 0")
	}
	if c.AdminSessionTTL <= 0 {
		return fmt.Errorf("ADMIN_SESSION_TTL должен быть > 0")
	}
	if c.LedgerMaxRetries < 0 {
		return fmt.Errorf("LEDGER_MAX_RETRIES не может быть отрицательным")
	}
	if c.PaginationDefaultLimit <= 0 || c.PaginationMaxLimit < c.PaginationDefaultLimit {
		return fmt.Errorf("некорректные PAGINATION_DEFAULT_LIMIT/PAGINATION_MAX_LIMIT")
	}
	if c.BotEnabled() {
		if len(c.AdminIDs) == 0 {
			return fmt.Errorf("ADMIN_IDS обязателен, когда включён бот")
		}
		if c.BotMaxInflight <= 0 {
			return fmt.Errorf("BOT_MAX_INFLIGHT должен быть > 0")
		}
		if c.BotUpdateTimeoutSeconds <= 0 {
			return fmt.Errorf("BOT_UPDATE_TIMEOUT_SECONDS должен быть > 0")
		}
	}
	return nil
}

// Load читает переменные окружения и заполняет структуру Config.
func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("не удалось загрузить конфигурацию: %w", err)
	}

	ids, err := parseInt64CSV(cfg.AdminIDsRaw)
	if err != nil {
		return nil, fmt.Errorf("ADMIN_IDS parse: %w", err)
	}
	cfg.AdminIDs = ids

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func parseInt64CSV(s string) ([]int64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}
	parts := strings.Split(s, ",")
	out := make([]int64, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		v, err := strconv.ParseInt(p, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("bad int64 %q: %w", p, err)
		}
		out = append(out, v)
	}
	return out, nil
}
