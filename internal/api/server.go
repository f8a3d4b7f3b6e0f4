// Package api — HTTP API админки на gin. Каждая операция леджера и подписок
// доступна отдельным эндпоинтом; ответы {"data": ...} или {"error": {...}}.
package api

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	log "github.com/sirupsen/logrus"

	"lovespark.app/admin/internal/config"
	"lovespark.app/admin/internal/features/admin"
	"lovespark.app/admin/internal/features/coins"
	"lovespark.app/admin/internal/features/premium"
	"lovespark.app/admin/internal/features/users"
	"lovespark.app/admin/internal/middleware"
)

// AuthService — вход администратора.
type AuthService interface {
	Login(ctx context.Context, subject, password string) (*admin.Session, error)
	Authenticate(ctx context.Context, token string) (*admin.Session, error)
}

// CoinsService — операции леджера монет.
type CoinsService interface {
	ApplyAdjustment(ctx context.Context, in coins.AdjustInput) (*coins.AdjustResult, error)
	ReverseAdminTransaction(ctx context.Context, id int64) error
	ListTransactions(ctx context.Context, f coins.ListFilter) (*coins.TransactionPage, error)
	Summary(ctx context.Context, userID int64) (*coins.Summary, error)
}

// PremiumService — операции с подписками.
type PremiumService interface {
	Purchase(ctx context.Context, in premium.PurchaseInput) (*premium.Subscription, error)
	Renew(ctx context.Context, in premium.RenewInput) (*premium.Subscription, error)
	Cancel(ctx context.Context, id int64) (*premium.Subscription, error)
	Get(ctx context.Context, id int64) (*premium.SubscriptionView, error)
	ListSubscriptions(ctx context.Context, f premium.ListFilter) (*premium.SubscriptionPage, error)
	ListPackages(ctx context.Context, onlyActive bool) ([]*premium.Package, error)
	View(sub *premium.Subscription) premium.SubscriptionView
}

// UsersService — чтение пользователей и модерация.
type UsersService interface {
	Get(ctx context.Context, id int64) (*users.User, error)
	List(ctx context.Context, f users.ListFilter) ([]*users.User, int, error)
	MarkFake(ctx context.Context, id int64, fake bool) error
}

// Services — зависимости обработчиков.
type Services struct {
	Auth    AuthService
	Coins   CoinsService
	Premium PremiumService
	Users   UsersService
	// Health проверяет доступность БД для /healthz
	Health func(ctx context.Context) error
}

// Server — HTTP-сервер админки.
type Server struct {
	cfg     *config.Config
	engine  *gin.Engine
	http    *http.Server
	limiter *middleware.RateLimiter
}

// NewServer собирает роутер со всеми эндпоинтами.
func NewServer(cfg *config.Config, svc Services) *Server {
	if cfg.AppEnv == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	limiter := middleware.NewRateLimiter(cfg.RateLimitRequests, cfg.RateLimitWindow)
	engine := gin.New()
	engine.Use(requestID(), requestLogger(), recovery())

	h := &handlers{svc: svc}

	engine.GET("/healthz", h.health)
	engine.GET("/metrics", gin.WrapH(promhttp.Handler()))

	v1 := engine.Group("/api/v1", rateLimit(limiter))
	v1.POST("/auth/login", h.login)

	authed := v1.Group("", requireSession(svc.Auth))
	{
		authed.POST("/coins/adjustments", h.adjustCoins)
		authed.DELETE("/coins/transactions/:id", h.reverseTransaction)
		authed.GET("/coins/transactions", h.listTransactions)

		authed.GET("/users", h.listUsers)
		authed.GET("/users/:id", h.getUser)
		authed.GET("/users/:id/coins", h.userCoins)
		authed.PUT("/users/:id/fake", h.markFake)

		authed.POST("/subscriptions", h.purchase)
		authed.GET("/subscriptions", h.listSubscriptions)
		authed.GET("/subscriptions/:id", h.getSubscription)
		authed.POST("/subscriptions/:id/renew", h.renew)
		authed.POST("/subscriptions/:id/cancel", h.cancel)

		authed.GET("/packages", h.listPackages)
	}

	return &Server{
		cfg:     cfg,
		engine:  engine,
		limiter: limiter,
		http: &http.Server{
			Addr:         cfg.HTTPAddr,
			Handler:      engine,
			ReadTimeout:  cfg.HTTPReadTimeout,
			WriteTimeout: cfg.HTTPWriteTimeout,
		},
	}
}

// Handler возвращает http.Handler (для тестов).
func (s *Server) Handler() http.Handler {
	return s.engine
}

// Run слушает HTTP_ADDR до отмены ctx, затем плавно останавливается.
func (s *Server) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		log.WithField("addr", s.cfg.HTTPAddr).Info("HTTP API запущен")
		if err := s.http.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		s.limiter.Close()
		return err
	case <-ctx.Done():
	}

	log.Info("HTTP API останавливается...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.cfg.HTTPWriteTimeout)
	defer cancel()
	err := s.http.Shutdown(shutdownCtx)
	s.limiter.Close()
	return err
}
