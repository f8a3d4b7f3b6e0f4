package api

import (
	"fmt"
	"net/http"
	"runtime/debug"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"lovespark.app/admin/internal/common"
	"lovespark.app/admin/internal/middleware"
)

const (
	requestIDKey    = "request_id"
	requestIDHeader = "X-Request-ID"
	sessionKey      = "admin_session"
)

// requestID берёт X-Request-ID клиента или генерирует новый.
func requestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(requestIDHeader)
		if id == "" {
			id = uuid.NewString()
		}
		c.Set(requestIDKey, id)
		c.Writer.Header().Set(requestIDHeader, id)
		c.Next()
	}
}

// requestLogger логирует каждый запрос; уровень зависит от статуса.
func requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		status := c.Writer.Status()
		entry := log.WithFields(log.Fields{
			"request_id": c.GetString(requestIDKey),
			"method":     c.Request.Method,
			"path":       c.Request.URL.Path,
			"status":     status,
			"latency":    time.Since(start).String(),
			"client_ip":  c.ClientIP(),
		})
		if len(c.Errors) > 0 {
			entry = entry.WithField("errors", c.Errors.String())
		}

		switch {
		case status >= http.StatusInternalServerError:
			entry.Error("HTTP запрос")
		case status >= http.StatusBadRequest:
			entry.Warn("HTTP запрос")
		default:
			entry.Info("HTTP запрос")
		}
	}
}

// recovery превращает панику обработчика в 500.
func recovery() gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if r := recover(); r != nil {
				log.WithFields(log.Fields{
					"component":  "http",
					"request_id": c.GetString(requestIDKey),
					"panic":      fmt.Sprintf("%v", r),
					"stack":      string(debug.Stack()),
				}).Error("ПАНИКА в HTTP-обработчике — восстановлено")
				fail(c, fmt.Errorf("panic: %v", r))
			}
		}()
		c.Next()
	}
}

// rateLimit ограничивает запросы с одного IP.
func rateLimit(rl *middleware.RateLimiter) gin.HandlerFunc {
	return func(c *gin.Context) {
		if !rl.Allow("web:" + c.ClientIP()) {
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"error": errorBody{
				Kind:      "RateLimited",
				Message:   "слишком много запросов",
				RequestID: c.GetString(requestIDKey),
			}})
			return
		}
		c.Next()
	}
}

// requireSession пропускает только запросы с действующим Bearer-токеном.
func requireSession(auth AuthService) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		token, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || token == "" {
			fail(c, common.ErrUnauthorized)
			return
		}

		session, err := auth.Authenticate(c.Request.Context(), token)
		if err != nil {
			fail(c, err)
			return
		}
		c.Set(sessionKey, session)
		c.Next()
	}
}
