package api

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"

	"lovespark.app/admin/internal/common"
)

type errorBody struct {
	Kind      common.Kind `json:"kind"`
	Message   string      `json:"message"`
	RequestID string      `json:"requestId,omitempty"`
}

// respond пишет {"data": ...}.
func respond(c *gin.Context, status int, data any) {
	c.JSON(status, gin.H{"data": data})
}

// fail переводит ошибку в HTTP-ответ {"error": {...}}.
// Доменные ошибки — 4xx с их сообщением, остальное — 500 без деталей.
func fail(c *gin.Context, err error) {
	status := statusFor(err)
	body := errorBody{
		Kind:      common.KindOf(err),
		Message:   err.Error(),
		RequestID: c.GetString(requestIDKey),
	}

	if status >= http.StatusInternalServerError {
		_ = c.Error(err)
		body.Message = "внутренняя ошибка сервера"
		log.WithError(err).WithField("request_id", body.RequestID).Error("Ошибка обработки запроса")
	}

	var de *common.Error
	if errors.As(err, &de) && status < http.StatusInternalServerError {
		body.Message = de.Message
	}

	c.AbortWithStatusJSON(status, gin.H{"error": body})
}

// statusFor — HTTP-статус по виду ошибки.
func statusFor(err error) int {
	switch common.KindOf(err) {
	case common.KindUserNotFound, common.KindPackageNotFound,
		common.KindSubscriptionNotFound, common.KindTransactionNotFound:
		return http.StatusNotFound
	case common.KindInsufficientBalance, common.KindWouldUnderflow, common.KindInvalidReversalTarget:
		return http.StatusUnprocessableEntity
	case common.KindInvalidAmount, common.KindInvalidInput:
		return http.StatusBadRequest
	case common.KindConcurrentModification:
		return http.StatusConflict
	case common.KindUnauthorized:
		return http.StatusUnauthorized
	case common.KindTooManyAttempts:
		return http.StatusTooManyRequests
	}
	return http.StatusInternalServerError
}
