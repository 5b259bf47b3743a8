package api

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/jewelmart/approval-core/internal/engine"
	"gorm.io/gorm"
)

// APIError API 错误
type APIError struct {
	Code    int
	Message string
	Detail  string
}

func (e *APIError) Error() string {
	return e.Message
}

// ErrorHandlerMiddleware 错误处理中间件
func ErrorHandlerMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if len(c.Errors) > 0 {
			err := c.Errors.Last()

			var apiErr *APIError
			if errors.As(err, &apiErr) {
				Error(c, apiErr.Code, apiErr.Message, apiErr.Detail)
			} else {
				Error(c, http.StatusInternalServerError, "internal server error", err.Error())
			}
		}
	}
}

// WrapError 包装错误
func WrapError(err error, code int, message string) *APIError {
	return &APIError{
		Code:    code,
		Message: message,
		Detail:  err.Error(),
	}
}

// HandleDomainError 按领域错误类型写出响应
// 并发冲突返回 409 并提示重试,超限返回 409 并携带限额信息
func HandleDomainError(c *gin.Context, err error) {
	var (
		configErr     *engine.ConfigurationError
		transitionErr *engine.InvalidTransitionError
		breachErr     *engine.LimitBreachError
	)

	switch {
	case errors.Is(err, engine.ErrRequestNotFound) || errors.Is(err, gorm.ErrRecordNotFound):
		Error(c, http.StatusNotFound, "resource not found", err.Error())
	case errors.Is(err, engine.ErrRequestTerminal):
		Error(c, http.StatusGone, "request already finalized", err.Error())
	case errors.Is(err, engine.ErrVersionConflict):
		Error(c, http.StatusConflict, "request was modified concurrently, retry", err.Error())
	case errors.As(err, &breachErr):
		c.JSON(http.StatusConflict, gin.H{
			"code":    http.StatusConflict,
			"message": "spending limit exceeded",
			"detail":  breachErr.Error(),
			"limit": gin.H{
				"limit_id":  breachErr.LimitID,
				"scope":     breachErr.Scope,
				"period":    breachErr.Period,
				"remaining": breachErr.Remaining,
			},
		})
	case errors.As(err, &transitionErr):
		Error(c, http.StatusConflict, "invalid transition", transitionErr.Reason)
	case errors.As(err, &configErr):
		Error(c, http.StatusUnprocessableEntity, "configuration error", configErr.Reason)
	default:
		Error(c, http.StatusInternalServerError, "internal server error", err.Error())
	}
}
