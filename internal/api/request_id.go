package api

import (
	"context"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// RequestIDMiddleware 请求 ID 中间件
// 透传客户端带来的 X-Request-ID,没有则生成一个
func RequestIDMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		requestID := c.GetHeader("X-Request-ID")
		if requestID == "" {
			requestID = uuid.NewString()
		}

		c.Set("request_id", requestID)
		c.Header("X-Request-ID", requestID)
		c.Next()
	}
}

// requestContext 构造带请求元信息的 context
// 审计日志从 context 取 request_id/ip/user_agent/user_id
func requestContext(c *gin.Context) context.Context {
	ctx := c.Request.Context()
	ctx = context.WithValue(ctx, "request_id", c.GetString("request_id"))
	ctx = context.WithValue(ctx, "ip", c.ClientIP())
	ctx = context.WithValue(ctx, "user_agent", c.Request.UserAgent())
	if userID := c.GetString("user_id"); userID != "" {
		ctx = context.WithValue(ctx, "user_id", userID)
	}
	return ctx
}
