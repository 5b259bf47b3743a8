package api

import (
	"strings"

	"github.com/gin-gonic/gin"
)

// VersionMiddleware 解析请求的 API 版本
// 以 URL 路径中的版本段 (/api/v1/...) 为准,
// API-Version 请求头存在时覆盖路径版本。
// 解析结果写入上下文并回显到响应头,供日志和调用方核对。
func VersionMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		version := "v1"

		parts := strings.Split(strings.TrimPrefix(c.Request.URL.Path, "/"), "/")
		if len(parts) >= 2 && parts[0] == "api" &&
			strings.HasPrefix(parts[1], "v") && len(parts[1]) > 1 {
			version = parts[1]
		}

		if header := c.GetHeader("API-Version"); header != "" {
			version = header
		}

		c.Set("api_version", version)
		c.Header("X-API-Version", version)

		c.Next()
	}
}
