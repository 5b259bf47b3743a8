package api

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/jewelmart/approval-core/internal/config"
)

// AccessClaims 访问令牌声明
type AccessClaims struct {
	CompanyID string `json:"company_id"`
	Role      string `json:"role"`
	jwt.RegisteredClaims
}

// AuthMiddleware JWT 认证中间件
// 校验 Bearer 令牌并把 user_id/company_id 写入请求上下文。
// 配置关闭认证时直接放行,用于本地开发和测试。
func AuthMiddleware(cfg config.AuthConfig) gin.HandlerFunc {
	return func(c *gin.Context) {
		if !cfg.Enabled {
			c.Next()
			return
		}

		header := c.GetHeader("Authorization")
		if header == "" {
			Error(c, http.StatusUnauthorized, "missing authorization header", "")
			c.Abort()
			return
		}

		parts := strings.SplitN(header, " ", 2)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
			Error(c, http.StatusUnauthorized, "invalid authorization header", "expected Bearer token")
			c.Abort()
			return
		}

		claims, err := parseToken(parts[1], cfg)
		if err != nil {
			Error(c, http.StatusUnauthorized, "invalid token", err.Error())
			c.Abort()
			return
		}

		c.Set("user_id", claims.Subject)
		c.Set("company_id", claims.CompanyID)
		c.Set("role", claims.Role)
		c.Next()
	}
}

// parseToken 解析并校验令牌
func parseToken(tokenString string, cfg config.AuthConfig) (*AccessClaims, error) {
	options := []jwt.ParserOption{
		jwt.WithValidMethods([]string{"HS256", "HS384", "HS512"}),
	}
	if cfg.Issuer != "" {
		options = append(options, jwt.WithIssuer(cfg.Issuer))
	}

	token, err := jwt.ParseWithClaims(tokenString, &AccessClaims{}, func(t *jwt.Token) (interface{}, error) {
		return []byte(cfg.JWTSecret), nil
	}, options...)
	if err != nil {
		return nil, fmt.Errorf("failed to parse token: %w", err)
	}

	claims, ok := token.Claims.(*AccessClaims)
	if !ok || !token.Valid {
		return nil, fmt.Errorf("token claims are not valid")
	}
	if claims.Subject == "" {
		return nil, fmt.Errorf("token has no subject")
	}
	return claims, nil
}
