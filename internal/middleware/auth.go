package middleware

import (
	"crypto/subtle"
	"strings"

	"modelscout/internal/config"
	"modelscout/internal/errors"
	"modelscout/internal/logger"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
)

// BearerAuth 创建一个Bearer Token认证中间件，未配置令牌时不做校验
func BearerAuth(cfg *config.Config, skipPaths ...string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			expected := cfg.Security.BearerToken
			if expected == "" {
				return next(c)
			}
			for _, p := range skipPaths {
				if c.Path() == p {
					return next(c)
				}
			}

			// 获取Authorization header
			auth := c.Request().Header.Get("Authorization")

			// 检查header格式
			if !strings.HasPrefix(auth, "Bearer ") {
				logger.Warn("无效的授权头",
					zap.String("method", c.Request().Method),
					zap.String("uri", c.Request().RequestURI),
					zap.String("remote_addr", c.RealIP()),
				)
				return errors.NewUnauthorizedError("invalid authorization header")
			}

			// 验证token
			token := strings.TrimPrefix(auth, "Bearer ")
			if subtle.ConstantTimeCompare([]byte(token), []byte(expected)) != 1 {
				logger.Warn("无效的Token",
					zap.String("method", c.Request().Method),
					zap.String("uri", c.Request().RequestURI),
					zap.String("remote_addr", c.RealIP()),
					zap.String("token", maskToken(token)),
				)
				return errors.NewUnauthorizedError("invalid token")
			}

			return next(c)
		}
	}
}

// maskToken 只显示部分token以保护安全
func maskToken(token string) string {
	if len(token) <= 4 {
		return "***"
	}
	return token[:4] + "..."
}
