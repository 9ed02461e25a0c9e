package middleware

import (
	"time"

	"modelscout/internal/config"
	"modelscout/internal/logger"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
)

// RequestLogger 创建一个请求日志记录中间件
func RequestLogger(cfg *config.Config) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			// 如果禁用了请求日志，直接处理请求
			if !cfg.Logging.EnableRequestLog {
				return next(c)
			}

			start := time.Now()
			req := c.Request()
			res := c.Response()

			requestID := requestIDOf(c)

			// 处理请求
			err := next(c)
			if err != nil {
				// 先交给错误处理器写出响应，才能拿到最终状态码
				c.Error(err)
			}

			// 构建日志字段
			fields := []zap.Field{
				zap.String("method", req.Method),
				zap.String("uri", req.RequestURI),
				zap.Int("status", res.Status),
				zap.Duration("latency", time.Since(start)),
				zap.String("remote_addr", c.RealIP()),
				zap.String("request_id", requestID),
				zap.String("user_agent", req.UserAgent()),
			}

			// 添加响应大小信息
			if res.Size > 0 {
				fields = append(fields, zap.Int64("response_size", res.Size))
			}

			// 根据状态码决定日志级别
			switch {
			case res.Status >= 500:
				logger.Error("请求完成但服务器错误", fields...)
			case res.Status >= 400:
				logger.Warn("请求完成但客户端错误", fields...)
			default:
				logger.Info("请求完成", fields...)
			}

			return nil
		}
	}
}

// requestIDOf 读取或生成请求ID，并写回请求与响应头
func requestIDOf(c echo.Context) string {
	requestID := c.Response().Header().Get(echo.HeaderXRequestID)
	if requestID == "" {
		requestID = c.Request().Header.Get(echo.HeaderXRequestID)
	}
	if requestID == "" {
		requestID = "req_" + uuid.NewString()
	}
	c.Request().Header.Set(echo.HeaderXRequestID, requestID)
	c.Response().Header().Set(echo.HeaderXRequestID, requestID)
	return requestID
}
