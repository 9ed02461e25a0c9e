package middleware

import (
	stderrors "errors"
	"net/http"

	"modelscout/internal/errors"
	"modelscout/internal/logger"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
)

// ErrorHandler 创建统一的错误处理器
func ErrorHandler() echo.HTTPErrorHandler {
	return func(err error, c echo.Context) {
		if c.Response().Committed {
			return
		}

		// 获取请求ID
		requestID := c.Response().Header().Get(echo.HeaderXRequestID)
		if requestID == "" {
			requestID = c.Request().Header.Get(echo.HeaderXRequestID)
		}

		// 处理应用错误
		var appErr *errors.AppError
		if stderrors.As(err, &appErr) {
			status, response := appErr.HTTPResponse()

			// 添加请求ID到响应中
			if errMap, ok := response["error"].(map[string]any); ok {
				errMap["request_id"] = requestID
			}

			fields := []zap.Field{
				zap.Int("status", status),
				zap.Int("error_code", int(appErr.Code)),
				zap.String("error_msg", appErr.Message),
				zap.Error(appErr.Err),
			}
			if status >= http.StatusInternalServerError {
				logger.Error("应用错误", fields...)
			} else {
				logger.Debug("应用错误", fields...)
			}

			_ = c.JSON(status, response)
			return
		}

		// 处理Echo框架错误
		var echoErr *echo.HTTPError
		if stderrors.As(err, &echoErr) {
			status := echoErr.Code
			message := http.StatusText(status)
			if m, ok := echoErr.Message.(string); ok {
				message = m
			}

			response := map[string]any{
				"error": map[string]any{
					"code":       status,
					"message":    message,
					"request_id": requestID,
				},
			}

			logger.Debug("框架错误",
				zap.Int("status", status),
				zap.String("error_msg", message),
			)

			_ = c.JSON(status, response)
			return
		}

		// 处理其他错误
		status := http.StatusInternalServerError
		response := map[string]any{
			"error": map[string]any{
				"code":       status,
				"message":    "服务器内部错误",
				"request_id": requestID,
			},
		}

		logger.Error("未分类错误",
			zap.Int("status", status),
			zap.Error(err),
		)

		_ = c.JSON(status, response)
	}
}
