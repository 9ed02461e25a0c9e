package apiserver

import (
	"fmt"
	"net/http"
	"strings"

	"modelscout/internal/config"
	"modelscout/internal/middleware"
	"modelscout/internal/service"

	"github.com/cespare/xxhash/v2"
	"github.com/labstack/echo/v4"
)

// healthPath 健康检查路径，不需要认证
const healthPath = "/healthz"

// ModelListResponse 模型列表响应
type ModelListResponse struct {
	Object   string              `json:"object"`
	Provider string              `json:"provider"`
	Data     []service.ModelInfo `json:"data"`
}

// RecommendedResponse 推荐模型响应
type RecommendedResponse struct {
	Object string   `json:"object"`
	Data   []string `json:"data"`
}

// RegisterRoutes 注册 Echo 路由
func RegisterRoutes(e *echo.Echo, cfg *config.Config, modelService service.ModelService, limiter *middleware.RateLimiter) {
	// 设置自定义错误处理器
	e.HTTPErrorHandler = middleware.ErrorHandler()

	// 添加中间件
	e.Use(middleware.RequestLogger(cfg))
	e.Use(middleware.RateLimit(limiter))
	e.Use(middleware.BearerAuth(cfg, healthPath))

	e.GET(healthPath, func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
	})

	// 获取提供商可用的模型列表
	e.GET("/v1/models", createListModelsHandler(modelService))
	// 获取推荐模型列表
	e.GET("/v1/models/recommended", createRecommendedHandler(modelService))
	// 判断单个模型是否推荐
	e.GET("/v1/models/classify", createClassifyHandler(modelService))
}

// createListModelsHandler 创建模型列表处理器
func createListModelsHandler(modelService service.ModelService) echo.HandlerFunc {
	return func(c echo.Context) error {
		provider, models, err := modelService.ListModels(c.Request().Context(), c.QueryParam("provider"))
		if err != nil {
			return err
		}

		etag := modelsETag(provider, models)
		c.Response().Header().Set("ETag", etag)
		if match := c.Request().Header.Get("If-None-Match"); match != "" && match == etag {
			return c.NoContent(http.StatusNotModified)
		}

		return c.JSON(http.StatusOK, ModelListResponse{
			Object:   "list",
			Provider: provider,
			Data:     models,
		})
	}
}

// createRecommendedHandler 创建推荐模型处理器
func createRecommendedHandler(modelService service.ModelService) echo.HandlerFunc {
	return func(c echo.Context) error {
		return c.JSON(http.StatusOK, RecommendedResponse{
			Object: "list",
			Data:   modelService.RecommendedModels(),
		})
	}
}

// createClassifyHandler 创建模型分类处理器，缺少 model 参数时视为未指定模型
func createClassifyHandler(modelService service.ModelService) echo.HandlerFunc {
	return func(c echo.Context) error {
		var model *string
		if params := c.QueryParams(); params.Has("model") {
			m := params.Get("model")
			model = &m
		}
		return c.JSON(http.StatusOK, modelService.Classify(model))
	}
}

// modelsETag 根据提供商和模型ID计算弱校验值
func modelsETag(provider string, models []service.ModelInfo) string {
	h := xxhash.New()
	_, _ = h.WriteString(provider)
	for _, m := range models {
		_, _ = h.WriteString("\n")
		_, _ = h.WriteString(m.ID)
	}
	return fmt.Sprintf(`W/"%s-%x"`, strings.ReplaceAll(provider, `"`, ""), h.Sum64())
}
