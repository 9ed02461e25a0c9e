package service

import (
	"context"
	"regexp"

	"modelscout/internal/catalog"
	"modelscout/internal/classifier"
	"modelscout/internal/config"
	"modelscout/internal/errors"
	"modelscout/internal/logger"

	"github.com/samber/lo"
	"go.uber.org/zap"
)

// providerPattern 合法的提供商标识
var providerPattern = regexp.MustCompile(`^[a-z0-9][a-z0-9._-]*$`)

// ModelInfo 模型列表中的一项
type ModelInfo struct {
	ID          string `json:"id"`
	Object      string `json:"object"`
	OwnedBy     string `json:"owned_by"`
	Recommended bool   `json:"recommended"`
}

// Classification 单个模型的分类结果
type Classification struct {
	Model       string `json:"model"`
	Recommended bool   `json:"recommended"`
	Supported   bool   `json:"supported"`
}

// ModelService 模型服务接口
type ModelService interface {
	// ListModels 获取提供商可用的模型列表，provider 为空时使用默认提供商
	ListModels(ctx context.Context, provider string) (string, []ModelInfo, error)
	// RecommendedModels 获取推荐模型列表
	RecommendedModels() []string
	// Classify 判断模型是否推荐
	Classify(model *string) Classification
}

// modelService 模型服务实现
type modelService struct {
	config  *config.Config
	catalog *catalog.Catalog
}

// NewModelService 创建模型服务实例
func NewModelService(cfg *config.Config, c *catalog.Catalog) ModelService {
	return &modelService{
		config:  cfg,
		catalog: c,
	}
}

// ListModels 获取提供商可用的模型列表
func (s *modelService) ListModels(ctx context.Context, provider string) (string, []ModelInfo, error) {
	if provider == "" {
		provider = s.config.Catalog.DefaultProvider
	}
	name := catalog.CanonicalProvider(provider)
	if !providerPattern.MatchString(name) {
		return "", nil, errors.NewInvalidProviderError(provider)
	}
	// 未配置的提供商不进入目录，否则失败结果会被永久缓存
	if s.config.APIKey(name) == "" && s.config.BaseURL(name) == "" {
		return "", nil, errors.NewInvalidProviderError(provider)
	}

	ids := s.catalog.GetAvailableModels(ctx, name)

	logger.Info("获取可用模型列表",
		zap.String("provider", name),
		zap.Int("model_count", len(ids)),
	)

	models := lo.Map(ids, func(id string, _ int) ModelInfo {
		return ModelInfo{
			ID:          id,
			Object:      "model",
			OwnedBy:     name,
			Recommended: classifier.IsRecommendedString(id),
		}
	})
	return name, models, nil
}

// RecommendedModels 获取推荐模型列表
func (s *modelService) RecommendedModels() []string {
	return classifier.RecommendedModels()
}

// Classify 判断模型是否推荐
func (s *modelService) Classify(model *string) Classification {
	c := Classification{
		Recommended: classifier.IsRecommended(model),
		Supported:   classifier.IsSupported(model),
	}
	if model != nil {
		c.Model = *model
	}
	return c
}
