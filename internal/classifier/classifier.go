package classifier

import (
	"strings"

	"github.com/samber/lo"
)

// ModelNamespacePrefix 部分提供商在模型ID前附加的命名空间前缀
const ModelNamespacePrefix = "models/"

// recommendedModels 推荐模型列表，进程内只读
var recommendedModels = [...]string{
	"o4-mini",
	"o3",
	"deepseek-v3",
}

// RecommendedModels 返回推荐模型列表的副本
func RecommendedModels() []string {
	out := make([]string, len(recommendedModels))
	copy(out, recommendedModels[:])
	return out
}

// NormalizeModelID 去掉一次 "models/" 前缀，得到规范模型ID
func NormalizeModelID(id string) string {
	return strings.TrimPrefix(id, ModelNamespacePrefix)
}

// IsRecommended 判断模型是否在推荐列表中。
// 未指定模型（nil、空串或仅空白）视为推荐，调用方不应为此给出警告。
func IsRecommended(model *string) bool {
	if model == nil {
		return true
	}
	return IsRecommendedString(*model)
}

// IsRecommendedString 与 IsRecommended 相同，接收非可选字符串
func IsRecommendedString(model string) bool {
	trimmed := strings.TrimSpace(model)
	if trimmed == "" {
		return true
	}
	return lo.Contains(recommendedModels[:], trimmed)
}

// IsSupported 始终返回 true，保留给历史调用方
//
// Deprecated: 模型校验已移除，不要在新代码中使用。
func IsSupported(model *string) bool {
	return true
}
