package provider

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/bytedance/sonic"
	"github.com/go-resty/resty/v2"
	"github.com/samber/lo"
	"github.com/sashabaranov/go-openai"
)

var (
	// ErrTransportFailure 网络或协议错误
	ErrTransportFailure = errors.New("transport failure")
	// ErrMalformedResponse 响应无法解析
	ErrMalformedResponse = errors.New("malformed response")
)

// modelsPath OpenAI 兼容的模型列表路径
const modelsPath = "/models"

// rawModelsList 逐条保留原始记录，单条记录解析失败时跳过而不是整体失败
type rawModelsList struct {
	Object string            `json:"object"`
	Data   []json.RawMessage `json:"data"`
}

// Lister 通过 OpenAI 兼容接口列出模型
type Lister struct {
	client *resty.Client
}

// NewLister 创建 Lister
func NewLister(client *resty.Client) *Lister {
	return &Lister{client: client}
}

// ListModels 请求 {baseURL}/models，返回原始模型ID（未规范化、未排序）
func (l *Lister) ListModels(ctx context.Context, baseURL, apiKey string) ([]string, error) {
	if baseURL == "" {
		return nil, fmt.Errorf("%w: empty base url", ErrTransportFailure)
	}

	resp, err := l.client.R().
		SetContext(ctx).
		SetAuthToken(apiKey).
		Get(strings.TrimRight(baseURL, "/") + modelsPath)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrTransportFailure, err)
	}
	if !resp.IsSuccess() {
		return nil, fmt.Errorf("%w: unexpected status %d", ErrTransportFailure, resp.StatusCode())
	}

	models, err := decodeModels(resp.Body())
	if err != nil {
		return nil, err
	}

	return lo.FilterMap(models, func(m openai.Model, _ int) (string, bool) {
		return m.ID, m.ID != ""
	}), nil
}

// decodeModels 解析模型列表，跳过没有字符串 id 的记录
func decodeModels(body []byte) ([]openai.Model, error) {
	var raw rawModelsList
	if err := sonic.Unmarshal(body, &raw); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}

	models := make([]openai.Model, 0, len(raw.Data))
	for _, item := range raw.Data {
		var m openai.Model
		if err := sonic.Unmarshal(item, &m); err != nil {
			continue
		}
		models = append(models, m)
	}
	return models, nil
}
