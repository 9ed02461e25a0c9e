package catalog

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"sync"
	"time"

	"modelscout/internal/classifier"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

// ErrMissingCredential 提供商未配置 API Key，不会发起网络请求
var ErrMissingCredential = errors.New("missing credential")

// defaultFetchTimeout 单次拉取的默认超时
const defaultFetchTimeout = 30 * time.Second

// Credentials 提供商凭据与地址的查询接口，*config.Config 实现了它
type Credentials interface {
	APIKey(provider string) string
	BaseURL(provider string) string
}

// Fetcher 远程模型列表接口，*provider.Lister 实现了它
type Fetcher interface {
	ListModels(ctx context.Context, baseURL, apiKey string) ([]string, error)
}

// Option 配置 Catalog
type Option func(*Catalog)

// WithLogger 注入日志，用于记录被吞掉的失败原因
func WithLogger(l *zap.Logger) Option {
	return func(c *Catalog) {
		if l != nil {
			c.log = l
		}
	}
}

// WithFetchTimeout 设置单次拉取的超时
func WithFetchTimeout(d time.Duration) Option {
	return func(c *Catalog) {
		if d > 0 {
			c.timeout = d
		}
	}
}

// Catalog 按提供商缓存可用模型列表。
//
// 每个提供商在进程生命周期内只拉取一次：第一次完成的结果（包括失败时的空列表）
// 被缓存，之后不再重新拉取。同一提供商的并发首次调用共享同一次请求。
type Catalog struct {
	creds   Credentials
	fetcher Fetcher
	log     *zap.Logger
	timeout time.Duration

	mu     sync.RWMutex
	models map[string][]string
	group  singleflight.Group
}

// New 创建 Catalog
func New(creds Credentials, fetcher Fetcher, opts ...Option) *Catalog {
	c := &Catalog{
		creds:   creds,
		fetcher: fetcher,
		log:     zap.NewNop(),
		timeout: defaultFetchTimeout,
		models:  make(map[string][]string),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// CanonicalProvider 提供商标识规范化为小写
func CanonicalProvider(provider string) string {
	return strings.ToLower(strings.TrimSpace(provider))
}

// GetAvailableModels 返回提供商可用的规范模型ID，按字典序升序排列。
// 从不返回错误：任何失败都得到空列表。
func (c *Catalog) GetAvailableModels(ctx context.Context, provider string) []string {
	key := CanonicalProvider(provider)

	if models, ok := c.Cached(key); ok {
		return models
	}

	v, _, _ := c.group.Do(key, func() (any, error) {
		// 等待期间可能已有其他调用写入
		if models, ok := c.lookup(key); ok {
			return models, nil
		}

		models, err := c.fetch(ctx, key)
		if err != nil {
			c.log.Debug("model discovery failed",
				zap.String("provider", key),
				zap.Error(err),
			)
			models = []string{}
		}

		c.mu.Lock()
		c.models[key] = models
		c.mu.Unlock()
		return models, nil
	})

	return slices.Clone(v.([]string))
}

// Cached 返回已缓存的结果，不触发拉取
func (c *Catalog) Cached(provider string) ([]string, bool) {
	models, ok := c.lookup(CanonicalProvider(provider))
	if !ok {
		return nil, false
	}
	return slices.Clone(models), true
}

func (c *Catalog) lookup(key string) ([]string, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	models, ok := c.models[key]
	return models, ok
}

// fetch 执行一次远程拉取并规范化结果
func (c *Catalog) fetch(ctx context.Context, provider string) (models []string, err error) {
	defer func() {
		if r := recover(); r != nil {
			models, err = nil, fmt.Errorf("model listing panicked: %v", r)
		}
	}()

	apiKey := c.creds.APIKey(provider)
	if apiKey == "" {
		return nil, fmt.Errorf("%w: %s", ErrMissingCredential, provider)
	}

	// 结果被所有等待者共享，不能随第一个调用方取消
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.timeout)
	defer cancel()

	raw, err := c.fetcher.ListModels(ctx, c.creds.BaseURL(provider), apiKey)
	if err != nil {
		return nil, err
	}

	return normalize(raw), nil
}

// normalize 去掉命名空间前缀并排序，不去重
func normalize(raw []string) []string {
	models := make([]string, 0, len(raw))
	for _, id := range raw {
		if id == "" {
			continue
		}
		models = append(models, classifier.NormalizeModelID(id))
	}
	slices.Sort(models)
	return models
}
