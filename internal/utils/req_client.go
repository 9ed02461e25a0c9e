package utils

import (
	"crypto/tls"
	"fmt"
	"net"
	"net/http"
	"time"
	"unicode/utf8"

	"modelscout/internal/config"
	"modelscout/internal/logger"

	"github.com/bytedance/sonic"
	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"
)

// userAgent 发往提供商的 User-Agent
const userAgent = "modelscout/1.0"

// NewProviderClient 创建访问模型提供商的 resty 客户端。
// 不做重试：模型发现失败直接返回空列表。
func NewProviderClient(cfg *config.Config) *resty.Client {
	// 创建自定义的Transport
	transport := &http.Transport{
		DialContext: (&net.Dialer{
			Timeout:   30 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		MaxIdleConns:        cfg.HTTPClient.MaxIdleConns,
		MaxIdleConnsPerHost: cfg.HTTPClient.MaxIdleConnsPerHost,
		MaxConnsPerHost:     cfg.HTTPClient.MaxConnsPerHost,
		IdleConnTimeout:     90 * time.Second,
		TLSHandshakeTimeout: 10 * time.Second,
		TLSClientConfig: &tls.Config{
			InsecureSkipVerify: cfg.Security.TLSSkipVerify,
			MinVersion:         tls.VersionTLS12, // 强制使用TLS 1.2+
		},
	}

	client := resty.NewWithClient(&http.Client{
		Transport: transport,
		Timeout:   cfg.HTTPClient.Timeout,
	}).
		SetRetryCount(0).
		SetJSONMarshaler(sonic.Marshal).
		SetJSONUnmarshaler(sonic.Unmarshal).
		SetHeaders(map[string]string{
			"Accept":     "application/json",
			"User-Agent": userAgent,
		}).
		OnBeforeRequest(func(c *resty.Client, r *resty.Request) error {
			logger.Debug("请求模型提供商",
				zap.String("url", r.URL),
				zap.String("method", r.Method),
			)
			return nil
		}).
		OnAfterResponse(func(c *resty.Client, resp *resty.Response) error {
			if resp.StatusCode() >= 400 {
				return fmt.Errorf("provider API error: status %d, body: %s",
					resp.StatusCode(), truncate(resp.String(), 512))
			}
			return nil
		})

	return client
}

// truncate 截断过长的响应体，避免日志膨胀；不会截断多字节字符
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n] + "..."
}
