package apiserver

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"modelscout/internal/config"
	"modelscout/internal/errors"
	"modelscout/internal/middleware"
	"modelscout/internal/service"

	"github.com/bytedance/sonic"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubModelService struct {
	lastProvider string
}

func (s *stubModelService) ListModels(_ context.Context, provider string) (string, []service.ModelInfo, error) {
	s.lastProvider = provider
	if provider == "bad!" {
		return "", nil, errors.NewInvalidProviderError(provider)
	}
	if provider == "" {
		provider = "openai"
	}
	return provider, []service.ModelInfo{
		{ID: "gpt-4o", Object: "model", OwnedBy: provider},
		{ID: "o3", Object: "model", OwnedBy: provider, Recommended: true},
	}, nil
}

func (s *stubModelService) RecommendedModels() []string {
	return []string{"o4-mini", "o3", "deepseek-v3"}
}

func (s *stubModelService) Classify(model *string) service.Classification {
	c := service.Classification{Recommended: model == nil || *model == "o3", Supported: true}
	if model != nil {
		c.Model = *model
	}
	return c
}

func newTestServer(t *testing.T, cfg *config.Config, limiter *middleware.RateLimiter) (*echo.Echo, *stubModelService) {
	t.Helper()
	if cfg == nil {
		cfg = &config.Config{}
	}
	e := echo.New()
	svc := &stubModelService{}
	RegisterRoutes(e, cfg, svc, limiter)
	return e, svc
}

func do(e *echo.Echo, method, target string, headers map[string]string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, nil)
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func TestListModelsRoute(t *testing.T) {
	e, svc := newTestServer(t, nil, nil)

	rec := do(e, http.MethodGet, "/v1/models?provider=Gemini", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Gemini", svc.lastProvider)
	assert.NotEmpty(t, rec.Header().Get("ETag"))

	var body ModelListResponse
	require.NoError(t, sonic.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "list", body.Object)
	assert.Equal(t, "Gemini", body.Provider)
	require.Len(t, body.Data, 2)
	assert.True(t, body.Data[1].Recommended)
}

func TestListModelsETag(t *testing.T) {
	e, _ := newTestServer(t, nil, nil)

	first := do(e, http.MethodGet, "/v1/models", nil)
	etag := first.Header().Get("ETag")
	require.NotEmpty(t, etag)

	second := do(e, http.MethodGet, "/v1/models", map[string]string{"If-None-Match": etag})
	assert.Equal(t, http.StatusNotModified, second.Code)
	assert.Empty(t, second.Body.String())

	other := do(e, http.MethodGet, "/v1/models?provider=groq", map[string]string{"If-None-Match": etag})
	assert.Equal(t, http.StatusOK, other.Code)
}

func TestListModelsInvalidProviderRoute(t *testing.T) {
	e, _ := newTestServer(t, nil, nil)

	rec := do(e, http.MethodGet, "/v1/models?provider=bad!", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), `"code":2000`)
}

func TestRecommendedRoute(t *testing.T) {
	e, _ := newTestServer(t, nil, nil)

	rec := do(e, http.MethodGet, "/v1/models/recommended", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var body RecommendedResponse
	require.NoError(t, sonic.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, []string{"o4-mini", "o3", "deepseek-v3"}, body.Data)
}

func TestClassifyRoute(t *testing.T) {
	e, _ := newTestServer(t, nil, nil)

	tests := []struct {
		target string
		want   service.Classification
	}{
		{"/v1/models/classify?model=o3", service.Classification{Model: "o3", Recommended: true, Supported: true}},
		{"/v1/models/classify?model=gpt-unknown-123", service.Classification{Model: "gpt-unknown-123", Supported: true}},
		{"/v1/models/classify", service.Classification{Recommended: true, Supported: true}},
	}

	for _, tt := range tests {
		t.Run(tt.target, func(t *testing.T) {
			rec := do(e, http.MethodGet, tt.target, nil)
			require.Equal(t, http.StatusOK, rec.Code)

			var got service.Classification
			require.NoError(t, sonic.Unmarshal(rec.Body.Bytes(), &got))
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestBearerAuth(t *testing.T) {
	cfg := &config.Config{Security: config.SecurityConfig{BearerToken: "secret-token"}}
	e, _ := newTestServer(t, cfg, nil)

	assert.Equal(t, http.StatusUnauthorized, do(e, http.MethodGet, "/v1/models", nil).Code)
	assert.Equal(t, http.StatusUnauthorized,
		do(e, http.MethodGet, "/v1/models", map[string]string{"Authorization": "Bearer wrong"}).Code)
	assert.Equal(t, http.StatusOK,
		do(e, http.MethodGet, "/v1/models", map[string]string{"Authorization": "Bearer secret-token"}).Code)

	// 健康检查不需要认证
	assert.Equal(t, http.StatusOK, do(e, http.MethodGet, healthPath, nil).Code)
}

func TestRateLimit(t *testing.T) {
	limiter := middleware.NewRateLimiter(1)
	t.Cleanup(limiter.Close)
	cfg := &config.Config{Logging: config.LoggingConfig{EnableRequestLog: true}}
	e, _ := newTestServer(t, cfg, limiter)

	headers := map[string]string{"X-Real-IP": "10.0.0.1"}
	assert.Equal(t, http.StatusOK, do(e, http.MethodGet, "/v1/models/recommended", headers).Code)

	rec := do(e, http.MethodGet, "/v1/models/recommended", headers)
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.NotEmpty(t, rec.Header().Get(echo.HeaderXRequestID))

	// 其他客户端不受影响
	assert.Equal(t, http.StatusOK,
		do(e, http.MethodGet, "/v1/models/recommended", map[string]string{"X-Real-IP": "10.0.0.2"}).Code)
}

func TestUnknownRoute(t *testing.T) {
	e, _ := newTestServer(t, nil, nil)

	rec := do(e, http.MethodGet, "/v1/nothing", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Contains(t, rec.Body.String(), "request_id")
}
