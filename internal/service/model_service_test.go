package service

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"modelscout/internal/catalog"
	"modelscout/internal/config"
	apperrors "modelscout/internal/errors"
	"modelscout/internal/provider"
	"modelscout/internal/utils"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestConfig(baseURL string) *config.Config {
	return &config.Config{
		Providers: map[string]config.ProviderConfig{
			"gemini": {APIKey: "g-key", BaseURL: baseURL},
		},
		Catalog: config.CatalogConfig{
			DefaultProvider: "gemini",
			FetchTimeout:    time.Second,
		},
		HTTPClient: config.HTTPClientConfig{
			Timeout:             time.Second,
			MaxIdleConns:        10,
			MaxIdleConnsPerHost: 2,
			MaxConnsPerHost:     4,
		},
	}
}

func newTestService(t *testing.T) (ModelService, *atomic.Int32) {
	t.Helper()
	svc, hits, _ := newTestServiceWithCatalog(t)
	return svc, hits
}

func newTestServiceWithCatalog(t *testing.T) (ModelService, *atomic.Int32, *catalog.Catalog) {
	t.Helper()
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"object":"list","data":[
			{"id":"models/gemini-pro"},{"id":"o3"},{"id":"models/gemini-flash"}
		]}`))
	}))
	t.Cleanup(srv.Close)

	cfg := newTestConfig(srv.URL)
	lister := provider.NewLister(utils.NewProviderClient(cfg))
	cat := catalog.New(cfg, lister)
	return NewModelService(cfg, cat), &hits, cat
}

func TestListModelsEndToEnd(t *testing.T) {
	svc, hits := newTestService(t)

	name, models, err := svc.ListModels(context.Background(), "")
	require.NoError(t, err)
	assert.Equal(t, "gemini", name)
	require.Len(t, models, 3)

	assert.Equal(t, ModelInfo{ID: "gemini-flash", Object: "model", OwnedBy: "gemini"}, models[0])
	assert.Equal(t, "gemini-pro", models[1].ID)
	assert.Equal(t, ModelInfo{ID: "o3", Object: "model", OwnedBy: "gemini", Recommended: true}, models[2])

	_, again, err := svc.ListModels(context.Background(), "GEMINI")
	require.NoError(t, err)
	assert.Equal(t, models, again)
	assert.EqualValues(t, 1, hits.Load())
}

func TestListModelsWithoutCredential(t *testing.T) {
	svc, hits := newTestService(t)

	name, models, err := svc.ListModels(context.Background(), "OpenAI")
	require.NoError(t, err)
	assert.Equal(t, "openai", name)
	assert.Empty(t, models)
	assert.Zero(t, hits.Load())
}

func TestListModelsInvalidProvider(t *testing.T) {
	svc, _ := newTestService(t)

	_, _, err := svc.ListModels(context.Background(), "../etc")
	var appErr *apperrors.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, apperrors.ErrInvalidProvider, appErr.Code)
}

func TestClassify(t *testing.T) {
	svc, _ := newTestService(t)

	model := "o4-mini"
	assert.Equal(t, Classification{Model: "o4-mini", Recommended: true, Supported: true}, svc.Classify(&model))

	unknown := "gpt-unknown-123"
	assert.Equal(t, Classification{Model: unknown, Recommended: false, Supported: true}, svc.Classify(&unknown))

	assert.Equal(t, Classification{Recommended: true, Supported: true}, svc.Classify(nil))
	assert.Equal(t, []string{"o4-mini", "o3", "deepseek-v3"}, svc.RecommendedModels())
}

func TestListModelsUnconfiguredProviderIsNotCached(t *testing.T) {
	svc, hits, cat := newTestServiceWithCatalog(t)

	for _, name := range []string{"junk-0", "junk-1", "Junk-2"} {
		_, models, err := svc.ListModels(context.Background(), name)

		var appErr *apperrors.AppError
		require.ErrorAs(t, err, &appErr)
		assert.Equal(t, http.StatusBadRequest, appErr.Status)
		assert.Equal(t, apperrors.ErrInvalidProvider, appErr.Code)
		assert.Nil(t, models)

		_, ok := cat.Cached(name)
		assert.False(t, ok, name)
	}
	assert.Zero(t, hits.Load())

	// 内置提供商即使没有 API Key 也会进入目录
	_, _, err := svc.ListModels(context.Background(), "openai")
	require.NoError(t, err)
	_, ok := cat.Cached("openai")
	assert.True(t, ok)
}
