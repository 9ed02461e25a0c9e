package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"modelscout/internal/apiserver"
	"modelscout/internal/catalog"
	"modelscout/internal/config"
	"modelscout/internal/logger"
	appmw "modelscout/internal/middleware"
	"modelscout/internal/provider"
	"modelscout/internal/service"
	"modelscout/internal/utils"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"go.uber.org/zap"
)

func main() {
	// 加载配置
	cfg, err := config.Load()
	if err != nil {
		panic(fmt.Sprintf("Failed to load config: %v", err))
	}

	// 设置日志
	logger.SetFormat(cfg.Logging.Format)
	logger.SetLevel(cfg.Logging.Level)

	// 创建应用实例
	app := newApp(cfg)

	logger.Info("启动服务器",
		zap.String("address", cfg.GetAddress()),
		zap.Strings("providers", cfg.ProviderNames()),
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := app.Run(ctx); err != nil {
		logger.Fatal("服务器异常退出", zap.Error(err))
	}
}

// App 应用实例
type App struct {
	config  *config.Config
	server  *echo.Echo
	limiter *appmw.RateLimiter
}

// newApp 创建应用实例
func newApp(cfg *config.Config) *App {
	// 模型目录：失败原因只在 debug 级别记录
	lister := provider.NewLister(utils.NewProviderClient(cfg))
	models := catalog.New(cfg, lister,
		catalog.WithLogger(logger.With(zap.String("component", "catalog"))),
		catalog.WithFetchTimeout(cfg.Catalog.FetchTimeout),
	)

	// 设置 Echo Server
	e := echo.New()
	e.Logger.SetOutput(io.Discard)
	e.HideBanner = true
	e.HidePort = true

	// 配置服务器
	e.Server.ReadTimeout = cfg.Server.ReadTimeout
	e.Server.WriteTimeout = cfg.Server.WriteTimeout
	e.Server.IdleTimeout = cfg.Server.IdleTimeout

	// 添加基础中间件
	e.Use(middleware.Recover())
	e.Use(middleware.CORS())
	if cfg.Security.RequestTimeout > 0 {
		e.Use(middleware.ContextTimeout(cfg.Security.RequestTimeout))
	}

	// 注册路由
	limiter := appmw.NewRateLimiterFromConfig(cfg)
	apiserver.RegisterRoutes(e, cfg, service.NewModelService(cfg, models), limiter)

	return &App{
		config:  cfg,
		server:  e,
		limiter: limiter,
	}
}

// Run 启动应用，ctx 结束后优雅关闭
func (a *App) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		if err := a.server.Start(a.config.GetAddress()); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logger.Info("正在关闭服务器")
	if a.limiter != nil {
		a.limiter.Close()
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return a.server.Shutdown(shutdownCtx)
}
