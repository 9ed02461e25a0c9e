package middleware

import (
	"context"
	"net"
	"strings"
	"sync"
	"time"

	"modelscout/internal/config"
	"modelscout/internal/errors"

	"github.com/labstack/echo/v4"
	"golang.org/x/time/rate"
)

// clientEntry 客户端限流器条目
type clientEntry struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// RateLimiter 按客户端IP限流
type RateLimiter struct {
	mu      sync.Mutex
	clients map[string]*clientEntry
	rate    rate.Limit
	burst   int
	ctx     context.Context
	cancel  context.CancelFunc
}

// NewRateLimiter 创建新的限流器，并启动后台清理协程
func NewRateLimiter(rps int) *RateLimiter {
	ctx, cancel := context.WithCancel(context.Background())
	rl := &RateLimiter{
		clients: make(map[string]*clientEntry),
		rate:    rate.Limit(rps),
		burst:   rps, // 突发请求等于RPS
		ctx:     ctx,
		cancel:  cancel,
	}

	go rl.cleanupClients()

	return rl
}

// GetLimiter 获取特定客户端的限流器
func (rl *RateLimiter) GetLimiter(clientIP string) *rate.Limiter {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	if entry, exists := rl.clients[clientIP]; exists {
		entry.lastSeen = time.Now()
		return entry.limiter
	}

	limiter := rate.NewLimiter(rl.rate, rl.burst)
	rl.clients[clientIP] = &clientEntry{
		limiter:  limiter,
		lastSeen: time.Now(),
	}
	return limiter
}

// cleanupClients 定期清理不活跃的客户端限流器
func (rl *RateLimiter) cleanupClients() {
	ticker := time.NewTicker(2 * time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-rl.ctx.Done():
			return
		case <-ticker.C:
			rl.cleanupInactiveClients(10 * time.Minute)
		}
	}
}

// cleanupInactiveClients 清理超过 threshold 未访问的客户端
func (rl *RateLimiter) cleanupInactiveClients(threshold time.Duration) {
	now := time.Now()

	rl.mu.Lock()
	defer rl.mu.Unlock()

	for ip, entry := range rl.clients {
		if now.Sub(entry.lastSeen) > threshold {
			delete(rl.clients, ip)
		}
	}
}

// Close 关闭限流器，停止清理协程
func (rl *RateLimiter) Close() {
	rl.cancel()
}

// getClientIP 安全地获取客户端IP
func getClientIP(c echo.Context) string {
	// 优先级：X-Real-IP > X-Forwarded-For > RemoteAddr
	if ip := c.Request().Header.Get("X-Real-IP"); ip != "" {
		if net.ParseIP(ip) != nil {
			return ip
		}
	}

	if ips := c.Request().Header.Get("X-Forwarded-For"); ips != "" {
		// X-Forwarded-For 可能包含多个IP，取第一个
		first, _, _ := strings.Cut(ips, ",")
		first = strings.TrimSpace(first)
		if net.ParseIP(first) != nil {
			return first
		}
	}

	if ip, _, err := net.SplitHostPort(c.Request().RemoteAddr); err == nil {
		return ip
	}

	return c.Request().RemoteAddr
}

// RateLimit 创建限流中间件，limiter 为 nil 时不限流
func RateLimit(limiter *RateLimiter) echo.MiddlewareFunc {
	if limiter == nil {
		return func(next echo.HandlerFunc) echo.HandlerFunc {
			return next
		}
	}

	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if !limiter.GetLimiter(getClientIP(c)).Allow() {
				return errors.NewTooManyRequestsError()
			}
			return next(c)
		}
	}
}

// NewRateLimiterFromConfig 根据配置创建限流器，未启用时返回 nil
func NewRateLimiterFromConfig(cfg *config.Config) *RateLimiter {
	if !cfg.Security.RateLimitEnabled || cfg.Security.RateLimitRPS <= 0 {
		return nil
	}
	return NewRateLimiter(cfg.Security.RateLimitRPS)
}
