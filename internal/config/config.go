package config

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/bytedance/sonic"
	"github.com/joho/godotenv"
	"github.com/samber/lo"
	"gopkg.in/yaml.v3"
)

// Config 应用配置结构
type Config struct {
	// 服务器配置
	Server ServerConfig `yaml:"server" json:"server"`

	// 模型提供商配置，键为提供商标识（不区分大小写）
	Providers map[string]ProviderConfig `yaml:"providers" json:"providers"`

	// 模型目录配置
	Catalog CatalogConfig `yaml:"catalog" json:"catalog"`

	// 安全配置
	Security SecurityConfig `yaml:"security" json:"security"`

	// HTTP 客户端配置
	HTTPClient HTTPClientConfig `yaml:"http_client" json:"http_client"`

	// 日志配置
	Logging LoggingConfig `yaml:"logging" json:"logging"`
}

// ServerConfig 服务器配置
type ServerConfig struct {
	Host         string        `yaml:"host" json:"host"`
	Port         int           `yaml:"port" json:"port"`
	ReadTimeout  time.Duration `yaml:"read_timeout" json:"read_timeout"`
	WriteTimeout time.Duration `yaml:"write_timeout" json:"write_timeout"`
	IdleTimeout  time.Duration `yaml:"idle_timeout" json:"idle_timeout"`
}

// ProviderConfig 单个提供商的凭据与地址
type ProviderConfig struct {
	APIKey  string `yaml:"api_key" json:"api_key"`
	BaseURL string `yaml:"base_url" json:"base_url"`
}

// CatalogConfig 模型目录配置
type CatalogConfig struct {
	DefaultProvider string        `yaml:"default_provider" json:"default_provider"`
	FetchTimeout    time.Duration `yaml:"fetch_timeout" json:"fetch_timeout"`
}

// SecurityConfig 安全配置
type SecurityConfig struct {
	BearerToken      string        `yaml:"bearer_token" json:"bearer_token"`
	TLSSkipVerify    bool          `yaml:"tls_skip_verify" json:"tls_skip_verify"`
	RateLimitEnabled bool          `yaml:"rate_limit_enabled" json:"rate_limit_enabled"`
	RateLimitRPS     int           `yaml:"rate_limit_rps" json:"rate_limit_rps"`
	RequestTimeout   time.Duration `yaml:"request_timeout" json:"request_timeout"`
}

// HTTPClientConfig HTTP 客户端配置
type HTTPClientConfig struct {
	Timeout             time.Duration `yaml:"timeout" json:"timeout"`
	MaxIdleConns        int           `yaml:"max_idle_conns" json:"max_idle_conns"`
	MaxIdleConnsPerHost int           `yaml:"max_idle_conns_per_host" json:"max_idle_conns_per_host"`
	MaxConnsPerHost     int           `yaml:"max_conns_per_host" json:"max_conns_per_host"`
}

// LoggingConfig 日志配置
type LoggingConfig struct {
	Level            string `yaml:"level" json:"level"`
	Format           string `yaml:"format" json:"format"`
	EnableRequestLog bool   `yaml:"enable_request_log" json:"enable_request_log"`
}

// defaultBaseURLs 内置的提供商地址，配置文件或环境变量可覆盖
var defaultBaseURLs = map[string]string{
	"openai":     "https://api.openai.com/v1",
	"deepseek":   "https://api.deepseek.com/v1",
	"gemini":     "https://generativelanguage.googleapis.com/v1beta/openai",
	"groq":       "https://api.groq.com/openai/v1",
	"openrouter": "https://openrouter.ai/api/v1",
}

// Load 加载配置，优先级：环境变量 > 配置文件 > 默认值
func Load() (*Config, error) {
	// 1. 设置默认配置
	config := getDefaultConfig()

	// 2. 尝试加载 .env 文件
	_ = godotenv.Load()

	// 3. 尝试加载配置文件
	if err := loadConfigFile(config); err != nil {
		// 配置文件加载失败不是致命错误，继续使用环境变量和默认值
		fmt.Printf("Warning: Failed to load config file: %v\n", err)
	}

	// 4. 环境变量覆盖
	overrideWithEnv(config)

	// 5. 验证配置
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("配置验证失败: %w", err)
	}

	return config, nil
}

// getDefaultConfig 获取默认配置
func getDefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host:         "0.0.0.0",
			Port:         8080,
			ReadTimeout:  30 * time.Second,
			WriteTimeout: 30 * time.Second,
			IdleTimeout:  60 * time.Second,
		},
		Providers: map[string]ProviderConfig{},
		Catalog: CatalogConfig{
			DefaultProvider: "openai",
			FetchTimeout:    30 * time.Second,
		},
		Security: SecurityConfig{
			RateLimitEnabled: false, // 默认禁用，需要明确配置
			RateLimitRPS:     0,
			RequestTimeout:   30 * time.Second,
		},
		HTTPClient: HTTPClientConfig{
			Timeout:             30 * time.Second,
			MaxIdleConns:        100,
			MaxIdleConnsPerHost: 10,
			MaxConnsPerHost:     50,
		},
		Logging: LoggingConfig{
			Level:            "info",
			Format:           "json",
			EnableRequestLog: true,
		},
	}
}

// loadConfigFile 加载配置文件
func loadConfigFile(config *Config) error {
	// 环境变量指定的配置文件优先
	if configPath := os.Getenv("CONFIG_FILE"); configPath != "" {
		return loadFromFile(configPath, config)
	}

	configPaths := []string{
		"config.yaml",
		"config.yml",
		"config.json",
		"./configs/config.yaml",
		"./configs/config.yml",
		"./configs/config.json",
	}

	for _, path := range configPaths {
		if _, err := os.Stat(path); err == nil {
			return loadFromFile(path, config)
		}
	}

	return fmt.Errorf("no config file found")
}

// loadFromFile 从文件加载配置
func loadFromFile(path string, config *Config) error {
	file, err := os.Open(path)
	if err != nil {
		return err
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		return err
	}

	ext := strings.ToLower(filepath.Ext(path))
	switch ext {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, config)
	case ".json":
		err = sonic.Unmarshal(data, config)
	default:
		return fmt.Errorf("unsupported config file format: %s", ext)
	}
	if err != nil {
		return err
	}

	config.Providers = canonicalProviders(config.Providers)
	return nil
}

// canonicalProviders 将提供商键统一为小写
func canonicalProviders(in map[string]ProviderConfig) map[string]ProviderConfig {
	out := make(map[string]ProviderConfig, len(in))
	for name, pc := range in {
		out[CanonicalProvider(name)] = pc
	}
	return out
}

// overrideWithEnv 用环境变量覆盖配置
func overrideWithEnv(config *Config) {
	// 服务器配置
	if host := os.Getenv("SERVER_HOST"); host != "" {
		config.Server.Host = host
	}
	if port := os.Getenv("PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil {
			config.Server.Port = p
		}
	}
	if port := os.Getenv("SERVER_PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil {
			config.Server.Port = p
		}
	}
	if timeout := os.Getenv("SERVER_READ_TIMEOUT"); timeout != "" {
		if t, err := time.ParseDuration(timeout); err == nil {
			config.Server.ReadTimeout = t
		}
	}

	// 提供商配置：已知提供商与配置文件中出现的提供商都可以被覆盖
	if config.Providers == nil {
		config.Providers = map[string]ProviderConfig{}
	}
	names := lo.Uniq(append(lo.Keys(defaultBaseURLs), lo.Keys(config.Providers)...))
	for _, name := range names {
		pc := config.Providers[name]
		prefix := envPrefix(name)
		if key := os.Getenv(prefix + "_API_KEY"); key != "" {
			pc.APIKey = key
		}
		if url := os.Getenv(prefix + "_BASE_URL"); url != "" {
			pc.BaseURL = url
		}
		if pc != (ProviderConfig{}) {
			config.Providers[name] = pc
		}
	}

	// 目录配置
	if p := os.Getenv("DEFAULT_PROVIDER"); p != "" {
		config.Catalog.DefaultProvider = p
	}
	if timeout := os.Getenv("CATALOG_FETCH_TIMEOUT"); timeout != "" {
		if t, err := time.ParseDuration(timeout); err == nil {
			config.Catalog.FetchTimeout = t
		}
	}

	// 安全配置
	if token := os.Getenv("BEARER_TOKEN"); token != "" {
		config.Security.BearerToken = token
	}
	if skipVerify := os.Getenv("TLS_SKIP_VERIFY"); skipVerify != "" {
		if skip, err := strconv.ParseBool(skipVerify); err == nil {
			config.Security.TLSSkipVerify = skip
		}
	}
	if rateLimitEnabled := os.Getenv("RATE_LIMIT_ENABLED"); rateLimitEnabled != "" {
		if enabled, err := strconv.ParseBool(rateLimitEnabled); err == nil {
			config.Security.RateLimitEnabled = enabled
		}
	}
	if rateLimitRPS := os.Getenv("RATE_LIMIT_RPS"); rateLimitRPS != "" {
		if rps, err := strconv.Atoi(rateLimitRPS); err == nil {
			config.Security.RateLimitRPS = rps
		}
	}

	// 日志配置
	if level := os.Getenv("LOG_LEVEL"); level != "" {
		config.Logging.Level = level
	}
	if format := os.Getenv("LOG_FORMAT"); format != "" {
		config.Logging.Format = format
	}
}

// envPrefix 提供商对应的环境变量前缀，例如 google-ai -> GOOGLE_AI
func envPrefix(provider string) string {
	return strings.ToUpper(strings.ReplaceAll(provider, "-", "_"))
}

// Validate 验证配置
func (c *Config) Validate() error {
	var errors []string

	// 验证端口范围
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		errors = append(errors, "SERVER_PORT must be between 1 and 65535")
	}

	// 验证超时配置
	if c.Server.ReadTimeout < 0 {
		errors = append(errors, "SERVER_READ_TIMEOUT must be positive")
	}
	if c.HTTPClient.Timeout < 0 {
		errors = append(errors, "HTTP_CLIENT_TIMEOUT must be positive")
	}
	if c.Catalog.FetchTimeout <= 0 {
		errors = append(errors, "CATALOG_FETCH_TIMEOUT must be positive")
	}

	// 验证限流配置
	if c.Security.RateLimitRPS <= 0 {
		// 如果RPS<=0，自动禁用限流
		c.Security.RateLimitEnabled = false
	}
	if c.Security.RateLimitRPS > 10000 {
		errors = append(errors, "RATE_LIMIT_RPS should not exceed 10000 for performance reasons")
	}

	// 验证日志级别
	validLevels := []string{"debug", "info", "warn", "error", "dpanic", "panic", "fatal"}
	if !lo.Contains(validLevels, c.Logging.Level) {
		errors = append(errors, fmt.Sprintf("LOG_LEVEL must be one of: %s", strings.Join(validLevels, ", ")))
	}

	if len(errors) > 0 {
		return fmt.Errorf("%s", strings.Join(errors, "; "))
	}

	return nil
}

// GetAddress 获取服务器监听地址
func (c *Config) GetAddress() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}

// CanonicalProvider 提供商标识规范化为小写
func CanonicalProvider(provider string) string {
	return strings.ToLower(strings.TrimSpace(provider))
}

// APIKey 返回提供商的 API Key，未配置时为空串
func (c *Config) APIKey(provider string) string {
	return c.Providers[CanonicalProvider(provider)].APIKey
}

// BaseURL 返回提供商的接口地址，未配置时回退到内置地址
func (c *Config) BaseURL(provider string) string {
	name := CanonicalProvider(provider)
	if url := c.Providers[name].BaseURL; url != "" {
		return strings.TrimRight(url, "/")
	}
	return defaultBaseURLs[name]
}

// ProviderNames 返回已配置 API Key 的提供商，按字母排序
func (c *Config) ProviderNames() []string {
	names := lo.Filter(lo.Keys(c.Providers), func(name string, _ int) bool {
		return c.Providers[name].APIKey != ""
	})
	slices.Sort(names)
	return names
}
