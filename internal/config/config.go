package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config 聚合整个服务的配置项。
type Config struct {
	Env       string
	Server    ServerConfig
	Provider  ProviderConfig
	Dispatch  DispatchConfig
	RateLimit RateLimitConfig
	Log       LogConfig
}

// Load 从环境变量加载配置。缺少 OMNIDIMENSION_API_KEY 不会导致失败。
func Load() (*Config, error) {
	server, err := loadServerConfig()
	if err != nil {
		return nil, err
	}

	provider, err := loadProviderConfig()
	if err != nil {
		return nil, err
	}

	dispatch, err := loadDispatchConfig()
	if err != nil {
		return nil, err
	}

	rateLimit, err := loadRateLimitConfig()
	if err != nil {
		return nil, err
	}

	return &Config{
		Env:       getEnvOrDefault("APP_ENV", "development"),
		Server:    server,
		Provider:  provider,
		Dispatch:  dispatch,
		RateLimit: rateLimit,
		Log: LogConfig{
			Level:  getEnvOrDefault("LOG_LEVEL", "info"),
			Format: getEnvOrDefault("LOG_FORMAT", "console"),
		},
	}, nil
}

// ServerConfig 描述 HTTP 服务配置。
type ServerConfig struct {
	Addr string
}

// loadServerConfig 解析服务器监听地址。
func loadServerConfig() (ServerConfig, error) {
	port := strings.TrimSpace(os.Getenv("PORT"))
	if port == "" {
		port = "3001"
	}

	if strings.Contains(port, ":") {
		// 允许用户直接传入 ":3001" 或 "127.0.0.1:3001"。
		return ServerConfig{Addr: port}, nil
	}

	if strings.Contains(port, " ") {
		return ServerConfig{}, fmt.Errorf("invalid PORT value: %q", port)
	}

	return ServerConfig{Addr: ":" + port}, nil
}

// ProviderConfig 描述 Omnidimension 接入配置。
type ProviderConfig struct {
	APIKey        string
	BaseURL       string
	UserAgent     string
	Model         string
	Temperature   float32
	MaxTokens     int
	Timeout       time.Duration
	HealthTimeout time.Duration
}

// Configured 表示是否提供了 API 凭证。
func (c ProviderConfig) Configured() bool {
	return c.APIKey != ""
}

func loadProviderConfig() (ProviderConfig, error) {
	temperature := float32(0.8)
	if override, err := parseOptionalFloat32Env("PROVIDER_TEMPERATURE"); err != nil {
		return ProviderConfig{}, err
	} else if override != nil {
		temperature = *override
	}

	maxTokens := 300
	if override, err := parseOptionalIntEnv("PROVIDER_MAX_TOKENS"); err != nil {
		return ProviderConfig{}, err
	} else if override != nil {
		if *override < 1 {
			return ProviderConfig{}, fmt.Errorf("invalid PROVIDER_MAX_TOKENS value %d: must be positive", *override)
		}
		maxTokens = *override
	}

	timeout, err := parseSecondsEnv("PROVIDER_TIMEOUT_SECONDS", 30)
	if err != nil {
		return ProviderConfig{}, err
	}

	healthTimeout, err := parseSecondsEnv("PROVIDER_HEALTH_TIMEOUT_SECONDS", 5)
	if err != nil {
		return ProviderConfig{}, err
	}

	return ProviderConfig{
		APIKey:        strings.TrimSpace(os.Getenv("OMNIDIMENSION_API_KEY")),
		BaseURL:       strings.TrimRight(getEnvOrDefault("OMNIDIMENSION_BASE_URL", "https://api.omnidim.io"), "/"),
		UserAgent:     getEnvOrDefault("PROVIDER_USER_AGENT", "Captain-Focus-Backend/1.0.0"),
		Model:         getEnvOrDefault("PROVIDER_MODEL", "gpt-4o-mini"),
		Temperature:   temperature,
		MaxTokens:     maxTokens,
		Timeout:       timeout,
		HealthTimeout: healthTimeout,
	}, nil
}

// DispatchConfig 描述消息分发的输入限制。
type DispatchConfig struct {
	MaxMessageBytes int
}

func loadDispatchConfig() (DispatchConfig, error) {
	maxBytes := 8192
	if override, err := parseOptionalIntEnv("CHAT_MAX_MESSAGE_BYTES"); err != nil {
		return DispatchConfig{}, err
	} else if override != nil {
		if *override < 1 {
			return DispatchConfig{}, fmt.Errorf("invalid CHAT_MAX_MESSAGE_BYTES value %d: must be positive", *override)
		}
		maxBytes = *override
	}
	return DispatchConfig{MaxMessageBytes: maxBytes}, nil
}

// RateLimitConfig 描述按客户端 IP 的限流配置，默认关闭。
type RateLimitConfig struct {
	Enabled bool
	RPS     float64
	Burst   int
}

func loadRateLimitConfig() (RateLimitConfig, error) {
	enabled, err := parseBoolEnv("RATE_LIMIT_ENABLED", false)
	if err != nil {
		return RateLimitConfig{}, err
	}

	rps := 5.0
	if override, err := parseOptionalFloatEnv("RATE_LIMIT_RPS"); err != nil {
		return RateLimitConfig{}, err
	} else if override != nil {
		rps = *override
	}

	burst := 10
	if override, err := parseOptionalIntEnv("RATE_LIMIT_BURST"); err != nil {
		return RateLimitConfig{}, err
	} else if override != nil {
		burst = *override
	}

	if enabled && (rps <= 0 || burst < 1) {
		return RateLimitConfig{}, fmt.Errorf("invalid rate limit: rps=%v burst=%d", rps, burst)
	}

	return RateLimitConfig{Enabled: enabled, RPS: rps, Burst: burst}, nil
}

// LogConfig 描述日志输出。
type LogConfig struct {
	Level  string
	Format string
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		return value
	}
	return defaultValue
}

func parseBoolEnv(key string, defaultValue bool) (bool, error) {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return defaultValue, nil
	}

	val, err := strconv.ParseBool(raw)
	if err != nil {
		return false, fmt.Errorf("invalid %s value %q: %w", key, raw, err)
	}
	return val, nil
}

func parseSecondsEnv(key string, defaultSeconds int) (time.Duration, error) {
	seconds, err := parseOptionalIntEnv(key)
	if err != nil {
		return 0, err
	}
	if seconds == nil {
		return time.Duration(defaultSeconds) * time.Second, nil
	}
	if *seconds < 1 {
		return 0, fmt.Errorf("invalid %s value %d: must be positive", key, *seconds)
	}
	return time.Duration(*seconds) * time.Second, nil
}

func parseOptionalFloatEnv(key string) (*float64, error) {
	raw, ok := os.LookupEnv(key)
	if !ok {
		return nil, nil
	}

	value := strings.TrimSpace(raw)
	if value == "" {
		return nil, nil
	}

	val, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid %s value %q: %w", key, value, err)
	}
	return &val, nil
}

func parseOptionalIntEnv(key string) (*int, error) {
	raw, ok := os.LookupEnv(key)
	if !ok {
		return nil, nil
	}

	value := strings.TrimSpace(raw)
	if value == "" {
		return nil, nil
	}

	val, err := strconv.Atoi(value)
	if err != nil {
		return nil, fmt.Errorf("invalid %s value %q: %w", key, value, err)
	}
	return &val, nil
}

func parseOptionalFloat32Env(key string) (*float32, error) {
	raw, ok := os.LookupEnv(key)
	if !ok {
		return nil, nil
	}

	value := strings.TrimSpace(raw)
	if value == "" {
		return nil, nil
	}

	val, err := strconv.ParseFloat(value, 32)
	if err != nil {
		return nil, fmt.Errorf("invalid %s value %q: %w", key, value, err)
	}
	result := float32(val)
	return &result, nil
}
