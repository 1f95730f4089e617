package config

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/cloudwego/eino-ext/components/model/ark"
	"github.com/cloudwego/eino/components/model"
)

// Config 聚合整个服务的配置项。
type Config struct {
	Server    ServerConfig
	Auth      AuthConfig
	Sentiment SentimentConfig
	AI        AIConfig
	Store     StoreConfig
	Redis     RedisConfig
	RateLimit RateLimitConfig
	Telemetry TelemetryConfig
	LogMode   string
}

// Load 从环境变量加载配置。
func Load() (*Config, error) {
	server, err := loadServerConfig()
	if err != nil {
		return nil, err
	}

	auth, err := loadAuthConfig()
	if err != nil {
		return nil, err
	}

	sentiment, err := loadSentimentConfig()
	if err != nil {
		return nil, err
	}

	ai, err := loadAIConfig()
	if err != nil {
		return nil, err
	}

	store, err := loadStoreConfig()
	if err != nil {
		return nil, err
	}

	redis, err := loadRedisConfig()
	if err != nil {
		return nil, err
	}

	rateLimit, err := loadRateLimitConfig()
	if err != nil {
		return nil, err
	}

	telemetry, err := loadTelemetryConfig()
	if err != nil {
		return nil, err
	}

	return &Config{
		Server:    server,
		Auth:      auth,
		Sentiment: sentiment,
		AI:        ai,
		Store:     store,
		Redis:     redis,
		RateLimit: rateLimit,
		Telemetry: telemetry,
		LogMode:   getEnvOrDefault("LOG_MODE", "development"),
	}, nil
}

// ServerConfig 描述 HTTP 服务配置。
type ServerConfig struct {
	Addr           string
	AllowedOrigins []string
}

// loadServerConfig 解析服务器监听地址。
func loadServerConfig() (ServerConfig, error) {
	port := strings.TrimSpace(os.Getenv("PORT"))
	if port == "" {
		port = "5000"
	}

	origins := splitList(getEnvOrDefault("CORS_ALLOWED_ORIGINS", "*"))

	if strings.Contains(port, ":") {
		// accepts ":5000" or "127.0.0.1:5000"
		return ServerConfig{Addr: port, AllowedOrigins: origins}, nil
	}

	if strings.Contains(port, " ") {
		return ServerConfig{}, fmt.Errorf("invalid PORT value: %q", port)
	}

	return ServerConfig{Addr: ":" + port, AllowedOrigins: origins}, nil
}

// AuthConfig holds the bearer-token verification secret.
type AuthConfig struct {
	JWTSecret string
}

func loadAuthConfig() (AuthConfig, error) {
	secret := strings.TrimSpace(os.Getenv("JWT_SECRET"))
	if secret == "" {
		return AuthConfig{}, fmt.Errorf("JWT_SECRET is required")
	}
	return AuthConfig{JWTSecret: secret}, nil
}

// Sentiment backends.
const (
	SentimentBackendHTTP      = "http"
	SentimentBackendOpenAI    = "openai"
	SentimentBackendHeuristic = "heuristic"
)

// SentimentConfig selects and configures the classification upstream.
type SentimentConfig struct {
	Backend       string
	ServiceURL    string
	Timeout       time.Duration
	OpenAIAPIKey  string
	OpenAIBaseURL string
	OpenAIModel   string
}

func loadSentimentConfig() (SentimentConfig, error) {
	timeout, err := parseDurationEnv("SENTIMENT_TIMEOUT", 5*time.Second)
	if err != nil {
		return SentimentConfig{}, err
	}

	backend := strings.ToLower(getEnvOrDefault("SENTIMENT_BACKEND", SentimentBackendHTTP))
	switch backend {
	case SentimentBackendHTTP, SentimentBackendOpenAI, SentimentBackendHeuristic:
	default:
		return SentimentConfig{}, fmt.Errorf("invalid SENTIMENT_BACKEND value %q", backend)
	}

	cfg := SentimentConfig{
		Backend:       backend,
		ServiceURL:    getEnvOrDefault("SENTIMENT_SERVICE_URL", "http://localhost:5001/analyze"),
		Timeout:       timeout,
		OpenAIAPIKey:  strings.TrimSpace(os.Getenv("OPENAI_API_KEY")),
		OpenAIBaseURL: strings.TrimSpace(os.Getenv("OPENAI_BASE_URL")),
		OpenAIModel:   getEnvOrDefault("SENTIMENT_OPENAI_MODEL", "gpt-4o-mini"),
	}

	if cfg.Backend == SentimentBackendOpenAI && cfg.OpenAIAPIKey == "" {
		return SentimentConfig{}, fmt.Errorf("OPENAI_API_KEY is required when SENTIMENT_BACKEND=openai")
	}
	return cfg, nil
}

// AIConfig 描述大模型相关配置。
type AIConfig struct {
	APIKey      string
	AccessKey   string
	SecretKey   string
	Model       string
	BaseURL     string
	Region      string
	Temperature float64
	TopP        float64
	MaxTokens   int
	Timeout     time.Duration
}

// Enabled 表示是否提供了密钥和模型名称。
func (c AIConfig) Enabled() bool {
	return c.Model != "" && (c.APIKey != "" || (c.AccessKey != "" && c.SecretKey != ""))
}

// NewChatModel 使用配置创建一个模型实例。
func (c AIConfig) NewChatModel(ctx context.Context) (model.ChatModel, error) {
	if !c.Enabled() {
		return nil, fmt.Errorf("ark credentials or model missing: set ARK_API_KEY + Model or the AK/SK pair")
	}

	temperature := float32(c.Temperature)
	topP := float32(c.TopP)
	maxTokens := c.MaxTokens

	cfg := &ark.ChatModelConfig{
		BaseURL:     c.BaseURL,
		Region:      c.Region,
		APIKey:      c.APIKey,
		AccessKey:   c.AccessKey,
		SecretKey:   c.SecretKey,
		Model:       c.Model,
		MaxTokens:   &maxTokens,
		Temperature: &temperature,
		TopP:        &topP,
	}

	return ark.NewChatModel(ctx, cfg)
}

func loadAIConfig() (AIConfig, error) {
	temperature, err := parseOptionalFloatEnv("ARK_TEMPERATURE")
	if err != nil {
		return AIConfig{}, err
	}

	topP, err := parseOptionalFloatEnv("ARK_TOP_P")
	if err != nil {
		return AIConfig{}, err
	}

	maxTokens, err := parseOptionalIntEnv("ARK_MAX_TOKENS")
	if err != nil {
		return AIConfig{}, err
	}

	timeout, err := parseDurationEnv("GENERATION_TIMEOUT", 20*time.Second)
	if err != nil {
		return AIConfig{}, err
	}

	cfg := AIConfig{
		APIKey:      strings.TrimSpace(os.Getenv("ARK_API_KEY")),
		AccessKey:   strings.TrimSpace(os.Getenv("ARK_ACCESS_KEY")),
		SecretKey:   strings.TrimSpace(os.Getenv("ARK_SECRET_KEY")),
		Model:       strings.TrimSpace(os.Getenv("Model")),
		BaseURL:     getEnvOrDefault("ARK_BASE_URL", "https://ark.cn-beijing.volces.com/api/v3"),
		Region:      getEnvOrDefault("ARK_REGION", "cn-beijing"),
		Temperature: 0.7,
		TopP:        0.95,
		MaxTokens:   1024,
		Timeout:     timeout,
	}
	if temperature != nil {
		cfg.Temperature = *temperature
	}
	if topP != nil {
		cfg.TopP = *topP
	}
	if maxTokens != nil {
		if *maxTokens < 1 {
			return AIConfig{}, fmt.Errorf("invalid ARK_MAX_TOKENS value %d", *maxTokens)
		}
		cfg.MaxTokens = *maxTokens
	}
	return cfg, nil
}

// Store backends.
const (
	StoreBackendMemory   = "memory"
	StoreBackendSQLite   = "sqlite"
	StoreBackendPostgres = "postgres"
)

// StoreConfig 描述对话记录的存储后端。
type StoreConfig struct {
	Backend string
	DSN     string
}

func loadStoreConfig() (StoreConfig, error) {
	backend := strings.ToLower(getEnvOrDefault("STORE_BACKEND", StoreBackendMemory))
	dsn := strings.TrimSpace(os.Getenv("STORE_DSN"))
	switch backend {
	case StoreBackendMemory, StoreBackendSQLite:
	case StoreBackendPostgres:
		if dsn == "" {
			return StoreConfig{}, fmt.Errorf("STORE_DSN is required when STORE_BACKEND=postgres")
		}
	default:
		return StoreConfig{}, fmt.Errorf("invalid STORE_BACKEND value %q", backend)
	}
	return StoreConfig{Backend: backend, DSN: dsn}, nil
}

// RedisConfig 描述限流使用的 Redis，可选。
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// Enabled reports whether a Redis address was configured.
func (c RedisConfig) Enabled() bool {
	return c.Addr != ""
}

func loadRedisConfig() (RedisConfig, error) {
	db, err := parseOptionalIntEnv("REDIS_DB")
	if err != nil {
		return RedisConfig{}, err
	}
	cfg := RedisConfig{
		Addr:     strings.TrimSpace(os.Getenv("REDIS_ADDR")),
		Password: os.Getenv("REDIS_PASSWORD"),
	}
	if db != nil {
		cfg.DB = *db
	}
	return cfg, nil
}

// RateLimitConfig bounds requests per client on the admin routes.
type RateLimitConfig struct {
	AdminMax    int
	AdminWindow time.Duration
}

func loadRateLimitConfig() (RateLimitConfig, error) {
	window, err := parseDurationEnv("ADMIN_RATE_WINDOW", 15*time.Minute)
	if err != nil {
		return RateLimitConfig{}, err
	}
	cfg := RateLimitConfig{AdminMax: 100, AdminWindow: window}

	limit, err := parseOptionalIntEnv("ADMIN_RATE_LIMIT")
	if err != nil {
		return RateLimitConfig{}, err
	}
	if limit != nil {
		if *limit < 1 {
			return RateLimitConfig{}, fmt.Errorf("invalid ADMIN_RATE_LIMIT value %d", *limit)
		}
		cfg.AdminMax = *limit
	}
	return cfg, nil
}

// TelemetryConfig controls OpenTelemetry tracing.
type TelemetryConfig struct {
	Enabled     bool
	ServiceName string
	Endpoint    string
	Insecure    bool
	SampleRatio float64
}

func loadTelemetryConfig() (TelemetryConfig, error) {
	enabled, err := parseBoolEnv("OTEL_ENABLED", false)
	if err != nil {
		return TelemetryConfig{}, err
	}
	insecure, err := parseBoolEnv("OTEL_EXPORTER_OTLP_INSECURE", false)
	if err != nil {
		return TelemetryConfig{}, err
	}
	ratio, err := parseOptionalFloatEnv("OTEL_SAMPLER_RATIO")
	if err != nil {
		return TelemetryConfig{}, err
	}
	cfg := TelemetryConfig{
		Enabled:     enabled,
		ServiceName: getEnvOrDefault("OTEL_SERVICE_NAME", "mindful-chat"),
		Endpoint:    strings.TrimSpace(os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT")),
		Insecure:    insecure,
		SampleRatio: 0.1,
	}
	if ratio != nil {
		cfg.SampleRatio = *ratio
	}
	return cfg, nil
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		return value
	}
	return defaultValue
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
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

func parseDurationEnv(key string, defaultValue time.Duration) (time.Duration, error) {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return defaultValue, nil
	}

	val, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid %s value %q: %w", key, raw, err)
	}
	if val <= 0 {
		return 0, fmt.Errorf("invalid %s value %q: must be positive", key, raw)
	}
	return val, nil
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
