package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"

	"github.com/simplegpt/backend/internal/stream"
)

// Config 聚合整个服务的配置项。
type Config struct {
	Env      string `envconfig:"APP_ENV" default:"development"`
	LogLevel string `envconfig:"LOG_LEVEL"`
	Server   ServerConfig
	AI       AIConfig
	Chat     ChatConfig
	Upload   UploadConfig
	Redis    RedisConfig
}

// Load 从环境变量加载配置。嵌套字段优先读取带前缀的变量（如 SERVER_PORT），
// 未设置时回退到不带前缀的名字（如 PORT）。
func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("parse environment: %w", err)
	}

	addr, err := normalizeAddr(cfg.Server.Port)
	if err != nil {
		return nil, err
	}
	cfg.Server.Addr = addr

	cfg.AI.Provider = strings.ToLower(strings.TrimSpace(cfg.AI.Provider))
	switch cfg.AI.Provider {
	case ProviderOpenAI, ProviderArk, ProviderGemini:
	default:
		return nil, fmt.Errorf("invalid AI_PROVIDER value: %q", cfg.AI.Provider)
	}

	format, err := stream.ParseFormat(cfg.Chat.StreamFormat)
	if err != nil {
		return nil, fmt.Errorf("invalid STREAM_FORMAT: %w", err)
	}
	cfg.Chat.Format = format

	if cfg.Chat.MaxContextTokens < 0 {
		return nil, fmt.Errorf("invalid MAX_CONTEXT_TOKENS value: %d", cfg.Chat.MaxContextTokens)
	}
	if cfg.Upload.MaxBytes <= 0 {
		return nil, fmt.Errorf("invalid UPLOAD_MAX_BYTES value: %d", cfg.Upload.MaxBytes)
	}

	return &cfg, nil
}

// Production 表示是否运行在生产环境。
func (c *Config) Production() bool {
	return strings.EqualFold(c.Env, "production")
}

// ServerConfig 描述 HTTP 服务配置。
type ServerConfig struct {
	Port        string   `envconfig:"PORT" default:"3000"`
	CORSOrigins []string `envconfig:"CORS_ALLOWED_ORIGINS" default:"*"`

	// Addr 由 Port 归一化得到。
	Addr string `ignored:"true"`
}

// normalizeAddr 解析服务器监听地址。
func normalizeAddr(port string) (string, error) {
	port = strings.TrimSpace(port)
	if port == "" {
		port = "3000"
	}

	if strings.Contains(port, ":") {
		// 允许用户直接传入 ":3000" 或 "127.0.0.1:3000"。
		return port, nil
	}

	if strings.Contains(port, " ") {
		return "", fmt.Errorf("invalid PORT value: %q", port)
	}

	return ":" + port, nil
}

// Supported AI providers.
const (
	ProviderOpenAI = "openai"
	ProviderArk    = "ark"
	ProviderGemini = "gemini"
)

// AIConfig 描述大模型提供方相关配置。
type AIConfig struct {
	Provider string `envconfig:"AI_PROVIDER" default:"openai"`

	OpenAIKey     string `envconfig:"OPENAI_KEY"`
	OpenAIBaseURL string `envconfig:"OPENAI_BASE_URL" default:"https://api.openai.com/v1"`

	ArkAPIKey    string `envconfig:"ARK_API_KEY"`
	ArkAccessKey string `envconfig:"ARK_ACCESS_KEY"`
	ArkSecretKey string `envconfig:"ARK_SECRET_KEY"`
	ArkBaseURL   string `envconfig:"ARK_BASE_URL" default:"https://ark.cn-beijing.volces.com/api/v3"`
	ArkRegion    string `envconfig:"ARK_REGION" default:"cn-beijing"`
	ArkModel     string `envconfig:"ARK_MODEL"`

	GeminiAPIKey  string `envconfig:"GEMINI_API_KEY"`
	GeminiBaseURL string `envconfig:"GEMINI_BASE_URL"`
	GeminiModel   string `envconfig:"GEMINI_MODEL"`

	Timeout time.Duration `envconfig:"AI_TIMEOUT" default:"120s"`
}

// Enabled 表示当前提供方是否提供了必需的密钥。
func (c AIConfig) Enabled() bool {
	switch c.Provider {
	case ProviderArk:
		return c.ArkModel != "" && (c.ArkAPIKey != "" || (c.ArkAccessKey != "" && c.ArkSecretKey != ""))
	case ProviderGemini:
		return c.GeminiModel != "" && c.GeminiAPIKey != ""
	default:
		return c.OpenAIKey != ""
	}
}

// ChatConfig 描述对话请求的默认参数。
type ChatConfig struct {
	DefaultModel        string   `envconfig:"DEFAULT_CHAT_MODEL" default:"gpt-3.5-turbo"`
	DefaultImageModel   string   `envconfig:"DEFAULT_IMAGE_MODEL" default:"dall-e-2"`
	DefaultSystemPrompt string   `envconfig:"DEFAULT_SYSTEM_PROMPT" default:"default"`
	Temperature         float32  `envconfig:"CHAT_TEMPERATURE" default:"0.9"`
	TopP                float32  `envconfig:"CHAT_TOP_P" default:"1"`
	MaxTokens           int      `envconfig:"CHAT_MAX_TOKENS" default:"1000"`
	ImageSize           string   `envconfig:"IMAGE_SIZE" default:"1024x1024"`
	VisionModels        []string `envconfig:"VISION_MODELS" default:"gpt-4-vision,gpt-4o,gpt-4-turbo"`
	MaxContextTokens    int      `envconfig:"MAX_CONTEXT_TOKENS" default:"0"`
	StreamFormat        string   `envconfig:"STREAM_FORMAT" default:"raw"`

	Format stream.Format `ignored:"true"`
}

// UploadConfig 描述 S3 兼容对象存储配置。
type UploadConfig struct {
	Bucket      string `envconfig:"S3_BUCKET_NAME"`
	EndpointURL string `envconfig:"S3_ENDPOINT_URL"`
	Region      string `envconfig:"S3_REGION" default:"us-east-1"`
	AccessKey   string `envconfig:"S3_ACCESS_KEY"`
	SecretKey   string `envconfig:"S3_SECRET_KEY"`
	KeyPrefix   string `envconfig:"S3_KEY_PREFIX" default:"simplegpt"`
	MaxBytes    int64  `envconfig:"UPLOAD_MAX_BYTES" default:"20971520"`
}

// Enabled 表示是否配置了上传所需的存储桶与凭证。
func (c UploadConfig) Enabled() bool {
	return c.Bucket != "" && c.AccessKey != "" && c.SecretKey != ""
}

// RedisConfig 描述模型列表缓存。未配置 REDIS_URL 时使用进程内缓存。
type RedisConfig struct {
	URL       string        `envconfig:"REDIS_URL"`
	CacheTTL  time.Duration `envconfig:"MODELS_CACHE_TTL" default:"10m"`
	KeyPrefix string        `envconfig:"REDIS_KEY_PREFIX" default:"simplegpt"`
}

// Enabled 表示是否启用 Redis。
func (c RedisConfig) Enabled() bool {
	return strings.TrimSpace(c.URL) != ""
}
