package config

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/cloudwego/eino-ext/components/model/ark"
	"github.com/cloudwego/eino/components/model"
)

// ErrMissingCredentials 表示未提供远程大模型的密钥或模型标识，服务不能启动。
var ErrMissingCredentials = errors.New("remote chat credentials missing: set ARK_API_KEY (or ARK_ACCESS_KEY/ARK_SECRET_KEY) and Model")

// Config 聚合整个服务的配置项。
type Config struct {
	Server ServerConfig
	AI     AIConfig
	Relay  RelayConfig
	Frame  FrameConfig
}

// Load 从环境变量加载配置。
func Load() (*Config, error) {
	server, err := loadServerConfig()
	if err != nil {
		return nil, err
	}

	ai, err := loadAIConfig()
	if err != nil {
		return nil, err
	}
	if !ai.Enabled() {
		return nil, ErrMissingCredentials
	}

	relay, err := loadRelayConfig()
	if err != nil {
		return nil, err
	}

	frame, err := loadFrameConfig()
	if err != nil {
		return nil, err
	}

	return &Config{Server: server, AI: ai, Relay: relay, Frame: frame}, nil
}

// ServerConfig 描述 HTTP 服务配置。
type ServerConfig struct {
	Addr string
}

// loadServerConfig 解析服务器监听地址。
func loadServerConfig() (ServerConfig, error) {
	port := strings.TrimSpace(os.Getenv("PORT"))
	if port == "" {
		port = "8000"
	}

	if strings.Contains(port, ":") {
		// 允许用户直接传入 ":8000" 或 "127.0.0.1:8000"。
		return ServerConfig{Addr: port}, nil
	}

	if strings.Contains(port, " ") {
		return ServerConfig{}, fmt.Errorf("invalid PORT value: %q", port)
	}

	return ServerConfig{Addr: ":" + port}, nil
}

// AIConfig 描述大模型相关配置。
type AIConfig struct {
	APIKey      string
	AccessKey   string
	SecretKey   string
	Model       string
	VisionModel string
	BaseURL     string
	Region      string
	Temperature *float64
	TopP        *float64
}

// Enabled 表示是否提供了必需的密钥。
func (c AIConfig) Enabled() bool {
	return c.Model != "" && (c.APIKey != "" || (c.AccessKey != "" && c.SecretKey != ""))
}

// NewChatModel 使用配置创建对话模型实例。
func (c AIConfig) NewChatModel(ctx context.Context) (model.ChatModel, error) {
	return c.newArkModel(ctx, c.Model)
}

// NewVisionModel 创建用于人脸情绪识别的多模态模型，未单独配置时复用对话模型。
func (c AIConfig) NewVisionModel(ctx context.Context) (model.ChatModel, error) {
	name := c.VisionModel
	if name == "" {
		name = c.Model
	}
	return c.newArkModel(ctx, name)
}

func (c AIConfig) newArkModel(ctx context.Context, name string) (model.ChatModel, error) {
	if !c.Enabled() {
		return nil, ErrMissingCredentials
	}

	var temperature *float32
	if c.Temperature != nil {
		val := float32(*c.Temperature)
		temperature = &val
	}

	var topP *float32
	if c.TopP != nil {
		val := float32(*c.TopP)
		topP = &val
	}

	cfg := &ark.ChatModelConfig{
		BaseURL:     c.BaseURL,
		Region:      c.Region,
		APIKey:      c.APIKey,
		AccessKey:   c.AccessKey,
		SecretKey:   c.SecretKey,
		Model:       name,
		Temperature: temperature,
		TopP:        topP,
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

	modelName := strings.TrimSpace(os.Getenv("Model"))
	if modelName == "" {
		modelName = strings.TrimSpace(os.Getenv("ARK_MODEL"))
	}

	return AIConfig{
		APIKey:      strings.TrimSpace(os.Getenv("ARK_API_KEY")),
		AccessKey:   strings.TrimSpace(os.Getenv("ARK_ACCESS_KEY")),
		SecretKey:   strings.TrimSpace(os.Getenv("ARK_SECRET_KEY")),
		Model:       modelName,
		VisionModel: strings.TrimSpace(os.Getenv("ARK_VISION_MODEL")),
		BaseURL:     getEnvOrDefault("ARK_BASE_URL", "https://ark.cn-beijing.volces.com/api/v3"),
		Region:      getEnvOrDefault("ARK_REGION", "cn-beijing"),
		Temperature: temperature,
		TopP:        topP,
	}, nil
}

// RelayConfig 描述对话转发的参数。
type RelayConfig struct {
	HistoryLimit       int
	MaxTokens          int
	TokenDelay         time.Duration
	DefaultPersonality string
}

func loadRelayConfig() (RelayConfig, error) {
	cfg := RelayConfig{
		HistoryLimit:       10,
		MaxTokens:          500,
		TokenDelay:         10 * time.Millisecond,
		DefaultPersonality: getEnvOrDefault("RELAY_DEFAULT_PERSONALITY", "friendly"),
	}

	limit, err := parseOptionalIntEnv("RELAY_HISTORY_LIMIT")
	if err != nil {
		return RelayConfig{}, err
	}
	if limit != nil {
		if *limit < 0 {
			return RelayConfig{}, fmt.Errorf("invalid RELAY_HISTORY_LIMIT value %d: must not be negative", *limit)
		}
		cfg.HistoryLimit = *limit
	}

	maxTokens, err := parseOptionalIntEnv("RELAY_MAX_TOKENS")
	if err != nil {
		return RelayConfig{}, err
	}
	if maxTokens != nil {
		if *maxTokens < 1 {
			return RelayConfig{}, fmt.Errorf("invalid RELAY_MAX_TOKENS value %d: must be positive", *maxTokens)
		}
		cfg.MaxTokens = *maxTokens
	}

	delay, err := parseOptionalDurationEnv("RELAY_TOKEN_DELAY")
	if err != nil {
		return RelayConfig{}, err
	}
	if delay != nil {
		cfg.TokenDelay = *delay
	}

	return cfg, nil
}

// FrameConfig 描述图像帧上传限制。
type FrameConfig struct {
	MaxUploadBytes int64
}

func loadFrameConfig() (FrameConfig, error) {
	cfg := FrameConfig{MaxUploadBytes: 10 << 20}

	size, err := parseOptionalIntEnv("FRAME_MAX_UPLOAD_BYTES")
	if err != nil {
		return FrameConfig{}, err
	}
	if size != nil {
		if *size < 1 {
			return FrameConfig{}, fmt.Errorf("invalid FRAME_MAX_UPLOAD_BYTES value %d: must be positive", *size)
		}
		cfg.MaxUploadBytes = int64(*size)
	}
	return cfg, nil
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		return value
	}
	return defaultValue
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

// parseOptionalDurationEnv 接受 "10ms" 形式，也接受纯数字（按毫秒处理）。
func parseOptionalDurationEnv(key string) (*time.Duration, error) {
	raw, ok := os.LookupEnv(key)
	if !ok {
		return nil, nil
	}

	value := strings.TrimSpace(raw)
	if value == "" {
		return nil, nil
	}

	if ms, err := strconv.Atoi(value); err == nil {
		d := time.Duration(ms) * time.Millisecond
		if d < 0 {
			return nil, fmt.Errorf("invalid %s value %q: must not be negative", key, value)
		}
		return &d, nil
	}

	d, err := time.ParseDuration(value)
	if err != nil {
		return nil, fmt.Errorf("invalid %s value %q: %w", key, value, err)
	}
	if d < 0 {
		return nil, fmt.Errorf("invalid %s value %q: must not be negative", key, value)
	}
	return &d, nil
}
