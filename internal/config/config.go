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

// Config aggregates every process-wide setting, fixed at startup.
type Config struct {
	Server   ServerConfig
	Stages   StageConfig
	Pipeline PipelineConfig
	AI       AIConfig
}

// Load reads the configuration from environment variables.
func Load() (*Config, error) {
	server, err := loadServerConfig()
	if err != nil {
		return nil, err
	}

	stages, err := loadStageConfig()
	if err != nil {
		return nil, err
	}

	pipeline, err := loadPipelineConfig()
	if err != nil {
		return nil, err
	}

	ai, err := loadAIConfig()
	if err != nil {
		return nil, err
	}

	return &Config{Server: server, Stages: stages, Pipeline: pipeline, AI: ai}, nil
}

// ServerConfig describes the HTTP listener.
type ServerConfig struct {
	Addr string
}

func loadServerConfig() (ServerConfig, error) {
	port := strings.TrimSpace(os.Getenv("PORT"))
	if port == "" {
		port = "8080"
	}

	if strings.Contains(port, ":") {
		// Allow passing ":8080" or "127.0.0.1:8080" directly.
		return ServerConfig{Addr: port}, nil
	}

	if strings.Contains(port, " ") {
		return ServerConfig{}, fmt.Errorf("invalid PORT value: %q", port)
	}

	return ServerConfig{Addr: ":" + port}, nil
}

// StageConfig holds the endpoints of the three remote stages and the
// per-call timeout shared by their clients.
type StageConfig struct {
	RecognitionURL string
	GenerationURL  string
	SynthesisURL   string
	Timeout        time.Duration
}

func loadStageConfig() (StageConfig, error) {
	timeoutSeconds := 30
	if override, err := parseOptionalIntEnv("RESPONSE_TIMEOUT"); err != nil {
		return StageConfig{}, err
	} else if override != nil {
		timeoutSeconds = *override
	}

	return StageConfig{
		RecognitionURL: getEnvOrDefault("ASR_URL", "http://asr:9001/transcribe"),
		GenerationURL:  getEnvOrDefault("LLM_URL", "http://llm:9002/ask"),
		SynthesisURL:   getEnvOrDefault("TTS_URL", "http://tts:9003/speak"),
		Timeout:        time.Duration(timeoutSeconds) * time.Second,
	}, nil
}

// PipelineConfig holds orchestration defaults: voice and scenario
// fallbacks, the history window and the retry policy.
type PipelineConfig struct {
	DefaultVoice    string
	DefaultScenario string
	Language        string
	MaxHistory      int
	RetryAttempts   int
	RetryDelay      time.Duration
}

func loadPipelineConfig() (PipelineConfig, error) {
	maxHistory := 8
	if override, err := parseOptionalIntEnv("MAX_HISTORY"); err != nil {
		return PipelineConfig{}, err
	} else if override != nil {
		if *override < 1 {
			maxHistory = 1
		} else {
			maxHistory = *override
		}
	}

	attempts := 5
	if override, err := parseOptionalIntEnv("RETRY_ATTEMPTS"); err != nil {
		return PipelineConfig{}, err
	} else if override != nil {
		if *override < 1 {
			attempts = 1
		} else {
			attempts = *override
		}
	}

	delaySeconds := 3
	if override, err := parseOptionalIntEnv("RETRY_DELAY"); err != nil {
		return PipelineConfig{}, err
	} else if override != nil {
		delaySeconds = *override
	}

	return PipelineConfig{
		DefaultVoice:    getEnvOrDefault("DEFAULT_VOICE", "de_DE-thorsten-high"),
		DefaultScenario: getEnvOrDefault("DEFAULT_SCENARIO", "restaurant"),
		Language:        getEnvOrDefault("ASR_LANGUAGE", "de"),
		MaxHistory:      maxHistory,
		RetryAttempts:   attempts,
		RetryDelay:      time.Duration(delaySeconds) * time.Second,
	}, nil
}

// AIConfig describes the optional in-process generation model. When it
// is enabled the pipeline generates answers through an Ark chat model
// instead of the remote generation service.
type AIConfig struct {
	APIKey      string
	AccessKey   string
	SecretKey   string
	Model       string
	BaseURL     string
	Region      string
	Temperature *float64
	TopP        *float64
	MaxTokens   *int
}

// Enabled reports whether the required credentials are present.
func (c AIConfig) Enabled() bool {
	return c.Model != "" && (c.APIKey != "" || (c.AccessKey != "" && c.SecretKey != ""))
}

// NewChatModel creates a chat model instance from the configuration.
func (c AIConfig) NewChatModel(ctx context.Context) (model.ChatModel, error) {
	if !c.Enabled() {
		return nil, fmt.Errorf("Ark credentials missing: provide ARK_API_KEY + ARK_MODEL or an AK/SK pair")
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
		Model:       c.Model,
		MaxTokens:   c.MaxTokens,
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

	maxTokens, err := parseOptionalIntEnv("ARK_MAX_TOKENS")
	if err != nil {
		return AIConfig{}, err
	}

	return AIConfig{
		APIKey:      strings.TrimSpace(os.Getenv("ARK_API_KEY")),
		AccessKey:   strings.TrimSpace(os.Getenv("ARK_ACCESS_KEY")),
		SecretKey:   strings.TrimSpace(os.Getenv("ARK_SECRET_KEY")),
		Model:       strings.TrimSpace(os.Getenv("ARK_MODEL")),
		BaseURL:     getEnvOrDefault("ARK_BASE_URL", "https://ark.cn-beijing.volces.com/api/v3"),
		Region:      getEnvOrDefault("ARK_REGION", "cn-beijing"),
		Temperature: temperature,
		TopP:        topP,
		MaxTokens:   maxTokens,
	}, nil
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
