// Package config loads the application configuration file used by the
// vidqa command.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/poiesic/vidqa/ai"
	"github.com/poiesic/vidqa/core"
	"github.com/poiesic/vidqa/ingestion"
	"github.com/poiesic/vidqa/retry"
	"gopkg.in/yaml.v3"
)

// Storage backends accepted in storage.backend.
const (
	BackendMemory = "memory"
	BackendBadger = "badger"
)

// DefaultAPIKeyEnv names the environment variable holding the API key.
const DefaultAPIKeyEnv = "OPENAI_API_KEY"

// ErrInvalidConfig is returned by Validate.
var ErrInvalidConfig = errors.New("invalid configuration")

// AIConfig configures the remote transcription, embedding and chat services.
type AIConfig struct {
	// Host applies to every service without its own host.
	Host               string   `yaml:"host"`
	TranscriptionHost  string   `yaml:"transcription_host,omitempty"`
	EmbeddingHost      string   `yaml:"embedding_host,omitempty"`
	ChatHost           string   `yaml:"chat_host,omitempty"`
	APIKeyEnv          string   `yaml:"api_key_env"`
	TranscriptionModel string   `yaml:"transcription_model"`
	EmbeddingModel     string   `yaml:"embedding_model"`
	ChatModel          string   `yaml:"chat_model"`
	MaxTokens          int      `yaml:"max_tokens"`
	Temperature        *float64 `yaml:"temperature,omitempty"`
	RequestTimeoutMs   int      `yaml:"request_timeout_ms"`
}

// StorageConfig selects the chunk store backend.
type StorageConfig struct {
	Backend string `yaml:"backend"`
}

// RetrievalConfig tunes context selection for questions.
type RetrievalConfig struct {
	TopK          int `yaml:"top_k"`
	KeywordWindow int `yaml:"keyword_window"`
}

// RetryConfig describes the embedding retry policy.
type RetryConfig struct {
	MaxAttempts int `yaml:"max_attempts"`
	BaseDelayMs int `yaml:"base_delay_ms"`
	MaxDelayMs  int `yaml:"max_delay_ms"`
}

// IngestionConfig tunes segment processing.
type IngestionConfig struct {
	AudioFormat   string      `yaml:"audio_format"`
	PoolSize      int         `yaml:"pool_size"`
	StepTimeoutMs int         `yaml:"step_timeout_ms"`
	EmbedRetry    RetryConfig `yaml:"embed_retry"`
}

// ServerConfig configures the HTTP host surface.
type ServerConfig struct {
	Addr string `yaml:"addr"`
}

// AppConfig is the root application configuration structure.
type AppConfig struct {
	AI        AIConfig        `yaml:"ai"`
	Storage   StorageConfig   `yaml:"storage"`
	Retrieval RetrievalConfig `yaml:"retrieval"`
	Ingestion IngestionConfig `yaml:"ingestion"`
	Server    ServerConfig    `yaml:"server"`
}

// Load reads a config from path. If the file does not exist, returns defaults.
func Load(path string) (*AppConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return Default(), nil
		}
		return nil, err
	}
	var cfg AppConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	applyDefaults(&cfg)
	return &cfg, nil
}

// Save writes cfg to path, creating directories as needed.
func Save(path string, cfg *AppConfig) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

// Default returns the configuration used when no file is present.
func Default() *AppConfig {
	cfg := &AppConfig{}
	applyDefaults(cfg)
	return cfg
}

func applyDefaults(cfg *AppConfig) {
	defaults := ai.DefaultConfig()

	if cfg.AI.Host == "" {
		cfg.AI.Host = ai.DefaultHost
	}
	if cfg.AI.APIKeyEnv == "" {
		cfg.AI.APIKeyEnv = DefaultAPIKeyEnv
	}
	if cfg.AI.TranscriptionModel == "" {
		cfg.AI.TranscriptionModel = defaults.TranscriptionModel
	}
	if cfg.AI.EmbeddingModel == "" {
		cfg.AI.EmbeddingModel = defaults.EmbeddingModel
	}
	if cfg.AI.ChatModel == "" {
		cfg.AI.ChatModel = defaults.ChatModel
	}
	if cfg.AI.MaxTokens == 0 {
		cfg.AI.MaxTokens = defaults.MaxTokens
	}
	if cfg.AI.Temperature == nil {
		t := defaults.Temperature
		cfg.AI.Temperature = &t
	}
	if cfg.AI.RequestTimeoutMs == 0 {
		cfg.AI.RequestTimeoutMs = int(defaults.RequestTimeout / time.Millisecond)
	}
	if cfg.Storage.Backend == "" {
		cfg.Storage.Backend = BackendMemory
	}
	if cfg.Retrieval.TopK == 0 {
		cfg.Retrieval.TopK = 3
	}
	if cfg.Retrieval.KeywordWindow == 0 {
		cfg.Retrieval.KeywordWindow = 5
	}
	if cfg.Ingestion.AudioFormat == "" {
		cfg.Ingestion.AudioFormat = core.DefaultAudioFormat
	}
	if cfg.Ingestion.PoolSize == 0 {
		cfg.Ingestion.PoolSize = 4
	}
	if cfg.Ingestion.StepTimeoutMs == 0 {
		cfg.Ingestion.StepTimeoutMs = int(ingestion.DefaultStepTimeout / time.Millisecond)
	}
	if cfg.Ingestion.EmbedRetry.MaxAttempts == 0 {
		cfg.Ingestion.EmbedRetry.MaxAttempts = 1
	}
	if cfg.Server.Addr == "" {
		cfg.Server.Addr = ":8080"
	}
}

// Validate checks the values that Load cannot default.
func (c *AppConfig) Validate() error {
	switch c.Storage.Backend {
	case BackendMemory, BackendBadger:
	default:
		return fmt.Errorf("%w: unknown storage backend %q", ErrInvalidConfig, c.Storage.Backend)
	}
	if c.Retrieval.TopK < 1 {
		return fmt.Errorf("%w: retrieval.top_k must be positive", ErrInvalidConfig)
	}
	if c.Retrieval.KeywordWindow < 1 {
		return fmt.Errorf("%w: retrieval.keyword_window must be positive", ErrInvalidConfig)
	}
	if c.Ingestion.StepTimeoutMs < 0 {
		return fmt.Errorf("%w: ingestion.step_timeout_ms must not be negative", ErrInvalidConfig)
	}
	if err := c.EmbedRetryPolicy().Validate(); err != nil {
		return fmt.Errorf("%w: ingestion.embed_retry: %w", ErrInvalidConfig, err)
	}
	if err := c.ToAIConfig().Validate(); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	return nil
}

// APIKey reads the credential from the configured environment variable.
func (c *AppConfig) APIKey() string {
	return os.Getenv(c.AI.APIKeyEnv)
}

// ToAIConfig builds the service configuration, reading the API key from the
// environment.
func (c *AppConfig) ToAIConfig() *ai.Config {
	opts := []ai.ConfigOption{
		ai.WithHost(c.AI.Host),
		ai.WithAPIKey(c.APIKey()),
		ai.WithTranscriptionModel(c.AI.TranscriptionModel),
		ai.WithEmbeddingModel(c.AI.EmbeddingModel),
		ai.WithChatModel(c.AI.ChatModel),
		ai.WithMaxTokens(c.AI.MaxTokens),
		ai.WithRequestTimeout(time.Duration(c.AI.RequestTimeoutMs) * time.Millisecond),
	}
	if c.AI.Temperature != nil {
		opts = append(opts, ai.WithTemperature(*c.AI.Temperature))
	}
	if c.AI.TranscriptionHost != "" {
		opts = append(opts, ai.WithTranscriptionHost(c.AI.TranscriptionHost))
	}
	if c.AI.EmbeddingHost != "" {
		opts = append(opts, ai.WithEmbeddingHost(c.AI.EmbeddingHost))
	}
	if c.AI.ChatHost != "" {
		opts = append(opts, ai.WithChatHost(c.AI.ChatHost))
	}
	return ai.NewConfig(opts...)
}

// StepTimeout returns the per-segment processing deadline.
func (c *AppConfig) StepTimeout() time.Duration {
	return time.Duration(c.Ingestion.StepTimeoutMs) * time.Millisecond
}

// EmbedRetryPolicy converts the embedding retry settings.
func (c *AppConfig) EmbedRetryPolicy() retry.Policy {
	r := c.Ingestion.EmbedRetry
	return retry.Policy{
		MaxAttempts: r.MaxAttempts,
		BaseDelay:   time.Duration(r.BaseDelayMs) * time.Millisecond,
		MaxDelay:    time.Duration(r.MaxDelayMs) * time.Millisecond,
	}
}
