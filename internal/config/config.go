// Package config loads and holds all service configuration.
// Settings are read from an optional YAML file (CONFIG_PATH), with
// environment variables taking precedence over the file.
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
)

// Config holds the full service configuration.
type Config struct {
	Env      string `yaml:"env" env:"ENV" env-default:"local"`
	LogLevel string `yaml:"log_level" env:"LOG_LEVEL" env-default:"info"`

	Server     ServerConfig     `yaml:"server"`
	Database   DatabaseConfig   `yaml:"database"`
	LLM        LLMConfig        `yaml:"llm"`
	Pipeline   PipelineConfig   `yaml:"pipeline"`
	Anonymizer AnonymizerConfig `yaml:"anonymizer"`
}

// ServerConfig configures the HTTP listener.
type ServerConfig struct {
	BindAddress     string        `yaml:"bind_address" env:"BIND_ADDRESS" env-default:"0.0.0.0"`
	Port            int           `yaml:"port" env:"PORT" env-default:"8000"`
	AuthToken       string        `yaml:"auth_token" env:"AUTH_TOKEN"`
	ReadTimeout     time.Duration `yaml:"read_timeout" env:"READ_TIMEOUT" env-default:"60s"`
	WriteTimeout    time.Duration `yaml:"write_timeout" env:"WRITE_TIMEOUT" env-default:"120s"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" env:"SHUTDOWN_TIMEOUT" env-default:"10s"`
	MaxUploadBytes  int64         `yaml:"max_upload_bytes" env:"MAX_UPLOAD_BYTES" env-default:"33554432"`
}

// DatabaseConfig configures the Postgres connection pool.
type DatabaseConfig struct {
	URL             string        `yaml:"url" env:"DATABASE_URL" env-required:"true"`
	MaxConnections  int32         `yaml:"max_connections" env:"DB_MAX_CONNECTIONS" env-default:"25"`
	MaxConnLifetime time.Duration `yaml:"max_conn_lifetime" env:"DB_MAX_CONN_LIFETIME" env-default:"1h"`
	MaxConnIdleTime time.Duration `yaml:"max_conn_idle_time" env:"DB_MAX_CONN_IDLE_TIME" env-default:"30m"`
}

// LLMConfig configures the OpenAI-compatible model endpoint.
type LLMConfig struct {
	APIKey         string  `yaml:"api_key" env:"OPENAI_API_KEY" env-required:"true"`
	BaseURL        string  `yaml:"base_url" env:"OPENAI_BASE_URL"`
	EmbeddingModel string  `yaml:"embedding_model" env:"EMBEDDING_MODEL" env-default:"text-embedding-ada-002"`
	ChatModel      string  `yaml:"chat_model" env:"CHAT_MODEL" env-default:"gpt-3.5-turbo"`
	MaxTokens      int     `yaml:"max_tokens" env:"CHAT_MAX_TOKENS" env-default:"500"`
	Temperature    float32 `yaml:"temperature" env:"CHAT_TEMPERATURE" env-default:"0.7"`
}

// PipelineConfig tunes chunking and retrieval.
type PipelineConfig struct {
	ChunkSize    int `yaml:"chunk_size" env:"CHUNK_SIZE" env-default:"1000"`
	ContextLimit int `yaml:"context_limit" env:"CONTEXT_LIMIT" env-default:"5"`
}

// AnonymizerConfig selects and tunes the entity classifier.
type AnonymizerConfig struct {
	// Classifier is "rule" or "llm".
	Classifier    string `yaml:"classifier" env:"CLASSIFIER" env-default:"rule"`
	CachePath     string `yaml:"cache_path" env:"DETECTION_CACHE_PATH" env-default:"detections.db"`
	CacheCapacity int    `yaml:"cache_capacity" env:"DETECTION_CACHE_CAPACITY" env-default:"10000"`
}

// Load reads configuration from CONFIG_PATH (if set and present) and
// the environment. Environment variables win over file values.
func Load() (*Config, error) {
	var cfg Config

	path := os.Getenv("CONFIG_PATH")
	if path != "" {
		if _, err := os.Stat(path); err != nil {
			return nil, fmt.Errorf("config file %q: %w", path, err)
		}
		if err := cleanenv.ReadConfig(path, &cfg); err != nil {
			return nil, fmt.Errorf("read config %q: %w", path, err)
		}
		return &cfg, nil
	}

	if err := cleanenv.ReadEnv(&cfg); err != nil {
		return nil, fmt.Errorf("read config from environment: %w", err)
	}
	return &cfg, nil
}

// Addr returns the listen address in host:port form.
func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.BindAddress, s.Port)
}
