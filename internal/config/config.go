// Package config loads service configuration from defaults, an optional YAML
// file and the environment, in that order of precedence.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

const (
	ProviderOpenAI = "openai"
	ProviderOllama = "ollama"

	// ConfigPathEnvVar overrides the config file location.
	ConfigPathEnvVar = "CONFIG_PATH"
)

// DefaultConfigPaths are searched in order when CONFIG_PATH is unset.
var DefaultConfigPaths = []string{"config.yaml", "config.yml"}

type Config struct {
	Server   ServerConfig   `koanf:"server"`
	Agent    AgentConfig    `koanf:"agent"`
	OpenAI   OpenAIConfig   `koanf:"openai"`
	Ollama   OllamaConfig   `koanf:"ollama"`
	Database DatabaseConfig `koanf:"database"`
	Worker   WorkerConfig   `koanf:"worker"`
	Session  SessionConfig  `koanf:"session"`
	Logging  LoggingConfig  `koanf:"logging"`
}

type ServerConfig struct {
	Addr              string        `koanf:"addr"`
	CORSOrigins       []string      `koanf:"cors_origins"`
	RateLimitRequests int           `koanf:"rate_limit_requests"`
	RateLimitWindow   time.Duration `koanf:"rate_limit_window"`
	ReadTimeout       time.Duration `koanf:"read_timeout"`
	// WriteTimeout must cover a full conversation turn including curation.
	WriteTimeout    time.Duration `koanf:"write_timeout"`
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout"`
	// MaxUploadBytes bounds library imports.
	MaxUploadBytes int64 `koanf:"max_upload_bytes"`
}

type AgentConfig struct {
	Provider string `koanf:"provider"`
}

type OpenAIConfig struct {
	APIKey          string        `koanf:"api_key"`
	BaseURL         string        `koanf:"base_url"`
	Model           string        `koanf:"model"`
	AssistantID     string        `koanf:"assistant_id"`
	MatcherPromptID string        `koanf:"matcher_prompt_id"`
	CuratorPromptID string        `koanf:"curator_prompt_id"`
	PollInterval    time.Duration `koanf:"poll_interval"`
	MaxWait         time.Duration `koanf:"max_wait"`
	MaxRetries      int           `koanf:"max_retries"`
	RetryBackoff    time.Duration `koanf:"retry_backoff"`
	RateLimit       float64       `koanf:"rate_limit"`
	Timeout         time.Duration `koanf:"timeout"`
}

type OllamaConfig struct {
	Host  string `koanf:"host"`
	Model string `koanf:"model"`
}

type DatabaseConfig struct {
	Path string `koanf:"path"`
}

type WorkerConfig struct {
	Count     int `koanf:"count"`
	QueueSize int `koanf:"queue_size"`
}

type SessionConfig struct {
	TTL           time.Duration `koanf:"ttl"`
	SweepInterval time.Duration `koanf:"sweep_interval"`
}

type LoggingConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
	Caller bool   `koanf:"caller"`
}

func defaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Addr:              ":8080",
			CORSOrigins:       []string{"*"},
			RateLimitRequests: 60,
			RateLimitWindow:   time.Minute,
			ReadTimeout:       15 * time.Second,
			WriteTimeout:      3 * time.Minute,
			ShutdownTimeout:   10 * time.Second,
			MaxUploadBytes:    50 << 20,
		},
		Agent: AgentConfig{Provider: ProviderOpenAI},
		OpenAI: OpenAIConfig{
			BaseURL:      "https://api.openai.com/v1",
			Model:        "gpt-4o-mini",
			PollInterval: time.Second,
			MaxWait:      60 * time.Second,
			MaxRetries:   3,
			RetryBackoff: 500 * time.Millisecond,
			RateLimit:    5,
			Timeout:      60 * time.Second,
		},
		Ollama: OllamaConfig{
			Host:  "http://localhost:11434",
			Model: "llama3.1:8b",
		},
		Database: DatabaseConfig{Path: "tunnetilasi.db"},
		Worker:   WorkerConfig{Count: 2, QueueSize: 32},
		Session: SessionConfig{
			TTL:           2 * time.Hour,
			SweepInterval: 5 * time.Minute,
		},
		Logging: LoggingConfig{Level: "info", Format: "json"},
	}
}

// Load reads .env, then defaults, the config file and environment variables.
func Load() (*Config, error) {
	// A missing .env is fine; real deployments set the environment directly.
	_ = godotenv.Load()

	k := koanf.New(".")
	if err := k.Load(structs.Provider(defaultConfig(), "koanf"), nil); err != nil {
		return nil, fmt.Errorf("config: load defaults: %w", err)
	}

	if path := findConfigFile(); path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("config: load file %s: %w", path, err)
		}
	}

	if err := k.Load(env.Provider("", ".", envTransformFunc), nil); err != nil {
		return nil, fmt.Errorf("config: load environment: %w", err)
	}
	if err := splitList(k, "server.cors_origins"); err != nil {
		return nil, err
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("config: unmarshal: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	return cfg, nil
}

func findConfigFile() string {
	if p := os.Getenv(ConfigPathEnvVar); p != "" {
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	for _, p := range DefaultConfigPaths {
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	return ""
}

// envMappings maps environment variables onto config paths. Anything not
// listed is ignored.
var envMappings = map[string]string{
	"http_addr":               "server.addr",
	"cors_origins":            "server.cors_origins",
	"rate_limit_requests":     "server.rate_limit_requests",
	"rate_limit_window":       "server.rate_limit_window",
	"http_write_timeout":      "server.write_timeout",
	"max_upload_bytes":        "server.max_upload_bytes",
	"agent_provider":          "agent.provider",
	"openai_api_key":          "openai.api_key",
	"openai_base_url":         "openai.base_url",
	"openai_model":            "openai.model",
	"openai_assistant_id":     "openai.assistant_id",
	"matcher_prompt_id":       "openai.matcher_prompt_id",
	"curator_prompt_id":       "openai.curator_prompt_id",
	"assistant_poll_interval": "openai.poll_interval",
	"assistant_max_wait":      "openai.max_wait",
	"openai_max_retries":      "openai.max_retries",
	"openai_retry_backoff":    "openai.retry_backoff",
	"openai_rate_limit":       "openai.rate_limit",
	"ollama_host":             "ollama.host",
	"ollama_model":            "ollama.model",
	"db_path":                 "database.path",
	"worker_count":            "worker.count",
	"worker_queue_size":       "worker.queue_size",
	"session_ttl":             "session.ttl",
	"log_level":               "logging.level",
	"log_format":              "logging.format",
	"log_caller":              "logging.caller",
}

func envTransformFunc(key string) string {
	return envMappings[strings.ToLower(key)]
}

// splitList turns a comma-separated string from the environment into a slice.
func splitList(k *koanf.Koanf, path string) error {
	raw, ok := k.Get(path).(string)
	if !ok {
		return nil
	}
	parts := []string{}
	for _, p := range strings.Split(raw, ",") {
		if p = strings.TrimSpace(p); p != "" {
			parts = append(parts, p)
		}
	}
	if err := k.Set(path, parts); err != nil {
		return fmt.Errorf("config: set %s: %w", path, err)
	}
	return nil
}

// Validate checks ranges and cross-field constraints.
func (c *Config) Validate() error {
	var errs []error
	switch c.Agent.Provider {
	case ProviderOpenAI:
		if c.OpenAI.APIKey == "" {
			errs = append(errs, errors.New("OPENAI_API_KEY is required when AGENT_PROVIDER=openai"))
		}
	case ProviderOllama:
		if c.Ollama.Host == "" {
			errs = append(errs, errors.New("OLLAMA_HOST is required when AGENT_PROVIDER=ollama"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown agent provider %q", c.Agent.Provider))
	}
	if c.OpenAI.PollInterval <= 0 {
		errs = append(errs, errors.New("assistant poll interval must be positive"))
	}
	if c.OpenAI.MaxWait < c.OpenAI.PollInterval {
		errs = append(errs, errors.New("assistant max wait must be at least the poll interval"))
	}
	if c.Server.WriteTimeout <= c.OpenAI.MaxWait {
		errs = append(errs, errors.New("http write timeout must exceed the assistant max wait"))
	}
	if c.OpenAI.MaxRetries < 1 || c.OpenAI.MaxRetries > 10 {
		errs = append(errs, fmt.Errorf("openai max retries must be between 1 and 10, got %d", c.OpenAI.MaxRetries))
	}
	if c.OpenAI.RateLimit < 0 {
		errs = append(errs, errors.New("openai rate limit must not be negative"))
	}
	if c.Worker.Count < 1 || c.Worker.QueueSize < 1 {
		errs = append(errs, errors.New("worker count and queue size must be positive"))
	}
	if c.Server.RateLimitRequests < 0 {
		errs = append(errs, errors.New("rate limit requests must not be negative"))
	}
	if c.Server.RateLimitRequests > 0 && c.Server.RateLimitWindow <= 0 {
		errs = append(errs, errors.New("rate limit window must be positive"))
	}
	if c.Database.Path == "" {
		errs = append(errs, errors.New("DB_PATH must not be empty"))
	}
	switch c.Logging.Format {
	case "json", "console":
	default:
		errs = append(errs, fmt.Errorf("log format must be json or console, got %q", c.Logging.Format))
	}
	return errors.Join(errs...)
}
