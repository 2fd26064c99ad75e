// Package config manages application configuration from config.yaml,
// BOT_* environment variables, and default values.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
)

// Config defines the application configuration. Values can be set in
// config.yaml or via environment variables prefixed with BOT_
// (e.g. BOT_SIGNAL_PHONE, BOT_DATABASE_PATH).
type Config struct {
	Logger   LoggerConfig   `mapstructure:"logger"`
	Database DatabaseConfig `mapstructure:"database"`
	Signal   SignalConfig   `mapstructure:"signal"`
	Summary  SummaryConfig  `mapstructure:"summary"`
	Imagine  ImagineConfig  `mapstructure:"imagine"`
	Gemini   GeminiConfig   `mapstructure:"gemini"`
	OpenAI   OpenAIConfig   `mapstructure:"openai"`
}

// LoggerConfig controls log output.
type LoggerConfig struct {
	Level string `mapstructure:"level" validate:"oneof=debug info warn error"`
	JSON  bool   `mapstructure:"json"`
}

// DatabaseConfig controls the message store.
type DatabaseConfig struct {
	Path        string `mapstructure:"path"          validate:"required"`
	MaxAgeHours int    `mapstructure:"max_age_hours" validate:"min=1"`
}

// SignalConfig identifies the bot account and the signal-cli-rest-api
// endpoints it talks to. WebsocketURL and RestURL are host[:port] values;
// the scheme is added by the client.
type SignalConfig struct {
	Phone            string        `mapstructure:"phone"              validate:"required"`
	WebsocketURL     string        `mapstructure:"websocket_url"      validate:"required"`
	RestURL          string        `mapstructure:"rest_url"           validate:"required"`
	ReconnectDelay   time.Duration `mapstructure:"reconnect_delay"    validate:"min=100ms,max=5m"`
	SendTimeout      time.Duration `mapstructure:"send_timeout"       validate:"min=1s,max=10m"`
	MaxMessageLength int           `mapstructure:"max_message_length" validate:"min=100"`
}

// SummaryConfig controls the summarization pipeline.
type SummaryConfig struct {
	Provider     string `mapstructure:"provider"      validate:"oneof=google openai"`
	DefaultHours int    `mapstructure:"default_hours" validate:"min=1,max=168"`
	PromptFile   string `mapstructure:"prompt_file"`
}

// ImagineConfig controls image generation.
type ImagineConfig struct {
	Provider  string `mapstructure:"provider"   validate:"oneof=google openai"`
	OutputDir string `mapstructure:"output_dir" validate:"required"`
}

// GeminiConfig configures the Google backend. Either an API key or a
// Vertex project/location pair must be present when a google provider
// is selected.
type GeminiConfig struct {
	APIKey            string `mapstructure:"api_key"`
	ProjectID         string `mapstructure:"project_id"`
	Location          string `mapstructure:"location"`
	TextModel         string `mapstructure:"text_model"`
	ImageModel        string `mapstructure:"image_model"`
	MaxRetries        int    `mapstructure:"max_retries"         validate:"min=0,max=10"`
	RetryDelaySeconds int    `mapstructure:"retry_delay_seconds" validate:"min=1,max=60"`
}

// OpenAIConfig configures the OpenAI backend.
type OpenAIConfig struct {
	APIKey     string `mapstructure:"api_key"`
	ChatModel  string `mapstructure:"chat_model"`
	ImageModel string `mapstructure:"image_model"`
}

// LoadConfig loads and validates configuration from:
// 1. Default values
// 2. The YAML file at configPath (optional)
// 3. BOT_* environment variables
func LoadConfig(configPath string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetConfigFile(configPath)
	v.SetConfigType("yaml")

	v.SetEnvPrefix("BOT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// AutomaticEnv only resolves keys viper has already seen. Keys without
	// a default must be bound explicitly or they stay invisible to BOT_*
	// variables in a file-less deployment.
	for _, key := range []string{
		"signal.phone",
		"signal.websocket_url",
		"signal.rest_url",
		"imagine.output_dir",
		"gemini.api_key",
		"gemini.project_id",
		"openai.api_key",
	} {
		if err := v.BindEnv(key); err != nil {
			return nil, fmt.Errorf("failed to bind environment variable for %s: %w", key, err)
		}
	}

	// The config file is optional, environment variables may carry everything.
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !os.IsNotExist(err) {
			return nil, fmt.Errorf("failed to read config file %s: %w", configPath, err)
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to parse configuration: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks structural constraints and the cross-field provider
// requirements that validator tags cannot express.
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("configuration validation failed: %w", err)
	}

	// Relative image paths would make attachment handling depend on the
	// working directory.
	if !filepath.IsAbs(c.Imagine.OutputDir) {
		return fmt.Errorf("imagine.output_dir must be an absolute path, got %q", c.Imagine.OutputDir)
	}

	if c.Summary.Provider == "google" || c.Imagine.Provider == "google" {
		if c.Gemini.APIKey == "" && (c.Gemini.ProjectID == "" || c.Gemini.Location == "") {
			return fmt.Errorf("google provider selected but neither gemini.api_key nor gemini.project_id+gemini.location is set")
		}
	}
	if c.Summary.Provider == "openai" || c.Imagine.Provider == "openai" {
		if c.OpenAI.APIKey == "" {
			return fmt.Errorf("openai provider selected but openai.api_key is not set")
		}
	}

	return nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.json", false)

	v.SetDefault("database.path", "storage.db")
	v.SetDefault("database.max_age_hours", 168)

	v.SetDefault("signal.reconnect_delay", time.Second)
	v.SetDefault("signal.send_timeout", 30*time.Second)
	v.SetDefault("signal.max_message_length", 2000)

	v.SetDefault("summary.provider", "google")
	v.SetDefault("summary.default_hours", 24)
	v.SetDefault("summary.prompt_file", "prompt_summary.txt")

	v.SetDefault("imagine.provider", "google")

	v.SetDefault("gemini.location", "us-central1")
	v.SetDefault("gemini.text_model", "gemini-1.5-flash-001")
	v.SetDefault("gemini.image_model", "imagen-3.0-generate-002")
	v.SetDefault("gemini.max_retries", 2)
	v.SetDefault("gemini.retry_delay_seconds", 5)

	v.SetDefault("openai.chat_model", "gpt-4o")
	v.SetDefault("openai.image_model", "dall-e-3")
}
