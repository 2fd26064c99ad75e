package config_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/edgard/signalbot/internal/config"
)

func writeConfigFile(t *testing.T, content string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("failed to write config file: %v", err)
	}
	return path
}

const minimalConfig = `
signal:
  phone: "+15550001111"
  websocket_url: "localhost:8080"
  rest_url: "localhost:8080"
imagine:
  output_dir: "/var/lib/signalbot/images"
gemini:
  api_key: "test-key"
`

func TestLoadConfig(t *testing.T) {
	t.Run("minimal file fills defaults", func(t *testing.T) {
		path := writeConfigFile(t, minimalConfig)

		cfg, err := config.LoadConfig(path)
		if err != nil {
			t.Fatalf("LoadConfig() failed: %v", err)
		}

		if cfg.Signal.Phone != "+15550001111" {
			t.Errorf("signal.phone = %q, want %q", cfg.Signal.Phone, "+15550001111")
		}
		if cfg.Logger.Level != "info" {
			t.Errorf("logger.level = %q, want default info", cfg.Logger.Level)
		}
		if cfg.Database.Path != "storage.db" {
			t.Errorf("database.path = %q, want default storage.db", cfg.Database.Path)
		}
		if cfg.Database.MaxAgeHours != 168 {
			t.Errorf("database.max_age_hours = %d, want default 168", cfg.Database.MaxAgeHours)
		}
		if cfg.Signal.ReconnectDelay != time.Second {
			t.Errorf("signal.reconnect_delay = %v, want default 1s", cfg.Signal.ReconnectDelay)
		}
		if cfg.Signal.MaxMessageLength != 2000 {
			t.Errorf("signal.max_message_length = %d, want default 2000", cfg.Signal.MaxMessageLength)
		}
		if cfg.Summary.Provider != "google" {
			t.Errorf("summary.provider = %q, want default google", cfg.Summary.Provider)
		}
		if cfg.Summary.DefaultHours != 24 {
			t.Errorf("summary.default_hours = %d, want default 24", cfg.Summary.DefaultHours)
		}
		if cfg.Gemini.TextModel == "" {
			t.Error("gemini.text_model default is empty")
		}
	})

	t.Run("file values override defaults", func(t *testing.T) {
		path := writeConfigFile(t, minimalConfig+`
logger:
  level: "debug"
  json: true
database:
  max_age_hours: 48
summary:
  default_hours: 12
`)

		cfg, err := config.LoadConfig(path)
		if err != nil {
			t.Fatalf("LoadConfig() failed: %v", err)
		}
		if cfg.Logger.Level != "debug" {
			t.Errorf("logger.level = %q, want debug", cfg.Logger.Level)
		}
		if !cfg.Logger.JSON {
			t.Error("logger.json = false, want true")
		}
		if cfg.Database.MaxAgeHours != 48 {
			t.Errorf("database.max_age_hours = %d, want 48", cfg.Database.MaxAgeHours)
		}
		if cfg.Summary.DefaultHours != 12 {
			t.Errorf("summary.default_hours = %d, want 12", cfg.Summary.DefaultHours)
		}
	})

	t.Run("environment variables override the file", func(t *testing.T) {
		t.Setenv("BOT_LOGGER_LEVEL", "warn")
		t.Setenv("BOT_SIGNAL_PHONE", "+15559992222")
		path := writeConfigFile(t, minimalConfig)

		cfg, err := config.LoadConfig(path)
		if err != nil {
			t.Fatalf("LoadConfig() failed: %v", err)
		}
		if cfg.Logger.Level != "warn" {
			t.Errorf("logger.level = %q, want warn from environment", cfg.Logger.Level)
		}
		if cfg.Signal.Phone != "+15559992222" {
			t.Errorf("signal.phone = %q, want the environment value", cfg.Signal.Phone)
		}
	})

	t.Run("environment variables alone carry the configuration", func(t *testing.T) {
		t.Setenv("BOT_SIGNAL_PHONE", "+15550001111")
		t.Setenv("BOT_SIGNAL_WEBSOCKET_URL", "localhost:8080")
		t.Setenv("BOT_SIGNAL_REST_URL", "localhost:8080")
		t.Setenv("BOT_IMAGINE_OUTPUT_DIR", "/var/lib/signalbot/images")
		t.Setenv("BOT_GEMINI_API_KEY", "test-key")

		// No file at this path, everything must come from the environment.
		path := filepath.Join(t.TempDir(), "missing.yaml")

		cfg, err := config.LoadConfig(path)
		if err != nil {
			t.Fatalf("LoadConfig() without a file failed: %v", err)
		}
		if cfg.Signal.Phone != "+15550001111" {
			t.Errorf("signal.phone = %q, want %q", cfg.Signal.Phone, "+15550001111")
		}
		if cfg.Signal.WebsocketURL != "localhost:8080" {
			t.Errorf("signal.websocket_url = %q, want %q", cfg.Signal.WebsocketURL, "localhost:8080")
		}
		if cfg.Imagine.OutputDir != "/var/lib/signalbot/images" {
			t.Errorf("imagine.output_dir = %q, want %q", cfg.Imagine.OutputDir, "/var/lib/signalbot/images")
		}
		if cfg.Gemini.APIKey != "test-key" {
			t.Errorf("gemini.api_key = %q, want %q", cfg.Gemini.APIKey, "test-key")
		}
		if cfg.Database.MaxAgeHours != 168 {
			t.Errorf("database.max_age_hours = %d, want default 168", cfg.Database.MaxAgeHours)
		}
	})

	t.Run("missing required fields fail validation", func(t *testing.T) {
		path := writeConfigFile(t, `
imagine:
  output_dir: "/var/lib/signalbot/images"
gemini:
  api_key: "test-key"
`)

		if _, err := config.LoadConfig(path); err == nil {
			t.Fatal("LoadConfig() without signal settings expected error, got nil")
		}
	})

	t.Run("relative image output dir is rejected", func(t *testing.T) {
		path := writeConfigFile(t, strings.Replace(minimalConfig,
			`output_dir: "/var/lib/signalbot/images"`,
			`output_dir: "images"`, 1))

		_, err := config.LoadConfig(path)
		if err == nil || !strings.Contains(err.Error(), "output_dir") {
			t.Fatalf("LoadConfig() error = %v, want output_dir rejection", err)
		}
	})

	t.Run("google provider requires credentials", func(t *testing.T) {
		path := writeConfigFile(t, strings.Replace(minimalConfig,
			`api_key: "test-key"`,
			`api_key: ""`, 1))

		_, err := config.LoadConfig(path)
		if err == nil || !strings.Contains(err.Error(), "google provider") {
			t.Fatalf("LoadConfig() error = %v, want google credential rejection", err)
		}
	})

	t.Run("openai provider requires an api key", func(t *testing.T) {
		path := writeConfigFile(t, minimalConfig+`
summary:
  provider: "openai"
`)

		_, err := config.LoadConfig(path)
		if err == nil || !strings.Contains(err.Error(), "openai") {
			t.Fatalf("LoadConfig() error = %v, want openai key rejection", err)
		}
	})
}
