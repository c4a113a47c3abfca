package config

import (
	"fmt"
	"os"
	"strconv"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config holds the application's configuration: a YAML base (teacher's
// convention) overlaid by the §6 environment variables, with an optional
// .env file loaded first (enrichment from csg4786-voice-ai-hackathon-dec-2025).
type Config struct {
	Database struct {
		URL string `yaml:"url"`
	} `yaml:"database"`
	Server struct {
		Port string `yaml:"port"`
	} `yaml:"server"`
	Model struct {
		APIKey        string `yaml:"api_key"`
		Name          string `yaml:"name"`
		RPMLimit      int    `yaml:"rpm_limit"`
		MinIntervalMs int    `yaml:"min_interval_ms"`
		BaseURL       string `yaml:"base_url"`
	} `yaml:"model"`
	Webhook struct {
		SkipSignatureValidation bool `yaml:"skip_signature_validation"`
	} `yaml:"webhook"`
	Provider struct {
		AccountID string `yaml:"account_id"`
		AuthToken string `yaml:"auth_token"`
		BaseURL   string `yaml:"base_url"`
	} `yaml:"provider"`
	PublicBaseURL       string `yaml:"public_base_url"`
	AppBaseURL          string `yaml:"app_base_url"`
	LiveTranscriptLimit int    `yaml:"live_transcript_limit"`
	Telegram            struct {
		BotToken string `yaml:"bot_token"`
	} `yaml:"telegram"`
	JWTSecret          string `yaml:"jwt_secret"`
	PhoneOverrideToken string `yaml:"phone_override_token"`
}

// LoadConfig reads the YAML file at configPath, loads an optional .env file,
// then overlays every recognized environment variable on top.
func LoadConfig(configPath string) (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{}

	if f, err := os.Open(configPath); err == nil {
		defer f.Close()
		if err := yaml.NewDecoder(f).Decode(cfg); err != nil {
			return nil, fmt.Errorf("failed to decode config file: %w", err)
		}
	} else if !os.IsNotExist(err) {
		return nil, fmt.Errorf("failed to open config file: %w", err)
	}

	applyEnvOverlay(cfg)
	applyDefaults(cfg)

	return cfg, nil
}

func applyEnvOverlay(cfg *Config) {
	if v := os.Getenv("DATABASE_URL"); v != "" {
		cfg.Database.URL = v
	}
	if v := os.Getenv("SERVER_PORT"); v != "" {
		cfg.Server.Port = v
	}
	if v := os.Getenv("MODEL_API_KEY"); v != "" {
		cfg.Model.APIKey = v
	}
	if v := os.Getenv("MODEL_NAME"); v != "" {
		cfg.Model.Name = v
	}
	if v := os.Getenv("MODEL_BASE_URL"); v != "" {
		cfg.Model.BaseURL = v
	}
	if v, err := strconv.Atoi(os.Getenv("MODEL_RPM_LIMIT")); err == nil && v > 0 {
		cfg.Model.RPMLimit = v
	}
	if v, err := strconv.Atoi(os.Getenv("MODEL_MIN_INTERVAL_MS")); err == nil && v > 0 {
		cfg.Model.MinIntervalMs = v
	}
	if os.Getenv("WEBHOOK_SKIP_SIGNATURE_VALIDATION") == "1" {
		cfg.Webhook.SkipSignatureValidation = true
	}
	if v := os.Getenv("PROVIDER_ACCOUNT_ID"); v != "" {
		cfg.Provider.AccountID = v
	}
	if v := os.Getenv("PROVIDER_AUTH_TOKEN"); v != "" {
		cfg.Provider.AuthToken = v
	}
	if v := os.Getenv("PUBLIC_BASE_URL"); v != "" {
		cfg.PublicBaseURL = v
	}
	if v := os.Getenv("APP_BASE_URL"); v != "" {
		cfg.AppBaseURL = v
	}
	if v, err := strconv.Atoi(os.Getenv("LIVE_TRANSCRIPT_LIMIT")); err == nil {
		cfg.LiveTranscriptLimit = v
	}
	if v := os.Getenv("TELEGRAM_BOT_TOKEN"); v != "" {
		cfg.Telegram.BotToken = v
	}
	if v := os.Getenv("JWT_SECRET"); v != "" {
		cfg.JWTSecret = v
	}
	if v := os.Getenv("PHONE_OVERRIDE_TOKEN"); v != "" {
		cfg.PhoneOverrideToken = v
	}
}

func applyDefaults(cfg *Config) {
	if cfg.Model.RPMLimit <= 0 {
		cfg.Model.RPMLimit = 30
	}
	if cfg.LiveTranscriptLimit <= 0 {
		cfg.LiveTranscriptLimit = 200
	}
	if cfg.LiveTranscriptLimit > 500 {
		cfg.LiveTranscriptLimit = 500
	}
	if cfg.Server.Port == "" {
		cfg.Server.Port = ":8080"
	}
	if cfg.JWTSecret == "" {
		cfg.JWTSecret = "coachline-dev-secret-change-me"
	}
}

// ModelConfigured reports whether a model API key is present; when it isn't,
// the model scorer is disabled entirely (spec.md §4.5).
func (c *Config) ModelConfigured() bool {
	return c.Model.APIKey != ""
}

// MinIntervalMs derives MIN_INTERVAL per spec.md §4.7: max(2800ms,
// ceil(60000/RPM)+400ms), or the explicit override when set.
func (c *Config) MinIntervalMs() int {
	if c.Model.MinIntervalMs > 0 {
		return c.Model.MinIntervalMs
	}
	rpm := c.Model.RPMLimit
	if rpm <= 0 {
		rpm = 30
	}
	derived := (60000+rpm-1)/rpm + 400
	if derived < 2800 {
		return 2800
	}
	return derived
}
