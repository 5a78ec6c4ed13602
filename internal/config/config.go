package config

import (
	"errors"
	"fmt"
	"os"

	"github.com/joho/godotenv"
)

// Config represents the example bot's full configuration surface.
type Config struct {
	Server    ServerConfig
	WhatsApp  WhatsAppConfig
	Broadcast BroadcastConfig
}

// ServerConfig holds HTTP server related options.
type ServerConfig struct {
	Port string
}

// WhatsAppConfig contains credentials and options for the Cloud API.
type WhatsAppConfig struct {
	Token       string
	NumberID    string
	VerifyToken string
	BaseURL     string
	APIVersion  string
	MarkAsRead  bool
}

// BroadcastConfig holds the scheduled broadcast settings.
type BroadcastConfig struct {
	CronSchedule string
	Recipient    string
	Message      string
}

// Load reads environment variables (optionally from the provided file) and
// materializes a Config instance.
func Load(envFile string) (*Config, error) {
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil {
			if !errors.Is(err, os.ErrNotExist) {
				return nil, fmt.Errorf("failed loading env file %s: %w", envFile, err)
			}
		}
	} else {
		// Missing .env files are acceptable when configuration comes from the
		// environment directly.
		_ = godotenv.Load()
	}

	cfg := &Config{
		Server: ServerConfig{
			Port: getenvWithDefault("APP_PORT", "8080"),
		},
		WhatsApp: WhatsAppConfig{
			Token:       os.Getenv("WHATSAPP_TOKEN"),
			NumberID:    os.Getenv("WHATSAPP_PHONE_NUMBER_ID"),
			VerifyToken: os.Getenv("META_VERIFY_TOKEN"),
			BaseURL:     getenvWithDefault("WHATSAPP_BASE_URL", "https://graph.facebook.com"),
			APIVersion:  getenvWithDefault("WHATSAPP_API_VERSION", "v20.0"),
			MarkAsRead:  os.Getenv("WHATSAPP_MARK_AS_READ") != "false",
		},
		Broadcast: BroadcastConfig{
			CronSchedule: getenvWithDefault("BROADCAST_CRON_SCHEDULE", "0 9 * * *"),
			Recipient:    os.Getenv("BROADCAST_RECIPIENT"),
			Message:      getenvWithDefault("BROADCAST_MESSAGE", "Good morning! The bot is up and listening."),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate ensures that required configuration fields are populated.
func (c *Config) Validate() error {
	if c == nil {
		return errors.New("config is nil")
	}

	if c.Server.Port == "" {
		return errors.New("APP_PORT must be provided")
	}

	switch {
	case c.WhatsApp.Token == "":
		return errors.New("WHATSAPP_TOKEN must be provided")
	case c.WhatsApp.NumberID == "":
		return errors.New("WHATSAPP_PHONE_NUMBER_ID must be provided")
	case c.WhatsApp.VerifyToken == "":
		return errors.New("META_VERIFY_TOKEN must be provided")
	}

	if c.WhatsApp.BaseURL == "" {
		return errors.New("WHATSAPP_BASE_URL must not be empty")
	}
	if c.WhatsApp.APIVersion == "" {
		return errors.New("WHATSAPP_API_VERSION must not be empty")
	}

	if c.Broadcast.CronSchedule == "" {
		return errors.New("BROADCAST_CRON_SCHEDULE must be provided")
	}

	return nil
}

func getenvWithDefault(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}
