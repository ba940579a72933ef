package config

import (
	"fmt"
	"os"
	"strings"
	"time"
	_ "time/tzdata"

	"github.com/joho/godotenv"
)

// Config holds the application configuration
type Config struct {
	Port            string
	Store           string
	DataDir         string
	GuestSheet      string
	GiftSheet       string
	GiftRecipient   string
	EventTimezone   string
	AllowedOrigin   string
	LogLevel        string
	LogPretty       bool
	NotifyPhones    []string
	WhatsAppDataDir string
}

// LoadConfig loads configuration from environment variables or defaults.
// A .env file in the working directory is read first when present.
func LoadConfig() *Config {
	// Missing .env is fine, the environment may already be set
	_ = godotenv.Load()

	return &Config{
		Port:            getEnv("PORT", "8080"),
		Store:           getEnv("STORE", "sqlite"),
		DataDir:         getEnv("DATA_DIR", "data"),
		GuestSheet:      getEnv("GUEST_SHEET", "Guests"),
		GiftSheet:       getEnv("GIFT_SHEET", "Messaggi"),
		GiftRecipient:   getEnv("GIFT_RECIPIENT", "Sposi"),
		EventTimezone:   getEnv("EVENT_TIMEZONE", "Europe/Rome"),
		AllowedOrigin:   getEnv("ALLOWED_ORIGIN", "*"),
		LogLevel:        getEnv("LOG_LEVEL", "info"),
		LogPretty:       getEnv("LOG_PRETTY", "false") == "true",
		NotifyPhones:    splitList(getEnv("NOTIFY_PHONES", "")),
		WhatsAppDataDir: getEnv("WHATSAPP_DATA_DIR", "data"),
	}
}

// Location resolves the event timezone used for confirmation timestamps
func (c *Config) Location() (*time.Location, error) {
	loc, err := time.LoadLocation(c.EventTimezone)
	if err != nil {
		return nil, fmt.Errorf("invalid EVENT_TIMEZONE %q: %w", c.EventTimezone, err)
	}
	return loc, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func splitList(value string) []string {
	var out []string
	for _, item := range strings.Split(value, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}
