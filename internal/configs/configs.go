/*
Package configs is responsible for loading and parsing the application's configuration settings.

Settings come from operating system environment variables, optionally seeded from a .env
file in the working directory. The chat client and the development relay share one
AppConfig; each binary reads the fields it needs and lets CLI flags override them.
*/
package configs

import (
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// AppConfig contains all configuration parameters required for the applications to run.
type AppConfig struct {
	// General Settings
	Environment string

	// Client Settings
	ServerURL   string
	Username    string
	LogFile     string
	SendQueue   int
	SendRate    float64
	SendBurst   int
	SubscriberQ int
	MetricsAddr string

	// Relay Settings
	Port           int
	AllowedOrigins []string
}

// IsDevelopment reports whether the configured environment is "development".
func (c *AppConfig) IsDevelopment() bool {
	return c.Environment == "development"
}

// LoadConfig reads the configuration from environment variables after loading envFiles
// (".env" when none are given). Missing env files are ignored; variables already set in
// the environment win over file values. Defaults are applied and values validated.
func LoadConfig(envFiles ...string) (*AppConfig, error) {
	if len(envFiles) == 0 {
		envFiles = []string{".env"}
	}
	for _, f := range envFiles {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("failed to load env file %q: %w", f, err)
		}
	}

	cfg := &AppConfig{}

	// --- General Settings ---
	cfg.Environment = getEnv("ENVIRONMENT", "development")

	// --- Client Settings ---
	cfg.ServerURL = getEnv("CHAT_SERVER_URL", "ws://localhost:8080/ws")
	if err := ValidateServerURL(cfg.ServerURL); err != nil {
		return nil, err
	}

	cfg.Username = os.Getenv("CHAT_USERNAME")
	cfg.LogFile = getEnv("CHAT_LOG_FILE", "wschat.log")
	cfg.MetricsAddr = os.Getenv("CHAT_METRICS_ADDR")

	var err error
	if cfg.SendQueue, err = getInt("CHAT_SEND_QUEUE", 256); err != nil {
		return nil, err
	}
	if cfg.SendQueue < 1 {
		return nil, fmt.Errorf("CHAT_SEND_QUEUE must be positive, got %d", cfg.SendQueue)
	}

	if cfg.SubscriberQ, err = getInt("CHAT_SUBSCRIBER_QUEUE", 256); err != nil {
		return nil, err
	}
	if cfg.SubscriberQ < 1 {
		return nil, fmt.Errorf("CHAT_SUBSCRIBER_QUEUE must be positive, got %d", cfg.SubscriberQ)
	}

	rateStr := getEnv("CHAT_SEND_RATE", "5")
	cfg.SendRate, err = strconv.ParseFloat(rateStr, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid CHAT_SEND_RATE environment variable: %w", err)
	}
	if cfg.SendRate <= 0 {
		return nil, fmt.Errorf("CHAT_SEND_RATE must be positive, got %v", cfg.SendRate)
	}

	if cfg.SendBurst, err = getInt("CHAT_SEND_BURST", 10); err != nil {
		return nil, err
	}
	if cfg.SendBurst < 1 {
		return nil, fmt.Errorf("CHAT_SEND_BURST must be positive, got %d", cfg.SendBurst)
	}

	// --- Relay Settings ---
	if cfg.Port, err = getInt("PORT", 8080); err != nil {
		return nil, err
	}
	if cfg.Port < 1024 || cfg.Port > 65535 {
		return nil, fmt.Errorf("port number %d is outside the recommended range (%d-%d) to avoid privileged ports", cfg.Port, 1024, 65535)
	}

	cfg.AllowedOrigins = []string{}
	if originsStr := os.Getenv("ALLOWED_ORIGINS"); originsStr != "" {
		for _, origin := range strings.Split(originsStr, ",") {
			if trimmed := strings.TrimSpace(origin); trimmed != "" {
				cfg.AllowedOrigins = append(cfg.AllowedOrigins, trimmed)
			}
		}
	}

	return cfg, nil
}

// ValidateServerURL checks that raw is an absolute ws:// or wss:// URL.
func ValidateServerURL(raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("invalid server URL %q: %w", raw, err)
	}
	if u.Scheme != "ws" && u.Scheme != "wss" {
		return fmt.Errorf("server URL %q must use the ws or wss scheme", raw)
	}
	if u.Host == "" {
		return fmt.Errorf("server URL %q has no host", raw)
	}
	return nil
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getInt(key string, fallback int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s environment variable: %w", key, err)
	}
	return n, nil
}
