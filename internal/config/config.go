// Package config reads process configuration once at startup.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

// Config carries everything read from the environment. Settlement logic
// never touches it directly; relevant values are passed in at construction.
type Config struct {
	BotToken string

	// GroupID is the private group access is sold to, GroupName its
	// human-readable name used in messages.
	GroupID   int64
	GroupName string

	// ProviderToken identifies the payment provider at Telegram.
	ProviderToken string

	DatabaseURL string

	// Single product, single price point. Price is in minor currency units.
	SubTitle       string
	SubDescription string
	SubPrice       int
	SubCurrency    string

	MetricsAddr string
	LockFile    string
	Workers     int
}

// Load reads .env if present, then the environment. Missing required values
// are reported together so a misconfigured deployment fails loudly once.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		slog.Warn(".env file not found, using environment only")
	}

	cfg := &Config{
		BotToken:       os.Getenv("BOT_TOKEN"),
		GroupName:      os.Getenv("GROUP_NAME"),
		ProviderToken:  os.Getenv("PAYMENT_PROVIDER_TOKEN_TEST"),
		SubTitle:       getenvDefault("SUB_TITLE", "Доступ к группе"),
		SubDescription: getenvDefault("SUB_DESCRIPTION", "Подписка на 30 дней"),
		SubCurrency:    getenvDefault("SUB_CURRENCY", "USD"),
		MetricsAddr:    getenvDefault("METRICS_ADDR", ":9090"),
		LockFile:       getenvDefault("LOCK_FILE", "tgbot-sales.lock"),
	}

	var missing []string
	for name, val := range map[string]string{
		"BOT_TOKEN":                   cfg.BotToken,
		"GROUP_ID":                    os.Getenv("GROUP_ID"),
		"GROUP_NAME":                  cfg.GroupName,
		"PAYMENT_PROVIDER_TOKEN_TEST": cfg.ProviderToken,
	} {
		if val == "" {
			missing = append(missing, name)
		}
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("missing required env: %v", missing)
	}

	groupID, err := strconv.ParseInt(os.Getenv("GROUP_ID"), 10, 64)
	if err != nil {
		return nil, fmt.Errorf("GROUP_ID must be a chat id: %w", err)
	}
	cfg.GroupID = groupID

	cfg.SubPrice, err = intDefault("SUB_PRICE", 10000)
	if err != nil {
		return nil, err
	}
	cfg.Workers, err = intDefault("WORKERS", 4)
	if err != nil {
		return nil, err
	}

	cfg.DatabaseURL = os.Getenv("DATABASE_URL")
	if cfg.DatabaseURL == "" {
		cfg.DatabaseURL = fmt.Sprintf(
			"postgres://%s:%s@%s/%s?sslmode=disable",
			os.Getenv("POSTGRES_USER"),
			os.Getenv("POSTGRES_PASSWORD"),
			os.Getenv("POSTGRES_HOST"),
			os.Getenv("POSTGRES_DB"),
		)
	}

	return cfg, nil
}

func getenvDefault(name, def string) string {
	if v := os.Getenv(name); v != "" {
		return v
	}
	return def
}

func intDefault(name string, def int) (int, error) {
	v := os.Getenv(name)
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%s must be an integer: %w", name, err)
	}
	return n, nil
}
