package config

import (
	"log/slog"
	"os"

	"github.com/joho/godotenv"
)

type Config struct {
	Port           string
	DatabaseURL    string
	Env            string
	MailGatewayURL string
	// WelcomeBonus is the amount (decimal string, account currency) granted
	// when a user opens their first account. Empty disables the bonus.
	WelcomeBonus string
}

// Load reads .env when present and falls back to system env variables.
func Load() *Config {
	if err := godotenv.Load(); err != nil {
		slog.Warn("no .env file found, relying on system env variables")
	}

	return &Config{
		Port:           getEnv("PORT", "3000"),
		DatabaseURL:    getEnv("DATABASE_URL", ""),
		Env:            getEnv("ENV", "development"),
		MailGatewayURL: getEnv("MAIL_GATEWAY_URL", ""),
		WelcomeBonus:   getEnv("WELCOME_BONUS", "1000.00"),
	}
}

func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}
