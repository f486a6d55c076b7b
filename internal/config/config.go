package config

import (
	"os"
)

type Config struct {
	DatabaseURL string
	Port        string
	Environment string

	// Price comparison upstream
	PriceAPIBase string
	PriceAPIKey  string

	// SMS messaging gateway
	SMSAPIBase string
	SMSAPIKey  string
	SMSSender  string
}

func Load() *Config {
	// Default MySQL connection string
	defaultDSN := "dealwatch:dealwatch@tcp(127.0.0.1:3306)/dealwatch?charset=utf8mb4&parseTime=True&loc=Local"

	return &Config{
		DatabaseURL: getEnv("DATABASE_URL", defaultDSN),
		Port:        getEnv("PORT", "8080"),
		Environment: getEnv("ENVIRONMENT", "development"),

		PriceAPIBase: getEnv("PRICE_API_BASE", "https://api.pricecompare.example.com/v1"),
		PriceAPIKey:  getEnv("PRICE_API_KEY", ""),

		SMSAPIBase: getEnv("SMS_API_BASE", "https://sms.gateway.example.com/v2"),
		SMSAPIKey:  getEnv("SMS_API_KEY", ""),
		SMSSender:  getEnv("SMS_SENDER", "DEALWATCH"),
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
