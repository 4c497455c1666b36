package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"

	"venuePresenceAPI/internal/types/credit"
)

// Config holds all application configuration
type Config struct {
	Port               string
	LogLevel           string
	DatabaseURL        string
	RunMigrations      bool
	RedisURL           string
	NATSURL            string
	ClerkSecretKey     string
	ClerkWebhookSecret string
	QRSigningSecret    string
	Metrics            MetricsConfig
	Paddle             PaddleConfig
}

type MetricsConfig struct {
	User     string
	Password string
}

type PaddleConfig struct {
	APIKey        string
	WebhookSecret string
	Sandbox       bool

	// CreditPacks maps a Paddle price ID to the credits it grants.
	CreditPacks map[string]credit.Pack
}

// Load reads .env (if present) and the process environment.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		Port:               getEnv("PORT", "3333"),
		LogLevel:           getEnv("LOG_LEVEL", "info"),
		DatabaseURL:        os.Getenv("DATABASE_URL"),
		RunMigrations:      getEnvBool("RUN_MIGRATIONS", true),
		RedisURL:           os.Getenv("REDIS_URL"),
		NATSURL:            os.Getenv("NATS_URL"),
		ClerkSecretKey:     os.Getenv("CLERK_SECRET_KEY"),
		ClerkWebhookSecret: os.Getenv("CLERK_WEBHOOK_SECRET"),
		QRSigningSecret:    os.Getenv("QR_SIGNING_SECRET"),
		Metrics: MetricsConfig{
			User:     os.Getenv("METRICS_USER"),
			Password: os.Getenv("METRICS_PASS"),
		},
		Paddle: PaddleConfig{
			APIKey:        os.Getenv("PADDLE_API_KEY"),
			WebhookSecret: os.Getenv("PADDLE_WEBHOOK_SECRET"),
			Sandbox:       getEnvBool("PADDLE_SANDBOX", true),
		},
	}

	packs, err := ParseCreditPacks(os.Getenv("CREDIT_PACKS"))
	if err != nil {
		return nil, err
	}
	cfg.Paddle.CreditPacks = packs

	if cfg.DatabaseURL == "" {
		return nil, errors.New("DATABASE_URL environment variable is not set")
	}
	if cfg.ClerkSecretKey == "" {
		return nil, errors.New("CLERK_SECRET_KEY environment variable is not set")
	}

	return cfg, nil
}

// ParseCreditPacks parses "priceID:credits:price,priceID:credits:price".
func ParseCreditPacks(raw string) (map[string]credit.Pack, error) {
	packs := make(map[string]credit.Pack)
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return packs, nil
	}

	for _, item := range strings.Split(raw, ",") {
		fields := strings.Split(strings.TrimSpace(item), ":")
		if len(fields) != 3 {
			return nil, fmt.Errorf("invalid credit pack %q: want priceID:credits:price", item)
		}
		credits, err := strconv.Atoi(fields[1])
		if err != nil || credits <= 0 {
			return nil, fmt.Errorf("invalid credit count in pack %q", item)
		}
		price, err := strconv.ParseFloat(fields[2], 64)
		if err != nil || price < 0 {
			return nil, fmt.Errorf("invalid price in pack %q", item)
		}
		packs[fields[0]] = credit.Pack{PriceID: fields[0], Credits: credits, Price: price}
	}

	return packs, nil
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return fallback
	}
	return b
}
