package config

import (
	"context"
	"log/slog"
	"os"
	"strconv"
	"time"

	infisical "github.com/infisical/go-sdk"
	"github.com/joho/godotenv"
)

type Config struct {
	Port             string
	TelegramToken    string
	ChatID           int64
	PendleBaseURL    string
	PollInterval     time.Duration
	HighAPYThreshold float64
	TrackedPoolsFile string
	FrontendOrigin   string
	RedisURL         string
	RedisPassword    string
}

func Load() Config {
	// .env is optional, for local development
	_ = godotenv.Load()

	cfg := Config{
		Port:             envOr("PORT", "8080"),
		TelegramToken:    os.Getenv("TELEGRAM_BOT_TOKEN"),
		ChatID:           envInt64("TELEGRAM_CHAT_ID", 0),
		PendleBaseURL:    envOr("PENDLE_API_BASE_URL", "https://api-v2.pendle.finance/core/v1"),
		PollInterval:     envDuration("POLL_INTERVAL", 10*time.Minute),
		HighAPYThreshold: envFloat("HIGH_APY_THRESHOLD", 20.0),
		TrackedPoolsFile: envOr("TRACKED_POOLS_FILE", "tracked_pools.json"),
		FrontendOrigin:   envOr("FRONTEND_ORIGIN", "*"),
		RedisURL:         envOr("REDIS_URL", "redis://localhost:6379/0"),
		RedisPassword:    os.Getenv("REDIS_PASSWORD"),
	}

	// If Infisical credentials are available, fetch secrets from Infisical
	clientID := os.Getenv("INFISICAL_CLIENT_ID")
	clientSecret := os.Getenv("INFISICAL_CLIENT_SECRET")
	if clientID != "" && clientSecret != "" {
		loadFromInfisical(&cfg, clientID, clientSecret)
	}

	return cfg
}

func loadFromInfisical(cfg *Config, clientID, clientSecret string) {
	siteURL := envOr("INFISICAL_SITE_URL", "https://app.infisical.com")
	projectID := os.Getenv("INFISICAL_PROJECT_ID")
	envSlug := envOr("INFISICAL_ENV", "prod")

	if projectID == "" {
		slog.Warn("INFISICAL_PROJECT_ID not set, skipping Infisical")
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	client := infisical.NewInfisicalClient(ctx, infisical.Config{
		SiteUrl:          siteURL,
		AutoTokenRefresh: false,
	})

	_, err := client.Auth().UniversalAuthLogin(clientID, clientSecret)
	if err != nil {
		slog.Error("infisical auth failed", "error", err)
		return
	}

	secrets := map[string]*string{
		"TELEGRAM_BOT_TOKEN": &cfg.TelegramToken,
		"REDIS_PASSWORD":     &cfg.RedisPassword,
	}

	for key, target := range secrets {
		if *target != "" {
			continue // env var already set, skip
		}
		secret, err := client.Secrets().Retrieve(infisical.RetrieveSecretOptions{
			SecretKey:   key,
			Environment: envSlug,
			ProjectID:   projectID,
			SecretPath:  "/",
		})
		if err != nil {
			slog.Warn("failed to retrieve secret from infisical", "key", key, "error", err)
			continue
		}
		*target = secret.SecretValue
		slog.Info("loaded secret from infisical", "key", key)
	}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt64(key string, fallback int64) int64 {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		slog.Warn("invalid integer in env, using fallback", "key", key, "value", v)
		return fallback
	}
	return n
}

func envFloat(key string, fallback float64) float64 {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		slog.Warn("invalid float in env, using fallback", "key", key, "value", v)
		return fallback
	}
	return f
}

func envDuration(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		slog.Warn("invalid duration in env, using fallback", "key", key, "value", v)
		return fallback
	}
	return d
}
