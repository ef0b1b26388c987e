package config

import (
	"context"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	infisical "github.com/infisical/go-sdk"
)

type Config struct {
	Port           string
	DatabaseURL    string
	RedisURL       string
	RedisPassword  string
	EthRPCURL      string
	FrontendOrigin string

	CronSecret    string
	SessionKey    string
	TelegramToken string

	// AllowedOwners maps an owner ID to the Telegram chat that receives its
	// login codes. Parsed from ALLOWED_OWNERS as "owner:chatID,owner:chatID".
	AllowedOwners map[string]int64
}

func Load() Config {
	cfg := Config{
		Port:           envOr("PORT", "8080"),
		DatabaseURL:    os.Getenv("DATABASE_URL"),
		RedisURL:       envOr("REDIS_URL", "redis://redis-master.redis.svc.cluster.local:6379/0"),
		RedisPassword:  os.Getenv("REDIS_PASSWORD"),
		EthRPCURL:      envOr("ETH_RPC_URL", "https://eth.llamarpc.com"),
		FrontendOrigin: envOr("FRONTEND_ORIGIN", "*"),
		CronSecret:     os.Getenv("CRON_SECRET"),
		SessionKey:     os.Getenv("SESSION_KEY"),
		TelegramToken:  os.Getenv("TELEGRAM_BOT_TOKEN"),
		AllowedOwners:  parseOwners(os.Getenv("ALLOWED_OWNERS")),
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
	siteURL := envOr("INFISICAL_SITE_URL",
		"http://infisical-infisical-standalone-infisical.infisical.svc.cluster.local:8080")
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
		"CRON_SECRET":        &cfg.CronSecret,
		"SESSION_KEY":        &cfg.SessionKey,
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

// parseOwners parses "alice:123456,bob:789" into an owner→chat map. Entries
// that don't parse are dropped with a warning rather than failing startup.
func parseOwners(raw string) map[string]int64 {
	owners := make(map[string]int64)
	for _, pair := range strings.Split(raw, ",") {
		pair = strings.TrimSpace(pair)
		if pair == "" {
			continue
		}
		owner, chat, ok := strings.Cut(pair, ":")
		if !ok {
			slog.Warn("malformed ALLOWED_OWNERS entry", "entry", pair)
			continue
		}
		chatID, err := strconv.ParseInt(strings.TrimSpace(chat), 10, 64)
		if err != nil {
			slog.Warn("malformed chat id in ALLOWED_OWNERS", "entry", pair, "error", err)
			continue
		}
		owners[strings.TrimSpace(owner)] = chatID
	}
	return owners
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
