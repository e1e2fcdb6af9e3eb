package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

// Load reads a TOML configuration file at path, merges it on top of the
// built-in defaults, applies VEIL_* environment variable overrides, and
// returns the final Config. The returned Config has NOT been validated;
// callers should invoke Config.Validate() after Load.
func Load(path string) (*Config, error) {
	cfg := Defaults()

	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return nil, err
	}

	// Load .env file if present (silently ignore if missing).
	_ = godotenv.Load()

	applyEnvOverrides(&cfg)

	return &cfg, nil
}

// applyEnvOverrides reads well-known VEIL_* environment variables and
// overwrites the corresponding Config fields when a variable is set. This
// lets operators inject secrets at deploy time without touching the TOML
// file.
func applyEnvOverrides(cfg *Config) {
	setStr(&cfg.Wallet.PrivateKey, "VEIL_WALLET_PRIVATE_KEY")
	setStr(&cfg.Wallet.EncryptedKeyPath, "VEIL_WALLET_ENCRYPTED_KEY_PATH")
	setStr(&cfg.Wallet.KeyPassword, "VEIL_WALLET_KEY_PASSWORD")

	setStr(&cfg.Postgres.DSN, "VEIL_POSTGRES_DSN")
	setStr(&cfg.Postgres.Host, "VEIL_POSTGRES_HOST")
	setInt(&cfg.Postgres.Port, "VEIL_POSTGRES_PORT")
	setStr(&cfg.Postgres.Database, "VEIL_POSTGRES_DATABASE")
	setStr(&cfg.Postgres.User, "VEIL_POSTGRES_USER")
	setStr(&cfg.Postgres.Password, "VEIL_POSTGRES_PASSWORD")
	setStr(&cfg.Postgres.SSLMode, "VEIL_POSTGRES_SSLMODE")
	setInt(&cfg.Postgres.PoolMaxConns, "VEIL_POSTGRES_POOL_MAX_CONNS")
	setInt(&cfg.Postgres.PoolMinConns, "VEIL_POSTGRES_POOL_MIN_CONNS")
	setBool(&cfg.Postgres.RunMigrations, "VEIL_POSTGRES_RUN_MIGRATIONS")

	setStr(&cfg.Redis.Addr, "VEIL_REDIS_ADDR")
	setStr(&cfg.Redis.Password, "VEIL_REDIS_PASSWORD")
	setInt(&cfg.Redis.DB, "VEIL_REDIS_DB")
	setInt(&cfg.Redis.PoolSize, "VEIL_REDIS_POOL_SIZE")
	setInt(&cfg.Redis.MaxRetries, "VEIL_REDIS_MAX_RETRIES")
	setBool(&cfg.Redis.TLSEnabled, "VEIL_REDIS_TLS_ENABLED")

	setStr(&cfg.Chain.RPCURL, "VEIL_CHAIN_RPC_URL")

	setStr(&cfg.Augur.Universe, "VEIL_AUGUR_UNIVERSE")
	setStr(&cfg.Augur.DenominationToken, "VEIL_AUGUR_DENOMINATION_TOKEN")

	setBool(&cfg.Worker.Enabled, "VEIL_WORKER_ENABLED")
	setDuration(&cfg.Worker.Interval, "VEIL_WORKER_INTERVAL")
	setBool(&cfg.Worker.UseLock, "VEIL_WORKER_USE_LOCK")

	setBool(&cfg.Server.Enabled, "VEIL_SERVER_ENABLED")
	setInt(&cfg.Server.Port, "VEIL_SERVER_PORT")
	setStringSlice(&cfg.Server.CORSOrigins, "VEIL_SERVER_CORS_ORIGINS")
	setStr(&cfg.Server.APIKey, "VEIL_SERVER_API_KEY")
	setInt(&cfg.Server.RateLimit, "VEIL_SERVER_RATE_LIMIT")
	setDuration(&cfg.Server.RateLimitWindow, "VEIL_SERVER_RATE_LIMIT_WINDOW")

	setStr(&cfg.Notify.TelegramToken, "VEIL_NOTIFY_TELEGRAM_TOKEN")
	setStr(&cfg.Notify.TelegramChatID, "VEIL_NOTIFY_TELEGRAM_CHAT_ID")
	setStr(&cfg.Notify.DiscordWebhookURL, "VEIL_NOTIFY_DISCORD_WEBHOOK_URL")
	setStringSlice(&cfg.Notify.Events, "VEIL_NOTIFY_EVENTS")

	setBool(&cfg.S3.Enabled, "VEIL_S3_ENABLED")
	setStr(&cfg.S3.Endpoint, "VEIL_S3_ENDPOINT")
	setStr(&cfg.S3.Region, "VEIL_S3_REGION")
	setStr(&cfg.S3.Bucket, "VEIL_S3_BUCKET")
	setStr(&cfg.S3.AccessKey, "VEIL_S3_ACCESS_KEY")
	setStr(&cfg.S3.SecretKey, "VEIL_S3_SECRET_KEY")
	setBool(&cfg.S3.UseSSL, "VEIL_S3_USE_SSL")
	setBool(&cfg.S3.ForcePathStyle, "VEIL_S3_FORCE_PATH_STYLE")

	setStr(&cfg.Client.APIURL, "VEIL_CLIENT_API_URL")
	setStr(&cfg.Client.APIKey, "VEIL_CLIENT_API_KEY")
	setStr(&cfg.Client.TransactionsPath, "VEIL_CLIENT_TRANSACTIONS_PATH")

	setStr(&cfg.Mode, "VEIL_MODE")
	setStr(&cfg.LogLevel, "VEIL_LOG_LEVEL")
}

// ---------------------------------------------------------------------------
// Typed env-var helpers. Each only mutates the target when the environment
// variable is present and non-empty.
// ---------------------------------------------------------------------------

func setStr(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func setBool(dst *bool, key string) {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			*dst = b
		}
	}
}

func setDuration(dst *duration, key string) {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			dst.Duration = d
		}
	}
}

func setStringSlice(dst *[]string, key string) {
	if v := os.Getenv(key); v != "" {
		parts := strings.Split(v, ",")
		cleaned := make([]string, 0, len(parts))
		for _, p := range parts {
			p = strings.TrimSpace(p)
			if p != "" {
				cleaned = append(cleaned, p)
			}
		}
		if len(cleaned) > 0 {
			*dst = cleaned
		}
	}
}
