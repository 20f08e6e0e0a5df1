package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

// duration wraps time.Duration so TOML values like "1m" decode cleanly.
type duration struct {
	time.Duration
}

func (d *duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	d.Duration = v
	return nil
}

func (d duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

// Load reads a TOML configuration file at path, merges it on top of the
// built-in defaults, applies LENDPOOL_* environment variable overrides, and
// returns the final Config. The returned Config has NOT been validated; the
// caller should invoke Config.Validate() after Load.
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

// applyEnvOverrides reads well-known LENDPOOL_* environment variables and
// overwrites the corresponding Config fields when a variable is set (i.e.
// not empty). This lets operators inject secrets at deploy time without
// touching the TOML file.
func applyEnvOverrides(cfg *Config) {
	// ── Postgres ──
	setStr(&cfg.Postgres.DSN, "LENDPOOL_POSTGRES_DSN")
	setStr(&cfg.Postgres.Host, "LENDPOOL_POSTGRES_HOST")
	setInt(&cfg.Postgres.Port, "LENDPOOL_POSTGRES_PORT")
	setStr(&cfg.Postgres.Database, "LENDPOOL_POSTGRES_DATABASE")
	setStr(&cfg.Postgres.User, "LENDPOOL_POSTGRES_USER")
	setStr(&cfg.Postgres.Password, "LENDPOOL_POSTGRES_PASSWORD")
	setStr(&cfg.Postgres.SSLMode, "LENDPOOL_POSTGRES_SSL_MODE")
	setInt(&cfg.Postgres.PoolMaxConns, "LENDPOOL_POSTGRES_POOL_MAX_CONNS")
	setInt(&cfg.Postgres.PoolMinConns, "LENDPOOL_POSTGRES_POOL_MIN_CONNS")
	setBool(&cfg.Postgres.RunMigrations, "LENDPOOL_POSTGRES_RUN_MIGRATIONS")

	// ── Redis ──
	setStr(&cfg.Redis.Addr, "LENDPOOL_REDIS_ADDR")
	setStr(&cfg.Redis.Password, "LENDPOOL_REDIS_PASSWORD")
	setInt(&cfg.Redis.DB, "LENDPOOL_REDIS_DB")
	setInt(&cfg.Redis.PoolSize, "LENDPOOL_REDIS_POOL_SIZE")
	setInt(&cfg.Redis.MaxRetries, "LENDPOOL_REDIS_MAX_RETRIES")
	setBool(&cfg.Redis.TLSEnabled, "LENDPOOL_REDIS_TLS_ENABLED")

	// ── S3 ──
	setStr(&cfg.S3.Endpoint, "LENDPOOL_S3_ENDPOINT")
	setStr(&cfg.S3.Region, "LENDPOOL_S3_REGION")
	setStr(&cfg.S3.Bucket, "LENDPOOL_S3_BUCKET")
	setStr(&cfg.S3.AccessKey, "LENDPOOL_S3_ACCESS_KEY")
	setStr(&cfg.S3.SecretKey, "LENDPOOL_S3_SECRET_KEY")
	setBool(&cfg.S3.UseSSL, "LENDPOOL_S3_USE_SSL")
	setBool(&cfg.S3.ForcePathStyle, "LENDPOOL_S3_FORCE_PATH_STYLE")

	// ── Server ──
	setInt(&cfg.Server.Port, "LENDPOOL_SERVER_PORT")
	setStringSlice(&cfg.Server.CORSOrigins, "LENDPOOL_SERVER_CORS_ORIGINS")
	setStr(&cfg.Server.APIKey, "LENDPOOL_SERVER_API_KEY")
	setInt(&cfg.Server.RateLimit, "LENDPOOL_SERVER_RATE_LIMIT")
	setDuration(&cfg.Server.RateLimitWindow, "LENDPOOL_SERVER_RATE_LIMIT_WINDOW")

	// ── Notify ──
	setStr(&cfg.Notify.TelegramToken, "LENDPOOL_NOTIFY_TELEGRAM_TOKEN")
	setStr(&cfg.Notify.TelegramChatID, "LENDPOOL_NOTIFY_TELEGRAM_CHAT_ID")
	setStr(&cfg.Notify.DiscordWebhookURL, "LENDPOOL_NOTIFY_DISCORD_WEBHOOK_URL")
	setStringSlice(&cfg.Notify.Events, "LENDPOOL_NOTIFY_EVENTS")

	// ── Top-level ──
	setStr(&cfg.Mode, "LENDPOOL_MODE")
	setStr(&cfg.LogLevel, "LENDPOOL_LOG_LEVEL")
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
