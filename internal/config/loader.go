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
// built-in defaults, applies FLOORLINE_* environment variable overrides, and
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

// applyEnvOverrides reads well-known FLOORLINE_* environment variables and
// overwrites the corresponding Config fields when a variable is set. This
// lets operators inject secrets at deploy time without touching the TOML
// file.
func applyEnvOverrides(cfg *Config) {
	// ── Postgres ──
	setStr(&cfg.Postgres.DSN, "FLOORLINE_POSTGRES_DSN")
	setStr(&cfg.Postgres.Host, "FLOORLINE_POSTGRES_HOST")
	setInt(&cfg.Postgres.Port, "FLOORLINE_POSTGRES_PORT")
	setStr(&cfg.Postgres.Database, "FLOORLINE_POSTGRES_DATABASE")
	setStr(&cfg.Postgres.User, "FLOORLINE_POSTGRES_USER")
	setStr(&cfg.Postgres.Password, "FLOORLINE_POSTGRES_PASSWORD")
	setStr(&cfg.Postgres.SSLMode, "FLOORLINE_POSTGRES_SSLMODE")
	setInt(&cfg.Postgres.PoolMaxConns, "FLOORLINE_POSTGRES_POOL_MAX_CONNS")
	setInt(&cfg.Postgres.PoolMinConns, "FLOORLINE_POSTGRES_POOL_MIN_CONNS")
	setBool(&cfg.Postgres.RunMigrations, "FLOORLINE_POSTGRES_RUN_MIGRATIONS")

	// ── Redis ──
	setStr(&cfg.Redis.Addr, "FLOORLINE_REDIS_ADDR")
	setStr(&cfg.Redis.Password, "FLOORLINE_REDIS_PASSWORD")
	setInt(&cfg.Redis.DB, "FLOORLINE_REDIS_DB")
	setInt(&cfg.Redis.PoolSize, "FLOORLINE_REDIS_POOL_SIZE")
	setInt(&cfg.Redis.MaxRetries, "FLOORLINE_REDIS_MAX_RETRIES")
	setBool(&cfg.Redis.TLSEnabled, "FLOORLINE_REDIS_TLS_ENABLED")

	// ── Chain ──
	setStr(&cfg.Chain.RPCURL, "FLOORLINE_CHAIN_RPC_URL")
	setInt(&cfg.Chain.ChainID, "FLOORLINE_CHAIN_ID")
	setStr(&cfg.Chain.NativeCurrency, "FLOORLINE_CHAIN_NATIVE_CURRENCY")
	setStr(&cfg.Chain.WrappedNative, "FLOORLINE_CHAIN_WRAPPED_NATIVE")
	setStr(&cfg.Chain.SeaportExchange, "FLOORLINE_CHAIN_SEAPORT_EXCHANGE")
	setStr(&cfg.Chain.SeaportConduit, "FLOORLINE_CHAIN_SEAPORT_CONDUIT")
	setStringSlice(&cfg.Chain.AllowedCurrencies, "FLOORLINE_CHAIN_ALLOWED_CURRENCIES")
	setStringSlice(&cfg.Chain.AllowedZones, "FLOORLINE_CHAIN_ALLOWED_ZONES")

	// ── Oracle ──
	setStr(&cfg.Oracle.BaseURL, "FLOORLINE_ORACLE_BASE_URL")
	setStr(&cfg.Oracle.APIKey, "FLOORLINE_ORACLE_API_KEY")
	setDuration(&cfg.Oracle.Timeout, "FLOORLINE_ORACLE_TIMEOUT")

	// ── Audit ──
	setBool(&cfg.Audit.Enabled, "FLOORLINE_AUDIT_ENABLED")
	setStr(&cfg.Audit.Endpoint, "FLOORLINE_AUDIT_ENDPOINT")
	setStr(&cfg.Audit.Region, "FLOORLINE_AUDIT_REGION")
	setStr(&cfg.Audit.Bucket, "FLOORLINE_AUDIT_BUCKET")
	setStr(&cfg.Audit.AccessKey, "FLOORLINE_AUDIT_ACCESS_KEY")
	setStr(&cfg.Audit.SecretKey, "FLOORLINE_AUDIT_SECRET_KEY")
	setBool(&cfg.Audit.UseSSL, "FLOORLINE_AUDIT_USE_SSL")
	setBool(&cfg.Audit.ForcePathStyle, "FLOORLINE_AUDIT_FORCE_PATH_STYLE")

	// ── Ingest ──
	setInt(&cfg.Ingest.Concurrency, "FLOORLINE_INGEST_CONCURRENCY")
	setDuration(&cfg.Ingest.StartTimeGrace, "FLOORLINE_INGEST_START_TIME_GRACE")
	setDuration(&cfg.Ingest.ClaimTTL, "FLOORLINE_INGEST_CLAIM_TTL")
	setInt64(&cfg.Ingest.HotCollectionRank, "FLOORLINE_INGEST_HOT_COLLECTION_RANK")
	setInt64(&cfg.Ingest.LowBidFloorBps, "FLOORLINE_INGEST_LOW_BID_FLOOR_BPS")
	setStr(&cfg.Ingest.AggregatorDomain, "FLOORLINE_INGEST_AGGREGATOR_DOMAIN")
	setStr(&cfg.Ingest.JobQueue, "FLOORLINE_INGEST_JOB_QUEUE")
	setStr(&cfg.Ingest.ReconcileQueue, "FLOORLINE_INGEST_RECONCILE_QUEUE")

	// ── Feed ──
	setBool(&cfg.Feed.Enabled, "FLOORLINE_FEED_ENABLED")
	setStr(&cfg.Feed.URL, "FLOORLINE_FEED_URL")
	setInt(&cfg.Feed.BatchSize, "FLOORLINE_FEED_BATCH_SIZE")
	setDuration(&cfg.Feed.FlushEvery, "FLOORLINE_FEED_FLUSH_EVERY")

	// ── Top-level ──
	setStr(&cfg.LogLevel, "FLOORLINE_LOG_LEVEL")
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

func setInt64(dst *int64, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
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
