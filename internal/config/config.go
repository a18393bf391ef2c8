// Package config defines the top-level configuration for the floorline
// ingestion service and provides validation helpers.
package config

import (
	"fmt"
	"strings"
	"time"
)

// Config is the root configuration structure. Fields are populated from a
// TOML file and then optionally overridden by FLOORLINE_* environment
// variables.
type Config struct {
	Postgres PostgresConfig `toml:"postgres"`
	Redis    RedisConfig    `toml:"redis"`
	Chain    ChainConfig    `toml:"chain"`
	Oracle   OracleConfig   `toml:"oracle"`
	Audit    AuditConfig    `toml:"audit"`
	Ingest   IngestConfig   `toml:"ingest"`
	Feed     FeedConfig     `toml:"feed"`
	LogLevel string         `toml:"log_level"`
}

// PostgresConfig holds PostgreSQL connection parameters.
type PostgresConfig struct {
	DSN           string `toml:"dsn"`
	Host          string `toml:"host"`
	Port          int    `toml:"port"`
	Database      string `toml:"database"`
	User          string `toml:"user"`
	Password      string `toml:"password"`
	SSLMode       string `toml:"ssl_mode"`
	PoolMaxConns  int    `toml:"pool_max_conns"`
	PoolMinConns  int    `toml:"pool_min_conns"`
	RunMigrations bool   `toml:"run_migrations"`
}

// RedisConfig holds Redis connection parameters.
type RedisConfig struct {
	Addr       string `toml:"addr"`
	Password   string `toml:"password"`
	DB         int    `toml:"db"`
	PoolSize   int    `toml:"pool_size"`
	MaxRetries int    `toml:"max_retries"`
	TLSEnabled bool   `toml:"tls_enabled"`
}

// ChainConfig holds RPC endpoint and chain-wide address parameters.
type ChainConfig struct {
	RPCURL          string `toml:"rpc_url"`
	ChainID         int    `toml:"chain_id"`
	NativeCurrency  string `toml:"native_currency"`
	WrappedNative   string `toml:"wrapped_native"`
	SeaportExchange string `toml:"seaport_exchange"`
	SeaportConduit  string `toml:"seaport_conduit"`

	// AllowedCurrencies is the buy-side payment-token allow-list.
	AllowedCurrencies []string `toml:"allowed_currencies"`

	// AllowedZones is the enforcement zone / conduit allow-list. The empty
	// zone (open orders) is always allowed.
	AllowedZones []string `toml:"allowed_zones"`
}

// OracleConfig holds price-oracle endpoint parameters.
type OracleConfig struct {
	BaseURL string   `toml:"base_url"`
	APIKey  string   `toml:"api_key"`
	Timeout duration `toml:"timeout"`
}

// AuditConfig holds S3-compatible object storage parameters for the durable
// audit relay.
type AuditConfig struct {
	Enabled        bool   `toml:"enabled"`
	Endpoint       string `toml:"endpoint"`
	Region         string `toml:"region"`
	Bucket         string `toml:"bucket"`
	AccessKey      string `toml:"access_key"`
	SecretKey      string `toml:"secret_key"`
	UseSSL         bool   `toml:"use_ssl"`
	ForcePathStyle bool   `toml:"force_path_style"`
}

// IngestConfig holds pipeline parameters.
type IngestConfig struct {
	// Concurrency bounds the number of orders normalized in parallel.
	Concurrency int `toml:"concurrency"`

	// StartTimeGrace is how far before valid_from an order may be submitted
	// without being rejected with invalid-start-time.
	StartTimeGrace duration `toml:"start_time_grace"`

	// ClaimTTL bounds how long a token-set reconciliation claim is held.
	ClaimTTL duration `toml:"claim_ttl"`

	// HotCollectionRank is the worst collection rank that still triggers
	// token-list reconciliation jobs.
	HotCollectionRank int64 `toml:"hot_collection_rank"`

	// LowBidFloorBps expresses the bid-too-low guard threshold in bps of
	// the collection floor (9000 = 90%).
	LowBidFloorBps int64 `toml:"low_bid_floor_bps"`

	// AggregatorDomain is the default source identity for orders with no
	// attributable marketplace.
	AggregatorDomain string `toml:"aggregator_domain"`

	// JobQueue is the Redis stream new-order notifications are appended to.
	JobQueue string `toml:"job_queue"`

	// ReconcileQueue is the Redis stream token-list reconciliation jobs are
	// appended to.
	ReconcileQueue string `toml:"reconcile_queue"`
}

// FeedConfig holds the websocket order-relay intake parameters.
type FeedConfig struct {
	Enabled    bool     `toml:"enabled"`
	URL        string   `toml:"url"`
	BatchSize  int      `toml:"batch_size"`
	FlushEvery duration `toml:"flush_every"`
}

// duration is a wrapper around time.Duration that supports TOML string
// decoding (e.g. "5m", "30s").
type duration struct {
	time.Duration
}

// UnmarshalText implements encoding.TextUnmarshaler so the TOML decoder can
// parse duration strings like "5m" or "30s".
func (d *duration) UnmarshalText(text []byte) error {
	var err error
	d.Duration, err = time.ParseDuration(string(text))
	return err
}

// MarshalText implements encoding.TextMarshaler for round-trip encoding.
func (d duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

// Defaults returns a Config populated with reasonable default values.
// These match the values in config.example.toml.
func Defaults() Config {
	return Config{
		Postgres: PostgresConfig{
			Host:          "localhost",
			Port:          5432,
			Database:      "floorline",
			User:          "postgres",
			SSLMode:       "disable",
			PoolMaxConns:  10,
			PoolMinConns:  2,
			RunMigrations: true,
		},
		Redis: RedisConfig{
			Addr:       "localhost:6379",
			DB:         0,
			PoolSize:   20,
			MaxRetries: 3,
		},
		Chain: ChainConfig{
			RPCURL:          "http://localhost:8545",
			ChainID:         1,
			NativeCurrency:  "0x0000000000000000000000000000000000000000",
			WrappedNative:   "0xc02aaa39b223fe8d0a0e5c4f27ead9083c756cc2",
			SeaportExchange: "0x0000000000000068f116a894984e2db1123eb395",
			SeaportConduit:  "0x1e0049783f008a0085193e00003d00cd54003c71",
			AllowedCurrencies: []string{
				"0x0000000000000000000000000000000000000000",
				"0xc02aaa39b223fe8d0a0e5c4f27ead9083c756cc2",
			},
			AllowedZones: []string{""},
		},
		Oracle: OracleConfig{
			BaseURL: "https://api.coingecko.com/api/v3",
			Timeout: duration{10 * time.Second},
		},
		Audit: AuditConfig{
			Enabled:        false,
			Endpoint:       "http://localhost:9000",
			Region:         "us-east-1",
			Bucket:         "floorline-audit",
			ForcePathStyle: true,
		},
		Ingest: IngestConfig{
			Concurrency:       20,
			StartTimeGrace:    duration{5 * time.Minute},
			ClaimTTL:          duration{time.Minute},
			HotCollectionRank: 1000,
			LowBidFloorBps:    9000,
			AggregatorDomain:  "floorline.xyz",
			JobQueue:          "jobs:new-order",
			ReconcileQueue:    "jobs:token-list-reconcile",
		},
		Feed: FeedConfig{
			Enabled:    false,
			BatchSize:  50,
			FlushEvery: duration{time.Second},
		},
		LogLevel: "info",
	}
}

// validLogLevels enumerates the accepted values for Config.LogLevel.
var validLogLevels = map[string]bool{
	"debug": true,
	"info":  true,
	"warn":  true,
	"error": true,
}

// Validate checks Config for obviously invalid or missing values and returns
// a combined error describing every problem found.
func (c *Config) Validate() error {
	var errs []string

	if !validLogLevels[strings.ToLower(c.LogLevel)] {
		errs = append(errs, fmt.Sprintf("unknown log_level %q (valid: debug, info, warn, error)", c.LogLevel))
	}

	// Postgres
	if strings.TrimSpace(c.Postgres.DSN) == "" {
		if c.Postgres.Host == "" {
			errs = append(errs, "postgres: host must not be empty (or set postgres.dsn)")
		}
		if c.Postgres.Port <= 0 || c.Postgres.Port > 65535 {
			errs = append(errs, fmt.Sprintf("postgres: port must be 1-65535, got %d", c.Postgres.Port))
		}
		if c.Postgres.Database == "" {
			errs = append(errs, "postgres: database must not be empty")
		}
	}
	if c.Postgres.PoolMaxConns < 1 {
		errs = append(errs, "postgres: pool_max_conns must be >= 1")
	}
	if c.Postgres.PoolMinConns > c.Postgres.PoolMaxConns {
		errs = append(errs, "postgres: pool_min_conns must not exceed pool_max_conns")
	}

	// Redis
	if c.Redis.Addr == "" {
		errs = append(errs, "redis: addr must not be empty")
	}
	if c.Redis.PoolSize < 1 {
		errs = append(errs, "redis: pool_size must be >= 1")
	}

	// Chain
	if c.Chain.RPCURL == "" {
		errs = append(errs, "chain: rpc_url must not be empty")
	}
	if c.Chain.ChainID <= 0 {
		errs = append(errs, "chain: chain_id must be positive")
	}
	if c.Chain.NativeCurrency == "" {
		errs = append(errs, "chain: native_currency must not be empty")
	}
	if c.Chain.SeaportExchange == "" {
		errs = append(errs, "chain: seaport_exchange must not be empty")
	}
	if len(c.Chain.AllowedCurrencies) == 0 {
		errs = append(errs, "chain: allowed_currencies must not be empty")
	}

	// Oracle
	if c.Oracle.BaseURL == "" {
		errs = append(errs, "oracle: base_url must not be empty")
	}
	if c.Oracle.Timeout.Duration <= 0 {
		errs = append(errs, "oracle: timeout must be > 0")
	}

	// Audit
	if c.Audit.Enabled {
		if c.Audit.Endpoint == "" {
			errs = append(errs, "audit: endpoint must not be empty when enabled")
		}
		if c.Audit.Bucket == "" {
			errs = append(errs, "audit: bucket must not be empty when enabled")
		}
	}

	// Ingest
	if c.Ingest.Concurrency < 1 {
		errs = append(errs, "ingest: concurrency must be >= 1")
	}
	if c.Ingest.ClaimTTL.Duration <= 0 {
		errs = append(errs, "ingest: claim_ttl must be > 0")
	}
	if c.Ingest.LowBidFloorBps <= 0 || c.Ingest.LowBidFloorBps > 10000 {
		errs = append(errs, fmt.Sprintf("ingest: low_bid_floor_bps must be 1-10000, got %d", c.Ingest.LowBidFloorBps))
	}
	if c.Ingest.JobQueue == "" {
		errs = append(errs, "ingest: job_queue must not be empty")
	}

	// Feed
	if c.Feed.Enabled {
		if c.Feed.URL == "" {
			errs = append(errs, "feed: url must not be empty when enabled")
		}
		if c.Feed.BatchSize < 1 {
			errs = append(errs, "feed: batch_size must be >= 1")
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}
